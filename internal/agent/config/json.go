package config

import (
	"encoding/json"
	"os"

	"github.com/dmitrijs2005/kusogate/internal/backend"
	"github.com/dmitrijs2005/kusogate/internal/flagx"
	"github.com/dmitrijs2005/kusogate/internal/logging"
	"github.com/dmitrijs2005/kusogate/internal/timex"
)

// JsonConfig is the file form of Config. Durations accept "2s" or integer
// nanoseconds. Backend keys sit at the top level.
type JsonConfig struct {
	GatewayEndpoint string         `json:"gateway_endpoint"`
	GatewayTool     string         `json:"gateway_tool"`
	Query           string         `json:"query"`
	Token           string         `json:"token"`
	Scopes          []string       `json:"scopes"`
	CallbackBase    string         `json:"callback_base"`
	UserID          string         `json:"user_id"`
	NoBrowser       bool           `json:"no_browser"`
	SessionTTL      timex.Duration `json:"session_ttl"`
	PollInterval    timex.Duration `json:"poll_interval"`
	PollTimeout     timex.Duration `json:"poll_timeout"`
	RequestTimeout  timex.Duration `json:"request_timeout"`
	LogFormat       string         `json:"log_format"`
	Debug           bool           `json:"debug"`
	backend.JsonConfig
}

// parseJson overlays the file named by -c or -config onto config. Keys
// absent from the file keep their current values. A missing or malformed
// file panics.
func parseJson(config *Config) {
	jsonConfigFile := flagx.JsonConfigFlags()
	if jsonConfigFile == "" {
		return
	}

	c := &JsonConfig{
		GatewayEndpoint: config.GatewayEndpoint,
		GatewayTool:     config.GatewayTool,
		Query:           config.Query,
		Token:           config.Token,
		Scopes:          config.Scopes,
		CallbackBase:    config.CallbackBase,
		UserID:          config.UserID,
		NoBrowser:       config.NoBrowser,
		SessionTTL:      timex.Duration{Duration: config.SessionTTL},
		PollInterval:    timex.Duration{Duration: config.PollInterval},
		PollTimeout:     timex.Duration{Duration: config.PollTimeout},
		RequestTimeout:  timex.Duration{Duration: config.RequestTimeout},
		LogFormat:       string(config.LogFormat),
		Debug:           config.Debug,
		JsonConfig:      backend.ToJson(config.Backend),
	}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}
	if err := json.Unmarshal(file, c); err != nil {
		panic(err)
	}

	config.GatewayEndpoint = c.GatewayEndpoint
	config.GatewayTool = c.GatewayTool
	config.Query = c.Query
	config.Token = c.Token
	config.Scopes = c.Scopes
	config.CallbackBase = c.CallbackBase
	config.UserID = c.UserID
	config.NoBrowser = c.NoBrowser
	config.SessionTTL = c.SessionTTL.Duration
	config.PollInterval = c.PollInterval.Duration
	config.PollTimeout = c.PollTimeout.Duration
	config.RequestTimeout = c.RequestTimeout.Duration
	config.LogFormat = logging.Format(c.LogFormat)
	config.Debug = c.Debug
	c.JsonConfig.Apply(&config.Backend)
}
