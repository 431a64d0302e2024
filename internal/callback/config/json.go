package config

import (
	"encoding/json"
	"os"

	"github.com/dmitrijs2005/kusogate/internal/backend"
	"github.com/dmitrijs2005/kusogate/internal/flagx"
	"github.com/dmitrijs2005/kusogate/internal/logging"
)

// JsonConfig is the file form of Config. Backend keys sit at the top level.
type JsonConfig struct {
	ListenAddr string `json:"listen_addr"`
	Inbound    bool   `json:"inbound"`
	LogFormat  string `json:"log_format"`
	Debug      bool   `json:"debug"`
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
		ListenAddr: config.ListenAddr,
		Inbound:    config.Inbound,
		LogFormat:  string(config.LogFormat),
		Debug:      config.Debug,
		JsonConfig: backend.ToJson(config.Backend),
	}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}
	if err := json.Unmarshal(file, c); err != nil {
		panic(err)
	}

	config.ListenAddr = c.ListenAddr
	config.Inbound = c.Inbound
	config.LogFormat = logging.Format(c.LogFormat)
	config.Debug = c.Debug
	c.JsonConfig.Apply(&config.Backend)
}
