// Package config handles configuration for the agent CLI, including
// defaults, JSON overlay, and command-line flags.
package config

import (
	"time"

	"github.com/dmitrijs2005/kusogate/internal/backend"
	"github.com/dmitrijs2005/kusogate/internal/logging"
)

// Config holds runtime settings for kuso-agent.
//
// Fields:
//   - GatewayEndpoint / GatewayTool / Query: the MCP gateway and the tool
//     called to find out whether the user has authorized it yet.
//   - Token: inbound bearer token. Prompted for when empty.
//   - Scopes: OAuth scopes requested for the outbound provider.
//   - CallbackBase / UserID: where the identity service sends the user back
//     after inbound sign-in.
//   - NoBrowser: print the authorization URL instead of opening it.
//   - SessionTTL / PollInterval / PollTimeout: rendezvous timings.
//   - RequestTimeout: per-request timeout for gateway calls.
type Config struct {
	GatewayEndpoint string
	GatewayTool     string
	Query           string
	Token           string
	Scopes          []string
	CallbackBase    string
	UserID          string
	NoBrowser       bool
	SessionTTL      time.Duration
	PollInterval    time.Duration
	PollTimeout     time.Duration
	RequestTimeout  time.Duration
	LogFormat       logging.Format
	Debug           bool
	Backend         backend.Config
}

// LoadDefaults populates Config with development defaults.
func (c *Config) LoadDefaults() {
	c.GatewayEndpoint = "http://127.0.0.1:8000/mcp"
	c.GatewayTool = "kuso-mcp-gateway-kuso-target___get_recommendations"
	c.Query = ""
	c.Token = ""
	c.Scopes = []string{"https://www.googleapis.com/auth/youtube.readonly"}
	c.CallbackBase = "http://localhost:8080"
	c.UserID = ""
	c.NoBrowser = false
	c.SessionTTL = 5 * time.Minute
	c.PollInterval = 2 * time.Second
	c.PollTimeout = 120 * time.Second
	c.RequestTimeout = 30 * time.Second
	c.LogFormat = logging.FormatText
	c.Debug = false
	c.Backend.LoadDefaults()
}

// LoadConfig builds a Config by applying defaults, then overlaying values
// from an optional JSON file and finally from command-line flags.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)
	parseFlags(cfg)
	return cfg
}
