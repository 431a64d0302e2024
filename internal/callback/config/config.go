// Package config handles configuration for the callback server, including
// defaults, JSON overlay, and command-line flags.
package config

import (
	"github.com/dmitrijs2005/kusogate/internal/backend"
	"github.com/dmitrijs2005/kusogate/internal/logging"
)

// Config holds runtime settings for kuso-callback.
//
// Fields:
//   - ListenAddr: bind address for the HTTP callback endpoint.
//   - Inbound: serve /inbound, which completes the agent's own sign-in.
//   - LogFormat / Debug: logger selection.
//   - Backend: session store and sealer; must match the agent's.
type Config struct {
	ListenAddr string
	Inbound    bool
	LogFormat  logging.Format
	Debug      bool
	Backend    backend.Config
}

// LoadDefaults populates Config with development defaults.
func (c *Config) LoadDefaults() {
	c.ListenAddr = ":8080"
	c.Inbound = true
	c.LogFormat = logging.FormatJSON
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
