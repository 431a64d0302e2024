package config

import (
	"flag"
	"os"

	"github.com/dmitrijs2005/kusogate/internal/backend"
	"github.com/dmitrijs2005/kusogate/internal/flagx"
	"github.com/dmitrijs2005/kusogate/internal/logging"
)

// parseFlags populates Config from command-line flags.
//
//	-a string   HTTP bind address (e.g. ":8080")
//	-inbound    serve /inbound
//	-l string   log format: json, text, zap
//	-v          debug logging
//
// plus the backend flags from backend.BindFlags.
func parseFlags(config *Config) {
	own := []string{"-a", "-inbound", "-l", "-v"}
	args := flagx.FilterArgs(os.Args[1:], append(own, backend.FlagNames...))

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.ListenAddr, "a", config.ListenAddr, "address and port to listen on")
	fs.BoolVar(&config.Inbound, "inbound", config.Inbound, "serve the inbound sign-in callback")
	logFormat := fs.String("l", string(config.LogFormat), "log format: json, text, zap")
	fs.BoolVar(&config.Debug, "v", config.Debug, "debug logging")
	backend.BindFlags(fs, &config.Backend)

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	config.LogFormat = logging.Format(*logFormat)
}
