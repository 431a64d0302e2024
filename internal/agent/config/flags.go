package config

import (
	"flag"
	"os"
	"strings"

	"github.com/dmitrijs2005/kusogate/internal/backend"
	"github.com/dmitrijs2005/kusogate/internal/flagx"
	"github.com/dmitrijs2005/kusogate/internal/logging"
)

// parseFlags populates Config from command-line flags.
//
//	-gateway string    MCP gateway endpoint
//	-tool string       probe tool name
//	-q string          probe search query
//	-token string      inbound bearer token (prompted when empty)
//	-scopes string     comma separated OAuth scopes
//	-callback string   callback server base URL
//	-user string       user id for the inbound callback
//	-no-browser        print the URL instead of opening a browser
//	-ttl duration      session lifetime
//	-poll duration     poll interval
//	-wait duration     poll timeout
//	-timeout duration  gateway request timeout
//	-l string          log format: json, text, zap
//	-v                 debug logging
//
// plus the backend flags from backend.BindFlags.
func parseFlags(config *Config) {
	own := []string{
		"-gateway", "-tool", "-q", "-token", "-scopes", "-callback", "-user",
		"-no-browser", "-ttl", "-poll", "-wait", "-timeout", "-l", "-v",
	}
	args := flagx.FilterArgs(os.Args[1:], append(own, backend.FlagNames...))

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.GatewayEndpoint, "gateway", config.GatewayEndpoint, "MCP gateway endpoint")
	fs.StringVar(&config.GatewayTool, "tool", config.GatewayTool, "probe tool name")
	fs.StringVar(&config.Query, "q", config.Query, "probe search query")
	fs.StringVar(&config.Token, "token", config.Token, "inbound bearer token")
	scopes := fs.String("scopes", strings.Join(config.Scopes, ","), "comma separated OAuth scopes")
	fs.StringVar(&config.CallbackBase, "callback", config.CallbackBase, "callback server base URL")
	fs.StringVar(&config.UserID, "user", config.UserID, "user id for the inbound callback")
	fs.BoolVar(&config.NoBrowser, "no-browser", config.NoBrowser, "print the authorization URL only")
	fs.DurationVar(&config.SessionTTL, "ttl", config.SessionTTL, "session lifetime")
	fs.DurationVar(&config.PollInterval, "poll", config.PollInterval, "poll interval")
	fs.DurationVar(&config.PollTimeout, "wait", config.PollTimeout, "how long to wait for the user")
	fs.DurationVar(&config.RequestTimeout, "timeout", config.RequestTimeout, "gateway request timeout")
	logFormat := fs.String("l", string(config.LogFormat), "log format: json, text, zap")
	fs.BoolVar(&config.Debug, "v", config.Debug, "debug logging")
	backend.BindFlags(fs, &config.Backend)

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	config.Scopes = splitScopes(*scopes)
	config.LogFormat = logging.Format(*logFormat)
}

func splitScopes(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
