// Package agent runs kuso-agent: it asks the gateway for access, sends the
// user to the authorization URL when needed, and waits for the callback.
package agent

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/dmitrijs2005/kusogate/internal/agent/config"
	"github.com/dmitrijs2005/kusogate/internal/backend"
	"github.com/dmitrijs2005/kusogate/internal/logging"
	"github.com/dmitrijs2005/kusogate/internal/provider"
	"github.com/dmitrijs2005/kusogate/internal/rendezvous"
	"github.com/dmitrijs2005/kusogate/internal/viewer"
	"golang.org/x/term"
)

var (
	ErrDenied   = errors.New("authorization denied")
	ErrTimedOut = errors.New("authorization timed out")
)

// Test seams.
var (
	readPassword = term.ReadPassword
	openBackend  = backend.Open
)

type App struct {
	config *config.Config
	logger logging.Logger
	out    io.Writer
}

func NewApp(c *config.Config) (*App, error) {
	logger, err := logging.New(c.LogFormat, os.Stderr, c.Debug)
	if err != nil {
		return nil, err
	}
	return &App{config: c, logger: logger, out: os.Stdout}, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

// token returns the configured inbound token or reads one from the
// terminal without echo.
func (app *App) token() (string, error) {
	if app.config.Token != "" {
		return app.config.Token, nil
	}
	if _, err := fmt.Fprint(app.out, "Enter inbound token: "); err != nil {
		return "", err
	}
	b, err := readPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(app.out)
	if err != nil {
		return "", fmt.Errorf("read token: %w", err)
	}
	if len(b) == 0 {
		return "", errors.New("empty token")
	}
	return string(b), nil
}

func (app *App) newClient(b *backend.Backend, token string) (*rendezvous.Client, error) {
	c := app.config

	gw := provider.NewGateway(provider.GatewayConfig{
		Endpoint: c.GatewayEndpoint,
		Tool:     c.GatewayTool,
		Arguments: map[string]any{
			"part":       "snippet",
			"q":          c.Query,
			"maxResults": 5,
		},
		Timeout: c.RequestTimeout,
	}, token, nil, app.logger)

	var opener viewer.Opener = viewer.NewBrowser(app.out)
	if c.NoBrowser {
		opener = viewer.NewPrinter(app.out)
	}

	return rendezvous.NewClient(rendezvous.Config{
		KeyID:        c.Backend.KeyID,
		Scopes:       c.Scopes,
		SessionTTL:   c.SessionTTL,
		PollInterval: c.PollInterval,
		PollTimeout:  c.PollTimeout,
	}, gw, b.Sealer, b.Store, opener, app.logger)
}

// Run performs one authorization attempt. Denied and timed out attempts are
// reported as ErrDenied and ErrTimedOut.
func (app *App) Run(ctx context.Context) error {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()
	app.initSignalHandler(cancelFunc)

	app.logger.Info(ctx, "inbound callback",
		"url", provider.InboundCallbackURL(app.config.CallbackBase, app.config.UserID))

	token, err := app.token()
	if err != nil {
		return err
	}

	b, err := openBackend(ctx, app.config.Backend, app.logger)
	if err != nil {
		return fmt.Errorf("backend init error: %w", err)
	}
	defer func() {
		if err := b.Close(); err != nil {
			app.logger.Error(ctx, "backend close", "error", err)
		}
	}()

	client, err := app.newClient(b, token)
	if err != nil {
		return err
	}

	outcome, err := client.Authorize(ctx, token)
	if err != nil {
		if provider.IsRPCError(err) {
			app.logger.Error(ctx, "gateway rejected the tool call", "tool", app.config.GatewayTool, "error", err)
		}
		return err
	}
	return app.report(outcome)
}

func (app *App) report(o *rendezvous.Outcome) error {
	switch o.Kind {
	case rendezvous.Authorized:
		if o.SessionID == "" {
			fmt.Fprintln(app.out, "Gateway access already authorized.")
		} else {
			fmt.Fprintf(app.out, "Gateway access authorized (session %s).\n", o.SessionID)
		}
		return nil
	case rendezvous.Denied:
		fmt.Fprintf(app.out, "Authorization denied: %s\n", o.Reason)
		return fmt.Errorf("%w: %s", ErrDenied, o.Reason)
	default:
		fmt.Fprintln(app.out, "Timed out waiting for authorization.")
		return ErrTimedOut
	}
}
