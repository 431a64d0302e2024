// Package callback runs kuso-callback, the HTTP endpoint the identity
// service redirects the user's browser to after consent.
package callback

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/dmitrijs2005/kusogate/internal/awsx"
	"github.com/dmitrijs2005/kusogate/internal/backend"
	"github.com/dmitrijs2005/kusogate/internal/callback/config"
	"github.com/dmitrijs2005/kusogate/internal/callback/httpapi"
	"github.com/dmitrijs2005/kusogate/internal/completion"
	"github.com/dmitrijs2005/kusogate/internal/logging"
)

type App struct {
	config *config.Config
	logger logging.Logger
}

func NewApp(c *config.Config) (*App, error) {
	logger, err := logging.New(c.LogFormat, os.Stdout, c.Debug)
	if err != nil {
		return nil, err
	}
	return &App{config: c, logger: logger}, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

// buildServer opens the backend and assembles the completion handler. The
// returned Backend must be closed by the caller.
func (app *App) buildServer(ctx context.Context) (*httpapi.Server, *backend.Backend, error) {
	b, err := backend.Open(ctx, app.config.Backend, app.logger)
	if err != nil {
		return nil, nil, fmt.Errorf("backend init error: %w", err)
	}

	awsCfg, err := b.AWSConfig(ctx, app.config.Backend)
	if err != nil {
		_ = b.Close()
		return nil, nil, err
	}
	identity := completion.NewAgentCore(awsx.NewAgentCore(awsCfg, app.config.Backend.AWS))

	handler := completion.NewHandler(b.Store, b.Sealer, identity, app.logger)

	var inbound httpapi.InboundCompleter
	if app.config.Inbound {
		inbound = identity
	}
	return httpapi.NewServer(app.config.ListenAddr, handler, inbound, app.logger), b, nil
}

func (app *App) Run(ctx context.Context) {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")
	app.initSignalHandler(cancelFunc)

	srv, b, err := app.buildServer(ctx)
	if err != nil {
		app.logger.Error(ctx, err.Error())
		return
	}
	defer func() {
		if err := b.Close(); err != nil {
			app.logger.Error(ctx, "backend close", "error", err)
		}
	}()

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := srv.Run(ctx); err != nil {
			app.logger.Error(ctx, err.Error())
			cancelFunc()
		}
	}()

	wg.Wait()
}
