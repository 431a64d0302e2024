package main

import (
	"context"
	"log"
	"os"

	"github.com/dmitrijs2005/kusogate/internal/agent"
	"github.com/dmitrijs2005/kusogate/internal/agent/config"
	"github.com/dmitrijs2005/kusogate/internal/buildinfo"
)

func main() {

	buildinfo.PrintBuildData(os.Stderr)

	ctx := context.Background()
	cfg := config.LoadConfig()
	app, err := agent.NewApp(cfg)
	if err != nil {
		log.Fatalf("%v", err)
	}

	if err := app.Run(ctx); err != nil {
		log.Fatalf("%v", err)
	}
}
