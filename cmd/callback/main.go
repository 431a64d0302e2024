package main

import (
	"context"
	"log"
	"os"

	"github.com/dmitrijs2005/kusogate/internal/buildinfo"
	"github.com/dmitrijs2005/kusogate/internal/callback"
	"github.com/dmitrijs2005/kusogate/internal/callback/config"
)

func main() {

	buildinfo.PrintBuildData(os.Stdout)

	ctx := context.Background()
	cfg := config.LoadConfig()
	app, err := callback.NewApp(cfg)
	if err != nil {
		log.Fatalf("%v", err)
	}

	app.Run(ctx)
}
