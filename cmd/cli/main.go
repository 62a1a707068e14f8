package main

import (
	"context"
	"log"
	"log/slog"
	"os"

	"github.com/chronie/homemoney-sync/internal/buildinfo"
	"github.com/chronie/homemoney-sync/internal/client/cli"
	"github.com/chronie/homemoney-sync/internal/client/config"
	"github.com/chronie/homemoney-sync/internal/logging"
)

func main() {

	buildinfo.PrintBuildData(os.Stdout)

	ctx := context.Background()
	cfg := config.LoadConfig()

	logger := logging.NewText(os.Stderr, slog.LevelInfo)

	app, err := cli.NewApp(cfg, logger)
	if err != nil {
		log.Fatalf("%v", err)
		return
	}

	app.Run(ctx)

}
