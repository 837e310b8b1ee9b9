package main

import (
	"context"
	"errors"
	"io/fs"
	"log"
	"os"
	"os/signal"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/alanbriolat/fig/async"
	_ "github.com/alanbriolat/fig/providers"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Fatalf("can't load .env file: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	app := &cli.App{
		Name:  "fig",
		Usage: "find file links and download them",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    "debug",
				Usage:   "enable debug logging",
				EnvVars: []string{"FIG_DEBUG"},
			},
			&cli.StringFlag{
				Name:    "download-dir",
				Usage:   "save downloads to `DIR` unless a request names another (default: platform download directory)",
				EnvVars: []string{"FIG_DOWNLOAD_DIR"},
			},
			&cli.StringFlag{
				Name:    "store",
				Value:   storeBolt,
				Usage:   "record downloads in a `STORE`: bolt, sqlite or none",
				EnvVars: []string{"FIG_STORE"},
			},
			&cli.StringFlag{
				Name:    "database",
				Usage:   "database `FILE` for the record store (default: fig.db or fig.sqlite in the user config directory)",
				EnvVars: []string{"FIG_DATABASE"},
			},
		},
		Before: setupLogging,
		After: func(c *cli.Context) error {
			_ = zap.L().Sync()
			return nil
		},
		Commands: []*cli.Command{
			serveCommand,
			checkCommand,
			downloadCommand,
			historyCommand,
		},
		HideHelpCommand: true,
	}

	result := async.Run(func() error { return app.RunContext(ctx, os.Args) })

	var err error
	select {
	case err = <-result:
	case <-ctx.Done():
		stop()
		err = <-result
	}
	if err != nil {
		zap.S().Fatal(err.Error())
	}
}

func setupLogging(c *cli.Context) error {
	config := zap.NewDevelopmentConfig()
	config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	if !c.Bool("debug") {
		config.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	}
	logger, err := config.Build()
	if err != nil {
		return err
	}
	zap.RedirectStdLog(logger)
	zap.ReplaceGlobals(logger)
	return nil
}
