package main

import (
	"github.com/hashicorp/go-multierror"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/alanbriolat/fig/internal/classify"
	"github.com/alanbriolat/fig/internal/clipboard"
	"github.com/alanbriolat/fig/internal/pubsub"
	"github.com/alanbriolat/fig/internal/server"
	"github.com/alanbriolat/fig/internal/telemetry"
	"github.com/alanbriolat/fig/internal/transfer"
)

var serveCommand = &cli.Command{
	Name:  "serve",
	Usage: "accept commands from websocket clients",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:    "addr",
			Value:   server.DefaultConfig.Addr,
			Usage:   "listen on `ADDR`",
			EnvVars: []string{"FIG_ADDR"},
		},
		&cli.BoolFlag{
			Name:    "watch-clipboard",
			Usage:   "send file links copied to the clipboard to every client",
			EnvVars: []string{"FIG_WATCH_CLIPBOARD"},
		},
		&cli.IntFlag{
			Name:    "max-concurrent",
			Usage:   "run at most `N` downloads at once (0 for no limit)",
			EnvVars: []string{"FIG_MAX_CONCURRENT"},
		},
	},
	Action: serve,
}

func serve(c *cli.Context) (err error) {
	logger := zap.S()
	ctx := c.Context

	db, err := openStore(c)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			err = multierror.Append(err, closeErr)
		}
	}()

	managerConfig := transfer.DefaultConfig
	managerConfig.DefaultSavePath = c.String("download-dir")
	managerConfig.Database = db
	managerConfig.MaxConcurrent = c.Int("max-concurrent")
	manager, err := transfer.New(ctx, managerConfig)
	if err != nil {
		return err
	}
	defer manager.Close()
	logger.Infof("Saving downloads to %s", manager.DefaultSavePath())

	classifier := classify.New(classify.DefaultConfig)
	serverConfig := server.DefaultConfig
	serverConfig.Addr = c.String("addr")
	srv := server.New(ctx, serverConfig, manager, classifier)

	if c.Bool("watch-clipboard") {
		watcher := clipboard.New(ctx, clipboard.DefaultConfig, classifier)
		// Only the watcher is closed with the pipe; the server owns its broadcast publisher
		pipe := pubsub.NewPipeChannelsOptions[telemetry.Event](watcher, srv.Broadcast(), pubsub.PipeOptions{CloseInput: true})
		defer pipe.Close()
		logger.Info("Watching clipboard for file links")
	}

	go func() {
		<-ctx.Done()
		logger.Info("Exiting gracefully...")
		if err := srv.Close(); err != nil {
			logger.Errorw("failed to close server", "error", err)
		}
	}()
	return srv.ListenAndServe()
}
