package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/hashicorp/go-multierror"
	"github.com/schollz/progressbar/v3"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/alanbriolat/fig"
	"github.com/alanbriolat/fig/internal/telemetry"
	"github.com/alanbriolat/fig/internal/transfer"
)

var downloadCommand = &cli.Command{
	Name:      "download",
	Usage:     "download URLs (including inline data:image URLs) concurrently",
	ArgsUsage: "URL...",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:  "target",
			Usage: "save downloads to `DIR` instead of the download directory",
		},
		&cli.IntFlag{
			Name:    "max-concurrent",
			Usage:   "run at most `N` downloads at once (0 for no limit)",
			EnvVars: []string{"FIG_MAX_CONCURRENT"},
		},
	},
	Action: download,
}

func download(c *cli.Context) (err error) {
	logger := zap.S()
	urls := c.Args().Slice()
	if len(urls) == 0 {
		return cli.Exit("no URLs given", 2)
	}

	db, err := openStore(c)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			err = multierror.Append(err, closeErr)
		}
	}()

	config := transfer.DefaultConfig
	config.DefaultSavePath = c.String("download-dir")
	config.Database = db
	config.MaxConcurrent = c.Int("max-concurrent")
	manager, err := transfer.New(c.Context, config)
	if err != nil {
		return err
	}
	defer manager.Close()

	events, err := manager.Subscribe()
	if err != nil {
		return err
	}

	requests := make([]fig.Request, len(urls))
	for i, url := range urls {
		requests[i] = fig.Request{ID: fig.NumericFileID(int64(i + 1)), URL: url, CustomPath: c.String("target")}
	}
	if _, err := manager.Start(requests...); err != nil {
		return err
	}

	var bar *progressbar.ProgressBar
	if term.IsTerminal(int(os.Stderr.Fd())) {
		bar = progressbar.NewOptions(len(requests),
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionSetDescription("downloading"),
			progressbar.OptionShowCount(),
			progressbar.OptionClearOnFinish(),
		)
	}

	var failures error
	remaining := len(requests)
	for remaining > 0 {
		event, ok := <-events.Receive()
		if !ok {
			// Manager closed under us, i.e. interrupted
			return fmt.Errorf("interrupted with %d downloads unfinished", remaining)
		}
		switch e := event.(type) {
		case telemetry.Progress:
			if bar != nil {
				bar.Describe(describeProgress(e))
			} else {
				logger.Debugw("progress", "file_id", e.FileID, "progress", e.Progress, "speed", e.Speed)
			}
			continue
		case telemetry.Complete:
			logger.Infof("Saved %s", e.Path)
		case telemetry.Failure:
			failures = multierror.Append(failures, fmt.Errorf("%s: %s", urls[fileIndex(e.FileID)], e.Message))
		case telemetry.Cancelled:
			failures = multierror.Append(failures, fmt.Errorf("%s: cancelled", urls[fileIndex(e.FileID)]))
		}
		remaining--
		if bar != nil {
			_ = bar.Add(1)
		}
	}
	return failures
}

func describeProgress(e telemetry.Progress) string {
	if e.Progress == nil {
		return fmt.Sprintf("#%v %s", e.FileID, e.Speed)
	}
	return fmt.Sprintf("#%v %5.1f%% %s", e.FileID, *e.Progress, e.Speed)
}

// fileIndex maps the file IDs assigned by download back to the index of their URL.
func fileIndex(id fig.FileID) int {
	n, err := strconv.Atoi(id.String())
	if err != nil {
		return 0
	}
	return n - 1
}
