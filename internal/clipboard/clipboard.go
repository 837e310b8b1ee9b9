// Package clipboard watches the system clipboard for text containing file links.
package clipboard

import (
	"context"
	"time"

	systemclipboard "github.com/atotto/clipboard"
	"go.uber.org/zap"

	"github.com/alanbriolat/fig"
	"github.com/alanbriolat/fig/internal/pubsub"
	"github.com/alanbriolat/fig/internal/telemetry"
)

type Config struct {
	// How often to read the clipboard.
	Interval time.Duration
	// Read returns the clipboard text; defaults to reading the system clipboard.
	Read func() (string, error)
}

var DefaultConfig = Config{
	Interval: time.Second,
}

// Checker turns text into the file links it contains.
type Checker interface {
	CheckLinks(ctx context.Context, text string) []fig.FileLink
}

// Watcher polls the clipboard and emits a FileLinks event whenever new clipboard text contains file links. It is a
// pubsub.ReceiverCloser, so it can be piped straight into a publisher.
type Watcher struct {
	config  Config
	checker Checker
	log     *zap.SugaredLogger
	out     pubsub.Channel[telemetry.Event]
	cancel  context.CancelFunc
	done    chan struct{}
}

// New starts watching immediately; the Watcher stops when ctx ends or Close is called.
func New(ctx context.Context, config Config, checker Checker) *Watcher {
	if config.Interval <= 0 {
		config.Interval = DefaultConfig.Interval
	}
	if config.Read == nil {
		config.Read = systemclipboard.ReadAll
	}
	ctx, cancel := context.WithCancel(ctx)
	w := &Watcher{
		config:  config,
		checker: checker,
		log:     zap.S().Named("clipboard"),
		out:     pubsub.NewChannel[telemetry.Event](0),
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	go w.run(ctx)
	return w
}

func (w *Watcher) run(ctx context.Context) {
	defer close(w.done)
	defer w.out.Close()

	if systemclipboard.Unsupported {
		w.log.Warn("system clipboard unsupported on this platform")
	}
	ticker := time.NewTicker(w.config.Interval)
	defer ticker.Stop()
	var last string
	failing := false
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		text, err := w.config.Read()
		if err != nil {
			// Only log the first of a run of failures, they tend to repeat every tick
			if !failing {
				w.log.Warnw("failed to read clipboard", "error", err)
			}
			failing = true
			continue
		}
		failing = false
		if text == "" || text == last {
			continue
		}
		last = text

		links := w.checker.CheckLinks(ctx, text)
		if len(links) == 0 || ctx.Err() != nil {
			continue
		}
		w.log.Debugw("found file links on clipboard", "count", len(links))
		if !w.out.Send(telemetry.FileLinks{FileLinks: links}) {
			return
		}
	}
}

func (w *Watcher) Receive() <-chan telemetry.Event {
	return w.out.Receive()
}

// Close stops watching and waits for the poll loop to exit.
func (w *Watcher) Close() {
	w.cancel()
	w.out.Close()
	<-w.done
}

func (w *Watcher) Closed() <-chan struct{} {
	return w.out.Closed()
}
