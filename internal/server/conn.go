package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/hashicorp/go-multierror"
	"go.uber.org/zap"
	"golang.org/x/net/websocket"

	"github.com/alanbriolat/fig"
	"github.com/alanbriolat/fig/internal/pubsub"
	"github.com/alanbriolat/fig/internal/sync_"
	"github.com/alanbriolat/fig/internal/telemetry"
)

var errMissingID = errors.New("download request has no id")

// owned counts the unfinished transfers a connection has started, per file ID.
type owned = map[fig.FileID]int

// conn is one websocket client: a read loop dispatching commands, and a write loop sending everything addressed to
// this client.
type conn struct {
	server   *Server
	ws       *websocket.Conn
	log      *zap.SugaredLogger
	ctx      context.Context
	cancel   context.CancelFunc
	replies  pubsub.Channel[telemetry.Event]
	owned    *sync_.Mutexed[owned]
	handlers sync.WaitGroup
}

func newConn(s *Server, ws *websocket.Conn) *conn {
	ctx, cancel := context.WithCancel(s.ctx)
	return &conn{
		server:  s,
		ws:      ws,
		log:     s.log.With("remote", ws.Request().RemoteAddr),
		ctx:     ctx,
		cancel:  cancel,
		replies: pubsub.NewChannel[telemetry.Event](s.config.ConnBufSize),
		owned:   sync_.NewMutexed(make(owned)),
	}
}

func (c *conn) serve() (err error) {
	transfers := pubsub.NewChannel[telemetry.Event](c.server.config.ConnBufSize)
	if err := c.server.manager.AddSubscriber(pubsub.NewFilteredSender[telemetry.Event](transfers, c.accept), true); err != nil {
		return fmt.Errorf("failed to subscribe to transfers: %w", err)
	}
	broadcast, err := c.server.broadcast.SubscribeBufSize(c.server.config.ConnBufSize)
	if err != nil {
		transfers.Close()
		return fmt.Errorf("failed to subscribe to broadcasts: %w", err)
	}
	outbound := pubsub.NewMergerBufSize[telemetry.Event](c.server.config.ConnBufSize, c.replies, transfers, broadcast)

	writerDone := make(chan error, 1)
	go func() {
		writerDone <- c.writeLoop(outbound)
	}()
	// Server shutdown or a failed write must unblock the read loop
	go func() {
		<-c.ctx.Done()
		_ = c.ws.Close()
	}()

	readErr := c.readLoop()
	c.cancel()
	c.handlers.Wait()
	outbound.Close()
	writeErr := <-writerDone

	var result error
	if readErr != nil && !errors.Is(readErr, io.EOF) && c.server.ctx.Err() == nil {
		result = multierror.Append(result, fmt.Errorf("read: %w", readErr))
	}
	if writeErr != nil {
		result = multierror.Append(result, fmt.Errorf("write: %w", writeErr))
	}
	return result
}

func (c *conn) readLoop() error {
	for {
		var data []byte
		if err := websocket.Message.Receive(c.ws, &data); err != nil {
			return err
		}
		msg, err := telemetry.ParseInbound(data)
		if err != nil {
			c.log.Warnw("dropping invalid message", "error", err, "message", string(data))
			continue
		}
		c.dispatch(msg)
	}
}

func (c *conn) writeLoop(outbound pubsub.Receiver[telemetry.Event]) error {
	for e := range outbound.Receive() {
		if err := websocket.JSON.Send(c.ws, e); err != nil {
			c.cancel()
			// Keep draining so the merger's inputs never block
			for range outbound.Receive() {
			}
			if c.server.ctx.Err() != nil {
				return nil
			}
			return err
		}
	}
	return nil
}

// accept filters manager events down to those for transfers this connection started.
func (c *conn) accept(e telemetry.Event) bool {
	fe, ok := e.(telemetry.FileEvent)
	if !ok {
		return false
	}
	accepted := false
	_ = c.owned.Locked(func(o *owned) error {
		n := (*o)[fe.File()]
		if n == 0 {
			return nil
		}
		accepted = true
		if fe.Terminal() {
			if n == 1 {
				delete(*o, fe.File())
			} else {
				(*o)[fe.File()] = n - 1
			}
		}
		return nil
	})
	return accepted
}

func (c *conn) own(requests []fig.Request, delta int) {
	_ = c.owned.Locked(func(o *owned) error {
		for _, r := range requests {
			if n := (*o)[r.ID] + delta; n > 0 {
				(*o)[r.ID] = n
			} else {
				delete(*o, r.ID)
			}
		}
		return nil
	})
}

func (c *conn) reply(e telemetry.Event) {
	if !c.replies.Send(e) {
		c.log.Debugw("dropped reply to closed connection", "event", e)
	}
}

// handle runs f in its own goroutine, so that slow commands never hold up the read loop.
func (c *conn) handle(name string, f func()) {
	c.handlers.Add(1)
	go func() {
		defer c.handlers.Done()
		defer func() {
			if r := recover(); r != nil {
				c.log.Errorw("panic handling command", "command", name, "panic", r)
			}
		}()
		f()
	}()
}

func (c *conn) dispatch(msg telemetry.Inbound) {
	if len(msg.Download) > 0 {
		c.handle("download", func() { c.download(msg.Download) })
	}
	if requested, dir, _ := msg.DefaultPathRequest(); requested {
		c.handle("setDefaultPath", func() { c.setDefaultPath(dir) })
	}
	if msg.ScrapeUrls != "" {
		c.handle("scrapeUrls", func() { c.scrape(msg.ScrapeUrls) })
	}
	if msg.CheckLinks != "" {
		c.handle("checkLinks", func() { c.checkLinks(msg.CheckLinks) })
	}
	if msg.CancelToken != "" {
		c.handle("cancel", func() { c.cancelTransfer(msg.CancelToken) })
	}
}

func (c *conn) download(requests []fig.Request) {
	valid := make([]fig.Request, 0, len(requests))
	for _, r := range requests {
		if r.ID.IsZero() {
			c.log.Warnw("rejecting download request", "error", errMissingID, "url", r.URL)
			c.reply(telemetry.DownloadError{Message: fmt.Sprintf("%v: %v", errMissingID, r.URL)})
			continue
		}
		valid = append(valid, r)
	}
	if len(valid) == 0 {
		return
	}
	// Owned before starting, so not even the first event is filtered out
	c.own(valid, 1)
	handles, err := c.server.manager.Start(valid...)
	if err != nil {
		c.own(valid, -1)
		c.log.Errorw("failed to start downloads", "error", err)
		c.reply(telemetry.DownloadError{Message: err.Error()})
		return
	}
	c.log.Infow("started downloads", "count", len(handles))
}

func (c *conn) setDefaultPath(dir string) {
	if dir != "" {
		if err := c.server.manager.SetDefaultSavePath(dir); err != nil {
			c.log.Warnw("failed to set default path", "dir", dir, "error", err)
		}
	}
	c.reply(telemetry.DefaultPath{DefaultPath: c.server.manager.DefaultSavePath()})
}

func (c *conn) scrape(text string) {
	for page := range c.server.checker.Scrape(c.ctx, text) {
		if page.Err != nil {
			c.log.Infow("failed to scrape page", "url", page.URL, "error", page.Err)
			c.reply(telemetry.ScrapeError{Message: page.Err.Error()})
			continue
		}
		c.reply(telemetry.FileLinks{FileLinks: page.FileLinks})
	}
}

func (c *conn) checkLinks(text string) {
	c.reply(telemetry.FileLinks{FileLinks: c.server.checker.CheckLinks(c.ctx, text)})
}

func (c *conn) cancelTransfer(token fig.CancelToken) {
	if !c.server.manager.Cancel(token) {
		c.log.Debugw("cancel for unknown or finished transfer", "cancel_token", token)
	}
}
