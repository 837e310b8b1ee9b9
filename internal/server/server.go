// Package server exposes a transfer.Manager and a link classifier to websocket clients, speaking the telemetry
// message format.
package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"

	"github.com/hashicorp/go-multierror"
	"go.uber.org/zap"
	"golang.org/x/net/websocket"

	"github.com/alanbriolat/fig"
	"github.com/alanbriolat/fig/internal/classify"
	"github.com/alanbriolat/fig/internal/pubsub"
	"github.com/alanbriolat/fig/internal/telemetry"
	"github.com/alanbriolat/fig/internal/transfer"
)

type Config struct {
	Addr string
	// Buffer size of each connection's outbound queues.
	ConnBufSize int
}

var DefaultConfig = Config{
	Addr:        "localhost:8080",
	ConnBufSize: 64,
}

type Manager interface {
	Start(requests ...fig.Request) ([]transfer.Handle, error)
	Cancel(token fig.CancelToken) bool
	DefaultSavePath() string
	SetDefaultSavePath(dir string) error
	AddSubscriber(s pubsub.SenderCloser[telemetry.Event], close bool) error
}

type Checker interface {
	CheckLinks(ctx context.Context, text string) []fig.FileLink
	Scrape(ctx context.Context, text string) <-chan classify.PageResult
}

type Server struct {
	config    Config
	manager   Manager
	checker   Checker
	log       *zap.SugaredLogger
	ctx       context.Context
	cancel    context.CancelFunc
	broadcast pubsub.Publisher[telemetry.Event]
	conns     sync.WaitGroup

	mu         sync.Mutex
	httpServer *http.Server
}

func New(ctx context.Context, config Config, manager Manager, checker Checker) *Server {
	if config.Addr == "" {
		config.Addr = DefaultConfig.Addr
	}
	if config.ConnBufSize <= 0 {
		config.ConnBufSize = DefaultConfig.ConnBufSize
	}
	ctx, cancel := context.WithCancel(ctx)
	return &Server{
		config:    config,
		manager:   manager,
		checker:   checker,
		log:       zap.S().Named("server"),
		ctx:       ctx,
		cancel:    cancel,
		broadcast: pubsub.NewPublisher[telemetry.Event](),
	}
}

// Broadcast is sent to every connected client.
func (s *Server) Broadcast() pubsub.Publisher[telemetry.Event] {
	return s.broadcast
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	websocket.Server{
		// Clients are local browser extensions and apps, so any origin is accepted
		Handshake: func(config *websocket.Config, r *http.Request) error {
			s.log.Debugw("websocket handshake", "remote", r.RemoteAddr, "origin", config.Origin)
			return nil
		},
		Handler: s.serveConn,
	}.ServeHTTP(w, r)
}

// ListenAndServe serves on Config.Addr until Close is called.
func (s *Server) ListenAndServe() error {
	l, err := net.Listen("tcp", s.config.Addr)
	if err != nil {
		return err
	}
	return s.Serve(l)
}

func (s *Server) Serve(l net.Listener) error {
	s.mu.Lock()
	if s.ctx.Err() != nil {
		s.mu.Unlock()
		_ = l.Close()
		return http.ErrServerClosed
	}
	s.httpServer = &http.Server{Handler: s}
	s.mu.Unlock()

	s.log.Infow("listening", "addr", l.Addr().String())
	err := s.httpServer.Serve(l)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Close stops accepting connections, disconnects every client and closes the broadcast publisher.
func (s *Server) Close() error {
	var result error
	s.mu.Lock()
	s.cancel()
	if s.httpServer != nil {
		if err := s.httpServer.Close(); err != nil {
			result = multierror.Append(result, err)
		}
	}
	s.mu.Unlock()
	s.conns.Wait()
	s.broadcast.Close()
	return result
}

func (s *Server) serveConn(ws *websocket.Conn) {
	s.mu.Lock()
	if s.ctx.Err() != nil {
		s.mu.Unlock()
		return
	}
	s.conns.Add(1)
	s.mu.Unlock()
	defer s.conns.Done()
	c := newConn(s, ws)
	c.log.Info("client connected")
	if err := c.serve(); err != nil {
		c.log.Warnw("client connection failed", "error", err)
	}
	c.log.Info("client disconnected")
}
