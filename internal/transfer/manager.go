// Package transfer runs downloads concurrently, reporting progress and terminal state to subscribers.
package transfer

import (
	"context"
	"errors"
	"net/http"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/alanbriolat/fig"
	"github.com/alanbriolat/fig/internal/pubsub"
	"github.com/alanbriolat/fig/internal/sync_"
	"github.com/alanbriolat/fig/internal/telemetry"
	"github.com/alanbriolat/fig/util"
)

var (
	ErrManagerClosed = errors.New("transfer manager closed")
	ErrInvalidPath   = errors.New("invalid save path")
)

type Config struct {
	// Directory used when a request names none; defaults to the platform download directory.
	DefaultSavePath  string
	Database         Database
	ProviderRegistry *fig.ProviderRegistry
	// Minimum interval between progress events for one transfer; defaults to one second.
	ProgressInterval time.Duration
	// Progress events queued for a subscriber that has fallen this far behind are dropped. Terminal events never are.
	MaxQueuedEvents int
	// Maximum number of transfers connecting or streaming at once; 0 means unlimited.
	MaxConcurrent int
	HTTPClient    *http.Client
	Naming        fig.NamingConfig
}

var DefaultConfig = Config{
	Database:         NilDatabase{},
	ProviderRegistry: &fig.DefaultProviderRegistry,
	ProgressInterval: time.Second,
	MaxQueuedEvents:  256,
	HTTPClient:       http.DefaultClient,
}

type transfersByToken = map[fig.CancelToken]*Transfer

// Manager owns every live transfer.
type Manager struct {
	config    Config
	ctx       context.Context
	ctxCancel context.CancelFunc
	log       *zap.SugaredLogger

	savePath  *sync_.Mutexed[string]
	transfers *sync_.RWMutexed[transfersByToken]
	events    pubsub.Publisher[telemetry.Event]
	slots     chan struct{}
	mu        sync.Mutex // Guards running.Add against Close
	running   sync.WaitGroup
	closed    sync_.Event
}

func New(ctx context.Context, config Config) (*Manager, error) {
	if config.DefaultSavePath == "" {
		dir, err := util.DefaultDownloadDir()
		if err != nil {
			return nil, err
		}
		config.DefaultSavePath = dir
	}
	if config.Database == nil {
		config.Database = NilDatabase{}
	}
	if config.ProviderRegistry == nil {
		config.ProviderRegistry = &fig.DefaultProviderRegistry
	}
	if config.ProgressInterval <= 0 {
		config.ProgressInterval = DefaultConfig.ProgressInterval
	}
	if config.MaxQueuedEvents <= 0 {
		config.MaxQueuedEvents = DefaultConfig.MaxQueuedEvents
	}
	if config.HTTPClient == nil {
		config.HTTPClient = http.DefaultClient
	}
	if config.Naming == nil {
		config.Naming = fig.NewNamingConfig()
	}

	// Subscribers each get their own queue, so a stalled observer can't hold up any transfer
	events := pubsub.NewPublisherOptions[telemetry.Event](pubsub.PublisherOptions[telemetry.Event]{
		BufSize:      pubsub.DefaultPublisherBufSize,
		MaxQueued:    config.MaxQueuedEvents,
		Droppable:    isProgress,
		FlushTimeout: pubsub.DefaultFlushTimeout,
	})
	ctx, cancel := context.WithCancel(ctx)
	m := &Manager{
		config:    config,
		ctx:       ctx,
		ctxCancel: cancel,
		log:       zap.S().Named("transfer"),

		savePath:  sync_.NewMutexed(filepath.Clean(config.DefaultSavePath)),
		transfers: sync_.NewRWMutexed(make(transfersByToken)),
		events:    events,
	}
	if config.MaxConcurrent > 0 {
		m.slots = make(chan struct{}, config.MaxConcurrent)
	}
	return m, nil
}

// Start begins one transfer per request and returns immediately. Outcomes are only reported through events.
func (m *Manager) Start(requests ...fig.Request) ([]Handle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed.IsSet() {
		return nil, ErrManagerClosed
	}
	savePath := m.DefaultSavePath()
	handles := make([]Handle, 0, len(requests))
	for _, req := range requests {
		t := newTransfer(m, req, req.Dir(savePath))
		_ = m.transfers.Locked(func(transfers *transfersByToken) error {
			(*transfers)[t.CancelToken] = t
			return nil
		})
		t.writeRecord()
		m.running.Add(1)
		go t.run()
		handles = append(handles, t.Handle)
	}
	return handles, nil
}

// Cancel aborts the transfer with the given token. Returns false, and does nothing, if no such transfer is live.
func (m *Manager) Cancel(token fig.CancelToken) bool {
	t := m.Get(token)
	if t == nil {
		return false
	}
	t.log.Infow("cancelling transfer")
	t.cancel()
	return true
}

// Get returns the live transfer with the given token, or nil.
func (m *Manager) Get(token fig.CancelToken) (t *Transfer) {
	_ = m.transfers.RLocked(func(transfers *transfersByToken) error {
		t = (*transfers)[token]
		return nil
	})
	return t
}

// List returns all live transfers, in no particular order.
func (m *Manager) List() []*Transfer {
	var list []*Transfer
	_ = m.transfers.RLocked(func(transfers *transfersByToken) error {
		list = make([]*Transfer, 0, len(*transfers))
		for _, t := range *transfers {
			list = append(list, t)
		}
		return nil
	})
	return list
}

func (m *Manager) DefaultSavePath() string {
	return m.savePath.Get()
}

// SetDefaultSavePath changes the directory used by future requests that don't name one.
func (m *Manager) SetDefaultSavePath(dir string) error {
	if dir == "" {
		return ErrInvalidPath
	}
	dir = filepath.Clean(dir)
	old := m.savePath.Swap(dir)
	m.log.Infow("default save path changed", "old", old, "new", dir)
	return nil
}

func (m *Manager) Subscribe() (pubsub.ReceiverCloser[telemetry.Event], error) {
	return m.events.Subscribe()
}

// AddSubscriber adds s as a subscriber to events; if close is true, s is closed when the Manager is.
func (m *Manager) AddSubscriber(s pubsub.SenderCloser[telemetry.Event], close bool) error {
	return m.events.AddSubscriber(s, close)
}

// Close cancels every live transfer, waits for them to report their final state, then closes subscribers.
func (m *Manager) Close() {
	m.mu.Lock()
	first := m.closed.Set()
	m.mu.Unlock()
	if !first {
		return
	}
	m.ctxCancel()
	m.running.Wait()
	m.events.Close()
}

func isProgress(e telemetry.Event) bool {
	fe, ok := e.(telemetry.FileEvent)
	return ok && !fe.Terminal()
}

func (m *Manager) retire(t *Transfer) {
	_ = m.transfers.Locked(func(transfers *transfersByToken) error {
		delete(*transfers, t.CancelToken)
		return nil
	})
}

// acquire waits for a free slot, returning a function to release it. Fails if ctx ends first.
func (m *Manager) acquire(ctx context.Context) (func(), error) {
	if m.slots == nil {
		return func() {}, nil
	}
	select {
	case m.slots <- struct{}{}:
		return func() { <-m.slots }, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
