package transfer

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/r3labs/diff/v3"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/alanbriolat/fig"
	"github.com/alanbriolat/fig/internal/sync_"
	"github.com/alanbriolat/fig/internal/telemetry"
	"github.com/alanbriolat/fig/provider/inline"
	"github.com/alanbriolat/fig/util"
)

// Transfer is a single download, driven by its own goroutine.
type Transfer struct {
	Handle
	Request fig.Request

	manager *Manager
	dir     string
	ctx     context.Context
	cancel  context.CancelFunc
	log     *zap.SugaredLogger

	mu    sync.Mutex
	state State
	done  sync_.Event

	// Only used from the transfer's goroutine
	progressGate rate.Sometimes
	windowStart  time.Time
	windowBytes  int64
}

func newTransfer(m *Manager, req fig.Request, dir string) *Transfer {
	ctx, cancel := context.WithCancel(m.ctx)
	t := &Transfer{
		Handle: Handle{
			RequestID:   req.ID,
			CancelToken: fig.NewCancelToken(),
			StartedAt:   time.Now(),
		},
		Request: req,

		manager: m,
		dir:     dir,
		ctx:     ctx,
		cancel:  cancel,

		state: State{
			Status: StatusQueued,
			Hoster: util.Hoster(req.URL),
			Total:  fig.UnknownSize,
		},
		progressGate: rate.Sometimes{Interval: m.config.ProgressInterval},
	}
	t.log = zap.S().Named("transfer").With("file_id", req.ID.String(), "cancel_token", t.CancelToken)
	return t
}

func (t *Transfer) String() string {
	return fmt.Sprintf("Transfer{ID:%q, CancelToken:%q, Status:%q}", t.RequestID, t.CancelToken, t.State().Status)
}

// State returns a snapshot of the transfer's current state.
func (t *Transfer) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state.clone()
}

// Done is closed once the transfer has reached a terminal state and its final event has been published.
func (t *Transfer) Done() <-chan struct{} {
	return t.done.Wait()
}

func (t *Transfer) run() {
	defer t.manager.running.Done()
	defer t.done.Set()
	defer t.cancel()

	release, err := t.manager.acquire(t.ctx)
	if err != nil {
		t.finish(err)
		return
	}
	defer release()

	t.windowStart = time.Now()
	t.finish(t.download())
}

func (t *Transfer) download() (err error) {
	defer func() {
		if r := recover(); r != nil {
			t.log.Errorw("panic during transfer", "panic", r)
			err = fmt.Errorf("internal error: %v", r)
		}
	}()

	match, err := t.manager.config.ProviderRegistry.Match(t.Request.URL)
	if err != nil {
		t.log.Debugw("no provider matched", "error", err)
		return fmt.Errorf("unsupported URL: %w", fig.ErrNoMatch)
	}
	t.log.Debugw("matched provider", "provider", match.ProviderName)
	// Inline data is decoded in place, there is nothing to connect to
	if match.ProviderName != inline.Name {
		t.transition(func(s *State) { s.Status = StatusConnecting })
		t.writeRecord()
	}

	d, err := fig.NewDownloadBuilder().
		WithContext(t.ctx).
		WithHTTPClient(t.manager.config.HTTPClient).
		WithNaming(t.manager.config.Naming).
		WithProgressCallback(t.onProgress).
		WithTargetDir(t.dir).
		Build()
	if err != nil {
		return err
	}
	defer d.Close()

	err = match.Source.Download(d)
	if path := d.TargetPath(); path != "" {
		t.update(func(s *State) { s.Path = path })
	}
	return err
}

// onProgress is the Download progress callback; it runs on the transfer's goroutine.
func (t *Transfer) onProgress(received int64, total int64) {
	first := false
	t.update(func(s *State) {
		s.Received, s.Total = received, total
		first = received > 0 && s.Status == StatusConnecting
	})
	if first {
		t.transition(func(s *State) { s.Status = StatusStreaming })
	}
	if received == 0 || t.ctx.Err() != nil {
		return
	}
	t.progressGate.Do(t.emitProgress)
}

func (t *Transfer) emitProgress() {
	now := time.Now()
	var event telemetry.Progress
	t.update(func(s *State) {
		if elapsed := now.Sub(t.windowStart).Seconds(); elapsed > 0 {
			s.Speed = FormatSpeed(float64(s.Received-t.windowBytes) / elapsed)
		}
		s.Progress = Percent(s.Received, s.Total)
		event = telemetry.Progress{
			FileID:      t.RequestID,
			Progress:    s.clone().Progress,
			Speed:       s.Speed,
			Hoster:      s.Hoster,
			CancelToken: t.CancelToken,
		}
	})
	t.windowStart, t.windowBytes = now, t.State().Received
	t.writeRecord()
	t.manager.events.Send(event)
}

// finish moves the transfer to its terminal state, retires it and publishes the final event.
func (t *Transfer) finish(err error) {
	t.manager.retire(t)

	var event telemetry.Event
	switch {
	case err == nil:
		t.transition(func(s *State) {
			s.Status = StatusCompleted
			s.Completed = true
			s.Progress = Percent(1, 1)
			s.Error = ""
			s.Speed = ""
		})
		state := t.State()
		t.log.Infow("transfer completed", "path", state.Path, "bytes", state.Received)
		event = telemetry.Complete{FileID: t.RequestID, Hoster: state.Hoster, Path: state.Path}
	case t.ctx.Err() != nil:
		t.transition(func(s *State) {
			s.Status = StatusCancelled
			s.Speed = ""
		})
		t.log.Infow("transfer cancelled", "bytes", t.State().Received)
		event = telemetry.Cancelled{FileID: t.RequestID, Hoster: t.State().Hoster}
	default:
		t.transition(func(s *State) {
			s.Status = StatusFailed
			s.Completed = false
			s.Error = err.Error()
			s.Speed = ""
		})
		t.log.Warnw("transfer failed", "error", err, "kind", fig.KindOf(err))
		event = telemetry.Failure{FileID: t.RequestID, Message: err.Error(), Hoster: t.State().Hoster}
	}

	t.writeRecord()
	t.manager.events.Send(event)
}

// update changes the state without logging.
func (t *Transfer) update(f func(s *State)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	f(&t.state)
}

// transition changes the state and logs what changed.
func (t *Transfer) transition(f func(s *State)) {
	t.mu.Lock()
	old := t.state.clone()
	f(&t.state)
	current := t.state.clone()
	t.mu.Unlock()

	if changes, err := diff.Diff(old, current); err != nil {
		t.log.Warnw("failed to diff state", "error", err)
	} else if len(changes) > 0 {
		t.log.Debugw("state changed", "status", current.Status, "changes", changes)
	}
}

func (t *Transfer) recordID() string {
	if t.RequestID.IsZero() {
		return string(t.CancelToken)
	}
	return t.RequestID.String()
}

func (t *Transfer) writeRecord() {
	state := t.State()
	record := Record{
		ID:     t.recordID(),
		URL:    t.Request.URL,
		Path:   state.Path,
		Type:   recordType(t.Request.URL, state.Path),
		Status: state.Status,
		Error:  state.Error,
	}
	if record.Path == "" {
		record.Path = t.dir
	}
	if state.Progress != nil {
		record.Progress = *state.Progress
	}
	if err := t.manager.config.Database.WriteRecord(&record); err != nil {
		t.log.Warnw("failed to write record", "error", err)
	}
}
