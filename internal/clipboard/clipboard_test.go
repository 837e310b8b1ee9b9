package clipboard

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	assert_ "github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanbriolat/fig"
	"github.com/alanbriolat/fig/internal/pubsub"
	"github.com/alanbriolat/fig/internal/telemetry"
)

// fakeClipboard returns whatever was last put on it.
type fakeClipboard struct {
	mu   sync.Mutex
	text string
	err  error
}

func (c *fakeClipboard) put(text string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.text, c.err = text, err
}

func (c *fakeClipboard) read() (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.text, c.err
}

// zipChecker treats every whitespace-separated .zip word as a file link.
type zipChecker struct {
	mu    sync.Mutex
	calls []string
}

func (c *zipChecker) CheckLinks(_ context.Context, text string) []fig.FileLink {
	c.mu.Lock()
	c.calls = append(c.calls, text)
	c.mu.Unlock()
	var links []fig.FileLink
	for _, word := range strings.Fields(text) {
		if strings.HasSuffix(word, ".zip") {
			links = append(links, fig.FileLink{URL: word, Type: "zip"})
		}
	}
	return links
}

func (c *zipChecker) callCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.calls)
}

func receive(t *testing.T, r pubsub.Receiver[telemetry.Event]) telemetry.Event {
	select {
	case e := <-r.Receive():
		return e
	case <-time.After(5 * time.Second):
		require.FailNow(t, "no event received")
		return nil
	}
}

func TestWatcher_EmitsNewLinks(t *testing.T) {
	assert := assert_.New(t)
	clip := &fakeClipboard{}
	checker := &zipChecker{}
	w := New(context.Background(), Config{Interval: time.Millisecond, Read: clip.read}, checker)
	defer w.Close()

	clip.put("see https://example.com/a.zip and https://example.com/page", nil)
	assert.Equal(
		telemetry.FileLinks{FileLinks: []fig.FileLink{{URL: "https://example.com/a.zip", Type: "zip"}}},
		receive(t, w),
	)

	// Unchanged text isn't checked again
	time.Sleep(20 * time.Millisecond)
	assert.Equal(1, checker.callCount())

	// Text without links produces nothing; the next text with links does
	clip.put("nothing to see here", nil)
	time.Sleep(20 * time.Millisecond)
	clip.put("b.zip", nil)
	assert.Equal(
		telemetry.FileLinks{FileLinks: []fig.FileLink{{URL: "b.zip", Type: "zip"}}},
		receive(t, w),
	)
}

func TestWatcher_ReadErrors(t *testing.T) {
	clip := &fakeClipboard{}
	clip.put("", errors.New("no clipboard"))
	w := New(context.Background(), Config{Interval: time.Millisecond, Read: clip.read}, &zipChecker{})
	defer w.Close()

	time.Sleep(20 * time.Millisecond)
	clip.put("c.zip", nil)
	assert_.IsType(t, telemetry.FileLinks{}, receive(t, w))
}

func TestWatcher_Close(t *testing.T) {
	assert := assert_.New(t)
	clip := &fakeClipboard{}
	clip.put("a.zip", nil)
	w := New(context.Background(), Config{Interval: time.Millisecond, Read: clip.read}, &zipChecker{})

	// Nobody is receiving, so the watcher is blocked sending; Close must still return
	time.Sleep(20 * time.Millisecond)
	w.Close()
	select {
	case <-w.Closed():
	default:
		assert.Fail("Closed() should be closed")
	}
	w.Close()
}

func TestWatcher_ContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	w := New(ctx, Config{Interval: time.Millisecond, Read: (&fakeClipboard{}).read}, &zipChecker{})
	cancel()
	select {
	case <-w.Closed():
	case <-time.After(5 * time.Second):
		t.Fatal("watcher still running after context cancelled")
	}
}

func TestWatcher_PipedIntoPublisher(t *testing.T) {
	assert := assert_.New(t)
	clip := &fakeClipboard{}
	pub := pubsub.NewPublisher[telemetry.Event]()
	sub, err := pub.Subscribe()
	require.NoError(t, err)

	w := New(context.Background(), Config{Interval: time.Millisecond, Read: clip.read}, &zipChecker{})
	pipe := pubsub.NewPipeChannels[telemetry.Event](w, pub)
	clip.put("d.zip", nil)
	assert.Equal(telemetry.FileLinks{FileLinks: []fig.FileLink{{URL: "d.zip", Type: "zip"}}}, receive(t, sub))

	// Closing the pipe closes both the watcher and the publisher
	pipe.Close()
	<-w.Closed()
	_, ok := <-sub.Receive()
	assert.False(ok)
}
