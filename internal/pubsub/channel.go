package pubsub

import (
	"sync"
)

type Sender[T any] interface {
	Send(T) bool
}

type Receiver[T any] interface {
	Receive() <-chan T
}

type Closer interface {
	Close()
	// Closed returns a channel that is closed once Close has been called.
	Closed() <-chan struct{}
}

type SenderCloser[T any] interface {
	Sender[T]
	Closer
}

type ReceiverCloser[T any] interface {
	Receiver[T]
	Closer
}

type Channel[T any] interface {
	Sender[T]
	Receiver[T]
	Closer
}

// channel is a `chan T` that can be closed safely while senders are still blocked on it.
type channel[T any] struct {
	mu      sync.RWMutex
	ch      chan T
	done    chan struct{}
	closed  bool
	senders sync.WaitGroup
}

// NewChannel creates a Channel with the given buffer size.
func NewChannel[T any](bufSize int) Channel[T] {
	return &channel[T]{
		ch:   make(chan T, bufSize),
		done: make(chan struct{}),
	}
}

func (c *channel[T]) Receive() <-chan T {
	return c.ch
}

// Send blocks until msg is accepted, returning false if the channel is (or becomes) closed first.
func (c *channel[T]) Send(msg T) bool {
	if !c.enter() {
		return false
	}
	defer c.senders.Done()

	select {
	case c.ch <- msg:
		return true
	case <-c.done:
		return false
	}
}

// enter registers an in-flight send, unless the channel is already closed.
func (c *channel[T]) enter() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return false
	}
	c.senders.Add(1)
	return true
}

// Close is idempotent. Blocked senders are released before the underlying chan is closed, so receivers never see a
// send on a closed chan.
func (c *channel[T]) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.done)
	c.senders.Wait()
	close(c.ch)
}

func (c *channel[T]) Closed() <-chan struct{} {
	return c.done
}
