package pubsub

import (
	"fmt"
	"sync"
)

const (
	DefaultMergerBufSize = 1
)

// Merger fans several receivers in to a single output channel. Closing the Merger closes every ReceiverCloser that was
// added to it; raw channels are left alone.
type Merger[T any] struct {
	mu      sync.RWMutex
	out     Channel[T]
	done    chan struct{}
	running sync.WaitGroup
	closed  bool
}

func NewMerger[T any](receivers ...any) *Merger[T] {
	return NewMergerBufSize[T](DefaultMergerBufSize, receivers...)
}

func NewMergerBufSize[T any](bufSize int, receivers ...any) *Merger[T] {
	m := &Merger[T]{
		out:  NewChannel[T](bufSize),
		done: make(chan struct{}),
	}
	for _, r := range receivers {
		m.Add(r)
	}
	return m
}

// Add starts forwarding from receiver, which must be a ReceiverCloser[T] or a chan T. Returns false if the Merger is
// already closed.
func (m *Merger[T]) Add(receiver any) bool {
	switch r := receiver.(type) {
	case ReceiverCloser[T]:
		return m.AddPrimitive(r.Receive(), r.Close)
	case chan T:
		return m.AddPrimitive(r, nil)
	case <-chan T:
		return m.AddPrimitive(r, nil)
	default:
		panic(fmt.Sprintf("unhandled receiver type: %T", receiver))
	}
}

// AddPrimitive forwards from ch until it closes or the Merger closes, calling onClose (if set) on the way out.
func (m *Merger[T]) AddPrimitive(ch <-chan T, onClose func()) bool {
	m.mu.RLock()
	if m.closed {
		m.mu.RUnlock()
		return false
	}
	m.running.Add(1)
	m.mu.RUnlock()

	go func() {
		defer m.running.Done()
		if onClose != nil {
			defer onClose()
		}
		for {
			select {
			case msg, ok := <-ch:
				if !ok || !m.out.Send(msg) {
					return
				}
			case <-m.done:
				return
			}
		}
	}()
	return true
}

func (m *Merger[T]) Receive() <-chan T {
	return m.out.Receive()
}

func (m *Merger[T]) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	m.closed = true
	close(m.done)
	m.out.Close()
	m.running.Wait()
}

func (m *Merger[T]) Closed() <-chan struct{} {
	return m.done
}
