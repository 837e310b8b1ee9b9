package pubsub

import (
	"errors"
	"sync"
	"time"

	"github.com/alanbriolat/fig/internal/sync_"
)

const (
	DefaultPublisherBufSize  = 1
	DefaultSubscriberBufSize = 1
	DefaultFlushTimeout      = time.Second
)

var (
	ErrPublisherClosed = errors.New("publisher closed")
)

// Publisher broadcasts every message it is sent to all current subscribers. Each subscriber has its own queue, so a
// subscriber that stops receiving never holds up the publisher or the other subscribers.
type Publisher[T any] interface {
	SenderCloser[T]
	// AddSubscriber registers s; if close is true, s is closed along with the publisher.
	AddSubscriber(s SenderCloser[T], close bool) error
	Subscribe() (ReceiverCloser[T], error)
	SubscribeBufSize(int) (ReceiverCloser[T], error)
}

type PublisherOptions[T any] struct {
	// Buffer size of the input channel.
	BufSize int
	// Queue length per subscriber beyond which Droppable messages are discarded for that subscriber. 0 never drops.
	MaxQueued int
	// Droppable reports whether msg may be discarded for a subscriber that has fallen behind.
	Droppable func(msg T) bool
	// How long Close waits for subscribers to receive what is still queued for them.
	FlushTimeout time.Duration
}

func DefaultPublisherOptions[T any]() PublisherOptions[T] {
	return PublisherOptions[T]{
		BufSize:      DefaultPublisherBufSize,
		FlushTimeout: DefaultFlushTimeout,
	}
}

// subscribers maps each subscriber to its delivery queue.
type subscribers[T any] map[SenderCloser[T]]*subscription[T]

type publisher[T any] struct {
	mu          sync.Mutex
	opts        PublisherOptions[T]
	in          Channel[T]
	running     sync.WaitGroup // Broadcast goroutine
	pending     sync.WaitGroup // Messages accepted but not yet queued for every subscriber
	subscribers *sync_.Mutexed[subscribers[T]]
	closed      bool
}

func NewPublisher[T any]() Publisher[T] {
	return NewPublisherOptions[T](DefaultPublisherOptions[T]())
}

func NewPublisherBufSize[T any](bufSize int) Publisher[T] {
	opts := DefaultPublisherOptions[T]()
	opts.BufSize = bufSize
	return NewPublisherOptions[T](opts)
}

func NewPublisherOptions[T any](opts PublisherOptions[T]) Publisher[T] {
	p := &publisher[T]{
		opts:        opts,
		in:          NewChannel[T](opts.BufSize),
		subscribers: sync_.NewMutexed(make(subscribers[T])),
	}
	p.running.Add(1)
	go p.run()
	return p
}

func (p *publisher[T]) run() {
	defer p.running.Done()
	for msg := range p.in.Receive() {
		for _, s := range p.snapshot(false) {
			s.push(msg)
		}
		p.pending.Done()
	}
}

// snapshot returns the current subscriptions, optionally only those the publisher should close.
func (p *publisher[T]) snapshot(closeOnly bool) []*subscription[T] {
	var res []*subscription[T]
	_ = p.subscribers.Locked(func(subs *subscribers[T]) error {
		for _, s := range *subs {
			if s.close || !closeOnly {
				res = append(res, s)
			}
		}
		return nil
	})
	return res
}

// Send queues msg for every subscriber. It only blocks while the input buffer is full, never on a subscriber.
func (p *publisher[T]) Send(msg T) bool {
	p.pending.Add(1)
	if !p.in.Send(msg) {
		p.pending.Done()
		return false
	}
	return true
}

func (p *publisher[T]) Subscribe() (ReceiverCloser[T], error) {
	return p.SubscribeBufSize(DefaultSubscriberBufSize)
}

func (p *publisher[T]) SubscribeBufSize(bufSize int) (ReceiverCloser[T], error) {
	s := NewChannel[T](bufSize)
	if err := p.AddSubscriber(s, true); err != nil {
		return nil, err
	}
	return s, nil
}

func (p *publisher[T]) AddSubscriber(s SenderCloser[T], close bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrPublisherClosed
	}
	sub := newSubscription(s, close, &p.opts)
	err := p.subscribers.Locked(func(subs *subscribers[T]) error {
		(*subs)[s] = sub
		return nil
	})
	go sub.deliver(func() { p.unsubscribe(s) })
	return err
}

func (p *publisher[T]) unsubscribe(s SenderCloser[T]) {
	_ = p.subscribers.Locked(func(subs *subscribers[T]) error {
		delete(*subs, s)
		return nil
	})
}

// Close flushes pending messages to subscribers (waiting at most FlushTimeout for slow ones), then closes every
// subscriber that was added with close=true. Idempotent.
func (p *publisher[T]) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.in.Close()
	p.pending.Wait()
	p.running.Wait()

	subs := p.snapshot(false)
	p.subscribers.Set(make(subscribers[T]))
	for _, s := range subs {
		s.finish()
	}
	deadline := time.Now().Add(p.opts.FlushTimeout)
	for _, s := range subs {
		select {
		case <-s.done:
		case <-time.After(time.Until(deadline)):
		}
	}
	// Closing releases any delivery still blocked on a subscriber that stopped receiving
	for _, s := range subs {
		if s.close {
			s.sender.Close()
		}
	}
	p.closed = true
}

func (p *publisher[T]) Closed() <-chan struct{} {
	return p.in.Closed()
}

// subscription is the queue of messages waiting to be sent to one subscriber, drained by its own goroutine.
type subscription[T any] struct {
	sender  SenderCloser[T]
	close   bool
	opts    *PublisherOptions[T]
	mu      sync.Mutex
	queue   []T
	dropped int
	ending  bool
	ready   chan struct{}
	done    chan struct{}
}

func newSubscription[T any](s SenderCloser[T], close bool, opts *PublisherOptions[T]) *subscription[T] {
	return &subscription[T]{
		sender: s,
		close:  close,
		opts:   opts,
		ready:  make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
}

func (s *subscription[T]) push(msg T) {
	s.mu.Lock()
	if s.opts.MaxQueued > 0 && len(s.queue) >= s.opts.MaxQueued && s.opts.Droppable != nil && s.opts.Droppable(msg) {
		s.dropped++
		s.mu.Unlock()
		return
	}
	s.queue = append(s.queue, msg)
	s.mu.Unlock()
	s.notify()
}

// finish makes deliver return once the queue is empty.
func (s *subscription[T]) finish() {
	s.mu.Lock()
	s.ending = true
	s.mu.Unlock()
	s.notify()
}

func (s *subscription[T]) notify() {
	select {
	case s.ready <- struct{}{}:
	default:
	}
}

// deliver sends queued messages in order until finished, or until the subscriber is closed, in which case onClosed
// is called.
func (s *subscription[T]) deliver(onClosed func()) {
	defer close(s.done)
	for {
		s.mu.Lock()
		if len(s.queue) == 0 {
			ending := s.ending
			s.mu.Unlock()
			if ending {
				return
			}
			select {
			case <-s.ready:
				continue
			case <-s.sender.Closed():
				onClosed()
				return
			}
		}
		msg := s.queue[0]
		var zero T
		s.queue[0] = zero
		s.queue = s.queue[1:]
		s.mu.Unlock()

		if !s.sender.Send(msg) {
			onClosed()
			return
		}
	}
}

// queued returns how many messages are waiting, and how many have been dropped.
func (s *subscription[T]) queued() (waiting int, dropped int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue), s.dropped
}
