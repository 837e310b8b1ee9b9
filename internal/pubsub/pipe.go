package pubsub

import "sync"

const (
	DefaultPipeBufSize = 1
)

type PipeOptions struct {
	// Buffer size of the input channel created by NewPipeOptions. Anything above 0 means Send can succeed for messages
	// that are then lost when the pipe closes.
	InputBufSize int
	// Buffer size of the output channel created by NewPipeOptions.
	OutputBufSize int
	// Close the input side when the pipe closes.
	CloseInput bool
	// Close the output side when the pipe closes.
	CloseOutput bool
}

var DefaultPipeOptions = PipeOptions{
	InputBufSize:  0,
	OutputBufSize: DefaultPipeBufSize,
	CloseInput:    true,
	CloseOutput:   true,
}

// Pipe copies messages from a receiver to a sender until either side closes.
type Pipe[T any] interface {
	Closer
}

type pipe[T any] struct {
	opts    PipeOptions
	in      ReceiverCloser[T]
	out     SenderCloser[T]
	once    sync.Once
	done    chan struct{}
	running sync.WaitGroup
}

// NewPipe creates a Pipe between two new channels using DefaultPipeOptions.
func NewPipe[T any]() (in SenderCloser[T], out ReceiverCloser[T], p Pipe[T]) {
	return NewPipeOptions[T](DefaultPipeOptions)
}

func NewPipeOptions[T any](opts PipeOptions) (in SenderCloser[T], out ReceiverCloser[T], p Pipe[T]) {
	cIn := NewChannel[T](opts.InputBufSize)
	cOut := NewChannel[T](opts.OutputBufSize)
	return cIn, cOut, NewPipeChannelsOptions[T](cIn, cOut, opts)
}

// NewPipeChannels connects existing channels using DefaultPipeOptions.
func NewPipeChannels[T any](in ReceiverCloser[T], out SenderCloser[T]) Pipe[T] {
	return NewPipeChannelsOptions[T](in, out, DefaultPipeOptions)
}

func NewPipeChannelsOptions[T any](in ReceiverCloser[T], out SenderCloser[T], opts PipeOptions) Pipe[T] {
	p := &pipe[T]{
		opts: opts,
		in:   in,
		out:  out,
		done: make(chan struct{}),
	}
	p.running.Add(1)
	go func() {
		defer p.shutdown()
		defer p.running.Done()
		for {
			select {
			case msg, ok := <-p.in.Receive():
				if !ok || !p.out.Send(msg) {
					return
				}
			case <-p.out.Closed():
				return
			case <-p.done:
				return
			}
		}
	}()
	return p
}

// shutdown closes the configured ends without waiting on the copy goroutine, so the goroutine can call it itself.
func (p *pipe[T]) shutdown() {
	p.once.Do(func() {
		close(p.done)
		if p.opts.CloseInput {
			p.in.Close()
		}
		if p.opts.CloseOutput {
			p.out.Close()
		}
	})
}

func (p *pipe[T]) Close() {
	p.shutdown()
	p.running.Wait()
}

func (p *pipe[T]) Closed() <-chan struct{} {
	return p.done
}
