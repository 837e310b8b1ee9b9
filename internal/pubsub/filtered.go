package pubsub

// NewFilteredSender wraps s so that only messages accepted by f are forwarded. Dropped messages still count as a
// successful Send, since the wrapped sender is open.
func NewFilteredSender[T any](s SenderCloser[T], f func(T) bool) SenderCloser[T] {
	return &filteredSender[T]{SenderCloser: s, accept: f}
}

type filteredSender[T any] struct {
	SenderCloser[T]
	accept func(T) bool
}

func (s *filteredSender[T]) Send(msg T) bool {
	select {
	case <-s.Closed():
		return false
	default:
	}
	if s.accept != nil && !s.accept(msg) {
		return true
	}
	return s.SenderCloser.Send(msg)
}
