package fig

import "errors"

// Error kinds. Errors returned by this module can be matched against these with errors.Is, while their message
// stays that of the underlying error.
var (
	ErrClassification = errors.New("classification failed")
	ErrInvalidPayload = errors.New("invalid payload")
	ErrNetwork        = errors.New("network error")
	ErrIO             = errors.New("i/o error")
	ErrProtocol       = errors.New("protocol error")
)

var kinds = []error{ErrClassification, ErrInvalidPayload, ErrNetwork, ErrIO, ErrProtocol}

type kindError struct {
	kind error
	err  error
}

func (e *kindError) Error() string {
	return e.err.Error()
}

func (e *kindError) Unwrap() []error {
	return []error{e.kind, e.err}
}

// WithKind tags err as being of kind, unless it already is (or is nil).
func WithKind(kind error, err error) error {
	if err == nil || errors.Is(err, kind) {
		return err
	}
	return &kindError{kind: kind, err: err}
}

// KindOf returns the first error kind err matches, or nil.
func KindOf(err error) error {
	for _, k := range kinds {
		if errors.Is(err, k) {
			return k
		}
	}
	return nil
}
