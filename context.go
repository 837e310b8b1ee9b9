package fig

import (
	"context"
	"io"
)

// A context-aware io.Reader wrapper.
type readerContext struct {
	ctx context.Context
	r   io.Reader
}

func (r *readerContext) Read(p []byte) (n int, err error) {
	if err := r.ctx.Err(); err != nil {
		return 0, err
	}
	n, err = r.r.Read(p)
	if err != nil && err != io.EOF {
		err = WithKind(ErrNetwork, err)
	}
	return n, err
}

// writerKind tags every write error from w as an I/O error.
type writerKind struct {
	w io.Writer
}

func (w writerKind) Write(p []byte) (int, error) {
	n, err := w.w.Write(p)
	return n, WithKind(ErrIO, err)
}
