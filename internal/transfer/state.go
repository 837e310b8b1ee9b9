package transfer

import (
	"fmt"
	"math"
	"time"

	"github.com/alanbriolat/fig"
)

// Handle identifies a live transfer.
type Handle struct {
	RequestID   fig.FileID
	CancelToken fig.CancelToken
	StartedAt   time.Time
}

// State is a snapshot of a transfer.
//
// Completed implies Progress is 100 and Error is empty; a non-empty Error implies !Completed.
type State struct {
	Status Status
	// Progress is a percentage rounded to 2 decimal places, nil while the total size is unknown.
	Progress  *float64
	Completed bool
	Error     string
	// Speed is a human-readable transfer rate, e.g. "1.23 MB/s".
	Speed    string
	Hoster   string
	Path     string
	Received int64
	Total    int64
}

// clone copies s so that it shares no memory with the original.
func (s State) clone() State {
	if s.Progress != nil {
		p := *s.Progress
		s.Progress = &p
	}
	return s
}

// Percent returns received/total as a percentage rounded to 2 decimal places, or nil if total isn't known.
func Percent(received, total int64) *float64 {
	if total <= 0 {
		return nil
	}
	p := math.Round(float64(received)/float64(total)*100*100) / 100
	if p > 100 {
		p = 100
	}
	return &p
}

// FormatSpeed renders a rate in B/s, KB/s or MB/s depending on magnitude.
func FormatSpeed(bytesPerSecond float64) string {
	switch {
	case bytesPerSecond >= 1024*1024:
		return fmt.Sprintf("%.2f MB/s", bytesPerSecond/(1024*1024))
	case bytesPerSecond >= 1024:
		return fmt.Sprintf("%.2f KB/s", bytesPerSecond/1024)
	default:
		return fmt.Sprintf("%.2f B/s", bytesPerSecond)
	}
}
