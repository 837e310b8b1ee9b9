package transfer

import "github.com/alanbriolat/fig/generic"

type Status string

const (
	StatusUndefined  Status = ""
	StatusQueued     Status = "queued"
	StatusConnecting Status = "connecting"
	StatusStreaming  Status = "streaming"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusCancelled  Status = "cancelled"
)

var terminalStatuses = generic.NewSet(
	StatusCompleted,
	StatusFailed,
	StatusCancelled,
)

var runningStatuses = generic.NewSet(
	StatusConnecting,
	StatusStreaming,
)

// IsTerminal is true once no further transitions can happen.
func (s Status) IsTerminal() bool {
	return terminalStatuses.Contains(s)
}

// IsRunning is true while the transfer holds a connection slot.
func (s Status) IsRunning() bool {
	return runningStatuses.Contains(s)
}
