package telemetry

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/alanbriolat/fig"
)

// Inbound is a command frame from an observer. A frame may carry more than one command.
type Inbound struct {
	Download []fig.Request `json:"download,omitempty"`
	// SetDefaultPath is either true (report the current default) or a directory to switch to.
	SetDefaultPath json.RawMessage `json:"setDefaultPath,omitempty"`
	ScrapeUrls     string          `json:"scrapeUrls,omitempty"`
	CheckLinks     string          `json:"checkLinks,omitempty"`
	CancelToken    fig.CancelToken `json:"cancelToken,omitempty"`
}

// ParseInbound decodes a frame. Frames that aren't a JSON object, or that contain no recognised command, are an
// ErrProtocol.
func ParseInbound(data []byte) (Inbound, error) {
	var msg Inbound
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return msg, fig.WithKind(fig.ErrProtocol, fmt.Errorf("message is not a JSON object"))
	}
	if err := json.Unmarshal(trimmed, &msg); err != nil {
		return Inbound{}, fig.WithKind(fig.ErrProtocol, fmt.Errorf("malformed message: %w", err))
	}
	if _, _, err := msg.DefaultPathRequest(); err != nil {
		return Inbound{}, err
	}
	if msg.Empty() {
		return Inbound{}, fig.WithKind(fig.ErrProtocol, fmt.Errorf("message has no recognised command"))
	}
	return msg, nil
}

// Empty is true if the frame asks for nothing.
func (m Inbound) Empty() bool {
	requested, _, _ := m.DefaultPathRequest()
	return len(m.Download) == 0 && !requested && m.ScrapeUrls == "" && m.CheckLinks == "" && m.CancelToken == ""
}

// DefaultPathRequest interprets SetDefaultPath: requested is false for absent/false, dir is non-empty when a new
// directory was given.
func (m Inbound) DefaultPathRequest() (requested bool, dir string, err error) {
	if len(m.SetDefaultPath) == 0 {
		return false, "", nil
	}
	var flag bool
	if err := json.Unmarshal(m.SetDefaultPath, &flag); err == nil {
		return flag, "", nil
	}
	if err := json.Unmarshal(m.SetDefaultPath, &dir); err != nil {
		return false, "", fig.WithKind(fig.ErrProtocol, fmt.Errorf("setDefaultPath must be true or a directory"))
	}
	return dir != "", dir, nil
}
