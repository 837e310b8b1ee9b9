// Package telemetry defines the messages exchanged with observers: events pushed out by the core, and the commands
// it accepts.
package telemetry

import (
	"encoding/json"
	"fmt"

	"github.com/alanbriolat/fig"
)

const (
	TypeProgress  = "downloadProgress"
	TypeComplete  = "downloadComplete"
	TypeFailure   = "downloadError"
	TypeCancelled = "downloadCancelled"
	TypeFileLinks = "fileLinks"
)

// Event is anything that can be sent to an observer. Every Event encodes to a JSON object.
type Event interface {
	json.Marshaler
}

// FileEvent is an Event about a single transfer.
type FileEvent interface {
	Event
	File() fig.FileID
	// Terminal is true for the last event of a transfer.
	Terminal() bool
}

type Progress struct {
	FileID fig.FileID `json:"fileId"`
	// Progress is a percentage, absent while the total size is unknown.
	Progress    *float64        `json:"progress,omitempty"`
	Speed       string          `json:"speed,omitempty"`
	Hoster      string          `json:"hoster"`
	CancelToken fig.CancelToken `json:"cancelToken"`
}

type Complete struct {
	FileID fig.FileID `json:"fileId"`
	Hoster string     `json:"hoster"`
	Path   string     `json:"path,omitempty"`
}

type Failure struct {
	FileID  fig.FileID `json:"fileId"`
	Message string     `json:"message"`
	Hoster  string     `json:"hoster"`
}

type Cancelled struct {
	FileID fig.FileID `json:"fileId"`
	Hoster string     `json:"hoster"`
}

type FileLinks struct {
	FileLinks []fig.FileLink `json:"fileLinks"`
}

type DefaultPath struct {
	DefaultPath string `json:"defaultPath"`
}

type message struct {
	Message string `json:"message"`
}

// ScrapeError reports a page that could not be scraped.
type ScrapeError struct {
	Message string
}

// DownloadError reports a download request that could not even be started.
type DownloadError struct {
	Message string
}

func (e Progress) File() fig.FileID  { return e.FileID }
func (e Complete) File() fig.FileID  { return e.FileID }
func (e Failure) File() fig.FileID   { return e.FileID }
func (e Cancelled) File() fig.FileID { return e.FileID }

func (e Progress) Terminal() bool  { return false }
func (e Complete) Terminal() bool  { return true }
func (e Failure) Terminal() bool   { return true }
func (e Cancelled) Terminal() bool { return true }

func (e Progress) MarshalJSON() ([]byte, error) {
	type plain Progress
	return withType(TypeProgress, plain(e))
}

func (e Complete) MarshalJSON() ([]byte, error) {
	type plain Complete
	return withType(TypeComplete, plain(e))
}

func (e Failure) MarshalJSON() ([]byte, error) {
	type plain Failure
	return withType(TypeFailure, plain(e))
}

func (e Cancelled) MarshalJSON() ([]byte, error) {
	type plain Cancelled
	return withType(TypeCancelled, plain(e))
}

func (e FileLinks) MarshalJSON() ([]byte, error) {
	type plain FileLinks
	if e.FileLinks == nil {
		e.FileLinks = []fig.FileLink{}
	}
	return withType(TypeFileLinks, plain(e))
}

func (e DefaultPath) MarshalJSON() ([]byte, error) {
	type plain DefaultPath
	return json.Marshal(plain(e))
}

func (e ScrapeError) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]message{"scrapeUrlsError": {e.Message}})
}

func (e DownloadError) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]message{"downloadError": {e.Message}})
}

// withType encodes v, which must encode as an object, with an extra leading "type" field.
func withType(typ string, v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	if len(data) < 2 || data[0] != '{' {
		return nil, fmt.Errorf("%T does not encode as a JSON object", v)
	}
	typeField, err := json.Marshal(typ)
	if err != nil {
		return nil, err
	}
	res := append([]byte(`{"type":`), typeField...)
	if len(data) > 2 {
		res = append(res, ',')
	}
	return append(res, data[1:]...), nil
}
