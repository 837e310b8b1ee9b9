package fig

import (
	"bytes"
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/alanbriolat/fig/generic"
)

// FileID identifies a file row owned by the client. Clients send either numbers or strings; the original form is
// preserved when encoding.
type FileID struct {
	value   string
	numeric bool
}

func StringFileID(s string) FileID {
	return FileID{value: s}
}

func NumericFileID(n int64) FileID {
	return FileID{value: fmt.Sprint(n), numeric: true}
}

func (id FileID) String() string {
	return id.value
}

func (id FileID) IsZero() bool {
	return id.value == ""
}

func (id FileID) MarshalJSON() ([]byte, error) {
	if id.numeric {
		return []byte(id.value), nil
	}
	return json.Marshal(id.value)
}

func (id *FileID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("null")):
		*id = FileID{}
		return nil
	case len(data) > 0 && data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = StringFileID(s)
		return nil
	default:
		var n json.Number
		if err := json.Unmarshal(data, &n); err != nil {
			return fmt.Errorf("file id must be a string or number: %w", err)
		}
		*id = FileID{value: n.String(), numeric: true}
		return nil
	}
}

// CancelToken is handed out for every started transfer and can be used to abort it.
type CancelToken string

func NewCancelToken() CancelToken {
	return CancelToken(generic.Unwrap(uuid.NewRandom()).String())
}

// FileLink is a link that has been confirmed as (presumably) downloadable.
type FileLink struct {
	URL string `json:"url"`
	// Type is a media subtype such as "png" or "pdf", or "unknown".
	Type     string `json:"type"`
	FileName string `json:"fileName,omitempty"`
}

const UnknownType = "unknown"

// Request asks for a single URL to be downloaded.
type Request struct {
	ID         FileID `json:"id"`
	URL        string `json:"url"`
	CustomPath string `json:"customPath,omitempty"`
	Path       string `json:"path,omitempty"`
}

// Dir resolves the directory the file should be saved in: CustomPath, then Path, then def.
func (r Request) Dir(def string) string {
	for _, dir := range []string{r.CustomPath, r.Path} {
		if dir != "" {
			return filepath.Clean(dir)
		}
	}
	return def
}
