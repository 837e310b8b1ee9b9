package transfer

import (
	"path/filepath"
	"strings"

	"github.com/alanbriolat/fig"
	"github.com/alanbriolat/fig/internal/extract"
)

// Record is the persisted row for a file link, updated as its transfer progresses.
type Record struct {
	ID       string  `json:"id" gorm:"primaryKey"`
	URL      string  `json:"url"`
	Path     string  `json:"path"`
	Type     string  `json:"type"`
	Status   Status  `json:"status"`
	Progress float64 `json:"progress"`
	Error    string  `json:"error"`
}

type Database interface {
	ListRecords() ([]Record, error)
	WriteRecord(*Record) error
	DeleteRecord(id string) error
}

type NilDatabase struct{}

func (d NilDatabase) ListRecords() ([]Record, error) {
	return nil, nil
}

func (d NilDatabase) WriteRecord(_ *Record) error {
	return nil
}

func (d NilDatabase) DeleteRecord(_ string) error {
	return nil
}

// recordType guesses the file type for a record: the inline image subtype, else the saved file's extension.
func recordType(url string, path string) string {
	if inline := extract.ClassifyInline(url); inline.IsBase64Image {
		return inline.Subtype
	}
	if ext := strings.TrimPrefix(filepath.Ext(path), "."); ext != "" {
		return strings.ToLower(ext)
	}
	return fig.UnknownType
}
