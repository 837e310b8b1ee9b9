// Package inline saves data:image/...;base64 payloads without touching the network.
package inline

import (
	"fmt"

	"github.com/alanbriolat/fig"
	"github.com/alanbriolat/fig/internal/extract"
)

const Name = "inline"

func Match(s string) (fig.Source, error) {
	inline := extract.ClassifyInline(s)
	if !inline.IsBase64Image {
		return nil, fmt.Errorf("not inline image data")
	}
	return &source{data: s, subtype: inline.Subtype}, nil
}

func Provider() fig.Provider {
	return fig.Provider{
		Name:  Name,
		Match: Match,
	}
}

type source struct {
	data    string
	subtype string
}

func (s *source) URL() string {
	return s.data
}

func (s *source) Hoster() string {
	return ""
}

func (s *source) String() string {
	return fmt.Sprintf("inline image/%s", s.subtype)
}

// Download decodes and writes the image in one step; no progress is reported.
func (s *source) Download(d fig.Download) error {
	subtype, data, err := extract.DecodeInline(s.data)
	if err != nil {
		return err
	}
	filename, err := d.Naming().InlineName(extension(subtype))
	if err != nil {
		return fmt.Errorf("failed to name file: %w", err)
	}
	return d.SaveBytes(filename, data)
}

// extension is the subtype, except where that would make an odd file extension.
func extension(subtype string) string {
	switch subtype {
	case "svg+xml":
		return "svg"
	case "x-icon", "vnd.microsoft.icon":
		return "ico"
	default:
		return subtype
	}
}

func init() {
	fig.DefaultProviderRegistry.MustAdd(Provider().WithPriority(fig.PriorityHighest))
}
