package fig

import (
	"strings"
	"sync/atomic"
	"text/template"
	"time"
)

// NamingConfig decides what files are called when the source doesn't name them.
type NamingConfig interface {
	// InlineName names a decoded inline image with the given extension.
	InlineName(ext string) (string, error)
	// FallbackName names a download whose URL and headers gave no usable filename.
	FallbackName() (string, error)
}

type namingConfig struct {
	Now                  func() time.Time
	InlineNameTemplate   *template.Template
	FallbackNameTemplate *template.Template
}

func NewNamingConfig() NamingConfig {
	return &namingConfig{
		Now:                  time.Now,
		InlineNameTemplate:   template.Must(template.New("inline_name").Parse("image_{{.Timestamp}}.{{.Ext}}")),
		FallbackNameTemplate: template.Must(template.New("fallback_name").Parse("download_{{.Timestamp}}")),
	}
}

func (c *namingConfig) InlineName(ext string) (string, error) {
	return c.execute(c.InlineNameTemplate, ext)
}

func (c *namingConfig) FallbackName() (string, error) {
	return c.execute(c.FallbackNameTemplate, "")
}

// lastStamp keeps generated timestamps strictly increasing, so names created in the same millisecond still differ.
var lastStamp atomic.Int64

func (c *namingConfig) stamp() int64 {
	now := c.Now().UnixMilli()
	for {
		last := lastStamp.Load()
		next := now
		if next <= last {
			next = last + 1
		}
		if lastStamp.CompareAndSwap(last, next) {
			return next
		}
	}
}

func (c *namingConfig) execute(t *template.Template, ext string) (string, error) {
	args := nameTemplateArgs{
		Timestamp: c.stamp(),
		Ext:       ext,
	}
	builder := strings.Builder{}
	if err := t.Execute(&builder, &args); err != nil {
		return "", err
	}
	return builder.String(), nil
}

type nameTemplateArgs struct {
	Timestamp int64
	Ext       string
}
