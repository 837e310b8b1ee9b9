// Package web downloads plain http(s) URLs.
package web

import (
	"bufio"
	"fmt"
	"net/http"
	"net/url"
	"path"

	"github.com/gabriel-vasile/mimetype"

	"github.com/alanbriolat/fig"
	"github.com/alanbriolat/fig/generic"
	"github.com/alanbriolat/fig/util"
)

const Name = "web"

type Config struct {
	Protocols generic.Set[string]
}

func NewConfig() Config {
	return Config{
		Protocols: generic.NewSet(
			"http",
			"https",
		),
	}
}

func (c *Config) Match(s string) (fig.Source, error) {
	parsedURL, err := url.Parse(s)
	if err != nil {
		return nil, err
	}
	if !c.Protocols.Contains(parsedURL.Scheme) {
		return nil, fmt.Errorf("unknown URL scheme %q", parsedURL.Scheme)
	}
	if parsedURL.Host == "" {
		return nil, fmt.Errorf("no host in URL")
	}
	return &source{url: parsedURL}, nil
}

func (c Config) Provider() fig.Provider {
	return fig.Provider{
		Name:  Name,
		Match: c.Match,
	}
}

type source struct {
	url *url.URL
}

func (s *source) URL() string {
	return s.url.String()
}

func (s *source) Hoster() string {
	return s.url.Hostname()
}

func (s *source) String() string {
	return s.URL()
}

func (s *source) Download(d fig.Download) error {
	req, err := http.NewRequestWithContext(d.Context(), http.MethodGet, s.URL(), nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := d.HTTPClient().Do(req)
	if err != nil {
		return fig.WithKind(fig.ErrNetwork, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fig.WithKind(fig.ErrNetwork, fmt.Errorf("request failed with status %v", resp.Status))
	}

	filename := FilenameFromResponse(resp)
	if filename == "" {
		if filename, err = d.Naming().FallbackName(); err != nil {
			return fmt.Errorf("failed to name file: %w", err)
		}
	}

	d.SetExpectedBytes(resp.ContentLength)
	body := bufio.NewReader(resp.Body)
	if path.Ext(filename) == "" {
		// Peek doesn't consume, so sniffing costs nothing from the saved stream
		head, _ := body.Peek(512)
		if len(head) > 0 {
			filename += mimetype.Detect(head).Extension()
		}
	}
	return d.SaveStream(filename, body)
}

// FilenameFromResponse takes the name from an attachment Content-Disposition header if there is one, else the final
// path segment of the (possibly redirected) request URL. Returns "" if neither gives a usable name.
func FilenameFromResponse(resp *http.Response) string {
	if name := util.FilenameFromDisposition(resp.Header.Get("Content-Disposition")); name != "" {
		return name
	}
	if resp.Request != nil {
		if name, err := util.FilenameFromURL(resp.Request.URL); err == nil {
			return name
		}
	}
	return ""
}

func init() {
	fig.DefaultProviderRegistry.MustAdd(
		NewConfig().Provider().WithPriority(fig.PriorityLowest),
	)
}
