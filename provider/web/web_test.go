package web

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	assert_ "github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanbriolat/fig"
)

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x06\x00\x00\x00")

func newServer(t *testing.T) *httptest.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/files/report.pdf", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", "11")
		_, _ = w.Write([]byte("hello world"))
	})
	mux.HandleFunc("/export", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Disposition", `attachment; filename="a.zip"`)
		_, _ = w.Write([]byte("PK"))
	})
	mux.HandleFunc("/pixel", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(pngHeader)
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusNotFound)
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func download(t *testing.T, url string) (fig.Download, error) {
	s, err := NewConfig().Provider().Match(url)
	require.NoError(t, err)
	d, err := fig.NewDownloadBuilder().
		WithContext(context.Background()).
		WithTargetDir(t.TempDir()).
		Build()
	require.NoError(t, err)
	t.Cleanup(func() { _ = d.Close() })
	return d, s.Download(d)
}

func TestMatch(t *testing.T) {
	assert := assert_.New(t)
	c := NewConfig()

	s, err := c.Match("https://cdn.example.com:8443/a.zip")
	assert.NoError(err)
	assert.Equal("cdn.example.com", s.Hoster())
	for _, bad := range []string{"ftp://example.com/a.zip", "data:image/png;base64,AAAA", "http:///nohost", "::"} {
		_, err := c.Match(bad)
		assert.Error(err, bad)
	}
}

func TestDownload_FilenameFromURL(t *testing.T) {
	assert := assert_.New(t)
	server := newServer(t)

	d, err := download(t, server.URL+"/files/report.pdf")
	require.NoError(t, err)
	assert.Equal("report.pdf", filepath.Base(d.TargetPath()))
	downloaded, expected := d.Progress()
	assert.Equal(int64(11), downloaded)
	assert.Equal(int64(11), expected)
}

func TestDownload_FilenameFromDisposition(t *testing.T) {
	assert := assert_.New(t)
	server := newServer(t)

	d, err := download(t, server.URL+"/export")
	require.NoError(t, err)
	assert.Equal("a.zip", filepath.Base(d.TargetPath()))
	content, err := os.ReadFile(d.TargetPath())
	require.NoError(t, err)
	assert.Equal("PK", string(content))
}

func TestDownload_SniffedExtension(t *testing.T) {
	assert := assert_.New(t)
	server := newServer(t)

	d, err := download(t, server.URL+"/pixel")
	require.NoError(t, err)
	assert.Equal("pixel.png", filepath.Base(d.TargetPath()))
	content, err := os.ReadFile(d.TargetPath())
	require.NoError(t, err)
	assert.Equal(pngHeader, content, "sniffing must not consume the stream")
}

func TestDownload_FallbackName(t *testing.T) {
	assert := assert_.New(t)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = fmt.Fprint(w, "plain text body")
	}))
	defer server.Close()

	d, err := download(t, server.URL)
	require.NoError(t, err)
	assert.Regexp(`^download_\d+\.txt$`, filepath.Base(d.TargetPath()))
	_, expected := d.Progress()
	assert.Equal(int64(len("plain text body")), expected)
}

func TestDownload_HTTPError(t *testing.T) {
	assert := assert_.New(t)
	server := newServer(t)

	d, err := download(t, server.URL+"/missing.zip")
	assert.ErrorIs(err, fig.ErrNetwork)
	assert.Contains(err.Error(), "404")
	assert.Equal("", d.TargetPath())
}

func TestDownload_Unreachable(t *testing.T) {
	assert := assert_.New(t)
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL + "/gone.zip"
	server.Close()

	_, err := download(t, url)
	assert.ErrorIs(err, fig.ErrNetwork)
}
