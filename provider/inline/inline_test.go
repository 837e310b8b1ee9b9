package inline

import (
	"context"
	"encoding/base64"
	"os"
	"path/filepath"
	"testing"

	assert_ "github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanbriolat/fig"
)

func TestMatch(t *testing.T) {
	assert := assert_.New(t)

	s, err := Match("data:image/png;base64,AAAA")
	assert.NoError(err)
	assert.Equal("", s.Hoster())
	_, err = Match("http://example.com/a.png")
	assert.Error(err)

	m, err := fig.DefaultProviderRegistry.Match("data:image/gif;base64,AAAA")
	require.NoError(t, err)
	assert.Equal(Name, m.ProviderName)
}

func TestDownload_RoundTrip(t *testing.T) {
	assert := assert_.New(t)

	payload := base64.StdEncoding.EncodeToString([]byte("\x89PNG\r\n\x1a\nnot a real image"))
	s, err := Match("data:image/png;base64," + payload)
	require.NoError(t, err)

	var progressCalls int
	dir := t.TempDir()
	d, err := fig.NewDownloadBuilder().
		WithContext(context.Background()).
		WithTargetDir(dir).
		WithProgressCallback(func(int64, int64) { progressCalls++ }).
		Build()
	require.NoError(t, err)
	defer d.Close()

	require.NoError(t, s.Download(d))
	assert.Regexp(`^image_\d+\.png$`, filepath.Base(d.TargetPath()))
	assert.Equal(dir, filepath.Dir(d.TargetPath()))
	written, err := os.ReadFile(d.TargetPath())
	require.NoError(t, err)
	assert.Equal(payload, base64.StdEncoding.EncodeToString(written))
	assert.Zero(progressCalls, "inline images report no progress")
}

func TestDownload_InvalidPayload(t *testing.T) {
	assert := assert_.New(t)

	s, err := Match("data:image/png;base64,%%%%")
	require.NoError(t, err)
	d, err := fig.NewDownloadBuilder().WithTargetDir(t.TempDir()).Build()
	require.NoError(t, err)
	defer d.Close()

	err = s.Download(d)
	assert.ErrorIs(err, fig.ErrInvalidPayload)
	assert.Equal("", d.TargetPath(), "nothing should be written")
}

func TestExtension(t *testing.T) {
	assert := assert_.New(t)

	assert.Equal("jpeg", extension("jpeg"))
	assert.Equal("svg", extension("svg+xml"))
	assert.Equal("ico", extension("x-icon"))
}
