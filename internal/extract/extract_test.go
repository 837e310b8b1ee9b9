package extract

import (
	"encoding/base64"
	"net/url"
	"testing"

	assert_ "github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanbriolat/fig"
)

const pixel = "iVBORw0KGgoAAAANSUhEUgAAAAEAAAABCAYAAAAfFcSJAAAADUlEQVR42mNk+M9QDwADhgGAWjR9awAAAABJRU5ErkJggg=="

func TestExtractCandidates(t *testing.T) {
	assert := assert_.New(t)

	html := `<p>see https://example.com/a.zip and <img src="/logo.png"> <img src="data:image/png;base64,` + pixel + `"></p>`
	assert.Equal([]string{
		"/logo.png",
		"data:image/png;base64," + pixel,
		"https://example.com/a.zip",
	}, ExtractCandidates(html))

	assert.Empty(ExtractCandidates("nothing to see here"))
	assert.Equal([]string{"data:image/gif;base64,R0lGODlhAQABAAAAACw="}, ExtractCandidates("pasted data:image/gif;base64,R0lGODlhAQABAAAAACw= ok"))
}

func TestLinks_StripsQuery(t *testing.T) {
	assert := assert_.New(t)

	assert.Equal([]string{"http://example.com/report.pdf"}, Links("check out http://example.com/report.pdf?x=1&y=2"))
	assert.Equal(
		[]string{"http://example.com/a.png", "https://example.com/b.png"},
		Links(`<img src="http://example.com/a.png?w=100"> http://example.com/a.png https://example.com/b.png&c`),
	)
}

func TestNormalize(t *testing.T) {
	assert := assert_.New(t)

	inputs := map[string]string{
		"http://example.com/report.pdf?x=1&y=2": "http://example.com/report.pdf",
		"http://example.com/a&b?c":              "http://example.com/a",
		"http://example.com/plain.zip":          "http://example.com/plain.zip",
		"":                                      "",
		"?":                                     "",
	}
	for in, expected := range inputs {
		once := Normalize(in)
		assert.Equal(expected, once, in)
		assert.Equal(once, Normalize(once), "Normalize should be idempotent for %q", in)
	}
}

func TestClassifyInline(t *testing.T) {
	assert := assert_.New(t)

	assert.Equal(Inline{IsBase64Image: true, Subtype: "png"}, ClassifyInline("data:image/png;base64,"+pixel))
	assert.Equal(Inline{IsBase64Image: true, Subtype: "svg+xml"}, ClassifyInline("data:image/svg+xml;base64,PHN2Zy8+"))
	assert.Equal(Inline{}, ClassifyInline("data:text/plain;base64,aGVsbG8="))
	assert.Equal(Inline{}, ClassifyInline("data:image/png,notbase64"))
	assert.Equal(Inline{}, ClassifyInline("http://example.com/a.png"))
}

func TestDecodeInline_RoundTrip(t *testing.T) {
	assert := assert_.New(t)

	payloads := []string{
		pixel,
		base64.StdEncoding.EncodeToString([]byte("GIF89a not really")),
		base64.StdEncoding.EncodeToString([]byte{0, 1, 2, 3, 255}),
	}
	for _, payload := range payloads {
		subtype, data, err := DecodeInline("data:image/jpeg;base64," + payload)
		require.NoError(t, err)
		assert.Equal("jpeg", subtype)
		assert.Equal(payload, base64.StdEncoding.EncodeToString(data))
	}
}

func TestDecodeInline_Invalid(t *testing.T) {
	assert := assert_.New(t)

	_, _, err := DecodeInline("data:image/png;base64,!!!not base64!!!")
	assert.ErrorIs(err, fig.ErrInvalidPayload)
	_, _, err = DecodeInline("http://example.com/a.png")
	assert.ErrorIs(err, fig.ErrInvalidPayload)
	assert.Contains(err.Error(), "invalid base64 image data")
}

func TestResolvedLinks(t *testing.T) {
	assert := assert_.New(t)

	base, err := url.Parse("https://example.com/gallery/index.html")
	require.NoError(t, err)
	html := `<img src="thumbs/1.jpg?v=2"><img src="/static/2.jpg"><script src="mailto:x@example.com"></script>`
	assert.Equal([]string{
		"https://example.com/gallery/thumbs/1.jpg",
		"https://example.com/static/2.jpg",
	}, ResolvedLinks(base, html))
	// Without a base, relative values are dropped
	assert.Empty(Links(`<img src="thumbs/1.jpg">`))
}
