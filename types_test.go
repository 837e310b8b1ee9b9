package fig

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	assert_ "github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileID_JSON(t *testing.T) {
	assert := assert_.New(t)

	var reqs []Request
	require.NoError(t, json.Unmarshal([]byte(`[{"id": 12, "url": "a"}, {"id": "x-1", "url": "b", "customPath": "/tmp/c"}]`), &reqs))
	assert.Equal(NumericFileID(12), reqs[0].ID)
	assert.Equal(StringFileID("x-1"), reqs[1].ID)
	assert.Equal("/tmp/c", reqs[1].CustomPath)

	out, err := json.Marshal(map[string]FileID{"a": reqs[0].ID, "b": reqs[1].ID})
	require.NoError(t, err)
	assert.JSONEq(`{"a": 12, "b": "x-1"}`, string(out))

	var missing Request
	require.NoError(t, json.Unmarshal([]byte(`{"url": "a"}`), &missing))
	assert.True(missing.ID.IsZero())

	var bad FileID
	assert.Error(json.Unmarshal([]byte(`{"nested": true}`), &bad))
}

func TestRequest_Dir(t *testing.T) {
	assert := assert_.New(t)

	assert.Equal("/custom", Request{CustomPath: "/custom/", Path: "/path"}.Dir("/default"))
	assert.Equal("/path", Request{Path: "/path"}.Dir("/default"))
	assert.Equal("/default", Request{}.Dir("/default"))
}

func TestCancelToken(t *testing.T) {
	assert := assert_.New(t)

	a, b := NewCancelToken(), NewCancelToken()
	assert.NotEqual(a, b)
	assert.Len(string(a), 36)
}

func TestErrorKinds(t *testing.T) {
	assert := assert_.New(t)

	base := errors.New("disk full")
	err := WithKind(ErrIO, base)
	assert.Equal("disk full", err.Error())
	assert.ErrorIs(err, ErrIO)
	assert.ErrorIs(err, base)
	assert.Equal(ErrIO, KindOf(fmt.Errorf("saving: %w", err)))
	assert.Same(err, WithKind(ErrIO, err))
	assert.Nil(WithKind(ErrIO, nil))
	assert.Nil(KindOf(base))
}

func TestCategoryOf(t *testing.T) {
	assert := assert_.New(t)

	assert.Equal(CategoryImage, CategoryOf("http://x/a.JPG"))
	assert.Equal(CategoryImage, CategoryOf("data:image/png;base64,AAAA"))
	assert.Equal(CategoryDocument, CategoryOf("http://x/report.pdf"))
	assert.Equal(CategoryMultimedia, CategoryOf("http://x/song.mp3"))
	assert.Equal(CategoryArchive, CategoryOf("http://x/src.tar"))
	assert.Equal(CategoryFile, CategoryOf("http://x/setup.exe"))
	assert.Equal(CategoryArchive, FileLink{URL: "http://x/a.7z"}.Category())
}
