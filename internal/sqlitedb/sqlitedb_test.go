package sqlitedb

import (
	"path/filepath"
	"testing"

	assert_ "github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanbriolat/fig/internal/transfer"
)

func TestDatabase_Records(t *testing.T) {
	assert := assert_.New(t)
	path := filepath.Join(t.TempDir(), "fig.sqlite")

	db, err := New(path)
	require.NoError(t, err)
	records, err := db.ListRecords()
	assert.NoError(err)
	assert.Empty(records)

	a := transfer.Record{ID: "a", URL: "https://example.com/a.zip", Path: "/tmp", Type: "unknown", Status: transfer.StatusStreaming, Progress: 12.5}
	b := transfer.Record{ID: "b", URL: "data:image/png;base64,AAAA", Path: "/tmp/image_1.png", Type: "png", Status: transfer.StatusCompleted, Progress: 100}
	assert.NoError(db.WriteRecord(&b))
	assert.NoError(db.WriteRecord(&a))

	a.Status = transfer.StatusCancelled
	assert.NoError(db.WriteRecord(&a))

	records, err = db.ListRecords()
	assert.NoError(err)
	assert.Equal([]transfer.Record{a, b}, records)

	assert.NoError(db.DeleteRecord("a"))
	assert.NoError(db.DeleteRecord("missing"))
	assert.NoError(db.Close())

	// Reopening runs no migrations and keeps the data
	db, err = New(path)
	require.NoError(t, err)
	defer db.Close()
	records, err = db.ListRecords()
	assert.NoError(err)
	assert.Equal([]transfer.Record{b}, records)
}

func TestDatabase_ImplementsTransferDatabase(t *testing.T) {
	var _ transfer.Database = (*Database)(nil)
}
