package storage

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"casecite-backend/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalStorage_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	s, err := NewLocalStorage(dir)
	require.NoError(t, err)
	ctx := context.Background()
	id := uuid.MustParse("3fa85f64-5717-4562-b3fc-2c963f66afa6")

	path, err := s.Upload(ctx, id, bytes.NewReader([]byte(`{"ok":true}`)))
	require.NoError(t, err)
	assert.Equal(t, "3f/3fa85f64-5717-4562-b3fc-2c963f66afa6.json", path)

	_, err = os.Stat(filepath.Join(dir, path))
	require.NoError(t, err)

	rc, err := s.Download(ctx, id)
	require.NoError(t, err)
	data, err := io.ReadAll(rc)
	rc.Close()
	require.NoError(t, err)
	assert.Equal(t, `{"ok":true}`, string(data))

	require.NoError(t, s.Delete(ctx, id))
	_, err = s.Download(ctx, id)
	assert.ErrorIs(t, err, ErrNotFound)

	// deleting twice is fine
	assert.NoError(t, s.Delete(ctx, id))
}

func TestNewStorage(t *testing.T) {
	s, err := NewStorage(StorageConfig{Type: StorageTypeNone})
	assert.NoError(t, err)
	assert.Nil(t, s)

	_, err = NewStorage(StorageConfig{Type: "ftp"})
	assert.Error(t, err)

	_, err = NewStorage(StorageConfig{Type: StorageTypeS3})
	assert.Error(t, err)

	local, err := NewStorage(StorageConfig{Type: StorageTypeLocal, LocalPath: t.TempDir()})
	assert.NoError(t, err)
	assert.NotNil(t, local)
}

func TestTraceArchive_SaveLoad(t *testing.T) {
	s, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	archive := NewTraceArchive(s)
	ctx := context.Background()

	resp := &models.SearchResponse{
		SchemaVersion: models.SearchResponseVersion,
		RequestID:     "req-1",
		Query:         "anticipatory bail dowry death",
		StopReason:    models.StopCompleted,
		GeneratedAt:   time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
	}
	id, err := archive.Save(ctx, resp)
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, id)

	got, err := archive.Load(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, resp.Query, got.Query)
	assert.Equal(t, resp.StopReason, got.StopReason)
	assert.True(t, resp.GeneratedAt.Equal(got.GeneratedAt))

	_, err = archive.Load(ctx, uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestTraceArchive_Disabled(t *testing.T) {
	archive := NewTraceArchive(nil)
	assert.False(t, archive.Enabled())
	_, err := archive.Save(context.Background(), &models.SearchResponse{})
	assert.ErrorIs(t, err, ErrNotFound)
}
