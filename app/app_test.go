package app

import (
	"context"
	"testing"

	"casecite-backend/config"
	"casecite-backend/service"
	"casecite-backend/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuild_MinimalConfig(t *testing.T) {
	cfg := &config.Config{
		VectorBackend: config.VectorPGVector,
		Storage:       storage.StorageConfig{Type: storage.StorageTypeNone},
		Pipeline:      config.DefaultPipeline(),
	}
	a, err := Build(context.Background(), cfg, nil)
	require.NoError(t, err)
	defer a.Close()

	assert.NotNil(t, a.Search)
	assert.Nil(t, a.DB)
	assert.Nil(t, a.Clients)
	assert.False(t, a.Limiter.Enabled())

	_, err = a.Search.Trace(context.Background(), "7d3c1c1e-2f7a-4b7e-9a55-0c7f8e5b1a10")
	assert.ErrorIs(t, err, service.ErrTracesDisabled)
}

func TestBuild_LocalTraceArchive(t *testing.T) {
	cfg := &config.Config{
		VectorBackend: config.VectorNone,
		Storage:       storage.StorageConfig{Type: storage.StorageTypeLocal, LocalPath: t.TempDir()},
		Pipeline:      config.DefaultPipeline(),
	}
	a, err := Build(context.Background(), cfg, nil)
	require.NoError(t, err)
	defer a.Close()

	_, err = a.Search.Trace(context.Background(), "7d3c1c1e-2f7a-4b7e-9a55-0c7f8e5b1a10")
	assert.ErrorIs(t, err, service.ErrTraceNotFound)
}

func TestBuild_BadWeaviateURL(t *testing.T) {
	cfg := &config.Config{
		VectorBackend: config.VectorWeaviate,
		WeaviateURL:   "not a url",
		Pipeline:      config.DefaultPipeline(),
	}
	a, err := Build(context.Background(), cfg, nil)
	require.NoError(t, err)
	defer a.Close()

	assert.Nil(t, a.vectorStore(context.Background(), cfg))
}

func TestPurgeRateCounters_NoCounter(t *testing.T) {
	a := &App{}
	a.PurgeRateCounters(context.Background(), 0, 0)
}
