package bootstrap

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"docexplorer/internal/vectorstore"
)

func TestCloseKeepsUnreadableSnapshot(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vector_store.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"version":`), 0o644))

	store := vectorstore.New(vectorstore.NewHashEmbedder(16), vectorstore.Options{ChunkWords: 10, Shards: 2})
	loadErr := store.Load(path)
	require.Error(t, loadErr)
	_, err := store.IndexDocument(context.Background(), "doc1", "fresh text built after a failed load")
	require.NoError(t, err)

	startedAt := time.Date(2024, 3, 9, 10, 0, 0, 0, time.UTC)
	a := &App{
		Logger:       zap.NewNop(),
		VectorStore:  store,
		snapshotPath: snapshotTarget(path, loadErr, startedAt),
	}
	require.NoError(t, a.Close())

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, `{"version":`, string(raw))

	recovered := vectorstore.New(vectorstore.NewHashEmbedder(16), vectorstore.Options{Shards: 2})
	require.NoError(t, recovered.Load(path+".recovered-20240309T100000"))
	assert.True(t, recovered.Has(vectorstore.KindDocument, "doc1"))
}

func TestSnapshotTargetAfterCleanLoad(t *testing.T) {
	assert.Equal(t, "data/v.json", snapshotTarget("data/v.json", nil, time.Now()))
}
