package keyword

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newIndex(t *testing.T) *Index {
	t.Helper()
	idx, err := NewMemIndex()
	require.NoError(t, err)
	t.Cleanup(func() { _ = idx.Close() })
	return idx
}

func TestReplaceAndSearch(t *testing.T) {
	idx := newIndex(t)
	require.NoError(t, idx.Replace(KindDocument, "doc-1", []Entry{
		{ID: "doc-1#0", Content: "Bayesian inference with priors"},
		{ID: "doc-1#1", Content: "gradient descent optimisation"},
	}))
	require.NoError(t, idx.Replace(KindDocument, "doc-2", []Entry{
		{ID: "doc-2#0", Content: "bayesian networks in medicine"},
	}))

	res, err := idx.Search("bayesian", 10, Filter{})
	require.NoError(t, err)
	require.Len(t, res, 2)

	res, err = idx.Search("bayesian", 10, Filter{DocumentID: "doc-2"})
	require.NoError(t, err)
	require.Len(t, res, 1)
	assert.Equal(t, "doc-2#0", res[0].ID)
	assert.Equal(t, "doc-2", res[0].DocumentID)
	assert.Equal(t, KindDocument, res[0].Kind)
}

func TestReplaceDropsStaleEntries(t *testing.T) {
	idx := newIndex(t)
	require.NoError(t, idx.Replace(KindNote, "doc", []Entry{
		{ID: "n1", Content: "obsolete finding"},
		{ID: "n2", Content: "current finding"},
	}))
	require.NoError(t, idx.Replace(KindNote, "doc", []Entry{
		{ID: "n2", Content: "current finding"},
	}))

	res, err := idx.Search("obsolete", 10, Filter{Kind: KindNote})
	require.NoError(t, err)
	assert.Empty(t, res)

	count, err := idx.DocCount()
	require.NoError(t, err)
	assert.Equal(t, uint64(1), count)
}

func TestKindFilter(t *testing.T) {
	idx := newIndex(t)
	require.NoError(t, idx.Replace(KindDocument, "doc", []Entry{{ID: "doc#0", Content: "climate models"}}))
	require.NoError(t, idx.Add(Entry{ID: "n1", DocumentID: "doc", Kind: KindNote, Content: "climate note"}))

	res, err := idx.Search("climate", 10, Filter{Kind: KindNote})
	require.NoError(t, err)
	require.Len(t, res, 1)
	assert.Equal(t, "n1", res[0].ID)
}
