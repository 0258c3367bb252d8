package app

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docexplorer/internal/warehouse"
)

type fakeConn struct {
	docs    []warehouse.Document
	err     error
	fetched bool
	closed  bool
}

func (c *fakeConn) FetchDocuments(context.Context) ([]warehouse.Document, error) {
	c.fetched = true
	return c.docs, c.err
}

func (c *fakeConn) FetchDocument(context.Context, string) (*warehouse.Document, error) {
	return nil, nil
}

func (c *fakeConn) Close() error {
	c.closed = true
	return nil
}

type fakeConnector struct {
	conn *fakeConn
	err  error
}

func (f *fakeConnector) Connect(context.Context) (warehouse.Conn, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.conn, nil
}

type fakeSigner struct {
	calls []string
	fail  string
}

func (s *fakeSigner) SignURL(_ context.Context, path string) (string, error) {
	s.calls = append(s.calls, path)
	if s.fail != "" && s.fail == path {
		return "", errors.New("invalid GCS path format")
	}
	return "https://signed/" + strings.TrimPrefix(path, "gs://"), nil
}

func TestExploreDocumentsSignsAvailablePaths(t *testing.T) {
	conn := &fakeConn{docs: []warehouse.Document{
		{ID: "1", Title: "With image", PDFPath: "gs://b/a.pdf", ImagePath: "gs://b/a.png"},
		{ID: "2", Title: "PDF only", PDFPath: "gs://b/b.pdf"},
		{ID: "3", Title: "Nothing"},
	}}
	signer := &fakeSigner{}
	svc := NewExplorerService(&fakeConnector{conn: conn}, signer, nil)

	docs, err := svc.ExploreDocuments(context.Background())
	require.NoError(t, err)
	require.Len(t, docs, 3)

	assert.Equal(t, "https://signed/b/a.pdf", docs[0].PDFURL)
	assert.Equal(t, "https://signed/b/a.png", docs[0].ImageURL)
	assert.Equal(t, "https://signed/b/b.pdf", docs[1].PDFURL)
	assert.Empty(t, docs[1].ImageURL)
	assert.Empty(t, docs[2].PDFURL)
	assert.Equal(t, []string{"gs://b/a.pdf", "gs://b/a.png", "gs://b/b.pdf"}, signer.calls)
	assert.True(t, conn.closed)
}

func TestExploreDocumentsSignsOnEveryCall(t *testing.T) {
	conn := &fakeConn{docs: []warehouse.Document{{ID: "1", PDFPath: "gs://b/a.pdf"}}}
	signer := &fakeSigner{}
	svc := NewExplorerService(&fakeConnector{conn: conn}, signer, nil)

	for i := 0; i < 2; i++ {
		_, err := svc.ExploreDocuments(context.Background())
		require.NoError(t, err)
	}
	assert.Len(t, signer.calls, 2)
}

func TestExploreDocumentsConnectFailure(t *testing.T) {
	svc := NewExplorerService(&fakeConnector{err: errors.New("dial tcp: refused")}, &fakeSigner{}, nil)

	_, err := svc.ExploreDocuments(context.Background())
	assert.ErrorIs(t, err, ErrCatalogUnavailable)
}

func TestExploreDocumentsEmptyCatalog(t *testing.T) {
	svc := NewExplorerService(&fakeConnector{conn: &fakeConn{}}, &fakeSigner{}, nil)

	docs, err := svc.ExploreDocuments(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, docs)
	assert.Empty(t, docs)
}

func TestExploreDocumentsFailuresCloseConnection(t *testing.T) {
	conn := &fakeConn{err: errors.New("query failed")}
	svc := NewExplorerService(&fakeConnector{conn: conn}, &fakeSigner{}, nil)
	_, err := svc.ExploreDocuments(context.Background())
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrCatalogUnavailable)
	assert.True(t, conn.closed)

	conn = &fakeConn{docs: []warehouse.Document{{ID: "1", PDFPath: "bad"}}}
	svc = NewExplorerService(&fakeConnector{conn: conn}, &fakeSigner{fail: "bad"}, nil)
	_, err = svc.ExploreDocuments(context.Background())
	require.Error(t, err)
	assert.True(t, conn.closed)
}
