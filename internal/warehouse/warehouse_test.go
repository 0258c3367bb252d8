package warehouse

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func sqliteOpener(t *testing.T) OpenFunc {
	t.Helper()
	path := filepath.Join(t.TempDir(), "warehouse.db")
	seed, err := gorm.Open(sqlite.Open(path), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, seed.Exec(`CREATE TABLE PUBLICATIONS_DATA (
		id INTEGER PRIMARY KEY,
		title TEXT,
		pdf_link TEXT,
		image_link TEXT
	)`).Error)
	require.NoError(t, seed.Exec(`INSERT INTO PUBLICATIONS_DATA (id, title, pdf_link, image_link) VALUES
		(1, 'Climate Outlook', 'gs://pubs/climate.pdf', 'gs://pubs/climate.png'),
		(2, 'Rates Primer', 'gs://pubs/rates.pdf', NULL)`).Error)
	sqlDB, err := seed.DB()
	require.NoError(t, err)
	require.NoError(t, sqlDB.Close())

	return func(ctx context.Context) (*gorm.DB, error) {
		return gorm.Open(sqlite.Open(path), &gorm.Config{})
	}
}

func newSQLiteClient(t *testing.T) *Client {
	t.Helper()
	c, err := NewClient(sqliteOpener(t), Options{Schema: "main", Table: "PUBLICATIONS_DATA", IDColumn: "id"}, nil)
	require.NoError(t, err)
	return c
}

func TestFetchDocuments(t *testing.T) {
	c := newSQLiteClient(t)
	ctx := context.Background()

	cn, err := c.Connect(ctx)
	require.NoError(t, err)
	defer cn.Close()

	docs, err := cn.FetchDocuments(ctx)
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, Document{ID: "1", Title: "Climate Outlook", PDFPath: "gs://pubs/climate.pdf", ImagePath: "gs://pubs/climate.png"}, docs[0])
	assert.Equal(t, "", docs[1].ImagePath)
}

func TestGetDocument(t *testing.T) {
	c := newSQLiteClient(t)
	ctx := context.Background()

	doc, err := c.GetDocument(ctx, "2")
	require.NoError(t, err)
	require.NotNil(t, doc)
	assert.Equal(t, "Rates Primer", doc.Title)

	doc, err = c.GetDocument(ctx, "99")
	require.NoError(t, err)
	assert.Nil(t, doc)
}

func TestConnectFailureIsUnavailable(t *testing.T) {
	c, err := NewClient(func(ctx context.Context) (*gorm.DB, error) {
		return nil, errors.New("dial tcp: connection refused")
	}, Options{Table: "PUBLICATIONS_DATA", IDColumn: "id"}, nil)
	require.NoError(t, err)

	_, err = c.Connect(context.Background())
	require.ErrorIs(t, err, ErrUnavailable)

	_, err = c.GetDocument(context.Background(), "1")
	require.ErrorIs(t, err, ErrUnavailable)
}

func TestNewClientRejectsBadIdentifiers(t *testing.T) {
	open := func(ctx context.Context) (*gorm.DB, error) { return nil, nil }
	for _, opts := range []Options{
		{Table: "PUBLICATIONS_DATA; DROP TABLE x", IDColumn: "id"},
		{Table: "PUBLICATIONS_DATA", IDColumn: "id`"},
		{Schema: "a.b", Table: "t", IDColumn: "id"},
	} {
		_, err := NewClient(open, opts, nil)
		assert.ErrorIs(t, err, ErrInvalidIdentifier)
	}
}
