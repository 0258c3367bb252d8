// Package warehouse reads the publications catalog. Each request opens its
// own connection and closes it when done.
package warehouse

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	mysqlClient "docexplorer/internal/platform/mysql"
)

var (
	ErrUnavailable       = errors.New("warehouse unavailable")
	ErrInvalidIdentifier = errors.New("invalid warehouse identifier")

	identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_$]*$`)
)

// Document is one catalog row. Paths are gs:// URIs and may be empty.
type Document struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	PDFPath   string `json:"pdf_gcs_path"`
	ImagePath string `json:"image_gcs_path,omitempty"`
}

// Conn is an open warehouse session.
type Conn interface {
	FetchDocuments(ctx context.Context) ([]Document, error)
	FetchDocument(ctx context.Context, id string) (*Document, error)
	Close() error
}

type Connector interface {
	Connect(ctx context.Context) (Conn, error)
}

// OpenFunc opens a database handle; it is swapped out in tests.
type OpenFunc func(ctx context.Context) (*gorm.DB, error)

type Options struct {
	Schema   string
	Table    string
	IDColumn string
	Name     string
	Timeout  time.Duration
}

type Client struct {
	open    OpenFunc
	table   string
	idCol   string
	name    string
	timeout time.Duration
	logger  *zap.Logger
}

// NewMySQLOpener dials dsn with a single-connection pool.
func NewMySQLOpener(dsn string, timeout time.Duration) OpenFunc {
	return func(ctx context.Context) (*gorm.DB, error) {
		return mysqlClient.New(ctx, dsn, mysqlClient.SingleConnPool(timeout))
	}
}

func NewClient(open OpenFunc, opts Options, logger *zap.Logger) (*Client, error) {
	for _, ident := range []string{opts.Table, opts.IDColumn} {
		if !identifierPattern.MatchString(ident) {
			return nil, fmt.Errorf("%w: %q", ErrInvalidIdentifier, ident)
		}
	}
	table := "`" + opts.Table + "`"
	if opts.Schema != "" {
		if !identifierPattern.MatchString(opts.Schema) {
			return nil, fmt.Errorf("%w: %q", ErrInvalidIdentifier, opts.Schema)
		}
		table = "`" + opts.Schema + "`." + table
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		open:    open,
		table:   table,
		idCol:   "`" + opts.IDColumn + "`",
		name:    opts.Name,
		timeout: timeout,
		logger:  logger,
	}, nil
}

// Connect opens a session. Any failure is reported as ErrUnavailable.
func (c *Client) Connect(ctx context.Context) (Conn, error) {
	connectCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	db, err := c.open(connectCtx)
	if err != nil {
		c.logger.Warn("warehouse connect failed", zap.String("warehouse", c.name), zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	c.logger.Debug("warehouse connection established", zap.String("warehouse", c.name))
	return &conn{db: db, client: c}, nil
}

// GetDocument is a one-shot lookup that manages its own connection.
func (c *Client) GetDocument(ctx context.Context, id string) (*Document, error) {
	cn, err := c.Connect(ctx)
	if err != nil {
		return nil, err
	}
	defer cn.Close()
	return cn.FetchDocument(ctx, id)
}

type conn struct {
	db     *gorm.DB
	client *Client
}

type documentRow struct {
	ID        string  `gorm:"column:id"`
	Title     *string `gorm:"column:title"`
	PDFLink   *string `gorm:"column:pdf_link"`
	ImageLink *string `gorm:"column:image_link"`
}

func (r documentRow) toDocument() Document {
	return Document{
		ID:        r.ID,
		Title:     deref(r.Title),
		PDFPath:   deref(r.PDFLink),
		ImagePath: deref(r.ImageLink),
	}
}

func (cn *conn) selectClause() string {
	return fmt.Sprintf("SELECT %s AS id, title, pdf_link, image_link FROM %s", cn.client.idCol, cn.client.table)
}

func (cn *conn) FetchDocuments(ctx context.Context) ([]Document, error) {
	var rows []documentRow
	if err := cn.db.WithContext(ctx).Raw(cn.selectClause()).Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("query documents failed: %w", err)
	}
	docs := make([]Document, 0, len(rows))
	for _, r := range rows {
		docs = append(docs, r.toDocument())
	}
	return docs, nil
}

// FetchDocument returns nil, nil when no row matches.
func (cn *conn) FetchDocument(ctx context.Context, id string) (*Document, error) {
	var rows []documentRow
	query := cn.selectClause() + " WHERE " + cn.client.idCol + " = ? LIMIT 1"
	if err := cn.db.WithContext(ctx).Raw(query, id).Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("query document %s failed: %w", id, err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	doc := rows[0].toDocument()
	return &doc, nil
}

func (cn *conn) Close() error {
	sqlDB, err := cn.db.DB()
	if err != nil {
		return err
	}
	if err := sqlDB.Close(); err != nil {
		return fmt.Errorf("close warehouse connection failed: %w", err)
	}
	cn.client.logger.Debug("warehouse connection closed", zap.String("warehouse", cn.client.name))
	return nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
