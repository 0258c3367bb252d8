// Package objectstore signs and fetches gs:// objects through the storage
// service's S3-compatible XML API.
package objectstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"regexp"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

const DefaultSignedURLTTL = time.Hour

var (
	ErrInvalidPath    = errors.New("invalid GCS path format")
	ErrObjectTooLarge = errors.New("object exceeds size limit")

	gcsPathPattern = regexp.MustCompile(`^gs://([^/]+)/(.+)$`)
)

type Options struct {
	Endpoint     string
	AccessKey    string
	SecretKey    string
	Region       string
	UseSSL       bool
	SignedURLTTL time.Duration
}

type Client struct {
	minio *minio.Client
	ttl   time.Duration
}

// New builds a client. No request is made; signing is local, so an
// explicit region is required to avoid a bucket location lookup.
func New(opts Options) (*Client, error) {
	region := opts.Region
	if region == "" {
		region = "auto"
	}
	mc, err := minio.New(opts.Endpoint, &minio.Options{
		Creds:        credentials.NewStaticV4(opts.AccessKey, opts.SecretKey, ""),
		Secure:       opts.UseSSL,
		Region:       region,
		BucketLookup: minio.BucketLookupPath,
	})
	if err != nil {
		return nil, fmt.Errorf("init object storage client failed: %w", err)
	}
	ttl := opts.SignedURLTTL
	if ttl <= 0 {
		ttl = DefaultSignedURLTTL
	}
	return &Client{minio: mc, ttl: ttl}, nil
}

// ParseGCSPath splits gs://bucket/object into its parts.
func ParseGCSPath(path string) (bucket, object string, err error) {
	m := gcsPathPattern.FindStringSubmatch(path)
	if m == nil {
		return "", "", fmt.Errorf("%w: %q", ErrInvalidPath, path)
	}
	return m[1], m[2], nil
}

// SignURL returns a time-limited GET URL for path. A fresh URL is minted
// on every call.
func (c *Client) SignURL(ctx context.Context, path string) (string, error) {
	bucket, object, err := ParseGCSPath(path)
	if err != nil {
		return "", err
	}
	u, err := c.minio.PresignedGetObject(ctx, bucket, object, c.ttl, url.Values{})
	if err != nil {
		return "", fmt.Errorf("sign url for %s failed: %w", path, err)
	}
	return u.String(), nil
}

// Fetch downloads the object at path, refusing anything above maxBytes.
func (c *Client) Fetch(ctx context.Context, path string, maxBytes int64) ([]byte, error) {
	bucket, object, err := ParseGCSPath(path)
	if err != nil {
		return nil, err
	}
	obj, err := c.minio.GetObject(ctx, bucket, object, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("get object %s failed: %w", path, err)
	}
	defer obj.Close()

	reader := io.Reader(obj)
	if maxBytes > 0 {
		reader = io.LimitReader(obj, maxBytes+1)
	}
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("read object %s failed: %w", path, err)
	}
	if maxBytes > 0 && int64(len(data)) > maxBytes {
		return nil, ErrObjectTooLarge
	}
	return data, nil
}
