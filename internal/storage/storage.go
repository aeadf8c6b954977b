// Package storage brokers access to the object bucket holding clip binaries.
//
// The server never proxies uploads: it hands the client a presigned PUT URL
// and later presigned GET URLs. It only touches object bytes itself for the
// download endpoint and for deletes.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"
)

// ErrNotFound is returned when the requested key does not exist in the bucket.
var ErrNotFound = errors.New("storage: object not found")

// Bucket is the subset of an S3-compatible API the application needs.
type Bucket interface {
	PresignPut(ctx context.Context, key, contentType string, size int64, ttl time.Duration) (string, error)
	PresignGet(ctx context.Context, key string, ttl time.Duration) (string, error)
	Open(ctx context.Context, key string) (*Object, error)
	Delete(ctx context.Context, key string) error
	// List calls fn for every object under prefix. Returning an error from fn
	// stops the walk and is returned from List.
	List(ctx context.Context, prefix string, fn func(ObjectInfo) error) error
	// PublicURL is the permanent display URL for key, or "" when the bucket is
	// not publicly served.
	PublicURL(key string) string
}

// Object is an open object body. The caller must close Body.
type Object struct {
	Body        io.ReadCloser
	ContentType string
	Size        int64
}

type ObjectInfo struct {
	Key          string
	Size         int64
	LastModified time.Time
}

// Driver selects the client library used to talk to the bucket.
type Driver string

const (
	DriverS3    Driver = "s3"
	DriverMinio Driver = "minio"
)

// Config describes the bucket connection. Endpoint may be a full URL or a
// bare host[:port]; UseSSL decides the scheme for the latter.
type Config struct {
	Driver          Driver
	Endpoint        string
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	Bucket          string
	PublicURL       string
	UseSSL          bool
}

// New builds the Bucket for cfg.Driver. An empty driver means S3.
func New(ctx context.Context, cfg Config) (Bucket, error) {
	if strings.TrimSpace(cfg.Bucket) == "" {
		return nil, fmt.Errorf("storage: bucket is required")
	}
	if cfg.Region == "" {
		cfg.Region = "us-east-1"
	}

	switch cfg.Driver {
	case DriverS3, "":
		return NewS3(ctx, cfg)
	case DriverMinio:
		return NewMinio(cfg)
	}
	return nil, fmt.Errorf("storage: unknown driver %q", cfg.Driver)
}

// endpointURL returns the endpoint with a scheme.
func (c Config) endpointURL() string {
	ep := strings.TrimRight(strings.TrimSpace(c.Endpoint), "/")
	if ep == "" || strings.Contains(ep, "://") {
		return ep
	}
	if c.UseSSL {
		return "https://" + ep
	}
	return "http://" + ep
}

// endpointHost returns host[:port] without a scheme.
func (c Config) endpointHost() (host string, secure bool, err error) {
	u, err := url.Parse(c.endpointURL())
	if err != nil {
		return "", false, fmt.Errorf("storage: parsing endpoint %q: %w", c.Endpoint, err)
	}
	if u.Host == "" {
		return "", false, fmt.Errorf("storage: endpoint %q has no host", c.Endpoint)
	}
	return u.Host, u.Scheme == "https", nil
}

// publicObjectURL joins base and key, escaping each key segment.
func publicObjectURL(base, key string) string {
	base = strings.TrimRight(base, "/")
	if base == "" {
		return ""
	}
	parts := strings.Split(key, "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return base + "/" + strings.Join(parts, "/")
}
