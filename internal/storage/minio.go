package storage

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

var _ Bucket = (*MinioBucket)(nil)

// MinioBucket implements Bucket with minio-go. Region is always set so that
// presigning never has to look the bucket location up.
type MinioBucket struct {
	client    *minio.Client
	bucket    string
	publicURL string
}

func NewMinio(cfg Config) (*MinioBucket, error) {
	host, secure, err := cfg.endpointHost()
	if err != nil {
		return nil, err
	}

	client, err := minio.New(host, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: secure,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("minio storage: init client: %w", err)
	}

	return &MinioBucket{client: client, bucket: cfg.Bucket, publicURL: cfg.PublicURL}, nil
}

// PresignPut signs a plain PUT. minio-go does not bind content type or
// length into the signature; the size ceiling is enforced before signing.
func (b *MinioBucket) PresignPut(ctx context.Context, key, _ string, _ int64, ttl time.Duration) (string, error) {
	u, err := b.client.PresignedPutObject(ctx, b.bucket, key, ttl)
	if err != nil {
		return "", fmt.Errorf("minio storage: presign put %s: %w", key, err)
	}
	return u.String(), nil
}

func (b *MinioBucket) PresignGet(ctx context.Context, key string, ttl time.Duration) (string, error) {
	u, err := b.client.PresignedGetObject(ctx, b.bucket, key, ttl, url.Values{})
	if err != nil {
		return "", fmt.Errorf("minio storage: presign get %s: %w", key, err)
	}
	return u.String(), nil
}

func (b *MinioBucket) Open(ctx context.Context, key string) (*Object, error) {
	obj, err := b.client.GetObject(ctx, b.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("minio storage: get %s: %w", key, err)
	}

	// GetObject is lazy; Stat performs the request and surfaces NoSuchKey.
	info, err := obj.Stat()
	if err != nil {
		obj.Close()
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("minio storage: stat %s: %w", key, err)
	}

	return &Object{Body: obj, ContentType: info.ContentType, Size: info.Size}, nil
}

func (b *MinioBucket) Delete(ctx context.Context, key string) error {
	if err := b.client.RemoveObject(ctx, b.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("minio storage: delete %s: %w", key, err)
	}
	return nil
}

func (b *MinioBucket) List(ctx context.Context, prefix string, fn func(ObjectInfo) error) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	for obj := range b.client.ListObjects(ctx, b.bucket, minio.ListObjectsOptions{Prefix: prefix, Recursive: true}) {
		if obj.Err != nil {
			return fmt.Errorf("minio storage: list %q: %w", prefix, obj.Err)
		}
		if err := fn(ObjectInfo{Key: obj.Key, Size: obj.Size, LastModified: obj.LastModified}); err != nil {
			return err
		}
	}
	return nil
}

func (b *MinioBucket) PublicURL(key string) string {
	return publicObjectURL(b.publicURL, key)
}
