// Package storagetest provides an in-memory storage.Bucket for tests.
package storagetest

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sakif/cliplet/internal/storage"
)

// Bucket keeps objects in a map. Presigned URLs embed a counter so every call
// returns a different URL, like a real signer whose timestamp moves.
type Bucket struct {
	mu      sync.Mutex
	objects map[string]stored
	signed  atomic.Int64

	// Public, when set, is returned by PublicURL as Public + "/" + key.
	Public string
	// DeleteErr and PresignErr, when set, are returned by Delete and the
	// Presign methods.
	DeleteErr  error
	PresignErr error

	Calls   []string
	Deleted []string
}

type stored struct {
	body        []byte
	contentType string
	modified    time.Time
}

func New() *Bucket {
	return &Bucket{objects: make(map[string]stored)}
}

// Put stores body under key as if a client had uploaded it at modified.
func (b *Bucket) Put(key, contentType string, body []byte, modified time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.objects[key] = stored{body: body, contentType: contentType, modified: modified}
}

// Has reports whether key is present.
func (b *Bucket) Has(key string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.objects[key]
	return ok
}

func (b *Bucket) record(call string) {
	b.mu.Lock()
	b.Calls = append(b.Calls, call)
	b.mu.Unlock()
}

func (b *Bucket) PresignPut(_ context.Context, key, contentType string, size int64, ttl time.Duration) (string, error) {
	b.record("PresignPut " + key)
	if b.PresignErr != nil {
		return "", b.PresignErr
	}
	return fmt.Sprintf("https://bucket.test/%s?op=put&type=%s&size=%d&expires=%d&n=%d",
		key, contentType, size, int(ttl.Seconds()), b.signed.Add(1)), nil
}

func (b *Bucket) PresignGet(_ context.Context, key string, ttl time.Duration) (string, error) {
	b.record("PresignGet " + key)
	if b.PresignErr != nil {
		return "", b.PresignErr
	}
	return fmt.Sprintf("https://bucket.test/%s?op=get&expires=%d&n=%d",
		key, int(ttl.Seconds()), b.signed.Add(1)), nil
}

func (b *Bucket) Open(_ context.Context, key string) (*storage.Object, error) {
	b.record("Open " + key)
	b.mu.Lock()
	defer b.mu.Unlock()
	o, ok := b.objects[key]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return &storage.Object{
		Body:        io.NopCloser(bytes.NewReader(o.body)),
		ContentType: o.contentType,
		Size:        int64(len(o.body)),
	}, nil
}

func (b *Bucket) Delete(_ context.Context, key string) error {
	b.record("Delete " + key)
	if b.DeleteErr != nil {
		return b.DeleteErr
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.objects, key)
	b.Deleted = append(b.Deleted, key)
	return nil
}

func (b *Bucket) List(_ context.Context, prefix string, fn func(storage.ObjectInfo) error) error {
	b.mu.Lock()
	infos := make([]storage.ObjectInfo, 0, len(b.objects))
	for k, o := range b.objects {
		if strings.HasPrefix(k, prefix) {
			infos = append(infos, storage.ObjectInfo{Key: k, Size: int64(len(o.body)), LastModified: o.modified})
		}
	}
	b.mu.Unlock()

	sort.Slice(infos, func(i, j int) bool { return infos[i].Key < infos[j].Key })
	for _, info := range infos {
		if err := fn(info); err != nil {
			return err
		}
	}
	return nil
}

func (b *Bucket) PublicURL(key string) string {
	if b.Public == "" {
		return ""
	}
	return b.Public + "/" + key
}

var _ storage.Bucket = (*Bucket)(nil)
