// Package job holds the background jobs and the cron scheduler that runs them.
package job

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/xid"

	"github.com/sakif/cliplet/internal/metrics"
	"github.com/sakif/cliplet/internal/storage"
)

// KeyChecker reports whether any clip still references a bucket key.
type KeyChecker interface {
	StorageKeyExists(ctx context.Context, key string) (bool, error)
}

// OrphanSweepJob deletes bucket objects that no clip references.
//
// Objects become orphans two ways: a presigned upload that was never
// registered as a clip, and a clip delete whose bucket delete failed. Objects
// younger than grace are skipped so an upload in flight is never taken.
type OrphanSweepJob struct {
	bucket  storage.Bucket
	keys    KeyChecker
	grace   time.Duration
	timeout time.Duration
	metrics *metrics.Metrics
	logger  *slog.Logger
	now     func() time.Time
}

func NewOrphanSweepJob(bucket storage.Bucket, keys KeyChecker, grace time.Duration, m *metrics.Metrics, logger *slog.Logger) *OrphanSweepJob {
	return &OrphanSweepJob{
		bucket:  bucket,
		keys:    keys,
		grace:   grace,
		timeout: 10 * time.Minute,
		metrics: m,
		logger:  logger,
		now:     time.Now,
	}
}

// Run satisfies cron.Job.
func (j *OrphanSweepJob) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	logger := j.logger.With(slog.String("run", "sweep-"+uuid.NewString()))
	logger.Info("orphan sweep started")

	removed, err := j.Sweep(ctx)
	if err != nil {
		logger.Error("orphan sweep aborted", slog.Int("removed", removed), slog.String("error", err.Error()))
		return
	}
	logger.Info("orphan sweep finished", slog.Int("removed", removed))
}

// isClipKey reports whether key has the "<userID>/<uuid>" shape the clip
// service issues. The bucket may be shared, so anything else is left alone.
func isClipKey(key string) bool {
	owner, name, ok := strings.Cut(key, "/")
	if !ok {
		return false
	}
	if _, err := xid.FromString(owner); err != nil {
		return false
	}
	_, err := uuid.Parse(name)
	return err == nil
}

// Sweep walks the bucket once and returns how many objects it removed. A
// failed delete is logged and skipped; a failed lookup aborts the walk so a
// database outage never turns into mass deletion.
func (j *OrphanSweepJob) Sweep(ctx context.Context) (int, error) {
	cutoff := j.now().Add(-j.grace)
	removed := 0

	err := j.bucket.List(ctx, "", func(obj storage.ObjectInfo) error {
		if obj.LastModified.After(cutoff) || !isClipKey(obj.Key) {
			return nil
		}
		referenced, err := j.keys.StorageKeyExists(ctx, obj.Key)
		if err != nil {
			return err
		}
		if referenced {
			return nil
		}

		if err := j.bucket.Delete(ctx, obj.Key); err != nil {
			j.logger.Warn("orphan delete failed",
				slog.String("key", obj.Key),
				slog.String("error", err.Error()),
			)
			return nil
		}
		removed++
		j.metrics.OrphansSwept.Inc()
		j.logger.Info("orphan removed",
			slog.String("key", obj.Key),
			slog.Int64("size", obj.Size),
		)
		return nil
	})
	return removed, err
}
