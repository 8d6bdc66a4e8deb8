package storage

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/sakif/rankboard/internal/metrics"
)

// sweepConcurrency bounds parallel deletes against the backend.
const sweepConcurrency = 8

// Cleaner removes blobs that the database no longer references.
//
// Deletion is always best-effort: a failure is logged and counted, never
// returned to the request that triggered it. The database row is the source
// of truth; a leftover blob is garbage the sweep will pick up later.
type Cleaner struct {
	store   BlobStore
	logger  *slog.Logger
	metrics *metrics.Metrics
}

func NewCleaner(store BlobStore, logger *slog.Logger, m *metrics.Metrics) *Cleaner {
	return &Cleaner{store: store, logger: logger, metrics: m}
}

// Remove deletes the named blobs with bounded parallelism, logging failures.
// Empty names are skipped. It returns once every delete has finished and
// is not cut short by cancellation of ctx.
func (c *Cleaner) Remove(ctx context.Context, bucket Bucket, names ...string) {
	ctx = context.WithoutCancel(ctx)
	var g errgroup.Group
	g.SetLimit(sweepConcurrency)
	for _, name := range names {
		if name == "" {
			continue
		}
		g.Go(func() error {
			if err := c.store.Delete(ctx, bucket, name); err != nil {
				c.logger.Warn("blob delete failed",
					slog.String("bucket", string(bucket)),
					slog.String("name", name),
					slog.String("error", err.Error()),
				)
				c.metrics.BlobDeleteFailed(string(bucket))
			}
			return nil
		})
	}
	g.Wait()
}

// Sweep deletes every blob in bucket whose name is not in referenced and
// returns the orphans it found. With dryRun it only reports them.
//
// A blob uploaded after referenced was read but before its row was committed
// looks orphaned, so run the sweep from the CLI rather than in-process.
func (c *Cleaner) Sweep(ctx context.Context, bucket Bucket, referenced []string, dryRun bool) ([]string, error) {
	names, err := c.store.List(ctx, bucket)
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", bucket, err)
	}

	keep := make(map[string]struct{}, len(referenced))
	for _, r := range referenced {
		keep[r] = struct{}{}
	}

	var orphans []string
	for _, n := range names {
		if _, ok := keep[n]; !ok {
			orphans = append(orphans, n)
		}
	}
	if dryRun || len(orphans) == 0 {
		return orphans, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(sweepConcurrency)
	for _, name := range orphans {
		g.Go(func() error {
			if err := c.store.Delete(gctx, bucket, name); err != nil {
				c.metrics.BlobDeleteFailed(string(bucket))
				return fmt.Errorf("deleting %s/%s: %w", bucket, name, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return orphans, err
	}

	c.metrics.BlobsSwept(string(bucket), len(orphans))
	c.logger.Info("swept orphaned blobs",
		slog.String("bucket", string(bucket)),
		slog.Int("count", len(orphans)),
	)
	return orphans, nil
}
