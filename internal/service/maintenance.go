package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/sakif/rankboard/internal/repository"
	"github.com/sakif/rankboard/internal/storage"
)

// MaintenanceService reconciles the blob store with the database.
type MaintenanceService struct {
	index   repository.BlobIndex
	cleaner *storage.Cleaner
	logger  *slog.Logger
}

func NewMaintenanceService(index repository.BlobIndex, cleaner *storage.Cleaner, logger *slog.Logger) *MaintenanceService {
	return &MaintenanceService{index: index, cleaner: cleaner, logger: logger}
}

// Sweep removes, in every bucket, the blobs no row references and returns
// them per bucket. With dryRun nothing is deleted.
func (s *MaintenanceService) Sweep(ctx context.Context, dryRun bool) (map[storage.Bucket][]string, error) {
	out := make(map[storage.Bucket][]string, len(storage.Buckets))
	for _, bucket := range storage.Buckets {
		referenced, err := s.referenced(ctx, bucket)
		if err != nil {
			return out, err
		}
		orphans, err := s.cleaner.Sweep(ctx, bucket, referenced, dryRun)
		out[bucket] = orphans
		if err != nil {
			return out, err
		}
		s.logger.Info("sweep",
			slog.String("bucket", string(bucket)),
			slog.Int("referenced", len(referenced)),
			slog.Int("orphans", len(orphans)),
			slog.Bool("dry_run", dryRun),
		)
	}
	return out, nil
}

func (s *MaintenanceService) referenced(ctx context.Context, bucket storage.Bucket) ([]string, error) {
	switch bucket {
	case storage.BucketAvatars:
		return s.index.ReferencedAvatars(ctx)
	case storage.BucketSubmissions:
		return s.index.ReferencedSubmissions(ctx)
	default:
		return nil, fmt.Errorf("service/maintenance: unknown bucket %q", bucket)
	}
}
