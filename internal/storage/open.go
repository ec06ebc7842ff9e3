package storage

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/your-org/faceattend/internal/config"
)

// PhotoStore is implemented by MinIOStore and MemoryPhotos.
type PhotoStore interface {
	PutPhoto(ctx context.Context, key string, data []byte, contentType string) error
	GetPhoto(ctx context.Context, key string) ([]byte, string, error)
	DeletePhoto(ctx context.Context, key string) error
	Ping(ctx context.Context) error
}

// Open returns the store selected by cfg.Driver. A Postgres store is
// migrated before it is returned; connecting is retried while the
// database starts up.
func Open(ctx context.Context, cfg config.DatabaseConfig) (Store, error) {
	switch cfg.Driver {
	case "memory", "":
		return NewMemoryStore(), nil
	case "postgres":
	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.Driver)
	}

	var pg *PostgresStore
	attempt := 0
	b := retry.WithMaxRetries(14, retry.NewConstant(2*time.Second))
	err := retry.Do(ctx, b, func(ctx context.Context) error {
		attempt++
		s, err := NewPostgresStore(ctx, cfg)
		if err != nil {
			slog.Warn("connect to postgres (retrying...)", "attempt", attempt, "error", err)
			return retry.RetryableError(err)
		}
		pg = s
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}

	if err := pg.Migrate(ctx); err != nil {
		pg.Close()
		return nil, err
	}
	return pg, nil
}

// OpenPhotos returns a MinIO archive, or an in-memory one when no endpoint
// is configured.
func OpenPhotos(ctx context.Context, cfg config.MinIOConfig) (PhotoStore, error) {
	if cfg.Endpoint == "" {
		slog.Info("minio endpoint not set, photos kept in memory")
		return NewMemoryPhotos(), nil
	}
	m, err := NewMinIOStore(cfg)
	if err != nil {
		return nil, err
	}
	if err := m.EnsureBucket(ctx); err != nil {
		return nil, err
	}
	return m, nil
}
