package storage

import (
	"context"
	"fmt"

	"github.com/smallbiznis/rfacto/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("storage",
	fx.Provide(NewStore),
)

// NewStore selects the backend named by STORAGE_DRIVER.
func NewStore(cfg config.Config, log *zap.Logger) (Store, error) {
	switch cfg.Storage.Driver {
	case config.StorageDriverS3:
		store, err := NewS3Store(context.Background(), cfg.Storage.S3)
		if err != nil {
			return nil, err
		}
		log.Info("claim files stored in s3", zap.String("bucket", cfg.Storage.S3.Bucket), zap.String("endpoint", cfg.Storage.S3.Endpoint))
		return store, nil
	case config.StorageDriverLocal, "":
		store, err := NewLocalStore(cfg.Storage.LocalDir, cfg.Storage.PublicBaseURL)
		if err != nil {
			return nil, err
		}
		log.Info("claim files stored on disk", zap.String("dir", cfg.Storage.LocalDir))
		return store, nil
	default:
		return nil, fmt.Errorf("storage: unknown driver %q", cfg.Storage.Driver)
	}
}
