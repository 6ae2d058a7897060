package archive

import (
	"context"
	"fmt"

	"github.com/spf13/afero"

	"siv-go/internal/config"
)

// NewStoreFromConfig creates a Store based on the archive config type.
// It returns nil, nil for type "none" (or empty): archiving is disabled.
func NewStoreFromConfig(ctx context.Context, cfg config.ArchiveConfig, fsys afero.Fs) (Store, error) {
	name := cfg.Name
	if name == "" {
		name = cfg.Type
	}

	switch cfg.Type {
	case "none", "":
		return nil, nil
	case "memory":
		return NewMemoryStore(name), nil
	case "filesystem":
		if cfg.Root == "" {
			return nil, fmt.Errorf("filesystem archive requires root to be set")
		}
		store, err := NewFileSystemStore(name, cfg.Root, fsys)
		if err != nil {
			return nil, err
		}
		return store, nil
	case "s3":
		store, err := NewS3Store(ctx, name, S3Options{
			Bucket:          cfg.S3Bucket,
			Prefix:          cfg.S3Prefix,
			Region:          cfg.S3Region,
			Endpoint:        cfg.S3Endpoint,
			AccessKeyID:     cfg.S3AccessKeyID,
			SecretAccessKey: cfg.S3SecretAccessKey,
		})
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown archive type: %s", cfg.Type)
	}
}
