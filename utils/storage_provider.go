package utils

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"

	"github.com/mmdatafocus/mpms/config"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

var tracer = otel.Tracer("github.com/mmdatafocus/mpms/utils")

// ImageStore persists processed images under a directory ("account_pics",
// "upload_pic") and resolves the URL the browser loads them from.
type ImageStore interface {
	Save(ctx context.Context, dir string, name string, data []byte, contentType string) error
	URL(dir string, name string) string
}

// NewImageStore picks the backend named by STORAGE_PROVIDER.
func NewImageStore(ctx context.Context, cfg config.StorageConfig) (ImageStore, error) {
	switch cfg.Provider {
	case config.StorageProviderGCS:
		return NewGCSImageStore(ctx, cfg)
	case config.StorageProviderLocal, "":
		return &LocalImageStore{Root: cfg.StaticDir, URLPrefix: "/static"}, nil
	default:
		return nil, fmt.Errorf("unsupported storage provider %q", cfg.Provider)
	}
}

// LocalImageStore writes below Root, which the router serves at URLPrefix.
type LocalImageStore struct {
	Root      string
	URLPrefix string
}

func (s *LocalImageStore) Save(ctx context.Context, dir string, name string, data []byte, contentType string) error {
	_, span := tracer.Start(ctx, "storage.local.save")
	defer span.End()
	span.SetAttributes(attribute.String("object", path.Join(dir, name)))

	if name != filepath.Base(name) {
		return fmt.Errorf("invalid file name %q", name)
	}
	target := filepath.Join(s.Root, dir)
	if err := os.MkdirAll(target, 0o755); err != nil {
		span.RecordError(err)
		return err
	}
	if err := os.WriteFile(filepath.Join(target, name), data, 0o644); err != nil {
		span.RecordError(err)
		return err
	}
	return nil
}

func (s *LocalImageStore) URL(dir string, name string) string {
	return path.Join(s.URLPrefix, dir, name)
}

// EnsureDefaultAvatar writes the placeholder avatar when it is missing.
func EnsureDefaultAvatar(ctx context.Context, store ImageStore) error {
	if local, ok := store.(*LocalImageStore); ok {
		if _, err := os.Stat(filepath.Join(local.Root, AvatarDir, DefaultAvatar)); err == nil {
			return nil
		}
	} else {
		// remote buckets are provisioned with the placeholder out of band
		return nil
	}
	data, err := DefaultAvatarImage()
	if err != nil {
		return err
	}
	return store.Save(ctx, AvatarDir, DefaultAvatar, data, "image/jpeg")
}
