package utils

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"

	"cloud.google.com/go/storage"
	"github.com/mmdatafocus/mpms/config"
	"go.opentelemetry.io/otel/attribute"
	"google.golang.org/api/option"
)

// GCSImageStore uploads into GCS_BUCKET; objects are addressed as
// "<dir>/<name>".
type GCSImageStore struct {
	client    *storage.Client
	bucket    string
	urlPrefix string
}

// NewGCSImageStore prefers ADC (Cloud Run service account /
// GOOGLE_APPLICATION_CREDENTIALS); GCS_CREDENTIALS_JSON overrides it.
func NewGCSImageStore(ctx context.Context, cfg config.StorageConfig) (*GCSImageStore, error) {
	if cfg.GCSBucket == "" {
		return nil, errors.New("GCS_BUCKET is required")
	}
	var opts []option.ClientOption
	if credJSON := strings.TrimSpace(cfg.GCSCredentials); credJSON != "" {
		opts = append(opts, option.WithCredentialsJSON([]byte(credJSON)))
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, err
	}
	if _, err := client.Bucket(cfg.GCSBucket).Attrs(ctx); err != nil {
		client.Close()
		return nil, fmt.Errorf("gcs bucket %q not found or not accessible: %v", cfg.GCSBucket, err)
	}
	return &GCSImageStore{client: client, bucket: cfg.GCSBucket, urlPrefix: cfg.PublicURLPrefix}, nil
}

func (s *GCSImageStore) Save(ctx context.Context, dir string, name string, data []byte, contentType string) error {
	objectName := path.Join(dir, name)
	ctx, span := tracer.Start(ctx, "storage.gcs.save")
	defer span.End()
	span.SetAttributes(attribute.String("bucket", s.bucket), attribute.String("object", objectName))

	wc := s.client.Bucket(s.bucket).Object(objectName).NewWriter(ctx)
	wc.ContentType = contentType
	if _, err := wc.Write(data); err != nil {
		_ = wc.Close()
		span.RecordError(err)
		return err
	}
	if err := wc.Close(); err != nil {
		span.RecordError(err)
		return err
	}
	return nil
}

func (s *GCSImageStore) URL(dir string, name string) string {
	return BuildObjectAccessURL(s.urlPrefix, s.bucket, path.Join(dir, name))
}

func (s *GCSImageStore) Close() error {
	return s.client.Close()
}
