package snapshot

import (
	"context"
	"io"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"

	apperrors "github.com/arx-os/vecindex/pkg/errors"
)

// GCSBackend stores snapshot blobs in a Google Cloud Storage bucket.
//
// Grounded on the teacher's storage.GCSBackend (internal/storage/gcs.go).
type GCSBackend struct {
	client *storage.Client
	bucket *storage.BucketHandle
}

// GCSConfig configures a GCSBackend. Leave CredentialsJSON/CredentialsFile
// empty to use Application Default Credentials.
type GCSConfig struct {
	BucketName      string
	CredentialsJSON string
	CredentialsFile string
}

func NewGCSBackend(ctx context.Context, cfg GCSConfig) (*GCSBackend, error) {
	var opts []option.ClientOption
	switch {
	case cfg.CredentialsJSON != "":
		opts = append(opts, option.WithCredentialsJSON([]byte(cfg.CredentialsJSON)))
	case cfg.CredentialsFile != "":
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}

	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeResourceExhausted, "create gcs client", err)
	}
	bucket := client.Bucket(cfg.BucketName)
	if _, err := bucket.Attrs(ctx); err != nil {
		return nil, apperrors.Wrap(apperrors.CodeResourceExhausted, "access gcs bucket", err)
	}
	log.Info("gcs snapshot backend initialized: bucket=%s", cfg.BucketName)
	return &GCSBackend{client: client, bucket: bucket}, nil
}

func (g *GCSBackend) Type() string { return "gcs" }

func (g *GCSBackend) Get(ctx context.Context, key string) ([]byte, error) {
	reader, err := g.bucket.Object(key).NewReader(ctx)
	if err != nil {
		if err == storage.ErrObjectNotExist {
			return nil, apperrors.ErrNotFound
		}
		return nil, apperrors.Wrap(apperrors.CodeResourceExhausted, "open gcs object", err)
	}
	defer reader.Close()
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeDataCorruption, "read gcs object", err)
	}
	return data, nil
}

func (g *GCSBackend) Put(ctx context.Context, key string, data []byte) error {
	writer := g.bucket.Object(key).NewWriter(ctx)
	if _, err := writer.Write(data); err != nil {
		writer.Close()
		return apperrors.Wrap(apperrors.CodeResourceExhausted, "write gcs object", err)
	}
	if err := writer.Close(); err != nil {
		return apperrors.Wrap(apperrors.CodeResourceExhausted, "commit gcs object", err)
	}
	return nil
}

func (g *GCSBackend) Exists(ctx context.Context, key string) (bool, error) {
	_, err := g.bucket.Object(key).Attrs(ctx)
	if err != nil {
		if err == storage.ErrObjectNotExist {
			return false, nil
		}
		return false, apperrors.Wrap(apperrors.CodeResourceExhausted, "stat gcs object", err)
	}
	return true, nil
}

func (g *GCSBackend) Delete(ctx context.Context, key string) error {
	if err := g.bucket.Object(key).Delete(ctx); err != nil {
		if err == storage.ErrObjectNotExist {
			return nil
		}
		return apperrors.Wrap(apperrors.CodeResourceExhausted, "delete gcs object", err)
	}
	return nil
}

func (g *GCSBackend) List(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	iter := g.bucket.Objects(ctx, &storage.Query{Prefix: prefix})
	for {
		attrs, err := iter.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, apperrors.Wrap(apperrors.CodeResourceExhausted, "list gcs objects", err)
		}
		keys = append(keys, attrs.Name)
	}
	return keys, nil
}
