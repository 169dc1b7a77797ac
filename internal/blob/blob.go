// Package blob stores item images either in the database or in an
// S3-compatible bucket.
package blob

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/jmoiron/sqlx"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/erazemk/jaego/internal/config"
	"github.com/erazemk/jaego/internal/store"
)

// Store keeps binary objects by key. Get returns nil data when the key
// does not exist.
type Store interface {
	Put(ctx context.Context, key string, data []byte, mime string) error
	Get(ctx context.Context, key string) ([]byte, string, error)
	Delete(ctx context.Context, key string) error
}

// New returns a MinIO store when cfg names an endpoint, otherwise a store
// backed by the blobs table.
func New(ctx context.Context, cfg config.StorageConfig, database *sqlx.DB) (Store, error) {
	if cfg.Endpoint == "" {
		return &DBStore{db: database}, nil
	}
	return NewMinIO(ctx, cfg)
}

// DBStore keeps objects in the blobs table.
type DBStore struct {
	db *sqlx.DB
}

func NewDBStore(database *sqlx.DB) *DBStore {
	return &DBStore{db: database}
}

func (s *DBStore) Put(ctx context.Context, key string, data []byte, mime string) error {
	return store.PutBlob(ctx, s.db, key, data, mime)
}

func (s *DBStore) Get(ctx context.Context, key string) ([]byte, string, error) {
	return store.GetBlob(ctx, s.db, key)
}

func (s *DBStore) Delete(ctx context.Context, key string) error {
	return store.DeleteBlob(ctx, s.db, key)
}

// MinIOStore keeps objects in a bucket.
type MinIOStore struct {
	client *minio.Client
	bucket string
}

// NewMinIO connects to the endpoint and creates the bucket if missing.
func NewMinIO(ctx context.Context, cfg config.StorageConfig) (*MinIOStore, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("creating minio client: %w", err)
	}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("checking bucket: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("creating bucket: %w", err)
		}
	}
	return &MinIOStore{client: client, bucket: cfg.Bucket}, nil
}

func (s *MinIOStore) Put(ctx context.Context, key string, data []byte, mime string) error {
	_, err := s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: mime})
	if err != nil {
		return fmt.Errorf("putting object: %w", err)
	}
	return nil
}

func (s *MinIOStore) Get(ctx context.Context, key string) ([]byte, string, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, "", fmt.Errorf("getting object: %w", err)
	}
	defer obj.Close()

	info, err := obj.Stat()
	if err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return nil, "", nil
		}
		return nil, "", fmt.Errorf("stat object: %w", err)
	}

	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, "", fmt.Errorf("reading object: %w", err)
	}
	return data, info.ContentType, nil
}

func (s *MinIOStore) Delete(ctx context.Context, key string) error {
	if err := s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("removing object: %w", err)
	}
	return nil
}
