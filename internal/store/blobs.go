package store

import (
	"context"
	"fmt"

	"github.com/erazemk/jaego/internal/db"
)

// PutBlob stores data under key, replacing any previous value.
func PutBlob(ctx context.Context, q db.DBTX, key string, data []byte, mime string) error {
	_, err := exec(ctx, q,
		`INSERT INTO blobs (key, data, mime, created_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT (key) DO UPDATE SET data = excluded.data, mime = excluded.mime, created_at = excluded.created_at`,
		key, data, mime, now(),
	)
	if err != nil {
		return fmt.Errorf("storing blob: %w", err)
	}
	return nil
}

// GetBlob returns the data and MIME type stored under key, or nil when absent.
func GetBlob(ctx context.Context, q db.DBTX, key string) ([]byte, string, error) {
	var row struct {
		Data []byte `db:"data"`
		MIME string `db:"mime"`
	}
	found, err := get(ctx, q, &row, `SELECT data, mime FROM blobs WHERE key = ?`, key)
	if err != nil {
		return nil, "", fmt.Errorf("getting blob: %w", err)
	}
	if !found {
		return nil, "", nil
	}
	return row.Data, row.MIME, nil
}

// DeleteBlob removes the blob stored under key.
func DeleteBlob(ctx context.Context, q db.DBTX, key string) error {
	if _, err := exec(ctx, q, `DELETE FROM blobs WHERE key = ?`, key); err != nil {
		return fmt.Errorf("deleting blob: %w", err)
	}
	return nil
}
