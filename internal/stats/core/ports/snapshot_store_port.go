package ports

import (
	"context"
	"errors"
)

var ErrSnapshotNotFound = errors.New("snapshot not found")

// SnapshotStorePort keeps the last known good encoded statistics by key.
type SnapshotStorePort interface {
	Save(ctx context.Context, key string, data []byte) error
	// Load returns ErrSnapshotNotFound when nothing was saved under key.
	Load(ctx context.Context, key string) ([]byte, error)
}
