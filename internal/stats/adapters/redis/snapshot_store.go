package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"dashboard-refresher/internal/stats/core/ports"
)

const DefaultPrefix = "dashboard_refresher:snapshots"

// SnapshotStore keeps last-known-good statistics in Redis under
// "<prefix>:<key>", with the save time in "<prefix>:<key>:saved_at".
type SnapshotStore struct {
	client *goredis.Client
	prefix string
	ttl    time.Duration // 0 keeps snapshots forever
	now    func() time.Time
}

var _ ports.SnapshotStorePort = (*SnapshotStore)(nil)

func NewSnapshotStore(url, prefix string, ttl time.Duration) (*SnapshotStore, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}
	if prefix == "" {
		prefix = DefaultPrefix
	}

	client := goredis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &SnapshotStore{client: client, prefix: prefix, ttl: ttl, now: time.Now}, nil
}

func (s *SnapshotStore) key(k string) string { return s.prefix + ":" + k }

func (s *SnapshotStore) Save(ctx context.Context, key string, data []byte) error {
	pipe := s.client.TxPipeline()
	pipe.Set(ctx, s.key(key), data, s.ttl)
	pipe.Set(ctx, s.key(key)+":saved_at", s.now().UTC().Format(time.RFC3339), s.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save snapshot %s: %w", key, err)
	}
	return nil
}

func (s *SnapshotStore) Load(ctx context.Context, key string) ([]byte, error) {
	data, err := s.client.Get(ctx, s.key(key)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, ports.ErrSnapshotNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load snapshot %s: %w", key, err)
	}
	return data, nil
}

// SavedAt reports when key was last saved.
func (s *SnapshotStore) SavedAt(ctx context.Context, key string) (time.Time, error) {
	raw, err := s.client.Get(ctx, s.key(key)+":saved_at").Result()
	if errors.Is(err, goredis.Nil) {
		return time.Time{}, ports.ErrSnapshotNotFound
	}
	if err != nil {
		return time.Time{}, err
	}
	return time.Parse(time.RFC3339, raw)
}

func (s *SnapshotStore) Close() error {
	return s.client.Close()
}
