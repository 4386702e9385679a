// Package memory is an in-process SnapshotStorePort for runs without Redis.
package memory

import (
	"context"
	"sync"

	"dashboard-refresher/internal/stats/core/ports"
)

type SnapshotStore struct {
	mu   sync.RWMutex
	data map[string][]byte
}

var _ ports.SnapshotStorePort = (*SnapshotStore)(nil)

func NewSnapshotStore() *SnapshotStore {
	return &SnapshotStore{data: map[string][]byte{}}
}

func (s *SnapshotStore) Save(_ context.Context, key string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = append([]byte(nil), data...)
	return nil
}

func (s *SnapshotStore) Load(_ context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.data[key]
	if !ok {
		return nil, ports.ErrSnapshotNotFound
	}
	return append([]byte(nil), d...), nil
}
