package cache

import (
	"context"
	"sync"
	"time"

	"focus-pipeline/models"
)

// MemoryStore mirrors RedisClient in process, for running without Redis.
type MemoryStore struct {
	mu        sync.Mutex
	ttl       time.Duration
	now       func() time.Time
	snapshots map[string]storedSnapshot
	queue     []models.HealthRecord
}

type storedSnapshot struct {
	snap    models.Snapshot
	expires time.Time
}

func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		ttl:       ttl,
		now:       time.Now,
		snapshots: make(map[string]storedSnapshot),
	}
}

func (m *MemoryStore) SaveSnapshot(_ context.Context, snap models.Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	var expires time.Time
	if m.ttl > 0 {
		expires = m.now().Add(m.ttl)
	}
	m.snapshots[snap.UserID] = storedSnapshot{snap: snap, expires: expires}
	return nil
}

func (m *MemoryStore) GetSnapshot(_ context.Context, userID string) (*models.Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.snapshots[userID]
	if !ok {
		return nil, nil
	}
	if !s.expires.IsZero() && !m.now().Before(s.expires) {
		delete(m.snapshots, userID)
		return nil, nil
	}
	snap := s.snap
	return &snap, nil
}

func (m *MemoryStore) Push(_ context.Context, rec models.HealthRecord) error {
	m.mu.Lock()
	m.queue = append(m.queue, rec)
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) Peek(_ context.Context) (*models.HealthRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.queue) == 0 {
		return nil, nil
	}
	rec := m.queue[0]
	return &rec, nil
}

func (m *MemoryStore) Pop(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.queue) > 0 {
		m.queue = m.queue[1:]
	}
	return nil
}

func (m *MemoryStore) Len(_ context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.queue)), nil
}
