package session

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrNotFound is returned by repositories for unknown or expired sessions.
var ErrNotFound = errors.New("session not found")

// Repository persists session snapshots between requests.
type Repository interface {
	Load(ctx context.Context, id string) (Snapshot, error)
	Save(ctx context.Context, snapshot Snapshot, ttl time.Duration) error
	Delete(ctx context.Context, id string) error
}

type memoryEntry struct {
	snapshot Snapshot
	expires  time.Time
}

// MemoryRepository keeps sessions in process memory.
type MemoryRepository struct {
	mu       sync.RWMutex
	sessions map[string]memoryEntry
	now      func() time.Time
}

// NewMemoryRepository returns an empty in-memory repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{sessions: make(map[string]memoryEntry), now: time.Now}
}

// Load returns the snapshot for id.
func (r *MemoryRepository) Load(_ context.Context, id string) (Snapshot, error) {
	r.mu.RLock()
	entry, ok := r.sessions[id]
	r.mu.RUnlock()
	if !ok {
		return Snapshot{}, ErrNotFound
	}
	if !entry.expires.IsZero() && !r.now().Before(entry.expires) {
		r.mu.Lock()
		delete(r.sessions, id)
		r.mu.Unlock()
		return Snapshot{}, ErrNotFound
	}
	return entry.snapshot, nil
}

// Save stores the snapshot; a non-positive ttl never expires.
func (r *MemoryRepository) Save(_ context.Context, snapshot Snapshot, ttl time.Duration) error {
	entry := memoryEntry{snapshot: snapshot}
	if ttl > 0 {
		entry.expires = r.now().Add(ttl)
	}
	r.mu.Lock()
	r.sessions[snapshot.ID] = entry
	r.mu.Unlock()
	return nil
}

// Delete removes id.
func (r *MemoryRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	delete(r.sessions, id)
	r.mu.Unlock()
	return nil
}

// Len returns the number of stored sessions.
func (r *MemoryRepository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
