package session

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/google/uuid"
)

// MemoryStore is an in-process SnapshotStore used by tests and by local
// development without Redis. Snapshots round-trip through JSON so the store
// observes exactly what the Redis implementation would.
type MemoryStore struct {
	mu    sync.Mutex
	snaps map[uuid.UUID][]byte
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{snaps: make(map[uuid.UUID][]byte)}
}

func (s *MemoryStore) Save(_ context.Context, snap *Snapshot) error {
	raw, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snaps[snap.SessionID] = raw
	return nil
}

func (s *MemoryStore) Load(_ context.Context, sessionID uuid.UUID) (*Snapshot, error) {
	s.mu.Lock()
	raw, ok := s.snaps[sessionID]
	s.mu.Unlock()
	if !ok {
		return nil, ErrSnapshotNotFound
	}

	var snap Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return nil, ErrSnapshotNotFound
	}
	return &snap, nil
}

func (s *MemoryStore) Clear(_ context.Context, sessionID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.snaps, sessionID)
	return nil
}

// Len reports the number of stored snapshots.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.snaps)
}
