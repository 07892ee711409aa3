package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/prepdeck/mockexam-backend/internal/config"
	"github.com/prepdeck/mockexam-backend/internal/session"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// SnapshotRepository is the Redis-backed session.SnapshotStore. Snapshots are
// ephemeral by design: a TTL bounds how long an abandoned session survives,
// and Redis eviction is an acceptable loss mode (the candidate starts over).
type SnapshotRepository struct {
	rdb *redis.Client
	ttl time.Duration
	log zerolog.Logger
}

// NewSnapshotRepository creates a SnapshotRepository with the given retention.
func NewSnapshotRepository(rdb *redis.Client, ttl time.Duration, log zerolog.Logger) *SnapshotRepository {
	return &SnapshotRepository{
		rdb: rdb,
		ttl: ttl,
		log: log.With().Str("component", "snapshot_repository").Logger(),
	}
}

// Save writes the snapshot, refreshing its TTL.
func (r *SnapshotRepository) Save(ctx context.Context, snap *session.Snapshot) error {
	raw, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	key := config.CacheKey.SessionSnapshotKey(snap.SessionID.String())
	if err := r.rdb.Set(ctx, key, raw, r.ttl).Err(); err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	return nil
}

// Load reads a snapshot. A missing key returns session.ErrSnapshotNotFound;
// so does a corrupt value, which is deleted rather than resumed.
func (r *SnapshotRepository) Load(ctx context.Context, sessionID uuid.UUID) (*session.Snapshot, error) {
	key := config.CacheKey.SessionSnapshotKey(sessionID.String())
	raw, err := r.rdb.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, session.ErrSnapshotNotFound
		}
		return nil, fmt.Errorf("load snapshot: %w", err)
	}

	var snap session.Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		r.log.Warn().
			Err(err).
			Str("session_id", sessionID.String()).
			Msg("Discarding malformed snapshot")
		r.rdb.Del(ctx, key)
		return nil, session.ErrSnapshotNotFound
	}
	return &snap, nil
}

// Clear erases a snapshot.
func (r *SnapshotRepository) Clear(ctx context.Context, sessionID uuid.UUID) error {
	key := config.CacheKey.SessionSnapshotKey(sessionID.String())
	return r.rdb.Del(ctx, key).Err()
}
