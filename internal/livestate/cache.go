package livestate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/stagesync/stagesync/internal/models"
)

// Cache is the Redis-backed fast tier. Sub-states are stored as whole JSON
// objects under per-field keys, so writes are idempotent overwrites and a
// replay is always safe.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

// Sub-state cache fields.
const (
	fieldTimer     = "timer"
	fieldAnimation = "animation"
	fieldRound     = "round"
	fieldStage     = "stage"
	fieldTeam      = "team"
	fieldAwards    = "awards"
)

// NewCache wraps an existing Redis client. A zero ttl means entries never
// expire; in practice the tick interval is seconds and state is rewritten on
// every mutation, so a generous ttl only bounds leakage after event teardown.
func NewCache(client *redis.Client, ttl time.Duration) *Cache {
	return &Cache{client: client, ttl: ttl}
}

func cacheKey(eventID uuid.UUID, field string) string {
	return fmt.Sprintf("live:%s:%s", eventID, field)
}

// setJSON marshals v and writes it under the event's field key.
func (c *Cache) setJSON(ctx context.Context, eventID uuid.UUID, field string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", field, err)
	}
	if err := c.client.Set(ctx, cacheKey(eventID, field), b, c.ttl).Err(); err != nil {
		return fmt.Errorf("%w: set %s: %v", ErrUnavailable, field, err)
	}
	return nil
}

// getJSON reads the event's field key into dest. Returns (false, nil) on a
// cache miss so callers can fall back to the durable store.
func (c *Cache) getJSON(ctx context.Context, eventID uuid.UUID, field string, dest any) (bool, error) {
	s, err := c.client.Get(ctx, cacheKey(eventID, field)).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("%w: get %s: %v", ErrUnavailable, field, err)
	}
	if err := json.Unmarshal([]byte(s), dest); err != nil {
		// Format drift fails fast rather than silently defaulting.
		return false, fmt.Errorf("decode cached %s: %w", field, err)
	}
	return true, nil
}

// idRef wraps a nullable entity reference so that a cached null is
// distinguishable from a cache miss.
type idRef struct {
	ID *uuid.UUID `json:"id"`
}

// SetTimer overwrites the cached timer sub-state.
func (c *Cache) SetTimer(ctx context.Context, eventID uuid.UUID, t models.TimerState) error {
	return c.setJSON(ctx, eventID, fieldTimer, t)
}

// GetTimer reads the cached timer sub-state. found is false on a miss.
func (c *Cache) GetTimer(ctx context.Context, eventID uuid.UUID) (t models.TimerState, found bool, err error) {
	found, err = c.getJSON(ctx, eventID, fieldTimer, &t)
	return t, found, err
}

// SetAnimation overwrites the cached animation sub-state.
func (c *Cache) SetAnimation(ctx context.Context, eventID uuid.UUID, a models.AnimationState) error {
	return c.setJSON(ctx, eventID, fieldAnimation, a)
}

// GetAnimation reads the cached animation sub-state.
func (c *Cache) GetAnimation(ctx context.Context, eventID uuid.UUID) (a models.AnimationState, found bool, err error) {
	found, err = c.getJSON(ctx, eventID, fieldAnimation, &a)
	return a, found, err
}

// SetRound overwrites the cached round sub-state.
func (c *Cache) SetRound(ctx context.Context, eventID uuid.UUID, r models.RoundState) error {
	return c.setJSON(ctx, eventID, fieldRound, r)
}

// GetRound reads the cached round sub-state.
func (c *Cache) GetRound(ctx context.Context, eventID uuid.UUID) (r models.RoundState, found bool, err error) {
	found, err = c.getJSON(ctx, eventID, fieldRound, &r)
	return r, found, err
}

// SetStage caches the current stage reference (nil clears it).
func (c *Cache) SetStage(ctx context.Context, eventID uuid.UUID, stageID *uuid.UUID) error {
	return c.setJSON(ctx, eventID, fieldStage, idRef{ID: stageID})
}

// GetStage reads the cached current stage reference.
func (c *Cache) GetStage(ctx context.Context, eventID uuid.UUID) (stageID *uuid.UUID, found bool, err error) {
	var ref idRef
	found, err = c.getJSON(ctx, eventID, fieldStage, &ref)
	return ref.ID, found, err
}

// SetTeam caches the current team reference (nil clears it).
func (c *Cache) SetTeam(ctx context.Context, eventID uuid.UUID, teamID *uuid.UUID) error {
	return c.setJSON(ctx, eventID, fieldTeam, idRef{ID: teamID})
}

// GetTeam reads the cached current team reference.
func (c *Cache) GetTeam(ctx context.Context, eventID uuid.UUID) (teamID *uuid.UUID, found bool, err error) {
	var ref idRef
	found, err = c.getJSON(ctx, eventID, fieldTeam, &ref)
	return ref.ID, found, err
}

// SetAwardsLocked caches the awards latch.
func (c *Cache) SetAwardsLocked(ctx context.Context, eventID uuid.UUID, locked bool) error {
	return c.setJSON(ctx, eventID, fieldAwards, locked)
}

// GetAwardsLocked reads the cached awards latch.
func (c *Cache) GetAwardsLocked(ctx context.Context, eventID uuid.UUID) (locked bool, found bool, err error) {
	found, err = c.getJSON(ctx, eventID, fieldAwards, &locked)
	return locked, found, err
}

// Purge removes every cached field for an event. Used on event teardown.
func (c *Cache) Purge(ctx context.Context, eventID uuid.UUID) error {
	fields := []string{fieldTimer, fieldAnimation, fieldRound, fieldStage, fieldTeam, fieldAwards}
	keys := make([]string, len(fields))
	for i, f := range fields {
		keys[i] = cacheKey(eventID, f)
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("%w: purge: %v", ErrUnavailable, err)
	}
	return nil
}
