// Package idempotency remembers which outbox envelopes a worker already
// handed to the broker, so a commit that fails after a successful publish
// does not produce a second delivery on the next claim.
package idempotency

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Store is the subset of the Redis client the guard needs.
type Store interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	Del(ctx context.Context, keys ...string) error
	IdempotencyKey(scope, id string) string
}

type Guard struct {
	store    Store
	consumer string
	ttl      time.Duration
}

// New scopes marks to consumer. A zero ttl keeps marks until evicted.
func New(store Store, consumer string, ttl time.Duration) (*Guard, error) {
	switch {
	case store == nil:
		return nil, errors.New("idempotency store is required")
	case consumer == "":
		return nil, errors.New("consumer name is required")
	case ttl < 0:
		return nil, errors.New("ttl must be non-negative")
	}
	return &Guard{store: store, consumer: consumer, ttl: ttl}, nil
}

// Claim marks eventID and reports whether this call took the mark. false
// means an earlier hand-off already happened.
func (g *Guard) Claim(ctx context.Context, eventID uuid.UUID) (bool, error) {
	if eventID == uuid.Nil {
		return false, errors.New("event id is required")
	}
	return g.store.SetNX(ctx, g.key(eventID), time.Now().UTC().Format(time.RFC3339), g.ttl)
}

// Forget drops the mark after a failed hand-off so the next attempt can claim it.
func (g *Guard) Forget(ctx context.Context, eventID uuid.UUID) error {
	if eventID == uuid.Nil {
		return nil
	}
	return g.store.Del(ctx, g.key(eventID))
}

func (g *Guard) key(eventID uuid.UUID) string {
	return g.store.IdempotencyKey("published:"+g.consumer, eventID.String())
}
