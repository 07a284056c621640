package idempotency

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
)

type memoryStore struct {
	marks  map[string]time.Duration
	setErr error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{marks: map[string]time.Duration{}}
}

func (m *memoryStore) SetNX(_ context.Context, key string, _ any, ttl time.Duration) (bool, error) {
	if m.setErr != nil {
		return false, m.setErr
	}
	if _, held := m.marks[key]; held {
		return false, nil
	}
	m.marks[key] = ttl
	return true, nil
}

func (m *memoryStore) Del(_ context.Context, keys ...string) error {
	for _, k := range keys {
		delete(m.marks, k)
	}
	return nil
}

func (m *memoryStore) IdempotencyKey(scope, id string) string {
	return "vn:idem:" + scope + ":" + id
}

func TestClaimOnlyOnce(t *testing.T) {
	store := newMemoryStore()
	guard, err := New(store, "outbox-publisher", 6*time.Hour)
	if err != nil {
		t.Fatalf("new guard: %v", err)
	}
	id := uuid.New()

	first, err := guard.Claim(context.Background(), id)
	if err != nil || !first {
		t.Fatalf("first claim should win, got %v (%v)", first, err)
	}
	second, err := guard.Claim(context.Background(), id)
	if err != nil || second {
		t.Fatalf("second claim should lose, got %v (%v)", second, err)
	}

	key := "vn:idem:published:outbox-publisher:" + id.String()
	if ttl, ok := store.marks[key]; !ok || ttl != 6*time.Hour {
		t.Fatalf("expected mark %q with ttl, got %v", key, store.marks)
	}
}

func TestForgetReleasesMark(t *testing.T) {
	guard, _ := New(newMemoryStore(), "outbox-publisher", time.Hour)
	id := uuid.New()
	if _, err := guard.Claim(context.Background(), id); err != nil {
		t.Fatalf("claim: %v", err)
	}
	if err := guard.Forget(context.Background(), id); err != nil {
		t.Fatalf("forget: %v", err)
	}
	if again, _ := guard.Claim(context.Background(), id); !again {
		t.Fatalf("expected claim after forget to win")
	}
}

func TestConsumersDoNotShareMarks(t *testing.T) {
	store := newMemoryStore()
	a, _ := New(store, "relay-a", time.Hour)
	b, _ := New(store, "relay-b", time.Hour)
	id := uuid.New()
	if ok, _ := a.Claim(context.Background(), id); !ok {
		t.Fatalf("relay-a claim failed")
	}
	if ok, _ := b.Claim(context.Background(), id); !ok {
		t.Fatalf("relay-b should hold its own mark")
	}
}

func TestClaimPropagatesStoreError(t *testing.T) {
	store := newMemoryStore()
	store.setErr = errors.New("redis down")
	guard, _ := New(store, "outbox-publisher", time.Hour)
	if _, err := guard.Claim(context.Background(), uuid.New()); err == nil {
		t.Fatalf("expected store error")
	}
	if _, err := guard.Claim(context.Background(), uuid.Nil); err == nil {
		t.Fatalf("expected error for nil event id")
	}
}

func TestNewValidatesArguments(t *testing.T) {
	if _, err := New(nil, "x", time.Hour); err == nil {
		t.Fatalf("expected error for nil store")
	}
	if _, err := New(newMemoryStore(), "", time.Hour); err == nil {
		t.Fatalf("expected error for blank consumer")
	}
	if _, err := New(newMemoryStore(), "x", -time.Second); err == nil {
		t.Fatalf("expected error for negative ttl")
	}
}
