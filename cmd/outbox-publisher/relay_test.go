package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/vouchernet-backend/pkg/config"
	"github.com/angelmondragon/vouchernet-backend/pkg/db/models"
	"github.com/angelmondragon/vouchernet-backend/pkg/enums"
	"github.com/angelmondragon/vouchernet-backend/pkg/logger"
	"github.com/angelmondragon/vouchernet-backend/pkg/outbox"
	"github.com/angelmondragon/vouchernet-backend/pkg/outbox/registry"
	"github.com/angelmondragon/vouchernet-backend/pkg/pubsub"
)

type fakeDB struct {
	pingErr error
}

func (f *fakeDB) Ping(context.Context) error { return f.pingErr }

func (f *fakeDB) WithTx(_ context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

type deadLetter struct {
	id     uuid.UUID
	reason enums.DeadLetterReason
}

type fakeStore struct {
	rows      []models.OutboxEvent
	claimErr  error
	published []uuid.UUID
	failed    []uuid.UUID
	dead      []deadLetter
}

func (f *fakeStore) ClaimBatch(_ *gorm.DB, limit, _ int) ([]models.OutboxEvent, error) {
	if f.claimErr != nil {
		return nil, f.claimErr
	}
	rows := f.rows
	if len(rows) > limit {
		rows = rows[:limit]
	}
	f.rows = f.rows[len(rows):]
	return rows, nil
}

func (f *fakeStore) MarkPublished(_ *gorm.DB, id uuid.UUID, _ time.Time) error {
	f.published = append(f.published, id)
	return nil
}

func (f *fakeStore) RecordFailure(_ *gorm.DB, id uuid.UUID, _ error) error {
	f.failed = append(f.failed, id)
	return nil
}

func (f *fakeStore) DeadLetter(_ *gorm.DB, row models.OutboxEvent, reason enums.DeadLetterReason, _ error, _ int, _ time.Time) error {
	f.dead = append(f.dead, deadLetter{id: row.ID, reason: reason})
	return nil
}

type fakeBroker struct {
	ordered   bool
	publishFn func(topic string, msg *pubsub.Message) error
	sent      []*pubsub.Message
}

func (f *fakeBroker) Ping(context.Context) error { return nil }
func (f *fakeBroker) Ordered() bool              { return f.ordered }

func (f *fakeBroker) Publish(_ context.Context, topic string, msg *pubsub.Message) (string, error) {
	if f.publishFn != nil {
		if err := f.publishFn(topic, msg); err != nil {
			return "", err
		}
	}
	f.sent = append(f.sent, msg)
	return "srv-1", nil
}

type fakeGuard struct {
	held      map[uuid.UUID]bool
	claimErr  error
	forgotten []uuid.UUID
}

func (f *fakeGuard) Claim(_ context.Context, id uuid.UUID) (bool, error) {
	if f.claimErr != nil {
		return false, f.claimErr
	}
	if f.held[id] {
		return false, nil
	}
	f.held[id] = true
	return true, nil
}

func (f *fakeGuard) Forget(_ context.Context, id uuid.UUID) error {
	delete(f.held, id)
	f.forgotten = append(f.forgotten, id)
	return nil
}

func stockRow(t *testing.T, attempts int) models.OutboxEvent {
	t.Helper()
	raw, err := json.Marshal(outbox.Envelope{
		Version:    outbox.EnvelopeVersion,
		EventID:    uuid.New(),
		OccurredAt: time.Now().UTC(),
		Data:       json.RawMessage(`{"amount":10,"new_quantity":40}`),
	})
	if err != nil {
		t.Fatalf("marshal envelope: %v", err)
	}
	return models.OutboxEvent{
		ID:            uuid.New(),
		EventType:     enums.EventStockAdded,
		AggregateType: enums.AggregateVoucherStock,
		AggregateID:   uuid.New(),
		Payload:       raw,
		AttemptCount:  attempts,
	}
}

func newTestRelay(t *testing.T, st *fakeStore, br *fakeBroker, g guard) *Relay {
	t.Helper()
	reg, err := registry.New(config.PubSubConfig{LedgerTopic: "ledger", CampaignTopic: "campaign", NotificationTopic: "notify"})
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	relay, err := NewRelay(RelayParams{
		Config:   config.OutboxConfig{BatchSize: 10, MaxAttempts: 3, PollIntervalMS: 1},
		Logger:   logger.New(logger.Options{ServiceName: "relay-test", Output: io.Discard}),
		DB:       &fakeDB{},
		Store:    st,
		Broker:   br,
		Registry: reg,
		Guard:    g,
	})
	if err != nil {
		t.Fatalf("new relay: %v", err)
	}
	return relay
}

func TestDrainPublishesWithAttributesAndOrderingKey(t *testing.T) {
	row := stockRow(t, 0)
	st := &fakeStore{rows: []models.OutboxEvent{row}}
	br := &fakeBroker{ordered: true}

	claimed, err := newTestRelay(t, st, br, nil).drain(context.Background())
	if err != nil || claimed != 1 {
		t.Fatalf("drain: claimed=%d err=%v", claimed, err)
	}
	if len(st.published) != 1 || st.published[0] != row.ID {
		t.Fatalf("expected row marked published, got %v", st.published)
	}
	msg := br.sent[0]
	if msg.OrderingKey != row.AggregateID.String() {
		t.Fatalf("ordering key %q", msg.OrderingKey)
	}
	if msg.Attributes["event_type"] != string(enums.EventStockAdded) || msg.Attributes["event_id"] == "" {
		t.Fatalf("unexpected attributes %v", msg.Attributes)
	}
	if string(msg.Data) != string(row.Payload) {
		t.Fatalf("payload must be published verbatim")
	}
}

func TestDrainRetriesTransientFailureAndContinues(t *testing.T) {
	bad, good := stockRow(t, 0), stockRow(t, 0)
	st := &fakeStore{rows: []models.OutboxEvent{bad, good}}
	br := &fakeBroker{publishFn: func(_ string, msg *pubsub.Message) error {
		if msg.Attributes["aggregate_id"] == bad.AggregateID.String() {
			return errors.New("unavailable")
		}
		return nil
	}}
	g := &fakeGuard{held: map[uuid.UUID]bool{}}

	if _, err := newTestRelay(t, st, br, g).drain(context.Background()); err != nil {
		t.Fatalf("drain: %v", err)
	}
	if len(st.failed) != 1 || st.failed[0] != bad.ID {
		t.Fatalf("expected failure recorded for first row, got %v", st.failed)
	}
	if len(st.published) != 1 || st.published[0] != good.ID {
		t.Fatalf("expected second row published, got %v", st.published)
	}
	if len(g.forgotten) != 1 {
		t.Fatalf("failed publish must release its guard mark")
	}
	if br.ordered || br.sent[0].OrderingKey != "" {
		t.Fatalf("unordered broker must not get ordering keys")
	}
}

func TestDrainDeadLettersAtAttemptCeiling(t *testing.T) {
	row := stockRow(t, 2)
	st := &fakeStore{rows: []models.OutboxEvent{row}}
	br := &fakeBroker{publishFn: func(string, *pubsub.Message) error { return errors.New("deadline exceeded") }}

	if _, err := newTestRelay(t, st, br, nil).drain(context.Background()); err != nil {
		t.Fatalf("drain: %v", err)
	}
	if len(st.dead) != 1 || st.dead[0].reason != enums.DeadLetterMaxAttempts {
		t.Fatalf("expected max-attempts dead letter, got %+v", st.dead)
	}
	if len(st.failed) != 0 {
		t.Fatalf("dead-lettered row must not also be retried")
	}
}

func TestDrainDeadLettersUnresolvableRows(t *testing.T) {
	broken := stockRow(t, 0)
	broken.AggregateType = enums.AggregateGiftClaim
	unknownTopic := stockRow(t, 0)
	st := &fakeStore{rows: []models.OutboxEvent{broken, unknownTopic}}
	br := &fakeBroker{publishFn: func(topic string, _ *pubsub.Message) error {
		return pubsub.ErrUnknownTopic
	}}

	if _, err := newTestRelay(t, st, br, nil).drain(context.Background()); err != nil {
		t.Fatalf("drain: %v", err)
	}
	if len(st.dead) != 2 {
		t.Fatalf("expected both rows dead-lettered, got %+v", st.dead)
	}
	for _, d := range st.dead {
		if d.reason != enums.DeadLetterPermanent {
			t.Fatalf("expected permanent reason, got %s", d.reason)
		}
	}
}

func TestDrainSkipsPublishWhenGuardAlreadyHoldsEvent(t *testing.T) {
	row := stockRow(t, 1)
	env, err := outbox.DecodeEnvelope(row.Payload)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	st := &fakeStore{rows: []models.OutboxEvent{row}}
	br := &fakeBroker{}
	g := &fakeGuard{held: map[uuid.UUID]bool{env.EventID: true}}

	if _, err := newTestRelay(t, st, br, g).drain(context.Background()); err != nil {
		t.Fatalf("drain: %v", err)
	}
	if len(br.sent) != 0 {
		t.Fatalf("expected no second publish")
	}
	if len(st.published) != 1 {
		t.Fatalf("expected row marked published")
	}
}

func TestDrainPublishesWhenGuardIsDown(t *testing.T) {
	st := &fakeStore{rows: []models.OutboxEvent{stockRow(t, 0)}}
	br := &fakeBroker{}
	g := &fakeGuard{held: map[uuid.UUID]bool{}, claimErr: errors.New("redis down")}

	if _, err := newTestRelay(t, st, br, g).drain(context.Background()); err != nil {
		t.Fatalf("drain: %v", err)
	}
	if len(br.sent) != 1 || len(st.published) != 1 {
		t.Fatalf("expected publish without guard, sent=%d published=%d", len(br.sent), len(st.published))
	}
}

func TestDrainAbortsOnClaimError(t *testing.T) {
	st := &fakeStore{claimErr: errors.New("connection reset")}
	if _, err := newTestRelay(t, st, &fakeBroker{}, nil).drain(context.Background()); err == nil {
		t.Fatalf("expected claim error")
	}
}

func TestRunStopsOnCancelAndChecksReadiness(t *testing.T) {
	relay := newTestRelay(t, &fakeStore{}, &fakeBroker{}, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := relay.Run(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline, got %v", err)
	}

	relay.db = &fakeDB{pingErr: errors.New("refused")}
	if err := relay.Run(context.Background()); err == nil {
		t.Fatalf("expected readiness error")
	}
}

func TestNewRelayRequiresDependencies(t *testing.T) {
	if _, err := NewRelay(RelayParams{}); err == nil {
		t.Fatalf("expected error")
	}
}
