package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/vouchernet-backend/pkg/config"
	"github.com/angelmondragon/vouchernet-backend/pkg/db/models"
	"github.com/angelmondragon/vouchernet-backend/pkg/enums"
	"github.com/angelmondragon/vouchernet-backend/pkg/logger"
	"github.com/angelmondragon/vouchernet-backend/pkg/metrics"
	"github.com/angelmondragon/vouchernet-backend/pkg/outbox"
	"github.com/angelmondragon/vouchernet-backend/pkg/outbox/registry"
	"github.com/angelmondragon/vouchernet-backend/pkg/pubsub"
)

const (
	publishTimeout = 15 * time.Second
	maxIdleBackoff = 10 * time.Second
	jitterWindow   = 250 * time.Millisecond
)

type database interface {
	Ping(context.Context) error
	WithTx(context.Context, func(tx *gorm.DB) error) error
}

type store interface {
	ClaimBatch(tx *gorm.DB, limit, maxAttempts int) ([]models.OutboxEvent, error)
	MarkPublished(tx *gorm.DB, id uuid.UUID, at time.Time) error
	RecordFailure(tx *gorm.DB, id uuid.UUID, cause error) error
	DeadLetter(tx *gorm.DB, row models.OutboxEvent, reason enums.DeadLetterReason, cause error, ceiling int, at time.Time) error
}

type broker interface {
	Ping(context.Context) error
	Publish(ctx context.Context, topic string, msg *pubsub.Message) (string, error)
	Ordered() bool
}

type resolver interface {
	Resolve(models.OutboxEvent) (*registry.Resolved, error)
}

type guard interface {
	Claim(ctx context.Context, eventID uuid.UUID) (bool, error)
	Forget(ctx context.Context, eventID uuid.UUID) error
}

type RelayParams struct {
	Config   config.OutboxConfig
	Logger   *logger.Logger
	DB       database
	Store    store
	Broker   broker
	Registry resolver
	// Guard is optional; without it a crash between publish and commit
	// republishes the batch.
	Guard   guard
	Metrics *metrics.RelayMetrics
	Now     func() time.Time
}

// Relay drains outbox_events onto Pub/Sub. Rows are claimed with SKIP LOCKED
// so several relays can run side by side.
type Relay struct {
	logg        *logger.Logger
	db          database
	store       store
	broker      broker
	registry    resolver
	guard       guard
	metrics     *metrics.RelayMetrics
	now         func() time.Time
	batchSize   int
	maxAttempts int
	poll        time.Duration
}

func NewRelay(p RelayParams) (*Relay, error) {
	switch {
	case p.Logger == nil:
		return nil, errors.New("logger is required")
	case p.DB == nil:
		return nil, errors.New("database is required")
	case p.Store == nil:
		return nil, errors.New("outbox store is required")
	case p.Broker == nil:
		return nil, errors.New("broker is required")
	case p.Registry == nil:
		return nil, errors.New("event registry is required")
	}
	r := &Relay{
		logg:        p.Logger,
		db:          p.DB,
		store:       p.Store,
		broker:      p.Broker,
		registry:    p.Registry,
		guard:       p.Guard,
		metrics:     p.Metrics,
		now:         p.Now,
		batchSize:   orDefault(p.Config.BatchSize, 50),
		maxAttempts: orDefault(p.Config.MaxAttempts, 10),
		poll:        time.Duration(orDefault(p.Config.PollIntervalMS, 500)) * time.Millisecond,
	}
	if r.now == nil {
		r.now = func() time.Time { return time.Now().UTC() }
	}
	return r, nil
}

func orDefault(v, fallback int) int {
	if v <= 0 {
		return fallback
	}
	return v
}

// Run polls until ctx is cancelled. Full batches are drained back to back;
// failed batches back off exponentially up to maxIdleBackoff.
func (r *Relay) Run(ctx context.Context) error {
	for name, ping := range map[string]func(context.Context) error{
		"database": r.db.Ping,
		"pubsub":   r.broker.Ping,
	} {
		if err := ping(ctx); err != nil {
			return fmt.Errorf("%s not ready: %w", name, err)
		}
	}

	backoff := r.poll
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		claimed, err := r.drain(ctx)
		wait := r.poll
		switch {
		case err != nil:
			r.logg.Error(ctx, "outbox.batch_failed", err)
			backoff = min(backoff*2, maxIdleBackoff)
			wait = backoff
		case claimed > 0:
			backoff = r.poll
			continue
		default:
			backoff = r.poll
		}
		if err := sleep(ctx, jitter(wait)); err != nil {
			return err
		}
	}
}

// drain handles one claimed batch inside a single transaction and returns how
// many rows it claimed.
func (r *Relay) drain(ctx context.Context) (int, error) {
	var claimed int
	err := r.db.WithTx(ctx, func(tx *gorm.DB) error {
		rows, err := r.store.ClaimBatch(tx, r.batchSize, r.maxAttempts)
		if err != nil {
			return fmt.Errorf("claim batch: %w", err)
		}
		claimed = len(rows)
		r.metrics.ObserveBatch(claimed)
		for _, row := range rows {
			if err := r.relay(ctx, tx, row); err != nil {
				return err
			}
		}
		return nil
	})
	return claimed, err
}

// relay settles one row. It only returns an error when the row's state could
// not be written, which aborts the batch.
func (r *Relay) relay(ctx context.Context, tx *gorm.DB, row models.OutboxEvent) error {
	ctx = r.logg.WithFields(ctx, map[string]any{
		"outbox_id":     row.ID.String(),
		"event_type":    string(row.EventType),
		"aggregate_id":  row.AggregateID.String(),
		"attempt_count": row.AttemptCount,
	})

	resolved, err := r.registry.Resolve(row)
	if err != nil {
		return r.deadLetter(ctx, tx, row, "", enums.DeadLetterPermanent, err)
	}
	topic := resolved.Route.Topic
	ctx = r.logg.WithField(ctx, "topic", topic)

	pubErr := r.publishOnce(ctx, row, resolved)
	switch {
	case pubErr == nil:
		if err := r.store.MarkPublished(tx, row.ID, r.now()); err != nil {
			return fmt.Errorf("mark %s published: %w", row.ID, err)
		}
		return nil
	case registry.IsPermanent(pubErr) || errors.Is(pubErr, pubsub.ErrUnknownTopic):
		return r.deadLetter(ctx, tx, row, topic, enums.DeadLetterPermanent, pubErr)
	case row.AttemptCount+1 >= r.maxAttempts:
		return r.deadLetter(ctx, tx, row, topic, enums.DeadLetterMaxAttempts, pubErr)
	}

	r.logg.Warn(r.logg.WithField(ctx, "error", pubErr.Error()), "outbox.publish_retry")
	r.metrics.Outcome(topic, metrics.OutcomeRetry)
	if err := r.store.RecordFailure(tx, row.ID, pubErr); err != nil {
		return fmt.Errorf("record failure for %s: %w", row.ID, err)
	}
	return nil
}

// publishOnce consults the guard first. An event the guard already holds was
// handed off by an earlier attempt whose commit was lost, so it only needs
// marking.
func (r *Relay) publishOnce(ctx context.Context, row models.OutboxEvent, resolved *registry.Resolved) error {
	topic := resolved.Route.Topic
	eventID := resolved.Envelope.EventID
	guarded := r.guard != nil
	if guarded {
		first, err := r.guard.Claim(ctx, eventID)
		switch {
		case err != nil:
			r.logg.Warn(r.logg.WithField(ctx, "error", err.Error()), "outbox.guard_unavailable")
			guarded = false
		case !first:
			r.logg.Info(ctx, "outbox.already_published")
			r.metrics.Outcome(topic, metrics.OutcomeDuplicate)
			return nil
		}
	}

	msg := &pubsub.Message{
		Data:       row.Payload,
		Attributes: outbox.Attributes(row, resolved.Envelope),
	}
	if r.broker.Ordered() {
		msg.OrderingKey = row.AggregateID.String()
	}

	pubCtx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()
	started := time.Now()
	serverID, err := r.broker.Publish(pubCtx, topic, msg)
	r.metrics.ObservePublish(topic, time.Since(started))
	if err != nil {
		if guarded {
			if ferr := r.guard.Forget(ctx, eventID); ferr != nil {
				r.logg.Warn(r.logg.WithField(ctx, "error", ferr.Error()), "outbox.guard_release_failed")
			}
		}
		return err
	}
	r.logg.Info(r.logg.WithField(ctx, "message_id", serverID), "outbox.published")
	r.metrics.Outcome(topic, metrics.OutcomePublished)
	return nil
}

func (r *Relay) deadLetter(ctx context.Context, tx *gorm.DB, row models.OutboxEvent, topic string, reason enums.DeadLetterReason, cause error) error {
	ctx = r.logg.WithFields(ctx, map[string]any{"error": cause.Error(), "dead_letter_reason": string(reason)})
	r.logg.Warn(ctx, "outbox.dead_lettered")
	r.metrics.Outcome(topic, metrics.OutcomeDeadLettered)
	if err := r.store.DeadLetter(tx, row, reason, cause, r.maxAttempts, r.now()); err != nil {
		return fmt.Errorf("dead-letter %s: %w", row.ID, err)
	}
	return nil
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func jitter(d time.Duration) time.Duration {
	return d + rand.N(jitterWindow)
}
