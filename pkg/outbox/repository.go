package outbox

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/vouchernet-backend/pkg/db/models"
	"github.com/angelmondragon/vouchernet-backend/pkg/enums"
)

// maxErrorText caps stored broker errors; some gRPC errors embed whole payloads.
const maxErrorText = 1024

var errNoTx = errors.New("outbox: transaction required")

// Repository owns outbox_events and outbox_dlq.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) Append(tx *gorm.DB, row *models.OutboxEvent) error {
	if tx == nil {
		return errNoTx
	}
	return tx.Create(row).Error
}

// ClaimBatch locks up to limit unpublished rows below the attempt ceiling,
// oldest first. Other relays skip the locked rows.
func (r *Repository) ClaimBatch(tx *gorm.DB, limit, maxAttempts int) ([]models.OutboxEvent, error) {
	if tx == nil {
		return nil, errNoTx
	}
	q := tx.Where("published_at IS NULL")
	if maxAttempts > 0 {
		q = q.Where("attempt_count < ?", maxAttempts)
	}
	var rows []models.OutboxEvent
	err := q.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
		Order("created_at ASC, id ASC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

func (r *Repository) MarkPublished(tx *gorm.DB, id uuid.UUID, at time.Time) error {
	return tx.Model(&models.OutboxEvent{}).Where("id = ?", id).
		Updates(map[string]any{"published_at": at, "last_error": nil}).Error
}

// RecordFailure bumps the attempt count so the row is retried on a later batch.
func (r *Repository) RecordFailure(tx *gorm.DB, id uuid.UUID, cause error) error {
	return tx.Model(&models.OutboxEvent{}).Where("id = ?", id).
		Updates(map[string]any{
			"last_error":    clip(cause),
			"attempt_count": gorm.Expr("attempt_count + 1"),
		}).Error
}

// DeadLetter copies row into outbox_dlq and raises its attempt count to the
// ceiling so ClaimBatch never returns it again. Both writes share tx.
func (r *Repository) DeadLetter(tx *gorm.DB, row models.OutboxEvent, reason enums.DeadLetterReason, cause error, ceiling int, at time.Time) error {
	if tx == nil {
		return errNoTx
	}
	msg := clip(cause)
	entry := models.OutboxDeadLetter{
		EventID:       row.ID,
		EventType:     row.EventType,
		AggregateType: row.AggregateType,
		AggregateID:   row.AggregateID,
		Payload:       row.Payload,
		Reason:        reason,
		ErrorMessage:  &msg,
		AttemptCount:  row.AttemptCount,
		FailedAt:      at,
	}
	if err := tx.Create(&entry).Error; err != nil {
		return err
	}
	return tx.Model(&models.OutboxEvent{}).Where("id = ?", row.ID).
		Updates(map[string]any{"last_error": msg, "attempt_count": ceiling}).Error
}

// DeadLetters lists parked events, newest first.
func (r *Repository) DeadLetters(ctx context.Context, limit int) ([]models.OutboxDeadLetter, error) {
	if limit <= 0 {
		limit = 50
	}
	var rows []models.OutboxDeadLetter
	err := r.db.WithContext(ctx).Order("failed_at DESC").Limit(limit).Find(&rows).Error
	return rows, err
}

// DeleteOlderThan removes published rows created before cutoff. Unpublished
// rows are kept whatever their age.
func (r *Repository) DeleteOlderThan(ctx context.Context, tx *gorm.DB, cutoff time.Time) (int64, error) {
	conn := tx
	if conn == nil {
		conn = r.db
	}
	res := conn.WithContext(ctx).
		Where("published_at IS NOT NULL AND created_at < ?", cutoff).
		Delete(&models.OutboxEvent{})
	return res.RowsAffected, res.Error
}

func clip(err error) string {
	if err == nil {
		return ""
	}
	msg := err.Error()
	if len(msg) > maxErrorText {
		msg = msg[:maxErrorText]
	}
	return msg
}
