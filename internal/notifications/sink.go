package notifications

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/vouchernet-backend/pkg/db/models"
	"github.com/angelmondragon/vouchernet-backend/pkg/enums"
	"github.com/angelmondragon/vouchernet-backend/pkg/logger"
	"github.com/angelmondragon/vouchernet-backend/pkg/metrics"
)

const defaultSendTimeout = 5 * time.Second

// Message is one notification addressed to a single user.
type Message struct {
	UserID   uuid.UUID
	Title    string
	Body     string
	Severity enums.NotificationSeverity
	Link     string
}

// Sink stores notifications for the in-app inbox. Delivery is best effort:
// Send never reports failure to the caller.
type Sink struct {
	repo    Repository
	logg    *logger.Logger
	metrics *metrics.LedgerMetrics
	timeout time.Duration
}

type SinkParams struct {
	Repository Repository
	Logger     *logger.Logger
	Metrics    *metrics.LedgerMetrics
	Timeout    time.Duration
}

func NewSink(params SinkParams) (*Sink, error) {
	if params.Repository == nil {
		return nil, fmt.Errorf("notifications repository required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	timeout := params.Timeout
	if timeout <= 0 {
		timeout = defaultSendTimeout
	}
	return &Sink{
		repo:    params.Repository,
		logg:    params.Logger,
		metrics: params.Metrics,
		timeout: timeout,
	}, nil
}

// Send persists msg outside of any caller transaction. The caller's
// cancellation is ignored so a finished request still gets its notifications.
func (s *Sink) Send(ctx context.Context, msg Message) {
	ctx = s.logg.WithFields(ctx, map[string]any{
		"notify_user_id": msg.UserID.String(),
		"notify_title":   msg.Title,
	})
	if msg.UserID == uuid.Nil || strings.TrimSpace(msg.Title) == "" {
		s.logg.Warn(ctx, "notification skipped: missing recipient or title")
		s.metrics.IncSideEffectFailure("notification")
		return
	}
	severity := msg.Severity
	if !severity.IsValid() {
		severity = enums.NotificationInfo
	}

	sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
	defer cancel()

	row := &models.Notification{
		UserID:   msg.UserID,
		Severity: severity,
		Title:    msg.Title,
		Message:  msg.Body,
	}
	if link := strings.TrimSpace(msg.Link); link != "" {
		row.Link = &link
	}
	if err := s.repo.Create(sendCtx, row); err != nil {
		s.logg.Error(ctx, "notification dropped", err)
		s.metrics.IncSideEffectFailure("notification")
	}
}
