package notifications

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/angelmondragon/vouchernet-backend/pkg/db/models"
	"github.com/angelmondragon/vouchernet-backend/pkg/enums"
	"github.com/angelmondragon/vouchernet-backend/pkg/logger"
)

func TestSinkSendPersistsNotification(t *testing.T) {
	var stored *models.Notification
	repo := &fakeRepository{
		createFn: func(ctx context.Context, notification *models.Notification) error {
			if ctx.Err() != nil {
				t.Fatalf("expected live context, got %v", ctx.Err())
			}
			stored = notification
			return nil
		},
	}
	sink, err := NewSink(SinkParams{Repository: repo, Logger: logger.Nop()})
	if err != nil {
		t.Fatalf("new sink: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	userID := uuid.New()
	sink.Send(ctx, Message{UserID: userID, Title: "Stok habis", Body: "MJ_1hari habis", Severity: enums.NotificationDanger, Link: "/stock"})

	if stored == nil {
		t.Fatal("expected notification to be stored despite cancelled caller context")
	}
	if stored.UserID != userID || stored.Severity != enums.NotificationDanger {
		t.Fatalf("unexpected notification %+v", stored)
	}
	if stored.Link == nil || *stored.Link != "/stock" {
		t.Fatalf("expected link to be set, got %v", stored.Link)
	}
}

func TestSinkSendSwallowsFailures(t *testing.T) {
	repo := &fakeRepository{
		createFn: func(ctx context.Context, notification *models.Notification) error {
			return errors.New("db down")
		},
	}
	sink, err := NewSink(SinkParams{Repository: repo, Logger: logger.Nop()})
	if err != nil {
		t.Fatalf("new sink: %v", err)
	}
	sink.Send(context.Background(), Message{UserID: uuid.New(), Title: "hi"})
}

func TestSinkSendDefaultsSeverityAndSkipsBlankRecipient(t *testing.T) {
	calls := 0
	var severity enums.NotificationSeverity
	repo := &fakeRepository{
		createFn: func(ctx context.Context, notification *models.Notification) error {
			calls++
			severity = notification.Severity
			return nil
		},
	}
	sink, _ := NewSink(SinkParams{Repository: repo, Logger: logger.Nop()})

	sink.Send(context.Background(), Message{Title: "nobody"})
	if calls != 0 {
		t.Fatalf("expected blank recipient to be skipped")
	}

	sink.Send(context.Background(), Message{UserID: uuid.New(), Title: "plain", Severity: "loud"})
	if calls != 1 || severity != enums.NotificationInfo {
		t.Fatalf("expected info fallback, got %q after %d calls", severity, calls)
	}
}

func TestNewSinkRequiresDependencies(t *testing.T) {
	if _, err := NewSink(SinkParams{Logger: logger.Nop()}); err == nil {
		t.Fatal("expected missing repository error")
	}
	if _, err := NewSink(SinkParams{Repository: &fakeRepository{}}); err == nil {
		t.Fatal("expected missing logger error")
	}
}
