package notifications

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/vouchernet-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/vouchernet-backend/pkg/errors"
	"github.com/angelmondragon/vouchernet-backend/pkg/pagination"
)

// fakeRepository is shared with the sink tests.
type fakeRepository struct {
	createFn         func(ctx context.Context, notification *models.Notification) error
	pageFn           func(ctx context.Context, q inboxQuery) ([]models.Notification, *pagination.Cursor, error)
	countUnreadFn    func(ctx context.Context, userID uuid.UUID) (int64, error)
	acknowledgeFn    func(ctx context.Context, userID, notificationID uuid.UUID, at time.Time) error
	acknowledgeAllFn func(ctx context.Context, userID uuid.UUID, at time.Time) (int64, error)
}

func (f *fakeRepository) Create(ctx context.Context, notification *models.Notification) error {
	if f.createFn != nil {
		return f.createFn(ctx, notification)
	}
	return nil
}

func (f *fakeRepository) Page(ctx context.Context, q inboxQuery) ([]models.Notification, *pagination.Cursor, error) {
	if f.pageFn != nil {
		return f.pageFn(ctx, q)
	}
	return nil, nil, nil
}

func (f *fakeRepository) CountUnread(ctx context.Context, userID uuid.UUID) (int64, error) {
	if f.countUnreadFn != nil {
		return f.countUnreadFn(ctx, userID)
	}
	return 0, nil
}

func (f *fakeRepository) Acknowledge(ctx context.Context, userID, notificationID uuid.UUID, at time.Time) error {
	if f.acknowledgeFn != nil {
		return f.acknowledgeFn(ctx, userID, notificationID, at)
	}
	return nil
}

func (f *fakeRepository) AcknowledgeAll(ctx context.Context, userID uuid.UUID, at time.Time) (int64, error) {
	if f.acknowledgeAllFn != nil {
		return f.acknowledgeAllFn(ctx, userID, at)
	}
	return 0, nil
}

func (f *fakeRepository) DeleteOlderThan(ctx context.Context, tx *gorm.DB, cutoff time.Time) (int64, error) {
	return 0, nil
}

func newTestService(t *testing.T, repo Repository) Service {
	t.Helper()
	svc, err := NewService(repo)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc
}

func TestListEncodesNextCursorAndUnreadCount(t *testing.T) {
	userID := uuid.New()
	next := pagination.Cursor{CreatedAt: time.Date(2026, 2, 1, 8, 0, 0, 0, time.UTC), ID: uuid.New()}
	after := pagination.Cursor{CreatedAt: next.CreatedAt.Add(time.Hour), ID: uuid.New()}

	repo := &fakeRepository{
		pageFn: func(ctx context.Context, q inboxQuery) ([]models.Notification, *pagination.Cursor, error) {
			if q.UserID != userID || q.Limit != 1 || !q.UnreadOnly {
				t.Fatalf("unexpected query %+v", q)
			}
			if q.After == nil || q.After.ID != after.ID {
				t.Fatalf("expected decoded cursor, got %+v", q.After)
			}
			return []models.Notification{{ID: uuid.New(), UserID: userID}}, &next, nil
		},
		countUnreadFn: func(ctx context.Context, id uuid.UUID) (int64, error) {
			return 4, nil
		},
	}

	result, err := newTestService(t, repo).List(context.Background(), ListParams{
		UserID:     userID,
		Limit:      1,
		Cursor:     pagination.Encode(after),
		UnreadOnly: true,
	})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(result.Items) != 1 || result.UnreadCount != 4 {
		t.Fatalf("unexpected result %+v", result)
	}
	if result.Cursor != pagination.Encode(next) {
		t.Fatalf("expected next cursor to be encoded, got %q", result.Cursor)
	}
}

func TestListRejectsBadInput(t *testing.T) {
	svc := newTestService(t, &fakeRepository{})

	if _, err := svc.List(context.Background(), ListParams{}); pkgerrors.CodeOf(err) != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error for missing user, got %v", err)
	}
	if _, err := svc.List(context.Background(), ListParams{UserID: uuid.New(), Cursor: "!!"}); pkgerrors.CodeOf(err) != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error for bad cursor, got %v", err)
	}
}

func TestMarkReadMapsMissingToNotFound(t *testing.T) {
	repo := &fakeRepository{
		acknowledgeFn: func(ctx context.Context, userID, notificationID uuid.UUID, at time.Time) error {
			return errNotInInbox
		},
	}
	err := newTestService(t, repo).MarkRead(context.Background(), uuid.New(), uuid.New())
	if pkgerrors.CodeOf(err) != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestMarkReadWrapsStorageFailure(t *testing.T) {
	repo := &fakeRepository{
		acknowledgeFn: func(ctx context.Context, userID, notificationID uuid.UUID, at time.Time) error {
			return errors.New("db down")
		},
	}
	err := newTestService(t, repo).MarkRead(context.Background(), uuid.New(), uuid.New())
	if pkgerrors.CodeOf(err) != pkgerrors.CodeDependency {
		t.Fatalf("expected dependency error, got %v", err)
	}
}

func TestMarkAllReadReturnsCount(t *testing.T) {
	userID := uuid.New()
	repo := &fakeRepository{
		acknowledgeAllFn: func(ctx context.Context, id uuid.UUID, at time.Time) (int64, error) {
			if id != userID {
				t.Fatalf("unexpected user %s", id)
			}
			if at.Location() != time.UTC {
				t.Fatalf("expected UTC timestamp")
			}
			return 3, nil
		},
	}
	n, err := newTestService(t, repo).MarkAllRead(context.Background(), userID)
	if err != nil || n != 3 {
		t.Fatalf("expected 3 marked, got %d (%v)", n, err)
	}
}
