package activity

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/vouchernet-backend/pkg/db/dbtest"
	"github.com/angelmondragon/vouchernet-backend/pkg/db/models"
	"github.com/angelmondragon/vouchernet-backend/pkg/logger"
)

type fakeRepository struct {
	createFn func(ctx context.Context, entry *models.ActivityLog) error
}

func (f *fakeRepository) WithTx(tx *gorm.DB) Repository { return f }

func (f *fakeRepository) Create(ctx context.Context, entry *models.ActivityLog) error {
	if f.createFn != nil {
		return f.createFn(ctx, entry)
	}
	return nil
}

func (f *fakeRepository) ListByUser(ctx context.Context, userID uuid.UUID, since time.Time) ([]models.ActivityLog, error) {
	return nil, nil
}

func TestAppendPersistsEntry(t *testing.T) {
	client := dbtest.Open(t)
	repo := NewRepository(client.DB())
	log, err := NewLog(LogParams{Repository: repo, Logger: logger.Nop()})
	if err != nil {
		t.Fatalf("new log: %v", err)
	}

	userID := uuid.New()
	log.Append(context.Background(), &userID, ActionSaleRecorded, "sold 3 MJ_1hari")

	entries, err := repo.ListByUser(context.Background(), userID, time.Now().Add(-time.Hour))
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(entries) != 1 || entries[0].Action != ActionSaleRecorded {
		t.Fatalf("unexpected entries %+v", entries)
	}
}

func TestAppendSwallowsErrors(t *testing.T) {
	called := false
	log, err := NewLog(LogParams{
		Repository: &fakeRepository{createFn: func(ctx context.Context, entry *models.ActivityLog) error {
			called = true
			return errors.New("disk full")
		}},
		Logger: logger.Nop(),
	})
	if err != nil {
		t.Fatalf("new log: %v", err)
	}

	log.Append(context.Background(), nil, ActionStockAdded, "system restock")
	if !called {
		t.Fatal("expected repository to be called")
	}
}

func TestAppendSkipsBlankAction(t *testing.T) {
	log, _ := NewLog(LogParams{
		Repository: &fakeRepository{createFn: func(ctx context.Context, entry *models.ActivityLog) error {
			t.Fatal("blank actions must not be written")
			return nil
		}},
		Logger: logger.Nop(),
	})
	log.Append(context.Background(), nil, "  ", "nothing")
}
