package cron

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/vouchernet-backend/pkg/db/dbtest"
	"github.com/angelmondragon/vouchernet-backend/pkg/db/models"
	"github.com/angelmondragon/vouchernet-backend/pkg/enums"
	"github.com/angelmondragon/vouchernet-backend/pkg/logger"
	"github.com/angelmondragon/vouchernet-backend/pkg/outbox"
)

type fakePurger struct {
	cutoff time.Time
	calls  int
	err    error
}

func (f *fakePurger) DeleteOlderThan(_ context.Context, _ *gorm.DB, cutoff time.Time) (int64, error) {
	f.calls++
	f.cutoff = cutoff
	return 3, f.err
}

type passthroughTx struct{}

func (passthroughTx) WithTx(_ context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

func newRetention(t *testing.T, purger Purger, days int) *retentionJob {
	t.Helper()
	job, err := NewRetentionJob(RetentionJobParams{
		Name:          "notification-retention",
		Logger:        logger.Nop(),
		DB:            passthroughTx{},
		Purger:        purger,
		RetentionDays: days,
	})
	if err != nil {
		t.Fatalf("NewRetentionJob: %v", err)
	}
	return job.(*retentionJob)
}

func TestRetentionJobUsesWindow(t *testing.T) {
	now := time.Date(2026, 3, 31, 12, 0, 0, 0, time.UTC)
	purger := &fakePurger{}
	job := newRetention(t, purger, 0)
	job.now = func() time.Time { return now }

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	want := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	if !purger.cutoff.Equal(want) || purger.calls != 1 {
		t.Fatalf("expected one purge at %s, got %d at %s", want, purger.calls, purger.cutoff)
	}
}

func TestRetentionJobPropagatesError(t *testing.T) {
	job := newRetention(t, &fakePurger{err: errors.New("boom")}, 7)
	if err := job.Run(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}

func TestRetentionJobPurgesPublishedOutboxRows(t *testing.T) {
	client := dbtest.Open(t)
	repo := outbox.NewRepository(client.DB())
	old := time.Now().UTC().AddDate(0, 0, -40)
	published := old
	rows := []models.OutboxEvent{
		{ID: uuid.New(), EventType: enums.EventSaleRecorded, AggregateType: enums.AggregateSaleRecord, AggregateID: uuid.New(), Payload: []byte(`{}`), CreatedAt: old, PublishedAt: &published},
		{ID: uuid.New(), EventType: enums.EventSaleRecorded, AggregateType: enums.AggregateSaleRecord, AggregateID: uuid.New(), Payload: []byte(`{}`), CreatedAt: old},
	}
	if err := client.DB().Create(&rows).Error; err != nil {
		t.Fatalf("seed outbox: %v", err)
	}

	job, err := NewRetentionJob(RetentionJobParams{
		Name:          "outbox-retention",
		Logger:        logger.Nop(),
		DB:            client,
		Purger:        repo,
		RetentionDays: 30,
	})
	if err != nil {
		t.Fatalf("NewRetentionJob: %v", err)
	}
	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	var left int64
	client.DB().Model(&models.OutboxEvent{}).Count(&left)
	if left != 1 {
		t.Fatalf("expected unpublished row kept, %d rows left", left)
	}
}

type fakeCloser struct {
	now    time.Time
	closed int64
}

func (f *fakeCloser) CloseExpiredCampaigns(_ context.Context, now time.Time) (int64, error) {
	f.now = now
	return f.closed, nil
}

func TestCampaignCloseoutJob(t *testing.T) {
	closer := &fakeCloser{closed: 2}
	jobIface, err := NewCampaignCloseoutJob(CampaignCloseoutJobParams{Logger: logger.Nop(), Closer: closer})
	if err != nil {
		t.Fatalf("NewCampaignCloseoutJob: %v", err)
	}
	job := jobIface.(*campaignCloseoutJob)
	now := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	job.now = func() time.Time { return now }

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !closer.now.Equal(now) {
		t.Fatalf("expected closer called with %s, got %s", now, closer.now)
	}
	if job.Name() != "campaign-closeout" {
		t.Fatalf("unexpected name %q", job.Name())
	}
}
