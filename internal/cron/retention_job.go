package cron

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/angelmondragon/vouchernet-backend/pkg/logger"
)

const defaultRetentionDays = 30

// Purger deletes rows older than cutoff. Both the notification and outbox
// repositories satisfy it.
type Purger interface {
	DeleteOlderThan(ctx context.Context, tx *gorm.DB, cutoff time.Time) (int64, error)
}

type RetentionJobParams struct {
	Name          string
	Logger        *logger.Logger
	DB            txRunner
	Purger        Purger
	RetentionDays int
}

// NewRetentionJob builds a job that purges rows past the retention window.
func NewRetentionJob(params RetentionJobParams) (Job, error) {
	switch {
	case params.Name == "":
		return nil, fmt.Errorf("job name required")
	case params.Logger == nil:
		return nil, fmt.Errorf("logger required")
	case params.DB == nil:
		return nil, fmt.Errorf("db runner required")
	case params.Purger == nil:
		return nil, fmt.Errorf("purger required")
	}
	days := params.RetentionDays
	if days <= 0 {
		days = defaultRetentionDays
	}
	return &retentionJob{
		name:   params.Name,
		logg:   params.Logger,
		db:     params.DB,
		purger: params.Purger,
		days:   days,
		now:    time.Now,
	}, nil
}

type retentionJob struct {
	name   string
	logg   *logger.Logger
	db     txRunner
	purger Purger
	days   int
	now    func() time.Time
}

func (j *retentionJob) Name() string { return j.name }

func (j *retentionJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().AddDate(0, 0, -j.days)
	var deleted int64
	err := j.db.WithTx(ctx, func(tx *gorm.DB) error {
		rows, err := j.purger.DeleteOlderThan(ctx, tx, cutoff)
		deleted = rows
		return err
	})
	if err != nil {
		return fmt.Errorf("purge before %s: %w", cutoff.Format(time.RFC3339), err)
	}
	j.logg.Info(j.logg.WithFields(ctx, map[string]any{
		"cutoff":         cutoff,
		"retention_days": j.days,
		"rows_deleted":   deleted,
	}), "retention purge complete")
	return nil
}
