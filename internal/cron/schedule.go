package cron

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Job is one maintenance step of the cron worker.
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

type entry struct {
	job   Job
	every time.Duration
}

// Schedule lists jobs with their cadence, in registration order.
type Schedule struct {
	entries []entry
}

// Every adds job to run at most once per period across all replicas.
func (s *Schedule) Every(every time.Duration, job Job) error {
	if job == nil {
		return errors.New("nil job")
	}
	if every <= 0 {
		return fmt.Errorf("%s: period must be positive", job.Name())
	}
	for _, e := range s.entries {
		if e.job.Name() == job.Name() {
			return fmt.Errorf("%s scheduled twice", job.Name())
		}
	}
	s.entries = append(s.entries, entry{job: job, every: every})
	return nil
}

func (s *Schedule) Len() int {
	return len(s.entries)
}
