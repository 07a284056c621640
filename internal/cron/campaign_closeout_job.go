package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/angelmondragon/vouchernet-backend/pkg/logger"
)

type campaignCloser interface {
	CloseExpiredCampaigns(ctx context.Context, now time.Time) (int64, error)
}

type CampaignCloseoutJobParams struct {
	Logger *logger.Logger
	Closer campaignCloser
}

// NewCampaignCloseoutJob completes gift campaigns whose period and grace
// window have passed.
func NewCampaignCloseoutJob(params CampaignCloseoutJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Closer == nil {
		return nil, fmt.Errorf("campaign closer required")
	}
	return &campaignCloseoutJob{logg: params.Logger, closer: params.Closer, now: time.Now}, nil
}

type campaignCloseoutJob struct {
	logg   *logger.Logger
	closer campaignCloser
	now    func() time.Time
}

func (j *campaignCloseoutJob) Name() string { return "campaign-closeout" }

func (j *campaignCloseoutJob) Run(ctx context.Context) error {
	closed, err := j.closer.CloseExpiredCampaigns(ctx, j.now().UTC())
	if err != nil {
		return err
	}
	j.logg.Info(j.logg.WithField(ctx, "campaigns_closed", closed), "campaign closeout complete")
	return nil
}
