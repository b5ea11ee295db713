package cron

import (
	"context"
	"errors"
	"time"

	"github.com/rafaelcosta/muralize-backend/pkg/logger"
)

const defaultExpiryBatchSize = 200

// subscriptionExpirer is the slice of the subscriptions service the job needs.
type subscriptionExpirer interface {
	ProcessExpired(ctx context.Context, asOf time.Time, limit int) (int, error)
}

// SubscriptionExpiryJob sweeps subscriptions whose paid period has lapsed
// without a renewal event and expires them.
type SubscriptionExpiryJob struct {
	expirer   subscriptionExpirer
	logg      *logger.Logger
	batchSize int
}

// NewSubscriptionExpiryJob builds the expiry sweep job.
func NewSubscriptionExpiryJob(expirer subscriptionExpirer, logg *logger.Logger, batchSize int) (*SubscriptionExpiryJob, error) {
	if expirer == nil {
		return nil, errors.New("subscription expirer is required")
	}
	if logg == nil {
		return nil, errors.New("logger is required")
	}
	if batchSize <= 0 {
		batchSize = defaultExpiryBatchSize
	}
	return &SubscriptionExpiryJob{expirer: expirer, logg: logg, batchSize: batchSize}, nil
}

func (j *SubscriptionExpiryJob) Name() string {
	return "subscription-expiry"
}

// Run sweeps in batches until a pass comes back empty, so a backlog left by
// worker downtime drains in a single cycle.
func (j *SubscriptionExpiryJob) Run(ctx context.Context) error {
	asOf := time.Now().UTC()
	total := 0
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		expired, err := j.expirer.ProcessExpired(ctx, asOf, j.batchSize)
		if err != nil {
			return err
		}
		total += expired
		if expired < j.batchSize {
			break
		}
	}
	if total > 0 {
		logCtx := j.logg.WithField(ctx, "expired", total)
		j.logg.Info(logCtx, "expired lapsed subscriptions")
	}
	return nil
}
