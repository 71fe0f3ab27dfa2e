package executors

import (
	"context"
	"time"

	logger "github.com/sirupsen/logrus"

	"github.com/mrsteinmetz/follow-the-goat-sub005/src/model"
)

type dueSampler interface {
	SampleDue(ctx context.Context) error
}

type miningRunner interface {
	RunMiningCycle(ctx context.Context) (*model.MiningRun, error)
}

// StartTrailLoop drives the per-minute trail sampling until the context is
// cancelled. A failed tick is logged and the loop keeps going, the next tick
// picks up whatever offsets were missed.
func StartTrailLoop(ctx context.Context, recorder dueSampler, period time.Duration) error {
	if period <= 0 {
		period = time.Minute
	}

	ticker := time.NewTicker(period)
	defer ticker.Stop()

	logger.WithField("period", period.String()).Info("Trail loop started")

	for {
		select {
		case <-ctx.Done():
			logger.Info("Trail loop stopped")
			return nil

		case <-ticker.C:
			if err := recorder.SampleDue(ctx); err != nil {
				logger.WithError(err).Error("Trail sampling tick failed")
			}
		}
	}
}

// StartMinerLoop runs mining cycles on a fixed cadence until the context is
// cancelled. A failed cycle never stops the loop: the previously mined rule
// set stays active and the next cycle tries again.
func StartMinerLoop(ctx context.Context, runner miningRunner, interval time.Duration) error {
	if interval <= 0 {
		interval = 10 * time.Minute
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	logger.WithField("interval", interval.String()).Info("Miner loop started")

	for {
		select {
		case <-ctx.Done():
			logger.Info("Miner loop stopped")
			return nil

		case <-ticker.C:
			if _, err := runner.RunMiningCycle(ctx); err != nil {
				logger.WithError(err).Error("Mining cycle failed, previous rule set stays active")
			}
		}
	}
}
