package worker

import (
	"context"
	"time"

	"shop-service/internal/util"

	"go.uber.org/zap"
)

const sweepLockKey = "referral-hold-sweep"

// Locker is a distributed mutex keyed by name
type Locker interface {
	AcquireLock(ctx context.Context, key string, ttl time.Duration) (token string, ok bool, err error)
	ReleaseLock(ctx context.Context, key, token string) error
}

// HoldProcessor completes referrals whose hold has elapsed
type HoldProcessor interface {
	ProcessHoldExpired(ctx context.Context) (int, error)
}

// HoldSweeper runs the hold-expiry pass on a fixed interval. With a Locker, at most one
// instance sweeps at a time; without one every tick sweeps.
type HoldSweeper struct {
	processor HoldProcessor
	locker    Locker
	interval  time.Duration
	lockTTL   time.Duration
	logger    *zap.Logger
}

// NewHoldSweeper creates a sweeper. locker may be nil.
func NewHoldSweeper(processor HoldProcessor, locker Locker, interval time.Duration) *HoldSweeper {
	return &HoldSweeper{
		processor: processor,
		locker:    locker,
		interval:  interval,
		lockTTL:   interval,
		logger:    util.GetLogger(),
	}
}

// Start sweeps once right away and then on every tick until ctx is done
func (s *HoldSweeper) Start(ctx context.Context) error {
	s.logger.Info("Starting referral hold sweeper", zap.Duration("interval", s.interval))

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		s.SweepOnce(ctx)

		select {
		case <-ctx.Done():
			s.logger.Info("Stopping referral hold sweeper")
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// SweepOnce runs a single pass and reports whether it ran
func (s *HoldSweeper) SweepOnce(ctx context.Context) bool {
	if s.locker != nil {
		token, ok, err := s.locker.AcquireLock(ctx, sweepLockKey, s.lockTTL)
		if err != nil {
			util.HoldSweepRuns.WithLabelValues("lock_error").Inc()
			s.logger.Error("Failed to acquire sweep lock", zap.Error(err))
			return false
		}
		if !ok {
			util.HoldSweepRuns.WithLabelValues("skipped").Inc()
			s.logger.Debug("Sweep already running elsewhere")
			return false
		}
		defer func() {
			if err := s.locker.ReleaseLock(context.Background(), sweepLockKey, token); err != nil {
				s.logger.Warn("Failed to release sweep lock", zap.Error(err))
			}
		}()
	}

	completed, err := s.processor.ProcessHoldExpired(ctx)
	if err != nil {
		util.HoldSweepRuns.WithLabelValues("error").Inc()
		s.logger.Error("Hold sweep finished with errors", zap.Int("completed", completed), zap.Error(err))
		return true
	}

	util.HoldSweepRuns.WithLabelValues("ok").Inc()
	if completed > 0 {
		s.logger.Info("Hold sweep completed referrals", zap.Int("completed", completed))
	}
	return true
}
