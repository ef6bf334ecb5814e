package refresh

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// DefaultSweepInterval is used when Sweeper is started with a zero interval.
const DefaultSweepInterval = time.Hour

// Sweeper periodically purges expired ledger rows.
type Sweeper struct {
	ledger   *Ledger
	interval time.Duration
	logger   *zap.Logger
	onPurge  func(n int64)
}

// NewSweeper builds a Sweeper. onPurge may be nil.
func NewSweeper(ledger *Ledger, interval time.Duration, logger *zap.Logger, onPurge func(n int64)) *Sweeper {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Sweeper{
		ledger:   ledger,
		interval: interval,
		logger:   logger.Named("refresh_sweeper"),
		onPurge:  onPurge,
	}
}

// RunOnce performs a single purge.
func (s *Sweeper) RunOnce(ctx context.Context) (int64, error) {
	n, err := s.ledger.Sweep(ctx)
	if err != nil {
		s.logger.Warn("refresh sweep failed", zap.Error(err))
		return 0, err
	}
	if n > 0 {
		s.logger.Info("purged expired refresh tokens", zap.Int64("count", n))
		if s.onPurge != nil {
			s.onPurge(n)
		}
	}
	return n, nil
}

// Run sweeps once immediately and then on every tick until ctx is done.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	_, _ = s.RunOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_, _ = s.RunOnce(ctx)
		}
	}
}
