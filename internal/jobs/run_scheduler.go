package jobs

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Jerry-Jiayi-He/OTC-ask-price/internal/runner"
)

// Trigger starts a run.
type Trigger interface {
	Start(ctx context.Context, req runner.RunRequest) (runner.RunStatus, error)
}

// RunScheduler periodically starts a full run over every catalog term.
type RunScheduler struct {
	logger   *zap.Logger
	trigger  Trigger
	interval time.Duration
	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewRunScheduler constructs a background job that runs periodically.
func NewRunScheduler(logger *zap.Logger, trigger Trigger, interval time.Duration) *RunScheduler {
	return &RunScheduler{
		logger:   logger,
		trigger:  trigger,
		interval: interval,
		stopCh:   make(chan struct{}),
	}
}

// Start runs the scheduling loop until Stop or ctx cancellation.
func (s *RunScheduler) Start(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info("run_scheduler.started", zap.Duration("interval", s.interval))

	for {
		select {
		case <-ticker.C:
			s.runOnce(ctx)
		case <-s.stopCh:
			s.logger.Info("run_scheduler.stopped (manual stop)")
			return
		case <-ctx.Done():
			s.logger.Info("run_scheduler.stopped (context canceled)")
			return
		}
	}
}

// Stop halts the scheduler. Safe to call more than once.
func (s *RunScheduler) Stop() {
	s.stopOnce.Do(func() { close(s.stopCh) })
}

func (s *RunScheduler) runOnce(ctx context.Context) {
	st, err := s.trigger.Start(ctx, runner.RunRequest{})
	switch {
	case errors.Is(err, runner.ErrRunActive):
		s.logger.Info("run_scheduler.skipped", zap.Error(err))
	case err != nil:
		s.logger.Error("run_scheduler.trigger_failed", zap.Error(err))
	default:
		s.logger.Info("run_scheduler.triggered",
			zap.String("run_id", st.RunID),
			zap.Strings("terms", st.Terms))
	}
}
