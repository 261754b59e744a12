package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// Scheduler runs the daily usage digest.
type Scheduler struct {
	cron       *cron.Cron
	ctx        context.Context
	cancel     context.CancelFunc
	logger     *slog.Logger
	reportFunc func(ctx context.Context) error
}

func New(logger *slog.Logger) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		cron:   cron.New(cron.WithLocation(time.UTC)),
		ctx:    ctx,
		cancel: cancel,
		logger: logger,
	}
}

// SetReportFunction sets the function invoked by the daily job.
func (s *Scheduler) SetReportFunction(f func(ctx context.Context) error) {
	s.reportFunc = f
}

func (s *Scheduler) Start() error {
	if s.reportFunc == nil {
		s.logger.Warn("report function not set, scheduler will not generate reports")
		return nil
	}

	// Daily at 21:00 UTC
	_, err := s.cron.AddFunc("0 21 * * *", func() {
		s.logger.Info("triggered daily report generation")
		if err := s.reportFunc(s.ctx); err != nil {
			s.logger.Error("daily report generation failed", "error", err)
		}
	})
	if err != nil {
		return err
	}

	s.cron.Start()
	s.logger.Info("scheduler started, daily reports at 21:00 UTC")
	return nil
}

func (s *Scheduler) Stop() {
	if s.cron != nil {
		ctx := s.cron.Stop()
		<-ctx.Done()
	}
	if s.cancel != nil {
		s.cancel()
	}
	s.logger.Info("scheduler stopped")
}
