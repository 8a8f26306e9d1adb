package scheduler

import (
	"context"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/wefunai/reddit-leads-bot/internal/config"
	"github.com/wefunai/reddit-leads-bot/internal/pipeline"
)

// Service triggers pipeline runs on a cron schedule. Overlap protection
// lives in the pipeline itself; a tick that lands mid-run is simply dropped.
type Service struct {
	config   *config.Config
	pipeline *pipeline.Service
	cron     *cron.Cron
}

// NewService creates a scheduler around the pipeline.
func NewService(cfg *config.Config, p *pipeline.Service) *Service {
	return &Service{
		config:   cfg,
		pipeline: p,
		cron:     cron.New(cron.WithSeconds()),
	}
}

// Start registers the poll job and starts the cron loop.
func (s *Service) Start() error {
	_, err := s.cron.AddFunc(s.config.PollSchedule, func() {
		logrus.Info("Starting scheduled pipeline run")
		if err := s.pipeline.Run(context.Background()); err != nil {
			logrus.Errorf("Scheduled pipeline run failed: %v", err)
		}
	})
	if err != nil {
		return err
	}

	s.cron.Start()
	logrus.Infof("Scheduler started with schedule %q", s.config.PollSchedule)
	return nil
}

// Stop stops the scheduler.
func (s *Service) Stop() {
	if s.cron != nil {
		s.cron.Stop()
		logrus.Info("Scheduler stopped")
	}
}
