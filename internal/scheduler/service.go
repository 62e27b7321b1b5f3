package scheduler

import (
	"github.com/brandguard/brandguard-bot/internal/config"
	"github.com/brandguard/brandguard-bot/internal/monitoring"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// Service handles scheduling of scout sweeps
type Service struct {
	config            *config.Config
	monitoringService *monitoring.Service
	cron              *cron.Cron
}

// NewService creates a new scheduler service
func NewService(cfg *config.Config, monitoringService *monitoring.Service) *Service {
	return &Service{
		config:            cfg,
		monitoringService: monitoringService,
		cron:              cron.New(cron.WithSeconds()),
	}
}

// Start begins the scheduled sweeps
func (s *Service) Start() error {
	var cronExpression string

	switch s.config.SweepSchedule {
	case "daily":
		// Run daily at 9 AM UTC
		cronExpression = "0 0 9 * * *"
	case "hourly":
		cronExpression = "0 0 * * * *"
	default:
		cronExpression = "0 0 * * * *"
	}

	_, err := s.cron.AddFunc(cronExpression, func() {
		logrus.Info("Starting scheduled scout sweep")
		if err := s.monitoringService.RunSweep(); err != nil {
			logrus.Errorf("Scheduled scout sweep failed: %v", err)
		}
	})

	if err != nil {
		return err
	}

	// Also add a more frequent check for critical alerts (every 15 minutes)
	_, err = s.cron.AddFunc("0 */15 * * * *", func() {
		logrus.Info("Starting critical alert check")
		if err := s.monitoringService.RunCriticalCheck(); err != nil {
			logrus.Errorf("Critical alert check failed: %v", err)
		}
	})

	if err != nil {
		return err
	}

	s.cron.Start()
	logrus.Infof("Scheduler started with %s sweep schedule (plus critical checks every 15 minutes)", s.config.SweepSchedule)
	return nil
}

// Stop stops the scheduler
func (s *Service) Stop() {
	if s.cron != nil {
		s.cron.Stop()
		logrus.Info("Scheduler stopped")
	}
}
