package scheduler

import (
	"context"
	"fmt"
	"strings"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/brandlens/brandlens/internal/config"
	"github.com/brandlens/brandlens/internal/models"
)

// Digester produces and delivers the periodic digest.
type Digester interface {
	RunDigest(ctx context.Context, period string) error
}

// Refresher re-triggers collection for the monitored brands on one
// configured interval.
type Refresher interface {
	RefreshBrands(ctx context.Context, frequency string) error
}

// Service schedules the periodic digest and the per-frequency brand
// refresh runs.
type Service struct {
	config    *config.Config
	digester  Digester
	refresher Refresher
	cron      *cron.Cron
}

// NewService creates a new scheduler service
func NewService(cfg *config.Config, digester Digester, refresher Refresher) *Service {
	return &Service{
		config:    cfg,
		digester:  digester,
		refresher: refresher,
		cron:      cron.New(cron.WithSeconds()),
	}
}

// Start begins the scheduled runs.
func (s *Service) Start() error {
	if s.config.DigestSchedule != "" {
		var cronExpression string
		switch s.config.DigestSchedule {
		case "daily":
			// Run daily at 9 AM UTC
			cronExpression = "0 0 9 * * *"
		case "weekly":
			// Run weekly on Monday at 9 AM UTC
			cronExpression = "0 0 9 * * MON"
		default:
			return fmt.Errorf("unsupported digest schedule %q", s.config.DigestSchedule)
		}

		period := s.config.DigestSchedule
		_, err := s.cron.AddFunc(cronExpression, func() {
			logrus.Info("Starting scheduled digest run")
			if err := s.digester.RunDigest(context.Background(), period); err != nil {
				logrus.Errorf("Scheduled digest run failed: %v", err)
			}
		})
		if err != nil {
			return err
		}
	}

	// One job per supported interval; each run refreshes only the brands
	// configured at that interval.
	for _, frequency := range models.Frequencies {
		frequency := frequency // per-iteration copy; go.mod predates Go 1.22 loop semantics
		_, err := s.cron.AddFunc(FrequencySpec(frequency), func() {
			logrus.Infof("Starting scheduled brand refresh (%s)", frequency)
			if err := s.refresher.RefreshBrands(context.Background(), frequency); err != nil {
				logrus.Errorf("Scheduled brand refresh (%s) failed: %v", frequency, err)
			}
		})
		if err != nil {
			return err
		}
	}

	s.cron.Start()
	logrus.Infof("Scheduler started (digest: %s, refresh intervals: %s)",
		orNone(s.config.DigestSchedule), strings.Join(models.Frequencies, ", "))
	return nil
}

// Stop stops the scheduler
func (s *Service) Stop() {
	if s.cron != nil {
		s.cron.Stop()
		logrus.Info("Scheduler stopped")
	}
}

// FrequencySpec maps a brand monitoring interval onto a cron spec.
// Unrecognized intervals fall back to the default.
func FrequencySpec(frequency string) string {
	for _, f := range models.Frequencies {
		if frequency == f {
			return "@every " + frequency
		}
	}
	return "@every " + models.DefaultFrequency
}

func orNone(s string) string {
	if s == "" {
		return "none"
	}
	return s
}
