// Package scheduler runs automatic matching for every active terminal on a cron schedule.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/limistah/conciliation-service/internal/logger"
	"github.com/limistah/conciliation-service/internal/matching"
	"github.com/limistah/conciliation-service/internal/models"
	"github.com/limistah/conciliation-service/internal/usecases"
	"github.com/limistah/conciliation-service/internal/utils"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

const moduleName = "Scheduler"

// TerminalLister pages through terminals
type TerminalLister interface {
	ListTerminals(ctx context.Context, activeOnly bool, page, pageSize int) ([]models.Terminal, error)
}

// SystemUserFinder resolves the operator scheduled runs are attributed to
type SystemUserFinder interface {
	GetSystemUser(ctx context.Context) (*models.User, error)
}

// MatchingRunner runs automatic matching for one terminal and period
type MatchingRunner interface {
	RunAutomaticMatching(ctx context.Context, terminalID uint, period models.Period, tol *matching.Tolerance, operatorID uint) (*usecases.RunResult, error)
}

// Summary counts the outcome of one scheduled pass.
type Summary struct {
	Runs    int
	Failed  int
	Skipped int
}

type Scheduler struct {
	cron       *cron.Cron
	terminals  TerminalLister
	users      SystemUserFinder
	runner     MatchingRunner
	dayWindow  int
	runTimeout time.Duration
	logger     logrus.FieldLogger
	now        func() time.Time
}

// New builds a scheduler. dayWindow is the matching day tolerance: during the
// first dayWindow+1 days of a month the previous month is matched again, since
// its settlements are still landing.
func New(terminals TerminalLister, users SystemUserFinder, runner MatchingRunner, dayWindow int, logger logrus.FieldLogger) *Scheduler {
	return &Scheduler{
		cron:       cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		terminals:  terminals,
		users:      users,
		runner:     runner,
		dayWindow:  dayWindow,
		runTimeout: 10 * time.Minute,
		logger:     logger,
		now:        time.Now,
	}
}

// Start registers the pass on a standard 5-field cron expression and starts the cron loop.
func (s *Scheduler) Start(schedule string) error {
	if _, err := cron.ParseStandard(schedule); err != nil {
		return fmt.Errorf("invalid scheduler cron %q: %w", schedule, err)
	}
	if _, err := s.cron.AddFunc(schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.runTimeout)
		defer cancel()
		s.RunOnce(ctx)
	}); err != nil {
		return err
	}

	s.cron.Start()
	s.logger.WithField("cron", schedule).Info("reconciliation scheduler started")
	return nil
}

// Stop waits for a running pass to finish or for ctx to expire.
func (s *Scheduler) Stop(ctx context.Context) error {
	select {
	case <-s.cron.Stop().Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RunOnce matches the open periods of every active terminal.
func (s *Scheduler) RunOnce(ctx context.Context) Summary {
	var summary Summary

	system, err := s.users.GetSystemUser(ctx)
	if err != nil {
		logger.LogError(s.logger, moduleName, "RunOnce", "loading system operator", nil, err)
		return summary
	}

	terminals, err := s.activeTerminals(ctx)
	if err != nil {
		logger.LogError(s.logger, moduleName, "RunOnce", "listing active terminals", nil, err)
		return summary
	}

	periods := OpenPeriods(s.now(), s.dayWindow)
	for _, terminal := range terminals {
		for _, period := range periods {
			if ctx.Err() != nil {
				return summary
			}

			_, err := s.runner.RunAutomaticMatching(ctx, terminal.ID, period, nil, system.ID)
			switch {
			case err == nil:
				summary.Runs++
			case errors.Is(err, usecases.ErrReconciliationInProgress):
				summary.Skipped++
			default:
				summary.Failed++
				logger.LogError(s.logger, moduleName, "RunOnce", "automatic matching", logrus.Fields{
					"terminal_id": terminal.ID,
					"period":      period.String(),
				}, err)
			}
		}
	}

	s.logger.WithFields(logrus.Fields{
		"terminals": len(terminals),
		"runs":      summary.Runs,
		"failed":    summary.Failed,
		"skipped":   summary.Skipped,
	}).Info("scheduled reconciliation pass finished")
	return summary
}

func (s *Scheduler) activeTerminals(ctx context.Context) ([]models.Terminal, error) {
	var all []models.Terminal
	for page := 1; ; page++ {
		batch, err := s.terminals.ListTerminals(ctx, true, page, utils.MaxPageSize)
		if err != nil {
			return nil, err
		}
		all = append(all, batch...)
		if len(batch) < utils.MaxPageSize {
			return all, nil
		}
	}
}

// OpenPeriods returns the current period, preceded by the previous one while
// its settlements can still arrive.
func OpenPeriods(now time.Time, dayWindow int) []models.Period {
	current := models.PeriodOf(now)
	if now.UTC().Day() > dayWindow+1 {
		return []models.Period{current}
	}
	previous := current.Previous()
	return []models.Period{previous, current}
}
