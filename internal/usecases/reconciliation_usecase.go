package usecases

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/limistah/conciliation-service/internal/config"
	"github.com/limistah/conciliation-service/internal/locking"
	"github.com/limistah/conciliation-service/internal/logger"
	"github.com/limistah/conciliation-service/internal/matching"
	"github.com/limistah/conciliation-service/internal/metrics"
	"github.com/limistah/conciliation-service/internal/models"
	"github.com/limistah/conciliation-service/internal/report"
	"github.com/limistah/conciliation-service/internal/repositories"
	"github.com/limistah/conciliation-service/internal/utils"
	"github.com/sirupsen/logrus"
)

const reconciliationModule = "ReconciliationUseCase"

// Run kinds, used as the metrics label and in logs.
const (
	RunKindSummary   = "summary"
	RunKindAutomatic = "automatic"
	RunKindGrouped   = "grouped"
	RunKindManual    = "manual"
)

// RunResult reports what one reconciliation run changed
type RunResult struct {
	RunID              string
	Summary            *models.Reconciliation
	Matches            []matching.Match
	NewDivergences     int
	ClearedDivergences int
}

// MatchedSales counts the sales reconciled by the run
func (r *RunResult) MatchedSales() int {
	n := 0
	for _, m := range r.Matches {
		n += len(m.SaleIDs)
	}
	return n
}

type reconciliationUseCase struct {
	repos  *repositories.Repositories
	locker locking.Locker
	cfg    config.ReconciliationConfig
	logger logrus.FieldLogger
	now    func() time.Time
}

// NewReconciliationUseCase creates a new reconciliation use case
func NewReconciliationUseCase(repos *repositories.Repositories, locker locking.Locker, cfg config.ReconciliationConfig, logger logrus.FieldLogger) ReconciliationUseCase {
	return &reconciliationUseCase{
		repos:  repos,
		locker: locker,
		cfg:    cfg,
		logger: logger,
		now:    time.Now,
	}
}

// Reconcile recomputes the period summary and flags every pending record
// that has no divergence yet. It does not match anything.
func (uc *reconciliationUseCase) Reconcile(ctx context.Context, terminalID uint, period models.Period, operatorID uint) (*RunResult, error) {
	if _, err := uc.repos.Terminal.GetByID(ctx, terminalID); err != nil {
		return nil, err
	}
	return uc.execute(ctx, runJob{
		kind:       RunKindSummary,
		terminalID: terminalID,
		period:     period,
		tol:        uc.defaultTolerance(),
		operatorID: operatorID,
		classify:   true,
	})
}

func (uc *reconciliationUseCase) RunAutomaticMatching(ctx context.Context, terminalID uint, period models.Period, tol *matching.Tolerance, operatorID uint) (*RunResult, error) {
	tolerance, err := uc.tolerance(tol)
	if err != nil {
		return nil, err
	}
	if _, err := uc.activeTerminal(ctx, terminalID); err != nil {
		return nil, err
	}
	return uc.execute(ctx, runJob{
		kind:       RunKindAutomatic,
		terminalID: terminalID,
		period:     period,
		tol:        tolerance,
		operatorID: operatorID,
		classify:   true,
		plan: func(_ context.Context, st *periodState) ([]matching.Match, error) {
			return matching.Run(st.pendingSales(), st.pendingReceipts(), tolerance).Matches, nil
		},
	})
}

func (uc *reconciliationUseCase) RunGroupedMatching(ctx context.Context, terminalID uint, period models.Period, tol *matching.Tolerance, operatorID uint) (*RunResult, error) {
	tolerance, err := uc.tolerance(tol)
	if err != nil {
		return nil, err
	}
	if _, err := uc.activeTerminal(ctx, terminalID); err != nil {
		return nil, err
	}
	return uc.execute(ctx, runJob{
		kind:       RunKindGrouped,
		terminalID: terminalID,
		period:     period,
		tol:        tolerance,
		operatorID: operatorID,
		classify:   true,
		plan: func(_ context.Context, st *periodState) ([]matching.Match, error) {
			return matching.RunGrouped(st.pendingSales(), st.pendingReceipts(), tolerance).Matches, nil
		},
	})
}

// GetReconciliation returns the stored summary, or a PENDING one when the period never ran
func (uc *reconciliationUseCase) GetReconciliation(ctx context.Context, terminalID uint, period models.Period) (*models.Reconciliation, error) {
	if _, err := uc.repos.Terminal.GetByID(ctx, terminalID); err != nil {
		return nil, err
	}
	return uc.currentSummary(ctx, terminalID, period)
}

func (uc *reconciliationUseCase) ListReconciliations(ctx context.Context, terminalID uint, page, pageSize int) ([]models.Reconciliation, error) {
	if _, err := uc.repos.Terminal.GetByID(ctx, terminalID); err != nil {
		return nil, err
	}
	offset, limit := utils.Paginate(page, pageSize)
	return uc.repos.Reconciliation.List(ctx, terminalID, offset, limit)
}

func (uc *reconciliationUseCase) GetDivergences(ctx context.Context, terminalID uint, period models.Period, status models.DivergenceStatus) ([]models.Divergence, error) {
	if _, err := uc.repos.Terminal.GetByID(ctx, terminalID); err != nil {
		return nil, err
	}
	return uc.repos.Divergence.ListByPeriod(ctx, terminalID, period.String(), status)
}

// LinkManually pairs a sale with a receipt regardless of tolerances. Linking
// the same pair twice is a no-op.
func (uc *reconciliationUseCase) LinkManually(ctx context.Context, saleID, receiptID, operatorID uint) (*RunResult, error) {
	sale, err := uc.repos.Sale.GetByID(ctx, saleID)
	if err != nil {
		return nil, fmt.Errorf("sale %d: %w", saleID, err)
	}
	receipt, err := uc.repos.Receipt.GetByID(ctx, receiptID)
	if err != nil {
		return nil, fmt.Errorf("receipt %d: %w", receiptID, err)
	}
	if sale.TerminalID != receipt.TerminalID {
		return nil, ErrTerminalMismatch
	}

	period := models.PeriodOf(sale.TransactionDate)
	if linkedPair(sale, receipt) {
		summary, err := uc.currentSummary(ctx, sale.TerminalID, period)
		if err != nil {
			return nil, err
		}
		return &RunResult{Summary: summary}, nil
	}
	if sale.IsReconciled() || receipt.IsReconciled() {
		return nil, ErrAlreadyLinked
	}

	return uc.execute(ctx, runJob{
		kind:       RunKindManual,
		terminalID: sale.TerminalID,
		period:     period,
		tol:        uc.defaultTolerance(),
		operatorID: operatorID,
		plan: func(ctx context.Context, st *periodState) ([]matching.Match, error) {
			s := st.sale(saleID)
			if s == nil {
				return nil, fmt.Errorf("sale %d: %w", saleID, ErrNotFound)
			}
			r := st.receipt(receiptID)
			if r == nil {
				fetched, err := uc.repos.Receipt.GetByID(ctx, receiptID)
				if err != nil {
					return nil, fmt.Errorf("receipt %d: %w", receiptID, err)
				}
				r = st.addReceipt(*fetched)
			}
			if linkedPair(s, r) {
				return nil, nil
			}
			if s.IsReconciled() || r.IsReconciled() {
				return nil, ErrAlreadyLinked
			}
			return []matching.Match{{SaleIDs: []uint{saleID}, ReceiptID: receiptID, Method: models.MatchMethodManual}}, nil
		},
	})
}

// Unlink is declared for API completeness. Reconciled records never go back to PENDING.
func (uc *reconciliationUseCase) Unlink(ctx context.Context, saleID, operatorID uint) error {
	uc.logger.WithFields(logrus.Fields{"sale_id": saleID, "operator_id": operatorID}).Warn("unlink requested but not supported")
	return ErrUnlinkNotSupported
}

// ResolveDivergence closes one divergence. Totals and the rate are left
// untouched; only the divergence counters and the summary status move.
func (uc *reconciliationUseCase) ResolveDivergence(ctx context.Context, divergenceID uint, kind models.ResolutionKind, reason string, operatorID uint) (*models.Divergence, error) {
	reason = strings.TrimSpace(reason)
	if !models.IsValidResolutionKind(kind) || reason == "" {
		return nil, ErrInvalidResolution
	}

	divergence, err := uc.repos.Divergence.GetByID(ctx, divergenceID)
	if err != nil {
		return nil, err
	}
	if divergence.IsResolved() {
		return nil, ErrDivergenceResolved
	}
	period, err := models.ParsePeriod(divergence.Period)
	if err != nil {
		return nil, err
	}

	err = uc.withLock(ctx, divergence.TerminalID, period, func() error {
		current, err := uc.repos.Divergence.GetByID(ctx, divergenceID)
		if err != nil {
			return err
		}
		if current.IsResolved() {
			return ErrDivergenceResolved
		}

		current.Resolve(kind, reason, operatorID, uc.now().UTC())
		if err := uc.repos.Divergence.Update(ctx, current); err != nil {
			return fmt.Errorf("failed to resolve divergence: %w", err)
		}
		divergence = current

		return uc.refreshDivergenceCounts(ctx, current.TerminalID, period)
	})
	if err != nil {
		return nil, err
	}

	metrics.RecordResolution(string(kind))
	uc.logger.WithFields(logrus.Fields{
		"divergence_id": divergenceID,
		"terminal_id":   divergence.TerminalID,
		"period":        divergence.Period,
		"resolution":    kind,
		"operator_id":   operatorID,
	}).Info("divergence resolved")
	return divergence, nil
}

func (uc *reconciliationUseCase) ExportReport(ctx context.Context, terminalID uint, period models.Period) (*bytes.Buffer, error) {
	summary, err := uc.GetReconciliation(ctx, terminalID, period)
	if err != nil {
		return nil, err
	}
	divergences, err := uc.repos.Divergence.ListByPeriod(ctx, terminalID, period.String(), "")
	if err != nil {
		return nil, err
	}
	buf, err := report.BuildWorkbook(summary, divergences)
	if err != nil {
		logger.LogError(uc.logger, reconciliationModule, "ExportReport", "building workbook", summary.Period, err)
		return nil, fmt.Errorf("failed to build report: %w", err)
	}
	return buf, nil
}

// runJob describes one locked run over a terminal and period. plan returns
// the links to create; classify adds divergences for records left pending.
type runJob struct {
	kind       string
	terminalID uint
	period     models.Period
	tol        matching.Tolerance
	operatorID uint
	classify   bool
	plan       func(ctx context.Context, st *periodState) ([]matching.Match, error)
}

func (uc *reconciliationUseCase) execute(ctx context.Context, job runJob) (result *RunResult, err error) {
	began := time.Now()
	runID := uuid.NewString()
	log := uc.logger.WithFields(logrus.Fields{
		"run_id":      runID,
		"kind":        job.kind,
		"terminal_id": job.terminalID,
		"period":      job.period.String(),
		"operator_id": job.operatorID,
	})
	defer func() {
		metrics.RecordRun(job.kind, time.Since(began), err)
	}()

	err = uc.withLock(ctx, job.terminalID, job.period, func() error {
		summary, err := uc.currentSummary(ctx, job.terminalID, job.period)
		if err != nil {
			return err
		}
		previousStatus := summary.Status
		summary.Status = models.ReconciliationStatusInProgress
		if err := uc.repos.Reconciliation.Save(ctx, summary); err != nil {
			return fmt.Errorf("failed to mark reconciliation in progress: %w", err)
		}

		result, err = uc.run(ctx, job, runID, summary)
		if err != nil {
			summary.Status = previousStatus
			if restoreErr := uc.repos.Reconciliation.Save(context.WithoutCancel(ctx), summary); restoreErr != nil {
				logger.LogError(log, reconciliationModule, "execute", "restoring summary status", previousStatus, restoreErr)
			}
		}
		return err
	})
	if err != nil {
		if !errors.Is(err, ErrReconciliationInProgress) {
			logger.LogError(log, reconciliationModule, "execute", "running reconciliation", job.kind, err)
		}
		return nil, err
	}

	log.WithFields(logrus.Fields{
		"matched_sales":       result.MatchedSales(),
		"new_divergences":     result.NewDivergences,
		"cleared_divergences": result.ClearedDivergences,
		"status":              result.Summary.Status,
		"duration_ms":         time.Since(began).Milliseconds(),
	}).Info("reconciliation run completed")
	return result, nil
}

func (uc *reconciliationUseCase) run(ctx context.Context, job runJob, runID string, current *models.Reconciliation) (*RunResult, error) {
	st, err := uc.loadState(ctx, job.terminalID, job.period, job.tol)
	if err != nil {
		return nil, err
	}

	var matches []matching.Match
	if job.plan != nil {
		matches, err = job.plan(ctx, st)
		if err != nil {
			return nil, err
		}
	}

	now := uc.now().UTC()
	changes := &repositories.RunChanges{}
	if err := st.apply(matches, now, changes); err != nil {
		return nil, err
	}

	saleIDs, receiptIDs := changes.RecordIDs()
	cleared, err := uc.repos.Divergence.ListForRecords(ctx, saleIDs, receiptIDs)
	if err != nil {
		return nil, err
	}
	deleted := make(map[uint]bool, len(cleared))
	for _, d := range cleared {
		changes.DeleteDivergenceIDs = append(changes.DeleteDivergenceIDs, d.ID)
		deleted[d.ID] = true
	}

	if job.classify {
		changes.NewDivergences = st.classify()
	}

	summary := st.summarize(deleted, changes.NewDivergences)
	summary.ID = current.ID
	summary.CreatedAt = current.CreatedAt
	summary.LastRunID = runID
	summary.LastRunAt = &now
	summary.LastRunBy = &job.operatorID
	changes.Summary = summary

	if err := uc.repos.Reconciliation.ApplyRun(ctx, changes); err != nil {
		if errors.Is(err, repositories.ErrConcurrentUpdate) {
			return nil, fmt.Errorf("%w: %w", ErrReconciliationInProgress, err)
		}
		return nil, fmt.Errorf("failed to apply reconciliation run: %w", err)
	}

	for _, m := range matches {
		metrics.RecordMatches(string(m.Method), len(m.SaleIDs))
	}
	for _, d := range changes.NewDivergences {
		metrics.RecordDivergence(string(d.Kind))
	}

	return &RunResult{
		RunID:              runID,
		Summary:            summary,
		Matches:            matches,
		NewDivergences:     len(changes.NewDivergences),
		ClearedDivergences: len(changes.DeleteDivergenceIDs),
	}, nil
}

// withLock runs fn while holding the (terminal, period) lock.
func (uc *reconciliationUseCase) withLock(ctx context.Context, terminalID uint, period models.Period, fn func() error) error {
	key := locking.ReconciliationKey(terminalID, period.String())
	lease, err := uc.locker.Obtain(ctx, key)
	if errors.Is(err, locking.ErrNotObtained) {
		return ErrReconciliationInProgress
	}
	if err != nil {
		return fmt.Errorf("failed to obtain reconciliation lock: %w", err)
	}
	defer func() {
		if err := lease.Release(context.WithoutCancel(ctx)); err != nil {
			logger.LogError(uc.logger, reconciliationModule, "withLock", "releasing lock", key, err)
		}
	}()
	return fn()
}

func (uc *reconciliationUseCase) loadState(ctx context.Context, terminalID uint, period models.Period, tol matching.Tolerance) (*periodState, error) {
	sales, err := uc.repos.Sale.List(ctx, repositories.RecordFilter{
		TerminalID: terminalID,
		From:       period.Start(),
		To:         period.End(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load sales: %w", err)
	}

	// Settlements land after the sale, so receipts are read past the period end.
	receipts, err := uc.repos.Receipt.List(ctx, repositories.RecordFilter{
		TerminalID: terminalID,
		From:       period.Start(),
		To:         period.End().AddDate(0, 0, tol.Days),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load receipts: %w", err)
	}

	st := newPeriodState(terminalID, period, tol, sales, receipts)

	existing, err := uc.repos.Divergence.ListForRecords(ctx, st.saleIDs(), st.receiptIDs())
	if err != nil {
		return nil, fmt.Errorf("failed to load divergences: %w", err)
	}
	st.flagged = make(map[recordKey]bool, len(existing))
	for _, d := range existing {
		st.flagged[recordKey{d.RecordType, d.RecordID}] = true
	}

	st.periodDivergences, err = uc.repos.Divergence.ListByPeriod(ctx, terminalID, period.String(), "")
	if err != nil {
		return nil, fmt.Errorf("failed to load divergences: %w", err)
	}
	return st, nil
}

func (uc *reconciliationUseCase) refreshDivergenceCounts(ctx context.Context, terminalID uint, period models.Period) error {
	summary, err := uc.repos.Reconciliation.GetByTerminalPeriod(ctx, terminalID, period.String())
	if errors.Is(err, repositories.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	pending, resolved, err := uc.repos.Divergence.CountByStatus(ctx, terminalID, period.String())
	if err != nil {
		return err
	}
	summary.PendingDivergences = pending
	summary.ResolvedDivergences = resolved
	summary.SettleStatus()
	return uc.repos.Reconciliation.Save(ctx, summary)
}

func (uc *reconciliationUseCase) currentSummary(ctx context.Context, terminalID uint, period models.Period) (*models.Reconciliation, error) {
	summary, err := uc.repos.Reconciliation.GetByTerminalPeriod(ctx, terminalID, period.String())
	if errors.Is(err, repositories.ErrNotFound) {
		return models.NewPendingReconciliation(terminalID, period), nil
	}
	if err != nil {
		return nil, err
	}
	return summary, nil
}

func (uc *reconciliationUseCase) activeTerminal(ctx context.Context, id uint) (*models.Terminal, error) {
	terminal, err := uc.repos.Terminal.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !terminal.IsActive() {
		return nil, ErrInactiveTerminal
	}
	return terminal, nil
}

func (uc *reconciliationUseCase) defaultTolerance() matching.Tolerance {
	return matching.Tolerance{Amount: uc.cfg.AmountTolerance, Days: uc.cfg.DayTolerance}
}

func (uc *reconciliationUseCase) tolerance(override *matching.Tolerance) (matching.Tolerance, error) {
	if override == nil {
		return uc.defaultTolerance(), nil
	}
	if err := override.Validate(); err != nil {
		return matching.Tolerance{}, utils.NewValidationError("%s", err.Error())
	}
	return *override, nil
}

func linkedPair(sale *models.TerminalSale, receipt *models.BankReceipt) bool {
	return sale.LinkedReceiptID != nil && *sale.LinkedReceiptID == receipt.ID &&
		receipt.LinkedSaleID != nil && *receipt.LinkedSaleID == sale.ID
}
