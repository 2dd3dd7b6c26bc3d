package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/limistah/conciliation-service/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type reconciliationRepository struct {
	db *gorm.DB
}

// NewReconciliationRepository creates a new reconciliation repository
func NewReconciliationRepository(db *gorm.DB) ReconciliationRepository {
	return &reconciliationRepository{db: db}
}

func (r *reconciliationRepository) GetByTerminalPeriod(ctx context.Context, terminalID uint, period string) (*models.Reconciliation, error) {
	var summary models.Reconciliation
	err := r.db.WithContext(ctx).
		Where("terminal_id = ? AND period = ?", terminalID, period).
		First(&summary).Error
	if err != nil {
		return nil, translate(err)
	}
	return &summary, nil
}

// Save upserts the summary on (terminal_id, period).
func (r *reconciliationRepository) Save(ctx context.Context, summary *models.Reconciliation) error {
	return saveSummary(r.db.WithContext(ctx), summary)
}

func (r *reconciliationRepository) List(ctx context.Context, terminalID uint, offset, limit int) ([]models.Reconciliation, error) {
	var summaries []models.Reconciliation
	query := r.db.WithContext(ctx).
		Where("terminal_id = ?", terminalID).
		Order("period DESC")
	if limit > 0 {
		query = query.Offset(offset).Limit(limit)
	}
	err := query.Find(&summaries).Error
	return summaries, err
}

// ApplyRun writes the outcome of a run in one transaction. Records are only
// moved out of PENDING; a record that is no longer pending aborts the run.
func (r *reconciliationRepository) ApplyRun(ctx context.Context, changes *RunChanges) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, sale := range changes.Sales {
			result := tx.Model(&models.TerminalSale{}).
				Where("id = ? AND status = ?", sale.ID, models.RecordStatusPending).
				Updates(map[string]interface{}{
					"status":            sale.Status,
					"linked_receipt_id": sale.LinkedReceiptID,
					"match_group_id":    sale.MatchGroupID,
					"match_method":      sale.MatchMethod,
					"reconciled_at":     sale.ReconciledAt,
				})
			if result.Error != nil {
				return fmt.Errorf("failed to update sale %d: %w", sale.ID, result.Error)
			}
			if result.RowsAffected == 0 {
				return fmt.Errorf("sale %d: %w", sale.ID, ErrConcurrentUpdate)
			}
		}

		for _, receipt := range changes.Receipts {
			result := tx.Model(&models.BankReceipt{}).
				Where("id = ? AND status = ?", receipt.ID, models.RecordStatusPending).
				Updates(map[string]interface{}{
					"status":         receipt.Status,
					"linked_sale_id": receipt.LinkedSaleID,
					"match_group_id": receipt.MatchGroupID,
					"match_method":   receipt.MatchMethod,
					"reconciled_at":  receipt.ReconciledAt,
				})
			if result.Error != nil {
				return fmt.Errorf("failed to update receipt %d: %w", receipt.ID, result.Error)
			}
			if result.RowsAffected == 0 {
				return fmt.Errorf("receipt %d: %w", receipt.ID, ErrConcurrentUpdate)
			}
		}

		// divergences a concurrent run wrote after this one was planned go too
		if saleIDs, receiptIDs := changes.RecordIDs(); len(saleIDs) > 0 || len(receiptIDs) > 0 {
			if err := forRecords(tx, saleIDs, receiptIDs).Delete(&models.Divergence{}).Error; err != nil {
				return fmt.Errorf("failed to delete divergences of reconciled records: %w", err)
			}
		}

		if len(changes.DeleteDivergenceIDs) > 0 {
			if err := tx.Where("id IN ?", changes.DeleteDivergenceIDs).Delete(&models.Divergence{}).Error; err != nil {
				return fmt.Errorf("failed to delete divergences: %w", err)
			}
		}

		if len(changes.NewDivergences) > 0 {
			if err := lockPendingRecords(tx, changes.NewDivergences); err != nil {
				return err
			}
			if err := tx.Create(changes.NewDivergences).Error; err != nil {
				return fmt.Errorf("failed to create divergences: %w", err)
			}
		}

		if changes.Summary != nil {
			if err := saveSummary(tx, changes.Summary); err != nil {
				return fmt.Errorf("failed to save reconciliation summary: %w", err)
			}
		}
		return nil
	})
}

// lockPendingRecords locks the records new divergences point at and fails
// when one of them was reconciled by another run in the meantime.
func lockPendingRecords(tx *gorm.DB, divergences []*models.Divergence) error {
	var saleIDs, receiptIDs []uint
	for _, d := range divergences {
		switch d.RecordType {
		case models.RecordTypeSale:
			saleIDs = append(saleIDs, d.RecordID)
		case models.RecordTypeReceipt:
			receiptIDs = append(receiptIDs, d.RecordID)
		}
	}
	if err := lockPending(tx, &models.TerminalSale{}, "sales", saleIDs); err != nil {
		return err
	}
	return lockPending(tx, &models.BankReceipt{}, "receipts", receiptIDs)
}

func lockPending(tx *gorm.DB, model interface{}, table string, ids []uint) error {
	if len(ids) == 0 {
		return nil
	}
	var pending []uint
	err := tx.Model(model).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id IN ? AND status = ?", ids, models.RecordStatusPending).
		Pluck("id", &pending).Error
	if err != nil {
		return fmt.Errorf("failed to lock %s: %w", table, err)
	}
	if len(pending) != len(ids) {
		return fmt.Errorf("%s no longer pending: %w", table, ErrConcurrentUpdate)
	}
	return nil
}

func saveSummary(db *gorm.DB, summary *models.Reconciliation) error {
	if summary.ID == 0 {
		var existing models.Reconciliation
		err := db.Where("terminal_id = ? AND period = ?", summary.TerminalID, summary.Period).First(&existing).Error
		switch {
		case err == nil:
			summary.ID = existing.ID
			summary.CreatedAt = existing.CreatedAt
		case !errors.Is(err, gorm.ErrRecordNotFound):
			return err
		}
	}
	return db.Save(summary).Error
}
