package repositories

import (
	"context"

	"github.com/limistah/conciliation-service/internal/models"
	"gorm.io/gorm"
)

type divergenceRepository struct {
	db *gorm.DB
}

// NewDivergenceRepository creates a new divergence repository
func NewDivergenceRepository(db *gorm.DB) DivergenceRepository {
	return &divergenceRepository{db: db}
}

func (r *divergenceRepository) GetByID(ctx context.Context, id uint) (*models.Divergence, error) {
	var divergence models.Divergence
	if err := r.db.WithContext(ctx).First(&divergence, id).Error; err != nil {
		return nil, translate(err)
	}
	return &divergence, nil
}

func (r *divergenceRepository) ListByPeriod(ctx context.Context, terminalID uint, period string, status models.DivergenceStatus) ([]models.Divergence, error) {
	var divergences []models.Divergence
	query := r.db.WithContext(ctx).Where("terminal_id = ? AND period = ?", terminalID, period)
	if status != "" {
		query = query.Where("status = ?", status)
	}
	err := query.Order("id ASC").Find(&divergences).Error
	return divergences, err
}

func (r *divergenceRepository) ListForRecords(ctx context.Context, saleIDs, receiptIDs []uint) ([]models.Divergence, error) {
	var divergences []models.Divergence
	if len(saleIDs) == 0 && len(receiptIDs) == 0 {
		return divergences, nil
	}
	err := forRecords(r.db.WithContext(ctx), saleIDs, receiptIDs).Order("id ASC").Find(&divergences).Error
	return divergences, err
}

// forRecords scopes a divergence query to the given sales and receipts.
// At least one of the id lists must be non-empty.
func forRecords(query *gorm.DB, saleIDs, receiptIDs []uint) *gorm.DB {
	switch {
	case len(saleIDs) > 0 && len(receiptIDs) > 0:
		return query.Where("(record_type = ? AND record_id IN ?) OR (record_type = ? AND record_id IN ?)",
			models.RecordTypeSale, saleIDs, models.RecordTypeReceipt, receiptIDs)
	case len(saleIDs) > 0:
		return query.Where("record_type = ? AND record_id IN ?", models.RecordTypeSale, saleIDs)
	default:
		return query.Where("record_type = ? AND record_id IN ?", models.RecordTypeReceipt, receiptIDs)
	}
}

func (r *divergenceRepository) Update(ctx context.Context, divergence *models.Divergence) error {
	return r.db.WithContext(ctx).Save(divergence).Error
}

func (r *divergenceRepository) CountByStatus(ctx context.Context, terminalID uint, period string) (int, int, error) {
	type row struct {
		Status models.DivergenceStatus
		Total  int
	}
	var rows []row
	err := r.db.WithContext(ctx).Model(&models.Divergence{}).
		Select("status, COUNT(*) AS total").
		Where("terminal_id = ? AND period = ?", terminalID, period).
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return 0, 0, err
	}

	var pending, resolved int
	for _, rw := range rows {
		switch rw.Status {
		case models.DivergenceStatusPending:
			pending = rw.Total
		case models.DivergenceStatusResolved:
			resolved = rw.Total
		}
	}
	return pending, resolved, nil
}
