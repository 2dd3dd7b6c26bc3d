package repositories

import (
	"context"

	"github.com/limistah/conciliation-service/internal/models"
	"gorm.io/gorm"
)

type saleRepository struct {
	db *gorm.DB
}

// NewSaleRepository creates a new terminal sale repository
func NewSaleRepository(db *gorm.DB) SaleRepository {
	return &saleRepository{db: db}
}

func (r *saleRepository) CreateBatch(ctx context.Context, sales []models.TerminalSale) error {
	if len(sales) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&sales).Error
}

func (r *saleRepository) GetByID(ctx context.Context, id uint) (*models.TerminalSale, error) {
	var sale models.TerminalSale
	if err := r.db.WithContext(ctx).First(&sale, id).Error; err != nil {
		return nil, translate(err)
	}
	return &sale, nil
}

func (r *saleRepository) ExistingNSUs(ctx context.Context, terminalID uint, nsus []string) ([]string, error) {
	var existing []string
	if len(nsus) == 0 {
		return existing, nil
	}
	err := r.db.WithContext(ctx).Model(&models.TerminalSale{}).
		Where("terminal_id = ? AND nsu IN ?", terminalID, nsus).
		Pluck("nsu", &existing).Error
	return existing, err
}

func (r *saleRepository) List(ctx context.Context, filter RecordFilter) ([]models.TerminalSale, error) {
	var sales []models.TerminalSale
	query := r.db.WithContext(ctx).Where("terminal_id = ?", filter.TerminalID)
	if !filter.From.IsZero() {
		query = query.Where("transaction_date >= ?", filter.From)
	}
	if !filter.To.IsZero() {
		query = query.Where("transaction_date < ?", filter.To)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	err := query.Order("transaction_date ASC, id ASC").Find(&sales).Error
	return sales, err
}
