package repositories

import (
	"context"

	"github.com/limistah/conciliation-service/internal/models"
	"gorm.io/gorm"
)

type receiptRepository struct {
	db *gorm.DB
}

// NewReceiptRepository creates a new bank receipt repository
func NewReceiptRepository(db *gorm.DB) ReceiptRepository {
	return &receiptRepository{db: db}
}

func (r *receiptRepository) CreateBatch(ctx context.Context, receipts []models.BankReceipt) error {
	if len(receipts) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&receipts).Error
}

func (r *receiptRepository) GetByID(ctx context.Context, id uint) (*models.BankReceipt, error) {
	var receipt models.BankReceipt
	if err := r.db.WithContext(ctx).First(&receipt, id).Error; err != nil {
		return nil, translate(err)
	}
	return &receipt, nil
}

func (r *receiptRepository) List(ctx context.Context, filter RecordFilter) ([]models.BankReceipt, error) {
	var receipts []models.BankReceipt
	query := r.db.WithContext(ctx).Where("terminal_id = ?", filter.TerminalID)
	if !filter.From.IsZero() {
		query = query.Where("receipt_date >= ?", filter.From)
	}
	if !filter.To.IsZero() {
		query = query.Where("receipt_date < ?", filter.To)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	err := query.Order("receipt_date ASC, id ASC").Find(&receipts).Error
	return receipts, err
}
