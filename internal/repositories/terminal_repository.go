package repositories

import (
	"context"

	"github.com/limistah/conciliation-service/internal/models"
	"gorm.io/gorm"
)

type terminalRepository struct {
	db *gorm.DB
}

// NewTerminalRepository creates a new terminal repository
func NewTerminalRepository(db *gorm.DB) TerminalRepository {
	return &terminalRepository{db: db}
}

func (r *terminalRepository) Create(ctx context.Context, terminal *models.Terminal) error {
	return r.db.WithContext(ctx).Create(terminal).Error
}

func (r *terminalRepository) GetByID(ctx context.Context, id uint) (*models.Terminal, error) {
	var terminal models.Terminal
	if err := r.db.WithContext(ctx).First(&terminal, id).Error; err != nil {
		return nil, translate(err)
	}
	return &terminal, nil
}

func (r *terminalRepository) GetBySerialNumber(ctx context.Context, serial string) (*models.Terminal, error) {
	var terminal models.Terminal
	if err := r.db.WithContext(ctx).Where("serial_number = ?", serial).First(&terminal).Error; err != nil {
		return nil, translate(err)
	}
	return &terminal, nil
}

// Update persists every column, including Active=false.
func (r *terminalRepository) Update(ctx context.Context, terminal *models.Terminal) error {
	return r.db.WithContext(ctx).Save(terminal).Error
}

func (r *terminalRepository) List(ctx context.Context, activeOnly bool, offset, limit int) ([]models.Terminal, error) {
	var terminals []models.Terminal
	query := r.db.WithContext(ctx).Order("id ASC")
	if activeOnly {
		query = query.Where("active = ?", true)
	}
	if limit > 0 {
		query = query.Offset(offset).Limit(limit)
	}
	err := query.Find(&terminals).Error
	return terminals, err
}
