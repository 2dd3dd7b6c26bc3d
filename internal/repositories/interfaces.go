package repositories

import (
	"context"
	"errors"
	"time"

	"github.com/limistah/conciliation-service/internal/models"
	"gorm.io/gorm"
)

// ErrNotFound is returned when the requested record does not exist
var ErrNotFound = errors.New("record not found")

// ErrConcurrentUpdate is returned when a record changed state under a running reconciliation
var ErrConcurrentUpdate = errors.New("record was reconciled concurrently")

// UserRepository defines the interface for operator data operations
type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id uint) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	Update(ctx context.Context, user *models.User) error
}

// TerminalRepository defines the interface for terminal (maquininha) data operations
type TerminalRepository interface {
	Create(ctx context.Context, terminal *models.Terminal) error
	GetByID(ctx context.Context, id uint) (*models.Terminal, error)
	GetBySerialNumber(ctx context.Context, serial string) (*models.Terminal, error)
	Update(ctx context.Context, terminal *models.Terminal) error
	List(ctx context.Context, activeOnly bool, offset, limit int) ([]models.Terminal, error)
}

// RecordFilter narrows sale and receipt listings. Zero values mean no filter.
type RecordFilter struct {
	TerminalID uint
	From       time.Time
	To         time.Time
	Status     models.RecordStatus
}

// SaleRepository defines the interface for terminal sale data operations
type SaleRepository interface {
	CreateBatch(ctx context.Context, sales []models.TerminalSale) error
	GetByID(ctx context.Context, id uint) (*models.TerminalSale, error)
	ExistingNSUs(ctx context.Context, terminalID uint, nsus []string) ([]string, error)
	List(ctx context.Context, filter RecordFilter) ([]models.TerminalSale, error)
}

// ReceiptRepository defines the interface for bank receipt data operations
type ReceiptRepository interface {
	CreateBatch(ctx context.Context, receipts []models.BankReceipt) error
	GetByID(ctx context.Context, id uint) (*models.BankReceipt, error)
	List(ctx context.Context, filter RecordFilter) ([]models.BankReceipt, error)
}

// DivergenceRepository defines the interface for divergence data operations
type DivergenceRepository interface {
	GetByID(ctx context.Context, id uint) (*models.Divergence, error)
	ListByPeriod(ctx context.Context, terminalID uint, period string, status models.DivergenceStatus) ([]models.Divergence, error)
	ListForRecords(ctx context.Context, saleIDs, receiptIDs []uint) ([]models.Divergence, error)
	Update(ctx context.Context, divergence *models.Divergence) error
	CountByStatus(ctx context.Context, terminalID uint, period string) (pending int, resolved int, err error)
}

// RunChanges is everything one reconciliation run writes, applied atomically.
// Sales and Receipts hold only records that moved from PENDING to RECONCILED;
// every divergence of those records is removed with them.
type RunChanges struct {
	Sales               []*models.TerminalSale
	Receipts            []*models.BankReceipt
	DeleteDivergenceIDs []uint
	NewDivergences      []*models.Divergence
	Summary             *models.Reconciliation
}

// RecordIDs returns the ids of the sales and receipts the run reconciles.
func (c *RunChanges) RecordIDs() ([]uint, []uint) {
	saleIDs := make([]uint, 0, len(c.Sales))
	for _, s := range c.Sales {
		saleIDs = append(saleIDs, s.ID)
	}
	receiptIDs := make([]uint, 0, len(c.Receipts))
	for _, r := range c.Receipts {
		receiptIDs = append(receiptIDs, r.ID)
	}
	return saleIDs, receiptIDs
}

// ReconciliationRepository defines the interface for reconciliation operations
type ReconciliationRepository interface {
	GetByTerminalPeriod(ctx context.Context, terminalID uint, period string) (*models.Reconciliation, error)
	Save(ctx context.Context, summary *models.Reconciliation) error
	List(ctx context.Context, terminalID uint, offset, limit int) ([]models.Reconciliation, error)
	ApplyRun(ctx context.Context, changes *RunChanges) error
}

// Repositories holds all repository interfaces
type Repositories struct {
	User           UserRepository
	Terminal       TerminalRepository
	Sale           SaleRepository
	Receipt        ReceiptRepository
	Divergence     DivergenceRepository
	Reconciliation ReconciliationRepository
	DB             *gorm.DB
}

// NewRepositories creates a new instance of all repositories
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		User:           NewUserRepository(db),
		Terminal:       NewTerminalRepository(db),
		Sale:           NewSaleRepository(db),
		Receipt:        NewReceiptRepository(db),
		Divergence:     NewDivergenceRepository(db),
		Reconciliation: NewReconciliationRepository(db),
		DB:             db,
	}
}

func translate(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}
