package usecases

import (
	"bytes"
	"context"

	"github.com/limistah/conciliation-service/internal/config"
	"github.com/limistah/conciliation-service/internal/locking"
	"github.com/limistah/conciliation-service/internal/matching"
	"github.com/limistah/conciliation-service/internal/models"
	"github.com/limistah/conciliation-service/internal/repositories"
	"github.com/sirupsen/logrus"
)

// UserUseCase defines the interface for operator business logic
type UserUseCase interface {
	CreateUser(ctx context.Context, user *models.User) (*models.User, error)
	GetUserByID(ctx context.Context, id uint) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	UpdateUser(ctx context.Context, id uint, user *models.User) (*models.User, error)
	GetSystemUser(ctx context.Context) (*models.User, error)
}

// TerminalUseCase defines the interface for terminal registry and record ingestion
type TerminalUseCase interface {
	CreateTerminal(ctx context.Context, terminal *models.Terminal) (*models.Terminal, error)
	GetTerminal(ctx context.Context, id uint) (*models.Terminal, error)
	ListTerminals(ctx context.Context, activeOnly bool, page, pageSize int) ([]models.Terminal, error)
	DeactivateTerminal(ctx context.Context, id uint) (*models.Terminal, error)
	RegisterSales(ctx context.Context, terminalID uint, sales []models.TerminalSale) ([]models.TerminalSale, error)
	RegisterReceipts(ctx context.Context, terminalID uint, receipts []models.BankReceipt) ([]models.BankReceipt, error)
	ListSales(ctx context.Context, terminalID uint, period models.Period, status models.RecordStatus) ([]models.TerminalSale, error)
	ListReceipts(ctx context.Context, terminalID uint, period models.Period, status models.RecordStatus) ([]models.BankReceipt, error)
}

// ReconciliationUseCase defines the interface for reconciliation business logic
type ReconciliationUseCase interface {
	Reconcile(ctx context.Context, terminalID uint, period models.Period, operatorID uint) (*RunResult, error)
	RunAutomaticMatching(ctx context.Context, terminalID uint, period models.Period, tol *matching.Tolerance, operatorID uint) (*RunResult, error)
	RunGroupedMatching(ctx context.Context, terminalID uint, period models.Period, tol *matching.Tolerance, operatorID uint) (*RunResult, error)
	GetReconciliation(ctx context.Context, terminalID uint, period models.Period) (*models.Reconciliation, error)
	ListReconciliations(ctx context.Context, terminalID uint, page, pageSize int) ([]models.Reconciliation, error)
	GetDivergences(ctx context.Context, terminalID uint, period models.Period, status models.DivergenceStatus) ([]models.Divergence, error)
	LinkManually(ctx context.Context, saleID, receiptID, operatorID uint) (*RunResult, error)
	Unlink(ctx context.Context, saleID, operatorID uint) error
	ResolveDivergence(ctx context.Context, divergenceID uint, kind models.ResolutionKind, reason string, operatorID uint) (*models.Divergence, error)
	ExportReport(ctx context.Context, terminalID uint, period models.Period) (*bytes.Buffer, error)
}

// UseCases holds all use case interfaces
type UseCases struct {
	User           UserUseCase
	Terminal       TerminalUseCase
	Reconciliation ReconciliationUseCase
}

// NewUseCases creates a new instance of all use cases
func NewUseCases(repos *repositories.Repositories, locker locking.Locker, cfg config.ReconciliationConfig, logger logrus.FieldLogger) *UseCases {
	return &UseCases{
		User:           NewUserUseCase(repos),
		Terminal:       NewTerminalUseCase(repos, logger),
		Reconciliation: NewReconciliationUseCase(repos, locker, cfg, logger),
	}
}
