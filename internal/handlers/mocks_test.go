package handlers

import (
	"bytes"
	"context"

	"github.com/limistah/conciliation-service/internal/matching"
	"github.com/limistah/conciliation-service/internal/models"
	"github.com/limistah/conciliation-service/internal/usecases"
	"github.com/stretchr/testify/mock"
)

// MockUserUseCase is a mock implementation of UserUseCase for testing
type MockUserUseCase struct {
	mock.Mock
}

func (m *MockUserUseCase) CreateUser(ctx context.Context, user *models.User) (*models.User, error) {
	args := m.Called(ctx, user)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserUseCase) GetUserByID(ctx context.Context, id uint) (*models.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserUseCase) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserUseCase) UpdateUser(ctx context.Context, id uint, user *models.User) (*models.User, error) {
	args := m.Called(ctx, id, user)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserUseCase) GetSystemUser(ctx context.Context) (*models.User, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

// MockTerminalUseCase is a mock implementation of TerminalUseCase for testing
type MockTerminalUseCase struct {
	mock.Mock
}

func (m *MockTerminalUseCase) CreateTerminal(ctx context.Context, terminal *models.Terminal) (*models.Terminal, error) {
	args := m.Called(ctx, terminal)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Terminal), args.Error(1)
}

func (m *MockTerminalUseCase) GetTerminal(ctx context.Context, id uint) (*models.Terminal, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Terminal), args.Error(1)
}

func (m *MockTerminalUseCase) ListTerminals(ctx context.Context, activeOnly bool, page, pageSize int) ([]models.Terminal, error) {
	args := m.Called(ctx, activeOnly, page, pageSize)
	return args.Get(0).([]models.Terminal), args.Error(1)
}

func (m *MockTerminalUseCase) DeactivateTerminal(ctx context.Context, id uint) (*models.Terminal, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Terminal), args.Error(1)
}

func (m *MockTerminalUseCase) RegisterSales(ctx context.Context, terminalID uint, sales []models.TerminalSale) ([]models.TerminalSale, error) {
	args := m.Called(ctx, terminalID, sales)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.TerminalSale), args.Error(1)
}

func (m *MockTerminalUseCase) RegisterReceipts(ctx context.Context, terminalID uint, receipts []models.BankReceipt) ([]models.BankReceipt, error) {
	args := m.Called(ctx, terminalID, receipts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.BankReceipt), args.Error(1)
}

func (m *MockTerminalUseCase) ListSales(ctx context.Context, terminalID uint, period models.Period, status models.RecordStatus) ([]models.TerminalSale, error) {
	args := m.Called(ctx, terminalID, period, status)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.TerminalSale), args.Error(1)
}

func (m *MockTerminalUseCase) ListReceipts(ctx context.Context, terminalID uint, period models.Period, status models.RecordStatus) ([]models.BankReceipt, error) {
	args := m.Called(ctx, terminalID, period, status)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.BankReceipt), args.Error(1)
}

// MockReconciliationUseCase is a mock implementation of ReconciliationUseCase for testing
type MockReconciliationUseCase struct {
	mock.Mock
}

func (m *MockReconciliationUseCase) runResult(args mock.Arguments) (*usecases.RunResult, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*usecases.RunResult), args.Error(1)
}

func (m *MockReconciliationUseCase) Reconcile(ctx context.Context, terminalID uint, period models.Period, operatorID uint) (*usecases.RunResult, error) {
	return m.runResult(m.Called(ctx, terminalID, period, operatorID))
}

func (m *MockReconciliationUseCase) RunAutomaticMatching(ctx context.Context, terminalID uint, period models.Period, tol *matching.Tolerance, operatorID uint) (*usecases.RunResult, error) {
	return m.runResult(m.Called(ctx, terminalID, period, tol, operatorID))
}

func (m *MockReconciliationUseCase) RunGroupedMatching(ctx context.Context, terminalID uint, period models.Period, tol *matching.Tolerance, operatorID uint) (*usecases.RunResult, error) {
	return m.runResult(m.Called(ctx, terminalID, period, tol, operatorID))
}

func (m *MockReconciliationUseCase) GetReconciliation(ctx context.Context, terminalID uint, period models.Period) (*models.Reconciliation, error) {
	args := m.Called(ctx, terminalID, period)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Reconciliation), args.Error(1)
}

func (m *MockReconciliationUseCase) ListReconciliations(ctx context.Context, terminalID uint, page, pageSize int) ([]models.Reconciliation, error) {
	args := m.Called(ctx, terminalID, page, pageSize)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Reconciliation), args.Error(1)
}

func (m *MockReconciliationUseCase) GetDivergences(ctx context.Context, terminalID uint, period models.Period, status models.DivergenceStatus) ([]models.Divergence, error) {
	args := m.Called(ctx, terminalID, period, status)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Divergence), args.Error(1)
}

func (m *MockReconciliationUseCase) LinkManually(ctx context.Context, saleID, receiptID, operatorID uint) (*usecases.RunResult, error) {
	return m.runResult(m.Called(ctx, saleID, receiptID, operatorID))
}

func (m *MockReconciliationUseCase) Unlink(ctx context.Context, saleID, operatorID uint) error {
	return m.Called(ctx, saleID, operatorID).Error(0)
}

func (m *MockReconciliationUseCase) ResolveDivergence(ctx context.Context, divergenceID uint, kind models.ResolutionKind, reason string, operatorID uint) (*models.Divergence, error) {
	args := m.Called(ctx, divergenceID, kind, reason, operatorID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Divergence), args.Error(1)
}

func (m *MockReconciliationUseCase) ExportReport(ctx context.Context, terminalID uint, period models.Period) (*bytes.Buffer, error) {
	args := m.Called(ctx, terminalID, period)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*bytes.Buffer), args.Error(1)
}
