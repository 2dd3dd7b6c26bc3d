package usecases

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/limistah/conciliation-service/internal/logger"
	"github.com/limistah/conciliation-service/internal/models"
	"github.com/limistah/conciliation-service/internal/repositories"
	"github.com/limistah/conciliation-service/internal/utils"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

const terminalModule = "TerminalUseCase"

type terminalUseCase struct {
	repos  *repositories.Repositories
	logger logrus.FieldLogger
}

// NewTerminalUseCase creates a new terminal use case
func NewTerminalUseCase(repos *repositories.Repositories, logger logrus.FieldLogger) TerminalUseCase {
	return &terminalUseCase{repos: repos, logger: logger}
}

func (uc *terminalUseCase) CreateTerminal(ctx context.Context, terminal *models.Terminal) (*models.Terminal, error) {
	terminal.Name = utils.SanitizeString(terminal.Name)
	terminal.SerialNumber = strings.ToUpper(utils.SanitizeString(terminal.SerialNumber))
	if err := utils.ValidateStruct(terminal); err != nil {
		return nil, err
	}

	existing, err := uc.repos.Terminal.GetBySerialNumber(ctx, terminal.SerialNumber)
	if err == nil && existing != nil {
		return nil, ErrTerminalExists
	}
	if err != nil && !errors.Is(err, repositories.ErrNotFound) {
		return nil, err
	}

	terminal.Active = true
	if err := uc.repos.Terminal.Create(ctx, terminal); err != nil {
		logger.LogError(uc.logger, terminalModule, "CreateTerminal", "creating terminal", terminal.SerialNumber, err)
		return nil, fmt.Errorf("failed to create terminal: %w", err)
	}
	return terminal, nil
}

func (uc *terminalUseCase) GetTerminal(ctx context.Context, id uint) (*models.Terminal, error) {
	return uc.repos.Terminal.GetByID(ctx, id)
}

func (uc *terminalUseCase) ListTerminals(ctx context.Context, activeOnly bool, page, pageSize int) ([]models.Terminal, error) {
	offset, limit := utils.Paginate(page, pageSize)
	return uc.repos.Terminal.List(ctx, activeOnly, offset, limit)
}

// DeactivateTerminal keeps the terminal and its history but drops it from scheduled runs
func (uc *terminalUseCase) DeactivateTerminal(ctx context.Context, id uint) (*models.Terminal, error) {
	terminal, err := uc.repos.Terminal.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !terminal.IsActive() {
		return terminal, nil
	}

	terminal.Active = false
	if err := uc.repos.Terminal.Update(ctx, terminal); err != nil {
		return nil, err
	}
	return terminal, nil
}

func (uc *terminalUseCase) RegisterSales(ctx context.Context, terminalID uint, sales []models.TerminalSale) ([]models.TerminalSale, error) {
	if len(sales) == 0 {
		return nil, utils.NewValidationError("at least one sale is required")
	}
	if _, err := uc.activeTerminal(ctx, terminalID); err != nil {
		return nil, err
	}

	seen := make(map[string]bool, len(sales))
	nsus := make([]string, 0, len(sales))
	for i := range sales {
		sale := &sales[i]
		sale.NSU = utils.SanitizeString(sale.NSU)
		if sale.NSU == "" {
			return nil, utils.NewValidationError("sale %d: nsu is required", i)
		}
		if seen[sale.NSU] {
			return nil, fmt.Errorf("nsu %s repeated in batch: %w", sale.NSU, ErrDuplicateNSU)
		}
		seen[sale.NSU] = true
		nsus = append(nsus, sale.NSU)

		if err := normalizeSale(sale); err != nil {
			return nil, utils.NewValidationError("sale %d: %v", i, err)
		}
		sale.ID = 0
		sale.TerminalID = terminalID
		sale.Status = models.RecordStatusPending
		sale.LinkedReceiptID = nil
		sale.MatchGroupID = nil
		sale.MatchMethod = models.MatchMethodNone
		sale.ReconciledAt = nil
	}

	existing, err := uc.repos.Sale.ExistingNSUs(ctx, terminalID, nsus)
	if err != nil {
		return nil, err
	}
	if len(existing) > 0 {
		return nil, fmt.Errorf("nsu %s: %w", strings.Join(existing, ", "), ErrDuplicateNSU)
	}

	if err := uc.repos.Sale.CreateBatch(ctx, sales); err != nil {
		logger.LogError(uc.logger, terminalModule, "RegisterSales", "creating sales", terminalID, err)
		return nil, fmt.Errorf("failed to register sales: %w", err)
	}

	uc.logger.WithFields(logrus.Fields{"terminal_id": terminalID, "count": len(sales)}).Info("sales registered")
	return sales, nil
}

func (uc *terminalUseCase) RegisterReceipts(ctx context.Context, terminalID uint, receipts []models.BankReceipt) ([]models.BankReceipt, error) {
	if len(receipts) == 0 {
		return nil, utils.NewValidationError("at least one receipt is required")
	}
	if _, err := uc.activeTerminal(ctx, terminalID); err != nil {
		return nil, err
	}

	for i := range receipts {
		receipt := &receipts[i]
		if receipt.ReceiptDate.IsZero() {
			return nil, utils.NewValidationError("receipt %d: receipt_date is required", i)
		}
		if !receipt.Amount.IsPositive() {
			return nil, utils.NewValidationError("receipt %d: amount must be greater than 0", i)
		}
		receipt.ID = 0
		receipt.TerminalID = terminalID
		receipt.ReceiptDate = receipt.ReceiptDate.UTC()
		receipt.Amount = receipt.Amount.Round(2)
		receipt.DocumentReference = utils.SanitizeString(receipt.DocumentReference)
		receipt.Status = models.RecordStatusPending
		receipt.LinkedSaleID = nil
		receipt.MatchGroupID = nil
		receipt.MatchMethod = models.MatchMethodNone
		receipt.ReconciledAt = nil
	}

	if err := uc.repos.Receipt.CreateBatch(ctx, receipts); err != nil {
		logger.LogError(uc.logger, terminalModule, "RegisterReceipts", "creating receipts", terminalID, err)
		return nil, fmt.Errorf("failed to register receipts: %w", err)
	}

	uc.logger.WithFields(logrus.Fields{"terminal_id": terminalID, "count": len(receipts)}).Info("receipts registered")
	return receipts, nil
}

func (uc *terminalUseCase) ListSales(ctx context.Context, terminalID uint, period models.Period, status models.RecordStatus) ([]models.TerminalSale, error) {
	if _, err := uc.repos.Terminal.GetByID(ctx, terminalID); err != nil {
		return nil, err
	}
	return uc.repos.Sale.List(ctx, repositories.RecordFilter{
		TerminalID: terminalID,
		From:       period.Start(),
		To:         period.End(),
		Status:     status,
	})
}

func (uc *terminalUseCase) ListReceipts(ctx context.Context, terminalID uint, period models.Period, status models.RecordStatus) ([]models.BankReceipt, error) {
	if _, err := uc.repos.Terminal.GetByID(ctx, terminalID); err != nil {
		return nil, err
	}
	return uc.repos.Receipt.List(ctx, repositories.RecordFilter{
		TerminalID: terminalID,
		From:       period.Start(),
		To:         period.End(),
		Status:     status,
	})
}

func (uc *terminalUseCase) activeTerminal(ctx context.Context, id uint) (*models.Terminal, error) {
	terminal, err := uc.repos.Terminal.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !terminal.IsActive() {
		return nil, ErrInactiveTerminal
	}
	return terminal, nil
}

// normalizeSale fills derived amounts. Net defaults to gross minus fee.
func normalizeSale(sale *models.TerminalSale) error {
	if sale.TransactionDate.IsZero() {
		return errors.New("transaction_date is required")
	}
	if !sale.GrossAmount.IsPositive() {
		return errors.New("gross_amount must be greater than 0")
	}
	if sale.FeeAmount.IsNegative() {
		return errors.New("fee_amount must not be negative")
	}
	if sale.FeeAmount.GreaterThan(sale.GrossAmount) {
		return errors.New("fee_amount must not exceed gross_amount")
	}
	switch sale.TransactionKind {
	case models.TransactionKindCredit, models.TransactionKindDebit, models.TransactionKindPix, models.TransactionKindVoucher:
	case "":
		sale.TransactionKind = models.TransactionKindCredit
	default:
		return fmt.Errorf("transaction_kind %q is invalid", sale.TransactionKind)
	}
	if sale.Installments < 1 {
		sale.Installments = 1
	}

	sale.TransactionDate = sale.TransactionDate.UTC()
	sale.GrossAmount = sale.GrossAmount.Round(2)
	sale.FeeAmount = sale.FeeAmount.Round(2)
	if sale.NetAmount.IsZero() {
		sale.NetAmount = sale.GrossAmount.Sub(sale.FeeAmount)
	}
	sale.NetAmount = sale.NetAmount.Round(2)
	if sale.NetAmount.LessThan(decimal.Zero) {
		return errors.New("net_amount must not be negative")
	}
	return nil
}
