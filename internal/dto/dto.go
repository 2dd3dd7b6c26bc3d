package dto

import (
	"time"

	"github.com/limistah/conciliation-service/internal/models"
	"github.com/limistah/conciliation-service/internal/usecases"
	"github.com/limistah/conciliation-service/internal/utils"
	"github.com/shopspring/decimal"
)

// UserResponse represents operator response data
type UserResponse struct {
	ID        uint      `json:"id" example:"1"`
	CreatedAt time.Time `json:"created_at" example:"2024-03-01T00:00:00Z"`
	UpdatedAt time.Time `json:"updated_at" example:"2024-03-01T00:00:00Z"`
	Name      string    `json:"name" example:"Ana Souza"`
	Email     string    `json:"email" example:"ana.souza@example.com"`
	Role      string    `json:"role" example:"OPERATOR"`
} //@name UserResponse

// CreateUserRequest represents operator registration request
type CreateUserRequest struct {
	Name     string `json:"name" binding:"required" example:"Ana Souza"`
	Email    string `json:"email" binding:"required,email" example:"ana.souza@example.com"`
	Password string `json:"password" binding:"required,min=6" example:"password123"`
} //@name CreateUserRequest

// LoginRequest represents operator login request
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email" example:"ana.souza@example.com"`
	Password string `json:"password" binding:"required" example:"password123"`
} //@name LoginRequest

// LoginResponse represents operator login response
type LoginResponse struct {
	User  UserResponse `json:"user"`
	Token string       `json:"token" example:"eyJhbGciOiJIUzI1NiIsInR5cCI6IkpXVCJ9..."`
} //@name LoginResponse

// ChangePasswordRequest represents password change request
type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password" binding:"required" example:"oldpassword123"`
	NewPassword     string `json:"new_password" binding:"required,min=6" example:"newpassword123"`
} //@name ChangePasswordRequest

// CreateTerminalRequest registers a card terminal
type CreateTerminalRequest struct {
	Name         string `json:"name" binding:"required" example:"Loja Centro"`
	SerialNumber string `json:"serial_number" binding:"required" example:"PAX-A910-0001"`
	Acquirer     string `json:"acquirer" example:"Cielo"`
	BankAccount  string `json:"bank_account" example:"0001-12345-6"`
} //@name CreateTerminalRequest

// TerminalResponse represents terminal response data
type TerminalResponse struct {
	ID           uint      `json:"id" example:"1"`
	CreatedAt    time.Time `json:"created_at" example:"2024-03-01T00:00:00Z"`
	Name         string    `json:"name" example:"Loja Centro"`
	SerialNumber string    `json:"serial_number" example:"PAX-A910-0001"`
	Acquirer     string    `json:"acquirer" example:"Cielo"`
	BankAccount  string    `json:"bank_account" example:"0001-12345-6"`
	Active       bool      `json:"active" example:"true"`
} //@name TerminalResponse

// SaleInput is one sale in a registration batch
type SaleInput struct {
	NSU               string          `json:"nsu" binding:"required" example:"000123"`
	AuthorizationCode string          `json:"authorization_code" example:"A1B2C3"`
	TransactionDate   time.Time       `json:"transaction_date" binding:"required" example:"2024-03-05T14:30:00Z"`
	GrossAmount       decimal.Decimal `json:"gross_amount" swaggertype:"string" example:"150.00"`
	FeeAmount         decimal.Decimal `json:"fee_amount" swaggertype:"string" example:"3.00"`
	NetAmount         decimal.Decimal `json:"net_amount" swaggertype:"string" example:"147.00"`
	CardBrand         string          `json:"card_brand" example:"VISA"`
	TransactionKind   string          `json:"transaction_kind" example:"CREDIT"`
	Installments      int             `json:"installments" example:"1"`
} //@name SaleInput

// RegisterSalesRequest represents a batch of terminal sales
type RegisterSalesRequest struct {
	Sales []SaleInput `json:"sales" binding:"required,min=1,dive"`
} //@name RegisterSalesRequest

// ReceiptInput is one bank credit in a registration batch
type ReceiptInput struct {
	ReceiptDate       time.Time       `json:"receipt_date" binding:"required" example:"2024-03-06T00:00:00Z"`
	Amount            decimal.Decimal `json:"amount" swaggertype:"string" example:"147.00"`
	Description       string          `json:"description" example:"CIELO CREDITO"`
	DocumentReference string          `json:"document_reference" example:"000123"`
} //@name ReceiptInput

// RegisterReceiptsRequest represents a batch of bank receipts
type RegisterReceiptsRequest struct {
	Receipts []ReceiptInput `json:"receipts" binding:"required,min=1,dive"`
} //@name RegisterReceiptsRequest

// SaleResponse represents terminal sale response data
type SaleResponse struct {
	ID                uint            `json:"id" example:"1"`
	TerminalID        uint            `json:"terminal_id" example:"1"`
	NSU               string          `json:"nsu" example:"000123"`
	AuthorizationCode string          `json:"authorization_code" example:"A1B2C3"`
	TransactionDate   time.Time       `json:"transaction_date" example:"2024-03-05T14:30:00Z"`
	GrossAmount       decimal.Decimal `json:"gross_amount" swaggertype:"string" example:"150.00"`
	FeeAmount         decimal.Decimal `json:"fee_amount" swaggertype:"string" example:"3.00"`
	NetAmount         decimal.Decimal `json:"net_amount" swaggertype:"string" example:"147.00"`
	CardBrand         string          `json:"card_brand" example:"VISA"`
	TransactionKind   string          `json:"transaction_kind" example:"CREDIT"`
	Installments      int             `json:"installments" example:"1"`
	Status            string          `json:"status" example:"RECONCILED"`
	LinkedReceiptID   *uint           `json:"linked_receipt_id,omitempty" example:"9"`
	MatchGroupID      *string         `json:"match_group_id,omitempty"`
	MatchMethod       string          `json:"match_method,omitempty" example:"AUTOMATIC"`
	ReconciledAt      *time.Time      `json:"reconciled_at,omitempty"`
} //@name SaleResponse

// ReceiptResponse represents bank receipt response data
type ReceiptResponse struct {
	ID                uint            `json:"id" example:"9"`
	TerminalID        uint            `json:"terminal_id" example:"1"`
	ReceiptDate       time.Time       `json:"receipt_date" example:"2024-03-06T00:00:00Z"`
	Amount            decimal.Decimal `json:"amount" swaggertype:"string" example:"147.00"`
	Description       string          `json:"description" example:"CIELO CREDITO"`
	DocumentReference string          `json:"document_reference" example:"000123"`
	Status            string          `json:"status" example:"RECONCILED"`
	LinkedSaleID      *uint           `json:"linked_sale_id,omitempty" example:"1"`
	MatchGroupID      *string         `json:"match_group_id,omitempty"`
	MatchMethod       string          `json:"match_method,omitempty" example:"AUTOMATIC"`
	ReconciledAt      *time.Time      `json:"reconciled_at,omitempty"`
} //@name ReceiptResponse

// MatchingRequest carries optional tolerance overrides. Missing fields use the configured defaults.
type MatchingRequest struct {
	AmountTolerance *decimal.Decimal `json:"amount_tolerance,omitempty" swaggertype:"string" example:"1.00"`
	DayTolerance    *int             `json:"day_tolerance,omitempty" binding:"omitempty,min=0,max=31" example:"2"`
} //@name MatchingRequest

// ManualLinkRequest force-pairs a sale with a receipt
type ManualLinkRequest struct {
	SaleID    uint `json:"sale_id" binding:"required" example:"1"`
	ReceiptID uint `json:"receipt_id" binding:"required" example:"9"`
} //@name ManualLinkRequest

// ResolveDivergenceRequest closes a divergence
type ResolveDivergenceRequest struct {
	Kind   string `json:"kind" binding:"required,oneof=JUSTIFICATION MANUAL_ADJUSTMENT" example:"JUSTIFICATION"`
	Reason string `json:"reason" binding:"required" example:"Chargeback settled outside the terminal"`
} //@name ResolveDivergenceRequest

// DivergenceResponse represents divergence response data
type DivergenceResponse struct {
	ID               uint            `json:"id" example:"1"`
	CreatedAt        time.Time       `json:"created_at" example:"2024-04-01T03:00:00Z"`
	TerminalID       uint            `json:"terminal_id" example:"1"`
	Period           string          `json:"period" example:"2024-03"`
	Kind             string          `json:"kind" example:"AMOUNT_MISMATCH"`
	Severity         string          `json:"severity" example:"WARNING"`
	RecordType       string          `json:"record_type" example:"SALE"`
	RecordID         uint            `json:"record_id" example:"1"`
	CounterpartID    *uint           `json:"counterpart_id,omitempty" example:"9"`
	ExpectedAmount   decimal.Decimal `json:"expected_amount" swaggertype:"string" example:"147.00"`
	FoundAmount      decimal.Decimal `json:"found_amount" swaggertype:"string" example:"140.00"`
	Difference       decimal.Decimal `json:"difference" swaggertype:"string" example:"-7.00"`
	Status           string          `json:"status" example:"PENDING"`
	ResolutionKind   string          `json:"resolution_kind,omitempty" example:"JUSTIFICATION"`
	ResolutionReason string          `json:"resolution_reason,omitempty"`
	ResolvedAt       *time.Time      `json:"resolved_at,omitempty"`
	ResolvedBy       *uint           `json:"resolved_by,omitempty" example:"2"`
} //@name DivergenceResponse

// ReconciliationResponse represents the per terminal and period summary
type ReconciliationResponse struct {
	TerminalID          uint            `json:"terminal_id" example:"1"`
	Period              string          `json:"period" example:"2024-03"`
	TotalSales          decimal.Decimal `json:"total_sales" swaggertype:"string" example:"15000.00"`
	TotalReceipts       decimal.Decimal `json:"total_receipts" swaggertype:"string" example:"14850.00"`
	Difference          decimal.Decimal `json:"difference" swaggertype:"string" example:"150.00"`
	ReconciliationRate  decimal.Decimal `json:"reconciliation_rate" swaggertype:"string" example:"87.5"`
	TotalSalesBRL       string          `json:"total_sales_brl" example:"R$ 15.000,00"`
	TotalReceiptsBRL    string          `json:"total_receipts_brl" example:"R$ 14.850,00"`
	DifferenceBRL       string          `json:"difference_brl" example:"R$ 150,00"`
	SalesCount          int             `json:"sales_count" example:"40"`
	ReceiptsCount       int             `json:"receipts_count" example:"38"`
	ReconciledSales     int             `json:"reconciled_sales" example:"35"`
	ReconciledReceipts  int             `json:"reconciled_receipts" example:"35"`
	PendingDivergences  int             `json:"pending_divergences" example:"8"`
	ResolvedDivergences int             `json:"resolved_divergences" example:"0"`
	Status              string          `json:"status" example:"DIVERGENT"`
	LastRunID           string          `json:"last_run_id,omitempty"`
	LastRunAt           *time.Time      `json:"last_run_at,omitempty"`
	LastRunBy           *uint           `json:"last_run_by,omitempty" example:"2"`
} //@name ReconciliationResponse

// MatchResponse is one link created by a run
type MatchResponse struct {
	SaleIDs   []uint `json:"sale_ids"`
	ReceiptID uint   `json:"receipt_id" example:"9"`
	Method    string `json:"method" example:"AUTOMATIC"`
} //@name MatchResponse

// RunResponse reports what a reconciliation run changed
type RunResponse struct {
	RunID              string                 `json:"run_id"`
	Summary            ReconciliationResponse `json:"summary"`
	Matches            []MatchResponse        `json:"matches"`
	MatchedSales       int                    `json:"matched_sales" example:"35"`
	NewDivergences     int                    `json:"new_divergences" example:"8"`
	ClearedDivergences int                    `json:"cleared_divergences" example:"2"`
} //@name RunResponse

// PaginationMeta represents pagination metadata
type PaginationMeta struct {
	Page     int `json:"page" example:"1"`
	PageSize int `json:"page_size" example:"20"`
} //@name PaginationMeta

// ListResponse wraps one page of items
type ListResponse struct {
	Items      interface{}    `json:"items"`
	Pagination PaginationMeta `json:"pagination"`
} //@name ListResponse

// APIResponse represents a standard API response
type APIResponse struct {
	Success bool        `json:"success" example:"true"`
	Message string      `json:"message" example:"Operation successful"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty" example:""`
} //@name APIResponse

// ErrorResponse represents an error response
type ErrorResponse struct {
	Success bool   `json:"success" example:"false"`
	Message string `json:"message" example:"Operation failed"`
	Error   string `json:"error" example:"Validation error"`
} //@name ErrorResponse

// Helper functions to convert models to DTOs
func ToUserResponse(user *models.User) UserResponse {
	return UserResponse{
		ID:        user.ID,
		CreatedAt: user.CreatedAt,
		UpdatedAt: user.UpdatedAt,
		Name:      user.Name,
		Email:     user.Email,
		Role:      string(user.Role),
	}
}

func ToTerminalResponse(terminal *models.Terminal) TerminalResponse {
	return TerminalResponse{
		ID:           terminal.ID,
		CreatedAt:    terminal.CreatedAt,
		Name:         terminal.Name,
		SerialNumber: terminal.SerialNumber,
		Acquirer:     terminal.Acquirer,
		BankAccount:  terminal.BankAccount,
		Active:       terminal.Active,
	}
}

func ToTerminalResponses(terminals []models.Terminal) []TerminalResponse {
	out := make([]TerminalResponse, 0, len(terminals))
	for i := range terminals {
		out = append(out, ToTerminalResponse(&terminals[i]))
	}
	return out
}

// ToSale converts one batch item into a model. Defaults are applied by the use case.
func (in SaleInput) ToSale() models.TerminalSale {
	return models.TerminalSale{
		NSU:               in.NSU,
		AuthorizationCode: in.AuthorizationCode,
		TransactionDate:   in.TransactionDate,
		GrossAmount:       in.GrossAmount,
		FeeAmount:         in.FeeAmount,
		NetAmount:         in.NetAmount,
		CardBrand:         in.CardBrand,
		TransactionKind:   models.TransactionKind(in.TransactionKind),
		Installments:      in.Installments,
	}
}

func (in ReceiptInput) ToReceipt() models.BankReceipt {
	return models.BankReceipt{
		ReceiptDate:       in.ReceiptDate,
		Amount:            in.Amount,
		Description:       in.Description,
		DocumentReference: in.DocumentReference,
	}
}

func ToSaleResponse(sale *models.TerminalSale) SaleResponse {
	return SaleResponse{
		ID:                sale.ID,
		TerminalID:        sale.TerminalID,
		NSU:               sale.NSU,
		AuthorizationCode: sale.AuthorizationCode,
		TransactionDate:   sale.TransactionDate,
		GrossAmount:       sale.GrossAmount,
		FeeAmount:         sale.FeeAmount,
		NetAmount:         sale.NetAmount,
		CardBrand:         sale.CardBrand,
		TransactionKind:   string(sale.TransactionKind),
		Installments:      sale.Installments,
		Status:            string(sale.Status),
		LinkedReceiptID:   sale.LinkedReceiptID,
		MatchGroupID:      sale.MatchGroupID,
		MatchMethod:       string(sale.MatchMethod),
		ReconciledAt:      sale.ReconciledAt,
	}
}

func ToSaleResponses(sales []models.TerminalSale) []SaleResponse {
	out := make([]SaleResponse, 0, len(sales))
	for i := range sales {
		out = append(out, ToSaleResponse(&sales[i]))
	}
	return out
}

func ToReceiptResponse(receipt *models.BankReceipt) ReceiptResponse {
	return ReceiptResponse{
		ID:                receipt.ID,
		TerminalID:        receipt.TerminalID,
		ReceiptDate:       receipt.ReceiptDate,
		Amount:            receipt.Amount,
		Description:       receipt.Description,
		DocumentReference: receipt.DocumentReference,
		Status:            string(receipt.Status),
		LinkedSaleID:      receipt.LinkedSaleID,
		MatchGroupID:      receipt.MatchGroupID,
		MatchMethod:       string(receipt.MatchMethod),
		ReconciledAt:      receipt.ReconciledAt,
	}
}

func ToReceiptResponses(receipts []models.BankReceipt) []ReceiptResponse {
	out := make([]ReceiptResponse, 0, len(receipts))
	for i := range receipts {
		out = append(out, ToReceiptResponse(&receipts[i]))
	}
	return out
}

func ToDivergenceResponse(d *models.Divergence) DivergenceResponse {
	return DivergenceResponse{
		ID:               d.ID,
		CreatedAt:        d.CreatedAt,
		TerminalID:       d.TerminalID,
		Period:           d.Period,
		Kind:             string(d.Kind),
		Severity:         d.GetSeverity(),
		RecordType:       string(d.RecordType),
		RecordID:         d.RecordID,
		CounterpartID:    d.CounterpartID,
		ExpectedAmount:   d.ExpectedAmount,
		FoundAmount:      d.FoundAmount,
		Difference:       d.Difference(),
		Status:           string(d.Status),
		ResolutionKind:   string(d.ResolutionKind),
		ResolutionReason: d.ResolutionReason,
		ResolvedAt:       d.ResolvedAt,
		ResolvedBy:       d.ResolvedBy,
	}
}

func ToDivergenceResponses(divergences []models.Divergence) []DivergenceResponse {
	out := make([]DivergenceResponse, 0, len(divergences))
	for i := range divergences {
		out = append(out, ToDivergenceResponse(&divergences[i]))
	}
	return out
}

func ToReconciliationResponse(r *models.Reconciliation) ReconciliationResponse {
	return ReconciliationResponse{
		TerminalID:          r.TerminalID,
		Period:              r.Period,
		TotalSales:          r.TotalSales,
		TotalReceipts:       r.TotalReceipts,
		Difference:          r.Difference,
		ReconciliationRate:  r.ReconciliationRate,
		TotalSalesBRL:       utils.FormatBRL(r.TotalSales),
		TotalReceiptsBRL:    utils.FormatBRL(r.TotalReceipts),
		DifferenceBRL:       utils.FormatBRL(r.Difference),
		SalesCount:          r.SalesCount,
		ReceiptsCount:       r.ReceiptsCount,
		ReconciledSales:     r.ReconciledSales,
		ReconciledReceipts:  r.ReconciledReceipts,
		PendingDivergences:  r.PendingDivergences,
		ResolvedDivergences: r.ResolvedDivergences,
		Status:              string(r.Status),
		LastRunID:           r.LastRunID,
		LastRunAt:           r.LastRunAt,
		LastRunBy:           r.LastRunBy,
	}
}

func ToReconciliationResponses(items []models.Reconciliation) []ReconciliationResponse {
	out := make([]ReconciliationResponse, 0, len(items))
	for i := range items {
		out = append(out, ToReconciliationResponse(&items[i]))
	}
	return out
}

func ToRunResponse(result *usecases.RunResult) RunResponse {
	matches := make([]MatchResponse, 0, len(result.Matches))
	for _, m := range result.Matches {
		matches = append(matches, MatchResponse{
			SaleIDs:   m.SaleIDs,
			ReceiptID: m.ReceiptID,
			Method:    string(m.Method),
		})
	}
	return RunResponse{
		RunID:              result.RunID,
		Summary:            ToReconciliationResponse(result.Summary),
		Matches:            matches,
		MatchedSales:       result.MatchedSales(),
		NewDivergences:     result.NewDivergences,
		ClearedDivergences: result.ClearedDivergences,
	}
}
