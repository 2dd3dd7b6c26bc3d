package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// RecordStatus is the reconciliation state of a sale or a bank receipt.
// The only transition is PENDING -> RECONCILED.
type RecordStatus string

const (
	RecordStatusPending    RecordStatus = "PENDING"
	RecordStatusReconciled RecordStatus = "RECONCILED"
)

// MatchMethod records how a record got reconciled
type MatchMethod string

const (
	MatchMethodNone      MatchMethod = ""
	MatchMethodAutomatic MatchMethod = "AUTOMATIC"
	MatchMethodReference MatchMethod = "REFERENCE"
	MatchMethodGrouped   MatchMethod = "GROUPED"
	MatchMethodManual    MatchMethod = "MANUAL"
)

// TransactionKind is the payment type captured by the terminal
type TransactionKind string

const (
	TransactionKindCredit  TransactionKind = "CREDIT"
	TransactionKindDebit   TransactionKind = "DEBIT"
	TransactionKindPix     TransactionKind = "PIX"
	TransactionKindVoucher TransactionKind = "VOUCHER"
)

// TerminalSale represents a sale captured by a card terminal (venda da maquininha)
type TerminalSale struct {
	ID                uint            `json:"id" gorm:"primarykey"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
	DeletedAt         gorm.DeletedAt  `json:"deleted_at,omitempty" gorm:"index"`
	TerminalID        uint            `json:"terminal_id" gorm:"not null;index;uniqueIndex:idx_sale_terminal_nsu"`
	NSU               string          `json:"nsu" gorm:"type:varchar(64);not null;uniqueIndex:idx_sale_terminal_nsu"`
	AuthorizationCode string          `json:"authorization_code" gorm:"type:varchar(64)"`
	TransactionDate   time.Time       `json:"transaction_date" gorm:"not null;index"`
	GrossAmount       decimal.Decimal `json:"gross_amount" gorm:"type:decimal(15,2);not null"`
	FeeAmount         decimal.Decimal `json:"fee_amount" gorm:"type:decimal(15,2);not null;default:0"`
	NetAmount         decimal.Decimal `json:"net_amount" gorm:"type:decimal(15,2);not null;default:0"`
	CardBrand         string          `json:"card_brand" gorm:"type:varchar(50)"`
	TransactionKind   TransactionKind `json:"transaction_kind" gorm:"type:varchar(20);not null"`
	Installments      int             `json:"installments" gorm:"not null;default:1"`
	Status            RecordStatus    `json:"status" gorm:"type:varchar(20);not null;default:'PENDING';index"`
	LinkedReceiptID   *uint           `json:"linked_receipt_id,omitempty" gorm:"index"`
	MatchGroupID      *string         `json:"match_group_id,omitempty" gorm:"type:varchar(36);index"`
	MatchMethod       MatchMethod     `json:"match_method,omitempty" gorm:"type:varchar(20)"`
	ReconciledAt      *time.Time      `json:"reconciled_at,omitempty"`

	Terminal Terminal `json:"-" gorm:"foreignKey:TerminalID"`
}

// TableName overrides the table name used by TerminalSale
func (TerminalSale) TableName() string {
	return "vendas_maquininha"
}

// IsReconciled checks if the sale is already linked or grouped
func (s *TerminalSale) IsReconciled() bool {
	return s.Status == RecordStatusReconciled
}

// SettlementAmount is the amount expected to land in the bank: net, or gross when no net was reported.
func (s *TerminalSale) SettlementAmount() decimal.Decimal {
	if s.NetAmount.IsZero() {
		return s.GrossAmount
	}
	return s.NetAmount
}

// MarkReconciled links the sale to a receipt (or a group when receiptID is nil).
func (s *TerminalSale) MarkReconciled(receiptID *uint, groupID *string, method MatchMethod, at time.Time) {
	s.Status = RecordStatusReconciled
	s.LinkedReceiptID = receiptID
	s.MatchGroupID = groupID
	s.MatchMethod = method
	s.ReconciledAt = &at
}
