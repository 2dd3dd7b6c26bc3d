package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// BankReceipt represents a credit on the bank statement (recebimento bancário)
type BankReceipt struct {
	ID                uint            `json:"id" gorm:"primarykey"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
	DeletedAt         gorm.DeletedAt  `json:"deleted_at,omitempty" gorm:"index"`
	TerminalID        uint            `json:"terminal_id" gorm:"not null;index"`
	ReceiptDate       time.Time       `json:"receipt_date" gorm:"not null;index"`
	Amount            decimal.Decimal `json:"amount" gorm:"type:decimal(15,2);not null"`
	Description       string          `json:"description" gorm:"type:text"`
	DocumentReference string          `json:"document_reference" gorm:"type:varchar(64);index"`
	Status            RecordStatus    `json:"status" gorm:"type:varchar(20);not null;default:'PENDING';index"`
	LinkedSaleID      *uint           `json:"linked_sale_id,omitempty" gorm:"index"`
	MatchGroupID      *string         `json:"match_group_id,omitempty" gorm:"type:varchar(36);index"`
	MatchMethod       MatchMethod     `json:"match_method,omitempty" gorm:"type:varchar(20)"`
	ReconciledAt      *time.Time      `json:"reconciled_at,omitempty"`

	Terminal Terminal `json:"-" gorm:"foreignKey:TerminalID"`
}

// TableName overrides the table name used by BankReceipt
func (BankReceipt) TableName() string {
	return "recebimentos_bancario"
}

// IsReconciled checks if the receipt is already linked or grouped
func (r *BankReceipt) IsReconciled() bool {
	return r.Status == RecordStatusReconciled
}

// MarkReconciled links the receipt to a sale (or a group when saleID is nil).
func (r *BankReceipt) MarkReconciled(saleID *uint, groupID *string, method MatchMethod, at time.Time) {
	r.Status = RecordStatusReconciled
	r.LinkedSaleID = saleID
	r.MatchGroupID = groupID
	r.MatchMethod = method
	r.ReconciledAt = &at
}
