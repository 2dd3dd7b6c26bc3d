package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// ReconciliationStatus represents the status of a terminal reconciliation for a period
type ReconciliationStatus string

const (
	ReconciliationStatusPending    ReconciliationStatus = "PENDING"
	ReconciliationStatusInProgress ReconciliationStatus = "IN_PROGRESS"
	ReconciliationStatusReconciled ReconciliationStatus = "RECONCILED"
	ReconciliationStatusDivergent  ReconciliationStatus = "DIVERGENT"
)

// Reconciliation is the per (terminal, period) summary (conciliação da maquininha)
type Reconciliation struct {
	ID                  uint                 `json:"id" gorm:"primarykey"`
	CreatedAt           time.Time            `json:"created_at"`
	UpdatedAt           time.Time            `json:"updated_at"`
	TerminalID          uint                 `json:"terminal_id" gorm:"not null;uniqueIndex:idx_reconciliation_terminal_period"`
	Period              string               `json:"period" gorm:"type:varchar(7);not null;uniqueIndex:idx_reconciliation_terminal_period"`
	TotalSales          decimal.Decimal      `json:"total_sales" gorm:"type:decimal(15,2);not null"`
	TotalReceipts       decimal.Decimal      `json:"total_receipts" gorm:"type:decimal(15,2);not null"`
	Difference          decimal.Decimal      `json:"difference" gorm:"type:decimal(15,2);not null"`
	ReconciliationRate  decimal.Decimal      `json:"reconciliation_rate" gorm:"type:decimal(5,2);not null"`
	SalesCount          int                  `json:"sales_count" gorm:"not null;default:0"`
	ReceiptsCount       int                  `json:"receipts_count" gorm:"not null;default:0"`
	ReconciledSales     int                  `json:"reconciled_sales" gorm:"not null;default:0"`
	ReconciledReceipts  int                  `json:"reconciled_receipts" gorm:"not null;default:0"`
	PendingDivergences  int                  `json:"pending_divergences" gorm:"not null;default:0"`
	ResolvedDivergences int                  `json:"resolved_divergences" gorm:"not null;default:0"`
	Status              ReconciliationStatus `json:"status" gorm:"type:varchar(20);not null;default:'PENDING'"`
	LastRunID           string               `json:"last_run_id,omitempty" gorm:"type:varchar(36)"`
	LastRunAt           *time.Time           `json:"last_run_at,omitempty"`
	LastRunBy           *uint                `json:"last_run_by,omitempty"`
}

// TableName overrides the table name used by Reconciliation
func (Reconciliation) TableName() string {
	return "conciliacoes_maquininha"
}

// HasDivergences checks if review work is still open
func (r *Reconciliation) HasDivergences() bool {
	return r.PendingDivergences > 0
}

// SettleStatus derives the status from the pending divergence count.
func (r *Reconciliation) SettleStatus() {
	if r.PendingDivergences > 0 {
		r.Status = ReconciliationStatusDivergent
		return
	}
	r.Status = ReconciliationStatusReconciled
}

// NewPendingReconciliation returns the summary of a period that never ran.
func NewPendingReconciliation(terminalID uint, period Period) *Reconciliation {
	return &Reconciliation{
		TerminalID:         terminalID,
		Period:             period.String(),
		TotalSales:         decimal.Zero,
		TotalReceipts:      decimal.Zero,
		Difference:         decimal.Zero,
		ReconciliationRate: decimal.Zero,
		Status:             ReconciliationStatusPending,
	}
}
