package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// DivergenceKind classifies why a record stayed unmatched
type DivergenceKind string

const (
	DivergenceKindAmountMismatch       DivergenceKind = "AMOUNT_MISMATCH"
	DivergenceKindUnmatchedTransaction DivergenceKind = "UNMATCHED_TRANSACTION"
	DivergenceKindDateMismatch         DivergenceKind = "DATE_MISMATCH"
)

// RecordType names the side of the reconciliation a divergence is about
type RecordType string

const (
	RecordTypeSale    RecordType = "SALE"
	RecordTypeReceipt RecordType = "RECEIPT"
)

// DivergenceStatus: PENDING -> RESOLVED, terminal.
type DivergenceStatus string

const (
	DivergenceStatusPending  DivergenceStatus = "PENDING"
	DivergenceStatusResolved DivergenceStatus = "RESOLVED"
)

// ResolutionKind is how an operator closed a divergence
type ResolutionKind string

const (
	ResolutionKindJustification    ResolutionKind = "JUSTIFICATION"
	ResolutionKindManualAdjustment ResolutionKind = "MANUAL_ADJUSTMENT"
)

// Divergence flags one unmatched sale or receipt for manual review
type Divergence struct {
	ID               uint             `json:"id" gorm:"primarykey"`
	CreatedAt        time.Time        `json:"created_at"`
	UpdatedAt        time.Time        `json:"updated_at"`
	TerminalID       uint             `json:"terminal_id" gorm:"not null;index:idx_divergence_terminal_period"`
	Period           string           `json:"period" gorm:"type:varchar(7);not null;index:idx_divergence_terminal_period"`
	Kind             DivergenceKind   `json:"kind" gorm:"type:varchar(30);not null"`
	RecordType       RecordType       `json:"record_type" gorm:"type:varchar(10);not null;uniqueIndex:idx_divergence_record"`
	RecordID         uint             `json:"record_id" gorm:"not null;uniqueIndex:idx_divergence_record"`
	CounterpartID    *uint            `json:"counterpart_id,omitempty"`
	ExpectedAmount   decimal.Decimal  `json:"expected_amount" gorm:"type:decimal(15,2);not null"`
	FoundAmount      decimal.Decimal  `json:"found_amount" gorm:"type:decimal(15,2);not null"`
	Status           DivergenceStatus `json:"status" gorm:"type:varchar(20);not null;default:'PENDING';index"`
	ResolutionKind   ResolutionKind   `json:"resolution_kind,omitempty" gorm:"type:varchar(30)"`
	ResolutionReason string           `json:"resolution_reason,omitempty" gorm:"type:text"`
	ResolvedAt       *time.Time       `json:"resolved_at,omitempty"`
	ResolvedBy       *uint            `json:"resolved_by,omitempty"`
}

// TableName overrides the table name used by Divergence
func (Divergence) TableName() string {
	return "divergencias_conciliacao"
}

func (d *Divergence) IsResolved() bool {
	return d.Status == DivergenceStatusResolved
}

// Difference is found minus expected
func (d *Divergence) Difference() decimal.Decimal {
	return d.FoundAmount.Sub(d.ExpectedAmount)
}

// GetSeverity returns the review priority of the divergence
func (d *Divergence) GetSeverity() string {
	if d.IsResolved() {
		return "INFO"
	}
	switch d.Kind {
	case DivergenceKindDateMismatch:
		return "LOW"
	case DivergenceKindAmountMismatch:
		return "WARNING"
	case DivergenceKindUnmatchedTransaction:
		return "CRITICAL"
	default:
		return "UNKNOWN"
	}
}

// Resolve closes the divergence. Callers check IsResolved first.
func (d *Divergence) Resolve(kind ResolutionKind, reason string, operatorID uint, at time.Time) {
	d.Status = DivergenceStatusResolved
	d.ResolutionKind = kind
	d.ResolutionReason = reason
	d.ResolvedAt = &at
	d.ResolvedBy = &operatorID
}

// IsValidResolutionKind checks a resolution kind coming from a request
func IsValidResolutionKind(kind ResolutionKind) bool {
	return kind == ResolutionKindJustification || kind == ResolutionKindManualAdjustment
}
