package models

import (
	"time"

	"gorm.io/gorm"
)

// Terminal represents a card payment terminal (maquininha)
type Terminal struct {
	ID           uint           `json:"id" gorm:"primarykey"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	DeletedAt    gorm.DeletedAt `json:"deleted_at,omitempty" gorm:"index"`
	Name         string         `json:"name" gorm:"type:varchar(255);not null" validate:"required,min=2,max=100"`
	SerialNumber string         `json:"serial_number" gorm:"type:varchar(100);uniqueIndex;not null" validate:"required,max=100"`
	Acquirer     string         `json:"acquirer" gorm:"type:varchar(100)" validate:"max=100"`
	BankAccount  string         `json:"bank_account" gorm:"type:varchar(100)" validate:"max=100"`
	Active       bool           `json:"active" gorm:"not null;default:true;index"`
}

// TableName overrides the table name used by Terminal
func (Terminal) TableName() string {
	return "maquininhas"
}

// IsActive checks if the terminal still takes part in reconciliation runs
func (t *Terminal) IsActive() bool {
	return t.Active
}
