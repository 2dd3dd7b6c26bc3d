package utils

import (
	"strings"

	"github.com/shopspring/decimal"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// SanitizeString trims whitespace from string
func SanitizeString(input string) string {
	return strings.TrimSpace(input)
}

// NormalizeEmail converts email to lowercase and trims spaces
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Paginate turns a 1-based page into an offset and a bounded limit
func Paginate(page, pageSize int) (offset, limit int) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = DefaultPageSize
	}
	if pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}
	return (page - 1) * pageSize, pageSize
}

// FormatBRL formats an amount the Brazilian way: R$ 1.234,56
func FormatBRL(amount decimal.Decimal) string {
	negative := amount.IsNegative()
	amountStr := amount.Abs().StringFixed(2)

	parts := strings.Split(amountStr, ".")
	integerPart := groupThousands(parts[0], ".")

	formatted := "R$ " + integerPart + "," + parts[1]
	if negative {
		return "-" + formatted
	}
	return formatted
}

// FormatPercent renders a rate already expressed in percent: 87,50%
func FormatPercent(rate decimal.Decimal) string {
	return strings.Replace(rate.StringFixed(2), ".", ",", 1) + "%"
}

func groupThousands(digits, sep string) string {
	if len(digits) <= 3 {
		return digits
	}
	var b strings.Builder
	lead := len(digits) % 3
	if lead > 0 {
		b.WriteString(digits[:lead])
	}
	for i := lead; i < len(digits); i += 3 {
		if b.Len() > 0 {
			b.WriteString(sep)
		}
		b.WriteString(digits[i : i+3])
	}
	return b.String()
}
