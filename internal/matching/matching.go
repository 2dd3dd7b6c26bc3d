// Package matching pairs card-terminal sales with bank receipts.
//
// Every function here is pure: inputs are snapshots of pending records and
// the output describes the links to create. The result does not depend on
// the order of the input slices.
package matching

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/limistah/conciliation-service/internal/models"
	"github.com/shopspring/decimal"
)

// Sale is the matching view of a terminal sale.
type Sale struct {
	ID     uint
	NSU    string
	Date   time.Time
	Amount decimal.Decimal
}

// Receipt is the matching view of a bank receipt.
type Receipt struct {
	ID        uint
	Reference string
	Date      time.Time
	Amount    decimal.Decimal
}

// Tolerance bounds are inclusive.
type Tolerance struct {
	Amount decimal.Decimal
	Days   int
}

// MaxDays caps the day window a caller may request. Periods are loaded with
// the day tolerance as margin, so the cap also bounds how far a run reads.
const MaxDays = 31

// MaxAmount caps the amount tolerance a caller may request.
var MaxAmount = decimal.NewFromInt(1000)

// Validate reports whether both bounds are non-negative and within the caps.
func (t Tolerance) Validate() error {
	if t.Amount.IsNegative() || t.Days < 0 {
		return errors.New("tolerances must not be negative")
	}
	if t.Days > MaxDays {
		return fmt.Errorf("day tolerance must be at most %d", MaxDays)
	}
	if t.Amount.GreaterThan(MaxAmount) {
		return fmt.Errorf("amount tolerance must be at most %s", MaxAmount.StringFixed(2))
	}
	return nil
}

// DefaultTolerance is 1.00 currency unit and 2 days.
func DefaultTolerance() Tolerance {
	return Tolerance{Amount: decimal.NewFromInt(1), Days: 2}
}

// Match links one receipt to one sale, or to several sales for grouped matches.
type Match struct {
	SaleIDs   []uint
	ReceiptID uint
	Method    models.MatchMethod
}

// Finding is the divergence of one record left pending.
type Finding struct {
	RecordType    models.RecordType
	RecordID      uint
	CounterpartID *uint
	Kind          models.DivergenceKind
	Expected      decimal.Decimal
	Found         decimal.Decimal
}

// Result of a matching pass.
type Result struct {
	Matches         []Match
	PendingSales    []Sale
	PendingReceipts []Receipt
}

// MatchedSales counts the sales reconciled by the pass.
func (r Result) MatchedSales() int {
	n := 0
	for _, m := range r.Matches {
		n += len(m.SaleIDs)
	}
	return n
}

// Run performs the automatic pass: reference (NSU) matches first, then the
// nearest receipt within tolerance for every remaining sale.
//
// Sales are visited in (date, amount, id) order. Among qualifying receipts the
// one with the smallest day distance wins, then the smallest amount distance,
// then the earliest (date, amount, id).
func Run(sales []Sale, receipts []Receipt, tol Tolerance) Result {
	ss := sortedSales(sales)
	rs := sortedReceipts(receipts)
	usedSales := make(map[uint]bool, len(ss))
	usedReceipts := make(map[uint]bool, len(rs))

	var matches []Match

	byRef := make(map[string][]int)
	for i, r := range rs {
		if ref := NormalizeReference(r.Reference); ref != "" {
			byRef[ref] = append(byRef[ref], i)
		}
	}
	for _, s := range ss {
		nsu := NormalizeReference(s.NSU)
		if nsu == "" {
			continue
		}
		for _, i := range byRef[nsu] {
			r := rs[i]
			if usedReceipts[r.ID] || !withinAmount(s.Amount, r.Amount, tol) {
				continue
			}
			usedSales[s.ID] = true
			usedReceipts[r.ID] = true
			matches = append(matches, Match{SaleIDs: []uint{s.ID}, ReceiptID: r.ID, Method: models.MatchMethodReference})
			break
		}
	}

	for _, s := range ss {
		if usedSales[s.ID] {
			continue
		}
		best := -1
		var bestDays int
		var bestDiff decimal.Decimal
		for i, r := range rs {
			if usedReceipts[r.ID] {
				continue
			}
			days := DayDistance(s.Date, r.Date)
			if days > tol.Days {
				continue
			}
			diff := s.Amount.Sub(r.Amount).Abs()
			if diff.GreaterThan(tol.Amount) {
				continue
			}
			if best == -1 || days < bestDays || (days == bestDays && diff.LessThan(bestDiff)) {
				best, bestDays, bestDiff = i, days, diff
			}
		}
		if best == -1 {
			continue
		}
		r := rs[best]
		usedSales[s.ID] = true
		usedReceipts[r.ID] = true
		matches = append(matches, Match{SaleIDs: []uint{s.ID}, ReceiptID: r.ID, Method: models.MatchMethodAutomatic})
	}

	return Result{
		Matches:         matches,
		PendingSales:    remainingSales(ss, usedSales),
		PendingReceipts: remainingReceipts(rs, usedReceipts),
	}
}

// RunGrouped matches one receipt against all pending sales of a single day
// when their summed amount is within tolerance of the receipt. Candidate days
// lie at most tol.Days before the receipt date and are tried nearest first.
// Groups need at least two sales; single sales are left to Run.
func RunGrouped(sales []Sale, receipts []Receipt, tol Tolerance) Result {
	ss := sortedSales(sales)
	rs := sortedReceipts(receipts)
	usedSales := make(map[uint]bool, len(ss))
	usedReceipts := make(map[uint]bool, len(rs))

	byDay := make(map[time.Time][]Sale)
	var days []time.Time
	for _, s := range ss {
		d := dateOnly(s.Date)
		if _, seen := byDay[d]; !seen {
			days = append(days, d)
		}
		byDay[d] = append(byDay[d], s)
	}
	// ss is date ordered, so days is ascending

	var matches []Match
	for _, r := range rs {
		receiptDay := dateOnly(r.Date)
		// walk sale days backwards from the receipt day, nearest first
		i := sort.Search(len(days), func(i int) bool { return days[i].After(receiptDay) })
		for i--; i >= 0; i-- {
			day := days[i]
			if DayDistance(day, receiptDay) > tol.Days {
				break
			}
			var group []uint
			total := decimal.Zero
			for _, s := range byDay[day] {
				if usedSales[s.ID] {
					continue
				}
				group = append(group, s.ID)
				total = total.Add(s.Amount)
			}
			if len(group) < 2 || !withinAmount(total, r.Amount, tol) {
				continue
			}
			for _, id := range group {
				usedSales[id] = true
			}
			usedReceipts[r.ID] = true
			matches = append(matches, Match{SaleIDs: group, ReceiptID: r.ID, Method: models.MatchMethodGrouped})
			break
		}
	}

	return Result{
		Matches:         matches,
		PendingSales:    remainingSales(ss, usedSales),
		PendingReceipts: remainingReceipts(rs, usedReceipts),
	}
}

// Classify returns exactly one finding per pending sale and receipt.
//
// A record with a pending counterpart inside the day window but outside the
// amount tolerance is an amount mismatch. One with a counterpart inside the
// amount tolerance but outside the day window is a date mismatch. Anything
// else is an unmatched transaction.
func Classify(sales []Sale, receipts []Receipt, tol Tolerance) []Finding {
	ss := sortedSales(sales)
	rs := sortedReceipts(receipts)
	findings := make([]Finding, 0, len(ss)+len(rs))

	for _, s := range ss {
		f := Finding{
			RecordType: models.RecordTypeSale,
			RecordID:   s.ID,
			Kind:       models.DivergenceKindUnmatchedTransaction,
			Expected:   s.Amount,
			Found:      decimal.Zero,
		}
		if i, kind := nearestCounterpart(s.Date, s.Amount, len(rs), func(i int) (time.Time, decimal.Decimal) {
			return rs[i].Date, rs[i].Amount
		}, tol); i >= 0 {
			id := rs[i].ID
			f.Kind = kind
			f.CounterpartID = &id
			f.Found = rs[i].Amount
		}
		findings = append(findings, f)
	}

	for _, r := range rs {
		f := Finding{
			RecordType: models.RecordTypeReceipt,
			RecordID:   r.ID,
			Kind:       models.DivergenceKindUnmatchedTransaction,
			Expected:   decimal.Zero,
			Found:      r.Amount,
		}
		if i, kind := nearestCounterpart(r.Date, r.Amount, len(ss), func(i int) (time.Time, decimal.Decimal) {
			return ss[i].Date, ss[i].Amount
		}, tol); i >= 0 {
			id := ss[i].ID
			f.Kind = kind
			f.CounterpartID = &id
			f.Expected = ss[i].Amount
		}
		findings = append(findings, f)
	}

	return findings
}

// nearestCounterpart finds the best near-miss among n candidates. Amount
// mismatches (same day window) take precedence over date mismatches.
func nearestCounterpart(date time.Time, amount decimal.Decimal, n int, at func(int) (time.Time, decimal.Decimal), tol Tolerance) (int, models.DivergenceKind) {
	bestAmount, bestDate := -1, -1
	var bestAmountDiff decimal.Decimal
	var bestDateDays int
	for i := 0; i < n; i++ {
		d, a := at(i)
		days := DayDistance(date, d)
		diff := amount.Sub(a).Abs()
		switch {
		case days <= tol.Days && diff.GreaterThan(tol.Amount):
			if bestAmount == -1 || diff.LessThan(bestAmountDiff) {
				bestAmount, bestAmountDiff = i, diff
			}
		case days > tol.Days && !diff.GreaterThan(tol.Amount):
			if bestDate == -1 || days < bestDateDays {
				bestDate, bestDateDays = i, days
			}
		}
	}
	if bestAmount >= 0 {
		return bestAmount, models.DivergenceKindAmountMismatch
	}
	if bestDate >= 0 {
		return bestDate, models.DivergenceKindDateMismatch
	}
	return -1, models.DivergenceKindUnmatchedTransaction
}

// DayDistance is the absolute number of calendar days between two instants in UTC.
func DayDistance(a, b time.Time) int {
	hours := dateOnly(a).Sub(dateOnly(b)).Hours()
	if hours < 0 {
		hours = -hours
	}
	return int(hours/24 + 0.5)
}

// NormalizeReference makes NSUs and document references comparable: trimmed,
// upper-cased, leading zeros removed.
func NormalizeReference(ref string) string {
	ref = strings.ToUpper(strings.TrimSpace(ref))
	trimmed := strings.TrimLeft(ref, "0")
	if trimmed == "" && ref != "" {
		return "0"
	}
	return trimmed
}

func withinAmount(a, b decimal.Decimal, tol Tolerance) bool {
	return !a.Sub(b).Abs().GreaterThan(tol.Amount)
}

func dateOnly(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func sortedSales(in []Sale) []Sale {
	out := append([]Sale(nil), in...)
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.Before(out[j].Date)
		}
		if c := out[i].Amount.Cmp(out[j].Amount); c != 0 {
			return c < 0
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func sortedReceipts(in []Receipt) []Receipt {
	out := append([]Receipt(nil), in...)
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.Before(out[j].Date)
		}
		if c := out[i].Amount.Cmp(out[j].Amount); c != 0 {
			return c < 0
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func remainingSales(ss []Sale, used map[uint]bool) []Sale {
	var out []Sale
	for _, s := range ss {
		if !used[s.ID] {
			out = append(out, s)
		}
	}
	return out
}

func remainingReceipts(rs []Receipt, used map[uint]bool) []Receipt {
	var out []Receipt
	for _, r := range rs {
		if !used[r.ID] {
			out = append(out, r)
		}
	}
	return out
}
