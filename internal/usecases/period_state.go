package usecases

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/limistah/conciliation-service/internal/matching"
	"github.com/limistah/conciliation-service/internal/models"
	"github.com/limistah/conciliation-service/internal/repositories"
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

type recordKey struct {
	recordType models.RecordType
	id         uint
}

// periodState is the working copy of one terminal and period during a run.
// Receipts extend past the period end by the day tolerance; totals and new
// divergences only count records dated inside the period.
type periodState struct {
	terminalID uint
	period     models.Period
	tol        matching.Tolerance

	sales        []*models.TerminalSale
	receipts     []*models.BankReceipt
	salesByID    map[uint]*models.TerminalSale
	receiptsByID map[uint]*models.BankReceipt

	// flagged holds records that already carry a divergence, pending or resolved.
	flagged           map[recordKey]bool
	periodDivergences []models.Divergence
}

func newPeriodState(terminalID uint, period models.Period, tol matching.Tolerance, sales []models.TerminalSale, receipts []models.BankReceipt) *periodState {
	st := &periodState{
		terminalID:   terminalID,
		period:       period,
		tol:          tol,
		salesByID:    make(map[uint]*models.TerminalSale, len(sales)),
		receiptsByID: make(map[uint]*models.BankReceipt, len(receipts)),
		flagged:      make(map[recordKey]bool),
	}
	for i := range sales {
		s := &sales[i]
		st.sales = append(st.sales, s)
		st.salesByID[s.ID] = s
	}
	for i := range receipts {
		st.addReceipt(receipts[i])
	}
	return st
}

func (st *periodState) sale(id uint) *models.TerminalSale {
	return st.salesByID[id]
}

func (st *periodState) receipt(id uint) *models.BankReceipt {
	return st.receiptsByID[id]
}

// addReceipt brings a receipt outside the loaded window into the run.
func (st *periodState) addReceipt(receipt models.BankReceipt) *models.BankReceipt {
	r := &receipt
	st.receipts = append(st.receipts, r)
	st.receiptsByID[r.ID] = r
	return r
}

func (st *periodState) saleIDs() []uint {
	ids := make([]uint, 0, len(st.sales))
	for _, s := range st.sales {
		ids = append(ids, s.ID)
	}
	return ids
}

func (st *periodState) receiptIDs() []uint {
	ids := make([]uint, 0, len(st.receipts))
	for _, r := range st.receipts {
		ids = append(ids, r.ID)
	}
	return ids
}

func (st *periodState) pendingSales() []matching.Sale {
	var out []matching.Sale
	for _, s := range st.sales {
		if s.IsReconciled() {
			continue
		}
		out = append(out, matching.Sale{
			ID:     s.ID,
			NSU:    s.NSU,
			Date:   s.TransactionDate,
			Amount: s.SettlementAmount(),
		})
	}
	return out
}

func (st *periodState) pendingReceipts() []matching.Receipt {
	var out []matching.Receipt
	for _, r := range st.receipts {
		if r.IsReconciled() {
			continue
		}
		out = append(out, matching.Receipt{
			ID:        r.ID,
			Reference: r.DocumentReference,
			Date:      r.ReceiptDate,
			Amount:    r.Amount,
		})
	}
	return out
}

// apply marks the matched records reconciled and queues them for writing.
func (st *periodState) apply(matches []matching.Match, now time.Time, changes *repositories.RunChanges) error {
	for _, m := range matches {
		receipt := st.receipt(m.ReceiptID)
		if receipt == nil || receipt.IsReconciled() {
			return fmt.Errorf("receipt %d is not pending in this run", m.ReceiptID)
		}
		receiptID := receipt.ID

		sales := make([]*models.TerminalSale, 0, len(m.SaleIDs))
		for _, id := range m.SaleIDs {
			sale := st.sale(id)
			if sale == nil || sale.IsReconciled() {
				return fmt.Errorf("sale %d is not pending in this run", id)
			}
			sales = append(sales, sale)
		}

		switch {
		case m.Method == models.MatchMethodGrouped:
			groupID := uuid.NewString()
			for _, sale := range sales {
				sale.MarkReconciled(&receiptID, &groupID, m.Method, now)
			}
			receipt.MarkReconciled(nil, &groupID, m.Method, now)
		case len(sales) == 1:
			saleID := sales[0].ID
			sales[0].MarkReconciled(&receiptID, nil, m.Method, now)
			receipt.MarkReconciled(&saleID, nil, m.Method, now)
		default:
			return fmt.Errorf("%s match for receipt %d links %d sales", m.Method, m.ReceiptID, len(sales))
		}

		changes.Sales = append(changes.Sales, sales...)
		changes.Receipts = append(changes.Receipts, receipt)
	}
	return nil
}

// classify builds a divergence for every pending in-period record not yet flagged.
func (st *periodState) classify() []*models.Divergence {
	findings := matching.Classify(st.pendingSales(), st.pendingReceipts(), st.tol)

	var out []*models.Divergence
	for _, f := range findings {
		if st.flagged[recordKey{f.RecordType, f.RecordID}] {
			continue
		}
		if !st.inPeriod(f.RecordType, f.RecordID) {
			continue
		}
		out = append(out, &models.Divergence{
			TerminalID:     st.terminalID,
			Period:         st.period.String(),
			Kind:           f.Kind,
			RecordType:     f.RecordType,
			RecordID:       f.RecordID,
			CounterpartID:  f.CounterpartID,
			ExpectedAmount: f.Expected,
			FoundAmount:    f.Found,
			Status:         models.DivergenceStatusPending,
		})
	}
	return out
}

func (st *periodState) inPeriod(recordType models.RecordType, id uint) bool {
	if recordType == models.RecordTypeSale {
		s := st.sale(id)
		return s != nil && st.period.Contains(s.TransactionDate)
	}
	r := st.receipt(id)
	return r != nil && st.period.Contains(r.ReceiptDate)
}

// summarize computes the period summary after the run's changes.
// deleted holds divergence ids removed by the run.
func (st *periodState) summarize(deleted map[uint]bool, created []*models.Divergence) *models.Reconciliation {
	summary := models.NewPendingReconciliation(st.terminalID, st.period)

	for _, s := range st.sales {
		if !st.period.Contains(s.TransactionDate) {
			continue
		}
		summary.SalesCount++
		summary.TotalSales = summary.TotalSales.Add(s.SettlementAmount())
		if s.IsReconciled() {
			summary.ReconciledSales++
		}
	}
	for _, r := range st.receipts {
		if !st.period.Contains(r.ReceiptDate) {
			continue
		}
		summary.ReceiptsCount++
		summary.TotalReceipts = summary.TotalReceipts.Add(r.Amount)
		if r.IsReconciled() {
			summary.ReconciledReceipts++
		}
	}

	summary.Difference = summary.TotalSales.Sub(summary.TotalReceipts).Abs()
	if summary.SalesCount > 0 {
		summary.ReconciliationRate = decimal.NewFromInt(int64(summary.ReconciledSales)).
			Mul(hundred).
			Div(decimal.NewFromInt(int64(summary.SalesCount))).
			Round(2)
	}

	for _, d := range st.periodDivergences {
		if deleted[d.ID] {
			continue
		}
		if d.IsResolved() {
			summary.ResolvedDivergences++
		} else {
			summary.PendingDivergences++
		}
	}
	summary.PendingDivergences += len(created)

	summary.SettleStatus()
	return summary
}
