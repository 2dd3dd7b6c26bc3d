// Package report exports a reconciliation summary and its divergences as an XLSX workbook.
package report

import (
	"bytes"
	"fmt"
	"time"

	"github.com/limistah/conciliation-service/internal/models"
	"github.com/limistah/conciliation-service/internal/utils"
	"github.com/xuri/excelize/v2"
)

const (
	SummarySheet     = "Resumo"
	DivergencesSheet = "Divergencias"
	ContentType      = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

var divergenceHeadings = []string{
	"ID", "Tipo", "Registro", "Registro ID", "Contraparte ID",
	"Valor Esperado", "Valor Encontrado", "Diferenca", "Severidade",
	"Status", "Resolucao", "Motivo", "Resolvido Em",
}

// FileName is the attachment name for a terminal and period export.
func FileName(terminalID uint, period string) string {
	return fmt.Sprintf("conciliacao_%d_%s.xlsx", terminalID, period)
}

// BuildWorkbook writes the summary sheet and one row per divergence.
func BuildWorkbook(summary *models.Reconciliation, divergences []models.Divergence) (*bytes.Buffer, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SummarySheet); err != nil {
		return nil, err
	}
	if _, err := f.NewSheet(DivergencesSheet); err != nil {
		return nil, err
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, err
	}

	if err := writeSummary(f, summary, bold); err != nil {
		return nil, fmt.Errorf("writing summary sheet: %w", err)
	}
	if err := writeDivergences(f, divergences, bold); err != nil {
		return nil, fmt.Errorf("writing divergences sheet: %w", err)
	}

	return f.WriteToBuffer()
}

func writeSummary(f *excelize.File, s *models.Reconciliation, style int) error {
	lastRun := ""
	if s.LastRunAt != nil {
		lastRun = s.LastRunAt.UTC().Format(time.RFC3339)
	}

	rows := [][]interface{}{
		{"Maquininha", s.TerminalID},
		{"Periodo", s.Period},
		{"Status", string(s.Status)},
		{"Total Vendas", utils.FormatBRL(s.TotalSales)},
		{"Total Recebimentos", utils.FormatBRL(s.TotalReceipts)},
		{"Diferenca", utils.FormatBRL(s.Difference)},
		{"Taxa de Conciliacao", utils.FormatPercent(s.ReconciliationRate)},
		{"Vendas", s.SalesCount},
		{"Vendas Conciliadas", s.ReconciledSales},
		{"Recebimentos", s.ReceiptsCount},
		{"Recebimentos Conciliados", s.ReconciledReceipts},
		{"Divergencias Pendentes", s.PendingDivergences},
		{"Divergencias Resolvidas", s.ResolvedDivergences},
		{"Ultima Execucao", lastRun},
	}

	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(SummarySheet, cell, &row); err != nil {
			return err
		}
	}

	if err := f.SetCellStyle(SummarySheet, "A1", fmt.Sprintf("A%d", len(rows)), style); err != nil {
		return err
	}
	return f.SetColWidth(SummarySheet, "A", "B", 26)
}

func writeDivergences(f *excelize.File, divergences []models.Divergence, style int) error {
	headings := make([]interface{}, len(divergenceHeadings))
	for i, h := range divergenceHeadings {
		headings[i] = h
	}
	if err := f.SetSheetRow(DivergencesSheet, "A1", &headings); err != nil {
		return err
	}
	lastCol, err := excelize.ColumnNumberToName(len(divergenceHeadings))
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(DivergencesSheet, "A1", lastCol+"1", style); err != nil {
		return err
	}

	for i, d := range divergences {
		counterpart := ""
		if d.CounterpartID != nil {
			counterpart = fmt.Sprint(*d.CounterpartID)
		}
		resolvedAt := ""
		if d.ResolvedAt != nil {
			resolvedAt = d.ResolvedAt.UTC().Format(time.RFC3339)
		}

		row := []interface{}{
			d.ID,
			string(d.Kind),
			string(d.RecordType),
			d.RecordID,
			counterpart,
			d.ExpectedAmount.InexactFloat64(),
			d.FoundAmount.InexactFloat64(),
			d.Difference().InexactFloat64(),
			d.GetSeverity(),
			string(d.Status),
			string(d.ResolutionKind),
			d.ResolutionReason,
			resolvedAt,
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(DivergencesSheet, cell, &row); err != nil {
			return err
		}
	}
	return nil
}
