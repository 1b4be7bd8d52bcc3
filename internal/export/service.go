package export

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/joseph-ayodele/tms-reconciler/internal/entity"
)

const (
	SummarySheet = "Summary"
	RowsSheet    = "Rows"
)

var rowHeaders = []string{
	"Line Invoice #",
	"Chassis",
	"Container",
	"Match Type",
	"Confidence",
	"LD #",
	"SO #",
	"Shipment #",
	"TMS Chassis",
	"TMS Container",
	"Pickup Date",
	"Delivery Date",
	"Carrier",
	"Customer",
	"Match Reasons",
	"Notes",
}

// Service renders reconciliation results as XLSX workbooks.
type Service struct {
	logger *zap.Logger
}

func NewService(logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{logger: logger}
}

// ValidationXLSX returns a workbook with a Summary sheet (header, counts, errors and
// warnings) and a Rows sheet with one row per line item in input order.
func (s *Service) ValidationXLSX(ctx context.Context, header entity.InvoiceHeader, res *entity.ValidationResult) ([]byte, error) {
	if res == nil {
		return nil, fmt.Errorf("nil validation result")
	}
	start := time.Now()

	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	// the default sheet becomes Summary
	if err := f.SetSheetName("Sheet1", SummarySheet); err != nil {
		return nil, err
	}
	if _, err := f.NewSheet(RowsSheet); err != nil {
		return nil, err
	}

	if err := writeSummary(f, header, res); err != nil {
		return nil, fmt.Errorf("xlsx summary: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := writeRows(f, res.Rows); err != nil {
		return nil, fmt.Errorf("xlsx rows: %w", err)
	}

	idx, _ := f.GetSheetIndex(SummarySheet)
	f.SetActiveSheet(idx)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}

	s.logger.Info("export.xlsx.ok",
		zap.String("invoice_id", header.InvoiceID),
		zap.String("run_id", res.RunID),
		zap.Int("rows", len(res.Rows)),
		zap.Int64("elapsed_ms", time.Since(start).Milliseconds()),
	)
	return buf.Bytes(), nil
}

func writeSummary(f *excelize.File, h entity.InvoiceHeader, res *entity.ValidationResult) error {
	pairs := [][2]any{
		{"Invoice ID", h.InvoiceID},
		{"Vendor", h.Vendor},
		{"Account Code", h.AccountCode},
		{"Billing Date", h.BillingDate},
		{"Due Date", h.DueDate},
		{"Amount Due", h.AmountDue.StringFixed(2)},
		{"Currency", h.CurrencyCode},
		{"Run ID", res.RunID},
		{"Exact Matches", res.Summary.ExactMatches},
		{"Fuzzy Matches", res.Summary.FuzzyMatches},
		{"Mismatches", res.Summary.Mismatches},
		{"Total Rows", res.Summary.TotalRows},
		{"Ready To Save", res.ReadyToSave()},
	}
	row := 1
	for _, p := range pairs {
		if err := f.SetSheetRow(SummarySheet, cellName(1, row), &[]any{p[0], p[1]}); err != nil {
			return err
		}
		row++
	}

	for _, section := range []struct {
		title string
		items []string
	}{{"Errors", res.Errors}, {"Warnings", res.Warnings}} {
		if len(section.items) == 0 {
			continue
		}
		row++
		if err := f.SetCellValue(SummarySheet, cellName(1, row), section.title); err != nil {
			return err
		}
		for _, item := range section.items {
			row++
			if err := f.SetCellValue(SummarySheet, cellName(2, row), item); err != nil {
				return err
			}
		}
	}

	_ = f.SetColWidth(SummarySheet, "A", "A", 18)
	_ = f.SetColWidth(SummarySheet, "B", "B", 60)
	return nil
}

func writeRows(f *excelize.File, rows []entity.ValidationRow) error {
	hdr := make([]any, len(rowHeaders))
	for i, h := range rowHeaders {
		hdr[i] = h
	}
	if err := f.SetSheetRow(RowsSheet, "A1", &hdr); err != nil {
		return err
	}
	if err := f.SetPanes(RowsSheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return err
	}

	for i, r := range rows {
		values := []any{
			r.LineInvoiceNumber,
			r.Chassis,
			r.Container,
			string(r.MatchType),
			r.MatchConfidence,
		}
		if m := r.TMSMatch; m != nil {
			values = append(values,
				m.LDNum, m.SONum, m.ShipmentNumber, m.ChassisNumber, m.ContainerNumber,
				m.PickupActualDate, m.DeliveryActualDate, m.CarrierName, m.CustomerName,
				strings.Join(m.MatchReasons, "; "),
			)
		} else {
			values = append(values, "", "", "", "", "", "", "", "", "", "")
		}
		values = append(values, strings.Join(r.Notes, "; "))
		if err := f.SetSheetRow(RowsSheet, cellName(1, i+2), &values); err != nil {
			return err
		}
	}

	_ = f.SetColWidth(RowsSheet, "A", "C", 16)
	_ = f.SetColWidth(RowsSheet, "D", "E", 12)
	_ = f.SetColWidth(RowsSheet, "F", "N", 14)
	_ = f.SetColWidth(RowsSheet, "O", "P", 48)
	return nil
}

func cellName(col, row int) string {
	cell, _ := excelize.CoordinatesToCellName(col, row)
	return cell
}
