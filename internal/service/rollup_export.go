package service

import (
	"context"
	"fmt"

	"github.com/xuri/excelize/v2"

	"wisefido-census/internal/domain"
)

const (
	rollupSheet  = "Census"
	pendingSheet = "Pending Wards"
)

var rollupHeader = []string{
	"Ward", "Opening Census", "Morning Census", "Closing Census",
	"New Admit", "Transfer In", "Refer In",
	"Transfer Out", "Refer Out", "Discharge", "Dead",
	"Total Admissions", "Total Departures",
	"Morning Staff", "Night Staff",
	"Status", "Attested By", "Attested At",
}

var pendingHeader = []string{"Ward", "Ward Name", "Reason"}

func (s *summaryService) ExportDailyRollup(ctx context.Context, date string) ([]byte, error) {
	r, err := s.GetDailyRollup(ctx, date)
	if err != nil {
		return nil, err
	}
	return RenderRollupWorkbook(r)
}

// RenderRollupWorkbook one row per included ward plus a totals row, and a sheet of pending wards.
func RenderRollupWorkbook(r *domain.DailyRollup) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(rollupSheet)
	if err != nil {
		return nil, fmt.Errorf("failed to create sheet: %w", err)
	}
	if _, err := f.NewSheet(pendingSheet); err != nil {
		return nil, fmt.Errorf("failed to create sheet: %w", err)
	}
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return nil, fmt.Errorf("failed to delete default sheet: %w", err)
	}
	f.SetActiveSheet(index)

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E6F3FF"}, Pattern: 1},
		Alignment: &excelize.Alignment{
			Horizontal: "center",
			Vertical:   "center",
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create header style: %w", err)
	}

	if err := writeRow(f, rollupSheet, 1, toRow(rollupHeader), headerStyle); err != nil {
		return nil, err
	}
	row := 2
	for _, w := range r.Wards {
		attestedBy, attestedAt := "", ""
		if w.Attestation != nil {
			attestedBy = w.Attestation.FirstName + " " + w.Attestation.LastName
			attestedAt = w.Attestation.AttestedAt.Format("2006-01-02 15:04")
		}
		m := w.Movements
		values := []any{
			w.WardID, w.OpeningCensus, w.MorningCensus, w.ClosingCensus,
			m.NewAdmit, m.TransferIn, m.ReferIn,
			m.TransferOut, m.ReferOut, m.Discharge, m.Dead,
			w.TotalAdmissions, w.TotalDepartures,
			w.MorningStaffing.Total(), w.NightStaffing.Total(),
			string(w.Status), attestedBy, attestedAt,
		}
		if err := writeRow(f, rollupSheet, row, values, 0); err != nil {
			return nil, err
		}
		row++
	}

	m := r.Movements
	totals := []any{
		"TOTAL", r.OpeningCensus, "", r.ClosingCensus,
		m.NewAdmit, m.TransferIn, m.ReferIn,
		m.TransferOut, m.ReferOut, m.Discharge, m.Dead,
		r.TotalAdmissions, r.TotalDepartures,
		"", "", fmt.Sprintf("%d/%d attested", r.AttestedWards, len(r.Wards)), "", "",
	}
	if err := writeRow(f, rollupSheet, row, totals, headerStyle); err != nil {
		return nil, err
	}

	if err := writeRow(f, pendingSheet, 1, toRow(pendingHeader), headerStyle); err != nil {
		return nil, err
	}
	for i, p := range r.PendingWards {
		if err := writeRow(f, pendingSheet, i+2, []any{p.WardID, p.WardName, p.Reason}, 0); err != nil {
			return nil, err
		}
	}

	if err := f.SetColWidth(rollupSheet, "A", "R", 14); err != nil {
		return nil, fmt.Errorf("failed to set column width: %w", err)
	}
	if err := f.SetColWidth(pendingSheet, "C", "C", 60); err != nil {
		return nil, fmt.Errorf("failed to set column width: %w", err)
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func writeRow(f *excelize.File, sheet string, row int, values []any, style int) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return fmt.Errorf("failed to convert coordinates: %w", err)
	}
	if err := f.SetSheetRow(sheet, cell, &values); err != nil {
		return fmt.Errorf("failed to write row %d of %s: %w", row, sheet, err)
	}
	if style == 0 {
		return nil
	}
	last, err := excelize.CoordinatesToCellName(len(values), row)
	if err != nil {
		return fmt.Errorf("failed to convert coordinates: %w", err)
	}
	if err := f.SetCellStyle(sheet, cell, last, style); err != nil {
		return fmt.Errorf("failed to set style: %w", err)
	}
	return nil
}

func toRow(header []string) []any {
	out := make([]any, len(header))
	for i, h := range header {
		out[i] = h
	}
	return out
}
