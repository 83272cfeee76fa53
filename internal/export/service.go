package export

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/xuri/excelize/v2"

	"billscan/internal/history"
)

// Service produces XLSX bytes for detection history exports.
type Service struct {
	store  *history.Store
	logger *slog.Logger
}

func NewService(store *history.Store, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: store, logger: logger}
}

// ExportDetectionsXLSX returns an XLSX workbook (as bytes) with one row per
// detected amount from the most recent limit history entries.
func (s *Service) ExportDetectionsXLSX(ctx context.Context, limit int) ([]byte, error) {
	start := time.Now()

	entries, err := s.store.List(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("query detections: %w", err)
	}
	return s.render(entries, start)
}

// RenderXLSX builds a workbook directly from entries, bypassing the store.
func (s *Service) RenderXLSX(entries []history.Entry) ([]byte, error) {
	return s.render(entries, time.Now())
}

func (s *Service) render(entries []history.Entry, start time.Time) ([]byte, error) {
	f := excelize.NewFile()
	const sheet = "Detections"
	if index, _ := f.GetSheetIndex(sheet); index == -1 {
		if _, err := f.NewSheet(sheet); err != nil {
			return nil, err
		}
	}
	activeIndex, _ := f.GetSheetIndex(sheet)
	f.SetActiveSheet(activeIndex)

	headers := []string{
		"Detected At",
		"Input",
		"Currency",
		"Status",
		"Overall Confidence",
		"Amount Type",
		"Value",
		"Confidence",
		"Source Snippet",
	}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, h)
	}

	row := 2
	rows := 0
	for _, e := range entries {
		write := func(col int, v any) {
			cell, _ := excelize.CoordinatesToCellName(col, row)
			_ = f.SetCellValue(sheet, cell, v)
		}

		writeEntry := func() {
			write(1, e.CreatedAt.Format("2006-01-02 15:04:05"))
			write(2, e.InputKind)
			write(3, e.Currency)
			write(4, e.Status)
			write(5, e.Confidence)
		}

		if len(e.Amounts) == 0 {
			writeEntry()
			row++
			rows++
			continue
		}
		for _, a := range e.Amounts {
			writeEntry()
			write(6, string(a.Type))
			write(7, a.Value)
			write(8, a.Confidence)
			write(9, truncate(a.Source, 140))
			row++
			rows++
		}
	}

	_ = f.SetColWidth(sheet, "A", "A", 20) // timestamp
	_ = f.SetColWidth(sheet, "B", "D", 12)
	_ = f.SetColWidth(sheet, "E", "E", 18)
	_ = f.SetColWidth(sheet, "F", "F", 14) // type
	_ = f.SetColWidth(sheet, "G", "H", 12)
	_ = f.SetColWidth(sheet, "I", "I", 48) // snippet

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}

	s.logger.Info("export.xlsx.ok",
		"entries", len(entries),
		"rows", rows,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), nil
}

func truncate(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return s
	}
	if n <= 1 {
		return s[:n]
	}
	return s[:n-1] + "…"
}
