package sink

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/Jerry-Jiayi-He/OTC-ask-price/pkg/model"
)

const (
	sheetName   = "Sheet1"
	outerHeader = "Structure"
	innerHeader = "Broker"
)

// FileSink writes reports as .xlsx, or .csv when the path says so.
// Parent directories are created as needed.
type FileSink struct {
	logger *zap.Logger
}

func New(logger *zap.Logger) *FileSink {
	return &FileSink{logger: logger}
}

// Write renders rep to path.
func (s *FileSink) Write(ctx context.Context, rep model.Report, path string) error {
	if path == "" {
		return fmt.Errorf("empty output path")
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create output dir: %w", err)
		}
	}

	var err error
	if strings.EqualFold(filepath.Ext(path), ".csv") {
		err = writeCSV(rep, path)
	} else {
		err = writeXLSX(rep, path)
	}
	if err != nil {
		return err
	}

	s.logger.Info("sink.report_written",
		zap.String("term", rep.Term.Code),
		zap.String("path", path),
		zap.Int("rows", len(rep.Rows)),
		zap.Int("columns", len(rep.Columns)))
	return nil
}

// headerRows returns the two header rows: outer labels (blank where a group
// continues) and vendors, each led by its row title.
func headerRows(rep model.Report) (outer, inner []string) {
	outer = make([]string, 0, len(rep.Columns)+1)
	inner = make([]string, 0, len(rep.Columns)+1)
	outer = append(outer, outerHeader)
	inner = append(inner, innerHeader)
	for i, c := range rep.Columns {
		if i > 0 && rep.Columns[i-1].Header == c.Header {
			outer = append(outer, "")
		} else {
			outer = append(outer, c.Header)
		}
		inner = append(inner, c.Vendor)
	}
	return outer, inner
}

func formatCell(c model.Cell) string {
	if !c.Valid {
		return ""
	}
	return strconv.FormatFloat(c.Value, 'f', -1, 64)
}

func writeXLSX(rep model.Report, path string) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	outer, inner := headerRows(rep)
	if err := f.SetSheetRow(sheetName, "A1", toAny(outer)); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	if err := f.SetSheetRow(sheetName, "A2", toAny(inner)); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	// merge each outer header across its vendor columns
	start := 0
	for i := 1; i <= len(rep.Columns); i++ {
		if i < len(rep.Columns) && rep.Columns[i].Header == rep.Columns[start].Header {
			continue
		}
		if i-start > 1 {
			from, _ := excelize.CoordinatesToCellName(start+2, 1)
			to, _ := excelize.CoordinatesToCellName(i+1, 1)
			if err := f.MergeCell(sheetName, from, to); err != nil {
				return fmt.Errorf("merge header: %w", err)
			}
		}
		start = i
	}

	if style, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	}); err == nil {
		last, _ := excelize.CoordinatesToCellName(len(rep.Columns)+1, 2)
		_ = f.SetCellStyle(sheetName, "A1", last, style)
	}

	for r, row := range rep.Rows {
		values := make([]any, 0, len(row.Cells)+1)
		values = append(values, row.Instrument)
		for _, c := range row.Cells {
			if c.Valid {
				values = append(values, c.Value)
			} else {
				values = append(values, nil)
			}
		}
		cell, _ := excelize.CoordinatesToCellName(1, r+3)
		if err := f.SetSheetRow(sheetName, cell, &values); err != nil {
			return fmt.Errorf("write row %s: %w", row.Instrument, err)
		}
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("save workbook: %w", err)
	}
	return nil
}

func writeCSV(rep model.Report, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	w := csv.NewWriter(f)
	outer, inner := headerRows(rep)
	records := [][]string{outer, inner}
	for _, row := range rep.Rows {
		rec := make([]string, 0, len(row.Cells)+1)
		rec = append(rec, row.Instrument)
		for _, c := range row.Cells {
			rec = append(rec, formatCell(c))
		}
		records = append(records, rec)
	}
	if err := w.WriteAll(records); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}

func toAny(ss []string) *[]any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return &out
}
