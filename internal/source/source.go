package source

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
)

var (
	// ErrInputMissing means the input file does not exist.
	ErrInputMissing = errors.New("input missing")
	// ErrInputEmpty means the input holds no identifiers.
	ErrInputEmpty = errors.New("input empty")
)

// Source yields instrument identifiers in input order.
type Source interface {
	Instruments(ctx context.Context) ([]string, error)
}

// Open picks a reader by file extension: .csv is read as CSV, anything else as a workbook.
func Open(path string) Source {
	if strings.EqualFold(filepath.Ext(path), ".csv") {
		return &CSVSource{Path: path}
	}
	return &XLSXSource{Path: path}
}

// XLSXSource reads column A of a workbook sheet. There is no header row.
type XLSXSource struct {
	Path  string
	Sheet string // first sheet when empty
}

func (s *XLSXSource) Instruments(_ context.Context) ([]string, error) {
	if err := exists(s.Path); err != nil {
		return nil, err
	}
	f, err := excelize.OpenFile(s.Path)
	if err != nil {
		return nil, fmt.Errorf("open workbook %s: %w", s.Path, err)
	}
	defer func() { _ = f.Close() }()

	sheet := s.Sheet
	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, fmt.Errorf("%w: %s has no sheets", ErrInputEmpty, s.Path)
		}
		sheet = sheets[0]
	}

	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheet, err)
	}
	firsts := make([]string, 0, len(rows))
	for _, row := range rows {
		if len(row) > 0 {
			firsts = append(firsts, row[0])
		}
	}
	return collect(s.Path, firsts)
}

// CSVSource reads the first field of every record.
type CSVSource struct {
	Path string
}

func (s *CSVSource) Instruments(_ context.Context) ([]string, error) {
	if err := exists(s.Path); err != nil {
		return nil, err
	}
	f, err := os.Open(s.Path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", s.Path, err)
	}
	defer func() { _ = f.Close() }()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	var firsts []string
	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", s.Path, err)
		}
		if len(rec) > 0 {
			firsts = append(firsts, rec[0])
		}
	}
	return collect(s.Path, firsts)
}

func exists(path string) error {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrInputMissing, path)
		}
		return fmt.Errorf("stat %s: %w", path, err)
	}
	return nil
}

// collect trims values, drops blanks and strips a UTF-8 BOM from the first value.
func collect(path string, values []string) ([]string, error) {
	out := make([]string, 0, len(values))
	for i, v := range values {
		if i == 0 {
			v = strings.TrimPrefix(v, "\ufeff")
		}
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrInputEmpty, path)
	}
	return out, nil
}
