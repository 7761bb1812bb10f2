package model

import (
	"bytes"
	"encoding/json"
	"strconv"
)

// Cell is an optional numeric value: a quote, or "no quote".
type Cell struct {
	Value float64
	Valid bool
}

// Quoted returns a present cell.
func Quoted(v float64) Cell { return Cell{Value: v, Valid: true} }

// Absent is the "no quote" cell.
var Absent = Cell{}

// MarshalJSON encodes a present cell as a number and an absent one as null.
func (c Cell) MarshalJSON() ([]byte, error) {
	if !c.Valid {
		return []byte("null"), nil
	}
	return []byte(strconv.FormatFloat(c.Value, 'f', -1, 64)), nil
}

// UnmarshalJSON accepts a number or null.
func (c *Cell) UnmarshalJSON(b []byte) error {
	if bytes.Equal(bytes.TrimSpace(b), []byte("null")) {
		*c = Absent
		return nil
	}
	var v float64
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	*c = Quoted(v)
	return nil
}

// QuoteTable is the per-instrument grid of structure × vendor → optional quote.
// It always spans the full keyspace of its Layout; cells default to Absent.
type QuoteTable struct {
	layout Layout
	cells  []Cell
}

// NewQuoteTable returns an all-absent table for the layout.
func NewQuoteTable(l Layout) QuoteTable {
	return QuoteTable{layout: l, cells: make([]Cell, l.Size())}
}

// Layout returns the keyspace of the table.
func (t QuoteTable) Layout() Layout { return t.layout }

// Len is the number of cells, always |structures| × |vendors|.
func (t QuoteTable) Len() int { return len(t.cells) }

// At returns the cell at structure index si and vendor index vi.
func (t QuoteTable) At(si, vi int) Cell {
	return t.cells[si*t.layout.NumVendors()+vi]
}

// Set stores a cell at structure index si and vendor index vi.
func (t *QuoteTable) Set(si, vi int, c Cell) {
	t.cells[si*t.layout.NumVendors()+vi] = c
}

// Get looks a cell up by codes. Codes outside the layout yield Absent.
func (t QuoteTable) Get(structure, vendor string) Cell {
	si, ok := t.layout.StructureIndex(structure)
	if !ok {
		return Absent
	}
	vi, ok := t.layout.VendorIndex(vendor)
	if !ok {
		return Absent
	}
	return t.At(si, vi)
}

// Present counts the cells holding a quote.
func (t QuoteTable) Present() int {
	n := 0
	for _, c := range t.cells {
		if c.Valid {
			n++
		}
	}
	return n
}

// Equal reports whether two tables share a keyspace and hold the same cells.
func (t QuoteTable) Equal(o QuoteTable) bool {
	if t.layout.Fingerprint() != o.layout.Fingerprint() || len(t.cells) != len(o.cells) {
		return false
	}
	for i := range t.cells {
		if t.cells[i] != o.cells[i] {
			return false
		}
	}
	return true
}

// MarshalJSON renders the table as {structure: {vendor: value|null}}.
func (t QuoteTable) MarshalJSON() ([]byte, error) {
	out := make(map[string]map[string]Cell, t.layout.NumStructures())
	for si, s := range t.layout.structures {
		row := make(map[string]Cell, t.layout.NumVendors())
		for vi, v := range t.layout.vendors {
			row[v] = t.At(si, vi)
		}
		out[s.Code] = row
	}
	return json.Marshal(out)
}
