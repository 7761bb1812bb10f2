package model

import "time"

// Column is one report column: the outer "<structure label> <term label>" header and the vendor.
type Column struct {
	Header    string `json:"header"`
	Structure string `json:"structure"`
	Vendor    string `json:"vendor"`
}

// Row is one instrument's line in the report, keyed by its full identifier.
type Row struct {
	Instrument string `json:"instrument"`
	Cells      []Cell `json:"cells"`
}

// Report is the per-term table handed to the sink. Cells hold percentages.
type Report struct {
	RunID       string    `json:"run_id"`
	Term        Term      `json:"term"`
	Columns     []Column  `json:"columns"`
	Rows        []Row     `json:"rows"`
	GeneratedAt time.Time `json:"generated_at"`
}

// Headers returns the distinct outer headers in column order.
func (r Report) Headers() []string {
	var out []string
	seen := make(map[string]bool)
	for _, c := range r.Columns {
		if !seen[c.Header] {
			seen[c.Header] = true
			out = append(out, c.Header)
		}
	}
	return out
}

// Cell returns the value at (instrument, header, vendor).
// The second return is false when the row or column does not exist.
func (r Report) Cell(instrument, header, vendor string) (Cell, bool) {
	col := -1
	for i, c := range r.Columns {
		if c.Header == header && c.Vendor == vendor {
			col = i
			break
		}
	}
	if col < 0 {
		return Absent, false
	}
	for _, row := range r.Rows {
		if row.Instrument == instrument {
			return row.Cells[col], true
		}
	}
	return Absent, false
}

// Quoted counts the rows holding at least one present cell.
func (r Report) Quoted() int {
	n := 0
	for _, row := range r.Rows {
		for _, c := range row.Cells {
			if c.Valid {
				n++
				break
			}
		}
	}
	return n
}
