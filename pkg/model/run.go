package model

import "strings"

// Term is a query term (contract tenor): the code sent to the backend and its display label.
type Term struct {
	Code  string `json:"code"`
	Label string `json:"label"`
}

// Display is the label used in report headers, falling back to the code.
func (t Term) Display() string {
	if t.Label != "" {
		return t.Label
	}
	return t.Code
}

// RunContext is the immutable per-term context passed explicitly to every component.
type RunContext struct {
	RunID       string
	Term        Term
	Layout      Layout
	ProductType int
	Scale       int
	OutputPath  string
}

// BaseID strips the venue suffix from a composite identifier ("300476.XSHE" → "300476").
func BaseID(instrument string) string {
	instrument = strings.TrimSpace(instrument)
	if i := strings.Index(instrument, "."); i >= 0 {
		return instrument[:i]
	}
	return instrument
}
