package api

import (
	"fmt"
	"path/filepath"
	"strings"
)

// CreateRunRequest is the optional payload of POST /api/v1/runs.
type CreateRunRequest struct {
	Input string   `json:"input"`
	Terms []string `json:"terms"`
}

// Validate checks the input extension and term codes.
func (r *CreateRunRequest) Validate() error {
	r.Input = strings.TrimSpace(r.Input)
	if r.Input != "" {
		switch strings.ToLower(filepath.Ext(r.Input)) {
		case ".xlsx", ".csv":
		default:
			return fmt.Errorf("input must be an .xlsx or .csv file")
		}
	}
	for i, t := range r.Terms {
		t = strings.TrimSpace(t)
		if t == "" {
			return fmt.Errorf("terms[%d] is empty", i)
		}
		r.Terms[i] = t
	}
	return nil
}
