package model

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

// Structure is a coded product variant (e.g. moneyness tier) with its display label.
type Structure struct {
	Code  string `json:"code"`
	Label string `json:"label"`
}

// Layout is the ordered structure × vendor keyspace of one run.
// Structure order drives the outer report columns, vendor order the inner ones.
// A Layout is immutable once built; accessors return copies.
type Layout struct {
	structures []Structure
	vendors    []string
	sIndex     map[string]int
	vIndex     map[string]int
}

// NewLayout validates and indexes the configured structures and vendors.
func NewLayout(structures []Structure, vendors []string) (Layout, error) {
	if len(structures) == 0 {
		return Layout{}, errors.New("layout: at least one structure is required")
	}
	if len(vendors) == 0 {
		return Layout{}, errors.New("layout: at least one vendor is required")
	}

	l := Layout{
		structures: make([]Structure, len(structures)),
		vendors:    make([]string, len(vendors)),
		sIndex:     make(map[string]int, len(structures)),
		vIndex:     make(map[string]int, len(vendors)),
	}
	for i, s := range structures {
		code := strings.TrimSpace(s.Code)
		if code == "" {
			return Layout{}, fmt.Errorf("layout: structure #%d has an empty code", i+1)
		}
		if _, dup := l.sIndex[code]; dup {
			return Layout{}, fmt.Errorf("layout: duplicate structure %q", code)
		}
		label := strings.TrimSpace(s.Label)
		if label == "" {
			label = code
		}
		l.structures[i] = Structure{Code: code, Label: label}
		l.sIndex[code] = i
	}
	for i, v := range vendors {
		v = strings.TrimSpace(v)
		if v == "" {
			return Layout{}, fmt.Errorf("layout: vendor #%d is empty", i+1)
		}
		if _, dup := l.vIndex[v]; dup {
			return Layout{}, fmt.Errorf("layout: duplicate vendor %q", v)
		}
		l.vendors[i] = v
		l.vIndex[v] = i
	}
	return l, nil
}

// MustLayout is NewLayout for fixed inputs; it panics on error.
func MustLayout(structures []Structure, vendors []string) Layout {
	l, err := NewLayout(structures, vendors)
	if err != nil {
		panic(err)
	}
	return l
}

// Structures returns the configured structures in order.
func (l Layout) Structures() []Structure {
	return append([]Structure(nil), l.structures...)
}

// StructureCodes returns the structure codes in order.
func (l Layout) StructureCodes() []string {
	codes := make([]string, len(l.structures))
	for i, s := range l.structures {
		codes[i] = s.Code
	}
	return codes
}

// Vendors returns the configured vendors in order.
func (l Layout) Vendors() []string {
	return append([]string(nil), l.vendors...)
}

// StructureIndex reports the position of a structure code.
func (l Layout) StructureIndex(code string) (int, bool) {
	i, ok := l.sIndex[code]
	return i, ok
}

// VendorIndex reports the position of a vendor.
func (l Layout) VendorIndex(vendor string) (int, bool) {
	i, ok := l.vIndex[vendor]
	return i, ok
}

// NumStructures is the number of configured structures.
func (l Layout) NumStructures() int { return len(l.structures) }

// NumVendors is the number of configured vendors.
func (l Layout) NumVendors() int { return len(l.vendors) }

// Size is |structures| × |vendors|.
func (l Layout) Size() int { return len(l.structures) * len(l.vendors) }

// IsZero reports whether the layout was never built.
func (l Layout) IsZero() bool { return len(l.structures) == 0 }

// Fingerprint is a short stable digest of the ordered keyspace, used to scope cached results.
func (l Layout) Fingerprint() string {
	h := sha256.New()
	for _, s := range l.structures {
		h.Write([]byte(s.Code))
		h.Write([]byte{0})
	}
	h.Write([]byte{1})
	for _, v := range l.vendors {
		h.Write([]byte(v))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))[:12]
}
