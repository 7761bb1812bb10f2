package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/Jerry-Jiayi-He/OTC-ask-price/pkg/model"
)

// Catalog is the business configuration of a run: which terms, structures and
// vendors to quote, plus extra HTTP headers the pricing backend requires.
type Catalog struct {
	Terms      []TermSpec        `yaml:"terms"`
	Structures []StructureSpec   `yaml:"structures"`
	Vendors    []string          `yaml:"vendors"`
	Headers    map[string]string `yaml:"headers"`

	// Source is the file the catalog came from, or "" for built-in defaults.
	Source string `yaml:"-"`
}

// TermSpec is one query term entry.
type TermSpec struct {
	Code  string `yaml:"code"`
	Label string `yaml:"label"`
}

// StructureSpec is one structure entry.
type StructureSpec struct {
	Code  string `yaml:"code"`
	Label string `yaml:"label"`
}

// DefaultCatalog mirrors the desk's standing configuration.
func DefaultCatalog() *Catalog {
	return &Catalog{
		Terms: []TermSpec{
			{Code: "1m", Label: "1个月"},
			{Code: "2m", Label: "2个月"},
			{Code: "3m", Label: "3个月"},
		},
		Structures: []StructureSpec{
			{Code: "90c", Label: "实值90"},
			{Code: "100c", Label: "平值100"},
			{Code: "105c", Label: "虚值105"},
		},
		Vendors: []string{"GJFXZ", "YHDR", "ZQSY", "ZJ", "GF"},
	}
}

// LoadCatalog reads a YAML catalog and expands ${VAR} references.
// A missing file yields DefaultCatalog.
func LoadCatalog(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return DefaultCatalog(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read catalog file: %w", err)
	}

	cat, err := ParseCatalog(data)
	if err != nil {
		return nil, err
	}
	cat.Source = path
	return cat, nil
}

// ParseCatalog decodes and validates catalog YAML.
func ParseCatalog(data []byte) (*Catalog, error) {
	expanded := os.ExpandEnv(string(data))

	var cat Catalog
	if err := yaml.Unmarshal([]byte(expanded), &cat); err != nil {
		return nil, fmt.Errorf("parse catalog yaml: %w", err)
	}
	if err := cat.Validate(); err != nil {
		return nil, fmt.Errorf("validate catalog: %w", err)
	}
	return &cat, nil
}

// Validate checks for empty sections and duplicate codes.
func (c *Catalog) Validate() error {
	if len(c.Terms) == 0 {
		return errors.New("at least one term is required")
	}
	seen := make(map[string]bool, len(c.Terms))
	for i, t := range c.Terms {
		code := strings.TrimSpace(t.Code)
		if code == "" {
			return fmt.Errorf("term #%d has an empty code", i+1)
		}
		if seen[code] {
			return fmt.Errorf("duplicate term %q", code)
		}
		seen[code] = true
	}
	_, err := c.Layout()
	return err
}

// Layout builds the ordered structure × vendor keyspace.
func (c *Catalog) Layout() (model.Layout, error) {
	structures := make([]model.Structure, len(c.Structures))
	for i, s := range c.Structures {
		structures[i] = model.Structure{Code: s.Code, Label: s.Label}
	}
	return model.NewLayout(structures, c.Vendors)
}

// SelectTerms returns the catalog terms in catalog order, restricted to codes when non-empty.
// Unknown codes are an error so a typo never silently skips a term.
func (c *Catalog) SelectTerms(codes []string) ([]model.Term, error) {
	all := make([]model.Term, 0, len(c.Terms))
	byCode := make(map[string]model.Term, len(c.Terms))
	for _, t := range c.Terms {
		mt := model.Term{Code: strings.TrimSpace(t.Code), Label: strings.TrimSpace(t.Label)}
		all = append(all, mt)
		byCode[mt.Code] = mt
	}
	if len(codes) == 0 {
		return all, nil
	}

	want := make(map[string]bool, len(codes))
	for _, code := range codes {
		if _, ok := byCode[code]; !ok {
			return nil, fmt.Errorf("unknown term %q", code)
		}
		want[code] = true
	}
	out := make([]model.Term, 0, len(want))
	for _, t := range all {
		if want[t.Code] {
			out = append(out, t)
		}
	}
	return out, nil
}
