// Package goals holds the read-only monthly configuration the analysis layer
// consults: revenue goals, official price tables and working-day overrides,
// all keyed by YYYY-MM.
package goals

import (
	"bytes"
	"fmt"
	"os"
	"sort"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"commercial-analytics/internal/fields"
	"commercial-analytics/internal/models"
)

// Repository is a read-only lookup of monthly settings.
type Repository interface {
	Goal(period string) (float64, bool)
	PriceTable(period string) (map[string]float64, bool)
	WorkingDays(period string) (int, bool)
}

// Month is the configuration of one YYYY-MM period.
type Month struct {
	Goal        float64            `yaml:"goal" json:"goal"`
	WorkingDays int                `yaml:"working_days" json:"working_days"`
	Prices      map[string]float64 `yaml:"prices" json:"prices,omitempty"`
}

type document struct {
	Months map[string]Month `yaml:"months"`
}

// FileRepository serves settings parsed from a YAML document.
type FileRepository struct {
	mu     sync.RWMutex
	months map[string]Month
}

// New builds a repository from already parsed months.
func New(months map[string]Month) (*FileRepository, error) {
	if err := validate(months); err != nil {
		return nil, err
	}
	r := &FileRepository{months: make(map[string]Month, len(months))}
	for k, v := range months {
		r.months[k] = v
	}
	return r, nil
}

// LoadFile reads a goals document from path.
func LoadFile(path string) (*FileRepository, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read goals: %w", err)
	}
	return Parse(data)
}

// Parse decodes a goals document. Unknown keys are rejected.
func Parse(data []byte) (*FileRepository, error) {
	var doc document
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("parse goals: %w", err)
	}
	return New(doc.Months)
}

func validate(months map[string]Month) error {
	for k, m := range months {
		if _, err := time.Parse("2006-01", k); err != nil {
			return fmt.Errorf("goals: invalid period %q", k)
		}
		if m.Goal < 0 {
			return fmt.Errorf("goals: negative goal for %s", k)
		}
		if m.WorkingDays < 0 || m.WorkingDays > 31 {
			return fmt.Errorf("goals: working days out of range for %s", k)
		}
	}
	return nil
}

func (r *FileRepository) month(period string) (Month, bool) {
	if r == nil {
		return Month{}, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.months[period]
	return m, ok
}

// Goal returns the revenue goal of period; zero goals count as absent.
func (r *FileRepository) Goal(period string) (float64, bool) {
	m, ok := r.month(period)
	if !ok || m.Goal <= 0 {
		return 0, false
	}
	return m.Goal, true
}

func (r *FileRepository) PriceTable(period string) (map[string]float64, bool) {
	m, ok := r.month(period)
	if !ok || len(m.Prices) == 0 {
		return nil, false
	}
	out := make(map[string]float64, len(m.Prices))
	for k, v := range m.Prices {
		out[k] = v
	}
	return out, true
}

func (r *FileRepository) WorkingDays(period string) (int, bool) {
	m, ok := r.month(period)
	if !ok || m.WorkingDays <= 0 {
		return 0, false
	}
	return m.WorkingDays, true
}

// Periods lists the configured period keys in order.
func (r *FileRepository) Periods() []string {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	keys := make([]string, 0, len(r.months))
	for k := range r.months {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Adherence compares a product's realised average price with its table price.
type Adherence struct {
	Product      string  `json:"product"`
	Quantity     float64 `json:"quantity"`
	AveragePrice float64 `json:"average_price"`
	TablePrice   float64 `json:"table_price"`
	DeviationPct float64 `json:"deviation_pct"`
}

// PriceAdherence computes, for every product with a table price, the
// quantity-weighted average unit price actually charged and its deviation
// from the table. Rows without product, price or a positive quantity are
// skipped. The result is sorted by deviation, deepest discount first.
func PriceAdherence(records []models.Record, m models.Mapping, table map[string]float64) []Adherence {
	if len(table) == 0 {
		return []Adherence{}
	}
	folded := make(map[string]string, len(table))
	for name := range table {
		folded[fields.Fold(name)] = name
	}

	type acc struct{ value, qty float64 }
	sums := make(map[string]*acc)
	for _, rec := range records {
		product := fields.Text(rec, models.FieldProduct, m, "")
		if product == "" {
			continue
		}
		name, ok := folded[fields.Fold(product)]
		if !ok {
			continue
		}
		price := fields.Number(rec, models.FieldUnitPrice, m, 0)
		qty := fields.Number(rec, models.FieldQuantity, m, 0)
		if price <= 0 || qty <= 0 {
			continue
		}
		a := sums[name]
		if a == nil {
			a = &acc{}
			sums[name] = a
		}
		a.value += price * qty
		a.qty += qty
	}

	out := make([]Adherence, 0, len(sums))
	for name, a := range sums {
		avg := a.value / a.qty
		ref := table[name]
		dev := 0.0
		if ref > 0 {
			dev = (avg - ref) / ref * 100
		}
		out = append(out, Adherence{
			Product:      name,
			Quantity:     a.qty,
			AveragePrice: avg,
			TablePrice:   ref,
			DeviationPct: dev,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].DeviationPct != out[j].DeviationPct {
			return out[i].DeviationPct < out[j].DeviationPct
		}
		return out[i].Product < out[j].Product
	})
	return out
}
