package models

import "time"

// HierarchyNode is one node of a drill-down tree. Only leaves own records;
// an internal node's cascade is the sum of its children's.
type HierarchyNode struct {
	ID               string           `json:"id"`
	Label            string           `json:"label"`
	Identity         string           `json:"identity,omitempty"`
	Field            LogicalField     `json:"field"`
	Level            int              `json:"level"`
	Cascade          Cascade          `json:"cascade"`
	TransactionCount int              `json:"transaction_count"`
	ErrorCount       int              `json:"error_count,omitempty"`
	Children         []*HierarchyNode `json:"children,omitempty"`
	Records          []Record         `json:"-"`
}

func (n *HierarchyNode) IsLeaf() bool {
	return len(n.Children) == 0
}

// PeriodWindow is an inclusive day range. When IsPartial is set the window
// runs from day 1 to CutoffDay of a single month.
type PeriodWindow struct {
	Start     time.Time `json:"start"`
	End       time.Time `json:"end"`
	Label     string    `json:"label"`
	IsPartial bool      `json:"is_partial"`
	CutoffDay int       `json:"cutoff_day,omitempty"`
	Clamped   bool      `json:"clamped,omitempty"`
}

// Contains reports whether t falls on a calendar day inside the window.
func (w PeriodWindow) Contains(t time.Time) bool {
	d := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, w.Start.Location())
	return !d.Before(w.Start) && !d.After(w.End)
}

// Days is the number of calendar days covered, both ends included.
func (w PeriodWindow) Days() int {
	return int(w.End.Sub(w.Start).Hours()/24+0.5) + 1
}
