// Package abc ranks grouped values and assigns cumulative Pareto classes.
package abc

import (
	"slices"
)

// epsilon absorbs floating drift in cumulative percentages.
const epsilon = 1e-9

// Item is one grouped value to classify.
type Item struct {
	Key   string  `json:"key"`
	Label string  `json:"label,omitempty"`
	Value float64 `json:"value"`
}

// Threshold closes a class at an upper cumulative percentage.
type Threshold struct {
	Class      string  `json:"class" yaml:"class"`
	UpperBound float64 `json:"upper_bound" yaml:"upper_bound"`
}

// Classified is an item with its share of the total and its class.
type Classified struct {
	Item
	Rank                 int     `json:"rank"`
	Percentage           float64 `json:"percentage"`
	CumulativePercentage float64 `json:"cumulative_percentage"`
	Class                string  `json:"class"`
}

var (
	// DefaultThresholds splits the curve 50/25/15/10.
	DefaultThresholds = []Threshold{
		{Class: "A", UpperBound: 50},
		{Class: "B", UpperBound: 75},
		{Class: "C", UpperBound: 90},
		{Class: "D", UpperBound: 100},
	}

	// ItemThresholds is the steeper table used for SKU-level curves.
	ItemThresholds = []Threshold{
		{Class: "A", UpperBound: 70},
		{Class: "B", UpperBound: 80},
		{Class: "C", UpperBound: 90},
		{Class: "D", UpperBound: 100},
	}
)

// Classify sorts items by descending value (stable, so equal values keep
// their input order) and assigns each one the class of the band in which
// its cumulative share starts. The item that crosses a cutpoint therefore
// stays in the band it started in. A non-positive total yields an empty
// result.
func Classify(items []Item, thresholds []Threshold) []Classified {
	if len(thresholds) == 0 {
		thresholds = DefaultThresholds
	}
	bands := slices.Clone(thresholds)
	slices.SortStableFunc(bands, func(a, b Threshold) int {
		switch {
		case a.UpperBound < b.UpperBound:
			return -1
		case a.UpperBound > b.UpperBound:
			return 1
		}
		return 0
	})

	var total float64
	for _, it := range items {
		total += it.Value
	}
	if total <= 0 || len(items) == 0 {
		return []Classified{}
	}

	sorted := slices.Clone(items)
	slices.SortStableFunc(sorted, func(a, b Item) int {
		switch {
		case a.Value > b.Value:
			return -1
		case a.Value < b.Value:
			return 1
		}
		return 0
	})

	out := make([]Classified, 0, len(sorted))
	var cumulative float64
	for i, it := range sorted {
		start := cumulative
		pct := it.Value / total * 100
		cumulative += pct
		out = append(out, Classified{
			Item:                 it,
			Rank:                 i + 1,
			Percentage:           pct,
			CumulativePercentage: cumulative,
			Class:                classFor(start, bands),
		})
	}
	return out
}

func classFor(start float64, bands []Threshold) string {
	for _, b := range bands {
		if b.UpperBound > start+epsilon {
			return b.Class
		}
	}
	return bands[len(bands)-1].Class
}

// Predicate flags classified entries, e.g. as critical.
type Predicate func(Classified) bool

// Critical returns the entries matching pred, in rank order.
func Critical(results []Classified, pred Predicate) []Classified {
	out := make([]Classified, 0)
	if pred == nil {
		return out
	}
	for _, r := range results {
		if pred(r) {
			out = append(out, r)
		}
	}
	return out
}

// LowestClassBelow flags entries in the last class of thresholds whose share
// of the total is below maxPct.
func LowestClassBelow(thresholds []Threshold, maxPct float64) Predicate {
	if len(thresholds) == 0 {
		thresholds = DefaultThresholds
	}
	lowest := thresholds[0]
	for _, t := range thresholds[1:] {
		if t.UpperBound > lowest.UpperBound {
			lowest = t
		}
	}
	return func(c Classified) bool {
		return c.Class == lowest.Class && c.Percentage < maxPct
	}
}

// ClassSummary aggregates one class of a classified list.
type ClassSummary struct {
	Class string  `json:"class"`
	Count int     `json:"count"`
	Value float64 `json:"value"`
	Share float64 `json:"share"`
}

// Summarize totals results per class, in threshold order. Classes with no
// entries are still reported.
func Summarize(results []Classified, thresholds []Threshold) []ClassSummary {
	if len(thresholds) == 0 {
		thresholds = DefaultThresholds
	}
	out := make([]ClassSummary, 0, len(thresholds))
	index := make(map[string]int, len(thresholds))
	for _, t := range thresholds {
		if _, dup := index[t.Class]; dup {
			continue
		}
		index[t.Class] = len(out)
		out = append(out, ClassSummary{Class: t.Class})
	}

	var total float64
	for _, r := range results {
		total += r.Value
		i, ok := index[r.Class]
		if !ok {
			continue
		}
		out[i].Count++
		out[i].Value += r.Value
	}
	if total > 0 {
		for i := range out {
			out[i].Share = out[i].Value / total * 100
		}
	}
	return out
}
