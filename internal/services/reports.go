package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"commercial-analytics/internal/abc"
	"commercial-analytics/internal/cascade"
	"commercial-analytics/internal/customers"
	"commercial-analytics/internal/goals"
	"commercial-analytics/internal/hierarchy"
	"commercial-analytics/internal/models"
	"commercial-analytics/internal/observability"
	"commercial-analytics/internal/period"
)

// Kind names a drill-down hierarchy.
type Kind string

const (
	KindCommercial Kind = "commercial"
	KindSupplier   Kind = "supplier"
	KindCustomer   Kind = "customer"
	KindState      Kind = "state"
)

// Kinds lists the hierarchies in display order.
var Kinds = []Kind{KindCommercial, KindSupplier, KindCustomer, KindState}

var kindLevels = map[Kind][]hierarchy.Level{
	KindCommercial: hierarchy.Levels(models.FieldRegion, models.FieldManager, models.FieldSalesperson, models.FieldProduct),
	KindSupplier:   hierarchy.Levels(models.FieldSupplier, models.FieldCategory, models.FieldProduct),
	KindCustomer: append(
		[]hierarchy.Level{{Key: models.FieldCustomerKey, Label: models.FieldCustomerName}},
		hierarchy.Levels(models.FieldProduct)...,
	),
	KindState: hierarchy.Levels(models.FieldState, models.FieldSalesperson),
}

// ParseKind accepts a hierarchy name in any case.
func ParseKind(s string) (Kind, error) {
	k := Kind(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := kindLevels[k]; !ok {
		return "", fmt.Errorf("unknown hierarchy %q", s)
	}
	return k, nil
}

var dimensions = map[string]models.LogicalField{
	"region":      models.FieldRegion,
	"manager":     models.FieldManager,
	"salesperson": models.FieldSalesperson,
	"state":       models.FieldState,
	"product":     models.FieldProduct,
	"category":    models.FieldCategory,
	"supplier":    models.FieldSupplier,
	"customer":    models.FieldCustomerKey,
}

// ParseDimension maps an ABC dimension name to its logical field. An empty
// name means product.
func ParseDimension(s string) (models.LogicalField, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return models.FieldProduct, nil
	}
	f, ok := dimensions[s]
	if !ok {
		return "", fmt.Errorf("unknown dimension %q", s)
	}
	return f, nil
}

// Query selects the analysed window. A zero Start and End means the month
// to date of the latest transaction in the dataset.
type Query struct {
	Start time.Time
	End   time.Time
}

func (q Query) IsZero() bool {
	return q.Start.IsZero() && q.End.IsZero()
}

// Windows are the current window and its two comparison windows.
type Windows struct {
	Current models.PeriodWindow `json:"current"`
	MoM     models.PeriodWindow `json:"mom"`
	YoY     models.PeriodWindow `json:"yoy"`
}

func (a *Analytics) windows(ds *Dataset, q Query) Windows {
	start, end := q.Start, q.End
	switch {
	case q.IsZero():
		ref := ds.LastDate
		if ref.IsZero() {
			ref = time.Now()
		}
		w := period.MonthToDate(ref)
		start, end = w.Start, w.End
	case start.IsZero():
		start = time.Date(end.Year(), end.Month(), 1, 0, 0, 0, 0, end.Location())
	case end.IsZero():
		end = start
	}
	cur, mom, yoy := period.Comparable(start, end)
	return Windows{Current: cur, MoM: mom, YoY: yoy}
}

// track times op, recording it as a span and a histogram sample.
func (a *Analytics) track(ctx context.Context, op string) (context.Context, func(error)) {
	ctx, span := observability.StartSpan(ctx, op)
	return ctx, func(err error) {
		if err != nil {
			span.SetError(err)
		}
		d := span.End(observability.LoggerFrom(ctx, a.logger))
		a.metrics.ObserveAggregation(op, d)
	}
}

// Overview is the consolidated cascade of a window and its comparisons.
type Overview struct {
	Windows    Windows            `json:"windows"`
	Comparison cascade.Comparison `json:"comparison"`
	Counts     map[string]int     `json:"counts"`
	ErrorCount int                `json:"error_count"`
}

func (a *Analytics) Overview(ctx context.Context, q Query) (ov *Overview, err error) {
	ctx, done := a.track(ctx, "overview")
	defer func() { done(err) }()

	ds, err := a.dataset()
	if err != nil {
		return nil, err
	}
	w := a.windows(ds, q)

	var cur, mom, yoy cascade.Summary
	g, ctx := errgroup.WithContext(ctx)
	for _, job := range []struct {
		win models.PeriodWindow
		out *cascade.Summary
	}{{w.Current, &cur}, {w.MoM, &mom}, {w.YoY, &yoy}} {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			*job.out = cascade.Many(period.Filter(ds.Records, ds.Mapping, job.win), ds.Mapping)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return &Overview{
		Windows:    w,
		Comparison: cascade.Compare(cur.Cascade, mom.Cascade, yoy.Cascade),
		Counts: map[string]int{
			"current": cur.Count,
			"mom":     mom.Count,
			"yoy":     yoy.Count,
		},
		ErrorCount: cur.ErrorCount,
	}, nil
}

// HierarchyReport is one drill-down tree over the current window.
type HierarchyReport struct {
	Kind   Kind                    `json:"kind"`
	Window models.PeriodWindow     `json:"window"`
	Total  models.Cascade          `json:"total"`
	Nodes  []*models.HierarchyNode `json:"nodes"`
}

func (a *Analytics) Hierarchy(ctx context.Context, kind Kind, q Query) (rep *HierarchyReport, err error) {
	ctx, done := a.track(ctx, "hierarchy")
	defer func() { done(err) }()

	levels, ok := kindLevels[kind]
	if !ok {
		return nil, fmt.Errorf("unknown hierarchy %q", kind)
	}
	ds, err := a.dataset()
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	w := a.windows(ds, q)
	return a.buildHierarchy(kind, levels, ds, period.Filter(ds.Records, ds.Mapping, w.Current), w.Current), nil
}

// Hierarchies builds every hierarchy of the current window concurrently.
// Each build reads the same filtered slice and owns its own tree.
func (a *Analytics) Hierarchies(ctx context.Context, q Query) (reps map[Kind]*HierarchyReport, err error) {
	ctx, done := a.track(ctx, "hierarchies")
	defer func() { done(err) }()

	ds, err := a.dataset()
	if err != nil {
		return nil, err
	}
	w := a.windows(ds, q)
	records := period.Filter(ds.Records, ds.Mapping, w.Current)

	results := make([]*HierarchyReport, len(Kinds))
	g, ctx := errgroup.WithContext(ctx)
	for i, kind := range Kinds {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			results[i] = a.buildHierarchy(kind, kindLevels[kind], ds, records, w.Current)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	reps = make(map[Kind]*HierarchyReport, len(Kinds))
	for i, kind := range Kinds {
		reps[kind] = results[i]
	}
	return reps, nil
}

func (a *Analytics) buildHierarchy(kind Kind, levels []hierarchy.Level, ds *Dataset, records []models.Record, w models.PeriodWindow) *HierarchyReport {
	nodes := hierarchy.BuildLevels(records, levels, ds.Mapping, hierarchy.Options{UnspecifiedLabel: a.opts.UnspecifiedLabel})
	return &HierarchyReport{
		Kind:   kind,
		Window: w,
		Total:  hierarchy.Total(nodes),
		Nodes:  nodes,
	}
}

// ABCReport classifies one dimension of the current window by gross revenue.
type ABCReport struct {
	Dimension models.LogicalField `json:"dimension"`
	Window    models.PeriodWindow `json:"window"`
	Items     []abc.Classified    `json:"items"`
	Summary   []abc.ClassSummary  `json:"summary"`
	Critical  []abc.Classified    `json:"critical"`
}

// ABC ranks the values of dim. Products use the steeper item curve.
func (a *Analytics) ABC(ctx context.Context, dim models.LogicalField, q Query) (rep *ABCReport, err error) {
	ctx, done := a.track(ctx, "abc")
	defer func() { done(err) }()

	ds, err := a.dataset()
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	w := a.windows(ds, q)
	records := period.Filter(ds.Records, ds.Mapping, w.Current)

	levels := hierarchy.Levels(dim)
	if dim == models.FieldCustomerKey || dim == models.FieldCustomerName {
		dim = models.FieldCustomerKey
		levels = kindLevels[KindCustomer][:1]
	}
	thresholds := a.opts.ABCThresholds
	if dim == models.FieldProduct {
		thresholds = a.opts.ItemThresholds
	}

	nodes := hierarchy.BuildLevels(records, levels, ds.Mapping, hierarchy.Options{UnspecifiedLabel: a.opts.UnspecifiedLabel})
	items := abc.Classify(hierarchy.Items(nodes, hierarchy.GrossRevenue), thresholds)
	return &ABCReport{
		Dimension: dim,
		Window:    w.Current,
		Items:     items,
		Summary:   abc.Summarize(items, thresholds),
		Critical:  abc.Critical(items, abc.LowestClassBelow(thresholds, a.opts.CriticalSharePct)),
	}, nil
}

// CustomersReport is the recency partition at the end of the window.
type CustomersReport struct {
	Reference time.Time `json:"reference"`
	customers.Result
}

// Customers buckets every customer seen up to the window end.
func (a *Analytics) Customers(ctx context.Context, q Query) (rep *CustomersReport, err error) {
	ctx, done := a.track(ctx, "customers")
	defer func() { done(err) }()

	ds, err := a.dataset()
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	w := a.windows(ds, q)
	history := period.Filter(ds.Records, ds.Mapping, upTo(ds, w.Current.End))
	return &CustomersReport{
		Reference: w.Current.End,
		Result:    customers.ClassifyWith(history, ds.Mapping, w.Current.End, a.opts.Recency),
	}, nil
}

// CohortReport compares the customers of the current and prior windows.
type CohortReport struct {
	Windows Windows          `json:"windows"`
	Delta   customers.Delta  `json:"delta"`
	Cohort  customers.Cohort `json:"cohort"`
}

func (a *Analytics) Cohort(ctx context.Context, q Query) (rep *CohortReport, err error) {
	ctx, done := a.track(ctx, "cohort")
	defer func() { done(err) }()

	ds, err := a.dataset()
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	w := a.windows(ds, q)
	current := period.Filter(ds.Records, ds.Mapping, w.Current)
	prior := period.Filter(ds.Records, ds.Mapping, w.MoM)
	history := period.Filter(ds.Records, ds.Mapping, upTo(ds, w.MoM.Start.AddDate(0, 0, -1)))

	return &CohortReport{
		Windows: w,
		Delta:   customers.CohortDelta(current, prior, ds.Mapping),
		Cohort:  customers.Reactivation(current, prior, history, ds.Mapping),
	}, nil
}

// ProjectionReport extrapolates the current month and checks price
// adherence against the official table.
type ProjectionReport struct {
	Period     string              `json:"period"`
	Window     models.PeriodWindow `json:"window"`
	Projection period.Projection   `json:"projection"`
	Prices     []goals.Adherence   `json:"prices"`
}

func (a *Analytics) Projection(ctx context.Context, q Query) (rep *ProjectionReport, err error) {
	ctx, done := a.track(ctx, "projection")
	defer func() { done(err) }()

	ds, err := a.dataset()
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	w := a.windows(ds, q)
	records := period.Filter(ds.Records, ds.Mapping, w.Current)
	realized := cascade.Many(records, ds.Mapping).GrossRevenue
	key := period.Key(w.Current.End)

	override := 0
	var goal float64
	var table map[string]float64
	if a.opts.Goals != nil {
		override, _ = a.opts.Goals.WorkingDays(key)
		goal, _ = a.opts.Goals.Goal(key)
		table, _ = a.opts.Goals.PriceTable(key)
	}

	return &ProjectionReport{
		Period:     key,
		Window:     w.Current,
		Projection: period.ProjectMonth(realized, w.Current, a.opts.Calendar, override).WithGoal(goal),
		Prices:     goals.PriceAdherence(records, ds.Mapping, table),
	}, nil
}

// upTo is the window from the first dated record through end.
func upTo(ds *Dataset, end time.Time) models.PeriodWindow {
	start := ds.FirstDate
	if start.IsZero() || start.After(end) {
		start = end
	}
	return models.PeriodWindow{
		Start: time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, end.Location()),
		End:   end,
	}
}
