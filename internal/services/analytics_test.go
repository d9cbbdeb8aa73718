package services

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"commercial-analytics/internal/goals"
	"commercial-analytics/internal/hierarchy"
	"commercial-analytics/internal/models"
	"commercial-analytics/internal/observability"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

func sale(date, region, seller, product, cnpj, customer string, price, qty float64) models.Record {
	return models.Record{
		"data":       date,
		"regiao":     region,
		"gerente":    "Bia",
		"vendedor":   seller,
		"produto":    product,
		"fornecedor": "Acme",
		"categoria":  "Food",
		"uf":         "SP",
		"cnpj":       cnpj,
		"cliente":    customer,
		"preco":      price,
		"qtd":        qty,
		"aliquota":   10,
		"custo":      price / 2,
	}
}

func testData() []models.Record {
	return []models.Record{
		// current: Feb 1-19 2025
		sale("2025-02-03", "South", "Ana", "Soap", "1", "Alpha", 10, 10),
		sale("2025-02-10", "South", "Caio", "Rice", "2", "Beta", 5, 4),
		sale("2025-02-19", "North", "Eva", "Soap", "3", "Gamma", 10, 1),
		// after the cutoff, outside every window
		sale("2025-02-25", "North", "Eva", "Soap", "3", "Gamma", 10, 100),
		// prior month, same cutoff
		sale("2025-01-05", "South", "Ana", "Soap", "1", "Alpha", 10, 5),
		sale("2025-01-18", "South", "Ana", "Oil", "4", "Delta", 8, 1),
		sale("2025-01-25", "South", "Ana", "Oil", "4", "Delta", 8, 50),
		// previous year
		sale("2024-02-07", "South", "Ana", "Soap", "1", "Alpha", 9, 10),
		// long ago
		sale("2024-06-01", "North", "Eva", "Rice", "2", "Beta", 5, 1),
	}
}

var feb = Query{
	Start: time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC),
	End:   time.Date(2025, 2, 19, 0, 0, 0, 0, time.UTC),
}

func newTestAnalytics(t *testing.T, opts Options) *Analytics {
	t.Helper()
	opts.Logger = quiet
	a := NewAnalytics(opts)
	a.SetData(testData(), nil)
	return a
}

func TestAnalytics_NoData(t *testing.T) {
	a := NewAnalytics(Options{Logger: quiet})
	ctx := context.Background()

	_, err := a.Overview(ctx, feb)
	assert.ErrorIs(t, err, ErrNoData)
	_, err = a.Hierarchy(ctx, KindCommercial, feb)
	assert.ErrorIs(t, err, ErrNoData)
	_, err = a.Customers(ctx, feb)
	assert.ErrorIs(t, err, ErrNoData)
	assert.Equal(t, false, a.Stats()["loaded"])
}

func TestAnalytics_Overview(t *testing.T) {
	a := newTestAnalytics(t, Options{})

	ov, err := a.Overview(context.Background(), feb)
	require.NoError(t, err)

	assert.True(t, ov.Windows.Current.IsPartial)
	assert.Equal(t, 19, ov.Windows.MoM.CutoffDay)
	assert.Equal(t, "2024-02-19", ov.Windows.YoY.End.Format(time.DateOnly))

	assert.Equal(t, map[string]int{"current": 3, "mom": 2, "yoy": 1}, ov.Counts)
	assert.InDelta(t, 130, ov.Comparison.Current.GrossRevenue, 1e-9)
	assert.InDelta(t, 58, ov.Comparison.MoM.GrossRevenue, 1e-9)
	assert.InDelta(t, 90, ov.Comparison.YoY.GrossRevenue, 1e-9)
	assert.InDelta(t, 72, ov.Comparison.MoMVariance["gross_revenue"].Absolute, 1e-9)
}

func TestAnalytics_DefaultWindowIsLatestMonthToDate(t *testing.T) {
	a := newTestAnalytics(t, Options{})

	ov, err := a.Overview(context.Background(), Query{})
	require.NoError(t, err)
	assert.Equal(t, "2025-02-01", ov.Windows.Current.Start.Format(time.DateOnly))
	assert.Equal(t, "2025-02-25", ov.Windows.Current.End.Format(time.DateOnly))
	assert.Equal(t, 4, ov.Counts["current"])
}

func TestAnalytics_Hierarchies(t *testing.T) {
	m := observability.NewMetrics()
	a := newTestAnalytics(t, Options{Metrics: m, UnspecifiedLabel: "(none)"})

	reps, err := a.Hierarchies(context.Background(), feb)
	require.NoError(t, err)
	require.Len(t, reps, len(Kinds))

	for _, kind := range Kinds {
		rep := reps[kind]
		require.NotNil(t, rep, kind)
		assert.InDelta(t, 130, rep.Total.GrossRevenue, 1e-9, kind)
	}

	commercial := reps[KindCommercial]
	require.Len(t, commercial.Nodes, 2)
	assert.Equal(t, "South", commercial.Nodes[0].Label)
	_, ok := hierarchy.Find(commercial.Nodes, "South/Bia/Ana/Soap")
	assert.True(t, ok)

	customer := reps[KindCustomer]
	assert.Equal(t, "Alpha", customer.Nodes[0].Label)
	assert.Equal(t, "1", customer.Nodes[0].Identity)

	single, err := a.Hierarchy(context.Background(), KindState, feb)
	require.NoError(t, err)
	assert.Equal(t, "SP", single.Nodes[0].Label)
}

func TestParseKind(t *testing.T) {
	k, err := ParseKind(" Supplier ")
	require.NoError(t, err)
	assert.Equal(t, KindSupplier, k)

	_, err = ParseKind("planets")
	assert.Error(t, err)
}

func TestParseDimension(t *testing.T) {
	tests := []struct {
		in   string
		want models.LogicalField
	}{
		{"", models.FieldProduct},
		{"Customer", models.FieldCustomerKey},
		{" region ", models.FieldRegion},
		{"supplier", models.FieldSupplier},
	}
	for _, tt := range tests {
		got, err := ParseDimension(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got)
	}

	_, err := ParseDimension("colour")
	assert.Error(t, err)
}

func TestAnalytics_ABC(t *testing.T) {
	a := newTestAnalytics(t, Options{})

	rep, err := a.ABC(context.Background(), models.FieldProduct, feb)
	require.NoError(t, err)
	require.Len(t, rep.Items, 2)
	assert.Equal(t, "Soap", rep.Items[0].Key)
	assert.Equal(t, "A", rep.Items[0].Class)
	assert.Len(t, rep.Summary, 4)

	rep, err = a.ABC(context.Background(), models.FieldCustomerName, feb)
	require.NoError(t, err)
	assert.Equal(t, models.FieldCustomerKey, rep.Dimension)
	assert.Equal(t, "1", rep.Items[0].Key)
	assert.Equal(t, "Alpha", rep.Items[0].Label)
}

func TestAnalytics_Customers(t *testing.T) {
	a := newTestAnalytics(t, Options{})

	rep, err := a.Customers(context.Background(), feb)
	require.NoError(t, err)
	assert.Equal(t, "2025-02-19", rep.Reference.Format(time.DateOnly))
	assert.Equal(t, 4, rep.Total)
	assert.Equal(t, rep.Total, rep.Active+rep.AtRisk+rep.Inactive)
	assert.Equal(t, 4, rep.Active)
}

func TestAnalytics_Cohort(t *testing.T) {
	a := newTestAnalytics(t, Options{})

	rep, err := a.Cohort(context.Background(), feb)
	require.NoError(t, err)
	assert.Equal(t, []string{"2", "3"}, rep.Delta.New)
	assert.Equal(t, []string{"4"}, rep.Delta.Recovered)
	assert.Equal(t, []string{"3"}, rep.Cohort.New)
	assert.Equal(t, []string{"2"}, rep.Cohort.Reactivated)
	assert.Equal(t, []string{"4"}, rep.Cohort.Churned)
}

func TestAnalytics_Projection(t *testing.T) {
	repo, err := goals.New(map[string]goals.Month{
		"2025-02": {Goal: 260, Prices: map[string]float64{"Soap": 10}},
	})
	require.NoError(t, err)
	a := newTestAnalytics(t, Options{Goals: repo})

	rep, err := a.Projection(context.Background(), feb)
	require.NoError(t, err)
	assert.Equal(t, "2025-02", rep.Period)

	p := rep.Projection
	assert.Equal(t, 13, p.ElapsedWorkingDays)
	assert.Equal(t, 20, p.TotalWorkingDays)
	assert.InDelta(t, 200, p.Projected, 1e-9)
	assert.True(t, p.HasGoal)
	assert.InDelta(t, 50, p.Attainment, 1e-9)

	require.Len(t, rep.Prices, 1)
	assert.Equal(t, "Soap", rep.Prices[0].Product)
	assert.Zero(t, rep.Prices[0].DeviationPct)
}

func TestAnalytics_LoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sales.csv")
	csv := "Data;Região;Produto;Preço;Qtde;Custo\n" +
		"2025-02-03;South;Soap;10;2;5\n" +
		"2025-02-04;North;Rice;5;1;2\n" +
		";;;;;\n"
	require.NoError(t, os.WriteFile(path, []byte(csv), 0o644))

	m := observability.NewMetrics()
	a := NewAnalytics(Options{Logger: quiet, CacheDir: filepath.Join(dir, "cache"), Metrics: m})
	require.NoError(t, a.LoadFromFile(context.Background(), path))

	stats := a.Stats()
	assert.Equal(t, 2, stats["record_count"])
	assert.Equal(t, 1, stats["skipped_rows"])
	assert.Equal(t, "2025-02-04", stats["last_date"])
	assert.FileExists(t, a.cacheFilename(path))

	// make the source older than the cache so the second load uses it
	old := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(path, old, old))

	b := NewAnalytics(Options{Logger: quiet, CacheDir: filepath.Join(dir, "cache")})
	require.NoError(t, b.LoadFromFile(context.Background(), path))
	ov, err := b.Overview(context.Background(), Query{})
	require.NoError(t, err)
	assert.InDelta(t, 25, ov.Comparison.Current.GrossRevenue, 1e-9)
}

func TestAnalytics_LoadFromFileErrors(t *testing.T) {
	a := NewAnalytics(Options{Logger: quiet, CacheDir: t.TempDir()})
	assert.Error(t, a.LoadFromFile(context.Background(), filepath.Join(t.TempDir(), "missing.csv")))
	assert.Error(t, a.LoadFromFile(context.Background(), "report.pdf"))
}

func TestAnalytics_ConfiguredMappingWins(t *testing.T) {
	a := NewAnalytics(Options{Logger: quiet, Mapping: models.Mapping{models.FieldUnitPrice: "list"}})
	a.SetData([]models.Record{{"data": "2025-02-03", "list": 3, "preco": 100, "qtd": 1}}, nil)

	ov, err := a.Overview(context.Background(), feb)
	require.NoError(t, err)
	assert.InDelta(t, 3, ov.Comparison.Current.GrossRevenueWithTax, 1e-9)
}

func TestAnalytics_CachedDatasetKeepsDetectedMapping(t *testing.T) {
	dir := t.TempDir()
	cacheDir := filepath.Join(dir, "cache")
	path := filepath.Join(dir, "sales.csv")
	csv := "Data;Preço;Lista;Qtde\n" +
		"2025-02-03;10;3;2\n"
	require.NoError(t, os.WriteFile(path, []byte(csv), 0o644))

	override := models.Mapping{models.FieldUnitPrice: "Lista"}
	first := NewAnalytics(Options{Logger: quiet, CacheDir: cacheDir, Mapping: override})
	require.NoError(t, first.LoadFromFile(context.Background(), path))
	require.FileExists(t, first.cacheFilename(path))

	// rewrite the source but keep it older than the cache, so any value
	// coming from the rewritten prices would mean the cache was bypassed
	require.NoError(t, os.WriteFile(path, []byte("Data;Preço;Lista;Qtde\n2025-02-03;99;99;2\n"), 0o644))
	old := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(path, old, old))

	tests := []struct {
		name    string
		mapping models.Mapping
		want    float64
	}{
		{"detected column without overrides", nil, 20},
		{"override reapplied on install", override, 6},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := NewAnalytics(Options{Logger: quiet, CacheDir: cacheDir, Mapping: tt.mapping})
			require.NoError(t, a.LoadFromFile(context.Background(), path))
			assert.Equal(t, path, a.Stats()["source"])

			ov, err := a.Overview(context.Background(), feb)
			require.NoError(t, err)
			assert.InDelta(t, tt.want, ov.Comparison.Current.GrossRevenueWithTax, 1e-9)
		})
	}
}
