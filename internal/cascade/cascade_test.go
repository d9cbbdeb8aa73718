package cascade

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"commercial-analytics/internal/models"
)

const tolerance = 1e-9

func sampleRecord() models.Record {
	return models.Record{
		"price":           "10",
		"quantity":        5,
		"st":              "5",
		"aliquota":        "10",
		"custo":           4.0,
		"comissao":        "5",
		"outras_despesas": "0",
	}
}

func TestEvaluate_ReferenceScenario(t *testing.T) {
	c, err := Evaluate(sampleRecord(), nil)
	require.NoError(t, err)

	assert.InDelta(t, 50, c.GrossRevenueWithTax, tolerance)
	assert.InDelta(t, 45, c.GrossRevenue, tolerance)
	assert.InDelta(t, 4.5, c.OutputTax, tolerance)
	assert.InDelta(t, 40.5, c.NetRevenue, tolerance)
	assert.InDelta(t, 20, c.Cost, tolerance)
	assert.InDelta(t, 20.5, c.GrossProfit, tolerance)
	assert.InDelta(t, 20.5/40.5*100, c.GrossMarginPct, tolerance)
	assert.InDelta(t, 2.25, c.Commission, tolerance)
	assert.InDelta(t, (20.5-2.25)/45*100, c.ContributionMarginPct, tolerance)
	assert.InDelta(t, 50.617, c.GrossMarginPct, 1e-3)
	assert.InDelta(t, 40.555, c.ContributionMarginPct, 1e-3)
}

func TestEvaluate_FallsBackToGrossValue(t *testing.T) {
	rec := models.Record{"valor": "1.000,00", "qtd": "2", "custo": "100"}
	c, err := Evaluate(rec, nil)
	require.NoError(t, err)

	assert.InDelta(t, 1000, c.GrossRevenueWithTax, tolerance)
	assert.InDelta(t, 200, c.Cost, tolerance)
	assert.InDelta(t, 800, c.GrossProfit, tolerance)
}

func TestEvaluate_UsesMapping(t *testing.T) {
	rec := models.Record{"PU": "2", "Q": "3"}
	m := models.Mapping{models.FieldUnitPrice: "PU", models.FieldQuantity: "Q"}
	assert.InDelta(t, 6, One(rec, m).GrossRevenueWithTax, tolerance)
}

func TestEvaluate_ZeroDenominators(t *testing.T) {
	c, err := Evaluate(models.Record{"price": "10", "qty": "1", "st": "10"}, nil)
	require.NoError(t, err)
	assert.Zero(t, c.GrossRevenue)
	assert.Zero(t, c.GrossMarginPct)
	assert.Zero(t, c.ContributionMarginPct)

	c, err = Evaluate(models.Record{"product": "nothing priced"}, nil)
	require.NoError(t, err)
	assert.Equal(t, models.Cascade{}, c)
}

func TestEvaluate_Errors(t *testing.T) {
	_, err := Evaluate(nil, nil)
	assert.ErrorIs(t, err, ErrNilRecord)

	_, err = Evaluate(models.Record{"price": 1e308, "qty": 1e308}, nil)
	assert.ErrorIs(t, err, ErrNonFinite)
	assert.Equal(t, models.Cascade{}, One(models.Record{"price": 1e308, "qty": 1e308}, nil))
}

func TestMany(t *testing.T) {
	records := []models.Record{
		sampleRecord(),
		sampleRecord(),
		nil,
		{"price": 1e308, "qty": 1e308},
		{"valor": "10"},
	}

	s := Many(records, nil)
	assert.Equal(t, 3, s.Count)
	assert.Equal(t, 2, s.ErrorCount)
	assert.InDelta(t, 110, s.GrossRevenueWithTax, tolerance)
	assert.InDelta(t, 100, s.GrossRevenue, tolerance)
	assert.InDelta(t, 9, s.OutputTax, tolerance)
	assert.InDelta(t, 91, s.NetRevenue, tolerance)
	assert.InDelta(t, 40, s.Cost, tolerance)
	assert.InDelta(t, 51, s.GrossProfit, tolerance)

	// percentages come from the totals, not from averaging rows
	assert.InDelta(t, 51.0/91.0*100, s.GrossMarginPct, tolerance)
	assert.InDelta(t, (51.0-4.5)/100*100, s.ContributionMarginPct, tolerance)
}

func TestMany_Empty(t *testing.T) {
	s := Many(nil, nil)
	assert.Zero(t, s.Count)
	assert.Zero(t, s.ErrorCount)
	assert.Equal(t, models.Cascade{}, s.Cascade)
}

func TestSum_RederivesPercentages(t *testing.T) {
	a := models.Cascade{GrossRevenue: 100, NetRevenue: 100, GrossProfit: 50, ContributionMargin: 40}
	b := models.Cascade{GrossRevenue: 300, NetRevenue: 300, GrossProfit: 30, ContributionMargin: 10}
	a.Finalize()
	b.Finalize()

	total := Sum(a, b)
	assert.InDelta(t, 400, total.NetRevenue, tolerance)
	assert.InDelta(t, 80.0/400*100, total.GrossMarginPct, tolerance)
	assert.NotEqual(t, (a.GrossMarginPct+b.GrossMarginPct)/2, total.GrossMarginPct)
	assert.InDelta(t, 50.0/400*100, total.ContributionMarginPct, tolerance)
}

func TestCompare(t *testing.T) {
	cur := models.Cascade{GrossRevenue: 120, NetRevenue: 100, GrossProfit: 40}
	mom := models.Cascade{GrossRevenue: 100, NetRevenue: 80, GrossProfit: 40}
	cur.Finalize()
	mom.Finalize()

	cmp := Compare(cur, mom, models.Cascade{})

	assert.InDelta(t, 20, cmp.MoMVariance["gross_revenue"].Absolute, tolerance)
	assert.InDelta(t, 20, cmp.MoMVariance["gross_revenue"].Percent, tolerance)
	assert.InDelta(t, -10, cmp.MoMVariance["gross_margin_pct"].Percent, tolerance)

	assert.InDelta(t, 120, cmp.YoYVariance["gross_revenue"].Absolute, tolerance)
	assert.Zero(t, cmp.YoYVariance["gross_revenue"].Percent)
}

func TestChange_NegativeBase(t *testing.T) {
	v := Change(-50, -100)
	assert.InDelta(t, 50, v.Absolute, tolerance)
	assert.InDelta(t, 50, v.Percent, tolerance)
}
