package models

// Cascade is the revenue-to-margin chain for one transaction or for any
// consolidated set of transactions. Monetary fields are additive; the two
// percentage fields are always derived from the monetary totals.
type Cascade struct {
	GrossRevenueWithTax float64 `json:"gross_revenue_with_tax"` // ROBST
	TaxSubstitution     float64 `json:"tax_substitution"`
	GrossRevenue        float64 `json:"gross_revenue"` // ROB
	OutputTax           float64 `json:"output_tax"`
	NetRevenue          float64 `json:"net_revenue"` // ROL
	Cost                float64 `json:"cost"`
	GrossProfit         float64 `json:"gross_profit"` // LOB
	Commission          float64 `json:"commission"`
	OtherExpenses       float64 `json:"other_expenses"`
	Rebate              float64 `json:"rebate"`
	ContributionMargin  float64 `json:"contribution_margin"`
	Quantity            float64 `json:"quantity"`

	GrossMarginPct        float64 `json:"gross_margin_pct"`        // MB
	ContributionMarginPct float64 `json:"contribution_margin_pct"` // MC
}

// Add sums the monetary fields of o into c. Percentages are left stale until
// Finalize is called.
func (c *Cascade) Add(o Cascade) {
	c.GrossRevenueWithTax += o.GrossRevenueWithTax
	c.TaxSubstitution += o.TaxSubstitution
	c.GrossRevenue += o.GrossRevenue
	c.OutputTax += o.OutputTax
	c.NetRevenue += o.NetRevenue
	c.Cost += o.Cost
	c.GrossProfit += o.GrossProfit
	c.Commission += o.Commission
	c.OtherExpenses += o.OtherExpenses
	c.Rebate += o.Rebate
	c.ContributionMargin += o.ContributionMargin
	c.Quantity += o.Quantity
}

// Finalize recomputes MB and MC from the monetary totals. A non-positive
// denominator yields 0.
func (c *Cascade) Finalize() {
	c.GrossMarginPct = 0
	if c.NetRevenue > 0 {
		c.GrossMarginPct = c.GrossProfit / c.NetRevenue * 100
	}
	c.ContributionMarginPct = 0
	if c.GrossRevenue > 0 {
		c.ContributionMarginPct = c.ContributionMargin / c.GrossRevenue * 100
	}
}

// Monetary returns the additive fields keyed by their JSON names.
func (c Cascade) Monetary() map[string]float64 {
	return map[string]float64{
		"gross_revenue_with_tax": c.GrossRevenueWithTax,
		"tax_substitution":       c.TaxSubstitution,
		"gross_revenue":          c.GrossRevenue,
		"output_tax":             c.OutputTax,
		"net_revenue":            c.NetRevenue,
		"cost":                   c.Cost,
		"gross_profit":           c.GrossProfit,
		"commission":             c.Commission,
		"other_expenses":         c.OtherExpenses,
		"rebate":                 c.Rebate,
		"contribution_margin":    c.ContributionMargin,
		"quantity":               c.Quantity,
	}
}
