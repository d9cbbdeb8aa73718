// Package cascade computes the revenue-to-margin chain (ROBST, ROB, ROL, LOB,
// MB%, MC%) for single transactions and consolidates it across collections.
package cascade

import (
	"errors"
	"math"

	"commercial-analytics/internal/fields"
	"commercial-analytics/internal/models"
)

var (
	ErrNilRecord = errors.New("cascade: nil record")
	ErrNonFinite = errors.New("cascade: non-finite result")
)

// Summary is a consolidated cascade plus row bookkeeping.
type Summary struct {
	models.Cascade
	Count      int `json:"count"`
	ErrorCount int `json:"error_count"`
}

// One computes the cascade of a single record. Rows that cannot be evaluated
// yield a zero cascade.
func One(rec models.Record, m models.Mapping) models.Cascade {
	c, err := Evaluate(rec, m)
	if err != nil {
		return models.Cascade{}
	}
	return c
}

// Evaluate applies the formula chain to rec:
//
//	ROBST = price x qty (or the gross value field)
//	ROB   = ROBST - tax substitution
//	ROL   = ROB - ROB x output tax rate
//	LOB   = ROL - net cost x qty
//	MB%   = LOB / ROL x 100
//	MC%   = (LOB - commission - other expenses + rebate) / ROB x 100
//
// Missing inputs count as zero. Rates are expressed in percent.
func Evaluate(rec models.Record, m models.Mapping) (models.Cascade, error) {
	if rec == nil {
		return models.Cascade{}, ErrNilRecord
	}

	qty := fields.Number(rec, models.FieldQuantity, m, 0)
	price, hasPrice := resolvedNumber(rec, models.FieldUnitPrice, m)

	var robst float64
	if hasPrice && qty != 0 && price != 0 {
		robst = price * qty
	} else {
		robst = fields.Number(rec, models.FieldGrossValue, m, 0)
	}

	taxSub := fields.Number(rec, models.FieldTaxSubstitution, m, 0)
	taxRate := fields.Number(rec, models.FieldOutputTaxRate, m, 0) / 100
	netCost := fields.Number(rec, models.FieldNetCost, m, 0)
	commRate := fields.Number(rec, models.FieldCommissionRate, m, 0) / 100
	other := fields.Number(rec, models.FieldOtherExpenses, m, 0)
	rebate := fields.Number(rec, models.FieldRebate, m, 0)

	c := models.Cascade{
		GrossRevenueWithTax: robst,
		TaxSubstitution:     taxSub,
		Quantity:            qty,
		OtherExpenses:       other,
		Rebate:              rebate,
	}
	c.GrossRevenue = robst - taxSub
	c.OutputTax = c.GrossRevenue * taxRate
	c.NetRevenue = c.GrossRevenue - c.OutputTax
	c.Cost = netCost * qty
	c.GrossProfit = c.NetRevenue - c.Cost
	c.Commission = c.GrossRevenue * commRate
	c.ContributionMargin = c.GrossProfit - c.Commission - other + rebate
	c.Finalize()

	if !finite(c) {
		return models.Cascade{}, ErrNonFinite
	}
	return c, nil
}

func resolvedNumber(rec models.Record, f models.LogicalField, m models.Mapping) (float64, bool) {
	v := fields.Number(rec, f, m, math.NaN())
	if math.IsNaN(v) {
		return 0, false
	}
	return v, true
}

// Many sums every record's monetary fields and derives the percentages once
// from the totals. Rows that fail to evaluate are counted, not propagated.
func Many(records []models.Record, m models.Mapping) Summary {
	var s Summary
	for _, rec := range records {
		c, err := Evaluate(rec, m)
		if err != nil {
			s.ErrorCount++
			continue
		}
		s.Cascade.Add(c)
		s.Count++
	}
	s.Cascade.Finalize()
	return s
}

// Sum consolidates already computed cascades field by field.
func Sum(cs ...models.Cascade) models.Cascade {
	var total models.Cascade
	for _, c := range cs {
		total.Add(c)
	}
	total.Finalize()
	return total
}

func finite(c models.Cascade) bool {
	for _, f := range c.Monetary() {
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return false
		}
	}
	return !math.IsNaN(c.GrossMarginPct) && !math.IsInf(c.GrossMarginPct, 0) &&
		!math.IsNaN(c.ContributionMarginPct) && !math.IsInf(c.ContributionMarginPct, 0)
}
