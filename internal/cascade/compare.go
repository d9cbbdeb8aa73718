package cascade

import (
	"math"

	"commercial-analytics/internal/models"
)

// Variance is the change of one metric against a comparison base.
type Variance struct {
	Current  float64 `json:"current"`
	Base     float64 `json:"base"`
	Absolute float64 `json:"absolute"`
	Percent  float64 `json:"percent"`
}

// Comparison is the current/MoM/YoY triplet rendered by period reports.
type Comparison struct {
	Current models.Cascade `json:"current"`
	MoM     models.Cascade `json:"mom"`
	YoY     models.Cascade `json:"yoy"`

	MoMVariance map[string]Variance `json:"mom_variance"`
	YoYVariance map[string]Variance `json:"yoy_variance"`
}

// Compare builds the triplet and its per-field variances. Percentage points
// are used for MB% and MC%.
func Compare(current, mom, yoy models.Cascade) Comparison {
	return Comparison{
		Current:     current,
		MoM:         mom,
		YoY:         yoy,
		MoMVariance: variances(current, mom),
		YoYVariance: variances(current, yoy),
	}
}

func variances(cur, base models.Cascade) map[string]Variance {
	out := make(map[string]Variance, 14)
	bm := base.Monetary()
	for k, v := range cur.Monetary() {
		out[k] = Change(v, bm[k])
	}
	out["gross_margin_pct"] = pointChange(cur.GrossMarginPct, base.GrossMarginPct)
	out["contribution_margin_pct"] = pointChange(cur.ContributionMarginPct, base.ContributionMarginPct)
	return out
}

// Change is the absolute and relative change of cur against base. A zero
// base gives a relative change of 0.
func Change(cur, base float64) Variance {
	v := Variance{Current: cur, Base: base, Absolute: cur - base}
	if base != 0 {
		v.Percent = (cur - base) / math.Abs(base) * 100
	}
	return v
}

func pointChange(cur, base float64) Variance {
	return Variance{Current: cur, Base: base, Absolute: cur - base, Percent: cur - base}
}
