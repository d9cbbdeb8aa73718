// Package customers buckets customers by purchase recency and compares the
// customer sets of two windows.
package customers

import (
	"math"
	"slices"
	"sort"
	"time"

	"commercial-analytics/internal/cascade"
	"commercial-analytics/internal/fields"
	"commercial-analytics/internal/models"
)

// Thresholds are the inclusive day limits of the active and at-risk buckets.
type Thresholds struct {
	ActiveDays int `json:"active_days" yaml:"active_days"`
	AtRiskDays int `json:"at_risk_days" yaml:"at_risk_days"`
}

var DefaultThresholds = Thresholds{ActiveDays: 60, AtRiskDays: 90}

// Bucket maps days since the last purchase to a bucket. Negative values, a
// purchase after the reference date, count as active.
func (t Thresholds) Bucket(days int) models.Bucket {
	switch {
	case days <= t.ActiveDays:
		return models.BucketActive
	case days <= t.AtRiskDays:
		return models.BucketAtRisk
	default:
		return models.BucketInactive
	}
}

// Result is the recency partition of every customer with a dated purchase.
type Result struct {
	Total    int                     `json:"total"`
	Active   int                     `json:"active"`
	AtRisk   int                     `json:"at_risk"`
	Inactive int                     `json:"inactive"`
	Detail   []models.CustomerStatus `json:"detail"`
}

// Classify groups records by customer identity and buckets each customer by
// the whole days between its last purchase and ref. Records without an
// identity are ignored and customers without any dated purchase are left
// out of every bucket.
func Classify(records []models.Record, m models.Mapping, ref time.Time) Result {
	return ClassifyWith(records, m, ref, DefaultThresholds)
}

func ClassifyWith(records []models.Record, m models.Mapping, ref time.Time, th Thresholds) Result {
	index := make(map[string]*models.CustomerStatus)
	named := make(map[string]bool)
	order := make([]string, 0)

	for _, rec := range records {
		key, label, ok := fields.CustomerIdentity(rec, m)
		if !ok {
			continue
		}
		st, seen := index[key]
		if !seen {
			st = &models.CustomerStatus{Key: key, Label: label}
			index[key] = st
			order = append(order, key)
		}
		// a real name replaces a tax id shown as label
		if !named[key] {
			if name := fields.Text(rec, models.FieldCustomerName, m, ""); name != "" {
				st.Label = name
				named[key] = true
			}
		}
		st.Transactions++
		st.Value += cascade.One(rec, m).GrossRevenue

		d, ok := fields.Date(rec, models.FieldDate, m)
		if !ok {
			continue
		}
		if st.FirstPurchase.IsZero() || d.Before(st.FirstPurchase) {
			st.FirstPurchase = d
		}
		if d.After(st.LastPurchase) {
			st.LastPurchase = d
		}
	}

	res := Result{Detail: make([]models.CustomerStatus, 0, len(order))}
	refDay := dayOf(ref, time.UTC)
	for _, key := range order {
		st := index[key]
		if st.LastPurchase.IsZero() {
			continue
		}
		st.DaysSinceLast = daysBetween(dayOf(st.LastPurchase, time.UTC), refDay)
		st.Bucket = th.Bucket(st.DaysSinceLast)
		switch st.Bucket {
		case models.BucketActive:
			res.Active++
		case models.BucketAtRisk:
			res.AtRisk++
		default:
			res.Inactive++
		}
		res.Detail = append(res.Detail, *st)
	}
	res.Total = len(res.Detail)

	sort.SliceStable(res.Detail, func(i, j int) bool {
		return res.Detail[i].Value > res.Detail[j].Value
	})
	return res
}

// Delta is the difference between the customer sets of two windows.
type Delta struct {
	New       []string `json:"new"`
	Recovered []string `json:"recovered"`
}

// CohortDelta returns the customers present in current but not in prior
// (New) and the ones present in prior but not in current (Recovered).
func CohortDelta(current, prior []models.Record, m models.Mapping) Delta {
	cur := Identities(current, m)
	pri := Identities(prior, m)
	return Delta{
		New:       difference(cur, pri),
		Recovered: difference(pri, cur),
	}
}

// Cohort splits the current window's customers by history.
type Cohort struct {
	New         []string `json:"new"`
	Reactivated []string `json:"reactivated"`
	Churned     []string `json:"churned"`
}

// Reactivation compares the current window against the prior window and
// everything older. New customers were never seen before; reactivated ones
// bought at some point in history but not in the prior window; churned ones
// bought in the prior window and not in the current one.
func Reactivation(current, prior, history []models.Record, m models.Mapping) Cohort {
	cur := Identities(current, m)
	pri := Identities(prior, m)
	old := Identities(history, m)

	c := Cohort{
		New:         make([]string, 0),
		Reactivated: make([]string, 0),
		Churned:     difference(pri, cur),
	}
	for _, key := range sortedKeys(cur) {
		if _, ok := pri[key]; ok {
			continue
		}
		if _, ok := old[key]; ok {
			c.Reactivated = append(c.Reactivated, key)
		} else {
			c.New = append(c.New, key)
		}
	}
	return c
}

// Identities is the set of customer identity keys in records.
func Identities(records []models.Record, m models.Mapping) map[string]struct{} {
	set := make(map[string]struct{})
	for _, rec := range records {
		if key, _, ok := fields.CustomerIdentity(rec, m); ok {
			set[key] = struct{}{}
		}
	}
	return set
}

func difference(a, b map[string]struct{}) []string {
	out := make([]string, 0)
	for _, key := range sortedKeys(a) {
		if _, ok := b[key]; !ok {
			out = append(out, key)
		}
	}
	return out
}

func sortedKeys(set map[string]struct{}) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

func dayOf(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}

func daysBetween(from, to time.Time) int {
	return int(math.Floor(to.Sub(from).Hours() / 24))
}
