// Package period derives comparable calendar windows: the prior month and the
// same period of the previous year, with same-cutoff-day alignment for months
// still in progress.
package period

import (
	"fmt"
	"math"
	"time"

	"commercial-analytics/internal/fields"
	"commercial-analytics/internal/models"
)

// Shape is the kind of window handed to the aligner.
type Shape int

const (
	ShapeRange Shape = iota
	ShapeFullMonth
	ShapePartialMonth
)

func (s Shape) String() string {
	switch s {
	case ShapeFullMonth:
		return "full_month"
	case ShapePartialMonth:
		return "partial_month"
	default:
		return "range"
	}
}

// Classify reports whether start..end is a whole calendar month, the first
// days of a month, or anything else.
func Classify(start, end time.Time) Shape {
	s, e := normalize(start, end)
	if s.Day() != 1 || s.Year() != e.Year() || s.Month() != e.Month() {
		return ShapeRange
	}
	if e.Day() == daysIn(e.Year(), e.Month(), e.Location()) {
		return ShapeFullMonth
	}
	return ShapePartialMonth
}

// Window describes start..end itself with the label and partial marker the
// comparison windows carry.
func Window(start, end time.Time) models.PeriodWindow {
	s, e := normalize(start, end)
	switch Classify(s, e) {
	case ShapeFullMonth:
		return FullMonth(s.Year(), s.Month(), s.Location())
	case ShapePartialMonth:
		return partialMonth(s.Year(), s.Month(), e.Day(), s.Location())
	default:
		return rangeWindow(s, e)
	}
}

// PriorPeriod returns the window start..end is compared against month over
// month. A full month maps to the previous full month, a partial month to the
// same cutoff day of the previous month (clamped to its last day), and any
// other range to the window of equal length ending the day before start.
func PriorPeriod(start, end time.Time) models.PeriodWindow {
	s, e := normalize(start, end)
	switch Classify(s, e) {
	case ShapeFullMonth:
		p := time.Date(s.Year(), s.Month()-1, 1, 0, 0, 0, 0, s.Location())
		return FullMonth(p.Year(), p.Month(), s.Location())
	case ShapePartialMonth:
		p := time.Date(s.Year(), s.Month()-1, 1, 0, 0, 0, 0, s.Location())
		return partialMonth(p.Year(), p.Month(), e.Day(), s.Location())
	default:
		n := daysBetween(s, e)
		pe := s.AddDate(0, 0, -1)
		ps := pe.AddDate(0, 0, -n)
		return rangeWindow(ps, pe)
	}
}

// SamePeriodLastYear returns the year-over-year window for start..end, with
// the same month/cutoff rules as PriorPeriod. Ranges shift back one year,
// with 29 February landing on 28 February.
func SamePeriodLastYear(start, end time.Time) models.PeriodWindow {
	s, e := normalize(start, end)
	switch Classify(s, e) {
	case ShapeFullMonth:
		return FullMonth(s.Year()-1, s.Month(), s.Location())
	case ShapePartialMonth:
		return partialMonth(s.Year()-1, s.Month(), e.Day(), s.Location())
	default:
		return rangeWindow(shiftYears(s, -1), shiftYears(e, -1))
	}
}

// Comparable returns the current window and its MoM and YoY counterparts.
func Comparable(start, end time.Time) (current, mom, yoy models.PeriodWindow) {
	return Window(start, end), PriorPeriod(start, end), SamePeriodLastYear(start, end)
}

// FullMonth is the whole of month m of year y.
func FullMonth(y int, m time.Month, loc *time.Location) models.PeriodWindow {
	if loc == nil {
		loc = time.UTC
	}
	start := time.Date(y, m, 1, 0, 0, 0, 0, loc)
	return models.PeriodWindow{
		Start: start,
		End:   time.Date(start.Year(), start.Month(), daysIn(start.Year(), start.Month(), loc), 0, 0, 0, 0, loc),
		Label: start.Format("Jan 2006"),
	}
}

// MonthToDate is day 1 through ref's day of ref's month. On the last day of
// the month it is the full month.
func MonthToDate(ref time.Time) models.PeriodWindow {
	d := dateOf(ref)
	return Window(time.Date(d.Year(), d.Month(), 1, 0, 0, 0, 0, d.Location()), d)
}

func partialMonth(y int, m time.Month, cutoff int, loc *time.Location) models.PeriodWindow {
	start := time.Date(y, m, 1, 0, 0, 0, 0, loc)
	last := daysIn(start.Year(), start.Month(), loc)
	day := min(cutoff, last)
	return models.PeriodWindow{
		Start:     start,
		End:       time.Date(start.Year(), start.Month(), day, 0, 0, 0, 0, loc),
		Label:     fmt.Sprintf("%s (1-%d)", start.Format("Jan 2006"), day),
		IsPartial: true,
		CutoffDay: day,
		Clamped:   day < cutoff,
	}
}

func rangeWindow(s, e time.Time) models.PeriodWindow {
	return models.PeriodWindow{
		Start: s,
		End:   e,
		Label: s.Format("2006-01-02") + " to " + e.Format("2006-01-02"),
	}
}

// normalize truncates both ends to calendar days in start's location and
// orders them.
func normalize(start, end time.Time) (time.Time, time.Time) {
	s := dateOf(start)
	e := dateOf(end.In(s.Location()))
	if e.Before(s) {
		s, e = e, s
	}
	return s, e
}

func dateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

func daysIn(y int, m time.Month, loc *time.Location) int {
	return time.Date(y, m+1, 0, 0, 0, 0, 0, loc).Day()
}

// daysBetween counts calendar days from s to e; DST shifts are rounded away.
func daysBetween(s, e time.Time) int {
	return int(math.Round(e.Sub(s).Hours() / 24))
}

func shiftYears(t time.Time, years int) time.Time {
	y := t.Year() + years
	d := min(t.Day(), daysIn(y, t.Month(), t.Location()))
	return time.Date(y, t.Month(), d, 0, 0, 0, 0, t.Location())
}

// Key is the YYYY-MM key used by goal and price-table lookups.
func Key(t time.Time) string {
	return t.Format("2006-01")
}

// Filter keeps the records whose transaction date falls inside w. Records
// without a resolvable date are left out.
func Filter(records []models.Record, m models.Mapping, w models.PeriodWindow) []models.Record {
	out := make([]models.Record, 0)
	for _, rec := range records {
		d, ok := fields.Date(rec, models.FieldDate, m)
		if !ok {
			continue
		}
		if w.Contains(d) {
			out = append(out, rec)
		}
	}
	return out
}
