package period

import (
	"slices"
	"time"

	"commercial-analytics/internal/models"
)

// Calendar decides which days count as working days.
type Calendar struct {
	Weekdays []time.Weekday
	Holidays []time.Time
}

// DefaultCalendar works Monday to Friday with no holidays.
var DefaultCalendar = Calendar{
	Weekdays: []time.Weekday{time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday},
}

func (c Calendar) isWorking(d time.Time) bool {
	weekdays := c.Weekdays
	if len(weekdays) == 0 {
		weekdays = DefaultCalendar.Weekdays
	}
	if !slices.Contains(weekdays, d.Weekday()) {
		return false
	}
	for _, h := range c.Holidays {
		hy, hm, hd := h.Date()
		if hy == d.Year() && hm == d.Month() && hd == d.Day() {
			return false
		}
	}
	return true
}

// WorkingDays counts working days from start to end inclusive.
func (c Calendar) WorkingDays(start, end time.Time) int {
	s, e := normalize(start, end)
	n := 0
	for d := s; !d.After(e); d = d.AddDate(0, 0, 1) {
		if c.isWorking(d) {
			n++
		}
	}
	return n
}

// Model names the projection formula.
type Model string

// ModelLinear extrapolates the daily run rate over the month's working days.
// TODO: add the weighted two-fortnight model once its weights are specified.
const ModelLinear Model = "linear"

// Projection is a month-end estimate from a partial month.
type Projection struct {
	Model               Model   `json:"model"`
	Realized            float64 `json:"realized"`
	ElapsedWorkingDays  int     `json:"elapsed_working_days"`
	TotalWorkingDays    int     `json:"total_working_days"`
	RunRate             float64 `json:"run_rate"`
	Projected           float64 `json:"projected"`
	Goal                float64 `json:"goal,omitempty"`
	HasGoal             bool    `json:"has_goal"`
	Attainment          float64 `json:"attainment_pct,omitempty"`
	ProjectedAttainment float64 `json:"projected_attainment_pct,omitempty"`
}

// Project extrapolates realized linearly: run rate = realized / elapsed,
// projected = run rate x total. With nothing elapsed the realized value is
// returned unchanged.
func Project(realized float64, elapsed, total int) Projection {
	if total < elapsed {
		total = elapsed
	}
	p := Projection{
		Model:              ModelLinear,
		Realized:           realized,
		ElapsedWorkingDays: elapsed,
		TotalWorkingDays:   total,
		Projected:          realized,
	}
	if elapsed > 0 {
		p.RunRate = realized / float64(elapsed)
		p.Projected = p.RunRate * float64(total)
	}
	return p
}

// WithGoal attaches a goal and the attainment percentages. A non-positive
// goal is ignored.
func (p Projection) WithGoal(goal float64) Projection {
	if goal <= 0 {
		return p
	}
	p.Goal = goal
	p.HasGoal = true
	p.Attainment = p.Realized / goal * 100
	p.ProjectedAttainment = p.Projected / goal * 100
	return p
}

// ProjectMonth projects realized over the month containing w. Elapsed days run
// from the 1st to w.End; totalOverride replaces the calendar's count for the
// whole month when positive.
func ProjectMonth(realized float64, w models.PeriodWindow, cal Calendar, totalOverride int) Projection {
	monthStart := time.Date(w.End.Year(), w.End.Month(), 1, 0, 0, 0, 0, w.End.Location())
	full := FullMonth(monthStart.Year(), monthStart.Month(), monthStart.Location())

	elapsed := cal.WorkingDays(monthStart, w.End)
	total := cal.WorkingDays(full.Start, full.End)
	if totalOverride > 0 {
		total = totalOverride
	}
	return Project(realized, elapsed, total)
}
