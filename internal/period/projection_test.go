package period

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCalendarWorkingDays(t *testing.T) {
	// February 2025 starts on a Saturday
	assert.Equal(t, 20, DefaultCalendar.WorkingDays(day(2025, 2, 1), day(2025, 2, 28)))
	assert.Equal(t, 0, DefaultCalendar.WorkingDays(day(2025, 2, 1), day(2025, 2, 2)))
	assert.Equal(t, 5, DefaultCalendar.WorkingDays(day(2025, 2, 7), day(2025, 2, 3)))

	withHoliday := Calendar{Holidays: []time.Time{day(2025, 2, 3)}}
	assert.Equal(t, 19, withHoliday.WorkingDays(day(2025, 2, 1), day(2025, 2, 28)))

	sixDays := Calendar{Weekdays: []time.Weekday{
		time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday, time.Saturday,
	}}
	assert.Equal(t, 24, sixDays.WorkingDays(day(2025, 2, 1), day(2025, 2, 28)))
}

func TestProject(t *testing.T) {
	p := Project(1000, 10, 20)
	assert.Equal(t, ModelLinear, p.Model)
	assert.InDelta(t, 100, p.RunRate, 1e-9)
	assert.InDelta(t, 2000, p.Projected, 1e-9)
	assert.False(t, p.HasGoal)

	p = Project(500, 0, 20)
	assert.Equal(t, 500.0, p.Projected)
	assert.Zero(t, p.RunRate)

	p = Project(300, 12, 10)
	assert.Equal(t, 12, p.TotalWorkingDays)
	assert.InDelta(t, 300, p.Projected, 1e-9)
}

func TestProjectionWithGoal(t *testing.T) {
	p := Project(1000, 10, 20).WithGoal(4000)
	assert.True(t, p.HasGoal)
	assert.InDelta(t, 25, p.Attainment, 1e-9)
	assert.InDelta(t, 50, p.ProjectedAttainment, 1e-9)

	p = Project(1000, 10, 20).WithGoal(0)
	assert.False(t, p.HasGoal)
	assert.Zero(t, p.Attainment)
}

func TestProjectMonth(t *testing.T) {
	w := MonthToDate(day(2025, 2, 19))

	// Feb 3..19 holds 13 working days of the month's 20
	p := ProjectMonth(1300, w, DefaultCalendar, 0)
	assert.Equal(t, 13, p.ElapsedWorkingDays)
	assert.Equal(t, 20, p.TotalWorkingDays)
	assert.InDelta(t, 2000, p.Projected, 1e-9)

	p = ProjectMonth(1300, w, DefaultCalendar, 26)
	assert.Equal(t, 26, p.TotalWorkingDays)
	assert.InDelta(t, 2600, p.Projected, 1e-9)
}
