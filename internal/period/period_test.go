package period

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"commercial-analytics/internal/models"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func assertWindow(t *testing.T, w models.PeriodWindow, start, end time.Time, partial bool, cutoff int) {
	t.Helper()
	assert.True(t, start.Equal(w.Start), "start: got %s want %s", w.Start.Format(time.DateOnly), start.Format(time.DateOnly))
	assert.True(t, end.Equal(w.End), "end: got %s want %s", w.End.Format(time.DateOnly), end.Format(time.DateOnly))
	assert.Equal(t, partial, w.IsPartial)
	assert.Equal(t, cutoff, w.CutoffDay)
	assert.False(t, w.Start.After(w.End))
	assert.NotEmpty(t, w.Label)
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name       string
		start, end time.Time
		want       Shape
	}{
		{"full month", day(2025, 1, 1), day(2025, 1, 31), ShapeFullMonth},
		{"full leap february", day(2024, 2, 1), day(2024, 2, 29), ShapeFullMonth},
		{"partial", day(2025, 2, 1), day(2025, 2, 19), ShapePartialMonth},
		{"single first day", day(2025, 2, 1), day(2025, 2, 1), ShapePartialMonth},
		{"not starting on first", day(2025, 2, 2), day(2025, 2, 28), ShapeRange},
		{"spans months", day(2025, 1, 1), day(2025, 2, 28), ShapeRange},
		{"reversed full month", day(2025, 1, 31), day(2025, 1, 1), ShapeFullMonth},
		{"time of day ignored", day(2025, 1, 1).Add(15 * time.Hour), day(2025, 1, 31).Add(23 * time.Hour), ShapeFullMonth},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.start, tt.end))
		})
	}
}

func TestPriorPeriod(t *testing.T) {
	tests := []struct {
		name       string
		start, end time.Time
		wantStart  time.Time
		wantEnd    time.Time
		partial    bool
		cutoff     int
	}{
		{"full month", day(2025, 3, 1), day(2025, 3, 31), day(2025, 2, 1), day(2025, 2, 28), false, 0},
		{"full january crosses year", day(2025, 1, 1), day(2025, 1, 31), day(2024, 12, 1), day(2024, 12, 31), false, 0},
		{"partial same cutoff", day(2025, 2, 1), day(2025, 2, 19), day(2025, 1, 1), day(2025, 1, 19), true, 19},
		{"partial clamped", day(2025, 3, 1), day(2025, 3, 30), day(2025, 2, 1), day(2025, 2, 28), true, 28},
		{"partial clamped leap", day(2024, 3, 1), day(2024, 3, 30), day(2024, 2, 1), day(2024, 2, 29), true, 29},
		{"range slides back", day(2025, 1, 10), day(2025, 1, 20), day(2024, 12, 30), day(2025, 1, 9), false, 0},
		{"single day range", day(2025, 5, 7), day(2025, 5, 7), day(2025, 5, 6), day(2025, 5, 6), false, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := PriorPeriod(tt.start, tt.end)
			assertWindow(t, w, tt.wantStart, tt.wantEnd, tt.partial, tt.cutoff)
		})
	}
}

func TestPriorPeriod_RangeKeepsLength(t *testing.T) {
	start, end := day(2025, 2, 10), day(2025, 3, 15)
	cur := Window(start, end)
	prior := PriorPeriod(start, end)
	assert.Equal(t, cur.Days(), prior.Days())
	assert.True(t, prior.End.Equal(start.AddDate(0, 0, -1)))
}

func TestSamePeriodLastYear(t *testing.T) {
	tests := []struct {
		name       string
		start, end time.Time
		wantStart  time.Time
		wantEnd    time.Time
		partial    bool
		cutoff     int
	}{
		{"full month", day(2025, 2, 1), day(2025, 2, 28), day(2024, 2, 1), day(2024, 2, 29), false, 0},
		{"partial", day(2025, 2, 1), day(2025, 2, 19), day(2024, 2, 1), day(2024, 2, 19), true, 19},
		{"full leap february", day(2024, 2, 1), day(2024, 2, 29), day(2023, 2, 1), day(2023, 2, 28), false, 0},
		{"partial leap day cutoff", day(2024, 2, 1), day(2024, 2, 28), day(2023, 2, 1), day(2023, 2, 28), true, 28},
		{"range shifts a year", day(2025, 1, 10), day(2025, 2, 5), day(2024, 1, 10), day(2024, 2, 5), false, 0},
		{"range on leap day", day(2024, 2, 20), day(2024, 2, 29), day(2023, 2, 20), day(2023, 2, 28), false, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := SamePeriodLastYear(tt.start, tt.end)
			assertWindow(t, w, tt.wantStart, tt.wantEnd, tt.partial, tt.cutoff)
		})
	}
}

func TestPartialAlignmentSymmetry(t *testing.T) {
	for m := time.January; m <= time.December; m++ {
		for d := 1; d < 28; d++ {
			start, end := day(2025, m, 1), day(2025, m, d)
			mom := PriorPeriod(start, end)
			yoy := SamePeriodLastYear(start, end)
			require.True(t, mom.IsPartial)
			require.True(t, yoy.IsPartial)
			assert.Equal(t, d, mom.End.Day())
			assert.Equal(t, d, yoy.End.Day())
			assert.Equal(t, 1, mom.Start.Day())
		}
	}
}

func TestComparable(t *testing.T) {
	cur, mom, yoy := Comparable(day(2025, 2, 1), day(2025, 2, 19))
	assertWindow(t, cur, day(2025, 2, 1), day(2025, 2, 19), true, 19)
	assertWindow(t, mom, day(2025, 1, 1), day(2025, 1, 19), true, 19)
	assertWindow(t, yoy, day(2024, 2, 1), day(2024, 2, 19), true, 19)
	assert.Equal(t, "Jan 2025 (1-19)", mom.Label)
}

func TestMonthToDate(t *testing.T) {
	w := MonthToDate(time.Date(2025, 2, 19, 17, 30, 0, 0, time.UTC))
	assertWindow(t, w, day(2025, 2, 1), day(2025, 2, 19), true, 19)

	w = MonthToDate(day(2025, 2, 28))
	assertWindow(t, w, day(2025, 2, 1), day(2025, 2, 28), false, 0)
	assert.Equal(t, "Feb 2025", w.Label)
}

func TestWindowContainsAndDays(t *testing.T) {
	w := FullMonth(2025, time.February, nil)
	assert.Equal(t, 28, w.Days())
	assert.True(t, w.Contains(time.Date(2025, 2, 28, 23, 59, 0, 0, time.UTC)))
	assert.False(t, w.Contains(day(2025, 3, 1)))
	assert.True(t, w.Contains(day(2025, 2, 1)))
}

func TestFilter(t *testing.T) {
	records := []models.Record{
		{"data": "2025-02-01", "id": 1},
		{"data": "19/02/2025", "id": 2},
		{"data": 45718.0, "id": 3}, // 2025-03-02
		{"id": 4},
		{"data": "garbage", "id": 5},
	}

	got := Filter(records, nil, FullMonth(2025, time.February, nil))
	require.Len(t, got, 2)
	assert.Equal(t, 1, got[0]["id"])
	assert.Equal(t, 2, got[1]["id"])
	assert.Len(t, records, 5)

	assert.Empty(t, Filter(nil, nil, FullMonth(2025, time.February, nil)))
}

func TestKey(t *testing.T) {
	assert.Equal(t, "2025-02", Key(day(2025, 2, 19)))
}
