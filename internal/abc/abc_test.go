package abc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func classes(results []Classified) []string {
	out := make([]string, len(results))
	for i, r := range results {
		out[i] = r.Class
	}
	return out
}

func TestClassify_ReferenceScenario(t *testing.T) {
	items := []Item{{"p1", "", 50}, {"p2", "", 30}, {"p3", "", 10}, {"p4", "", 10}}

	got := Classify(items, DefaultThresholds)
	require.Len(t, got, 4)

	assert.Equal(t, []string{"A", "B", "C", "D"}, classes(got))
	wantCum := []float64{50, 80, 90, 100}
	for i, r := range got {
		assert.InDelta(t, wantCum[i], r.CumulativePercentage, 1e-9)
		assert.Equal(t, i+1, r.Rank)
	}
}

func TestClassify_SortsDescendingAndKeepsTies(t *testing.T) {
	items := []Item{
		{Key: "small", Value: 5},
		{Key: "tie-first", Value: 20},
		{Key: "big", Value: 55},
		{Key: "tie-second", Value: 20},
	}

	got := Classify(items, nil)
	keys := make([]string, len(got))
	for i, r := range got {
		keys[i] = r.Key
	}
	assert.Equal(t, []string{"big", "tie-first", "tie-second", "small"}, keys)
	// input is untouched
	assert.Equal(t, "small", items[0].Key)
}

func TestClassify_TotalCoverage(t *testing.T) {
	items := make([]Item, 0, 37)
	for i := 1; i <= 37; i++ {
		items = append(items, Item{Key: string(rune('a' + i%26)), Value: float64(i) * 1.1})
	}

	got := Classify(items, ItemThresholds)
	require.NotEmpty(t, got)
	assert.InDelta(t, 100, got[len(got)-1].CumulativePercentage, 1e-9)
	for _, r := range got {
		assert.Contains(t, []string{"A", "B", "C", "D"}, r.Class)
	}
}

func TestClassify_Degenerate(t *testing.T) {
	assert.Empty(t, Classify(nil, nil))
	assert.Empty(t, Classify([]Item{{Key: "x", Value: 0}, {Key: "y", Value: 0}}, nil))
	assert.NotNil(t, Classify(nil, nil))
}

func TestClassify_CustomThresholds(t *testing.T) {
	thresholds := []Threshold{{"X", 100}, {"TOP", 80}}
	got := Classify([]Item{{Key: "a", Value: 85}, {Key: "b", Value: 15}}, thresholds)
	assert.Equal(t, []string{"TOP", "X"}, classes(got))
}

func TestClassify_ItemCurve(t *testing.T) {
	items := []Item{{Key: "a", Value: 60}, {Key: "b", Value: 15}, {Key: "c", Value: 10}, {Key: "d", Value: 10}, {Key: "e", Value: 5}}
	got := Classify(items, ItemThresholds)
	assert.Equal(t, []string{"A", "A", "B", "C", "D"}, classes(got))
}

func TestCritical(t *testing.T) {
	items := []Item{{Key: "a", Value: 900}, {Key: "b", Value: 60}, {Key: "c", Value: 30}, {Key: "d", Value: 6}, {Key: "e", Value: 4}}
	got := Classify(items, DefaultThresholds)

	crit := Critical(got, LowestClassBelow(DefaultThresholds, 1))
	require.Len(t, crit, 2)
	assert.Equal(t, "d", crit[0].Key)
	assert.Equal(t, "e", crit[1].Key)

	assert.Empty(t, Critical(got, nil))
}

func TestSummarize(t *testing.T) {
	got := Classify([]Item{{Key: "a", Value: 50}, {Key: "b", Value: 30}, {Key: "c", Value: 10}, {Key: "d", Value: 10}}, nil)
	sum := Summarize(got, nil)

	require.Len(t, sum, 4)
	assert.Equal(t, ClassSummary{Class: "A", Count: 1, Value: 50, Share: 50}, sum[0])
	assert.Equal(t, "D", sum[3].Class)
	assert.InDelta(t, 10, sum[3].Share, 1e-9)

	empty := Summarize(nil, nil)
	require.Len(t, empty, 4)
	assert.Zero(t, empty[0].Count)
}
