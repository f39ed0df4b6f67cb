package stats

import (
	"testing"

	"github.com/leapstack-labs/clinsight/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQuantile(t *testing.T) {
	tests := []struct {
		name   string
		sorted []float64
		q      float64
		want   float64
	}{
		{"single value", []float64{5}, 0.5, 5},
		{"median of even count", []float64{1, 2, 3, 4}, 0.5, 2.5},
		{"median of odd count", []float64{1, 2, 3}, 0.5, 2},
		{"q1 interpolated", []float64{1, 2, 3, 4}, 0.25, 1.75},
		{"q3 interpolated", []float64{1, 2, 3, 4}, 0.75, 3.25},
		{"zero quantile", []float64{1, 2, 3}, 0, 1},
		{"full quantile", []float64{1, 2, 3}, 1, 3},
		{"integral position", []float64{10, 20, 30, 40, 50}, 0.25, 20},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, Quantile(tt.sorted, tt.q), 1e-9)
		})
	}
}

func TestSummarizeNumericColumn(t *testing.T) {
	rows := [][]core.Cell{
		{float64(4)}, {float64(1)}, {float64(3)}, {float64(2)},
	}
	got := Summarize([]string{"v"}, rows)
	require.Len(t, got, 1)
	r := got[0]
	assert.Equal(t, 4, r.Count)
	assert.Equal(t, 4, r.NumericCount)
	require.NotNil(t, r.Min)
	assert.Equal(t, 1.0, *r.Min)
	assert.Equal(t, 4.0, *r.Max)
	assert.Equal(t, 2.5, *r.Median)
	assert.Equal(t, 2.5, *r.Avg)
	assert.True(t, r.BoxPlotEligible)

	// min <= q1 <= median <= q3 <= max for any numeric column with >= 4 values.
	assert.LessOrEqual(t, *r.Min, *r.Q1)
	assert.LessOrEqual(t, *r.Q1, *r.Median)
	assert.LessOrEqual(t, *r.Median, *r.Q3)
	assert.LessOrEqual(t, *r.Q3, *r.Max)
}

func TestSummarizeMissingAndNulls(t *testing.T) {
	rows := [][]core.Cell{
		{nil}, {""}, {"  "}, {"x"}, {float64(2)},
	}
	r := Summarize([]string{"c"}, rows)[0]
	assert.Equal(t, 5, r.Count)
	assert.Equal(t, 1, r.NullCount)
	assert.Equal(t, 3, r.MissingCount)
	assert.GreaterOrEqual(t, r.MissingCount, r.NullCount)
	assert.Equal(t, 1, r.NumericCount)
}

func TestSummarizeAllNullColumn(t *testing.T) {
	rows := [][]core.Cell{{nil}, {nil}}
	r := Summarize([]string{"empty"}, rows)[0]
	assert.Equal(t, 0, r.NumericCount)
	assert.Nil(t, r.Min)
	assert.Nil(t, r.Avg)
	assert.False(t, r.BoxPlotEligible)
}

func TestSummarizeNumericStrings(t *testing.T) {
	rows := [][]core.Cell{{"1.5"}, {"2.5"}, {"oops"}}
	r := Summarize([]string{"mixed"}, rows)[0]
	assert.Equal(t, 2, r.NumericCount)
	require.NotNil(t, r.Avg)
	assert.Equal(t, 2.0, *r.Avg)
}

func TestSummarizeRounding(t *testing.T) {
	rows := [][]core.Cell{{1.0 / 3.0}, {1.0 / 3.0}, {1.0 / 3.0}}
	r := Summarize([]string{"third"}, rows)[0]
	require.NotNil(t, r.Avg)
	assert.Equal(t, 0.3333, *r.Avg)
}

func TestRound4(t *testing.T) {
	assert.Equal(t, 0.1235, Round4(0.12349))
	assert.Equal(t, -0.1235, Round4(-0.12349))
	assert.Equal(t, 2.0, Round4(2))
}
