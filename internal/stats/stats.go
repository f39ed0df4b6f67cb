// Package stats derives per-column statistical summaries from preview
// data: counts, missing-value accounting, and quantile five-number
// summaries. All functions are pure and deterministic.
package stats

import (
	"math"
	"sort"
	"strings"

	"github.com/leapstack-labs/clinsight/pkg/core"
)

// Summarize computes one StatsRow per column. Cells are classified as
// null (nil), missing (nil or blank string), or candidates for numeric
// coercion. Summary numbers are nil for columns without numeric values.
func Summarize(columns []string, rows [][]core.Cell) []core.StatsRow {
	out := make([]core.StatsRow, len(columns))
	for ci, col := range columns {
		row := core.StatsRow{Column: col}
		var nums []float64
		for _, r := range rows {
			if ci >= len(r) {
				continue
			}
			row.Count++
			cell := r[ci]
			if cell == nil {
				row.NullCount++
				row.MissingCount++
				continue
			}
			if s, ok := cell.(string); ok && strings.TrimSpace(s) == "" {
				row.MissingCount++
				continue
			}
			if v, ok := core.NumericCell(cell); ok {
				nums = append(nums, v)
			}
		}
		row.NumericCount = len(nums)
		if len(nums) > 0 {
			sort.Float64s(nums)
			sum := 0.0
			for _, v := range nums {
				sum += v
			}
			row.Min = round4p(nums[0])
			row.Q1 = round4p(Quantile(nums, 0.25))
			row.Median = round4p(Quantile(nums, 0.5))
			row.Q3 = round4p(Quantile(nums, 0.75))
			row.Max = round4p(nums[len(nums)-1])
			row.Avg = round4p(sum / float64(len(nums)))
		}
		row.BoxPlotEligible = boxPlotEligible(&row)
		out[ci] = row
	}
	return out
}

// Quantile computes quantile q over an already-sorted slice using linear
// interpolation: pos = (n-1)*q, interpolating the fractional remainder
// between neighbors. Degenerates cleanly at the boundaries.
func Quantile(sorted []float64, q float64) float64 {
	n := len(sorted)
	if n == 0 {
		return math.NaN()
	}
	if n == 1 {
		return sorted[0]
	}
	if q <= 0 {
		return sorted[0]
	}
	if q >= 1 {
		return sorted[n-1]
	}
	pos := float64(n-1) * q
	lo := int(math.Floor(pos))
	frac := pos - float64(lo)
	if frac == 0 || lo+1 >= n {
		return sorted[lo]
	}
	return sorted[lo] + frac*(sorted[lo+1]-sorted[lo])
}

// boxPlotEligible requires at least one numeric value and all six
// summary numbers present and finite. Columns that are entirely null or
// blank never qualify.
func boxPlotEligible(r *core.StatsRow) bool {
	if r.NumericCount == 0 {
		return false
	}
	for _, v := range []*float64{r.Min, r.Q1, r.Median, r.Q3, r.Max, r.Avg} {
		if v == nil || math.IsNaN(*v) || math.IsInf(*v, 0) {
			return false
		}
	}
	return true
}

// Round4 rounds to 4 decimal digits, the display precision used across
// the UI to suppress floating-point noise.
func Round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}

func round4p(v float64) *float64 {
	r := Round4(v)
	return &r
}
