package viz

import (
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/leapstack-labs/clinsight/internal/stats"
	"github.com/leapstack-labs/clinsight/pkg/core"
)

// fallbackCategoryCap bounds how many categories the local fallback
// chart carries.
const fallbackCategoryCap = 50

var titleCaser = cases.Title(language.Und)

// SynthesizeFallback builds a bar chart directly from the preview when
// no server recommendation is available: the first non-numeric column
// becomes the category axis, the first numeric column (excluding the
// axis) the value axis, grouped by category and aggregated by mean.
// Returns nil when the preview has no usable axis pair.
func SynthesizeFallback(p *core.Preview) *core.AnalysisCard {
	if p.Empty() {
		return nil
	}

	catIdx := firstColumn(p, false)
	if catIdx < 0 {
		return nil
	}
	valIdx := firstNumericExcluding(p, catIdx)
	if valIdx < 0 {
		return nil
	}

	// Group by category in first-seen order, mean aggregation.
	order := make([]string, 0, fallbackCategoryCap)
	sums := map[string]float64{}
	counts := map[string]int{}
	for _, row := range p.Rows {
		if catIdx >= len(row) || valIdx >= len(row) {
			continue
		}
		cat := categoryLabel(row[catIdx])
		v, ok := core.NumericCell(row[valIdx])
		if !ok {
			continue
		}
		if _, seen := counts[cat]; !seen {
			if len(order) >= fallbackCategoryCap {
				continue
			}
			order = append(order, cat)
		}
		sums[cat] += v
		counts[cat]++
	}
	if len(order) == 0 {
		return nil
	}

	x := make([]any, len(order))
	y := make([]any, len(order))
	for i, cat := range order {
		x[i] = cat
		y[i] = stats.Round4(sums[cat] / float64(counts[cat]))
	}

	catCol := p.Columns[catIdx]
	valCol := p.Columns[valIdx]
	return &core.AnalysisCard{
		Spec: core.ChartSpec{
			ChartType: core.ChartBar,
			X:         catCol,
			Y:         valCol,
			Agg:       "mean",
		},
		Figure: &core.Figure{
			Data: []core.Trace{{Type: core.ChartBar, Name: valCol, X: x, Y: y}},
			Layout: core.Layout{
				Title:      titleCaser.String(humanize(valCol)) + " by " + humanize(catCol),
				XAxisTitle: humanize(catCol),
				YAxisTitle: humanize(valCol),
			},
		},
		Reason: "로컬에서 생성된 기본 차트입니다.",
	}
}

// firstColumn returns the first column whose numeric-ness matches
// wantNumeric, or -1. A column counts as numeric when every non-missing
// cell coerces to a number and at least one does.
func firstColumn(p *core.Preview, wantNumeric bool) int {
	for ci := range p.Columns {
		if columnIsNumeric(p, ci) == wantNumeric {
			return ci
		}
	}
	return -1
}

func firstNumericExcluding(p *core.Preview, exclude int) int {
	for ci := range p.Columns {
		if ci == exclude {
			continue
		}
		if columnIsNumeric(p, ci) {
			return ci
		}
	}
	return -1
}

func columnIsNumeric(p *core.Preview, ci int) bool {
	numeric := 0
	for _, row := range p.Rows {
		if ci >= len(row) {
			continue
		}
		cell := row[ci]
		if cell == nil {
			continue
		}
		if s, ok := cell.(string); ok && strings.TrimSpace(s) == "" {
			continue
		}
		if _, ok := core.NumericCell(cell); !ok {
			return false
		}
		numeric++
	}
	return numeric > 0
}

func categoryLabel(c core.Cell) string {
	switch v := c.(type) {
	case nil:
		return "(없음)"
	case string:
		return v
	case float64:
		// Shortest representation keeps year-like categories clean:
		// 2023 stays "2023", not "2023.000000".
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return fmt.Sprintf("%v", v)
	}
}

func humanize(col string) string {
	return strings.ReplaceAll(strings.TrimSpace(col), "_", " ")
}
