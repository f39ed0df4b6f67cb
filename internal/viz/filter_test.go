package viz

import (
	"fmt"
	"testing"

	"github.com/leapstack-labs/clinsight/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func barTrace(n int) *core.Trace {
	tr := &core.Trace{Type: "bar"}
	for i := 0; i < n; i++ {
		cat := fmt.Sprintf("c%02d", i)
		tr.X = append(tr.X, cat)
		tr.Y = append(tr.Y, float64(i))
		tr.Text = append(tr.Text, "t"+cat)
		tr.CustomData = append(tr.CustomData, float64(i*10))
	}
	colors := make([]any, n)
	for i := range colors {
		colors[i] = fmt.Sprintf("#%06x", i)
	}
	tr.Marker = &core.Marker{Color: colors}
	return tr
}

func TestCategoricalAxisDetection(t *testing.T) {
	assert.Equal(t, AxisX, CategoricalAxis(&core.Trace{X: []any{"a"}, Y: []any{1.0}}))
	assert.Equal(t, AxisY, CategoricalAxis(&core.Trace{X: []any{1.0}, Y: []any{"a"}}))
	assert.Equal(t, AxisLabels, CategoricalAxis(&core.Trace{Labels: []any{"a"}, Values: []any{1.0}}))
	// Both numeric: X wins (year-like categories).
	assert.Equal(t, AxisX, CategoricalAxis(&core.Trace{X: []any{2023.0}, Y: []any{5.0}}))
	assert.Equal(t, AxisNone, CategoricalAxis(&core.Trace{}))
}

func TestFilterCategoriesKeepsAlignment(t *testing.T) {
	tr := barTrace(15)
	keep := []string{"c01", "c03", "c07"}
	got := FilterCategories(tr, keep)

	require.Len(t, got.X, 3)
	assert.Len(t, got.Y, 3)
	assert.Len(t, got.Text, 3)
	assert.Len(t, got.CustomData, 3)
	colors, ok := got.Marker.ColorArray()
	require.True(t, ok)
	assert.Len(t, colors, 3)

	// Element-wise alignment: position of c03 carries its own y/text/etc.
	assert.Equal(t, "c03", got.X[1])
	assert.Equal(t, float64(3), got.Y[1])
	assert.Equal(t, "tc03", got.Text[1])
	assert.Equal(t, float64(30), got.CustomData[1])
}

func TestFilterCategoriesEmptySelection(t *testing.T) {
	tr := barTrace(5)
	got := FilterCategories(tr, nil)
	assert.Empty(t, got.X)
	assert.Empty(t, got.Y)
}

func TestFilterCategoriesScalarMarkerColorUntouched(t *testing.T) {
	tr := &core.Trace{
		X:      []any{"a", "b"},
		Y:      []any{1.0, 2.0},
		Marker: &core.Marker{Color: "#ff0000"},
	}
	got := FilterCategories(tr, []string{"a"})
	assert.Equal(t, "#ff0000", got.Marker.Color)
	assert.Len(t, got.X, 1)
}

func TestFilterCategoriesPie(t *testing.T) {
	tr := &core.Trace{
		Type:   "pie",
		Labels: []any{"a", "b", "c"},
		Values: []any{1.0, 2.0, 3.0},
	}
	got := FilterCategories(tr, []string{"b", "c"})
	assert.Equal(t, []any{"b", "c"}, got.Labels)
	assert.Equal(t, []any{2.0, 3.0}, got.Values)
}

func TestFilterRepeatedCategories(t *testing.T) {
	// Grouped traces repeat category labels; filtering keeps all
	// occurrences of the kept categories.
	tr := &core.Trace{
		X: []any{"a", "b", "a", "b"},
		Y: []any{1.0, 2.0, 3.0, 4.0},
	}
	got := FilterCategories(tr, []string{"a"})
	assert.Equal(t, []any{"a", "a"}, got.X)
	assert.Equal(t, []any{1.0, 3.0}, got.Y)
}

func TestDefaultSelectionFirstTen(t *testing.T) {
	tr := barTrace(15)
	require.True(t, NeedsPicker(tr))

	sel := DefaultSelection(tr)
	require.Len(t, sel, PickerThreshold)
	// First-seen order.
	assert.Equal(t, "c00", sel[0])
	assert.Equal(t, "c09", sel[9])
}

func TestNoPickerAtThreshold(t *testing.T) {
	assert.False(t, NeedsPicker(barTrace(10)))
	assert.True(t, NeedsPicker(barTrace(11)))
}

func TestFirstNPresets(t *testing.T) {
	tr := barTrace(40)
	assert.Len(t, FirstN(tr, 10), 10)
	assert.Len(t, FirstN(tr, 30), 30)
	assert.Len(t, FirstN(tr, 50), 40) // capped by available categories
	assert.Len(t, FirstN(tr, 0), 40)  // 0 means all
}

func TestCategoriesNumericLabels(t *testing.T) {
	tr := &core.Trace{X: []any{2023.0, 2024.0, 2023.0}, Y: []any{1.0, 2.0, 3.0}}
	assert.Equal(t, []string{"2023", "2024"}, Categories(tr))
}
