package viz

import "github.com/leapstack-labs/clinsight/pkg/core"

// PickerThreshold is the distinct-category count above which the UI
// offers a category picker instead of rendering everything.
const PickerThreshold = 10

// PresetSizes are the "first N" picker presets, in display order. The
// final preset is "all".
var PresetSizes = []int{10, 20, 30, 50}

// Axis identifies which side of a trace carries categories.
type Axis string

const (
	AxisX      Axis = "x"
	AxisY      Axis = "y"
	AxisLabels Axis = "labels"
	AxisNone   Axis = ""
)

// CategoricalAxis locates the trace's category-bearing array: pie
// labels, else whichever of X/Y contains a non-numeric value, else X
// when both are numeric (bar charts of year-like numbers).
func CategoricalAxis(tr *core.Trace) Axis {
	if tr == nil {
		return AxisNone
	}
	if len(tr.Labels) > 0 {
		return AxisLabels
	}
	if hasNonNumeric(tr.X) {
		return AxisX
	}
	if hasNonNumeric(tr.Y) {
		return AxisY
	}
	if len(tr.X) > 0 {
		return AxisX
	}
	return AxisNone
}

func hasNonNumeric(vals []any) bool {
	for _, v := range vals {
		if v == nil {
			continue
		}
		if _, ok := core.NumericCell(v); !ok {
			return true
		}
	}
	return false
}

func axisValues(tr *core.Trace, axis Axis) []any {
	switch axis {
	case AxisX:
		return tr.X
	case AxisY:
		return tr.Y
	case AxisLabels:
		return tr.Labels
	default:
		return nil
	}
}

// Categories returns the distinct category labels of the trace in
// first-seen order.
func Categories(tr *core.Trace) []string {
	vals := axisValues(tr, CategoricalAxis(tr))
	seen := make(map[string]struct{}, len(vals))
	var out []string
	for _, v := range vals {
		label := categoryLabel(v)
		if _, dup := seen[label]; dup {
			continue
		}
		seen[label] = struct{}{}
		out = append(out, label)
	}
	return out
}

// NeedsPicker reports whether the trace has more distinct categories
// than the picker threshold.
func NeedsPicker(tr *core.Trace) bool {
	return len(Categories(tr)) > PickerThreshold
}

// DefaultSelection is the picker's initial selection: the first
// PickerThreshold categories in first-seen order.
func DefaultSelection(tr *core.Trace) []string {
	cats := Categories(tr)
	if len(cats) > PickerThreshold {
		cats = cats[:PickerThreshold]
	}
	return cats
}

// FirstN returns the first n categories; n <= 0 means all.
func FirstN(tr *core.Trace, n int) []string {
	cats := Categories(tr)
	if n > 0 && len(cats) > n {
		cats = cats[:n]
	}
	return cats
}

// FilterCategories returns a copy of the trace keeping only rows whose
// category is in keep. Every parallel array (both axes, labels/values,
// text, customdata, and an array-valued marker color) is rewritten
// with the same selected index set so element-wise alignment is
// preserved. An empty selection degenerates to empty arrays rather
// than failing.
func FilterCategories(tr *core.Trace, keep []string) *core.Trace {
	if tr == nil {
		return nil
	}
	axis := CategoricalAxis(tr)
	vals := axisValues(tr, axis)
	if axis == AxisNone {
		cp := *tr
		return &cp
	}

	keepSet := make(map[string]struct{}, len(keep))
	for _, k := range keep {
		keepSet[k] = struct{}{}
	}
	var idx []int
	for i, v := range vals {
		if _, ok := keepSet[categoryLabel(v)]; ok {
			idx = append(idx, i)
		}
	}

	out := *tr
	out.X = pick(tr.X, idx)
	out.Y = pick(tr.Y, idx)
	out.Labels = pick(tr.Labels, idx)
	out.Values = pick(tr.Values, idx)
	out.Text = pick(tr.Text, idx)
	out.CustomData = pick(tr.CustomData, idx)
	if colors, ok := tr.Marker.ColorArray(); ok {
		out.Marker = &core.Marker{Color: pick(colors, idx)}
	}
	return &out
}

// pick projects arr through the index set. Nil stays nil; a non-nil
// array always comes back with len(idx) elements (missing positions
// become nil) so parallel arrays stay aligned.
func pick(arr []any, idx []int) []any {
	if arr == nil {
		return nil
	}
	out := make([]any, 0, len(idx))
	for _, i := range idx {
		if i < len(arr) {
			out = append(out, arr[i])
		} else {
			out = append(out, nil)
		}
	}
	return out
}
