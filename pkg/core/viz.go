package core

import "encoding/json"

// ChartType names the chart families the resolver understands.
const (
	ChartBar  = "bar"
	ChartLine = "line"
	ChartPie  = "pie"
)

// ChartSpec describes how an analysis maps columns onto a chart.
type ChartSpec struct {
	ChartType string `json:"chart_type"`
	X         string `json:"x,omitempty"`
	Y         string `json:"y,omitempty"`
	Group     string `json:"group,omitempty"`
	Agg       string `json:"agg,omitempty"`
}

// Marker holds per-trace styling. Color is either a single value or an
// array parallel to the trace's category axis.
type Marker struct {
	Color any `json:"color,omitempty"`
}

// ColorArray returns Marker.Color as a slice when it is array-valued.
func (m *Marker) ColorArray() ([]any, bool) {
	if m == nil {
		return nil, false
	}
	arr, ok := m.Color.([]any)
	return arr, ok
}

// Trace is one data series of a figure. X, Y, Text, and CustomData are
// parallel arrays; filtering must rewrite all of them with one index set.
type Trace struct {
	Type       string  `json:"type"`
	Name       string  `json:"name,omitempty"`
	X          []any   `json:"x,omitempty"`
	Y          []any   `json:"y,omitempty"`
	Labels     []any   `json:"labels,omitempty"`
	Values     []any   `json:"values,omitempty"`
	Text       []any   `json:"text,omitempty"`
	CustomData []any   `json:"customdata,omitempty"`
	Marker     *Marker `json:"marker,omitempty"`
}

// Layout carries the subset of figure layout the client touches.
type Layout struct {
	Title      string          `json:"title,omitempty"`
	XAxisTitle string          `json:"xaxis_title,omitempty"`
	YAxisTitle string          `json:"yaxis_title,omitempty"`
	Extra      json.RawMessage `json:"extra,omitempty"`
}

// Figure is chart data ready for rendering: traces plus layout.
type Figure struct {
	Data   []Trace `json:"data"`
	Layout Layout  `json:"layout"`
}

// AnalysisCard is one server-suggested chart, ordered by preference.
type AnalysisCard struct {
	Spec    ChartSpec `json:"chart_spec"`
	Figure  *Figure   `json:"figure_json,omitempty"`
	Reason  string    `json:"reason,omitempty"`
	Summary string    `json:"summary,omitempty"`
}

// VisualizationPayload is the visualize endpoint's response.
type VisualizationPayload struct {
	SQL      string         `json:"sql"`
	Analyses []AnalysisCard `json:"analyses"`
	Insight  string         `json:"insight"`
}
