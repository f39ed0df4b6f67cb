package core

// StatsRow is the per-column summary derived from a preview. The six
// summary numbers are nil unless the column has at least one numeric
// value; values are rounded to 4 decimal digits for display.
type StatsRow struct {
	Column       string   `json:"column"`
	Count        int      `json:"count"`
	NumericCount int      `json:"numeric_count"`
	NullCount    int      `json:"null_count"`
	// MissingCount counts nulls plus blank strings, so it is always
	// >= NullCount.
	MissingCount int      `json:"missing_count"`
	Min          *float64 `json:"min"`
	Q1           *float64 `json:"q1"`
	Median       *float64 `json:"median"`
	Q3           *float64 `json:"q3"`
	Max          *float64 `json:"max"`
	Avg          *float64 `json:"avg"`
	// BoxPlotEligible is true when every summary number is present and
	// finite.
	BoxPlotEligible bool `json:"box_plot_eligible"`
}
