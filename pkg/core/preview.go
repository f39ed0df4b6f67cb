package core

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Cell is a single value in a preview row. A cell is nil, a string, or a
// float64. Numbers are normalized to float64 at the decode boundary so
// downstream code never sees json.Number or integer types.
type Cell = any

// Preview is the capped tabular result returned for display.
type Preview struct {
	Columns []string `json:"columns"`
	Rows    [][]Cell `json:"rows"`
	// RowCount is the number of rows actually present in Rows.
	RowCount int `json:"row_count"`
	// RowCap is the server-side preview cap.
	RowCap int `json:"row_cap"`
	// TotalCount, when set, is the authoritative row count from a run
	// that executed further than the preview cap.
	TotalCount *int `json:"total_count,omitempty"`
}

// Validate checks the structural invariants: unique, ordered, non-empty
// column names and every row exactly as wide as the column list.
func (p *Preview) Validate() error {
	seen := make(map[string]struct{}, len(p.Columns))
	for i, col := range p.Columns {
		if strings.TrimSpace(col) == "" {
			return &DecodeError{Field: fmt.Sprintf("columns[%d]", i), Reason: "blank column name"}
		}
		if _, dup := seen[col]; dup {
			return &DecodeError{Field: fmt.Sprintf("columns[%d]", i), Reason: "duplicate column " + strconv.Quote(col)}
		}
		seen[col] = struct{}{}
	}
	for i, row := range p.Rows {
		if len(row) != len(p.Columns) {
			return &DecodeError{
				Field:  fmt.Sprintf("rows[%d]", i),
				Reason: fmt.Sprintf("width %d, want %d", len(row), len(p.Columns)),
			}
		}
	}
	return nil
}

// Empty reports whether the preview has no columns or no rows.
func (p *Preview) Empty() bool {
	return p == nil || len(p.Columns) == 0 || len(p.Rows) == 0
}

// EffectiveTotal returns the authoritative row count: TotalCount when the
// server reported one, otherwise the number of preview rows.
func (p *Preview) EffectiveTotal() int {
	if p.TotalCount != nil {
		return *p.TotalCount
	}
	return len(p.Rows)
}

// Clone returns a deep copy. Persisted snapshots must never share row
// slices with the live tab record.
func (p *Preview) Clone() *Preview {
	if p == nil {
		return nil
	}
	cp := &Preview{
		Columns:  append([]string(nil), p.Columns...),
		RowCount: p.RowCount,
		RowCap:   p.RowCap,
	}
	if p.TotalCount != nil {
		v := *p.TotalCount
		cp.TotalCount = &v
	}
	cp.Rows = make([][]Cell, len(p.Rows))
	for i, row := range p.Rows {
		cp.Rows[i] = append([]Cell(nil), row...)
	}
	return cp
}

// Truncated returns a deep copy keeping at most max rows.
func (p *Preview) Truncated(max int) *Preview {
	cp := p.Clone()
	if cp == nil {
		return nil
	}
	if max >= 0 && len(cp.Rows) > max {
		cp.Rows = cp.Rows[:max]
		cp.RowCount = max
	}
	return cp
}

// UnmarshalJSON decodes a preview and normalizes every cell.
func (p *Preview) UnmarshalJSON(data []byte) error {
	type raw Preview
	var r raw
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&r); err != nil {
		return &DecodeError{Field: "result", Reason: err.Error()}
	}
	*p = Preview(r)
	for _, row := range p.Rows {
		for i, cell := range row {
			row[i] = NormalizeCell(cell)
		}
	}
	if p.RowCount == 0 {
		p.RowCount = len(p.Rows)
	}
	return p.Validate()
}

// NormalizeCell coerces a decoded JSON value into the Cell domain:
// nil, string, or float64. Booleans become "true"/"false"; anything
// else is stringified.
func NormalizeCell(v any) Cell {
	switch t := v.(type) {
	case nil:
		return nil
	case string:
		return t
	case float64:
		return t
	case json.Number:
		if f, err := t.Float64(); err == nil {
			return f
		}
		return t.String()
	case bool:
		if t {
			return "true"
		}
		return "false"
	case int:
		return float64(t)
	case int64:
		return float64(t)
	default:
		return fmt.Sprintf("%v", t)
	}
}

// NumericCell attempts numeric coercion of a cell. Blank strings and nil
// are not numeric; numeric-looking strings are.
func NumericCell(v Cell) (float64, bool) {
	switch t := v.(type) {
	case nil:
		return 0, false
	case float64:
		if math.IsNaN(t) || math.IsInf(t, 0) {
			return 0, false
		}
		return t, true
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return 0, false
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}
