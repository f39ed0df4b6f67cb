package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"regexp"
	"strconv"
	"strings"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	"github.com/charmbracelet/lipgloss"
	"github.com/jedib0t/go-pretty/v6/table"
	"golang.org/x/term"

	"github.com/leapstack-labs/clinsight/internal/export"
	"github.com/leapstack-labs/clinsight/internal/sqlfmt"
	"github.com/leapstack-labs/clinsight/pkg/core"
)

var (
	headingStyle = lipgloss.NewStyle().Bold(true)
	dimStyle     = lipgloss.NewStyle().Faint(true)
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
)

// resolveFormat maps "auto" to table on a TTY and markdown otherwise.
func resolveFormat(format string, w io.Writer) string {
	if format != "" && format != "auto" {
		return format
	}
	if f, ok := w.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		return "table"
	}
	return "md"
}

func isTTY(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// renderTab writes one tab's full result: SQL, preview, statistics,
// insight, and follow-up suggestions.
func renderTab(w io.Writer, tab core.Tab, format string) error {
	if tab.Status == core.TabError {
		fmt.Fprintln(w, errorStyle.Render(tab.Err))
		return nil
	}
	if tab.Clarification != "" {
		fmt.Fprintln(w, tab.Clarification)
		for _, qr := range tab.QuickReplies {
			fmt.Fprintf(w, "  - %s\n", qr)
		}
		return nil
	}

	if tab.SQL != "" {
		fmt.Fprintln(w, headingStyle.Render("SQL"))
		fmt.Fprintln(w, renderSQL(w, tab.SQL))
		fmt.Fprintln(w)
	}

	if pv := tab.Preview(); pv != nil {
		if err := renderPreview(w, pv, format); err != nil {
			return err
		}
		fmt.Fprintln(w)
	}

	if len(tab.Stats) > 0 && format != "json" && format != "csv" {
		fmt.Fprintln(w, headingStyle.Render("Statistics"))
		renderStats(w, tab.Stats)
		fmt.Fprintln(w)
	}

	if tab.Insight != "" {
		fmt.Fprintln(w, headingStyle.Render("Insight"))
		fmt.Fprintln(w, normalizeInsight(tab.Insight))
		fmt.Fprintln(w)
	}

	if tab.Viz != nil {
		renderVizNote(w, tab.Viz)
	}

	for i, q := range tab.SuggestedQuestions {
		if i == 0 {
			fmt.Fprintln(w, headingStyle.Render("Suggested questions"))
		}
		fmt.Fprintf(w, "  %d. %s\n", i+1, q)
	}
	return nil
}

// renderSQL formats the SQL and colors it when writing to a TTY.
func renderSQL(w io.Writer, sql string) string {
	formatted := sqlfmt.Format(sql)
	if isTTY(w) {
		return sqlfmt.HighlightANSI(formatted)
	}
	return formatted
}

func renderPreview(w io.Writer, pv *core.Preview, format string) error {
	switch format {
	case "json":
		return renderPreviewJSON(w, pv)
	case "csv":
		return export.WriteCSV(w, pv)
	case "md":
		renderPreviewMarkdown(w, pv)
	default:
		renderPreviewTable(w, pv)
	}
	return nil
}

func renderPreviewTable(w io.Writer, pv *core.Preview) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)

	header := make(table.Row, len(pv.Columns))
	for i, col := range pv.Columns {
		header[i] = col
	}
	t.AppendHeader(header)

	for _, row := range pv.Rows {
		out := make(table.Row, len(pv.Columns))
		for i := range pv.Columns {
			var cell core.Cell
			if i < len(row) {
				cell = row[i]
			}
			out[i] = formatCell(cell)
		}
		t.AppendRow(out)
	}
	t.Render()
	fmt.Fprintln(w, dimStyle.Render(rowCountNote(pv)))
}

func renderPreviewMarkdown(w io.Writer, pv *core.Preview) {
	fmt.Fprintf(w, "| %s |\n", strings.Join(pv.Columns, " | "))
	sep := make([]string, len(pv.Columns))
	for i := range sep {
		sep[i] = "---"
	}
	fmt.Fprintf(w, "| %s |\n", strings.Join(sep, " | "))
	for _, row := range pv.Rows {
		cells := make([]string, len(pv.Columns))
		for i := range pv.Columns {
			var cell core.Cell
			if i < len(row) {
				cell = row[i]
			}
			cells[i] = strings.ReplaceAll(formatCell(cell), "|", "\\|")
		}
		fmt.Fprintf(w, "| %s |\n", strings.Join(cells, " | "))
	}
	fmt.Fprintln(w, rowCountNote(pv))
}

func renderPreviewJSON(w io.Writer, pv *core.Preview) error {
	records := make([]map[string]any, 0, len(pv.Rows))
	for _, row := range pv.Rows {
		rec := make(map[string]any, len(pv.Columns))
		for i, col := range pv.Columns {
			if i < len(row) {
				rec[col] = row[i]
			} else {
				rec[col] = nil
			}
		}
		records = append(records, rec)
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(records)
}

// rowCountNote reports fetched vs total rows, flagging a capped
// preview.
func rowCountNote(pv *core.Preview) string {
	total := pv.EffectiveTotal()
	if total > len(pv.Rows) {
		return fmt.Sprintf("(%d of %d rows, capped at %d)", len(pv.Rows), total, pv.RowCap)
	}
	return fmt.Sprintf("(%d rows)", len(pv.Rows))
}

func renderStats(w io.Writer, rows []core.StatsRow) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"column", "count", "missing", "min", "q1", "median", "q3", "max", "avg"})
	for _, s := range rows {
		t.AppendRow(table.Row{
			s.Column, s.Count, s.MissingCount,
			formatStat(s.Min), formatStat(s.Q1), formatStat(s.Median),
			formatStat(s.Q3), formatStat(s.Max), formatStat(s.Avg),
		})
	}
	t.Render()
}

func formatStat(v *float64) string {
	if v == nil {
		return "-"
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}

func formatCell(c core.Cell) string {
	switch v := c.(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return fmt.Sprintf("%v", v)
	}
}

func renderVizNote(w io.Writer, vr *core.VizResult) {
	if vr.Payload == nil || len(vr.Payload.Analyses) == 0 {
		return
	}
	card := vr.Payload.Analyses[0]
	note := fmt.Sprintf("Chart: %s", card.Spec.ChartType)
	if card.Summary != "" {
		note += " - " + card.Summary
	}
	if vr.LocalFallback {
		note += " (local fallback)"
	}
	fmt.Fprintln(w, dimStyle.Render(note))
}

var htmlTagRe = regexp.MustCompile(`<[a-zA-Z][^>]*>`)

// normalizeInsight converts HTML-bearing narrative text to markdown so
// it reads cleanly in a terminal. Plain text passes through untouched.
func normalizeInsight(s string) string {
	s = strings.TrimSpace(s)
	if !htmlTagRe.MatchString(s) {
		return s
	}
	md, err := htmltomarkdown.ConvertString(s)
	if err != nil {
		return s
	}
	return strings.TrimSpace(md)
}
