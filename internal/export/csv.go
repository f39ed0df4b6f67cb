// Package export writes preview data as CSV suitable for common
// spreadsheet tools: UTF-8 with BOM so non-ASCII text renders
// correctly, CRLF line endings, and minimal quoting.
package export

import (
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/leapstack-labs/clinsight/pkg/core"
)

// utf8BOM makes Excel and friends pick up UTF-8 instead of the locale
// codepage.
const utf8BOM = "\xEF\xBB\xBF"

// WriteCSV writes the preview as CSV. Fields containing a quote, comma,
// or line break are wrapped in double quotes with embedded quotes
// doubled; all other fields are written bare.
func WriteCSV(w io.Writer, p *core.Preview) error {
	if p == nil {
		return fmt.Errorf("export: nil preview")
	}
	if _, err := io.WriteString(w, utf8BOM); err != nil {
		return err
	}
	if err := writeRecord(w, p.Columns); err != nil {
		return err
	}
	fields := make([]string, len(p.Columns))
	for _, row := range p.Rows {
		for i := range fields {
			if i < len(row) {
				fields[i] = formatCell(row[i])
			} else {
				fields[i] = ""
			}
		}
		if err := writeRecord(w, fields); err != nil {
			return err
		}
	}
	return nil
}

func writeRecord(w io.Writer, fields []string) error {
	escaped := make([]string, len(fields))
	for i, f := range fields {
		escaped[i] = escapeField(f)
	}
	_, err := io.WriteString(w, strings.Join(escaped, ",")+"\r\n")
	return err
}

func escapeField(s string) string {
	if strings.ContainsAny(s, ",\"\n\r") {
		return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
	}
	return s
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

var unsafeFilenameRe = regexp.MustCompile(`[^\p{L}\p{N}_-]+`)

// Filename derives an export file name from the question text, falling
// back to a timestamp when nothing usable remains.
func Filename(question string) string {
	base := unsafeFilenameRe.ReplaceAllString(strings.TrimSpace(question), "_")
	base = strings.Trim(base, "_")
	if base == "" {
		base = "result_" + time.Now().Format("20060102_150405")
	}
	const maxBase = 60
	if r := []rune(base); len(r) > maxBase {
		base = string(r[:maxBase])
	}
	return base + ".csv"
}
