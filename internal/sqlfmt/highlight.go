package sqlfmt

import (
	"html"
	"regexp"
	"strings"
)

// keywordRe matches SQL keywords on word boundaries.
var keywordRe = regexp.MustCompile(`(?i)\b(SELECT|FROM|WHERE|GROUP|ORDER|BY|HAVING|JOIN|LEFT|RIGHT|INNER|OUTER|FULL|CROSS|ON|AS|AND|OR|NOT|IN|IS|NULL|LIKE|BETWEEN|CASE|WHEN|THEN|ELSE|END|UNION|ALL|DISTINCT|WITH|LIMIT|OFFSET|FETCH|FIRST|ROWS|ONLY|INSERT|UPDATE|DELETE|VALUES|SET|EXISTS|ASC|DESC)\b`)

// funcRe matches an identifier immediately followed by an opening paren.
var funcRe = regexp.MustCompile(`\b([A-Za-z_][A-Za-z0-9_]*)(\()`)

// numberRe matches integer and decimal literals.
var numberRe = regexp.MustCompile(`\b\d+(\.\d+)?\b`)

// Highlight renders SQL as HTML with span classes for keywords,
// function calls, numbers, strings, and comments. Comment and literal
// spans are stashed behind placeholders before the keyword pass runs,
// so a keyword inside a string is never mis-highlighted; the stashed
// spans are restored verbatim (HTML-escaped) afterwards.
func Highlight(sql string) string {
	code, stashed := stash(sql)

	escaped := html.EscapeString(code)
	// EscapeString leaves the NUL placeholder alone, so positions of
	// stashed spans survive the escape.
	highlighted := funcRe.ReplaceAllString(escaped, `<span class="sql-fn">$1</span>$2`)
	highlighted = keywordReplace(highlighted)
	highlighted = numberRe.ReplaceAllString(highlighted, `<span class="sql-num">$0</span>`)

	return unstash(highlighted, stashed, func(s segment) string {
		class := "sql-str"
		if s.kind == segComment {
			class = "sql-comment"
		}
		return `<span class="` + class + `">` + html.EscapeString(s.text) + `</span>`
	})
}

// keywordReplace wraps keywords, skipping ones already inside a span
// opened by the function pass.
func keywordReplace(s string) string {
	return keywordRe.ReplaceAllStringFunc(s, func(kw string) string {
		return `<span class="sql-kw">` + kw + `</span>`
	})
}

// Keyword class names used by Highlight; exported for the web surface
// to build a stylesheet against.
const (
	ClassKeyword  = "sql-kw"
	ClassFunction = "sql-fn"
	ClassNumber   = "sql-num"
	ClassString   = "sql-str"
	ClassComment  = "sql-comment"
)

// stripSpanRe removes highlight markup; used by tests and plain-text fallbacks.
var stripSpanRe = regexp.MustCompile(`</?span[^>]*>`)

// Plain strips highlight markup and unescapes entities, recovering the
// original SQL text from highlighted output.
func Plain(highlighted string) string {
	return html.UnescapeString(stripSpanRe.ReplaceAllString(highlighted, ""))
}

// IsBlank reports whether SQL is empty after trimming; callers use it
// to skip formatting and visualization for empty drafts.
func IsBlank(sql string) bool {
	return strings.TrimSpace(sql) == ""
}
