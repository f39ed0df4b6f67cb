package sqlfmt

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormatBreaksClauses(t *testing.T) {
	got := Format("select id, name from patients where age > 65 order by name")
	lines := strings.Split(got, "\n")
	assert.Equal(t, "SELECT id,", lines[0])
	assert.Contains(t, got, "\nFROM patients")
	assert.Contains(t, got, "\nWHERE age > 65")
	assert.Contains(t, got, "\nORDER BY name")
}

func TestFormatCollapsesWhitespace(t *testing.T) {
	got := Format("select  \t 1\n\n\nfrom   dual")
	assert.Equal(t, "SELECT 1\nFROM dual", got)
}

func TestFormatIndentsCommaLists(t *testing.T) {
	got := Format("select a, b, c from t")
	assert.Contains(t, got, "a,\n    b,\n    c")
}

func TestFormatIndentsAndOr(t *testing.T) {
	got := Format("select * from t where a = 1 and b = 2 or c = 3")
	assert.Contains(t, got, "\nWHERE a = 1")
	assert.Contains(t, got, "\n    AND b = 2")
	assert.Contains(t, got, "\n    OR c = 3")
}

func TestFormatIndentsCase(t *testing.T) {
	got := Format("select case when x = 1 then 'a' else 'b' end from t")
	assert.Contains(t, got, "CASE")
	assert.Contains(t, got, "\n    WHEN x = 1")
	assert.Contains(t, got, "\n    ELSE 'b'")
	assert.Contains(t, got, "\n    END")
}

func TestFormatJoins(t *testing.T) {
	got := Format("select * from a left join b on a.id = b.id inner join c on b.id = c.id")
	assert.Contains(t, got, "\nLEFT JOIN b")
	assert.Contains(t, got, "\nON a.id = b.id")
	assert.Contains(t, got, "\nINNER JOIN c")
}

func TestFormatKeepsLiteralsIntact(t *testing.T) {
	got := Format("select 'from   where' as s from t")
	assert.Contains(t, got, "'from   where'")
	// Clause words inside the literal must not break lines.
	assert.Equal(t, 2, len(strings.Split(got, "\n")))
}

func TestFormatCommaInsideParens(t *testing.T) {
	got := Format("select coalesce(a, b) from t")
	assert.Contains(t, got, "coalesce(a, b)")
}

func TestFormatEmptyInput(t *testing.T) {
	assert.Equal(t, "", Format("   "))
	assert.Equal(t, "", Format(""))
}

func TestFormatUnion(t *testing.T) {
	got := Format("select a from t union all select a from u")
	assert.Contains(t, got, "\nUNION ALL\nSELECT")
}

func TestHighlightWrapsKeywords(t *testing.T) {
	got := Highlight("SELECT id FROM t")
	assert.Contains(t, got, `<span class="sql-kw">SELECT</span>`)
	assert.Contains(t, got, `<span class="sql-kw">FROM</span>`)
}

func TestHighlightEscapesHTML(t *testing.T) {
	got := Highlight("SELECT a <> b")
	assert.Contains(t, got, "&lt;&gt;")
	assert.NotContains(t, Plain(got), "span")
}

func TestHighlightLeavesKeywordsInStringsAlone(t *testing.T) {
	got := Highlight("SELECT 'select from where' FROM t")
	// The literal is a single string span with no nested keyword spans.
	assert.Contains(t, got, `<span class="sql-str">&#39;select from where&#39;</span>`)
	assert.Equal(t, 2, strings.Count(got, `sql-kw`))
}

func TestHighlightComments(t *testing.T) {
	got := Highlight("SELECT 1 -- select everything")
	assert.Contains(t, got, `<span class="sql-comment">-- select everything</span>`)
	assert.Equal(t, 1, strings.Count(got, "sql-kw"))
}

func TestHighlightFunctions(t *testing.T) {
	got := Highlight("SELECT count(1) FROM t")
	assert.Contains(t, got, `<span class="sql-fn">count</span>(`)
}

func TestHighlightRoundTrip(t *testing.T) {
	sql := "SELECT name, count(*) FROM visits -- note\nWHERE dept = 'ER'"
	assert.Equal(t, sql, Plain(Highlight(sql)))
}

func TestHighlightNeverPanicsOnMalformedInput(t *testing.T) {
	inputs := []string{
		"'unterminated",
		"/* open comment",
		"\"dangling",
		"select ''''",
		"\x00\x00",
	}
	for _, in := range inputs {
		assert.NotPanics(t, func() { _ = Highlight(in) })
		assert.NotPanics(t, func() { _ = Format(in) })
	}
}

func TestHighlightANSIStyledPath(t *testing.T) {
	got := highlight("select name from patients where note = 'a, b' -- trailing")
	// Styling must never lose the SQL text itself.
	for _, want := range []string{"select", "patients", "'a, b'", "-- trailing"} {
		assert.Contains(t, got, want)
	}
}

func TestScanDoubledQuoteEscape(t *testing.T) {
	segs := scan("select 'it''s' from t")
	var strSegs []segment
	for _, s := range segs {
		if s.kind == segString {
			strSegs = append(strSegs, s)
		}
	}
	assert.Len(t, strSegs, 1)
	assert.Equal(t, "'it''s'", strSegs[0].text)
}
