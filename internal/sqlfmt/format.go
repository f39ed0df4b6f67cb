package sqlfmt

import (
	"regexp"
	"strings"
)

const indent = "    "

// clauseRe matches top-level clause keywords that start a new line.
var clauseRe = regexp.MustCompile(`(?i)\b(WITH|SELECT|FROM|LEFT\s+OUTER\s+JOIN|RIGHT\s+OUTER\s+JOIN|FULL\s+OUTER\s+JOIN|LEFT\s+JOIN|RIGHT\s+JOIN|INNER\s+JOIN|CROSS\s+JOIN|FULL\s+JOIN|JOIN|ON|WHERE|GROUP\s+BY|HAVING|ORDER\s+BY|UNION\s+ALL|UNION|LIMIT)\b`)

// contRe matches keywords continued on an indented line.
var contRe = regexp.MustCompile(`(?i)\b(AND|OR|WHEN|THEN|ELSE|END)\b`)

// Format pretty-prints SQL: whitespace is collapsed, each top-level
// clause keyword starts a new line, comma-separated lists continue on
// indented lines, and CASE/AND/OR continuations are indented. String
// literals and comments pass through untouched.
func Format(sql string) string {
	if strings.TrimSpace(sql) == "" {
		return ""
	}
	code, stashed := stash(sql)

	// Collapse all whitespace in code spans.
	code = strings.Join(strings.Fields(code), " ")

	var out strings.Builder
	depth := 0
	caseDepth := 0
	i := 0
	for i < len(code) {
		// Clause keyword at paren depth 0 starts a new line.
		if depth == 0 {
			if loc := clauseRe.FindStringIndex(code[i:]); loc != nil && loc[0] == 0 && boundaryBefore(code, i) {
				kw := code[i : i+loc[1]]
				trimNewlineSpace(&out)
				if out.Len() > 0 {
					out.WriteByte('\n')
				}
				out.WriteString(strings.ToUpper(normalizeSpaces(kw)))
				i += loc[1]
				continue
			}
			if loc := contRe.FindStringIndex(code[i:]); loc != nil && loc[0] == 0 && boundaryBefore(code, i) {
				kw := strings.ToUpper(code[i : i+loc[1]])
				trimNewlineSpace(&out)
				out.WriteByte('\n')
				lvl := caseDepth + 1
				switch kw {
				case "WHEN", "THEN", "ELSE":
					if caseDepth > 0 {
						lvl = caseDepth
					}
				case "END":
					if caseDepth > 0 {
						caseDepth--
					}
					lvl = caseDepth + 1
				}
				out.WriteString(strings.Repeat(indent, lvl))
				out.WriteString(kw)
				i += loc[1]
				continue
			}
			if hasPrefixFold(code[i:], "CASE") && boundaryBefore(code, i) && boundaryAfter(code, i+4) {
				caseDepth++
				out.WriteString("CASE")
				i += 4
				continue
			}
		}

		c := code[i]
		switch c {
		case '(':
			depth++
		case ')':
			if depth > 0 {
				depth--
			}
		case ',':
			if depth == 0 {
				out.WriteByte(',')
				out.WriteByte('\n')
				out.WriteString(indent)
				i++
				// Swallow the following space, the indent replaces it.
				if i < len(code) && code[i] == ' ' {
					i++
				}
				continue
			}
		}
		out.WriteByte(c)
		i++
	}

	formatted := unstash(out.String(), stashed, func(s segment) string { return s.text })
	return strings.TrimSpace(formatted)
}

// boundaryBefore reports whether position i starts a word.
func boundaryBefore(s string, i int) bool {
	if i == 0 {
		return true
	}
	return !isWordByte(s[i-1])
}

// boundaryAfter reports whether position i ends a word.
func boundaryAfter(s string, i int) bool {
	if i >= len(s) {
		return true
	}
	return !isWordByte(s[i])
}

func isWordByte(b byte) bool {
	return b == '_' || (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') || (b >= '0' && b <= '9')
}

func hasPrefixFold(s, prefix string) bool {
	return len(s) >= len(prefix) && strings.EqualFold(s[:len(prefix)], prefix)
}

func normalizeSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// trimNewlineSpace drops a single trailing space before a line break so
// "x WHERE" becomes "x\nWHERE" rather than "x \nWHERE".
func trimNewlineSpace(out *strings.Builder) {
	s := out.String()
	if strings.HasSuffix(s, " ") {
		out.Reset()
		out.WriteString(s[:len(s)-1])
	}
}
