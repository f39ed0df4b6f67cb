// Package sqlfmt provides best-effort SQL formatting and highlighting.
// It works on token boundaries with regular expressions rather than a
// real parser: malformed input may come out looking odd, but it never
// fails. Comment and string spans are carved out first so keywords
// inside literals are never touched.
package sqlfmt

import "strings"

// segKind classifies a scanned span of the input.
type segKind int

const (
	segCode segKind = iota
	segString
	segComment
)

type segment struct {
	kind segKind
	text string
}

// scan splits SQL into code, quoted-literal, and comment segments.
// Single-quoted literals honor doubled-quote escapes; line comments run
// to end of line, block comments to the closing marker or EOF.
func scan(sql string) []segment {
	var segs []segment
	var code strings.Builder
	flush := func() {
		if code.Len() > 0 {
			segs = append(segs, segment{segCode, code.String()})
			code.Reset()
		}
	}

	runes := []rune(sql)
	for i := 0; i < len(runes); {
		c := runes[i]
		switch {
		case c == '\'' || c == '"':
			quote := c
			j := i + 1
			for j < len(runes) {
				if runes[j] == quote {
					if quote == '\'' && j+1 < len(runes) && runes[j+1] == '\'' {
						j += 2
						continue
					}
					j++
					break
				}
				j++
			}
			flush()
			segs = append(segs, segment{segString, string(runes[i:j])})
			i = j
		case c == '-' && i+1 < len(runes) && runes[i+1] == '-':
			j := i
			for j < len(runes) && runes[j] != '\n' {
				j++
			}
			flush()
			segs = append(segs, segment{segComment, string(runes[i:j])})
			i = j
		case c == '/' && i+1 < len(runes) && runes[i+1] == '*':
			j := i + 2
			for j+1 < len(runes) && !(runes[j] == '*' && runes[j+1] == '/') {
				j++
			}
			if j+1 < len(runes) {
				j += 2
			} else {
				j = len(runes)
			}
			flush()
			segs = append(segs, segment{segComment, string(runes[i:j])})
			i = j
		default:
			code.WriteRune(c)
			i++
		}
	}
	flush()
	return segs
}

const placeholder = "\x00"

// stash replaces string/comment segments with indexed placeholders so a
// regex pass over the remaining code cannot touch them.
func stash(sql string) (string, []segment) {
	segs := scan(sql)
	var out strings.Builder
	var stashed []segment
	for _, s := range segs {
		if s.kind == segCode {
			out.WriteString(s.text)
			continue
		}
		out.WriteString(placeholder)
		stashed = append(stashed, s)
	}
	return out.String(), stashed
}

// unstash restores placeholders in order, transforming each stashed
// span through render.
func unstash(text string, stashed []segment, render func(segment) string) string {
	var out strings.Builder
	idx := 0
	for _, c := range text {
		if c == '\x00' && idx < len(stashed) {
			out.WriteString(render(stashed[idx]))
			idx++
			continue
		}
		out.WriteRune(c)
	}
	return out.String()
}
