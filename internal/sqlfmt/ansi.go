package sqlfmt

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

var (
	kwStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true)
	fnStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("13"))
	strStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	commentStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Italic(true)
)

// HighlightANSI renders SQL with terminal colors for the REPL. When the
// terminal reports no color support the input is returned unchanged.
func HighlightANSI(sql string) string {
	if termenv.ColorProfile() == termenv.Ascii {
		return sql
	}
	return highlight(sql)
}

func highlight(sql string) string {
	code, stashed := stash(sql)
	styled := keywordRe.ReplaceAllStringFunc(code, func(kw string) string {
		return kwStyle.Render(kw)
	})
	styled = funcRe.ReplaceAllStringFunc(styled, func(m string) string {
		name := m[:len(m)-1]
		return fnStyle.Render(name) + "("
	})
	return unstash(styled, stashed, func(s segment) string {
		if s.kind == segComment {
			return commentStyle.Render(s.text)
		}
		return strStyle.Render(s.text)
	})
}
