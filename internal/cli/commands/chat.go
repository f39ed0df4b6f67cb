package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"

	"github.com/leapstack-labs/clinsight/internal/api"
	"github.com/leapstack-labs/clinsight/internal/export"
	"github.com/leapstack-labs/clinsight/internal/state"
	"github.com/leapstack-labs/clinsight/pkg/core"
)

// NewChatCommand creates the interactive REPL.
func NewChatCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "Interactive question session with tabs",
		Long: `Chat opens a multi-tab session. Each question gets its own tab;
dot-commands switch, inspect, and export tabs. Type .help for the list.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cc, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()
			return runChatREPL(cmd, cc)
		},
	}
}

func runChatREPL(cmd *cobra.Command, cc *CommandContext) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	// Pick up the server-held snapshot from the previous session.
	if cc.Cfg.Persist {
		if err := cc.Manager.Restore(ctx); err != nil {
			cc.Logger.Warn("failed to restore previous session", "err", err)
		}
	}

	historyFile := ""
	if cc.Store != nil && cc.Store.Path() != "" {
		historyFile = filepath.Join(filepath.Dir(cc.Store.Path()), "chat_history")
	}

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "clinsight> ",
		HistoryFile:     historyFile,
		InterruptPrompt: "^C",
		EOFPrompt:       ".quit",
	})
	if err != nil {
		return fmt.Errorf("failed to initialize REPL: %w", err)
	}
	defer func() { _ = rl.Close() }()

	fmt.Fprintf(out, "ClinSight chat (%s)\n", cc.Cfg.BaseURL)
	fmt.Fprintln(out, "Ask a question in Korean or English. Type .help for commands, .quit to exit")
	if demo, err := cc.Client.DemoQuestions(ctx); err == nil && len(demo) > 0 {
		fmt.Fprintln(out, "Example questions:")
		for i, q := range demo {
			if i >= 3 {
				break
			}
			fmt.Fprintf(out, "  - %s\n", q)
		}
	}
	fmt.Fprintln(out)

	for {
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			continue
		}
		if errors.Is(err, io.EOF) {
			break
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		if strings.HasPrefix(line, ".") {
			if quit := handleDotCommand(ctx, cmd, cc, line); quit {
				break
			}
			continue
		}

		askInREPL(ctx, cmd, cc, line)
	}
	return nil
}

// askInREPL runs one question to completion and renders the active tab.
func askInREPL(ctx context.Context, cmd *cobra.Command, cc *CommandContext, question string) {
	out := cmd.OutOrStdout()
	start := time.Now()

	id, err := cc.Manager.Submit(ctx, question)
	if err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "Error: %v\n", err)
		return
	}
	fmt.Fprintln(out, dimStyle.Render("..."))
	if err := cc.Manager.Wait(ctx, id); err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "Error: %v\n", err)
		return
	}
	tab, ok := cc.Manager.Tab(id)
	if !ok {
		return
	}

	mode := ""
	if tab.Draft != nil {
		mode = string(tab.Draft.Mode)
	}
	cc.RecordOutcome(ctx, state.QuestionRecord{
		Question: question,
		SQL:      tab.SQL,
		Mode:     mode,
		Status:   string(tab.Status),
		Duration: time.Since(start),
	})

	format := resolveFormat(cc.Cfg.Output, out)
	if err := renderTab(out, tab, format); err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "Error: %v\n", err)
	}
	fmt.Fprintln(out)
}

// handleDotCommand processes one REPL dot-command; returns true to
// quit.
func handleDotCommand(ctx context.Context, cmd *cobra.Command, cc *CommandContext, line string) bool {
	out := cmd.OutOrStdout()
	errw := cmd.ErrOrStderr()
	parts := strings.Fields(line)
	command := strings.ToLower(parts[0])

	switch command {
	case ".quit", ".exit":
		return true

	case ".help":
		printChatHelp(out)

	case ".tabs":
		tabs := cc.Manager.Tabs()
		if len(tabs) == 0 {
			fmt.Fprintln(out, "(no tabs)")
			break
		}
		active := cc.Manager.ActiveTabID()
		for i, t := range tabs {
			marker := " "
			if t.ID == active {
				marker = "*"
			}
			fmt.Fprintf(out, "%s %d. [%s] %s\n", marker, i+1, t.Status, t.Question)
		}

	case ".tab":
		if len(parts) < 2 {
			fmt.Fprintln(errw, "Usage: .tab <n>")
			break
		}
		n, err := strconv.Atoi(parts[1])
		tabs := cc.Manager.Tabs()
		if err != nil || n < 1 || n > len(tabs) {
			fmt.Fprintf(errw, "No such tab: %s\n", parts[1])
			break
		}
		if err := cc.Manager.Activate(tabs[n-1].ID); err != nil {
			fmt.Fprintf(errw, "Error: %v\n", err)
			break
		}
		renderActive(out, cc)

	case ".close":
		id := cc.Manager.ActiveTabID()
		if id == "" {
			fmt.Fprintln(out, "(no tabs)")
			break
		}
		if err := cc.Manager.CloseTab(id); err != nil {
			fmt.Fprintf(errw, "Error: %v\n", err)
		}

	case ".sql":
		if tab, ok := activeTab(cc); ok && tab.SQL != "" {
			fmt.Fprintln(out, renderSQL(out, tab.SQL))
		} else {
			fmt.Fprintln(out, "(no SQL)")
		}

	case ".edit":
		if len(parts) < 2 {
			fmt.Fprintln(errw, "Usage: .edit <sql>")
			break
		}
		editInREPL(ctx, cmd, cc, strings.TrimSpace(strings.TrimPrefix(line, parts[0])))

	case ".stats":
		if tab, ok := activeTab(cc); ok && len(tab.Stats) > 0 {
			renderStats(out, tab.Stats)
		} else {
			fmt.Fprintln(out, "(no statistics)")
		}

	case ".chart":
		tab, ok := activeTab(cc)
		if !ok || tab.Viz == nil {
			fmt.Fprintln(out, "(no chart)")
			break
		}
		renderVizNote(out, tab.Viz)

	case ".export":
		tab, ok := activeTab(cc)
		if !ok || tab.Preview() == nil {
			fmt.Fprintln(errw, "Nothing to export")
			break
		}
		path := exportPath(parts, tab.Question)
		if err := writeCSVFile(path, tab.Preview()); err != nil {
			fmt.Fprintf(errw, "Error: %v\n", err)
			break
		}
		fmt.Fprintf(out, "Saved %s\n", path)

	case ".save":
		if len(parts) < 2 {
			fmt.Fprintln(errw, "Usage: .save <name>")
			break
		}
		tab, ok := activeTab(cc)
		if !ok {
			fmt.Fprintln(errw, "No active tab to save")
			break
		}
		name := strings.Join(parts[1:], " ")
		chartType := ""
		if tab.Viz != nil && tab.Viz.Payload != nil && len(tab.Viz.Payload.Analyses) > 0 {
			chartType = tab.Viz.Payload.Analyses[0].Spec.ChartType
		}
		if err := cc.Client.SaveDashboardQuery(ctx, api.DashboardQuery{
			Title:     name,
			Question:  tab.Question,
			ChartType: chartType,
		}); err != nil {
			fmt.Fprintf(errw, "Error: %v\n", err)
			break
		}
		if cc.Store != nil {
			if err := cc.Store.SaveShortcut(ctx, state.Shortcut{
				Name:      name,
				Question:  tab.Question,
				ChartType: chartType,
			}); err != nil {
				fmt.Fprintf(errw, "Warning: local shortcut not saved: %v\n", err)
			}
		}
		fmt.Fprintf(out, "Saved shortcut %q\n", name)

	case ".shortcuts":
		queries, err := cc.Client.ListDashboardQueries(ctx)
		if err != nil {
			fmt.Fprintf(errw, "Error: %v\n", err)
			break
		}
		if len(queries) == 0 {
			fmt.Fprintln(out, "(no shortcuts)")
			break
		}
		for _, q := range queries {
			fmt.Fprintf(out, "  %s: %s\n", q.Title, q.Question)
		}

	case ".budget":
		status, err := cc.Client.Budget(ctx)
		if err != nil {
			fmt.Fprintf(errw, "Error: %v\n", err)
			break
		}
		fmt.Fprintf(out, "Query budget: %.2f / %.2f used\n", status.Used, status.Limit)
		if status.Exhausted {
			fmt.Fprintln(out, errorStyle.Render("Budget exhausted; new questions will be rejected"))
		}

	case ".clear":
		if err := cc.Manager.Reset(ctx); err != nil {
			fmt.Fprintf(errw, "Error: %v\n", err)
			break
		}
		fmt.Fprintln(out, "Session cleared")

	default:
		fmt.Fprintf(errw, "Unknown command: %s (type .help for commands)\n", command)
	}
	return false
}

// editInREPL re-runs user-edited SQL as a sibling tab.
func editInREPL(ctx context.Context, cmd *cobra.Command, cc *CommandContext, sql string) {
	out := cmd.OutOrStdout()
	src := cc.Manager.ActiveTabID()
	if src == "" {
		fmt.Fprintln(cmd.ErrOrStderr(), "No active tab to edit")
		return
	}
	id, err := cc.Manager.ExecuteEdited(ctx, src, sql)
	if err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "Error: %v\n", err)
		return
	}
	if err := cc.Manager.Wait(ctx, id); err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "Error: %v\n", err)
		return
	}
	renderActive(out, cc)
}

func activeTab(cc *CommandContext) (core.Tab, bool) {
	id := cc.Manager.ActiveTabID()
	if id == "" {
		return core.Tab{}, false
	}
	return cc.Manager.Tab(id)
}

func renderActive(w io.Writer, cc *CommandContext) {
	tab, ok := activeTab(cc)
	if !ok {
		return
	}
	_ = renderTab(w, tab, resolveFormat(cc.Cfg.Output, w))
}

func exportPath(parts []string, question string) string {
	if len(parts) >= 2 {
		return parts[1]
	}
	return export.Filename(question)
}

func printChatHelp(w io.Writer) {
	help := `
Commands:
  .help           Show this help message
  .tabs           List tabs (newest first, * marks active)
  .tab <n>        Switch to tab n and render it
  .close          Close the active tab
  .sql            Show the active tab's SQL
  .edit <sql>     Run edited SQL as a new tab
  .stats          Show per-column statistics
  .chart          Show the chart recommendation
  .export [file]  Write the result preview to a CSV file
  .save <name>    Save the active question as a dashboard shortcut
  .shortcuts      List saved dashboard shortcuts
  .budget         Show remaining query budget
  .clear          Clear all tabs and the server-held history
  .quit           Exit
`
	fmt.Fprintln(w, help)
}
