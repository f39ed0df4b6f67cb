package commands

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/clinsight/internal/export"
	"github.com/leapstack-labs/clinsight/internal/sqlfmt"
	"github.com/leapstack-labs/clinsight/internal/state"
	"github.com/leapstack-labs/clinsight/pkg/core"
)

// NewAskCommand creates the ask command: one question, one rendered
// answer.
func NewAskCommand() *cobra.Command {
	var (
		csvPath  string
		sqlOnly  bool
		shortcut string
	)

	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Ask one question and render the full answer",
		Long: `Ask runs a single question through the full pipeline: SQL draft,
execution, result preview, per-column statistics, narrative insight, and
a chart recommendation. With --shortcut, the question is looked up in the
local shortcut store by name instead of being given on the command line.`,
		Args: func(cmd *cobra.Command, args []string) error {
			if sc, _ := cmd.Flags().GetString("shortcut"); sc != "" {
				return nil
			}
			return cobra.MinimumNArgs(1)(cmd, args)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			cc, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			question := strings.TrimSpace(strings.Join(args, " "))
			if shortcut != "" {
				question, err = shortcutQuestion(cmd, cc, shortcut)
				if err != nil {
					return err
				}
			}
			start := time.Now()

			id, err := cc.Manager.Submit(cmd.Context(), question)
			if err != nil {
				return err
			}
			if err := cc.Manager.Wait(cmd.Context(), id); err != nil {
				return err
			}
			tab, ok := cc.Manager.Tab(id)
			if !ok {
				return fmt.Errorf("tab disappeared")
			}

			mode := ""
			if tab.Draft != nil {
				mode = string(tab.Draft.Mode)
			}
			cc.RecordOutcome(cmd.Context(), state.QuestionRecord{
				Question: question,
				SQL:      tab.SQL,
				Mode:     mode,
				Status:   string(tab.Status),
				Duration: time.Since(start),
			})

			if sqlOnly {
				fmt.Fprintln(cmd.OutOrStdout(), sqlfmt.Format(tab.SQL))
				return nil
			}
			if csvPath != "" {
				if err := writeCSVFile(csvPath, tab.Preview()); err != nil {
					return err
				}
				fmt.Fprintf(cmd.ErrOrStderr(), "Saved %s\n", csvPath)
			}

			format := resolveFormat(cc.Cfg.Output, cmd.OutOrStdout())
			if err := renderTab(cmd.OutOrStdout(), tab, format); err != nil {
				return err
			}
			if tab.Status == core.TabError {
				return fmt.Errorf("question failed")
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&csvPath, "csv", "", "Also write the result preview to a CSV file")
	cmd.Flags().BoolVar(&sqlOnly, "sql-only", false, "Print only the generated SQL")
	cmd.Flags().StringVar(&shortcut, "shortcut", "", "Run a saved shortcut by name")
	return cmd
}

// shortcutQuestion resolves a saved shortcut name to its question,
// preferring the local store and falling back to the dashboards file.
func shortcutQuestion(cmd *cobra.Command, cc *CommandContext, name string) (string, error) {
	if cc.Store != nil {
		sc, err := cc.Store.GetShortcut(cmd.Context(), name)
		if err == nil {
			return sc.Question, nil
		}
	}
	if q := cc.Shortcuts.Current().Question(name); q != "" {
		return q, nil
	}
	return "", fmt.Errorf("unknown shortcut %q", name)
}

func writeCSVFile(path string, pv *core.Preview) error {
	if pv == nil {
		return fmt.Errorf("no result to export")
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer f.Close()
	if err := export.WriteCSV(f, pv); err != nil {
		return fmt.Errorf("failed to write CSV: %w", err)
	}
	return nil
}
