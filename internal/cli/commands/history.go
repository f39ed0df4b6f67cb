package commands

import (
	"fmt"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/leapstack-labs/clinsight/internal/state"
)

// NewHistoryCommand creates the history command listing the local
// question log.
func NewHistoryCommand() *cobra.Command {
	var limit int
	var clear bool

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recently asked questions",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := GetConfig(cmd.Context())
			logger := GetLogger(cmd.Context())

			store := state.New(logger)
			if err := store.Open(cfg.StatePath); err != nil {
				return fmt.Errorf("local history store unavailable: %w", err)
			}
			defer store.Close()

			if clear {
				if err := store.ClearQuestions(cmd.Context()); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "History cleared")
				return nil
			}

			recs, err := store.RecentQuestions(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if len(recs) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "(no history)")
				return nil
			}

			t := table.NewWriter()
			t.SetOutputMirror(cmd.OutOrStdout())
			t.SetStyle(table.StyleLight)
			t.AppendHeader(table.Row{"asked", "status", "mode", "duration", "question"})
			for _, r := range recs {
				t.AppendRow(table.Row{
					r.AskedAt.Local().Format("2006-01-02 15:04"),
					r.Status, r.Mode, r.Duration.Round(100*time.Millisecond), r.Question,
				})
			}
			t.Render()
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum number of entries to show")
	cmd.Flags().BoolVar(&clear, "clear", false, "Delete the local question log")
	return cmd
}
