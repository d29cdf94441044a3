package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/kalambet/llmcore/internal/usage"
)

var usageCmd = &cobra.Command{
	Use:   "usage",
	Short: "Summarize token usage and cost",
	RunE: func(cmd *cobra.Command, args []string) error {
		since, _ := cmd.Flags().GetDuration("since")
		if since <= 0 {
			return fmt.Errorf("--since must be positive")
		}

		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		totals, err := usage.NewStoreRecorder(a.store).Totals(cmd.Context(), time.Now().Add(-since))
		if err != nil {
			return fmt.Errorf("reading usage: %w", err)
		}
		if len(totals) == 0 {
			fmt.Printf("No usage in the last %s.\n", since)
			return nil
		}
		return writeUsage(totals)
	},
}

func init() {
	usageCmd.Flags().Duration("since", 24*time.Hour, "window to summarize")
}

func writeUsage(totals []usage.Total) error {
	tw := newTable(os.Stdout)
	fmt.Fprintln(tw, "MODEL\tLABEL\tCALLS\tPROMPT\tCOMPLETION\tTOTAL\tCOST")
	var sum usage.Total
	for _, t := range totals {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%d\t%d\t$%.4f\n",
			t.ModelName, t.TaskLabel, t.Calls, t.PromptTokens, t.CompletionTokens, t.TotalTokens, t.Cost)
		sum.Calls += t.Calls
		sum.PromptTokens += t.PromptTokens
		sum.CompletionTokens += t.CompletionTokens
		sum.TotalTokens += t.TotalTokens
		sum.Cost += t.Cost
	}
	fmt.Fprintf(tw, "%s\t\t%d\t%d\t%d\t%d\t$%.4f\n",
		colorize(colorBold, "TOTAL"), sum.Calls, sum.PromptTokens, sum.CompletionTokens, sum.TotalTokens, sum.Cost)
	return tw.Flush()
}
