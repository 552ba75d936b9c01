package cmd

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
)

var recent int

// statsCmd represents the stats command.
var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Display payment history statistics",
	Long: `Display statistics about recorded payment submissions.

Shows:
- Total number of submissions and how many failed
- Total number of payees
- Downstream workbook writes and failures
- Last submission timestamp

Example:
  ledgerd stats
  ledgerd stats --recent 10`,
	Run: runStats,
}

func init() {
	statsCmd.Flags().IntVar(&recent, "recent", 0, "also list the most recent submissions")
}

func runStats(cmd *cobra.Command, args []string) {
	ctx := context.Background()
	a := loadApp(ctx, false, []string{"workbooks", "cashbook"})
	defer a.Close()

	stats, err := a.history.GetStats(ctx)
	exitOnError(err, "failed to get statistics")

	fmt.Println("\n=== Payment Statistics ===")
	fmt.Printf("Submissions:         %d\n", stats.TotalSubmissions)
	fmt.Printf("Failed submissions:  %d\n", stats.FailedSubmissions)
	fmt.Printf("Payees:              %d\n", stats.TotalEntries)
	fmt.Printf("Downstream writes:   %d\n", stats.DownstreamWrites)
	fmt.Printf("Failed downstream:   %d\n", stats.FailedDownstream)

	if stats.LastSubmission.Valid {
		fmt.Printf("Last submission:     %s\n", stats.LastSubmission.String)
	} else {
		fmt.Printf("Last submission:     (never)\n")
	}

	if recent > 0 {
		records, err := a.history.ListSubmissions(ctx, recent)
		exitOnError(err, "failed to list submissions")
		fmt.Println("\n=== Recent Submissions ===")
		for _, r := range records {
			status := "ok"
			if !r.Success {
				status = "FAILED: " + r.Error
			}
			fmt.Printf("%s  %-15s %-12s rows=%v  %s\n", r.CreatedAt.Format("2006-01-02 15:04:05"), r.Kind, r.IssueDate, r.Rows, status)
		}
	}

	fmt.Println()

	slog.Info("Statistics displayed successfully")
}
