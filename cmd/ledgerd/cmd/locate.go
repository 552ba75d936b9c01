package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var (
	locateHint  int
	locateCount int
)

// locateCmd represents the locate command.
var locateCmd = &cobra.Command{
	Use:   "locate",
	Short: "Show where the next cashbook entry would go",
	Long: `Show the cashbook row the next submission would be written to,
without modifying the workbook.

With --count greater than one the whole batch block is checked.

Example:
  ledgerd locate --hint 12
  ledgerd locate --hint 12 --count 4`,
	Run: runLocate,
}

func init() {
	locateCmd.Flags().IntVar(&locateHint, "hint", 2, "first row to try")
	locateCmd.Flags().IntVar(&locateCount, "count", 1, "number of payees")
}

func runLocate(cmd *cobra.Command, args []string) {
	a := loadApp(context.Background(), false, []string{"workbooks", "cashbook"})
	defer a.Close()

	row, err := a.svc.NextEntryRow(locateHint, locateCount)
	exitOnError(err, "failed to locate entry row")

	fmt.Printf("Next entry row: %d (%d payee(s), institution name on row %d)\n", row, locateCount, row-1)
}
