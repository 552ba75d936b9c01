package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/shunichi-ikebuchi/loan-ledger/pkg/ledger"
)

var (
	paymentFile string
	payment     ledger.Payment
	capitalStr  string
	interestStr string
)

// payCmd represents the pay command.
var payCmd = &cobra.Command{
	Use:   "pay",
	Short: "Record a single payment",
	Long: `Record a single payment in the cashbook and the downstream workbooks.

The payment is read from --file (JSON, "-" for stdin) or built from flags.
The result is printed as JSON; the exit status is non-zero if the cashbook
write failed.

Example:
  ledgerd pay --file payment.json
  ledgerd pay --institution Acme --name J.Silva --account 123 \
    --capital 500 --interest 25 --cheque CH1 --bank HNB --hint 12 --date 2024-03-01`,
	Run: runPay,
}

// batchCmd represents the batch command.
var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Record a batch of payments",
	Long: `Record several payments in consecutive cashbook blocks.

The whole block is reserved before anything is written; if any row in it is
occupied, nothing is written.

Example:
  ledgerd batch --file batch.json`,
	Run: runBatch,
}

func init() {
	payCmd.Flags().StringVarP(&paymentFile, "file", "f", "", "payment JSON file, - for stdin")
	payCmd.Flags().StringVar(&payment.Institution, "institution", "", "institution name")
	payCmd.Flags().StringVar(&payment.Employee.Name, "name", "", "employee name")
	payCmd.Flags().StringVar(&payment.AccountNo, "account", "", "account number")
	payCmd.Flags().StringVar(&capitalStr, "capital", "", "capital amount")
	payCmd.Flags().StringVar(&interestStr, "interest", "", "interest amount")
	payCmd.Flags().StringVar(&payment.BillNo, "bill", "", "bill number (default BS)")
	payCmd.Flags().StringVar(&payment.ChequeNo, "cheque", "", "cheque number")
	payCmd.Flags().StringVar(&payment.Bank, "bank", "", "bank name")
	payCmd.Flags().StringVar(&payment.Description, "description", "", "description")
	payCmd.Flags().IntVar(&payment.FirstEntryRow, "hint", 2, "first row to try in the cashbook")
	payCmd.Flags().StringVar(&payment.Date, "date", "", "payment date as written in the books")

	batchCmd.Flags().StringVarP(&paymentFile, "file", "f", "", "batch JSON file, - for stdin (required)")
	batchCmd.MarkFlagRequired("file")
}

func runPay(cmd *cobra.Command, args []string) {
	ctx := context.Background()
	a := loadApp(ctx, false, []string{"workbooks", "cashbook"})
	defer a.Close()

	p := payment
	if paymentFile != "" {
		exitOnError(readJSON(paymentFile, &p), "failed to read payment")
	} else {
		var err error
		p.Capital, err = ledger.ParseAmount(capitalStr)
		exitOnError(err, "invalid capital")
		p.Interest, err = ledger.ParseAmount(interestStr)
		exitOnError(err, "invalid interest")
		p.Employee.AccountNo = p.AccountNo
	}

	if a.paths.GetPersonalAccountRoot() != "" {
		if dir, err := a.paths.GetInstitutionDir(p.Institution); err == nil && !a.paths.IsDir(dir) {
			slog.Warn("Institution folder not found, personal account update will fail", "path", dir)
		}
	}

	slog.Info("Submitting payment", "institution", p.Institution, "employee", p.Employee.Name)
	printResult(a.svc.SubmitPayment(ctx, p))
}

func runBatch(cmd *cobra.Command, args []string) {
	ctx := context.Background()
	a := loadApp(ctx, false, []string{"workbooks", "cashbook"})
	defer a.Close()

	var b ledger.BatchPayment
	exitOnError(readJSON(paymentFile, &b), "failed to read batch")

	slog.Info("Submitting batch payment", "employees", len(b.Employees), "date", b.Date)
	printResult(a.svc.SubmitBatchPayment(ctx, b))
}

func readJSON(path string, v any) error {
	var r io.Reader = os.Stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()
		r = f
	}
	return json.NewDecoder(r).Decode(v)
}

func printResult(r ledger.Result) {
	out, err := json.MarshalIndent(r, "", "  ")
	exitOnError(err, "failed to encode result")
	fmt.Println(string(out))
	if !r.Success {
		exitOnError(r.Err(), "payment failed")
	}
}
