package ledger

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/shunichi-ikebuchi/loan-ledger/pkg/apperr"
	"github.com/shunichi-ikebuchi/loan-ledger/pkg/locator"
	"github.com/shunichi-ikebuchi/loan-ledger/pkg/workbook"
)

type sheetData struct {
	name  string
	cells map[string]any
}

func writeBook(t *testing.T, path string, sheets ...sheetData) string {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	f := excelize.NewFile()
	defer f.Close()
	for i, s := range sheets {
		if i == 0 {
			require.NoError(t, f.SetSheetName("Sheet1", s.name))
		} else {
			_, err := f.NewSheet(s.name)
			require.NoError(t, err)
		}
		for ref, v := range s.cells {
			require.NoError(t, f.SetCellValue(s.name, ref, v))
		}
	}
	require.NoError(t, f.SaveAs(path))
	return path
}

func cellValue(t *testing.T, path, sheet, ref string) string {
	t.Helper()
	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()
	v, err := f.GetCellValue(sheet, ref)
	require.NoError(t, err)
	return v
}

func fileBytes(t *testing.T, path string) []byte {
	t.Helper()
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	return b
}

type fixture struct {
	root     string
	settings Settings
	personal string
}

// newFixture lays out a cashbook, a main ledger, a trial balance and one
// personal account for J.Silva (account 123) at institution "Acme".
func newFixture(t *testing.T) fixture {
	t.Helper()
	root := t.TempDir()
	fx := fixture{root: root}

	fx.settings = Settings{
		CashbookPath:         writeBook(t, filepath.Join(root, "cashbook.xlsx"), sheetData{"Sheet1", map[string]any{"B1": "Bill", "E1": "Name", "F1": "Type"}}),
		CashbookSheet:        "Sheet1",
		MainLedgerPath:       writeBook(t, filepath.Join(root, "ledger.xlsx"), sheetData{"Ledger", map[string]any{"L2": "ACME ", "L3": "J.Silva", "R3": 999, "L4": "J.Silva", "R4": 123, "N4": 1000, "O4": "n/a"}}),
		LedgerDebitColumn:    "N",
		LedgerInterestColumn: "O",
		TrialBalancePath: writeBook(t, filepath.Join(root, "tb.xlsx"),
			sheetData{"Capital", map[string]any{"A1": "Date"}},
			sheetData{"Interest", map[string]any{"A1": "Date"}},
		),
		CapitalSheet:        "Capital",
		InterestSheet:       "Interest",
		PersonalAccountRoot: filepath.Join(root, "personal"),
	}
	fx.personal = writeBook(t, filepath.Join(root, "personal", "Acme", "J.Silva-123.xlsx"),
		sheetData{"2023", map[string]any{"A1": "old", "J2": "X/Y/555/Z"}},
		sheetData{"2024", map[string]any{"A1": "Date", "A2": "Opening", "J2": "X/Y/123/Z", "A3": "2024-01-01", "I3": 100, "K4": 500}},
	)
	return fx
}

func TestUpdatePersonalAccountLimit(t *testing.T) {
	ctx := context.Background()

	t.Run("over limit writes nothing", func(t *testing.T) {
		fx := newFixture(t)
		before := fileBytes(t, fx.personal)
		svc := NewService(fx.settings)

		r := svc.UpdatePersonalAccount(ctx, PersonalAccountUpdate{
			EmployeeName: "J.Silva", AccountNo: "123", Institution: "Acme", Date: "2024-02-01",
			Capital: MustAmount("600"),
		})
		assert.False(t, r.Success)
		assert.Equal(t, apperr.LimitExceeded, r.Kind)
		assert.Equal(t, before, fileBytes(t, fx.personal))
	})

	t.Run("at limit succeeds", func(t *testing.T) {
		fx := newFixture(t)
		svc := NewService(fx.settings)

		r := svc.UpdatePersonalAccount(ctx, PersonalAccountUpdate{
			EmployeeName: "J.Silva", AccountNo: "123", Institution: "Acme", Date: "2024-02-01",
			Capital: MustAmount("500"), Interest: MustAmount("25.5"), ChequeNo: "CHQ1",
		})
		require.True(t, r.Success, r.Error)
		assert.Equal(t, 4, r.RowUpdated)
		assert.Equal(t, "500", cellValue(t, fx.personal, "2024", "I4"))
		assert.Equal(t, "25.5", cellValue(t, fx.personal, "2024", "H4"))
		assert.Equal(t, "2024-02-01", cellValue(t, fx.personal, "2024", "A4"))
		assert.Equal(t, DefaultBillNo, cellValue(t, fx.personal, "2024", "B4"))
		assert.Equal(t, "CHQ1", cellValue(t, fx.personal, "2024", "C4"))
		assert.Empty(t, cellValue(t, fx.personal, "2023", "A4"))
	})
}

func TestValidateCapitalLimit(t *testing.T) {
	fx := newFixture(t)
	svc := NewService(fx.settings)

	report, err := svc.ValidateCapitalLimit(context.Background(), LimitCheck{
		EmployeeName: "J.Silva", AccountNo: "123", Institution: "Acme", Capital: MustAmount("450"),
	})
	require.NoError(t, err)
	assert.True(t, report.Checked)
	assert.Equal(t, 4, report.Row)
	assert.Equal(t, "500", report.Limit.String())

	report, err = svc.ValidateCapitalLimit(context.Background(), LimitCheck{Capital: MustAmount("0")})
	require.NoError(t, err)
	assert.False(t, report.Checked)
}

func TestUpdatePersonalAccountMissingFile(t *testing.T) {
	fx := newFixture(t)
	r := NewService(fx.settings).UpdatePersonalAccount(context.Background(), PersonalAccountUpdate{
		EmployeeName: "Nobody", AccountNo: "1", Institution: "Acme", Date: "2024-02-01",
	})
	assert.False(t, r.Success)
	assert.Equal(t, apperr.NotFound, r.Kind)
}

func TestTrialBalanceDateBucketing(t *testing.T) {
	fx := newFixture(t)
	svc := NewService(fx.settings)
	ctx := context.Background()

	first := svc.UpdateInterestTrialBalance(ctx, TrialBalanceUpdate{EmployeeName: "J.Silva", Date: "2024-02-01", Interest: MustAmount("100")})
	require.True(t, first.Success, first.Error)
	assert.Equal(t, ActionCreatedNew, first.Action)
	assert.Equal(t, 2, first.RowUpdated)

	second := svc.UpdateInterestTrialBalance(ctx, TrialBalanceUpdate{EmployeeName: "J.Silva", Date: "2024-02-01", Interest: MustAmount("50")})
	require.True(t, second.Success, second.Error)
	assert.Equal(t, ActionUpdatedExisting, second.Action)
	assert.Equal(t, 2, second.RowUpdated)
	assert.Equal(t, "150", cellValue(t, fx.settings.TrialBalancePath, "Interest", "F2"))
	assert.Empty(t, cellValue(t, fx.settings.TrialBalancePath, "Interest", "A3"))

	third := svc.UpdateInterestTrialBalance(ctx, TrialBalanceUpdate{EmployeeName: "J.Silva", Date: "2024-02-02", Interest: MustAmount("10")})
	require.True(t, third.Success)
	assert.Equal(t, ActionCreatedNew, third.Action)
	assert.Equal(t, 3, third.RowUpdated)

	assert.Empty(t, cellValue(t, fx.settings.TrialBalancePath, "Capital", "A2"))
}

func TestTrialBalanceSkipsAndMissingSheet(t *testing.T) {
	fx := newFixture(t)
	svc := NewService(fx.settings)

	r := svc.UpdateCapitalTrialBalance(context.Background(), TrialBalanceUpdate{Date: "2024-02-01", Interest: MustAmount("5")})
	assert.True(t, r.Success)
	assert.Equal(t, ActionSkipped, r.Action)

	fx.settings.CapitalSheet = "Nope"
	before := fileBytes(t, fx.settings.TrialBalancePath)
	r = NewService(fx.settings).UpdateCapitalTrialBalance(context.Background(), TrialBalanceUpdate{Date: "2024-02-01", Capital: MustAmount("5")})
	assert.False(t, r.Success)
	assert.Equal(t, apperr.NotFound, r.Kind)
	assert.Equal(t, before, fileBytes(t, fx.settings.TrialBalancePath))
}

func TestUpdateMainLedger(t *testing.T) {
	ctx := context.Background()

	t.Run("accumulates into matching account row", func(t *testing.T) {
		fx := newFixture(t)
		r := NewService(fx.settings).UpdateMainLedger(ctx, MainLedgerUpdate{
			EmployeeName: "j.silva", AccountNo: "123", Institution: "acme",
			Capital: MustAmount("250"), Interest: MustAmount("12.5"),
		})
		require.True(t, r.Success, r.Error)
		assert.Equal(t, 4, r.RowUpdated)
		assert.Equal(t, 2, r.Details["institution_row"])
		assert.Equal(t, "1250", cellValue(t, fx.settings.MainLedgerPath, "Ledger", "N4"))
		assert.Equal(t, "12.5", cellValue(t, fx.settings.MainLedgerPath, "Ledger", "O4"))
		assert.Empty(t, cellValue(t, fx.settings.MainLedgerPath, "Ledger", "N3"))
	})

	t.Run("explicit columns override defaults", func(t *testing.T) {
		fx := newFixture(t)
		r := NewService(fx.settings).UpdateMainLedger(ctx, MainLedgerUpdate{
			EmployeeName: "J.Silva", AccountNo: "123", Institution: "Acme",
			DebitColumn: "P", InterestColumn: "Q", Capital: MustAmount("1"),
		})
		require.True(t, r.Success, r.Error)
		assert.Equal(t, "1", cellValue(t, fx.settings.MainLedgerPath, "Ledger", "P4"))
	})

	t.Run("unknown institution", func(t *testing.T) {
		fx := newFixture(t)
		r := NewService(fx.settings).UpdateMainLedger(ctx, MainLedgerUpdate{
			EmployeeName: "J.Silva", AccountNo: "123", Institution: "Globex", Capital: MustAmount("1"),
		})
		assert.Equal(t, apperr.NotFound, r.Kind)
	})

	t.Run("nothing to add", func(t *testing.T) {
		r := NewService(Settings{}).UpdateMainLedger(ctx, MainLedgerUpdate{Capital: MustAmount("0")})
		assert.True(t, r.Success)
		assert.Equal(t, ActionSkipped, r.Action)
	})
}

func TestFindLedgerRowStopsAtSectionEnd(t *testing.T) {
	g := workbook.NewGrid("Ledger").
		Set(1, ledgerNameColumn, workbook.Text("Acme")).
		Set(2, ledgerNameColumn, workbook.Text("A")).
		Set(8, ledgerNameColumn, workbook.Text("J.Silva")).
		Set(8, ledgerAccountColumn, workbook.Text("123"))

	_, err := findLedgerRow(g, "Acme", "J.Silva", "123")
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	g.Set(5, ledgerNameColumn, workbook.Text("B"))
	m, err := findLedgerRow(g, "Acme", "J.Silva", "123")
	require.NoError(t, err)
	assert.Equal(t, 8, m.employeeRow)
}

func TestSubmitPayment(t *testing.T) {
	fx := newFixture(t)
	svc := NewService(fx.settings)

	r := svc.SubmitPayment(context.Background(), Payment{
		Institution:   "Acme",
		Employee:      Employee{Name: "J.Silva", AccountNo: "123"},
		Capital:       MustAmount("400"),
		Interest:      MustAmount("40"),
		ChequeNo:      "CHQ9",
		AccountNo:     "123",
		Bank:          "HNB",
		Description:   "March",
		FirstEntryRow: 3,
		Date:          "2024-03-01",
	})
	require.True(t, r.Success, r.Error)
	assert.Equal(t, 3, r.RowUpdated)

	cb := fx.settings.CashbookPath
	for ref, want := range map[string]string{
		"A3": "2024-03-01", "B3": "BS", "C3": "CHQ9", "D3": "123", "E3": "J.Silva",
		"E2": "Acme", "F3": LabelCapital, "F4": LabelInterest, "I3": "400", "I4": "40", "M3": "March",
	} {
		assert.Equal(t, want, cellValue(t, cb, "Sheet1", ref), ref)
	}

	downstream, ok := r.Details["downstream"].([]DownstreamResult)
	require.True(t, ok)
	require.Len(t, downstream, 4)
	for _, d := range downstream {
		assert.True(t, d.Result.Success, "%s: %s", d.Operation, d.Result.Error)
	}
	assert.Equal(t, "400", cellValue(t, fx.personal, "2024", "I4"))
	assert.Equal(t, "400", cellValue(t, fx.settings.TrialBalancePath, "Capital", "F2"))
	assert.Equal(t, "40", cellValue(t, fx.settings.TrialBalancePath, "Interest", "F2"))
	assert.Equal(t, "1400", cellValue(t, fx.settings.MainLedgerPath, "Ledger", "N4"))
}

func TestSubmitPaymentDownstreamFailureIsPartialSuccess(t *testing.T) {
	fx := newFixture(t)
	fx.settings.InterestSheet = "Missing"
	r := NewService(fx.settings).SubmitPayment(context.Background(), Payment{
		Institution: "Acme", Employee: Employee{Name: "J.Silva", AccountNo: "123"},
		Interest: MustAmount("40"), ChequeNo: "C", AccountNo: "123", Bank: "Cash in Hand",
		FirstEntryRow: 3, Date: "2024-03-01",
	})
	require.True(t, r.Success, r.Error)
	assert.Equal(t, "40", cellValue(t, fx.settings.CashbookPath, "Sheet1", "G4"))

	var failures []Operation
	for _, d := range r.Details["downstream"].([]DownstreamResult) {
		if !d.Result.Success {
			failures = append(failures, d.Operation)
		}
	}
	assert.Equal(t, []Operation{OpInterestTrialBalance}, failures)
}

func TestSubmitPaymentPrimaryFailures(t *testing.T) {
	tests := []struct {
		name string
		p    Payment
		kind apperr.Kind
	}{
		{"missing cheque", Payment{Institution: "Acme", Employee: Employee{Name: "J.Silva"}, AccountNo: "123", Date: "d", Capital: MustAmount("1"), Bank: "HNB", FirstEntryRow: 3}, apperr.InvalidInput},
		{"no amounts", Payment{Institution: "Acme", Employee: Employee{Name: "J.Silva"}, ChequeNo: "C", AccountNo: "123", Date: "d", FirstEntryRow: 3}, apperr.InvalidInput},
		{"unknown bank", Payment{Institution: "Acme", Employee: Employee{Name: "J.Silva"}, ChequeNo: "C", AccountNo: "123", Date: "d", Capital: MustAmount("1"), Bank: "Mattress", FirstEntryRow: 3}, apperr.InvalidInput},
		{"over limit", Payment{Institution: "Acme", Employee: Employee{Name: "J.Silva", AccountNo: "123"}, ChequeNo: "C", AccountNo: "123", Date: "d", Capital: MustAmount("501"), Bank: "HNB", FirstEntryRow: 3}, apperr.LimitExceeded},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fx := newFixture(t)
			before := fileBytes(t, fx.settings.CashbookPath)
			r := NewService(fx.settings).SubmitPayment(context.Background(), tt.p)
			assert.False(t, r.Success)
			assert.Equal(t, tt.kind, r.Kind)
			assert.Equal(t, before, fileBytes(t, fx.settings.CashbookPath))
		})
	}
}

func TestSubmitBatchPayment(t *testing.T) {
	entries := []BatchEntry{
		{Institution: "Acme", Name: "J.Silva", AccountNo: "123", Capital: MustAmount("10"), Bank: "HNB"},
		{Institution: "Acme", Name: "K.Perera", AccountNo: "77", Interest: MustAmount("5"), Bank: "Peoples Bank"},
	}

	t.Run("writes consecutive blocks", func(t *testing.T) {
		fx := newFixture(t)
		r := NewService(fx.settings).SubmitBatchPayment(context.Background(), BatchPayment{Date: "2024-04-01", FirstEntryRow: 3, Employees: entries})
		require.True(t, r.Success, r.Error)
		assert.Equal(t, []int{3, 6}, r.Rows)
		cb := fx.settings.CashbookPath
		assert.Equal(t, "J.Silva", cellValue(t, cb, "Sheet1", "E3"))
		assert.Equal(t, "10", cellValue(t, cb, "Sheet1", "I3"))
		assert.Equal(t, "Acme", cellValue(t, cb, "Sheet1", "E5"))
		assert.Equal(t, "K.Perera", cellValue(t, cb, "Sheet1", "E6"))
		assert.Equal(t, "5", cellValue(t, cb, "Sheet1", "H7"))
		assert.Equal(t, "BS", cellValue(t, cb, "Sheet1", "B6"))
	})

	t.Run("occupied block writes nothing", func(t *testing.T) {
		fx := newFixture(t)
		writeBook(t, fx.settings.CashbookPath, sheetData{"Sheet1", map[string]any{"B1": "Bill", "C7": "taken"}})
		before := fileBytes(t, fx.settings.CashbookPath)
		r := NewService(fx.settings).SubmitBatchPayment(context.Background(), BatchPayment{Date: "2024-04-01", FirstEntryRow: 3, Employees: entries})
		assert.False(t, r.Success)
		assert.Equal(t, apperr.InsufficientCapacity, r.Kind)
		assert.Equal(t, before, fileBytes(t, fx.settings.CashbookPath))
	})

	t.Run("invalid payee aborts before writing", func(t *testing.T) {
		fx := newFixture(t)
		before := fileBytes(t, fx.settings.CashbookPath)
		bad := append([]BatchEntry{}, entries...)
		bad[1].Capital, bad[1].Interest = Amount{}, Amount{}
		r := NewService(fx.settings).SubmitBatchPayment(context.Background(), BatchPayment{Date: "2024-04-01", FirstEntryRow: 3, Employees: bad})
		assert.Equal(t, apperr.InvalidInput, r.Kind)
		assert.Equal(t, before, fileBytes(t, fx.settings.CashbookPath))
	})
}

func TestUpdateCell(t *testing.T) {
	fx := newFixture(t)
	svc := NewService(fx.settings)

	r := svc.UpdateCell(context.Background(), CellUpdate{Cell: "k9", Value: workbook.Number(3.25)})
	require.True(t, r.Success, r.Error)
	assert.Equal(t, "3.25", cellValue(t, fx.settings.CashbookPath, "Sheet1", "K9"))

	r = svc.UpdateCell(context.Background(), CellUpdate{Sheet: "Nope", Cell: "A1", Value: workbook.Text("x")})
	assert.Equal(t, apperr.NotFound, r.Kind)

	r = svc.UpdateCell(context.Background(), CellUpdate{Cell: "1A", Value: workbook.Text("x")})
	assert.Equal(t, apperr.InvalidInput, r.Kind)
}

func TestNextEntryRow(t *testing.T) {
	fx := newFixture(t)
	svc := NewService(fx.settings)
	require.True(t, svc.UpdateCell(context.Background(), CellUpdate{Cell: "C3", Value: workbook.Text("x")}).Success)
	before := fileBytes(t, fx.settings.CashbookPath)

	row, err := svc.NextEntryRow(2, 1)
	require.NoError(t, err)
	assert.Equal(t, 2, row)

	row, err = svc.NextEntryRow(3, 1)
	require.NoError(t, err)
	assert.Equal(t, 5, row)

	row, err = svc.NextEntryRow(3, 2)
	require.NoError(t, err)
	assert.Equal(t, 5, row)

	_, err = svc.NextEntryRow(1, 1)
	assert.ErrorIs(t, err, apperr.ErrInvalidInput)
	assert.Equal(t, before, fileBytes(t, fx.settings.CashbookPath))
}

type countingObserver struct {
	mu           sync.Mutex
	mutations    map[Operation]string
	transactions int
}

func (o *countingObserver) ObserveMutation(op Operation, outcome string, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.mutations[op] = outcome
}

func (o *countingObserver) ObserveTransaction(Operation, string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.transactions++
}

type memoryRecorder struct{ subs []Submission }

func (m *memoryRecorder) RecordSubmission(_ context.Context, s Submission) error {
	m.subs = append(m.subs, s)
	return nil
}

func TestServiceReportsToObserverAndRecorder(t *testing.T) {
	fx := newFixture(t)
	fx.settings.MainLedgerPath = ""
	fx.settings.TrialBalancePath = ""
	obs := &countingObserver{mutations: map[Operation]string{}}
	rec := &memoryRecorder{}
	svc := NewService(fx.settings, WithObserver(obs), WithRecorder(rec))

	r := svc.SubmitPayment(context.Background(), Payment{
		Institution: "Acme", Employee: Employee{Name: "J.Silva", AccountNo: "123"},
		Capital: MustAmount("1"), ChequeNo: "C", AccountNo: "123", Bank: "HNB",
		FirstEntryRow: 3, Date: "2024-03-01",
	})
	require.True(t, r.Success, r.Error)
	assert.Equal(t, "success", obs.mutations[OpCashbook])
	assert.Equal(t, "success", obs.mutations[OpPersonalAccount])
	assert.Equal(t, 1, obs.transactions)
	require.Len(t, rec.subs, 1)
	assert.Equal(t, []int{3}, rec.subs[0].Rows)
	assert.Len(t, rec.subs[0].Downstream, 1)
	assert.NotEmpty(t, rec.subs[0].ID)
}

func TestSubmitPaymentLedgerColumnsFromRequest(t *testing.T) {
	fx := newFixture(t)
	fx.settings.LedgerDebitColumn = ""
	fx.settings.LedgerInterestColumn = ""
	svc := NewService(fx.settings)

	var p Payment
	require.NoError(t, jsonUnmarshal(`{
		"institute": "Acme",
		"employee": {"name": "J.Silva", "accountNo": "123"},
		"capitalAmount": "200",
		"interestAmount": "",
		"cheqNo": "CHQ2",
		"accNo": "123",
		"bankName": "HNB",
		"firstEntry": 3,
		"date": "2024-03-01",
		"ledger_debit_column": "N",
		"ledger_interest_column": "O"
	}`, &p))
	assert.Equal(t, "N", p.DebitColumn)

	r := svc.SubmitPayment(context.Background(), p)
	require.True(t, r.Success, r.Error)
	downstream := r.Details["downstream"].([]DownstreamResult)
	var seen bool
	for _, d := range downstream {
		if d.Operation == OpMainLedger {
			seen = true
			assert.True(t, d.Result.Success, d.Result.Error)
		}
	}
	assert.True(t, seen)
	assert.Equal(t, "1200", cellValue(t, fx.settings.MainLedgerPath, "Ledger", "N4"))

	t.Run("batch", func(t *testing.T) {
		r := svc.SubmitBatchPayment(context.Background(), BatchPayment{
			Date: "2024-03-02", FirstEntryRow: 3, DebitColumn: "N", InterestColumn: "O",
			Employees: []BatchEntry{{Institution: "Acme", Name: "J.Silva", AccountNo: "123", Bank: "HNB", Capital: MustAmount("5")}},
		})
		require.True(t, r.Success, r.Error)
		assert.Equal(t, "1205", cellValue(t, fx.settings.MainLedgerPath, "Ledger", "N4"))
	})

	t.Run("without columns the main ledger write fails", func(t *testing.T) {
		p.DebitColumn, p.InterestColumn = "", ""
		r := svc.SubmitPayment(context.Background(), p)
		require.True(t, r.Success, r.Error)
		for _, d := range r.Details["downstream"].([]DownstreamResult) {
			if d.Operation == OpMainLedger {
				assert.Equal(t, apperr.InvalidInput, d.Result.Kind)
			}
		}
		assert.Equal(t, "1205", cellValue(t, fx.settings.MainLedgerPath, "Ledger", "N4"))
	})
}

func TestNonNumericAmountIsInvalidInput(t *testing.T) {
	fx := newFixture(t)
	svc := NewService(fx.settings)
	before := fileBytes(t, fx.settings.CashbookPath)

	var p Payment
	require.NoError(t, jsonUnmarshal(`{"institute":"Acme","employee":{"name":"J.Silva"},"capitalAmount":"abc",
		"cheqNo":"C","accNo":"123","bankName":"HNB","firstEntry":3,"date":"2024-03-01"}`, &p))
	r := svc.SubmitPayment(context.Background(), p)
	assert.False(t, r.Success)
	assert.Equal(t, apperr.InvalidInput, r.Kind)
	assert.Contains(t, r.Error, `"abc"`)
	assert.Equal(t, before, fileBytes(t, fx.settings.CashbookPath))

	var b BatchPayment
	require.NoError(t, jsonUnmarshal(`{"date":"2024-03-01","first_entry":3,
		"employees":[{"institution":"Acme","name":"J.Silva","accNo":"123","interestAmount":"1,000"}]}`, &b))
	r = svc.SubmitBatchPayment(context.Background(), b)
	assert.Equal(t, apperr.InvalidInput, r.Kind)

	var tb TrialBalanceUpdate
	require.NoError(t, jsonUnmarshal(`{"date":"2024-03-01","capital":"x"}`, &tb))
	assert.Equal(t, apperr.InvalidInput, svc.UpdateCapitalTrialBalance(context.Background(), tb).Kind)
}

func TestPersonalAccountScanHorizon(t *testing.T) {
	ctx := context.Background()
	req := PersonalAccountUpdate{
		EmployeeName: "J.Silva", AccountNo: "123", Institution: "Acme", Date: "2024-02-01",
		Interest: MustAmount("10"),
	}

	fx := newFixture(t)
	before := fileBytes(t, fx.personal)
	r := NewService(fx.settings, WithScanner(locator.Scanner{Horizon: 2})).UpdatePersonalAccount(ctx, req)
	assert.False(t, r.Success)
	assert.Equal(t, apperr.NoCapacity, r.Kind)
	assert.Equal(t, before, fileBytes(t, fx.personal))

	r = NewService(fx.settings, WithScanner(locator.Scanner{Horizon: 3})).UpdatePersonalAccount(ctx, req)
	require.True(t, r.Success, r.Error)
	assert.Equal(t, 4, r.RowUpdated)
}

func TestLegacyPersonalAccount(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t)
	require.NoError(t, os.Remove(fx.personal))
	legacy := filepath.Join(filepath.Dir(fx.personal), "J.Silva-123.xls")
	require.NoError(t, os.WriteFile(legacy, fileBytes(t, filepath.Join("..", "workbook", "testdata", "legacy.xls")), 0o644))
	svc := NewService(fx.settings)

	report, err := svc.ValidateCapitalLimit(ctx, LimitCheck{
		EmployeeName: "J.Silva", AccountNo: "123", Institution: "Acme", Capital: MustAmount("450"),
	})
	require.NoError(t, err)
	assert.True(t, report.Checked)
	assert.Equal(t, "J.Silva-123.xls", filepath.Base(report.FilePath))
	assert.Equal(t, "Ledger", report.Sheet)
	assert.Equal(t, 4, report.Row)
	assert.Equal(t, "500", report.Limit.String())

	_, err = svc.ValidateCapitalLimit(ctx, LimitCheck{
		EmployeeName: "J.Silva", AccountNo: "123", Institution: "Acme", Capital: MustAmount("600"),
	})
	assert.ErrorIs(t, err, apperr.ErrLimitExceeded)

	before := fileBytes(t, legacy)
	r := svc.UpdatePersonalAccount(ctx, PersonalAccountUpdate{
		EmployeeName: "J.Silva", AccountNo: "123", Institution: "Acme", Date: "2024-02-01",
		Interest: MustAmount("10"),
	})
	assert.False(t, r.Success)
	assert.Equal(t, apperr.Unsupported, r.Kind)
	assert.Contains(t, r.Error, "convert it to .xlsx")
	assert.Equal(t, before, fileBytes(t, legacy))
}
