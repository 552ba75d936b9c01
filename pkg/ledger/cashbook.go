package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/shunichi-ikebuchi/loan-ledger/pkg/apperr"
	"github.com/shunichi-ikebuchi/loan-ledger/pkg/atomicfile"
	"github.com/shunichi-ikebuchi/loan-ledger/pkg/workbook"
)

// Cashbook labels written in column F.
const (
	LabelCapital  = "Capital"
	LabelInterest = "Interest"
)

// Employee identifies a borrower.
type Employee struct {
	Name      string `json:"name"`
	AccountNo string `json:"accountNo"`
}

// Payment is a single cashbook submission.
type Payment struct {
	Institution   string   `json:"institute"`
	Employee      Employee `json:"employee"`
	Capital       Amount   `json:"capitalAmount"`
	Interest      Amount   `json:"interestAmount"`
	BillNo        string   `json:"billNo,omitempty"`
	ChequeNo      string   `json:"cheqNo"`
	AccountNo     string   `json:"accNo"`
	Bank          string   `json:"bankName,omitempty"`
	Description   string   `json:"description,omitempty"`
	FirstEntryRow int      `json:"firstEntry"`
	Date          string   `json:"date"`

	// Main ledger column letters. Empty falls back to the configured ones.
	DebitColumn    string `json:"ledger_debit_column,omitempty"`
	InterestColumn string `json:"ledger_interest_column,omitempty"`
}

// BatchEntry is one payee of a batch submission.
type BatchEntry struct {
	Institution string `json:"institution"`
	Name        string `json:"name"`
	Capital     Amount `json:"capitalAmount"`
	Interest    Amount `json:"interestAmount"`
	AccountNo   string `json:"accNo"`
	Bank        string `json:"bankName,omitempty"`
	Description string `json:"description,omitempty"`
}

// BatchPayment writes several payees into consecutive cashbook blocks.
type BatchPayment struct {
	Date          string       `json:"date"`
	FirstEntryRow int          `json:"first_entry"`
	Employees     []BatchEntry `json:"employees"`

	DebitColumn    string `json:"ledger_debit_column,omitempty"`
	InterestColumn string `json:"ledger_interest_column,omitempty"`
}

// CellUpdate sets a single cashbook cell.
type CellUpdate struct {
	Sheet string        `json:"sheet"`
	Cell  string        `json:"cell"`
	Value workbook.Cell `json:"-"`
}

// DownstreamResult is the outcome of a secondary workbook write.
type DownstreamResult struct {
	Operation Operation `json:"operation"`
	Employee  string    `json:"employee,omitempty"`
	Result    Result    `json:"result"`
}

// cashbookEntry is the three-row block of one payee. Row-1 takes the
// institution, Row the capital line and Row+1 the interest line.
type cashbookEntry struct {
	date        string
	billNo      string
	chequeNo    string
	accountNo   string
	name        string
	institution string
	description string
	capital     Amount
	interest    Amount
	bankColumn  int
}

func (e cashbookEntry) writes(row int) []cellWrite {
	w := []cellWrite{
		{row, workbook.ColA, workbook.Text(e.date)},
		{row, workbook.ColB, workbook.Text(e.billNo)},
		{row, workbook.ColC, workbook.Text(e.chequeNo)},
		{row, workbook.ColD, workbook.Text(e.accountNo)},
		{row, workbook.ColE, workbook.Text(e.name)},
		{row - 1, workbook.ColE, workbook.Text(e.institution)},
		{row, workbook.ColF, workbook.Text(LabelCapital)},
		{row + 1, workbook.ColF, workbook.Text(LabelInterest)},
	}
	if e.capital.NonZero() {
		w = append(w, cellWrite{row, e.bankColumn, workbook.Decimal(e.capital.Decimal)})
	}
	if e.interest.NonZero() {
		w = append(w, cellWrite{row + 1, e.bankColumn, workbook.Decimal(e.interest.Decimal)})
	}
	w = append(w, cellWrite{row, workbook.ColM, workbook.Text(e.description)})
	return w
}

func (s *Service) bankColumn(bank string, capital, interest Amount) (int, error) {
	if !capital.NonZero() && !interest.NonZero() {
		return 0, nil
	}
	return s.banks.Column(bank)
}

func (s *Service) cashbookSheet(doc workbook.Document) (workbook.Sheet, error) {
	return doc.SheetByName(s.settings.CashbookSheet)
}

func (s *Service) cashbookPath() (string, error) {
	if s.settings.CashbookPath == "" {
		return "", apperr.New(apperr.InvalidInput, "ledger.cashbook", "cashbook path is not configured")
	}
	return s.settings.CashbookPath, nil
}

func (p Payment) entry(bankColumn int) cashbookEntry {
	billNo := p.BillNo
	if billNo == "" {
		billNo = DefaultBillNo
	}
	return cashbookEntry{
		date:        p.Date,
		billNo:      billNo,
		chequeNo:    p.ChequeNo,
		accountNo:   p.AccountNo,
		name:        p.Employee.Name,
		institution: p.Institution,
		description: p.Description,
		capital:     p.Capital,
		interest:    p.Interest,
		bankColumn:  bankColumn,
	}
}

func (s *Service) validatePayment(p Payment) (cashbookEntry, error) {
	if err := required("ledger.payment",
		[2]string{"institute", p.Institution},
		[2]string{"employee.name", p.Employee.Name},
		[2]string{"cheqNo", p.ChequeNo},
		[2]string{"accNo", p.AccountNo},
		[2]string{"date", p.Date},
	); err != nil {
		return cashbookEntry{}, err
	}
	if err := checkAmounts("ledger.payment", p.Capital, p.Interest); err != nil {
		return cashbookEntry{}, err
	}
	if !p.Capital.Set() && !p.Interest.Set() {
		return cashbookEntry{}, apperr.Wrap(apperr.InvalidInput, "ledger.payment", errNoAmount)
	}
	col, err := s.bankColumn(p.Bank, p.Capital, p.Interest)
	if err != nil {
		return cashbookEntry{}, err
	}
	return p.entry(col), nil
}

// SubmitPayment writes a payment into the cashbook, then into the personal
// account, both trial balance sheets and the main ledger. A cashbook failure
// fails the request; downstream failures are reported in
// Details["downstream"] and leave Success set.
func (s *Service) SubmitPayment(ctx context.Context, p Payment) Result {
	id := uuid.NewString()
	start := time.Now()
	slog.Info("Received payment", "id", id, "institution", p.Institution, "employee", p.Employee.Name, "date", p.Date)

	primary := s.observe(OpCashbook, start, s.submitPayment(ctx, p))
	sub := Submission{ID: id, Kind: OpCashbook, Date: p.Date, Entries: 1, Success: primary.Success, Error: primary.Error}
	if !primary.Success {
		s.record(ctx, sub)
		return primary
	}

	downstream := s.fanOut(ctx, []downstreamTarget{employeeTarget(p)})
	sub.Rows = []int{primary.RowUpdated}
	sub.Downstream = downstream
	s.record(ctx, sub)

	primary.Message = "Payment information updated successfully in Excel!"
	primary.Details = map[string]any{"id": id, "downstream": downstream}
	return primary
}

func (s *Service) submitPayment(ctx context.Context, p Payment) Result {
	entry, err := s.validatePayment(p)
	if err != nil {
		return failed(err)
	}
	path, err := s.cashbookPath()
	if err != nil {
		return failed(err)
	}

	if emp := employeeOf(p); p.Capital.NonZero() && s.settings.PersonalAccountRoot != "" {
		_, err := s.ValidateCapitalLimit(ctx, LimitCheck{
			EmployeeName: emp.Name,
			AccountNo:    emp.AccountNo,
			Institution:  p.Institution,
			Capital:      p.Capital,
		})
		switch {
		case apperr.KindOf(err) == apperr.LimitExceeded:
			return failed(err)
		case err != nil:
			slog.Warn("Capital limit pre-check skipped", "employee", p.Employee.Name, "error", err)
		}
	}

	row, err := atomicfile.Run(ctx, s.tx, path, func(doc workbook.Document) (int, error) {
		sheet, err := s.cashbookSheet(doc)
		if err != nil {
			return 0, err
		}
		row, err := s.scanner.ResolveEntryRow(sheet, p.FirstEntryRow)
		if err != nil {
			return 0, err
		}
		return row, apply(sheet, entry.writes(row))
	})
	if err != nil {
		return failed(err)
	}
	return Result{Success: true, RowUpdated: row, FilePath: path}
}

// SubmitBatchPayment validates every payee, reserves 3N+3 free rows and
// writes one block per payee. Nothing is written if any payee is invalid or
// the block is not free.
func (s *Service) SubmitBatchPayment(ctx context.Context, b BatchPayment) Result {
	id := uuid.NewString()
	start := time.Now()
	slog.Info("Received batch payment", "id", id, "employees", len(b.Employees), "date", b.Date)

	primary := s.observe(OpBatchCashbook, start, s.submitBatch(ctx, b))
	sub := Submission{ID: id, Kind: OpBatchCashbook, Date: b.Date, Entries: len(b.Employees), Success: primary.Success, Error: primary.Error}
	if !primary.Success {
		s.record(ctx, sub)
		return primary
	}

	targets := make([]downstreamTarget, 0, len(b.Employees))
	for _, e := range b.Employees {
		targets = append(targets, downstreamTarget{
			name:        e.Name,
			accountNo:   e.AccountNo,
			institution: e.Institution,
			date:        b.Date,
			capital:     e.Capital,
			interest:    e.Interest,
			description: e.Description,
			debitCol:    b.DebitColumn,
			interestCol: b.InterestColumn,
		})
	}
	downstream := s.fanOut(ctx, targets)
	sub.Rows = primary.Rows
	sub.Downstream = downstream
	s.record(ctx, sub)

	primary.Message = "Batch payment information updated successfully in Excel!"
	primary.Details = map[string]any{"id": id, "downstream": downstream}
	return primary
}

func (s *Service) submitBatch(ctx context.Context, b BatchPayment) Result {
	if b.Date == "" || b.FirstEntryRow == 0 || len(b.Employees) == 0 {
		return failed(apperr.New(apperr.InvalidInput, "ledger.batch", "date, first entry and employees list are required"))
	}
	entries := make([]cashbookEntry, 0, len(b.Employees))
	for i, e := range b.Employees {
		if err := required("ledger.batch",
			[2]string{"institution", e.Institution},
			[2]string{"name", e.Name},
			[2]string{"accNo", e.AccountNo},
		); err != nil {
			return failed(fmt.Errorf("employee %d (%s): %w", i+1, e.Name, err))
		}
		if err := checkAmounts("ledger.batch", e.Capital, e.Interest); err != nil {
			return failed(fmt.Errorf("employee %d (%s): %w", i+1, e.Name, err))
		}
		if !e.Capital.Set() && !e.Interest.Set() {
			return failed(apperr.Wrap(apperr.InvalidInput, "ledger.batch", fmt.Errorf("employee %d (%s): %w", i+1, e.Name, errNoAmount)))
		}
		col, err := s.bankColumn(e.Bank, e.Capital, e.Interest)
		if err != nil {
			return failed(fmt.Errorf("employee %d (%s): %w", i+1, e.Name, err))
		}
		entries = append(entries, cashbookEntry{
			date:        b.Date,
			billNo:      DefaultBillNo,
			accountNo:   e.AccountNo,
			name:        e.Name,
			institution: e.Institution,
			description: e.Description,
			capital:     e.Capital,
			interest:    e.Interest,
			bankColumn:  col,
		})
	}

	path, err := s.cashbookPath()
	if err != nil {
		return failed(err)
	}
	rows, err := atomicfile.Run(ctx, s.tx, path, func(doc workbook.Document) ([]int, error) {
		sheet, err := s.cashbookSheet(doc)
		if err != nil {
			return nil, err
		}
		row, err := s.scanner.ReserveBatchRows(sheet, b.FirstEntryRow, len(entries))
		if err != nil {
			return nil, err
		}
		rows := make([]int, 0, len(entries))
		for i, e := range entries {
			slog.Debug("Writing batch entry", "index", i+1, "employee", e.name, "row", row)
			if err := apply(sheet, e.writes(row)); err != nil {
				return nil, err
			}
			rows = append(rows, row)
			row += 3
		}
		return rows, nil
	})
	if err != nil {
		return failed(err)
	}
	return Result{Success: true, Rows: rows, RowUpdated: rows[0], FilePath: path}
}

// NextEntryRow reports, without writing, the row the next submission of
// count payees starting at hint would be written to.
func (s *Service) NextEntryRow(hint, count int) (int, error) {
	if hint < 2 || count < 1 {
		return 0, apperr.New(apperr.InvalidInput, "ledger.next_row", "hint must be at least 2 and count at least 1")
	}
	path, err := s.cashbookPath()
	if err != nil {
		return 0, err
	}
	return atomicfile.View(path, func(doc workbook.Document) (int, error) {
		sheet, err := s.cashbookSheet(doc)
		if err != nil {
			return 0, err
		}
		if count == 1 {
			return s.scanner.ResolveEntryRow(sheet, hint)
		}
		return s.scanner.ReserveBatchRows(sheet, hint, count)
	})
}

// UpdateCell writes one value into a cashbook cell.
func (s *Service) UpdateCell(ctx context.Context, u CellUpdate) Result {
	start := time.Now()
	return s.observe(OpCell, start, s.updateCell(ctx, u))
}

func (s *Service) updateCell(ctx context.Context, u CellUpdate) Result {
	if u.Cell == "" {
		return failed(apperr.New(apperr.InvalidInput, "ledger.cell", "cell and value are required"))
	}
	row, col, err := workbook.CellRef(u.Cell)
	if err != nil {
		return failed(err)
	}
	path, err := s.cashbookPath()
	if err != nil {
		return failed(err)
	}
	sheetName := u.Sheet
	if sheetName == "" {
		sheetName = s.settings.CashbookSheet
	}
	err = s.tx.Do(ctx, path, func(doc workbook.Document) error {
		sheet, err := doc.SheetByName(sheetName)
		if err != nil {
			return err
		}
		return sheet.SetCell(row, col, u.Value)
	})
	if err != nil {
		return failed(err)
	}
	return Result{
		Success:    true,
		Message:    fmt.Sprintf("Cell %s updated successfully", u.Cell),
		RowUpdated: row,
		FilePath:   path,
	}
}

// downstreamTarget carries what the secondary writers need for one payee.
type downstreamTarget struct {
	name        string
	accountNo   string
	institution string
	date        string
	capital     Amount
	interest    Amount
	description string
	billNo      string
	chequeNo    string
	debitCol    string
	interestCol string
}

func employeeOf(p Payment) Employee {
	e := p.Employee
	if e.AccountNo == "" {
		e.AccountNo = p.AccountNo
	}
	return e
}

func employeeTarget(p Payment) downstreamTarget {
	e := employeeOf(p)
	return downstreamTarget{
		name:        e.Name,
		accountNo:   e.AccountNo,
		institution: p.Institution,
		date:        p.Date,
		capital:     p.Capital,
		interest:    p.Interest,
		description: p.Description,
		billNo:      p.BillNo,
		chequeNo:    p.ChequeNo,
		debitCol:    p.DebitColumn,
		interestCol: p.InterestColumn,
	}
}

// maxDownstream bounds concurrent secondary writes. Writes to the same file
// are serialised by the transaction runner.
const maxDownstream = 4

// fanOut applies the secondary writes configured for each target. Every
// write is independent; a failure never cancels the others.
func (s *Service) fanOut(ctx context.Context, targets []downstreamTarget) []DownstreamResult {
	type job struct {
		op  Operation
		t   downstreamTarget
		run func() Result
	}
	var jobs []job
	for _, t := range targets {
		if s.settings.PersonalAccountRoot != "" {
			jobs = append(jobs, job{OpPersonalAccount, t, func() Result {
				return s.UpdatePersonalAccount(ctx, PersonalAccountUpdate{
					EmployeeName: t.name,
					AccountNo:    t.accountNo,
					Institution:  t.institution,
					Date:         t.date,
					Capital:      t.capital,
					Interest:     t.interest,
					Description:  t.description,
					BillNo:       t.billNo,
					ChequeNo:     t.chequeNo,
				})
			}})
		}
		tb := TrialBalanceUpdate{
			EmployeeName: t.name,
			AccountNo:    t.accountNo,
			Institution:  t.institution,
			Date:         t.date,
			Capital:      t.capital,
			Interest:     t.interest,
		}
		if s.settings.TrialBalancePath != "" {
			jobs = append(jobs,
				job{OpCapitalTrialBalance, t, func() Result { return s.UpdateCapitalTrialBalance(ctx, tb) }},
				job{OpInterestTrialBalance, t, func() Result { return s.UpdateInterestTrialBalance(ctx, tb) }},
			)
		}
		if s.settings.MainLedgerPath != "" {
			jobs = append(jobs, job{OpMainLedger, t, func() Result {
				return s.UpdateMainLedger(ctx, MainLedgerUpdate{
					EmployeeName:   t.name,
					AccountNo:      t.accountNo,
					Institution:    t.institution,
					Date:           t.date,
					DebitColumn:    t.debitCol,
					InterestColumn: t.interestCol,
					Capital:        t.capital,
					Interest:       t.interest,
				})
			}})
		}
	}

	results := make([]DownstreamResult, len(jobs))
	var g errgroup.Group
	g.SetLimit(maxDownstream)
	for i, j := range jobs {
		g.Go(func() error {
			r := j.run()
			if !r.Success {
				slog.Error("Downstream update failed", "operation", j.op, "employee", j.t.name, "error", r.Error)
			}
			results[i] = DownstreamResult{Operation: j.op, Employee: j.t.name, Result: r}
			return nil
		})
	}
	_ = g.Wait()
	return results
}
