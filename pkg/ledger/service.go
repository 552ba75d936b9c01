package ledger

import (
	"context"
	"log/slog"
	"time"

	"github.com/shunichi-ikebuchi/loan-ledger/pkg/atomicfile"
	"github.com/shunichi-ikebuchi/loan-ledger/pkg/locator"
)

// Observer is notified after every mutation and every payment submission.
type Observer interface {
	ObserveMutation(op Operation, outcome string, elapsed time.Duration)
	ObserveTransaction(kind Operation, outcome string)
}

// Submission summarises a payment request for the history log.
type Submission struct {
	ID         string
	Kind       Operation
	Date       string
	Entries    int
	Rows       []int
	Success    bool
	Error      string
	Downstream []DownstreamResult
	CreatedAt  time.Time
}

// Recorder persists submissions.
type Recorder interface {
	RecordSubmission(ctx context.Context, s Submission) error
}

// Service applies payments to the configured workbooks.
type Service struct {
	settings Settings
	tx       *atomicfile.Runner
	banks    *BankRouter
	scanner  locator.Scanner
	observer Observer
	recorder Recorder
	now      func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithRunner sets the transaction runner shared by all mutators.
func WithRunner(r *atomicfile.Runner) Option {
	return func(s *Service) { s.tx = r }
}

// WithBankRouter replaces the default bank routing table.
func WithBankRouter(b *BankRouter) Option {
	return func(s *Service) { s.banks = b }
}

// WithScanner narrows the empty-row scan horizon.
func WithScanner(sc locator.Scanner) Option {
	return func(s *Service) { s.scanner = sc }
}

// WithObserver reports mutation outcomes, e.g. to metrics.
func WithObserver(o Observer) Option {
	return func(s *Service) { s.observer = o }
}

// WithRecorder stores each submission.
func WithRecorder(r Recorder) Option {
	return func(s *Service) { s.recorder = r }
}

// NewService creates a Service.
func NewService(settings Settings, opts ...Option) *Service {
	if settings.CashbookSheet == "" {
		settings.CashbookSheet = "Sheet1"
	}
	s := &Service{
		settings: settings,
		scanner:  locator.Default,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.tx == nil {
		s.tx = atomicfile.New()
	}
	if s.banks == nil {
		s.banks = DefaultBankRouter()
	}
	return s
}

// Banks returns the bank routing table.
func (s *Service) Banks() *BankRouter { return s.banks }

// observe logs and reports the outcome of one mutation.
func (s *Service) observe(op Operation, start time.Time, r Result) Result {
	elapsed := time.Since(start)
	if r.Success {
		slog.Info("Mutation completed", "operation", op, "action", r.Action, "row", r.RowUpdated, "elapsed", elapsed)
	} else {
		slog.Error("Mutation failed", "operation", op, "kind", r.Kind, "error", r.Error)
	}
	if s.observer != nil {
		s.observer.ObserveMutation(op, r.Outcome(), elapsed)
	}
	return r
}

func (s *Service) record(ctx context.Context, sub Submission) {
	if s.observer != nil {
		outcome := "success"
		if !sub.Success {
			outcome = "failure"
		}
		s.observer.ObserveTransaction(sub.Kind, outcome)
	}
	if s.recorder == nil {
		return
	}
	sub.CreatedAt = s.now()
	if err := s.recorder.RecordSubmission(ctx, sub); err != nil {
		slog.Warn("Failed to record submission", "id", sub.ID, "error", err)
	}
}
