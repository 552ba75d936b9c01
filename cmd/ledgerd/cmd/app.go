package cmd

import (
	"context"
	"errors"
	"log/slog"

	"github.com/shunichi-ikebuchi/loan-ledger/pkg/atomicfile"
	"github.com/shunichi-ikebuchi/loan-ledger/pkg/config"
	"github.com/shunichi-ikebuchi/loan-ledger/pkg/db"
	"github.com/shunichi-ikebuchi/loan-ledger/pkg/ledger"
	"github.com/shunichi-ikebuchi/loan-ledger/pkg/metrics"
	"github.com/shunichi-ikebuchi/loan-ledger/pkg/pathutil"
	"github.com/shunichi-ikebuchi/loan-ledger/pkg/snapshot"
)

// app holds the components shared by the commands.
type app struct {
	cfg     *config.Config
	paths   *pathutil.PathResolver
	svc     *ledger.Service
	history *db.History
	metrics *metrics.Collector
	closers []func() error
}

// newApp wires the ledger service from cfg. The history database is always
// opened; metrics are collected only when withMetrics is set.
func newApp(ctx context.Context, cfg *config.Config, withMetrics bool) (*app, error) {
	a := &app{
		cfg: cfg,
		paths: pathutil.New(pathutil.Config{
			DataDir:             cfg.Data.Dir,
			HistoryDBPath:       cfg.Data.HistoryDBPath,
			DirectoryDBPath:     cfg.Data.DirectoryPath,
			PersonalAccountRoot: cfg.Workbooks.PersonalAccountRoot,
		}),
	}

	opts := []ledger.Option{}

	if path := cfg.Workbooks.BankRoutingFile; path != "" {
		banks, err := ledger.LoadBankRouter(path)
		if err != nil {
			return nil, err
		}
		opts = append(opts, ledger.WithBankRouter(banks))
	}

	archiver, err := snapshot.Open(ctx, snapshot.Config{
		Driver: snapshot.Driver(cfg.Snapshot.Driver),
		FSRoot: cfg.Snapshot.FSRoot,
		S3: snapshot.S3Config{
			Region:          cfg.Snapshot.S3Region,
			Bucket:          cfg.Snapshot.S3Bucket,
			Prefix:          cfg.Snapshot.S3Prefix,
			Endpoint:        cfg.Snapshot.S3Endpoint,
			AccessKeyID:     cfg.Snapshot.S3KeyID,
			SecretAccessKey: cfg.Snapshot.S3Secret,
			PathStyle:       cfg.Snapshot.PathStyle,
		},
	})
	if err != nil {
		return nil, err
	}
	if archiver != nil {
		slog.Info("Workbook snapshots enabled", "driver", cfg.Snapshot.Driver)
		opts = append(opts, ledger.WithRunner(atomicfile.New(atomicfile.WithArchiver(archiver))))
	}

	a.checkPaths()

	dbPath := a.paths.GetHistoryDBPath()
	if err := a.paths.EnsureParentDir(dbPath); err != nil {
		return nil, err
	}
	slog.Debug("Opening history database", "path", dbPath)
	conn, err := db.Open(dbPath)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, conn.Close)
	a.history = db.NewHistory(conn)
	opts = append(opts, ledger.WithRecorder(a.history))

	if withMetrics {
		a.metrics = metrics.New()
		opts = append(opts, ledger.WithObserver(a.metrics))
	}

	a.svc = ledger.NewService(ledger.Settings{
		CashbookPath:         cfg.Workbooks.CashbookPath,
		CashbookSheet:        cfg.Workbooks.CashbookSheet,
		MainLedgerPath:       cfg.Workbooks.MainLedgerPath,
		LedgerDebitColumn:    cfg.Workbooks.LedgerDebitColumn,
		LedgerInterestColumn: cfg.Workbooks.LedgerInterestColumn,
		TrialBalancePath:     cfg.Workbooks.TrialBalancePath,
		CapitalSheet:         cfg.Workbooks.CapitalSheet,
		InterestSheet:        cfg.Workbooks.InterestSheet,
		PersonalAccountRoot:  cfg.Workbooks.PersonalAccountRoot,
	}, opts...)

	return a, nil
}

// loadApp loads and validates configuration, then wires the app.
func loadApp(ctx context.Context, withMetrics bool, required ...[]string) *app {
	cfg, err := config.Load(getConfigFile())
	exitOnError(err, "failed to load configuration")

	if len(required) == 0 {
		required = cfg.ServeRequirements()
	}
	exitOnError(cfg.Validate(required...), "invalid configuration")

	a, err := newApp(ctx, cfg, withMetrics)
	exitOnError(err, "failed to initialize")
	return a
}

// checkPaths warns about configured workbook locations that do not exist.
// Missing files are reported per request as well, so startup continues.
func (a *app) checkPaths() {
	if p := a.cfg.Workbooks.CashbookPath; p != "" && !a.paths.FileExists(p) {
		slog.Warn("Cashbook not found", "path", p)
	}
	for _, p := range []string{a.cfg.Workbooks.MainLedgerPath, a.cfg.Workbooks.TrialBalancePath} {
		if p != "" && !a.paths.FileExists(p) {
			slog.Warn("Workbook not found", "path", p)
		}
	}
	if root := a.paths.GetPersonalAccountRoot(); root != "" && !a.paths.IsDir(root) {
		slog.Warn("Personal account folder not found", "path", root)
	}
}

func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	return errors.Join(errs...)
}
