package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/shunichi-ikebuchi/loan-ledger/internal/api"
	"github.com/shunichi-ikebuchi/loan-ledger/pkg/directory"
)

var (
	listenPort int
	legacy     bool
)

// serveCmd represents the serve command.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	Long: `Run the HTTP API for payment submission and the institution directory.

Routes are served under /api/v1. With --legacy the body-addressed routes of
the existing browser front end (/submitPayment, /getInstitutions, ...) are
mounted as well. Prometheus metrics are exposed on /metrics.

Example:
  ledgerd serve --port 8080 --legacy`,
	Run: runServe,
}

func init() {
	serveCmd.Flags().IntVar(&listenPort, "port", 0, "listen port (default from PORT, 8080)")
	serveCmd.Flags().BoolVar(&legacy, "legacy", true, "mount the legacy front end routes")
}

func runServe(cmd *cobra.Command, args []string) {
	logLevel := slog.LevelInfo
	if debug {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	})))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a := loadApp(ctx, true)
	defer func() {
		if err := a.Close(); err != nil {
			slog.Error("failed to close databases", "error", err)
		}
	}()

	dirPath := a.paths.GetDirectoryDBPath()
	exitOnError(a.paths.EnsureParentDir(dirPath), "failed to prepare data directory")
	store, err := directory.Open(dirPath)
	exitOnError(err, "failed to open directory database")
	defer func() {
		if err := store.Close(); err != nil {
			slog.Error("failed to close directory database", "error", err)
		}
	}()
	slog.Info("Databases initialized", "history", a.paths.GetHistoryDBPath(), "directory", dirPath)

	port := listenPort
	if port == 0 {
		port = a.cfg.Port
	}
	addr := fmt.Sprintf(":%d", port)

	server := &http.Server{
		Addr: addr,
		Handler: api.NewRouter(api.Deps{
			Ledger:    a.svc,
			Directory: store,
			History:   a.history,
			Metrics:   a.metrics.Handler(),
			Legacy:    legacy,

			AllowedOrigins: a.cfg.CORSAllowedOrigins,
		}),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 75 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("Starting ledger API", "addr", addr)
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			exitOnError(err, "server error")
		}
	case <-ctx.Done():
		slog.Info("Shutting down server")
		// In-flight workbook transactions finish before the process exits
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
	}

	slog.Info("Server stopped")
}
