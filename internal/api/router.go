package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/shunichi-ikebuchi/loan-ledger/pkg/db"
	"github.com/shunichi-ikebuchi/loan-ledger/pkg/directory"
	"github.com/shunichi-ikebuchi/loan-ledger/pkg/ledger"
)

// Deps are the collaborators behind the routes. Nil collaborators leave
// their routes unmounted.
type Deps struct {
	Ledger    *ledger.Service
	Directory *directory.Store
	History   *db.History
	Metrics   http.Handler
	// Legacy mounts the body-addressed routes of the original front end.
	Legacy bool
	// AllowedOrigins lists the browser origins for CORS. Empty allows all.
	AllowedOrigins []string
}

// NewRouter assembles the HTTP handler.
func NewRouter(d Deps) http.Handler {
	var (
		ledgerHandler    *LedgerHandler
		directoryHandler *DirectoryHandler
	)
	if d.Ledger != nil {
		ledgerHandler = NewLedgerHandler(d.Ledger)
	}
	if d.Directory != nil {
		directoryHandler = NewDirectoryHandler(d.Directory)
	}

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins(d.AllowedOrigins),
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type", "Authorization"},
		MaxAge:         300,
	}))

	r.Route("/api/v1", func(r chi.Router) {
		if h := ledgerHandler; h != nil {
			r.Get("/banks", h.Banks)
			r.Post("/payments", h.SubmitPayment)
			r.Post("/payments/batch", h.SubmitBatchPayment)
			r.Post("/cells", h.UpdateCell)
			r.Get("/cashbook/next-row", h.NextRow)
			r.Post("/personal-accounts", h.UpdatePersonalAccount)
			r.Post("/personal-accounts/limit-check", h.CheckLimit)
			r.Post("/main-ledger", h.UpdateMainLedger)
			r.Post("/trial-balance/capital", h.UpdateCapitalTrialBalance)
			r.Post("/trial-balance/interest", h.UpdateInterestTrialBalance)
		}

		if h := directoryHandler; h != nil {
			r.Route("/institutions", func(r chi.Router) {
				r.Get("/", h.List)
				r.Post("/", h.Create)
				r.Get("/{name}", h.Get)
				r.Put("/{name}", h.Rename)
				r.Delete("/{name}", h.Delete)
				r.Post("/{name}/employees", h.AddEmployees)
				r.Put("/{name}/employees/{id}", h.UpdateEmployee)
				r.Delete("/{name}/employees/{id}", h.DeleteEmployee)
			})
		}

		if d.History != nil {
			h := NewHistoryHandler(d.History)
			r.Get("/history", h.List)
			r.Get("/history/{id}", h.Get)
			r.Get("/stats", h.Stats)
		}
	})

	if d.Legacy {
		mountLegacy(r, ledgerHandler, directoryHandler)
	}

	if d.Metrics != nil {
		r.Handle("/metrics", d.Metrics)
	}

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	return r
}

func origins(allowed []string) []string {
	if len(allowed) == 0 {
		return []string{"*"}
	}
	return allowed
}
