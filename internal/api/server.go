// Package api exposes the ledger over HTTP.
package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-playground/validator/v10"

	"github.com/cleared-dev/ledger/internal/app"
)

// Server routes HTTP requests to the ledger services.
type Server struct {
	app      *app.App
	validate *validator.Validate
	log      *slog.Logger
	router   chi.Router
}

// New builds the router. A nil logger discards output.
func New(a *app.App, log *slog.Logger) *Server {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	s := &Server{
		app:      a,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		log:      log,
	}
	s.router = s.routes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(s.log))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	origins := s.app.Config.Server.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"https://*", "http://*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Get("/v1/tenants", s.listTenants)
	r.Route("/v1/tenants/{tenantID}", func(r chi.Router) {
		r.Get("/accounts", s.listAccounts)
		r.Post("/accounts", s.createAccount)

		r.Get("/transactions", s.listTransactions)
		r.Post("/transactions", s.postTransaction)
		r.Get("/transactions/{txnID}", s.getTransaction)
		r.Post("/transactions/{txnID}/reverse", s.reverseTransaction)

		r.Get("/bank-lines", s.listBankLines)
		r.Post("/bank-lines/import", s.importBankLines)
		r.Post("/bank-lines/{lineID}/match", s.matchBankLine)
		r.Post("/bank-lines/{lineID}/suggest", s.suggestBankLine)

		r.Get("/reserve/rules", s.listReserveRules)
		r.Post("/reserve/evaluate", s.evaluateReserve)
		r.Get("/reserve/preview/{txnID}", s.previewReserve)

		r.Get("/watchdog", s.runWatchdog)
		r.Get("/balances/verify", s.verifyBalances)
	})
	return r
}

// requestLogger is middleware.Logger writing through slog.
func requestLogger(log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			defer func() {
				log.Info("http request",
					"method", r.Method,
					"path", r.URL.Path,
					"status", ww.Status(),
					"bytes", ww.BytesWritten(),
					"duration", time.Since(start),
					"request_id", middleware.GetReqID(r.Context()),
				)
			}()
			next.ServeHTTP(ww, r)
		})
	}
}
