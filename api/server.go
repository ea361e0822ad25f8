// Package api exposes the operational HTTP surface: authenticated
// triggers for collection and alert checking, plus run status. The
// user-facing product surface lives in the external web app; this
// server exists for schedulers and operators.
package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/pharmacheck/pricewatch/alert"
	"github.com/pharmacheck/pricewatch/ingest"
	"github.com/pharmacheck/pricewatch/scrape"
	"github.com/pharmacheck/pricewatch/store"
)

const maxStatusLimit = 100

// Server wires the HTTP handlers to the collection and alert engines.
type Server struct {
	store   *store.Store
	orch    *ingest.Orchestrator
	engine  *alert.Engine
	queries []string
	opts    scrape.Options
	secret  string
	logger  *slog.Logger
}

// NewServer creates a Server. secret is the bearer token schedulers
// must present; when empty, the protected endpoints always refuse.
func NewServer(st *store.Store, orch *ingest.Orchestrator, engine *alert.Engine, queries []string, opts scrape.Options, secret string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		store:   st,
		orch:    orch,
		engine:  engine,
		queries: queries,
		opts:    opts,
		secret:  secret,
		logger:  logger,
	}
}

// Router builds the chi routing tree.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)

	r.Group(func(r chi.Router) {
		r.Use(s.requireSecret)
		r.Post("/api/scraper/run", s.handleRunScrapers)
		r.Post("/api/cron/check-alerts", s.handleCheckAlerts)
		r.Get("/api/scraper/status", s.handleStatus)
	})

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// chainOutcome is the per-chain slot in the run response.
type chainOutcome struct {
	Inserted int    `json:"inserted,omitempty"`
	Errors   int    `json:"errors,omitempty"`
	Error    string `json:"error,omitempty"`
}

func (s *Server) handleRunScrapers(w http.ResponseWriter, r *http.Request) {
	chains := scrape.AllChains()
	if raw := r.URL.Query().Get("chain"); raw != "" {
		chain, err := scrape.ParseChain(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		chains = []scrape.Chain{chain}
	}

	s.logger.Info("api: collection triggered", "chains", len(chains))

	// The pass outlives the HTTP request deadline budget of typical
	// schedulers, but callers here are cron jobs that wait.
	reports := s.orch.Run(r.Context(), chains, s.queries, s.opts)

	results := make(map[string]chainOutcome, len(reports))
	for chain, rep := range reports {
		if rep.Err != nil {
			results[string(chain)] = chainOutcome{Error: rep.Err.Error()}
			continue
		}
		results[string(chain)] = chainOutcome{Inserted: rep.Inserted, Errors: rep.Errors}
	}

	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "results": results})
}

func (s *Server) handleCheckAlerts(w http.ResponseWriter, r *http.Request) {
	rep, err := s.engine.Check(r.Context())
	if err != nil {
		s.logger.Error("api: alert check failed", "error", err)
		writeError(w, http.StatusInternalServerError, "alert check failed")
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

// runView is the JSON projection of a collection run.
type runView struct {
	ID             string `json:"id"`
	Chain          string `json:"chain"`
	Status         string `json:"status"`
	StartedAt      int64  `json:"startedAt"`
	FinishedAt     *int64 `json:"finishedAt"`
	RecordsUpdated *int   `json:"recordsUpdated"`
	ErrorMessage   string `json:"errorMessage,omitempty"`
}

func toRunView(run store.Run) runView {
	v := runView{
		ID:             run.ID,
		Chain:          string(run.Chain),
		Status:         string(run.Status),
		StartedAt:      run.StartedAt.UnixMilli(),
		RecordsUpdated: run.RecordsUpdated,
		ErrorMessage:   run.ErrorMessage,
	}
	if run.FinishedAt != nil {
		ms := run.FinishedAt.UnixMilli()
		v.FinishedAt = &ms
	}
	return v
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if raw := r.URL.Query().Get("chain"); raw != "" {
		chain, err := scrape.ParseChain(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		limit := 10
		if l := r.URL.Query().Get("limit"); l != "" {
			n, err := strconv.Atoi(l)
			if err != nil || n < 1 {
				writeError(w, http.StatusBadRequest, "invalid limit")
				return
			}
			limit = min(n, maxStatusLimit)
		}
		runs, err := s.store.LastRuns(r.Context(), chain, limit)
		if err != nil {
			s.logger.Error("api: status failed", "error", err)
			writeError(w, http.StatusInternalServerError, "status unavailable")
			return
		}
		views := make([]runView, 0, len(runs))
		for _, run := range runs {
			views = append(views, toRunView(run))
		}
		writeJSON(w, http.StatusOK, map[string]any{"chain": chain, "runs": views})
		return
	}

	last, err := s.store.LastRunPerChain(r.Context())
	if err != nil {
		s.logger.Error("api: status failed", "error", err)
		writeError(w, http.StatusInternalServerError, "status unavailable")
		return
	}
	out := make(map[string]runView, len(last))
	for chain, run := range last {
		out[string(chain)] = toRunView(run)
	}
	writeJSON(w, http.StatusOK, map[string]any{"chains": out})
}

// Serve runs the HTTP server until ctx is cancelled, then drains.
func (s *Server) Serve(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.Router()}

	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()

	s.logger.Info("api: listening", "addr", addr)

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
