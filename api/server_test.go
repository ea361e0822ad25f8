package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/pharmacheck/pricewatch/alert"
	"github.com/pharmacheck/pricewatch/ingest"
	"github.com/pharmacheck/pricewatch/notify"
	"github.com/pharmacheck/pricewatch/scrape"
	"github.com/pharmacheck/pricewatch/store"
)

const testSecret = "cron-secret"

type stubCollector struct {
	chain  scrape.Chain
	result *scrape.Result
}

func (s *stubCollector) Chain() scrape.Chain { return s.chain }

func (s *stubCollector) Collect(ctx context.Context, queries []string, opts scrape.Options) (*scrape.Result, error) {
	return s.result, nil
}

func newTestServer(t *testing.T) (*Server, *store.Store) {
	t.Helper()
	st := store.New(store.OpenMemory(t))

	reg := scrape.NewRegistry()
	reg.Register(&stubCollector{chain: scrape.ChainCruzVerde, result: &scrape.Result{
		Chain: scrape.ChainCruzVerde,
		Observations: []scrape.Observation{{
			ProductName: "Paracetamol 500mg", Price: 1290,
			StoreID: "online", StoreName: "Cruz Verde Online",
			Chain: scrape.ChainCruzVerde,
		}},
	}})

	orch := ingest.NewOrchestrator(reg, st, ingest.NewPersister(st, nil), nil)
	engine := alert.NewEngine(st, notify.NewDispatcher(nil, nil, "", nil), nil)
	srv := NewServer(st, orch, engine, []string{"paracetamol"}, scrape.Options{}, testSecret, nil)
	return srv, st
}

func do(t *testing.T, h http.Handler, method, target, token string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

// WHAT: protected endpoints refuse missing, wrong, and unconfigured
// secrets with 401 and the JSON error body.
// WHY: the triggers start real browser work; fail closed.
func TestAuthFailsClosed(t *testing.T) {
	srv, _ := newTestServer(t)
	router := srv.Router()

	for name, token := range map[string]string{"missing": "", "wrong": "not-it"} {
		t.Run(name, func(t *testing.T) {
			rec := do(t, router, http.MethodPost, "/api/cron/check-alerts", token)
			if rec.Code != http.StatusUnauthorized {
				t.Fatalf("status = %d, want 401", rec.Code)
			}
			var body map[string]string
			if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil || body["error"] != "Unauthorized" {
				t.Fatalf("body = %s", rec.Body.String())
			}
		})
	}

	t.Run("no secret configured", func(t *testing.T) {
		srv.secret = ""
		rec := do(t, srv.Router(), http.MethodPost, "/api/cron/check-alerts", "anything")
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("status = %d, want 401", rec.Code)
		}
	})
}

// WHAT: /healthz answers without auth.
func TestHealthOpen(t *testing.T) {
	srv, _ := newTestServer(t)
	rec := do(t, srv.Router(), http.MethodGet, "/healthz", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}

// WHAT: triggering one chain runs it, persists its rows, and reports
// per-chain counts; the run then shows up in status.
func TestRunScrapersAndStatus(t *testing.T) {
	srv, st := newTestServer(t)
	router := srv.Router()

	rec := do(t, router, http.MethodPost, "/api/scraper/run?chain=CRUZ_VERDE", testSecret)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var body struct {
		OK      bool                    `json:"ok"`
		Results map[string]chainOutcome `json:"results"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !body.OK || body.Results["CRUZ_VERDE"].Inserted != 1 {
		t.Fatalf("body = %+v", body)
	}

	med, err := st.FindMedicationByCommercialName(context.Background(), "Paracetamol 500mg")
	if err != nil {
		t.Fatalf("medication not persisted: %v", err)
	}
	if med.ID == "" {
		t.Fatal("empty medication ID")
	}

	rec = do(t, router, http.MethodGet, "/api/scraper/status?chain=CRUZ_VERDE&limit=5", testSecret)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var status struct {
		Runs []runView `json:"runs"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &status); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(status.Runs) != 1 || status.Runs[0].Status != "SUCCESS" {
		t.Fatalf("runs = %+v", status.Runs)
	}
}

// WHAT: an unknown chain identifier is rejected before any run starts.
func TestRunScrapersRejectsUnknownChain(t *testing.T) {
	srv, _ := newTestServer(t)
	rec := do(t, srv.Router(), http.MethodPost, "/api/scraper/run?chain=WALGREENS", testSecret)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

// WHAT: the alert trigger returns the check report.
func TestCheckAlertsEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)
	rec := do(t, srv.Router(), http.MethodPost, "/api/cron/check-alerts", testSecret)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var rep alert.Report
	if err := json.Unmarshal(rec.Body.Bytes(), &rep); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if rep.Total != 0 || rep.Fired != 0 {
		t.Fatalf("report = %+v, want empty", rep)
	}
}
