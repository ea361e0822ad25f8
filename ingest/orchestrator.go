package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/pharmacheck/pricewatch/scrape"
	"github.com/pharmacheck/pricewatch/store"
)

// ChainReport is the per-chain outcome of an orchestration pass.
// Err is set only when the chain's run ended FAILED; Inserted/Errors
// describe the persisted batch otherwise.
type ChainReport struct {
	Inserted int
	Errors   int
	Err      error
}

// Orchestrator dispatches chain collectors, tracks one collection_runs
// row per chain, and hands results to the Persister. Chains are
// independent failure domains: all dispatched chains settle, none is
// cancelled because a sibling failed.
type Orchestrator struct {
	registry  *scrape.Registry
	store     *store.Store
	persister *Persister
	logger    *slog.Logger
}

// NewOrchestrator creates an Orchestrator.
func NewOrchestrator(reg *scrape.Registry, st *store.Store, persister *Persister, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{registry: reg, store: st, persister: persister, logger: logger}
}

// Run collects the given chains concurrently and returns a report per
// chain once every one of them has settled.
func (o *Orchestrator) Run(ctx context.Context, chains []scrape.Chain, queries []string, opts scrape.Options) map[scrape.Chain]ChainReport {
	var (
		mu      sync.Mutex
		wg      sync.WaitGroup
		reports = make(map[scrape.Chain]ChainReport, len(chains))
	)

	for _, chain := range chains {
		wg.Add(1)
		go func(chain scrape.Chain) {
			defer wg.Done()
			rep := o.runChain(ctx, chain, queries, opts)
			mu.Lock()
			reports[chain] = rep
			mu.Unlock()
		}(chain)
	}

	wg.Wait()
	return reports
}

// runChain executes one chain's full lifecycle:
// RUNNING -> collect -> persist -> exactly one of SUCCESS/PARTIAL/FAILED.
func (o *Orchestrator) runChain(ctx context.Context, chain scrape.Chain, queries []string, opts scrape.Options) (rep ChainReport) {
	runID, err := o.store.CreateRun(ctx, chain)
	if err != nil {
		// Store unreachable: infrastructure failure, no audit row possible.
		return ChainReport{Err: fmt.Errorf("ingest: create run for %s: %w", chain, err)}
	}

	// A panicking collector still gets its run finalized: the audit
	// trail must never show an eternal RUNNING row.
	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("ingest: collector for %s panicked: %v", chain, r)
			o.finishRun(ctx, runID, store.RunFailed, -1, err.Error())
			rep = ChainReport{Err: err}
		}
	}()

	collector, ok := o.registry.Get(chain)
	if !ok {
		err := fmt.Errorf("ingest: no collector registered for chain %s", chain)
		o.finishRun(ctx, runID, store.RunFailed, -1, err.Error())
		return ChainReport{Err: err}
	}

	result, err := collector.Collect(ctx, queries, opts)
	if err != nil {
		// The whole pass failed (browser startup, session death).
		// Record the cause on the run AND surface it to the caller.
		o.finishRun(ctx, runID, store.RunFailed, -1, err.Error())
		return ChainReport{Err: err}
	}

	inserted, failed := o.persister.Persist(ctx, result.Observations)

	status := store.RunSuccess
	if len(result.Errors) > 0 || failed > 0 {
		status = store.RunPartial
	}
	o.finishRun(ctx, runID, status, inserted, strings.Join(result.Errors, "\n"))

	o.logger.Info("ingest: chain settled",
		"chain", chain, "status", status, "inserted", inserted,
		"persist_errors", failed, "collect_errors", len(result.Errors))

	return ChainReport{Inserted: inserted, Errors: failed}
}

func (o *Orchestrator) finishRun(ctx context.Context, runID string, status store.RunStatus, records int, errMsg string) {
	if err := o.store.FinishRun(ctx, runID, status, records, errMsg); err != nil {
		o.logger.Error("ingest: finish run failed", "run_id", runID, "status", status, "error", err)
	}
}
