package scrape

import (
	"context"
	"sync"
)

// Collector drives one chain's site to produce price observations.
//
// Collect processes queries independently: a failed query is formatted
// into Result.Errors and the batch continues. Only failures that prevent
// the whole pass (browser startup, session death) are returned as an
// error. The browser session is scoped to the call and released on every
// exit path.
type Collector interface {
	Chain() Chain
	Collect(ctx context.Context, queries []string, opts Options) (*Result, error)
}

// Registry maps chain identifiers to Collector implementations so the
// orchestrator dispatches dynamically and new chains plug in without
// touching it.
type Registry struct {
	mu         sync.RWMutex
	collectors map[Chain]Collector
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{collectors: make(map[Chain]Collector)}
}

// Register adds or replaces the collector for its chain.
func (r *Registry) Register(c Collector) {
	r.mu.Lock()
	r.collectors[c.Chain()] = c
	r.mu.Unlock()
}

// Get returns the collector for a chain.
func (r *Registry) Get(chain Chain) (Collector, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.collectors[chain]
	return c, ok
}

// Chains lists registered chains in the canonical dispatch order.
func (r *Registry) Chains() []Chain {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Chain
	for _, c := range AllChains() {
		if _, ok := r.collectors[c]; ok {
			out = append(out, c)
		}
	}
	return out
}
