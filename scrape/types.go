// Package scrape collects medication price observations from pharmacy
// retail chains. Each chain gets its own Collector behind a shared
// contract; everything browser-specific stays inside this package so the
// rest of the system can be driven with fixed observation batches.
package scrape

import (
	"fmt"
	"time"
)

// Chain identifies a supported pharmacy retail brand.
type Chain string

const (
	ChainCruzVerde  Chain = "CRUZ_VERDE"
	ChainSalcobrand Chain = "SALCOBRAND"
	ChainAhumada    Chain = "AHUMADA"
	ChainSimilares  Chain = "SIMILARES"
)

// AllChains lists every supported chain in dispatch order.
func AllChains() []Chain {
	return []Chain{ChainCruzVerde, ChainSalcobrand, ChainAhumada, ChainSimilares}
}

// ParseChain validates a chain identifier from an external caller.
func ParseChain(s string) (Chain, error) {
	for _, c := range AllChains() {
		if string(c) == s {
			return c, nil
		}
	}
	return "", fmt.Errorf("scrape: unsupported chain %q", s)
}

// Observation is one (product, price, branch) tuple produced by a single
// collection pass.
type Observation struct {
	ProductName string
	EAN         string // empty = not exposed by the source
	Price       int    // CLP, integer pesos
	InStock     *bool  // nil = unknown
	StoreID     string // branch code, or a stable placeholder like "online"
	StoreName   string
	StoreAddr   string
	Commune     string
	Region      string
	Chain       Chain
}

// Result is the outcome of one Collect invocation. Errors holds one
// formatted entry per failed query; a non-empty Errors with a non-nil
// Result still counts as a (partial) success.
type Result struct {
	Chain        Chain
	Observations []Observation
	Errors       []string
	CollectedAt  time.Time
}

// Options tunes a collection pass. Zero values mean chain defaults.
type Options struct {
	// Delay between queries. Jitter is added on top of it.
	Delay time.Duration
	// Headful runs a visible browser for selector debugging.
	// Production collection is headless.
	Headful bool
	// Concurrency caps browser pages. Collectors currently process
	// queries sequentially on one page; the cap applies when a chain
	// implementation opts into parallel pages.
	Concurrency int
}

// Bool returns a pointer for literal in-stock values.
func Bool(v bool) *bool { return &v }
