package scrape

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-rod/rod"
)

// Cruz Verde sits behind a Cloudflare WAF; plain HTTP gets challenged.
// The collector loads the storefront once to pass the challenge, then
// calls the internal catalog API from inside the page where requests
// carry first-party cookies and a browser TLS fingerprint.

// Volatile: endpoint discovered from storefront network traffic.
var cruzVerdeSite = struct {
	base       string
	searchPath string
	delay      time.Duration
}{
	base:       "https://www.cruzverde.cl",
	searchPath: "/api/v1/catalog/search",
	delay:      1500 * time.Millisecond,
}

// CruzVerde collects prices from cruzverde.cl.
type CruzVerde struct {
	logger *slog.Logger
}

// NewCruzVerde creates the Cruz Verde collector.
func NewCruzVerde(logger *slog.Logger) *CruzVerde {
	if logger == nil {
		logger = slog.Default()
	}
	return &CruzVerde{logger: logger}
}

// Chain implements Collector.
func (c *CruzVerde) Chain() Chain { return ChainCruzVerde }

// Collect implements Collector.
func (c *CruzVerde) Collect(ctx context.Context, queries []string, opts Options) (*Result, error) {
	delay := opts.Delay
	if delay <= 0 {
		delay = cruzVerdeSite.delay
	}

	res := &Result{Chain: ChainCruzVerde, CollectedAt: time.Now()}

	sess, err := NewSession(ctx, opts.Headful, c.logger)
	if err != nil {
		return nil, fmt.Errorf("scrape: cruz verde: %w", err)
	}
	defer sess.Close()

	page, err := sess.Page(ctx)
	if err != nil {
		return nil, fmt.Errorf("scrape: cruz verde: %w", err)
	}
	defer page.Close()

	// Warm-up navigation: first-party cookies and the Cloudflare
	// clearance token the search API requires.
	if err := navigate(ctx, page, cruzVerdeSite.base, 30*time.Second, c.logger); err != nil {
		return nil, fmt.Errorf("scrape: cruz verde: %w", err)
	}

	for _, q := range queries {
		obs, err := c.search(ctx, page, q)
		if err != nil {
			res.Errors = append(res.Errors, fmt.Sprintf("[CruzVerde] query=%q: %v", q, err))
			continue
		}
		res.Observations = append(res.Observations, obs...)
		sleepJitter(ctx, delay)
	}

	c.logger.Info("scrape: cruz verde done",
		"queries", len(queries), "observations", len(res.Observations), "errors", len(res.Errors))
	return res, nil
}

func (c *CruzVerde) search(ctx context.Context, page *rod.Page, query string) ([]Observation, error) {
	evalCtx, cancel := context.WithTimeout(ctx, 20*time.Second)
	defer cancel()

	res, err := page.Context(evalCtx).Eval(`async (path, q) => {
		const res = await fetch(path + '?q=' + encodeURIComponent(q) + '&limit=50', {
			headers: { accept: 'application/json' },
			credentials: 'include',
		})
		if (!res.ok) throw new Error('search api status ' + res.status)
		const body = await res.json()
		const items = body.products ?? body.items ?? []
		return items.map((p) => ({
			name: p.name ?? '',
			ean: p.ean ?? '',
			price: Number(p.price ?? 0),
			stock: p.stock === undefined ? null : Boolean(p.stock),
		}))
	}`, cruzVerdeSite.searchPath, query)
	if err != nil {
		return nil, fmt.Errorf("search eval: %w", err)
	}

	var out []Observation
	for _, item := range res.Value.Arr() {
		name := item.Get("name").Str()
		price := int(item.Get("price").Int())
		if name == "" || price <= 0 {
			continue
		}
		var inStock *bool
		if !item.Get("stock").Nil() {
			inStock = Bool(item.Get("stock").Bool())
		}
		out = append(out, Observation{
			ProductName: name,
			EAN:         item.Get("ean").Str(),
			Price:       price,
			InStock:     inStock,
			StoreID:     "online",
			StoreName:   "Cruz Verde Online",
			StoreAddr:   "Sitio web",
			Commune:     "Online",
			Region:      "Online",
			Chain:       ChainCruzVerde,
		})
	}
	return out, nil
}
