package scrape

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"net/url"
	"time"

	"github.com/go-rod/rod"

	"github.com/pharmacheck/pricewatch/normalize"
)

// Farmacias Ahumada fronts its storefront with Queue-it bot management.
// No usable JSON API; the collector navigates search result pages and
// reads product tiles from the DOM, pacing itself like a person so the
// queue never triggers.

// Volatile: selectors and the queue marker follow site deploys.
var ahumadaSite = struct {
	base         string
	searchPath   string
	queueMarker  string
	cardSelector string
	delay        time.Duration
}{
	base:         "https://www.farmaciasahumada.cl",
	searchPath:   "/search?q=",
	queueMarker:  "[data-queue-it]",
	cardSelector: `.product-tile, [class*="product-item"]`,
	delay:        3000 * time.Millisecond,
}

// Ahumada collects prices from farmaciasahumada.cl.
type Ahumada struct {
	logger *slog.Logger
}

// NewAhumada creates the Ahumada collector.
func NewAhumada(logger *slog.Logger) *Ahumada {
	if logger == nil {
		logger = slog.Default()
	}
	return &Ahumada{logger: logger}
}

// Chain implements Collector.
func (a *Ahumada) Chain() Chain { return ChainAhumada }

// Collect implements Collector.
func (a *Ahumada) Collect(ctx context.Context, queries []string, opts Options) (*Result, error) {
	delay := opts.Delay
	if delay <= 0 {
		delay = ahumadaSite.delay
	}

	res := &Result{Chain: ChainAhumada, CollectedAt: time.Now()}

	sess, err := NewSession(ctx, opts.Headful, a.logger)
	if err != nil {
		return nil, fmt.Errorf("scrape: ahumada: %w", err)
	}
	defer sess.Close()

	page, err := sess.Page(ctx)
	if err != nil {
		return nil, fmt.Errorf("scrape: ahumada: %w", err)
	}
	defer page.Close()

	for _, q := range queries {
		obs, err := a.search(ctx, page, q)
		if err != nil {
			res.Errors = append(res.Errors, fmt.Sprintf("[Ahumada] query=%q: %v", q, err))
			continue
		}
		res.Observations = append(res.Observations, obs...)
		sleepJitter(ctx, delay)
	}

	a.logger.Info("scrape: ahumada done",
		"queries", len(queries), "observations", len(res.Observations), "errors", len(res.Errors))
	return res, nil
}

func (a *Ahumada) search(ctx context.Context, page *rod.Page, query string) ([]Observation, error) {
	// Queue-it adds latency before the real page loads; allow for it.
	target := ahumadaSite.base + ahumadaSite.searchPath + url.QueryEscape(query)
	if err := navigate(ctx, page, target, 45*time.Second, a.logger); err != nil {
		return nil, err
	}

	// Best effort: wait for the queue interstitial to clear if present.
	waitGone(ctx, page, ahumadaSite.queueMarker, 15*time.Second)

	humanScroll(ctx, page)

	res, err := page.Context(ctx).Eval(`(sel) =>
		Array.from(document.querySelectorAll(sel)).map((card) => {
			const nameEl = card.querySelector('.product-name, [class*="name"], a[title]')
			const priceEl = card.querySelector('.price, [class*="price"]')
			const soldOut = card.querySelector('[class*="out-of-stock"], [class*="agotado"]')
			return {
				name: nameEl ? nameEl.textContent.trim() : '',
				price: priceEl ? priceEl.textContent.trim() : '',
				soldOut: Boolean(soldOut),
			}
		})`, ahumadaSite.cardSelector)
	if err != nil {
		return nil, fmt.Errorf("extract tiles: %w", err)
	}

	var out []Observation
	for _, item := range res.Value.Arr() {
		name := item.Get("name").Str()
		price, err := normalize.ParsePrice(item.Get("price").Str())
		if name == "" || err != nil || price <= 0 {
			continue
		}
		var inStock *bool
		if item.Get("soldOut").Bool() {
			inStock = Bool(false)
		}
		out = append(out, Observation{
			ProductName: name,
			Price:       price,
			InStock:     inStock,
			StoreID:     "online",
			StoreName:   "Farmacias Ahumada Online",
			StoreAddr:   "Sitio web",
			Commune:     "Online",
			Region:      "Online",
			Chain:       ChainAhumada,
		})
	}
	return out, nil
}

// humanScroll staggers mouse-wheel scrolls with randomized pauses.
// Queue-it scores interaction cadence; instant full-page reads flag.
func humanScroll(ctx context.Context, page *rod.Page) {
	for i := 0; i < 3; i++ {
		if err := page.Context(ctx).Mouse.Scroll(0, 300+rand.Float64()*200, 5); err != nil {
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(500*time.Millisecond + time.Duration(rand.Intn(500))*time.Millisecond):
		}
	}
}

// waitGone polls until no element matches selector or the timeout
// elapses. Absence of the element is the success condition.
func waitGone(ctx context.Context, page *rod.Page, selector string, timeout time.Duration) {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		res, err := page.Context(ctx).Eval(`(sel) => !document.querySelector(sel)`, selector)
		if err == nil && res.Value.Bool() {
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(500 * time.Millisecond):
		}
	}
}
