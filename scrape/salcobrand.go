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

// Salcobrand combines Cloudflare with reCAPTCHA on suspicious traffic.
// The stealth page plus wide randomized delays keeps sessions under the
// challenge threshold; a CAPTCHA that does fire fails only that query.

// Volatile: selectors follow site deploys.
var salcobrandSite = struct {
	base         string
	searchPath   string
	cardSelector string
	delay        time.Duration
}{
	base:         "https://salcobrand.cl",
	searchPath:   "/search?query=",
	cardSelector: `[class*="product-card"], .product-item`,
	delay:        2000 * time.Millisecond,
}

// Salcobrand collects prices from salcobrand.cl.
type Salcobrand struct {
	logger *slog.Logger
}

// NewSalcobrand creates the Salcobrand collector.
func NewSalcobrand(logger *slog.Logger) *Salcobrand {
	if logger == nil {
		logger = slog.Default()
	}
	return &Salcobrand{logger: logger}
}

// Chain implements Collector.
func (s *Salcobrand) Chain() Chain { return ChainSalcobrand }

// Collect implements Collector.
func (s *Salcobrand) Collect(ctx context.Context, queries []string, opts Options) (*Result, error) {
	delay := opts.Delay
	if delay <= 0 {
		delay = salcobrandSite.delay
	}

	res := &Result{Chain: ChainSalcobrand, CollectedAt: time.Now()}

	sess, err := NewSession(ctx, opts.Headful, s.logger)
	if err != nil {
		return nil, fmt.Errorf("scrape: salcobrand: %w", err)
	}
	defer sess.Close()

	page, err := sess.Page(ctx)
	if err != nil {
		return nil, fmt.Errorf("scrape: salcobrand: %w", err)
	}
	defer page.Close()

	for _, q := range queries {
		obs, err := s.search(ctx, page, q)
		if err != nil {
			res.Errors = append(res.Errors, fmt.Sprintf("[Salcobrand] query=%q: %v", q, err))
			continue
		}
		res.Observations = append(res.Observations, obs...)
		// Double jitter: Salcobrand's challenge threshold is the
		// tightest of the four chains.
		sleepJitter(ctx, delay+time.Duration(rand.Intn(1000))*time.Millisecond)
	}

	s.logger.Info("scrape: salcobrand done",
		"queries", len(queries), "observations", len(res.Observations), "errors", len(res.Errors))
	return res, nil
}

func (s *Salcobrand) search(ctx context.Context, page *rod.Page, query string) ([]Observation, error) {
	target := salcobrandSite.base + salcobrandSite.searchPath + url.QueryEscape(query)
	if err := navigate(ctx, page, target, 30*time.Second, s.logger); err != nil {
		return nil, err
	}

	res, err := page.Context(ctx).Eval(`(sel) =>
		Array.from(document.querySelectorAll(sel)).map((card) => {
			const nameEl = card.querySelector('[class*="product-name"], [class*="title"], a[title]')
			const priceEl = card.querySelector('[class*="sale-price"], [class*="price"]')
			const eanAttr = card.getAttribute('data-ean') || ''
			const soldOut = card.querySelector('[class*="sin-stock"], [class*="out-of-stock"]')
			return {
				name: nameEl ? nameEl.textContent.trim() : '',
				price: priceEl ? priceEl.textContent.trim() : '',
				ean: eanAttr,
				soldOut: Boolean(soldOut),
			}
		})`, salcobrandSite.cardSelector)
	if err != nil {
		return nil, fmt.Errorf("extract cards: %w", err)
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
			EAN:         item.Get("ean").Str(),
			Price:       price,
			InStock:     inStock,
			StoreID:     "online",
			StoreName:   "Salcobrand Online",
			StoreAddr:   "Sitio web",
			Commune:     "Online",
			Region:      "Online",
			Chain:       ChainSalcobrand,
		})
	}
	return out, nil
}
