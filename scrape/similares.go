package scrape

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/go-rod/rod"

	"github.com/pharmacheck/pricewatch/normalize"
)

// Farmacias Similares (Dr. Simi) has the weakest bot protection of the
// four chains and an undocumented JSON API serving its mobile app. The
// collector tries that API directly — cheaper and more stable than DOM
// scraping — and falls back to the browser when the API stops answering.

// Volatile: the API was reverse-engineered from mobile app traffic and
// can disappear without notice.
var similaresSite = struct {
	base         string
	apiBase      string
	searchPath   string
	cardSelector string
	delay        time.Duration
}{
	base:         "https://www.drsimi.cl",
	apiBase:      "https://www.drsimi.cl/api",
	searchPath:   "/search?q=",
	cardSelector: `[class*="product"], .vtex-product-summary`,
	delay:        1000 * time.Millisecond,
}

// Similares collects prices from drsimi.cl.
type Similares struct {
	client *http.Client
	logger *slog.Logger
}

// NewSimilares creates the Similares collector.
func NewSimilares(logger *slog.Logger) *Similares {
	if logger == nil {
		logger = slog.Default()
	}
	return &Similares{
		client: &http.Client{Timeout: 15 * time.Second},
		logger: logger,
	}
}

// Chain implements Collector.
func (s *Similares) Chain() Chain { return ChainSimilares }

// Collect implements Collector.
func (s *Similares) Collect(ctx context.Context, queries []string, opts Options) (*Result, error) {
	delay := opts.Delay
	if delay <= 0 {
		delay = similaresSite.delay
	}

	res := &Result{Chain: ChainSimilares, CollectedAt: time.Now()}

	// The browser session is still acquired up front even when the API
	// path ends up serving every query: a mid-batch fallback must not
	// pay browser startup inside a query timeout.
	sess, err := NewSession(ctx, opts.Headful, s.logger)
	if err != nil {
		return nil, fmt.Errorf("scrape: similares: %w", err)
	}
	defer sess.Close()

	page, err := sess.Page(ctx)
	if err != nil {
		return nil, fmt.Errorf("scrape: similares: %w", err)
	}
	defer page.Close()

	for _, q := range queries {
		obs, err := s.tryDirectAPI(ctx, q)
		if err != nil {
			s.logger.Debug("scrape: similares api miss, using browser", "query", q, "error", err)
			obs, err = s.searchBrowser(ctx, page, q)
		}
		if err != nil {
			res.Errors = append(res.Errors, fmt.Sprintf("[Similares] query=%q: %v", q, err))
			continue
		}
		res.Observations = append(res.Observations, obs...)
		sleepJitter(ctx, delay)
	}

	s.logger.Info("scrape: similares done",
		"queries", len(queries), "observations", len(res.Observations), "errors", len(res.Errors))
	return res, nil
}

type similaresProduct struct {
	Nombre   string `json:"nombre"`
	EAN      string `json:"ean"`
	Precio   int    `json:"precio"`
	Stock    *bool  `json:"stock"`
	Sucursal string `json:"sucursal"`
}

func (s *Similares) tryDirectAPI(ctx context.Context, query string) ([]Observation, error) {
	target := fmt.Sprintf("%s/productos?busqueda=%s&limit=100",
		similaresSite.apiBase, url.QueryEscape(query))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("api request: %w", err)
	}
	req.Header.Set("User-Agent", "DrSimi/1.0 (iOS)")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Accept-Language", "es-CL")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("api get: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("api status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return nil, fmt.Errorf("api read: %w", err)
	}

	var products []similaresProduct
	if err := json.Unmarshal(body, &products); err != nil {
		// Some deployments wrap the list.
		var wrapped struct {
			Productos []similaresProduct `json:"productos"`
		}
		if err2 := json.Unmarshal(body, &wrapped); err2 != nil || wrapped.Productos == nil {
			return nil, fmt.Errorf("api decode: %w", err)
		}
		products = wrapped.Productos
	}

	var out []Observation
	for _, p := range products {
		if p.Nombre == "" || p.Precio <= 0 {
			continue
		}
		store := p.Sucursal
		if store == "" {
			store = "online"
		}
		out = append(out, Observation{
			ProductName: p.Nombre,
			EAN:         p.EAN,
			Price:       p.Precio,
			InStock:     p.Stock,
			StoreID:     store,
			StoreName:   "Farmacias Similares " + store,
			StoreAddr:   "Sitio web",
			Commune:     "Online",
			Region:      "Online",
			Chain:       ChainSimilares,
		})
	}
	return out, nil
}

func (s *Similares) searchBrowser(ctx context.Context, page *rod.Page, query string) ([]Observation, error) {
	target := similaresSite.base + similaresSite.searchPath + url.QueryEscape(query)
	if err := navigate(ctx, page, target, 30*time.Second, s.logger); err != nil {
		return nil, err
	}

	res, err := page.Context(ctx).Eval(`(sel) =>
		Array.from(document.querySelectorAll(sel)).map((card) => {
			const nameEl = card.querySelector('[class*="name"], [class*="brand"]')
			const priceEl = card.querySelector('[class*="price"]')
			return {
				name: nameEl ? nameEl.textContent.trim() : '',
				price: priceEl ? priceEl.textContent.trim() : '',
			}
		})`, similaresSite.cardSelector)
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
		out = append(out, Observation{
			ProductName: name,
			Price:       price,
			StoreID:     "online",
			StoreName:   "Farmacias Similares Online",
			StoreAddr:   "Sitio web",
			Commune:     "Online",
			Region:      "Online",
			Chain:       ChainSimilares,
		})
	}
	return out, nil
}
