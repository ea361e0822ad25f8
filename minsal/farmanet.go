package minsal

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/oauth2/clientcredentials"

	"github.com/pharmacheck/pricewatch/store"
)

// FarmanetConfig holds the OAuth2 client-credentials settings for the
// MIDAS/Farmanet web service.
type FarmanetConfig struct {
	BaseURL      string
	TokenURL     string
	ClientID     string
	ClientSecret string
}

// Farmanet fetches the national pharmacy directory.
type Farmanet struct {
	client  *http.Client
	baseURL string
	logger  *slog.Logger
}

// NewFarmanet creates a client. The token flow is handled by the
// underlying HTTP client; tokens are refreshed transparently.
func NewFarmanet(cfg FarmanetConfig, logger *slog.Logger) *Farmanet {
	if logger == nil {
		logger = slog.Default()
	}
	cc := clientcredentials.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		TokenURL:     cfg.TokenURL,
	}
	client := cc.Client(context.Background())
	client.Timeout = 30 * time.Second
	return &Farmanet{client: client, baseURL: cfg.BaseURL, logger: logger}
}

// FarmanetPharmacy is one directory entry as the service returns it.
type FarmanetPharmacy struct {
	LocalID   string `json:"local_id"`
	Name      string `json:"local_nombre"`
	Address   string `json:"local_direccion"`
	Commune   string `json:"comuna_nombre"`
	Region    string `json:"fk_region"`
	Phone     string `json:"local_telefono"`
	Latitude  string `json:"local_lat"`
	Longitude string `json:"local_lng"`
}

// Pharmacies fetches the full national directory.
func (f *Farmanet) Pharmacies(ctx context.Context) ([]FarmanetPharmacy, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.baseURL+"/getLocales.php", nil)
	if err != nil {
		return nil, fmt.Errorf("minsal: farmanet request: %w", err)
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("minsal: farmanet fetch: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("minsal: farmanet status %d: %s", resp.StatusCode, msg)
	}

	var out []FarmanetPharmacy
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("minsal: farmanet decode: %w", err)
	}
	return out, nil
}

// SyncPharmacies seeds branch records for directory entries that belong
// to a supported chain. Entries from independent pharmacies are skipped.
// Returns (matched, skipped).
func (f *Farmanet) SyncPharmacies(ctx context.Context, st *store.Store) (int, int, error) {
	entries, err := f.Pharmacies(ctx)
	if err != nil {
		return 0, 0, err
	}

	matched, skipped := 0, 0
	for _, e := range entries {
		chain, ok := matchChain(e.Name)
		if !ok {
			skipped++
			continue
		}
		if e.LocalID == "" {
			// Without a branch code the row could not be deduplicated
			// against scraped branches.
			skipped++
			continue
		}
		if _, err := st.EnsurePharmacy(ctx, store.Pharmacy{
			Chain:      chain,
			Name:       e.Name,
			Address:    e.Address,
			Commune:    e.Commune,
			Region:     e.Region,
			ExternalID: e.LocalID,
		}); err != nil {
			f.logger.Warn("minsal: pharmacy skipped", "local_id", e.LocalID, "error", err)
			skipped++
			continue
		}
		matched++
	}

	f.logger.Info("minsal: pharmacy directory synced", "matched", matched, "skipped", skipped)
	return matched, skipped, nil
}
