package minsal

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/pharmacheck/pricewatch/scrape"
)

// WHAT: free-text brand names from ministry datasets map to chains,
// diacritics and casing ignored; independents do not match.
func TestMatchChain(t *testing.T) {
	cases := []struct {
		in    string
		want  scrape.Chain
		match bool
	}{
		{"FARMACIAS AHUMADA S.A.", scrape.ChainAhumada, true},
		{"Cruz Verde Ñuñoa", scrape.ChainCruzVerde, true},
		{"salcobrand", scrape.ChainSalcobrand, true},
		{"Farmacias del Dr. Simi", scrape.ChainSimilares, true},
		{"Farmacia Independiente López", "", false},
		{"", "", false},
	}
	for _, c := range cases {
		got, ok := matchChain(c.in)
		if ok != c.match || got != c.want {
			t.Errorf("matchChain(%q) = (%q, %v), want (%q, %v)", c.in, got, ok, c.want, c.match)
		}
	}
}

// WHAT: catalog entries flatten to observations only for supported
// chains with positive prices; a missing branch code gets a stable
// placeholder.
func TestObservationsFiltering(t *testing.T) {
	tf := NewTuFarmacia("http://unused", nil)
	meds := []TFMedication{
		{
			ProductName: "Paracetamol 500mg",
			Offers: []TFOffer{
				{PharmacyName: "Cruz Verde Centro", ChainName: "CRUZ VERDE", Price: 1290, BranchCode: "cv-1"},
				{PharmacyName: "Botica Doña Rosa", ChainName: "Independiente", Price: 990},
				{PharmacyName: "Salcobrand Mall", ChainName: "Salcobrand", Price: 0},
				{PharmacyName: "Ahumada Online", ChainName: "Farmacias Ahumada", Price: 1390},
			},
		},
		{ProductName: "", Offers: []TFOffer{{ChainName: "Cruz Verde", Price: 500}}},
	}

	obs := tf.Observations(meds)
	if len(obs) != 2 {
		t.Fatalf("observations = %d, want 2", len(obs))
	}
	if obs[0].Chain != scrape.ChainCruzVerde || obs[0].StoreID != "cv-1" {
		t.Fatalf("first = %+v", obs[0])
	}
	if obs[1].Chain != scrape.ChainAhumada || obs[1].StoreID != "tufarmacia" {
		t.Fatalf("second = %+v", obs[1])
	}
}

// WHAT: SyncCatalog walks every letter and keeps going past a letter
// that 500s.
// WHY: one bad page must not abort a full catalog sync.
func TestSyncCatalogSkipsFailedLetters(t *testing.T) {
	var queries []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query().Get("nombre")
		queries = append(queries, q)
		if q == "f" {
			http.Error(w, "boom", http.StatusInternalServerError)
			return
		}
		json.NewEncoder(w).Encode([]TFMedication{{ProductName: q + "-med"}})
	}))
	defer srv.Close()

	tf := NewTuFarmacia(srv.URL, nil)
	var batches int
	err := tf.SyncCatalog(context.Background(), func(meds []TFMedication) error {
		batches++
		return nil
	})
	if err != nil {
		t.Fatalf("SyncCatalog: %v", err)
	}
	if len(queries) != 26 {
		t.Fatalf("letters queried = %d, want 26", len(queries))
	}
	if batches != 25 {
		t.Fatalf("batches = %d, want 25 (letter f failed)", batches)
	}
}
