// Package minsal integrates the Chilean health ministry's open data
// services: the Farmanet pharmacy directory and the TuFarmacia
// medication catalog. Both are supplemental seed sources — collection
// itself runs against the retail chains.
package minsal

import (
	"strings"

	"github.com/pharmacheck/pricewatch/normalize"
	"github.com/pharmacheck/pricewatch/scrape"
)

// matchChain maps a free-text pharmacy or chain name from a government
// dataset to a supported retail chain. Ministry data spells brands
// inconsistently ("FARMACIAS AHUMADA", "Cruz Verde S.A."), so matching
// goes through the normalizer.
func matchChain(name string) (scrape.Chain, bool) {
	n := normalize.Text(name)
	switch {
	case strings.Contains(n, "cruz verde"):
		return scrape.ChainCruzVerde, true
	case strings.Contains(n, "salcobrand"):
		return scrape.ChainSalcobrand, true
	case strings.Contains(n, "ahumada"):
		return scrape.ChainAhumada, true
	case strings.Contains(n, "dr. simi"), strings.Contains(n, "dr simi"), strings.Contains(n, "similares"):
		return scrape.ChainSimilares, true
	}
	return "", false
}
