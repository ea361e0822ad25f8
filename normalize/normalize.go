// Package normalize canonicalizes medication data scraped from pharmacy
// chains. Every source spells product names, laboratories, and
// presentations differently; this package is the single place where that
// variance is flattened before entity resolution and persistence.
package normalize

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"github.com/agnivade/levenshtein"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// stripDiacritics decomposes to NFD, drops combining marks, recomposes.
var stripDiacritics = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Text lowercases, strips diacritics, and collapses whitespace.
// Total and idempotent: Text(Text(s)) == Text(s) for all s.
func Text(s string) string {
	s = strings.ToLower(s)
	if out, _, err := transform.String(stripDiacritics, s); err == nil {
		s = out
	}
	return strings.Join(strings.Fields(s), " ")
}

// TitleCase uppercases the first letter of each space-separated word and
// lowercases the rest. Used for generic names and laboratory fallbacks.
func TitleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		r := []rune(strings.ToLower(w))
		r[0] = unicode.ToUpper(r[0])
		words[i] = string(r)
	}
	return strings.Join(words, " ")
}

// labAliases maps normalized substrings to canonical laboratory names.
// Ordered: first match wins.
var labAliases = []struct{ key, canonical string }{
	{"laboratorio chile", "Lab. Chile"},
	{"laboratorios chile", "Lab. Chile"},
	{"lab chile", "Lab. Chile"},
	{"mintlab", "Mintlab"},
	{"pfizer", "Pfizer"},
	{"bayer", "Bayer"},
	{"novartis", "Novartis"},
	{"roche", "Roche"},
	{"abbott", "Abbott"},
	{"bago", "Bagó"},
	{"saval", "Saval"},
	{"recalcine", "Recalcine"},
	{"maver", "Maver"},
	{"genfarma", "Genfarma"},
}

// Laboratory maps a raw laboratory name to its canonical form via the
// alias table, falling back to title-casing the original.
func Laboratory(name string) string {
	lab := Text(name)
	for _, a := range labAliases {
		if strings.Contains(lab, a.key) {
			return a.canonical
		}
	}
	return TitleCase(name)
}

// presentations is the controlled vocabulary of pharmaceutical forms.
// Matched by prefix on the normalized input; first match wins.
var presentations = []struct{ prefix, canonical string }{
	{"comp", "Comprimido"},
	{"cap", "Cápsula"},
	{"jar", "Jarabe"},
	{"sol", "Solución"},
	{"susp", "Suspensión"},
	{"amp", "Ampolla"},
	{"crema", "Crema"},
	{"gel", "Gel"},
	{"gotas", "Gotas"},
	{"parche", "Parche"},
	{"inyectable", "Inyectable"},
	{"sobre", "Sobre"},
	{"ovulo", "Óvulo"},
	{"supositorio", "Supositorio"},
	{"spray", "Spray"},
	{"aerosol", "Aerosol"},
}

// Presentation maps a raw presentation ("comprimidos", "CÁPSULAS", "jar")
// to its canonical form. Unmatched input is returned unchanged.
func Presentation(v string) string {
	n := Text(v)
	for _, p := range presentations {
		if strings.HasPrefix(n, p.prefix) {
			return p.canonical
		}
	}
	return v
}

// Similarity scores two strings in [0,1]: 1 minus the Levenshtein
// distance over their normalized forms, divided by the longer length.
// Similarity(x, x) = 1 and Similarity("", "") = 1.
func Similarity(a, b string) float64 {
	na := Text(a)
	nb := Text(b)
	if na == nb {
		return 1
	}
	dist := levenshtein.ComputeDistance(na, nb)
	maxLen := len([]rune(na))
	if l := len([]rune(nb)); l > maxLen {
		maxLen = l
	}
	if maxLen == 0 {
		return 1
	}
	return 1 - float64(dist)/float64(maxLen)
}

// Raw is a scraped product before canonicalization. Empty string = the
// source did not supply the field.
type Raw struct {
	ProductName     string
	ActivePrinciple string
	Laboratory      string
	Concentration   string
	Presentation    string
	Quantity        string
	EAN             string
}

// Medication is the canonical record built from a Raw observation.
type Medication struct {
	GenericName     string
	CommercialName  string
	ActivePrinciple string
	Laboratory      string
	Concentration   string
	Presentation    string
	Quantity        string
	EAN             string
}

// Canonicalize structures a Raw product into a Medication. The generic
// name prefers the title-cased active principle; without one the product
// name stands in.
func Canonicalize(raw Raw) Medication {
	m := Medication{
		GenericName:     raw.ProductName,
		CommercialName:  raw.ProductName,
		ActivePrinciple: raw.ActivePrinciple,
		Concentration:   raw.Concentration,
		Quantity:        raw.Quantity,
		EAN:             raw.EAN,
	}
	if raw.ActivePrinciple != "" {
		m.GenericName = TitleCase(Text(raw.ActivePrinciple))
	}
	if raw.Laboratory != "" {
		m.Laboratory = Laboratory(raw.Laboratory)
	}
	if raw.Presentation != "" {
		m.Presentation = Presentation(raw.Presentation)
	}
	return m
}

// ParsePrice converts a CLP price string like "$1.290" to integer pesos.
// Dots and commas are thousands separators in es-CL price displays and
// are dropped; CLP has no decimal subunit in retail prices.
func ParsePrice(raw string) (int, error) {
	var b strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return 0, fmt.Errorf("normalize: no digits in price %q", raw)
	}
	n, err := strconv.Atoi(b.String())
	if err != nil {
		return 0, fmt.Errorf("normalize: parse price %q: %w", raw, err)
	}
	return n, nil
}
