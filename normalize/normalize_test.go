package normalize

import "testing"

func TestText_Idempotent(t *testing.T) {
	// WHAT: Text applied twice equals Text applied once.
	// WHY: Entity resolution compares normalized forms; re-normalizing
	// stored values must never shift them.
	cases := []string{
		"  Paracetamol   500MG ",
		"Cápsula Blanda",
		"ÓVULO vaginal",
		"",
		"ñandú ÑANDÚ",
	}
	for _, s := range cases {
		once := Text(s)
		twice := Text(once)
		if once != twice {
			t.Errorf("Text(%q): first pass %q, second pass %q", s, once, twice)
		}
	}
}

func TestText_StripsDiacriticsAndCase(t *testing.T) {
	// WHAT: Diacritics removed, lowercased, whitespace collapsed.
	// WHY: "Cápsula" and "CAPSULA" come from different chains for the
	// same product.
	cases := []struct{ in, want string }{
		{"Cápsula", "capsula"},
		{"SOLUCIÓN  ORAL", "solucion oral"},
		{"  Jarabe \t 120ml ", "jarabe 120ml"},
		{"", ""},
	}
	for _, tc := range cases {
		if got := Text(tc.in); got != tc.want {
			t.Errorf("Text(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestLaboratory_Aliases(t *testing.T) {
	// WHAT: Known laboratory spellings collapse to one canonical name.
	// WHY: "LABORATORIO CHILE S.A." and "Lab Chile" are the same vendor.
	cases := []struct{ in, want string }{
		{"LABORATORIO CHILE S.A.", "Lab. Chile"},
		{"lab chile", "Lab. Chile"},
		{"Laboratorios Chile", "Lab. Chile"},
		{"MINTLAB CO", "Mintlab"},
		{"Bago", "Bagó"},
		{"BAGÓ", "Bagó"},
		{"Pfizer Chile", "Pfizer"},
	}
	for _, tc := range cases {
		if got := Laboratory(tc.in); got != tc.want {
			t.Errorf("Laboratory(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestLaboratory_TitleCaseFallback(t *testing.T) {
	// WHAT: Unknown laboratories are title-cased, not dropped.
	// WHY: The alias table is never complete; new labs must survive.
	if got := Laboratory("laboratorios ANDINOS del sur"); got != "Laboratorios Andinos Del Sur" {
		t.Errorf("got %q", got)
	}
}

func TestPresentation(t *testing.T) {
	// WHAT: Prefix match against the pharmaceutical-form vocabulary;
	// unmatched input passes through unchanged.
	// WHY: Chains abbreviate ("comp", "jar") or pluralize forms.
	cases := []struct{ in, want string }{
		{"comprimidos", "Comprimido"},
		{"COMP", "Comprimido"},
		{"Cápsulas blandas", "Cápsula"},
		{"jar 120 ml", "Jarabe"},
		{"solución oral", "Solución"},
		{"Suspensión", "Suspensión"},
		{"ampolla", "Ampolla"},
		{"óvulo", "Óvulo"},
		{"polvo efervescente", "polvo efervescente"},
	}
	for _, tc := range cases {
		if got := Presentation(tc.in); got != tc.want {
			t.Errorf("Presentation(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestSimilarity_Identity(t *testing.T) {
	// WHAT: Similarity of a string with itself is 1, including "".
	// WHY: Contract of the scoring function; resolver thresholds assume
	// a [0,1] score with exact matches at the top.
	for _, s := range []string{"", "Paracetamol", "Cápsula 500 MG"} {
		if got := Similarity(s, s); got != 1 {
			t.Errorf("Similarity(%q, %q) = %v, want 1", s, s, got)
		}
	}
}

func TestSimilarity_NormalizedEquality(t *testing.T) {
	// WHAT: Strings that normalize identically score 1.
	// WHY: Case and diacritics must not count as edits.
	if got := Similarity("PARACETAMOL", "paracetamol"); got != 1 {
		t.Errorf("got %v, want 1", got)
	}
	if got := Similarity("Cápsula", "capsula"); got != 1 {
		t.Errorf("got %v, want 1", got)
	}
}

func TestSimilarity_Range(t *testing.T) {
	// WHAT: Scores stay within [0,1] and track closeness.
	// WHY: Thresholds in the resolver are calibrated on this scale.
	close := Similarity("Paracetamol 500mg", "Paracetamol 500 mg")
	far := Similarity("Paracetamol", "Ibuprofeno")
	if close <= far {
		t.Errorf("close pair %v should outscore far pair %v", close, far)
	}
	for _, v := range []float64{close, far} {
		if v < 0 || v > 1 {
			t.Errorf("score %v out of [0,1]", v)
		}
	}
}

func TestCanonicalize(t *testing.T) {
	// WHAT: Raw products structure into canonical medications; generic
	// name comes from the active principle when present.
	// WHY: This is the shape persisted on first unmatched observation.
	m := Canonicalize(Raw{
		ProductName:     "Kitadol 500mg x 24",
		ActivePrinciple: "PARACETAMOL",
		Laboratory:      "laboratorio chile",
		Presentation:    "comprimidos",
		EAN:             "7800063000123",
	})
	if m.GenericName != "Paracetamol" {
		t.Errorf("GenericName = %q", m.GenericName)
	}
	if m.CommercialName != "Kitadol 500mg x 24" {
		t.Errorf("CommercialName = %q", m.CommercialName)
	}
	if m.Laboratory != "Lab. Chile" {
		t.Errorf("Laboratory = %q", m.Laboratory)
	}
	if m.Presentation != "Comprimido" {
		t.Errorf("Presentation = %q", m.Presentation)
	}

	// Without an active principle the product name stands in.
	m = Canonicalize(Raw{ProductName: "Tapsin Día"})
	if m.GenericName != "Tapsin Día" {
		t.Errorf("GenericName fallback = %q", m.GenericName)
	}
}

func TestParsePrice(t *testing.T) {
	// WHAT: CLP display strings parse to integer pesos.
	// WHY: Chains render "$1.290", "1.290 CLP", or bare integers.
	cases := []struct {
		in   string
		want int
	}{
		{"$1.290", 1290},
		{"1290", 1290},
		{"$12.990 c/u", 12990},
		{"CLP 990", 990},
	}
	for _, tc := range cases {
		got, err := ParsePrice(tc.in)
		if err != nil {
			t.Fatalf("ParsePrice(%q): %v", tc.in, err)
		}
		if got != tc.want {
			t.Errorf("ParsePrice(%q) = %d, want %d", tc.in, got, tc.want)
		}
	}
	if _, err := ParsePrice("agotado"); err == nil {
		t.Error("ParsePrice on digit-free input should fail")
	}
}
