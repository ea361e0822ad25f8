package normalize

import "testing"

func TestSameMedication_NameGateVetoesFirst(t *testing.T) {
	// WHAT: A name similarity below threshold returns false even when
	// concentration and presentation agree exactly.
	// WHY: The gate order is part of the matching contract; secondary
	// dimensions must never rescue a name mismatch.
	a := Candidate{Name: "Paracetamol", Concentration: "500mg", Presentation: "Comprimido"}
	b := Candidate{Name: "Ibuprofeno", Concentration: "500mg", Presentation: "Comprimido"}
	if SameMedication(a, b, DefaultNameThreshold) {
		t.Error("different names with matching secondary fields should not match")
	}
}

func TestSameMedication_ConcentrationVeto(t *testing.T) {
	// WHAT: Matching names with diverging concentrations do not match.
	// WHY: Same product line, different dose = different medication.
	a := Candidate{Name: "Paracetamol", Concentration: "500mg"}
	b := Candidate{Name: "Paracetamol", Concentration: "80mg"}
	if SameMedication(a, b, DefaultNameThreshold) {
		t.Error("diverging concentrations should veto")
	}
}

func TestSameMedication_AbsentDimensionsSkipped(t *testing.T) {
	// WHAT: A dimension present on only one side is skipped, not failed.
	// WHY: Most chains omit structured concentration/presentation; the
	// resolver trades precision for recall on sparse data.
	a := Candidate{Name: "Paracetamol 500mg", Concentration: "500mg"}
	b := Candidate{Name: "Paracetamol 500 mg"}
	if !SameMedication(a, b, DefaultNameThreshold) {
		t.Error("one-sided concentration should not veto a close name match")
	}
}

func TestSameMedication_PresentationNormalizedBeforeCompare(t *testing.T) {
	// WHAT: Presentations are canonicalized before scoring, so "comp"
	// and "Comprimidos" agree.
	// WHY: Abbreviations would otherwise fail the 0.75 bound and split
	// identical products.
	a := Candidate{Name: "Paracetamol 500mg", Presentation: "comp"}
	b := Candidate{Name: "Paracetamol 500 mg", Presentation: "Comprimidos"}
	if !SameMedication(a, b, DefaultNameThreshold) {
		t.Error("abbreviated presentation should canonicalize and match")
	}
}

func TestSameMedication_ExactMatch(t *testing.T) {
	// WHAT: Identical candidates match at any reasonable threshold.
	// WHY: Reflexivity sanity check.
	a := Candidate{Name: "Loratadina 10mg", Concentration: "10mg", Presentation: "Comprimido"}
	if !SameMedication(a, a, DefaultNameThreshold) {
		t.Error("identical candidates must match")
	}
}
