package normalize

// DefaultNameThreshold is the minimum name similarity for two records to
// be considered the same medication. Tuned on the scraped corpus: 0.82
// keeps "Paracetamol 500mg" / "Paracetamol 500 mg" together while
// separating "Ibuprofeno 400" / "Ibuprofeno 600".
const DefaultNameThreshold = 0.82

// Thresholds for the secondary veto dimensions.
const (
	concentrationThreshold = 0.80
	presentationThreshold  = 0.75
)

// Candidate is the projection of a medication used for fuzzy matching.
// Empty Concentration/Presentation means the source did not supply them.
type Candidate struct {
	Name          string
	Concentration string
	Presentation  string
}

// SameMedication reports whether two records likely refer to the same
// product. The gate is conjunctive and short-circuits in a fixed order:
//
//  1. Name similarity must reach threshold, else false regardless of
//     the other fields.
//  2. If both sides carry a concentration, it must match at >= 0.80.
//  3. If both sides carry a presentation, the canonical forms must
//     match at >= 0.75.
//
// A dimension absent on either side is skipped, never failed. This is
// the reconciliation contract; live persistence uses the stricter
// EAN/exact-name path in the store.
func SameMedication(a, b Candidate, threshold float64) bool {
	if Similarity(a.Name, b.Name) < threshold {
		return false
	}
	if a.Concentration != "" && b.Concentration != "" {
		if Similarity(a.Concentration, b.Concentration) < concentrationThreshold {
			return false
		}
	}
	if a.Presentation != "" && b.Presentation != "" {
		if Similarity(Presentation(a.Presentation), Presentation(b.Presentation)) < presentationThreshold {
			return false
		}
	}
	return true
}
