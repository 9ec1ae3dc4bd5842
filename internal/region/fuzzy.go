package region

import (
	"github.com/agnivade/levenshtein"
	"github.com/xrash/smetrics"
)

const (
	jaroWinklerWeight = 0.7
	levenshteinWeight = 0.3
)

// Similarity scores two cleaned names in [0,1] with a Jaro-Winkler /
// normalized-Levenshtein blend. Inputs should already be Clean()ed.
func Similarity(a, b string) float64 {
	if a == "" || b == "" {
		return 0
	}
	j := smetrics.JaroWinkler(a, b, 0.7, 4)
	ld := levenshtein.ComputeDistance(a, b)
	den := float64(max(len(a), len(b)))
	lev := 1.0 - float64(ld)/den
	return jaroWinklerWeight*j + levenshteinWeight*lev
}
