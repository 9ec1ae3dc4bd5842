package region

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSimilarity_Empty(t *testing.T) {
	assert.Zero(t, Similarity("", "aden"))
	assert.Zero(t, Similarity("aden", ""))
}

func TestSimilarity_Identical(t *testing.T) {
	assert.InDelta(t, 1.0, Similarity("al hudaydah", "al hudaydah"), 1e-9)
}

func TestSimilarity_CloseVariant(t *testing.T) {
	assert.GreaterOrEqual(t, Similarity("hodaydah", "hudaydah"), 0.7)
	assert.GreaterOrEqual(t, Similarity("hadramout", "hadramaut"), 0.7)
}

func TestSimilarity_Unrelated(t *testing.T) {
	assert.Less(t, Similarity("sana'a", "zzzz"), 0.1)
}

func TestSimilarity_Range(t *testing.T) {
	pairs := [][2]string{
		{"aden", "adan"},
		{"taizz", "taiz"},
		{"marib", "ma'rib"},
		{"socotra", "dhamar"},
	}
	for _, p := range pairs {
		s := Similarity(p[0], p[1])
		assert.GreaterOrEqual(t, s, 0.0, "pair %v", p)
		assert.LessOrEqual(t, s, 1.0, "pair %v", p)
	}
}
