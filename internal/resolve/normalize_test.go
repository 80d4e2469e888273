package resolve

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeName_Empty(t *testing.T) {
	assert.Equal(t, "", NormalizeName(""))
	assert.Equal(t, "", NormalizeName("   "))
}

func TestNormalizeName_Lowercase(t *testing.T) {
	assert.Equal(t, "summer sale video 1", NormalizeName("Summer Sale Video 1"))
}

func TestNormalizeName_StripsPunctuation(t *testing.T) {
	assert.Equal(t, "ugc hook v2", NormalizeName("[UGC] Hook - v2!"))
	assert.Equal(t, "retarget 30d", NormalizeName("Retarget (30d)"))
}

func TestNormalizeName_CollapsesWhitespace(t *testing.T) {
	assert.Equal(t, "broad interest test", NormalizeName("  Broad   Interest\tTest "))
	// A single tab or newline collapses the same as a run of spaces.
	assert.Equal(t, "interest test", NormalizeName("Interest\tTest"))
	assert.Equal(t, "interest test", NormalizeName("Interest\nTest"))
}

func TestNormalizeName_FoldsAccents(t *testing.T) {
	assert.Equal(t, "cafe promo", NormalizeName("Café Promo"))
}

func TestNormalizeName_DropsDecorations(t *testing.T) {
	// Marketing teams decorate names with symbols; only letters, digits, and
	// spaces survive.
	assert.Equal(t, "new offer", NormalizeName("*** NEW OFFER ***"))
}

func TestSimilarity_Identical(t *testing.T) {
	assert.Equal(t, 1.0, Similarity("summer sale", "summer sale"))
}

func TestSimilarity_Empty(t *testing.T) {
	assert.Equal(t, 0.0, Similarity("", "abc"))
	assert.Equal(t, 0.0, Similarity("abc", ""))
}

func TestSimilarity_PartialOverlap(t *testing.T) {
	score := Similarity("summer sale video", "summer sale image")
	assert.Greater(t, score, 0.7)
	assert.Less(t, score, 1.0)
}

func TestSimilarity_Disjoint(t *testing.T) {
	assert.Equal(t, 0.0, Similarity("abc", "xyz"))
}

func TestSimilarity_LengthPenalty(t *testing.T) {
	// A short string fully contained in a long one is penalized by the
	// longer length.
	assert.InDelta(t, 0.5, Similarity("abcd", "abcdefgh"), 0.001)
}
