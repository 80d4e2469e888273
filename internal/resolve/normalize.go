package resolve

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var whitespaceRe = regexp.MustCompile(`\s+`)

// stripMarks decomposes accented characters and removes the combining marks,
// so "Café" and "Cafe" normalize identically. Ad names routinely carry
// accents and decorative unicode added by marketing teams.
var stripMarks = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// NormalizeName standardizes a creative name for matching by:
//  1. Folding accented characters to their base form
//  2. Lowercasing
//  3. Stripping every character that is not a letter, digit, or whitespace
//  4. Collapsing runs of whitespace into single spaces
//  5. Trimming
func NormalizeName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return ""
	}

	if folded, _, err := transform.String(stripMarks, name); err == nil {
		name = folded
	}

	name = strings.ToLower(name)

	name = strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r) {
			return r
		}
		return -1
	}, name)

	name = whitespaceRe.ReplaceAllString(name, " ")
	return strings.TrimSpace(name)
}

// Similarity returns the character-overlap ratio between two normalized
// strings: the size of the multiset intersection of their characters divided
// by the length of the longer string. Ranges 0..1; 1 means anagram-or-equal.
func Similarity(a, b string) float64 {
	if a == "" || b == "" {
		return 0
	}
	if a == b {
		return 1
	}

	counts := make(map[rune]int)
	for _, r := range a {
		counts[r]++
	}

	overlap := 0
	for _, r := range b {
		if counts[r] > 0 {
			counts[r]--
			overlap++
		}
	}

	longer := len([]rune(a))
	if lb := len([]rune(b)); lb > longer {
		longer = lb
	}
	return float64(overlap) / float64(longer)
}
