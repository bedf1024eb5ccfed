package diversify

import (
	"unicode/utf8"

	"github.com/agnivade/levenshtein"

	"github.com/kailas-cloud/hwfinder/internal/domain/product"
)

// Similarity scores two products in [0, 1].
// Name similarity is the larger of token Jaccard and normalized edit ratio over core names.
// Equal SKUs force 1.0; equal dimensions lift the score halfway to 1.0.
func Similarity(a, b product.Product) float64 {
	if sa, sb := product.Fold(a.SKU()), product.Fold(b.SKU()); sa != "" && sa == sb {
		return 1
	}
	score := NameSimilarity(a.Name(), b.Name())
	if da, db := product.Fold(a.Dimensions()), product.Fold(b.Dimensions()); da != "" && da == db {
		score = (score + 1) / 2
	}
	return score
}

// NameSimilarity compares two product names after folding and stop-word removal.
func NameSimilarity(a, b string) float64 {
	ca, cb := product.CoreName(a), product.CoreName(b)
	if ca == "" || cb == "" {
		return 0
	}
	if ca == cb {
		return 1
	}
	return max(jaccard(product.Tokens(a), product.Tokens(b)), editRatio(ca, cb))
}

func jaccard(a, b []string) float64 {
	set := make(map[string]uint8, len(a)+len(b))
	for _, t := range a {
		set[t] |= 1
	}
	for _, t := range b {
		set[t] |= 2
	}
	if len(set) == 0 {
		return 0
	}
	both := 0
	for _, v := range set {
		if v == 3 {
			both++
		}
	}
	return float64(both) / float64(len(set))
}

func editRatio(a, b string) float64 {
	longest := max(utf8.RuneCountInString(a), utf8.RuneCountInString(b))
	if longest == 0 {
		return 0
	}
	return 1 - float64(levenshtein.ComputeDistance(a, b))/float64(longest)
}
