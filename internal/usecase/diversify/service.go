// Package diversify removes near-duplicate candidates and picks a varied shortlist.
package diversify

import (
	"sort"

	"github.com/kailas-cloud/hwfinder/internal/domain/candidate"
	"github.com/kailas-cloud/hwfinder/internal/domain/product"
)

// DefaultThreshold is the similarity at or above which two products are duplicates.
const DefaultThreshold = 0.8

// Service deduplicates and diversifies candidate sets.
type Service struct {
	threshold float64
}

// New creates a diversifier. A threshold outside (0, 1] falls back to DefaultThreshold.
func New(threshold float64) *Service {
	if threshold <= 0 || threshold > 1 {
		threshold = DefaultThreshold
	}
	return &Service{threshold: threshold}
}

// Threshold returns the duplicate cutoff in use.
func (s *Service) Threshold() float64 { return s.threshold }

// Diversify returns at most target products with no two at or above the duplicate threshold.
// Products with an unseen (category, material, style) combination are picked first by score,
// then the remainder is filled by score.
func (s *Service) Diversify(set *candidate.Set, target int) []product.Product {
	if set == nil || set.Len() == 0 || target <= 0 {
		return []product.Product{}
	}

	survivors := s.dedupe(set.Items())
	sort.SliceStable(survivors, func(i, j int) bool { return ranksBefore(survivors[i], survivors[j]) })

	picked := make([]bool, len(survivors))
	out := make([]product.Product, 0, min(target, len(survivors)))
	seen := make(map[string]bool)
	for i, c := range survivors {
		if len(out) == target {
			break
		}
		key := facetKey(c.Product())
		if seen[key] {
			continue
		}
		seen[key] = true
		picked[i] = true
		out = append(out, c.Product())
	}
	for i, c := range survivors {
		if len(out) == target {
			break
		}
		if !picked[i] {
			out = append(out, c.Product())
		}
	}
	return out
}

// dedupe keeps candidates in survivor-preference order, dropping one only when it is similar
// to an already kept candidate. A dropped candidate lends its score to the first kept match.
func (s *Service) dedupe(items []candidate.Candidate) []ranked {
	order := make([]candidate.Candidate, len(items))
	copy(order, items)
	sort.SliceStable(order, func(i, j int) bool { return survivesOver(order[i], order[j]) })

	kept := make([]ranked, 0, len(order))
	for _, c := range order {
		dup := -1
		for ki := range kept {
			if Similarity(c.Product(), kept[ki].Product()) >= s.threshold {
				dup = ki
				break
			}
		}
		if dup < 0 {
			kept = append(kept, ranked{Candidate: c, score: c.Score()})
			continue
		}
		kept[dup].score = max(kept[dup].score, c.Score())
	}
	return kept
}

type ranked struct {
	candidate.Candidate
	score float64
}

// survivesOver prefers fewer defaulted fields, then source priority, then earlier arrival.
func survivesOver(a, b candidate.Candidate) bool {
	da, db := a.Product().DefaultedFields(), b.Product().DefaultedFields()
	if da != db {
		return da < db
	}
	pa, pb := a.Product().Source().Priority(), b.Product().Source().Priority()
	if pa != pb {
		return pa < pb
	}
	return a.Arrival() < b.Arrival()
}

// ranksBefore orders by score descending, then source priority, then arrival.
func ranksBefore(a, b ranked) bool {
	if a.score != b.score {
		return a.score > b.score
	}
	pa, pb := a.Product().Source().Priority(), b.Product().Source().Priority()
	if pa != pb {
		return pa < pb
	}
	return a.Arrival() < b.Arrival()
}

func facetKey(p product.Product) string {
	return product.Fold(p.Category()) + "|" + product.Fold(p.Material()) + "|" + product.Fold(p.Style())
}
