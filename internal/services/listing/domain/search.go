package domain

import (
	"sort"
	"strings"

	"github.com/lithammer/fuzzysearch/fuzzy"
)

// descriptionMatchPenalty pushes description-only matches behind title hits.
const descriptionMatchPenalty = 100

// searchTerms splits a free-text query into lower-cased terms.
func searchTerms(q string) []string {
	return strings.Fields(strings.ToLower(q))
}

// searchScore ranks a listing's title and description against every term.
// Lower is better; ok is false when some term matches nothing.
func searchScore(l Listing, terms []string) (score int, ok bool) {
	titleWords := strings.Fields(l.Title)
	description := strings.ToLower(l.Description)
	for _, term := range terms {
		best := -1
		for _, word := range titleWords {
			if rank := fuzzy.RankMatchNormalizedFold(term, word); rank >= 0 && (best < 0 || rank < best) {
				best = rank
			}
		}
		if best < 0 && strings.Contains(description, term) {
			best = descriptionMatchPenalty
		}
		if best < 0 {
			return 0, false
		}
		score += best
	}
	return score, true
}

// rankByRelevance keeps listings matching q, best first. Ties keep the
// incoming order.
func rankByRelevance(listings []Listing, q string) []Listing {
	terms := searchTerms(q)
	if len(terms) == 0 {
		return listings
	}
	type scored struct {
		listing Listing
		score   int
	}
	matches := make([]scored, 0, len(listings))
	for _, l := range listings {
		if score, ok := searchScore(l, terms); ok {
			matches = append(matches, scored{listing: l, score: score})
		}
	}
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].score < matches[j].score
	})
	ranked := make([]Listing, len(matches))
	for i, m := range matches {
		ranked[i] = m.listing
	}
	return ranked
}
