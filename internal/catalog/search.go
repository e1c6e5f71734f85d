package catalog

import (
	"sort"
	"strings"
)

// Match is one keyword search hit.
type Match struct {
	// Record is the matched product.
	Record ProductRecord

	// Score is the textual relevance score. Higher is more relevant;
	// the scale is ordinal, not a probability.
	Score float64
}

// Relevance tiers. Tiers are spaced so that a weaker tier can never
// outrank a stronger one regardless of token overlap.
const (
	scoreExact     = 100.0
	scorePrefix    = 80.0
	scoreSubstring = 60.0
	scoreFuzzyMax  = 40.0
)

// Search ranks catalog records against query: exact name match first,
// then name prefix, then substring anywhere in the search text, then
// fuzzy token overlap. Ties are broken by ascending product id so
// results are stable across runs. At most limit matches are returned;
// limit <= 0 means a default of 8, matching the tool surface.
func (s *Snapshot) Search(query string, limit int) []Match {
	if limit <= 0 {
		limit = 8
	}
	if limit > 25 {
		limit = 25
	}

	q := Normalize(query)
	if q == "" {
		return nil
	}
	tokens := Tokenize(q)

	var matches []Match
	for i, r := range s.records {
		score := scoreRecord(q, tokens, Normalize(r.Name), s.search[i])
		if score <= 0 {
			continue
		}
		matches = append(matches, Match{Record: r, Score: score})
	}

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		return matches[i].Record.ID < matches[j].Record.ID
	})

	if len(matches) > limit {
		matches = matches[:limit]
	}
	return matches
}

// scoreRecord computes the tiered relevance of one record.
// name and searchText are already normalized.
func scoreRecord(query string, tokens []string, name, searchText string) float64 {
	if name == query {
		return scoreExact
	}
	if strings.HasPrefix(name, query) {
		return scorePrefix
	}
	if strings.Contains(searchText, query) {
		return scoreSubstring
	}
	if len(tokens) == 0 {
		return 0
	}

	// Fuzzy tier: fraction of query tokens present anywhere in the
	// record's search text.
	hits := 0
	for _, tok := range tokens {
		if strings.Contains(searchText, tok) {
			hits++
		}
	}
	if hits == 0 {
		return 0
	}
	return scoreFuzzyMax * float64(hits) / float64(len(tokens))
}
