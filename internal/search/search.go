// Package search implements the keyword ranking engine: weighted
// case-insensitive substring scoring over name, description, and content.
// There is deliberately no tokenization, stemming, or inverted index.
package search

import (
	"sort"
	"strings"

	"github.com/starford/ansuz/internal/markdown"
	"github.com/starford/ansuz/internal/models"
)

// Field weights. A name hit outranks any realistic number of
// description hits, which in turn outrank content hits.
const (
	WeightName        = 10.0
	WeightDescription = 1.0
	WeightContent     = 0.1
)

// Document is the scoring input for one document.
type Document struct {
	Name        string
	Description string
	Content     string
	Version     int
}

// Hit is one ranked result.
type Hit struct {
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Version     int     `json:"version"`
	Score       float64 `json:"score"`
}

// DecisionHit is one ranked result of a decision-restricted query.
type DecisionHit struct {
	Name      string            `json:"name"`
	Score     float64           `json:"score"`
	Decisions []models.Decision `json:"decisions"`
}

// Rank scores every document against query and returns hits ordered by
// descending score, ties broken by ascending name. Documents scoring
// zero are excluded; an unmatched query yields an empty slice, not an
// error.
//
// All three fields go through the same matching routine (lowercased
// substring containment) so that a query matching only the description
// or content can never be silently zeroed by divergent per-field
// semantics.
func Rank(query string, docs []Document) []Hit {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return nil
	}

	var hits []Hit
	for _, d := range docs {
		score := 0.0
		if contains(d.Name, q) {
			score += WeightName
		}
		score += WeightDescription * float64(occurrences(d.Description, q))
		score += WeightContent * float64(occurrences(d.Content, q))
		if score == 0 {
			continue
		}
		hits = append(hits, Hit{
			Name:        d.Name,
			Description: d.Description,
			Version:     d.Version,
			Score:       score,
		})
	}
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].Name < hits[j].Name
	})
	return hits
}

// RankDecisions scores query only against the structured decision
// sections of each document. Documents without a matching decision or
// rationale never appear, regardless of prose matches elsewhere.
func RankDecisions(query string, docs []Document) []DecisionHit {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return nil
	}

	var hits []DecisionHit
	for _, d := range docs {
		var matched []models.Decision
		score := 0.0
		for _, dec := range markdown.Decisions(d.Content) {
			n := occurrences(dec.Decision, q) + occurrences(dec.Rationale, q)
			if n == 0 {
				continue
			}
			score += float64(n)
			matched = append(matched, dec)
		}
		if len(matched) == 0 {
			continue
		}
		hits = append(hits, DecisionHit{Name: d.Name, Score: score, Decisions: matched})
	}
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].Name < hits[j].Name
	})
	return hits
}

// contains reports whether q occurs in s, case-insensitively.
func contains(s, q string) bool {
	return strings.Contains(strings.ToLower(s), q)
}

// occurrences counts non-overlapping occurrences of q in s, case-insensitively.
func occurrences(s, q string) int {
	return strings.Count(strings.ToLower(s), q)
}
