package search

import (
	"testing"

	"github.com/starford/ansuz/internal/markdown"
)

func TestRankNameOutweighsDescriptionAndContent(t *testing.T) {
	docs := []Document{
		{Name: "auth.jwt", Description: "token parsing", Content: "auth auth auth auth"},
		{Name: "billing", Description: "auth helper for invoices", Content: "auth is mentioned"},
	}
	hits := Rank("auth", docs)
	if len(hits) != 2 {
		t.Fatalf("len = %d, want 2", len(hits))
	}
	if hits[0].Name != "auth.jwt" {
		t.Errorf("first = %s, want auth.jwt (name match wins)", hits[0].Name)
	}
}

func TestRankDescriptionOnlyMatch(t *testing.T) {
	// A query that appears only in description/content must still hit.
	docs := []Document{{
		Name:        "auth.manager",
		Description: "Authentication management system",
		Content:     "...AuthManager class handles user authentication...",
	}}
	hits := Rank("authentication", docs)
	if len(hits) != 1 || hits[0].Name != "auth.manager" {
		t.Fatalf("hits = %+v, want auth.manager", hits)
	}
	if hits[0].Score <= 0 {
		t.Errorf("score = %f", hits[0].Score)
	}
}

func TestRankCaseInsensitive(t *testing.T) {
	docs := []Document{{Name: "auth", Description: "JWT Middleware", Content: ""}}
	if hits := Rank("jwt middleware", docs); len(hits) != 1 {
		t.Errorf("case-insensitive match failed: %+v", hits)
	}
}

func TestRankExcludesZeroScores(t *testing.T) {
	docs := []Document{
		{Name: "auth", Description: "login", Content: "sessions"},
		{Name: "db", Description: "storage", Content: "sqlite"},
	}
	hits := Rank("sqlite", docs)
	if len(hits) != 1 || hits[0].Name != "db" {
		t.Errorf("hits = %+v", hits)
	}
}

func TestRankEmptyQuery(t *testing.T) {
	docs := []Document{{Name: "auth", Description: "x", Content: "y"}}
	if hits := Rank("", docs); len(hits) != 0 {
		t.Errorf("empty query must return nothing, got %+v", hits)
	}
	if hits := Rank("   ", docs); len(hits) != 0 {
		t.Errorf("whitespace query must return nothing, got %+v", hits)
	}
}

func TestRankTieBreakByName(t *testing.T) {
	docs := []Document{
		{Name: "zeta.cache", Description: "cache layer", Content: ""},
		{Name: "alpha.cache", Description: "cache layer", Content: ""},
	}
	hits := Rank("cache", docs)
	if len(hits) != 2 {
		t.Fatalf("len = %d", len(hits))
	}
	if hits[0].Name != "alpha.cache" {
		t.Errorf("tie-break order wrong: %s first", hits[0].Name)
	}
}

func TestRankOccurrenceCounting(t *testing.T) {
	docs := []Document{
		{Name: "a", Description: "redis redis", Content: ""},
		{Name: "b", Description: "redis", Content: ""},
	}
	hits := Rank("redis", docs)
	if hits[0].Name != "a" {
		t.Errorf("doc with more occurrences should rank first: %+v", hits)
	}
	if hits[0].Score != 2*WeightDescription {
		t.Errorf("score = %f, want %f", hits[0].Score, 2*WeightDescription)
	}
}

func TestRankDecisionsRestricted(t *testing.T) {
	withDecision := markdown.AppendDecision("# Cache\n", "Use Redis for sessions", "Low latency", "2026-08-29")
	docs := []Document{
		{Name: "cache", Description: "caching", Content: withDecision},
		{Name: "prose", Description: "mentions redis", Content: "redis appears in prose only"},
	}
	hits := RankDecisions("redis", docs)
	if len(hits) != 1 || hits[0].Name != "cache" {
		t.Fatalf("hits = %+v, want only cache", hits)
	}
	if len(hits[0].Decisions) != 1 || hits[0].Decisions[0].Decision != "Use Redis for sessions" {
		t.Errorf("decisions = %+v", hits[0].Decisions)
	}
}

func TestRankDecisionsMatchesRationale(t *testing.T) {
	content := markdown.AppendDecision("", "Pick sqlite", "single file deployment", "2026-08-29")
	hits := RankDecisions("deployment", []Document{{Name: "db", Content: content}})
	if len(hits) != 1 {
		t.Fatalf("rationale match missed: %+v", hits)
	}
}

func TestRankDecisionsNoMatch(t *testing.T) {
	content := markdown.AppendDecision("", "Pick sqlite", "single file", "2026-08-29")
	if hits := RankDecisions("kafka", []Document{{Name: "db", Content: content}}); len(hits) != 0 {
		t.Errorf("expected no hits, got %+v", hits)
	}
}
