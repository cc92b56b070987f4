// Package markdown renders and parses the structured decision sections
// embedded in document bodies.
package markdown

import (
	"fmt"
	"strings"

	"github.com/starford/ansuz/internal/models"
)

// DecisionsHeader marks the section that holds decision blocks.
const DecisionsHeader = "## Decisions Made"

const (
	decisionPrefix  = "**Decision**:"
	rationalePrefix = "**Rationale**:"
	datePrefix      = "**Date**:"
)

// AppendDecision returns content with a new decision block appended. The
// "## Decisions Made" header is added once, the first time a decision is
// recorded.
func AppendDecision(content, decision, rationale, date string) string {
	var b strings.Builder
	b.WriteString(content)
	if content != "" && !strings.HasSuffix(content, "\n") {
		b.WriteString("\n")
	}
	if !hasDecisionsHeader(content) {
		b.WriteString("\n" + DecisionsHeader + "\n")
	}
	fmt.Fprintf(&b, "\n%s %s\n%s %s\n%s %s\n", decisionPrefix, decision, rationalePrefix, rationale, datePrefix, date)
	return b.String()
}

func hasDecisionsHeader(content string) bool {
	for _, line := range strings.Split(content, "\n") {
		if strings.TrimSpace(line) == DecisionsHeader {
			return true
		}
	}
	return false
}

// Decisions parses every decision block found under the decisions header.
// Blocks end at the next "**Decision**:" line, the next "## " header, or
// the end of the document.
func Decisions(content string) []models.Decision {
	var out []models.Decision
	var cur *models.Decision
	inSection := false

	flush := func() {
		if cur != nil {
			out = append(out, *cur)
			cur = nil
		}
	}

	for _, line := range strings.Split(content, "\n") {
		trimmed := strings.TrimSpace(line)
		switch {
		case trimmed == DecisionsHeader:
			inSection = true
		case strings.HasPrefix(trimmed, "## "):
			flush()
			inSection = false
		case !inSection:
			// Skip prose outside the decisions section.
		case strings.HasPrefix(trimmed, decisionPrefix):
			flush()
			cur = &models.Decision{Decision: strings.TrimSpace(strings.TrimPrefix(trimmed, decisionPrefix))}
		case cur != nil && strings.HasPrefix(trimmed, rationalePrefix):
			cur.Rationale = strings.TrimSpace(strings.TrimPrefix(trimmed, rationalePrefix))
		case cur != nil && strings.HasPrefix(trimmed, datePrefix):
			cur.Date = strings.TrimSpace(strings.TrimPrefix(trimmed, datePrefix))
		}
	}
	flush()
	return out
}
