// Package naming implements the hierarchical document key: validation,
// segment access, and the deterministic mapping from key to content path.
package naming

import (
	"fmt"
	"path"
	"regexp"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/ansuz/internal/apperr"
)

// Segment grammar: lowercase, ends with a letter or digit, hyphens
// allowed inside. Only the first segment must start with a letter, so
// names like "auth.2fa" remain valid.
var (
	firstSegmentRe = regexp.MustCompile(`^[a-z]$|^[a-z][a-z0-9-]*[a-z0-9]$`)
	segmentRe      = regexp.MustCompile(`^[a-z0-9]$|^[a-z0-9][a-z0-9-]*[a-z0-9]$`)
)

// Name is a validated hierarchical key such as "auth.jwt.middleware".
// The zero value is invalid; construct via Parse.
type Name struct {
	raw      string
	segments []string
}

// Parse validates raw against the hierarchical-key grammar: dot-separated,
// non-empty segments, no leading/trailing/double dots.
func Parse(raw string) (Name, error) {
	if raw == "" {
		return Name{}, fmt.Errorf("%w: name is empty", apperr.ErrInvalidName)
	}
	segments := strings.Split(raw, ".")
	for i, seg := range segments {
		re := segmentRe
		if i == 0 {
			re = firstSegmentRe
		}
		if err := validation.Validate(seg,
			validation.Required,
			validation.Match(re),
		); err != nil {
			return Name{}, fmt.Errorf("%w: %q (use lowercase segments separated by dots, e.g. auth.jwt.middleware)", apperr.ErrInvalidName, raw)
		}
	}
	return Name{raw: raw, segments: segments}, nil
}

// String returns the flat dotted key.
func (n Name) String() string { return n.raw }

// Segments returns the ordered hierarchy segments.
func (n Name) Segments() []string { return n.segments }

// Parent returns the dotted key of the enclosing namespace, if any.
func (n Name) Parent() (string, bool) {
	if len(n.segments) < 2 {
		return "", false
	}
	return strings.Join(n.segments[:len(n.segments)-1], "."), true
}

// RelPath maps the name to its content file path relative to the docs
// directory: hierarchy segments become nested directories, the leaf
// segment becomes a markdown file. The mapping is reversible.
func (n Name) RelPath() string {
	return path.Join(n.segments...) + ".md"
}

// FromRelPath recovers the dotted key from a content file path produced
// by RelPath. It does not validate the result against the grammar.
func FromRelPath(rel string) string {
	rel = strings.TrimSuffix(rel, ".md")
	return strings.ReplaceAll(rel, "/", ".")
}
