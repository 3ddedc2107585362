// Package intent maps free-text task descriptions to handler names with an
// ordered, static rule table.
package intent

import (
	"fmt"
	"regexp"
	"strings"
)

// Kind tags the matcher variant of a Rule.
type Kind string

const (
	// Marker rules match an exact slash command or short token, as a whole
	// word, anywhere in the text.
	Marker Kind = "marker"
	// Pattern rules match a case-insensitive regular expression.
	Pattern Kind = "pattern"
)

// Rule is one (matcher, target) entry of the classification table.
type Rule struct {
	Kind    Kind
	Match   string
	Handler string

	re *regexp.Regexp
}

// NewMarker builds a marker rule.
func NewMarker(token, handler string) (Rule, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return Rule{}, fmt.Errorf("marker for %s is empty", handler)
	}
	re, err := regexp.Compile(`(?i)(?:^|\s)` + regexp.QuoteMeta(token) + `(?:$|[\s.,;:!?])`)
	if err != nil {
		return Rule{}, fmt.Errorf("marker %q: %w", token, err)
	}
	return Rule{Kind: Marker, Match: token, Handler: handler, re: re}, nil
}

// NewPattern builds a pattern rule. Matching is always case-insensitive.
func NewPattern(expr, handler string) (Rule, error) {
	re, err := regexp.Compile(`(?i)` + expr)
	if err != nil {
		return Rule{}, fmt.Errorf("pattern %q for %s: %w", expr, handler, err)
	}
	return Rule{Kind: Pattern, Match: expr, Handler: handler, re: re}, nil
}

// Matches reports whether the rule fires on text.
func (r Rule) Matches(text string) bool {
	return r.re != nil && r.re.MatchString(text)
}

func (r Rule) String() string {
	return fmt.Sprintf("%s %q -> %s", r.Kind, r.Match, r.Handler)
}

func mustMarker(token, handler string) Rule {
	r, err := NewMarker(token, handler)
	if err != nil {
		panic(err)
	}
	return r
}

func mustPattern(expr, handler string) Rule {
	r, err := NewPattern(expr, handler)
	if err != nil {
		panic(err)
	}
	return r
}
