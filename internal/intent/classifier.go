package intent

import (
	"fmt"
	"strings"

	"github.com/ppiankov/hookroute/internal/config"
)

// Classifier evaluates rules in order; the first match wins.
// Marker rules always run before pattern rules.
type Classifier struct {
	rules []Rule
}

// New returns a classifier over rules. Marker rules are moved ahead of
// pattern rules; relative order within each kind is preserved.
func New(rules []Rule) *Classifier {
	ordered := make([]Rule, 0, len(rules))
	for _, r := range rules {
		if r.Kind == Marker {
			ordered = append(ordered, r)
		}
	}
	for _, r := range rules {
		if r.Kind != Marker {
			ordered = append(ordered, r)
		}
	}
	return &Classifier{rules: ordered}
}

// Default returns a classifier over DefaultRules.
func Default() *Classifier {
	return New(DefaultRules())
}

// FromConfig compiles configured rules ahead of the built-in table.
func FromConfig(cfg config.IntentConfig) (*Classifier, error) {
	extra, err := Compile(cfg.Rules)
	if err != nil {
		return nil, err
	}
	if cfg.DisableDefaults {
		return New(extra), nil
	}
	return New(append(extra, DefaultRules()...)), nil
}

// Compile turns YAML rule specs into rules.
func Compile(specs []config.RuleSpec) ([]Rule, error) {
	rules := make([]Rule, 0, len(specs))
	for i, s := range specs {
		var (
			r   Rule
			err error
		)
		switch Kind(s.Kind) {
		case Marker:
			r, err = NewMarker(s.Match, s.Handler)
		case Pattern:
			r, err = NewPattern(s.Match, s.Handler)
		default:
			err = fmt.Errorf("unknown kind %q", s.Kind)
		}
		if err != nil {
			return nil, fmt.Errorf("intent rule %d: %w", i, err)
		}
		rules = append(rules, r)
	}
	return rules, nil
}

// Rules returns the evaluation order.
func (c *Classifier) Rules() []Rule {
	out := make([]Rule, len(c.rules))
	copy(out, c.rules)
	return out
}

// Classify returns the handler for text, or "" when no rule matches.
func (c *Classifier) Classify(text string) string {
	h, _ := c.Explain(text)
	return h
}

// Explain is Classify plus the rule that fired.
func (c *Classifier) Explain(text string) (string, *Rule) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", nil
	}
	for i := range c.rules {
		if c.rules[i].Matches(text) {
			return c.rules[i].Handler, &c.rules[i]
		}
	}
	return "", nil
}

// ClassifyTask classifies description first and falls back to prompt only
// when the description yields nothing.
func (c *Classifier) ClassifyTask(description, prompt string) string {
	if h := c.Classify(description); h != "" {
		return h
	}
	return c.Classify(prompt)
}
