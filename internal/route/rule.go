package route

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/roach88/tagtime/internal/ping"
)

var (
	// ErrEmptyRule is returned for a rule with neither required nor excluded tags.
	ErrEmptyRule = errors.New("rule has no required or excluded tags")

	// ErrInvalidGraph is returned for a malformed graph name.
	ErrInvalidGraph = errors.New("invalid graph name")
)

// graphPattern matches graph slugs as accepted by goal-tracking services.
var graphPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_-]*$`)

// Rule routes matching entries to one graph.
type Rule struct {
	Graph    string    `json:"graph"`
	Required ping.Tags `json:"required,omitempty"`
	Excluded ping.Tags `json:"excluded,omitempty"`
}

// NewRule builds and validates a rule.
func NewRule(graph string, required, excluded []string) (Rule, error) {
	r := Rule{
		Graph:    strings.TrimSpace(graph),
		Required: ping.NewTags(required...),
		Excluded: ping.NewTags(excluded...),
	}
	if err := r.Validate(); err != nil {
		return Rule{}, err
	}
	return r, nil
}

// Validate checks the graph name and that at least one tag set is non-empty.
func (r Rule) Validate() error {
	if !graphPattern.MatchString(r.Graph) {
		return fmt.Errorf("%w: %q", ErrInvalidGraph, r.Graph)
	}
	if len(r.Required) == 0 && len(r.Excluded) == 0 {
		return fmt.Errorf("rule %q: %w", r.Graph, ErrEmptyRule)
	}
	return nil
}

// Matches reports whether an entry with these tags satisfies the rule.
func (r Rule) Matches(tags ping.Tags) bool {
	have := tags.Keys()
	for _, tag := range r.Excluded {
		if _, ok := have[ping.Fold(tag)]; ok {
			return false
		}
	}
	if len(r.Required) == 0 {
		return true
	}
	for _, tag := range r.Required {
		if _, ok := have[ping.Fold(tag)]; ok {
			return true
		}
	}
	return false
}

// String renders the rule in the compact "graph|tag -tag" form.
func (r Rule) String() string {
	parts := make([]string, 0, len(r.Required)+len(r.Excluded))
	parts = append(parts, r.Required...)
	for _, tag := range r.Excluded {
		parts = append(parts, "-"+tag)
	}
	return r.Graph + "|" + strings.Join(parts, " ")
}

// ParseRule parses the compact form. Tags prefixed with '-' are excluded.
func ParseRule(text string) (Rule, error) {
	graph, pattern, ok := strings.Cut(strings.TrimSpace(text), "|")
	if !ok {
		return Rule{}, fmt.Errorf("parse rule %q: missing '|'", text)
	}

	var required, excluded []string
	for _, field := range strings.Fields(pattern) {
		if tag, neg := strings.CutPrefix(field, "-"); neg {
			if tag == "" {
				return Rule{}, fmt.Errorf("parse rule %q: bare '-'", text)
			}
			excluded = append(excluded, tag)
			continue
		}
		required = append(required, field)
	}

	r, err := NewRule(graph, required, excluded)
	if err != nil {
		return Rule{}, fmt.Errorf("parse rule %q: %w", text, err)
	}
	return r, nil
}

// ParseRules parses every rule, failing on the first malformed one.
func ParseRules(texts []string) ([]Rule, error) {
	rules := make([]Rule, 0, len(texts))
	for _, text := range texts {
		r, err := ParseRule(text)
		if err != nil {
			return nil, err
		}
		rules = append(rules, r)
	}
	return rules, nil
}
