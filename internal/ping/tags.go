package ping

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// Tags is an ordered set of tags compared case-insensitively.
// The first spelling of a tag wins; later case variants are dropped.
type Tags []string

var folder = cases.Fold()

// Fold returns the comparison key for a tag: NFC normalized and case folded.
func Fold(tag string) string {
	return folder.String(norm.NFC.String(tag))
}

// NewTags builds a tag set from individual tags, dropping empty strings and
// case-insensitive duplicates.
func NewTags(tags ...string) Tags {
	out := make(Tags, 0, len(tags))
	seen := make(map[string]struct{}, len(tags))
	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		if tag == "" {
			continue
		}
		key := Fold(tag)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, tag)
	}
	return out
}

// SplitTags splits free text on whitespace into a tag set.
func SplitTags(text string) Tags {
	return NewTags(strings.Fields(text)...)
}

// Contains reports whether the set holds tag, ignoring case.
func (t Tags) Contains(tag string) bool {
	key := Fold(tag)
	for _, have := range t {
		if Fold(have) == key {
			return true
		}
	}
	return false
}

// Keys returns the folded form of every tag, keyed for fast lookup.
func (t Tags) Keys() map[string]struct{} {
	keys := make(map[string]struct{}, len(t))
	for _, tag := range t {
		keys[Fold(tag)] = struct{}{}
	}
	return keys
}

// String joins the tags with single spaces.
func (t Tags) String() string {
	return strings.Join(t, " ")
}
