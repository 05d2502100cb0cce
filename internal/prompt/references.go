// Package prompt finds tab and tag references in free-text instructions and
// gathers the referenced pages as model context.
package prompt

import (
	"regexp"
	"strings"
)

// RefKind distinguishes tab from tag references.
type RefKind int

const (
	RefTab RefKind = iota
	RefTag
)

// Reference is one reference found in a prompt.
type Reference struct {
	Kind  RefKind
	Value string
}

// referenceRe matches `tag:<name>` or `tab <id>` where id is a bare token or
// a double-quoted phrase.
var referenceRe = regexp.MustCompile(`(?i)\btag:([\w-]+)|\btab\s+(?:"([^"]+)"|(\S+))`)

// ParseReferences returns the references in text in order of appearance,
// without duplicates.
func ParseReferences(text string) []Reference {
	var out []Reference
	seen := make(map[Reference]bool)
	for _, m := range referenceRe.FindAllStringSubmatch(text, -1) {
		var ref Reference
		switch {
		case m[1] != "":
			ref = Reference{Kind: RefTag, Value: m[1]}
		case m[2] != "":
			ref = Reference{Kind: RefTab, Value: m[2]}
		default:
			id := strings.TrimRight(m[3], ",.;:!?)")
			if id == "" {
				continue
			}
			ref = Reference{Kind: RefTab, Value: id}
		}
		if seen[ref] {
			continue
		}
		seen[ref] = true
		out = append(out, ref)
	}
	return out
}
