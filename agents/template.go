package agents

import (
	"errors"
	"fmt"
	"strings"
)

// ErrMissingSlot is returned by Render when a declared slot has no value.
var ErrMissingSlot = errors.New("missing template slot value")

// segment is either literal text or a slot reference.
type segment struct {
	text string
	slot bool
}

// Template is a prompt with a fixed set of named slots.
//
// Only the markers {name} for the declared slot names are substitution
// points. Every other character, including braces that belong to example
// JSON in the prompt body, is copied through unchanged.
//
// Example:
//
//	t := agents.MustTemplate("Guest: {diner_info}\nFormat: {\"a\": 1}", "diner_info")
//	out, err := t.Render(map[string]string{"diner_info": `{"name":"Ana"}`})
type Template struct {
	segments []segment
	slots    []string
}

// NewTemplate parses text. Each declared slot must appear at least once.
func NewTemplate(text string, slots ...string) (*Template, error) {
	if len(slots) == 0 {
		return nil, errors.New("template needs at least one slot")
	}
	declared := make(map[string]bool, len(slots))
	for _, s := range slots {
		if s == "" || strings.ContainsAny(s, "{}") {
			return nil, fmt.Errorf("invalid slot name %q", s)
		}
		declared[s] = true
	}

	t := &Template{slots: append([]string(nil), slots...)}
	seen := make(map[string]bool, len(slots))

	var lit strings.Builder
	flush := func() {
		if lit.Len() > 0 {
			t.segments = append(t.segments, segment{text: lit.String()})
			lit.Reset()
		}
	}

	for i := 0; i < len(text); {
		if text[i] == '{' {
			if end := strings.IndexByte(text[i+1:], '}'); end >= 0 {
				name := text[i+1 : i+1+end]
				if declared[name] {
					flush()
					t.segments = append(t.segments, segment{text: name, slot: true})
					seen[name] = true
					i += end + 2
					continue
				}
			}
		}
		lit.WriteByte(text[i])
		i++
	}
	flush()

	for _, s := range slots {
		if !seen[s] {
			return nil, fmt.Errorf("slot %q not found in template", s)
		}
	}
	return t, nil
}

// MustTemplate is like NewTemplate but panics on error. Use it for
// package-level prompt definitions.
func MustTemplate(text string, slots ...string) *Template {
	t, err := NewTemplate(text, slots...)
	if err != nil {
		panic(fmt.Sprintf("agents: %v", err))
	}
	return t
}

// Slots returns the declared slot names in declaration order.
func (t *Template) Slots() []string {
	return append([]string(nil), t.slots...)
}

// Render substitutes values into the declared slots. Extra keys in values
// are ignored.
func (t *Template) Render(values map[string]string) (string, error) {
	for _, s := range t.slots {
		if _, ok := values[s]; !ok {
			return "", fmt.Errorf("%w: %s", ErrMissingSlot, s)
		}
	}

	var b strings.Builder
	for _, seg := range t.segments {
		if seg.slot {
			b.WriteString(values[seg.text])
		} else {
			b.WriteString(seg.text)
		}
	}
	return b.String(), nil
}
