package xlsx

import (
	"bytes"
	"unicode/utf8"
)

// SharedStringTable is the deduplicated string pool referenced by index
// from shared-string cells. On the read path it is built once per opened
// container and never mutated afterwards.
type SharedStringTable struct {
	strings []string
}

// Len returns the number of strings in the table.
func (t *SharedStringTable) Len() int {
	if t == nil {
		return 0
	}
	return len(t.strings)
}

// At returns the string at the given index. An index at or past Len fails
// explicitly; a cell referencing it is malformed, and the caller must not
// substitute empty data.
func (t *SharedStringTable) At(i int) (string, error) {
	if t == nil || i < 0 || i >= len(t.strings) {
		return "", NewParseError("", 0, "shared string index %d out of range (table size %d)", i, t.Len())
	}
	return t.strings[i], nil
}

// parseSharedStrings decodes the shared-strings part. Each si item
// concatenates its text, direct or across rich-text runs, into one string
// appended in document order. Empty input yields an empty table: the part
// is optional.
func parseSharedStrings(part string, data []byte, opts ParseOptions) (*SharedStringTable, error) {
	table := &SharedStringTable{}
	if len(data) == 0 {
		return table, nil
	}
	p := NewParser(part, opts)
	p.OnString(func(s string) error {
		table.strings = append(table.strings, s)
		return nil
	})
	if err := p.Parse(bytes.NewReader(data)); err != nil {
		return nil, err
	}
	return table, nil
}

// StringPolicy tunes the write-side inline-vs-shared classification. The
// thresholds are heuristic, not fixed by the OOXML standard; whatever
// values are chosen, the classification stays deterministic for the whole
// write session.
type StringPolicy struct {
	// MaxInlineLength inlines strings shorter than this many runes.
	// Short strings cost less written inline than as a pool reference.
	MaxInlineLength int

	// EscapeBloatLimit inlines a string when escaping would grow it past
	// len(s) * limit; such strings are poor pool citizens.
	EscapeBloatLimit float64
}

// DefaultStringPolicy returns the tuning used when the caller supplies
// none.
func DefaultStringPolicy() StringPolicy {
	return StringPolicy{MaxInlineLength: 8, EscapeBloatLimit: 2.0}
}

// StringIntern is the write-side intern table mapping each string to its
// assigned pool index. It is separate from the read-side table; one
// intern serves one write session.
type StringIntern struct {
	policy  StringPolicy
	indexes map[string]int
	strings []string
}

// NewStringIntern creates an intern table with the given policy.
func NewStringIntern(policy StringPolicy) *StringIntern {
	if policy.MaxInlineLength == 0 && policy.EscapeBloatLimit == 0 {
		policy = DefaultStringPolicy()
	}
	return &StringIntern{
		policy:  policy,
		indexes: make(map[string]int),
	}
}

// Inline reports whether s bypasses the pool. The decision depends only
// on s and the policy, so one string always classifies the same way
// within a session. A streaming writer cannot see future occurrences, so
// the single-use criterion folds into the length threshold.
func (in *StringIntern) Inline(s string) bool {
	if utf8.RuneCountInString(s) < in.policy.MaxInlineLength {
		return true
	}
	if in.policy.EscapeBloatLimit > 0 && len(s) > 0 {
		if float64(len(escapeXMLText(s))) > float64(len(s))*in.policy.EscapeBloatLimit {
			return true
		}
	}
	return false
}

// Add classifies s and returns (index, shared). Inline strings report
// shared=false and index -1. The first shared occurrence assigns a new
// index; later identical occurrences reuse it, never reassigning.
func (in *StringIntern) Add(s string) (int, bool) {
	if in.Inline(s) {
		return -1, false
	}
	if i, ok := in.indexes[s]; ok {
		return i, true
	}
	i := len(in.strings)
	in.strings = append(in.strings, s)
	in.indexes[s] = i
	return i, true
}

// Strings returns the pool in index order, for emission as the
// shared-strings part.
func (in *StringIntern) Strings() []string {
	return in.strings
}
