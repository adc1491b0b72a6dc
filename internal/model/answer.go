package model

import (
	"fmt"
	"slices"
	"strings"
)

// AnswerKind discriminates the two answer variants an extraction can produce.
type AnswerKind string

const (
	// AnswerScalar is a single free-form value (string form of whatever
	// the model returned: text, number, boolean; empty when absent).
	AnswerScalar AnswerKind = "scalar"
	// AnswerList is an ordered sequence of candidate values for a
	// multi-choice question, of which exactly one ends up selected.
	AnswerList AnswerKind = "list"
)

// AnswerEntry is one extracted answer. LinkID should reference a
// questionnaire item but is not required to resolve. For the list variant,
// Candidates holds the original candidate sequence and is never mutated
// after creation; Selected points at the chosen value (nil until a default
// or an override picks one). Scalar and Selected/Candidates are mutually
// exclusive by Kind.
type AnswerEntry struct {
	LinkID     string     `json:"link_id"`
	Kind       AnswerKind `json:"kind"`
	Scalar     string     `json:"scalar,omitempty"`
	Candidates []string   `json:"candidates,omitempty"`
	Selected   *string    `json:"selected,omitempty"`
}

// NewScalarAnswer builds a scalar-variant entry.
func NewScalarAnswer(linkID, value string) AnswerEntry {
	return AnswerEntry{LinkID: linkID, Kind: AnswerScalar, Scalar: value}
}

// NewListAnswer builds a list-variant entry with no selection yet.
func NewListAnswer(linkID string, candidates []string) AnswerEntry {
	return AnswerEntry{LinkID: linkID, Kind: AnswerList, Candidates: candidates}
}

// HasSelection reports whether a choice has been made for a list entry.
func (e AnswerEntry) HasSelection() bool {
	return e.Selected != nil
}

// DisplayAnswer resolves the entry to its export form: the selected value
// if present, else the candidates joined with ", ", else the scalar value,
// else empty.
func (e AnswerEntry) DisplayAnswer() string {
	if e.Selected != nil {
		return *e.Selected
	}
	if e.Kind == AnswerList {
		return strings.Join(e.Candidates, ", ")
	}
	return e.Scalar
}

// ResultSet is the ordered answer set produced by one analysis run. It is
// owned by a single session: replaced wholesale on a successful run,
// cleared on run start and on failure, never merged across runs.
type ResultSet struct {
	Entries []AnswerEntry `json:"entries"`
}

// Normalize applies the default-selection rule: every list entry with at
// least one candidate and no selection yet gets its first candidate
// selected. Scalar and empty-list entries are untouched. Idempotent:
// existing selections are preserved.
func (rs *ResultSet) Normalize() {
	for i := range rs.Entries {
		e := &rs.Entries[i]
		if e.Kind != AnswerList || e.Selected != nil || len(e.Candidates) == 0 {
			continue
		}
		first := e.Candidates[0]
		e.Selected = &first
	}
}

// Select overrides the selection of the entry at position i. The value
// must be one of the entry's original candidates; anything else is a
// caller bug and is rejected with a ValidationError rather than allowed
// to corrupt the entry. The candidate list itself is never modified.
func (rs *ResultSet) Select(i int, value string) error {
	if i < 0 || i >= len(rs.Entries) {
		return &ValidationError{
			Reason: fmt.Sprintf("entry index %d out of range (0..%d)", i, len(rs.Entries)-1),
		}
	}
	e := &rs.Entries[i]
	if e.Kind != AnswerList {
		return &ValidationError{
			Reason: fmt.Sprintf("entry %d (%s) has no candidate list to select from", i, e.LinkID),
		}
	}
	if !slices.Contains(e.Candidates, value) {
		return &ValidationError{
			Reason: fmt.Sprintf("value %q is not among the candidates for entry %d (%s)", value, i, e.LinkID),
		}
	}
	e.Selected = &value
	return nil
}

// ValidationError reports a selection that violates the caller contract:
// an out-of-range entry, a scalar entry, or a value outside the original
// candidate set.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "invalid answer selection: " + e.Reason
}
