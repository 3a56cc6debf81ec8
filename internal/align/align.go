// Package align pairs the scripts of two snapshots of a sprite and
// classifies each pair.
//
// Scripts are unordered, so SortZip sorts both sides by canonical text and
// pairs them by position. This is an approximation: a reordered script whose
// lexical position shifts can be paired with an unrelated neighbour and
// reported as modified. Alternative strategies plug in behind Aligner.
package align

import (
	"slices"
	"strings"

	"blockdiff/internal/blocks"
)

// Status classifies an aligned pair.
type Status string

const (
	Modified Status = "modified"
	Added    Status = "added"
	Removed  Status = "removed"
)

// Script is the canonical rendering of one script. The zero value is the
// empty sentinel used when one side has no counterpart.
type Script struct {
	RootID string        `json:"rootId,omitempty"`
	Graph  *blocks.Graph `json:"-"`
	Text   string        `json:"text"`
}

// Empty reports whether s is the sentinel.
func (s Script) Empty() bool { return s.Text == "" }

// Pair is one old/new position of an alignment.
type Pair struct {
	Old    Script `json:"old"`
	New    Script `json:"new"`
	Index  int    `json:"scriptNo"`
	Status Status `json:"status"`
}

// Aligner pairs old and new scripts. Pairs whose texts are identical are
// never returned.
type Aligner interface {
	Align(oldScripts, newScripts []Script) []Pair
}

// SortZip sorts each side by text (ordinal byte order) and zips them.
type SortZip struct{}

func (SortZip) Align(oldScripts, newScripts []Script) []Pair {
	oldSorted := sortedByText(oldScripts)
	newSorted := sortedByText(newScripts)

	n := max(len(oldSorted), len(newSorted))
	out := make([]Pair, 0, n)
	for i := 0; i < n; i++ {
		var o, nw Script
		if i < len(oldSorted) {
			o = oldSorted[i]
		}
		if i < len(newSorted) {
			nw = newSorted[i]
		}
		if o.Text == nw.Text {
			continue
		}
		out = append(out, Pair{Old: o, New: nw, Index: i, Status: Classify(o.Text, nw.Text)})
	}
	return out
}

// Classify returns the status of a non-identical pair of texts.
func Classify(oldText, newText string) Status {
	switch {
	case oldText != "" && newText != "":
		return Modified
	case oldText == "" && newText != "":
		return Added
	default:
		return Removed
	}
}

func sortedByText(in []Script) []Script {
	out := slices.Clone(in)
	slices.SortStableFunc(out, func(a, b Script) int { return strings.Compare(a.Text, b.Text) })
	return out
}
