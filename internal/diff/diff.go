// Package diff provides the line-level differ used to compare canonical
// script texts. Hunks are grouped from github.com/pmezard/go-difflib/difflib
// opcodes into github.com/sourcegraph/go-diff hunks, which are printed as
// classic unified patches.
package diff

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	difflib "github.com/pmezard/go-difflib/difflib"
	godiff "github.com/sourcegraph/go-diff/diff"

	"blockdiff/internal/textutil"
)

// ErrUnavailable reports that a diff could not be obtained for one pair.
var ErrUnavailable = errors.New("diff unavailable")

// DefaultContext is used when Options.Context is not positive.
const DefaultContext = 4

// Options controls patch generation behavior.
type Options struct {
	// MaxBytes is a guardrail on input size (old+new). When exceeded,
	// a minimal placeholder is returned and Oversize is set.
	// 0 means "no limit".
	MaxBytes int

	// Context controls the number of context lines in unified hunks.
	// If 0, DefaultContext is used.
	Context int
}

// Result is the outcome of one text diff. Diffed is empty when the two
// texts are equivalent line by line.
type Result struct {
	Added    int    `json:"added"`
	Removed  int    `json:"removed"`
	Diffed   string `json:"diffed"`
	Oversize bool   `json:"oversize,omitempty"`
}

// Differ diffs two texts. Implementations may cross a process boundary.
type Differ interface {
	Diff(ctx context.Context, oldText, newText string) (Result, error)
}

// Local is an in-process Differ.
type Local struct {
	Options Options
}

func (l Local) Diff(ctx context.Context, oldText, newText string) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return Lines(oldText, newText, l.Options)
}

// Lines diffs two texts the way the companion process does: identical
// inputs give an empty result, both sides are terminated with a newline,
// and Diffed holds the hunk bodies without file or hunk headers.
func Lines(oldText, newText string, opt Options) (Result, error) {
	if oldText == newText {
		return Result{}, nil
	}
	a := textutil.EnsureTrailingLF(textutil.NormalizeNewlines(oldText))
	b := textutil.EnsureTrailingLF(textutil.NormalizeNewlines(newText))
	if opt.MaxBytes > 0 && len(a)+len(b) > opt.MaxBytes {
		return Result{Diffed: "# diff omitted (oversize)", Oversize: true}, nil
	}

	var res Result
	var body strings.Builder
	for _, h := range hunks(splitLinesKeepNL(a), splitLinesKeepNL(b), opt.Context) {
		for _, line := range strings.SplitAfter(string(h.Body), "\n") {
			if line == "" {
				continue
			}
			switch line[0] {
			case '+':
				res.Added++
			case '-':
				res.Removed++
			}
		}
		body.Write(h.Body)
	}
	res.Diffed = strings.TrimSuffix(body.String(), "\n")
	return res, nil
}

// Unified produces a classic unified patch for a↦b.
// Returns the patch body and a flag indicating it was omitted due to size.
func Unified(aName, bName string, a, b []byte, opt Options) (body string, oversize bool) {
	// Size guardrail.
	if opt.MaxBytes > 0 && (len(a)+len(b)) > opt.MaxBytes {
		return omitted(aName, bName), true
	}
	hs := hunks(splitLinesKeepNL(string(a)), splitLinesKeepNL(string(b)), opt.Context)
	if len(hs) == 0 {
		return omitted(aName, bName), false
	}
	out, err := godiff.PrintFileDiff(&godiff.FileDiff{OrigName: aName, NewName: bName, Hunks: hs})
	if err != nil {
		// Very rare; return placeholder instead of an empty patch.
		return omitted(aName, bName), false
	}
	return string(out), false
}

// hunks groups the difflib opcodes of a↦b into unified hunks. Every body
// line ends in a newline. Line content is never interpreted, so lines that
// look like patch headers are diffed like any other.
func hunks(a, b []string, ctxLines int) []*godiff.Hunk {
	if ctxLines <= 0 {
		ctxLines = DefaultContext
	}
	groups := difflib.NewMatcher(a, b).GetGroupedOpCodes(ctxLines)
	out := make([]*godiff.Hunk, 0, len(groups))
	for _, group := range groups {
		first, last := group[0], group[len(group)-1]
		h := &godiff.Hunk{
			OrigStartLine: rangeStart(first.I1, last.I2),
			OrigLines:     int32(last.I2 - first.I1),
			NewStartLine:  rangeStart(first.J1, last.J2),
			NewLines:      int32(last.J2 - first.J1),
		}
		var body bytes.Buffer
		for _, op := range group {
			if op.Tag == 'e' {
				writeLines(&body, ' ', a[op.I1:op.I2])
				continue
			}
			if op.Tag == 'r' || op.Tag == 'd' {
				writeLines(&body, '-', a[op.I1:op.I2])
			}
			if op.Tag == 'r' || op.Tag == 'i' {
				writeLines(&body, '+', b[op.J1:op.J2])
			}
		}
		h.Body = body.Bytes()
		out = append(out, h)
	}
	return out
}

// rangeStart is the 1-based first line of a hunk range; an empty range
// names the line before it.
func rangeStart(i1, i2 int) int32 {
	if i2 == i1 {
		return int32(i1)
	}
	return int32(i1 + 1)
}

func writeLines(w *bytes.Buffer, prefix byte, lines []string) {
	for _, l := range lines {
		w.WriteByte(prefix)
		w.WriteString(l)
		if !strings.HasSuffix(l, "\n") {
			w.WriteByte('\n')
		}
	}
}

// splitLinesKeepNL splits into lines and keeps newline characters,
// which produces better unified hunks.
func splitLinesKeepNL(s string) []string {
	if s == "" {
		return []string{}
	}
	lines := strings.SplitAfter(s, "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}

// omitted returns a compact placeholder when size limits are exceeded.
func omitted(aName, bName string) string {
	return fmt.Sprintf("--- %s\n+++ %s\n@@\n# diff omitted (oversize)\n", aName, bName)
}
