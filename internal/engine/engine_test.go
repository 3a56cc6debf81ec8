package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"blockdiff/internal/align"
	"blockdiff/internal/blocks"
	"blockdiff/internal/diff"
	"blockdiff/internal/render"
)

type differFunc func(ctx context.Context, oldText, newText string) (diff.Result, error)

func (f differFunc) Diff(ctx context.Context, oldText, newText string) (diff.Result, error) {
	return f(ctx, oldText, newText)
}

// opcodeRenderer renders a script as the opcodes of its next chain, one per line.
var opcodeRenderer = render.RenderFunc(func(root string, g *blocks.Graph, _ string, _ render.Options) (string, error) {
	var lines []string
	for id := root; id != ""; {
		b, ok := g.Get(id)
		if !ok {
			return "", fmt.Errorf("missing %q", id)
		}
		lines = append(lines, b.Opcode)
		id = b.Next.ID
	}
	return strings.Join(lines, "\n"), nil
})

func script(rootID string, opcodes ...string) string {
	var parts []string
	prev := "null"
	for i, op := range opcodes {
		id := fmt.Sprintf("%s%d", rootID, i)
		if i == 0 {
			id = rootID
		}
		next := "null"
		if i+1 < len(opcodes) {
			next = fmt.Sprintf("%q", fmt.Sprintf("%s%d", rootID, i+1))
		}
		parts = append(parts, fmt.Sprintf("%q: {\"opcode\": %q, \"parent\": %s, \"next\": %s, \"inputs\": {}, \"fields\": {}}", id, op, prev, next))
		prev = fmt.Sprintf("%q", id)
	}
	return strings.Join(parts, ",\n")
}

func graphOf(scripts ...string) []byte {
	return []byte("{" + strings.Join(scripts, ",\n") + "}")
}

func TestCompareUnchangedSnapshots(t *testing.T) {
	raw := graphOf(script("a", "when", "move"), script("b", "when", "say"))
	e := New(Options{Renderer: opcodeRenderer})
	cmp, err := e.Compare(context.Background(), raw, raw)
	require.NoError(t, err)
	assert.Empty(t, cmp.Results)
	assert.False(t, cmp.Changed())
	assert.Equal(t, []string{"a", "b"}, cmp.NewRoots)
}

func TestCompareClassifiesChanges(t *testing.T) {
	oldRaw := graphOf(script("a", "when", "move"), script("b", "when", "say"))
	newRaw := graphOf(script("A", "when", "move", "turn"), script("B", "when", "say"), script("C", "zz"))

	e := New(Options{Renderer: opcodeRenderer})
	cmp, err := e.Compare(context.Background(), oldRaw, newRaw)
	require.NoError(t, err)

	// sorted old: [when\nmove, when\nsay]; sorted new: [when\nmove\nturn, when\nsay, zz]
	require.Len(t, cmp.Results, 2)
	first := cmp.Results[0]
	assert.Equal(t, align.Modified, first.Status)
	assert.Equal(t, 0, first.ScriptNo)
	assert.Equal(t, "A", first.RootID)
	assert.Equal(t, "a", first.OldRootID)
	assert.Equal(t, 1, first.Added)
	assert.Equal(t, 0, first.Removed)
	assert.Contains(t, first.Diffed, "+turn")

	second := cmp.Results[1]
	assert.Equal(t, align.Added, second.Status)
	assert.Equal(t, 2, second.ScriptNo)
	assert.Equal(t, "C", second.RootID)
	assert.Empty(t, second.OldRootID)
	assert.Equal(t, "+zz", second.Diffed)
}

func TestCompareKeepsPairOrderWhateverCompletionOrder(t *testing.T) {
	oldRaw := graphOf(script("a", "a1"), script("b", "b1"), script("c", "c1"))
	newRaw := graphOf(script("a", "a2"), script("b", "b2"), script("c", "c2"))

	delay := map[string]time.Duration{"a1": 30 * time.Millisecond, "b1": 15 * time.Millisecond, "c1": 0}
	slow := differFunc(func(ctx context.Context, o, n string) (diff.Result, error) {
		time.Sleep(delay[o])
		return diff.Result{Added: 1, Removed: 1, Diffed: "-" + o + "\n+" + n}, nil
	})

	e := New(Options{Renderer: opcodeRenderer, Differ: slow})
	cmp, err := e.Compare(context.Background(), oldRaw, newRaw)
	require.NoError(t, err)
	require.Len(t, cmp.Results, 3)
	for i, want := range []string{"a2", "b2", "c2"} {
		assert.Equal(t, i, cmp.Results[i].ScriptNo)
		assert.Equal(t, want, cmp.Results[i].NewContent)
	}
}

func TestCompareIsolatesPairFailures(t *testing.T) {
	oldRaw := graphOf(script("a", "a1"), script("b", "b1"))
	newRaw := graphOf(script("a", "a2"), script("b", "b2"))

	flaky := differFunc(func(ctx context.Context, o, n string) (diff.Result, error) {
		if o == "a1" {
			return diff.Result{}, fmt.Errorf("%w: connection refused", diff.ErrUnavailable)
		}
		return diff.Lines(o, n, diff.Options{})
	})

	e := New(Options{Renderer: opcodeRenderer, Differ: flaky})
	cmp, err := e.Compare(context.Background(), oldRaw, newRaw)
	require.NoError(t, err)

	require.Len(t, cmp.Results, 1)
	assert.Equal(t, "b2", cmp.Results[0].NewContent)
	require.Len(t, cmp.Failures, 1)
	assert.Equal(t, 0, cmp.Failures[0].ScriptNo)
	assert.ErrorIs(t, cmp.Failures[0], diff.ErrUnavailable)
	assert.Contains(t, cmp.Failures[0].Reason, "connection refused")
}

func TestCompareDropsLineEquivalentPairs(t *testing.T) {
	oldRaw := graphOf(script("a", "move 10 steps"))
	newRaw := graphOf(script("a", "move 10 steps "))

	trimming := differFunc(func(ctx context.Context, o, n string) (diff.Result, error) {
		return diff.Lines(strings.TrimSpace(o), strings.TrimSpace(n), diff.Options{})
	})
	e := New(Options{Renderer: opcodeRenderer, Differ: trimming})
	cmp, err := e.Compare(context.Background(), oldRaw, newRaw)
	require.NoError(t, err)
	assert.Empty(t, cmp.Results)
	assert.Empty(t, cmp.Failures)
}

func TestCompareRespectsConcurrencyLimit(t *testing.T) {
	var inFlight, peak int32
	counting := differFunc(func(ctx context.Context, o, n string) (diff.Result, error) {
		cur := atomic.AddInt32(&inFlight, 1)
		for {
			p := atomic.LoadInt32(&peak)
			if cur <= p || atomic.CompareAndSwapInt32(&peak, p, cur) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		atomic.AddInt32(&inFlight, -1)
		return diff.Result{Diffed: "+x"}, nil
	})

	var oldS, newS []string
	for i := 0; i < 8; i++ {
		oldS = append(oldS, script(fmt.Sprintf("o%d", i), fmt.Sprintf("old%d", i)))
		newS = append(newS, script(fmt.Sprintf("n%d", i), fmt.Sprintf("new%d", i)))
	}
	e := New(Options{Renderer: opcodeRenderer, Differ: counting, MaxConcurrent: 2})
	cmp, err := e.Compare(context.Background(), graphOf(oldS...), graphOf(newS...))
	require.NoError(t, err)
	assert.Len(t, cmp.Results, 8)
	assert.LessOrEqual(t, atomic.LoadInt32(&peak), int32(2))
}

func TestCompareParseFailure(t *testing.T) {
	e := New(Options{})
	_, err := e.Compare(context.Background(), []byte(`{"a":`), []byte(`{}`))
	assert.ErrorIs(t, err, blocks.ErrParse)
}

func TestCompareCanonicalizationFailureIsFatal(t *testing.T) {
	boom := errors.New("boom")
	failing := render.RenderFunc(func(root string, g *blocks.Graph, l string, o render.Options) (string, error) {
		b, _ := g.Get(root)
		if b.Opcode == "bad" {
			return "", boom
		}
		return opcodeRenderer(root, g, l, o)
	})
	oldRaw := graphOf(script("a", "ok"))
	newRaw := graphOf(script("a", "ok"), script("b", "bad"))

	e := New(Options{Renderer: failing})
	_, err := e.Compare(context.Background(), oldRaw, newRaw)
	assert.ErrorIs(t, err, ErrCanonicalization)
}

func TestCompareRendererPanicIsCanonicalizationFailure(t *testing.T) {
	panicky := render.RenderFunc(func(string, *blocks.Graph, string, render.Options) (string, error) {
		panic("unsupported opcode")
	})
	e := New(Options{Renderer: panicky})
	raw := graphOf(script("a", "x"))
	_, err := e.Compare(context.Background(), raw, raw)
	assert.ErrorIs(t, err, ErrCanonicalization)
}

func TestCompareDoesNotMutateInput(t *testing.T) {
	oldG, err := blocks.Normalize(graphOf(script("a", "x", "y")))
	require.NoError(t, err)
	newG, err := blocks.Normalize(graphOf(script("a", "x", "z")))
	require.NoError(t, err)
	before, err := newG.MarshalJSON()
	require.NoError(t, err)

	e := New(Options{Renderer: opcodeRenderer})
	_, err = e.CompareGraphs(context.Background(), oldG, newG)
	require.NoError(t, err)

	after, err := newG.MarshalJSON()
	require.NoError(t, err)
	assert.JSONEq(t, string(before), string(after))
	assert.Equal(t, []string{"a", "a1"}, newG.IDs())
}

func TestScriptsRenderIsolatedCopies(t *testing.T) {
	g, err := blocks.Normalize(graphOf(script("a", "when", "move")))
	require.NoError(t, err)
	e := New(Options{Renderer: opcodeRenderer})
	scripts, err := e.Scripts(g)
	require.NoError(t, err)
	require.Len(t, scripts, 1)
	assert.Equal(t, "a", scripts[0].RootID)
	assert.Equal(t, "when\nmove", scripts[0].Text)
	assert.False(t, scripts[0].Graph.Has("a"))
	assert.Equal(t, 2, scripts[0].Graph.Len())
}

func TestHighlightCorrelatesAndFallsBackToCache(t *testing.T) {
	oldRaw := graphOf(script("s0", "when"), script("s1", "move"))
	newRaw := graphOf(script("s0", "when"), script("s1", "turn"))

	e := New(Options{Renderer: opcodeRenderer})
	ctx := context.Background()

	// the editor re-created its blocks, so ids only match by position
	ids, cmp, err := e.Highlight(ctx, "Cat", oldRaw, newRaw, []string{"x0", "x1"})
	require.NoError(t, err)
	require.Len(t, cmp.Results, 1)
	assert.Equal(t, []string{"x1"}, ids)

	// live list is momentarily empty: fall back to the cached ids
	ids, _, err = e.Highlight(ctx, "Cat", oldRaw, newRaw, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"x1"}, ids)

	// nothing changed and nothing cached for another sprite
	ids, _, err = e.Highlight(ctx, "Dog", oldRaw, oldRaw, []string{"d0"})
	require.NoError(t, err)
	assert.Nil(t, ids)
}

func TestHighlightExactMatch(t *testing.T) {
	oldRaw := graphOf(script("s0", "when"))
	newRaw := graphOf(script("s0", "when"), script("s1", "zap"))
	e := New(Options{Renderer: opcodeRenderer})
	ids, _, err := e.Highlight(context.Background(), "Stage (stage)", oldRaw, newRaw, []string{"s1", "s0"})
	require.NoError(t, err)
	assert.Equal(t, []string{"s1"}, ids)
}
