// Package engine runs a script-level comparison of two snapshots of a
// sprite's block graph: normalize, canonicalize every script, align, diff
// the changed pairs concurrently, and correlate the results with the ids
// the editor currently shows.
package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"blockdiff/internal/align"
	"blockdiff/internal/blocks"
	"blockdiff/internal/correlate"
	"blockdiff/internal/diff"
	"blockdiff/internal/isolate"
	"blockdiff/internal/render"
)

// ErrCanonicalization reports that the renderer failed on some script. It
// fails the whole comparison since positions computed from the remaining
// scripts would be meaningless.
var ErrCanonicalization = errors.New("canonicalization failure")

// Options configures an Engine. Zero fields get defaults.
type Options struct {
	Renderer render.Renderer
	Aligner  align.Aligner
	Differ   diff.Differ
	Tracker  *correlate.Tracker
	Locale   string
	Render   render.Options
	// MaxConcurrent bounds in-flight diff requests; 0 means unbounded.
	MaxConcurrent int
	Logger        *slog.Logger
}

// Engine compares block graphs. It is safe for concurrent use when its
// Renderer and Differ are.
type Engine struct {
	renderer render.Renderer
	aligner  align.Aligner
	differ   diff.Differ
	tracker  *correlate.Tracker
	locale   string
	ropt     render.Options
	limit    int
	log      *slog.Logger
}

// New returns an Engine with defaults applied: the Outline renderer, the
// sort-and-zip aligner, the in-process differ and a fresh tracker session.
func New(opt Options) *Engine {
	e := &Engine{
		renderer: opt.Renderer,
		aligner:  opt.Aligner,
		differ:   opt.Differ,
		tracker:  opt.Tracker,
		locale:   opt.Locale,
		ropt:     opt.Render,
		limit:    opt.MaxConcurrent,
		log:      opt.Logger,
	}
	if e.renderer == nil {
		e.renderer = render.Outline{}
	}
	e.renderer = render.Safe(e.renderer)
	if e.aligner == nil {
		e.aligner = align.SortZip{}
	}
	if e.differ == nil {
		e.differ = diff.Local{}
	}
	if e.tracker == nil {
		e.tracker = correlate.NewSession()
	}
	if e.locale == "" {
		e.locale = "en"
	}
	if e.log == nil {
		e.log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return e
}

// Tracker returns the session tracker used by Highlight.
func (e *Engine) Tracker() *correlate.Tracker { return e.tracker }

// DiffResult is one changed script.
type DiffResult struct {
	OldContent string       `json:"oldContent"`
	NewContent string       `json:"newContent"`
	Status     align.Status `json:"status"`
	ScriptNo   int          `json:"scriptNo"`
	// RootID is the script's root in the new graph, empty when removed.
	RootID string `json:"rootId,omitempty"`
	// OldRootID is the script's root in the old graph, empty when added.
	OldRootID string `json:"oldRootId,omitempty"`
	Added     int    `json:"added"`
	Removed   int    `json:"removed"`
	Diffed    string `json:"diffed"`
}

// ScriptRoot implements correlate.Target.
func (r DiffResult) ScriptRoot() string { return r.RootID }

// Failure is a pair whose diff could not be obtained. The pair is treated
// as unchanged.
type Failure struct {
	ScriptNo int          `json:"scriptNo"`
	Status   align.Status `json:"status"`
	Reason   string       `json:"error"`
	Err      error        `json:"-"`
}

func (f Failure) Error() string {
	return fmt.Sprintf("script %d (%s): %v", f.ScriptNo, f.Status, f.Err)
}

func (f Failure) Unwrap() error { return f.Err }

// Comparison is the outcome of one run.
type Comparison struct {
	Results  []DiffResult `json:"results"`
	Failures []Failure    `json:"failures,omitempty"`
	// OldRoots and NewRoots are the top-level ids of each graph in document
	// order.
	OldRoots []string `json:"oldRoots"`
	NewRoots []string `json:"newRoots"`
}

// Changed reports whether any script changed.
func (c *Comparison) Changed() bool { return len(c.Results) > 0 }

// Compare normalizes two serialized block maps and compares them.
func (e *Engine) Compare(ctx context.Context, oldRaw, newRaw []byte) (*Comparison, error) {
	oldG, err := blocks.Normalize(oldRaw)
	if err != nil {
		return nil, fmt.Errorf("old graph: %w", err)
	}
	newG, err := blocks.Normalize(newRaw)
	if err != nil {
		return nil, fmt.Errorf("new graph: %w", err)
	}
	return e.CompareGraphs(ctx, oldG, newG)
}

// CompareGraphs compares two graphs. Neither graph is modified.
func (e *Engine) CompareGraphs(ctx context.Context, oldG, newG *blocks.Graph) (*Comparison, error) {
	oldScripts, err := e.Scripts(oldG)
	if err != nil {
		return nil, err
	}
	newScripts, err := e.Scripts(newG)
	if err != nil {
		return nil, err
	}

	pairs := e.aligner.Align(oldScripts, newScripts)
	results, failures := e.diffAll(ctx, pairs)
	return &Comparison{
		Results:  results,
		Failures: failures,
		OldRoots: oldG.ScriptRoots(),
		NewRoots: newG.ScriptRoots(),
	}, nil
}

// Scripts canonicalizes every script of g. Each script is isolated into its
// own renamed subgraph before rendering; Script.RootID keeps the id in g.
func (e *Engine) Scripts(g *blocks.Graph) ([]align.Script, error) {
	roots := g.ScriptRoots()
	out := make([]align.Script, 0, len(roots))
	for _, root := range roots {
		sub, err := isolate.Isolate(g, root)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCanonicalization, err)
		}
		text, err := e.renderer.Render(sub.Root, sub.Graph, e.locale, e.ropt)
		if err != nil {
			return nil, fmt.Errorf("%w: script %q: %v", ErrCanonicalization, root, err)
		}
		out = append(out, align.Script{RootID: root, Graph: sub.Graph, Text: text})
	}
	return out, nil
}

type outcome struct {
	res diff.Result
	err error
}

// diffAll requests one diff per pair concurrently. Outcomes are written by
// index so the output follows pair order whatever the completion order.
func (e *Engine) diffAll(ctx context.Context, pairs []align.Pair) ([]DiffResult, []Failure) {
	outcomes := make([]outcome, len(pairs))

	var g errgroup.Group
	if e.limit > 0 {
		g.SetLimit(e.limit)
	}
	for i, p := range pairs {
		i, p := i, p
		g.Go(func() error {
			res, err := e.differ.Diff(ctx, p.Old.Text, p.New.Text)
			outcomes[i] = outcome{res: res, err: err}
			return nil
		})
	}
	_ = g.Wait()

	var results []DiffResult
	var failures []Failure
	for i, p := range pairs {
		o := outcomes[i]
		if o.err != nil {
			e.log.Warn("diff failed", "script", p.Index, "status", string(p.Status), "error", o.err)
			failures = append(failures, Failure{ScriptNo: p.Index, Status: p.Status, Reason: o.err.Error(), Err: o.err})
			continue
		}
		if o.res.Diffed == "" {
			e.log.Debug("pair equivalent at line level", "script", p.Index)
			continue
		}
		results = append(results, DiffResult{
			OldContent: p.Old.Text,
			NewContent: p.New.Text,
			Status:     p.Status,
			ScriptNo:   p.Index,
			RootID:     p.New.RootID,
			OldRootID:  p.Old.RootID,
			Added:      o.res.Added,
			Removed:    o.res.Removed,
			Diffed:     o.res.Diffed,
		})
	}
	return results, failures
}

// Highlight compares two snapshots of sprite and returns the live top-level
// ids of the changed scripts. When correlation resolves nothing the ids
// cached for sprite by an earlier run are returned instead; nil means no
// changes and nothing cached.
func (e *Engine) Highlight(ctx context.Context, sprite string, oldRaw, newRaw []byte, liveTop []string) ([]string, *Comparison, error) {
	cmp, err := e.Compare(ctx, oldRaw, newRaw)
	if err != nil {
		return nil, nil, err
	}
	ids := correlate.Correlate(cmp.Results, cmp.NewRoots, liveTop)
	resolved := e.tracker.Resolve(sprite, ids)
	e.log.Debug("highlight", "sprite", sprite, "changed", len(cmp.Results), "correlated", len(ids), "returned", len(resolved))
	return resolved, cmp, nil
}
