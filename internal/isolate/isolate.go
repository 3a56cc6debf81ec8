// Package isolate extracts the blocks of one script from a block graph and
// gives them fresh ids, so two isolated versions of the same script can sit
// side by side without key collisions.
package isolate

import (
	"errors"
	"fmt"

	"github.com/google/uuid"

	"blockdiff/internal/blocks"
)

// ErrUnknownScript reports a root id that is absent from the graph.
var ErrUnknownScript = errors.New("unknown script")

// Subgraph is an isolated script.
type Subgraph struct {
	Graph *blocks.Graph
	// Root is the rewritten id of the script's first block.
	Root string
	// Renamed maps every original id to its rewritten id.
	Renamed map[string]string
}

// Isolator isolates scripts. NewID defaults to random UUIDs.
type Isolator struct {
	NewID func() string
}

// Isolate uses the default Isolator.
func Isolate(g *blocks.Graph, rootID string) (Subgraph, error) {
	return Isolator{}.Isolate(g, rootID)
}

// Reachable returns the ids reachable from rootID in discovery order: the
// next chain, every block referenced by an input of kind 1, 2 or 3, and
// recursively their own chains and inputs. Dangling references are skipped.
func Reachable(g *blocks.Graph, rootID string) ([]string, error) {
	if !g.Has(rootID) {
		return nil, fmt.Errorf("%w: %q", ErrUnknownScript, rootID)
	}
	seen := map[string]bool{rootID: true}
	order := []string{rootID}
	for i := 0; i < len(order); i++ {
		b, _ := g.Get(order[i])
		if b.IsPrimitive() {
			continue
		}
		next := b.Refs()
		if b.Next.Set() {
			next = append([]string{b.Next.ID}, next...)
		}
		for _, id := range next {
			if seen[id] || !g.Has(id) {
				continue
			}
			seen[id] = true
			order = append(order, id)
		}
	}
	return order, nil
}

// Isolate copies the script rooted at rootID into a new graph and renames
// every block. The full rename table is built before any reference is
// rewritten; references leaving the script are kept unchanged.
func (iso Isolator) Isolate(g *blocks.Graph, rootID string) (Subgraph, error) {
	ids, err := Reachable(g, rootID)
	if err != nil {
		return Subgraph{}, err
	}
	newID := iso.NewID
	if newID == nil {
		newID = uuid.NewString
	}

	renamed := make(map[string]string, len(ids))
	taken := make(map[string]bool, len(ids))
	for _, id := range ids {
		fresh := newID()
		for g.Has(fresh) || taken[fresh] {
			fresh = newID()
		}
		renamed[id] = fresh
		taken[fresh] = true
	}
	rename := func(id string) string {
		if to, ok := renamed[id]; ok {
			return to
		}
		return id
	}

	out := blocks.NewGraph()
	for _, id := range ids {
		src, _ := g.Get(id)
		b := src.Clone()
		if !b.IsPrimitive() {
			if b.Parent.Set() {
				b.Parent = blocks.RefTo(rename(b.Parent.ID))
			}
			if b.Next.Set() {
				b.Next = blocks.RefTo(rename(b.Next.ID))
			}
			for name, in := range b.Inputs {
				in.Rewrite(rename)
				b.Inputs[name] = in
			}
		}
		out.Set(renamed[id], b)
	}
	return Subgraph{Graph: out, Root: renamed[rootID], Renamed: renamed}, nil
}
