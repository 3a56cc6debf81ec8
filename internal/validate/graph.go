// Package validate checks block graphs and baseline indexes for structural
// problems that would make a comparison misleading. Every check runs and
// all findings come back as one error.
package validate

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"blockdiff/internal/blocks"
	"blockdiff/internal/cache"
)

// Graph reports, for every block of g:
//
//   - an empty opcode
//   - a parent, next or input reference to an id that does not exist
//   - a next whose target does not name the block as its parent
//   - an input reference whose target names another parent
//   - a next chain that loops back on itself
func Graph(g *blocks.Graph) error {
	var errs errlist

	for _, id := range g.IDs() {
		b, _ := g.Get(id)
		if b.IsPrimitive() {
			continue
		}
		prefix := fmt.Sprintf("block %q (%s)", id, b.Opcode)
		if strings.TrimSpace(b.Opcode) == "" {
			errs.add("%s: opcode must be non-empty", prefix)
		}
		if b.Parent.Set() && !g.Has(b.Parent.ID) {
			errs.add("%s: parent %q does not exist", prefix, b.Parent.ID)
		}
		if b.Next.Set() {
			next, ok := g.Get(b.Next.ID)
			switch {
			case !ok:
				errs.add("%s: next %q does not exist", prefix, b.Next.ID)
			case !next.IsPrimitive() && next.Parent.ID != id:
				errs.add("%s: next %q names parent %q", prefix, b.Next.ID, next.Parent.ID)
			}
		}
		for _, name := range b.InputNames() {
			for _, ref := range b.Inputs[name].Refs() {
				child, ok := g.Get(ref)
				switch {
				case !ok:
					errs.add("%s: input %s references missing block %q", prefix, name, ref)
				case !child.IsPrimitive() && child.Parent.Set() && child.Parent.ID != id:
					errs.add("%s: input %s references %q owned by %q", prefix, name, ref, child.Parent.ID)
				}
			}
		}
	}

	for _, id := range nextCycles(g) {
		errs.add("block %q: next chain loops back on itself", id)
	}
	return errs.err()
}

// nextCycles returns, in document order, the first block of every next
// cycle found.
func nextCycles(g *blocks.Graph) []string {
	const (
		unseen = iota
		onPath
		done
	)
	state := make(map[string]int, g.Len())
	var cycles []string
	for _, start := range g.IDs() {
		if state[start] != unseen {
			continue
		}
		var path []string
		id := start
		for {
			b, ok := g.Get(id)
			if !ok || b.IsPrimitive() || state[id] == done {
				break
			}
			if state[id] == onPath {
				cycles = append(cycles, id)
				break
			}
			state[id] = onPath
			path = append(path, id)
			if !b.Next.Set() {
				break
			}
			id = b.Next.ID
		}
		for _, p := range path {
			state[p] = done
		}
	}
	return cycles
}

var reHex64 = regexp.MustCompile(`^[0-9a-f]{64}$`)

// Snapshot checks a baseline index: non-empty project name, unique
// non-empty keys, sha256 hashes, no negative script counts and at most one
// stage.
func Snapshot(s *cache.Snapshot) error {
	if s == nil {
		return errors.New("snapshot is nil")
	}
	var errs errlist
	if strings.TrimSpace(s.Project) == "" {
		errs.add("snapshot.project must be non-empty")
	}
	seen := make(map[string]bool, len(s.Targets))
	stages := 0
	for i, t := range s.Targets {
		prefix := fmt.Sprintf("targets[%d] (%s)", i, t.Key)
		if t.Key == "" {
			errs.add("%s: key must be non-empty", prefix)
		} else if seen[t.Key] {
			errs.add("%s: duplicate key", prefix)
		}
		seen[t.Key] = true
		if !reHex64.MatchString(t.Hash) {
			errs.add("%s: hash must be 64 lowercase hex chars (sha256), got %q", prefix, t.Hash)
		}
		if t.Scripts < 0 {
			errs.add("%s: scripts must be >= 0 (got %d)", prefix, t.Scripts)
		}
		if t.IsStage {
			stages++
		}
	}
	if stages > 1 {
		errs.add("snapshot has %d stages", stages)
	}
	return errs.err()
}

// errlist aggregates multiple validation issues into a single error.
type errlist struct {
	msgs []string
}

func (e *errlist) add(format string, args ...any) {
	e.msgs = append(e.msgs, fmt.Sprintf(format, args...))
}

func (e *errlist) err() error {
	if len(e.msgs) == 0 {
		return nil
	}
	return errors.New(strings.Join(e.msgs, "\n"))
}
