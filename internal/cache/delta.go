package cache

import (
	"sort"
)

// BuildDelta computes the target-level change set from prev to curr. Either
// side may be nil. A removed and an added target with the same hash are
// reported as one rename; candidates pair up in key order.
func BuildDelta(prev, curr *Snapshot) Delta {
	prevByKey := indexByKey(prev)
	currByKey := indexByKey(curr)

	var d Delta
	for key, pt := range prevByKey {
		ct, ok := currByKey[key]
		switch {
		case !ok:
			d.Removed = append(d.Removed, pt)
		case ct.Hash != pt.Hash:
			d.Changed = append(d.Changed, Change{Key: key, HashBefore: pt.Hash, HashAfter: ct.Hash})
		}
	}
	for key, ct := range currByKey {
		if _, ok := prevByKey[key]; !ok {
			d.Added = append(d.Added, ct)
		}
	}
	sortTargets(d.Removed)
	sortTargets(d.Added)

	d.Renamed, d.Removed, d.Added = matchRenames(d.Removed, d.Added)
	sort.Slice(d.Changed, func(i, j int) bool { return d.Changed[i].Key < d.Changed[j].Key })
	return d
}

func indexByKey(s *Snapshot) map[string]SnapTarget {
	m := make(map[string]SnapTarget)
	if s == nil {
		return m
	}
	for _, t := range s.Targets {
		m[t.Key] = t
	}
	return m
}

func sortTargets(ts []SnapTarget) {
	sort.Slice(ts, func(i, j int) bool { return ts[i].Key < ts[j].Key })
}

// matchRenames pairs removed and added targets of equal hash. Both inputs
// are sorted by key; so are the outputs.
func matchRenames(removed, added []SnapTarget) ([]Rename, []SnapTarget, []SnapTarget) {
	if len(removed) == 0 || len(added) == 0 {
		return nil, removed, added
	}
	byHash := make(map[string][]int)
	for i, rt := range removed {
		byHash[rt.Hash] = append(byHash[rt.Hash], i)
	}
	usedRemoved := make(map[int]bool)
	var renames []Rename
	var keepAdded []SnapTarget
	for _, at := range added {
		cands := byHash[at.Hash]
		if len(cands) == 0 {
			keepAdded = append(keepAdded, at)
			continue
		}
		byHash[at.Hash] = cands[1:]
		usedRemoved[cands[0]] = true
		renames = append(renames, Rename{From: removed[cands[0]].Key, To: at.Key, Hash: at.Hash})
	}
	var keepRemoved []SnapTarget
	for i, rt := range removed {
		if !usedRemoved[i] {
			keepRemoved = append(keepRemoved, rt)
		}
	}
	sort.Slice(renames, func(i, j int) bool {
		if renames[i].From == renames[j].From {
			return renames[i].To < renames[j].To
		}
		return renames[i].From < renames[j].From
	})
	return renames, keepRemoved, keepAdded
}
