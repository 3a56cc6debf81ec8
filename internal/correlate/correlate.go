// Package correlate maps changed scripts, known by the root ids of the
// snapshot they were diffed in, onto the block ids currently shown by the
// editor.
package correlate

// Target is a changed script. ScriptRoot returns the root id in the diffed
// snapshot; an empty id never resolves.
type Target interface {
	ScriptRoot() string
}

// Root is a bare root id satisfying Target.
type Root string

func (r Root) ScriptRoot() string { return string(r) }

// Correlate resolves each target to a live top-level id. An exact match
// against liveTop wins; otherwise the live id at the root's position in
// snapshotTop is used. Unresolved targets are dropped and repeated ids keep
// their first position.
func Correlate[T Target](targets []T, snapshotTop, liveTop []string) []string {
	live := make(map[string]bool, len(liveTop))
	for _, id := range liveTop {
		live[id] = true
	}
	pos := make(map[string]int, len(snapshotTop))
	for i, id := range snapshotTop {
		if _, dup := pos[id]; !dup {
			pos[id] = i
		}
	}

	var out []string
	seen := make(map[string]bool)
	for _, t := range targets {
		root := t.ScriptRoot()
		if root == "" {
			continue
		}
		id := ""
		if live[root] {
			id = root
		} else if i, ok := pos[root]; ok && i < len(liveTop) {
			id = liveTop[i]
		}
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
