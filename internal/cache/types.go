package cache

// SnapTarget records one target of a baseline. Hash addresses the blob
// holding the target's block map.
type SnapTarget struct {
	Key     string `json:"key"`
	Name    string `json:"name"`
	IsStage bool   `json:"isStage,omitempty"`
	Hash    string `json:"hash"`
	Scripts int    `json:"scripts"`
}

// Snapshot is a saved baseline of a project. Created is RFC 3339 UTC.
type Snapshot struct {
	Project       string       `json:"project"`
	Created       string       `json:"created"`
	FormatVersion string       `json:"formatVersion,omitempty"`
	Targets       []SnapTarget `json:"targets"`
}

// Lookup returns the target recorded under key.
func (s *Snapshot) Lookup(key string) (SnapTarget, bool) {
	if s == nil {
		return SnapTarget{}, false
	}
	for _, t := range s.Targets {
		if t.Key == key {
			return t, true
		}
	}
	return SnapTarget{}, false
}

// Change is a target whose block map differs between snapshots.
type Change struct {
	Key        string `json:"key"`
	HashBefore string `json:"hashBefore"`
	HashAfter  string `json:"hashAfter"`
}

// Rename is a target that changed key but kept an identical block map.
type Rename struct {
	From string `json:"from"`
	To   string `json:"to"`
	Hash string `json:"hash"`
}

// Delta is the target-level change set between two snapshots. A renamed
// target appears only under Renamed.
type Delta struct {
	Added   []SnapTarget `json:"added"`
	Removed []SnapTarget `json:"removed"`
	Renamed []Rename     `json:"renamed"`
	Changed []Change     `json:"changed"`
}

// Empty reports whether nothing changed.
func (d Delta) Empty() bool {
	return len(d.Added) == 0 && len(d.Removed) == 0 && len(d.Renamed) == 0 && len(d.Changed) == 0
}
