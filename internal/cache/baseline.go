package cache

import (
	"fmt"
	"time"

	"blockdiff/internal/project"
)

// FormatVersion is written into every new snapshot.
const FormatVersion = "1"

// Describe builds the snapshot of p without touching the disk.
func Describe(name string, p *project.Project, now time.Time) (*Snapshot, error) {
	s := &Snapshot{
		Project:       name,
		Created:       now.UTC().Format(time.RFC3339),
		FormatVersion: FormatVersion,
		Targets:       make([]SnapTarget, 0, len(p.Targets)),
	}
	for _, t := range p.Targets {
		top, err := t.TopLevel()
		if err != nil {
			return nil, fmt.Errorf("target %q: %w", t.Key(), err)
		}
		s.Targets = append(s.Targets, SnapTarget{
			Key:     t.Key(),
			Name:    t.Name,
			IsStage: t.IsStage,
			Hash:    t.Hash(),
			Scripts: len(top),
		})
	}
	return s, nil
}

// Capture describes p and stores one blob per target in dir. The snapshot
// itself is not written.
func Capture(dir, name string, p *project.Project, now time.Time) (*Snapshot, error) {
	s, err := Describe(name, p, now)
	if err != nil {
		return nil, err
	}
	for i, t := range p.Targets {
		// Blobs hold the block map as read so Restore reproduces its hash.
		if err := SaveBlob(dir, s.Targets[i].Hash, t.Blocks); err != nil {
			return nil, fmt.Errorf("target %q: %w", t.Key(), err)
		}
	}
	return s, nil
}

// SaveBaseline captures p and writes the snapshot, replacing any earlier
// baseline in dir.
func SaveBaseline(dir, name string, p *project.Project, now time.Time) (*Snapshot, error) {
	s, err := Capture(dir, name, p, now)
	if err != nil {
		return nil, err
	}
	if err := Save(dir, s); err != nil {
		return nil, err
	}
	return s, nil
}

// Restore rebuilds the project recorded by s from its blobs.
func Restore(dir string, s *Snapshot) (*project.Project, error) {
	p := &project.Project{Targets: make([]project.Target, 0, len(s.Targets))}
	for _, st := range s.Targets {
		data, err := ReadBlob(dir, st.Hash)
		if err != nil {
			return nil, fmt.Errorf("baseline target %q: %w", st.Key, err)
		}
		p.Targets = append(p.Targets, project.Target{Name: st.Name, IsStage: st.IsStage, Blocks: data})
	}
	return p, nil
}
