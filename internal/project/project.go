// Package project reads editor project files: a bare project.json or a .sb3
// archive holding one. Only the parts needed for script comparison are
// decoded; everything else in a target is ignored.
package project

import (
	"archive/zip"
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"blockdiff/internal/blocks"
	"blockdiff/internal/sortutil"
	"blockdiff/internal/ziputil"
)

// ErrNoTarget reports a sprite key that matches no target.
var ErrNoTarget = errors.New("no such target")

const (
	projectEntry = "project.json"
	stageSuffix  = " (stage)"
)

// Project is the decoded list of targets.
type Project struct {
	Targets []Target `json:"targets"`
}

// Target is a sprite or the stage.
type Target struct {
	Name    string          `json:"name"`
	IsStage bool            `json:"isStage"`
	Blocks  json.RawMessage `json:"blocks"`
}

// Key is the sprite identifier used for caching and display: the name, with
// " (stage)" appended for the stage. A sprite whose own name ends in
// " (stage)" shares the stage's key form and cannot be looked up by key.
func (t Target) Key() string {
	if t.IsStage {
		return t.Name + stageSuffix
	}
	return t.Name
}

// Graph normalizes the target's block map. A target without blocks yields
// an empty graph.
func (t Target) Graph() (*blocks.Graph, error) {
	if len(bytes.TrimSpace(t.Blocks)) == 0 {
		return blocks.NewGraph(), nil
	}
	return blocks.Normalize(t.Blocks)
}

// TopLevel returns the ids of the target's top-level blocks in document
// order.
func (t Target) TopLevel() ([]string, error) {
	g, err := t.Graph()
	if err != nil {
		return nil, err
	}
	return g.ScriptRoots(), nil
}

// Hash is the sha256 of the compacted block map.
func (t Target) Hash() string {
	var buf bytes.Buffer
	data := []byte(t.Blocks)
	if err := json.Compact(&buf, t.Blocks); err == nil {
		data = buf.Bytes()
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Parse decodes a project.json document.
func Parse(data []byte) (*Project, error) {
	var p Project
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("%w: project: %v", blocks.ErrParse, err)
	}
	return &p, nil
}

// Load reads a project from path. Files ending in .sb3 are opened as
// archives; anything else is parsed as JSON.
func Load(path string) (*Project, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if strings.EqualFold(filepath.Ext(path), ".sb3") {
		zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", blocks.ErrParse, path, err)
		}
		if data, err = ziputil.ReadEntry(zr, projectEntry); err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
	}
	return Parse(data)
}

// Target finds a target by key. A key ending in " (stage)" selects the
// stage whatever its name.
func (p *Project) Target(key string) (Target, error) {
	stage := strings.HasSuffix(key, stageSuffix)
	for _, t := range p.Targets {
		if (stage && t.IsStage) || (!stage && !t.IsStage && t.Name == key) {
			return t, nil
		}
	}
	return Target{}, fmt.Errorf("%w: %q", ErrNoTarget, key)
}

// Keys lists target keys in project order.
func (p *Project) Keys() []string {
	out := make([]string, len(p.Targets))
	for i, t := range p.Targets {
		out[i] = t.Key()
	}
	return out
}

// Blocks returns the raw block map of key, or an empty map when the target
// does not exist in p.
func (p *Project) Blocks(key string) json.RawMessage {
	t, err := p.Target(key)
	if err != nil || len(bytes.TrimSpace(t.Blocks)) == 0 {
		return json.RawMessage(`{}`)
	}
	return t.Blocks
}

// ChangedTargets returns, sorted, the keys whose block maps differ between
// old and new, including targets present on one side only.
func ChangedTargets(oldP, newP *Project) []string {
	hashes := func(p *Project) map[string]string {
		m := make(map[string]string)
		if p == nil {
			return m
		}
		for _, t := range p.Targets {
			m[t.Key()] = t.Hash()
		}
		return m
	}
	before, after := hashes(oldP), hashes(newP)

	var out []string
	for _, k := range sortutil.SortedKeys(after) {
		if h, ok := before[k]; !ok || h != after[k] {
			out = append(out, k)
		}
	}
	for _, k := range sortutil.SortedKeys(before) {
		if _, ok := after[k]; !ok {
			out = append(out, k)
		}
	}
	return sortutil.Sorted(out)
}
