package blocks

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// ErrParse reports a block map that cannot be decoded.
var ErrParse = errors.New("block graph parse failure")

// Graph is an ordered block map. Document order of the serialized keys is
// kept so positional lookups against top-level ids behave like the editor.
type Graph struct {
	order  []string
	blocks map[string]*Block
}

// NewGraph returns an empty graph.
func NewGraph() *Graph {
	return &Graph{blocks: make(map[string]*Block)}
}

// Set stores b under id. New ids are appended to the document order.
func (g *Graph) Set(id string, b *Block) {
	if _, ok := g.blocks[id]; !ok {
		g.order = append(g.order, id)
	}
	g.blocks[id] = b
}

// Get returns the block stored under id.
func (g *Graph) Get(id string) (*Block, bool) {
	b, ok := g.blocks[id]
	return b, ok
}

// Has reports whether id is present.
func (g *Graph) Has(id string) bool {
	_, ok := g.blocks[id]
	return ok
}

// Len returns the number of entries.
func (g *Graph) Len() int { return len(g.order) }

// IDs returns all ids in document order.
func (g *Graph) IDs() []string {
	out := make([]string, len(g.order))
	copy(out, g.order)
	return out
}

// ScriptRoots returns every id whose parent is exactly null, in document
// order. The order carries no meaning for comparison.
func (g *Graph) ScriptRoots() []string {
	var roots []string
	for _, id := range g.order {
		if g.blocks[id].IsRoot() {
			roots = append(roots, id)
		}
	}
	return roots
}

// Clone returns a deep copy.
func (g *Graph) Clone() *Graph {
	out := &Graph{
		order:  make([]string, len(g.order)),
		blocks: make(map[string]*Block, len(g.blocks)),
	}
	copy(out.order, g.order)
	for id, b := range g.blocks {
		out.blocks[id] = b.Clone()
	}
	return out
}

// MarshalJSON writes the graph as a JSON object in document order.
func (g *Graph) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, id := range g.order {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(id)
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		v, err := g.blocks[id].MarshalJSON()
		if err != nil {
			return nil, fmt.Errorf("block %q: %w", id, err)
		}
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes a JSON object, keeping key order.
func (g *Graph) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("block map must be a JSON object, got %v", tok)
	}
	out := NewGraph()
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		id, ok := tok.(string)
		if !ok {
			return fmt.Errorf("unexpected key token %v", tok)
		}
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return fmt.Errorf("block %q: %w", id, err)
		}
		b := &Block{}
		if err := b.UnmarshalJSON(raw); err != nil {
			return fmt.Errorf("block %q: %w", id, err)
		}
		out.Set(id, b)
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	if _, err := dec.Token(); err != io.EOF {
		return fmt.Errorf("trailing data after block map")
	}
	*g = *out
	return nil
}
