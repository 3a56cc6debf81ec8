// Package blocks models the block map of one sprite: a mapping from opaque
// block ids to block records linked through parent, next and input references.
//
// Known members (opcode, parent, next, inputs, fields) are decoded into typed
// fields; every other member is kept verbatim so a decode/encode round trip
// does not lose data. Entries that are not objects (top-level variable and
// list reporters are stored as bare arrays) are kept as Primitive.
package blocks

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
)

// Ref is a nullable block id as it appears in the parent and next members.
// The zero value means "member absent"; Null means an explicit JSON null.
type Ref struct {
	ID   string
	Null bool
}

// NullRef is an explicit JSON null reference.
var NullRef = Ref{Null: true}

// RefTo returns a reference to id.
func RefTo(id string) Ref { return Ref{ID: id} }

// Set reports whether the reference points at a block.
func (r Ref) Set() bool { return r.ID != "" }

func (r Ref) present() bool { return r.Null || r.ID != "" }

func (r Ref) MarshalJSON() ([]byte, error) {
	if r.ID == "" {
		return []byte("null"), nil
	}
	return json.Marshal(r.ID)
}

func (r *Ref) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*r = NullRef
		return nil
	}
	var id string
	if err := json.Unmarshal(data, &id); err != nil {
		return fmt.Errorf("reference must be a string or null: %w", err)
	}
	*r = Ref{ID: id}
	return nil
}

// Input is one entry of a block's inputs: [kind, value, shadow?].
// Kind 1 is a shadow-only input, 2 an input without shadow and 3 a block
// obscuring a shadow. A string element after the kind is a block id.
type Input struct {
	Kind  int
	Items []json.RawMessage
}

// Refs returns the block ids referenced by the input, in element order.
func (in Input) Refs() []string {
	var out []string
	for _, it := range in.Items {
		if id, ok := stringItem(it); ok {
			out = append(out, id)
		}
	}
	return out
}

// IsReference reports whether the input kind is one of the three block
// reference encodings.
func (in Input) IsReference() bool { return in.Kind >= 1 && in.Kind <= 3 }

// Rewrite replaces every referenced id through fn.
func (in *Input) Rewrite(fn func(string) string) {
	for i, it := range in.Items {
		id, ok := stringItem(it)
		if !ok {
			continue
		}
		b, _ := json.Marshal(fn(id))
		in.Items[i] = b
	}
}

func (in Input) MarshalJSON() ([]byte, error) {
	arr := make([]json.RawMessage, 0, len(in.Items)+1)
	k, _ := json.Marshal(in.Kind)
	arr = append(arr, k)
	arr = append(arr, in.Items...)
	return json.Marshal(arr)
}

func (in *Input) UnmarshalJSON(data []byte) error {
	var arr []json.RawMessage
	if err := json.Unmarshal(data, &arr); err != nil {
		return fmt.Errorf("input must be an array: %w", err)
	}
	if len(arr) == 0 {
		return fmt.Errorf("input array is empty")
	}
	var kind int
	if err := json.Unmarshal(arr[0], &kind); err != nil {
		return fmt.Errorf("input kind must be an integer: %w", err)
	}
	in.Kind = kind
	in.Items = arr[1:]
	return nil
}

func (in Input) clone() Input {
	out := Input{Kind: in.Kind, Items: make([]json.RawMessage, len(in.Items))}
	for i, it := range in.Items {
		out.Items[i] = cloneRaw(it)
	}
	return out
}

// Block is one record of the block map.
type Block struct {
	Opcode string
	Parent Ref
	Next   Ref
	Inputs map[string]Input
	Fields map[string]json.RawMessage
	// Extra holds members the engine does not interpret (shadow, topLevel,
	// x, y, mutation, ...).
	Extra map[string]json.RawMessage
	// Primitive is set when the entry is not an object.
	Primitive json.RawMessage
}

// IsPrimitive reports whether the entry is a bare (non-object) value.
func (b *Block) IsPrimitive() bool { return b.Primitive != nil }

// IsRoot reports whether the block starts a script: an object block whose
// parent member is exactly null.
func (b *Block) IsRoot() bool { return !b.IsPrimitive() && b.Parent.Null }

// InputNames returns the input slot names in sorted order.
func (b *Block) InputNames() []string {
	names := make([]string, 0, len(b.Inputs))
	for n := range b.Inputs {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Refs returns every block id referenced by the block's structured inputs,
// ordered by slot name.
func (b *Block) Refs() []string {
	var out []string
	for _, name := range b.InputNames() {
		in := b.Inputs[name]
		if !in.IsReference() {
			continue
		}
		out = append(out, in.Refs()...)
	}
	return out
}

// Clone returns a deep copy of the block.
func (b *Block) Clone() *Block {
	out := &Block{
		Opcode:    b.Opcode,
		Parent:    b.Parent,
		Next:      b.Next,
		Primitive: cloneRaw(b.Primitive),
	}
	if b.Inputs != nil {
		out.Inputs = make(map[string]Input, len(b.Inputs))
		for k, v := range b.Inputs {
			out.Inputs[k] = v.clone()
		}
	}
	out.Fields = cloneRawMap(b.Fields)
	out.Extra = cloneRawMap(b.Extra)
	return out
}

func (b *Block) MarshalJSON() ([]byte, error) {
	if b.Primitive != nil {
		return b.Primitive, nil
	}
	m := make(map[string]json.RawMessage, len(b.Extra)+5)
	for k, v := range b.Extra {
		m[k] = v
	}
	if b.Opcode != "" {
		op, _ := json.Marshal(b.Opcode)
		m["opcode"] = op
	}
	if b.Parent.present() {
		raw, _ := b.Parent.MarshalJSON()
		m["parent"] = raw
	}
	if b.Next.present() {
		raw, _ := b.Next.MarshalJSON()
		m["next"] = raw
	}
	if b.Inputs != nil {
		raw, err := json.Marshal(b.Inputs)
		if err != nil {
			return nil, err
		}
		m["inputs"] = raw
	}
	if b.Fields != nil {
		raw, err := json.Marshal(b.Fields)
		if err != nil {
			return nil, err
		}
		m["fields"] = raw
	}
	return json.Marshal(m)
}

func (b *Block) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || data[0] != '{' {
		*b = Block{Primitive: cloneRaw(data)}
		return nil
	}
	var m map[string]json.RawMessage
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}
	out := Block{}
	for k, v := range m {
		switch k {
		case "opcode":
			if err := json.Unmarshal(v, &out.Opcode); err != nil {
				return fmt.Errorf("opcode: %w", err)
			}
		case "parent":
			if err := out.Parent.UnmarshalJSON(v); err != nil {
				return fmt.Errorf("parent: %w", err)
			}
		case "next":
			if err := out.Next.UnmarshalJSON(v); err != nil {
				return fmt.Errorf("next: %w", err)
			}
		case "inputs":
			if err := json.Unmarshal(v, &out.Inputs); err != nil {
				return fmt.Errorf("inputs: %w", err)
			}
		case "fields":
			if err := json.Unmarshal(v, &out.Fields); err != nil {
				return fmt.Errorf("fields: %w", err)
			}
		default:
			if out.Extra == nil {
				out.Extra = make(map[string]json.RawMessage)
			}
			out.Extra[k] = v
		}
	}
	*b = out
	return nil
}

func stringItem(raw json.RawMessage) (string, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || raw[0] != '"' {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", false
	}
	return s, true
}

func cloneRaw(raw json.RawMessage) json.RawMessage {
	if raw == nil {
		return nil
	}
	out := make(json.RawMessage, len(raw))
	copy(out, raw)
	return out
}

func cloneRawMap(m map[string]json.RawMessage) map[string]json.RawMessage {
	if m == nil {
		return nil
	}
	out := make(map[string]json.RawMessage, len(m))
	for k, v := range m {
		out[k] = cloneRaw(v)
	}
	return out
}
