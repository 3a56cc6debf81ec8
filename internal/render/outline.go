package render

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"golang.org/x/text/unicode/norm"

	"blockdiff/internal/blocks"
)

// Outline renders one stack block per line:
//
//	opcode [FIELD: value] (INPUT: value)
//
// Reporters are rendered inline in parentheses, substacks (inputs whose slot
// name starts with SUBSTACK) are indented by TabIndent and closed with "end".
// Block ids never appear in the output. The locale is ignored; opcodes are
// locale independent.
type Outline struct{}

func (Outline) Render(rootID string, g *blocks.Graph, _ string, opt Options) (string, error) {
	w := outlineWriter{g: g, indent: opt.TabIndent, active: make(map[string]bool)}
	if err := w.stack(rootID, 0); err != nil {
		return "", err
	}
	return strings.Join(w.lines, "\n"), nil
}

type outlineWriter struct {
	g      *blocks.Graph
	indent string
	lines  []string
	// active holds blocks on the current render path; revisiting one is a cycle.
	active map[string]bool
}

func (w *outlineWriter) stack(id string, depth int) error {
	var visited []string
	defer func() {
		for _, v := range visited {
			delete(w.active, v)
		}
	}()
	for id != "" {
		if w.active[id] {
			return fmt.Errorf("cycle through block %q", id)
		}
		b, ok := w.g.Get(id)
		if !ok {
			return fmt.Errorf("missing block %q", id)
		}
		if b.IsPrimitive() {
			return fmt.Errorf("block %q is not a stack block", id)
		}
		w.active[id] = true
		visited = append(visited, id)

		head, err := w.head(b)
		if err != nil {
			return err
		}
		w.lines = append(w.lines, strings.Repeat(w.indent, depth)+head)

		substacks := 0
		for _, name := range b.InputNames() {
			if !isSubstack(name) {
				continue
			}
			substacks++
			if refs := b.Inputs[name].Refs(); len(refs) > 0 {
				if err := w.stack(refs[0], depth+1); err != nil {
					return err
				}
			}
		}
		if substacks > 0 {
			w.lines = append(w.lines, strings.Repeat(w.indent, depth)+"end")
		}
		id = b.Next.ID
	}
	return nil
}

func (w *outlineWriter) head(b *blocks.Block) (string, error) {
	var sb strings.Builder
	sb.WriteString(b.Opcode)

	fieldNames := make([]string, 0, len(b.Fields))
	for n := range b.Fields {
		fieldNames = append(fieldNames, n)
	}
	sort.Strings(fieldNames)
	for _, n := range fieldNames {
		fmt.Fprintf(&sb, " [%s: %s]", n, fieldValue(b.Fields[n]))
	}

	for _, n := range b.InputNames() {
		if isSubstack(n) {
			continue
		}
		v, err := w.inputValue(b.Inputs[n])
		if err != nil {
			return "", err
		}
		fmt.Fprintf(&sb, " (%s: %s)", n, v)
	}
	return sb.String(), nil
}

func (w *outlineWriter) inputValue(in blocks.Input) (string, error) {
	if len(in.Items) == 0 {
		return "_", nil
	}
	first := bytes.TrimSpace(in.Items[0])
	if refs := in.Refs(); len(refs) > 0 && len(first) > 0 && first[0] == '"' {
		return w.reporter(refs[0])
	}
	return literal(first), nil
}

func (w *outlineWriter) reporter(id string) (string, error) {
	if w.active[id] {
		return "", fmt.Errorf("cycle through block %q", id)
	}
	b, ok := w.g.Get(id)
	if !ok {
		return "", fmt.Errorf("missing block %q", id)
	}
	if b.IsPrimitive() {
		return literal(b.Primitive), nil
	}
	w.active[id] = true
	defer delete(w.active, id)
	head, err := w.head(b)
	if err != nil {
		return "", err
	}
	return "(" + head + ")", nil
}

func isSubstack(name string) bool { return strings.HasPrefix(name, "SUBSTACK") }

// literal renders a primitive input such as [4,"10"] or [12,"score","id"]
// by its display value; ids carried by variable and broadcast primitives
// are dropped.
func literal(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return "_"
	}
	var arr []json.RawMessage
	if err := json.Unmarshal(raw, &arr); err == nil {
		if len(arr) < 2 {
			return "_"
		}
		return scalar(arr[1])
	}
	return scalar(raw)
}

func fieldValue(raw json.RawMessage) string {
	var arr []json.RawMessage
	if err := json.Unmarshal(raw, &arr); err == nil {
		if len(arr) == 0 {
			return "_"
		}
		return scalar(arr[0])
	}
	return scalar(raw)
}

func scalar(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return norm.NFC.String(s)
	}
	return string(bytes.TrimSpace(raw))
}
