package blocks

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
)

// Empty substacks are serialized as [1,null], which renderers reject.
var (
	reOnlyEmptySubstack     = regexp.MustCompile(`\{"SUBSTACK2?":\[1,null\]\}`)
	reTrailingEmptySubstack = regexp.MustCompile(`,"SUBSTACK2?":\[1,null\]`)
	reLeadingEmptySubstack  = regexp.MustCompile(`"SUBSTACK2?":\[1,null\],`)
)

// Normalize decodes a serialized block map into a Graph after rewriting the
// known empty-substack shapes. The rewrite is textual over the compact form:
// an inputs object holding only an empty substack becomes {}, and an empty
// substack member next to other members is dropped.
func Normalize(raw []byte) (*Graph, error) {
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}
	fixed := RewriteEmptySubstacks(buf.Bytes())
	g := NewGraph()
	if err := g.UnmarshalJSON(fixed); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}
	return g, nil
}

// RewriteEmptySubstacks applies the empty-substack rewrite to compact JSON
// until no pattern matches.
func RewriteEmptySubstacks(compact []byte) []byte {
	out := compact
	for {
		next := reOnlyEmptySubstack.ReplaceAll(out, []byte("{}"))
		next = reTrailingEmptySubstack.ReplaceAll(next, nil)
		next = reLeadingEmptySubstack.ReplaceAll(next, nil)
		if bytes.Equal(next, out) {
			return next
		}
		out = next
	}
}
