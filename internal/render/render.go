// Package render defines the boundary to the canonicalizer that turns one
// script of a block graph into deterministic text, and ships Outline, a
// reference implementation used by the CLI and tests.
//
// A Renderer must be deterministic: the same root over the same graph
// content yields the same text regardless of how block ids are named.
package render

import (
	"fmt"

	"blockdiff/internal/blocks"
)

// Options controls text layout.
type Options struct {
	// TabIndent is repeated once per nesting level of substacks.
	TabIndent string
}

// Renderer renders the script rooted at rootID.
type Renderer interface {
	Render(rootID string, g *blocks.Graph, locale string, opt Options) (string, error)
}

// RenderFunc adapts a plain function to Renderer.
type RenderFunc func(rootID string, g *blocks.Graph, locale string, opt Options) (string, error)

func (f RenderFunc) Render(rootID string, g *blocks.Graph, locale string, opt Options) (string, error) {
	return f(rootID, g, locale, opt)
}

// Safe wraps r so that a panic inside the renderer surfaces as an error.
func Safe(r Renderer) Renderer {
	return RenderFunc(func(rootID string, g *blocks.Graph, locale string, opt Options) (text string, err error) {
		defer func() {
			if p := recover(); p != nil {
				err = fmt.Errorf("renderer panicked on %q: %v", rootID, p)
			}
		}()
		return r.Render(rootID, g, locale, opt)
	})
}
