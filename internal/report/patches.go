package report

import (
	"fmt"
	"strings"

	"blockdiff/internal/diff"
	"blockdiff/internal/engine"
	"blockdiff/internal/textutil"
	"blockdiff/internal/ziputil"
)

// patchName is diffs/<target>-<scriptNo>.patch with the target name made
// safe for a single path segment.
func patchName(key string, scriptNo int, used map[string]bool) string {
	base := strings.TrimLeft(strings.NewReplacer("/", "_", " ", "_").Replace(key), "._")
	if base == "" {
		base = "target"
	}
	base = ziputil.CleanName(base)
	return ziputil.UniqueName(fmt.Sprintf("diffs/%s-%d.patch", base, scriptNo), used)
}

// patchFor renders a full unified patch of one changed script. Headers name
// the script as a/<target>/script-<n> and b/<target>/script-<n>.
func patchFor(key string, res engine.DiffResult, opt diff.Options, used map[string]bool) (string, string) {
	name := patchName(key, res.ScriptNo, used)
	label := fmt.Sprintf("%s/script-%d", key, res.ScriptNo)
	oldText := textutil.EnsureTrailingLF(textutil.NormalizeNewlines(res.OldContent))
	newText := textutil.EnsureTrailingLF(textutil.NormalizeNewlines(res.NewContent))
	body, _ := diff.Unified("a/"+label, "b/"+label, []byte(oldText), []byte(newText), opt)
	return name, body
}
