// Package ziputil holds the small helpers shared by the archive reader used
// for .sb3 projects and the reproducible report writer.
package ziputil

import (
	"archive/zip"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"
)

// FixedTime is stamped on every written entry (1980-01-01 UTC, the zip epoch)
// so identical inputs produce identical archives.
var FixedTime = time.Unix(315532800, 0).UTC()

// ErrNoEntry reports a missing archive member.
var ErrNoEntry = errors.New("zip entry not found")

var unsafeChars = strings.NewReplacer(
	"\\", "_", ":", "_", "*", "_", "?", "_", "\"", "_", "<", "_", ">", "_", "|", "_",
)

// CleanName turns a sprite name or relative path into a safe entry name:
// forward slashes, no leading slash, no "." or ".." segments, and none of the
// characters Windows refuses in file names.
func CleanName(p string) string {
	parts := strings.Split(strings.ReplaceAll(p, "\\", "/"), "/")
	stack := make([]string, 0, len(parts))
	for _, part := range parts {
		switch part {
		case "", ".":
			continue
		case "..":
			if n := len(stack); n > 0 {
				stack = stack[:n-1]
			}
			continue
		}
		stack = append(stack, unsafeChars.Replace(part))
	}
	if len(stack) == 0 {
		return "entry"
	}
	return path.Join(stack...)
}

// UniqueName returns name, or name with -1, -2, ... before the extension
// when it is already in used. The returned name is recorded in used.
func UniqueName(name string, used map[string]bool) string {
	if !used[name] {
		used[name] = true
		return name
	}
	ext := path.Ext(name)
	base := strings.TrimSuffix(name, ext)
	for n := 1; ; n++ {
		alt := fmt.Sprintf("%s-%d%s", base, n, ext)
		if !used[alt] {
			used[alt] = true
			return alt
		}
	}
}

func create(zw *zip.Writer, name string) (io.Writer, error) {
	h := &zip.FileHeader{Name: CleanName(name), Method: zip.Deflate, Modified: FixedTime}
	h.SetMode(0o644)
	w, err := zw.CreateHeader(h)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", name, err)
	}
	return w, nil
}

// WriteJSON writes v as indented JSON.
func WriteJSON(zw *zip.Writer, name string, v any) error {
	w, err := create(zw, name)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	return nil
}

// WriteText writes data verbatim.
func WriteText(zw *zip.Writer, name string, data []byte) error {
	w, err := create(zw, name)
	if err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	return nil
}

// ReadEntry returns the content of the member called name. Members are
// matched after cleaning, so "./project.json" finds "project.json".
func ReadEntry(zr *zip.Reader, name string) ([]byte, error) {
	want := CleanName(name)
	for _, f := range zr.File {
		if CleanName(f.Name) != want {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", name, err)
		}
		defer rc.Close()
		return io.ReadAll(rc)
	}
	return nil, fmt.Errorf("%w: %s", ErrNoEntry, name)
}
