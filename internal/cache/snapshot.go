// Package cache stores project baselines on disk so later saves can be
// compared against them.
//
// Layout, per project:
//
//	<base>/<pathKey>/index.json            the Snapshot
//	<base>/<pathKey>/blobs/aa/bb/<sha256>  one block map per distinct hash
//
// Every write goes to a temporary sibling first and is renamed into place,
// so readers never see a partial file.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

const (
	// DefaultRoot is used when no cache root is configured.
	DefaultRoot   = "tmp/.bdcache"
	indexFileName = "index.json"
	blobsDirName  = "blobs"
)

// ErrBadHash reports a blob hash that is not lowercase hex.
var ErrBadHash = errors.New("invalid blob hash")

// PathKey is the first 12 hex digits of sha256(abs).
func PathKey(abs string) string {
	sum := sha256.Sum256([]byte(abs))
	return hex.EncodeToString(sum[:])[:12]
}

// CacheDir resolves the cache directory of the project at projectAbs.
func CacheDir(base, projectAbs string) string {
	if base == "" {
		base = DefaultRoot
	}
	return filepath.Join(base, PathKey(projectAbs))
}

// Load reads <dir>/index.json. A missing file yields (nil, nil): there is
// no baseline yet.
func Load(dir string) (*Snapshot, error) {
	b, err := os.ReadFile(filepath.Join(dir, indexFileName))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	var s Snapshot
	if err := json.Unmarshal(b, &s); err != nil {
		return nil, fmt.Errorf("baseline index: %w", err)
	}
	return &s, nil
}

// Save writes the snapshot to <dir>/index.json.
func Save(dir string, s *Snapshot) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	return writeAtomic(filepath.Join(dir, indexFileName), func(w io.Writer) error {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(s)
	})
}

// Clear removes dir and everything below it. A missing dir is not an error.
func Clear(dir string) error {
	if dir == "" {
		return nil
	}
	return os.RemoveAll(dir)
}

// SaveBlob stores data under hash unless a blob with that hash exists.
func SaveBlob(dir, hash string, data []byte) error {
	p, err := blobPath(dir, hash)
	if err != nil {
		return err
	}
	if HasBlob(dir, hash) {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return err
	}
	return writeAtomic(p, func(w io.Writer) error {
		_, err := w.Write(data)
		return err
	})
}

// ReadBlob loads the blob stored under hash.
func ReadBlob(dir, hash string) ([]byte, error) {
	p, err := blobPath(dir, hash)
	if err != nil {
		return nil, err
	}
	return os.ReadFile(p)
}

// HasBlob reports whether a blob is stored under hash.
func HasBlob(dir, hash string) bool {
	p, err := blobPath(dir, hash)
	if err != nil {
		return false
	}
	_, err = os.Stat(p)
	return err == nil
}

func blobPath(dir, hash string) (string, error) {
	h := strings.ToLower(hash)
	if len(h) < 6 || strings.Trim(h, "0123456789abcdef") != "" {
		return "", fmt.Errorf("%w: %q", ErrBadHash, hash)
	}
	return filepath.Join(dir, blobsDirName, h[:2], h[2:4], h), nil
}

// writeAtomic fills a temporary file in the target directory, syncs it and
// renames it over path.
func writeAtomic(path string, fill func(io.Writer) error) error {
	f, err := os.CreateTemp(filepath.Dir(path), ".tmp-"+filepath.Base(path)+"-")
	if err != nil {
		return err
	}
	tmp := f.Name()
	fail := func(err error) error {
		_ = f.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := fill(f); err != nil {
		return fail(err)
	}
	if err := f.Sync(); err != nil {
		return fail(err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}
