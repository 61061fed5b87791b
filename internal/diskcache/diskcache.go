// Package diskcache is the on-disk response cache shared by the
// census and tiger clients. One file per cache key; entries are
// written once and never mutated. Clearing the cache is a manual
// operation (delete the directory).
package diskcache

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// CacheError wraps any filesystem failure on the cache directory.
type CacheError struct {
	Op   string
	Path string
	Err  error
}

func (e *CacheError) Error() string {
	return fmt.Sprintf("cache %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *CacheError) Unwrap() error { return e.Err }

// Store is a flat directory of key-named files.
type Store struct {
	dir string
}

// New creates the directory if needed. A path that exists but is not
// a directory is an error.
func New(dir string) (*Store, error) {
	if dir == "" {
		return nil, &CacheError{Op: "open", Path: dir, Err: errors.New("empty cache dir")}
	}
	info, err := os.Stat(dir)
	switch {
	case err == nil:
		if !info.IsDir() {
			return nil, &CacheError{Op: "open", Path: dir, Err: errors.New("not a directory")}
		}
	case os.IsNotExist(err):
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, &CacheError{Op: "mkdir", Path: dir, Err: err}
		}
	default:
		return nil, &CacheError{Op: "stat", Path: dir, Err: err}
	}
	return &Store{dir: dir}, nil
}

func (s *Store) Dir() string { return s.dir }

// Path returns the file a key maps to. The key must already be
// filesystem-safe; key construction lives with the callers.
func (s *Store) Path(key string) string {
	return filepath.Join(s.dir, key)
}

// Has reports whether an entry exists without reading it. Handy when
// the payload is large (boundary archives) and the caller only needs
// the path.
func (s *Store) Has(key string) bool {
	info, err := os.Stat(s.Path(key))
	return err == nil && !info.IsDir()
}

// Get returns the entry's bytes, with ok=false on a miss.
func (s *Store) Get(key string) ([]byte, bool, error) {
	b, err := os.ReadFile(s.Path(key))
	if os.IsNotExist(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, &CacheError{Op: "read", Path: s.Path(key), Err: err}
	}
	return b, true, nil
}

// Put writes an entry. The write goes through a temp file and rename
// so a crash mid-write doesn't leave a half-entry under the real key.
func (s *Store) Put(key string, b []byte) error {
	dst := s.Path(key)
	tmp, err := os.CreateTemp(s.dir, "."+key+".tmp*")
	if err != nil {
		return &CacheError{Op: "write", Path: dst, Err: err}
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return &CacheError{Op: "write", Path: dst, Err: err}
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return &CacheError{Op: "write", Path: dst, Err: err}
	}
	if err := os.Rename(tmpName, dst); err != nil {
		os.Remove(tmpName)
		return &CacheError{Op: "rename", Path: dst, Err: err}
	}
	return nil
}
