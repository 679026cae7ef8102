// Package filemap turns an extracted directory tree into a normalized set of
// relative file paths, so trees from two different roots can be aligned by
// plain string equality.
package filemap

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
)

// DefaultScriptExt is the extension verified by default: the script files
// npm actually executes.
const DefaultScriptExt = ".js"

// Filter decides whether a file name is part of the map.
type Filter func(name string) bool

// ExtFilter keeps files with the given extension.
func ExtFilter(ext string) Filter {
	return func(name string) bool { return strings.HasSuffix(name, ext) }
}

// Map is a set of normalized relative paths. Keys are posix-style and always
// start with "/".
type Map map[string]struct{}

// Has reports whether the normalized path is present.
func (m Map) Has(p string) bool {
	_, ok := m[p]
	return ok
}

// Paths returns every key in sorted order.
func (m Map) Paths() []string {
	paths := make([]string, 0, len(m))
	for p := range m {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// WalkError is any traversal failure. The walk aborts on the first one: a
// partial file map would make the comparison silently incomplete.
type WalkError struct {
	Root string
	Path string
	Err  error
}

func (e *WalkError) Error() string {
	return fmt.Sprintf("walking %s: %s: %v", e.Root, e.Path, e.Err)
}

func (e *WalkError) Unwrap() error { return e.Err }

// Build walks root and returns the map of matching files. A nil filter
// selects script files.
func Build(root string, filter Filter) (Map, error) {
	if filter == nil {
		filter = ExtFilter(DefaultScriptExt)
	}

	m := Map{}
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return &WalkError{Root: root, Path: path, Err: err}
		}
		if d.IsDir() || !filter(d.Name()) {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return &WalkError{Root: root, Path: path, Err: err}
		}
		m["/"+filepath.ToSlash(rel)] = struct{}{}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return m, nil
}
