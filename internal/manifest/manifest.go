// Package manifest loads the list of dependencies to verify. The manifest is
// the single fatal input: a missing or malformed file aborts the whole run,
// unlike per-dependency failures which only fail that dependency.
package manifest

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Entry pins one dependency. Versions are mandatory: the loader rejects
// entries without one instead of silently falling back to the latest
// dist-tag.
type Entry struct {
	Version string `json:"version"`
}

// Manifest maps package name to its pinned entry.
type Manifest map[string]Entry

// Names returns the package names in sorted order so that runs over the same
// manifest always visit (and report) dependencies in the same sequence.
func (m Manifest) Names() []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// schema rejects empty names and missing or empty versions up front, so the
// engine never sees an entry it cannot verify.
const schema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "propertyNames": { "minLength": 1 },
  "additionalProperties": {
    "type": "object",
    "required": ["version"],
    "properties": {
      "version": { "type": "string", "minLength": 1 }
    }
  }
}`

var compiledSchema = jsonschema.MustCompileString("manifest.schema.json", schema)

// Parse validates and decodes a manifest document.
func Parse(data []byte) (Manifest, error) {
	var raw interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parsing manifest: %w", err)
	}
	if err := compiledSchema.Validate(raw); err != nil {
		return nil, fmt.Errorf("invalid manifest: %w", err)
	}

	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decoding manifest: %w", err)
	}
	return m, nil
}

// Load reads and parses a manifest file.
func Load(path string) (Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading manifest: %w", err)
	}
	return Parse(data)
}

// npm lockfile shapes. v1 lockfiles list "dependencies"; v2+ list "packages"
// keyed by their node_modules path.
type lockDependency struct {
	Version string `json:"version"`
	Dev     bool   `json:"dev"`
}

type lockPackage struct {
	Name    string `json:"name"`
	Version string `json:"version"`
	Dev     bool   `json:"dev"`
	Link    bool   `json:"link"`
}

type lockfile struct {
	LockfileVersion int                       `json:"lockfileVersion"`
	Dependencies    map[string]lockDependency `json:"dependencies"`
	Packages        map[string]lockPackage    `json:"packages"`
}

// ParseLockfile builds a manifest from a package-lock.json, taking every
// installed non-dev package that carries a concrete version. Aliased
// ("npm:") and local ("file:") versions are not resolvable against the
// registry and are left out.
func ParseLockfile(data []byte) (Manifest, error) {
	var lock lockfile
	if err := json.Unmarshal(data, &lock); err != nil {
		return nil, fmt.Errorf("parsing lockfile: %w", err)
	}

	m := Manifest{}

	if lock.Packages != nil {
		for key, pkg := range lock.Packages {
			if key == "" || pkg.Dev || pkg.Link {
				continue
			}
			name := nameFromLockKey(key)
			if name == "" || !usableVersion(pkg.Version) {
				continue
			}
			m[name] = Entry{Version: pkg.Version}
		}
		return m, nil
	}

	for name, dep := range lock.Dependencies {
		if dep.Dev || !usableVersion(dep.Version) {
			continue
		}
		m[name] = Entry{Version: dep.Version}
	}
	return m, nil
}

// LoadLockfile reads and parses a package-lock.json file.
func LoadLockfile(path string) (Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading lockfile: %w", err)
	}
	return ParseLockfile(data)
}

// nameFromLockKey turns "node_modules/@scope/pkg" (possibly nested) into
// "@scope/pkg".
func nameFromLockKey(key string) string {
	const marker = "node_modules/"
	idx := strings.LastIndex(key, marker)
	if idx < 0 {
		return ""
	}
	return key[idx+len(marker):]
}

func usableVersion(version string) bool {
	if version == "" {
		return false
	}
	return !strings.HasPrefix(version, "npm:") && !strings.HasPrefix(version, "file:")
}
