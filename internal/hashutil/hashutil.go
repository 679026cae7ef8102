// Package hashutil computes and compares file content digests.
package hashutil

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
)

// Outcome is the three-way result of comparing a file pair.
type Outcome int

const (
	// Equal means both files exist and their digests match.
	Equal Outcome = iota
	// Differs means both files exist but their bytes do not match.
	Differs
	// Missing means the second file does not exist. A registry-side file
	// absent from the source archive is diagnostically different from a
	// content mismatch (often a generated file, not tampering), so it is
	// never folded into Differs.
	Missing
)

func (o Outcome) String() string {
	switch o {
	case Equal:
		return "equal"
	case Differs:
		return "differs"
	case Missing:
		return "missing"
	default:
		return fmt.Sprintf("Outcome(%d)", int(o))
	}
}

// HashFile returns the hex SHA-256 digest of the file's contents.
func HashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("hashing %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// CompareFiles hashes pathA and pathB and reports whether they match.
// A missing pathB yields Missing, not an error.
func CompareFiles(pathA, pathB string) (Outcome, error) {
	if _, err := os.Stat(pathB); err != nil {
		if os.IsNotExist(err) {
			return Missing, nil
		}
		return Missing, fmt.Errorf("checking %s: %w", pathB, err)
	}

	hashA, err := HashFile(pathA)
	if err != nil {
		return Differs, err
	}
	hashB, err := HashFile(pathB)
	if err != nil {
		return Differs, err
	}

	if hashA == hashB {
		return Equal, nil
	}
	return Differs, nil
}
