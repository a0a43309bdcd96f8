// Package pathguard checks that paths derived from untrusted input stay inside
// a base directory.
//
// Every path built from repository contents or user supplied names must pass
// through Contains or Join before it is used for I/O.
package pathguard

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// ErrOutsideRoot indicates a path resolved outside its base directory.
var ErrOutsideRoot = errors.New("path escapes base directory")

// Contains reports whether target, once made absolute and cleaned, is base
// itself or lies beneath it.
//
// Unlike a plain prefix check, "/srv/data2" is not inside "/srv/data".
func Contains(base, target string) bool {
	absBase, err := filepath.Abs(base)
	if err != nil {
		return false
	}
	absTarget, err := filepath.Abs(target)
	if err != nil {
		return false
	}

	rel, err := filepath.Rel(absBase, absTarget)
	if err != nil {
		return false
	}
	if rel == "." {
		return true
	}
	if filepath.IsAbs(rel) {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// Join joins rel onto base and returns the result only if it stays inside base.
func Join(base, rel string) (string, error) {
	if filepath.IsAbs(rel) {
		return "", fmt.Errorf("%w: %q is absolute", ErrOutsideRoot, rel)
	}
	joined := filepath.Join(base, rel)
	if !Contains(base, joined) {
		return "", fmt.Errorf("%w: %q", ErrOutsideRoot, rel)
	}
	return joined, nil
}
