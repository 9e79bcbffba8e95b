// Package filex contains small filesystem helpers for the local upload store.
package filex

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

var ErrPathEscape = errors.New("path escapes base directory")

// EnsureDir creates dir (and parents) if missing. Relative paths are resolved
// against the working directory.
func EnsureDir(dir string) (string, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("abs %s: %w", dir, err)
	}

	if err := os.MkdirAll(abs, 0o770); err != nil {
		return "", fmt.Errorf("mkdir %s: %w", abs, err)
	}

	return abs, nil
}

// SafeJoin joins name onto base and rejects results outside base.
func SafeJoin(base, name string) (string, error) {
	p := filepath.Join(base, filepath.FromSlash(name))
	rel, err := filepath.Rel(base, p)
	if err != nil {
		return "", err
	}
	if rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", ErrPathEscape
	}
	return p, nil
}
