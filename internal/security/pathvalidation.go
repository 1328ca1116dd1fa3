// Package security guards the file paths the review tool reads and writes.
package security

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrOutsideRoot reports a path that resolves outside its root directory.
var ErrOutsideRoot = errors.New("path escapes root directory")

// WithinDir checks that path resolves inside root once symlinks are
// followed. A path that does not exist yet is checked through its nearest
// existing parent, so a symlinked parent cannot smuggle a new file out.
func WithinDir(path, root string) error {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return fmt.Errorf("failed to resolve root %s: %w", root, err)
	}
	canonRoot, err := filepath.EvalSymlinks(absRoot)
	if err != nil {
		return fmt.Errorf("failed to resolve root %s: %w", root, err)
	}
	absPath, err := filepath.Abs(filepath.Clean(path))
	if err != nil {
		return fmt.Errorf("failed to resolve %s: %w", path, err)
	}
	canonPath := resolveExisting(absPath)

	rel, err := filepath.Rel(canonRoot, canonPath)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrOutsideRoot, path)
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) || filepath.IsAbs(rel) {
		return fmt.Errorf("%w: %s is outside %s", ErrOutsideRoot, path, root)
	}
	return nil
}

// resolveExisting follows symlinks in the longest existing prefix of p and
// re-attaches the rest.
func resolveExisting(p string) string {
	if resolved, err := filepath.EvalSymlinks(p); err == nil {
		return resolved
	}
	for dir := filepath.Dir(p); ; dir = filepath.Dir(dir) {
		if resolved, err := filepath.EvalSymlinks(dir); err == nil {
			rest, _ := filepath.Rel(dir, p)
			return filepath.Join(resolved, rest)
		}
		if dir == filepath.Dir(dir) {
			return p
		}
	}
}

// IsDir reports whether path exists and is a directory.
func IsDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

const maxNameLen = 128

// SafeName joins parts with underscores into a file name made only of ASCII
// letters, digits, dots, underscores and dashes. Runs of other characters
// collapse to one underscore.
func SafeName(parts ...string) string {
	var b strings.Builder
	lastUnderscore := false
	for _, r := range strings.Join(parts, "_") {
		if b.Len() >= maxNameLen {
			break
		}
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-':
			b.WriteRune(r)
			lastUnderscore = false
		default:
			if !lastUnderscore {
				b.WriteRune('_')
				lastUnderscore = true
			}
		}
	}
	out := strings.Trim(b.String(), "._")
	if out == "" {
		return "unnamed"
	}
	return out
}
