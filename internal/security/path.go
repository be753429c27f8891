package security

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Path confines file access to a fixed set of root directories,
// preventing path traversal (CWE-22). The zero value is not usable;
// construct with NewPath.
type Path struct {
	roots []string
}

// NewPath creates a validator allowing access under the given roots.
// With no roots, the current working directory becomes the only root.
func NewPath(roots []string) (*Path, error) {
	if len(roots) == 0 {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("resolving working directory: %w", err)
		}
		roots = []string{wd}
	}

	abs := make([]string, 0, len(roots))
	for _, root := range roots {
		a, err := filepath.Abs(root)
		if err != nil {
			return nil, fmt.Errorf("resolving root %s: %w", root, err)
		}
		// Roots behind symlinks (tmpfs mounts and the like) are
		// compared in resolved form, matching Validate's re-check.
		if resolved, err := filepath.EvalSymlinks(a); err == nil {
			a = resolved
		}
		abs = append(abs, filepath.Clean(a))
	}
	return &Path{roots: abs}, nil
}

// Validate cleans path, resolves it to an absolute path, and checks it
// stays under one of the allowed roots. Existing paths additionally
// have their symlinks resolved and are re-checked, so a link inside an
// allowed root cannot reach outside it. The returned path is the
// resolved absolute path to operate on.
//
// Error messages intentionally omit the input path.
func (v *Path) Validate(path string) (string, error) {
	if strings.ContainsRune(path, 0) {
		return "", errors.New("access denied: path contains a NUL byte")
	}

	abs, err := filepath.Abs(filepath.Clean(path))
	if err != nil {
		return "", fmt.Errorf("resolving path: %w", err)
	}

	// Missing files resolve to themselves so that paths about to be
	// created still validate.
	real := abs
	resolved := false
	if r, err := filepath.EvalSymlinks(abs); err == nil {
		real = r
		resolved = true
	} else if !os.IsNotExist(err) {
		return "", errors.New("access denied: cannot resolve symbolic links")
	}

	if !v.within(real) {
		if resolved && real != abs && v.within(abs) {
			return "", errors.New("access denied: symbolic link target is outside allowed directories")
		}
		return "", errors.New("access denied: path is outside allowed directories")
	}
	return real, nil
}

// within reports whether abs equals one of the roots or lives under it.
func (v *Path) within(abs string) bool {
	withSep := filepath.Clean(abs) + string(filepath.Separator)
	for _, root := range v.roots {
		if abs == root || strings.HasPrefix(withSep, root+string(filepath.Separator)) {
			return true
		}
	}
	return false
}
