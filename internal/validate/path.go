// Package validate provides lexical path checks used during extraction.
// These checks run before any filesystem access; the materializer follows them
// with real-path containment checks against the resolved output root.
package validate

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrEscape is returned when a path leaves the directory it is resolved against.
var ErrEscape = errors.New("path escapes root")

// EntryPath validates an archive entry path before it is joined to an output root.
// Paths containing ".." are accepted as long as they stay inside the root once cleaned,
// and dotted names such as "sample.." are ordinary names.
func EntryPath(path string) error {
	if path == "" || isWhitespaceOnly(path) {
		return fmt.Errorf("empty path")
	}

	if strings.ContainsRune(path, 0) {
		return fmt.Errorf("NUL byte detected in path: %q", path)
	}

	if IsAbs(path) {
		return fmt.Errorf("absolute path not allowed: %s: %w", path, ErrEscape)
	}

	if escapes(path) {
		return fmt.Errorf("path traversal detected: %s: %w", path, ErrEscape)
	}

	return nil
}

// Join joins an archive entry path onto root and returns the cleaned result.
// It fails when the entry is unsafe or the joined path is not inside root.
func Join(root, path string) (string, error) {
	if err := EntryPath(path); err != nil {
		return "", err
	}

	full := filepath.Join(root, filepath.FromSlash(path))
	if !Within(root, full) {
		return "", fmt.Errorf("path escapes target directory: %s: %w", path, ErrEscape)
	}

	return full, nil
}

// LinkTarget resolves a symlink target the way the kernel would read it,
// relative to the directory holding the link, and checks the result stays in root.
// linkPath must already be an absolute path inside root.
func LinkTarget(root, linkPath, target string) (string, error) {
	if target == "" {
		return "", fmt.Errorf("empty symlink target: %s", linkPath)
	}

	if IsAbs(target) {
		return "", fmt.Errorf("symlink target is absolute path: %s -> %s: %w", linkPath, target, ErrEscape)
	}

	resolved := filepath.Join(filepath.Dir(linkPath), filepath.FromSlash(target))
	if !Within(root, resolved) {
		return "", fmt.Errorf("symlink target escapes root directory: %s -> %s: %w", linkPath, target, ErrEscape)
	}

	return resolved, nil
}

// Within reports whether path is root itself or lies underneath it.
// Both arguments are compared after cleaning; the check is separator aware so
// "/tmp/dist2" is not considered inside "/tmp/dist".
func Within(root, path string) bool {
	root = filepath.Clean(root)
	path = filepath.Clean(path)

	if path == root {
		return true
	}

	prefix := root
	if !strings.HasSuffix(prefix, string(os.PathSeparator)) {
		prefix += string(os.PathSeparator)
	}

	return strings.HasPrefix(path, prefix)
}

// IsAbs checks for absolute paths on all platforms including Windows drive and UNC paths.
func IsAbs(path string) bool {
	if filepath.IsAbs(path) || strings.HasPrefix(path, "/") {
		return true
	}

	// Windows drive letters (C:, D:, etc.)
	if len(path) >= 2 && path[1] == ':' {
		drive := path[0]
		if (drive >= 'A' && drive <= 'Z') || (drive >= 'a' && drive <= 'z') {
			return true
		}
	}

	// UNC paths (\\server\share)
	return strings.HasPrefix(path, "\\\\")
}

// escapes reports whether a relative path climbs above its starting directory.
func escapes(path string) bool {
	clean := filepath.Clean(filepath.FromSlash(path))
	parent := ".." + string(os.PathSeparator)

	return clean == ".." || strings.HasPrefix(clean, parent)
}

func isWhitespaceOnly(path string) bool {
	for _, r := range path {
		if r != ' ' && r != '\t' && r != '\n' && r != '\r' {
			return false
		}
	}
	return true
}
