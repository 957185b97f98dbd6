package pathutil

import (
	"path/filepath"
	"strings"
)

// Normalize returns a canonical filesystem path string.
// It removes trailing slashes, collapses "." and "..", and
// preserves relative paths when provided.
func Normalize(path string) string {
	if path == "" {
		return path
	}
	return filepath.Clean(path)
}

// WithTrailingSep appends sep to base unless base is empty or already ends with it.
func WithTrailingSep(base, sep string) string {
	if base == "" || sep == "" || strings.HasSuffix(base, sep) {
		return base
	}
	return base + sep
}

// ToSlash rewrites a logical path built with sep into POSIX form.
func ToSlash(path, sep string) string {
	if sep == "" || sep == "/" {
		return path
	}
	return strings.ReplaceAll(path, sep, "/")
}
