package main

import (
	"path/filepath"
	"runtime"
	"strings"
)

// NormalizePathForInternal converts any OS path into a canonical internal
// representation using forward slashes and cleaned path components.
// Examples:
// - "C:\\project\\src\\file.ts" -> "C:/project/src/file.ts"
// - "./a/../b/" -> "b"
func NormalizePathForInternal(p string) string {
	if runtime.GOOS != "windows" {
		return p
	}
	if p == "" {
		return ""
	}
	cleaned := filepath.Clean(p)
	s := filepath.ToSlash(cleaned)
	// Trim trailing slash except when path is root like "/" or "C:/"
	if len(s) > 1 && strings.HasSuffix(s, "/") {
		s = strings.TrimRight(s, "/")
	}
	return s
}

// DenormalizePathForOS converts an internal forward-slash path back to the
// OS-native representation for os.* calls.
func DenormalizePathForOS(internal string) string {
	if runtime.GOOS != "windows" {
		return internal
	}
	if internal == "" {
		return ""
	}
	return filepath.FromSlash(internal)
}

// NormalizeGlobPattern normalizes glob pattern separators to forward slashes.
func NormalizeGlobPattern(pattern string) string {
	if runtime.GOOS != "windows" {
		return pattern
	}
	if pattern == "" {
		return ""
	}
	return strings.ReplaceAll(pattern, "\\\\", "/")
}

// NormalizePathsInSlice returns a new slice with each path normalized.
func NormalizePathsInSlice(xs []string) []string {
	if runtime.GOOS != "windows" {
		return xs
	}
	out := make([]string, 0, len(xs))
	for _, x := range xs {
		out = append(out, NormalizePathForInternal(x))
	}
	return out
}

// PosixPath returns the path with forward slashes regardless of OS. Import
// specifiers always use forward slashes, even on Windows.
func PosixPath(p string) string {
	return strings.ReplaceAll(p, "\\", "/")
}

// RelativeSpecifier computes the import specifier pointing from fromDir to
// target, using forward slashes and a leading "./" when the target does not
// already escape upward.
func RelativeSpecifier(fromDir string, target string) string {
	rel, err := filepath.Rel(DenormalizePathForOS(fromDir), DenormalizePathForOS(target))
	if err != nil {
		return PosixPath(target)
	}
	rel = PosixPath(rel)
	if !strings.HasPrefix(rel, ".") {
		rel = "./" + rel
	}
	return rel
}

// IsPathAncestor reports whether dir is ancestorDir or lies beneath it. Both
// arguments must be internal-normalized absolute paths.
func IsPathAncestor(ancestorDir string, dir string) bool {
	if ancestorDir == dir {
		return true
	}
	prefix := ancestorDir
	if !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return strings.HasPrefix(dir, prefix)
}

// PathDepth counts the number of separators in an internal path. Used to sort
// manifests so that deeper (closer) directories are considered first.
func PathDepth(p string) int {
	return strings.Count(PosixPath(p), "/")
}
