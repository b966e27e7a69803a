package main

import (
	"path/filepath"
	"strings"
)

// Fallback extension probe order used when the preferred extension misses.
// Mirrors the compiler's own preference for TypeScript over JavaScript.
var fallbackExtensionOrder = []string{"tsx", "ts", "jsx", "js", "mjs", "cjs"}

// ResolveCache maps an unresolved candidate path (and candidate+"."+ext
// forms) to the path it resolved to. Callers share one instance across a bulk
// scan to avoid repeated filesystem probes.
type ResolveCache map[string]string

func extensionProbeOrder(preferredExt string) []string {
	if preferredExt == "" {
		return fallbackExtensionOrder
	}
	order := make([]string, 0, len(fallbackExtensionOrder)+1)
	order = append(order, preferredExt)
	for _, ext := range fallbackExtensionOrder {
		if ext != preferredExt {
			order = append(order, ext)
		}
	}
	return order
}

// ResolveFilePath joins the given path segments and resolves them to a
// regular file on disk: verbatim hit first, then directory index lookup, then
// extension probing with preferredExt tried before the fixed fallback order.
// Returns ("", false) when nothing matches; it never fails with an error.
func ResolveFilePath(probe *FsProbeCache, cache ResolveCache, preferredExt string, segments ...string) (string, bool) {
	candidate := NormalizePathForInternal(filepath.Clean(filepath.Join(segments...)))

	if cache != nil {
		if resolved, ok := cache[candidate]; ok {
			return resolved, resolved != ""
		}
		for _, ext := range extensionProbeOrder(preferredExt) {
			if resolved, ok := cache[candidate+"."+ext]; ok && resolved != "" {
				return resolved, true
			}
		}
	}

	resolved, ok := resolveFilePathUncached(probe, cache, preferredExt, candidate)
	if cache != nil {
		cache[candidate] = resolved
	}
	return resolved, ok
}

func resolveFilePathUncached(probe *FsProbeCache, cache ResolveCache, preferredExt string, candidate string) (string, bool) {
	if probe.IsFile(candidate) {
		return candidate, true
	}
	if probe.IsDirectory(candidate) {
		return ResolveFilePath(probe, cache, preferredExt, candidate, "index")
	}
	for _, ext := range extensionProbeOrder(preferredExt) {
		withExt := candidate + "." + ext
		if probe.IsFile(withExt) {
			if cache != nil {
				cache[withExt] = withExt
			}
			return withExt, true
		}
	}
	return "", false
}

// IsRelativeSpecifier reports whether an import request refers to a file by
// relative path rather than to a package.
func IsRelativeSpecifier(request string) bool {
	return strings.HasPrefix(request, "./") || strings.HasPrefix(request, "../") || request == "." || request == ".."
}

// ResolveRelativeRequest resolves a relative import request found in the file
// at documentPath. preferredExt biases extension probing toward the importing
// document's own extension.
func ResolveRelativeRequest(probe *FsProbeCache, cache ResolveCache, documentPath string, request string) (string, bool) {
	if !IsRelativeSpecifier(request) {
		return "", false
	}
	doc := NewFileInfo(documentPath)
	return ResolveFilePath(probe, cache, doc.FileExtensionWithoutLeadingDot, doc.DirectoryPath, request)
}
