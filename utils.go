package main

import (
	"path/filepath"
	"sort"
	"strings"
)

// StandardiseDirPath cleans a directory path and guarantees internal form
// without a trailing slash.
func StandardiseDirPath(dirPath string) string {
	return NormalizePathForInternal(filepath.Clean(DenormalizePathForOS(dirPath)))
}

// JoinWithCwd joins a possibly relative path with cwd and normalizes it.
func JoinWithCwd(cwd string, path string) string {
	if filepath.IsAbs(DenormalizePathForOS(path)) {
		return NormalizePathForInternal(path)
	}
	return NormalizePathForInternal(filepath.Join(DenormalizePathForOS(cwd), DenormalizePathForOS(path)))
}

type KV[K comparable, V any] struct {
	Key   K
	Value V
}

// GetSortedMap returns map entries sorted by key for deterministic output.
func GetSortedMap[V any](m map[string]V) []KV[string, V] {
	out := make([]KV[string, V], 0, len(m))
	for k, v := range m {
		out = append(out, KV[string, V]{Key: k, Value: v})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// SortedNamesCaseInsensitive sorts identifier names case-insensitively, with
// a case-sensitive tiebreak so the order is total.
func SortedNamesCaseInsensitive(names []string) []string {
	out := append([]string(nil), names...)
	sort.Slice(out, func(i, j int) bool {
		a, b := strings.ToLower(out[i]), strings.ToLower(out[j])
		if a != b {
			return a < b
		}
		return out[i] < out[j]
	})
	return out
}

// DetectEOL returns the end-of-line sequence used by text, defaulting to "\n".
func DetectEOL(text []byte) string {
	for i := 0; i < len(text); i++ {
		if text[i] == '\n' {
			if i > 0 && text[i-1] == '\r' {
				return "\r\n"
			}
			return "\n"
		}
	}
	return "\n"
}
