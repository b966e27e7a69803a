package main

import (
	"os"
	"path/filepath"
	"strings"
)

var scriptExts = map[string]struct{}{
	".ts":   {},
	".tsx":  {},
	".js":   {},
	".jsx":  {},
	".cjs":  {},
	".mjs":  {},
	".mjsx": {},
}

var stylusExts = map[string]struct{}{
	".styl": {},
	".css":  {},
}

var assetExts = map[string]struct{}{
	".png": {}, ".jpg": {}, ".jpeg": {}, ".gif": {}, ".svg": {}, ".webp": {},
	".woff": {}, ".woff2": {}, ".ttf": {}, ".otf": {}, ".eot": {},
}

// Directories never scanned, regardless of gitignore or configuration.
var alwaysExcludedDirs = map[string]bool{
	"node_modules": true,
	".git":         true,
	"__fixtures__": true,
	"__mocks__":    true,
}

func hasScriptExtension(name string) bool {
	_, ok := scriptExts[strings.ToLower(filepath.Ext(name))]
	return ok
}

func hasStylusExtension(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	if _, ok := stylusExts[ext]; ok {
		return true
	}
	_, ok := assetExts[ext]
	return ok
}

func parseGitIgnore(fileContent string, dirPath string) []GlobMatcher {
	lines := strings.Split(fileContent, "\n")

	sanitizedLines := []string{}
	for _, line := range lines {
		trimmedLine := strings.TrimSpace(line)
		if len(trimmedLine) > 0 && !strings.HasPrefix(trimmedLine, "#") {
			sanitizedLines = append(sanitizedLines, line)
		}
	}

	return CreateGlobMatchers(sanitizedLines, dirPath)
}

// FindAndProcessGitIgnoreFilesUpToRepoRoot collects matchers from every
// .gitignore between dirPath and the repository root (the first directory
// holding .git), or the filesystem root when no repository exists.
func FindAndProcessGitIgnoreFilesUpToRepoRoot(dirPath string) []GlobMatcher {
	return findGitIgnoresUpwards(dirPath, []GlobMatcher{})
}

func findGitIgnoresUpwards(dirPath string, globMatchers []GlobMatcher) []GlobMatcher {
	gitIgnoreFilePath := filepath.Join(dirPath, ".gitignore")
	if gitignoreFile, err := os.ReadFile(gitIgnoreFilePath); err == nil {
		globMatchers = append(globMatchers, parseGitIgnore(string(gitignoreFile), dirPath)...)
	}

	if gitDir, err := os.Stat(filepath.Join(dirPath, ".git")); err == nil && gitDir.IsDir() {
		return globMatchers
	}

	parent := StandardiseDirPath(filepath.Join(dirPath, "../"))
	if parent == dirPath || parent == StandardiseDirPath(dirPath) {
		return globMatchers
	}
	return findGitIgnoresUpwards(parent, globMatchers)
}

// GetFiles walks directory recursively, honoring gitignore matchers found on
// the way down, and appends every file extensionFilter admits. Paths are
// returned in internal normalized form.
func GetFiles(directory string, existingFiles []string, parentGlobMatchers []GlobMatcher, extensionFilter func(name string) bool) []string {
	entries, err := os.ReadDir(directory)
	if err != nil {
		return existingFiles
	}

	for _, entry := range entries {
		entryName := entry.Name()
		entryFilePath := filepath.Join(directory, entryName)

		if entry.IsDir() {
			if alwaysExcludedDirs[entryName] {
				continue
			}
			if MatchesAnyGlobMatcher(entryFilePath, parentGlobMatchers) {
				continue
			}
			// Nested .gitignore files apply below their own directory only.
			ignoreGlobs := parentGlobMatchers
			if gitignoreFile, err := os.ReadFile(filepath.Join(entryFilePath, ".gitignore")); err == nil {
				if nested := parseGitIgnore(string(gitignoreFile), entryFilePath); len(nested) > 0 {
					ignoreGlobs = append(append([]GlobMatcher{}, parentGlobMatchers...), nested...)
				}
			}
			existingFiles = GetFiles(entryFilePath, existingFiles, ignoreGlobs, extensionFilter)
			continue
		}

		if extensionFilter(entryName) && !MatchesAnyGlobMatcher(entryFilePath, parentGlobMatchers) {
			existingFiles = append(existingFiles, NormalizePathForInternal(entryFilePath))
		}
	}

	return existingFiles
}

// GetScriptFiles enumerates the JS/TS files under directory.
func GetScriptFiles(directory string, matchers []GlobMatcher) []string {
	return GetFiles(directory, nil, matchers, hasScriptExtension)
}

// GetStylusFiles enumerates stylesheet and asset files under directory.
func GetStylusFiles(directory string, matchers []GlobMatcher) []string {
	return GetFiles(directory, nil, matchers, hasStylusExtension)
}

// GetMissingFile probes for a file a broken module path may have meant:
// the path with each script extension appended, then a directory index.
func GetMissingFile(modulePath string) string {
	for ext := range scriptExts {
		filePath := modulePath
		if !strings.HasSuffix(modulePath, ext) {
			filePath = modulePath + ext
		}
		info, err := os.Stat(DenormalizePathForOS(filePath))
		if err == nil && !info.IsDir() {
			return NormalizePathForInternal(filePath)
		}
	}

	for ext := range scriptExts {
		filePath := modulePath + "/index" + ext
		info, err := os.Stat(DenormalizePathForOS(filePath))
		if err == nil && !info.IsDir() {
			return NormalizePathForInternal(filePath)
		}
	}

	return ""
}
