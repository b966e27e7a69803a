package main

import (
	"context"
	"path/filepath"
	"strings"
)

// FixStatus is the terminal state of one fixImports run.
type FixStatus int

const (
	FixClean      FixStatus = iota // nothing was broken
	FixApplied                     // every broken specifier was fixed
	FixUnresolved                  // at least one specifier stayed broken
	FixCancelled
)

// FixOutcome reports what a run changed. Edits already applied before a
// cancellation stay applied; the operation is not transactional.
type FixOutcome struct {
	Status     FixStatus
	Fixed      map[string]string // old specifier -> new specifier
	Unresolved []string
}

// Disambiguator picks one of several candidate files for a broken
// specifier. Returning false leaves the specifier unresolved.
type Disambiguator func(specifier string, candidates []string) (string, bool)

// FixImports repairs the relative import/require specifiers of one document
// that no longer point at a file. Each broken specifier is searched for by
// filename across the workspace; a unique match is applied automatically,
// several matches go through choose, none leaves it unresolved. The context
// is consulted before every filesystem-bound step.
func FixImports(ctx context.Context, catalog *Catalog, documentPath string, choose Disambiguator) FixOutcome {
	outcome := FixOutcome{Status: FixClean, Fixed: map[string]string{}}
	documentPath = NormalizePathForInternal(documentPath)
	docInfo := NewFileInfo(documentPath)

	attempted := map[string]bool{}
	var workspaceFiles []string
	filesLoaded := false

	for {
		if ctx.Err() != nil {
			outcome.Status = FixCancelled
			return outcome
		}

		tree := ParseDocument(documentPath, nil)
		if tree == nil {
			return outcome
		}

		broken, ok := nextBrokenSpecifier(catalog, tree, docInfo, attempted)
		if !ok {
			break
		}
		attempted[broken.Request] = true

		if ctx.Err() != nil {
			outcome.Status = FixCancelled
			return outcome
		}

		if !filesLoaded {
			matchers := FindAndProcessGitIgnoreFilesUpToRepoRoot(DenormalizePathForOS(docInfo.DirectoryPath))
			workspaceFiles = GetScriptFiles(DenormalizePathForOS(catalog.cwd), matchers)
			filesLoaded = true
		}

		candidates := FindFilesRoughly(workspaceFiles, broken.Request)
		switch len(candidates) {
		case 0:
			outcome.Unresolved = append(outcome.Unresolved, broken.Request)
			continue
		case 1:
			// unique match, applied below
		default:
			if ctx.Err() != nil {
				outcome.Status = FixCancelled
				return outcome
			}
			picked, chose := "", false
			if choose != nil {
				picked, chose = choose(broken.Request, candidates)
			}
			if !chose {
				outcome.Unresolved = append(outcome.Unresolved, broken.Request)
				continue
			}
			candidates = []string{picked}
		}

		newSpecifier := RelativeSpecifier(docInfo.DirectoryPath, candidates[0])
		newSpecifier = trimSpecifierLikeOriginal(newSpecifier, broken.Request)

		change := Change{Start: int32(broken.RequestStart), End: int32(broken.RequestEnd), Text: newSpecifier}
		if err := ApplyFileChanges(map[string][]Change{documentPath: {change}}); err != nil {
			outcome.Unresolved = append(outcome.Unresolved, broken.Request)
			continue
		}
		outcome.Fixed[broken.Request] = newSpecifier
	}

	switch {
	case len(outcome.Unresolved) > 0:
		outcome.Status = FixUnresolved
	case len(outcome.Fixed) > 0:
		outcome.Status = FixApplied
	}
	return outcome
}

// nextBrokenSpecifier returns the first relative specifier that resolves to
// nothing on disk, as-is or with the document's own extension appended.
func nextBrokenSpecifier(catalog *Catalog, tree *DocumentTree, docInfo FileInfo, attempted map[string]bool) (ModuleStatement, bool) {
	cache := ResolveCache{}
	for _, s := range tree.ImportsAndRequires() {
		if !IsRelativeSpecifier(s.Request) || attempted[s.Request] {
			continue
		}
		if _, ok := ResolveRelativeRequest(catalog.Probe(), cache, tree.Path, s.Request); ok {
			continue
		}
		withExt := s.Request + "." + docInfo.FileExtensionWithoutLeadingDot
		if _, ok := ResolveFilePath(catalog.Probe(), cache, "", docInfo.DirectoryPath, withExt); ok {
			continue
		}
		return s, true
	}
	return ModuleStatement{}, false
}

// FindFilesRoughly searches files by the broken specifier's filename. When
// several files share the name, candidates are narrowed to the ones whose
// trailing directory segments agree most with the specifier's.
func FindFilesRoughly(workspaceFiles []string, specifier string) []string {
	wantedName := filepath.Base(specifier)
	wantedBare := strings.TrimSuffix(wantedName, filepath.Ext(wantedName))

	var matches []string
	for _, filePath := range workspaceFiles {
		info := NewFileInfo(filePath)
		if info.FileNameWithExtension == wantedName || info.FileNameWithoutExtension == wantedBare {
			matches = append(matches, filePath)
		}
	}
	if len(matches) <= 1 {
		return matches
	}

	specDirSegments := pathSegments(filepath.Dir(specifier))
	best := -1
	scored := map[string]int{}
	for _, filePath := range matches {
		score := trailingSegmentAgreement(pathSegments(NewFileInfo(filePath).DirectoryPath), specDirSegments)
		scored[filePath] = score
		if score > best {
			best = score
		}
	}

	var narrowed []string
	for _, filePath := range matches {
		if scored[filePath] == best {
			narrowed = append(narrowed, filePath)
		}
	}
	return narrowed
}

func pathSegments(path string) []string {
	path = NormalizePathForInternal(path)
	var segments []string
	for _, seg := range strings.Split(path, "/") {
		if seg != "" && seg != "." && seg != ".." {
			segments = append(segments, seg)
		}
	}
	return segments
}

// trailingSegmentAgreement counts how many directory segments match when
// comparing both paths from their ends inward.
func trailingSegmentAgreement(a, b []string) int {
	count := 0
	for count < len(a) && count < len(b) {
		if a[len(a)-1-count] != b[len(b)-1-count] {
			break
		}
		count++
	}
	return count
}

// trimSpecifierLikeOriginal keeps the repaired specifier in the shape the
// original had: drop the extension if the original had none, hide the index
// segment if the original hid it.
func trimSpecifierLikeOriginal(specifier string, original string) string {
	originalHadExt := filepath.Ext(original) != ""
	if !originalHadExt {
		if ext := filepath.Ext(specifier); ext != "" {
			if _, isScript := scriptExts[strings.ToLower(ext)]; isScript {
				specifier = strings.TrimSuffix(specifier, ext)
			}
		}
	}
	originalShowsIndex := strings.HasSuffix(strings.TrimSuffix(original, filepath.Ext(original)), "/index")
	if !originalShowsIndex && strings.HasSuffix(specifier, "/index") {
		trimmed := strings.TrimSuffix(specifier, "/index")
		if trimmed != "" && trimmed != "." {
			specifier = trimmed
		}
	}
	return specifier
}
