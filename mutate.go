package main

import (
	"context"
	"sort"
	"strings"
)

// MergeOutcome classifies what AddImport did, or why it did nothing.
type MergeOutcome int

const (
	MergeApplied MergeOutcome = iota
	MergeAlreadyExists
	MergeConflict
	MergeNeedsRename
)

// MutationResult carries the computed edit or the user-facing refusal.
// FocusOffset points at the conflicting clause for the editor to reveal;
// -1 when there is nothing to focus.
type MutationResult struct {
	Outcome     MergeOutcome
	Changes     []Change
	Message     string
	FocusOffset int32
}

func appliedResult(changes ...Change) MutationResult {
	return MutationResult{Outcome: MergeApplied, Changes: changes, FocusOffset: -1}
}

func refusedResult(outcome MergeOutcome, message string, focus int32) MutationResult {
	return MutationResult{Outcome: outcome, Message: message, FocusOffset: focus}
}

// AddImport computes the text edit that brings item into documentPath as an
// import of the requested binding kind. It merges into an existing
// statement for the same module when one exists, otherwise synthesizes a
// new statement in house style at its sorted position.
func AddImport(ctx context.Context, catalog *Catalog, cfg *AutoImportConfig, documentPath string, item CatalogItem, kind ImportBindingKind, projectProfile *ImportStyleProfile) MutationResult {
	documentPath = NormalizePathForInternal(documentPath)
	tree := ParseDocument(documentPath, nil)
	if tree == nil {
		return refusedResult(MergeConflict, "cannot parse "+documentPath, -1)
	}

	resolveCache := ResolveCache{}
	profile := BuildDocumentProfile(tree, catalog.Probe(), resolveCache, projectProfile)
	cfg.ApplyQuotePreference(profile)

	name := item.Name
	targetPath := item.SourcePath()

	// File-exported identifiers may be reachable through a closer barrel.
	if item.Kind == ItemFileNamedExport || item.Kind == ItemFileDefaultExport {
		barrel, conflict := pickBarrel(catalog, documentPath, item, tree)
		if conflict != nil {
			return *conflict
		}
		if barrel != "" {
			targetPath = barrel
		}
	}

	specifier := importSpecifierFor(catalog, cfg, profile, documentPath, item, targetPath)

	if existing, ok := findExistingImport(catalog, resolveCache, tree, targetPath, specifier); ok {
		return mergeIntoStatement(tree, existing, name, kind, profile)
	}

	docExt := NewFileInfo(documentPath).FileExtensionWithoutLeadingDot
	snippet := profile.GetImportOrRequireSnippet(docExt, name, kind, specifier)
	offset := insertionOffset(tree, specifier)
	text := snippet + tree.EOL
	if offset > 0 {
		text = tree.EOL + snippet
	}
	return appliedResult(Change{Start: offset, End: offset, Text: text})
}

// importSpecifierFor renders the specifier that should appear in the
// statement: module name for node items, normalized relative path (or
// tsconfig alias) for file items, both run through config rewrites.
func importSpecifierFor(catalog *Catalog, cfg *AutoImportConfig, profile *ImportStyleProfile, documentPath string, item CatalogItem, targetPath string) string {
	if item.Kind == ItemNodeModule || item.Kind == ItemNodeIdentifier {
		return item.ModuleName
	}

	docDir := NewFileInfo(documentPath).DirectoryPath
	specifier := RelativeSpecifier(docDir, targetPath)

	if tscfg := catalog.TsConfigs().ForDocument(documentPath); tscfg != nil {
		if alias, ok := tscfg.AliasForPath(targetPath); ok {
			// Aliases win over deep upward-climbing relative paths only.
			if strings.HasPrefix(specifier, "../../") {
				specifier = alias
			}
		}
	}

	specifier = profile.NormalizeImportPath(specifier)
	return cfg.RewriteImportPath(targetPath, specifier)
}

// findExistingImport locates a static import or require declaration whose
// request resolves to targetPath (relative requests) or equals the
// specifier (bare requests).
func findExistingImport(catalog *Catalog, cache ResolveCache, tree *DocumentTree, targetPath string, specifier string) (*ModuleStatement, bool) {
	for i := range tree.Statements {
		s := &tree.Statements[i]
		if s.Kind != StmtImport && s.Kind != StmtSideEffectImport && s.Kind != StmtRequire {
			continue
		}
		if IsRelativeSpecifier(s.Request) {
			resolved, ok := ResolveRelativeRequest(catalog.Probe(), cache, tree.Path, s.Request)
			if ok && resolved == targetPath {
				return s, true
			}
			continue
		}
		if s.Request == specifier {
			return s, true
		}
	}
	return nil, false
}

// insertionOffset finds where a brand-new statement belongs: immediately
// after the last statement in the same ordering group (relative vs bare)
// whose request sorts before the new specifier, or document start.
func insertionOffset(tree *DocumentTree, specifier string) int32 {
	newIsRelative := IsRelativeSpecifier(specifier)
	offset := int32(0)
	for _, s := range tree.StaticImports() {
		if IsRelativeSpecifier(s.Request) != newIsRelative {
			continue
		}
		if s.Request < specifier {
			offset = int32(s.StmtEnd)
		}
	}
	return offset
}

func mergeIntoStatement(tree *DocumentTree, s *ModuleStatement, name string, kind ImportBindingKind, profile *ImportStyleProfile) MutationResult {
	if s.Kind == StmtRequire {
		return mergeIntoRequire(tree, s, name, kind)
	}

	defaultBinding, hasDefault := s.HasDefaultBinding()
	nsBinding, hasNamespace := s.HasNamespaceBinding()
	named := s.NamedBindings()

	switch kind {
	case BindDefault:
		switch {
		case hasDefault:
			return refusedResult(MergeAlreadyExists, "a default import of this module already exists as "+defaultBinding.LocalName(), int32(defaultBinding.Start))
		case hasNamespace:
			if nsBinding.LocalName() == name {
				return refusedResult(MergeNeedsRename, "the namespace import already uses the name "+name, int32(nsBinding.Start))
			}
			return appliedResult(Change{Start: int32(nsBinding.Start), End: int32(nsBinding.Start), Text: name + ", "})
		case s.BraceStart != 0:
			return appliedResult(Change{Start: int32(s.BraceStart), End: int32(s.BraceStart), Text: name + ", "})
		default:
			// Side-effect import grows a clause.
			pos := int32(s.StmtStart) + int32(len("import"))
			return appliedResult(Change{Start: pos, End: pos, Text: " " + name + " from"})
		}

	case BindNamespace:
		switch {
		case hasNamespace:
			if nsBinding.LocalName() == name {
				return refusedResult(MergeAlreadyExists, "a namespace import of this module already exists", int32(nsBinding.Start))
			}
			return refusedResult(MergeConflict, "this module is already namespace-imported as "+nsBinding.LocalName(), int32(nsBinding.Start))
		case len(named) > 0:
			return refusedResult(MergeConflict, "cannot combine a namespace import with the existing named imports", int32(s.BraceStart))
		case hasDefault:
			if defaultBinding.LocalName() == name {
				return refusedResult(MergeNeedsRename, "the default import already uses the name "+name, int32(defaultBinding.Start))
			}
			return appliedResult(Change{Start: int32(defaultBinding.End), End: int32(defaultBinding.End), Text: ", * as " + name})
		default:
			pos := int32(s.StmtStart) + int32(len("import"))
			return appliedResult(Change{Start: pos, End: pos, Text: " * as " + name + " from"})
		}

	default: // BindNamed
		switch {
		case hasNamespace:
			return refusedResult(MergeConflict, "this module is already namespace-imported as "+nsBinding.LocalName(), int32(nsBinding.Start))
		case len(named) > 0:
			return insertIntoNamedList(tree, s, named, name)
		case hasDefault:
			return appliedResult(Change{Start: int32(defaultBinding.End), End: int32(defaultBinding.End), Text: ", { " + name + " }"})
		default:
			pos := int32(s.StmtStart) + int32(len("import"))
			return appliedResult(Change{Start: pos, End: pos, Text: " { " + name + " } from"})
		}
	}
}

func mergeIntoRequire(tree *DocumentTree, s *ModuleStatement, name string, kind ImportBindingKind) MutationResult {
	named := s.NamedBindings()

	if s.BindingIsDestructured {
		if kind != BindNamed {
			return refusedResult(MergeConflict, "this module is already destructured from require", int32(s.StmtStart))
		}
		return insertIntoNamedList(tree, s, named, name)
	}

	if kind == BindNamed {
		return refusedResult(MergeConflict, "this module is already required as "+s.BindingName, int32(s.StmtStart))
	}
	if s.BindingName == name {
		return refusedResult(MergeAlreadyExists, "a require of this module already exists as "+name, int32(s.StmtStart))
	}
	return refusedResult(MergeConflict, "this module is already required as "+s.BindingName, int32(s.StmtStart))
}

// insertIntoNamedList adds name at its lexicographic position inside an
// existing named clause, reproducing the clause's one-line or multi-line
// separator style.
func insertIntoNamedList(tree *DocumentTree, s *ModuleStatement, named []BindingInfo, name string) MutationResult {
	for _, b := range named {
		if b.LocalName() == name || b.Name == name {
			return refusedResult(MergeAlreadyExists, name+" is already imported", int32(b.Start))
		}
	}

	sorted := make([]BindingInfo, len(named))
	copy(sorted, named)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Start < sorted[j].Start })

	multiline := namedClauseIsMultiline(tree, s, sorted)
	indent := ""
	if multiline && len(sorted) > 0 {
		indent = lineIndentAt(tree.Text, int(sorted[0].Start))
	}

	// First entry that sorts after the new name becomes the anchor.
	for _, b := range sorted {
		if name < b.Name {
			text := name + ", "
			if multiline {
				text = name + "," + tree.EOL + indent
			}
			return appliedResult(Change{Start: int32(b.Start), End: int32(b.Start), Text: text})
		}
	}

	last := sorted[len(sorted)-1]
	pos := int32(last.End)
	if last.CommaAfter != 0 {
		pos = int32(last.CommaAfter) + 1
		text := " " + name
		if multiline {
			text = tree.EOL + indent + name + ","
		}
		return appliedResult(Change{Start: pos, End: pos, Text: text})
	}
	text := ", " + name
	if multiline {
		text = "," + tree.EOL + indent + name
	}
	return appliedResult(Change{Start: pos, End: pos, Text: text})
}

func namedClauseIsMultiline(tree *DocumentTree, s *ModuleStatement, sorted []BindingInfo) bool {
	start, end := int(s.BraceStart), int(s.BraceEnd)
	if start == 0 || end == 0 || end > len(tree.Text) {
		if len(sorted) == 0 {
			return false
		}
		start, end = int(sorted[0].Start), int(sorted[len(sorted)-1].End)
	}
	return strings.Contains(string(tree.Text[start:end]), "\n")
}

func lineIndentAt(text []byte, offset int) string {
	lineStart := offset
	for lineStart > 0 && text[lineStart-1] != '\n' {
		lineStart--
	}
	end := lineStart
	for end < len(text) && (text[end] == ' ' || text[end] == '\t') {
		end++
	}
	return string(text[lineStart:end])
}

// pickBarrel looks for an index file that re-exports the chosen identifier
// from the same declaring file and routes the import through it. The
// original file wins when the document already sits inside the barrel's
// directory; an existing wildcard import of the barrel makes the whole
// operation fail rather than silently picking another path.
func pickBarrel(catalog *Catalog, documentPath string, item CatalogItem, tree *DocumentTree) (string, *MutationResult) {
	declaring := item.FilePath
	if len(item.PathList) > 0 {
		declaring = item.PathList[len(item.PathList)-1]
	}

	wantName := item.OriginalName
	if wantName == "" {
		wantName = item.Name
	}

	type barrelCandidate struct {
		path  string
		depth int
	}
	var candidates []barrelCandidate
	for filePath, items := range catalog.FileItemsSnapshot() {
		if filePath == item.FilePath || filePath == documentPath {
			continue
		}
		info := NewFileInfo(filePath)
		if !info.IsIndexFile() {
			continue
		}
		for _, other := range items {
			if other.Kind != item.Kind {
				continue
			}
			otherDeclaring := other.FilePath
			if len(other.PathList) > 0 {
				otherDeclaring = other.PathList[len(other.PathList)-1]
			}
			otherName := other.OriginalName
			if otherName == "" {
				otherName = other.Name
			}
			if otherDeclaring == declaring && otherName == wantName {
				candidates = append(candidates, barrelCandidate{path: filePath, depth: PathDepth(info.DirectoryPath)})
				break
			}
		}
	}
	if len(candidates) == 0 {
		return "", nil
	}

	// Deepest barrel that still contains the declaring file; it gives the
	// shortest conventional path.
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].depth > candidates[j].depth })
	docDir := NewFileInfo(documentPath).DirectoryPath
	for _, cand := range candidates {
		barrelDir := NewFileInfo(cand.path).DirectoryPath
		if !IsPathAncestor(barrelDir, declaring) {
			continue
		}
		if IsPathAncestor(barrelDir, docDir) || barrelDir == docDir {
			// The document lives inside the barrel; import the file directly.
			return "", nil
		}
		if conflict := wildcardImportOf(catalog, tree, cand.path); conflict != nil {
			result := refusedResult(MergeConflict, "the barrel "+cand.path+" is already wildcard-imported; import "+wantName+" through it manually", int32(conflict.StmtStart))
			return "", &result
		}
		return cand.path, nil
	}
	return "", nil
}

func wildcardImportOf(catalog *Catalog, tree *DocumentTree, barrelPath string) *ModuleStatement {
	cache := ResolveCache{}
	for i := range tree.Statements {
		s := &tree.Statements[i]
		if s.Kind != StmtImport {
			continue
		}
		if _, hasNamespace := s.HasNamespaceBinding(); !hasNamespace {
			continue
		}
		if !IsRelativeSpecifier(s.Request) {
			continue
		}
		if resolved, ok := ResolveRelativeRequest(catalog.Probe(), cache, tree.Path, s.Request); ok && resolved == barrelPath {
			return s
		}
	}
	return nil
}
