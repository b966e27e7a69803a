package main

import (
	"context"
	"sync"
)

// DefaultExportName is the sentinel key under which a module's default
// export is stored. A leading `*` keeps it out of the identifier namespace.
const DefaultExportName = "*default"

// ExportRecord is one exported identifier of a file.
//
// PathList traces the re-export chain: the first element is always the file
// the caller asked about, the last is the file where the value is actually
// declared. A cyclic re-export never grows the list unboundedly; the cycle
// guard drops the back-edge instead.
type ExportRecord struct {
	Name         string
	OriginalName string
	Text         string
	Kind         SyntaxKind
	PathList     []string
}

// DeclaringPath returns the file the identifier is truly declared in.
func (r ExportRecord) DeclaringPath() string {
	if len(r.PathList) == 0 {
		return ""
	}
	return r.PathList[len(r.PathList)-1]
}

// ExportGraph computes and caches the transitive exports of files. Entries
// are immutable once stored for a file content generation; a file change
// invalidates exactly that file's entry.
type ExportGraph struct {
	mu      sync.Mutex
	entries map[string]map[string]ExportRecord
	probe   *FsProbeCache
	resolve ResolveCache
}

func NewExportGraph(probe *FsProbeCache) *ExportGraph {
	if probe == nil {
		probe = NewFsProbeCache()
	}
	return &ExportGraph{
		entries: map[string]map[string]ExportRecord{},
		probe:   probe,
		resolve: ResolveCache{},
	}
}

func (g *ExportGraph) cached(path string) (map[string]ExportRecord, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	m, ok := g.entries[path]
	return m, ok
}

func (g *ExportGraph) store(path string, exports map[string]ExportRecord) map[string]ExportRecord {
	g.mu.Lock()
	defer g.mu.Unlock()
	// Set-if-absent: a concurrent resolution may have stored an identical
	// map already; the first one wins so callers see one stable generation.
	if existing, ok := g.entries[path]; ok {
		return existing
	}
	g.entries[path] = exports
	return exports
}

// Invalidate drops the cached exports of one file.
func (g *ExportGraph) Invalidate(path string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.entries, NormalizePathForInternal(path))
}

// Reset drops every cached entry, starting a new scan generation.
func (g *ExportGraph) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.entries = map[string]map[string]ExportRecord{}
	g.resolve = ResolveCache{}
	g.probe.Invalidate()
}

// ExportsOf returns the identifiers path exports, keyed by exported name
// (DefaultExportName for the default export). The returned map is shared
// cache state; callers must not mutate it.
func (g *ExportGraph) ExportsOf(ctx context.Context, path string) map[string]ExportRecord {
	return g.exportsOf(ctx, NormalizePathForInternal(path), map[string]bool{})
}

func (g *ExportGraph) exportsOf(ctx context.Context, path string, inFlight map[string]bool) map[string]ExportRecord {
	if m, ok := g.cached(path); ok {
		return m
	}
	if inFlight[path] {
		// Cyclic re-export: the back-edge sees no exports. Known best-effort
		// behavior, the cycle is bounded instead of reported.
		return map[string]ExportRecord{}
	}
	inFlight[path] = true
	defer delete(inFlight, path)

	scan := ScanFileExports(ctx, path, nil)
	if scan == nil {
		return g.store(path, map[string]ExportRecord{})
	}

	// Local declarations, keyed by local name.
	bindings := make(map[string]ExportRecord, len(scan.Locals)+len(scan.Imports))
	for _, local := range scan.Locals {
		bindings[local.Name] = ExportRecord{
			Name:     local.Name,
			Text:     local.Text,
			Kind:     local.Kind,
			PathList: []string{path},
		}
	}

	// Imported bindings: bind local names to transit records of the target.
	for _, imp := range scan.Imports {
		if ctx.Err() != nil {
			break
		}
		if !IsRelativeSpecifier(imp.Request) {
			continue
		}
		target, ok := g.resolveRequest(path, imp.Request)
		if !ok {
			continue
		}
		targetExports := g.exportsOf(ctx, target, inFlight)
		if rec, ok := g.lookupTransit(targetExports, imp.Imported, target); ok {
			bindings[imp.LocalName] = ExportRecord{
				Name:         imp.LocalName,
				OriginalName: rec.OriginalName,
				Text:         rec.Text,
				Kind:         rec.Kind,
				PathList:     append([]string{path}, rec.PathList...),
			}
		}
	}

	exports := map[string]ExportRecord{}

	// Re-export and local export clauses.
	for _, clause := range scan.Clauses {
		if clause.Request != "" {
			g.addReExport(ctx, path, clause, exports, inFlight)
			continue
		}
		exported := clause.Exported
		if exported == "default" {
			exported = DefaultExportName
		}
		if rec, ok := bindings[clause.Local]; ok {
			originalName := rec.OriginalName
			if originalName == "" && clause.Local != clause.Exported {
				originalName = clause.Local
			}
			exports[exported] = ExportRecord{
				Name:         exported,
				OriginalName: originalName,
				Text:         rec.Text,
				Kind:         rec.Kind,
				PathList:     withQueriedFirst(path, rec.PathList),
			}
		} else {
			// The name is exported even when its origin is unknown.
			exports[exported] = ExportRecord{
				Name:     exported,
				PathList: []string{path},
			}
		}
	}

	// `export * from "x"`: copy everything but the default export.
	for _, request := range scan.StarFrom {
		if ctx.Err() != nil {
			break
		}
		target, ok := g.resolveRequest(path, request)
		if !ok {
			continue
		}
		for name, rec := range g.exportsOf(ctx, target, inFlight) {
			if name == DefaultExportName {
				continue
			}
			if _, taken := exports[name]; taken {
				continue
			}
			exports[name] = ExportRecord{
				Name:         name,
				OriginalName: rec.OriginalName,
				Text:         rec.Text,
				Kind:         rec.Kind,
				PathList:     append([]string{path}, rec.PathList...),
			}
		}
	}

	// `export * as ns from "x"`.
	for _, ns := range scan.NsReExports {
		target, resolved := g.resolveRequest(path, ns.Request)
		pathList := []string{path}
		if resolved {
			pathList = append(pathList, target)
		}
		exports[ns.Alias] = ExportRecord{
			Name:     ns.Alias,
			Kind:     KindNamespace,
			Text:     "* as " + ns.Alias,
			PathList: pathList,
		}
	}

	g.addDefaultExport(scan, path, bindings, exports)
	g.addCommonJSExports(scan, path, bindings, exports)

	return g.store(path, exports)
}

func withQueriedFirst(path string, pathList []string) []string {
	if len(pathList) > 0 && pathList[0] == path {
		return pathList
	}
	return append([]string{path}, pathList...)
}

// lookupTransit finds the record a clause entry refers to in the target's
// export map, synthesizing a namespace record for `*`.
func (g *ExportGraph) lookupTransit(targetExports map[string]ExportRecord, imported string, target string) (ExportRecord, bool) {
	switch imported {
	case "default":
		rec, ok := targetExports[DefaultExportName]
		return rec, ok
	case "*":
		return ExportRecord{
			Kind:     KindNamespace,
			Text:     "*",
			PathList: []string{target},
		}, true
	default:
		rec, ok := targetExports[imported]
		return rec, ok
	}
}

func (g *ExportGraph) addReExport(ctx context.Context, path string, clause ExportClauseEntry, exports map[string]ExportRecord, inFlight map[string]bool) {
	exported := clause.Exported
	if exported == "default" {
		exported = DefaultExportName
	}

	target, ok := g.resolveRequest(path, clause.Request)
	if !ok {
		// Package re-exports and broken paths still export the name.
		exports[exported] = ExportRecord{Name: exported, PathList: []string{path}}
		return
	}

	targetExports := g.exportsOf(ctx, target, inFlight)
	if rec, found := g.lookupTransit(targetExports, clause.Local, target); found {
		originalName := rec.OriginalName
		if originalName == "" && clause.Local != clause.Exported && clause.Local != "default" {
			originalName = clause.Local
		}
		exports[exported] = ExportRecord{
			Name:         exported,
			OriginalName: originalName,
			Text:         rec.Text,
			Kind:         rec.Kind,
			PathList:     append([]string{path}, withQueriedFirst(target, rec.PathList)...),
		}
		return
	}
	exports[exported] = ExportRecord{Name: exported, PathList: []string{path, target}}
}

func (g *ExportGraph) addDefaultExport(scan *FileExportScan, path string, bindings map[string]ExportRecord, exports map[string]ExportRecord) {
	if scan.DefaultDecl != nil {
		exports[DefaultExportName] = ExportRecord{
			Name:         DefaultExportName,
			OriginalName: scan.DefaultDecl.Name,
			Text:         scan.DefaultDecl.Text,
			Kind:         scan.DefaultDecl.Kind,
			PathList:     []string{path},
		}
		return
	}
	if scan.DefaultRef == "" && scan.DefaultText == "" {
		return
	}
	if rec, ok := bindings[scan.DefaultRef]; scan.DefaultRef != "" && ok {
		exports[DefaultExportName] = ExportRecord{
			Name:         DefaultExportName,
			OriginalName: scan.DefaultRef,
			Text:         rec.Text,
			Kind:         rec.Kind,
			PathList:     withQueriedFirst(path, rec.PathList),
		}
		return
	}
	exports[DefaultExportName] = ExportRecord{
		Name:         DefaultExportName,
		OriginalName: scan.DefaultRef,
		Text:         scan.DefaultText,
		PathList:     []string{path},
	}
}

func (g *ExportGraph) addCommonJSExports(scan *FileExportScan, path string, bindings map[string]ExportRecord, exports map[string]ExportRecord) {
	if scan.CjsDefaultRef != "" || scan.CjsDefaultText != "" {
		if _, taken := exports[DefaultExportName]; !taken {
			if rec, ok := bindings[scan.CjsDefaultRef]; scan.CjsDefaultRef != "" && ok {
				exports[DefaultExportName] = ExportRecord{
					Name:         DefaultExportName,
					OriginalName: scan.CjsDefaultRef,
					Text:         rec.Text,
					Kind:         rec.Kind,
					PathList:     withQueriedFirst(path, rec.PathList),
				}
			} else {
				exports[DefaultExportName] = ExportRecord{
					Name:         DefaultExportName,
					OriginalName: scan.CjsDefaultRef,
					Text:         scan.CjsDefaultText,
					PathList:     []string{path},
				}
			}
		}
	}

	for _, entry := range scan.CjsNamed {
		if _, taken := exports[entry.Exported]; taken {
			continue
		}
		if rec, ok := bindings[entry.Local]; entry.Local != "" && ok {
			originalName := rec.OriginalName
			if originalName == "" && entry.Local != entry.Exported {
				originalName = entry.Local
			}
			exports[entry.Exported] = ExportRecord{
				Name:         entry.Exported,
				OriginalName: originalName,
				Text:         rec.Text,
				Kind:         rec.Kind,
				PathList:     withQueriedFirst(path, rec.PathList),
			}
			continue
		}
		exports[entry.Exported] = ExportRecord{
			Name:         entry.Exported,
			OriginalName: entry.Local,
			Text:         scan.CjsNamedText[entry.Exported],
			Kind:         KindVariable,
			PathList:     []string{path},
		}
	}
}

// HasDefaultExport reports whether path has a default export; require to
// import conversion uses it to choose between a default and a namespace
// import form.
func (g *ExportGraph) HasDefaultExport(ctx context.Context, path string) bool {
	_, ok := g.ExportsOf(ctx, path)[DefaultExportName]
	return ok
}

// resolveRequest resolves a relative request from path's directory, biased
// toward path's own extension.
func (g *ExportGraph) resolveRequest(path string, request string) (string, bool) {
	g.mu.Lock()
	cache := g.resolve
	g.mu.Unlock()
	return ResolveRelativeRequest(g.probe, cache, path, request)
}

// SortedExportNames returns the export names sorted case-insensitively for
// deterministic display, with the default sentinel always first.
func SortedExportNames(exports map[string]ExportRecord) []string {
	names := make([]string, 0, len(exports))
	hasDefault := false
	for name := range exports {
		if name == DefaultExportName {
			hasDefault = true
			continue
		}
		names = append(names, name)
	}
	names = SortedNamesCaseInsensitive(names)
	if hasDefault {
		return append([]string{DefaultExportName}, names...)
	}
	return names
}
