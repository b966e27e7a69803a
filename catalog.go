package main

import (
	"context"
	"path/filepath"
	"runtime"
	"slices"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

// ItemKind tags a CatalogItem variant. Each variant populates a different
// subset of the item fields; the kind decides which.
type ItemKind int

const (
	ItemFileDefaultExport ItemKind = iota
	ItemFileNamedExport
	ItemFileNamespaceExport
	ItemNodeModule
	ItemNodeIdentifier
	ItemStylusFile
)

func (k ItemKind) String() string {
	switch k {
	case ItemFileDefaultExport:
		return "default export"
	case ItemFileNamedExport:
		return "named export"
	case ItemFileNamespaceExport:
		return "namespace export"
	case ItemNodeModule:
		return "node module"
	case ItemNodeIdentifier:
		return "node identifier"
	case ItemStylusFile:
		return "stylus file"
	}
	return "unknown"
}

// CatalogItem is one selectable import candidate.
//
// File variants carry FilePath, the export record's text and path list.
// Node variants carry ModuleName and the owning ManifestDir. Stylus items
// carry only FilePath.
type CatalogItem struct {
	Kind         ItemKind
	Name         string
	OriginalName string
	FilePath     string
	ModuleName   string
	ManifestDir  string
	ExportText   string
	SyntaxKind   SyntaxKind
	PathList     []string
}

// SourcePath is the path a generated import for this item would point at.
func (item CatalogItem) SourcePath() string {
	if item.Kind == ItemNodeModule || item.Kind == ItemNodeIdentifier {
		return item.ModuleName
	}
	return item.FilePath
}

type scanState int

const (
	scanIdle scanState = iota
	scanRunning
)

// Catalog holds every import candidate of a workspace: file exports, node
// modules with their identifiers, and stylesheets. A full scan is
// single-flight; concurrent SetItems calls join the in-flight scan.
type Catalog struct {
	cwd     string
	configs []AutoImportConfig

	probe     *FsProbeCache
	graph     *ExportGraph
	tsconfigs *TsConfigCache
	ambient   *ambientModuleCache

	group singleflight.Group

	mu          sync.Mutex
	state       scanState
	index       *PackageIndex
	fileItems   map[string][]CatalogItem
	stylusItems map[string][]CatalogItem
	nodeItems   map[string][]CatalogItem
	matchers    []GlobMatcher
}

func NewCatalog(cwd string, configs []AutoImportConfig) *Catalog {
	probe := NewFsProbeCache()
	return &Catalog{
		cwd:         NormalizePathForInternal(filepath.Clean(cwd)),
		configs:     configs,
		probe:       probe,
		graph:       NewExportGraph(probe),
		tsconfigs:   NewTsConfigCache(probe),
		ambient:     newAmbientModuleCache(),
		fileItems:   map[string][]CatalogItem{},
		stylusItems: map[string][]CatalogItem{},
		nodeItems:   map[string][]CatalogItem{},
	}
}

func (c *Catalog) ExportGraph() *ExportGraph { return c.graph }
func (c *Catalog) Probe() *FsProbeCache     { return c.probe }
func (c *Catalog) TsConfigs() *TsConfigCache {
	return c.tsconfigs
}

func (c *Catalog) PackageIndex() *PackageIndex {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.index
}

// Scanning reports whether a full scan is currently in flight.
func (c *Catalog) Scanning() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state == scanRunning
}

// SetItems runs the full workspace scan. Calls made while a scan is in
// flight attach to it and return its result instead of starting another.
func (c *Catalog) SetItems(ctx context.Context) error {
	_, err, _ := c.group.Do("scan", func() (interface{}, error) {
		c.mu.Lock()
		c.state = scanRunning
		c.mu.Unlock()

		err := c.scan(ctx)

		c.mu.Lock()
		c.state = scanIdle
		c.mu.Unlock()
		return nil, err
	})
	return err
}

func (c *Catalog) scan(ctx context.Context) error {
	c.graph.Reset()
	c.ambient.Invalidate()

	matchers := FindAndProcessGitIgnoreFilesUpToRepoRoot(DenormalizePathForOS(c.cwd))
	cfg := ConfigForPath(c.configs, c.cwd, c.cwd)
	_, exclude := cfg.ExtraMatchers(c.cwd)
	matchers = append(matchers, exclude...)

	index := BuildPackageIndex(ctx, c.cwd, matchers, c.probe)

	scriptFiles := GetScriptFiles(DenormalizePathForOS(c.cwd), matchers)
	stylusFiles := GetStylusFiles(DenormalizePathForOS(c.cwd), matchers)

	fileItems := map[string][]CatalogItem{}
	var itemsMu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0) * 2)
	for _, filePath := range scriptFiles {
		filePath := filePath
		g.Go(func() error {
			if gctx.Err() != nil {
				return gctx.Err()
			}
			items := c.buildFileItems(gctx, filePath)
			itemsMu.Lock()
			fileItems[filePath] = items
			itemsMu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	stylusItems := map[string][]CatalogItem{}
	for _, filePath := range stylusFiles {
		stylusItems[filePath] = []CatalogItem{buildStylusItem(filePath)}
	}

	nodeItems := map[string][]CatalogItem{}
	for _, m := range index.Manifests() {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		nodeItems[m.DirPath] = c.buildNodeItems(ctx, m)
	}

	c.mu.Lock()
	c.index = index
	c.fileItems = fileItems
	c.stylusItems = stylusItems
	c.nodeItems = nodeItems
	c.matchers = matchers
	c.mu.Unlock()
	return nil
}

// buildFileItems converts one file's transitive exports into catalog items.
// Only exports declared in the file itself or re-exported through it are
// offered; the file's path list shows where each one really lives.
func (c *Catalog) buildFileItems(ctx context.Context, filePath string) []CatalogItem {
	exports := c.graph.ExportsOf(ctx, filePath)
	if len(exports) == 0 {
		return nil
	}
	info := NewFileInfo(filePath)

	items := make([]CatalogItem, 0, len(exports))
	for _, name := range SortedExportNames(exports) {
		rec := exports[name]
		item := CatalogItem{
			FilePath:     filePath,
			OriginalName: rec.OriginalName,
			ExportText:   rec.Text,
			SyntaxKind:   rec.Kind,
			PathList:     rec.PathList,
		}
		switch {
		case name == DefaultExportName:
			item.Kind = ItemFileDefaultExport
			item.Name = rec.OriginalName
			if item.Name == "" {
				item.Name = defaultNameForFile(info)
			}
		case rec.Kind == KindNamespace:
			item.Kind = ItemFileNamespaceExport
			item.Name = name
		default:
			item.Kind = ItemFileNamedExport
			item.Name = name
		}
		items = append(items, item)
	}
	return items
}

// defaultNameForFile derives an identifier for an anonymous default export
// from the file name, or the directory name for index files.
func defaultNameForFile(info FileInfo) string {
	name := info.FileNameWithoutExtension
	if info.IsIndexFile() {
		name = info.DirectoryName
	}
	var b strings.Builder
	upperNext := false
	for i := 0; i < len(name); i++ {
		ch := name[i]
		if ch == '-' || ch == '_' || ch == '.' || ch == ' ' {
			upperNext = true
			continue
		}
		if upperNext && ch >= 'a' && ch <= 'z' {
			ch = ch - 'a' + 'A'
		}
		upperNext = false
		b.WriteByte(ch)
	}
	return b.String()
}

func buildStylusItem(filePath string) CatalogItem {
	info := NewFileInfo(filePath)
	return CatalogItem{
		Kind:     ItemStylusFile,
		Name:     info.FileNameWithExtension,
		FilePath: filePath,
	}
}

func (c *Catalog) buildNodeItems(ctx context.Context, m *PackageManifest) []CatalogItem {
	var items []CatalogItem
	for _, dep := range m.DependencyNames() {
		items = append(items, CatalogItem{
			Kind:        ItemNodeModule,
			Name:        dep,
			ModuleName:  dep,
			ManifestDir: m.DirPath,
		})
		exports := NodeModuleExports(ctx, c.graph, c.probe, m.NodeModuleRoots, dep)
		for _, name := range SortedExportNames(exports) {
			if name == DefaultExportName {
				continue
			}
			items = append(items, CatalogItem{
				Kind:        ItemNodeIdentifier,
				Name:        name,
				ModuleName:  dep,
				ManifestDir: m.DirPath,
				SyntaxKind:  exports[name].Kind,
			})
		}
	}

	if m.HasDependency("@types/node") {
		for _, ambient := range c.ambient.Modules(m.NodeModuleRoots) {
			items = append(items, CatalogItem{
				Kind:        ItemNodeModule,
				Name:        ambient,
				ModuleName:  ambient,
				ManifestDir: m.DirPath,
			})
		}
	}
	return items
}

// GetItems returns the candidates offerable to documentPath: node items of
// its closest manifest first, then file or stylus items passing the
// per-document filter. The document's own file is never offered.
func (c *Catalog) GetItems(documentPath string) []CatalogItem {
	documentPath = NormalizePathForInternal(documentPath)
	info := NewFileInfo(documentPath)

	if hasStylusExtension(info.FileNameWithExtension) {
		return c.stylusItemsFor(documentPath)
	}
	if !hasScriptExtension(info.FileNameWithExtension) {
		return nil
	}

	c.mu.Lock()
	index := c.index
	fileItems := c.fileItems
	nodeItems := c.nodeItems
	c.mu.Unlock()

	var items []CatalogItem
	if index != nil {
		if m := index.ClosestManifest(documentPath); m != nil {
			items = append(items, nodeItems[m.DirPath]...)
		}
	}

	tscfg := c.tsconfigs.ForDocument(documentPath)
	cfg := ConfigForPath(c.configs, c.cwd, documentPath)
	includeMatchers, _ := cfg.ExtraMatchers(c.cwd)

	paths := make([]string, 0, len(fileItems))
	for filePath := range fileItems {
		paths = append(paths, filePath)
	}
	paths = SortedNamesCaseInsensitive(paths)

	docIsTS := isTypeScriptPath(documentPath)
	for _, filePath := range paths {
		if filePath == documentPath {
			continue
		}
		if !c.extensionCompatible(docIsTS, filePath, tscfg) {
			continue
		}
		if tscfg != nil && !tscfg.Covers(filePath) {
			continue
		}
		if len(includeMatchers) > 0 && !MatchesAnyGlobMatcher(filePath, includeMatchers) {
			continue
		}
		for _, item := range fileItems[filePath] {
			if item.SourcePath() == documentPath {
				continue
			}
			items = append(items, item)
		}
	}
	return items
}

func (c *Catalog) stylusItemsFor(documentPath string) []CatalogItem {
	c.mu.Lock()
	stylusItems := c.stylusItems
	c.mu.Unlock()

	paths := make([]string, 0, len(stylusItems))
	for filePath := range stylusItems {
		if filePath != documentPath {
			paths = append(paths, filePath)
		}
	}
	paths = SortedNamesCaseInsensitive(paths)

	var items []CatalogItem
	for _, filePath := range paths {
		items = append(items, stylusItems[filePath]...)
	}
	return items
}

// extensionCompatible keeps TypeScript items away from plain JS documents
// unless the governing tsconfig allows mixing, and vice versa.
func (c *Catalog) extensionCompatible(docIsTS bool, itemPath string, tscfg *TsConfig) bool {
	itemIsTS := isTypeScriptPath(itemPath)
	if docIsTS && !itemIsTS {
		return tscfg == nil || tscfg.AllowJs
	}
	if !docIsTS && itemIsTS {
		return false
	}
	return true
}

// AddItem registers or refreshes one file without a full rescan. When the
// file is a manifest, the node-module side is refreshed instead.
func (c *Catalog) AddItem(ctx context.Context, filePath string) {
	filePath = NormalizePathForInternal(filePath)
	info := NewFileInfo(filePath)

	if info.FileNameWithExtension == "package.json" {
		c.refreshManifest(ctx, info.DirectoryPath)
		return
	}

	c.mu.Lock()
	matchers := c.matchers
	c.mu.Unlock()
	if MatchesAnyGlobMatcher(filePath, matchers) {
		return
	}

	switch {
	case hasScriptExtension(info.FileNameWithExtension):
		c.probe.Invalidate()
		c.graph.Invalidate(filePath)
		items := c.buildFileItems(ctx, filePath)
		c.mu.Lock()
		c.fileItems[filePath] = items
		c.mu.Unlock()
	case hasStylusExtension(info.FileNameWithExtension):
		item := buildStylusItem(filePath)
		c.mu.Lock()
		c.stylusItems[filePath] = []CatalogItem{item}
		c.mu.Unlock()
	}
}

// CutItem removes one file's items. Removing a manifest drops its package
// from the index; documents beneath it fall back to the next ancestor.
func (c *Catalog) CutItem(ctx context.Context, filePath string) {
	filePath = NormalizePathForInternal(filePath)
	info := NewFileInfo(filePath)

	if info.FileNameWithExtension == "package.json" {
		c.removeManifest(info.DirectoryPath)
		return
	}

	c.graph.Invalidate(filePath)
	c.mu.Lock()
	delete(c.fileItems, filePath)
	delete(c.stylusItems, filePath)
	c.mu.Unlock()
}

func (c *Catalog) refreshManifest(ctx context.Context, dirPath string) {
	c.mu.Lock()
	index := c.index
	c.mu.Unlock()
	if index == nil {
		return
	}

	// New lockfiles, node_modules directories or type packages may have
	// appeared alongside the manifest edit.
	c.probe.Invalidate()
	c.ambient.Invalidate()

	if !index.RefreshManifest(dirPath) {
		return
	}
	m := index.ClosestManifest(dirPath + "/package.json")
	if m == nil || m.DirPath != dirPath {
		return
	}
	items := c.buildNodeItems(ctx, m)
	c.mu.Lock()
	c.nodeItems[dirPath] = items
	c.mu.Unlock()
}

func (c *Catalog) removeManifest(dirPath string) {
	c.mu.Lock()
	index := c.index
	c.mu.Unlock()
	if index == nil {
		return
	}
	index.RemoveManifest(dirPath)
	c.ambient.Invalidate()
	c.mu.Lock()
	delete(c.nodeItems, dirPath)
	c.mu.Unlock()
}

// FileItemsSnapshot returns the current file items keyed by path. The maps
// and slices are shared; callers must not mutate them.
func (c *Catalog) FileItemsSnapshot() map[string][]CatalogItem {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fileItems
}

// OrderedItems flattens items into the stable display order: file name
// first, then exported identifier, both case-insensitive.
func OrderedItems(items []CatalogItem) []CatalogItem {
	out := slices.Clone(items)
	slices.SortStableFunc(out, func(a, b CatalogItem) int {
		fa := NewFileInfo(a.SourcePath()).FileNameWithExtension
		fb := NewFileInfo(b.SourcePath()).FileNameWithExtension
		if d := compareCaseInsensitive(fa, fb); d != 0 {
			return d
		}
		return compareCaseInsensitive(a.Name, b.Name)
	})
	return out
}

func compareCaseInsensitive(a, b string) int {
	la, lb := strings.ToLower(a), strings.ToLower(b)
	if la != lb {
		return strings.Compare(la, lb)
	}
	return strings.Compare(a, b)
}
