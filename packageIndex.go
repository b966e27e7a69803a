package main

import (
	"context"
	"encoding/json"
	"os"
	"os/exec"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/Masterminds/semver/v3"
	"github.com/gobwas/glob"
	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"
)

// PackageManifest is one parsed package.json plus the derived facts the
// import engine needs: which package manager governs it and which
// node_modules directories serve it, nearest first.
type PackageManifest struct {
	ManifestPath    string
	DirPath         string
	Name            string
	Version         string
	Main            string
	Module          string
	PackageManager  string
	Dependencies    map[string]string
	DevDependencies map[string]string
	Workspaces      []string
	NodeModuleRoots []string
	IsWorkspaceRoot bool
}

// DependencyNames returns dependencies and devDependencies combined,
// excluding @types/* entries, sorted for stable iteration.
func (m *PackageManifest) DependencyNames() []string {
	names := make([]string, 0, len(m.Dependencies)+len(m.DevDependencies))
	for name := range m.Dependencies {
		if !strings.HasPrefix(name, "@types/") {
			names = append(names, name)
		}
	}
	for name := range m.DevDependencies {
		if _, dup := m.Dependencies[name]; dup {
			continue
		}
		if !strings.HasPrefix(name, "@types/") {
			names = append(names, name)
		}
	}
	return SortedNamesCaseInsensitive(names)
}

func (m *PackageManifest) HasDependency(name string) bool {
	if _, ok := m.Dependencies[name]; ok {
		return true
	}
	_, ok := m.DevDependencies[name]
	return ok
}

var lockfileManagers = []struct {
	file    string
	manager string
}{
	{"pnpm-lock.yaml", "pnpm"},
	{"yarn.lock", "yarn"},
	{"bun.lockb", "bun"},
	{"bun.lock", "bun"},
	{"package-lock.json", "npm"},
}

func detectLockfileManager(probe *FsProbeCache, dir string) string {
	for _, lf := range lockfileManagers {
		if probe.IsFile(dir + "/" + lf.file) {
			return lf.manager
		}
	}
	return ""
}

// parsePackageManagerField validates a package.json "packageManager" value
// of the form name@version. Entries with a malformed version are ignored;
// corepack would reject them anyway.
func parsePackageManagerField(field string) string {
	name, version, ok := strings.Cut(field, "@")
	if !ok || name == "" {
		return ""
	}
	version, _, _ = strings.Cut(version, "+")
	if _, err := semver.StrictNewVersion(version); err != nil {
		return ""
	}
	return name
}

func readPackageManifest(manifestPath string) (*PackageManifest, error) {
	content, err := os.ReadFile(DenormalizePathForOS(manifestPath))
	if err != nil {
		return nil, err
	}

	var raw struct {
		Name            string            `json:"name"`
		Version         string            `json:"version"`
		Main            string            `json:"main"`
		Module          string            `json:"module"`
		PackageManager  string            `json:"packageManager"`
		Dependencies    map[string]string `json:"dependencies"`
		DevDependencies map[string]string `json:"devDependencies"`
		Workspaces      interface{}       `json:"workspaces"`
	}
	if err := json.Unmarshal(jsonc.ToJSON(content), &raw); err != nil {
		return nil, err
	}

	manifestPath = NormalizePathForInternal(manifestPath)
	return &PackageManifest{
		ManifestPath:    manifestPath,
		DirPath:         NewFileInfo(manifestPath).DirectoryPath,
		Name:            raw.Name,
		Version:         raw.Version,
		Main:            raw.Main,
		Module:          raw.Module,
		PackageManager:  parsePackageManagerField(raw.PackageManager),
		Dependencies:    raw.Dependencies,
		DevDependencies: raw.DevDependencies,
		Workspaces:      workspacePatterns(raw.Workspaces),
	}, nil
}

// workspacePatterns accepts both shapes of the workspaces field: a plain
// array, or an object with a "packages" array.
func workspacePatterns(raw interface{}) []string {
	var patterns []string
	appendAll := func(list []interface{}) {
		for _, v := range list {
			if s, ok := v.(string); ok {
				patterns = append(patterns, s)
			}
		}
	}
	if list, ok := raw.([]interface{}); ok {
		appendAll(list)
	} else if obj, ok := raw.(map[string]interface{}); ok {
		if packages, ok := obj["packages"].([]interface{}); ok {
			appendAll(packages)
		}
	}
	return patterns
}

func readPnpmWorkspacePatterns(dir string) []string {
	content, err := os.ReadFile(filepath.Join(DenormalizePathForOS(dir), "pnpm-workspace.yaml"))
	if err != nil {
		return nil
	}
	var ws struct {
		Packages []string `yaml:"packages"`
	}
	if err := yaml.Unmarshal(content, &ws); err != nil {
		return nil
	}
	return ws.Packages
}

// PackageIndex holds every package.json manifest under a workspace, sorted
// by directory depth descending so the first ancestor hit for a document is
// its closest manifest.
type PackageIndex struct {
	mu        sync.Mutex
	Root      string
	manifests []*PackageManifest
	byDir     map[string]*PackageManifest
	byName    map[string]*PackageManifest
	probe     *FsProbeCache
}

// FindWorkspaceRoot walks up from dir and returns the highest directory
// that declares a workspace, or the closest package.json directory when no
// workspace exists. Returns "" when dir is outside any package.
func FindWorkspaceRoot(dir string) string {
	current := NormalizePathForInternal(filepath.Clean(dir))
	closestPkg := ""
	workspaceRoot := ""
	for {
		manifestPath := current + "/package.json"
		if _, err := os.Stat(DenormalizePathForOS(manifestPath)); err == nil {
			if closestPkg == "" {
				closestPkg = current
			}
			if m, err := readPackageManifest(manifestPath); err == nil && len(m.Workspaces) > 0 {
				workspaceRoot = current
			}
		}
		if len(readPnpmWorkspacePatterns(current)) > 0 {
			workspaceRoot = current
		}
		parent := NormalizePathForInternal(filepath.Dir(DenormalizePathForOS(current)))
		if parent == current {
			break
		}
		current = parent
	}
	if workspaceRoot != "" {
		return workspaceRoot
	}
	return closestPkg
}

// BuildPackageIndex enumerates the workspace rooted at root: the root
// manifest, every workspace member its patterns admit, and any stray
// nested package.json files the walk encounters.
func BuildPackageIndex(ctx context.Context, root string, excludeFilePatterns []GlobMatcher, probe *FsProbeCache) *PackageIndex {
	if probe == nil {
		probe = NewFsProbeCache()
	}
	idx := &PackageIndex{
		Root:   NormalizePathForInternal(filepath.Clean(root)),
		byDir:  map[string]*PackageManifest{},
		byName: map[string]*PackageManifest{},
		probe:  probe,
	}

	rootManifest, err := readPackageManifest(idx.Root + "/package.json")
	if err != nil {
		rootManifest = &PackageManifest{DirPath: idx.Root}
	}
	rootManifest.IsWorkspaceRoot = true
	idx.add(rootManifest)

	patterns := rootManifest.Workspaces
	if pnpmPatterns := readPnpmWorkspacePatterns(idx.Root); len(pnpmPatterns) > 0 {
		patterns = append(patterns, pnpmPatterns...)
	}

	memberDirs := map[string]bool{}
	collectWorkspaceMembers(idx.Root, patterns, excludeFilePatterns, memberDirs)
	if len(memberDirs) == 0 && detectLockfileManager(probe, idx.Root) == "pnpm" {
		for _, dir := range pnpmWorkspaceDirs(ctx, idx.Root) {
			memberDirs[dir] = true
		}
	}

	for dir := range memberDirs {
		if ctx.Err() != nil {
			break
		}
		m, err := readPackageManifest(dir + "/package.json")
		if err != nil || m.Name == "" {
			continue
		}
		idx.add(m)
	}

	idx.assignManagersAndRoots()
	idx.sortByDepth()
	return idx
}

func (idx *PackageIndex) add(m *PackageManifest) {
	if _, dup := idx.byDir[m.DirPath]; dup {
		return
	}
	idx.manifests = append(idx.manifests, m)
	idx.byDir[m.DirPath] = m
	if m.Name != "" {
		idx.byName[m.Name] = m
	}
}

// assignManagersAndRoots settles each manifest's package manager in
// priority order (own lockfile, workspace root's manager, packageManager
// field, npm) and lists its node_modules search roots nearest first.
func (idx *PackageIndex) assignManagersAndRoots() {
	rootManager := detectLockfileManager(idx.probe, idx.Root)
	if root, ok := idx.byDir[idx.Root]; ok {
		if rootManager == "" {
			rootManager = root.PackageManager
		}
		if rootManager == "" {
			rootManager = "npm"
		}
		root.PackageManager = rootManager
	}

	for _, m := range idx.manifests {
		if manager := detectLockfileManager(idx.probe, m.DirPath); manager != "" {
			m.PackageManager = manager
		} else if !m.IsWorkspaceRoot && rootManager != "" {
			m.PackageManager = rootManager
		} else if m.PackageManager == "" {
			m.PackageManager = "npm"
		}

		dir := m.DirPath
		for {
			if idx.probe.IsDirectory(dir + "/node_modules") {
				m.NodeModuleRoots = append(m.NodeModuleRoots, dir+"/node_modules")
			}
			if dir == idx.Root || !IsPathAncestor(idx.Root, dir) {
				break
			}
			dir = NormalizePathForInternal(filepath.Dir(DenormalizePathForOS(dir)))
		}
	}
}

func (idx *PackageIndex) sortByDepth() {
	slices.SortFunc(idx.manifests, func(a, b *PackageManifest) int {
		if d := PathDepth(b.DirPath) - PathDepth(a.DirPath); d != 0 {
			return d
		}
		return strings.Compare(a.DirPath, b.DirPath)
	})
}

// ClosestManifest returns the deepest manifest whose directory contains
// documentPath, or nil when the document is outside the workspace.
func (idx *PackageIndex) ClosestManifest(documentPath string) *PackageManifest {
	documentPath = NormalizePathForInternal(documentPath)
	idx.mu.Lock()
	defer idx.mu.Unlock()
	for _, m := range idx.manifests {
		if IsPathAncestor(m.DirPath, documentPath) {
			return m
		}
	}
	return nil
}

func (idx *PackageIndex) ManifestByName(name string) *PackageManifest {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	return idx.byName[name]
}

func (idx *PackageIndex) Manifests() []*PackageManifest {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	return slices.Clone(idx.manifests)
}

// RefreshManifest re-reads one package.json. Known directories are updated
// in place, keeping the index order intact; an unknown directory joins the
// index when the workspace patterns admit it. Reports whether dirPath is
// indexed afterwards.
func (idx *PackageIndex) RefreshManifest(dirPath string) bool {
	dirPath = NormalizePathForInternal(dirPath)
	m, err := readPackageManifest(dirPath + "/package.json")
	if err != nil {
		return false
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()
	if old, ok := idx.byDir[dirPath]; ok {
		if old.Name != "" && old.Name != m.Name {
			delete(idx.byName, old.Name)
		}
		m.IsWorkspaceRoot = old.IsWorkspaceRoot
		m.PackageManager = old.PackageManager
		m.NodeModuleRoots = old.NodeModuleRoots
		*old = *m
		if old.Name != "" {
			idx.byName[old.Name] = old
		}
		return true
	}

	if m.Name == "" || !idx.admitsLocked(dirPath) {
		return false
	}
	idx.settleNewMemberLocked(m)
	idx.add(m)
	idx.sortByDepth()
	return true
}

// RemoveManifest drops dirPath's entry. The root keeps a placeholder so
// ClosestManifest still anchors documents to the workspace.
func (idx *PackageIndex) RemoveManifest(dirPath string) {
	dirPath = NormalizePathForInternal(dirPath)
	idx.mu.Lock()
	defer idx.mu.Unlock()
	m, ok := idx.byDir[dirPath]
	if !ok {
		return
	}
	if m.Name != "" {
		delete(idx.byName, m.Name)
	}
	if dirPath == idx.Root {
		*m = PackageManifest{DirPath: idx.Root, IsWorkspaceRoot: true, PackageManager: m.PackageManager}
		return
	}
	delete(idx.byDir, dirPath)
	for i, entry := range idx.manifests {
		if entry == m {
			idx.manifests = append(idx.manifests[:i], idx.manifests[i+1:]...)
			break
		}
	}
}

// admitsLocked re-evaluates workspace membership for a directory that was
// not present during the initial build.
func (idx *PackageIndex) admitsLocked(dirPath string) bool {
	if dirPath == idx.Root {
		return true
	}
	root, ok := idx.byDir[idx.Root]
	if !ok {
		return false
	}
	patterns := slices.Clone(root.Workspaces)
	patterns = append(patterns, readPnpmWorkspacePatterns(idx.Root)...)
	memberDirs := map[string]bool{}
	collectWorkspaceMembers(idx.Root, patterns, nil, memberDirs)
	return memberDirs[dirPath]
}

// settleNewMemberLocked gives a late-joining member the same manager and
// node_modules roots the initial build would have assigned.
func (idx *PackageIndex) settleNewMemberLocked(m *PackageManifest) {
	rootManager := ""
	if root, ok := idx.byDir[idx.Root]; ok {
		rootManager = root.PackageManager
	}
	if manager := detectLockfileManager(idx.probe, m.DirPath); manager != "" {
		m.PackageManager = manager
	} else if rootManager != "" {
		m.PackageManager = rootManager
	} else if m.PackageManager == "" {
		m.PackageManager = "npm"
	}

	dir := m.DirPath
	for {
		if idx.probe.IsDirectory(dir + "/node_modules") {
			m.NodeModuleRoots = append(m.NodeModuleRoots, dir+"/node_modules")
		}
		if dir == idx.Root || !IsPathAncestor(idx.Root, dir) {
			break
		}
		dir = NormalizePathForInternal(filepath.Dir(DenormalizePathForOS(dir)))
	}
}

func collectWorkspaceMembers(root string, patterns []string, excludeFilePatterns []GlobMatcher, memberDirs map[string]bool) {
	type positivePattern struct {
		basePath string
		isDeep   bool
		isDir    bool
	}
	var positive []positivePattern
	var negative []glob.Glob

	for _, pattern := range patterns {
		if strings.HasPrefix(pattern, "!") {
			cleaned := NormalizeGlobPattern(strings.TrimPrefix(pattern, "!"))
			if g, err := glob.Compile(cleaned, '/'); err == nil {
				negative = append(negative, g)
			}
			continue
		}
		switch {
		case pattern == "*":
			positive = append(positive, positivePattern{basePath: "", isDir: true})
		case strings.HasSuffix(pattern, "/**"):
			positive = append(positive, positivePattern{basePath: strings.TrimSuffix(pattern, "/**"), isDeep: true})
		case strings.HasSuffix(pattern, "/*"):
			positive = append(positive, positivePattern{basePath: strings.TrimSuffix(pattern, "/*"), isDir: true})
		default:
			positive = append(positive, positivePattern{basePath: pattern})
		}
	}

	candidates := map[string]bool{}
	for _, pos := range positive {
		base := filepath.Join(DenormalizePathForOS(root), DenormalizePathForOS(pos.basePath))
		switch {
		case pos.isDeep:
			walkForManifests(base, excludeFilePatterns, candidates)
		case pos.isDir:
			entries, err := os.ReadDir(base)
			if err != nil {
				continue
			}
			for _, entry := range entries {
				if !entry.IsDir() {
					continue
				}
				dirPath := filepath.Join(base, entry.Name())
				if _, err := os.Stat(filepath.Join(dirPath, "package.json")); err == nil {
					candidates[NormalizePathForInternal(dirPath)] = true
				}
			}
		default:
			if _, err := os.Stat(filepath.Join(base, "package.json")); err == nil {
				candidates[NormalizePathForInternal(base)] = true
			}
		}
	}

	for dirPath := range candidates {
		rel, err := filepath.Rel(DenormalizePathForOS(root), DenormalizePathForOS(dirPath))
		if err != nil {
			continue
		}
		rel = NormalizePathForInternal(rel)
		if rel == "." || rel == "" {
			continue
		}
		excluded := false
		for _, g := range negative {
			if g.Match(rel) {
				excluded = true
				break
			}
		}
		if !excluded {
			memberDirs[dirPath] = true
		}
	}
}

// walkForManifests recurses below basePath and records each directory that
// holds a package.json, without descending into it further.
func walkForManifests(basePath string, excludeFilePatterns []GlobMatcher, candidates map[string]bool) {
	entries, err := os.ReadDir(basePath)
	if err != nil {
		return
	}

	for _, entry := range entries {
		if !entry.IsDir() && entry.Name() == "package.json" {
			candidates[NormalizePathForInternal(basePath)] = true
			return
		}
	}

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		name := entry.Name()
		if name == ".git" || name == ".idea" || name == ".vscode" || name == "node_modules" {
			continue
		}
		dirPath := filepath.Join(basePath, name)
		if MatchesAnyGlobMatcher(NormalizePathForInternal(dirPath), excludeFilePatterns) {
			continue
		}
		walkForManifests(dirPath, excludeFilePatterns, candidates)
	}
}

const pnpmListTimeout = 15 * time.Second

// pnpmWorkspaceDirs asks pnpm itself for the member directories. Used as a
// fallback when pnpm-workspace.yaml patterns are absent or opaque.
func pnpmWorkspaceDirs(ctx context.Context, root string) []string {
	ctx, cancel := context.WithTimeout(ctx, pnpmListTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "pnpm", "list", "--recursive", "--depth", "-1", "--parseable")
	cmd.Dir = DenormalizePathForOS(root)
	out, err := cmd.Output()
	if err != nil {
		return nil
	}

	var dirs []string
	for _, line := range strings.Split(string(out), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		dir := NormalizePathForInternal(line)
		if dir == NormalizePathForInternal(root) {
			continue
		}
		dirs = append(dirs, dir)
	}
	return dirs
}
