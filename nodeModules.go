package main

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/tidwall/jsonc"
)

// GetNodeModuleName extracts the package name from an import request:
// "lodash/fp" -> "lodash", "@scope/pkg/sub" -> "@scope/pkg".
func GetNodeModuleName(request string) string {
	splitCount := 2
	if strings.HasPrefix(request, "@") {
		splitCount = 3
	}
	parts := strings.SplitN(request, "/", splitCount)
	if len(parts) < splitCount {
		return request
	}
	return strings.Join(parts[:splitCount-1], "/")
}

func isValidNodeModuleName(name string) bool {
	return name != "" && !strings.HasPrefix(name, ".") && !strings.HasPrefix(name, "/")
}

// typesPackageDir returns the DefinitelyTyped directory name for a package.
// Scoped names are mangled: "@scope/name" -> "scope__name".
func typesPackageDir(moduleName string) string {
	if strings.HasPrefix(moduleName, "@") {
		if scope, name, ok := strings.Cut(moduleName[1:], "/"); ok {
			return scope + "__" + name
		}
	}
	return moduleName
}

// FindModuleTypesEntry locates the type declaration entry file for a module
// under the given node_modules roots: the module's own types/typings field,
// its index.d.ts, then the mangled @types package. Returns ("", false) when
// the module ships no declarations.
func FindModuleTypesEntry(probe *FsProbeCache, nodeModuleRoots []string, moduleName string) (string, bool) {
	if !isValidNodeModuleName(moduleName) {
		return "", false
	}
	for _, root := range nodeModuleRoots {
		moduleDir := root + "/" + moduleName
		if entry, ok := typesEntryFromManifest(probe, moduleDir); ok {
			return entry, true
		}
		if probe.IsFile(moduleDir + "/index.d.ts") {
			return moduleDir + "/index.d.ts", true
		}
		typesDir := root + "/@types/" + typesPackageDir(moduleName)
		if entry, ok := typesEntryFromManifest(probe, typesDir); ok {
			return entry, true
		}
		if probe.IsFile(typesDir + "/index.d.ts") {
			return typesDir + "/index.d.ts", true
		}
	}
	return "", false
}

func typesEntryFromManifest(probe *FsProbeCache, moduleDir string) (string, bool) {
	manifestPath := moduleDir + "/package.json"
	if !probe.IsFile(manifestPath) {
		return "", false
	}
	content, err := os.ReadFile(DenormalizePathForOS(manifestPath))
	if err != nil {
		return "", false
	}
	var raw struct {
		Types   string `json:"types"`
		Typings string `json:"typings"`
	}
	if err := json.Unmarshal(jsonc.ToJSON(content), &raw); err != nil {
		return "", false
	}
	entry := raw.Types
	if entry == "" {
		entry = raw.Typings
	}
	if entry == "" {
		return "", false
	}
	entry = NormalizePathForInternal(filepath.Clean(filepath.Join(DenormalizePathForOS(moduleDir), entry)))
	if probe.IsFile(entry) {
		return entry, true
	}
	if probe.IsFile(entry + ".d.ts") {
		return entry + ".d.ts", true
	}
	return "", false
}

// NodeModuleExports lists the named exports a module's type declarations
// advertise, for offering individual identifiers from a package. Relative
// re-export chains inside the declaration package are followed through the
// export graph.
func NodeModuleExports(ctx context.Context, graph *ExportGraph, probe *FsProbeCache, nodeModuleRoots []string, moduleName string) map[string]ExportRecord {
	entry, ok := FindModuleTypesEntry(probe, nodeModuleRoots, moduleName)
	if !ok {
		return nil
	}
	return graph.ExportsOf(ctx, entry)
}

// Globals declared by @types/node that are not importable modules.
var ambientHelperGlobals = map[string]bool{
	"NodeJS":       true,
	"setTimeout":   true,
	"setImmediate": true,
}

// ambientModuleCache memoizes the @types/node ambient scan per directory.
// The catalog owns one and drops it whenever manifests change, so an
// installed or upgraded @types/node is picked up without a restart.
type ambientModuleCache struct {
	mu    sync.Mutex
	byDir map[string][]string
}

func newAmbientModuleCache() *ambientModuleCache {
	return &ambientModuleCache{byDir: map[string][]string{}}
}

func (c *ambientModuleCache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.byDir = map[string][]string{}
}

// Modules scans @types/node under the given node_modules roots for
// `declare module "name"` ambient declarations and returns the module
// names, sorted and de-duplicated. Returns nil when @types/node is not
// installed.
func (c *ambientModuleCache) Modules(nodeModuleRoots []string) []string {
	for _, root := range nodeModuleRoots {
		typesDir := root + "/@types/node"
		if _, err := os.Stat(DenormalizePathForOS(typesDir)); err != nil {
			continue
		}

		c.mu.Lock()
		if cached, ok := c.byDir[typesDir]; ok {
			c.mu.Unlock()
			return cached
		}
		c.mu.Unlock()

		names := scanAmbientModuleDecls(typesDir)

		c.mu.Lock()
		c.byDir[typesDir] = names
		c.mu.Unlock()
		return names
	}
	return nil
}

func scanAmbientModuleDecls(typesDir string) []string {
	seen := map[string]bool{}
	entries, err := os.ReadDir(DenormalizePathForOS(typesDir))
	if err != nil {
		return nil
	}
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".d.ts") {
			continue
		}
		content, err := os.ReadFile(filepath.Join(DenormalizePathForOS(typesDir), entry.Name()))
		if err != nil {
			continue
		}
		for _, name := range ambientModuleNames(content) {
			if !ambientHelperGlobals[name] {
				seen[name] = true
			}
		}
	}

	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	return SortedNamesCaseInsensitive(names)
}

// ambientModuleNames extracts the quoted names of `declare module "x"`
// statements. Unquoted forms declare namespaces, not importable modules.
func ambientModuleNames(content []byte) []string {
	var names []string
	const marker = "declare module"
	for i := 0; i+len(marker) < len(content); i++ {
		if content[i] != 'd' || !hasWordAt(content, i, marker) {
			continue
		}
		if i > 0 && isByteIdentifierChar(content[i-1]) {
			continue
		}
		j := skipSpaces(content, i+len(marker))
		if j >= len(content) || (content[j] != '"' && content[j] != '\'') {
			continue
		}
		name, next, _, _ := parseStringLiteral(content, j)
		if name != "" {
			names = append(names, name)
		}
		i = next - 1
	}
	return names
}
