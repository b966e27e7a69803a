package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/gobwas/glob"
	"github.com/tidwall/jsonc"
)

// TsConfig is the subset of a tsconfig/jsconfig the import engine cares
// about, with "extends" chains already merged in. BaseUrl and path mapping
// targets are absolutized against the config's directory.
type TsConfig struct {
	Path            string
	Dir             string
	BaseUrl         string
	Paths           map[string][]string
	Types           []string
	AllowJs         bool
	EsModuleInterop bool

	include []glob.Glob
	exclude []glob.Glob
}

// LoadTsConfig reads a tsconfig (JSON or JSONC), resolves its "extends"
// chain and returns the merged, typed view. Merging rules:
//   - child overrides base for scalar compilerOptions
//   - paths merge by key, child keys override base keys
//   - types arrays combine with child entries first, de-duplicated
func LoadTsConfig(tsconfigPath string) (*TsConfig, error) {
	content, err := os.ReadFile(DenormalizePathForOS(tsconfigPath))
	if err != nil {
		return nil, err
	}

	var raw map[string]interface{}
	if err := json.Unmarshal(jsonc.ToJSON(content), &raw); err != nil {
		return nil, fmt.Errorf("failed to unmarshal %s: %w", tsconfigPath, err)
	}

	dir := filepath.Dir(DenormalizePathForOS(tsconfigPath))
	merged, err := resolveExtends(raw, dir, map[string]bool{})
	if err != nil {
		return nil, err
	}

	cfg := &TsConfig{
		Path:  NormalizePathForInternal(tsconfigPath),
		Dir:   NormalizePathForInternal(dir),
		Paths: map[string][]string{},
	}
	cfg.fillFromMerged(merged, dir)
	return cfg, nil
}

func (c *TsConfig) fillFromMerged(merged map[string]interface{}, dir string) {
	co, _ := merged["compilerOptions"].(map[string]interface{})

	if baseUrl, ok := co["baseUrl"].(string); ok && baseUrl != "" {
		if !filepath.IsAbs(baseUrl) {
			baseUrl = filepath.Join(dir, baseUrl)
		}
		c.BaseUrl = NormalizePathForInternal(filepath.Clean(baseUrl))
	}

	pathsBase := c.BaseUrl
	if pathsBase == "" {
		pathsBase = c.Dir
	}
	if paths, ok := co["paths"].(map[string]interface{}); ok {
		for alias, targetsRaw := range paths {
			targets, ok := targetsRaw.([]interface{})
			if !ok {
				continue
			}
			for _, t := range targets {
				target, ok := t.(string)
				if !ok {
					continue
				}
				if !filepath.IsAbs(target) {
					target = filepath.Join(DenormalizePathForOS(pathsBase), target)
				}
				c.Paths[alias] = append(c.Paths[alias], NormalizePathForInternal(filepath.Clean(target)))
			}
		}
	}

	if types, ok := co["types"].([]interface{}); ok {
		for _, t := range types {
			if s, ok := t.(string); ok {
				c.Types = append(c.Types, s)
			}
		}
	}

	c.AllowJs, _ = co["allowJs"].(bool)
	c.EsModuleInterop, _ = co["esModuleInterop"].(bool)

	c.include = compileTsConfigGlobs(merged["include"], c.Dir)
	c.exclude = compileTsConfigGlobs(merged["exclude"], c.Dir)
}

func compileTsConfigGlobs(raw interface{}, dir string) []glob.Glob {
	entries, ok := raw.([]interface{})
	if !ok {
		return nil
	}
	matchers := make([]glob.Glob, 0, len(entries))
	for _, e := range entries {
		pattern, ok := e.(string)
		if !ok {
			continue
		}
		pattern = NormalizeGlobPattern(strings.TrimPrefix(pattern, "./"))
		// A bare directory entry means everything under it.
		if !strings.ContainsAny(pattern, "*?") && filepath.Ext(pattern) == "" {
			pattern = pattern + "/**"
		}
		g, err := glob.Compile(dir+"/"+pattern, '/')
		if err != nil {
			continue
		}
		matchers = append(matchers, g)
	}
	return matchers
}

// Covers reports whether the config's include/exclude lists admit path.
// An absent include list admits everything.
func (c *TsConfig) Covers(path string) bool {
	path = NormalizePathForInternal(path)
	for _, g := range c.exclude {
		if g.Match(path) {
			return false
		}
	}
	if len(c.include) == 0 {
		return true
	}
	for _, g := range c.include {
		if g.Match(path) {
			return true
		}
	}
	return false
}

// ResolveAlias resolves an import request through the config's path mapping
// and baseUrl, returning the file it lands on. Pattern keys may carry one
// `*` wildcard, matched greedily against the request.
func (c *TsConfig) ResolveAlias(probe *FsProbeCache, cache ResolveCache, request string, preferredExt string) (string, bool) {
	for alias, targets := range c.Paths {
		captured, ok := matchAliasPattern(alias, request)
		if !ok {
			continue
		}
		for _, target := range targets {
			candidate := strings.Replace(target, "*", captured, 1)
			if resolved, found := ResolveFilePath(probe, cache, preferredExt, candidate); found {
				return resolved, true
			}
		}
	}
	if c.BaseUrl != "" && !IsRelativeSpecifier(request) {
		if resolved, found := ResolveFilePath(probe, cache, preferredExt, c.BaseUrl, request); found {
			return resolved, true
		}
	}
	return "", false
}

// AliasForPath maps an absolute file path back to an alias specifier, for
// writing imports in the project's aliased form. The shortest matching
// specifier wins; the index suffix and extension stay on for the caller's
// style pass to trim.
func (c *TsConfig) AliasForPath(filePath string) (string, bool) {
	filePath = NormalizePathForInternal(filePath)
	best := ""
	for alias, targets := range c.Paths {
		for _, target := range targets {
			specifier, ok := reverseAliasPattern(alias, target, filePath)
			if !ok {
				continue
			}
			if best == "" || len(specifier) < len(best) {
				best = specifier
			}
		}
	}
	if best != "" {
		return best, true
	}
	if c.BaseUrl != "" && IsPathAncestor(c.BaseUrl, filePath) {
		return strings.TrimPrefix(filePath, c.BaseUrl+"/"), true
	}
	return "", false
}

func matchAliasPattern(alias, request string) (string, bool) {
	star := strings.IndexByte(alias, '*')
	if star < 0 {
		return "", alias == request
	}
	prefix, suffix := alias[:star], alias[star+1:]
	if len(request) < len(prefix)+len(suffix) {
		return "", false
	}
	if !strings.HasPrefix(request, prefix) || !strings.HasSuffix(request, suffix) {
		return "", false
	}
	return request[len(prefix) : len(request)-len(suffix)], true
}

func reverseAliasPattern(alias, target, filePath string) (string, bool) {
	star := strings.IndexByte(target, '*')
	if star < 0 {
		if target == filePath || strings.HasPrefix(filePath, target+".") {
			return strings.ReplaceAll(alias, "*", ""), true
		}
		return "", false
	}
	prefix, suffix := target[:star], target[star+1:]
	if !strings.HasPrefix(filePath, prefix) || !strings.HasSuffix(filePath, suffix) {
		return "", false
	}
	captured := filePath[len(prefix) : len(filePath)-len(suffix)]
	return strings.Replace(alias, "*", captured, 1), true
}

// TsConfigCache memoizes loaded configs and the upward search that assigns
// each document the nearest tsconfig.json or jsconfig.json.
type TsConfigCache struct {
	mu       sync.Mutex
	byPath   map[string]*TsConfig
	byDocDir map[string]*TsConfig
	probe    *FsProbeCache
}

func NewTsConfigCache(probe *FsProbeCache) *TsConfigCache {
	if probe == nil {
		probe = NewFsProbeCache()
	}
	return &TsConfigCache{
		byPath:   map[string]*TsConfig{},
		byDocDir: map[string]*TsConfig{},
		probe:    probe,
	}
}

var tsconfigFileNames = []string{"tsconfig.json", "jsconfig.json"}

// ForDocument walks up from documentPath's directory and returns the
// nearest config, or nil when none exists up to the filesystem root.
func (tc *TsConfigCache) ForDocument(documentPath string) *TsConfig {
	dir := NewFileInfo(documentPath).DirectoryPath

	tc.mu.Lock()
	if cfg, ok := tc.byDocDir[dir]; ok {
		tc.mu.Unlock()
		return cfg
	}
	tc.mu.Unlock()

	cfg := tc.findUpwards(dir)

	tc.mu.Lock()
	tc.byDocDir[dir] = cfg
	tc.mu.Unlock()
	return cfg
}

func (tc *TsConfigCache) findUpwards(dir string) *TsConfig {
	for {
		for _, name := range tsconfigFileNames {
			candidate := dir + "/" + name
			if tc.probe.IsFile(candidate) {
				if cfg := tc.load(candidate); cfg != nil {
					return cfg
				}
			}
		}
		parent := NormalizePathForInternal(filepath.Dir(DenormalizePathForOS(dir)))
		if parent == dir {
			return nil
		}
		dir = parent
	}
}

func (tc *TsConfigCache) load(tsconfigPath string) *TsConfig {
	tc.mu.Lock()
	if cfg, ok := tc.byPath[tsconfigPath]; ok {
		tc.mu.Unlock()
		return cfg
	}
	tc.mu.Unlock()

	cfg, err := LoadTsConfig(tsconfigPath)
	if err != nil {
		cfg = nil
	}

	tc.mu.Lock()
	tc.byPath[tsconfigPath] = cfg
	tc.mu.Unlock()
	return cfg
}

// Invalidate drops everything; config edits are rare enough that a full
// reload is the simplest correct reaction.
func (tc *TsConfigCache) Invalidate() {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	tc.byPath = map[string]*TsConfig{}
	tc.byDocDir = map[string]*TsConfig{}
}

func resolveExtends(cfg map[string]interface{}, baseDir string, seen map[string]bool) (map[string]interface{}, error) {
	result := map[string]interface{}{}
	for k, v := range cfg {
		result[k] = v
	}

	extStr, _ := result["extends"].(string)
	if strings.TrimSpace(extStr) == "" {
		ensureCompilerOptions(result)
		return result, nil
	}

	baseCfg, foundPath := readExtendedConfig(extStr, baseDir)
	if baseCfg == nil {
		ensureCompilerOptions(result)
		return result, nil
	}

	absFound, _ := filepath.Abs(foundPath)
	if seen[absFound] {
		ensureCompilerOptions(result)
		return result, nil
	}
	seen[absFound] = true

	baseDirNext := filepath.Dir(foundPath)
	resolvedBase, err := resolveExtends(baseCfg, baseDirNext, seen)
	if err != nil {
		return nil, err
	}

	// Extended configs carry paths relative to their own location; rebase
	// them so they stay correct from the child's directory.
	rebaseExtendedPaths(resolvedBase, baseDirNext, baseDir)

	merged := map[string]interface{}{}
	for k, v := range resolvedBase {
		merged[k] = v
	}
	for k, v := range result {
		if k != "compilerOptions" {
			merged[k] = v
			continue
		}
		baseCO, _ := merged["compilerOptions"].(map[string]interface{})
		childCO, _ := v.(map[string]interface{})
		merged["compilerOptions"] = mergeCompilerOptions(baseCO, childCO)
	}

	delete(merged, "extends")
	ensureCompilerOptions(merged)
	return merged, nil
}

// readExtendedConfig locates the target of an "extends" entry: a file path
// relative to baseDir, or a package-style name under node_modules.
func readExtendedConfig(extStr, baseDir string) (map[string]interface{}, string) {
	var candidates []string
	if filepath.IsAbs(extStr) || strings.HasPrefix(extStr, ".") || strings.Contains(extStr, string(filepath.Separator)) {
		p := extStr
		if !filepath.IsAbs(p) {
			p = filepath.Join(baseDir, p)
		}
		candidates = []string{p, p + ".json"}
	} else {
		candidates = []string{
			filepath.Join(baseDir, "node_modules", extStr),
			filepath.Join(baseDir, "node_modules", extStr, "tsconfig.json"),
			filepath.Join(baseDir, "node_modules", extStr+".json"),
		}
	}

	for _, cand := range candidates {
		fi, err := os.Stat(cand)
		if err != nil || fi.IsDir() {
			continue
		}
		bb, err := os.ReadFile(cand)
		if err != nil {
			continue
		}
		var parsed map[string]interface{}
		if err := json.Unmarshal(jsonc.ToJSON(bb), &parsed); err != nil {
			continue
		}
		return parsed, cand
	}
	return nil, ""
}

func ensureCompilerOptions(cfg map[string]interface{}) {
	if _, ok := cfg["compilerOptions"]; !ok {
		cfg["compilerOptions"] = map[string]interface{}{}
	}
}

func mergeCompilerOptions(base, child map[string]interface{}) map[string]interface{} {
	out := map[string]interface{}{}
	for k, v := range base {
		out[k] = v
	}
	if basePaths, ok := base["paths"].(map[string]interface{}); ok {
		newPaths := map[string]interface{}{}
		for k, v := range basePaths {
			newPaths[k] = v
		}
		out["paths"] = newPaths
	}

	for k, v := range child {
		switch k {
		case "paths":
			childPaths, ok := v.(map[string]interface{})
			if !ok {
				out["paths"] = v
				continue
			}
			mergedPaths := map[string]interface{}{}
			if bp, ok := out["paths"].(map[string]interface{}); ok {
				for kk, vv := range bp {
					mergedPaths[kk] = vv
				}
			}
			for kk, vv := range childPaths {
				mergedPaths[kk] = vv
			}
			out["paths"] = mergedPaths
		case "types":
			combined := []interface{}{}
			seen := map[string]bool{}
			appendTypes := func(arr interface{}) {
				entries, ok := arr.([]interface{})
				if !ok {
					return
				}
				for _, e := range entries {
					if s, ok := e.(string); ok && !seen[s] {
						combined = append(combined, s)
						seen[s] = true
					}
				}
			}
			appendTypes(v)
			appendTypes(base["types"])
			out["types"] = combined
		default:
			out[k] = v
		}
	}
	return out
}

func rebaseExtendedPaths(cfg map[string]interface{}, fromDir, toDir string) {
	co, ok := cfg["compilerOptions"].(map[string]interface{})
	if !ok {
		return
	}
	pathsRaw, ok := co["paths"].(map[string]interface{})
	if !ok {
		return
	}

	newPaths := map[string]interface{}{}
	for key, val := range pathsRaw {
		arr, ok := val.([]interface{})
		if !ok {
			newPaths[key] = val
			continue
		}
		newArr := make([]interface{}, 0, len(arr))
		for _, e := range arr {
			str, ok := e.(string)
			if !ok {
				newArr = append(newArr, e)
				continue
			}
			if filepath.IsAbs(str) {
				newArr = append(newArr, filepath.ToSlash(str))
				continue
			}
			abs := filepath.Clean(filepath.Join(fromDir, str))
			rel, err := filepath.Rel(toDir, abs)
			if err != nil {
				newArr = append(newArr, filepath.ToSlash(abs))
			} else {
				newArr = append(newArr, filepath.ToSlash(rel))
			}
		}
		newPaths[key] = newArr
	}

	co["paths"] = newPaths
	cfg["compilerOptions"] = co
}
