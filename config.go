package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gobwas/glob"
	"github.com/tidwall/jsonc"
)

// PathRewriteRule rewrites the import path computed for matching files.
// FilePattern is a glob over the item's file path; Find/Replace apply to the
// generated specifier.
type PathRewriteRule struct {
	FilePattern string `json:"filePattern"`
	Find        string `json:"find"`
	Replace     string `json:"replace"`

	compiled glob.Glob
}

type AutoImportConfig struct {
	Path              string            `json:"path,omitempty"`
	Include           []string          `json:"include"`
	Exclude           []string          `json:"exclude"`
	PathRewrites      []PathRewriteRule `json:"pathRewrites"`
	QuoteStyle        string            `json:"quoteStyle,omitempty"` // single | double | auto
	Semicolons        string            `json:"semicolons,omitempty"` // always | never | auto
	RecentlyUsedLimit int               `json:"recentlyUsedLimit,omitempty"`
}

var configFileName = "auto-import.config.json"

// LoadConfig reads auto-import configuration from configPath, which may be
// the config file itself or a directory containing one. The file accepts a
// single object or an array of objects scoped by their "path" field. A
// missing file yields one default config, not an error.
func LoadConfig(configPath string) ([]AutoImportConfig, error) {
	fileInfo, err := os.Stat(configPath)
	if err != nil {
		return []AutoImportConfig{{Path: "."}}, nil
	}

	actualPath := configPath
	if fileInfo.IsDir() {
		actualPath = filepath.Join(configPath, configFileName)
		if _, err := os.Stat(actualPath); err != nil {
			return []AutoImportConfig{{Path: "."}}, nil
		}
	}

	content, err := os.ReadFile(actualPath)
	if err != nil {
		return nil, err
	}

	var configs []AutoImportConfig
	if err := json.Unmarshal(jsonc.ToJSON(content), &configs); err != nil {
		var single AutoImportConfig
		if err2 := json.Unmarshal(jsonc.ToJSON(content), &single); err2 == nil {
			configs = []AutoImportConfig{single}
		} else {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	for i := range configs {
		cfg := &configs[i]
		if cfg.Path == "" {
			cfg.Path = "."
		}
		for _, p := range append(append([]string{}, cfg.Include...), cfg.Exclude...) {
			if err := validatePattern(p); err != nil {
				return nil, fmt.Errorf("config[%d]: %w", i, err)
			}
		}
		for j := range cfg.PathRewrites {
			rule := &cfg.PathRewrites[j]
			if err := validatePattern(rule.FilePattern); err != nil {
				return nil, fmt.Errorf("config[%d].pathRewrites[%d]: %w", i, j, err)
			}
			g, err := glob.Compile(NormalizeGlobPattern(rule.FilePattern), '/')
			if err != nil {
				return nil, fmt.Errorf("config[%d].pathRewrites[%d]: invalid pattern %q: %w", i, j, rule.FilePattern, err)
			}
			rule.compiled = g
		}
	}

	return configs, nil
}

func validatePattern(pattern string) error {
	if len(pattern) >= 2 && pattern[0] == '.' && (pattern[1] == '/' || pattern[1] == '\\') {
		return fmt.Errorf("pattern '%s' starts with './' or '.\\', which is not allowed. Use paths that starts with file or directory name", pattern)
	}
	if len(pattern) >= 3 && pattern[0] == '.' && pattern[1] == '.' && (pattern[2] == '/' || pattern[2] == '\\') {
		return fmt.Errorf("pattern '%s' starts with '../' or '..\\', which is not allowed. Use paths that starts with file or directory name", pattern)
	}
	return nil
}

// ConfigForPath returns the config entry whose "path" scope is the closest
// ancestor of filePath, falling back to the first entry.
func ConfigForPath(configs []AutoImportConfig, cwd string, filePath string) *AutoImportConfig {
	filePath = NormalizePathForInternal(filePath)
	var best *AutoImportConfig
	bestDepth := -1
	for i := range configs {
		scope := NormalizePathForInternal(filepath.Clean(filepath.Join(cwd, configs[i].Path)))
		if !IsPathAncestor(scope, filePath) {
			continue
		}
		if d := PathDepth(scope); d > bestDepth {
			best = &configs[i]
			bestDepth = d
		}
	}
	if best == nil && len(configs) > 0 {
		best = &configs[0]
	}
	return best
}

// RewriteImportPath applies the first matching rewrite rule to a generated
// specifier. filePath identifies the item's source file; specifier is what
// would be inserted.
func (c *AutoImportConfig) RewriteImportPath(filePath string, specifier string) string {
	if c == nil {
		return specifier
	}
	filePath = NormalizePathForInternal(filePath)
	for _, rule := range c.PathRewrites {
		if rule.compiled == nil || !rule.compiled.Match(filePath) {
			continue
		}
		if rule.Find == "" {
			continue
		}
		return strings.ReplaceAll(specifier, rule.Find, rule.Replace)
	}
	return specifier
}

// ExtraMatchers compiles the config's include/exclude patterns, rooted at
// the config's scope directory, into the matcher pipeline used by file
// enumeration.
func (c *AutoImportConfig) ExtraMatchers(cwd string) (include []GlobMatcher, exclude []GlobMatcher) {
	if c == nil {
		return nil, nil
	}
	scope := filepath.Join(cwd, c.Path)
	include = CreateGlobMatchers(c.Include, scope)
	exclude = CreateGlobMatchers(c.Exclude, scope)
	return include, exclude
}

// ApplyQuotePreference overrides profile counters when the config pins a
// quote or semicolon style.
func (c *AutoImportConfig) ApplyQuotePreference(p *ImportStyleProfile) {
	if c == nil || p == nil {
		return
	}
	switch c.QuoteStyle {
	case "single":
		p.SingleQuoteCount = p.DoubleQuoteCount + 1
	case "double":
		p.DoubleQuoteCount = p.SingleQuoteCount + 1
	}
	switch c.Semicolons {
	case "always":
		p.SemiCount = p.NoSemiCount + 1
	case "never":
		p.NoSemiCount = p.SemiCount + 1
	}
}
