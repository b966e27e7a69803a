package main

import (
	"strings"
)

// Script extensions that are conventionally omitted from import specifiers
// when the project shows no evidence either way.
var defaultElidedExtensions = map[string]bool{
	"js": true, "jsx": true, "ts": true, "tsx": true, "mjs": true, "cjs": true,
}

// ImportStyleProfile accumulates convention evidence from existing
// import/require statements: syntax flavor, quote character, semicolons,
// index-file visibility and per-extension elision. Counters from the
// document itself always dominate; wider evidence is only borrowed for a
// counter pair that is exactly tied.
type ImportStyleProfile struct {
	ImportCount  int
	RequireCount int

	SingleQuoteCount int
	DoubleQuoteCount int

	SemiCount   int
	NoSemiCount int

	IndexVisibleCount int
	IndexHiddenCount  int

	ExtensionKept   map[string]int
	ExtensionElided map[string]int
}

func NewImportStyleProfile() *ImportStyleProfile {
	return &ImportStyleProfile{
		ExtensionKept:   map[string]int{},
		ExtensionElided: map[string]int{},
	}
}

func (p *ImportStyleProfile) countStatement(s ModuleStatement) {
	switch s.Kind {
	case StmtImport, StmtSideEffectImport:
		p.ImportCount++
	case StmtRequire:
		p.RequireCount++
	}
	switch s.Quote {
	case '\'':
		p.SingleQuoteCount++
	case '"':
		p.DoubleQuoteCount++
	}
	if s.Semicolon {
		p.SemiCount++
	} else {
		p.NoSemiCount++
	}
}

// countResolvedPathShape compares the written specifier against the file it
// resolved to, recording whether the index segment and the extension were
// spelled out.
func (p *ImportStyleProfile) countResolvedPathShape(request string, resolvedPath string) {
	info := NewFileInfo(resolvedPath)
	if info.IsIndexFile() {
		lastSegment := request
		if idx := strings.LastIndexByte(request, '/'); idx >= 0 {
			lastSegment = request[idx+1:]
		}
		if lastSegment == info.FileNameWithExtension || strings.TrimSuffix(lastSegment, "."+info.FileExtensionWithoutLeadingDot) == info.FileNameWithoutExtension {
			p.IndexVisibleCount++
		} else {
			p.IndexHiddenCount++
		}
	}
	ext := info.FileExtensionWithoutLeadingDot
	if ext == "" {
		return
	}
	if strings.HasSuffix(request, "."+ext) {
		p.ExtensionKept[ext]++
	} else {
		p.ExtensionElided[ext]++
	}
}

// SelectiveScan accumulates evidence from the document's own imports and
// requires, resolving relative requests to learn path shape conventions.
func (p *ImportStyleProfile) SelectiveScan(tree *DocumentTree, probe *FsProbeCache, cache ResolveCache) {
	if tree == nil {
		return
	}
	for _, s := range tree.ImportsAndRequires() {
		p.countStatement(s)
		if IsRelativeSpecifier(s.Request) {
			if resolved, ok := ResolveRelativeRequest(probe, cache, tree.Path, s.Request); ok {
				p.countResolvedPathShape(s.Request, resolved)
			}
		}
	}
}

// InconclusiveScan inspects the document text at large, but only for the
// counter pairs the selective scan produced zero evidence for: string quote
// characters and statement-ending semicolons.
func (p *ImportStyleProfile) InconclusiveScan(tree *DocumentTree) {
	if tree == nil {
		return
	}
	scanQuotes := p.SingleQuoteCount == 0 && p.DoubleQuoteCount == 0
	scanSemis := p.SemiCount == 0 && p.NoSemiCount == 0
	if !scanQuotes && !scanSemis {
		return
	}

	code := tree.Text
	lastMeaningful := byte(0)
	for i := 0; i < len(code); i++ {
		c := code[i]
		switch c {
		case '/':
			if i+1 < len(code) && code[i+1] == '/' {
				i = skipLineComment(code, i) - 1
				continue
			}
			if i+1 < len(code) && code[i+1] == '*' {
				i = skipBlockComment(code, i) - 1
				continue
			}
		case '\'', '"':
			if scanQuotes {
				if c == '\'' {
					p.SingleQuoteCount++
				} else {
					p.DoubleQuoteCount++
				}
			}
			i = skipToStringEnd(code, i, c)
			lastMeaningful = c
			continue
		case '\n':
			if scanSemis && lastMeaningful != 0 {
				if lastMeaningful == ';' {
					p.SemiCount++
				} else if lastMeaningful != '{' && lastMeaningful != '}' && lastMeaningful != ',' && lastMeaningful != '(' {
					p.NoSemiCount++
				}
			}
			lastMeaningful = 0
			continue
		}
		if c != ' ' && c != '\t' && c != '\r' {
			lastMeaningful = c
		}
	}
}

// DecisiveScan merges a wider profile in, pair by pair, and only where this
// profile is perfectly tied. Local evidence, however small, wins.
func (p *ImportStyleProfile) DecisiveScan(wider *ImportStyleProfile) {
	if wider == nil {
		return
	}
	if p.ImportCount == p.RequireCount {
		p.ImportCount += wider.ImportCount
		p.RequireCount += wider.RequireCount
	}
	if p.SingleQuoteCount == p.DoubleQuoteCount {
		p.SingleQuoteCount += wider.SingleQuoteCount
		p.DoubleQuoteCount += wider.DoubleQuoteCount
	}
	if p.SemiCount == p.NoSemiCount {
		p.SemiCount += wider.SemiCount
		p.NoSemiCount += wider.NoSemiCount
	}
	if p.IndexVisibleCount == p.IndexHiddenCount {
		p.IndexVisibleCount += wider.IndexVisibleCount
		p.IndexHiddenCount += wider.IndexHiddenCount
	}
	tiedExts := map[string]bool{}
	for ext := range wider.ExtensionKept {
		if p.ExtensionKept[ext] == p.ExtensionElided[ext] {
			tiedExts[ext] = true
		}
	}
	for ext := range wider.ExtensionElided {
		if p.ExtensionKept[ext] == p.ExtensionElided[ext] {
			tiedExts[ext] = true
		}
	}
	for ext := range tiedExts {
		p.ExtensionKept[ext] += wider.ExtensionKept[ext]
		p.ExtensionElided[ext] += wider.ExtensionElided[ext]
	}
}

// PreferImportSyntax reports whether new statements should use import
// syntax. On a tie only TypeScript documents default to import.
func (p *ImportStyleProfile) PreferImportSyntax(documentExt string) bool {
	if p.ImportCount != p.RequireCount {
		return p.ImportCount > p.RequireCount
	}
	return documentExt == "ts" || documentExt == "tsx"
}

// QuoteChar prefers single quotes unless double quotes strictly dominate.
func (p *ImportStyleProfile) QuoteChar() byte {
	if p.DoubleQuoteCount > p.SingleQuoteCount {
		return '"'
	}
	return '\''
}

func (p *ImportStyleProfile) UseSemicolon() bool {
	return p.SemiCount >= p.NoSemiCount
}

func (p *ImportStyleProfile) HideIndex() bool {
	return p.IndexHiddenCount > p.IndexVisibleCount
}

// OmitExtension reports whether specifiers for files with the given
// extension conventionally drop it.
func (p *ImportStyleProfile) OmitExtension(ext string) bool {
	kept, elided := p.ExtensionKept[ext], p.ExtensionElided[ext]
	if kept != elided {
		return elided > kept
	}
	return defaultElidedExtensions[ext]
}

// BuildDocumentProfile runs the three phases for one document against an
// optional project-wide profile.
func BuildDocumentProfile(tree *DocumentTree, probe *FsProbeCache, cache ResolveCache, projectWide *ImportStyleProfile) *ImportStyleProfile {
	p := NewImportStyleProfile()
	p.SelectiveScan(tree, probe, cache)
	p.InconclusiveScan(tree)
	p.DecisiveScan(projectWide)
	return p
}

// BuildProjectProfile aggregates selective evidence across many documents.
func BuildProjectProfile(trees []*DocumentTree, probe *FsProbeCache, cache ResolveCache) *ImportStyleProfile {
	p := NewImportStyleProfile()
	for _, tree := range trees {
		p.SelectiveScan(tree, probe, cache)
	}
	return p
}

// NormalizeImportPath rewrites a fully spelled relative specifier to the
// project's conventional shape: hide the index segment and drop the
// extension when the profile says so.
func (p *ImportStyleProfile) NormalizeImportPath(specifier string) string {
	info := NewFileInfo(specifier)
	ext := info.FileExtensionWithoutLeadingDot
	if ext != "" && p.OmitExtension(ext) {
		specifier = strings.TrimSuffix(specifier, "."+ext)
		info = NewFileInfo(specifier)
	}
	if info.FileNameWithExtension == "index" && p.HideIndex() {
		trimmed := strings.TrimSuffix(specifier, "/index")
		if trimmed != specifier && trimmed != "." && trimmed != ".." {
			specifier = trimmed
		} else if trimmed == "." || trimmed == ".." {
			specifier = trimmed
		}
	}
	return specifier
}

// ImportBindingKind is the clause shape a new import should use.
type ImportBindingKind int

const (
	BindDefault ImportBindingKind = iota
	BindNamespace
	BindNamed
	BindNone // side-effect only
)

// GetImportOrRequireSnippet renders a complete new statement for name from
// request in the profile's house style.
func (p *ImportStyleProfile) GetImportOrRequireSnippet(documentExt string, name string, kind ImportBindingKind, request string) string {
	q := string(p.QuoteChar())
	semi := ""
	if p.UseSemicolon() {
		semi = ";"
	}
	quoted := q + request + q

	if p.PreferImportSyntax(documentExt) {
		switch kind {
		case BindDefault:
			return "import " + name + " from " + quoted + semi
		case BindNamespace:
			return "import * as " + name + " from " + quoted + semi
		case BindNamed:
			return "import { " + name + " } from " + quoted + semi
		default:
			return "import " + quoted + semi
		}
	}

	switch kind {
	case BindNamed:
		return "const { " + name + " } = require(" + quoted + ")" + semi
	case BindNone:
		return "require(" + quoted + ")" + semi
	default:
		return "const " + name + " = require(" + quoted + ")" + semi
	}
}
