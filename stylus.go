package main

import (
	"context"
	"strings"
)

// StylusStatement is one @import or @require directive.
type StylusStatement struct {
	Directive    string // "import" or "require"
	Request      string
	Quote        byte
	RequestStart uint32
	RequestEnd   uint32
	StmtStart    uint32
	StmtEnd      uint32
	Semicolon    bool
}

// ParseStylusStatements scans stylesheet text for @import/@require
// directives with quoted paths. Unquoted or interpolated arguments are
// ignored.
func ParseStylusStatements(text []byte) []StylusStatement {
	var statements []StylusStatement
	for i := 0; i < len(text); i++ {
		c := text[i]
		if c == '/' && i+1 < len(text) {
			if text[i+1] == '/' {
				i = skipLineComment(text, i) - 1
				continue
			}
			if text[i+1] == '*' {
				i = skipBlockComment(text, i) - 1
				continue
			}
		}
		if c != '@' {
			continue
		}

		directive := ""
		if hasWordAt(text, i+1, "import") {
			directive = "import"
		} else if hasWordAt(text, i+1, "require") {
			directive = "require"
		} else {
			continue
		}

		stmtStart := i
		j := skipSpaces(text, i+1+len(directive))
		if j >= len(text) || (text[j] != '"' && text[j] != '\'') {
			continue
		}
		request, next, reqStart, reqEnd := parseStringLiteral(text, j)
		if request == "" {
			i = next - 1
			continue
		}
		stmtEnd := skipOptionalSemicolon(text, next)
		statements = append(statements, StylusStatement{
			Directive:    directive,
			Request:      request,
			Quote:        text[j],
			RequestStart: uint32(reqStart),
			RequestEnd:   uint32(reqEnd),
			StmtStart:    uint32(stmtStart),
			StmtEnd:      uint32(stmtEnd),
			Semicolon:    stmtEnd != next,
		})
		i = next - 1
	}
	return statements
}

// BuildStylusProfile counts quote and semicolon conventions over a
// stylesheet's existing directives.
func BuildStylusProfile(text []byte) *ImportStyleProfile {
	p := NewImportStyleProfile()
	for _, s := range ParseStylusStatements(text) {
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
	return p
}

// StylusImportSnippet renders an @import (or @require) of item for the
// given document. The .styl extension is elided, other extensions stay.
func StylusImportSnippet(profile *ImportStyleProfile, documentPath string, item CatalogItem, useRequire bool) string {
	docDir := NewFileInfo(documentPath).DirectoryPath
	specifier := RelativeSpecifier(docDir, item.FilePath)
	if strings.HasSuffix(specifier, ".styl") {
		specifier = strings.TrimSuffix(specifier, ".styl")
		if strings.HasSuffix(specifier, "/index") {
			specifier = strings.TrimSuffix(specifier, "/index")
		}
	}

	directive := "@import"
	if useRequire {
		directive = "@require"
	}
	q := string(profile.QuoteChar())
	semi := ""
	if profile.UseSemicolon() {
		semi = ";"
	}
	return directive + " " + q + specifier + q + semi
}

// AddStylusImport inserts a new directive after the last existing one, or
// at the top of the document.
func AddStylusImport(catalog *Catalog, documentPath string, item CatalogItem, useRequire bool) MutationResult {
	documentPath = NormalizePathForInternal(documentPath)
	tree := ParseDocument(documentPath, nil)
	if tree == nil {
		return refusedResult(MergeConflict, "cannot read "+documentPath, -1)
	}

	statements := ParseStylusStatements(tree.Text)
	profile := BuildStylusProfile(tree.Text)
	snippet := StylusImportSnippet(profile, documentPath, item, useRequire)

	docDir := NewFileInfo(documentPath).DirectoryPath
	cache := ResolveCache{}
	offset := int32(0)
	for _, s := range statements {
		if resolved, ok := ResolveFilePath(catalog.Probe(), cache, "styl", docDir, s.Request); ok && resolved == item.FilePath {
			return refusedResult(MergeAlreadyExists, s.Request+" is already imported", int32(s.StmtStart))
		}
		offset = int32(s.StmtEnd)
	}

	text := snippet + tree.EOL
	if offset > 0 {
		text = tree.EOL + snippet
	}
	return appliedResult(Change{Start: offset, End: offset, Text: text})
}

// FixStylusImports repairs broken @import/@require paths the same way the
// script fixer does: filename search, trailing-segment narrowing, unique
// match applied, several matches disambiguated, none reported.
func FixStylusImports(ctx context.Context, catalog *Catalog, documentPath string, choose Disambiguator) FixOutcome {
	outcome := FixOutcome{Status: FixClean, Fixed: map[string]string{}}
	documentPath = NormalizePathForInternal(documentPath)
	docDir := NewFileInfo(documentPath).DirectoryPath

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

		var broken *StylusStatement
		cache := ResolveCache{}
		for _, s := range ParseStylusStatements(tree.Text) {
			if attempted[s.Request] {
				continue
			}
			if _, ok := ResolveFilePath(catalog.Probe(), cache, "styl", docDir, s.Request); ok {
				continue
			}
			s := s
			broken = &s
			break
		}
		if broken == nil {
			break
		}
		attempted[broken.Request] = true

		if !filesLoaded {
			matchers := FindAndProcessGitIgnoreFilesUpToRepoRoot(DenormalizePathForOS(docDir))
			workspaceFiles = GetStylusFiles(DenormalizePathForOS(catalog.cwd), matchers)
			filesLoaded = true
		}

		candidates := FindFilesRoughly(workspaceFiles, broken.Request)
		switch len(candidates) {
		case 0:
			outcome.Unresolved = append(outcome.Unresolved, broken.Request)
			continue
		case 1:
		default:
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

		newSpecifier := RelativeSpecifier(docDir, candidates[0])
		if !strings.HasSuffix(broken.Request, ".styl") {
			newSpecifier = strings.TrimSuffix(newSpecifier, ".styl")
		}
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
