package main

import (
	"context"
	"strings"
)

// ConvertOutcome summarizes a require-to-import run over one document.
type ConvertOutcome struct {
	Converted int
	Skipped   []string // requests left alone (dynamic positions, parse gaps)
	Cancelled bool
}

// ConvertRequires rewrites every top-level `const X = require("m")` in the
// document to import syntax, keeping each statement's own quote and
// semicolon. A relative target without a default export becomes a
// namespace import; destructured requires become named imports.
func ConvertRequires(ctx context.Context, catalog *Catalog, documentPath string) (ConvertOutcome, error) {
	outcome := ConvertOutcome{}
	documentPath = NormalizePathForInternal(documentPath)

	tree := ParseDocument(documentPath, nil)
	if tree == nil {
		return outcome, nil
	}

	cache := ResolveCache{}
	var changes []Change
	for _, s := range tree.Statements {
		if ctx.Err() != nil {
			outcome.Cancelled = true
			break
		}
		if s.Kind != StmtRequire {
			continue
		}

		text, ok := importTextForRequire(ctx, catalog, cache, tree, s)
		if !ok {
			outcome.Skipped = append(outcome.Skipped, s.Request)
			continue
		}
		changes = append(changes, Change{Start: int32(s.StmtStart), End: int32(s.StmtEnd), Text: text})
	}

	if len(changes) == 0 {
		return outcome, nil
	}
	if err := ApplyFileChanges(map[string][]Change{documentPath: changes}); err != nil {
		return outcome, err
	}
	outcome.Converted = len(changes)
	return outcome, nil
}

func importTextForRequire(ctx context.Context, catalog *Catalog, cache ResolveCache, tree *DocumentTree, s ModuleStatement) (string, bool) {
	quote := "'"
	if s.Quote != 0 {
		quote = string(s.Quote)
	}
	semi := ""
	if s.Semicolon {
		semi = ";"
	}
	quoted := quote + s.Request + quote

	if s.BindingIsDestructured {
		names := make([]string, 0, 4)
		if s.Bindings != nil {
			for _, b := range s.Bindings.Bindings {
				entry := b.Name
				if b.Alias != "" {
					entry = b.Name + " as " + b.Alias
				}
				names = append(names, entry)
			}
		}
		if len(names) == 0 {
			return "", false
		}
		return "import { " + strings.Join(names, ", ") + " } from " + quoted + semi, true
	}

	if s.BindingName == "" {
		return "import " + quoted + semi, true
	}

	// Relative targets with no default export cannot take a default import.
	useNamespace := false
	if IsRelativeSpecifier(s.Request) {
		if resolved, ok := ResolveRelativeRequest(catalog.Probe(), cache, tree.Path, s.Request); ok {
			hasDefault := catalog.ExportGraph().HasDefaultExport(ctx, resolved)
			interop := false
			if tscfg := catalog.TsConfigs().ForDocument(tree.Path); tscfg != nil {
				interop = tscfg.EsModuleInterop
			}
			useNamespace = !hasDefault && !interop
		}
	}

	if useNamespace {
		return "import * as " + s.BindingName + " from " + quoted + semi, true
	}
	return "import " + s.BindingName + " from " + quoted + semi, true
}
