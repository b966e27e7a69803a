package main

import (
	"os"
	"path/filepath"
	"testing"
)

func TestSelectiveScanCountsStatements(t *testing.T) {
	tree := ParseDocument("/fs/app.ts", []byte(`import a from 'pkg-a';
import b from "pkg-b";
const c = require('pkg-c')
`))
	p := NewImportStyleProfile()
	p.SelectiveScan(tree, NewFsProbeCache(), ResolveCache{})

	if p.ImportCount != 2 || p.RequireCount != 1 {
		t.Errorf("expected 2 imports / 1 require, got %d / %d", p.ImportCount, p.RequireCount)
	}
	if p.SingleQuoteCount != 2 || p.DoubleQuoteCount != 1 {
		t.Errorf("expected 2 single / 1 double, got %d / %d", p.SingleQuoteCount, p.DoubleQuoteCount)
	}
	if p.SemiCount != 2 || p.NoSemiCount != 1 {
		t.Errorf("expected 2 semi / 1 bare, got %d / %d", p.SemiCount, p.NoSemiCount)
	}
}

func TestSelectiveScanPathShape(t *testing.T) {
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, "widgets"), 0o755); err != nil {
		t.Fatal(err)
	}
	for _, name := range []string{"widgets/index.ts", "util.ts", "doc.ts"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("export {};\n"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	doc := NormalizePathForInternal(filepath.Join(dir, "doc.ts"))

	tree := ParseDocument(doc, []byte(`import w from './widgets';
import u from './util.ts';
`))
	p := NewImportStyleProfile()
	p.SelectiveScan(tree, NewFsProbeCache(), ResolveCache{})

	if p.IndexHiddenCount != 1 || p.IndexVisibleCount != 0 {
		t.Errorf("expected hidden index, got visible=%d hidden=%d", p.IndexVisibleCount, p.IndexHiddenCount)
	}
	if p.ExtensionKept["ts"] != 1 || p.ExtensionElided["ts"] != 1 {
		t.Errorf("expected kept=1 elided=1 for ts, got kept=%d elided=%d",
			p.ExtensionKept["ts"], p.ExtensionElided["ts"])
	}
}

func TestInconclusiveScan(t *testing.T) {
	t.Run("fills empty quote and semi evidence", func(t *testing.T) {
		tree := ParseDocument("/fs/plain.ts", []byte(`const greeting = "hello"
const name = "world"
call(greeting, name)
`))
		p := NewImportStyleProfile()
		p.InconclusiveScan(tree)

		if p.DoubleQuoteCount != 2 || p.SingleQuoteCount != 0 {
			t.Errorf("expected 2 double quotes, got single=%d double=%d", p.SingleQuoteCount, p.DoubleQuoteCount)
		}
		if p.NoSemiCount == 0 || p.SemiCount != 0 {
			t.Errorf("expected only bare line endings, got semi=%d bare=%d", p.SemiCount, p.NoSemiCount)
		}
	})

	t.Run("ignores comments and continuation lines", func(t *testing.T) {
		tree := ParseDocument("/fs/commented.ts", []byte(`// const fake = 'quoted'
/* 'also quoted'; */
doWork({
	value: 1,
});
`))
		p := NewImportStyleProfile()
		p.InconclusiveScan(tree)

		if p.SingleQuoteCount != 0 {
			t.Errorf("quotes inside comments must not count, got %d", p.SingleQuoteCount)
		}
		if p.NoSemiCount != 0 {
			t.Errorf("open-brace and comma lines must not count as bare, got %d", p.NoSemiCount)
		}
		if p.SemiCount != 1 {
			t.Errorf("expected 1 semicolon line, got %d", p.SemiCount)
		}
	})

	t.Run("skips when selective evidence exists", func(t *testing.T) {
		tree := ParseDocument("/fs/skip.ts", []byte(`const x = "text";`))
		p := NewImportStyleProfile()
		p.SingleQuoteCount = 3
		p.SemiCount = 3
		p.InconclusiveScan(tree)
		if p.DoubleQuoteCount != 0 {
			t.Errorf("scan must not run with existing quote evidence, got %d", p.DoubleQuoteCount)
		}
	})
}

func TestDecisiveScanMergesOnlyTies(t *testing.T) {
	local := NewImportStyleProfile()
	local.SingleQuoteCount = 1 // decided locally
	local.ImportCount = 2
	local.RequireCount = 2 // tied
	local.ExtensionKept["ts"] = 1
	local.ExtensionElided["ts"] = 1 // tied
	local.ExtensionElided["js"] = 3 // decided

	wider := NewImportStyleProfile()
	wider.DoubleQuoteCount = 50
	wider.ImportCount = 10
	wider.RequireCount = 1
	wider.ExtensionKept["ts"] = 5
	wider.ExtensionKept["js"] = 100

	local.DecisiveScan(wider)

	if local.DoubleQuoteCount != 0 {
		t.Errorf("decided quote pair must not merge, got double=%d", local.DoubleQuoteCount)
	}
	if local.ImportCount != 12 || local.RequireCount != 3 {
		t.Errorf("tied syntax pair must merge, got %d / %d", local.ImportCount, local.RequireCount)
	}
	if local.ExtensionKept["ts"] != 6 {
		t.Errorf("tied ts pair must merge, got kept=%d", local.ExtensionKept["ts"])
	}
	if local.ExtensionKept["js"] != 0 {
		t.Errorf("decided js pair must not merge, got kept=%d", local.ExtensionKept["js"])
	}
}

func TestProfileDecisions(t *testing.T) {
	t.Run("import syntax tie breaks on document extension", func(t *testing.T) {
		p := NewImportStyleProfile()
		if !p.PreferImportSyntax("ts") || !p.PreferImportSyntax("tsx") {
			t.Error("TypeScript documents default to import on a tie")
		}
		if p.PreferImportSyntax("js") || p.PreferImportSyntax("jsx") {
			t.Error("JavaScript documents default to require on a tie")
		}
		p.RequireCount = 1
		if p.PreferImportSyntax("ts") {
			t.Error("require evidence must win even in TypeScript")
		}
	})

	t.Run("single quote wins ties", func(t *testing.T) {
		p := NewImportStyleProfile()
		if p.QuoteChar() != '\'' {
			t.Errorf("expected single quote, got %q", p.QuoteChar())
		}
		p.DoubleQuoteCount = 1
		if p.QuoteChar() != '"' {
			t.Errorf("expected double quote, got %q", p.QuoteChar())
		}
	})

	t.Run("semicolon wins ties", func(t *testing.T) {
		p := NewImportStyleProfile()
		if !p.UseSemicolon() {
			t.Error("expected semicolons on a tie")
		}
		p.NoSemiCount = 1
		if p.UseSemicolon() {
			t.Error("expected no semicolons when bare endings dominate")
		}
	})

	t.Run("script extensions elide by default", func(t *testing.T) {
		p := NewImportStyleProfile()
		if !p.OmitExtension("ts") || !p.OmitExtension("js") {
			t.Error("script extensions default to elided")
		}
		if p.OmitExtension("json") {
			t.Error("non-script extensions default to kept")
		}
		p.ExtensionKept["ts"] = 2
		if p.OmitExtension("ts") {
			t.Error("kept evidence must win")
		}
	})
}

func TestNormalizeImportPath(t *testing.T) {
	hideAll := NewImportStyleProfile()
	hideAll.IndexHiddenCount = 1

	tests := []struct {
		name      string
		profile   *ImportStyleProfile
		specifier string
		expected  string
	}{
		{"elide extension", NewImportStyleProfile(), "./util.ts", "./util"},
		{"keep non-script extension", NewImportStyleProfile(), "./data.json", "./data.json"},
		{"hide index", hideAll, "./widgets/index.ts", "./widgets"},
		{"index of own directory", hideAll, "./index.ts", "."},
		{"visible index stays", NewImportStyleProfile(), "./widgets/index.ts", "./widgets/index"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.profile.NormalizeImportPath(tt.specifier); got != tt.expected {
				t.Errorf("expected %q, got %q", tt.expected, got)
			}
		})
	}
}

func TestGetImportOrRequireSnippet(t *testing.T) {
	importStyle := NewImportStyleProfile()
	importStyle.ImportCount = 1

	requireStyle := NewImportStyleProfile()
	requireStyle.RequireCount = 1
	requireStyle.NoSemiCount = 1
	requireStyle.DoubleQuoteCount = 1

	tests := []struct {
		name     string
		profile  *ImportStyleProfile
		binding  ImportBindingKind
		expected string
	}{
		{"default import", importStyle, BindDefault, "import tool from './tool';"},
		{"namespace import", importStyle, BindNamespace, "import * as tool from './tool';"},
		{"named import", importStyle, BindNamed, "import { tool } from './tool';"},
		{"side-effect import", importStyle, BindNone, "import './tool';"},
		{"default require", requireStyle, BindDefault, `const tool = require("./tool")`},
		{"named require", requireStyle, BindNamed, `const { tool } = require("./tool")`},
		{"side-effect require", requireStyle, BindNone, `require("./tool")`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.profile.GetImportOrRequireSnippet("ts", "tool", tt.binding, "./tool")
			if got != tt.expected {
				t.Errorf("expected %q, got %q", tt.expected, got)
			}
		})
	}
}
