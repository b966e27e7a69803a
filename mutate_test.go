package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func writeDoc(t *testing.T, dir string, name string, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return NormalizePathForInternal(path)
}

func namedItem(filePath string, name string) CatalogItem {
	return CatalogItem{Kind: ItemFileNamedExport, Name: name, FilePath: filePath, PathList: []string{filePath}}
}

func defaultItem(filePath string, name string) CatalogItem {
	return CatalogItem{Kind: ItemFileDefaultExport, Name: name, FilePath: filePath, PathList: []string{filePath}}
}

func runAddImport(t *testing.T, dir string, docContent string, item CatalogItem, kind ImportBindingKind) (MutationResult, string) {
	t.Helper()
	docPath := writeDoc(t, dir, "doc.ts", docContent)
	catalog := NewCatalog(dir, nil)
	result := AddImport(context.Background(), catalog, nil, docPath, item, kind, nil)
	return result, ApplyChangesToContent(docContent, result.Changes)
}

func TestAddImportNewStatement(t *testing.T) {
	t.Run("into an empty document", func(t *testing.T) {
		dir := t.TempDir()
		helper := writeDoc(t, dir, "helper.ts", "export const helper = 1;\n")

		result, got := runAddImport(t, dir, "const x = 1;\n", namedItem(helper, "helper"), BindNamed)
		if result.Outcome != MergeApplied {
			t.Fatalf("expected applied, got %v: %s", result.Outcome, result.Message)
		}
		want := "import { helper } from './helper';\nconst x = 1;\n"
		if got != want {
			t.Errorf("Expected %q, got %q", want, got)
		}
	})

	t.Run("sorted among relative imports", func(t *testing.T) {
		dir := t.TempDir()
		writeDoc(t, dir, "aardvark.ts", "export const a = 1;\n")
		writeDoc(t, dir, "zebra.ts", "export const z = 1;\n")
		helper := writeDoc(t, dir, "helper.ts", "export const helper = 1;\n")

		doc := "import { a } from './aardvark';\nimport { z } from './zebra';\n"
		_, got := runAddImport(t, dir, doc, namedItem(helper, "helper"), BindNamed)
		want := "import { a } from './aardvark';\nimport { helper } from './helper';\nimport { z } from './zebra';\n"
		if got != want {
			t.Errorf("Expected %q, got %q", want, got)
		}
	})

	t.Run("relative imports do not sort against package imports", func(t *testing.T) {
		dir := t.TempDir()
		helper := writeDoc(t, dir, "helper.ts", "export const helper = 1;\n")

		doc := "import React from 'react';\n"
		_, got := runAddImport(t, dir, doc, namedItem(helper, "helper"), BindNamed)
		want := "import { helper } from './helper';\nimport React from 'react';\n"
		if got != want {
			t.Errorf("Expected %q, got %q", want, got)
		}
	})

	t.Run("adopts document quote and semicolon style", func(t *testing.T) {
		dir := t.TempDir()
		helper := writeDoc(t, dir, "helper.ts", "export const helper = 1;\n")

		doc := "import { z } from \"./zzz\"\n"
		writeDoc(t, dir, "zzz.ts", "export const z = 1;\n")
		_, got := runAddImport(t, dir, doc, namedItem(helper, "helper"), BindNamed)
		want := "import { helper } from \"./helper\"\nimport { z } from \"./zzz\"\n"
		if got != want {
			t.Errorf("Expected %q, got %q", want, got)
		}
	})

	t.Run("node module by its name", func(t *testing.T) {
		dir := t.TempDir()
		item := CatalogItem{Kind: ItemNodeModule, Name: "axios", ModuleName: "axios"}
		_, got := runAddImport(t, dir, "const x = 1;\n", item, BindDefault)
		want := "import axios from 'axios';\nconst x = 1;\n"
		if got != want {
			t.Errorf("Expected %q, got %q", want, got)
		}
	})
}

func TestAddImportMergeIntoImport(t *testing.T) {
	setup := func(t *testing.T) (string, string) {
		dir := t.TempDir()
		util := writeDoc(t, dir, "util.ts", "export default 1;\nexport const helper = 1;\n")
		return dir, util
	}

	t.Run("default into existing default", func(t *testing.T) {
		dir, util := setup(t)
		result, _ := runAddImport(t, dir, "import util from './util';\n", defaultItem(util, "util"), BindDefault)
		if result.Outcome != MergeAlreadyExists {
			t.Errorf("expected already-exists, got %v", result.Outcome)
		}
	})

	t.Run("default into namespace import", func(t *testing.T) {
		dir, util := setup(t)
		result, got := runAddImport(t, dir, "import * as util from './util';\n", defaultItem(util, "other"), BindDefault)
		if result.Outcome != MergeApplied {
			t.Fatalf("expected applied, got %v: %s", result.Outcome, result.Message)
		}
		want := "import other, * as util from './util';\n"
		if got != want {
			t.Errorf("Expected %q, got %q", want, got)
		}
	})

	t.Run("default colliding with namespace name", func(t *testing.T) {
		dir, util := setup(t)
		result, _ := runAddImport(t, dir, "import * as util from './util';\n", defaultItem(util, "util"), BindDefault)
		if result.Outcome != MergeNeedsRename {
			t.Errorf("expected needs-rename, got %v", result.Outcome)
		}
		if result.FocusOffset < 0 {
			t.Error("a name clash must point at the conflicting clause")
		}
	})

	t.Run("collision resolved by picking another local name", func(t *testing.T) {
		dir, util := setup(t)
		result, got := runAddImport(t, dir, "import * as util from './util';\n", defaultItem(util, "utilDefault"), BindDefault)
		if result.Outcome != MergeApplied {
			t.Fatalf("expected applied after the rename, got %v: %s", result.Outcome, result.Message)
		}
		want := "import utilDefault, * as util from './util';\n"
		if got != want {
			t.Errorf("Expected %q, got %q", want, got)
		}
	})

	t.Run("default into named clause", func(t *testing.T) {
		dir, util := setup(t)
		_, got := runAddImport(t, dir, "import { helper } from './util';\n", defaultItem(util, "util"), BindDefault)
		want := "import util, { helper } from './util';\n"
		if got != want {
			t.Errorf("Expected %q, got %q", want, got)
		}
	})

	t.Run("default into side-effect import", func(t *testing.T) {
		dir, util := setup(t)
		_, got := runAddImport(t, dir, "import './util';\n", defaultItem(util, "util"), BindDefault)
		want := "import util from './util';\n"
		if got != want {
			t.Errorf("Expected %q, got %q", want, got)
		}
	})

	t.Run("namespace into existing namespace", func(t *testing.T) {
		dir, util := setup(t)
		item := CatalogItem{Kind: ItemFileNamespaceExport, Name: "util", FilePath: util, PathList: []string{util}}
		result, _ := runAddImport(t, dir, "import * as util from './util';\n", item, BindNamespace)
		if result.Outcome != MergeAlreadyExists {
			t.Errorf("expected already-exists, got %v", result.Outcome)
		}
		item.Name = "other"
		result, _ = runAddImport(t, dir, "import * as util from './util';\n", item, BindNamespace)
		if result.Outcome != MergeConflict {
			t.Errorf("expected conflict for a differently named namespace, got %v", result.Outcome)
		}
	})

	t.Run("namespace into named clause conflicts", func(t *testing.T) {
		dir, util := setup(t)
		item := CatalogItem{Kind: ItemFileNamespaceExport, Name: "util", FilePath: util, PathList: []string{util}}
		result, _ := runAddImport(t, dir, "import { helper } from './util';\n", item, BindNamespace)
		if result.Outcome != MergeConflict {
			t.Errorf("expected conflict, got %v", result.Outcome)
		}
	})

	t.Run("namespace after default binding", func(t *testing.T) {
		dir, util := setup(t)
		item := CatalogItem{Kind: ItemFileNamespaceExport, Name: "helpers", FilePath: util, PathList: []string{util}}
		_, got := runAddImport(t, dir, "import util from './util';\n", item, BindNamespace)
		want := "import util, * as helpers from './util';\n"
		if got != want {
			t.Errorf("Expected %q, got %q", want, got)
		}
	})

	t.Run("named into namespace import conflicts", func(t *testing.T) {
		dir, util := setup(t)
		result, _ := runAddImport(t, dir, "import * as util from './util';\n", namedItem(util, "helper"), BindNamed)
		if result.Outcome != MergeConflict {
			t.Errorf("expected conflict, got %v", result.Outcome)
		}
	})

	t.Run("named after default binding", func(t *testing.T) {
		dir, util := setup(t)
		_, got := runAddImport(t, dir, "import util from './util';\n", namedItem(util, "helper"), BindNamed)
		want := "import util, { helper } from './util';\n"
		if got != want {
			t.Errorf("Expected %q, got %q", want, got)
		}
	})

	t.Run("named into side-effect import", func(t *testing.T) {
		dir, util := setup(t)
		_, got := runAddImport(t, dir, "import './util';\n", namedItem(util, "helper"), BindNamed)
		want := "import { helper } from './util';\n"
		if got != want {
			t.Errorf("Expected %q, got %q", want, got)
		}
	})
}

func TestAddImportNamedListInsertion(t *testing.T) {
	setup := func(t *testing.T) (string, string) {
		dir := t.TempDir()
		util := writeDoc(t, dir, "util.ts", "export const alpha = 1;\nexport const beta = 1;\nexport const gamma = 1;\nexport const zeta = 1;\n")
		return dir, util
	}

	t.Run("inserts at lexicographic position", func(t *testing.T) {
		dir, util := setup(t)
		_, got := runAddImport(t, dir, "import { alpha, gamma } from './util';\n", namedItem(util, "beta"), BindNamed)
		want := "import { alpha, beta, gamma } from './util';\n"
		if got != want {
			t.Errorf("Expected %q, got %q", want, got)
		}
	})

	t.Run("appends after the last binding", func(t *testing.T) {
		dir, util := setup(t)
		_, got := runAddImport(t, dir, "import { alpha, gamma } from './util';\n", namedItem(util, "zeta"), BindNamed)
		want := "import { alpha, gamma, zeta } from './util';\n"
		if got != want {
			t.Errorf("Expected %q, got %q", want, got)
		}
	})

	t.Run("duplicate name reports already-exists", func(t *testing.T) {
		dir, util := setup(t)
		result, _ := runAddImport(t, dir, "import { alpha } from './util';\n", namedItem(util, "alpha"), BindNamed)
		if result.Outcome != MergeAlreadyExists {
			t.Errorf("expected already-exists, got %v", result.Outcome)
		}
	})

	t.Run("multiline clause keeps its layout", func(t *testing.T) {
		dir, util := setup(t)
		doc := "import {\n\talpha,\n\tgamma,\n} from './util';\n"
		_, got := runAddImport(t, dir, doc, namedItem(util, "beta"), BindNamed)
		want := "import {\n\talpha,\n\tbeta,\n\tgamma,\n} from './util';\n"
		if got != want {
			t.Errorf("Expected %q, got %q", want, got)
		}
	})

	t.Run("multiline append honors the trailing comma", func(t *testing.T) {
		dir, util := setup(t)
		doc := "import {\n\talpha,\n\tgamma,\n} from './util';\n"
		_, got := runAddImport(t, dir, doc, namedItem(util, "zeta"), BindNamed)
		want := "import {\n\talpha,\n\tgamma,\n\tzeta,\n} from './util';\n"
		if got != want {
			t.Errorf("Expected %q, got %q", want, got)
		}
	})
}

func TestAddImportMergeIntoRequire(t *testing.T) {
	t.Run("named into destructured require", func(t *testing.T) {
		dir := t.TempDir()
		item := CatalogItem{Kind: ItemNodeIdentifier, Name: "resolve", ModuleName: "path"}
		_, got := runAddImport(t, dir, "const { join } = require('path');\n", item, BindNamed)
		want := "const { join, resolve } = require('path');\n"
		if got != want {
			t.Errorf("Expected %q, got %q", want, got)
		}
	})

	t.Run("default into destructured require conflicts", func(t *testing.T) {
		dir := t.TempDir()
		item := CatalogItem{Kind: ItemNodeModule, Name: "path", ModuleName: "path"}
		result, _ := runAddImport(t, dir, "const { join } = require('path');\n", item, BindDefault)
		if result.Outcome != MergeConflict {
			t.Errorf("expected conflict, got %v", result.Outcome)
		}
	})

	t.Run("repeat require reports already-exists", func(t *testing.T) {
		dir := t.TempDir()
		item := CatalogItem{Kind: ItemNodeModule, Name: "path", ModuleName: "path"}
		result, _ := runAddImport(t, dir, "const path = require('path');\n", item, BindDefault)
		if result.Outcome != MergeAlreadyExists {
			t.Errorf("expected already-exists, got %v", result.Outcome)
		}
	})

	t.Run("named into plain require conflicts", func(t *testing.T) {
		dir := t.TempDir()
		item := CatalogItem{Kind: ItemNodeIdentifier, Name: "join", ModuleName: "path"}
		result, _ := runAddImport(t, dir, "const path = require('path');\n", item, BindNamed)
		if result.Outcome != MergeConflict {
			t.Errorf("expected conflict, got %v", result.Outcome)
		}
	})
}

func TestAddImportBarrelPreference(t *testing.T) {
	setupWorkspace := func(t *testing.T) (string, *Catalog) {
		t.Helper()
		dir := t.TempDir()
		writeDoc(t, dir, "package.json", "{\"name\": \"fixture\"}\n")
		writeDoc(t, dir, "lib/thing.ts", "export const widget = 1;\n")
		writeDoc(t, dir, "lib/index.ts", "export { widget } from './thing';\n")
		catalog := NewCatalog(dir, nil)
		if err := catalog.SetItems(context.Background()); err != nil {
			t.Fatal(err)
		}
		return dir, catalog
	}

	findWidget := func(t *testing.T, catalog *Catalog, docPath string, declaring string) CatalogItem {
		t.Helper()
		for _, item := range catalog.GetItems(docPath) {
			if item.Kind == ItemFileNamedExport && item.Name == "widget" && item.FilePath == declaring {
				return item
			}
		}
		t.Fatal("widget item not found")
		return CatalogItem{}
	}

	t.Run("routes through the barrel", func(t *testing.T) {
		dir, catalog := setupWorkspace(t)
		doc := "export {};\n"
		docPath := writeDoc(t, dir, "src/app.ts", doc)
		thing := NormalizePathForInternal(filepath.Join(dir, "lib/thing.ts"))

		item := findWidget(t, catalog, docPath, thing)
		result := AddImport(context.Background(), catalog, nil, docPath, item, BindNamed, nil)
		if result.Outcome != MergeApplied {
			t.Fatalf("expected applied, got %v: %s", result.Outcome, result.Message)
		}
		got := ApplyChangesToContent(doc, result.Changes)
		want := "import { widget } from '../lib/index';\nexport {};\n"
		if got != want {
			t.Errorf("Expected %q, got %q", want, got)
		}
	})

	t.Run("document inside the barrel imports the file directly", func(t *testing.T) {
		dir, catalog := setupWorkspace(t)
		doc := "export {};\n"
		docPath := writeDoc(t, dir, "lib/consumer.ts", doc)
		thing := NormalizePathForInternal(filepath.Join(dir, "lib/thing.ts"))

		item := findWidget(t, catalog, docPath, thing)
		result := AddImport(context.Background(), catalog, nil, docPath, item, BindNamed, nil)
		got := ApplyChangesToContent(doc, result.Changes)
		want := "import { widget } from './thing';\nexport {};\n"
		if got != want {
			t.Errorf("Expected %q, got %q", want, got)
		}
	})

	t.Run("wildcard import of the barrel fails the operation", func(t *testing.T) {
		dir, catalog := setupWorkspace(t)
		doc := "import * as lib from '../lib';\nexport {};\n"
		docPath := writeDoc(t, dir, "src/app.ts", doc)
		thing := NormalizePathForInternal(filepath.Join(dir, "lib/thing.ts"))

		item := findWidget(t, catalog, docPath, thing)
		result := AddImport(context.Background(), catalog, nil, docPath, item, BindNamed, nil)
		if result.Outcome != MergeConflict {
			t.Errorf("expected conflict, got %v", result.Outcome)
		}
		if result.FocusOffset != 0 {
			t.Errorf("expected focus on the wildcard import, got %d", result.FocusOffset)
		}
	})
}
