package main

import (
	"context"
	"os"
	"testing"
)

func TestDefaultNameForFile(t *testing.T) {
	tests := []struct {
		path     string
		expected string
	}{
		{"/fs/app/user-profile.ts", "userProfile"},
		{"/fs/app/data_store.tsx", "dataStore"},
		{"/fs/app/my.component.ts", "myComponent"},
		{"/fs/app/widgets/index.ts", "widgets"},
		{"/fs/app/plain.ts", "plain"},
	}
	for _, tt := range tests {
		if got := defaultNameForFile(NewFileInfo(tt.path)); got != tt.expected {
			t.Errorf("defaultNameForFile(%q) = %q, expected %q", tt.path, got, tt.expected)
		}
	}
}

func setupCatalogWorkspace(t *testing.T) (string, *Catalog) {
	t.Helper()
	dir := t.TempDir()
	writeDoc(t, dir, "package.json", `{"name": "fixture", "dependencies": {"axios": "^1.6.0"}}`)
	writeDoc(t, dir, "lib/helper.ts", "export const helper = 1;\nexport default function makeHelper() {}\n")
	writeDoc(t, dir, "lib/other.js", "export const other = 2;\n")
	writeDoc(t, dir, "styles/base.styl", "html\n\tcolor red\n")

	catalog := NewCatalog(dir, nil)
	if err := catalog.SetItems(context.Background()); err != nil {
		t.Fatal(err)
	}
	return dir, catalog
}

func findItem(items []CatalogItem, kind ItemKind, name string) (CatalogItem, bool) {
	for _, item := range items {
		if item.Kind == kind && item.Name == name {
			return item, true
		}
	}
	return CatalogItem{}, false
}

func TestCatalogGetItems(t *testing.T) {
	dir, catalog := setupCatalogWorkspace(t)
	doc := writeDoc(t, dir, "src/app.ts", "export {};\n")
	catalog.AddItem(context.Background(), doc)

	items := catalog.GetItems(doc)
	if len(items) == 0 {
		t.Fatal("expected candidates for the document")
	}

	if items[0].Kind != ItemNodeModule || items[0].Name != "axios" {
		t.Errorf("node items must come first, got %+v", items[0])
	}
	if _, ok := findItem(items, ItemFileDefaultExport, "makeHelper"); !ok {
		t.Error("expected the default export under its declared name")
	}
	if _, ok := findItem(items, ItemFileNamedExport, "helper"); !ok {
		t.Error("expected the named export")
	}
	if _, ok := findItem(items, ItemFileNamedExport, "other"); !ok {
		t.Error("a TS document without a tsconfig may import JS items")
	}
	for _, item := range items {
		if item.FilePath == doc {
			t.Errorf("the document's own exports must not be offered: %+v", item)
		}
	}
}

func TestCatalogGetItemsJsDocument(t *testing.T) {
	dir, catalog := setupCatalogWorkspace(t)

	items := catalog.GetItems(NormalizePathForInternal(dir + "/src/page.js"))
	if _, ok := findItem(items, ItemFileNamedExport, "helper"); ok {
		t.Error("TypeScript items must stay away from plain JS documents")
	}
	if _, ok := findItem(items, ItemFileNamedExport, "other"); !ok {
		t.Error("expected the JS item for a JS document")
	}
}

func TestCatalogGetItemsStylus(t *testing.T) {
	dir, catalog := setupCatalogWorkspace(t)

	items := catalog.GetItems(NormalizePathForInternal(dir + "/styles/sheet.styl"))
	if len(items) != 1 || items[0].Kind != ItemStylusFile || items[0].Name != "base.styl" {
		t.Errorf("expected the one other stylesheet, got %+v", items)
	}

	if items := catalog.GetItems(NormalizePathForInternal(dir + "/README.md")); items != nil {
		t.Errorf("unsupported documents get no candidates, got %+v", items)
	}
}

func TestCatalogAddAndCutItem(t *testing.T) {
	dir, catalog := setupCatalogWorkspace(t)
	doc := NormalizePathForInternal(dir + "/src/app.ts")

	extra := writeDoc(t, dir, "lib/extra.ts", "export const extra = 3;\n")
	catalog.AddItem(context.Background(), extra)
	if _, ok := findItem(catalog.GetItems(doc), ItemFileNamedExport, "extra"); !ok {
		t.Error("AddItem must register the new file's exports")
	}

	catalog.CutItem(context.Background(), NormalizePathForInternal(dir+"/lib/helper.ts"))
	items := catalog.GetItems(doc)
	if _, ok := findItem(items, ItemFileNamedExport, "helper"); ok {
		t.Error("CutItem must drop the removed file's exports")
	}
	if _, ok := findItem(items, ItemFileNamedExport, "extra"); !ok {
		t.Error("other files must survive a CutItem")
	}
}

func TestCatalogManifestRefresh(t *testing.T) {
	dir, catalog := setupCatalogWorkspace(t)
	doc := NormalizePathForInternal(dir + "/src/app.ts")

	manifest := writeDoc(t, dir, "package.json", `{"name": "fixture", "dependencies": {"axios": "^1.6.0", "zod": "^3.22.0"}}`)
	catalog.AddItem(context.Background(), manifest)

	if _, ok := findItem(catalog.GetItems(doc), ItemNodeModule, "zod"); !ok {
		t.Error("a manifest edit must refresh the node-module candidates")
	}
}

func TestCatalogManifestAddAndRemove(t *testing.T) {
	dir := t.TempDir()
	writeDoc(t, dir, "package.json", `{"name": "root", "workspaces": ["packages/*"], "dependencies": {"react": "^18.0.0"}}`)

	catalog := NewCatalog(dir, nil)
	if err := catalog.SetItems(context.Background()); err != nil {
		t.Fatal(err)
	}

	doc := NormalizePathForInternal(dir + "/packages/foo/src/app.ts")
	if _, ok := findItem(catalog.GetItems(doc), ItemNodeModule, "react"); !ok {
		t.Fatal("before the member exists its documents belong to the root")
	}

	manifest := writeDoc(t, dir, "packages/foo/package.json", `{"name": "foo", "dependencies": {"axios": "^1.6.0"}}`)
	catalog.AddItem(context.Background(), manifest)

	items := catalog.GetItems(doc)
	if _, ok := findItem(items, ItemNodeModule, "axios"); !ok {
		t.Error("a created manifest must join the index and offer its dependencies")
	}
	if _, ok := findItem(items, ItemNodeModule, "react"); ok {
		t.Error("the new member's documents must no longer see the root dependencies")
	}
	if m := catalog.PackageIndex().ClosestManifest(doc); m == nil || m.Name != "foo" {
		t.Errorf("expected foo as closest manifest, got %+v", m)
	}

	if err := os.Remove(DenormalizePathForOS(manifest)); err != nil {
		t.Fatal(err)
	}
	catalog.CutItem(context.Background(), manifest)

	items = catalog.GetItems(doc)
	if _, ok := findItem(items, ItemNodeModule, "axios"); ok {
		t.Error("a deleted manifest must leave the index with its dependencies")
	}
	if _, ok := findItem(items, ItemNodeModule, "react"); !ok {
		t.Error("documents must fall back to the root after the removal")
	}
	if m := catalog.PackageIndex().ClosestManifest(doc); m == nil || m.Name != "root" {
		t.Errorf("expected root as closest manifest again, got %+v", m)
	}
}

func TestOrderedItems(t *testing.T) {
	items := []CatalogItem{
		{Kind: ItemFileNamedExport, FilePath: "/fs/b.ts", Name: "x"},
		{Kind: ItemFileNamedExport, FilePath: "/fs/a.ts", Name: "z"},
		{Kind: ItemFileNamedExport, FilePath: "/fs/a.ts", Name: "alpha"},
		{Kind: ItemNodeModule, ModuleName: "axios", Name: "axios"},
	}
	ordered := OrderedItems(items)
	want := []string{"alpha", "z", "axios", "x"}
	for i, item := range ordered {
		if item.Name != want[i] {
			t.Fatalf("unexpected order at %d: got %q, expected %q (%+v)", i, item.Name, want[i], ordered)
		}
	}
}
