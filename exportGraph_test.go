package main

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func writeSource(t *testing.T, dir string, name string, content string) string {
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

func TestExportGraphLocalDeclarations(t *testing.T) {
	dir := t.TempDir()
	path := writeSource(t, dir, "tools.ts", `export const version = '1.0';
export function makeTool() {}
export class Toolbox {}
const hidden = true;
`)

	graph := NewExportGraph(nil)
	exports := graph.ExportsOf(context.Background(), path)

	for name, kind := range map[string]SyntaxKind{
		"version":  KindVariable,
		"makeTool": KindFunction,
		"Toolbox":  KindClass,
	} {
		rec, ok := exports[name]
		if !ok {
			t.Errorf("expected export %q", name)
			continue
		}
		if rec.Kind != kind {
			t.Errorf("%s: expected kind %v, got %v", name, kind, rec.Kind)
		}
		if rec.DeclaringPath() != path {
			t.Errorf("%s: expected declaring path %q, got %q", name, path, rec.DeclaringPath())
		}
	}
	if _, ok := exports["hidden"]; ok {
		t.Error("unexported const must not appear")
	}
}

func TestExportGraphReExportChain(t *testing.T) {
	dir := t.TempDir()
	c := writeSource(t, dir, "c.ts", "export const widget = 1;\n")
	b := writeSource(t, dir, "b.ts", "export { widget } from './c';\n")
	a := writeSource(t, dir, "a.ts", "export { widget } from './b';\n")

	graph := NewExportGraph(nil)
	exports := graph.ExportsOf(context.Background(), a)

	rec, ok := exports["widget"]
	if !ok {
		t.Fatal("expected widget to survive the chain")
	}
	if want := []string{a, b, c}; !reflect.DeepEqual(rec.PathList, want) {
		t.Errorf("expected path list %v, got %v", want, rec.PathList)
	}
	if rec.DeclaringPath() != c {
		t.Errorf("expected declaring path %q, got %q", c, rec.DeclaringPath())
	}
}

func TestExportGraphRenamedReExport(t *testing.T) {
	dir := t.TempDir()
	writeSource(t, dir, "impl.ts", "export const widget = 1;\n")
	barrel := writeSource(t, dir, "index.ts", "export { widget as gadget } from './impl';\n")

	exports := NewExportGraph(nil).ExportsOf(context.Background(), barrel)
	rec, ok := exports["gadget"]
	if !ok {
		t.Fatal("expected gadget")
	}
	if rec.OriginalName != "widget" {
		t.Errorf("expected original name widget, got %q", rec.OriginalName)
	}
	if _, ok := exports["widget"]; ok {
		t.Error("renamed re-export must not also expose the original name")
	}
}

func TestExportGraphDefaultThroughChain(t *testing.T) {
	dir := t.TempDir()
	impl := writeSource(t, dir, "impl.ts", "export default function widgetFactory() {}\n")
	barrel := writeSource(t, dir, "index.ts", "export { default } from './impl';\n")

	graph := NewExportGraph(nil)
	exports := graph.ExportsOf(context.Background(), barrel)

	rec, ok := exports[DefaultExportName]
	if !ok {
		t.Fatal("expected a default export")
	}
	if rec.OriginalName != "widgetFactory" {
		t.Errorf("expected original name widgetFactory, got %q", rec.OriginalName)
	}
	if rec.DeclaringPath() != impl {
		t.Errorf("expected declaring path %q, got %q", impl, rec.DeclaringPath())
	}
	if !graph.HasDefaultExport(context.Background(), barrel) {
		t.Error("HasDefaultExport should report true")
	}
}

func TestExportGraphStarFromSkipsDefault(t *testing.T) {
	dir := t.TempDir()
	writeSource(t, dir, "impl.ts", `export default function main() {}
export const helper = 1;
`)
	barrel := writeSource(t, dir, "index.ts", "export * from './impl';\n")

	graph := NewExportGraph(nil)
	exports := graph.ExportsOf(context.Background(), barrel)

	if _, ok := exports["helper"]; !ok {
		t.Error("expected helper to pass through")
	}
	if _, ok := exports[DefaultExportName]; ok {
		t.Error("star re-export must not forward the default export")
	}
	if graph.HasDefaultExport(context.Background(), barrel) {
		t.Error("HasDefaultExport should report false")
	}
}

func TestExportGraphNamespaceReExport(t *testing.T) {
	dir := t.TempDir()
	writeSource(t, dir, "impl.ts", "export const x = 1;\n")
	barrel := writeSource(t, dir, "index.ts", "export * as impl from './impl';\n")

	exports := NewExportGraph(nil).ExportsOf(context.Background(), barrel)
	rec, ok := exports["impl"]
	if !ok {
		t.Fatal("expected the namespace alias")
	}
	if rec.Kind != KindNamespace {
		t.Errorf("expected namespace kind, got %v", rec.Kind)
	}
}

func TestExportGraphImportedBindingExport(t *testing.T) {
	dir := t.TempDir()
	impl := writeSource(t, dir, "impl.ts", "export default class Thing {}\n")
	front := writeSource(t, dir, "front.ts", `import thing from './impl';
export { thing };
`)

	exports := NewExportGraph(nil).ExportsOf(context.Background(), front)
	rec, ok := exports["thing"]
	if !ok {
		t.Fatal("expected thing")
	}
	if want := []string{front, impl}; !reflect.DeepEqual(rec.PathList, want) {
		t.Errorf("expected path list %v, got %v", want, rec.PathList)
	}
}

func TestExportGraphCycleTerminates(t *testing.T) {
	dir := t.TempDir()
	a := writeSource(t, dir, "a.ts", `export const alpha = 1;
export * from './b';
`)
	b := writeSource(t, dir, "b.ts", `export const beta = 2;
export * from './a';
`)

	graph := NewExportGraph(nil)
	exportsA := graph.ExportsOf(context.Background(), a)

	if _, ok := exportsA["alpha"]; !ok {
		t.Error("expected alpha on a")
	}
	if _, ok := exportsA["beta"]; !ok {
		t.Error("expected beta to flow through the star re-export")
	}

	// The back-edge resolved while a was still in flight; b keeps its own
	// exports even though it could not see a's at that moment.
	exportsB := graph.ExportsOf(context.Background(), b)
	if _, ok := exportsB["beta"]; !ok {
		t.Error("expected beta on b")
	}
}

func TestExportGraphCommonJS(t *testing.T) {
	dir := t.TempDir()
	path := writeSource(t, dir, "legacy.js", `function helper() {}
module.exports = { helper };
`)

	graph := NewExportGraph(nil)
	exports := graph.ExportsOf(context.Background(), path)

	rec, ok := exports["helper"]
	if !ok {
		t.Fatal("expected helper")
	}
	if rec.Kind != KindFunction {
		t.Errorf("expected function kind, got %v", rec.Kind)
	}
	if !graph.HasDefaultExport(context.Background(), path) {
		t.Error("module.exports assignment should count as a default export")
	}
}

func TestExportGraphInvalidate(t *testing.T) {
	dir := t.TempDir()
	path := writeSource(t, dir, "mod.ts", "export const one = 1;\n")

	graph := NewExportGraph(nil)
	if got := len(graph.ExportsOf(context.Background(), path)); got != 1 {
		t.Fatalf("expected 1 export, got %d", got)
	}

	writeSource(t, dir, "mod.ts", "export const one = 1;\nexport const two = 2;\n")
	if got := len(graph.ExportsOf(context.Background(), path)); got != 1 {
		t.Fatalf("stale cache expected until invalidation, got %d exports", got)
	}

	graph.Invalidate(path)
	if got := len(graph.ExportsOf(context.Background(), path)); got != 2 {
		t.Fatalf("expected 2 exports after invalidation, got %d", got)
	}
}

func TestSortedExportNames(t *testing.T) {
	exports := map[string]ExportRecord{
		"zebra":           {Name: "zebra"},
		"Apple":           {Name: "Apple"},
		DefaultExportName: {Name: DefaultExportName},
		"banana":          {Name: "banana"},
	}
	got := SortedExportNames(exports)
	want := []string{DefaultExportName, "Apple", "banana", "zebra"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}
