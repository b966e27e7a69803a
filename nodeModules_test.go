package main

import (
	"reflect"
	"testing"
)

func TestGetNodeModuleName(t *testing.T) {
	tests := []struct {
		request    string
		moduleName string
	}{
		{"@org/name", "@org/name"},
		{"@org/name/src/file", "@org/name"},
		{"@org/name/src/file.ts", "@org/name"},
		{"name", "name"},
		{"name/src/file", "name"},
		{"name/src/file.ts", "name"},
	}
	for _, tt := range tests {
		if got := GetNodeModuleName(tt.request); got != tt.moduleName {
			t.Errorf("GetNodeModuleName(%q) = %q, expected %q", tt.request, got, tt.moduleName)
		}
	}
}

func TestTypesPackageDir(t *testing.T) {
	tests := []struct {
		moduleName string
		expected   string
	}{
		{"lodash", "lodash"},
		{"@scope/pkg", "scope__pkg"},
		{"@babel/core", "babel__core"},
	}
	for _, tt := range tests {
		if got := typesPackageDir(tt.moduleName); got != tt.expected {
			t.Errorf("typesPackageDir(%q) = %q, expected %q", tt.moduleName, got, tt.expected)
		}
	}
}

func TestAmbientModuleCache(t *testing.T) {
	dir := t.TempDir()
	writeDoc(t, dir, "node_modules/@types/node/os.d.ts", "declare module \"os\" {\n  export function hostname(): string;\n}\n")

	cache := newAmbientModuleCache()
	roots := []string{NormalizePathForInternal(dir) + "/node_modules"}

	if got := cache.Modules(roots); !reflect.DeepEqual(got, []string{"os"}) {
		t.Fatalf("expected the ambient os module, got %v", got)
	}

	writeDoc(t, dir, "node_modules/@types/node/fs.d.ts", "declare module \"fs\" {\n  export function readFileSync(path: string): Buffer;\n}\n")
	if got := cache.Modules(roots); !reflect.DeepEqual(got, []string{"os"}) {
		t.Errorf("the memoized scan must not see new declaration files, got %v", got)
	}

	cache.Invalidate()
	if got := cache.Modules(roots); !reflect.DeepEqual(got, []string{"fs", "os"}) {
		t.Errorf("after invalidation the scan must pick up new modules, got %v", got)
	}
}
