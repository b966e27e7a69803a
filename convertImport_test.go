package main

import (
	"context"
	"testing"
)

func TestConvertRequires(t *testing.T) {
	t.Run("default import when the target has one", func(t *testing.T) {
		dir := t.TempDir()
		writeDoc(t, dir, "impl.ts", "export default function impl() {}\n")
		doc := writeDoc(t, dir, "app.ts", "const impl = require('./impl');\n")

		outcome, err := ConvertRequires(context.Background(), NewCatalog(dir, nil), doc)
		if err != nil {
			t.Fatal(err)
		}
		if outcome.Converted != 1 {
			t.Fatalf("expected 1 conversion, got %+v", outcome)
		}
		if got, want := readBack(t, doc), "import impl from './impl';\n"; got != want {
			t.Errorf("Expected %q, got %q", want, got)
		}
	})

	t.Run("namespace import when the target has no default", func(t *testing.T) {
		dir := t.TempDir()
		writeDoc(t, dir, "utils.ts", "export const one = 1;\n")
		doc := writeDoc(t, dir, "app.ts", "const utils = require('./utils');\n")

		outcome, err := ConvertRequires(context.Background(), NewCatalog(dir, nil), doc)
		if err != nil {
			t.Fatal(err)
		}
		if outcome.Converted != 1 {
			t.Fatalf("expected 1 conversion, got %+v", outcome)
		}
		if got, want := readBack(t, doc), "import * as utils from './utils';\n"; got != want {
			t.Errorf("Expected %q, got %q", want, got)
		}
	})

	t.Run("esModuleInterop keeps the default form", func(t *testing.T) {
		dir := t.TempDir()
		writeDoc(t, dir, "tsconfig.json", `{"compilerOptions": {"esModuleInterop": true}}`)
		writeDoc(t, dir, "utils.ts", "export const one = 1;\n")
		doc := writeDoc(t, dir, "app.ts", "const utils = require('./utils');\n")

		_, err := ConvertRequires(context.Background(), NewCatalog(dir, nil), doc)
		if err != nil {
			t.Fatal(err)
		}
		if got, want := readBack(t, doc), "import utils from './utils';\n"; got != want {
			t.Errorf("Expected %q, got %q", want, got)
		}
	})

	t.Run("destructured require becomes named imports", func(t *testing.T) {
		dir := t.TempDir()
		doc := writeDoc(t, dir, "app.ts", "const { join, resolve: res } = require(\"path\")\n")

		_, err := ConvertRequires(context.Background(), NewCatalog(dir, nil), doc)
		if err != nil {
			t.Fatal(err)
		}
		if got, want := readBack(t, doc), "import { join, resolve as res } from \"path\"\n"; got != want {
			t.Errorf("Expected %q, got %q", want, got)
		}
	})

	t.Run("package require keeps the default form", func(t *testing.T) {
		dir := t.TempDir()
		doc := writeDoc(t, dir, "app.ts", "const axios = require('axios');\n")

		_, err := ConvertRequires(context.Background(), NewCatalog(dir, nil), doc)
		if err != nil {
			t.Fatal(err)
		}
		if got, want := readBack(t, doc), "import axios from 'axios';\n"; got != want {
			t.Errorf("Expected %q, got %q", want, got)
		}
	})

	t.Run("converts several statements in one pass", func(t *testing.T) {
		dir := t.TempDir()
		doc := writeDoc(t, dir, "app.ts", "const fs = require('fs');\nconst os = require('os');\nconst x = 1;\n")

		outcome, err := ConvertRequires(context.Background(), NewCatalog(dir, nil), doc)
		if err != nil {
			t.Fatal(err)
		}
		if outcome.Converted != 2 {
			t.Fatalf("expected 2 conversions, got %+v", outcome)
		}
		want := "import fs from 'fs';\nimport os from 'os';\nconst x = 1;\n"
		if got := readBack(t, doc); got != want {
			t.Errorf("Expected %q, got %q", want, got)
		}
	})

	t.Run("bare require calls stay untouched", func(t *testing.T) {
		dir := t.TempDir()
		content := "require('./register');\nconst x = 1;\n"
		doc := writeDoc(t, dir, "app.ts", content)

		outcome, err := ConvertRequires(context.Background(), NewCatalog(dir, nil), doc)
		if err != nil {
			t.Fatal(err)
		}
		if outcome.Converted != 0 {
			t.Fatalf("expected no conversions, got %+v", outcome)
		}
		if got := readBack(t, doc); got != content {
			t.Errorf("Expected %q, got %q", content, got)
		}
	})
}
