package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/manifoldco/promptui"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"github.com/spf13/cobra/doc"
)

var (
	currentDir, _ = os.Getwd()
	rootCmd       = &cobra.Command{
		Use:   "auto-import",
		Short: "Insert, fix and convert import statements in JavaScript/TypeScript/Stylus projects",
		Long: `An import assistant for JavaScript, TypeScript and Stylus codebases.
Scans the workspace for exported identifiers, node modules and stylesheets,
then inserts imports matching the project's own conventions, repairs broken
import paths and converts require calls to import syntax.`,
		Version: Version,
	}
)

var docsCmd = &cobra.Command{
	Use:   "doc-gen",
	Short: "Generate CLI documentation",
	RunE: func(cmd *cobra.Command, args []string) error {
		err := doc.GenMarkdownTree(rootCmd, "./docs")
		if err != nil {
			log.Fatal(err)
		}
		return nil
	},
}

// ---------------- shared flags ----------------

var (
	flagCwd        string
	flagConfigPath string
)

func addSharedFlags(command *cobra.Command) {
	command.Flags().StringVar(&flagCwd, "cwd", "", "Working directory (default: current directory)")
	command.Flags().StringVar(&flagConfigPath, "config", "", "Path to auto-import.config.json (default: <cwd>)")
}

func resolveCwd() string {
	if flagCwd == "" {
		return currentDir
	}
	if filepath.IsAbs(flagCwd) {
		return flagCwd
	}
	return filepath.Join(currentDir, flagCwd)
}

func loadCatalog() (*Catalog, error) {
	cwd := resolveCwd()
	configPath := flagConfigPath
	if configPath == "" {
		configPath = cwd
	}
	configs, err := LoadConfig(configPath)
	if err != nil {
		return nil, err
	}
	return NewCatalog(cwd, configs), nil
}

func scanWithProgress(ctx context.Context, catalog *Catalog) error {
	bar := progressbar.NewOptions(-1,
		progressbar.OptionSetDescription("scanning workspace"),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionSetWriter(os.Stderr),
	)
	done := make(chan error, 1)
	go func() { done <- catalog.SetItems(ctx) }()
	for {
		select {
		case err := <-done:
			_ = bar.Finish()
			fmt.Fprintln(os.Stderr)
			return err
		case <-time.After(120 * time.Millisecond):
			_ = bar.Add(1)
		}
	}
}

// ---------------- scan ----------------

var scanCmd = &cobra.Command{
	Use:     "scan",
	Short:   "Scan the workspace and report importable items",
	Example: "auto-import scan --cwd ./my-project",
	RunE: func(cmd *cobra.Command, args []string) error {
		catalog, err := loadCatalog()
		if err != nil {
			return err
		}
		if err := scanWithProgress(cmd.Context(), catalog); err != nil {
			return err
		}

		fileItems := catalog.FileItemsSnapshot()
		itemCount := 0
		for _, items := range fileItems {
			itemCount += len(items)
		}

		green := color.New(color.FgGreen).SprintFunc()
		fmt.Printf("%s %d exported identifiers across %d files\n", green("found"), itemCount, len(fileItems))
		if index := catalog.PackageIndex(); index != nil {
			for _, m := range index.Manifests() {
				name := m.Name
				if name == "" {
					name = m.DirPath
				}
				fmt.Printf("  %s (%s)\n", name, m.PackageManager)
			}
		}
		return nil
	},
}

// ---------------- add ----------------

var (
	addFile string
	addName string
	addKind string
	addDry  bool
)

var addCmd = &cobra.Command{
	Use:     "add",
	Short:   "Add an import of a workspace export or node module to a file",
	Example: "auto-import add -f src/app.ts -n useStore",
	RunE: func(cmd *cobra.Command, args []string) error {
		catalog, err := loadCatalog()
		if err != nil {
			return err
		}
		ctx := cmd.Context()
		if err := scanWithProgress(ctx, catalog); err != nil {
			return err
		}

		documentPath := NormalizePathForInternal(filepath.Join(resolveCwd(), addFile))
		items := OrderedItems(catalog.GetItems(documentPath))
		if addName != "" {
			var filtered []CatalogItem
			for _, item := range items {
				if item.Name == addName {
					filtered = append(filtered, item)
				}
			}
			items = filtered
		}
		if len(items) == 0 {
			return fmt.Errorf("no importable item named %q for %s", addName, addFile)
		}

		item := items[0]
		if len(items) > 1 {
			labels := make([]string, len(items))
			for i, it := range items {
				labels[i] = fmt.Sprintf("%s  (%s from %s)", it.Name, it.Kind, it.SourcePath())
			}
			prompt := promptui.Select{Label: "Select item", Items: labels, Size: 12}
			idx, _, err := prompt.Run()
			if err != nil {
				return err
			}
			item = items[idx]
		}

		if item.Kind == ItemStylusFile {
			return applyMutation(documentPath, AddStylusImport(catalog, documentPath, item, false))
		}

		kind := bindKindForItem(item, addKind)
		cfg := ConfigForPath(catalog.configs, catalog.cwd, documentPath)
		result := AddImport(ctx, catalog, cfg, documentPath, item, kind, nil)
		if result.Outcome == MergeNeedsRename && !addDry {
			return resolveNameCollision(ctx, catalog, cfg, documentPath, item, kind, result)
		}
		return applyMutation(documentPath, result)
	},
}

// resolveNameCollision offers the two ways out of a binding-name clash:
// pick a different local name for the new import, or leave the document
// untouched so the existing import can be renamed first.
func resolveNameCollision(ctx context.Context, catalog *Catalog, cfg *AutoImportConfig, documentPath string, item CatalogItem, kind ImportBindingKind, result MutationResult) error {
	fmt.Println(color.New(color.FgYellow).Sprint(result.Message))

	options := []string{
		"Import under a different name",
		"Rename the existing import first",
	}
	choice := promptui.Select{Label: "Resolve the name clash", Items: options}
	idx, _, err := choice.Run()
	if err != nil {
		return err
	}
	if idx == 1 {
		if result.FocusOffset >= 0 {
			fmt.Printf("the conflicting clause is at byte offset %d in %s\n", result.FocusOffset, documentPath)
		}
		return nil
	}

	prompt := promptui.Prompt{Label: "New local name", Validate: validImportName}
	newName, err := prompt.Run()
	if err != nil {
		return err
	}
	item.Name = newName
	return applyMutation(documentPath, AddImport(ctx, catalog, cfg, documentPath, item, kind, nil))
}

func validImportName(name string) error {
	if name == "" {
		return fmt.Errorf("name must not be empty")
	}
	if name[0] >= '0' && name[0] <= '9' {
		return fmt.Errorf("name must not start with a digit")
	}
	for i := 0; i < len(name); i++ {
		if !isByteIdentifierChar(name[i]) {
			return fmt.Errorf("invalid character %q", name[i])
		}
	}
	return nil
}

func bindKindForItem(item CatalogItem, override string) ImportBindingKind {
	switch override {
	case "default":
		return BindDefault
	case "namespace":
		return BindNamespace
	case "named":
		return BindNamed
	}
	switch item.Kind {
	case ItemFileDefaultExport, ItemNodeModule:
		return BindDefault
	default:
		return BindNamed
	}
}

func applyMutation(documentPath string, result MutationResult) error {
	yellow := color.New(color.FgYellow).SprintFunc()
	switch result.Outcome {
	case MergeApplied:
		if addDry {
			for _, c := range result.Changes {
				fmt.Printf("would insert at %d: %q\n", c.Start, c.Text)
			}
			return nil
		}
		if err := ApplyFileChanges(map[string][]Change{documentPath: result.Changes}); err != nil {
			return err
		}
		fmt.Println(color.New(color.FgGreen).Sprint("import added"))
		return nil
	case MergeAlreadyExists:
		fmt.Println(yellow(result.Message))
		return nil
	case MergeNeedsRename:
		fmt.Println(yellow(result.Message))
		fmt.Println("rename one of the identifiers and retry")
		return nil
	default:
		return fmt.Errorf("%s", result.Message)
	}
}

// ---------------- fix ----------------

var (
	fixFile string
	fixAuto bool
)

var fixCmd = &cobra.Command{
	Use:     "fix",
	Short:   "Repair broken relative import paths in a file",
	Example: "auto-import fix -f src/app.ts",
	RunE: func(cmd *cobra.Command, args []string) error {
		catalog, err := loadCatalog()
		if err != nil {
			return err
		}
		documentPath := NormalizePathForInternal(filepath.Join(resolveCwd(), fixFile))

		choose := promptChoose
		if fixAuto {
			choose = nil
		}

		var outcome FixOutcome
		if hasStylusExtension(filepath.Base(documentPath)) {
			outcome = FixStylusImports(cmd.Context(), catalog, documentPath, choose)
		} else {
			outcome = FixImports(cmd.Context(), catalog, documentPath, choose)
		}

		green := color.New(color.FgGreen).SprintFunc()
		red := color.New(color.FgRed).SprintFunc()
		for _, kv := range GetSortedMap(outcome.Fixed) {
			fmt.Printf("%s %s -> %s\n", green("fixed"), kv.Key, kv.Value)
		}
		for _, specifier := range outcome.Unresolved {
			fmt.Printf("%s %s\n", red("unresolved"), specifier)
		}
		if outcome.Status == FixCancelled {
			fmt.Println(red("cancelled"))
		}
		if outcome.Status == FixClean {
			fmt.Println(green("nothing to fix"))
		}
		return nil
	},
}

func promptChoose(specifier string, candidates []string) (string, bool) {
	prompt := promptui.Select{
		Label: fmt.Sprintf("Multiple matches for %s", specifier),
		Items: candidates,
		Size:  12,
	}
	idx, _, err := prompt.Run()
	if err != nil {
		return "", false
	}
	return candidates[idx], true
}

// ---------------- convert ----------------

var convertFile string

var convertCmd = &cobra.Command{
	Use:     "convert",
	Short:   "Convert require declarations to import syntax",
	Example: "auto-import convert -f src/legacy.js",
	RunE: func(cmd *cobra.Command, args []string) error {
		catalog, err := loadCatalog()
		if err != nil {
			return err
		}
		documentPath := NormalizePathForInternal(filepath.Join(resolveCwd(), convertFile))
		outcome, err := ConvertRequires(cmd.Context(), catalog, documentPath)
		if err != nil {
			return err
		}
		fmt.Printf("%s %d statements\n", color.New(color.FgGreen).Sprint("converted"), outcome.Converted)
		for _, skipped := range outcome.Skipped {
			fmt.Printf("%s %s\n", color.New(color.FgYellow).Sprint("skipped"), skipped)
		}
		return nil
	},
}

// ---------------- exports ----------------

var exportsFile string

var exportsCmd = &cobra.Command{
	Use:     "exports",
	Short:   "List the identifiers a file exports, including re-exports",
	Example: "auto-import exports -f src/components/index.ts",
	RunE: func(cmd *cobra.Command, args []string) error {
		catalog, err := loadCatalog()
		if err != nil {
			return err
		}
		documentPath := NormalizePathForInternal(filepath.Join(resolveCwd(), exportsFile))
		exports := catalog.ExportGraph().ExportsOf(cmd.Context(), documentPath)
		if len(exports) == 0 {
			fmt.Println("no exports found")
			return nil
		}

		cyan := color.New(color.FgCyan).SprintFunc()
		for _, name := range SortedExportNames(exports) {
			rec := exports[name]
			display := name
			if name == DefaultExportName {
				display = "default"
				if rec.OriginalName != "" {
					display = "default (" + rec.OriginalName + ")"
				}
			}
			via := ""
			if len(rec.PathList) > 1 {
				via = " via " + strings.Join(rec.PathList[1:], " -> ")
			}
			fmt.Printf("%s  %s%s\n", cyan(display), rec.Kind, via)
		}
		return nil
	},
}

// ---------------- profile ----------------

var profileFile string

var profileCmd = &cobra.Command{
	Use:     "profile",
	Short:   "Show the import-style conventions inferred for a file",
	Example: "auto-import profile -f src/app.ts",
	RunE: func(cmd *cobra.Command, args []string) error {
		catalog, err := loadCatalog()
		if err != nil {
			return err
		}
		documentPath := NormalizePathForInternal(filepath.Join(resolveCwd(), profileFile))
		tree := ParseDocument(documentPath, nil)
		if tree == nil {
			return fmt.Errorf("cannot parse %s", profileFile)
		}
		profile := BuildDocumentProfile(tree, catalog.Probe(), ResolveCache{}, nil)

		docExt := NewFileInfo(documentPath).FileExtensionWithoutLeadingDot
		syntax := "require"
		if profile.PreferImportSyntax(docExt) {
			syntax = "import"
		}
		semi := "no semicolons"
		if profile.UseSemicolon() {
			semi = "semicolons"
		}
		fmt.Printf("syntax: %s (%d import / %d require)\n", syntax, profile.ImportCount, profile.RequireCount)
		fmt.Printf("quotes: %c (%d single / %d double)\n", profile.QuoteChar(), profile.SingleQuoteCount, profile.DoubleQuoteCount)
		fmt.Printf("termination: %s (%d with / %d without)\n", semi, profile.SemiCount, profile.NoSemiCount)
		return nil
	},
}

// ---------------- watch ----------------

var watchCmd = &cobra.Command{
	Use:     "watch",
	Short:   "Scan once, then keep the catalog current as files change",
	Example: "auto-import watch --cwd ./my-project",
	RunE: func(cmd *cobra.Command, args []string) error {
		catalog, err := loadCatalog()
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		if err := scanWithProgress(ctx, catalog); err != nil {
			return err
		}

		watcher, err := NewWatcher(ctx, catalog)
		if err != nil {
			return err
		}
		if err := watcher.AddRoot(catalog.cwd); err != nil {
			return err
		}
		fmt.Println(color.New(color.FgGreen).Sprint("watching for changes, ctrl-c to stop"))
		err = watcher.Run(ctx)
		if err == context.Canceled {
			return nil
		}
		return err
	},
}

func init() {
	addSharedFlags(scanCmd)

	addSharedFlags(addCmd)
	addCmd.Flags().StringVarP(&addFile, "file", "f", "", "File to add the import to")
	addCmd.Flags().StringVarP(&addName, "name", "n", "", "Identifier or module to import")
	addCmd.Flags().StringVar(&addKind, "kind", "", "Binding kind: default, named or namespace")
	addCmd.Flags().BoolVar(&addDry, "dry-run", false, "Print the edit instead of applying it")
	_ = addCmd.MarkFlagRequired("file")

	addSharedFlags(fixCmd)
	fixCmd.Flags().StringVarP(&fixFile, "file", "f", "", "File whose imports should be repaired")
	fixCmd.Flags().BoolVar(&fixAuto, "auto", false, "Skip ambiguous specifiers instead of prompting")
	_ = fixCmd.MarkFlagRequired("file")

	addSharedFlags(convertCmd)
	convertCmd.Flags().StringVarP(&convertFile, "file", "f", "", "File whose requires should be converted")
	_ = convertCmd.MarkFlagRequired("file")

	addSharedFlags(exportsCmd)
	exportsCmd.Flags().StringVarP(&exportsFile, "file", "f", "", "File to list exports for")
	_ = exportsCmd.MarkFlagRequired("file")

	addSharedFlags(profileCmd)
	profileCmd.Flags().StringVarP(&profileFile, "file", "f", "", "File to profile")
	_ = profileCmd.MarkFlagRequired("file")

	addSharedFlags(watchCmd)

	rootCmd.AddCommand(scanCmd, addCmd, fixCmd, convertCmd, exportsCmd, profileCmd, watchCmd, docsCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
