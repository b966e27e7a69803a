package main

import (
	"context"
	"fmt"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/typescript/tsx"
)

// LocalBinding is a top-level declaration of a file: its name, syntax kind
// and a short source excerpt used for display.
type LocalBinding struct {
	Name string
	Kind SyntaxKind
	Text string
}

// ImportedBinding is a local name introduced by an import (or a require
// declaration): the request it came from and which export it refers to
// ("default", "*", or a named export's original name).
type ImportedBinding struct {
	LocalName string
	Request   string
	Imported  string
}

// ExportClauseEntry is one `export { local as exported }` entry; Request is
// non-empty for re-exports (`export { a } from "x"`).
type ExportClauseEntry struct {
	Exported string
	Local    string
	Request  string
}

// NamespaceReExport is `export * as Alias from "x"`.
type NamespaceReExport struct {
	Alias   string
	Request string
}

// FileExportScan is everything the export graph needs from one file's syntax.
type FileExportScan struct {
	Locals      []LocalBinding
	Imports     []ImportedBinding
	Clauses     []ExportClauseEntry
	StarFrom    []string
	NsReExports []NamespaceReExport

	// `export default <declaration>`: the declaration itself.
	DefaultDecl *LocalBinding
	// `export default <identifier>`: the referenced name. DefaultText holds
	// the expression excerpt used when the identifier has no local binding
	// (or for non-identifier expressions).
	DefaultRef  string
	DefaultText string

	// CommonJS: `module.exports = X` and `module.exports.NAME = X`.
	CjsDefaultRef  string
	CjsDefaultText string
	CjsNamed       []ExportClauseEntry // Exported=NAME, Local=referenced name or ""
	CjsNamedText   map[string]string
}

func isTypeScriptPath(path string) bool {
	lower := strings.ToLower(path)
	return strings.HasSuffix(lower, ".ts") || strings.HasSuffix(lower, ".tsx") ||
		strings.HasSuffix(lower, ".mts") || strings.HasSuffix(lower, ".cts")
}

func newSyntaxParser(path string) *sitter.Parser {
	parser := sitter.NewParser()
	if isTypeScriptPath(path) {
		parser.SetLanguage(tsx.GetLanguage())
	} else {
		parser.SetLanguage(javascript.GetLanguage())
	}
	return parser
}

// excerpt keeps the first line of a node's text, clipped for display.
func excerpt(node *sitter.Node, source []byte) string {
	text := node.Content(source)
	if idx := strings.IndexByte(text, '\n'); idx >= 0 {
		text = text[:idx]
	}
	if len(text) > 120 {
		text = text[:120]
	}
	return strings.TrimSpace(text)
}

func nodeKey(node *sitter.Node) string {
	return fmt.Sprintf("%s:%d-%d", node.Type(), node.StartByte(), node.EndByte())
}

// FindNodesRecursively collects nodes matching pred. The visited set guards
// against re-entering a node through any path; callers pass a fresh map per
// top-level call so the walk stays referentially transparent.
func FindNodesRecursively(node *sitter.Node, pred func(*sitter.Node) bool, visited map[string]bool, out *[]*sitter.Node) {
	if node == nil {
		return
	}
	key := nodeKey(node)
	if visited[key] {
		return
	}
	visited[key] = true
	if pred(node) {
		*out = append(*out, node)
	}
	for i := 0; i < int(node.NamedChildCount()); i++ {
		FindNodesRecursively(node.NamedChild(i), pred, visited, out)
	}
}

// ScanFileExports parses text (reading from disk when nil) and extracts the
// file's declarations, import bindings, and export constructs. A nil result
// means unparsable content and is a normal outcome, not an error.
func ScanFileExports(ctx context.Context, path string, text []byte) *FileExportScan {
	tree := ParseDocument(path, text)
	if tree == nil {
		return nil
	}
	text = tree.Text

	parser := newSyntaxParser(path)
	defer parser.Close()

	syntaxTree, err := parser.ParseCtx(ctx, nil, text)
	if syntaxTree == nil || err != nil {
		return nil
	}
	defer syntaxTree.Close()

	root := syntaxTree.RootNode()
	if root == nil {
		return nil
	}

	scan := &FileExportScan{CjsNamedText: map[string]string{}}

	for i := 0; i < int(root.NamedChildCount()); i++ {
		child := root.NamedChild(i)
		switch child.Type() {
		case "import_statement":
			scan.collectImportBindings(child, text)
		case "export_statement":
			scan.collectExportStatement(child, text)
		case "lexical_declaration", "variable_declaration":
			scan.collectVariableDeclaration(child, text)
		case "function_declaration", "generator_function_declaration":
			scan.addNamedLocal(child, text, KindFunction)
		case "class_declaration", "abstract_class_declaration":
			scan.addNamedLocal(child, text, KindClass)
		case "interface_declaration":
			scan.addNamedLocal(child, text, KindInterface)
		case "type_alias_declaration":
			scan.addNamedLocal(child, text, KindTypeAlias)
		case "enum_declaration":
			scan.addNamedLocal(child, text, KindEnum)
		case "internal_module", "module":
			scan.addNamedLocal(child, text, KindNamespace)
		}
	}

	scan.collectCommonJS(root, text)

	return scan
}

func (scan *FileExportScan) addNamedLocal(node *sitter.Node, text []byte, kind SyntaxKind) {
	name := node.ChildByFieldName("name")
	if name == nil {
		return
	}
	scan.Locals = append(scan.Locals, LocalBinding{
		Name: name.Content(text),
		Kind: kind,
		Text: excerpt(node, text),
	})
}

func (scan *FileExportScan) collectVariableDeclaration(node *sitter.Node, text []byte) {
	for i := 0; i < int(node.NamedChildCount()); i++ {
		declarator := node.NamedChild(i)
		if declarator.Type() != "variable_declarator" {
			continue
		}
		nameNode := declarator.ChildByFieldName("name")
		if nameNode == nil {
			continue
		}
		switch nameNode.Type() {
		case "identifier":
			name := nameNode.Content(text)
			if req, imported, ok := requireTarget(declarator.ChildByFieldName("value"), text); ok {
				scan.Imports = append(scan.Imports, ImportedBinding{LocalName: name, Request: req, Imported: imported})
				continue
			}
			scan.Locals = append(scan.Locals, LocalBinding{Name: name, Kind: KindVariable, Text: excerpt(declarator, text)})
		case "object_pattern", "array_pattern":
			if req, _, ok := requireTarget(declarator.ChildByFieldName("value"), text); ok {
				for _, bound := range patternNames(nameNode, text) {
					scan.Imports = append(scan.Imports, ImportedBinding{LocalName: bound.local, Request: req, Imported: bound.property})
				}
				continue
			}
			for _, bound := range patternNames(nameNode, text) {
				scan.Locals = append(scan.Locals, LocalBinding{Name: bound.local, Kind: KindVariable, Text: excerpt(declarator, text)})
			}
		}
	}
}

type patternName struct {
	local    string
	property string
}

// patternNames flattens a destructuring pattern into bound names. property
// is the source property for object patterns, matching the local name for
// shorthand and array entries.
func patternNames(pattern *sitter.Node, text []byte) []patternName {
	var out []patternName
	for i := 0; i < int(pattern.NamedChildCount()); i++ {
		entry := pattern.NamedChild(i)
		switch entry.Type() {
		case "shorthand_property_identifier_pattern", "identifier":
			name := entry.Content(text)
			out = append(out, patternName{local: name, property: name})
		case "pair_pattern":
			key := entry.ChildByFieldName("key")
			value := entry.ChildByFieldName("value")
			if key == nil || value == nil {
				continue
			}
			if value.Type() == "identifier" {
				out = append(out, patternName{local: value.Content(text), property: key.Content(text)})
			} else if value.Type() == "object_pattern" || value.Type() == "array_pattern" {
				out = append(out, patternNames(value, text)...)
			}
		case "object_assignment_pattern", "assignment_pattern":
			left := entry.ChildByFieldName("left")
			if left != nil && (left.Type() == "identifier" || left.Type() == "shorthand_property_identifier_pattern") {
				name := left.Content(text)
				out = append(out, patternName{local: name, property: name})
			}
		case "rest_pattern":
			if entry.NamedChildCount() > 0 && entry.NamedChild(0).Type() == "identifier" {
				name := entry.NamedChild(0).Content(text)
				out = append(out, patternName{local: name, property: name})
			}
		}
	}
	return out
}

// requireTarget recognizes `require("m")` and `require("m").prop` values.
func requireTarget(value *sitter.Node, text []byte) (request string, imported string, ok bool) {
	if value == nil {
		return "", "", false
	}
	if value.Type() == "member_expression" {
		object := value.ChildByFieldName("object")
		property := value.ChildByFieldName("property")
		if object != nil && property != nil {
			if req, _, isReq := requireTarget(object, text); isReq {
				return req, property.Content(text), true
			}
		}
		return "", "", false
	}
	if value.Type() != "call_expression" {
		return "", "", false
	}
	fn := value.ChildByFieldName("function")
	args := value.ChildByFieldName("arguments")
	if fn == nil || args == nil || fn.Type() != "identifier" || fn.Content(text) != "require" {
		return "", "", false
	}
	for i := 0; i < int(args.NamedChildCount()); i++ {
		arg := args.NamedChild(i)
		if arg.Type() == "string" {
			return stringNodeValue(arg, text), "default", true
		}
	}
	return "", "", false
}

func stringNodeValue(node *sitter.Node, text []byte) string {
	raw := node.Content(text)
	return strings.Trim(raw, "\"'`")
}

func (scan *FileExportScan) collectImportBindings(node *sitter.Node, text []byte) {
	source := node.ChildByFieldName("source")
	if source == nil {
		return
	}
	request := stringNodeValue(source, text)

	for i := 0; i < int(node.NamedChildCount()); i++ {
		clause := node.NamedChild(i)
		if clause.Type() != "import_clause" {
			continue
		}
		for j := 0; j < int(clause.NamedChildCount()); j++ {
			spec := clause.NamedChild(j)
			switch spec.Type() {
			case "identifier":
				scan.Imports = append(scan.Imports, ImportedBinding{LocalName: spec.Content(text), Request: request, Imported: "default"})
			case "namespace_import":
				for k := 0; k < int(spec.NamedChildCount()); k++ {
					if spec.NamedChild(k).Type() == "identifier" {
						scan.Imports = append(scan.Imports, ImportedBinding{LocalName: spec.NamedChild(k).Content(text), Request: request, Imported: "*"})
					}
				}
			case "named_imports":
				for k := 0; k < int(spec.NamedChildCount()); k++ {
					importSpec := spec.NamedChild(k)
					if importSpec.Type() != "import_specifier" {
						continue
					}
					nameNode := importSpec.ChildByFieldName("name")
					if nameNode == nil {
						continue
					}
					local := nameNode.Content(text)
					if alias := importSpec.ChildByFieldName("alias"); alias != nil {
						local = alias.Content(text)
					}
					scan.Imports = append(scan.Imports, ImportedBinding{LocalName: local, Request: request, Imported: nameNode.Content(text)})
				}
			}
		}
	}
}

func exportStatementHasDefault(node *sitter.Node) bool {
	for i := 0; i < int(node.ChildCount()); i++ {
		if node.Child(i).Type() == "default" {
			return true
		}
	}
	return false
}

func exportStatementHasStar(node *sitter.Node) bool {
	for i := 0; i < int(node.ChildCount()); i++ {
		if node.Child(i).Type() == "*" {
			return true
		}
	}
	return false
}

func (scan *FileExportScan) collectExportStatement(node *sitter.Node, text []byte) {
	var request string
	if source := node.ChildByFieldName("source"); source != nil {
		request = stringNodeValue(source, text)
	}

	// `export * from "x"` and `export * as ns from "x"`.
	if request != "" {
		for i := 0; i < int(node.NamedChildCount()); i++ {
			child := node.NamedChild(i)
			if child.Type() == "namespace_export" {
				for k := 0; k < int(child.NamedChildCount()); k++ {
					if child.NamedChild(k).Type() == "identifier" {
						scan.NsReExports = append(scan.NsReExports, NamespaceReExport{
							Alias:   child.NamedChild(k).Content(text),
							Request: request,
						})
						return
					}
				}
			}
		}
		if exportStatementHasStar(node) {
			scan.StarFrom = append(scan.StarFrom, request)
			return
		}
	}

	// `export { a, b as c } [from "x"]`.
	for i := 0; i < int(node.NamedChildCount()); i++ {
		child := node.NamedChild(i)
		if child.Type() != "export_clause" {
			continue
		}
		for j := 0; j < int(child.NamedChildCount()); j++ {
			spec := child.NamedChild(j)
			if spec.Type() != "export_specifier" {
				continue
			}
			nameNode := spec.ChildByFieldName("name")
			if nameNode == nil {
				continue
			}
			exported := nameNode.Content(text)
			local := exported
			if alias := spec.ChildByFieldName("alias"); alias != nil {
				exported = alias.Content(text)
			}
			scan.Clauses = append(scan.Clauses, ExportClauseEntry{Exported: exported, Local: local, Request: request})
		}
		return
	}

	isDefault := exportStatementHasDefault(node)

	if decl := node.ChildByFieldName("declaration"); decl != nil {
		kind := KindUnknown
		switch decl.Type() {
		case "function_declaration", "generator_function_declaration":
			kind = KindFunction
		case "class_declaration", "abstract_class_declaration":
			kind = KindClass
		case "interface_declaration":
			kind = KindInterface
		case "type_alias_declaration":
			kind = KindTypeAlias
		case "enum_declaration":
			kind = KindEnum
		case "lexical_declaration", "variable_declaration":
			// `export const a = 1, b = 2`.
			for i := 0; i < int(decl.NamedChildCount()); i++ {
				declarator := decl.NamedChild(i)
				if declarator.Type() != "variable_declarator" {
					continue
				}
				nameNode := declarator.ChildByFieldName("name")
				if nameNode == nil {
					continue
				}
				if nameNode.Type() == "identifier" {
					scan.exportLocalDecl(LocalBinding{Name: nameNode.Content(text), Kind: KindVariable, Text: excerpt(declarator, text)})
				} else {
					for _, bound := range patternNames(nameNode, text) {
						scan.exportLocalDecl(LocalBinding{Name: bound.local, Kind: KindVariable, Text: excerpt(declarator, text)})
					}
				}
			}
			return
		case "internal_module", "module":
			kind = KindNamespace
		}

		name := ""
		if nameNode := decl.ChildByFieldName("name"); nameNode != nil {
			name = nameNode.Content(text)
		}
		binding := LocalBinding{Name: name, Kind: kind, Text: excerpt(decl, text)}
		if isDefault {
			scan.DefaultDecl = &binding
			if name != "" {
				// A named default declaration is also addressable locally.
				scan.Locals = append(scan.Locals, binding)
			}
		} else if name != "" {
			scan.exportLocalDecl(binding)
		}
		return
	}

	if isDefault {
		if value := node.ChildByFieldName("value"); value != nil {
			if value.Type() == "identifier" {
				scan.DefaultRef = value.Content(text)
			}
			scan.DefaultText = excerpt(value, text)
			return
		}
		// Grammar variants expose the defaulted expression as a plain child.
		for i := 0; i < int(node.NamedChildCount()); i++ {
			child := node.NamedChild(i)
			if strings.HasSuffix(child.Type(), "expression") || child.Type() == "identifier" ||
				child.Type() == "number" || child.Type() == "string" || child.Type() == "object" || child.Type() == "array" {
				if child.Type() == "identifier" {
					scan.DefaultRef = child.Content(text)
				}
				scan.DefaultText = excerpt(child, text)
				return
			}
		}
	}
}

// exportLocalDecl records a declaration that is exported where it is
// declared: both a local binding and an export clause pointing at itself.
func (scan *FileExportScan) exportLocalDecl(binding LocalBinding) {
	scan.Locals = append(scan.Locals, binding)
	scan.Clauses = append(scan.Clauses, ExportClauseEntry{Exported: binding.Name, Local: binding.Name})
}

// collectCommonJS finds `module.exports = X` and `module.exports.NAME = X`
// assignments anywhere in the file; bundled output and conditional exports
// hide them below the top level.
func (scan *FileExportScan) collectCommonJS(root *sitter.Node, text []byte) {
	var assignments []*sitter.Node
	FindNodesRecursively(root, func(n *sitter.Node) bool {
		return n.Type() == "assignment_expression"
	}, map[string]bool{}, &assignments)

	for _, assignment := range assignments {
		left := assignment.ChildByFieldName("left")
		right := assignment.ChildByFieldName("right")
		if left == nil || right == nil || left.Type() != "member_expression" {
			continue
		}

		object := left.ChildByFieldName("object")
		property := left.ChildByFieldName("property")
		if object == nil || property == nil {
			continue
		}

		if object.Type() == "identifier" && object.Content(text) == "module" && property.Content(text) == "exports" {
			if right.Type() == "identifier" {
				scan.CjsDefaultRef = right.Content(text)
			}
			scan.CjsDefaultText = excerpt(right, text)
			// `module.exports = { a, b }` exports each property by name.
			if right.Type() == "object" {
				for i := 0; i < int(right.NamedChildCount()); i++ {
					prop := right.NamedChild(i)
					switch prop.Type() {
					case "shorthand_property_identifier":
						name := prop.Content(text)
						scan.CjsNamed = append(scan.CjsNamed, ExportClauseEntry{Exported: name, Local: name})
					case "pair":
						key := prop.ChildByFieldName("key")
						value := prop.ChildByFieldName("value")
						if key == nil {
							continue
						}
						local := ""
						if value != nil && value.Type() == "identifier" {
							local = value.Content(text)
						}
						name := strings.Trim(key.Content(text), "\"'")
						scan.CjsNamed = append(scan.CjsNamed, ExportClauseEntry{Exported: name, Local: local})
						if value != nil {
							scan.CjsNamedText[name] = excerpt(value, text)
						}
					}
				}
			}
			continue
		}

		// module.exports.NAME = X
		if object.Type() == "member_expression" {
			innerObject := object.ChildByFieldName("object")
			innerProperty := object.ChildByFieldName("property")
			if innerObject != nil && innerProperty != nil &&
				innerObject.Type() == "identifier" && innerObject.Content(text) == "module" &&
				innerProperty.Content(text) == "exports" {
				name := property.Content(text)
				local := ""
				if right.Type() == "identifier" {
					local = right.Content(text)
				}
				scan.CjsNamed = append(scan.CjsNamed, ExportClauseEntry{Exported: name, Local: local})
				scan.CjsNamedText[name] = excerpt(right, text)
			}
		}
	}
}
