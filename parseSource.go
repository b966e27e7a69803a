package main

import (
	"bytes"
	"os"
	"runtime"
	"sync"
)

type StatementKind uint8

const (
	StmtImport           StatementKind = iota // import ... from "m"
	StmtSideEffectImport                      // import "m"
	StmtDynamicImport                         // import("m") or a bare require("m") call
	StmtRequire                               // const X = require("m")
	StmtReExport                              // export ... from "m"
	StmtLocalExport                           // export const/function/class/{ A }/default ...
)

// SyntaxKind tags what kind of declaration an exported identifier comes from.
type SyntaxKind uint8

const (
	KindUnknown SyntaxKind = iota
	KindFunction
	KindClass
	KindInterface
	KindTypeAlias
	KindEnum
	KindVariable
	KindNamespace
)

func (k SyntaxKind) String() string {
	switch k {
	case KindFunction:
		return "function"
	case KindClass:
		return "class"
	case KindInterface:
		return "interface"
	case KindTypeAlias:
		return "type"
	case KindEnum:
		return "enum"
	case KindVariable:
		return "variable"
	case KindNamespace:
		return "namespace"
	default:
		return "unknown"
	}
}

// BindingInfo is one bound name inside an import or export clause.
// Name is "default" for default bindings and "*" for namespace bindings.
type BindingInfo struct {
	Name       string
	Alias      string
	Start      uint32 // byte offset of the binding's first token
	End        uint32 // byte offset just past the binding's last token
	Position   uint32 // 0-based position in the clause list
	CommaAfter uint32 // byte offset of `,` following this entry (0 if none)
	IsType     bool
	Kind       SyntaxKind // local exports only
}

// LocalName returns the name the binding introduces into the file scope.
func (b BindingInfo) LocalName() string {
	if b.Alias != "" {
		return b.Alias
	}
	return b.Name
}

type BindingList struct {
	Bindings []BindingInfo
	index    map[string]int
}

func (bl *BindingList) Get(name string) (BindingInfo, bool) {
	if bl.index == nil {
		bl.index = make(map[string]int, len(bl.Bindings))
		for i, b := range bl.Bindings {
			bl.index[b.Name] = i
		}
	}
	idx, ok := bl.index[name]
	if !ok {
		return BindingInfo{}, false
	}
	return bl.Bindings[idx], true
}

func (bl *BindingList) Add(b BindingInfo) {
	bl.Bindings = append(bl.Bindings, b)
	bl.index = nil
}

func (bl *BindingList) Len() int {
	if bl == nil {
		return 0
	}
	return len(bl.Bindings)
}

// ModuleStatement is one import/require/export construct found in a file,
// with enough byte offsets to anchor text edits on the original source.
type ModuleStatement struct {
	Kind     StatementKind
	Request  string
	Bindings *BindingList
	TypeOnly bool

	RequestStart uint32
	RequestEnd   uint32
	Quote        byte // quote character of the request literal, 0 when absent

	StmtStart uint32 // offset of the statement's first keyword
	StmtEnd   uint32 // offset just past the statement, including optional `;`
	Semicolon bool

	BraceStart uint32 // `{` of a named clause (0 when absent)
	BraceEnd   uint32 // just past `}` of a named clause

	// Require declarations only: `const <BindingName> = require("m")`.
	BindingName           string
	BindingIsDestructured bool

	DeclStart uint32 // local exports: where the declaration starts after `export `
}

// HasDefaultBinding reports whether the statement binds a default import.
func (m *ModuleStatement) HasDefaultBinding() (BindingInfo, bool) {
	if m.Bindings == nil {
		return BindingInfo{}, false
	}
	return m.Bindings.Get("default")
}

// HasNamespaceBinding reports whether the statement binds `* as X`.
func (m *ModuleStatement) HasNamespaceBinding() (BindingInfo, bool) {
	if m.Bindings == nil {
		return BindingInfo{}, false
	}
	return m.Bindings.Get("*")
}

// NamedBindings returns the clause entries that are plain named bindings.
func (m *ModuleStatement) NamedBindings() []BindingInfo {
	if m.Bindings == nil {
		return nil
	}
	out := make([]BindingInfo, 0, len(m.Bindings.Bindings))
	for _, b := range m.Bindings.Bindings {
		if b.Name != "default" && b.Name != "*" {
			out = append(out, b)
		}
	}
	return out
}

// DocumentTree is the parse result for one file. It exposes the module-level
// statements with precise source offsets; deeper syntax is handled by the
// export scanner.
type DocumentTree struct {
	Path       string
	Text       []byte
	EOL        string
	Statements []ModuleStatement
}

// ImportsAndRequires returns the statements that pull another module in.
func (t *DocumentTree) ImportsAndRequires() []ModuleStatement {
	out := make([]ModuleStatement, 0, len(t.Statements))
	for _, s := range t.Statements {
		switch s.Kind {
		case StmtImport, StmtSideEffectImport, StmtDynamicImport, StmtRequire:
			out = append(out, s)
		}
	}
	return out
}

// StaticImports returns only static import statements, the ones the mutation
// engine may merge into.
func (t *DocumentTree) StaticImports() []ModuleStatement {
	out := make([]ModuleStatement, 0, len(t.Statements))
	for _, s := range t.Statements {
		if s.Kind == StmtImport || s.Kind == StmtSideEffectImport {
			out = append(out, s)
		}
	}
	return out
}

// ParseDocument parses text as a JS/TS module. text may be nil, in which case
// the file is read from disk. Returns nil for unreadable or binary content;
// callers must treat a nil tree as "no imports, no exports".
func ParseDocument(path string, text []byte) *DocumentTree {
	if text == nil {
		content, err := os.ReadFile(DenormalizePathForOS(path))
		if err != nil {
			return nil
		}
		text = content
	}
	if looksBinary(text) {
		return nil
	}
	return &DocumentTree{
		Path:       NormalizePathForInternal(path),
		Text:       text,
		EOL:        DetectEOL(text),
		Statements: scanModuleStatements(text),
	}
}

func looksBinary(text []byte) bool {
	limit := len(text)
	if limit > 512 {
		limit = 512
	}
	return bytes.IndexByte(text[:limit], 0) >= 0
}

func isWhiteSpace(char byte) bool {
	return char == ' ' || char == '\t' || char == '\n' || char == '\r'
}

func skipSpaces(code []byte, i int) int {
	for i < len(code) && isWhiteSpace(code[i]) {
		i++
	}
	return i
}

func isByteIdentifierChar(char byte) bool {
	// 0-9 || A-Z || a-z || _ || $
	return (char >= '0' && char <= '9') || (char >= 'A' && char <= 'Z') || (char >= 'a' && char <= 'z') || char == '_' || char == '$'
}

func hasPrefixAt(code []byte, i int, s string) bool {
	if i < 0 || i+len(s) > len(code) {
		return false
	}
	for j := 0; j < len(s); j++ {
		if code[i+j] != s[j] {
			return false
		}
	}
	return true
}

func hasWordAt(code []byte, i int, s string) bool {
	if !hasPrefixAt(code, i, s) {
		return false
	}
	end := i + len(s)
	return end >= len(code) || !isByteIdentifierChar(code[end])
}

// parseStringLiteral extracts the string literal at position i (' or ").
func parseStringLiteral(code []byte, i int) (string, int, int, int) {
	quote := code[i]
	i++
	start := i
	for i < len(code) && code[i] != quote {
		i++
	}
	if i >= len(code) {
		return "", i, 0, 0
	}
	return string(code[start:i]), i + 1, start, i
}

// parseCallModuleArg extracts the string argument of a call like require("m")
// or import("m"), tolerating nested parentheses.
func parseCallModuleArg(code []byte, i int) (string, int, int, int) {
	i = skipSpaces(code, i)
	if i >= len(code) || code[i] != '(' {
		return "", i + 1, 0, 0
	}
	i++
	parenDepth := 1
	inString := false
	stringChar := byte(0)
	moduleStart := -1
	moduleEnd := -1
	var module []byte
	for i < len(code) {
		c := code[i]
		if !inString {
			if c == '(' {
				parenDepth++
				i++
				continue
			}
			if c == ')' {
				parenDepth--
				i++
				if parenDepth == 0 {
					break
				}
				continue
			}
			if c == '\'' || c == '"' {
				inString = true
				stringChar = c
				moduleStart = i + 1
				i++
				continue
			}
			next := skipSpaces(code, i)
			if next == i {
				// Not a plain string argument; bail out.
				return "", i, 0, 0
			}
			i = next
			continue
		}
		if c == stringChar {
			inString = false
			moduleEnd = i
			i++
			continue
		}
		module = append(module, c)
		i++
	}
	if moduleStart == -1 || moduleEnd == -1 {
		return "", i, 0, 0
	}
	return string(module), i, moduleStart, moduleEnd
}

func skipToStringEnd(code []byte, start int, quote byte) int {
	i := start + 1
	for i < len(code) {
		if code[i] == quote {
			return i
		}
		if code[i] == '\\' && i+1 < len(code) {
			i += 2
		} else {
			i++
		}
	}
	return i
}

func skipLineComment(code []byte, start int) int {
	i := start + 2
	for i < len(code) && code[i] != '\n' {
		i++
	}
	return i
}

func skipBlockComment(code []byte, start int) int {
	i := start + 2
	for i+1 < len(code) && !(code[i] == '*' && code[i+1] == '/') {
		i++
	}
	if i+1 < len(code) {
		i += 2
	}
	return i
}

func skipSpacesAndComments(code []byte, i int) int {
	n := len(code)
	for i < n {
		i = skipSpaces(code, i)
		if i+1 < n && code[i] == '/' && code[i+1] == '/' {
			i = skipLineComment(code, i)
			continue
		}
		if i+1 < n && code[i] == '/' && code[i+1] == '*' {
			i = skipBlockComment(code, i)
			continue
		}
		break
	}
	return i
}

// skipOptionalSemicolon skips spaces/tabs then `;` if present. Returns the
// position after `;`, or i unchanged when there is none.
func skipOptionalSemicolon(code []byte, i int) int {
	n := len(code)
	j := i
	for j < n && (code[j] == ' ' || code[j] == '\t') {
		j++
	}
	if j < n && code[j] == ';' {
		return j + 1
	}
	return i
}

func parseIdentifier(code []byte, i int) (name string, next int, start int, end int) {
	n := len(code)
	if i >= n || !isByteIdentifierChar(code[i]) {
		return "", i, i, i
	}
	start = i
	for i < n && isByteIdentifierChar(code[i]) {
		i++
	}
	return string(code[start:i]), i, start, i
}

// parseImportBindings parses the clause of an import statement, everything
// between `import [type]` and `from`. Returns nil for side-effect and
// dynamic imports.
func parseImportBindings(code []byte, i int, typeOnly bool) (bindings *BindingList, next int) {
	n := len(code)
	bindings = &BindingList{Bindings: make([]BindingInfo, 0, 2)}
	position := 0

	i = skipSpacesAndComments(code, i)
	if i >= n {
		return bindings, i
	}

	if code[i] == '"' || code[i] == '\'' || code[i] == '(' {
		return nil, i
	}

	// Namespace clause: `* as Name`
	if code[i] == '*' {
		starStart := i
		i++
		i = skipSpacesAndComments(code, i)
		if hasWordAt(code, i, "as") {
			i += 2
			i = skipSpacesAndComments(code, i)
			alias, after, _, aliasEnd := parseIdentifier(code, i)
			if alias != "" {
				bindings.Add(BindingInfo{
					Name:     "*",
					Alias:    alias,
					IsType:   typeOnly,
					Start:    uint32(starStart),
					End:      uint32(aliasEnd),
					Position: uint32(position),
				})
			}
			return bindings, after
		}
		return bindings, i
	}

	// Named clause: `{ A, B as C, type D }`
	if code[i] == '{' {
		i++
		for i < n {
			i = skipSpacesAndComments(code, i)
			if i >= n || code[i] == '}' {
				i++
				break
			}

			isType := typeOnly
			entryStart := i

			if hasWordAt(code, i, "type") {
				// `type` may be an inline modifier or an identifier itself.
				saved := i
				i += 4
				i = skipSpacesAndComments(code, i)
				if i < n && (isByteIdentifierChar(code[i]) || code[i] == '"' || code[i] == '\'') {
					isType = true
					entryStart = saved
				} else {
					i = saved
				}
			}

			name := ""
			nameEnd := i
			if i < n && (code[i] == '"' || code[i] == '\'') {
				name, i, _, _ = parseStringLiteral(code, i)
				nameEnd = i
			} else {
				var after int
				name, after, _, nameEnd = parseIdentifier(code, i)
				if name == "" {
					i = after + 1
					continue
				}
				i = after
			}
			i = skipSpacesAndComments(code, i)

			alias := ""
			aliasEnd := nameEnd
			if hasWordAt(code, i, "as") {
				i += 2
				i = skipSpacesAndComments(code, i)
				alias, i, _, aliasEnd = parseIdentifier(code, i)
			}
			bindings.Add(BindingInfo{
				Name:     name,
				Alias:    alias,
				IsType:   isType,
				Start:    uint32(entryStart),
				End:      uint32(aliasEnd),
				Position: uint32(position),
			})
			position++

			i = skipSpacesAndComments(code, i)
			if i < n && code[i] == ',' {
				bindings.Bindings[len(bindings.Bindings)-1].CommaAfter = uint32(i)
				i++
			}
		}
		i = skipSpacesAndComments(code, i)
		return bindings, i
	}

	// Default clause: `Name` or `Name, { A }` or `Name, * as Ns`
	name, after, nameStart, nameEnd := parseIdentifier(code, i)
	if name == "" {
		return nil, i
	}
	i = after

	bindings.Add(BindingInfo{
		Name:     "default",
		Alias:    name,
		IsType:   typeOnly,
		Start:    uint32(nameStart),
		End:      uint32(nameEnd),
		Position: uint32(position),
	})
	position++

	i = skipSpacesAndComments(code, i)
	if i < n && code[i] == ',' {
		bindings.Bindings[len(bindings.Bindings)-1].CommaAfter = uint32(i)
		i++
		i = skipSpacesAndComments(code, i)

		if i < n && code[i] == '*' {
			starStart := i
			i++
			i = skipSpacesAndComments(code, i)
			if hasWordAt(code, i, "as") {
				i += 2
				i = skipSpacesAndComments(code, i)
				alias, after, _, aliasEnd := parseIdentifier(code, i)
				if alias != "" {
					bindings.Add(BindingInfo{
						Name:     "*",
						Alias:    alias,
						IsType:   typeOnly,
						Start:    uint32(starStart),
						End:      uint32(aliasEnd),
						Position: uint32(position),
					})
				}
				i = after
			}
		} else if i < n && code[i] == '{' {
			inner, innerNext := parseImportBindings(code, i, typeOnly)
			if inner != nil {
				for _, b := range inner.Bindings {
					b.Position = uint32(position)
					bindings.Add(b)
					position++
				}
			}
			i = innerNext
		}
	}

	return bindings, i
}

// parseExportBindings parses the clause of an export statement:
// `{ A, B as C }`, `*`, or `* as Name`. Returns the brace span for named
// clauses (0,0 for star exports).
func parseExportBindings(code []byte, i int, typeOnly bool) (bindings *BindingList, braceStart int, braceEnd int, next int) {
	n := len(code)
	bindings = &BindingList{Bindings: make([]BindingInfo, 0, 2)}
	position := 0

	i = skipSpacesAndComments(code, i)
	if i >= n {
		return bindings, 0, 0, i
	}

	if code[i] == '*' {
		starStart := i
		i++
		i = skipSpacesAndComments(code, i)
		alias := ""
		aliasEnd := starStart + 1
		if hasWordAt(code, i, "as") {
			i += 2
			i = skipSpacesAndComments(code, i)
			alias, i, _, aliasEnd = parseIdentifier(code, i)
		}
		bindings.Add(BindingInfo{
			Name:     "*",
			Alias:    alias,
			IsType:   typeOnly,
			Start:    uint32(starStart),
			End:      uint32(aliasEnd),
			Position: uint32(position),
		})
		return bindings, 0, 0, i
	}

	if code[i] == '{' {
		braceStart = i
		i++
		for i < n {
			i = skipSpacesAndComments(code, i)
			if i >= n || code[i] == '}' {
				i++
				braceEnd = i
				break
			}

			isType := typeOnly
			entryStart := i
			if hasWordAt(code, i, "type") {
				saved := i
				i += 4
				i = skipSpacesAndComments(code, i)
				if i < n && (isByteIdentifierChar(code[i]) || code[i] == '"' || code[i] == '\'') {
					isType = true
					entryStart = saved
				} else {
					i = saved
				}
			}

			name := ""
			nameEnd := i
			if i < n && (code[i] == '"' || code[i] == '\'') {
				name, i, _, _ = parseStringLiteral(code, i)
				nameEnd = i
			} else {
				var after int
				name, after, _, nameEnd = parseIdentifier(code, i)
				if name == "" {
					i = after + 1
					continue
				}
				i = after
			}
			i = skipSpacesAndComments(code, i)

			alias := ""
			aliasEnd := nameEnd
			if hasWordAt(code, i, "as") {
				i += 2
				i = skipSpacesAndComments(code, i)
				alias, i, _, aliasEnd = parseIdentifier(code, i)
			}
			bindings.Add(BindingInfo{
				Name:     name,
				Alias:    alias,
				IsType:   isType,
				Start:    uint32(entryStart),
				End:      uint32(aliasEnd),
				Position: uint32(position),
			})
			position++

			i = skipSpacesAndComments(code, i)
			if i < n && code[i] == ',' {
				bindings.Bindings[len(bindings.Bindings)-1].CommaAfter = uint32(i)
				i++
			}
		}
		return bindings, braceStart, braceEnd, i
	}

	return bindings, 0, 0, i
}

// parseLocalExportBinding reads the declared name right after `export `:
// default, const/let/var, [async] function, class, namespace/module, type,
// interface, enum. The returned binding carries the declaration's syntax kind.
func parseLocalExportBinding(code []byte, i int) (binding BindingInfo, next int) {
	n := len(code)
	i = skipSpacesAndComments(code, i)
	if i >= n {
		return BindingInfo{}, i
	}

	if hasWordAt(code, i, "default") {
		return BindingInfo{Name: "default", Start: uint32(i), End: uint32(i + 7)}, i + 7
	}

	for _, kw := range []string{"const", "let", "var"} {
		if hasWordAt(code, i, kw) {
			j := skipSpacesAndComments(code, i+len(kw))
			name, after, nameStart, nameEnd := parseIdentifier(code, j)
			if name != "" {
				return BindingInfo{Name: name, Kind: KindVariable, Start: uint32(nameStart), End: uint32(nameEnd)}, after
			}
			return BindingInfo{}, j
		}
	}

	if hasWordAt(code, i, "async") {
		j := skipSpacesAndComments(code, i+5)
		if hasWordAt(code, j, "function") {
			j = skipSpacesAndComments(code, j+8)
			if j < n && code[j] == '*' {
				j = skipSpacesAndComments(code, j+1)
			}
			name, after, nameStart, nameEnd := parseIdentifier(code, j)
			if name != "" {
				return BindingInfo{Name: name, Kind: KindFunction, Start: uint32(nameStart), End: uint32(nameEnd)}, after
			}
			return BindingInfo{}, j
		}
	}

	if hasWordAt(code, i, "function") {
		j := skipSpacesAndComments(code, i+8)
		if j < n && code[j] == '*' {
			j = skipSpacesAndComments(code, j+1)
		}
		name, after, nameStart, nameEnd := parseIdentifier(code, j)
		if name != "" {
			return BindingInfo{Name: name, Kind: KindFunction, Start: uint32(nameStart), End: uint32(nameEnd)}, after
		}
		return BindingInfo{}, j
	}

	if hasWordAt(code, i, "class") {
		j := skipSpacesAndComments(code, i+5)
		name, after, nameStart, nameEnd := parseIdentifier(code, j)
		if name != "" {
			return BindingInfo{Name: name, Kind: KindClass, Start: uint32(nameStart), End: uint32(nameEnd)}, after
		}
		return BindingInfo{}, j
	}

	for _, kw := range []string{"namespace", "module"} {
		if hasWordAt(code, i, kw) {
			j := skipSpacesAndComments(code, i+len(kw))
			name, after, nameStart, nameEnd := parseIdentifier(code, j)
			if name != "" {
				return BindingInfo{Name: name, Kind: KindNamespace, Start: uint32(nameStart), End: uint32(nameEnd)}, after
			}
			return BindingInfo{}, j
		}
	}

	for kw, kind := range map[string]SyntaxKind{"type": KindTypeAlias, "interface": KindInterface, "enum": KindEnum} {
		if hasWordAt(code, i, kw) {
			j := skipSpacesAndComments(code, i+len(kw))
			name, after, nameStart, nameEnd := parseIdentifier(code, j)
			if name != "" {
				return BindingInfo{Name: name, IsType: true, Kind: kind, Start: uint32(nameStart), End: uint32(nameEnd)}, after
			}
			return BindingInfo{}, j
		}
	}

	return BindingInfo{}, i
}

type sourceScanner struct {
	code       []byte
	n          int
	statements []ModuleStatement
}

func (s *sourceScanner) quoteAt(requestStart uint32) byte {
	if requestStart == 0 {
		return 0
	}
	return s.code[requestStart-1]
}

func (s *sourceScanner) skipDeclareAmbientBlock(i int) (int, bool) {
	if !hasWordAt(s.code, i, "declare") {
		return i, false
	}

	j := skipSpaces(s.code, i+7)
	if !hasWordAt(s.code, j, "module") && !hasWordAt(s.code, j, "global") && !hasWordAt(s.code, j, "namespace") {
		return i, false
	}

	for j < s.n && s.code[j] != '{' {
		if j+1 < s.n && s.code[j] == '/' && s.code[j+1] == '/' {
			j = skipLineComment(s.code, j)
			continue
		}
		if j+1 < s.n && s.code[j] == '/' && s.code[j+1] == '*' {
			j = skipBlockComment(s.code, j)
			continue
		}
		j++
	}
	if j < s.n && s.code[j] == '{' {
		j = s.skipBalancedBraces(j)
	}
	return j, true
}

// skipBalancedBraces assumes code[i] == '{' and returns the position just
// past the matching closing brace, skipping strings and comments.
func (s *sourceScanner) skipBalancedBraces(i int) int {
	depth := 1
	i++
	for i < s.n && depth > 0 {
		c := s.code[i]
		if c == '{' {
			depth++
		} else if c == '}' {
			depth--
		} else if c == '\'' || c == '"' || c == '`' {
			i = skipToStringEnd(s.code, i, c)
			if i < s.n {
				i++
			}
			continue
		} else if i+1 < s.n && c == '/' && s.code[i+1] == '/' {
			i = skipLineComment(s.code, i)
			continue
		} else if i+1 < s.n && c == '/' && s.code[i+1] == '*' {
			i = skipBlockComment(s.code, i)
			continue
		}
		i++
	}
	return i
}

func (s *sourceScanner) parseImportStatement(i int) (int, bool) {
	if !hasPrefixAt(s.code, i, "import") {
		return i, false
	}

	stmtStart := i
	i += len("import")
	if i >= s.n {
		return i, true
	}
	if !(isWhiteSpace(s.code[i]) || s.code[i] == '{' || s.code[i] == '"' || s.code[i] == '\'' || s.code[i] == '*' || s.code[i] == '(') {
		return i, true
	}

	i = skipSpaces(s.code, i)
	typeOnly := false
	if hasWordAt(s.code, i, "type") {
		// Lookahead: `import type X from` vs `import type from "m"`.
		j := skipSpaces(s.code, i+4)
		if j < s.n && s.code[j] != '"' && s.code[j] != '\'' && !hasWordAt(s.code, j, "from") {
			typeOnly = true
			i = j
		}
	}

	// Side-effect import: `import "m"`
	if i < s.n && (s.code[i] == '"' || s.code[i] == '\'') {
		module, next, start, end := parseStringLiteral(s.code, i)
		if module != "" {
			stmtEnd := skipOptionalSemicolon(s.code, next)
			s.statements = append(s.statements, ModuleStatement{
				Kind:         StmtSideEffectImport,
				Request:      module,
				RequestStart: uint32(start),
				RequestEnd:   uint32(end),
				Quote:        s.quoteAt(uint32(start)),
				StmtStart:    uint32(stmtStart),
				StmtEnd:      uint32(stmtEnd),
				Semicolon:    stmtEnd != next,
			})
		}
		return next, true
	}

	// Dynamic import: `import("m")`
	if i < s.n && s.code[i] == '(' {
		module, next, start, end := parseCallModuleArg(s.code, i)
		if module != "" {
			s.statements = append(s.statements, ModuleStatement{
				Kind:         StmtDynamicImport,
				Request:      module,
				RequestStart: uint32(start),
				RequestEnd:   uint32(end),
				Quote:        s.quoteAt(uint32(start)),
				StmtStart:    uint32(stmtStart),
				StmtEnd:      uint32(next),
			})
		}
		return next, true
	}

	braceStart := 0
	if i < s.n && s.code[i] == '{' {
		braceStart = i
	}
	bindings, afterClause := parseImportBindings(s.code, i, typeOnly)
	braceEnd := 0
	if braceStart != 0 {
		// parseImportBindings consumed the closing brace; find it backwards.
		for j := afterClause; j > braceStart; j-- {
			if s.code[j-1] == '}' {
				braceEnd = j
				break
			}
		}
	}
	i = skipSpacesAndComments(s.code, afterClause)

	foundFrom := false
	for i < s.n {
		if hasWordAt(s.code, i, "from") {
			foundFrom = true
			break
		}
		if i+1 < s.n && s.code[i] == '/' && s.code[i+1] == '/' {
			i = skipLineComment(s.code, i)
			continue
		}
		if i+1 < s.n && s.code[i] == '/' && s.code[i+1] == '*' {
			i = skipBlockComment(s.code, i)
			continue
		}
		if s.code[i] == '\n' || s.code[i] == ';' {
			// Statement ended without `from`; malformed, give up on it.
			return i, true
		}
		i++
	}
	if !foundFrom {
		return i, true
	}

	i += len("from")
	i = skipSpaces(s.code, i)
	if i < s.n && (s.code[i] == '"' || s.code[i] == '\'') {
		module, next, start, end := parseStringLiteral(s.code, i)
		if module != "" {
			stmtEnd := skipOptionalSemicolon(s.code, next)
			stmt := ModuleStatement{
				Kind:         StmtImport,
				Request:      module,
				TypeOnly:     typeOnly,
				RequestStart: uint32(start),
				RequestEnd:   uint32(end),
				Quote:        s.quoteAt(uint32(start)),
				StmtStart:    uint32(stmtStart),
				StmtEnd:      uint32(stmtEnd),
				Semicolon:    stmtEnd != next,
				BraceStart:   uint32(braceStart),
				BraceEnd:     uint32(braceEnd),
			}
			if bindings.Len() > 0 {
				stmt.Bindings = bindings
			}
			s.statements = append(s.statements, stmt)
		}
		return next, true
	}
	return i, true
}

// parseRequireDeclaration handles `const X = require("m")` and the
// destructured form `const { a, b } = require("m")`.
func (s *sourceScanner) parseRequireDeclaration(i int) (int, bool) {
	stmtStart := i
	var kwLen int
	switch {
	case hasWordAt(s.code, i, "const"):
		kwLen = 5
	case hasWordAt(s.code, i, "let"):
		kwLen = 3
	case hasWordAt(s.code, i, "var"):
		kwLen = 3
	default:
		return i, false
	}

	j := skipSpacesAndComments(s.code, i+kwLen)
	bindingName := ""
	destructured := false
	bindings := &BindingList{}

	if j < s.n && s.code[j] == '{' {
		destructured = true
		braceStart := j
		j++
		position := 0
		for j < s.n && s.code[j] != '}' {
			j = skipSpacesAndComments(s.code, j)
			name, after, nameStart, nameEnd := parseIdentifier(s.code, j)
			if name == "" {
				j = after + 1
				continue
			}
			j = skipSpacesAndComments(s.code, after)
			alias := ""
			aliasEnd := nameEnd
			if j < s.n && s.code[j] == ':' {
				j = skipSpacesAndComments(s.code, j+1)
				alias, j, _, aliasEnd = parseIdentifier(s.code, j)
			}
			bindings.Add(BindingInfo{
				Name:     name,
				Alias:    alias,
				Start:    uint32(nameStart),
				End:      uint32(aliasEnd),
				Position: uint32(position),
			})
			position++
			j = skipSpacesAndComments(s.code, j)
			if j < s.n && s.code[j] == ',' {
				bindings.Bindings[len(bindings.Bindings)-1].CommaAfter = uint32(j)
				j++
			}
		}
		if j < s.n {
			j++ // past '}'
		}
		bindingName = string(s.code[braceStart:j])
	} else {
		name, after, _, _ := parseIdentifier(s.code, j)
		if name == "" {
			return i, false
		}
		bindingName = name
		j = after
	}

	j = skipSpacesAndComments(s.code, j)
	if j >= s.n || s.code[j] != '=' {
		return i, false
	}
	j = skipSpacesAndComments(s.code, j+1)
	if !hasWordAt(s.code, j, "require") {
		return i, false
	}
	j += len("require")
	module, next, start, end := parseCallModuleArg(s.code, j)
	if module == "" {
		return next, true
	}
	stmtEnd := skipOptionalSemicolon(s.code, next)
	stmt := ModuleStatement{
		Kind:                  StmtRequire,
		Request:               module,
		RequestStart:          uint32(start),
		RequestEnd:            uint32(end),
		Quote:                 s.quoteAt(uint32(start)),
		StmtStart:             uint32(stmtStart),
		StmtEnd:               uint32(stmtEnd),
		Semicolon:             stmtEnd != next,
		BindingName:           bindingName,
		BindingIsDestructured: destructured,
	}
	if bindings.Len() > 0 {
		stmt.Bindings = bindings
	}
	s.statements = append(s.statements, stmt)
	return stmtEnd, true
}

func (s *sourceScanner) parseBareRequire(i int) (int, bool) {
	if !hasWordAt(s.code, i, "require") {
		return i, false
	}
	j := i + len("require")
	module, next, start, end := parseCallModuleArg(s.code, j)
	if module != "" {
		s.statements = append(s.statements, ModuleStatement{
			Kind:         StmtDynamicImport,
			Request:      module,
			RequestStart: uint32(start),
			RequestEnd:   uint32(end),
			Quote:        s.quoteAt(uint32(start)),
			StmtStart:    uint32(i),
			StmtEnd:      uint32(next),
		})
	}
	return next, true
}

func (s *sourceScanner) parseExportStatement(i int) (int, bool) {
	if !hasPrefixAt(s.code, i, "export") {
		return i, false
	}

	stmtStart := i
	i += len("export")
	if i >= s.n || !(isWhiteSpace(s.code[i]) || s.code[i] == '{' || s.code[i] == '*') {
		return i, true
	}

	declStart := skipSpaces(s.code, i)
	i = declStart

	typeOnly := false
	if hasWordAt(s.code, i, "type") {
		j := skipSpaces(s.code, i+4)
		if j < s.n && (s.code[j] == '{' || s.code[j] == '*') {
			typeOnly = true
			i = j
		} else {
			// `export type Alias = ...` is a local type declaration.
			binding, _ := parseLocalExportBinding(s.code, i)
			if binding.Name != "" {
				bl := &BindingList{}
				bl.Add(binding)
				s.statements = append(s.statements, ModuleStatement{
					Kind:      StmtLocalExport,
					Bindings:  bl,
					TypeOnly:  true,
					StmtStart: uint32(stmtStart),
					DeclStart: uint32(declStart),
				})
			}
			return i, true
		}
	}

	// `export namespace X {` / `export module X {`: skip the body, members
	// are namespace-scoped, not module exports of interest here.
	isNamespaceDecl := hasWordAt(s.code, i, "namespace")
	if !isNamespaceDecl && hasWordAt(s.code, i, "module") {
		mj := skipSpacesAndComments(s.code, i+6)
		isNamespaceDecl = mj < s.n && isByteIdentifierChar(s.code[mj])
	}
	if isNamespaceDecl {
		binding, _ := parseLocalExportBinding(s.code, i)
		if binding.Name != "" {
			bl := &BindingList{}
			bl.Add(binding)
			s.statements = append(s.statements, ModuleStatement{
				Kind:      StmtLocalExport,
				Bindings:  bl,
				StmtStart: uint32(stmtStart),
				DeclStart: uint32(declStart),
			})
		}
		for i < s.n && s.code[i] != '{' {
			i++
		}
		if i < s.n {
			i = s.skipBalancedBraces(i)
		}
		return i, true
	}

	// Local declarations: `export const/function/class/default/...`
	if hasWordAt(s.code, i, "const") || hasWordAt(s.code, i, "let") || hasWordAt(s.code, i, "var") ||
		hasWordAt(s.code, i, "function") || hasWordAt(s.code, i, "async") || hasWordAt(s.code, i, "class") ||
		hasWordAt(s.code, i, "default") || hasWordAt(s.code, i, "enum") || hasWordAt(s.code, i, "interface") {
		binding, bindingNext := parseLocalExportBinding(s.code, i)
		if binding.Name != "" {
			ds := declStart
			if binding.Name == "default" {
				ds = skipSpacesAndComments(s.code, bindingNext)
			}
			bl := &BindingList{}
			bl.Add(binding)
			s.statements = append(s.statements, ModuleStatement{
				Kind:      StmtLocalExport,
				Bindings:  bl,
				StmtStart: uint32(stmtStart),
				DeclStart: uint32(ds),
			})
		}
		return i, true
	}

	// Clause exports: `export { ... } [from "m"]`, `export * from "m"`.
	bindings, braceStart, braceEnd, afterClause := parseExportBindings(s.code, i, typeOnly)
	check := skipSpacesAndComments(s.code, afterClause)
	if hasWordAt(s.code, check, "from") {
		j := skipSpaces(s.code, check+4)
		if j < s.n && (s.code[j] == '"' || s.code[j] == '\'') {
			module, next, start, end := parseStringLiteral(s.code, j)
			if module != "" {
				stmtEnd := skipOptionalSemicolon(s.code, next)
				stmt := ModuleStatement{
					Kind:         StmtReExport,
					Request:      module,
					TypeOnly:     typeOnly,
					RequestStart: uint32(start),
					RequestEnd:   uint32(end),
					Quote:        s.quoteAt(uint32(start)),
					StmtStart:    uint32(stmtStart),
					StmtEnd:      uint32(stmtEnd),
					Semicolon:    stmtEnd != next,
					BraceStart:   uint32(braceStart),
					BraceEnd:     uint32(braceEnd),
					DeclStart:    uint32(declStart),
				}
				if bindings.Len() > 0 {
					stmt.Bindings = bindings
				}
				s.statements = append(s.statements, stmt)
			}
			return next, true
		}
		return check, true
	}

	// `export { A, B }` without a source: local export clause.
	if !typeOnly && bindings.Len() > 0 && braceStart != 0 {
		stmtEnd := skipOptionalSemicolon(s.code, afterClause)
		s.statements = append(s.statements, ModuleStatement{
			Kind:       StmtLocalExport,
			Bindings:   bindings,
			StmtStart:  uint32(stmtStart),
			StmtEnd:    uint32(stmtEnd),
			Semicolon:  stmtEnd != afterClause,
			BraceStart: uint32(braceStart),
			BraceEnd:   uint32(braceEnd),
			DeclStart:  uint32(declStart),
		})
	}
	return afterClause, true
}

// scanModuleStatements walks the file byte by byte. Static import/export and
// require declarations can only appear at brace depth 0; inside braces a
// tight scan looks only for dynamic import() and require() calls.
func scanModuleStatements(code []byte) []ModuleStatement {
	s := sourceScanner{
		code:       code,
		n:          len(code),
		statements: make([]ModuleStatement, 0, 16),
	}
	i := 0
	n := s.n
	depth := 0

	for i < n {
		if depth > 0 {
			b := code[i]
			switch b {
			case '{':
				depth++
				i++
			case '}':
				depth--
				i++
			case '\'', '"', '`':
				i = skipToStringEnd(code, i, b)
				if i < n {
					i++
				}
			case '/':
				if i+1 < n && code[i+1] == '/' {
					i = skipLineComment(code, i)
				} else if i+1 < n && code[i+1] == '*' {
					i = skipBlockComment(code, i)
				} else {
					i++
				}
			case 'i':
				if hasWordAt(code, i, "import") {
					j := skipSpaces(code, i+6)
					if j < n && code[j] == '(' {
						module, next, start, end := parseCallModuleArg(code, j)
						if module != "" {
							s.statements = append(s.statements, ModuleStatement{
								Kind:         StmtDynamicImport,
								Request:      module,
								RequestStart: uint32(start),
								RequestEnd:   uint32(end),
								Quote:        s.quoteAt(uint32(start)),
								StmtStart:    uint32(i),
								StmtEnd:      uint32(next),
							})
							i = next
							continue
						}
					}
					i += 6
				} else {
					i++
				}
			case 'r':
				if next, ok := s.parseBareRequire(i); ok {
					i = next
				} else {
					i++
				}
			default:
				i++
			}
			continue
		}

		i = skipSpaces(code, i)
		if i >= n {
			break
		}

		switch code[i] {
		case '\'', '"', '`':
			i = skipToStringEnd(code, i, code[i])
			if i < n {
				i++
			}
			continue
		case '/':
			if i+1 < n && code[i+1] == '/' {
				i = skipLineComment(code, i)
				continue
			}
			if i+1 < n && code[i+1] == '*' {
				i = skipBlockComment(code, i)
				continue
			}
		case 'd':
			if next, ok := s.skipDeclareAmbientBlock(i); ok {
				i = next
				continue
			}
		case 'i':
			if next, ok := s.parseImportStatement(i); ok {
				i = next
				continue
			}
		case 'e':
			if next, ok := s.parseExportStatement(i); ok {
				i = next
				continue
			}
		case 'c', 'l', 'v':
			if next, ok := s.parseRequireDeclaration(i); ok {
				i = next
				continue
			}
		case 'r':
			if next, ok := s.parseBareRequire(i); ok {
				i = next
				continue
			}
		}

		if code[i] == '{' {
			depth++
		}
		i++
	}

	return s.statements
}

// ParseDocumentsFromFiles parses many files concurrently, bounded to keep
// memory flat on large workspaces. Unreadable files are counted, not fatal.
func ParseDocumentsFromFiles(filePaths []string) ([]*DocumentTree, int) {
	results := make([]*DocumentTree, 0, len(filePaths))
	var mu sync.Mutex
	var wg sync.WaitGroup

	errCount := 0

	maxConcurrency := runtime.GOMAXPROCS(0) * 2
	sem := make(chan struct{}, maxConcurrency)

	for _, filePath := range filePaths {
		wg.Add(1)
		sem <- struct{}{}

		go func(path string) {
			defer wg.Done()
			defer func() { <-sem }()

			tree := ParseDocument(path, nil)
			mu.Lock()
			if tree == nil {
				errCount++
			} else {
				results = append(results, tree)
			}
			mu.Unlock()
		}(filePath)
	}

	wg.Wait()
	return results, errCount
}
