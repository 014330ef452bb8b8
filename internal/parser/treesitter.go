package parser

import (
	"context"
	"strings"

	sitter "github.com/alexaandru/go-tree-sitter-bare"

	"github.com/codeatlas-dev/codeatlas/internal/model"
)

// parseStructured runs the tree-sitter grammar for language over
// content. ok is false when the grammar is unavailable or parsing
// panics (recovered here so a single malformed file never takes down
// the orchestrator — spec §4.C "must degrade gracefully").
func parseStructured(language string, content []byte) (result ParseResult, ok bool) {
	lang := loadLanguage(language)
	if lang == nil {
		return ParseResult{}, false
	}

	defer func() {
		if r := recover(); r != nil {
			ok = false
		}
	}()

	tsParser := sitter.NewParser()
	tsParser.SetLanguage(lang)

	tree, err := tsParser.ParseString(context.Background(), nil, content)
	if err != nil {
		return ParseResult{}, false
	}
	defer tree.Close()

	root := tree.RootNode()
	if root.IsNull() {
		return ParseResult{}, false
	}

	switch language {
	case "python":
		return extractPython(root, content), true
	case "javascript", "typescript":
		return extractJSLike(root, content), true
	default:
		return ParseResult{}, false
	}
}

func nodeText(n sitter.Node, src []byte) string {
	start, end := n.StartByte(), n.EndByte()
	if end > uint(len(src)) || start > end {
		return ""
	}

	return string(src[start:end])
}

func span(n sitter.Node) (startLine, endLine, startCol, endCol int) {
	s, e := n.StartPoint(), n.EndPoint()
	return int(s.Row) + 1, int(e.Row) + 1, int(s.Column) + 1, int(e.Column) + 1
}

// --- Python ---------------------------------------------------------

func extractPython(root sitter.Node, src []byte) ParseResult {
	var result ParseResult

	walkPython(root, src, "", false, &result)

	return result
}

func walkPython(n sitter.Node, src []byte, parentName string, parentIsClass bool, result *ParseResult) {
	count := n.NamedChildCount()

	for i := uint(0); i < count; i++ {
		child := n.NamedChild(i)

		switch child.Type() {
		case "class_definition":
			emitPythonClass(child, src, parentName, result)
		case "function_definition":
			emitPythonFunction(child, src, parentName, parentIsClass, result)
		case "import_statement":
			emitPythonImport(child, src, result)
		case "import_from_statement":
			emitPythonImportFrom(child, src, result)
		default:
			// Descend through compound statements (if/try/decorated
			// definitions, etc.) that wrap definitions without
			// themselves being one, preserving the enclosing context.
			walkPython(child, src, parentName, parentIsClass, result)
		}
	}
}

func emitPythonClass(n sitter.Node, src []byte, parentName string, result *ParseResult) {
	nameNode := n.ChildByFieldName("name")
	name := nodeText(nameNode, src)

	startLine, endLine, startCol, endCol := span(n)

	body := n.ChildByFieldName("body")

	sym := ExtractedSymbol{
		Name:       name,
		ParentName: parentName,
		Kind:       model.SymbolClass,
		StartLine:  startLine,
		EndLine:    endLine,
		StartCol:   startCol,
		EndCol:     endCol,
		Signature:  "class " + name,
		Docstring:  firstDocstring(body, src),
	}
	result.Symbols = append(result.Symbols, sym)

	if !body.IsNull() {
		walkPython(body, src, name, true, result)
	}
}

func emitPythonFunction(n sitter.Node, src []byte, parentName string, parentIsClass bool, result *ParseResult) {
	nameNode := n.ChildByFieldName("name")
	name := nodeText(nameNode, src)

	paramsNode := n.ChildByFieldName("parameters")
	params := nodeText(paramsNode, src)

	startLine, endLine, startCol, endCol := span(n)

	body := n.ChildByFieldName("body")

	kind := model.SymbolFunction
	if parentIsClass {
		kind = model.SymbolMethod
	}

	sym := ExtractedSymbol{
		Name:       name,
		ParentName: parentName,
		Kind:       kind,
		StartLine:  startLine,
		EndLine:    endLine,
		StartCol:   startCol,
		EndCol:     endCol,
		Signature:  "def " + name + params,
		Docstring:  firstDocstring(body, src),
	}
	result.Symbols = append(result.Symbols, sym)

	if !body.IsNull() {
		walkPython(body, src, name, false, result)
	}
}

// firstDocstring returns the first string-literal expression statement
// of a block, with leading/trailing quote characters stripped (spec
// §4.C), or "" if the block doesn't open with one.
func firstDocstring(body sitter.Node, src []byte) string {
	if body.IsNull() || body.NamedChildCount() == 0 {
		return ""
	}

	first := body.NamedChild(0)
	if first.Type() != "expression_statement" || first.NamedChildCount() == 0 {
		return ""
	}

	expr := first.NamedChild(0)
	if expr.Type() != "string" {
		return ""
	}

	return stripQuotes(nodeText(expr, src))
}

func stripQuotes(s string) string {
	for _, q := range []string{`"""`, `'''`} {
		if strings.HasPrefix(s, q) && strings.HasSuffix(s, q) && len(s) >= 2*len(q) {
			return strings.TrimSpace(s[len(q) : len(s)-len(q)])
		}
	}

	for _, q := range []string{`"`, `'`} {
		if strings.HasPrefix(s, q) && strings.HasSuffix(s, q) && len(s) >= 2 {
			return strings.TrimSpace(s[1 : len(s)-1])
		}
	}

	return s
}

func emitPythonImport(n sitter.Node, src []byte, result *ParseResult) {
	line := int(n.StartPoint().Row) + 1

	count := n.NamedChildCount()
	for i := uint(0); i < count; i++ {
		child := n.NamedChild(i)
		if child.Type() != "dotted_name" && child.Type() != "aliased_import" {
			continue
		}

		module := nodeText(child, src)
		alias := ""

		if child.Type() == "aliased_import" {
			moduleNode := child.ChildByFieldName("name")
			aliasNode := child.ChildByFieldName("alias")
			module = nodeText(moduleNode, src)
			alias = nodeText(aliasNode, src)
		}

		result.Imports = append(result.Imports, ExtractedImport{
			Module: module,
			Alias:  alias,
			Line:   line,
		})
	}
}

func emitPythonImportFrom(n sitter.Node, src []byte, result *ParseResult) {
	line := int(n.StartPoint().Row) + 1

	moduleNode := n.ChildByFieldName("module_name")
	module := nodeText(moduleNode, src)
	isRelative := strings.HasPrefix(module, ".")

	var names []string

	count := n.NamedChildCount()
	for i := uint(0); i < count; i++ {
		child := n.NamedChild(i)

		switch child.Type() {
		case "dotted_name":
			if child == moduleNode {
				continue
			}

			names = append(names, nodeText(child, src))
		case "aliased_import":
			nameNode := child.ChildByFieldName("name")
			names = append(names, nodeText(nameNode, src))
		case "wildcard_import":
			names = append(names, "*")
		}
	}

	result.Imports = append(result.Imports, ExtractedImport{
		Module:     module,
		Names:      names,
		Line:       line,
		IsRelative: isRelative,
	})
}

// --- JavaScript / TypeScript -----------------------------------------

func extractJSLike(root sitter.Node, src []byte) ParseResult {
	var result ParseResult

	walkJSLike(root, src, "", false, &result)

	return result
}

func walkJSLike(n sitter.Node, src []byte, parentName string, parentIsClass bool, result *ParseResult) {
	count := n.NamedChildCount()

	for i := uint(0); i < count; i++ {
		child := n.NamedChild(i)

		switch child.Type() {
		case "class_declaration":
			emitJSClass(child, src, parentName, result)
		case "function_declaration":
			emitJSFunction(child, src, parentName, parentIsClass, model.SymbolFunction, result)
		case "method_definition":
			emitJSFunction(child, src, parentName, parentIsClass, model.SymbolMethod, result)
		case "import_statement":
			emitJSImport(child, src, result)
		default:
			walkJSLike(child, src, parentName, parentIsClass, result)
		}
	}
}

func emitJSClass(n sitter.Node, src []byte, parentName string, result *ParseResult) {
	nameNode := n.ChildByFieldName("name")
	name := nodeText(nameNode, src)

	startLine, endLine, startCol, endCol := span(n)

	body := n.ChildByFieldName("body")

	sym := ExtractedSymbol{
		Name:       name,
		ParentName: parentName,
		Kind:       model.SymbolClass,
		StartLine:  startLine,
		EndLine:    endLine,
		StartCol:   startCol,
		EndCol:     endCol,
		Signature:  "class " + name,
	}
	result.Symbols = append(result.Symbols, sym)

	if !body.IsNull() {
		walkJSLike(body, src, name, true, result)
	}
}

func emitJSFunction(n sitter.Node, src []byte, parentName string, parentIsClass bool, fallbackKind model.SymbolKind, result *ParseResult) {
	nameNode := n.ChildByFieldName("name")
	name := nodeText(nameNode, src)

	paramsNode := n.ChildByFieldName("parameters")
	params := nodeText(paramsNode, src)

	startLine, endLine, startCol, endCol := span(n)

	body := n.ChildByFieldName("body")

	kind := fallbackKind
	if parentIsClass {
		kind = model.SymbolMethod
	}

	sym := ExtractedSymbol{
		Name:       name,
		ParentName: parentName,
		Kind:       kind,
		StartLine:  startLine,
		EndLine:    endLine,
		StartCol:   startCol,
		EndCol:     endCol,
		Signature:  "function " + name + params,
	}
	result.Symbols = append(result.Symbols, sym)

	if !body.IsNull() {
		walkJSLike(body, src, name, false, result)
	}
}

func emitJSImport(n sitter.Node, src []byte, result *ParseResult) {
	line := int(n.StartPoint().Row) + 1

	sourceNode := n.ChildByFieldName("source")
	module := strings.Trim(nodeText(sourceNode, src), `"'`)

	var names []string

	clause := findChildType(n, "import_clause")
	if !clause.IsNull() {
		names = collectJSImportNames(clause, src)
	}

	result.Imports = append(result.Imports, ExtractedImport{
		Module: module,
		Names:  names,
		Line:   line,
	})
}

func collectJSImportNames(clause sitter.Node, src []byte) []string {
	var names []string

	count := clause.NamedChildCount()

	for i := uint(0); i < count; i++ {
		child := clause.NamedChild(i)

		switch child.Type() {
		case "identifier":
			names = append(names, nodeText(child, src))
		case "namespace_import":
			names = append(names, nodeText(child, src))
		case "named_imports":
			specCount := child.NamedChildCount()
			for j := uint(0); j < specCount; j++ {
				spec := child.NamedChild(j)
				if spec.Type() == "import_specifier" {
					nameNode := spec.ChildByFieldName("name")
					names = append(names, nodeText(nameNode, src))
				}
			}
		}
	}

	return names
}

func findChildType(n sitter.Node, typ string) sitter.Node {
	count := n.NamedChildCount()
	for i := uint(0); i < count; i++ {
		child := n.NamedChild(i)
		if child.Type() == typ {
			return child
		}
	}

	return sitter.Node{}
}
