package parser

import (
	"regexp"
	"strings"

	"github.com/codeatlas-dev/codeatlas/internal/model"
)

// parseRegexFallback extracts a best-effort symbol/import list using
// line-oriented regular expressions. It never panics and is used only
// when the structured backend can't parse a file (spec §4.C graceful
// degradation). Indentation-based nesting is approximated for Python;
// JS/TS spans collapse to a single line (EndLine == StartLine, see
// regexJSLike below, per the documented Open Question #1 limitation).
func parseRegexFallback(language string, content []byte) ParseResult {
	switch language {
	case "python":
		return regexPython(content)
	case "javascript", "typescript":
		return regexJSLike(content)
	default:
		return ParseResult{}
	}
}

var (
	pyClassRe  = regexp.MustCompile(`^(\s*)class\s+([A-Za-z_][A-Za-z0-9_]*)\s*(\([^)]*\))?\s*:`)
	pyDefRe    = regexp.MustCompile(`^(\s*)def\s+([A-Za-z_][A-Za-z0-9_]*)\s*(\([^)]*\))\s*(->\s*[^:]+)?:`)
	pyImportRe = regexp.MustCompile(`^\s*import\s+(.+)$`)
	pyFromRe   = regexp.MustCompile(`^\s*from\s+(\.*[A-Za-z0-9_.]*)\s+import\s+(.+)$`)
)

type pyFrame struct {
	indent int
	name   string
	isClass bool
}

// regexPython tracks an indentation stack to approximate Python's
// lexical nesting without a real parser: each class/def pushes a frame,
// and shallower indentation pops enclosing frames off the stack (spec
// §4.C fallback contract — best effort, not exact).
func regexPython(content []byte) ParseResult {
	var result ParseResult

	lines := strings.Split(string(content), "\n")
	var stack []pyFrame

	for i, line := range lines {
		lineNo := i + 1

		trimmed := strings.TrimRight(line, "\r")
		if strings.TrimSpace(trimmed) == "" {
			continue
		}

		indent := leadingSpaces(trimmed)

		for len(stack) > 0 && indent <= stack[len(stack)-1].indent {
			stack = stack[:len(stack)-1]
		}

		parentName := ""
		parentIsClass := false
		if len(stack) > 0 {
			top := stack[len(stack)-1]
			parentName = top.name
			parentIsClass = top.isClass
		}

		if m := pyClassRe.FindStringSubmatch(trimmed); m != nil {
			name := m[2]
			result.Symbols = append(result.Symbols, ExtractedSymbol{
				Name:       name,
				ParentName: parentName,
				Kind:       model.SymbolClass,
				StartLine:  lineNo,
				EndLine:    lineNo,
				Signature:  "class " + name,
			})
			stack = append(stack, pyFrame{indent: indent, name: name, isClass: true})

			continue
		}

		if m := pyDefRe.FindStringSubmatch(trimmed); m != nil {
			name := m[2]
			params := m[3]

			kind := model.SymbolFunction
			if parentIsClass {
				kind = model.SymbolMethod
			}

			result.Symbols = append(result.Symbols, ExtractedSymbol{
				Name:       name,
				ParentName: parentName,
				Kind:       kind,
				StartLine:  lineNo,
				EndLine:    lineNo,
				Signature:  "def " + name + params,
			})
			stack = append(stack, pyFrame{indent: indent, name: name, isClass: false})

			continue
		}

		if m := pyFromRe.FindStringSubmatch(trimmed); m != nil {
			module := m[1]
			names := splitImportNames(m[2])
			result.Imports = append(result.Imports, ExtractedImport{
				Module:     module,
				Names:      names,
				Line:       lineNo,
				IsRelative: strings.HasPrefix(module, "."),
			})

			continue
		}

		if m := pyImportRe.FindStringSubmatch(trimmed); m != nil {
			for _, part := range strings.Split(m[1], ",") {
				part = strings.TrimSpace(part)
				if part == "" {
					continue
				}

				module := part
				alias := ""

				if fields := strings.Fields(part); len(fields) == 3 && fields[1] == "as" {
					module = fields[0]
					alias = fields[2]
				}

				result.Imports = append(result.Imports, ExtractedImport{
					Module: module,
					Alias:  alias,
					Line:   lineNo,
				})
			}
		}
	}

	return result
}

func leadingSpaces(s string) int {
	n := 0
	for _, r := range s {
		if r == ' ' {
			n++
		} else if r == '\t' {
			n += 8
		} else {
			break
		}
	}

	return n
}

func splitImportNames(s string) []string {
	s = strings.Trim(strings.TrimSpace(s), "()")

	var names []string
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		fields := strings.Fields(part)
		names = append(names, fields[0])
	}

	return names
}

var (
	jsClassRe  = regexp.MustCompile(`^\s*(?:export\s+)?(?:default\s+)?class\s+([A-Za-z_$][A-Za-z0-9_$]*)`)
	jsFuncRe   = regexp.MustCompile(`^\s*(?:export\s+)?(?:default\s+)?(?:async\s+)?function\s*\*?\s+([A-Za-z_$][A-Za-z0-9_$]*)\s*(\([^)]*\))`)
	jsMethodRe = regexp.MustCompile(`^\s*(?:static\s+)?(?:async\s+)?(?:get\s+|set\s+)?([A-Za-z_$][A-Za-z0-9_$]*)\s*(\([^)]*\))\s*\{`)
	jsImportRe = regexp.MustCompile(`^\s*import\s+(.*?)\s+from\s+['"]([^'"]+)['"]`)
)

// regexJSLike approximates class/function/method/import extraction.
// Per the documented span limitation, every symbol's EndLine equals
// its StartLine: without a real parser there is no reliable way to
// find a balanced closing brace.
func regexJSLike(content []byte) ParseResult {
	var result ParseResult

	lines := strings.Split(string(content), "\n")
	var stack []pyFrame

	for i, line := range lines {
		lineNo := i + 1

		trimmed := strings.TrimRight(line, "\r")
		if strings.TrimSpace(trimmed) == "" {
			continue
		}

		indent := leadingSpaces(trimmed)

		for len(stack) > 0 && indent <= stack[len(stack)-1].indent {
			stack = stack[:len(stack)-1]
		}

		parentName := ""
		parentIsClass := false
		if len(stack) > 0 {
			top := stack[len(stack)-1]
			parentName = top.name
			parentIsClass = top.isClass
		}

		if m := jsClassRe.FindStringSubmatch(trimmed); m != nil {
			name := m[1]
			result.Symbols = append(result.Symbols, ExtractedSymbol{
				Name:       name,
				ParentName: parentName,
				Kind:       model.SymbolClass,
				StartLine:  lineNo,
				EndLine:    lineNo,
				Signature:  "class " + name,
			})
			stack = append(stack, pyFrame{indent: indent, name: name, isClass: true})

			continue
		}

		if m := jsFuncRe.FindStringSubmatch(trimmed); m != nil {
			name := m[1]
			result.Symbols = append(result.Symbols, ExtractedSymbol{
				Name:       name,
				ParentName: parentName,
				Kind:       model.SymbolFunction,
				StartLine:  lineNo,
				EndLine:    lineNo,
				Signature:  "function " + name + m[2],
			})

			continue
		}

		if parentIsClass {
			if m := jsMethodRe.FindStringSubmatch(trimmed); m != nil && m[1] != "if" && m[1] != "for" && m[1] != "while" && m[1] != "switch" {
				name := m[1]
				result.Symbols = append(result.Symbols, ExtractedSymbol{
					Name:       name,
					ParentName: parentName,
					Kind:       model.SymbolMethod,
					StartLine:  lineNo,
					EndLine:    lineNo,
					Signature:  "function " + name + m[2],
				})

				continue
			}
		}

		if m := jsImportRe.FindStringSubmatch(trimmed); m != nil {
			names := parseJSImportClause(m[1])
			result.Imports = append(result.Imports, ExtractedImport{
				Module: m[2],
				Names:  names,
				Line:   lineNo,
			})
		}
	}

	return result
}

func parseJSImportClause(clause string) []string {
	clause = strings.TrimSpace(clause)

	var names []string

	if idx := strings.IndexByte(clause, '{'); idx >= 0 {
		end := strings.IndexByte(clause, '}')
		if end > idx {
			for _, part := range strings.Split(clause[idx+1:end], ",") {
				part = strings.TrimSpace(part)
				if part == "" {
					continue
				}

				fields := strings.Fields(part)
				names = append(names, fields[0])
			}
		}

		clause = strings.TrimSpace(clause[:idx])
		clause = strings.TrimSuffix(clause, ",")
		clause = strings.TrimSpace(clause)
	}

	if clause != "" {
		for _, part := range strings.Split(clause, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}

			part = strings.TrimPrefix(part, "* as ")
			names = append(names, strings.TrimSpace(part))
		}
	}

	return names
}
