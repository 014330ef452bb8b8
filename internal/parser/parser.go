// Package parser extracts symbols, imports, and references from source
// text for a fixed set of languages (spec §4.C). A structured
// tree-sitter backend is preferred; a regex-based fallback is used when
// the backend is unavailable or fails, and never itself raises — the
// parser must degrade gracefully.
package parser

import (
	"fmt"

	"github.com/codeatlas-dev/codeatlas/internal/model"
)

// ExtractedSymbol is one symbol recovered from a file, prior to
// persistence. ParentName (not an id) links nested definitions to their
// enclosing symbol; the orchestrator resolves names to ids at
// persistence time (spec §4.C "Symbol identity").
type ExtractedSymbol struct {
	Name       string
	ParentName string
	Kind       model.SymbolKind
	StartLine  int
	EndLine    int
	StartCol   int
	EndCol     int
	Signature  string
	Docstring  string
}

// ExtractedImport is one logical import statement (spec §4.C).
type ExtractedImport struct {
	Module     string
	Names      []string
	Alias      string
	Line       int
	IsRelative bool
}

// ParseResult is the Parser's output for one file.
type ParseResult struct {
	Symbols []ExtractedSymbol
	Imports []ExtractedImport
	Errors  []string
}

// supportedLanguages are the languages with a design-level extraction
// contract (spec §4.C); all others receive an empty ParseResult.
var supportedLanguages = map[string]bool{
	"python":     true,
	"javascript": true,
	"typescript": true,
}

// Parse extracts symbols and imports from content for the given
// language tag. It never panics: a structured-backend failure falls
// back to the regex extractor, and the regex extractor's own failures
// are captured in ParseResult.Errors rather than propagated.
func Parse(language string, content []byte) (result ParseResult) {
	if !supportedLanguages[language] {
		return ParseResult{}
	}

	if structured, ok := parseStructured(language, content); ok {
		return structured
	}

	defer func() {
		if r := recover(); r != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("regex fallback: %v", r))
		}
	}()

	return parseRegexFallback(language, content)
}
