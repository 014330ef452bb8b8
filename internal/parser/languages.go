package parser

import (
	"unsafe"

	forestjs "github.com/alexaandru/go-sitter-forest/javascript"
	forestpy "github.com/alexaandru/go-sitter-forest/python"
	forestts "github.com/alexaandru/go-sitter-forest/typescript"
	sitter "github.com/alexaandru/go-tree-sitter-bare"
)

// structuredLanguages maps the spec's language tags to their tree-sitter
// grammar loaders, mirroring the teacher's languageFuncs table
// (pkg/uast/languages.go) but narrowed to the three languages spec §4.C
// names as structured-backend candidates.
var structuredLanguages = map[string]func() unsafe.Pointer{
	"python":     forestpy.GetLanguage,
	"javascript": forestjs.GetLanguage,
	"typescript": forestts.GetLanguage,
}

var languageCache = map[string]*sitter.Language{}

// loadLanguage returns the cached *sitter.Language for a supported
// language tag, or nil if unsupported.
func loadLanguage(language string) *sitter.Language {
	if lang, ok := languageCache[language]; ok {
		return lang
	}

	fn, ok := structuredLanguages[language]
	if !ok {
		return nil
	}

	lang := sitter.NewLanguage(fn())
	languageCache[language] = lang

	return lang
}
