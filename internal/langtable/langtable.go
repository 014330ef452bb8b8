// Package langtable holds the fixed extension -> language mapping and
// binary-extension set of spec §6.2/§6.3. Both the scanner (language
// detection, binary classification) and the parser (backend selection)
// depend on this table, so it lives in its own package to avoid an
// import cycle between them.
package langtable

import "strings"

// languageByExt is the required extension -> language mapping of §6.2.
// Extensions are matched case-insensitively.
var languageByExt = map[string]string{
	".py":     "python",
	".js":     "javascript",
	".jsx":    "javascript",
	".ts":     "typescript",
	".tsx":    "typescript",
	".rs":     "rust",
	".go":     "go",
	".java":   "java",
	".c":      "c",
	".h":      "c",
	".cpp":    "cpp",
	".cc":     "cpp",
	".hpp":    "cpp",
	".cs":     "csharp",
	".rb":     "ruby",
	".php":    "php",
	".swift":  "swift",
	".kt":     "kotlin",
	".scala":  "scala",
	".sql":    "sql",
	".sh":     "shell",
	".bash":   "shell",
	".zsh":    "shell",
	".html":   "html",
	".htm":    "html",
	".css":    "css",
	".scss":   "scss",
	".json":   "json",
	".yaml":   "yaml",
	".yml":    "yaml",
	".toml":   "toml",
	".xml":    "xml",
	".md":     "markdown",
	".mdx":    "markdown",
	".rst":    "rst",
	".vue":    "vue",
	".svelte": "svelte",
}

// binaryExtensions is the fixed binary-extension set of §6.3.
var binaryExtensions = map[string]bool{
	".png": true, ".jpg": true, ".jpeg": true, ".gif": true, ".ico": true,
	".svg": true, ".webp": true, ".mp3": true, ".mp4": true, ".wav": true,
	".avi": true, ".mov": true, ".zip": true, ".tar": true, ".gz": true,
	".rar": true, ".7z": true, ".exe": true, ".dll": true, ".so": true,
	".dylib": true, ".pdf": true, ".doc": true, ".docx": true, ".xls": true,
	".xlsx": true, ".pyc": true, ".pyo": true, ".class": true, ".o": true,
	".obj": true, ".woff": true, ".woff2": true, ".ttf": true, ".eot": true,
	".otf": true, ".db": true, ".sqlite": true, ".sqlite3": true,
}

// DetectLanguage returns the language for a filename's extension, or ""
// if the extension is not in the fixed table.
func DetectLanguage(filename string) string {
	return languageByExt[strings.ToLower(ext(filename))]
}

// IsBinaryExtension reports whether filename's extension is in the
// fixed binary-extension set.
func IsBinaryExtension(filename string) bool {
	return binaryExtensions[strings.ToLower(ext(filename))]
}

// ext returns the filename's extension including the leading dot, or ""
// if there is none.
func ext(filename string) string {
	for i := len(filename) - 1; i >= 0; i-- {
		switch filename[i] {
		case '.':
			return filename[i:]
		case '/':
			return ""
		}
	}

	return ""
}
