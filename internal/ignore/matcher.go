// Package ignore resolves whether a path within a project root should be
// excluded from scanning, combining the project's .gitignore with a fixed
// set of always-ignored directory names.
package ignore

import (
	"os"
	"path/filepath"
	"strings"

	gitignore "github.com/sabhiram/go-gitignore"
)

// alwaysIgnoredDirs are directory names pruned from traversal regardless of
// .gitignore contents or negation.
var alwaysIgnoredDirs = map[string]bool{
	".git": true, ".svn": true, ".hg": true,
	"node_modules": true, "__pycache__": true, ".pytest_cache": true,
	".venv": true, "venv": true, "env": true, ".env": true,
	".next": true, ".nuxt": true, "dist": true, "build": true, "out": true,
	".idea": true, ".vscode": true,
	"coverage": true, ".coverage": true, "htmlcov": true,
	".tox": true, ".nox": true,
}

// Matcher decides whether a relative path should be excluded from scanning.
// Always-ignored directory names win over any .gitignore negation.
type Matcher struct {
	gi *gitignore.GitIgnore
}

// New loads a Matcher for root, reading root/.gitignore if present. A
// missing .gitignore is not an error — the always-ignore list still applies.
func New(root string) (*Matcher, error) {
	var lines []string

	content, err := os.ReadFile(filepath.Join(root, ".gitignore"))
	if err == nil {
		lines = strings.Split(string(content), "\n")
	} else if !os.IsNotExist(err) {
		return nil, err
	}

	return &Matcher{gi: gitignore.CompileIgnoreLines(lines...)}, nil
}

// Matches reports whether relpath (forward-slash separated, relative to the
// project root) is excluded from scanning.
func (m *Matcher) Matches(relpath string) bool {
	if isAlwaysIgnored(relpath) {
		return true
	}

	return m.gi.MatchesPath(relpath)
}

// MatchesDir reports whether a directory entry at relpath should be pruned
// from traversal entirely — its subtree is never descended into.
func (m *Matcher) MatchesDir(relpath string) bool {
	return m.Matches(relpath)
}

// isAlwaysIgnored reports whether any path component of relpath is in the
// fixed always-ignore set.
func isAlwaysIgnored(relpath string) bool {
	for _, part := range strings.Split(relpath, "/") {
		if alwaysIgnoredDirs[part] {
			return true
		}
	}

	return false
}
