// Package scanner performs deterministic filesystem traversal with
// ignore-pattern filtering, binary detection, size gating, and content
// hashing (spec §4.B).
package scanner

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/codeatlas-dev/codeatlas/internal/ignore"
	"github.com/codeatlas-dev/codeatlas/internal/langtable"
)

// DefaultMaxFileSize is the default max file size gate (spec §4.B): 1 MiB.
const DefaultMaxFileSize = 1 << 20

// sniffWindow is how much of a file's head is checked for a NUL byte
// when classifying binary-vs-text (spec §4.B step 2).
const sniffWindow = 8 * 1024

// ScanIOError is returned when the root directory itself cannot be
// read; individual unreadable files are skipped silently instead (spec
// §7's per-file absorption policy).
type ScanIOError struct {
	Path string
	Err  error
}

func (e *ScanIOError) Error() string {
	return fmt.Sprintf("scan %s: %v", e.Path, e.Err)
}

func (e *ScanIOError) Unwrap() error { return e.Err }

// ScannedFile is the Scanner's output record for one file.
type ScannedFile struct {
	RelPath     string
	AbsPath     string
	Language    string
	SizeBytes   int64
	IsBinary    bool
	SHA256      string
	LineCount   int
	Content     string
	HasContent  bool
}

// Options configures a scan.
type Options struct {
	MaxFileSize   int64
	IncludeContent bool
}

// Scan walks root (which must be an absolute, existing directory) and
// returns ScannedFile records in deterministic lexicographic order by
// relative path (spec §4.B step 5), so identical trees produce
// identical sequences (testable property 4).
func Scan(root string, opts Options) ([]ScannedFile, error) {
	if opts.MaxFileSize <= 0 {
		opts.MaxFileSize = DefaultMaxFileSize
	}

	info, err := os.Stat(root)
	if err != nil {
		return nil, &ScanIOError{Path: root, Err: err}
	}

	if !info.IsDir() {
		return nil, &ScanIOError{Path: root, Err: errors.New("root is not a directory")}
	}

	matcher, err := ignore.New(root)
	if err != nil {
		return nil, &ScanIOError{Path: root, Err: err}
	}

	visitedDirs := make(map[string]bool)

	var out []ScannedFile

	if err := walk(root, root, "", matcher, opts, visitedDirs, &out); err != nil {
		return nil, err
	}

	sort.Slice(out, func(i, j int) bool { return out[i].RelPath < out[j].RelPath })

	return out, nil
}

// walk recursively visits dir (absolute), pruning subtrees the ignore
// matcher excludes and following symlinks while tracking real paths to
// detect loops (spec §6.1).
func walk(root, dir, relDir string, matcher *ignore.Matcher, opts Options, visitedDirs map[string]bool, out *[]ScannedFile) error {
	realDir, err := filepath.EvalSymlinks(dir)
	if err != nil {
		if relDir == "" {
			return &ScanIOError{Path: dir, Err: err}
		}

		return nil // unreadable subtree: absorbed per §7.
	}

	if visitedDirs[realDir] {
		return nil // symlink loop.
	}

	visitedDirs[realDir] = true

	entries, err := os.ReadDir(dir)
	if err != nil {
		if relDir == "" {
			return &ScanIOError{Path: dir, Err: err}
		}

		return nil
	}

	for _, entry := range entries {
		relPath := entry.Name()
		if relDir != "" {
			relPath = relDir + "/" + entry.Name()
		}

		if matcher.Matches(relPath) {
			continue // prune the whole subtree.
		}

		absPath := filepath.Join(dir, entry.Name())

		if entry.IsDir() {
			if err := walk(root, absPath, relPath, matcher, opts, visitedDirs, out); err != nil {
				return err
			}

			continue
		}

		info, err := entry.Info()
		if err != nil {
			continue // unreadable file: absorbed.
		}

		if info.Mode()&os.ModeSymlink != 0 {
			resolved, err := filepath.EvalSymlinks(absPath)
			if err != nil {
				continue
			}

			info, err = os.Stat(resolved)
			if err != nil {
				continue
			}

			if info.IsDir() {
				if err := walk(root, absPath, relPath, matcher, opts, visitedDirs, out); err != nil {
					return err
				}

				continue
			}
		}

		if !info.Mode().IsRegular() {
			continue
		}

		sf, ok := scanFile(absPath, relPath, info.Size(), opts)
		if !ok {
			continue
		}

		*out = append(*out, sf)
	}

	return nil
}

// scanFile classifies and hashes one file. Returns ok=false when the
// file is skipped entirely (oversized or unreadable) — an oversized
// file is never appended to the walk's output, matching the reference
// scanner's plain `continue` rather than emitting a content-less record.
func scanFile(absPath, relPath string, size int64, opts Options) (ScannedFile, bool) {
	if size > opts.MaxFileSize {
		return ScannedFile{}, false
	}

	data, err := os.ReadFile(absPath)
	if err != nil {
		return ScannedFile{}, false
	}

	sum := sha256.Sum256(data)

	sf := ScannedFile{
		RelPath:   relPath,
		AbsPath:   absPath,
		SizeBytes: size,
		SHA256:    hex.EncodeToString(sum[:]),
		Language:  langtable.DetectLanguage(relPath),
		IsBinary:  isBinary(relPath, data),
	}

	if !sf.IsBinary {
		text := decodeLossy(data)
		sf.LineCount = strings.Count(text, "\n") + 1

		if opts.IncludeContent {
			sf.Content = text
			sf.HasContent = true
		}
	}

	return sf, true
}

// isBinary classifies a file binary if its extension is in the fixed
// binary set, or its first 8 KiB contains a NUL byte (spec §4.B step 2).
func isBinary(relPath string, data []byte) bool {
	if langtable.IsBinaryExtension(relPath) {
		return true
	}

	window := data
	if len(window) > sniffWindow {
		window = window[:sniffWindow]
	}

	return bytes.IndexByte(window, 0) >= 0
}

// decodeLossy reads content as UTF-8, replacing ill-formed byte
// sequences with the Unicode replacement character (spec §4.B step 4).
func decodeLossy(data []byte) string {
	if utf8.Valid(data) {
		return string(data)
	}

	var b strings.Builder

	b.Grow(len(data))

	for len(data) > 0 {
		r, size := utf8.DecodeRune(data)
		b.WriteRune(r)
		data = data[size:]
	}

	return b.String()
}
