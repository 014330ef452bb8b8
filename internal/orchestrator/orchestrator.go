// Package orchestrator drives a single snapshot build end to end:
// scan, parse, persist, and finalize (spec §4.F).
package orchestrator

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/codeatlas-dev/codeatlas/internal/model"
	"github.com/codeatlas-dev/codeatlas/internal/parser"
	"github.com/codeatlas-dev/codeatlas/internal/scanner"
	"github.com/codeatlas-dev/codeatlas/internal/store"
)

// tracerName is the default OTel tracer name for this package.
const tracerName = "codeatlas.orchestrator"

// batchSize bounds the number of files committed per transaction
// (spec §4.F step 4, §5 cancellation-at-batch-boundary).
const batchSize = 50

// inlineContentThreshold is the size below which a file's raw content
// is cached inline on the File row (spec §4.F step 4).
const inlineContentThreshold = 100_000

// ErrPathMissing is returned when a project's root_path does not exist
// or is not a directory (spec §4.F step 1, §7 ProjectHasNoRoot/PathMissing).
var ErrPathMissing = errors.New("project root path missing or not a directory")

// Store is the subset of internal/store.Store the orchestrator drives.
type Store interface {
	GetProject(ctx context.Context, id string) (*model.Project, error)
	CreateSnapshot(ctx context.Context, projectID, commitID, branch string) (*model.Snapshot, error)
	TransitionSnapshot(ctx context.Context, id string, newState model.SnapshotState, progress int, errMsg string) error
	SetSnapshotProgress(ctx context.Context, id string, progress int) error
	FinalizeSnapshotCounts(ctx context.Context, id string, fileCount, symbolCount, totalLines int) error
	FileHashes(ctx context.Context, snapshotID string) (map[string]string, error)
	CarryForwardFiles(ctx context.Context, sourceSnapshotID, targetSnapshotID string, paths []string) error
	WithTx(ctx context.Context, fn func(tx *sql.Tx) error) error
	GetSnapshot(ctx context.Context, id string) (*model.Snapshot, error)
	GetFileByPath(ctx context.Context, snapshotID, path string) (*model.File, error)
	ListFiles(ctx context.Context, snapshotID string) ([]model.File, error)
}

// Runner orchestrates snapshot builds for projects in Store.
type Runner struct {
	Store Store

	// Tracer is the OTel tracer for build spans. Falls back to
	// otel.Tracer(tracerName) when nil.
	Tracer trace.Tracer
}

// NewRunner builds a Runner over s.
func NewRunner(s Store) *Runner {
	return &Runner{Store: s}
}

func (r *Runner) tracer() trace.Tracer {
	if r.Tracer != nil {
		return r.Tracer
	}

	return otel.Tracer(tracerName)
}

// BuildOptions configures one snapshot build.
type BuildOptions struct {
	CommitID string
	Branch   string
	// BaseSnapshotID, if set, enables incremental carry-forward: files
	// whose content hash matches the base are copied instead of
	// re-parsed (spec §4.E step 4).
	BaseSnapshotID string
	MaxFileSize    int64
}

// Build runs the full snapshot lifecycle for projectID: PENDING ->
// INDEXING -> READY, or FAILED on any fatal error (spec §4.F).
func (r *Runner) Build(ctx context.Context, projectID string, opts BuildOptions) (*model.Snapshot, error) {
	ctx, span := r.tracer().Start(ctx, "orchestrator.build")
	defer span.End()

	span.SetAttributes(attribute.String("codeatlas.project_id", projectID))

	project, err := r.Store.GetProject(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("build snapshot: %w", err)
	}

	info, statErr := os.Stat(project.RootPath)
	if statErr != nil || !info.IsDir() {
		return nil, fmt.Errorf("%w: %s", ErrPathMissing, project.RootPath)
	}

	snap, err := r.Store.CreateSnapshot(ctx, projectID, opts.CommitID, opts.Branch)
	if err != nil {
		return nil, fmt.Errorf("build snapshot: %w", err)
	}

	if err := r.runBuild(ctx, project, snap, opts); err != nil {
		failMsg := err.Error()
		if errors.Is(err, context.Canceled) {
			failMsg = "cancelled"
		}

		if tErr := r.Store.TransitionSnapshot(ctx, snap.ID, model.SnapshotFailed, snap.Progress, failMsg); tErr != nil {
			return nil, fmt.Errorf("build snapshot: %w (also failed to record failure: %v)", err, tErr)
		}

		return nil, fmt.Errorf("build snapshot %s: %w", snap.ID, err)
	}

	return r.Store.GetSnapshot(ctx, snap.ID)
}

// runBuild performs the INDEXING phase; any returned error is recorded
// as a FAILED transition by the caller.
func (r *Runner) runBuild(ctx context.Context, project *model.Project, snap *model.Snapshot, opts BuildOptions) error {
	if err := r.Store.TransitionSnapshot(ctx, snap.ID, model.SnapshotIndexing, 5, ""); err != nil {
		return err
	}

	files, err := scanner.Scan(project.RootPath, scanner.Options{MaxFileSize: opts.MaxFileSize, IncludeContent: true})
	if err != nil {
		return fmt.Errorf("scan: %w", err)
	}

	if err := r.Store.SetSnapshotProgress(ctx, snap.ID, 10); err != nil {
		return err
	}

	carryPaths, reparseFiles, err := partitionForIncremental(ctx, r.Store, opts.BaseSnapshotID, files)
	if err != nil {
		return err
	}

	if len(carryPaths) > 0 {
		if err := r.Store.CarryForwardFiles(ctx, opts.BaseSnapshotID, snap.ID, carryPaths); err != nil {
			return fmt.Errorf("carry forward: %w", err)
		}
	}

	symbolCount, totalLines, err := r.persistFiles(ctx, snap.ID, reparseFiles)
	if err != nil {
		return err
	}

	totalLines += carriedLineCount(ctx, r.Store, snap.ID, carryPaths)

	fileCount := len(carryPaths) + len(reparseFiles)

	if err := r.Store.FinalizeSnapshotCounts(ctx, snap.ID, fileCount, symbolCount, totalLines); err != nil {
		return err
	}

	return r.Store.TransitionSnapshot(ctx, snap.ID, model.SnapshotReady, 100, "")
}

// partitionForIncremental splits scanned files into those that can be
// carried forward unchanged (matching base snapshot hash) and those
// that must be (re)parsed. With no base snapshot, every file is
// reparsed.
func partitionForIncremental(ctx context.Context, s Store, baseSnapshotID string, files []scanner.ScannedFile) (carryPaths []string, reparse []scanner.ScannedFile, err error) {
	if baseSnapshotID == "" {
		return nil, files, nil
	}

	baseHashes, err := s.FileHashes(ctx, baseSnapshotID)
	if err != nil {
		return nil, nil, fmt.Errorf("load base hashes: %w", err)
	}

	for _, f := range files {
		if baseHash, ok := baseHashes[f.RelPath]; ok && baseHash == f.SHA256 {
			carryPaths = append(carryPaths, f.RelPath)
			continue
		}

		reparse = append(reparse, f)
	}

	return carryPaths, reparse, nil
}

// carriedLineCount is best-effort: it does not fail the build if the
// follow-up read fails, since line counts are informational progress
// state and the carried File rows themselves are already correct.
func carriedLineCount(ctx context.Context, s Store, snapshotID string, carryPaths []string) int {
	if len(carryPaths) == 0 {
		return 0
	}

	files, err := s.ListFiles(ctx, snapshotID)
	if err != nil {
		return 0
	}

	total := 0

	carried := make(map[string]bool, len(carryPaths))
	for _, p := range carryPaths {
		carried[p] = true
	}

	for _, f := range files {
		if carried[f.Path] {
			total += f.LineCount
		}
	}

	return total
}

// persistFiles parses and persists files not carried forward, batching
// commits every batchSize files (spec §4.F step 4, §5). Returns the
// total symbol count and line count persisted.
func (r *Runner) persistFiles(ctx context.Context, snapshotID string, files []scanner.ScannedFile) (symbolCount, totalLines int, err error) {
	total := len(files)

	for batchStart := 0; batchStart < total; batchStart += batchSize {
		if err := ctx.Err(); err != nil {
			return symbolCount, totalLines, err
		}

		end := batchStart + batchSize
		if end > total {
			end = total
		}

		batch := files[batchStart:end]

		n, err := r.persistBatch(ctx, snapshotID, batch)
		if err != nil {
			return symbolCount, totalLines, err
		}

		symbolCount += n

		for _, f := range batch {
			totalLines += f.LineCount
		}

		progress := 10
		if total > 0 {
			progress = 10 + (end*80)/total
		}

		if progress > 99 {
			progress = 99
		}

		if err := r.Store.SetSnapshotProgress(ctx, snapshotID, progress); err != nil {
			return symbolCount, totalLines, err
		}
	}

	return symbolCount, totalLines, nil
}

// persistBatch writes one transactional batch of files (and their
// symbols/references) and returns the number of symbols persisted.
func (r *Runner) persistBatch(ctx context.Context, snapshotID string, batch []scanner.ScannedFile) (int, error) {
	symbolCount := 0

	err := r.Store.WithTx(ctx, func(tx *sql.Tx) error {
		for _, f := range batch {
			n, err := r.persistOneFile(ctx, tx, snapshotID, f)
			if err != nil {
				return err
			}

			symbolCount += n
		}

		return nil
	})

	return symbolCount, err
}

// persistOneFile persists a File row and, for parseable text files,
// its Symbols and import-derived References (spec §4.F step 4).
func (r *Runner) persistOneFile(ctx context.Context, tx *sql.Tx, snapshotID string, f scanner.ScannedFile) (int, error) {
	modelFile := model.File{
		Path:        f.RelPath,
		Language:    f.Language,
		SizeBytes:   f.SizeBytes,
		LineCount:   f.LineCount,
		ContentHash: f.SHA256,
		IsBinary:    f.IsBinary,
	}

	if f.HasContent && f.SizeBytes < inlineContentThreshold {
		content := f.Content
		modelFile.CachedContent = &content
	}

	fileID, err := store.PersistFile(ctx, tx, snapshotID, modelFile)
	if err != nil {
		return 0, err
	}

	if f.IsBinary || !f.HasContent || f.Language == "" {
		return 0, nil
	}

	result := parser.Parse(f.Language, []byte(f.Content))

	nameToID := make(map[string]string, len(result.Symbols))

	for _, sym := range result.Symbols {
		parentID := ""
		if sym.ParentName != "" {
			parentID = nameToID[sym.ParentName]
		}

		modelSym := model.Symbol{
			Name:      sym.Name,
			Kind:      sym.Kind,
			StartLine: sym.StartLine,
			EndLine:   sym.EndLine,
			StartCol:  sym.StartCol,
			EndCol:    sym.EndCol,
			Signature: sym.Signature,
			Docstring: sym.Docstring,
		}

		symID, err := store.PersistSymbol(ctx, tx, snapshotID, fileID, modelSym, parentID)
		if err != nil {
			return 0, err
		}

		nameToID[sym.Name] = symID
	}

	if err := r.persistImportReferences(ctx, tx, snapshotID, fileID, f.RelPath, f.Language, result.Imports); err != nil {
		return 0, err
	}

	return len(result.Symbols), nil
}

// persistImportReferences records each import as a Symbol (kind
// import) anchoring the statement, and — when the module resolves to a
// project-local file already persisted earlier in this snapshot build
// — a Reference from that anchor to the target File (spec §3's
// "target File, for unresolved external imports": the import resolves
// to a file, not a specific symbol within it). Imports that resolve to
// nothing in this snapshot (stdlib/third-party modules, or local files
// not yet persisted at this point in the build) get only the anchor
// symbol, no Reference.
func (r *Runner) persistImportReferences(ctx context.Context, tx *sql.Tx, snapshotID, fileID, fromPath, language string, imports []parser.ExtractedImport) error {
	for _, imp := range imports {
		modelSym := model.Symbol{
			Name:      imp.Module,
			Kind:      model.SymbolImport,
			StartLine: imp.Line,
			EndLine:   imp.Line,
		}

		symID, err := store.PersistSymbol(ctx, tx, snapshotID, fileID, modelSym, "")
		if err != nil {
			return fmt.Errorf("persist import symbol %s: %w", imp.Module, err)
		}

		targetPath, ok := resolveImportFile(fromPath, language, imp)
		if !ok {
			continue
		}

		targetFile, err := r.Store.GetFileByPath(ctx, snapshotID, targetPath)
		if err != nil {
			continue // not yet persisted, or not a local file: leave unresolved.
		}

		ref := model.Reference{
			FromSymbolID: symID,
			ToFileID:     &targetFile.ID,
			Kind:         model.RefImport,
			Line:         imp.Line,
		}

		if _, err := store.PersistReference(ctx, tx, snapshotID, ref); err != nil {
			return fmt.Errorf("persist import reference %s: %w", imp.Module, err)
		}
	}

	return nil
}

// resolveImportFile turns an import's module text into a candidate
// project-relative file path, for the languages where that's
// syntactically determinable (relative Python imports, relative JS/TS
// imports). Absolute imports (stdlib, third-party, bare package names)
// are left unresolved — the spec scopes local-file resolution only.
func resolveImportFile(fromPath, language string, imp parser.ExtractedImport) (string, bool) {
	dir := path.Dir(fromPath)

	switch language {
	case "python":
		if !imp.IsRelative {
			return "", false
		}

		dots := 0
		for dots < len(imp.Module) && imp.Module[dots] == '.' {
			dots++
		}

		rest := strings.TrimPrefix(imp.Module[dots:], ".")

		base := dir
		for i := 1; i < dots; i++ {
			base = path.Dir(base)
		}

		if rest == "" {
			return "", false
		}

		rel := strings.ReplaceAll(rest, ".", "/")

		return path.Join(base, rel) + ".py", true
	case "javascript", "typescript":
		if !strings.HasPrefix(imp.Module, "./") && !strings.HasPrefix(imp.Module, "../") {
			return "", false
		}

		joined := path.Join(dir, imp.Module)
		ext := ".js"

		if language == "typescript" {
			ext = ".ts"
		}

		return joined + ext, true
	default:
		return "", false
	}
}
