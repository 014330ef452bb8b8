package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/codeatlas-dev/codeatlas/internal/model"
)

// ExecOrTx is satisfied by both *sql.DB and *sql.Tx, letting the
// orchestrator batch writes in a transaction (spec §4.F: commit every
// 50 files) while the rest of the store can write standalone.
type ExecOrTx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// PersistFile inserts a File row within exec (either s.DB() or a *sql.Tx)
// and returns the generated id. Path uniqueness within a snapshot is
// enforced by the schema's UNIQUE(snapshot_id, path) constraint.
func PersistFile(ctx context.Context, exec ExecOrTx, snapshotID string, f model.File) (string, error) {
	id := uuid.NewString()

	var cached any
	if f.CachedContent != nil {
		cached = *f.CachedContent
	}

	_, err := exec.ExecContext(ctx,
		`INSERT INTO files (id, snapshot_id, path, language, size_bytes, line_count, content_hash, is_binary, cached_content)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, snapshotID, f.Path, nullableString(f.Language), f.SizeBytes, f.LineCount, f.ContentHash, boolToInt(f.IsBinary), cached,
	)
	if err != nil {
		return "", fmt.Errorf("persist file %s: %w", f.Path, err)
	}

	return id, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}

	return 0
}

// ListFiles returns all files of a snapshot, ordered by path (spec §5:
// scanner-determined lexicographic order is preserved since that's the
// order files were persisted in).
func (s *Store) ListFiles(ctx context.Context, snapshotID string) ([]model.File, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, snapshot_id, path, language, size_bytes, line_count, content_hash, is_binary, cached_content
		 FROM files WHERE snapshot_id = ? ORDER BY path`, snapshotID)
	if err != nil {
		return nil, fmt.Errorf("list files: %w", err)
	}
	defer rows.Close()

	var out []model.File

	for rows.Next() {
		f, err := scanFile(rows)
		if err != nil {
			return nil, err
		}

		out = append(out, *f)
	}

	return out, rows.Err()
}

// GetFile loads a single File by id.
func (s *Store) GetFile(ctx context.Context, id string) (*model.File, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, snapshot_id, path, language, size_bytes, line_count, content_hash, is_binary, cached_content
		 FROM files WHERE id = ?`, id)

	return scanFile(row)
}

// GetFileByPath loads a File by its snapshot-relative path.
func (s *Store) GetFileByPath(ctx context.Context, snapshotID, path string) (*model.File, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, snapshot_id, path, language, size_bytes, line_count, content_hash, is_binary, cached_content
		 FROM files WHERE snapshot_id = ? AND path = ?`, snapshotID, path)

	return scanFile(row)
}

// FileHashes returns a path -> content_hash map for a snapshot, the
// single query the incremental engine needs (spec §4.E step 2).
func (s *Store) FileHashes(ctx context.Context, snapshotID string) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT path, content_hash FROM files WHERE snapshot_id = ?`, snapshotID)
	if err != nil {
		return nil, fmt.Errorf("file hashes: %w", err)
	}
	defer rows.Close()

	out := make(map[string]string)

	for rows.Next() {
		var path, hash string

		if err := rows.Scan(&path, &hash); err != nil {
			return nil, fmt.Errorf("scan file hash: %w", err)
		}

		out[path] = hash
	}

	return out, rows.Err()
}

func scanFile(row rowScanner) (*model.File, error) {
	var f model.File

	var language sql.NullString

	var isBinary int

	var cached sql.NullString

	err := row.Scan(&f.ID, &f.SnapshotID, &f.Path, &language, &f.SizeBytes, &f.LineCount, &f.ContentHash, &isBinary, &cached)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}

		return nil, fmt.Errorf("scan file: %w", err)
	}

	f.Language = language.String
	f.IsBinary = isBinary != 0

	if cached.Valid {
		v := cached.String
		f.CachedContent = &v
	}

	return &f, nil
}

// CarryForwardFiles copies File rows (and their Symbol/Reference rows)
// from sourceSnapshotID into targetSnapshotID for the given paths,
// without re-parsing (spec §4.E step 4). Each copied entity gets a
// fresh id so the target snapshot's id space stays self-contained
// (invariant 1): symbol ids are never shared across snapshots.
//
// Carry-forward runs in two passes so that references between two
// carried-forward files (in either processing order) still resolve: the
// first pass copies every file and its symbols while building a global
// old-id -> new-id map, the second copies references once every symbol
// in the batch has a new id.
func (s *Store) CarryForwardFiles(ctx context.Context, sourceSnapshotID, targetSnapshotID string, paths []string) error {
	return s.WithTx(ctx, func(tx *sql.Tx) error {
		fileIDMap := make(map[string]string) // old file id -> new file id
		symIDMap := make(map[string]string)  // old symbol id -> new symbol id

		var oldFileIDs []string

		for _, path := range paths {
			oldFileID, newFileID, err := carryForwardFileAndSymbols(ctx, tx, sourceSnapshotID, targetSnapshotID, path, symIDMap)
			if err != nil {
				return err
			}

			fileIDMap[oldFileID] = newFileID
			oldFileIDs = append(oldFileIDs, oldFileID)
		}

		for _, oldFileID := range oldFileIDs {
			if err := carryForwardReferences(ctx, tx, sourceSnapshotID, targetSnapshotID, oldFileID, fileIDMap, symIDMap); err != nil {
				return err
			}
		}

		return nil
	})
}

type carriedSymbol struct {
	oldID, name, qualifiedName, kind, signature, docstring string
	startLine, endLine, startCol, endCol                   int
	parentID                                               sql.NullString
}

// carryForwardFileAndSymbols copies one File row and its Symbol rows,
// recording old->new symbol id mappings in symIDMap (shared across the
// whole batch so cross-file references resolve in the second pass).
// Returns the source file's old and new ids.
func carryForwardFileAndSymbols(ctx context.Context, tx *sql.Tx, sourceSnapshotID, targetSnapshotID, path string, symIDMap map[string]string) (oldFileID, newFileID string, err error) {
	srcFile, err := scanFile(tx.QueryRowContext(ctx,
		`SELECT id, snapshot_id, path, language, size_bytes, line_count, content_hash, is_binary, cached_content
		 FROM files WHERE snapshot_id = ? AND path = ?`, sourceSnapshotID, path))
	if err != nil {
		return "", "", fmt.Errorf("carry forward %s: %w", path, err)
	}

	newFileID, err = PersistFile(ctx, tx, targetSnapshotID, *srcFile)
	if err != nil {
		return "", "", err
	}

	symRows, err := tx.QueryContext(ctx,
		`SELECT id, name, qualified_name, kind, start_line, end_line, start_col, end_col, signature, docstring, parent_id
		 FROM symbols WHERE file_id = ? ORDER BY rowid`, srcFile.ID)
	if err != nil {
		return "", "", fmt.Errorf("carry forward symbols for %s: %w", path, err)
	}

	var syms []carriedSymbol

	for symRows.Next() {
		var r carriedSymbol

		var qualifiedName, signature, docstring sql.NullString

		if err := symRows.Scan(&r.oldID, &r.name, &qualifiedName, &r.kind, &r.startLine, &r.endLine,
			&r.startCol, &r.endCol, &signature, &docstring, &r.parentID); err != nil {
			symRows.Close()
			return "", "", fmt.Errorf("scan carried symbol: %w", err)
		}

		r.qualifiedName = qualifiedName.String
		r.signature = signature.String
		r.docstring = docstring.String
		syms = append(syms, r)
	}
	symRows.Close()

	if err := symRows.Err(); err != nil {
		return "", "", err
	}

	for _, r := range syms {
		symIDMap[r.oldID] = uuid.NewString()
	}

	for _, r := range syms {
		var parentID any
		if r.parentID.Valid {
			if mapped, ok := symIDMap[r.parentID.String]; ok {
				parentID = mapped
			}
		}

		_, err := tx.ExecContext(ctx,
			`INSERT INTO symbols (id, snapshot_id, file_id, name, qualified_name, kind, start_line, end_line, start_col, end_col, signature, docstring, parent_id)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			symIDMap[r.oldID], targetSnapshotID, newFileID, r.name, nullableString(r.qualifiedName), r.kind,
			r.startLine, r.endLine, r.startCol, r.endCol, nullableString(r.signature), nullableString(r.docstring), parentID,
		)
		if err != nil {
			return "", "", fmt.Errorf("carry forward symbol %s: %w", r.name, err)
		}
	}

	return srcFile.ID, newFileID, nil
}

// carryForwardReferences copies references whose source symbol belongs
// to oldFileID. References whose target symbol falls outside the
// carried-forward batch are dropped rather than pointed at a stale
// snapshot's symbol (invariant 1); the orchestrator re-derives them by
// re-parsing whichever file actually changed.
func carryForwardReferences(ctx context.Context, tx *sql.Tx, sourceSnapshotID, targetSnapshotID, oldFileID string, fileIDMap, symIDMap map[string]string) error {
	refRows, err := tx.QueryContext(ctx,
		`SELECT from_symbol_id, to_symbol_id, to_file_id, kind, line, column
		 FROM refs WHERE snapshot_id = ? AND from_symbol_id IN (SELECT id FROM symbols WHERE file_id = ?)`,
		sourceSnapshotID, oldFileID)
	if err != nil {
		return fmt.Errorf("carry forward references: %w", err)
	}
	defer refRows.Close()

	for refRows.Next() {
		var fromID string

		var toSymbolID, toFileID sql.NullString

		var kind string

		var line, col int

		if err := refRows.Scan(&fromID, &toSymbolID, &toFileID, &kind, &line, &col); err != nil {
			return fmt.Errorf("scan carried reference: %w", err)
		}

		newFrom, ok := symIDMap[fromID]
		if !ok {
			continue
		}

		var newTo any
		if toSymbolID.Valid {
			mapped, ok := symIDMap[toSymbolID.String]
			if !ok {
				continue
			}

			newTo = mapped
		}

		var newToFile any
		if toFileID.Valid {
			mapped, ok := fileIDMap[toFileID.String]
			if !ok {
				continue
			}

			newToFile = mapped
		}

		_, err = tx.ExecContext(ctx,
			`INSERT INTO refs (id, snapshot_id, from_symbol_id, to_symbol_id, to_file_id, kind, line, column)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			uuid.NewString(), targetSnapshotID, newFrom, newTo, newToFile, kind, line, col,
		)
		if err != nil {
			return fmt.Errorf("carry forward reference: %w", err)
		}
	}

	return refRows.Err()
}
