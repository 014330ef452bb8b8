package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/codeatlas-dev/codeatlas/internal/model"
)

// PersistSymbol inserts a Symbol row and returns the generated id.
// parentID, if non-empty, must reference a Symbol already persisted in
// the same snapshot (invariant 2); the orchestrator resolves
// parent_name to parent_id before calling this.
func PersistSymbol(ctx context.Context, exec ExecOrTx, snapshotID, fileID string, sym model.Symbol, parentID string) (string, error) {
	id := uuid.NewString()

	var parent any
	if parentID != "" {
		parent = parentID
	}

	_, err := exec.ExecContext(ctx,
		`INSERT INTO symbols (id, snapshot_id, file_id, name, qualified_name, kind, start_line, end_line, start_col, end_col, signature, docstring, parent_id)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, snapshotID, fileID, sym.Name, nullableString(sym.QualifiedName), sym.Kind,
		sym.StartLine, sym.EndLine, sym.StartCol, sym.EndCol,
		nullableString(sym.Signature), nullableString(sym.Docstring), parent,
	)
	if err != nil {
		return "", fmt.Errorf("persist symbol %s: %w", sym.Name, err)
	}

	return id, nil
}

// GetSymbol loads a single Symbol by id.
func (s *Store) GetSymbol(ctx context.Context, id string) (*model.Symbol, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, snapshot_id, file_id, name, qualified_name, kind, start_line, end_line, start_col, end_col, signature, docstring, parent_id
		 FROM symbols WHERE id = ?`, id)

	return scanSymbol(row)
}

// GetSymbols loads Symbols by id, preserving the input order's distinct
// set (duplicates coalesced).
func (s *Store) GetSymbols(ctx context.Context, ids []string) ([]model.Symbol, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	query, args := inClause(
		`SELECT id, snapshot_id, file_id, name, qualified_name, kind, start_line, end_line, start_col, end_col, signature, docstring, parent_id
		 FROM symbols WHERE id IN (%s)`, ids)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("get symbols: %w", err)
	}
	defer rows.Close()

	var out []model.Symbol

	for rows.Next() {
		sym, err := scanSymbol(rows)
		if err != nil {
			return nil, err
		}

		out = append(out, *sym)
	}

	return out, rows.Err()
}

// ListSymbolsByFile returns all symbols defined in a file, in insertion
// order (rowid), matching the parser's emission order (spec §5).
func (s *Store) ListSymbolsByFile(ctx context.Context, fileID string) ([]model.Symbol, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, snapshot_id, file_id, name, qualified_name, kind, start_line, end_line, start_col, end_col, signature, docstring, parent_id
		 FROM symbols WHERE file_id = ? ORDER BY rowid`, fileID)
	if err != nil {
		return nil, fmt.Errorf("list symbols by file: %w", err)
	}
	defer rows.Close()

	var out []model.Symbol

	for rows.Next() {
		sym, err := scanSymbol(rows)
		if err != nil {
			return nil, err
		}

		out = append(out, *sym)
	}

	return out, rows.Err()
}

// ListSymbolsBySnapshot returns every symbol in a snapshot.
func (s *Store) ListSymbolsBySnapshot(ctx context.Context, snapshotID string) ([]model.Symbol, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, snapshot_id, file_id, name, qualified_name, kind, start_line, end_line, start_col, end_col, signature, docstring, parent_id
		 FROM symbols WHERE snapshot_id = ? ORDER BY rowid`, snapshotID)
	if err != nil {
		return nil, fmt.Errorf("list symbols by snapshot: %w", err)
	}
	defer rows.Close()

	var out []model.Symbol

	for rows.Next() {
		sym, err := scanSymbol(rows)
		if err != nil {
			return nil, err
		}

		out = append(out, *sym)
	}

	return out, rows.Err()
}

func scanSymbol(row rowScanner) (*model.Symbol, error) {
	var sym model.Symbol

	var qualifiedName, signature, docstring, parentID sql.NullString

	err := row.Scan(&sym.ID, &sym.SnapshotID, &sym.FileID, &sym.Name, &qualifiedName, &sym.Kind,
		&sym.StartLine, &sym.EndLine, &sym.StartCol, &sym.EndCol, &signature, &docstring, &parentID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}

		return nil, fmt.Errorf("scan symbol: %w", err)
	}

	sym.QualifiedName = qualifiedName.String
	sym.Signature = signature.String
	sym.Docstring = docstring.String

	if parentID.Valid {
		v := parentID.String
		sym.ParentID = &v
	}

	return &sym, nil
}

// inClause builds a query with a `(?, ?, ...)` placeholder list for ids,
// substituted into the %s of query.
func inClause(query string, ids []string) (string, []any) {
	placeholders := make([]byte, 0, len(ids)*2)
	args := make([]any, len(ids))

	for i, id := range ids {
		if i > 0 {
			placeholders = append(placeholders, ',')
		}

		placeholders = append(placeholders, '?')
		args[i] = id
	}

	return fmt.Sprintf(query, string(placeholders)), args
}
