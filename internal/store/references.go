package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/codeatlas-dev/codeatlas/internal/model"
)

// PersistReference inserts a Reference row. Exactly one of ref.ToSymbolID
// or ref.ToFileID must be set (invariant 3).
func PersistReference(ctx context.Context, exec ExecOrTx, snapshotID string, ref model.Reference) (string, error) {
	hasSymbol := ref.ToSymbolID != nil && *ref.ToSymbolID != ""
	hasFile := ref.ToFileID != nil && *ref.ToFileID != ""

	if hasSymbol == hasFile {
		return "", ErrAmbiguousReference
	}

	id := uuid.NewString()

	var toSymbol, toFile any
	if hasSymbol {
		toSymbol = *ref.ToSymbolID
	}

	if hasFile {
		toFile = *ref.ToFileID
	}

	_, err := exec.ExecContext(ctx,
		`INSERT INTO refs (id, snapshot_id, from_symbol_id, to_symbol_id, to_file_id, kind, line, column)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		id, snapshotID, ref.FromSymbolID, toSymbol, toFile, ref.Kind, ref.Line, ref.Column,
	)
	if err != nil {
		return "", fmt.Errorf("persist reference: %w", err)
	}

	return id, nil
}

// IncomingReferences returns all references targeting any of symbolIDs
// within a snapshot — the reverse-edge query the impact analyzer's BFS
// batches per layer (spec §4.G, §4.H).
func (s *Store) IncomingReferences(ctx context.Context, snapshotID string, symbolIDs []string) ([]model.Reference, error) {
	if len(symbolIDs) == 0 {
		return nil, nil
	}

	query, args := inClause(
		`SELECT id, snapshot_id, from_symbol_id, to_symbol_id, to_file_id, kind, line, column
		 FROM refs WHERE snapshot_id = ? AND to_symbol_id IN (%s)`, symbolIDs)
	args = append([]any{snapshotID}, args...)

	return queryReferences(ctx, s.db, query, args...)
}

// OutgoingReferences returns all references originating from symbolID.
func (s *Store) OutgoingReferences(ctx context.Context, snapshotID, symbolID string) ([]model.Reference, error) {
	return queryReferences(ctx, s.db,
		`SELECT id, snapshot_id, from_symbol_id, to_symbol_id, to_file_id, kind, line, column
		 FROM refs WHERE snapshot_id = ? AND from_symbol_id = ?`, snapshotID, symbolID)
}

// ReferencesBySnapshot returns every reference in a snapshot, used by
// the dependency-graph export.
func (s *Store) ReferencesBySnapshot(ctx context.Context, snapshotID string) ([]model.Reference, error) {
	return queryReferences(ctx, s.db,
		`SELECT id, snapshot_id, from_symbol_id, to_symbol_id, to_file_id, kind, line, column
		 FROM refs WHERE snapshot_id = ?`, snapshotID)
}

func queryReferences(ctx context.Context, db *sql.DB, query string, args ...any) ([]model.Reference, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query references: %w", err)
	}
	defer rows.Close()

	var out []model.Reference

	for rows.Next() {
		ref, err := scanReference(rows)
		if err != nil {
			return nil, err
		}

		out = append(out, *ref)
	}

	return out, rows.Err()
}

func scanReference(row rowScanner) (*model.Reference, error) {
	var ref model.Reference

	var toSymbolID, toFileID sql.NullString

	err := row.Scan(&ref.ID, &ref.SnapshotID, &ref.FromSymbolID, &toSymbolID, &toFileID, &ref.Kind, &ref.Line, &ref.Column)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}

		return nil, fmt.Errorf("scan reference: %w", err)
	}

	if toSymbolID.Valid {
		v := toSymbolID.String
		ref.ToSymbolID = &v
	}

	if toFileID.Valid {
		v := toFileID.String
		ref.ToFileID = &v
	}

	return &ref, nil
}
