package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/codeatlas-dev/codeatlas/internal/model"
)

// validChangesetTransitions enumerates the changeset lifecycle of spec
// §3: PROPOSED -> APPLIED -> ROLLED_BACK, or PROPOSED -> REJECTED.
// ROLLED_BACK and REJECTED are terminal.
var validChangesetTransitions = map[model.ChangesetStatus]map[model.ChangesetStatus]bool{
	model.ChangesetProposed: {model.ChangesetApplied: true, model.ChangesetRejected: true},
	model.ChangesetApplied:  {model.ChangesetRolledBack: true},
}

// CreateChangeset inserts a Changeset in status PROPOSED together with
// its ordered Patches, within one transaction.
func (s *Store) CreateChangeset(ctx context.Context, cs model.Changeset, patches []model.Patch) (*model.Changeset, error) {
	cs.ID = uuid.NewString()
	cs.Status = model.ChangesetProposed
	cs.CreatedAt = time.Now().UTC()

	err := s.WithTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO changesets (id, snapshot_id, title, rationale, status, created_at)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			cs.ID, cs.SnapshotID, cs.Title, nullableString(cs.Rationale), cs.Status,
			cs.CreatedAt.Format(time.RFC3339Nano),
		)
		if err != nil {
			return fmt.Errorf("create changeset: %w", err)
		}

		for i := range patches {
			p := &patches[i]
			p.ID = uuid.NewString()
			p.ChangesetID = cs.ID
			p.ApplyOrder = i

			var original any
			if p.OriginalContent != nil {
				original = *p.OriginalContent
			}

			_, err := tx.ExecContext(ctx,
				`INSERT INTO patches (id, changeset_id, file_path, original_content, new_content, diff, apply_order)
				 VALUES (?, ?, ?, ?, ?, ?, ?)`,
				p.ID, p.ChangesetID, p.FilePath, original, p.NewContent, p.Diff, p.ApplyOrder,
			)
			if err != nil {
				return fmt.Errorf("create patch %s: %w", p.FilePath, err)
			}
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return &cs, nil
}

// GetChangeset loads a Changeset and its Patches in apply order.
func (s *Store) GetChangeset(ctx context.Context, id string) (*model.Changeset, []model.Patch, error) {
	cs, err := scanChangeset(s.db.QueryRowContext(ctx,
		`SELECT id, snapshot_id, title, rationale, status, created_at, applied_at, rolled_back_at, commit_id, commit_message
		 FROM changesets WHERE id = ?`, id))
	if err != nil {
		return nil, nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, changeset_id, file_path, original_content, new_content, diff, apply_order
		 FROM patches WHERE changeset_id = ? ORDER BY apply_order`, id)
	if err != nil {
		return nil, nil, fmt.Errorf("list patches: %w", err)
	}
	defer rows.Close()

	var patches []model.Patch

	for rows.Next() {
		var p model.Patch

		var original sql.NullString

		if err := rows.Scan(&p.ID, &p.ChangesetID, &p.FilePath, &original, &p.NewContent, &p.Diff, &p.ApplyOrder); err != nil {
			return nil, nil, fmt.Errorf("scan patch: %w", err)
		}

		if original.Valid {
			v := original.String
			p.OriginalContent = &v
		}

		patches = append(patches, p)
	}

	return cs, patches, rows.Err()
}

// TransitionChangeset enforces the changeset state machine and records
// the corresponding timestamp.
func (s *Store) TransitionChangeset(ctx context.Context, id string, newStatus model.ChangesetStatus) error {
	cs, _, err := s.GetChangeset(ctx, id)
	if err != nil {
		return err
	}

	if !validChangesetTransitions[cs.Status][newStatus] {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidChangeset, cs.Status, newStatus)
	}

	now := time.Now().UTC().Format(time.RFC3339Nano)

	var query string

	switch newStatus {
	case model.ChangesetApplied:
		query = `UPDATE changesets SET status = ?, applied_at = ? WHERE id = ?`
	case model.ChangesetRolledBack:
		query = `UPDATE changesets SET status = ?, rolled_back_at = ? WHERE id = ?`
	default:
		query = `UPDATE changesets SET status = ? WHERE id = ?`

		_, err := s.db.ExecContext(ctx, query, newStatus, id)
		if err != nil {
			return fmt.Errorf("transition changeset: %w", err)
		}

		return nil
	}

	_, err = s.db.ExecContext(ctx, query, newStatus, now, id)
	if err != nil {
		return fmt.Errorf("transition changeset: %w", err)
	}

	return nil
}

// SetChangesetCommit records the VCS commit id/message for an APPLIED
// changeset (spec §4.I Commit operation).
func (s *Store) SetChangesetCommit(ctx context.Context, id, commitID, message string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE changesets SET commit_id = ?, commit_message = ? WHERE id = ?`,
		commitID, message, id)
	if err != nil {
		return fmt.Errorf("set changeset commit: %w", err)
	}

	return nil
}

// DeleteChangeset removes a Changeset and its Patches, allowed only in
// non-APPLIED states (spec §4.I Delete).
func (s *Store) DeleteChangeset(ctx context.Context, id string) error {
	cs, _, err := s.GetChangeset(ctx, id)
	if err != nil {
		return err
	}

	if cs.Status == model.ChangesetApplied {
		return fmt.Errorf("%w: cannot delete an applied changeset", ErrInvalidChangeset)
	}

	_, err = s.db.ExecContext(ctx, `DELETE FROM changesets WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete changeset: %w", err)
	}

	return nil
}

func scanChangeset(row rowScanner) (*model.Changeset, error) {
	var cs model.Changeset

	var rationale, commitID, commitMessage sql.NullString

	var createdAt string

	var appliedAt, rolledBackAt sql.NullString

	err := row.Scan(&cs.ID, &cs.SnapshotID, &cs.Title, &rationale, &cs.Status, &createdAt,
		&appliedAt, &rolledBackAt, &commitID, &commitMessage)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}

		return nil, fmt.Errorf("scan changeset: %w", err)
	}

	cs.Rationale = rationale.String
	cs.CommitID = commitID.String
	cs.CommitMessage = commitMessage.String

	if t, perr := time.Parse(time.RFC3339Nano, createdAt); perr == nil {
		cs.CreatedAt = t
	}

	if appliedAt.Valid {
		if t, perr := time.Parse(time.RFC3339Nano, appliedAt.String); perr == nil {
			cs.AppliedAt = &t
		}
	}

	if rolledBackAt.Valid {
		if t, perr := time.Parse(time.RFC3339Nano, rolledBackAt.String); perr == nil {
			cs.RolledBackAt = &t
		}
	}

	return &cs, nil
}
