package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/codeatlas-dev/codeatlas/internal/model"
)

// validTransitions enumerates the snapshot state machine of spec §3's
// lifecycle: PENDING -> INDEXING -> {READY, FAILED}. Snapshots never
// transition out of a terminal state; successor snapshots are created
// fresh instead.
var validTransitions = map[model.SnapshotState]map[model.SnapshotState]bool{
	model.SnapshotPending:  {model.SnapshotIndexing: true, model.SnapshotFailed: true},
	model.SnapshotIndexing: {model.SnapshotIndexing: true, model.SnapshotReady: true, model.SnapshotFailed: true},
}

// CreateSnapshot inserts a new Snapshot in state PENDING.
func (s *Store) CreateSnapshot(ctx context.Context, projectID, commitID, branch string) (*model.Snapshot, error) {
	snap := &model.Snapshot{
		ID:        uuid.NewString(),
		ProjectID: projectID,
		CommitID:  commitID,
		Branch:    branch,
		State:     model.SnapshotPending,
		Progress:  0,
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO snapshots (id, project_id, commit_id, branch, state, progress, schema_version, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		snap.ID, snap.ProjectID, snap.CommitID, snap.Branch, snap.State, snap.Progress, 1,
		time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return nil, fmt.Errorf("create snapshot: %w", err)
	}

	return snap, nil
}

// TransitionSnapshot moves a Snapshot to newState, enforcing the state
// machine and invariant 4 (READY implies progress==100 and no error;
// FAILED implies a non-empty error; INDEXING implies 0<=progress<100).
func (s *Store) TransitionSnapshot(ctx context.Context, id string, newState model.SnapshotState, progress int, errMsg string) error {
	snap, err := s.GetSnapshot(ctx, id)
	if err != nil {
		return err
	}

	if !validTransitions[snap.State][newState] {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, snap.State, newState)
	}

	switch newState {
	case model.SnapshotReady:
		progress = 100
		errMsg = ""
	case model.SnapshotFailed:
		if errMsg == "" {
			errMsg = "unknown error"
		}

		if len(errMsg) > 1000 {
			errMsg = errMsg[:1000]
		}
	case model.SnapshotIndexing:
		if progress < 0 {
			progress = 0
		}

		if progress > 99 {
			progress = 99
		}
	}

	_, err = s.db.ExecContext(ctx,
		`UPDATE snapshots SET state = ?, progress = ?, error_message = ? WHERE id = ?`,
		newState, progress, nullableString(errMsg), id,
	)
	if err != nil {
		return fmt.Errorf("transition snapshot: %w", err)
	}

	return nil
}

// SetSnapshotProgress updates only the progress percent of an INDEXING
// snapshot, without a state transition. Progress reporting is
// best-effort (spec §4.F): callers must tolerate stale values, so this
// never fails the surrounding operation.
func (s *Store) SetSnapshotProgress(ctx context.Context, id string, progress int) error {
	if progress < 0 {
		progress = 0
	}

	if progress > 99 {
		progress = 99
	}

	_, err := s.db.ExecContext(ctx, `UPDATE snapshots SET progress = ? WHERE id = ? AND state = ?`,
		progress, id, model.SnapshotIndexing)
	if err != nil {
		return fmt.Errorf("set snapshot progress: %w", err)
	}

	return nil
}

// FinalizeSnapshotCounts records the final file/symbol/line counts for
// a snapshot, set once indexing completes (spec §4.F step 5).
func (s *Store) FinalizeSnapshotCounts(ctx context.Context, id string, fileCount, symbolCount, totalLines int) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE snapshots SET file_count = ?, symbol_count = ?, total_lines = ? WHERE id = ?`,
		fileCount, symbolCount, totalLines, id)
	if err != nil {
		return fmt.Errorf("finalize snapshot counts: %w", err)
	}

	return nil
}

// GetSnapshot loads a Snapshot by id.
func (s *Store) GetSnapshot(ctx context.Context, id string) (*model.Snapshot, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, project_id, commit_id, branch, state, progress, error_message,
		        file_count, symbol_count, total_lines, schema_version, created_at
		 FROM snapshots WHERE id = ?`, id)

	return scanSnapshot(row)
}

// ListSnapshots returns all snapshots for a project, most recent first.
func (s *Store) ListSnapshots(ctx context.Context, projectID string) ([]model.Snapshot, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, project_id, commit_id, branch, state, progress, error_message,
		        file_count, symbol_count, total_lines, schema_version, created_at
		 FROM snapshots WHERE project_id = ? ORDER BY created_at DESC`, projectID)
	if err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	defer rows.Close()

	var out []model.Snapshot

	for rows.Next() {
		snap, err := scanSnapshot(rows)
		if err != nil {
			return nil, err
		}

		out = append(out, *snap)
	}

	return out, rows.Err()
}

// LatestReadySnapshot returns the most recently created READY snapshot
// for a project, used by the incremental engine as the default base.
func (s *Store) LatestReadySnapshot(ctx context.Context, projectID string) (*model.Snapshot, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, project_id, commit_id, branch, state, progress, error_message,
		        file_count, symbol_count, total_lines, schema_version, created_at
		 FROM snapshots WHERE project_id = ? AND state = ? ORDER BY created_at DESC LIMIT 1`,
		projectID, model.SnapshotReady)

	return scanSnapshot(row)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSnapshot(row rowScanner) (*model.Snapshot, error) {
	var snap model.Snapshot

	var commitID, branch, errMsg sql.NullString

	var createdAt string

	err := row.Scan(&snap.ID, &snap.ProjectID, &commitID, &branch, &snap.State, &snap.Progress, &errMsg,
		&snap.FileCount, &snap.SymbolCount, &snap.TotalLines, &snap.SchemaVersion, &createdAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}

		return nil, fmt.Errorf("scan snapshot: %w", err)
	}

	snap.CommitID = commitID.String
	snap.Branch = branch.String
	snap.ErrorMessage = errMsg.String

	if t, perr := time.Parse(time.RFC3339Nano, createdAt); perr == nil {
		snap.CreatedAt = t
	}

	return &snap, nil
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}

	return s
}
