// Package changeset implements the transactional multi-file patch
// applier (spec §4.I): propose a set of file edits against a snapshot,
// apply them with an optimistic-concurrency pre-flight check, roll them
// back, or commit them through a VCS collaborator.
package changeset

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/codeatlas-dev/codeatlas/internal/model"
)

// Sentinel errors per spec §7's changeset-facing error taxonomy.
var (
	ErrConflict          = errors.New("changeset: conflict, working tree changed since proposal")
	ErrInvalidTransition = errors.New("changeset: invalid state transition")
	ErrAlreadyCommitted  = errors.New("changeset: already committed")
)

// Store is the subset of internal/store.Store the applier needs.
type Store interface {
	CreateChangeset(ctx context.Context, cs model.Changeset, patches []model.Patch) (*model.Changeset, error)
	GetChangeset(ctx context.Context, id string) (*model.Changeset, []model.Patch, error)
	TransitionChangeset(ctx context.Context, id string, newStatus model.ChangesetStatus) error
	SetChangesetCommit(ctx context.Context, id, commitID, message string) error
	DeleteChangeset(ctx context.Context, id string) error
	GetSnapshot(ctx context.Context, id string) (*model.Snapshot, error)
}

// VCS is the collaborator used by Commit (spec §6.5). Implementations
// may shell out to an external VCS; this is the only hard dependency.
type VCS interface {
	Stage(ctx context.Context, root string, paths []string) error
	Commit(ctx context.Context, root string, message string) (sha string, err error)
}

// NewPatch is one file's requested edit, as accepted by Create.
type NewPatch struct {
	FilePath   string
	NewContent string
}

// Applier coordinates changeset operations against one project root.
// Apply is serialized per project root via a package-level mutex
// registry (spec §5: single-writer per changeset).
type Applier struct {
	Store Store
	VCS   VCS
}

func New(s Store) *Applier { return &Applier{Store: s} }

var (
	projectLocksMu sync.Mutex
	projectLocks   = map[string]*sync.Mutex{}
)

func lockFor(root string) *sync.Mutex {
	projectLocksMu.Lock()
	defer projectLocksMu.Unlock()

	l, ok := projectLocks[root]
	if !ok {
		l = &sync.Mutex{}
		projectLocks[root] = l
	}

	return l
}

// Create reads current file contents under root for each requested
// patch, computes a unified diff, and stores the changeset as PROPOSED.
func (a *Applier) Create(ctx context.Context, root, snapshotID, title, rationale string, patches []NewPatch) (*model.Changeset, error) {
	if _, err := a.Store.GetSnapshot(ctx, snapshotID); err != nil {
		return nil, fmt.Errorf("changeset create: %w", err)
	}

	modelPatches := make([]model.Patch, 0, len(patches))

	for _, p := range patches {
		full := filepath.Join(root, p.FilePath)

		var original *string

		content, err := os.ReadFile(full)
		switch {
		case err == nil:
			s := string(content)
			original = &s
		case os.IsNotExist(err):
			original = nil
		default:
			return nil, fmt.Errorf("changeset create: read %s: %w", p.FilePath, err)
		}

		origText := ""
		if original != nil {
			origText = *original
		}

		modelPatches = append(modelPatches, model.Patch{
			FilePath:        p.FilePath,
			OriginalContent: original,
			NewContent:      p.NewContent,
			Diff:            unifiedDiff(p.FilePath, origText, p.NewContent),
		})
	}

	cs := model.Changeset{SnapshotID: snapshotID, Title: title, Rationale: rationale}

	return a.Store.CreateChangeset(ctx, cs, modelPatches)
}

// Apply refuses unless the changeset is PROPOSED, re-checks every
// patch's current disk content against its stored original_content
// (optimistic concurrency), and on success writes every patch in order.
func (a *Applier) Apply(ctx context.Context, root, changesetID string) error {
	lock := lockFor(root)
	lock.Lock()
	defer lock.Unlock()

	cs, patches, err := a.Store.GetChangeset(ctx, changesetID)
	if err != nil {
		return fmt.Errorf("changeset apply: %w", err)
	}

	if cs.Status != model.ChangesetProposed {
		return fmt.Errorf("%w: changeset is %s, not PROPOSED", ErrInvalidTransition, cs.Status)
	}

	for _, p := range patches {
		full := filepath.Join(root, p.FilePath)

		current, readErr := os.ReadFile(full)

		switch {
		case readErr == nil:
			if p.OriginalContent == nil || string(current) != *p.OriginalContent {
				return fmt.Errorf("%w: %s changed since proposal", ErrConflict, p.FilePath)
			}
		case os.IsNotExist(readErr):
			if p.OriginalContent != nil {
				return fmt.Errorf("%w: %s was deleted since proposal", ErrConflict, p.FilePath)
			}
		default:
			return fmt.Errorf("changeset apply: preflight read %s: %w", p.FilePath, readErr)
		}
	}

	var written []model.Patch

	for _, p := range patches {
		full := filepath.Join(root, p.FilePath)

		if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
			return a.reverseAndFail(root, written, fmt.Errorf("changeset apply: mkdir for %s: %w", p.FilePath, err))
		}

		if err := os.WriteFile(full, []byte(p.NewContent), 0o644); err != nil {
			return a.reverseAndFail(root, written, fmt.Errorf("changeset apply: write %s: %w", p.FilePath, err))
		}

		written = append(written, p)
	}

	return a.Store.TransitionChangeset(ctx, changesetID, model.ChangesetApplied)
}

// reverseAndFail attempts to restore every already-written patch back
// to its original_content, then returns origErr wrapped with whether
// the reverse succeeded (spec §4.I Apply's mid-apply failure clause).
func (a *Applier) reverseAndFail(root string, written []model.Patch, origErr error) error {
	var reverseErrs []error

	for i := len(written) - 1; i >= 0; i-- {
		p := written[i]
		full := filepath.Join(root, p.FilePath)

		if p.OriginalContent == nil {
			if err := os.Remove(full); err != nil && !os.IsNotExist(err) {
				reverseErrs = append(reverseErrs, err)
			}

			continue
		}

		if err := os.WriteFile(full, []byte(*p.OriginalContent), 0o644); err != nil {
			reverseErrs = append(reverseErrs, err)
		}
	}

	if len(reverseErrs) == 0 {
		return fmt.Errorf("%w (rollback of partial apply succeeded)", origErr)
	}

	return fmt.Errorf("%w (rollback of partial apply also failed: %v)", origErr, errors.Join(reverseErrs...))
}

// Rollback refuses unless the changeset is APPLIED, restores every
// patch in reverse order, and transitions to ROLLED_BACK.
func (a *Applier) Rollback(ctx context.Context, root, changesetID string) error {
	lock := lockFor(root)
	lock.Lock()
	defer lock.Unlock()

	cs, patches, err := a.Store.GetChangeset(ctx, changesetID)
	if err != nil {
		return fmt.Errorf("changeset rollback: %w", err)
	}

	if cs.Status != model.ChangesetApplied {
		return fmt.Errorf("%w: changeset is %s, not APPLIED", ErrInvalidTransition, cs.Status)
	}

	ordered := make([]model.Patch, len(patches))
	copy(ordered, patches)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].ApplyOrder > ordered[j].ApplyOrder })

	for _, p := range ordered {
		full := filepath.Join(root, p.FilePath)

		if p.OriginalContent == nil {
			if err := os.Remove(full); err != nil && !os.IsNotExist(err) {
				return fmt.Errorf("changeset rollback: remove %s: %w", p.FilePath, err)
			}

			continue
		}

		if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
			return fmt.Errorf("changeset rollback: mkdir for %s: %w", p.FilePath, err)
		}

		if err := os.WriteFile(full, []byte(*p.OriginalContent), 0o644); err != nil {
			return fmt.Errorf("changeset rollback: restore %s: %w", p.FilePath, err)
		}
	}

	return a.Store.TransitionChangeset(ctx, changesetID, model.ChangesetRolledBack)
}

// Commit refuses unless the changeset is APPLIED with no prior commit,
// stages the patched paths, and records a commit through the VCS
// collaborator. Failure leaves the applied state unchanged.
func (a *Applier) Commit(ctx context.Context, root, changesetID, message string) (string, error) {
	cs, patches, err := a.Store.GetChangeset(ctx, changesetID)
	if err != nil {
		return "", fmt.Errorf("changeset commit: %w", err)
	}

	if cs.Status != model.ChangesetApplied {
		return "", fmt.Errorf("%w: changeset is %s, not APPLIED", ErrInvalidTransition, cs.Status)
	}

	if cs.CommitID != "" {
		return "", ErrAlreadyCommitted
	}

	if a.VCS == nil {
		return "", fmt.Errorf("changeset commit: no VCS collaborator configured")
	}

	paths := make([]string, len(patches))
	for i, p := range patches {
		paths[i] = p.FilePath
	}

	if err := a.VCS.Stage(ctx, root, paths); err != nil {
		return "", fmt.Errorf("changeset commit: stage: %w", err)
	}

	sha, err := a.VCS.Commit(ctx, root, message)
	if err != nil {
		return "", fmt.Errorf("changeset commit: %w", err)
	}

	if err := a.Store.SetChangesetCommit(ctx, changesetID, sha, message); err != nil {
		return "", fmt.Errorf("changeset commit: record commit: %w", err)
	}

	return sha, nil
}

// Delete removes a changeset, allowed only in non-APPLIED states.
func (a *Applier) Delete(ctx context.Context, changesetID string) error {
	return a.Store.DeleteChangeset(ctx, changesetID)
}
