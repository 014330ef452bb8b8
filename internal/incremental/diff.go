// Package incremental computes the difference between a working tree
// and a prior snapshot's file hashes, so the orchestrator can avoid
// re-parsing files that haven't changed (spec §4.E).
package incremental

import (
	"context"
	"fmt"
	"sort"

	"github.com/codeatlas-dev/codeatlas/internal/scanner"
)

// Diff is the outcome of comparing a working tree against a base
// snapshot's recorded file hashes.
type Diff struct {
	Added          []string
	Modified       []string
	DeletedPaths   []string
	UnchangedPaths []string
	UnchangedCount int
}

// HashSource loads the {path -> content_hash} map for a snapshot (spec
// §4.E step 2: "single query"). internal/store.Store.FileHashes
// satisfies this.
type HashSource interface {
	FileHashes(ctx context.Context, snapshotID string) (map[string]string, error)
}

// Compute runs the scanner over root and diffs the result against
// baseSnapshotID's recorded hashes. baseSnapshotID == "" means there is
// no base snapshot: every scanned file counts as added.
func Compute(ctx context.Context, hashes HashSource, root, baseSnapshotID string, opts scanner.Options) (Diff, []scanner.ScannedFile, error) {
	files, err := scanner.Scan(root, opts)
	if err != nil {
		return Diff{}, nil, fmt.Errorf("incremental scan: %w", err)
	}

	baseHashes := map[string]string{}

	if baseSnapshotID != "" {
		baseHashes, err = hashes.FileHashes(ctx, baseSnapshotID)
		if err != nil {
			return Diff{}, nil, fmt.Errorf("load base hashes: %w", err)
		}
	}

	current := make(map[string]string, len(files))
	for _, f := range files {
		current[f.RelPath] = f.SHA256
	}

	var diff Diff

	for path, hash := range current {
		baseHash, existed := baseHashes[path]

		switch {
		case !existed:
			diff.Added = append(diff.Added, path)
		case baseHash != hash:
			diff.Modified = append(diff.Modified, path)
		default:
			diff.UnchangedPaths = append(diff.UnchangedPaths, path)
		}
	}

	for path := range baseHashes {
		if _, stillExists := current[path]; !stillExists {
			diff.DeletedPaths = append(diff.DeletedPaths, path)
		}
	}

	sort.Strings(diff.Added)
	sort.Strings(diff.Modified)
	sort.Strings(diff.DeletedPaths)
	sort.Strings(diff.UnchangedPaths)

	diff.UnchangedCount = len(diff.UnchangedPaths)

	return diff, files, nil
}

// EstimateTimeSavings projects the wall-clock cost of a full re-index
// against an incremental one, given an average per-file parse cost.
// Returns (incrementalTimeMs, savedTimeMs).
func EstimateTimeSavings(diff Diff, avgFileTimeMs float64) (incrementalTimeMs, savedTimeMs float64) {
	totalFiles := diff.UnchangedCount + len(diff.Added) + len(diff.Modified)
	filesToProcess := len(diff.Added) + len(diff.Modified)

	fullTime := float64(totalFiles) * avgFileTimeMs
	incrementalTime := float64(filesToProcess) * avgFileTimeMs

	return incrementalTime, fullTime - incrementalTime
}
