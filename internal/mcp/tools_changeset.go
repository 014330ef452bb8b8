package mcp

import (
	"context"
	"fmt"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/codeatlas-dev/codeatlas/internal/changeset"
	"github.com/codeatlas-dev/codeatlas/internal/model"
)

// PatchResult is one patch within a ProposeChangesetResult.
type PatchResult struct {
	FilePath string `json:"file_path"`
	Diff     string `json:"diff"`
	IsNew    bool   `json:"is_new"`
}

// ProposeChangesetResult is the structured output of propose_changeset.
type ProposeChangesetResult struct {
	ChangesetID string        `json:"changeset_id"`
	Status      string        `json:"status"`
	Patches     []PatchResult `json:"patches"`
}

func (s *Server) handleProposeChangeset(
	ctx context.Context,
	_ *mcpsdk.CallToolRequest,
	input ProposeChangesetInput,
) (*mcpsdk.CallToolResult, ToolOutput, error) {
	if err := validateRootPath(input.RootPath); err != nil {
		return errorResult(err)
	}

	if input.SnapshotID == "" {
		return errorResult(ErrEmptySnapshotID)
	}

	if input.Title == "" || len(input.Patches) == 0 {
		return errorResult(ErrEmptyChangesetSpec)
	}

	patches := make([]changeset.NewPatch, 0, len(input.Patches))
	for _, p := range input.Patches {
		patches = append(patches, changeset.NewPatch{FilePath: p.FilePath, NewContent: p.NewContent})
	}

	cs, err := s.deps.Applier.Create(ctx, input.RootPath, input.SnapshotID, input.Title, input.Rationale, patches)
	if err != nil {
		return errorResult(fmt.Errorf("propose changeset: %w", err))
	}

	_, storedPatches, err := s.deps.Store.GetChangeset(ctx, cs.ID)
	if err != nil {
		return errorResult(fmt.Errorf("propose changeset: reload: %w", err))
	}

	result := ProposeChangesetResult{ChangesetID: cs.ID, Status: string(cs.Status)}

	for _, p := range storedPatches {
		result.Patches = append(result.Patches, PatchResult{
			FilePath: p.FilePath,
			Diff:     p.Diff,
			IsNew:    p.OriginalContent == nil,
		})
	}

	return jsonResult(result)
}

// ApplyChangesetResult is the structured output of apply_changeset.
type ApplyChangesetResult struct {
	ChangesetID string `json:"changeset_id"`
	Status      string `json:"status"`
}

func (s *Server) handleApplyChangeset(
	ctx context.Context,
	_ *mcpsdk.CallToolRequest,
	input ApplyChangesetInput,
) (*mcpsdk.CallToolResult, ToolOutput, error) {
	if err := validateRootPath(input.RootPath); err != nil {
		return errorResult(err)
	}

	if input.ChangesetID == "" {
		return errorResult(ErrEmptyChangesetID)
	}

	if err := s.deps.Applier.Apply(ctx, input.RootPath, input.ChangesetID); err != nil {
		return errorResult(fmt.Errorf("apply changeset: %w", err))
	}

	return jsonResult(ApplyChangesetResult{ChangesetID: input.ChangesetID, Status: string(model.ChangesetApplied)})
}
