package mcp

import (
	"context"
	"fmt"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/codeatlas-dev/codeatlas/internal/orchestrator"
)

// defaultMaxFileSize is the scanner's size gate when the caller omits
// max_file_size (spec §4.B).
const defaultMaxFileSize = 1 << 20

// IndexProjectResult is the structured output of index_project.
type IndexProjectResult struct {
	ProjectID   string `json:"project_id"`
	SnapshotID  string `json:"snapshot_id"`
	State       string `json:"state"`
	FileCount   int    `json:"file_count"`
	SymbolCount int    `json:"symbol_count"`
	TotalLines  int    `json:"total_lines"`
	Progress    int    `json:"progress"`
	Error       string `json:"error,omitempty"`
}

func (s *Server) handleIndexProject(
	ctx context.Context,
	_ *mcpsdk.CallToolRequest,
	input IndexProjectInput,
) (*mcpsdk.CallToolResult, ToolOutput, error) {
	projectID := input.ProjectID

	if projectID == "" {
		if err := validateRootPath(input.RootPath); err != nil {
			return errorResult(err)
		}

		if input.Name == "" {
			return errorResult(ErrEmptyProjectName)
		}

		project, err := s.deps.Store.CreateProject(ctx, input.Name, input.RootPath, input.Branch)
		if err != nil {
			return errorResult(fmt.Errorf("create project: %w", err))
		}

		projectID = project.ID
	}

	maxFileSize := input.MaxFileSize
	if maxFileSize <= 0 {
		maxFileSize = defaultMaxFileSize
	}

	snap, err := s.deps.Runner.Build(ctx, projectID, orchestrator.BuildOptions{
		CommitID:       input.CommitID,
		Branch:         input.Branch,
		BaseSnapshotID: input.BaseSnapshotID,
		MaxFileSize:    maxFileSize,
	})
	if err != nil {
		return errorResult(fmt.Errorf("index project: %w", err))
	}

	return jsonResult(IndexProjectResult{
		ProjectID:   projectID,
		SnapshotID:  snap.ID,
		State:       string(snap.State),
		FileCount:   snap.FileCount,
		SymbolCount: snap.SymbolCount,
		TotalLines:  snap.TotalLines,
		Progress:    snap.Progress,
		Error:       snap.ErrorMessage,
	})
}
