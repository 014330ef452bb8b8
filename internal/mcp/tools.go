package mcp

import (
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
)

// Tool name constants (spec §1's scope line: "the interfaces the core
// exposes to [external collaborators] are in scope").
const (
	ToolNameIndexProject     = "index_project"
	ToolNameImpactAnalysis   = "impact_analysis"
	ToolNameProposeChangeset = "propose_changeset"
	ToolNameApplyChangeset   = "apply_changeset"
)

// Sentinel errors for tool input validation.
var (
	ErrEmptyRootPath      = errors.New("root_path parameter is required and must not be empty")
	ErrRootPathNotAbs     = errors.New("root_path must be an absolute path")
	ErrEmptyProjectName   = errors.New("name parameter is required when project_id is not given")
	ErrEmptySnapshotID    = errors.New("snapshot_id parameter is required and must not be empty")
	ErrEmptyChangeTarget  = errors.New("symbol_ids or changed_files must be given")
	ErrEmptyChangesetID   = errors.New("changeset_id parameter is required and must not be empty")
	ErrEmptyChangesetSpec = errors.New("title and at least one patch are required")
)

// IndexProjectInput is the input schema for the index_project tool.
// Either ProjectID (build a successor snapshot of an existing project)
// or Name+RootPath (register a new project, then build its first
// snapshot) must be given.
type IndexProjectInput struct {
	ProjectID      string `json:"project_id,omitempty"      jsonschema:"existing project id; omit to register a new project"`
	Name           string `json:"name,omitempty"            jsonschema:"project name, required when project_id is omitted"`
	RootPath       string `json:"root_path,omitempty"       jsonschema:"absolute path to the project's working tree, required when project_id is omitted"`
	CommitID       string `json:"commit_id,omitempty"       jsonschema:"VCS commit id this snapshot indexes"`
	Branch         string `json:"branch,omitempty"          jsonschema:"VCS branch name this snapshot indexes"`
	BaseSnapshotID string `json:"base_snapshot_id,omitempty" jsonschema:"prior snapshot id to diff against for incremental carry-forward"`
	MaxFileSize    int64  `json:"max_file_size,omitempty"   jsonschema:"maximum scanned file size in bytes (default 1 MiB)"`
}

// ImpactAnalysisInput is the input schema for the impact_analysis tool.
type ImpactAnalysisInput struct {
	SnapshotID   string   `json:"snapshot_id"              jsonschema:"snapshot to analyze"`
	SymbolIDs    []string `json:"symbol_ids,omitempty"     jsonschema:"directly changed symbol ids"`
	ChangedFiles []string `json:"changed_files,omitempty"  jsonschema:"project-relative paths of changed files; every symbol they define is treated as directly changed"`
}

// PatchInput is one requested file edit, as accepted by propose_changeset.
type PatchInput struct {
	FilePath   string `json:"file_path"   jsonschema:"project-relative file path"`
	NewContent string `json:"new_content" jsonschema:"the file's full proposed content"`
}

// ProposeChangesetInput is the input schema for the propose_changeset tool.
type ProposeChangesetInput struct {
	RootPath   string       `json:"root_path"          jsonschema:"absolute path to the project's working tree"`
	SnapshotID string       `json:"snapshot_id"        jsonschema:"snapshot this changeset is proposed against"`
	Title      string       `json:"title"              jsonschema:"short changeset title"`
	Rationale  string       `json:"rationale,omitempty" jsonschema:"why this change is proposed"`
	Patches    []PatchInput `json:"patches"            jsonschema:"one entry per file to create or modify"`
}

// ApplyChangesetInput is the input schema for the apply_changeset tool.
type ApplyChangesetInput struct {
	RootPath    string `json:"root_path"    jsonschema:"absolute path to the project's working tree"`
	ChangesetID string `json:"changeset_id" jsonschema:"changeset to apply"`
}

// ToolOutput is a generic wrapper for tool results, used as the
// structured-output half of the generic AddTool signature.
type ToolOutput struct {
	Data any `json:"data"`
}

// validateRootPath enforces spec §4.B's scanner precondition that the
// project root is an absolute path, applied at the MCP boundary before
// it reaches the scanner.
func validateRootPath(rootPath string) error {
	if rootPath == "" {
		return ErrEmptyRootPath
	}

	if !filepath.IsAbs(rootPath) {
		return ErrRootPathNotAbs
	}

	return nil
}

// errorResult builds a CallToolResult with isError set.
func errorResult(err error) (*mcpsdk.CallToolResult, ToolOutput, error) {
	return &mcpsdk.CallToolResult{
		Content: []mcpsdk.Content{
			&mcpsdk.TextContent{Text: err.Error()},
		},
		IsError: true,
	}, ToolOutput{}, nil
}

// jsonResult builds a CallToolResult with JSON-encoded content.
func jsonResult(value any) (*mcpsdk.CallToolResult, ToolOutput, error) {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return errorResult(fmt.Errorf("encode result: %w", err))
	}

	return &mcpsdk.CallToolResult{
		Content: []mcpsdk.Content{
			&mcpsdk.TextContent{Text: string(data)},
		},
	}, ToolOutput{Data: value}, nil
}
