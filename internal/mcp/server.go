// Package mcp implements a Model Context Protocol server exposing the
// code-intelligence core's operations as MCP tools over stdio
// transport: index_project, impact_analysis, propose_changeset, and
// apply_changeset (spec §1's scope line: these are the only interfaces
// the core exposes to external collaborators).
package mcp

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/codeatlas-dev/codeatlas/internal/changeset"
	"github.com/codeatlas-dev/codeatlas/internal/impact"
	"github.com/codeatlas-dev/codeatlas/internal/model"
	"github.com/codeatlas-dev/codeatlas/internal/observability"
	"github.com/codeatlas-dev/codeatlas/internal/orchestrator"
)

const (
	serverName    = "codeatlas"
	serverVersion = "1.0.0"
	toolCount     = 4
)

// Store is the full snapshot-store surface the MCP tools need, the
// union of what orchestrator/impact/changeset each require plus
// project creation and per-file symbol listing.
type Store interface {
	orchestrator.Store
	impact.Store
	changeset.Store

	CreateProject(ctx context.Context, name, rootPath, defaultBranch string) (*model.Project, error)
	ListSymbolsByFile(ctx context.Context, fileID string) ([]model.Symbol, error)
}

// ServerDeps holds injectable dependencies for the MCP server.
type ServerDeps struct {
	Store   Store
	Runner  *orchestrator.Runner
	Applier *changeset.Applier
	Logger  *slog.Logger
	Metrics *observability.REDMetrics
	Tracer  trace.Tracer
}

// Server wraps the MCP SDK server with codeatlas tool registrations.
type Server struct {
	inner *mcpsdk.Server
	mu    sync.RWMutex
	tools []string

	deps ServerDeps
}

// NewServer creates a new MCP server with all codeatlas tools registered.
func NewServer(deps ServerDeps) *Server {
	opts := &mcpsdk.ServerOptions{}
	if deps.Logger != nil {
		opts.Logger = deps.Logger
	}

	inner := mcpsdk.NewServer(
		&mcpsdk.Implementation{Name: serverName, Version: serverVersion},
		opts,
	)

	srv := &Server{
		inner: inner,
		tools: make([]string, 0, toolCount),
		deps:  deps,
	}

	srv.registerTools()

	return srv
}

// ListToolNames returns the sorted names of all registered tools.
func (s *Server) ListToolNames() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, len(s.tools))
	copy(names, s.tools)
	sort.Strings(names)

	return names
}

// Run starts the MCP server on stdio transport, blocking until ctx is
// canceled or the connection closes.
func (s *Server) Run(ctx context.Context) error {
	if err := s.inner.Run(ctx, &mcpsdk.StdioTransport{}); err != nil {
		return fmt.Errorf("mcp server: %w", err)
	}

	return nil
}

// RunWithTransport starts the MCP server on the given transport.
func (s *Server) RunWithTransport(ctx context.Context, transport mcpsdk.Transport) error {
	if err := s.inner.Run(ctx, transport); err != nil {
		return fmt.Errorf("mcp server: %w", err)
	}

	return nil
}

func (s *Server) registerTools() {
	mcpsdk.AddTool(s.inner, &mcpsdk.Tool{
		Name:        ToolNameIndexProject,
		Description: indexProjectDescription,
	}, withMetrics(s.deps.Metrics, ToolNameIndexProject, withTracing(s.deps.Tracer, ToolNameIndexProject, s.handleIndexProject)))
	s.trackTool(ToolNameIndexProject)

	mcpsdk.AddTool(s.inner, &mcpsdk.Tool{
		Name:        ToolNameImpactAnalysis,
		Description: impactAnalysisDescription,
	}, withMetrics(s.deps.Metrics, ToolNameImpactAnalysis, withTracing(s.deps.Tracer, ToolNameImpactAnalysis, s.handleImpactAnalysis)))
	s.trackTool(ToolNameImpactAnalysis)

	mcpsdk.AddTool(s.inner, &mcpsdk.Tool{
		Name:        ToolNameProposeChangeset,
		Description: proposeChangesetDescription,
	}, withMetrics(s.deps.Metrics, ToolNameProposeChangeset, withTracing(s.deps.Tracer, ToolNameProposeChangeset, s.handleProposeChangeset)))
	s.trackTool(ToolNameProposeChangeset)

	mcpsdk.AddTool(s.inner, &mcpsdk.Tool{
		Name:        ToolNameApplyChangeset,
		Description: applyChangesetDescription,
	}, withMetrics(s.deps.Metrics, ToolNameApplyChangeset, withTracing(s.deps.Tracer, ToolNameApplyChangeset, s.handleApplyChangeset)))
	s.trackTool(ToolNameApplyChangeset)
}

func (s *Server) trackTool(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.tools = append(s.tools, name)
}

const mcpSpanPrefix = "mcp."

const traceIDMetaKey = "trace_id"

// withTracing wraps an MCP tool handler to create an OTel span per
// invocation and include trace_id in the response content when sampled.
func withTracing[Input any](
	tracer trace.Tracer,
	toolName string,
	handler func(context.Context, *mcpsdk.CallToolRequest, Input) (*mcpsdk.CallToolResult, ToolOutput, error),
) func(context.Context, *mcpsdk.CallToolRequest, Input) (*mcpsdk.CallToolResult, ToolOutput, error) {
	if tracer == nil {
		return handler
	}

	return func(ctx context.Context, req *mcpsdk.CallToolRequest, input Input) (*mcpsdk.CallToolResult, ToolOutput, error) {
		ctx, span := tracer.Start(ctx, mcpSpanPrefix+toolName,
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(attribute.String("mcp.tool", toolName)),
		)
		defer span.End()

		result, output, err := handler(ctx, req, input)

		sc := span.SpanContext()
		if sc.IsSampled() && result != nil {
			result.Content = append(result.Content, &mcpsdk.TextContent{
				Text: fmt.Sprintf("%s=%s", traceIDMetaKey, sc.TraceID().String()),
			})
		}

		return result, output, err
	}
}

// withMetrics wraps an MCP tool handler to record RED metrics per invocation.
func withMetrics[Input any](
	metrics *observability.REDMetrics,
	toolName string,
	handler func(context.Context, *mcpsdk.CallToolRequest, Input) (*mcpsdk.CallToolResult, ToolOutput, error),
) func(context.Context, *mcpsdk.CallToolRequest, Input) (*mcpsdk.CallToolResult, ToolOutput, error) {
	if metrics == nil {
		return handler
	}

	return func(ctx context.Context, req *mcpsdk.CallToolRequest, input Input) (*mcpsdk.CallToolResult, ToolOutput, error) {
		start := time.Now()

		decInflight := metrics.TrackInflight(ctx, mcpSpanPrefix+toolName)
		defer decInflight()

		result, output, err := handler(ctx, req, input)

		status := "ok"
		if err != nil || (result != nil && result.IsError) {
			status = "error"
		}

		metrics.RecordRequest(ctx, mcpSpanPrefix+toolName, status, time.Since(start))

		return result, output, err
	}
}

const (
	indexProjectDescription = "Index a project's working tree into a queryable snapshot of its " +
		"files, symbols, and cross-references. Registers a new project when project_id is " +
		"omitted, otherwise builds a successor snapshot, carrying unchanged files forward " +
		"from base_snapshot_id when given."

	impactAnalysisDescription = "Compute the bounded-depth reverse-reference impact of a set of " +
		"changed symbols or files within a snapshot: which symbols and files are transitively " +
		"affected, and a risk classification (low/medium/high/critical)."

	proposeChangesetDescription = "Propose a multi-file patch against a snapshot: captures each " +
		"file's current content and computes a unified diff to the proposed new content. " +
		"Does not touch the working tree until apply_changeset is called."

	applyChangesetDescription = "Apply a previously proposed changeset to the working tree. " +
		"Fails with a conflict if any target file changed since the changeset was proposed; " +
		"no partial writes occur on conflict."
)
