// Package mcp exposes the project stage operations as MCP tools so AI
// agents can inspect and move projects through the workflow.
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"business-os/backend/internal/auth"
	"business-os/backend/internal/repository"
	"business-os/backend/internal/stages"
	"business-os/backend/pkg/models"
)

// ProjectReader loads projects for tenant checks and validation.
type ProjectReader interface {
	GetProject(ctx context.Context, id string) (*models.Project, error)
}

type Server struct {
	mcpServer *server.MCPServer
	projects  ProjectReader
	executor  *stages.Executor
}

func NewServer(projects ProjectReader, executor *stages.Executor, version string) *Server {
	s := &Server{
		mcpServer: server.NewMCPServer(
			"Business OS Stages",
			version,
			server.WithToolCapabilities(true),
		),
		projects: projects,
		executor: executor,
	}

	s.registerTools()
	return s
}

func (s *Server) GetMCPServer() *server.MCPServer {
	return s.mcpServer
}

func (s *Server) registerTools() {
	s.mcpServer.AddTool(
		mcp.NewTool(
			"validate_transition",
			mcp.WithDescription("Check whether a project may move to a stage, without changing it"),
			mcp.WithString("project_id", mcp.Required(), mcp.Description("The ID of the project")),
			mcp.WithString("target_stage", mcp.Required(), mcp.Description("The stage to move to")),
		),
		s.handleValidateTransition,
	)

	s.mcpServer.AddTool(
		mcp.NewTool(
			"update_stage",
			mcp.WithDescription("Move a project to another stage. Backward moves need force_override after the user confirms"),
			mcp.WithString("project_id", mcp.Required(), mcp.Description("The ID of the project")),
			mcp.WithString("target_stage", mcp.Required(), mcp.Description("The stage to move to")),
			mcp.WithString("reason", mcp.Description("Why the project is moving")),
			mcp.WithBoolean("force_override", mcp.Description("Apply the move even if validation denies it")),
		),
		s.handleUpdateStage,
	)

	s.mcpServer.AddTool(
		mcp.NewTool(
			"available_stages",
			mcp.WithDescription("List the stages a project can move to now"),
			mcp.WithString("project_id", mcp.Required(), mcp.Description("The ID of the project")),
		),
		s.handleAvailableStages,
	)

	s.mcpServer.AddTool(
		mcp.NewTool(
			"stage_checklist",
			mcp.WithDescription("List the fields a project needs before entering a stage, and the stage's progress"),
			mcp.WithString("stage", mcp.Required(), mcp.Description("The stage name")),
		),
		s.handleStageChecklist,
	)
}

// loadProject returns the project when it belongs to the caller's tenant.
func (s *Server) loadProject(ctx context.Context, id string) (*models.Project, *mcp.CallToolResult) {
	p, ok := auth.PrincipalFrom(ctx)
	if !ok {
		return nil, mcp.NewToolResultError("Not authenticated")
	}
	project, err := s.projects.GetProject(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, mcp.NewToolResultError("Project not found: " + id)
		}
		return nil, mcp.NewToolResultError(fmt.Sprintf("Failed to load project: %v", err))
	}
	if project.TenantID != p.TenantID {
		return nil, mcp.NewToolResultError("Project not found: " + id)
	}
	return project, nil
}

func (s *Server) handleValidateTransition(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := request.RequireString("project_id")
	if err != nil {
		return mcp.NewToolResultError("Missing required parameter: project_id"), nil
	}
	target, err := request.RequireString("target_stage")
	if err != nil {
		return mcp.NewToolResultError("Missing required parameter: target_stage"), nil
	}

	project, failure := s.loadProject(ctx, id)
	if failure != nil {
		return failure, nil
	}
	current := project.CurrentStage
	if current == "" {
		current = s.executor.Validator().Graph().Entry()
	}
	return jsonResult(s.executor.Validator().Validate(current, target, project))
}

func (s *Server) handleUpdateStage(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := request.RequireString("project_id")
	if err != nil {
		return mcp.NewToolResultError("Missing required parameter: project_id"), nil
	}
	target, err := request.RequireString("target_stage")
	if err != nil {
		return mcp.NewToolResultError("Missing required parameter: target_stage"), nil
	}

	project, failure := s.loadProject(ctx, id)
	if failure != nil {
		return failure, nil
	}
	p, _ := auth.PrincipalFrom(ctx)

	result, err := s.executor.Execute(ctx, stages.Request{
		ProjectID:     project.ID,
		TargetStage:   target,
		RequestedBy:   p.UserID,
		Reason:        request.GetString("reason", ""),
		ForceOverride: request.GetBool("force_override", false),
	})
	if err != nil {
		if errors.Is(err, repository.ErrStaleState) {
			return mcp.NewToolResultError("Stale state, retry"), nil
		}
		return mcp.NewToolResultError(fmt.Sprintf("Failed to update stage: %v", err)), nil
	}
	if !result.Success {
		msg := result.Error
		if result.Error == stages.ConfirmationRequired {
			msg += ": ask the user, then call again with force_override=true"
		}
		return mcp.NewToolResultError(msg), nil
	}
	return jsonResult(result)
}

func (s *Server) handleAvailableStages(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := request.RequireString("project_id")
	if err != nil {
		return mcp.NewToolResultError("Missing required parameter: project_id"), nil
	}

	project, failure := s.loadProject(ctx, id)
	if failure != nil {
		return failure, nil
	}
	current := project.CurrentStage
	if current == "" {
		current = s.executor.Validator().Graph().Entry()
	}
	available := s.executor.Validator().AvailableStages(current, project)
	if available == nil {
		available = []string{}
	}
	return jsonResult(map[string]any{
		"current_stage":    current,
		"available_stages": available,
	})
}

func (s *Server) handleStageChecklist(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := request.RequireString("stage")
	if err != nil {
		return mcp.NewToolResultError("Missing required parameter: stage"), nil
	}

	g := s.executor.Validator().Graph()
	fields, err := g.Checklist(name)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Unknown stage: %q", name)), nil
	}
	progress, _ := g.Progress(name)
	if fields == nil {
		fields = []string{}
	}
	return jsonResult(map[string]any{
		"stage":           name,
		"required_fields": fields,
		"progress":        progress,
	})
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	jsonBytes, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return mcp.NewToolResultText(string(jsonBytes)), nil
}

// MountHTTPHandlers serves the MCP SSE transport under /mcp.
func MountHTTPHandlers(mux *http.ServeMux, mcpServer *server.MCPServer) {
	sseServer := server.NewSSEServer(mcpServer, server.WithStaticBasePath("/mcp"))

	mux.HandleFunc("/mcp", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			sseServer.ServeHTTP(w, r)
			return
		}
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	})

	mux.HandleFunc("/mcp/sse", sseServer.ServeHTTP)
	mux.HandleFunc("/mcp/message", sseServer.ServeHTTP)
}
