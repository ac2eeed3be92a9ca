package api

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"business-os/backend/internal/stages"
	"business-os/backend/pkg/models"
)

// CreateProjectRequest is the body of POST /projects.
type CreateProjectRequest struct {
	models.ProjectDetails
}

// ValidateRequest is the body of POST /projects/:id/validate. Fields, when
// set, are applied to a copy of the stored project before validating.
type ValidateRequest struct {
	TargetStage string                 `json:"target_stage"`
	Fields      *models.ProjectDetails `json:"fields,omitempty"`
}

// StageUpdateRequest is the body of PUT /projects/:id/stage.
type StageUpdateRequest struct {
	TargetStage   string `json:"target_stage"`
	Reason        string `json:"reason,omitempty"`
	ForceOverride bool   `json:"force_override"`
}

// AvailableStagesResponse lists where a project can move next.
type AvailableStagesResponse struct {
	CurrentStage    string   `json:"current_stage"`
	Progress        int      `json:"progress"`
	AvailableStages []string `json:"available_stages"`
}

// loadProject returns the project if it belongs to the caller's tenant.
// Projects of other tenants are reported as not found. Nothing is written to
// the response; returned errors are rendered by [ErrorHandler].
func (s *Server) loadProject(c echo.Context) (*models.Project, error) {
	p, err := principal(c)
	if err != nil {
		return nil, err
	}
	project, err := s.Store.GetProject(c.Request().Context(), c.Param("id"))
	if err != nil {
		return nil, err
	}
	if project.TenantID != p.TenantID {
		return nil, echo.NewHTTPError(http.StatusNotFound, "project not found")
	}
	return project, nil
}

// ListProjects returns the tenant's projects
// (GET /api/v1/projects)
func (s *Server) ListProjects(c echo.Context) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	projects, err := s.Store.ListProjects(c.Request().Context(), p.TenantID)
	if err != nil {
		return writeStoreError(c, err)
	}
	if projects == nil {
		projects = []*models.Project{}
	}
	return c.JSON(http.StatusOK, projects)
}

// CreateProject creates a project in the entry stage
// (POST /api/v1/projects)
func (s *Server) CreateProject(c echo.Context) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	var req CreateProjectRequest
	if err := c.Bind(&req); err != nil {
		return writeError(c, http.StatusBadRequest, "Invalid request body: "+err.Error())
	}
	if req.Name == nil || strings.TrimSpace(*req.Name) == "" {
		return writeError(c, http.StatusBadRequest, "name is required")
	}

	project := &models.Project{
		TenantID:     p.TenantID,
		OwnerID:      p.UserID,
		CurrentStage: s.graph().Entry(),
	}
	req.Apply(project)
	if err := s.Store.CreateProject(c.Request().Context(), project); err != nil {
		return writeStoreError(c, err)
	}
	return c.JSON(http.StatusCreated, project)
}

// GetProject returns one project
// (GET /api/v1/projects/:id)
func (s *Server) GetProject(c echo.Context) error {
	project, err := s.loadProject(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, project)
}

// UpdateProject edits project attributes without changing its stage
// (PATCH /api/v1/projects/:id)
func (s *Server) UpdateProject(c echo.Context) error {
	var details models.ProjectDetails
	if err := c.Bind(&details); err != nil {
		return writeError(c, http.StatusBadRequest, "Invalid request body: "+err.Error())
	}
	if details.Name != nil && strings.TrimSpace(*details.Name) == "" {
		return writeError(c, http.StatusBadRequest, "name must not be blank")
	}
	project, err := s.loadProject(c)
	if err != nil {
		return err
	}
	details.Apply(project)
	updated, err := s.Store.UpdateProjectDetails(c.Request().Context(), project)
	if err != nil {
		return writeStoreError(c, err)
	}
	return c.JSON(http.StatusOK, updated)
}

// ProjectHistory returns the project's audit trail
// (GET /api/v1/projects/:id/history)
func (s *Server) ProjectHistory(c echo.Context) error {
	project, err := s.loadProject(c)
	if err != nil {
		return err
	}
	entries, err := s.Store.ListAudit(c.Request().Context(), models.EntityProject, project.ID)
	if err != nil {
		return writeStoreError(c, err)
	}
	if entries == nil {
		entries = []*models.AuditEntry{}
	}
	return c.JSON(http.StatusOK, entries)
}

// ValidateTransition checks a move without applying it. The outcome is
// always returned with 200; a denied move is not an HTTP error.
// (POST /api/v1/projects/:id/validate)
func (s *Server) ValidateTransition(c echo.Context) error {
	var req ValidateRequest
	if err := c.Bind(&req); err != nil {
		return writeError(c, http.StatusBadRequest, "Invalid request body: "+err.Error())
	}
	project, err := s.loadProject(c)
	if err != nil {
		return err
	}
	snapshot := *project
	if req.Fields != nil {
		req.Fields.Apply(&snapshot)
	}
	current := snapshot.CurrentStage
	if current == "" {
		current = s.graph().Entry()
	}
	return c.JSON(http.StatusOK, s.Executor.Validator().Validate(current, req.TargetStage, &snapshot))
}

// UpdateStage applies a stage transition
// (PUT /api/v1/projects/:id/stage)
func (s *Server) UpdateStage(c echo.Context) error {
	var req StageUpdateRequest
	if err := c.Bind(&req); err != nil {
		return writeError(c, http.StatusBadRequest, "Invalid request body: "+err.Error())
	}
	if strings.TrimSpace(req.TargetStage) == "" {
		return writeError(c, http.StatusBadRequest, "target_stage is required")
	}
	p, err := principal(c)
	if err != nil {
		return err
	}
	project, err := s.loadProject(c)
	if err != nil {
		return err
	}

	result, err := s.Executor.Execute(c.Request().Context(), stages.Request{
		ProjectID:     project.ID,
		TargetStage:   req.TargetStage,
		RequestedBy:   p.UserID,
		Reason:        req.Reason,
		ForceOverride: req.ForceOverride,
	})
	if err != nil {
		return writeStoreError(c, err)
	}
	if result.Success {
		return c.JSON(http.StatusOK, result)
	}
	return writeTransitionFailure(c, result)
}

func writeTransitionFailure(c echo.Context, result *stages.ExecutionResult) error {
	problem := ProblemDetails{
		Status: http.StatusUnprocessableEntity,
		Title:  "Transition not allowed",
		Detail: result.Error,
	}
	if t := result.Transition; t != nil {
		problem.MissingFields = t.MissingFields
		problem.AllowedStages = t.AllowedStages
	}
	if result.Error == stages.ConfirmationRequired {
		problem.Status = http.StatusConflict
		problem.Title = "Confirmation required"
		problem.Detail = "Moving backwards requires confirmation; resend with force_override"
	}
	return writeProblem(c, problem)
}

// AvailableStages lists the stages the project can move to now
// (GET /api/v1/projects/:id/available-stages)
func (s *Server) AvailableStages(c echo.Context) error {
	project, err := s.loadProject(c)
	if err != nil {
		return err
	}
	current := project.CurrentStage
	if current == "" {
		current = s.graph().Entry()
	}
	progress, _ := s.graph().Progress(current)
	available := s.Executor.Validator().AvailableStages(current, project)
	if available == nil {
		available = []string{}
	}
	return c.JSON(http.StatusOK, AvailableStagesResponse{
		CurrentStage:    current,
		Progress:        progress,
		AvailableStages: available,
	})
}
