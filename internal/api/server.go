// Package api contains the HTTP handlers for the business-os REST API.
package api

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"business-os/backend/internal/auth"
	"business-os/backend/internal/services"
	"business-os/backend/internal/stages"
	"business-os/backend/pkg/models"
)

// Store is the persistence the handlers read directly.
type Store interface {
	CreateProject(ctx context.Context, p *models.Project) error
	GetProject(ctx context.Context, id string) (*models.Project, error)
	ListProjects(ctx context.Context, tenantID string) ([]*models.Project, error)
	UpdateProjectDetails(ctx context.Context, p *models.Project) (*models.Project, error)
	ListAudit(ctx context.Context, entityType, entityID string) ([]*models.AuditEntry, error)
	ListNotifications(ctx context.Context, recipientID string, limit int) ([]*models.Notification, error)
	GetLead(ctx context.Context, id string) (*models.Lead, error)
	GetDeal(ctx context.Context, id string) (*models.Deal, error)
}

// Server holds the dependencies for the API server.
type Server struct {
	Store     Store
	Executor  *stages.Executor
	Leads     *services.LeadAssigner
	Deals     *services.DealScorer
	Advisor   *services.DealAdvisor
	Contracts *services.ContractRenewer
	Usage     *services.UsageQuota
}

// NewServer creates a new Server. The executor's graph is the one every
// stage endpoint answers from.
func NewServer(store Store, executor *stages.Executor) *Server {
	return &Server{Store: store, Executor: executor}
}

// RegisterRoutes mounts the API on g. g is expected to run the auth
// middleware.
func (s *Server) RegisterRoutes(g *echo.Group) {
	g.GET("/projects", s.ListProjects)
	g.POST("/projects", s.CreateProject)
	g.GET("/projects/:id", s.GetProject)
	g.PATCH("/projects/:id", s.UpdateProject)
	g.GET("/projects/:id/history", s.ProjectHistory)
	g.POST("/projects/:id/validate", s.ValidateTransition)
	g.PUT("/projects/:id/stage", s.UpdateStage)
	g.GET("/projects/:id/available-stages", s.AvailableStages)

	g.GET("/stages", s.ListStages)
	g.GET("/stages/:name/checklist", s.StageChecklist)
	g.GET("/stages/:name/progress", s.StageProgress)

	g.POST("/leads/:id/assign", s.AssignLead)
	g.POST("/deals/:id/score", s.ScoreDeal)
	g.POST("/deals/:id/advice", s.AdviseDeal)
	g.POST("/contracts/renewals", s.RunRenewals)
	g.GET("/usage", s.GetUsage)
	g.GET("/notifications", s.ListNotifications)
}

func (s *Server) graph() *stages.Graph {
	return s.Executor.Validator().Graph()
}

// principal returns the authenticated caller or an echo 401 error.
func principal(c echo.Context) (auth.Principal, error) {
	p, ok := auth.PrincipalFrom(c.Request().Context())
	if !ok {
		return auth.Principal{}, echo.NewHTTPError(http.StatusUnauthorized, "Tenant ID not found in context")
	}
	return p, nil
}

// ListNotifications returns the caller's inbox
// (GET /api/v1/notifications)
func (s *Server) ListNotifications(c echo.Context) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	inbox, err := s.Store.ListNotifications(c.Request().Context(), p.UserID, 50)
	if err != nil {
		return writeStoreError(c, err)
	}
	if inbox == nil {
		inbox = []*models.Notification{}
	}
	return c.JSON(http.StatusOK, inbox)
}
