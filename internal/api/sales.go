package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"business-os/backend/internal/services"
)

// AssignLeadRequest is the body of POST /leads/:id/assign.
type AssignLeadRequest struct {
	Strategy services.AssignmentStrategy `json:"strategy"`
}

// AdviceRequest is the body of POST /deals/:id/advice.
type AdviceRequest struct {
	Question string `json:"question"`
}

// AssignLead assigns a lead to a sales rep
// (POST /api/v1/leads/:id/assign)
func (s *Server) AssignLead(c echo.Context) error {
	if s.Leads == nil {
		return writeError(c, http.StatusNotImplemented, "lead assignment is not configured")
	}
	p, err := principal(c)
	if err != nil {
		return err
	}
	var req AssignLeadRequest
	if err := c.Bind(&req); err != nil {
		return writeError(c, http.StatusBadRequest, "Invalid request body: "+err.Error())
	}
	ctx := c.Request().Context()
	lead, err := s.Store.GetLead(ctx, c.Param("id"))
	if err != nil {
		return writeStoreError(c, err)
	}
	if lead.TenantID != p.TenantID {
		return writeError(c, http.StatusNotFound, "lead not found")
	}
	assigned, err := s.Leads.Assign(ctx, lead.ID, req.Strategy, p.UserID)
	if err != nil {
		return writeStoreError(c, err)
	}
	return c.JSON(http.StatusOK, assigned)
}

// ScoreDeal recomputes a deal's win probability
// (POST /api/v1/deals/:id/score)
func (s *Server) ScoreDeal(c echo.Context) error {
	if s.Deals == nil {
		return writeError(c, http.StatusNotImplemented, "deal scoring is not configured")
	}
	p, err := principal(c)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()
	deal, err := s.Store.GetDeal(ctx, c.Param("id"))
	if err != nil {
		return writeStoreError(c, err)
	}
	if deal.TenantID != p.TenantID {
		return writeError(c, http.StatusNotFound, "deal not found")
	}
	scored, err := s.Deals.Score(ctx, deal.ID, p.UserID)
	if err != nil {
		return writeStoreError(c, err)
	}
	return c.JSON(http.StatusOK, scored)
}

// AdviseDeal asks the AI assistant for next steps on a deal
// (POST /api/v1/deals/:id/advice)
func (s *Server) AdviseDeal(c echo.Context) error {
	if s.Advisor == nil {
		return writeError(c, http.StatusNotImplemented, "AI assistant is not configured")
	}
	p, err := principal(c)
	if err != nil {
		return err
	}
	var req AdviceRequest
	if err := c.Bind(&req); err != nil {
		return writeError(c, http.StatusBadRequest, "Invalid request body: "+err.Error())
	}
	ctx := c.Request().Context()
	deal, err := s.Store.GetDeal(ctx, c.Param("id"))
	if err != nil {
		return writeStoreError(c, err)
	}
	if deal.TenantID != p.TenantID {
		return writeError(c, http.StatusNotFound, "deal not found")
	}
	advice, err := s.Advisor.Advise(ctx, p.TenantID, deal.ID, req.Question)
	if err != nil {
		return writeStoreError(c, err)
	}
	return c.JSON(http.StatusOK, advice)
}

// RunRenewals runs the contract renewal batch
// (POST /api/v1/contracts/renewals)
func (s *Server) RunRenewals(c echo.Context) error {
	if s.Contracts == nil {
		return writeError(c, http.StatusNotImplemented, "contract renewal is not configured")
	}
	p, err := principal(c)
	if err != nil {
		return err
	}
	report, err := s.Contracts.Run(c.Request().Context(), p.TenantID, p.UserID)
	if err != nil {
		return writeStoreError(c, err)
	}
	return c.JSON(http.StatusOK, report)
}

// GetUsage returns the tenant's AI usage for the current month
// (GET /api/v1/usage)
func (s *Server) GetUsage(c echo.Context) error {
	if s.Usage == nil {
		return writeError(c, http.StatusNotImplemented, "usage tracking is not configured")
	}
	p, err := principal(c)
	if err != nil {
		return err
	}
	usage, err := s.Usage.Usage(c.Request().Context(), p.TenantID)
	if err != nil {
		return writeStoreError(c, err)
	}
	return c.JSON(http.StatusOK, usage)
}
