package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"business-os/backend/internal/stages"
)

// StageInfo describes a stage of the workflow.
type StageInfo struct {
	stages.Stage
	Sentinel bool `json:"sentinel"`
	Progress int  `json:"progress"`
}

// ListStages returns the workflow definition
// (GET /api/v1/stages)
func (s *Server) ListStages(c echo.Context) error {
	g := s.graph()
	out := make([]StageInfo, 0, len(g.Names()))
	for _, st := range g.Stages() {
		progress, _ := g.Progress(st.Name)
		out = append(out, StageInfo{Stage: st, Sentinel: st.IsSentinel(), Progress: progress})
	}
	return c.JSON(http.StatusOK, map[string]any{
		"entry":  g.Entry(),
		"stages": out,
	})
}

// StageChecklist returns the fields required to enter a stage
// (GET /api/v1/stages/:name/checklist)
func (s *Server) StageChecklist(c echo.Context) error {
	name := c.Param("name")
	fields, err := s.graph().Checklist(name)
	if err != nil {
		return writeStoreError(c, err)
	}
	if fields == nil {
		fields = []string{}
	}
	return c.JSON(http.StatusOK, map[string]any{
		"stage":           name,
		"required_fields": fields,
	})
}

// StageProgress returns a stage's progress value, which exceeds 100 for the last stage
// (GET /api/v1/stages/:name/progress)
func (s *Server) StageProgress(c echo.Context) error {
	name := c.Param("name")
	progress, err := s.graph().Progress(name)
	if err != nil {
		return writeStoreError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]any{
		"stage":    name,
		"progress": progress,
	})
}
