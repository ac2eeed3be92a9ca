package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"business-os/backend/internal/repository"
	"business-os/backend/internal/services"
	"business-os/backend/internal/stages"
)

// Pinger reports whether a dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler serves the unauthenticated operational endpoints.
type Handler struct {
	db      Pinger
	version string
}

// NewHandler creates a new Handler. db may be nil.
func NewHandler(db Pinger, version string) *Handler {
	return &Handler{db: db, version: version}
}

// HealthStatus represents the health check response
type HealthStatus struct {
	Status    string    `json:"status"`
	Database  string    `json:"database,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	Service   string    `json:"service"`
	Version   string    `json:"version"`
}

// HandleHealth reports service health. It answers 503 when the database
// does not respond.
func (h *Handler) HandleHealth(c echo.Context) error {
	status := HealthStatus{
		Status:    "ok",
		Timestamp: time.Now(),
		Service:   "business-os",
		Version:   h.version,
	}
	code := http.StatusOK
	if h.db != nil {
		ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
		defer cancel()
		status.Database = "ok"
		if err := h.db.Ping(ctx); err != nil {
			status.Status, status.Database = "degraded", "unreachable"
			code = http.StatusServiceUnavailable
		}
	}
	return c.JSON(code, status)
}

// ProblemDetails represents an RFC 7807 Problem Details response. The
// stage fields are extension members set on transition failures.
type ProblemDetails struct {
	Type          string   `json:"type"`
	Title         string   `json:"title"`
	Status        int      `json:"status"`
	Detail        string   `json:"detail"`
	Instance      string   `json:"instance,omitempty"`
	MissingFields []string `json:"missing_fields,omitempty"`
	AllowedStages []string `json:"allowed_stages,omitempty"`
}

// writeProblem writes an RFC 7807 Problem Details JSON error response
func writeProblem(c echo.Context, p ProblemDetails) error {
	if p.Type == "" {
		p.Type = "about:blank"
	}
	if p.Title == "" {
		p.Title = http.StatusText(p.Status)
	}
	p.Instance = c.Request().URL.Path
	c.Response().Header().Set(echo.HeaderContentType, "application/problem+json")
	return c.JSON(p.Status, p)
}

func writeError(c echo.Context, status int, detail string) error {
	return writeProblem(c, ProblemDetails{Status: status, Detail: detail})
}

// writeStoreError maps infrastructure errors to problem responses.
func writeStoreError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return writeError(c, http.StatusNotFound, err.Error())
	case errors.Is(err, repository.ErrStaleState):
		return writeProblem(c, ProblemDetails{Status: http.StatusConflict, Title: "Stale state", Detail: "stale state, retry"})
	case errors.Is(err, stages.ErrUnknownStage):
		return writeError(c, http.StatusNotFound, err.Error())
	case errors.Is(err, services.ErrNoActiveReps):
		return writeError(c, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, services.ErrUnknownStrategy):
		return writeError(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, services.ErrQuotaExceeded):
		return writeError(c, http.StatusTooManyRequests, err.Error())
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return writeError(c, http.StatusServiceUnavailable, "request cancelled")
	}
	c.Logger().Error(err)
	return writeError(c, http.StatusServiceUnavailable, "temporary failure, retry later")
}

// ErrorHandler renders echo errors as problem details.
func ErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	var he *echo.HTTPError
	if errors.As(err, &he) {
		detail := http.StatusText(he.Code)
		if msg, ok := he.Message.(string); ok {
			detail = msg
		}
		_ = writeError(c, he.Code, detail)
		return
	}
	_ = writeStoreError(c, err)
}
