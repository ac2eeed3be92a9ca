package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"business-os/backend/internal/auth"
	"business-os/backend/internal/logging"
	"business-os/backend/internal/repository"
	"business-os/backend/internal/sideeffect"
	"business-os/backend/internal/stages"
	"business-os/backend/pkg/models"
)

// memStore is an in-memory Store and stages.ProjectStore.
type memStore struct {
	mu         sync.Mutex
	seq        int
	projects   map[string]*models.Project
	audit      []*models.AuditEntry
	forceStale bool
}

func newMemStore() *memStore {
	return &memStore{projects: map[string]*models.Project{}}
}

func (m *memStore) CreateProject(_ context.Context, p *models.Project) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	p.ID = fmt.Sprintf("p-%d", m.seq)
	p.Version = 1
	p.CreatedAt, p.UpdatedAt = time.Now(), time.Now()
	cp := *p
	m.projects[p.ID] = &cp
	return nil
}

func (m *memStore) GetProject(_ context.Context, id string) (*models.Project, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.projects[id]
	if !ok {
		return nil, fmt.Errorf("project %s: %w", id, repository.ErrNotFound)
	}
	cp := *p
	return &cp, nil
}

func (m *memStore) ListProjects(_ context.Context, tenantID string) ([]*models.Project, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.Project
	for _, p := range m.projects {
		if p.TenantID == tenantID {
			cp := *p
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memStore) write(id string, version int, apply func(p *models.Project)) (*models.Project, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.projects[id]
	if !ok {
		return nil, fmt.Errorf("project %s: %w", id, repository.ErrNotFound)
	}
	if m.forceStale || p.Version != version {
		return nil, fmt.Errorf("project %s: %w", id, repository.ErrStaleState)
	}
	apply(p)
	p.Version++
	p.UpdatedAt = time.Now()
	cp := *p
	return &cp, nil
}

func (m *memStore) UpdateProjectStage(_ context.Context, id, stage string, expectedVersion int) (*models.Project, error) {
	return m.write(id, expectedVersion, func(p *models.Project) { p.CurrentStage = stage })
}

func (m *memStore) UpdateProjectDetails(_ context.Context, p *models.Project) (*models.Project, error) {
	next := *p
	return m.write(p.ID, p.Version, func(stored *models.Project) {
		next.Version, next.CreatedAt = stored.Version, stored.CreatedAt
		*stored = next
	})
}

func (m *memStore) LogAction(_ context.Context, e *models.AuditEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.audit = append(m.audit, e)
	return nil
}

func (m *memStore) ListAudit(_ context.Context, entityType, entityID string) ([]*models.AuditEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.AuditEntry
	for _, e := range m.audit {
		if e.EntityType == entityType && e.EntityID == entityID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *memStore) ListNotifications(context.Context, string, int) ([]*models.Notification, error) {
	return nil, nil
}

func (m *memStore) GetLead(_ context.Context, id string) (*models.Lead, error) {
	return nil, fmt.Errorf("lead %s: %w", id, repository.ErrNotFound)
}

func (m *memStore) GetDeal(_ context.Context, id string) (*models.Deal, error) {
	return nil, fmt.Errorf("deal %s: %w", id, repository.ErrNotFound)
}

type testAPI struct {
	e     *echo.Echo
	store *memStore
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	store := newMemStore()
	executor := stages.NewExecutor(stages.MustDefaultGraph(), store, store, nil,
		sideeffect.Inline{Logger: logging.Discard()}, logging.Discard())

	e := echo.New()
	e.HTTPErrorHandler = ErrorHandler
	g := e.Group("/api/v1", func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			tenant := c.Request().Header.Get("X-Test-Tenant")
			if tenant == "" {
				return next(c)
			}
			ctx := auth.WithPrincipal(c.Request().Context(), auth.Principal{TenantID: tenant, UserID: "user-1"})
			c.SetRequest(c.Request().WithContext(ctx))
			return next(c)
		}
	})
	NewServer(store, executor).RegisterRoutes(g)
	return &testAPI{e: e, store: store}
}

func (a *testAPI) do(t *testing.T, method, path, tenant string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *strings.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		reader = strings.NewReader(string(b))
	} else {
		reader = strings.NewReader("")
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if tenant != "" {
		req.Header.Set("X-Test-Tenant", tenant)
	}
	rec := httptest.NewRecorder()
	a.e.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func (a *testAPI) createProject(t *testing.T, tenant string) *models.Project {
	t.Helper()
	rec := a.do(t, http.MethodPost, "/api/v1/projects", tenant, map[string]any{
		"name":        "Portal",
		"description": "Customer portal",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[*models.Project](t, rec)
}

func TestProjectStageFlow(t *testing.T) {
	a := newTestAPI(t)
	p := a.createProject(t, "t-1")
	assert.Equal(t, stages.StageDiscovery, p.CurrentStage)
	assert.Equal(t, "user-1", p.OwnerID)

	path := "/api/v1/projects/" + p.ID

	rec := a.do(t, http.MethodPut, path+"/stage", "t-1", map[string]any{"target_stage": "Planning"})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	problem := decode[ProblemDetails](t, rec)
	assert.Equal(t, "Missing required fields: timeline", problem.Detail)
	assert.Equal(t, []string{"timeline"}, problem.MissingFields)
	assert.Equal(t, "application/problem+json", rec.Header().Get(echo.HeaderContentType))

	rec = a.do(t, http.MethodPatch, path, "t-1", map[string]any{"timeline": "Q1"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = a.do(t, http.MethodPut, path+"/stage", "t-1", map[string]any{"target_stage": "Planning", "reason": "kickoff"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	result := decode[stages.ExecutionResult](t, rec)
	assert.True(t, result.Success)
	assert.Equal(t, stages.StageDiscovery, result.PreviousStage)
	assert.Equal(t, stages.StagePlanning, result.Project.CurrentStage)

	rec = a.do(t, http.MethodGet, path+"/history", "t-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	history := decode[[]models.AuditEntry](t, rec)
	require.Len(t, history, 1)
	assert.Equal(t, models.ActionStageUpdated, history[0].Action)
	assert.Equal(t, "kickoff", history[0].Reason)
	assert.False(t, history[0].Forced)

	rec = a.do(t, http.MethodPut, path+"/stage", "t-1", map[string]any{"target_stage": "Discovery"})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "Confirmation required", decode[ProblemDetails](t, rec).Title)

	rec = a.do(t, http.MethodPut, path+"/stage", "t-1", map[string]any{"target_stage": "Discovery", "force_override": true})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, a.store.audit, 2)
	assert.True(t, a.store.audit[1].Forced)
}

func TestUpdateStage_Failures(t *testing.T) {
	a := newTestAPI(t)
	p := a.createProject(t, "t-1")
	path := "/api/v1/projects/" + p.ID + "/stage"

	t.Run("unknown stage is rejected even when forced", func(t *testing.T) {
		rec := a.do(t, http.MethodPut, path, "t-1", map[string]any{"target_stage": "Shipped", "force_override": true})
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
		assert.Equal(t, `Invalid stage name: "Shipped"`, decode[ProblemDetails](t, rec).Detail)
	})

	t.Run("disallowed move lists allowed stages", func(t *testing.T) {
		rec := a.do(t, http.MethodPut, path, "t-1", map[string]any{"target_stage": "Deployment"})
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
		problem := decode[ProblemDetails](t, rec)
		assert.Equal(t, "Cannot move from Discovery to Deployment. Allowed stages: Planning, On Hold", problem.Detail)
		assert.Equal(t, []string{"Planning", "On Hold"}, problem.AllowedStages)
	})

	t.Run("missing target stage", func(t *testing.T) {
		rec := a.do(t, http.MethodPut, path, "t-1", map[string]any{})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("other tenant sees not found", func(t *testing.T) {
		rec := a.do(t, http.MethodPut, path, "t-2", map[string]any{"target_stage": "On Hold"})
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("unknown project", func(t *testing.T) {
		rec := a.do(t, http.MethodPut, "/api/v1/projects/missing/stage", "t-1", map[string]any{"target_stage": "On Hold"})
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("pausing needs confirmation", func(t *testing.T) {
		rec := a.do(t, http.MethodPut, path, "t-1", map[string]any{"target_stage": "On Hold"})
		assert.Equal(t, http.StatusConflict, rec.Code)
		assert.Equal(t, "Confirmation required", decode[ProblemDetails](t, rec).Title)
	})

	t.Run("stale write", func(t *testing.T) {
		a.store.forceStale = true
		defer func() { a.store.forceStale = false }()
		rec := a.do(t, http.MethodPut, path, "t-1", map[string]any{"target_stage": "On Hold", "force_override": true})
		assert.Equal(t, http.StatusConflict, rec.Code)
		assert.Equal(t, "stale state, retry", decode[ProblemDetails](t, rec).Detail)
	})

	t.Run("no principal", func(t *testing.T) {
		rec := a.do(t, http.MethodPut, path, "", map[string]any{"target_stage": "On Hold"})
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func TestValidateAndAvailableStages(t *testing.T) {
	a := newTestAPI(t)
	p := a.createProject(t, "t-1")
	path := "/api/v1/projects/" + p.ID

	rec := a.do(t, http.MethodPost, path+"/validate", "t-1", map[string]any{"target_stage": "Planning"})
	require.Equal(t, http.StatusOK, rec.Code)
	result := decode[stages.Result](t, rec)
	assert.False(t, result.Allowed)
	assert.Equal(t, []string{"timeline"}, result.MissingFields)

	rec = a.do(t, http.MethodPost, path+"/validate", "t-1", map[string]any{
		"target_stage": "Planning",
		"fields":       map[string]any{"timeline": "Q1"},
	})
	require.Equal(t, http.StatusOK, rec.Code)
	result = decode[stages.Result](t, rec)
	assert.True(t, result.Allowed)
	assert.False(t, result.RequiresConfirmation)

	// The overlay must not have been persisted.
	stored, err := a.store.GetProject(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Nil(t, stored.Timeline)

	rec = a.do(t, http.MethodGet, path+"/available-stages", "t-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	available := decode[AvailableStagesResponse](t, rec)
	assert.Equal(t, stages.StageDiscovery, available.CurrentStage)
	assert.Equal(t, 17, available.Progress)
	assert.Equal(t, []string{"On Hold"}, available.AvailableStages)
}

func TestLoadProject_ReturnsErrorsWithoutWriting(t *testing.T) {
	store := newMemStore()
	srv := NewServer(store, stages.NewExecutor(stages.MustDefaultGraph(), store, nil, nil, sideeffect.Inline{}, nil))
	p := &models.Project{TenantID: "t-1", Name: "Portal", CurrentStage: stages.StageDiscovery}
	require.NoError(t, store.CreateProject(context.Background(), p))

	load := func(tenant, id string) (*models.Project, *httptest.ResponseRecorder, error) {
		ctx := auth.WithPrincipal(context.Background(), auth.Principal{TenantID: tenant, UserID: "user-1"})
		req := httptest.NewRequest(http.MethodGet, "/api/v1/projects/"+id, nil).WithContext(ctx)
		rec := httptest.NewRecorder()
		c := echo.New().NewContext(req, rec)
		c.SetParamNames("id")
		c.SetParamValues(id)
		project, err := srv.loadProject(c)
		return project, rec, err
	}

	project, rec, err := load("t-1", p.ID)
	require.NoError(t, err)
	assert.Equal(t, p.ID, project.ID)

	project, rec, err = load("t-2", p.ID)
	assert.Nil(t, project)
	var he *echo.HTTPError
	require.ErrorAs(t, err, &he)
	assert.Equal(t, http.StatusNotFound, he.Code)
	assert.False(t, rec.Flushed)
	assert.Zero(t, rec.Body.Len())

	project, rec, err = load("t-1", "missing")
	assert.Nil(t, project)
	assert.ErrorIs(t, err, repository.ErrNotFound)
	assert.Zero(t, rec.Body.Len())
}

func TestStageEndpoints(t *testing.T) {
	a := newTestAPI(t)

	rec := a.do(t, http.MethodGet, "/api/v1/stages/Development/progress", "t-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 67, decode[map[string]any](t, rec)["progress"])

	rec = a.do(t, http.MethodGet, "/api/v1/stages/On%20Hold/checklist", "t-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []any{"hold_reason"}, decode[map[string]any](t, rec)["required_fields"])

	rec = a.do(t, http.MethodGet, "/api/v1/stages/Development/checklist", "t-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []any{}, decode[map[string]any](t, rec)["required_fields"])

	rec = a.do(t, http.MethodGet, "/api/v1/stages/Nope/checklist", "t-1", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = a.do(t, http.MethodGet, "/api/v1/stages", "t-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var listing struct {
		Entry  string      `json:"entry"`
		Stages []StageInfo `json:"stages"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listing))
	assert.Equal(t, stages.StageDiscovery, listing.Entry)
	assert.Len(t, listing.Stages, 8)
}

func TestCreateProject_RequiresName(t *testing.T) {
	a := newTestAPI(t)
	rec := a.do(t, http.MethodPost, "/api/v1/projects", "t-1", map[string]any{"description": "x"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUnconfiguredServices(t *testing.T) {
	a := newTestAPI(t)
	rec := a.do(t, http.MethodPost, "/api/v1/deals/d-1/advice", "t-1", map[string]any{})
	assert.Equal(t, http.StatusNotImplemented, rec.Code)
}

type fakePinger struct{ err error }

func (f fakePinger) Ping(context.Context) error { return f.err }

func TestHandleHealth(t *testing.T) {
	e := echo.New()

	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/health", nil), rec)
	require.NoError(t, NewHandler(fakePinger{}, "1.0.0").HandleHealth(c))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	c = e.NewContext(httptest.NewRequest(http.MethodGet, "/health", nil), rec)
	require.NoError(t, NewHandler(fakePinger{err: errors.New("down")}, "1.0.0").HandleHealth(c))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "unreachable", decode[HealthStatus](t, rec).Database)
}

func TestSpecHandler(t *testing.T) {
	rec := httptest.NewRecorder()
	SpecHandler("https://acme.okta.com/oauth2/default")(rec, httptest.NewRequest(http.MethodGet, "/openapi.yaml", nil))
	assert.Contains(t, rec.Body.String(), "https://acme.okta.com/oauth2/default/v1/authorize")
	assert.NotContains(t, rec.Body.String(), "{oktaIssuer}")
}
