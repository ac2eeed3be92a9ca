package stages

import (
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"business-os/backend/pkg/models"
)

func TestValidate_Scenarios(t *testing.T) {
	v := NewValidator(MustDefaultGraph())

	tests := []struct {
		name   string
		from   string
		to     string
		entity Record
		want   Result
	}{
		{
			name:   "forward with missing timeline",
			from:   StageDiscovery,
			to:     StagePlanning,
			entity: Record{"name": "X", "description": "Y"},
			want: Result{
				Kind:          KindForward,
				Reason:        "Missing required fields: timeline",
				MissingFields: []string{"timeline"},
			},
		},
		{
			name:   "forward with all fields",
			from:   StageDiscovery,
			to:     StagePlanning,
			entity: Record{"name": "X", "description": "Y", "timeline": "Q1"},
			want:   Result{Allowed: true, Kind: KindForward},
		},
		{
			name:   "backward requires confirmation",
			from:   StageTesting,
			to:     StageDevelopment,
			entity: Record{},
			want: Result{
				Allowed:              true,
				RequiresConfirmation: true,
				Kind:                 KindBackward,
				Reason:               "Moving backwards requires confirmation",
			},
		},
		{
			name:   "no edge lists allowed stages",
			from:   StageDiscovery,
			to:     StageDeployment,
			entity: Record{},
			want: Result{
				Kind:          KindDisallowed,
				Reason:        "Cannot move from Discovery to Deployment. Allowed stages: Planning, On Hold",
				AllowedStages: []string{StagePlanning, StageOnHold},
			},
		},
		{
			name:   "terminal stage has no allowed stages",
			from:   StageCompleted,
			to:     StageDiscovery,
			entity: Record{},
			want: Result{
				Kind:   KindDisallowed,
				Reason: "Cannot move from Completed to Discovery. Allowed stages: none",
			},
		},
		{
			name:   "unknown target",
			from:   StageDiscovery,
			to:     "Archived",
			entity: Record{},
			want:   Result{Kind: KindInvalidStage, Reason: `Invalid stage name: "Archived"`},
		},
		{
			name:   "unknown current",
			from:   "Archived",
			to:     StageDiscovery,
			entity: Record{},
			want:   Result{Kind: KindInvalidStage, Reason: `Invalid stage name: "Archived"`},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, v.Validate(tt.from, tt.to, tt.entity))
		})
	}
}

func TestValidate_IdentityIsAlwaysAllowed(t *testing.T) {
	g := MustDefaultGraph()
	v := NewValidator(g)

	for _, s := range g.Names() {
		for _, entity := range []FieldSet{nil, Record{}, &models.Project{}} {
			r := v.Validate(s, s, entity)
			assert.True(t, r.Allowed, s)
			assert.False(t, r.RequiresConfirmation, s)
			assert.Equal(t, KindIdentity, r.Kind)
		}
	}
}

func TestValidate_MissingFieldsAreExactlyTheSortedAbsentSet(t *testing.T) {
	g := MustDefaultGraph()
	v := NewValidator(g)

	for _, from := range g.Names() {
		stage, _ := g.Stage(from)
		for _, to := range stage.NextStages {
			target, _ := g.Stage(to)
			r := v.Validate(from, to, Record{})

			if len(target.RequiredFields) == 0 {
				assert.True(t, r.Allowed, "%s -> %s", from, to)
				continue
			}
			want := append([]string(nil), target.RequiredFields...)
			sort.Strings(want)
			assert.False(t, r.Allowed, "%s -> %s", from, to)
			assert.Equal(t, want, r.MissingFields, "%s -> %s", from, to)
		}
	}
}

func TestValidate_BackwardSkipsRequiredFields(t *testing.T) {
	v := NewValidator(MustDefaultGraph())

	// Design requires design_files, which the entity lacks.
	r := v.Validate(StageDevelopment, StageDesign, Record{})
	assert.True(t, r.Allowed)
	assert.True(t, r.RequiresConfirmation)
	assert.Empty(t, r.MissingFields)
}

func TestValidate_OnHoldLinksAreBackward(t *testing.T) {
	v := NewValidator(MustDefaultGraph())

	// On Hold lists Design as a next stage and Design lists On Hold, so
	// both directions are backward moves.
	r := v.Validate(StageDesign, StageOnHold, Record{})
	assert.Equal(t, Result{
		Allowed:              true,
		RequiresConfirmation: true,
		Kind:                 KindBackward,
		Reason:               "Moving backwards requires confirmation",
	}, r)

	r = v.Validate(StageOnHold, StageDesign, Record{})
	assert.True(t, r.Allowed)
	assert.True(t, r.RequiresConfirmation)
	assert.Equal(t, KindBackward, r.Kind)
	assert.Empty(t, r.MissingFields, "design_files is not checked on a backward move")

	r = v.Validate(StageDiscovery, StageOnHold, Record{"name": "X", "description": "Y"})
	assert.True(t, r.Allowed)
	assert.True(t, r.RequiresConfirmation)
}

func TestValidate_TypedProject(t *testing.T) {
	v := NewValidator(MustDefaultGraph())
	done := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	url := "https://app.example.com"

	p := &models.Project{Name: "Portal", CurrentStage: StageDeployment, DeploymentURL: &url}
	r := v.Validate(StageDeployment, StageCompleted, p)
	assert.Equal(t, "Missing required fields: completion_date", r.Reason)

	p.CompletionDate = &done
	r = v.Validate(StageDeployment, StageCompleted, p)
	assert.True(t, r.Allowed)
}

func TestAvailableStages(t *testing.T) {
	v := NewValidator(MustDefaultGraph())

	assert.Equal(t, []string{StagePlanning, StageOnHold},
		v.AvailableStages(StageDiscovery, Record{"timeline": "Q1"}))
	assert.Equal(t, []string{StageOnHold},
		v.AvailableStages(StageDiscovery, Record{"name": "X", "description": "Y"}))
	assert.Equal(t, []string{StageTesting, StageOnHold},
		v.AvailableStages(StageDevelopment, Record{}))
	assert.Equal(t, []string{
		StageDiscovery, StagePlanning, StageDesign,
		StageDevelopment, StageTesting, StageDeployment,
	}, v.AvailableStages(StageOnHold, Record{}))
	assert.Empty(t, v.AvailableStages(StageCompleted, Record{}))
	assert.Nil(t, v.AvailableStages("Archived", Record{}))
}

func TestRecord_HasField(t *testing.T) {
	var nilPtr *string
	r := Record{
		"blank":   "  ",
		"text":    "x",
		"files":   []string{},
		"more":    []string{"a"},
		"nilptr":  nilPtr,
		"number":  0,
		"missing": nil,
	}
	assert.False(t, r.HasField("blank"))
	assert.True(t, r.HasField("text"))
	assert.False(t, r.HasField("files"))
	assert.True(t, r.HasField("more"))
	assert.False(t, r.HasField("nilptr"))
	assert.True(t, r.HasField("number"))
	assert.False(t, r.HasField("missing"))
	assert.False(t, r.HasField("absent"))
}
