// Package stages implements the project workflow: a fixed graph of named
// stages, a pure transition validator and an executor that applies validated
// transitions through injected collaborators.
//
// Key types:
//   - [Graph] - immutable stage definitions and adjacency queries
//   - [Validator] - classifies a requested transition into a [Result]
//   - [Executor] - loads, validates, persists, audits and notifies
//
// A Graph is built once at startup with [NewGraph] and shared read-only by
// every caller.
package stages

import (
	"errors"
	"fmt"
	"math"
	"slices"
	"strings"

	"business-os/backend/pkg/models"
)

// Canonical stage names of the built-in project workflow.
const (
	StageDiscovery   = "Discovery"
	StagePlanning    = "Planning"
	StageDesign      = "Design"
	StageDevelopment = "Development"
	StageTesting     = "Testing"
	StageDeployment  = "Deployment"
	StageCompleted   = "Completed"
	StageOnHold      = "On Hold"
)

// ErrUnknownStage is returned when a stage name is not part of the graph.
var ErrUnknownStage = errors.New("unknown stage")

// StageDef declares one stage of a workflow definition.
type StageDef struct {
	Name string `yaml:"name" json:"name"`
	// Order ranks the stage for progress display. A negative order marks a
	// sentinel stage (such as On Hold) that sits outside the sequence.
	Order          int      `yaml:"order" json:"order"`
	RequiredFields []string `yaml:"required_fields,omitempty" json:"required_fields,omitempty"`
	Next           []string `yaml:"next,omitempty" json:"next,omitempty"`
}

// Definition is the declarative form of a stage graph.
type Definition struct {
	Entry  string     `yaml:"entry" json:"entry"`
	Stages []StageDef `yaml:"stages" json:"stages"`
}

// Stage is a node of a [Graph]. Values returned by the graph are copies.
type Stage struct {
	Name           string   `json:"name"`
	Order          int      `json:"order"`
	RequiredFields []string `json:"required_fields"`
	NextStages     []string `json:"next_stages"`
}

// IsSentinel reports whether the stage is outside the progress sequence.
func (s Stage) IsSentinel() bool {
	return s.Order < 0
}

// Graph holds the stage definitions and answers adjacency queries.
// It is never modified after [NewGraph] returns.
type Graph struct {
	entry   string
	names   []string
	stages  map[string]Stage
	forward map[string]map[string]struct{}
	ranked  int
}

// DefaultDefinition returns the canonical project workflow:
// Discovery → Planning → Design → Development → Testing → Deployment →
// Completed, with On Hold reachable from and returning to every stage
// before Completed.
func DefaultDefinition() Definition {
	operational := []string{
		StageDiscovery, StagePlanning, StageDesign,
		StageDevelopment, StageTesting, StageDeployment,
	}
	return Definition{
		Entry: StageDiscovery,
		Stages: []StageDef{
			{Name: StageDiscovery, Order: 1, RequiredFields: []string{models.FieldName, models.FieldDescription}, Next: []string{StagePlanning, StageOnHold}},
			{Name: StagePlanning, Order: 2, RequiredFields: []string{models.FieldTimeline}, Next: []string{StageDesign, StageOnHold}},
			{Name: StageDesign, Order: 3, RequiredFields: []string{models.FieldDesignFiles}, Next: []string{StageDevelopment, StageOnHold}},
			{Name: StageDevelopment, Order: 4, Next: []string{StageTesting, StageOnHold}},
			{Name: StageTesting, Order: 5, Next: []string{StageDeployment, StageOnHold}},
			{Name: StageDeployment, Order: 6, RequiredFields: []string{models.FieldTestResults}, Next: []string{StageCompleted, StageOnHold}},
			{Name: StageCompleted, Order: 7, RequiredFields: []string{models.FieldDeploymentURL, models.FieldCompletionDate}},
			{Name: StageOnHold, Order: -1, RequiredFields: []string{models.FieldHoldReason}, Next: operational},
		},
	}
}

// NewGraph validates def and builds an immutable Graph from it.
func NewGraph(def Definition) (*Graph, error) {
	if len(def.Stages) == 0 {
		return nil, errors.New("stages: definition has no stages")
	}

	g := &Graph{
		entry:   def.Entry,
		stages:  make(map[string]Stage, len(def.Stages)),
		forward: make(map[string]map[string]struct{}, len(def.Stages)),
	}
	for i, sd := range def.Stages {
		name := strings.TrimSpace(sd.Name)
		if name == "" {
			return nil, fmt.Errorf("stages: stage[%d] has no name", i)
		}
		if _, dup := g.stages[name]; dup {
			return nil, fmt.Errorf("stages: duplicate stage %q", name)
		}
		g.names = append(g.names, name)
		g.stages[name] = Stage{
			Name:           name,
			Order:          sd.Order,
			RequiredFields: slices.Clone(sd.RequiredFields),
			NextStages:     slices.Clone(sd.Next),
		}
		if sd.Order >= 0 {
			g.ranked++
		}
	}

	for _, name := range g.names {
		edges := make(map[string]struct{}, len(g.stages[name].NextStages))
		for _, next := range g.stages[name].NextStages {
			if _, ok := g.stages[next]; !ok {
				return nil, fmt.Errorf("stages: %q lists next stage %q: %w", name, next, ErrUnknownStage)
			}
			if next == name {
				return nil, fmt.Errorf("stages: %q lists itself as a next stage", name)
			}
			edges[next] = struct{}{}
		}
		g.forward[name] = edges
	}

	if g.entry == "" {
		g.entry = g.names[0]
	}
	if _, ok := g.stages[g.entry]; !ok {
		return nil, fmt.Errorf("stages: entry stage %q: %w", g.entry, ErrUnknownStage)
	}
	return g, nil
}

// MustDefaultGraph builds the graph of [DefaultDefinition].
func MustDefaultGraph() *Graph {
	g, err := NewGraph(DefaultDefinition())
	if err != nil {
		panic(err)
	}
	return g
}

// Entry returns the stage new projects start in.
func (g *Graph) Entry() string {
	return g.entry
}

// Names returns the stage names in definition order.
func (g *Graph) Names() []string {
	return slices.Clone(g.names)
}

// Stage returns the named stage.
func (g *Graph) Stage(name string) (Stage, bool) {
	s, ok := g.stages[name]
	if !ok {
		return Stage{}, false
	}
	s.RequiredFields = slices.Clone(s.RequiredFields)
	s.NextStages = slices.Clone(s.NextStages)
	return s, true
}

// Stages returns every stage in definition order.
func (g *Graph) Stages() []Stage {
	out := make([]Stage, 0, len(g.names))
	for _, name := range g.names {
		s, _ := g.Stage(name)
		out = append(out, s)
	}
	return out
}

// IsForward reports whether to is listed in the next stages of from.
func (g *Graph) IsForward(from, to string) bool {
	_, ok := g.forward[from][to]
	return ok
}

// IsBackward reports whether from is listed in the next stages of to, that
// is, to is reachable from from by an inverse edge.
func (g *Graph) IsBackward(from, to string) bool {
	return g.IsForward(to, from)
}

// Progress returns round(order / (n-1) * 100) where n counts the stages
// that are not sentinels. Sentinel stages report 0. Orders start at 1, so
// the last stage of the path reports more than 100 (Completed is 117 in the
// default graph) and callers displaying a percentage should clamp it.
func (g *Graph) Progress(name string) (int, error) {
	s, ok := g.stages[name]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownStage, name)
	}
	if s.IsSentinel() || g.ranked < 2 {
		return 0, nil
	}
	return int(math.Round(float64(s.Order) / float64(g.ranked-1) * 100)), nil
}

// Checklist returns the fields a project must have before entering name.
func (g *Graph) Checklist(name string) ([]string, error) {
	s, ok := g.stages[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownStage, name)
	}
	return slices.Clone(s.RequiredFields), nil
}
