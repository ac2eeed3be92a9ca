package stages

import (
	"fmt"
	"reflect"
	"slices"
	"strings"
)

// FieldSet is an entity snapshot whose required fields can be checked.
// [models.Project] implements it over its typed attributes.
type FieldSet interface {
	HasField(name string) bool
}

// Record is an ad-hoc snapshot keyed by field name. A field is present when
// its value is non-nil, not a blank string and not an empty slice or map.
type Record map[string]any

// HasField implements [FieldSet].
func (r Record) HasField(name string) bool {
	v, ok := r[name]
	if !ok || v == nil {
		return false
	}
	if s, ok := v.(string); ok {
		return strings.TrimSpace(s) != ""
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Map, reflect.Array:
		return rv.Len() > 0
	case reflect.Pointer, reflect.Interface:
		return !rv.IsNil()
	}
	return true
}

// Kind classifies a requested transition.
type Kind string

const (
	KindInvalidStage Kind = "invalid_stage"
	KindIdentity     Kind = "identity"
	KindForward      Kind = "forward"
	KindBackward     Kind = "backward"
	KindDisallowed   Kind = "disallowed"
)

// Result is the outcome of validating a transition. It is a value, never an
// error, so callers can render it directly.
type Result struct {
	Allowed              bool     `json:"allowed"`
	RequiresConfirmation bool     `json:"requires_confirmation"`
	Reason               string   `json:"reason,omitempty"`
	MissingFields        []string `json:"missing_fields,omitempty"`
	// AllowedStages lists the next stages of the current stage when the
	// requested move has no edge.
	AllowedStages []string `json:"allowed_stages,omitempty"`
	Kind          Kind     `json:"kind"`
}

// Validator decides whether a project may move between two stages.
// It performs no I/O and is safe for concurrent use.
type Validator struct {
	graph *Graph
}

// NewValidator creates a Validator over g.
func NewValidator(g *Graph) *Validator {
	return &Validator{graph: g}
}

// Graph returns the graph the validator checks against.
func (v *Validator) Graph() *Graph {
	return v.graph
}

// Validate classifies the move from current to target for entity. The
// first matching rule wins:
//
//  1. unknown stage name: denied
//  2. same stage: allowed, no confirmation
//  3. no edge either way: denied, listing the allowed next stages
//  4. backward edge: allowed pending confirmation, fields unchecked
//  5. forward edge: allowed unless target's required fields are missing
//
// The On Hold links carry edges in both directions, so every move into or
// out of On Hold is backward and needs confirmation.
func (v *Validator) Validate(current, target string, entity FieldSet) Result {
	from, okFrom := v.graph.stages[current]
	to, okTo := v.graph.stages[target]
	if !okFrom || !okTo {
		bad := current
		if okFrom {
			bad = target
		}
		return Result{
			Kind:   KindInvalidStage,
			Reason: fmt.Sprintf("Invalid stage name: %q", bad),
		}
	}

	if current == target {
		return Result{Allowed: true, Kind: KindIdentity}
	}

	forward := v.graph.IsForward(current, target)
	backward := v.graph.IsBackward(current, target)

	switch {
	case !forward && !backward:
		allowed := slices.Clone(from.NextStages)
		list := "none"
		if len(allowed) > 0 {
			list = strings.Join(allowed, ", ")
		}
		return Result{
			Kind:          KindDisallowed,
			Reason:        fmt.Sprintf("Cannot move from %s to %s. Allowed stages: %s", current, target, list),
			AllowedStages: allowed,
		}

	case backward:
		return Result{
			Allowed:              true,
			RequiresConfirmation: true,
			Kind:                 KindBackward,
			Reason:               "Moving backwards requires confirmation",
		}
	}

	missing := missingFields(to.RequiredFields, entity)
	if len(missing) > 0 {
		return Result{
			Kind:          KindForward,
			Reason:        "Missing required fields: " + strings.Join(missing, ", "),
			MissingFields: missing,
		}
	}
	return Result{Allowed: true, Kind: KindForward}
}

// AvailableStages returns the next stages of current that the entity could
// move to now, either directly or after confirmation. Unknown stages have
// none.
func (v *Validator) AvailableStages(current string, entity FieldSet) []string {
	from, ok := v.graph.stages[current]
	if !ok {
		return nil
	}
	out := make([]string, 0, len(from.NextStages))
	for _, next := range from.NextStages {
		r := v.Validate(current, next, entity)
		if r.Allowed || r.RequiresConfirmation {
			out = append(out, next)
		}
	}
	return out
}

func missingFields(required []string, entity FieldSet) []string {
	var missing []string
	for _, field := range required {
		if entity == nil || !entity.HasField(field) {
			missing = append(missing, field)
		}
	}
	slices.Sort(missing)
	return slices.Compact(missing)
}
