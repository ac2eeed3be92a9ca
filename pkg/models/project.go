// Package models defines the domain models shared by the stores, services and API.
package models

import (
	"strings"
	"time"
)

// Field names a stage may list as required before a project can enter it.
const (
	FieldName           = "name"
	FieldDescription    = "description"
	FieldTimeline       = "timeline"
	FieldDesignFiles    = "design_files"
	FieldTestResults    = "test_results"
	FieldDeploymentURL  = "deployment_url"
	FieldCompletionDate = "completion_date"
	FieldHoldReason     = "hold_reason"
)

// Project is the record moved through the workflow stages.
//
// Optional attributes are pointers so that presence is explicit: a nil or
// blank value counts as missing when a stage requires it.
type Project struct {
	ID             string     `json:"id"`
	TenantID       string     `json:"tenant_id"`
	Name           string     `json:"name"`
	Description    *string    `json:"description,omitempty"`
	CurrentStage   string     `json:"current_stage"`
	OwnerID        string     `json:"owner_id"`
	Timeline       *string    `json:"timeline,omitempty"`
	DesignFiles    []string   `json:"design_files,omitempty"`
	TestResults    *string    `json:"test_results,omitempty"`
	DeploymentURL  *string    `json:"deployment_url,omitempty"`
	CompletionDate *time.Time `json:"completion_date,omitempty"`
	HoldReason     *string    `json:"hold_reason,omitempty"`
	Version        int        `json:"version"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// HasField reports whether the named attribute is populated.
// Unknown field names are never present.
func (p *Project) HasField(name string) bool {
	if p == nil {
		return false
	}
	switch name {
	case FieldName:
		return strings.TrimSpace(p.Name) != ""
	case FieldDescription:
		return present(p.Description)
	case FieldTimeline:
		return present(p.Timeline)
	case FieldDesignFiles:
		for _, f := range p.DesignFiles {
			if strings.TrimSpace(f) != "" {
				return true
			}
		}
		return false
	case FieldTestResults:
		return present(p.TestResults)
	case FieldDeploymentURL:
		return present(p.DeploymentURL)
	case FieldCompletionDate:
		return p.CompletionDate != nil && !p.CompletionDate.IsZero()
	case FieldHoldReason:
		return present(p.HoldReason)
	}
	return false
}

// ProjectDetails carries the editable attributes of a project. Nil pointers
// leave the stored value untouched.
type ProjectDetails struct {
	Name           *string    `json:"name,omitempty"`
	Description    *string    `json:"description,omitempty"`
	OwnerID        *string    `json:"owner_id,omitempty"`
	Timeline       *string    `json:"timeline,omitempty"`
	DesignFiles    []string   `json:"design_files,omitempty"`
	TestResults    *string    `json:"test_results,omitempty"`
	DeploymentURL  *string    `json:"deployment_url,omitempty"`
	CompletionDate *time.Time `json:"completion_date,omitempty"`
	HoldReason     *string    `json:"hold_reason,omitempty"`
}

// Apply copies every set attribute of d onto p.
func (d ProjectDetails) Apply(p *Project) {
	if d.Name != nil {
		p.Name = *d.Name
	}
	if d.Description != nil {
		p.Description = d.Description
	}
	if d.OwnerID != nil {
		p.OwnerID = *d.OwnerID
	}
	if d.Timeline != nil {
		p.Timeline = d.Timeline
	}
	if d.DesignFiles != nil {
		p.DesignFiles = d.DesignFiles
	}
	if d.TestResults != nil {
		p.TestResults = d.TestResults
	}
	if d.DeploymentURL != nil {
		p.DeploymentURL = d.DeploymentURL
	}
	if d.CompletionDate != nil {
		p.CompletionDate = d.CompletionDate
	}
	if d.HoldReason != nil {
		p.HoldReason = d.HoldReason
	}
}

func present(s *string) bool {
	return s != nil && strings.TrimSpace(*s) != ""
}
