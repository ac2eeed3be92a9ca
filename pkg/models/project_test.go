package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func strPtr(s string) *string { return &s }

func TestProject_HasField(t *testing.T) {
	now := time.Now()
	p := &Project{
		Name:           "Website",
		Description:    strPtr("  "),
		Timeline:       strPtr("Q1"),
		DesignFiles:    []string{"", "mockup.fig"},
		CompletionDate: &now,
	}

	assert.True(t, p.HasField(FieldName))
	assert.False(t, p.HasField(FieldDescription), "blank strings count as missing")
	assert.True(t, p.HasField(FieldTimeline))
	assert.True(t, p.HasField(FieldDesignFiles))
	assert.False(t, p.HasField(FieldTestResults))
	assert.True(t, p.HasField(FieldCompletionDate))
	assert.False(t, p.HasField("budget"))

	var nilProject *Project
	assert.False(t, nilProject.HasField(FieldName))
}

func TestProjectDetails_Apply(t *testing.T) {
	p := &Project{Name: "Old", Timeline: strPtr("Q1")}
	ProjectDetails{Name: strPtr("New"), HoldReason: strPtr("budget freeze")}.Apply(p)

	assert.Equal(t, "New", p.Name)
	assert.Equal(t, "Q1", *p.Timeline)
	assert.Equal(t, "budget freeze", *p.HoldReason)
}

func TestLeadStatusAndDealStage(t *testing.T) {
	assert.True(t, LeadStatusContacted.IsOpen())
	assert.False(t, LeadStatusConverted.IsOpen())
	assert.True(t, DealClosedLost.IsClosed())
	assert.False(t, DealProposal.IsClosed())
}
