package models

import "time"

// LeadStatus is the lifecycle state of a lead.
type LeadStatus string

const (
	LeadStatusNew       LeadStatus = "new"
	LeadStatusContacted LeadStatus = "contacted"
	LeadStatusQualified LeadStatus = "qualified"
	LeadStatusConverted LeadStatus = "converted"
	LeadStatusLost      LeadStatus = "lost"
)

// IsOpen reports whether the lead still counts toward a rep's workload.
func (s LeadStatus) IsOpen() bool {
	return s == LeadStatusNew || s == LeadStatusContacted || s == LeadStatusQualified
}

// SalesRep is a user who can own leads.
type SalesRep struct {
	ID        string    `json:"id"`
	TenantID  string    `json:"tenant_id"`
	Name      string    `json:"name"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

type Lead struct {
	ID         string     `json:"id"`
	TenantID   string     `json:"tenant_id"`
	Name       string     `json:"name"`
	Email      string     `json:"email"`
	Source     string     `json:"source,omitempty"`
	Status     LeadStatus `json:"status"`
	AssignedTo *string    `json:"assigned_to,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// DealStage is the pipeline position of a deal.
type DealStage string

const (
	DealProspecting   DealStage = "prospecting"
	DealQualification DealStage = "qualification"
	DealProposal      DealStage = "proposal"
	DealNegotiation   DealStage = "negotiation"
	DealClosedWon     DealStage = "closed_won"
	DealClosedLost    DealStage = "closed_lost"
)

// IsClosed reports whether the deal has reached a final stage.
func (s DealStage) IsClosed() bool {
	return s == DealClosedWon || s == DealClosedLost
}

type Deal struct {
	ID              string     `json:"id"`
	TenantID        string     `json:"tenant_id"`
	Name            string     `json:"name"`
	Stage           DealStage  `json:"stage"`
	Amount          float64    `json:"amount"`
	Probability     int        `json:"probability"`
	OwnerID         string     `json:"owner_id"`
	LastActivityAt  *time.Time `json:"last_activity_at,omitempty"`
	LastContactedAt *time.Time `json:"last_contacted_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}
