package models

import "time"

// ContractStatus is the lifecycle state of a contract.
type ContractStatus string

const (
	ContractActive    ContractStatus = "active"
	ContractExpired   ContractStatus = "expired"
	ContractCancelled ContractStatus = "cancelled"
)

type Contract struct {
	ID           string         `json:"id"`
	TenantID     string         `json:"tenant_id"`
	Title        string         `json:"title"`
	OwnerID      string         `json:"owner_id"`
	StartDate    time.Time      `json:"start_date"`
	EndDate      time.Time      `json:"end_date"`
	TermMonths   int            `json:"term_months"`
	AutoRenew    bool           `json:"auto_renew"`
	Status       ContractStatus `json:"status"`
	RenewalCount int            `json:"renewal_count"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

// AIUsage is the token consumption of a tenant within one monthly period.
type AIUsage struct {
	TenantID string    `json:"tenant_id"`
	Period   time.Time `json:"period"`
	Tokens   int64     `json:"tokens"`
	Limit    int64     `json:"limit"`
}
