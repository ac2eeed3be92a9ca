package auth

const (
	ScopeOpenID         = "openid"
	ScopeProfile        = "profile"
	ScopeEmail          = "email"
	ScopeProjectsRead   = "projects:read"
	ScopeProjectsWrite  = "projects:write"
	ScopeSalesWrite     = "sales:write"
	ScopeContractsWrite = "contracts:write"
)

// AllScopes defines the full set of scopes used by the Swagger UI / Frontend
var AllScopes = []string{
	ScopeOpenID,
	ScopeProfile,
	ScopeEmail,
	ScopeProjectsRead,
	ScopeProjectsWrite,
	ScopeSalesWrite,
	ScopeContractsWrite,
}
