package auth

// Scopes accepted by the health API.
const (
	ScopeHealthRead  = "health:read"
	ScopeHealthWrite = "health:write"
)
