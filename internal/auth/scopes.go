package auth

const (
	ScopeOpenID     = "openid"
	ScopeProfile    = "profile"
	ScopeEmail      = "email"
	ScopeTornoRead  = "torno:read"
	ScopeTornoWrite = "torno:write"
)

// AllScopes defines the full set of scopes requested by API clients.
var AllScopes = []string{
	ScopeOpenID,
	ScopeProfile,
	ScopeEmail,
	ScopeTornoRead,
	ScopeTornoWrite,
}
