package contextkeys

type contextKey string

// AuthPrincipalKey holds the authenticated auth.Principal set by the
// authentication middleware.
const AuthPrincipalKey contextKey = "authPrincipal"
