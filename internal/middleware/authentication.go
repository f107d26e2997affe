package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/MonkyMars/gecho"

	"github.com/CLDWare/labtrack-backend/internal/auth"
	contextkeys "github.com/CLDWare/labtrack-backend/internal/contextKeys"
)

type AuthenticationMiddleware struct {
	Tokens *auth.Tokens
}

// Required checks that a valid bearer token is present and sets the
// contextkeys.AuthPrincipalKey value on the context.
func (mw AuthenticationMiddleware) Required(next func(w http.ResponseWriter, r *http.Request)) func(w http.ResponseWriter, r *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		authz := r.Header.Get("Authorization")
		if authz == "" || !strings.HasPrefix(authz, "Bearer ") {
			gecho.Unauthorized(w).WithMessage("A bearer token is required for authenticated requests").Send()
			return
		}

		principal, err := mw.Tokens.Verify(strings.TrimSpace(strings.TrimPrefix(authz, "Bearer ")))
		if err != nil {
			gecho.Unauthorized(w).WithMessage("Invalid or expired token").Send()
			return
		}

		ctx := context.WithValue(r.Context(), contextkeys.AuthPrincipalKey, principal)
		next(w, r.WithContext(ctx))
	}
}

// AdminOnly is Required plus an admin role check.
func (mw AuthenticationMiddleware) AdminOnly(next func(w http.ResponseWriter, r *http.Request)) func(w http.ResponseWriter, r *http.Request) {
	return mw.Required(func(w http.ResponseWriter, r *http.Request) {
		principal, ok := r.Context().Value(contextkeys.AuthPrincipalKey).(auth.Principal)
		if !ok || !principal.IsAdmin() {
			gecho.Forbidden(w).Send()
			return
		}
		next(w, r)
	})
}
