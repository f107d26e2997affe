package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/MonkyMars/gecho"

	"github.com/CLDWare/labtrack-backend/internal/auth"
	contextkeys "github.com/CLDWare/labtrack-backend/internal/contextKeys"
	"github.com/CLDWare/labtrack-backend/internal/faults"
	"github.com/CLDWare/labtrack-backend/pkg/logger"
)

// principalFrom pulls the authenticated principal set by the
// authentication middleware out of the request context.
func principalFrom(r *http.Request) (auth.Principal, bool) {
	principal, ok := r.Context().Value(contextkeys.AuthPrincipalKey).(auth.Principal)
	return principal, ok
}

// sendFault maps a core error onto the matching gecho response.
func sendFault(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, faults.ErrNotFound):
		gecho.NotFound(w).WithMessage(err.Error()).Send()
	case errors.Is(err, faults.ErrConflict):
		gecho.NewErr(w).WithStatus(http.StatusConflict).WithMessage(err.Error()).Send()
	case errors.Is(err, faults.ErrForbidden):
		gecho.Forbidden(w).WithMessage(err.Error()).Send()
	case errors.Is(err, faults.ErrInvalidInput):
		gecho.BadRequest(w).WithMessage(err.Error()).Send()
	default:
		logger.Err(err.Error())
		gecho.InternalServerError(w).Send()
	}
}

// pathID parses the named path value as an entity id.
func pathID(r *http.Request, name string) (uint, error) {
	raw := r.PathValue(name)
	id, err := strconv.ParseUint(raw, 10, 0)
	if err != nil {
		return 0, err
	}
	return uint(id), nil
}

// queryInt parses an integer query parameter, falling back when absent.
func queryInt(r *http.Request, name string, fallback int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback, nil
	}
	return strconv.Atoi(raw)
}

// queryDate parses a date query parameter as RFC 3339 or plain date.
func queryDate(r *http.Request, name string) (*time.Time, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return &t, nil
	}
	t, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
