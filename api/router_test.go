package api

import (
	"net/http"
	"net/http/httptest"
	"testing"

	models "github.com/CLDWare/labtrack-backend/pkg/db"
	"github.com/CLDWare/labtrack-backend/pkg/logger"
)

func newTestHandler(t *testing.T) http.Handler {
	t.Helper()
	logger.Init()

	db, err := models.InitialiseDatabase("file::memory:?cache=shared")
	if err != nil {
		t.Fatalf("initialise database: %v", err)
	}

	api := NewAPI(db)
	return ApplyMiddleware(api.CreateMux())
}

func TestAPI_WithMiddleware(t *testing.T) {
	handler := newTestHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/v", nil)
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	// Check that the request went through middleware and reached the handler
	if w.Code != http.StatusOK {
		t.Errorf("expected status %d, got %d", http.StatusOK, w.Code)
	}

	// Check CORS headers are present (from CORSMiddleware)
	corsHeader := w.Header().Get("Access-Control-Allow-Origin")
	if corsHeader == "" {
		t.Error("expected CORS headers to be set by middleware")
	}
}

func TestAPI_ProtectedRoutesRejectAnonymous(t *testing.T) {
	handler := newTestHandler(t)

	tests := []struct {
		method string
		path   string
	}{
		{http.MethodPost, "/api/sessions/start"},
		{http.MethodPost, "/api/auth/logout"},
		{http.MethodGet, "/api/sessions"},
		{http.MethodGet, "/api/credits/all"},
		{http.MethodPut, "/api/lab/status/LabA"},
	}

	for _, tt := range tests {
		req := httptest.NewRequest(tt.method, tt.path, nil)
		w := httptest.NewRecorder()

		handler.ServeHTTP(w, req)

		if w.Code != http.StatusUnauthorized {
			t.Errorf("%s %s: expected status %d, got %d", tt.method, tt.path, http.StatusUnauthorized, w.Code)
		}
	}
}

func TestAPI_FallbackRoute(t *testing.T) {
	handler := newTestHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/no/such/route", nil)
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("expected status %d, got %d", http.StatusNotFound, w.Code)
	}
}
