package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/CLDWare/labtrack-backend/config"
	"github.com/CLDWare/labtrack-backend/internal/auth"
	"github.com/CLDWare/labtrack-backend/internal/labs"
	"github.com/CLDWare/labtrack-backend/internal/ledger"
	"github.com/CLDWare/labtrack-backend/internal/lifecycle"
	models "github.com/CLDWare/labtrack-backend/pkg/db"
	"github.com/CLDWare/labtrack-backend/pkg/logger"
)

var testDBCounter int

func newTestUserHandler(t *testing.T) (*UserHandler, *lifecycle.Manager) {
	t.Helper()
	logger.Init()

	testDBCounter++
	dsn := fmt.Sprintf("file:handlers%d?mode=memory&cache=shared", testDBCounter)
	db, err := models.InitialiseDatabase(dsn)
	if err != nil {
		t.Fatalf("initialise database: %v", err)
	}

	cfg := config.Get()
	tokens := auth.NewTokens("test-secret", time.Hour)
	manager := lifecycle.NewManager(cfg, db, lifecycle.Hooks{})
	handler := NewUserHandler(cfg, db, tokens, auth.NewGoogleVerifier(""), manager, ledger.NewLedger(cfg, db), labs.NewRegistry(db))
	return handler, manager
}

func seedAccount(t *testing.T, h *UserHandler, admissionNumber, password string) models.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	user := models.User{AdmissionNumber: admissionNumber, Name: "Test User", Class: "4A", PasswordHash: string(hash), Role: models.RoleUser}
	if err := h.db.Create(&user).Error; err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return user
}

func postLogin(h *UserHandler, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", strings.NewReader(body))
	w := httptest.NewRecorder()
	h.PostLogin(w, req)
	return w
}

func TestPostLogin(t *testing.T) {
	h, _ := newTestUserHandler(t)
	seedAccount(t, h, "2024001", "hunter2")

	w := postLogin(h, `{"admissionNumber":"2024001","password":"hunter2"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("login: expected %d, got %d: %s", http.StatusOK, w.Code, w.Body.String())
	}

	var resp struct {
		Data struct {
			Token string `json:"token"`
		} `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Data.Token == "" {
		t.Error("expected a bearer token in the response")
	}
}

func TestPostLogin_BadCredentials(t *testing.T) {
	h, _ := newTestUserHandler(t)
	seedAccount(t, h, "2024001", "hunter2")

	if w := postLogin(h, `{"admissionNumber":"2024001","password":"wrong"}`); w.Code != http.StatusBadRequest {
		t.Errorf("wrong password: expected %d, got %d", http.StatusBadRequest, w.Code)
	}
	if w := postLogin(h, `{"admissionNumber":"9999","password":"hunter2"}`); w.Code != http.StatusNotFound {
		t.Errorf("unknown account: expected %d, got %d", http.StatusNotFound, w.Code)
	}
	if w := postLogin(h, `{"admissionNumber":"2024001"}`); w.Code != http.StatusBadRequest {
		t.Errorf("missing password: expected %d, got %d", http.StatusBadRequest, w.Code)
	}
}

func TestPostLogin_ActiveSessionConflicts(t *testing.T) {
	h, manager := newTestUserHandler(t)
	user := seedAccount(t, h, "2024001", "hunter2")
	if err := h.db.Create(&models.Lab{ComputerID: "pc-01", Name: "Lab A"}).Error; err != nil {
		t.Fatalf("seed lab: %v", err)
	}

	if _, err := manager.Start(context.Background(), lifecycle.StartInput{
		UserID: user.ID, LabID: "Lab A", Purpose: "Internet", Online: true,
	}); err != nil {
		t.Fatalf("start session: %v", err)
	}

	// The active session is rejected before any password check runs, so
	// even the correct password gets a conflict.
	w := postLogin(h, `{"admissionNumber":"2024001","password":"hunter2"}`)
	if w.Code != http.StatusConflict {
		t.Fatalf("expected %d, got %d: %s", http.StatusConflict, w.Code, w.Body.String())
	}
}

func TestPostLogin_BusyLabConflicts(t *testing.T) {
	h, _ := newTestUserHandler(t)
	seedAccount(t, h, "2024001", "hunter2")
	if err := h.db.Create(&models.Lab{ComputerID: "pc-01", Name: "Lab A", Status: true}).Error; err != nil {
		t.Fatalf("seed lab: %v", err)
	}

	w := postLogin(h, `{"admissionNumber":"2024001","password":"hunter2","labId":"Lab A"}`)
	if w.Code != http.StatusConflict {
		t.Fatalf("expected %d, got %d: %s", http.StatusConflict, w.Code, w.Body.String())
	}
}
