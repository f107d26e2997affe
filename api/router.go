package api

import (
	"net/http"

	"github.com/MonkyMars/gecho"
	httpSwagger "github.com/swaggo/http-swagger/v2"
	"gorm.io/gorm"

	"github.com/CLDWare/labtrack-backend/config"
	_ "github.com/CLDWare/labtrack-backend/docs"
	"github.com/CLDWare/labtrack-backend/internal/auth"
	"github.com/CLDWare/labtrack-backend/internal/handlers"
	"github.com/CLDWare/labtrack-backend/internal/labs"
	"github.com/CLDWare/labtrack-backend/internal/ledger"
	"github.com/CLDWare/labtrack-backend/internal/lifecycle"
	"github.com/CLDWare/labtrack-backend/internal/middleware"
	"github.com/CLDWare/labtrack-backend/internal/netctl"
)

// API holds the API dependencies
type API struct {
	auth           middleware.AuthenticationMiddleware
	versionHandler *handlers.VersionHandler
	sessionHandler *handlers.SessionHandler
	userHandler    *handlers.UserHandler
	labHandler     *handlers.LabHandler
	creditHandler  *handlers.CreditHandler
	printHandler   *handlers.PrintHandler
	purposeHandler *handlers.PurposeHandler
	statusFeed     *handlers.StatusFeed

	// Manager is exported through a getter for the janitor wiring.
	manager *lifecycle.Manager
}

// NewAPI creates a new API instance
func NewAPI(db *gorm.DB) *API {
	cfg := config.Get()

	tokens := auth.NewTokens(cfg.Auth.JWTSecret, cfg.Auth.TokenDuration)
	google := auth.NewGoogleVerifier(cfg.Auth.GoogleClientId)
	toggler := netctl.NewToggler(cfg.Hooks.NetworkToggle, cfg.Hooks.NetworkInterface)

	statusFeed := handlers.NewStatusFeed(cfg)
	manager := lifecycle.NewManager(cfg, db, lifecycle.Hooks{
		NetworkUp:        toggler.Up,
		NetworkDown:      toggler.Down,
		LabStatusChanged: statusFeed.Publish,
	})
	registry := labs.NewRegistry(db)
	ldg := ledger.NewLedger(cfg, db)

	return &API{
		auth:           middleware.AuthenticationMiddleware{Tokens: tokens},
		versionHandler: handlers.NewVersionHandler(cfg),
		sessionHandler: handlers.NewSessionHandler(cfg, manager),
		userHandler:    handlers.NewUserHandler(cfg, db, tokens, google, manager, ldg, registry),
		labHandler:     handlers.NewLabHandler(cfg, registry),
		creditHandler:  handlers.NewCreditHandler(cfg, ldg),
		printHandler:   handlers.NewPrintHandler(cfg, ldg),
		purposeHandler: handlers.NewPurposeHandler(cfg, db),
		statusFeed:     statusFeed,
		manager:        manager,
	}
}

// Manager exposes the session manager for background workers.
func (api *API) Manager() *lifecycle.Manager {
	return api.manager
}

// CreateMux creates and configures the HTTP mux
func (api *API) CreateMux() *http.ServeMux {
	mux := http.NewServeMux()
	api.setupRoutes(mux)
	return mux
}

// setupRoutes configures all the routes.
func (api *API) setupRoutes(mux *http.ServeMux) {
	requires := api.auth.Required
	adminOnly := api.auth.AdminOnly

	// Version route
	mux.HandleFunc("/v", api.versionHandler.GetVersion)
	// Lab status live feed for the dashboard
	mux.HandleFunc("/ws", api.statusFeed.ServeWebsocket)
	// Swagger documentation
	mux.Handle("/swagger/", httpSwagger.WrapHandler)

	// Auth and accounts
	mux.HandleFunc("/api/auth/login", api.userHandler.PostLogin)
	mux.HandleFunc("/api/auth/google", api.userHandler.PostGoogleLogin)
	mux.HandleFunc("/api/auth/logout", requires(api.userHandler.PostLogout))
	mux.HandleFunc("/api/auth/signup", adminOnly(api.userHandler.PostSignup))
	mux.HandleFunc("/api/auth/users", adminOnly(api.userHandler.GetUsers))
	mux.HandleFunc("/api/auth/user/{admissionNumber}", requires(api.userHandler.GetUser))
	mux.HandleFunc("/api/auth/update/{id}", adminOnly(api.userHandler.PutUser))
	mux.HandleFunc("/api/auth/delete/{id}", adminOnly(api.userHandler.DeleteUser))

	// Sessions
	mux.HandleFunc("/api/sessions", adminOnly(api.sessionHandler.GetSessions))
	mux.HandleFunc("/api/sessions/all", adminOnly(api.sessionHandler.GetAllSessions))
	mux.HandleFunc("/api/sessions/user/{userId}", requires(api.sessionHandler.GetUserSessions))
	mux.HandleFunc("/api/sessions/active/{userId}", requires(api.sessionHandler.GetActiveSession))
	mux.HandleFunc("/api/sessions/start", requires(api.sessionHandler.PostStart))
	mux.HandleFunc("/api/sessions/activity", requires(api.sessionHandler.PutActivity))
	mux.HandleFunc("/api/sessions/end", requires(api.sessionHandler.PostEnd))
	mux.HandleFunc("/api/sessions/force-end", adminOnly(api.sessionHandler.PostForceEnd))
	mux.HandleFunc("/api/sessions/remove-fee", adminOnly(api.sessionHandler.PutRemoveFee))
	mux.HandleFunc("/api/sessions/cut-fee", adminOnly(api.sessionHandler.PutCutFee))
	mux.HandleFunc("/api/sessions/ping", requires(api.sessionHandler.GetPing))

	// Labs. Initialize and the status read are called by kiosks before
	// anyone is logged in.
	mux.HandleFunc("/api/lab/initialize", api.labHandler.PostInitialize)
	mux.HandleFunc("/api/lab/machine/{computerId}", requires(api.labHandler.GetMachine))
	mux.HandleFunc("GET /api/lab/status/{labName}", api.labHandler.GetStatus)
	mux.HandleFunc("PUT /api/lab/status/{labName}", adminOnly(api.labHandler.PutStatus))
	mux.HandleFunc("/api/lab/all", adminOnly(api.labHandler.GetAll))

	// Credits
	mux.HandleFunc("/api/credits", adminOnly(api.creditHandler.PostCredit))
	mux.HandleFunc("/api/credits/all", adminOnly(api.creditHandler.GetAllCredits))
	mux.HandleFunc("/api/credits/stats", adminOnly(api.creditHandler.GetStatistics))
	mux.HandleFunc("/api/credits/user/{userId}", requires(api.creditHandler.GetUserCredits))
	mux.HandleFunc("PUT /api/credits/{id}", adminOnly(api.creditHandler.PutCredit))
	mux.HandleFunc("DELETE /api/credits/{id}", adminOnly(api.creditHandler.DeleteCredit))

	// Prints
	mux.HandleFunc("/api/prints", adminOnly(api.printHandler.PostPrint))
	mux.HandleFunc("/api/prints/all", adminOnly(api.printHandler.GetAllPrints))
	mux.HandleFunc("/api/prints/stats", adminOnly(api.printHandler.GetStatistics))
	mux.HandleFunc("/api/prints/user/{userId}", requires(api.printHandler.GetUserPrints))
	mux.HandleFunc("PUT /api/prints/{id}", adminOnly(api.printHandler.PutPrint))
	mux.HandleFunc("DELETE /api/prints/{id}", adminOnly(api.printHandler.DeletePrint))

	// Purposes
	mux.HandleFunc("GET /api/purposes", requires(api.purposeHandler.GetPurposes))
	mux.HandleFunc("POST /api/purposes", adminOnly(api.purposeHandler.PostPurpose))
	mux.HandleFunc("PUT /api/purposes/{id}", adminOnly(api.purposeHandler.PutPurpose))
	mux.HandleFunc("DELETE /api/purposes/{id}", adminOnly(api.purposeHandler.DeletePurpose))

	// fallback route - must be last because it matches all routes.
	mux.HandleFunc("/", fallBack)
}

// ApplyMiddleware applies middleware to a handler
func ApplyMiddleware(handler http.Handler) http.Handler {
	return middleware.LoggingMiddleware(
		middleware.CORSMiddleware(handler),
	)
}

func fallBack(w http.ResponseWriter, r *http.Request) {
	gecho.NotFound(w).Send()
}
