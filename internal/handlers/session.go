package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/MonkyMars/gecho"

	"github.com/CLDWare/labtrack-backend/config"
	"github.com/CLDWare/labtrack-backend/internal/lifecycle"
)

// SessionHandler handles requests about lab usage sessions
type SessionHandler struct {
	config  *config.Config
	manager *lifecycle.Manager
}

// NewSessionHandler creates a new SessionHandler
func NewSessionHandler(cfg *config.Config, manager *lifecycle.Manager) *SessionHandler {
	return &SessionHandler{
		config:  cfg,
		manager: manager,
	}
}

// GetSessions
//
// @Summary		List sessions
// @Description	Paginated session listing with admission-number search and date range
// @Tags			session requiresAuth requiresAdmin
// @Accept			json
// @Produce		json
// @Param			page	query		int	false	"Page number" default(1)
// @Param			limit	query		int	false	"Page size" default(20)
// @Param			search	query		string	false	"Admission number fragment"
// @Param			startDate	query	string	false	"Only sessions started at or after this date"
// @Param			endDate	query		string	false	"Only sessions started at or before this date"
// @Success		200	{object}	apiResponses.BaseResponse
// @Failure		401	{object}	apiResponses.UnauthorizedError
// @Failure		403	{object}	apiResponses.ForbiddenError
// @Router			/api/sessions [get]
func (h *SessionHandler) GetSessions(w http.ResponseWriter, r *http.Request) {
	if err := gecho.Handlers.HandleMethod(w, r, http.MethodGet); err != nil {
		err.Send() // Automatically sends 405 Method Not Allowed
		return
	}

	page, err := queryInt(r, "page", 1)
	if err != nil {
		gecho.BadRequest(w).WithMessage(err.Error()).Send()
		return
	}
	limit, err := queryInt(r, "limit", 20)
	if err != nil {
		gecho.BadRequest(w).WithMessage(err.Error()).Send()
		return
	}
	startDate, err := queryDate(r, "startDate")
	if err != nil {
		gecho.BadRequest(w).WithMessage(err.Error()).Send()
		return
	}
	endDate, err := queryDate(r, "endDate")
	if err != nil {
		gecho.BadRequest(w).WithMessage(err.Error()).Send()
		return
	}

	sessions, totalPages, err := h.manager.List(r.Context(), lifecycle.ListFilter{
		Search:    r.URL.Query().Get("search"),
		StartDate: startDate,
		EndDate:   endDate,
		Page:      page,
		Limit:     limit,
	})
	if err != nil {
		sendFault(w, err)
		return
	}

	gecho.Success(w).WithData(map[string]any{
		"sessions":    sessions,
		"totalPages":  totalPages,
		"currentPage": page,
	}).Send()
}

// handles GET /api/sessions/all requests
// Admins can query every session, unpaginated
func (h *SessionHandler) GetAllSessions(w http.ResponseWriter, r *http.Request) {
	if err := gecho.Handlers.HandleMethod(w, r, http.MethodGet); err != nil {
		err.Send() // Automatically sends 405 Method Not Allowed
		return
	}

	sessions, err := h.manager.All(r.Context())
	if err != nil {
		sendFault(w, err)
		return
	}

	gecho.Success(w).WithData(sessions).Send()
}

// handles GET /api/sessions/user/{userId} requests
// Users can query their own sessions, admins anyone's
func (h *SessionHandler) GetUserSessions(w http.ResponseWriter, r *http.Request) {
	if err := gecho.Handlers.HandleMethod(w, r, http.MethodGet); err != nil {
		err.Send() // Automatically sends 405 Method Not Allowed
		return
	}

	principal, ok := principalFrom(r)
	if !ok {
		gecho.InternalServerError(w).Send()
		return
	}

	userID, err := pathID(r, "userId")
	if err != nil {
		gecho.BadRequest(w).WithMessage("Invalid user ID, expected positive integer").Send()
		return
	}
	if !principal.IsAdmin() && principal.UserID != userID {
		gecho.Forbidden(w).Send()
		return
	}

	page, err := queryInt(r, "page", 1)
	if err != nil {
		gecho.BadRequest(w).WithMessage(err.Error()).Send()
		return
	}
	limit, err := queryInt(r, "limit", 10)
	if err != nil {
		gecho.BadRequest(w).WithMessage(err.Error()).Send()
		return
	}

	sessions, totalPages, err := h.manager.List(r.Context(), lifecycle.ListFilter{
		UserID: userID,
		Page:   page,
		Limit:  limit,
	})
	if err != nil {
		sendFault(w, err)
		return
	}

	gecho.Success(w).WithData(map[string]any{
		"sessions":    sessions,
		"totalPages":  totalPages,
		"currentPage": page,
	}).Send()
}

// handles GET /api/sessions/active/{userId} requests
// Users can query their own active session, admins anyone's
func (h *SessionHandler) GetActiveSession(w http.ResponseWriter, r *http.Request) {
	if err := gecho.Handlers.HandleMethod(w, r, http.MethodGet); err != nil {
		err.Send() // Automatically sends 405 Method Not Allowed
		return
	}

	principal, ok := principalFrom(r)
	if !ok {
		gecho.InternalServerError(w).Send()
		return
	}

	userID, err := pathID(r, "userId")
	if err != nil {
		gecho.BadRequest(w).WithMessage("Invalid user ID, expected positive integer").Send()
		return
	}
	if !principal.IsAdmin() && principal.UserID != userID {
		gecho.Forbidden(w).Send()
		return
	}

	session, err := h.manager.ActiveSession(r.Context(), userID)
	if err != nil {
		sendFault(w, err)
		return
	}

	gecho.Success(w).WithData(session).Send()
}

type StartSessionBody struct {
	LabID   *string `json:"labId"`
	Purpose *string `json:"purpose"`
	Online  *bool   `json:"online"`
}

// PostStart
//
// @Summary		Start a session
// @Description	Opens a usage session for the caller in the given lab
// @Tags			session requiresAuth
// @Accept			json
// @Produce		json
// @Success		201	{object}	apiResponses.BaseResponse
// @Failure		404	{object}	apiResponses.NotFoundError
// @Failure		409	{object}	apiResponses.ConflictError
// @Router			/api/sessions/start [post]
func (h *SessionHandler) PostStart(w http.ResponseWriter, r *http.Request) {
	if err := gecho.Handlers.HandleMethod(w, r, http.MethodPost); err != nil {
		err.Send() // Automatically sends 405 Method Not Allowed
		return
	}

	principal, ok := principalFrom(r)
	if !ok {
		gecho.InternalServerError(w).Send()
		return
	}

	var body StartSessionBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		gecho.BadRequest(w).WithMessage(err.Error()).Send()
		return
	}
	if body.LabID == nil {
		gecho.BadRequest(w).WithMessage("Missing field 'labId'").Send()
		return
	}
	if body.Purpose == nil {
		gecho.BadRequest(w).WithMessage("Missing field 'purpose'").Send()
		return
	}
	online := true
	if body.Online != nil {
		online = *body.Online
	}

	session, err := h.manager.Start(r.Context(), lifecycle.StartInput{
		UserID:  principal.UserID,
		LabID:   *body.LabID,
		Purpose: *body.Purpose,
		Online:  online,
		Admin:   principal.IsAdmin(),
	})
	if err != nil {
		sendFault(w, err)
		return
	}

	gecho.Created(w).WithData(session).Send()
}

// handles PUT /api/sessions/activity requests
// The kiosk polls this while a session is active; the fee stays
// provisional until the session ends
func (h *SessionHandler) PutActivity(w http.ResponseWriter, r *http.Request) {
	if err := gecho.Handlers.HandleMethod(w, r, http.MethodPut); err != nil {
		err.Send() // Automatically sends 405 Method Not Allowed
		return
	}

	principal, ok := principalFrom(r)
	if !ok {
		gecho.InternalServerError(w).Send()
		return
	}

	session, err := h.manager.Heartbeat(r.Context(), principal.UserID)
	if err != nil {
		sendFault(w, err)
		return
	}

	gecho.Success(w).WithData(session).Send()
}

// handles POST /api/sessions/end requests
// Ends the caller's active session and settles its fee
func (h *SessionHandler) PostEnd(w http.ResponseWriter, r *http.Request) {
	if err := gecho.Handlers.HandleMethod(w, r, http.MethodPost); err != nil {
		err.Send() // Automatically sends 405 Method Not Allowed
		return
	}

	principal, ok := principalFrom(r)
	if !ok {
		gecho.InternalServerError(w).Send()
		return
	}

	session, err := h.manager.End(r.Context(), principal.UserID)
	if err != nil {
		sendFault(w, err)
		return
	}

	gecho.Success(w).WithData(session).Send()
}

type ForceEndBody struct {
	SessionID *uint `json:"sessionId"`
}

// handles POST /api/sessions/force-end requests
// Admins can end any session by id
func (h *SessionHandler) PostForceEnd(w http.ResponseWriter, r *http.Request) {
	if err := gecho.Handlers.HandleMethod(w, r, http.MethodPost); err != nil {
		err.Send() // Automatically sends 405 Method Not Allowed
		return
	}

	var body ForceEndBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		gecho.BadRequest(w).WithMessage(err.Error()).Send()
		return
	}
	if body.SessionID == nil {
		gecho.BadRequest(w).WithMessage("Missing field 'sessionId'").Send()
		return
	}

	session, err := h.manager.ForceEnd(r.Context(), *body.SessionID)
	if err != nil {
		sendFault(w, err)
		return
	}

	gecho.Success(w).WithData(session).Send()
}

type AdjustFeesBody struct {
	SessionIDs []uint `json:"sessionIds"`
}

// handles PUT /api/sessions/remove-fee requests
// Admins can zero the fee of a batch of sessions; each session is
// processed independently and failures are reported per item
func (h *SessionHandler) PutRemoveFee(w http.ResponseWriter, r *http.Request) {
	h.adjustFees(w, r, lifecycle.AdjustRemove)
}

// handles PUT /api/sessions/cut-fee requests
func (h *SessionHandler) PutCutFee(w http.ResponseWriter, r *http.Request) {
	h.adjustFees(w, r, lifecycle.AdjustHalve)
}

func (h *SessionHandler) adjustFees(w http.ResponseWriter, r *http.Request, mode lifecycle.AdjustMode) {
	if err := gecho.Handlers.HandleMethod(w, r, http.MethodPut); err != nil {
		err.Send() // Automatically sends 405 Method Not Allowed
		return
	}

	var body AdjustFeesBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		gecho.BadRequest(w).WithMessage(err.Error()).Send()
		return
	}

	results, err := h.manager.AdjustFees(r.Context(), body.SessionIDs, mode)
	if err != nil {
		sendFault(w, err)
		return
	}

	gecho.Success(w).WithData(map[string]any{"results": results}).Send()
}

// handles GET /api/sessions/ping requests
func (h *SessionHandler) GetPing(w http.ResponseWriter, r *http.Request) {
	if err := gecho.Handlers.HandleMethod(w, r, http.MethodGet); err != nil {
		err.Send() // Automatically sends 405 Method Not Allowed
		return
	}

	gecho.Success(w).WithData(map[string]any{"status": "ok"}).Send()
}
