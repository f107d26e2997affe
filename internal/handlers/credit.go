package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/MonkyMars/gecho"

	"github.com/CLDWare/labtrack-backend/config"
	"github.com/CLDWare/labtrack-backend/internal/ledger"
)

// CreditHandler handles balance top-up records
type CreditHandler struct {
	config *config.Config
	ledger *ledger.Ledger
}

// NewCreditHandler creates a new CreditHandler
func NewCreditHandler(cfg *config.Config, ldg *ledger.Ledger) *CreditHandler {
	return &CreditHandler{
		config: cfg,
		ledger: ldg,
	}
}

type AddCreditBody struct {
	UserID *uint    `json:"userId"`
	Amount *float64 `json:"amount"`
	Notes  *string  `json:"notes"`
}

// PostCredit
//
// @Summary		Record a credit
// @Description	Admin-only. Adds a balance top-up for a user and applies it to their credit and net balances.
// @Tags			credits
// @Accept			json
// @Produce		json
// @Success		201	{object}	apiResponses.BaseResponse
// @Failure		400	{object}	apiResponses.BadRequestError
// @Failure		404	{object}	apiResponses.NotFoundError
// @Router			/api/credits [post]
func (h *CreditHandler) PostCredit(w http.ResponseWriter, r *http.Request) {
	if err := gecho.Handlers.HandleMethod(w, r, http.MethodPost); err != nil {
		err.Send() // Automatically sends 405 Method Not Allowed
		return
	}

	var body AddCreditBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		gecho.BadRequest(w).WithMessage(err.Error()).Send()
		return
	}
	if body.UserID == nil || body.Amount == nil {
		gecho.BadRequest(w).WithMessage("Missing field 'userId' or 'amount'").Send()
		return
	}
	if *body.Amount <= 0 {
		gecho.BadRequest(w).WithMessage("Amount must be positive").Send()
		return
	}

	notes := ""
	if body.Notes != nil {
		notes = *body.Notes
	}

	credit, err := h.ledger.AddCredit(r.Context(), *body.UserID, *body.Amount, notes)
	if err != nil {
		sendFault(w, err)
		return
	}

	gecho.Created(w).WithData(credit).Send()
}

type UpdateCreditBody struct {
	Amount *float64 `json:"amount"`
	Notes  *string  `json:"notes"`
}

// handles PUT /api/credits/{id} requests
// Updating the amount re-applies the delta to the user's balances
func (h *CreditHandler) PutCredit(w http.ResponseWriter, r *http.Request) {
	if err := gecho.Handlers.HandleMethod(w, r, http.MethodPut); err != nil {
		err.Send() // Automatically sends 405 Method Not Allowed
		return
	}

	creditID, err := pathID(r, "id")
	if err != nil {
		gecho.BadRequest(w).WithMessage("Invalid credit ID, expected positive integer").Send()
		return
	}

	var body UpdateCreditBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		gecho.BadRequest(w).WithMessage(err.Error()).Send()
		return
	}
	if body.Amount == nil && body.Notes == nil {
		gecho.BadRequest(w).WithMessage("No updatable fields given").Send()
		return
	}
	if body.Amount != nil && *body.Amount <= 0 {
		gecho.BadRequest(w).WithMessage("Amount must be positive").Send()
		return
	}

	credit, err := h.ledger.UpdateCredit(r.Context(), creditID, ledger.CreditPatch{
		Amount: body.Amount,
		Notes:  body.Notes,
	})
	if err != nil {
		sendFault(w, err)
		return
	}

	gecho.Success(w).WithData(credit).Send()
}

// handles DELETE /api/credits/{id} requests
func (h *CreditHandler) DeleteCredit(w http.ResponseWriter, r *http.Request) {
	if err := gecho.Handlers.HandleMethod(w, r, http.MethodDelete); err != nil {
		err.Send() // Automatically sends 405 Method Not Allowed
		return
	}

	creditID, err := pathID(r, "id")
	if err != nil {
		gecho.BadRequest(w).WithMessage("Invalid credit ID, expected positive integer").Send()
		return
	}

	if err := h.ledger.DeleteCredit(r.Context(), creditID); err != nil {
		sendFault(w, err)
		return
	}

	gecho.Success(w).WithData(map[string]any{
		"message": "Credit deleted successfully",
	}).Send()
}

// handles GET /api/credits/user/{userId} requests
// Users can read their own credits, admins anyone's
func (h *CreditHandler) GetUserCredits(w http.ResponseWriter, r *http.Request) {
	if err := gecho.Handlers.HandleMethod(w, r, http.MethodGet); err != nil {
		err.Send() // Automatically sends 405 Method Not Allowed
		return
	}

	userID, err := pathID(r, "userId")
	if err != nil {
		gecho.BadRequest(w).WithMessage("Invalid user ID, expected positive integer").Send()
		return
	}

	principal, ok := principalFrom(r)
	if !ok {
		gecho.InternalServerError(w).Send()
		return
	}
	if principal.UserID != userID && !principal.IsAdmin() {
		gecho.Forbidden(w).WithMessage("Cannot read another user's credits").Send()
		return
	}

	pageNumber, err := queryInt(r, "page", 1)
	if err != nil {
		gecho.BadRequest(w).WithMessage("Invalid 'page' query parameter").Send()
		return
	}
	limit, err := queryInt(r, "limit", 20)
	if err != nil {
		gecho.BadRequest(w).WithMessage("Invalid 'limit' query parameter").Send()
		return
	}

	page := ledger.Page{Number: pageNumber, Limit: limit}
	credits, pages, err := h.ledger.Credits(r.Context(), userID, page)
	if err != nil {
		sendFault(w, err)
		return
	}

	gecho.Success(w).WithData(map[string]any{
		"credits":    credits,
		"page":       page.Number,
		"totalPages": pages,
	}).Send()
}

// handles GET /api/credits/all requests
func (h *CreditHandler) GetAllCredits(w http.ResponseWriter, r *http.Request) {
	if err := gecho.Handlers.HandleMethod(w, r, http.MethodGet); err != nil {
		err.Send() // Automatically sends 405 Method Not Allowed
		return
	}

	credits, err := h.ledger.AllCredits(r.Context())
	if err != nil {
		sendFault(w, err)
		return
	}

	gecho.Success(w).WithData(credits).Send()
}

// handles GET /api/credits/stats requests
// Optional startDate and endDate query params bound the range
func (h *CreditHandler) GetStatistics(w http.ResponseWriter, r *http.Request) {
	if err := gecho.Handlers.HandleMethod(w, r, http.MethodGet); err != nil {
		err.Send() // Automatically sends 405 Method Not Allowed
		return
	}

	start, err := queryDate(r, "startDate")
	if err != nil {
		gecho.BadRequest(w).WithMessage("Invalid 'startDate' query parameter").Send()
		return
	}
	end, err := queryDate(r, "endDate")
	if err != nil {
		gecho.BadRequest(w).WithMessage("Invalid 'endDate' query parameter").Send()
		return
	}

	stats, err := h.ledger.CreditStatistics(r.Context(), ledger.DateRange{Start: start, End: end})
	if err != nil {
		sendFault(w, err)
		return
	}

	gecho.Success(w).WithData(stats).Send()
}
