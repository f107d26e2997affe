package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/MonkyMars/gecho"

	"github.com/CLDWare/labtrack-backend/config"
	"github.com/CLDWare/labtrack-backend/internal/ledger"
)

// PrintHandler handles print job records
type PrintHandler struct {
	config *config.Config
	ledger *ledger.Ledger
}

// NewPrintHandler creates a new PrintHandler
func NewPrintHandler(cfg *config.Config, ldg *ledger.Ledger) *PrintHandler {
	return &PrintHandler{
		config: cfg,
		ledger: ldg,
	}
}

type AddPrintBody struct {
	UserID     *uint `json:"userId"`
	Pages      *int  `json:"pages"`
	PageByUser *bool `json:"pageByUser"`
}

// PostPrint
//
// @Summary		Record a print job
// @Description	Admin-only. The charge is pages times the per-page rate; user-supplied paper halves the rate.
// @Tags			prints
// @Accept			json
// @Produce		json
// @Success		201	{object}	apiResponses.BaseResponse
// @Failure		400	{object}	apiResponses.BadRequestError
// @Failure		404	{object}	apiResponses.NotFoundError
// @Router			/api/prints [post]
func (h *PrintHandler) PostPrint(w http.ResponseWriter, r *http.Request) {
	if err := gecho.Handlers.HandleMethod(w, r, http.MethodPost); err != nil {
		err.Send() // Automatically sends 405 Method Not Allowed
		return
	}

	var body AddPrintBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		gecho.BadRequest(w).WithMessage(err.Error()).Send()
		return
	}
	if body.UserID == nil || body.Pages == nil {
		gecho.BadRequest(w).WithMessage("Missing field 'userId' or 'pages'").Send()
		return
	}
	if *body.Pages <= 0 {
		gecho.BadRequest(w).WithMessage("Pages must be positive").Send()
		return
	}

	pageByUser := false
	if body.PageByUser != nil {
		pageByUser = *body.PageByUser
	}

	print, err := h.ledger.AddPrint(r.Context(), *body.UserID, *body.Pages, pageByUser)
	if err != nil {
		sendFault(w, err)
		return
	}

	gecho.Created(w).WithData(print).Send()
}

type UpdatePrintBody struct {
	Pages      *int  `json:"pages"`
	PageByUser *bool `json:"pageByUser"`
}

// handles PUT /api/prints/{id} requests
// The charge is recomputed and the user's totals reconciled
func (h *PrintHandler) PutPrint(w http.ResponseWriter, r *http.Request) {
	if err := gecho.Handlers.HandleMethod(w, r, http.MethodPut); err != nil {
		err.Send() // Automatically sends 405 Method Not Allowed
		return
	}

	printID, err := pathID(r, "id")
	if err != nil {
		gecho.BadRequest(w).WithMessage("Invalid print ID, expected positive integer").Send()
		return
	}

	var body UpdatePrintBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		gecho.BadRequest(w).WithMessage(err.Error()).Send()
		return
	}
	if body.Pages == nil && body.PageByUser == nil {
		gecho.BadRequest(w).WithMessage("No updatable fields given").Send()
		return
	}
	if body.Pages != nil && *body.Pages <= 0 {
		gecho.BadRequest(w).WithMessage("Pages must be positive").Send()
		return
	}

	print, err := h.ledger.UpdatePrint(r.Context(), printID, ledger.PrintPatch{
		Pages:      body.Pages,
		PageByUser: body.PageByUser,
	})
	if err != nil {
		sendFault(w, err)
		return
	}

	gecho.Success(w).WithData(print).Send()
}

// handles DELETE /api/prints/{id} requests
func (h *PrintHandler) DeletePrint(w http.ResponseWriter, r *http.Request) {
	if err := gecho.Handlers.HandleMethod(w, r, http.MethodDelete); err != nil {
		err.Send() // Automatically sends 405 Method Not Allowed
		return
	}

	printID, err := pathID(r, "id")
	if err != nil {
		gecho.BadRequest(w).WithMessage("Invalid print ID, expected positive integer").Send()
		return
	}

	if err := h.ledger.DeletePrint(r.Context(), printID); err != nil {
		sendFault(w, err)
		return
	}

	gecho.Success(w).WithData(map[string]any{
		"message": "Print deleted successfully",
	}).Send()
}

// handles GET /api/prints/user/{userId} requests
// Users can read their own prints, admins anyone's
func (h *PrintHandler) GetUserPrints(w http.ResponseWriter, r *http.Request) {
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
		gecho.Forbidden(w).WithMessage("Cannot read another user's prints").Send()
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

	prints, pages, err := h.ledger.Prints(r.Context(), userID, ledger.Page{Number: pageNumber, Limit: limit})
	if err != nil {
		sendFault(w, err)
		return
	}

	gecho.Success(w).WithData(map[string]any{
		"prints":     prints,
		"page":       pageNumber,
		"totalPages": pages,
	}).Send()
}

// handles GET /api/prints/all requests
func (h *PrintHandler) GetAllPrints(w http.ResponseWriter, r *http.Request) {
	if err := gecho.Handlers.HandleMethod(w, r, http.MethodGet); err != nil {
		err.Send() // Automatically sends 405 Method Not Allowed
		return
	}

	prints, err := h.ledger.AllPrints(r.Context())
	if err != nil {
		sendFault(w, err)
		return
	}

	gecho.Success(w).WithData(prints).Send()
}

// handles GET /api/prints/stats requests
// Optional startDate and endDate query params bound the range
func (h *PrintHandler) GetStatistics(w http.ResponseWriter, r *http.Request) {
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

	stats, err := h.ledger.PrintStatistics(r.Context(), ledger.DateRange{Start: start, End: end})
	if err != nil {
		sendFault(w, err)
		return
	}

	gecho.Success(w).WithData(stats).Send()
}
