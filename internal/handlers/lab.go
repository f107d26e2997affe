package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/MonkyMars/gecho"

	"github.com/CLDWare/labtrack-backend/config"
	"github.com/CLDWare/labtrack-backend/internal/labs"
)

// LabHandler handles lab machine registration and status
type LabHandler struct {
	config   *config.Config
	registry *labs.Registry
}

// NewLabHandler creates a new LabHandler
func NewLabHandler(cfg *config.Config, registry *labs.Registry) *LabHandler {
	return &LabHandler{
		config:   cfg,
		registry: registry,
	}
}

type InitializeLabBody struct {
	ComputerID *string `json:"computerId"`
	LabName    *string `json:"labName"`
}

// PostInitialize
//
// @Summary		Register a lab machine
// @Description	Called by the kiosk on boot. Registration is idempotent per computer ID; re-registering updates the lab name and liveness timestamp.
// @Tags			labs
// @Accept			json
// @Produce		json
// @Success		200	{object}	apiResponses.BaseResponse
// @Failure		400	{object}	apiResponses.BadRequestError
// @Router			/api/lab/initialize [post]
func (h *LabHandler) PostInitialize(w http.ResponseWriter, r *http.Request) {
	if err := gecho.Handlers.HandleMethod(w, r, http.MethodPost); err != nil {
		err.Send() // Automatically sends 405 Method Not Allowed
		return
	}

	var body InitializeLabBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		gecho.BadRequest(w).WithMessage(err.Error()).Send()
		return
	}
	if body.ComputerID == nil || body.LabName == nil {
		gecho.BadRequest(w).WithMessage("Missing field 'computerId' or 'labName'").Send()
		return
	}

	labName, err := h.registry.Register(r.Context(), *body.ComputerID, *body.LabName)
	if err != nil {
		sendFault(w, err)
		return
	}

	gecho.Success(w).WithData(map[string]any{
		"computerId": *body.ComputerID,
		"labName":    labName,
	}).Send()
}

// handles GET /api/lab/machine/{computerId} requests
func (h *LabHandler) GetMachine(w http.ResponseWriter, r *http.Request) {
	if err := gecho.Handlers.HandleMethod(w, r, http.MethodGet); err != nil {
		err.Send() // Automatically sends 405 Method Not Allowed
		return
	}

	computerID := r.PathValue("computerId")
	if computerID == "" {
		gecho.BadRequest(w).WithMessage("Missing computer ID").Send()
		return
	}

	lab, err := h.registry.GetMachine(r.Context(), computerID)
	if err != nil {
		sendFault(w, err)
		return
	}

	gecho.Success(w).WithData(lab).Send()
}

// handles GET /api/lab/status/{labName} requests
// Returns the busy bit for a lab name. Several machines can share a
// name; busy wins over free
func (h *LabHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	if err := gecho.Handlers.HandleMethod(w, r, http.MethodGet); err != nil {
		err.Send() // Automatically sends 405 Method Not Allowed
		return
	}

	labName := r.PathValue("labName")
	if labName == "" {
		gecho.BadRequest(w).WithMessage("Missing lab name").Send()
		return
	}

	lab, err := h.registry.Status(r.Context(), labName)
	if err != nil {
		sendFault(w, err)
		return
	}

	gecho.Success(w).WithData(map[string]any{
		"name":   lab.Name,
		"status": lab.Status,
	}).Send()
}

// handles GET /api/lab/all requests
// Admins can list every registered machine
func (h *LabHandler) GetAll(w http.ResponseWriter, r *http.Request) {
	if err := gecho.Handlers.HandleMethod(w, r, http.MethodGet); err != nil {
		err.Send() // Automatically sends 405 Method Not Allowed
		return
	}

	all, err := h.registry.All(r.Context())
	if err != nil {
		sendFault(w, err)
		return
	}

	gecho.Success(w).WithData(all).Send()
}

type LabStatusBody struct {
	Status *bool `json:"status"`
}

// handles PUT /api/lab/status/{labName} requests
// Admin override for a stuck busy bit
func (h *LabHandler) PutStatus(w http.ResponseWriter, r *http.Request) {
	if err := gecho.Handlers.HandleMethod(w, r, http.MethodPut); err != nil {
		err.Send() // Automatically sends 405 Method Not Allowed
		return
	}

	labName := r.PathValue("labName")
	if labName == "" {
		gecho.BadRequest(w).WithMessage("Missing lab name").Send()
		return
	}

	var body LabStatusBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		gecho.BadRequest(w).WithMessage(err.Error()).Send()
		return
	}
	if body.Status == nil {
		gecho.BadRequest(w).WithMessage("Missing field 'status'").Send()
		return
	}

	lab, err := h.registry.SetStatus(r.Context(), labName, *body.Status)
	if err != nil {
		sendFault(w, err)
		return
	}

	gecho.Success(w).WithData(lab).Send()
}
