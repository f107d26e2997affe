package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/MonkyMars/gecho"
	"gorm.io/gorm"

	"github.com/CLDWare/labtrack-backend/config"
	models "github.com/CLDWare/labtrack-backend/pkg/db"
	"github.com/CLDWare/labtrack-backend/pkg/logger"
)

// PurposeHandler manages the catalogue of session purposes
type PurposeHandler struct {
	config *config.Config
	db     *gorm.DB
}

// NewPurposeHandler creates a new PurposeHandler
func NewPurposeHandler(cfg *config.Config, db *gorm.DB) *PurposeHandler {
	return &PurposeHandler{
		config: cfg,
		db:     db,
	}
}

// handles GET /api/purposes requests
// Returns the purposes a kiosk may offer. Admins see inactive ones too
// via the includeInactive query param
func (h *PurposeHandler) GetPurposes(w http.ResponseWriter, r *http.Request) {
	if err := gecho.Handlers.HandleMethod(w, r, http.MethodGet); err != nil {
		err.Send() // Automatically sends 405 Method Not Allowed
		return
	}

	var purposes []models.Purpose
	query := h.db.WithContext(r.Context()).Order("name ASC")
	if r.URL.Query().Get("includeInactive") != "true" {
		query = query.Where("active = ?", true)
	}

	if err := query.Find(&purposes).Error; err != nil {
		logger.Err(err.Error())
		gecho.InternalServerError(w).Send()
		return
	}

	gecho.Success(w).WithData(purposes).Send()
}

type PurposeBody struct {
	Name   *string `json:"name"`
	Active *bool   `json:"active"`
}

// handles POST /api/purposes requests
func (h *PurposeHandler) PostPurpose(w http.ResponseWriter, r *http.Request) {
	if err := gecho.Handlers.HandleMethod(w, r, http.MethodPost); err != nil {
		err.Send() // Automatically sends 405 Method Not Allowed
		return
	}

	var body PurposeBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		gecho.BadRequest(w).WithMessage(err.Error()).Send()
		return
	}
	if body.Name == nil || *body.Name == "" {
		gecho.BadRequest(w).WithMessage("Missing field 'name'").Send()
		return
	}

	purpose := models.Purpose{Name: *body.Name, Active: true}
	if body.Active != nil {
		purpose.Active = *body.Active
	}

	if err := h.db.WithContext(r.Context()).Create(&purpose).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			gecho.NewErr(w).WithStatus(http.StatusConflict).WithMessage("Purpose already exists").Send()
			return
		}
		logger.Err(err.Error())
		gecho.InternalServerError(w).Send()
		return
	}

	gecho.Created(w).WithData(purpose).Send()
}

// handles PUT /api/purposes/{id} requests
func (h *PurposeHandler) PutPurpose(w http.ResponseWriter, r *http.Request) {
	if err := gecho.Handlers.HandleMethod(w, r, http.MethodPut); err != nil {
		err.Send() // Automatically sends 405 Method Not Allowed
		return
	}

	purposeID, err := pathID(r, "id")
	if err != nil {
		gecho.BadRequest(w).WithMessage("Invalid purpose ID, expected positive integer").Send()
		return
	}

	var body PurposeBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		gecho.BadRequest(w).WithMessage(err.Error()).Send()
		return
	}
	if body.Name == nil && body.Active == nil {
		gecho.BadRequest(w).WithMessage("No updatable fields given").Send()
		return
	}

	updates := map[string]any{}
	if body.Name != nil {
		updates["name"] = *body.Name
	}
	if body.Active != nil {
		updates["active"] = *body.Active
	}

	result := h.db.WithContext(r.Context()).Model(&models.Purpose{}).Where("id = ?", purposeID).Updates(updates)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrDuplicatedKey) {
			gecho.NewErr(w).WithStatus(http.StatusConflict).WithMessage("Purpose already exists").Send()
			return
		}
		logger.Err(result.Error.Error())
		gecho.InternalServerError(w).Send()
		return
	}
	if result.RowsAffected == 0 {
		gecho.NotFound(w).WithMessage("Purpose not found").Send()
		return
	}

	gecho.Success(w).WithData(map[string]any{
		"message": "Purpose updated successfully",
	}).Send()
}

// handles DELETE /api/purposes/{id} requests
func (h *PurposeHandler) DeletePurpose(w http.ResponseWriter, r *http.Request) {
	if err := gecho.Handlers.HandleMethod(w, r, http.MethodDelete); err != nil {
		err.Send() // Automatically sends 405 Method Not Allowed
		return
	}

	purposeID, err := pathID(r, "id")
	if err != nil {
		gecho.BadRequest(w).WithMessage("Invalid purpose ID, expected positive integer").Send()
		return
	}

	count, err := gorm.G[models.Purpose](h.db).Where("id = ?", purposeID).Delete(r.Context())
	if err != nil {
		logger.Err(err.Error())
		gecho.InternalServerError(w).Send()
		return
	}
	if count == 0 {
		gecho.NotFound(w).WithMessage("Purpose not found").Send()
		return
	}

	gecho.Success(w).WithData(map[string]any{
		"message": "Purpose deleted successfully",
	}).Send()
}
