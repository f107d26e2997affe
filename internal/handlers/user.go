package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/MonkyMars/gecho"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/CLDWare/labtrack-backend/config"
	"github.com/CLDWare/labtrack-backend/internal/auth"
	"github.com/CLDWare/labtrack-backend/internal/faults"
	"github.com/CLDWare/labtrack-backend/internal/labs"
	"github.com/CLDWare/labtrack-backend/internal/ledger"
	"github.com/CLDWare/labtrack-backend/internal/lifecycle"
	models "github.com/CLDWare/labtrack-backend/pkg/db"
	"github.com/CLDWare/labtrack-backend/pkg/logger"
)

// UserHandler handles accounts and the login/logout surface
type UserHandler struct {
	config   *config.Config
	db       *gorm.DB
	tokens   *auth.Tokens
	google   *auth.GoogleVerifier
	manager  *lifecycle.Manager
	ledger   *ledger.Ledger
	registry *labs.Registry
}

// NewUserHandler creates a new UserHandler
func NewUserHandler(cfg *config.Config, db *gorm.DB, tokens *auth.Tokens, google *auth.GoogleVerifier, manager *lifecycle.Manager, ldg *ledger.Ledger, registry *labs.Registry) *UserHandler {
	return &UserHandler{
		config:   cfg,
		db:       db,
		tokens:   tokens,
		google:   google,
		manager:  manager,
		ledger:   ldg,
		registry: registry,
	}
}

// UserInfo is the account shape returned to callers; the password hash
// never leaves the handler
type UserInfo struct {
	ID              uint    `json:"id"`
	AdmissionNumber string  `json:"admissionNumber"`
	Name            string  `json:"name"`
	Class           string  `json:"class"`
	Role            string  `json:"role"`
	ImageURL        string  `json:"imageUrl"`
	TotalUsage      int64   `json:"totalUsage"`
	TotalUsageFee   float64 `json:"totalUsageFee"`
	TotalPrint      int     `json:"totalPrint"`
	TotalPrintFee   float64 `json:"totalPrintFee"`
	CreditBalance   float64 `json:"creditBalance"`
	NetBalance      float64 `json:"netBalance"`
	LastLoginLab    string  `json:"lastLoginLab,omitempty"`
}

func toUserInfo(user models.User) UserInfo {
	return UserInfo{
		ID:              user.ID,
		AdmissionNumber: user.AdmissionNumber,
		Name:            user.Name,
		Class:           user.Class,
		Role:            user.Role,
		ImageURL:        user.ImageURL,
		TotalUsage:      user.TotalUsage,
		TotalUsageFee:   user.TotalUsageFee,
		TotalPrint:      user.TotalPrint,
		TotalPrintFee:   user.TotalPrintFee,
		CreditBalance:   user.CreditBalance,
		NetBalance:      user.NetBalance,
		LastLoginLab:    user.LastLoginLab,
	}
}

type LoginBody struct {
	AdmissionNumber *string `json:"admissionNumber"`
	Password        *string `json:"password"`
	LabID           *string `json:"labId"`
}

// PostLogin
//
// @Summary		Log in with admission number and password
// @Description	Issues a bearer token. Rejects callers that already hold an active session, and non-admins targeting a busy lab.
// @Tags			auth
// @Accept			json
// @Produce		json
// @Success		200	{object}	apiResponses.BaseResponse
// @Failure		404	{object}	apiResponses.NotFoundError
// @Failure		409	{object}	apiResponses.ConflictError
// @Router			/api/auth/login [post]
func (h *UserHandler) PostLogin(w http.ResponseWriter, r *http.Request) {
	if err := gecho.Handlers.HandleMethod(w, r, http.MethodPost); err != nil {
		err.Send() // Automatically sends 405 Method Not Allowed
		return
	}

	var body LoginBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		gecho.BadRequest(w).WithMessage(err.Error()).Send()
		return
	}
	if body.AdmissionNumber == nil || body.Password == nil {
		gecho.BadRequest(w).WithMessage("Missing field 'admissionNumber' or 'password'").Send()
		return
	}

	ctx := r.Context()
	user, err := gorm.G[models.User](h.db).Where("admission_number = ?", *body.AdmissionNumber).First(ctx)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		gecho.NotFound(w).WithMessage("User not found").Send()
		return
	}
	if err != nil {
		logger.Err(err.Error())
		gecho.InternalServerError(w).Send()
		return
	}

	// Session preconditions are checked before any password work so the
	// kiosk can tell "already logged in elsewhere" apart from bad
	// credentials.
	if _, err := h.manager.ActiveSession(ctx, user.ID); err == nil {
		gecho.NewErr(w).WithStatus(http.StatusConflict).WithMessage("User has an active session already").Send()
		return
	} else if !errors.Is(err, faults.ErrNotFound) {
		sendFault(w, err)
		return
	}

	if body.LabID != nil && user.Role != models.RoleAdmin {
		lab, err := h.registry.Status(ctx, *body.LabID)
		if err != nil {
			sendFault(w, err)
			return
		}
		if lab.Status {
			gecho.NewErr(w).WithStatus(http.StatusConflict).WithMessage("Lab is already active").Send()
			return
		}
	}

	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(*body.Password)) != nil {
		gecho.BadRequest(w).WithMessage("Invalid credentials").Send()
		return
	}

	token, err := h.tokens.Issue(auth.Principal{
		UserID:          user.ID,
		AdmissionNumber: user.AdmissionNumber,
		Role:            user.Role,
	})
	if err != nil {
		logger.Err(err.Error())
		gecho.InternalServerError(w).Send()
		return
	}

	gecho.Success(w).WithData(map[string]any{
		"token": token,
		"user":  toUserInfo(user),
	}).Send()
}

type GoogleLoginBody struct {
	IdToken *string `json:"idToken"`
}

// handles POST /api/auth/google requests
// Dashboard admins can sign in with a Google ID token; the account is
// matched by verified email and must already exist with the admin role
func (h *UserHandler) PostGoogleLogin(w http.ResponseWriter, r *http.Request) {
	if err := gecho.Handlers.HandleMethod(w, r, http.MethodPost); err != nil {
		err.Send() // Automatically sends 405 Method Not Allowed
		return
	}

	var body GoogleLoginBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		gecho.BadRequest(w).WithMessage(err.Error()).Send()
		return
	}
	if body.IdToken == nil {
		gecho.BadRequest(w).WithMessage("Missing field 'idToken'").Send()
		return
	}

	ctx := r.Context()
	email, err := h.google.VerifiedEmail(ctx, *body.IdToken)
	if err != nil {
		gecho.Unauthorized(w).WithMessage(err.Error()).Send()
		return
	}

	user, err := gorm.G[models.User](h.db).Where("email = ? AND role = ?", email, models.RoleAdmin).First(ctx)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		gecho.Forbidden(w).WithMessage("No admin account for this Google account").Send()
		return
	}
	if err != nil {
		logger.Err(err.Error())
		gecho.InternalServerError(w).Send()
		return
	}

	token, err := h.tokens.Issue(auth.Principal{
		UserID:          user.ID,
		AdmissionNumber: user.AdmissionNumber,
		Role:            user.Role,
	})
	if err != nil {
		logger.Err(err.Error())
		gecho.InternalServerError(w).Send()
		return
	}

	gecho.Success(w).WithData(map[string]any{
		"token": token,
		"user":  toUserInfo(user),
	}).Send()
}

// handles POST /api/auth/logout requests
// Ends the caller's active session and settles its fee
func (h *UserHandler) PostLogout(w http.ResponseWriter, r *http.Request) {
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

	gecho.Success(w).WithData(map[string]any{
		"message": "Logout successful",
		"session": session,
	}).Send()
}

type SignupBody struct {
	AdmissionNumber *string `json:"admissionNumber"`
	Name            *string `json:"name"`
	Class           *string `json:"class"`
	Password        *string `json:"password"`
	Role            *string `json:"role"`
	Email           *string `json:"email"`
	ImageURL        *string `json:"imageUrl"`
}

// handles POST /api/auth/signup requests
// Admins can create accounts
func (h *UserHandler) PostSignup(w http.ResponseWriter, r *http.Request) {
	if err := gecho.Handlers.HandleMethod(w, r, http.MethodPost); err != nil {
		err.Send() // Automatically sends 405 Method Not Allowed
		return
	}

	var body SignupBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		gecho.BadRequest(w).WithMessage(err.Error()).Send()
		return
	}
	if body.AdmissionNumber == nil || body.Name == nil || body.Class == nil || body.Password == nil {
		gecho.BadRequest(w).WithMessage("Please fill all the required fields").Send()
		return
	}

	role := models.RoleUser
	if body.Role != nil {
		if *body.Role != models.RoleUser && *body.Role != models.RoleAdmin {
			gecho.BadRequest(w).WithMessage("Invalid role").Send()
			return
		}
		role = *body.Role
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(*body.Password), bcrypt.DefaultCost)
	if err != nil {
		logger.Err(err.Error())
		gecho.InternalServerError(w).Send()
		return
	}

	user := models.User{
		AdmissionNumber: *body.AdmissionNumber,
		Name:            *body.Name,
		Class:           *body.Class,
		PasswordHash:    string(hash),
		Role:            role,
	}
	if body.Email != nil {
		user.Email = *body.Email
	}
	if body.ImageURL != nil {
		user.ImageURL = *body.ImageURL
	}

	if err := h.db.WithContext(r.Context()).Create(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			gecho.NewErr(w).WithStatus(http.StatusConflict).WithMessage("Admission number already exists").Send()
			return
		}
		logger.Err(err.Error())
		gecho.InternalServerError(w).Send()
		return
	}

	gecho.Created(w).WithData(toUserInfo(user)).Send()
}

type UpdateUserBody struct {
	Name        *string `json:"name"`
	Class       *string `json:"class"`
	ImageURL    *string `json:"imageUrl"`
	Password    *string `json:"password"`
	OldPassword *string `json:"oldPassword"`
}

// handles PUT /api/auth/user/{id} requests
// Admins can update the closed set of account fields; a password change
// requires the old password
func (h *UserHandler) PutUser(w http.ResponseWriter, r *http.Request) {
	if err := gecho.Handlers.HandleMethod(w, r, http.MethodPut); err != nil {
		err.Send() // Automatically sends 405 Method Not Allowed
		return
	}

	userID, err := pathID(r, "id")
	if err != nil {
		gecho.BadRequest(w).WithMessage("Invalid user ID, expected positive integer").Send()
		return
	}

	var body UpdateUserBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		gecho.BadRequest(w).WithMessage(err.Error()).Send()
		return
	}

	ctx := r.Context()
	var user models.User
	err = h.db.WithContext(ctx).First(&user, userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		gecho.NotFound(w).WithMessage("User not found").Send()
		return
	}
	if err != nil {
		logger.Err(err.Error())
		gecho.InternalServerError(w).Send()
		return
	}

	updates := map[string]any{}
	if body.Name != nil {
		updates["name"] = *body.Name
		user.Name = *body.Name
	}
	if body.Class != nil {
		updates["class"] = *body.Class
		user.Class = *body.Class
	}
	if body.ImageURL != nil {
		updates["image_url"] = *body.ImageURL
		user.ImageURL = *body.ImageURL
	}
	if body.Password != nil {
		if body.OldPassword == nil {
			gecho.BadRequest(w).WithMessage("Missing field 'oldPassword'").Send()
			return
		}
		if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(*body.OldPassword)) != nil {
			gecho.BadRequest(w).WithMessage("Invalid old password").Send()
			return
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(*body.Password), bcrypt.DefaultCost)
		if err != nil {
			logger.Err(err.Error())
			gecho.InternalServerError(w).Send()
			return
		}
		updates["password_hash"] = string(hash)
	}
	if len(updates) == 0 {
		gecho.BadRequest(w).WithMessage("No updatable fields given").Send()
		return
	}

	if err := h.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", userID).Updates(updates).Error; err != nil {
		logger.Err(err.Error())
		gecho.InternalServerError(w).Send()
		return
	}

	gecho.Success(w).WithData(toUserInfo(user)).Send()
}

// handles DELETE /api/auth/delete/{id} requests
// Admins can delete an account; the delete cascades to the account's
// sessions, credits and prints
func (h *UserHandler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	if err := gecho.Handlers.HandleMethod(w, r, http.MethodDelete); err != nil {
		err.Send() // Automatically sends 405 Method Not Allowed
		return
	}

	userID, err := pathID(r, "id")
	if err != nil {
		gecho.BadRequest(w).WithMessage("Invalid user ID, expected positive integer").Send()
		return
	}

	if err := h.ledger.DeleteUserCascade(r.Context(), userID); err != nil {
		sendFault(w, err)
		return
	}

	gecho.Success(w).WithData(map[string]any{
		"message": "User and related records deleted successfully",
	}).Send()
}

// handles GET /api/auth/users requests
// Admins can list every non-admin account
func (h *UserHandler) GetUsers(w http.ResponseWriter, r *http.Request) {
	if err := gecho.Handlers.HandleMethod(w, r, http.MethodGet); err != nil {
		err.Send() // Automatically sends 405 Method Not Allowed
		return
	}

	users, err := gorm.G[models.User](h.db).Where("role = ?", models.RoleUser).Order("admission_number ASC").Find(r.Context())
	if err != nil {
		logger.Err(err.Error())
		gecho.InternalServerError(w).Send()
		return
	}

	infos := make([]UserInfo, 0, len(users))
	for _, user := range users {
		infos = append(infos, toUserInfo(user))
	}

	gecho.Success(w).WithData(infos).Send()
}

// handles GET /api/auth/user/{admissionNumber} requests
func (h *UserHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	if err := gecho.Handlers.HandleMethod(w, r, http.MethodGet); err != nil {
		err.Send() // Automatically sends 405 Method Not Allowed
		return
	}

	admissionNumber := r.PathValue("admissionNumber")
	if admissionNumber == "" {
		gecho.BadRequest(w).WithMessage("Missing admission number").Send()
		return
	}

	user, err := gorm.G[models.User](h.db).Where("admission_number = ?", admissionNumber).First(r.Context())
	if errors.Is(err, gorm.ErrRecordNotFound) {
		gecho.NotFound(w).WithMessage("User not found").Send()
		return
	}
	if err != nil {
		logger.Err(err.Error())
		gecho.InternalServerError(w).Send()
		return
	}

	gecho.Success(w).WithData(toUserInfo(user)).Send()
}
