package handlers

import (
	"net/http"
	"time"

	"ehealthwave-server/internal/config"
	"ehealthwave-server/internal/middleware"
	"ehealthwave-server/internal/models"
	"ehealthwave-server/internal/optional"
	"ehealthwave-server/internal/services"
	"ehealthwave-server/internal/utils"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// AuthHandler handles account and session requests.
type AuthHandler struct {
	base
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(svc *services.Services, cfg *config.Config, log *logrus.Logger) *AuthHandler {
	return &AuthHandler{base{Svc: svc, Cfg: cfg, Log: log}}
}

// RegisterRequest represents the request body for account registration.
type RegisterRequest struct {
	Username string `json:"username" binding:"max=25"`
	Password string `json:"password" binding:"max=72"`
	Email    string `json:"email" binding:"omitempty,email,max=120"`
	Role     string `json:"role"`
}

// Register creates an account without a profile.
func (h *AuthHandler) Register(c *gin.Context) {
	var req RegisterRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}

	identity, err := h.Svc.Identity.Register(c.Request.Context(), services.RegisterInput{
		Username: req.Username,
		Password: req.Password,
		Email:    req.Email,
		Role:     req.Role,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	utils.Created(c, "User created", identity.Sanitize())
}

// LoginRequest represents the request body for login.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginResponse represents the response body for successful login.
type LoginResponse struct {
	Token     string                   `json:"token"`
	ExpiresAt time.Time                `json:"expiresAt"`
	User      models.IdentitySanitized `json:"user"`
}

// Login opens a session and hands it out both as a cookie and as a token.
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}

	identity, session, err := h.Svc.Identity.Authenticate(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		h.fail(c, err)
		return
	}

	token, err := utils.GenerateSessionToken(identity, session, h.Cfg.JWTSecret)
	if err != nil {
		h.Log.WithError(err).Error("failed to sign session token")
		utils.InternalServerError(c, "Failed to create session")
		return
	}

	h.setSessionCookie(c, token, int(time.Until(session.ExpiresAt).Seconds()))
	utils.Success(c, "Logged in", LoginResponse{
		Token:     token,
		ExpiresAt: session.ExpiresAt,
		User:      identity.Sanitize(),
	})
}

// Logout revokes the current session.
func (h *AuthHandler) Logout(c *gin.Context) {
	sessionID, ok := middleware.GetSessionIDFromContext(c)
	if !ok {
		utils.Unauthorized(c, "You must be logged in to access this page")
		return
	}
	if err := h.Svc.Identity.Logout(c.Request.Context(), sessionID); err != nil {
		h.fail(c, err)
		return
	}
	h.setSessionCookie(c, "", -1)
	utils.Success(c, "Logged out", nil)
}

// Me returns the authenticated account.
func (h *AuthHandler) Me(c *gin.Context) {
	identity, ok := h.identity(c)
	if !ok {
		return
	}
	utils.Success(c, "User retrieved", identity.Sanitize())
}

// UpdateAccountRequest changes the password and/or email.
type UpdateAccountRequest struct {
	Password optional.String `json:"password"`
	Email    optional.String `json:"email"`
}

// UpdateAccount updates the caller's password and/or email.
func (h *AuthHandler) UpdateAccount(c *gin.Context) {
	identity, ok := h.identity(c)
	if !ok {
		return
	}

	var req UpdateAccountRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}
	if email, set := req.Email.Get(); set {
		if err := utils.Validate(struct {
			Email string `validate:"email"`
		}{email}); err != nil {
			utils.BadRequest(c, "Validation failed: "+utils.FormatValidationError(err))
			return
		}
	}

	updated, err := h.Svc.Identity.UpdateAccount(c.Request.Context(), identity.ID, services.AccountUpdate{
		Password: req.Password,
		Email:    req.Email,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	utils.Success(c, "User updated", updated.Sanitize())
}

// DeleteAccount deactivates the caller's account and ends every session.
func (h *AuthHandler) DeleteAccount(c *gin.Context) {
	identity, ok := h.identity(c)
	if !ok {
		return
	}
	if err := h.Svc.Identity.Deactivate(c.Request.Context(), identity.ID); err != nil {
		h.fail(c, err)
		return
	}
	h.setSessionCookie(c, "", -1)
	utils.Success(c, "User deleted", nil)
}

func (h *AuthHandler) setSessionCookie(c *gin.Context, value string, maxAge int) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(h.Cfg.SessionCookieName, value, maxAge, "/", "", h.Cfg.IsProduction(), true)
}
