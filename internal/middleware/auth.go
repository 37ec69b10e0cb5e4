package middleware

import (
	"context"
	"strings"

	"ehealthwave-server/internal/apperr"
	"ehealthwave-server/internal/config"
	"ehealthwave-server/internal/models"
	"ehealthwave-server/internal/utils"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// SessionValidator resolves the account behind a verified token.
type SessionValidator interface {
	ValidateSession(ctx context.Context, sessionID, userID string) (*models.Identity, error)
}

// AuthMiddleware authenticates the request with the session cookie, falling
// back to a bearer token when the cookie is absent or does not resolve to an
// open session.
func AuthMiddleware(cfg *config.Config, sessions SessionValidator, log *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		candidates := tokensFromRequest(c, cfg.SessionCookieName)
		if len(candidates) == 0 {
			utils.Unauthorized(c, "You must be logged in to access this page")
			c.Abort()
			return
		}

		var (
			identity  *models.Identity
			sessionID string
			firstErr  error
		)
		for _, tokenString := range candidates {
			id, sid, err := authenticate(c.Request.Context(), tokenString, cfg.JWTSecret, sessions)
			if err == nil {
				identity, sessionID = id, sid
				break
			}
			if firstErr == nil {
				firstErr = err
			}
		}
		if identity == nil {
			utils.RespondError(c, log, firstErr)
			c.Abort()
			return
		}

		// Set user information in context for downstream handlers
		c.Set("userID", identity.ID)
		c.Set("userRole", identity.Role)
		c.Set("sessionID", sessionID)
		c.Set("identity", identity)

		c.Next()
	}
}

func authenticate(ctx context.Context, tokenString, secret string, sessions SessionValidator) (*models.Identity, string, error) {
	claims, err := utils.ValidateToken(tokenString, secret)
	if err != nil {
		return nil, "", apperr.Unauthorized("Invalid token")
	}
	identity, err := sessions.ValidateSession(ctx, claims.ID, claims.UserID)
	if err != nil {
		return nil, "", err
	}
	return identity, claims.ID, nil
}

// tokensFromRequest returns the cookie token followed by the bearer token,
// skipping whichever is absent.
func tokensFromRequest(c *gin.Context, cookieName string) []string {
	var tokens []string
	if cookie, err := c.Cookie(cookieName); err == nil && cookie != "" {
		tokens = append(tokens, cookie)
	}

	authHeader := c.GetHeader("Authorization")
	parts := strings.Split(authHeader, " ")
	if len(parts) == 2 && strings.ToLower(parts[0]) == "bearer" && parts[1] != "" {
		tokens = append(tokens, parts[1])
	}
	return tokens
}

// RoleAuthMiddleware creates a middleware for role-based authorization.
// It should be used *after* AuthMiddleware.
func RoleAuthMiddleware(allowedRoles ...models.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		userRole, exists := c.Get("userRole")
		if !exists {
			utils.InternalServerError(c, "User role not found in context. AuthMiddleware might be missing.")
			c.Abort()
			return
		}

		role, ok := userRole.(models.Role)
		if !ok {
			utils.InternalServerError(c, "User role in context is not of expected type.")
			c.Abort()
			return
		}

		isAllowed := false
		for _, allowedRole := range allowedRoles {
			if role == allowedRole {
				isAllowed = true
				break
			}
		}

		if !isAllowed {
			utils.Forbidden(c, "You do not have permission to access this resource.")
			c.Abort()
			return
		}

		c.Next()
	}
}

// GetUserIDFromContext returns the authenticated account id.
func GetUserIDFromContext(c *gin.Context) (string, bool) {
	userID, exists := c.Get("userID")
	if !exists {
		return "", false
	}
	idStr, ok := userID.(string)
	return idStr, ok
}

// GetUserRoleFromContext returns the authenticated account role.
func GetUserRoleFromContext(c *gin.Context) (models.Role, bool) {
	userRole, exists := c.Get("userRole")
	if !exists {
		return "", false
	}
	role, ok := userRole.(models.Role)
	return role, ok
}

// GetSessionIDFromContext returns the id of the session the request used.
func GetSessionIDFromContext(c *gin.Context) (string, bool) {
	v, exists := c.Get("sessionID")
	if !exists {
		return "", false
	}
	id, ok := v.(string)
	return id, ok
}

// GetIdentityFromContext returns the account loaded by AuthMiddleware.
func GetIdentityFromContext(c *gin.Context) (*models.Identity, bool) {
	v, exists := c.Get("identity")
	if !exists {
		return nil, false
	}
	identity, ok := v.(*models.Identity)
	return identity, ok
}
