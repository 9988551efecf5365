package middleware

import (
	"humana-api/internal/auth"
	"humana-api/utils"

	"github.com/gin-gonic/gin"
)

const principalKey = "principal"

// AuthMiddleware guards routes with the configured credential verifier.
type AuthMiddleware struct {
	verifier auth.Verifier
}

func NewAuthMiddleware(verifier auth.Verifier) *AuthMiddleware {
	return &AuthMiddleware{verifier: verifier}
}

// RequireAuth rejects requests without a valid bearer token before any
// handler runs.
func (a *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		principal, appErr := auth.Authenticate(c.Request.Context(), a.verifier, c.GetHeader("Authorization"))
		if appErr != nil {
			a.reject(c, appErr)
			return
		}
		setPrincipal(c, principal)
		c.Next()
	}
}

// RequireAdmin is RequireAuth plus the admin role check.
func (a *AuthMiddleware) RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		principal, appErr := auth.AuthenticateAdmin(c.Request.Context(), a.verifier, c.GetHeader("Authorization"))
		if appErr != nil {
			a.reject(c, appErr)
			return
		}
		setPrincipal(c, principal)
		c.Next()
	}
}

func (a *AuthMiddleware) reject(c *gin.Context, appErr *utils.AppError) {
	if appErr.Err != nil {
		_ = c.Error(appErr.Err)
	}
	utils.RespondWithAppError(c, appErr)
}

func setPrincipal(c *gin.Context, p *auth.Principal) {
	c.Set(principalKey, p)
	c.Set("user_id", p.ID)
	c.Set("role", p.Role)
}

// GetPrincipal returns the authenticated caller, or nil on public routes.
func GetPrincipal(c *gin.Context) *auth.Principal {
	if v, ok := c.Get(principalKey); ok {
		if p, ok := v.(*auth.Principal); ok {
			return p
		}
	}
	return nil
}

func GetUserID(c *gin.Context) string {
	return c.GetString("user_id")
}

func GetRole(c *gin.Context) string {
	return c.GetString("role")
}
