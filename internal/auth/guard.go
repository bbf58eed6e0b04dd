package auth

import (
	"net/http"
	"time"

	"github.com/KevinKickass/FleetView/internal/session"
	"github.com/KevinKickass/FleetView/internal/types"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

const (
	LoginPath     = "/login"
	DashboardPath = "/dashboard"

	tokenKey = "auth_token"
)

// Guard protects routes that need a stored bearer token.
type Guard struct {
	logger *zap.Logger
	now    func() time.Time
}

func NewGuard(logger *zap.Logger) *Guard {
	return &Guard{logger: logger, now: time.Now}
}

// RequirePage redirects visitors without a token to the login page.
func (g *Guard) RequirePage() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !g.check(c) {
			c.Redirect(http.StatusSeeOther, LoginPath)
			c.Abort()
			return
		}
		c.Next()
	}
}

// RequireAPI answers 401 for API and websocket routes.
func (g *Guard) RequireAPI() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !g.check(c) {
			c.JSON(http.StatusUnauthorized, types.NewErrorResponse(
				string(types.KindAuthExpired),
				"authentication required",
				nil,
			))
			c.Abort()
			return
		}
		c.Next()
	}
}

// RedirectAuthenticated sends visitors who already hold a token to the dashboard.
func (g *Guard) RedirectAuthenticated() gin.HandlerFunc {
	return func(c *gin.Context) {
		if g.check(c) {
			c.Redirect(http.StatusSeeOther, DashboardPath)
			c.Abort()
			return
		}
		c.Next()
	}
}

func (g *Guard) check(c *gin.Context) bool {
	sess := session.FromContext(c)
	if sess == nil {
		return false
	}

	ctx := c.Request.Context()
	token := sess.Token(ctx)
	if token == "" {
		return false
	}

	if TokenExpired(token, g.now()) {
		g.logger.Info("Stored token expired, clearing session", zap.String("session", sess.ID))
		if err := sess.ClearAuth(ctx); err != nil {
			g.logger.Warn("Failed to clear expired session", zap.Error(err))
		}
		return false
	}

	c.Set(tokenKey, token)
	return true
}

// TokenFromContext returns the token the guard accepted for this request.
func TokenFromContext(c *gin.Context) string {
	return c.GetString(tokenKey)
}

// TokenExpired reports whether token is a JWT whose exp lies before now. The
// signature is not checked; upstream remains the authority. Opaque tokens and
// tokens without exp are treated as live.
func TokenExpired(token string, now time.Time) bool {
	claims := jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return false
	}
	if claims.ExpiresAt == nil {
		return false
	}
	return !claims.ExpiresAt.After(now)
}
