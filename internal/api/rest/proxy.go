package rest

import (
	"bytes"
	"encoding/json"
	"net/http"
	"time"

	"github.com/KevinKickass/FleetView/internal/auth"
	"github.com/KevinKickass/FleetView/internal/session"
	"github.com/KevinKickass/FleetView/internal/types"
	"github.com/KevinKickass/FleetView/internal/upstream"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// POST /api/auth/login
func (s *Server) proxyLogin(c *gin.Context) {
	body, err := c.GetRawData()
	if err != nil || !json.Valid(body) {
		c.JSON(http.StatusBadRequest, types.NewErrorResponse("PROXY_400", "Invalid request body", "body must be JSON"))
		return
	}

	ctx := c.Request.Context()
	result, err := s.svc.Upstream.ForwardLogin(ctx, s.baseURL(c), body)
	if err != nil {
		s.forwardError(c, err, "No response from authentication service")
		return
	}

	if len(bytes.TrimSpace(result.Body)) == 0 {
		c.JSON(http.StatusOK, gin.H{"message": "Login successful but no data returned"})
		return
	}
	forward(c, result.Status, result.ContentType, result.Body)
}

// GET /api/user/details and /api/user/details/
func (s *Server) proxyUserDetails(c *gin.Context) {
	header := c.GetHeader("Authorization")
	if _, raw := upstream.NormalizeAuthorization(header); raw == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"message": "No authorization token provided"})
		return
	}

	resp, err := s.svc.Upstream.Profile(c.Request.Context(), s.baseURL(c), header)
	if err != nil {
		s.forwardError(c, err, "No response from user data service")
		return
	}
	forward(c, resp.Status, resp.ContentType, resp.Body)
}

// GET /api/health
func (s *Server) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":     "ok",
		"message":    "FleetView proxy is running",
		"timestamp":  time.Now().UTC().Format(time.RFC3339),
		"api_target": s.baseURL(c),
	})
}

// forwardError relays an upstream answer verbatim. Without an answer the
// client gets 503, and local failures get 500.
func (s *Server) forwardError(c *gin.Context, err error, noResponse string) {
	e, ok := types.AsError(err)
	switch {
	case ok && e.HasResponse():
		forward(c, e.Status, "application/json", e.Body)
	case ok && e.Kind == types.KindNetworkFailure:
		s.logger.Warn("Upstream unreachable", zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, gin.H{"message": noResponse})
	default:
		s.logger.Error("Proxy request failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Internal server error", "error": err.Error()})
	}
}

func forward(c *gin.Context, status int, contentType string, body []byte) {
	if contentType == "" {
		contentType = "application/json"
	}
	c.Data(status, contentType, body)
}

func (s *Server) baseURL(c *gin.Context) string {
	return auth.ResolveBaseURL(c.Request.Context(), s.cfg, session.FromContext(c))
}
