package rest

import (
	"net/http"

	"github.com/KevinKickass/FleetView/internal/config"
	"github.com/KevinKickass/FleetView/internal/session"
	"github.com/KevinKickass/FleetView/internal/types"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// GET /api/settings/endpoint
func (s *Server) getEndpoint(c *gin.Context) {
	sess := session.FromContext(c)
	pref := config.EndpointProduction
	if s.cfg.AllowEndpointSwitch() {
		if p := sess.APIPreference(c.Request.Context()); p != "" {
			pref = p
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"preference": pref,
		"switchable": s.cfg.AllowEndpointSwitch(),
		"base_url":   s.baseURL(c),
	})
}

// PUT /api/settings/endpoint
func (s *Server) setEndpoint(c *gin.Context) {
	if !s.cfg.AllowEndpointSwitch() {
		c.JSON(http.StatusForbidden, types.NewErrorResponse("SETTINGS_403", "Endpoint switching is disabled in production", nil))
		return
	}

	var req struct {
		Preference string `json:"preference" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, types.NewErrorResponse("SETTINGS_400", "Invalid request body", err.Error()))
		return
	}
	if !validEndpoint(req.Preference) {
		c.JSON(http.StatusBadRequest, types.NewErrorResponse("SETTINGS_400", "Unknown endpoint", req.Preference))
		return
	}

	sess := session.FromContext(c)
	if err := sess.SetAPIPreference(c.Request.Context(), req.Preference); err != nil {
		s.logger.Error("Failed to store endpoint preference", zap.Error(err))
		c.JSON(http.StatusInternalServerError, types.NewErrorResponse("SETTINGS_500", "Failed to store preference", err.Error()))
		return
	}

	s.logger.Info("Endpoint preference changed",
		zap.String("session", sess.ID),
		zap.String("preference", req.Preference))

	c.JSON(http.StatusOK, gin.H{
		"preference": req.Preference,
		"base_url":   s.cfg.BaseURL(req.Preference),
	})
}

// PUT /api/settings/sidebar
func (s *Server) setSidebar(c *gin.Context) {
	var req struct {
		Collapsed *bool `json:"collapsed" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, types.NewErrorResponse("SETTINGS_400", "Invalid request body", err.Error()))
		return
	}

	sess := session.FromContext(c)
	if err := sess.SetSidebarCollapsed(c.Request.Context(), *req.Collapsed); err != nil {
		c.JSON(http.StatusInternalServerError, types.NewErrorResponse("SETTINGS_500", "Failed to store sidebar state", err.Error()))
		return
	}

	state := "expanded"
	if *req.Collapsed {
		state = "collapsed"
	}
	c.JSON(http.StatusOK, gin.H{"sidebar": state})
}
