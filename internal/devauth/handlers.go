package devauth

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type LoginResponse struct {
	Token     string `json:"token"`
	TokenType string `json:"token_type"`
	ExpiresIn int    `json:"expires_in"` // seconds
}

// Register mounts the upstream routes on r.
func (s *Service) Register(r gin.IRouter, loginPath, detailsPath string) {
	r.POST(loginPath, s.login)
	r.GET(detailsPath, s.RequireToken(), s.userDetails)
}

func (s *Service) login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"detail": "username and password are required"})
		return
	}

	token, err := s.Login(req.Username, req.Password)
	if err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			c.JSON(http.StatusUnauthorized, gin.H{"message": "Invalid username or password"})
			return
		}
		s.logger.Error("Login error", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Internal server error"})
		return
	}

	c.JSON(http.StatusOK, LoginResponse{
		Token:     token,
		TokenType: "bearer",
		ExpiresIn: int(s.tokens.TTL().Seconds()),
	})
}

func (s *Service) userDetails(c *gin.Context) {
	claims := ClaimsFrom(c)
	if claims == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"message": "Not authenticated"})
		return
	}

	profile, err := s.Profile(claims)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"message": "User not found"})
		return
	}
	c.JSON(http.StatusOK, profile)
}
