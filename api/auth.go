package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// login authenticates an operator and issues access and refresh tokens
func (s *Server) login(c *gin.Context) {
	if s.operators == nil {
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{
			Code:    http.StatusServiceUnavailable,
			Message: "Operator management is disabled",
		})
		return
	}

	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badRequest(c, err)
		return
	}

	response, err := s.operators.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		s.logger.Warn("login failed", map[string]interface{}{
			"username": req.Username,
		})
		c.JSON(http.StatusUnauthorized, ErrorResponse{
			Code:    http.StatusUnauthorized,
			Message: "Invalid credentials",
		})
		return
	}

	c.JSON(http.StatusOK, response)
}

// refreshToken exchanges a refresh token for a new access token
func (s *Server) refreshToken(c *gin.Context) {
	if s.operators == nil {
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{
			Code:    http.StatusServiceUnavailable,
			Message: "Operator management is disabled",
		})
		return
	}

	var req RefreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badRequest(c, err)
		return
	}

	response, err := s.operators.Refresh(c.Request.Context(), req.RefreshToken)
	if err != nil {
		c.JSON(http.StatusUnauthorized, ErrorResponse{
			Code:    http.StatusUnauthorized,
			Message: "Invalid or expired refresh token",
		})
		return
	}

	c.JSON(http.StatusOK, response)
}

// logout invalidates all sessions for the authenticated operator
func (s *Server) logout(c *gin.Context) {
	if s.operators == nil {
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{
			Code:    http.StatusServiceUnavailable,
			Message: "Operator management is disabled",
		})
		return
	}

	operatorID := s.operatorID(c)
	if err := s.operators.Logout(c.Request.Context(), operatorID); err != nil {
		s.handleError(c, "Failed to log out", err)
		return
	}

	c.JSON(http.StatusOK, SimpleResponse{
		Code:    http.StatusOK,
		Message: "Logged out successfully",
	})
}
