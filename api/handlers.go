package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/dirigo-idm/dirigo/pkg/errors"
	"github.com/dirigo-idm/dirigo/pkg/interfaces"
)

// healthCheck provides a health check endpoint
func (s *Server) healthCheck(c *gin.Context) {
	checks, err := s.core.HealthCheck(c.Request.Context())
	if err != nil {
		checks = map[string]interface{}{"error": err.Error()}
	}

	status := "healthy"
	if v, ok := checks["status"].(string); ok {
		status = v
	}

	code := http.StatusOK
	if status != "healthy" {
		code = http.StatusServiceUnavailable
	}

	c.JSON(code, HealthResponse{
		Status:    status,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Version:   "1.0.0",
		Uptime:    time.Since(s.startTime).String(),
		Checks:    checks,
	})
}

// getMetrics returns basic runtime metrics
func (s *Server) getMetrics(c *gin.Context) {
	c.JSON(http.StatusOK, MetricsResponse{
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Uptime:    time.Since(s.startTime).String(),
		Metrics: map[string]interface{}{
			"mode": gin.Mode(),
		},
	})
}

// activateAccount provisions POSIX attributes for a directory user
func (s *Server) activateAccount(c *gin.Context) {
	var req AccountActivateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badRequest(c, err)
		return
	}

	account, err := s.core.ActivateAccount(c.Request.Context(), &interfaces.ActivationRequest{
		UID:           req.UID,
		UIDNumber:     req.UIDNumber,
		ForceUID:      req.ForceUID,
		GroupMode:     req.GroupMode,
		GIDNumber:     req.GIDNumber,
		ForceGID:      req.ForceGID,
		HomeDirectory: req.HomeDirectory,
		LoginShell:    req.LoginShell,
		GECOS:         req.GECOS,
		Shadow:        req.Shadow,
		TrustMode:     req.TrustMode,
		TrustHosts:    req.TrustHosts,
		OperatorID:    s.operatorID(c),
	})
	if err != nil {
		s.handleError(c, "Failed to activate account", err)
		return
	}

	c.JSON(http.StatusCreated, AccountResponse{
		Code:    http.StatusCreated,
		Message: "Account activated successfully",
		Data:    account,
	})
}

// getAccount retrieves an account's POSIX attributes
func (s *Server) getAccount(c *gin.Context) {
	uid := c.Param("uid")

	account, err := s.core.GetAccount(c.Request.Context(), uid)
	if err != nil {
		s.handleError(c, "Failed to get account", err)
		return
	}
	if account == nil {
		c.JSON(http.StatusNotFound, ErrorResponse{
			Code:    http.StatusNotFound,
			Message: fmt.Sprintf("Account '%s' has no POSIX attributes", uid),
		})
		return
	}

	c.JSON(http.StatusOK, AccountResponse{
		Code:    http.StatusOK,
		Message: "Account retrieved successfully",
		Data:    account,
	})
}

// getAccountStatus derives the operational status from the shadow fields
func (s *Server) getAccountStatus(c *gin.Context) {
	uid := c.Param("uid")

	status, err := s.core.AccountStatus(c.Request.Context(), uid)
	if err != nil {
		s.handleError(c, "Failed to derive account status", err)
		return
	}

	data := map[string]interface{}{
		"uid":    uid,
		"status": string(status),
	}
	c.JSON(http.StatusOK, StatusResponse{
		Code:    http.StatusOK,
		Message: "Status derived successfully",
		Data:    &data,
	})
}

// updateAccount applies a sparse attribute patch to an active account
func (s *Server) updateAccount(c *gin.Context) {
	uid := c.Param("uid")

	var req AccountUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badRequest(c, err)
		return
	}

	account, err := s.core.UpdateAccount(c.Request.Context(), uid, &interfaces.AccountPatch{
		UIDNumber:     req.UIDNumber,
		GIDNumber:     req.GIDNumber,
		HomeDirectory: req.HomeDirectory,
		LoginShell:    req.LoginShell,
		GECOS:         req.GECOS,
		Shadow:        req.Shadow,
		TrustMode:     req.TrustMode,
		TrustHosts:    req.TrustHosts,
		OperatorID:    s.operatorID(c),
	})
	if err != nil {
		s.handleError(c, "Failed to update account", err)
		return
	}

	c.JSON(http.StatusOK, AccountResponse{
		Code:    http.StatusOK,
		Message: "Account updated successfully",
		Data:    account,
	})
}

// deactivateAccount strips POSIX attributes from an account
func (s *Server) deactivateAccount(c *gin.Context) {
	uid := c.Param("uid")
	deleteGroup := c.DefaultQuery("delete_personal_group", "true") == "true"

	if err := s.core.DeactivateAccount(c.Request.Context(), uid, deleteGroup); err != nil {
		s.handleError(c, "Failed to deactivate account", err)
		return
	}

	c.JSON(http.StatusOK, SimpleResponse{
		Code:    http.StatusOK,
		Message: "Account deactivated successfully",
	})
}

// setUserTrust validates and stores a trust scope on a user
func (s *Server) setUserTrust(c *gin.Context) {
	uid := c.Param("uid")

	var req TrustRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badRequest(c, err)
		return
	}

	if err := s.core.SetUserTrust(c.Request.Context(), uid, req.Mode, req.Hosts); err != nil {
		s.handleError(c, "Failed to set user trust", err)
		return
	}

	c.JSON(http.StatusOK, SimpleResponse{
		Code:    http.StatusOK,
		Message: "Trust scope updated successfully",
	})
}

// createGroup creates a standalone POSIX group
func (s *Server) createGroup(c *gin.Context) {
	var req GroupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badRequest(c, err)
		return
	}

	group, err := s.core.CreateGroup(c.Request.Context(), &interfaces.GroupCreateRequest{
		CN:          req.CN,
		GIDNumber:   req.GIDNumber,
		ForceGID:    req.ForceGID,
		Description: req.Description,
		TrustMode:   req.TrustMode,
		TrustHosts:  req.TrustHosts,
		OperatorID:  s.operatorID(c),
	})
	if err != nil {
		s.handleError(c, "Failed to create group", err)
		return
	}

	c.JSON(http.StatusCreated, GroupResponse{
		Code:    http.StatusCreated,
		Message: "Group created successfully",
		Data:    group,
	})
}

// getGroup retrieves a group by name
func (s *Server) getGroup(c *gin.Context) {
	cn := c.Param("cn")

	group, err := s.core.GetGroup(c.Request.Context(), cn)
	if err != nil {
		s.handleError(c, "Failed to get group", err)
		return
	}
	if group == nil {
		c.JSON(http.StatusNotFound, ErrorResponse{
			Code:    http.StatusNotFound,
			Message: fmt.Sprintf("Group '%s' not found", cn),
		})
		return
	}

	c.JSON(http.StatusOK, GroupResponse{
		Code:    http.StatusOK,
		Message: "Group retrieved successfully",
		Data:    group,
	})
}

// deleteGroup deletes a group if it has no members
func (s *Server) deleteGroup(c *gin.Context) {
	cn := c.Param("cn")

	deleted, err := s.core.DeleteGroup(c.Request.Context(), cn)
	if err != nil {
		s.handleError(c, "Failed to delete group", err)
		return
	}
	if !deleted {
		c.JSON(http.StatusConflict, ErrorResponse{
			Code:    http.StatusConflict,
			Message: fmt.Sprintf("Group '%s' was not deleted: missing or still has members", cn),
		})
		return
	}

	c.JSON(http.StatusOK, SimpleResponse{
		Code:    http.StatusOK,
		Message: "Group deleted successfully",
	})
}

// setGroupTrust validates and stores a trust scope on a group
func (s *Server) setGroupTrust(c *gin.Context) {
	cn := c.Param("cn")

	var req TrustRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badRequest(c, err)
		return
	}

	if err := s.core.SetGroupTrust(c.Request.Context(), cn, req.Mode, req.Hosts); err != nil {
		s.handleError(c, "Failed to set group trust", err)
		return
	}

	c.JSON(http.StatusOK, SimpleResponse{
		Code:    http.StatusOK,
		Message: "Trust scope updated successfully",
	})
}

// addGroupMember adds a user to a group
func (s *Server) addGroupMember(c *gin.Context) {
	cn := c.Param("cn")
	uid := c.Param("uid")

	if err := s.core.AddGroupMember(c.Request.Context(), cn, uid); err != nil {
		s.handleError(c, "Failed to add group member", err)
		return
	}

	c.JSON(http.StatusOK, SimpleResponse{
		Code:    http.StatusOK,
		Message: "Member added successfully",
	})
}

// removeGroupMember removes a user from a group
func (s *Server) removeGroupMember(c *gin.Context) {
	cn := c.Param("cn")
	uid := c.Param("uid")

	if err := s.core.RemoveGroupMember(c.Request.Context(), cn, uid); err != nil {
		s.handleError(c, "Failed to remove group member", err)
		return
	}

	c.JSON(http.StatusOK, SimpleResponse{
		Code:    http.StatusOK,
		Message: "Member removed successfully",
	})
}

// badRequest responds with a 400 for malformed request bodies
func (s *Server) badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, ErrorResponse{
		Code:    http.StatusBadRequest,
		Message: "Invalid request format",
		Error:   err.Error(),
	})
}

// handleError maps domain errors to HTTP responses
func (s *Server) handleError(c *gin.Context, message string, err error) {
	requestID := c.GetString("request_id")

	s.logger.Error(message, err, map[string]interface{}{
		"request_id": requestID,
		"path":       c.Request.URL.Path,
		"method":     c.Request.Method,
	})

	status := http.StatusInternalServerError
	if derr := errors.GetDirigoError(err); derr != nil {
		status = statusForCode(derr.Code)
	}

	c.JSON(status, ErrorResponse{
		Code:    status,
		Message: message,
		Error:   err.Error(),
		Details: fmt.Sprintf("Request ID: %s", requestID),
	})
}

// statusForCode maps domain error codes to HTTP status codes
func statusForCode(code errors.ErrorCode) int {
	switch code {
	case errors.ErrCodeValidation, errors.ErrCodeInvalidInput, errors.ErrCodeMissingField,
		errors.ErrCodeHostsRequired, errors.ErrCodeIDOutOfRange, errors.ErrCodeInvalidGroupMode,
		errors.ErrCodeImmutableField:
		return http.StatusBadRequest
	case errors.ErrCodeNotFound, errors.ErrCodeGroupNotFound, errors.ErrCodeNotActive:
		return http.StatusNotFound
	case errors.ErrCodeIDConflict, errors.ErrCodeAlreadyActive, errors.ErrCodeAlreadyExists,
		errors.ErrCodeConflict:
		return http.StatusConflict
	case errors.ErrCodeUnauthorized, errors.ErrCodeTokenExpired, errors.ErrCodeInvalidToken:
		return http.StatusUnauthorized
	case errors.ErrCodeForbidden:
		return http.StatusForbidden
	case errors.ErrCodeServiceUnavailable, errors.ErrCodeConnectionFailed:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
