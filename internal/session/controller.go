package session

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"

	apperrors "ordertrack/internal/errors"
)

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type sessionResponse struct {
	Authenticated bool   `json:"authenticated"`
	Subject       string `json:"subject,omitempty"`
	Role          string `json:"role,omitempty"`
	DisplayName   string `json:"displayName,omitempty"`
}

// Controller exposes the current identity. The token never leaves the process.
type Controller struct {
	service *Service
	logger  *zap.Logger
}

func NewController(service *Service, logger *zap.Logger) *Controller {
	return &Controller{service: service, logger: logger}
}

func (c *Controller) HandleCurrent(w http.ResponseWriter, r *http.Request) {
	sess, ok := c.service.store.Current()
	if !ok {
		c.writeJSON(w, http.StatusOK, sessionResponse{})
		return
	}
	c.writeJSON(w, http.StatusOK, sessionResponse{
		Authenticated: true,
		Subject:       sess.Subject,
		Role:          string(sess.Role),
		DisplayName:   sess.DisplayName,
	})
}

func (c *Controller) HandleLogin(w http.ResponseWriter, r *http.Request) {
	traceID := uuid.New().String()

	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		c.writeJSON(w, http.StatusBadRequest, map[string]string{
			"traceId": traceID,
			"error":   "VALIDATION_ERROR",
			"message": "invalid JSON body",
		})
		return
	}

	sess, err := c.service.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		c.handleLoginError(w, traceID, err)
		return
	}

	c.writeJSON(w, http.StatusOK, sessionResponse{
		Authenticated: true,
		Subject:       sess.Subject,
		Role:          string(sess.Role),
		DisplayName:   sess.DisplayName,
	})
}

func (c *Controller) handleLoginError(w http.ResponseWriter, traceID string, err error) {
	if ve, ok := apperrors.IsValidationError(err); ok {
		c.writeJSON(w, http.StatusBadRequest, map[string]any{
			"traceId": traceID,
			"error":   "VALIDATION_ERROR",
			"message": ve.Message,
			"details": ve.Details,
		})
		return
	}

	if re, ok := apperrors.IsRejectedError(err); ok {
		c.writeJSON(w, http.StatusUnauthorized, map[string]string{
			"traceId": traceID,
			"error":   "LOGIN_REJECTED",
			"message": re.Reason,
		})
		return
	}

	if _, ok := apperrors.IsNetworkError(err); ok {
		c.writeJSON(w, http.StatusBadGateway, map[string]string{
			"traceId": traceID,
			"error":   "UPSTREAM_UNAVAILABLE",
			"message": "order service is unreachable",
		})
		return
	}

	c.logger.Error("login failed", zap.String("traceId", traceID), zap.Error(err))
	c.writeJSON(w, http.StatusInternalServerError, map[string]string{
		"traceId": traceID,
		"error":   "INTERNAL_ERROR",
		"message": "an unexpected error occurred",
	})
}

func (c *Controller) HandleLogout(w http.ResponseWriter, r *http.Request) {
	if err := c.service.Logout(); err != nil {
		c.logger.Error("logout failed", zap.Error(err))
		c.writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error":   "INTERNAL_ERROR",
			"message": "an unexpected error occurred",
		})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (c *Controller) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		c.logger.Error("failed to encode response", zap.Error(err))
	}
}
