package catalog

import (
	"encoding/json"
	"net/http"

	apperrors "ordertrack/internal/errors"

	"go.uber.org/zap"
)

type Controller struct {
	useCase UseCase
	logger  *zap.Logger
}

func NewController(useCase UseCase, logger *zap.Logger) *Controller {
	return &Controller{
		useCase: useCase,
		logger:  logger,
	}
}

func (c *Controller) HandleListStatuses(w http.ResponseWriter, r *http.Request) {
	resp, err := c.useCase.ListStatuses(r.Context())
	if err != nil {
		c.writeError(w, err)
		return
	}
	c.writeJSON(w, http.StatusOK, resp)
}

func (c *Controller) HandleListMerchants(w http.ResponseWriter, r *http.Request) {
	resp, err := c.useCase.ListMerchants(r.Context())
	if err != nil {
		c.writeError(w, err)
		return
	}
	c.writeJSON(w, http.StatusOK, resp)
}

func (c *Controller) writeError(w http.ResponseWriter, err error) {
	if fe, ok := apperrors.IsForbiddenError(err); ok {
		c.writeJSON(w, http.StatusForbidden, map[string]string{
			"error":   "FORBIDDEN",
			"message": fe.Message,
		})
		return
	}

	if re, ok := apperrors.IsRejectedError(err); ok {
		c.writeJSON(w, http.StatusConflict, map[string]string{
			"error":   "REJECTED",
			"message": re.Reason,
		})
		return
	}

	if _, ok := apperrors.IsNetworkError(err); ok {
		c.logger.Warn("remote unavailable", zap.Error(err))
		c.writeJSON(w, http.StatusBadGateway, map[string]string{
			"error":   "REMOTE_UNAVAILABLE",
			"message": err.Error(),
		})
		return
	}

	c.logger.Error("catalog request failed", zap.Error(err))
	c.writeJSON(w, http.StatusInternalServerError, map[string]string{
		"error":   "INTERNAL_ERROR",
		"message": "an unexpected error occurred",
	})
}

func (c *Controller) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		c.logger.Error("failed to encode response", zap.Error(err))
	}
}
