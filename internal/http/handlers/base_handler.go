// README: Base handler utilities (JSON helpers, error mapping).
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"fareflow/internal/modules/dispatch"
	"fareflow/internal/modules/forecast"
	"fareflow/internal/modules/pipeline"
	"fareflow/internal/modules/pricing"
)

type errorResponse struct {
	Error string `json:"error"`
}

// alreadyRunningResponse answers a trigger that lost to an active run.
type alreadyRunningResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	RunID   string `json:"run_id"`
}

// isValidID accepts caller ids and generated uuids.
func isValidID(v string) bool {
	if v == "" || len(v) > 64 {
		return false
	}
	for _, c := range v {
		if (c >= '0' && c <= '9') || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || c == '-' || c == '_' {
			continue
		}
		return false
	}
	return true
}

func writeJSON(c *gin.Context, status int, v any) {
	c.JSON(status, v)
}

func writeError(c *gin.Context, status int, msg string) {
	writeJSON(c, status, errorResponse{Error: msg})
}

// writeServiceError maps module sentinels to status codes. Unknown errors are logged and hidden.
func writeServiceError(c *gin.Context, err error) {
	var running *pipeline.AlreadyRunningError
	switch {
	case errors.As(err, &running):
		writeJSON(c, http.StatusConflict, alreadyRunningResponse{Error: "pipeline already running", RunID: string(running.RunID)})
	case errors.Is(err, pricing.ErrValidation),
		errors.Is(err, forecast.ErrValidation),
		errors.Is(err, dispatch.ErrUnknownTier):
		writeError(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, pipeline.ErrNotFound):
		writeError(c, http.StatusNotFound, err.Error())
	case errors.Is(err, dispatch.ErrUnavailable):
		writeError(c, http.StatusServiceUnavailable, "dispatch queue unavailable")
	default:
		_ = c.Error(err)
		zap.L().Error("http: internal error", zap.String("path", c.FullPath()), zap.Error(err))
		writeError(c, http.StatusInternalServerError, "internal error")
	}
}
