// README: Pipeline handlers: trigger a run, list runs, last run, run by id.
package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"fareflow/internal/modules/pipeline"
	"fareflow/internal/types"
)

type PipelineRunner interface {
	Trigger(ctx context.Context, req pipeline.TriggerRequest) (*pipeline.Run, error)
	Get(ctx context.Context, id types.ID) (*pipeline.Run, error)
	List(ctx context.Context, limit int) ([]pipeline.Run, error)
	Last(ctx context.Context) (*pipeline.Run, error)
}

type PipelineHandler struct {
	pipeline PipelineRunner
}

func NewPipelineHandler(svc PipelineRunner) *PipelineHandler {
	return &PipelineHandler{pipeline: svc}
}

func (h *PipelineHandler) Trigger(c *gin.Context) {
	var req pipeline.TriggerRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			writeError(c, http.StatusBadRequest, "invalid json: "+err.Error())
			return
		}
	}
	if req.Source == "" {
		req.Source = "api"
	}

	// A run outlives its trigger request; a client disconnect must not cancel the phases.
	run, err := h.pipeline.Trigger(context.WithoutCancel(c.Request.Context()), req)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	status := http.StatusOK
	if run.Status == pipeline.StatusFailed {
		status = http.StatusInternalServerError
	}
	writeJSON(c, status, run)
}

func (h *PipelineHandler) List(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "10"))
	runs, err := h.pipeline.List(c.Request.Context(), limit)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	if runs == nil {
		runs = []pipeline.Run{}
	}
	writeJSON(c, http.StatusOK, gin.H{"runs": runs})
}

func (h *PipelineHandler) Last(c *gin.Context) {
	run, err := h.pipeline.Last(c.Request.Context())
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, run)
}

func (h *PipelineHandler) Get(c *gin.Context) {
	id := c.Param("id")
	if !isValidID(id) {
		writeError(c, http.StatusBadRequest, "invalid run id")
		return
	}
	run, err := h.pipeline.Get(c.Request.Context(), types.ID(id))
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, run)
}
