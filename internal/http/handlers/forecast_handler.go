// README: Ad-hoc segment forecast handler.
package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"fareflow/internal/modules/forecast"
)

type Forecaster interface {
	Run(ctx context.Context, horizonDays int) (*forecast.Output, error)
}

type ForecastHandler struct {
	forecast Forecaster
}

func NewForecastHandler(svc Forecaster) *ForecastHandler {
	return &ForecastHandler{forecast: svc}
}

type forecastReq struct {
	HorizonDays int `json:"horizon_days"`
}

func (h *ForecastHandler) Run(c *gin.Context) {
	var req forecastReq
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			writeError(c, http.StatusBadRequest, "invalid json: "+err.Error())
			return
		}
	}
	out, err := h.forecast.Run(c.Request.Context(), req.HorizonDays)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, out)
}
