// README: Pricing handlers (quote).
package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"fareflow/internal/modules/pricing"
)

type Quoter interface {
	Quote(ctx context.Context, q pricing.Quote) (pricing.Result, error)
}

type PricingHandler struct {
	pricing Quoter
}

func NewPricingHandler(svc Quoter) *PricingHandler {
	return &PricingHandler{pricing: svc}
}

func (h *PricingHandler) Quote(c *gin.Context) {
	var req pricing.Quote
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json: "+err.Error())
		return
	}
	res, err := h.pricing.Quote(c.Request.Context(), req)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, res)
}
