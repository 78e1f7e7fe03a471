// README: Dispatch handlers: price-and-enqueue, next, list, status, clear.
package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"fareflow/internal/modules/dispatch"
	"fareflow/internal/modules/pricing"
	"fareflow/internal/types"
)

type OrderPricer interface {
	QuoteAndEnqueue(ctx context.Context, orderID types.ID, q pricing.Quote, payload json.RawMessage) (pricing.Result, error)
}

type Queue interface {
	Next(ctx context.Context, tier dispatch.Tier) (*dispatch.Entry, error)
	List(ctx context.Context, tier dispatch.Tier, limit int) ([]dispatch.Entry, error)
	Status(ctx context.Context) (dispatch.Status, error)
	Clear(ctx context.Context, tier dispatch.Tier) error
}

type DispatchHandler struct {
	pricer OrderPricer
	queue  Queue
}

func NewDispatchHandler(pricer OrderPricer, queue Queue) *DispatchHandler {
	return &DispatchHandler{pricer: pricer, queue: queue}
}

type createOrderReq struct {
	OrderID string `json:"order_id"`
	pricing.Quote
	Payload json.RawMessage `json:"payload"`
}

func (h *DispatchHandler) CreateOrder(c *gin.Context) {
	var req createOrderReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json: "+err.Error())
		return
	}
	id := types.ID(req.OrderID)
	if req.OrderID == "" {
		id = types.NewID()
	} else if !isValidID(req.OrderID) {
		writeError(c, http.StatusBadRequest, "invalid order_id")
		return
	}
	tier, err := dispatch.TierFor(req.Model)
	if err != nil {
		writeError(c, http.StatusBadRequest, err.Error())
		return
	}

	res, err := h.pricer.QuoteAndEnqueue(c.Request.Context(), id, req.Quote, req.Payload)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusCreated, gin.H{"order_id": id, "tier": tier, "price": res})
}

func (h *DispatchHandler) tier(c *gin.Context) (dispatch.Tier, bool) {
	tier, err := dispatch.ParseTier(c.Param("tier"))
	if err != nil {
		writeError(c, http.StatusBadRequest, err.Error())
		return "", false
	}
	return tier, true
}

func (h *DispatchHandler) Next(c *gin.Context) {
	tier, ok := h.tier(c)
	if !ok {
		return
	}
	entry, err := h.queue.Next(c.Request.Context(), tier)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	if entry == nil {
		c.Status(http.StatusNoContent)
		return
	}
	writeJSON(c, http.StatusOK, entry)
}

func (h *DispatchHandler) List(c *gin.Context) {
	tier, ok := h.tier(c)
	if !ok {
		return
	}
	limit := 0
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(c, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}
	entries, err := h.queue.List(c.Request.Context(), tier, limit)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	if entries == nil {
		entries = []dispatch.Entry{}
	}
	writeJSON(c, http.StatusOK, gin.H{"tier": tier, "entries": entries})
}

func (h *DispatchHandler) Status(c *gin.Context) {
	st, err := h.queue.Status(c.Request.Context())
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, st)
}

func (h *DispatchHandler) Clear(c *gin.Context) {
	tier, ok := h.tier(c)
	if !ok {
		return
	}
	if err := h.queue.Clear(c.Request.Context(), tier); err != nil {
		writeServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
