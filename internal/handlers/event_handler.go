package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"predictsol/internal/auth"
	"predictsol/internal/models"
	"predictsol/internal/repository"
	"predictsol/internal/services"
)

type EventHandler struct {
	events *services.EventService
	logger *zap.Logger
}

func NewEventHandler(events *services.EventService, logger *zap.Logger) *EventHandler {
	return &EventHandler{
		events: events,
		logger: logger.Named("event_handler"),
	}
}

func (h *EventHandler) caller(c *gin.Context) (string, bool) {
	wallet, ok := auth.GetWalletAddress(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
	}
	return wallet, ok
}

// AllocateCounter initializes the caller's event counter
// POST /api/counters
func (h *EventHandler) AllocateCounter(c *gin.Context) {
	wallet, ok := h.caller(c)
	if !ok {
		return
	}
	counter, err := h.events.AllocateEventCounter(c.Request.Context(), wallet)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, counter)
}

// GetCounter returns a creator's event counter
// GET /api/counters/:creator
func (h *EventHandler) GetCounter(c *gin.Context) {
	counter, err := h.events.GetCounter(c.Request.Context(), c.Param("creator"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, counter)
}

// CreateEvent creates an event owned by the caller
// POST /api/events
func (h *EventHandler) CreateEvent(c *gin.Context) {
	wallet, ok := h.caller(c)
	if !ok {
		return
	}

	var req models.CreateEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	event, err := h.events.CreateEvent(c.Request.Context(), wallet, &req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, event)
}

// ListEvents lists events
// GET /api/events?creator=&status=&resolved=&limit=&offset=
func (h *EventHandler) ListEvents(c *gin.Context) {
	filter := repository.EventFilter{
		Creator: c.Query("creator"),
		Status:  models.ResultStatus(c.Query("status")),
		Limit:   20,
	}
	if limitStr := c.Query("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 && l <= 100 {
			filter.Limit = l
		}
	}
	if offsetStr := c.Query("offset"); offsetStr != "" {
		if o, err := strconv.Atoi(offsetStr); err == nil && o >= 0 {
			filter.Offset = o
		}
	}
	if resolvedStr := c.Query("resolved"); resolvedStr != "" {
		resolved, err := strconv.ParseBool(resolvedStr)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid resolved filter"})
			return
		}
		filter.Resolved = &resolved
	}

	events, total, err := h.events.ListEvents(c.Request.Context(), filter)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"events": events,
		"total":  total,
		"limit":  filter.Limit,
		"offset": filter.Offset,
	})
}

// GetEvent returns one event
// GET /api/events/:address
func (h *EventHandler) GetEvent(c *gin.Context) {
	event, err := h.events.GetEvent(c.Request.Context(), c.Param("address"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, event)
}

// GetTransactions lists the value movements of an event
// GET /api/events/:address/transactions
func (h *EventHandler) GetTransactions(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	txs, err := h.events.ListTransactions(c.Request.Context(), c.Param("address"), limit, offset)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"transactions": txs})
}

// Bootstrap funds the vault and creates the mints of the caller's event
// POST /api/events/:address/bootstrap
func (h *EventHandler) Bootstrap(c *gin.Context) {
	wallet, ok := h.caller(c)
	if !ok {
		return
	}
	event, err := h.events.BootstrapEventVaultAndMints(c.Request.Context(), wallet, c.Param("address"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, event)
}

// Buy deposits lamports for an equal amount of TRUE and FALSE tokens
// POST /api/events/:address/buy
func (h *EventHandler) Buy(c *gin.Context) {
	wallet, ok := h.caller(c)
	if !ok {
		return
	}
	var req models.BuyPositionsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	receipt, err := h.events.BuyPositions(c.Request.Context(), wallet, c.Param("address"), req.Lamports, req.TruthVault)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, receipt)
}

// RedeemPair burns a TRUE/FALSE pair before betting ends
// POST /api/events/:address/redeem-pair
func (h *EventHandler) RedeemPair(c *gin.Context) {
	wallet, ok := h.caller(c)
	if !ok {
		return
	}
	var req models.AmountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	receipt, err := h.events.RedeemPair(c.Request.Context(), wallet, c.Param("address"), req.Amount)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, receipt)
}

// Finalize resolves the event from its oracle question
// POST /api/events/:address/finalize
func (h *EventHandler) Finalize(c *gin.Context) {
	wallet, ok := h.caller(c)
	if !ok {
		return
	}
	var req models.FinalizeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	event, err := h.events.Finalize(c.Request.Context(), wallet, c.Param("address"), req.TruthQuestion)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, event)
}

// RedeemWinner burns winning tokens for lamports
// POST /api/events/:address/redeem-winner
func (h *EventHandler) RedeemWinner(c *gin.Context) {
	wallet, ok := h.caller(c)
	if !ok {
		return
	}
	var req models.AmountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	receipt, err := h.events.RedeemWinner(c.Request.Context(), wallet, c.Param("address"), req.Mint, req.Amount)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, receipt)
}

// RedeemSide burns tokens of either side after a no-winner outcome
// POST /api/events/:address/redeem-side
func (h *EventHandler) RedeemSide(c *gin.Context) {
	wallet, ok := h.caller(c)
	if !ok {
		return
	}
	var req models.RedeemSideRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	receipt, err := h.events.RedeemEitherSide(c.Request.Context(), wallet, c.Param("address"), req.Side, req.Amount)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, receipt)
}

// ClaimCommission pays the creator's accrued commission
// POST /api/events/:address/claim-commission
func (h *EventHandler) ClaimCommission(c *gin.Context) {
	wallet, ok := h.caller(c)
	if !ok {
		return
	}
	receipt, err := h.events.ClaimCreatorCommission(c.Request.Context(), wallet, c.Param("address"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, receipt)
}

// Sweep moves unclaimed value to the house after the sweep delay
// POST /api/events/:address/sweep
func (h *EventHandler) Sweep(c *gin.Context) {
	wallet, ok := h.caller(c)
	if !ok {
		return
	}
	receipt, err := h.events.SweepUnclaimedToHouse(c.Request.Context(), wallet, c.Param("address"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, receipt)
}

// DeleteEvent closes a settled event
// DELETE /api/events/:address
func (h *EventHandler) DeleteEvent(c *gin.Context) {
	wallet, ok := h.caller(c)
	if !ok {
		return
	}
	receipt, err := h.events.DeleteEvent(c.Request.Context(), wallet, c.Param("address"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, receipt)
}
