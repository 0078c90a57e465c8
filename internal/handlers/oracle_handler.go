package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"predictsol/internal/auth"
	"predictsol/internal/oracle"
)

// OracleHandler exposes the database oracle; it is only routed when
// ORACLE_MODE=store.
type OracleHandler struct {
	store  *oracle.Store
	logger *zap.Logger
}

func NewOracleHandler(store *oracle.Store, logger *zap.Logger) *OracleHandler {
	return &OracleHandler{
		store:  store,
		logger: logger.Named("oracle_handler"),
	}
}

// CreateQuestion registers a question asked by the caller
// POST /api/oracle/questions
func (h *OracleHandler) CreateQuestion(c *gin.Context) {
	wallet, ok := auth.GetWalletAddress(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var req struct {
		Text          string `json:"text" binding:"required"`
		RevealEndTime int64  `json:"reveal_end_time" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	q, err := h.store.CreateQuestion(c.Request.Context(), wallet, req.Text, req.RevealEndTime)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, q)
}

// RecordVote adds weight to one option of a question
// POST /api/oracle/questions/:address/votes
func (h *OracleHandler) RecordVote(c *gin.Context) {
	var req struct {
		Option uint8  `json:"option" binding:"required"`
		Weight uint64 `json:"weight" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	address := c.Param("address")
	if err := h.store.RecordVote(c.Request.Context(), address, req.Option, req.Weight); err != nil {
		respondError(c, h.logger, err)
		return
	}
	h.GetQuestion(c)
}

// GetQuestion returns the tallies of a question
// GET /api/oracle/questions/:address
func (h *OracleHandler) GetQuestion(c *gin.Context) {
	q, err := h.store.Question(c.Request.Context(), c.Param("address"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, q)
}
