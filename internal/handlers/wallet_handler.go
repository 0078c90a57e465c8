package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"predictsol/internal/auth"
	"predictsol/internal/models"
	"predictsol/internal/services"
)

type WalletHandler struct {
	wallets *services.WalletService
	logger  *zap.Logger
}

func NewWalletHandler(wallets *services.WalletService, logger *zap.Logger) *WalletHandler {
	return &WalletHandler{
		wallets: wallets,
		logger:  logger.Named("wallet_handler"),
	}
}

// GetWallet returns the caller's native balance and claim tokens
// GET /api/wallet
func (h *WalletHandler) GetWallet(c *gin.Context) {
	wallet, ok := auth.GetWalletAddress(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	view, err := h.wallets.Wallet(c.Request.Context(), wallet)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// Deposit credits a verified on-chain transfer to the caller
// POST /api/wallet/deposits
func (h *WalletHandler) Deposit(c *gin.Context) {
	wallet, ok := auth.GetWalletAddress(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var req models.WalletDepositRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	deposit, err := h.wallets.Deposit(c.Request.Context(), wallet, req.Signature)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, deposit)
}
