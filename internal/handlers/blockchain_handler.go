package handlers

import (
	"net/http"
	"strconv"

	"github.com/gagliardetto/solana-go"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"predictsol/internal/blockchain"
)

type BlockchainHandler struct {
	client  *blockchain.SolanaClient
	addrs   *blockchain.ProgramAddresses
	targets blockchain.DiagnosticTargets
	logger  *zap.Logger
}

func NewBlockchainHandler(
	client *blockchain.SolanaClient,
	addrs *blockchain.ProgramAddresses,
	targets blockchain.DiagnosticTargets,
	logger *zap.Logger,
) *BlockchainHandler {
	return &BlockchainHandler{
		client:  client,
		addrs:   addrs,
		targets: targets,
		logger:  logger,
	}
}

// Diagnostics reports RPC, server key and address derivation health
// GET /api/diagnostics
func (h *BlockchainHandler) Diagnostics(c *gin.Context) {
	result := blockchain.RunDiagnostics(c.Request.Context(), h.client, h.addrs, h.targets, h.logger)
	c.JSON(http.StatusOK, result)
}

// DeriveEventAccounts returns the addresses an event of creator with id will use
// GET /api/addresses/:creator/:id
func (h *BlockchainHandler) DeriveEventAccounts(c *gin.Context) {
	creator, err := solana.PublicKeyFromBase58(c.Param("creator"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid creator address"})
		return
	}
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid event id"})
		return
	}

	event, err := h.addrs.Event(creator, id)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	accounts, err := h.addrs.EventAccounts(event)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"event":            accounts.Event.String(),
		"collateral_vault": accounts.CollateralVault.String(),
		"true_mint":        accounts.TrueMint.String(),
		"false_mint":       accounts.FalseMint.String(),
		"mint_authority":   accounts.MintAuthority.String(),
	})
}
