package blockchain

import (
	"context"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"go.uber.org/zap"
)

// DiagnosticResult holds the result of a Solana connectivity diagnostic
type DiagnosticResult struct {
	RPCConnected    bool   `json:"rpc_connected"`
	RPCURL          string `json:"rpc_url"`
	RPCError        string `json:"rpc_error,omitempty"`
	LatestBlockhash string `json:"latest_blockhash,omitempty"`
	ServerKeySet    bool   `json:"server_key_set"`
	ServerPubkey    string `json:"server_pubkey,omitempty"`
	ServerKeyError  string `json:"server_key_error,omitempty"`
	ProgramID       string `json:"program_id"`
	TruthProgramID  string `json:"truth_program_id"`
	TestEventPDA    string `json:"test_event_pda,omitempty"`
	TestVaultPDA    string `json:"test_vault_pda,omitempty"`
	PDAError        string `json:"pda_error,omitempty"`
	TreasuryWallet  string `json:"treasury_wallet,omitempty"`
	TreasurySOL     string `json:"treasury_sol,omitempty"`
	HouseWallet     string `json:"house_wallet"`
	Timestamp       string `json:"timestamp"`
}

// DiagnosticTargets names the wallets the diagnostic should inspect
type DiagnosticTargets struct {
	ServerKey      string
	TreasuryWallet string
	HouseWallet    string
}

// RunDiagnostics checks RPC connectivity, the server key, and PDA derivation
func RunDiagnostics(ctx context.Context, client *SolanaClient, addrs *ProgramAddresses, targets DiagnosticTargets, logger *zap.Logger) *DiagnosticResult {
	log := logger.Named("diagnostics")
	result := &DiagnosticResult{
		RPCURL:         client.URL(),
		ProgramID:      addrs.ProgramID().String(),
		TruthProgramID: addrs.TruthProgramID().String(),
		TreasuryWallet: targets.TreasuryWallet,
		HouseWallet:    targets.HouseWallet,
		Timestamp:      time.Now().Format(time.RFC3339),
	}

	blockhash, err := client.RPC().GetLatestBlockhash(ctx, rpc.CommitmentFinalized)
	if err != nil {
		result.RPCError = err.Error()
		log.Warn("rpc check failed", zap.Error(err))
	} else {
		result.RPCConnected = true
		result.LatestBlockhash = blockhash.Value.Blockhash.String()
	}

	if targets.ServerKey == "" {
		result.ServerKeyError = "SERVER_WALLET_PRIVATE_KEY not set"
	} else {
		result.ServerKeySet = true
		key, err := solana.PrivateKeyFromBase58(targets.ServerKey)
		if err != nil {
			result.ServerKeyError = fmt.Sprintf("invalid key: %v", err)
		} else {
			result.ServerPubkey = key.PublicKey().String()
		}
	}

	// Event 0 of the house wallet exercises both derivation paths.
	if house, err := solana.PublicKeyFromBase58(targets.HouseWallet); err != nil {
		result.PDAError = fmt.Sprintf("invalid house wallet: %v", err)
	} else if event, err := addrs.Event(house, 0); err != nil {
		result.PDAError = err.Error()
	} else if accounts, err := addrs.EventAccounts(event); err != nil {
		result.PDAError = err.Error()
	} else {
		result.TestEventPDA = event.String()
		result.TestVaultPDA = accounts.CollateralVault.String()
	}

	if result.RPCConnected && targets.TreasuryWallet != "" {
		balance, err := client.GetSOLBalance(ctx, targets.TreasuryWallet)
		if err != nil {
			log.Warn("treasury balance check failed", zap.Error(err))
		} else {
			result.TreasurySOL = balance.String()
		}
	}

	log.Info("diagnostics complete",
		zap.Bool("rpc_connected", result.RPCConnected),
		zap.Bool("server_key_set", result.ServerKeySet),
		zap.String("pda_error", result.PDAError))
	return result
}
