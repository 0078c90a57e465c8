package blockchain

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var (
	ErrTransactionNotFound     = errors.New("transaction not found")
	ErrTransactionNotConfirmed = errors.New("transaction not confirmed yet")
	ErrTransactionFailed       = errors.New("transaction execution failed")
	ErrTransferMismatch        = errors.New("transaction is not a transfer from the wallet to the treasury")
)

// LamportsPerSOL converts between display and base units
const LamportsPerSOL = 1_000_000_000

// RPCURL maps a network name to its public RPC endpoint
func RPCURL(network string) string {
	switch network {
	case "mainnet-beta":
		return "https://api.mainnet-beta.solana.com"
	case "testnet":
		return "https://api.testnet.solana.com"
	case "localnet":
		return "http://127.0.0.1:8899"
	default:
		return "https://api.devnet.solana.com"
	}
}

// SolanaClient handles Solana blockchain interactions
type SolanaClient struct {
	rpcClient *rpc.Client
	rpcURL    string
	logger    *zap.Logger
}

// NewSolanaClient creates a new Solana client
func NewSolanaClient(rpcURL string, logger *zap.Logger) *SolanaClient {
	return &SolanaClient{
		rpcClient: rpc.New(rpcURL),
		rpcURL:    rpcURL,
		logger:    logger.Named("solana"),
	}
}

// RPC exposes the underlying client to other chain readers
func (s *SolanaClient) RPC() *rpc.Client {
	return s.rpcClient
}

// URL returns the RPC endpoint in use
func (s *SolanaClient) URL() string {
	return s.rpcURL
}

// SendTransaction sends a signed transaction to the network
func (s *SolanaClient) SendTransaction(ctx context.Context, tx *solana.Transaction) (solana.Signature, error) {
	sig, err := s.rpcClient.SendTransactionWithOpts(
		ctx,
		tx,
		rpc.TransactionOpts{
			SkipPreflight:       false,
			PreflightCommitment: rpc.CommitmentConfirmed,
		},
	)
	if err != nil {
		return solana.Signature{}, fmt.Errorf("failed to send transaction: %w", err)
	}
	return sig, nil
}

// GetRecentBlockhash gets the latest blockhash
func (s *SolanaClient) GetRecentBlockhash(ctx context.Context) (solana.Hash, error) {
	resp, err := s.rpcClient.GetLatestBlockhash(ctx, rpc.CommitmentConfirmed)
	if err != nil {
		return solana.Hash{}, fmt.Errorf("failed to get recent blockhash: %w", err)
	}
	return resp.Value.Blockhash, nil
}

// ValidateWalletAddress validates a Solana wallet address format
func ValidateWalletAddress(address string) bool {
	_, err := solana.PublicKeyFromBase58(address)
	return err == nil
}

// LamportsToSOL renders lamports as a SOL decimal
func LamportsToSOL(lamports uint64) decimal.Decimal {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(lamports), 0).Div(decimal.NewFromInt(LamportsPerSOL))
}

// GetSOLBalance gets the SOL balance for a wallet
func (s *SolanaClient) GetSOLBalance(ctx context.Context, walletAddress string) (decimal.Decimal, error) {
	pubKey, err := solana.PublicKeyFromBase58(walletAddress)
	if err != nil {
		return decimal.Zero, err
	}

	balance, err := s.rpcClient.GetBalance(ctx, pubKey, rpc.CommitmentConfirmed)
	if err != nil {
		return decimal.Zero, err
	}

	return LamportsToSOL(balance.Value), nil
}

// TransferDetails holds the parsed details of a verified native transfer
type TransferDetails struct {
	Signature string
	Sender    string
	Receiver  string
	Amount    uint64 // in lamports
	Slot      uint64
}

// VerifyTransfer checks that signature is a confirmed, successful transaction
// paid by `from` that increased the balance of `to`, and returns the amount.
func (s *SolanaClient) VerifyTransfer(ctx context.Context, signature, from, to string) (*TransferDetails, error) {
	sig, err := solana.SignatureFromBase58(signature)
	if err != nil {
		return nil, fmt.Errorf("invalid signature: %w", err)
	}
	sender, err := solana.PublicKeyFromBase58(from)
	if err != nil {
		return nil, fmt.Errorf("invalid sender: %w", err)
	}
	receiver, err := solana.PublicKeyFromBase58(to)
	if err != nil {
		return nil, fmt.Errorf("invalid receiver: %w", err)
	}

	status, err := s.rpcClient.GetSignatureStatuses(ctx, true, sig)
	if err != nil {
		return nil, fmt.Errorf("failed to get signature status: %w", err)
	}
	if len(status.Value) == 0 || status.Value[0] == nil {
		return nil, ErrTransactionNotFound
	}
	if status.Value[0].Err != nil {
		s.logger.Warn("transaction failed on chain",
			zap.String("signature", signature),
			zap.Any("error", status.Value[0].Err))
		return nil, ErrTransactionFailed
	}
	confStatus := status.Value[0].ConfirmationStatus
	if confStatus != rpc.ConfirmationStatusConfirmed && confStatus != rpc.ConfirmationStatusFinalized {
		return nil, ErrTransactionNotConfirmed
	}

	maxVersion := uint64(0)
	result, err := s.rpcClient.GetTransaction(ctx, sig, &rpc.GetTransactionOpts{
		Commitment:                     rpc.CommitmentConfirmed,
		MaxSupportedTransactionVersion: &maxVersion,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get transaction details: %w", err)
	}
	if result == nil || result.Meta == nil || result.Transaction == nil {
		return nil, ErrTransactionNotFound
	}

	tx, err := result.Transaction.GetTransaction()
	if err != nil {
		return nil, fmt.Errorf("failed to decode transaction: %w", err)
	}

	keys := tx.Message.AccountKeys
	if len(keys) < 2 || !keys[0].Equals(sender) {
		return nil, ErrTransferMismatch
	}

	receiverIdx := -1
	for i, key := range keys {
		if key.Equals(receiver) {
			receiverIdx = i
			break
		}
	}
	if receiverIdx < 0 || receiverIdx >= len(result.Meta.PreBalances) || receiverIdx >= len(result.Meta.PostBalances) {
		return nil, ErrTransferMismatch
	}

	// Net balance change of the receiver; covers plain and batched system transfers.
	pre := result.Meta.PreBalances[receiverIdx]
	post := result.Meta.PostBalances[receiverIdx]
	if post <= pre {
		return nil, ErrTransferMismatch
	}

	return &TransferDetails{
		Signature: signature,
		Sender:    from,
		Receiver:  to,
		Amount:    post - pre,
		Slot:      result.Slot,
	}, nil
}
