package blockchain

import (
	"bytes"
	"context"
	"crypto/sha256"
	"errors"
	"fmt"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"go.uber.org/zap"
)

var ErrQuestionAccountNotFound = errors.New("truth question account not found")

// QuestionAccount is the on-chain layout of a Truth Network question, after
// the 8-byte account discriminator.
type QuestionAccount struct {
	Asker          solana.PublicKey
	ID             uint64
	Text           string
	Option1        string
	Option2        string
	RewardLamports uint64
	CommitEndTime  int64
	RevealEndTime  int64
	VotesOption1   uint64
	VotesOption2   uint64
	WinningOption  uint8
	VotingFinished bool
	Vault          solana.PublicKey
	Bump           uint8
}

// anchorDiscriminator is sha256("<namespace>:<name>")[:8]
func anchorDiscriminator(namespace, name string) []byte {
	sum := sha256.Sum256([]byte(namespace + ":" + name))
	return sum[:8]
}

var (
	questionDiscriminator       = anchorDiscriminator("account", "Question")
	finalizeVotingDiscriminator = anchorDiscriminator("global", "finalize_voting")
)

// DecodeQuestionAccount deserializes raw question account data
func DecodeQuestionAccount(data []byte) (*QuestionAccount, error) {
	if len(data) < 8 {
		return nil, fmt.Errorf("invalid question data length")
	}
	if !bytes.Equal(data[:8], questionDiscriminator) {
		return nil, fmt.Errorf("account is not a truth question")
	}

	var q QuestionAccount
	if err := bin.NewBorshDecoder(data[8:]).Decode(&q); err != nil {
		return nil, fmt.Errorf("failed to deserialize question: %w", err)
	}
	return &q, nil
}

// EncodeQuestionAccount is the inverse of DecodeQuestionAccount; used by
// local validators and fixtures.
func EncodeQuestionAccount(q *QuestionAccount) ([]byte, error) {
	buf := new(bytes.Buffer)
	buf.Write(questionDiscriminator)
	if err := bin.NewBorshEncoder(buf).Encode(q); err != nil {
		return nil, fmt.Errorf("failed to serialize question: %w", err)
	}
	return buf.Bytes(), nil
}

// TruthClient reads and finalizes Truth Network questions over RPC
type TruthClient struct {
	client    *SolanaClient
	programID solana.PublicKey
	signer    *solana.PrivateKey
	logger    *zap.Logger
}

// NewTruthClient creates a client for the oracle program. signerKey may be
// empty, in which case FinalizeVoting is unavailable.
func NewTruthClient(client *SolanaClient, programID solana.PublicKey, signerKey string, logger *zap.Logger) (*TruthClient, error) {
	tc := &TruthClient{
		client:    client,
		programID: programID,
		logger:    logger.Named("truth"),
	}
	if signerKey != "" {
		key, err := solana.PrivateKeyFromBase58(signerKey)
		if err != nil {
			return nil, fmt.Errorf("invalid server wallet private key: %w", err)
		}
		tc.signer = &key
	}
	return tc, nil
}

// GetQuestion fetches and deserializes a question account
func (c *TruthClient) GetQuestion(ctx context.Context, address string) (*QuestionAccount, error) {
	pk, err := solana.PublicKeyFromBase58(address)
	if err != nil {
		return nil, fmt.Errorf("invalid question address: %w", err)
	}

	accountInfo, err := c.client.RPC().GetAccountInfoWithOpts(ctx, pk, &rpc.GetAccountInfoOpts{
		Commitment: rpc.CommitmentConfirmed,
	})
	if err != nil {
		if errors.Is(err, rpc.ErrNotFound) {
			return nil, ErrQuestionAccountNotFound
		}
		return nil, fmt.Errorf("failed to fetch question account: %w", err)
	}
	if accountInfo == nil || accountInfo.Value == nil {
		return nil, ErrQuestionAccountNotFound
	}
	if !accountInfo.Value.Owner.Equals(c.programID) {
		return nil, fmt.Errorf("question account owned by %s, want %s", accountInfo.Value.Owner, c.programID)
	}

	return DecodeQuestionAccount(accountInfo.Value.Data.GetBinary())
}

// FinalizeVoting submits finalize_voting for a question. The oracle program
// treats repeated calls after its reveal window as no-ops.
func (c *TruthClient) FinalizeVoting(ctx context.Context, address string) (string, error) {
	if c.signer == nil {
		return "", fmt.Errorf("server wallet not configured")
	}
	question, err := solana.PublicKeyFromBase58(address)
	if err != nil {
		return "", fmt.Errorf("invalid question address: %w", err)
	}
	authority := c.signer.PublicKey()

	data := make([]byte, 8)
	copy(data, finalizeVotingDiscriminator)

	accounts := []*solana.AccountMeta{
		{PublicKey: question, IsWritable: true, IsSigner: false}, // question
		{PublicKey: authority, IsWritable: true, IsSigner: true}, // payer
	}
	instruction := solana.NewInstruction(c.programID, accounts, data)

	recent, err := c.client.GetRecentBlockhash(ctx)
	if err != nil {
		return "", err
	}

	tx, err := solana.NewTransaction(
		[]solana.Instruction{instruction},
		recent,
		solana.TransactionPayer(authority),
	)
	if err != nil {
		return "", fmt.Errorf("failed to create transaction: %w", err)
	}

	_, err = tx.Sign(func(key solana.PublicKey) *solana.PrivateKey {
		if key.Equals(authority) {
			return c.signer
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("failed to sign transaction: %w", err)
	}

	sig, err := c.client.SendTransaction(ctx, tx)
	if err != nil {
		return "", err
	}

	c.logger.Info("finalize_voting submitted",
		zap.String("question", address),
		zap.String("signature", sig.String()))
	return sig.String(), nil
}
