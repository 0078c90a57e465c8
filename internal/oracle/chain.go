package oracle

import (
	"context"
	"errors"

	"predictsol/internal/blockchain"
	"predictsol/internal/settlement"
)

// Chain reads questions from the deployed Truth Network program.
type Chain struct {
	client *blockchain.TruthClient
}

func NewChain(client *blockchain.TruthClient) *Chain {
	return &Chain{client: client}
}

func (c *Chain) Question(ctx context.Context, address string) (*Question, error) {
	q, err := c.client.GetQuestion(ctx, address)
	if errors.Is(err, blockchain.ErrQuestionAccountNotFound) {
		return nil, settlement.ErrQuestionNotFound
	}
	if err != nil {
		return nil, err
	}
	return &Question{
		Address:       address,
		ID:            q.ID,
		VotesOption1:  q.VotesOption1,
		VotesOption2:  q.VotesOption2,
		WinningOption: q.WinningOption,
		RevealEndTime: q.RevealEndTime,
		PayoutVault:   q.Vault.String(),
		Finalized:     q.VotingFinished,
	}, nil
}

// FinalizeVoting is skipped when the question already reports finished.
func (c *Chain) FinalizeVoting(ctx context.Context, address string) error {
	q, err := c.client.GetQuestion(ctx, address)
	if errors.Is(err, blockchain.ErrQuestionAccountNotFound) {
		return settlement.ErrQuestionNotFound
	}
	if err != nil {
		return err
	}
	if q.VotingFinished {
		return nil
	}
	_, err = c.client.FinalizeVoting(ctx, address)
	return err
}

var _ Oracle = (*Chain)(nil)
