package blockchain

import (
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/require"
)

func TestDecodeQuestionAccount(t *testing.T) {
	q := &QuestionAccount{
		Asker:          solana.NewWallet().PublicKey(),
		ID:             42,
		Text:           "Will the launch happen before June?",
		Option1:        "Yes",
		Option2:        "No",
		RewardLamports: 5_000_000,
		CommitEndTime:  1_700_000_000,
		RevealEndTime:  1_700_003_600,
		VotesOption1:   90,
		VotesOption2:   10,
		WinningOption:  1,
		VotingFinished: true,
		Vault:          solana.NewWallet().PublicKey(),
		Bump:           254,
	}

	data, err := EncodeQuestionAccount(q)
	require.NoError(t, err)
	require.Equal(t, questionDiscriminator, data[:8])

	got, err := DecodeQuestionAccount(data)
	require.NoError(t, err)
	require.Equal(t, q, got)
}

func TestDecodeQuestionAccountRejectsOtherAccounts(t *testing.T) {
	_, err := DecodeQuestionAccount([]byte{1, 2, 3})
	require.Error(t, err)

	data := make([]byte, 64)
	_, err = DecodeQuestionAccount(data)
	require.ErrorContains(t, err, "not a truth question")
}

func TestAnchorDiscriminator(t *testing.T) {
	require.Len(t, finalizeVotingDiscriminator, 8)
	require.NotEqual(t, questionDiscriminator, finalizeVotingDiscriminator)
	require.Equal(t, anchorDiscriminator("global", "finalize_voting"), finalizeVotingDiscriminator)
}
