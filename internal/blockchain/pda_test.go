package blockchain

import (
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/require"
)

func newTestAddresses(t *testing.T) *ProgramAddresses {
	t.Helper()
	addrs, err := NewProgramAddresses(DefaultProgramID, DefaultTruthProgramID)
	require.NoError(t, err)
	return addrs
}

func TestEventAddressIsDeterministic(t *testing.T) {
	addrs := newTestAddresses(t)
	creator := solana.NewWallet().PublicKey()

	first, err := addrs.Event(creator, 7)
	require.NoError(t, err)
	second, err := addrs.Event(creator, 7)
	require.NoError(t, err)
	require.Equal(t, first, second)

	other, err := addrs.Event(creator, 8)
	require.NoError(t, err)
	require.NotEqual(t, first, other)

	require.False(t, first.IsOnCurve(), "derived addresses have no private key")
}

func TestEventAccountsAreDistinct(t *testing.T) {
	addrs := newTestAddresses(t)
	creator := solana.NewWallet().PublicKey()
	event, err := addrs.Event(creator, 0)
	require.NoError(t, err)

	accounts, err := addrs.EventAccounts(event)
	require.NoError(t, err)

	seen := map[solana.PublicKey]bool{}
	for _, pk := range []solana.PublicKey{
		accounts.Event,
		accounts.CollateralVault,
		accounts.TrueMint,
		accounts.FalseMint,
		accounts.MintAuthority,
	} {
		require.False(t, seen[pk], "duplicate derived address %s", pk)
		seen[pk] = true
	}

	counter, err := addrs.EventCounter(creator)
	require.NoError(t, err)
	require.False(t, seen[counter])
}

func TestTruthVaultUsesOracleProgram(t *testing.T) {
	addrs := newTestAddresses(t)
	question := solana.NewWallet().PublicKey()

	vault, err := addrs.TruthVault(question)
	require.NoError(t, err)

	expected, _, err := solana.FindProgramAddress(
		[][]byte{[]byte("vault"), question.Bytes()},
		solana.MustPublicKeyFromBase58(DefaultTruthProgramID),
	)
	require.NoError(t, err)
	require.Equal(t, expected, vault)
}

func TestNewProgramAddressesRejectsGarbage(t *testing.T) {
	_, err := NewProgramAddresses("not-base58!", DefaultTruthProgramID)
	require.Error(t, err)
}
