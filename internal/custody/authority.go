// Package custody moves native value and claim tokens on behalf of events.
// Every vault debit and every mint or burn requires the Authority of the
// event that owns the account.
package custody

import (
	"fmt"

	"github.com/gagliardetto/solana-go"

	"predictsol/internal/blockchain"
	"predictsol/internal/models"
)

// Authority is the signing capability of exactly one event. The zero value
// authorizes nothing.
type Authority struct {
	event     string
	signer    string
	vault     string
	trueMint  string
	falseMint string
}

// NewAuthority derives the capability for event from its program addresses.
func NewAuthority(addrs *blockchain.ProgramAddresses, event string) (Authority, error) {
	pk, err := solana.PublicKeyFromBase58(event)
	if err != nil {
		return Authority{}, fmt.Errorf("invalid event address: %w", err)
	}
	accounts, err := addrs.EventAccounts(pk)
	if err != nil {
		return Authority{}, err
	}
	return Authority{
		event:     event,
		signer:    accounts.MintAuthority.String(),
		vault:     accounts.CollateralVault.String(),
		trueMint:  accounts.TrueMint.String(),
		falseMint: accounts.FalseMint.String(),
	}, nil
}

func (a Authority) Event() string  { return a.event }
func (a Authority) Signer() string { return a.signer }
func (a Authority) Vault() string  { return a.vault }

// Mint returns the mint address this authority controls for side.
func (a Authority) Mint(side models.Side) string {
	if side == models.SideTrue {
		return a.trueMint
	}
	return a.falseMint
}

func (a Authority) valid() bool {
	return a.event != "" && a.signer != ""
}
