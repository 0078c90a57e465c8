package blockchain

import (
	"encoding/binary"
	"fmt"

	"github.com/gagliardetto/solana-go"
)

const (
	// DefaultProgramID is the devnet deployment of the settlement program.
	DefaultProgramID = "BkNTEaYRntnPsgMZPKoh8AoQ5b7H75sweWivcUNxcm1V"

	// DefaultTruthProgramID is the devnet deployment of the vote oracle.
	DefaultTruthProgramID = "31wdq6EJgHKRjZotAjc6vkuJ7aRyQPauwmgadPiEm8EY"
)

var (
	seedEventCounter    = []byte("event_counter")
	seedEvent           = []byte("event")
	seedTrueMint        = []byte("true_mint")
	seedFalseMint       = []byte("false_mint")
	seedMintAuthority   = []byte("mint_authority")
	seedCollateralVault = []byte("collateral_vault")
	seedTruthVault      = []byte("vault")
	seedTruthQuestion   = []byte("question")
)

// ProgramAddresses derives every record key of an event deterministically.
type ProgramAddresses struct {
	programID      solana.PublicKey
	truthProgramID solana.PublicKey
}

// EventAccounts are the derived accounts owned by one event.
type EventAccounts struct {
	Event           solana.PublicKey
	CollateralVault solana.PublicKey
	TrueMint        solana.PublicKey
	FalseMint       solana.PublicKey
	MintAuthority   solana.PublicKey
}

// NewProgramAddresses parses both program ids
func NewProgramAddresses(programID, truthProgramID string) (*ProgramAddresses, error) {
	program, err := solana.PublicKeyFromBase58(programID)
	if err != nil {
		return nil, fmt.Errorf("invalid program ID: %w", err)
	}
	truth, err := solana.PublicKeyFromBase58(truthProgramID)
	if err != nil {
		return nil, fmt.Errorf("invalid truth program ID: %w", err)
	}
	return &ProgramAddresses{programID: program, truthProgramID: truth}, nil
}

// ProgramID returns the settlement program id
func (p *ProgramAddresses) ProgramID() solana.PublicKey {
	return p.programID
}

// TruthProgramID returns the oracle program id
func (p *ProgramAddresses) TruthProgramID() solana.PublicKey {
	return p.truthProgramID
}

func (p *ProgramAddresses) find(program solana.PublicKey, what string, seeds ...[]byte) (solana.PublicKey, error) {
	pda, _, err := solana.FindProgramAddress(seeds, program)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("failed to derive %s PDA: %w", what, err)
	}
	return pda, nil
}

// EventCounter derives the per-creator counter address
func (p *ProgramAddresses) EventCounter(creator solana.PublicKey) (solana.PublicKey, error) {
	return p.find(p.programID, "event counter", seedEventCounter, creator.Bytes())
}

// Event derives the address of event `id` of creator
func (p *ProgramAddresses) Event(creator solana.PublicKey, id uint64) (solana.PublicKey, error) {
	idBytes := make([]byte, 8)
	binary.LittleEndian.PutUint64(idBytes, id)
	return p.find(p.programID, "event", seedEvent, creator.Bytes(), idBytes)
}

// EventAccounts derives the vault, both mints and the mint authority of an event
func (p *ProgramAddresses) EventAccounts(event solana.PublicKey) (*EventAccounts, error) {
	vault, err := p.find(p.programID, "collateral vault", seedCollateralVault, event.Bytes())
	if err != nil {
		return nil, err
	}
	trueMint, err := p.find(p.programID, "true mint", seedTrueMint, event.Bytes())
	if err != nil {
		return nil, err
	}
	falseMint, err := p.find(p.programID, "false mint", seedFalseMint, event.Bytes())
	if err != nil {
		return nil, err
	}
	authority, err := p.find(p.programID, "mint authority", seedMintAuthority, event.Bytes())
	if err != nil {
		return nil, err
	}

	return &EventAccounts{
		Event:           event,
		CollateralVault: vault,
		TrueMint:        trueMint,
		FalseMint:       falseMint,
		MintAuthority:   authority,
	}, nil
}

// TruthVault derives the payout vault of an oracle question
func (p *ProgramAddresses) TruthVault(question solana.PublicKey) (solana.PublicKey, error) {
	return p.find(p.truthProgramID, "truth vault", seedTruthVault, question.Bytes())
}

// TruthQuestion derives question `id` asked by asker on the oracle program
func (p *ProgramAddresses) TruthQuestion(asker solana.PublicKey, id uint64) (solana.PublicKey, error) {
	idBytes := make([]byte, 8)
	binary.LittleEndian.PutUint64(idBytes, id)
	return p.find(p.truthProgramID, "truth question", seedTruthQuestion, asker.Bytes(), idBytes)
}
