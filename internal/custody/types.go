package custody

import (
	"context"
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go"
)

var (
	ErrUnauthorized       = errors.New("custody: authority does not control account")
	ErrInsufficientFunds  = errors.New("custody: insufficient funds")
	ErrUnknownAccount     = errors.New("custody: account not provisioned")
	ErrAlreadyProvisioned = errors.New("custody: account already provisioned")
	ErrAssetMismatch      = errors.New("custody: asset does not match account")
	ErrUnknownHold        = errors.New("custody: unknown hold")
	ErrBalanceOverflow    = errors.New("custody: balance overflow")
	ErrInvalidInstruction = errors.New("custody: invalid instruction")
)

// Kind identifies what an Instruction asks the custodian to do.
type Kind uint8

const (
	// KindProvisionVault opens account To holding Asset, controlled by Authority.
	KindProvisionVault Kind = iota + 1
	// KindProvisionMint creates the share asset Asset with mint authority Authority.
	KindProvisionMint
	// KindTransfer moves Amount of Asset from From to To, signed by Authority.
	KindTransfer
	// KindMintTo issues Amount of Asset to To, signed by the mint authority.
	KindMintTo
	// KindBurn destroys Amount of Asset held by From, signed by From.
	KindBurn
)

func (k Kind) String() string {
	switch k {
	case KindProvisionVault:
		return "provision_vault"
	case KindProvisionMint:
		return "provision_mint"
	case KindTransfer:
		return "transfer"
	case KindMintTo:
		return "mint_to"
	case KindBurn:
		return "burn"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// Instruction is a single fund movement requested by a pool transition.
// Unused fields are left as the zero key.
type Instruction struct {
	Kind      Kind             `json:"kind"`
	Asset     solana.PublicKey `json:"asset"`
	From      solana.PublicKey `json:"from"`
	To        solana.PublicKey `json:"to"`
	Authority solana.PublicKey `json:"authority"`
	Amount    uint64           `json:"amount,omitempty"`
}

func ProvisionVault(vault, asset, authority solana.PublicKey) Instruction {
	return Instruction{Kind: KindProvisionVault, Asset: asset, To: vault, Authority: authority}
}

func ProvisionMint(mint, authority solana.PublicKey) Instruction {
	return Instruction{Kind: KindProvisionMint, Asset: mint, Authority: authority}
}

func Transfer(asset, from, to, authority solana.PublicKey, amount uint64) Instruction {
	return Instruction{Kind: KindTransfer, Asset: asset, From: from, To: to, Authority: authority, Amount: amount}
}

func MintTo(mint, to, authority solana.PublicKey, amount uint64) Instruction {
	return Instruction{Kind: KindMintTo, Asset: mint, To: to, Authority: authority, Amount: amount}
}

func Burn(mint, from solana.PublicKey, amount uint64) Instruction {
	return Instruction{Kind: KindBurn, Asset: mint, From: from, Authority: from, Amount: amount}
}

// HoldID names a prepared batch of instructions.
type HoldID string

// Custodian holds and moves assets on instruction. Prepare validates a whole
// batch and reserves every debit; the batch then either commits as a unit or
// is aborted and leaves no trace.
type Custodian interface {
	// Supply returns the outstanding amount of a share asset.
	Supply(ctx context.Context, mint solana.PublicKey) (uint64, error)
	// Balance returns what owner holds of asset.
	Balance(ctx context.Context, owner, asset solana.PublicKey) (uint64, error)
	Prepare(ctx context.Context, batch []Instruction) (HoldID, error)
	Commit(ctx context.Context, id HoldID) error
	Abort(ctx context.Context, id HoldID) error
}
