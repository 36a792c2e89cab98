package custody

import (
	"context"

	"github.com/gagliardetto/solana-go"
)

type BalanceEntry struct {
	Owner  solana.PublicKey
	Asset  solana.PublicKey
	Amount uint64
}

type VaultEntry struct {
	Address   solana.PublicKey
	Asset     solana.PublicKey
	Authority solana.PublicKey
}

type MintEntry struct {
	Address   solana.PublicKey
	Authority solana.PublicKey
	Supply    uint64
}

// Snapshot is committed ledger state. Load returns all of it; Save receives
// only the entries a single commit or funding changed.
type Snapshot struct {
	Balances []BalanceEntry
	Vaults   []VaultEntry
	Mints    []MintEntry
}

func (s *Snapshot) empty() bool {
	return len(s.Balances) == 0 && len(s.Vaults) == 0 && len(s.Mints) == 0
}

// Journal persists committed ledger state so a Ledger can be reopened after a
// restart. Holds are never journaled: a hold that was not committed before a
// crash leaves no trace.
type Journal interface {
	Load(ctx context.Context) (*Snapshot, error)
	// Save writes every entry of changes atomically.
	Save(ctx context.Context, changes *Snapshot) error
}
