package pool

import (
	"errors"
	"fmt"
	"strings"

	"github.com/aman-zulfiqar/minidex/internal/custody"
	"github.com/gagliardetto/solana-go"
)

// DefaultFeeBps is the swap fee of a pool created without an explicit fee (0.30%).
const DefaultFeeBps = 30

var (
	ErrInvalidRecord     = errors.New("invalid pool record")
	ErrAuthorityMismatch = errors.New("pool authority does not match pool address")
	ErrInvalidDirection  = errors.New("invalid swap direction")
)

// Record is the persisted state of one pool. A pool is keyed by its ordered
// asset pair; (A, B) and (B, A) are different pools.
type Record struct {
	Address       solana.PublicKey `json:"address"`
	Authority     solana.PublicKey `json:"authority"`
	AssetA        solana.PublicKey `json:"asset_a"`
	AssetB        solana.PublicKey `json:"asset_b"`
	VaultA        solana.PublicKey `json:"vault_a"`
	VaultB        solana.PublicKey `json:"vault_b"`
	ShareMint     solana.PublicKey `json:"share_mint"`
	ReserveA      uint64           `json:"reserve_a"`
	ReserveB      uint64           `json:"reserve_b"`
	FeeBps        uint64           `json:"fee_bps"`
	AuthorityBump uint8            `json:"authority_bump"`
}

// Direction selects which reserve a swap pays into.
type Direction uint8

const (
	AToB Direction = iota
	BToA
)

func (d Direction) String() string {
	switch d {
	case AToB:
		return "a_to_b"
	case BToA:
		return "b_to_a"
	default:
		return fmt.Sprintf("direction(%d)", uint8(d))
	}
}

func (d Direction) Valid() bool {
	return d == AToB || d == BToA
}

// ParseDirection accepts "a_to_b" and "b_to_a" in any case.
func ParseDirection(s string) (Direction, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "a_to_b", "atob", "a2b":
		return AToB, nil
	case "b_to_a", "btoa", "b2a":
		return BToA, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrInvalidDirection, s)
	}
}

func (d Direction) MarshalText() ([]byte, error) {
	if !d.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrInvalidDirection, uint8(d))
	}
	return []byte(d.String()), nil
}

func (d *Direction) UnmarshalText(b []byte) error {
	v, err := ParseDirection(string(b))
	if err != nil {
		return err
	}
	*d = v
	return nil
}

// Reserves returns (reserveIn, reserveOut) for a swap in direction d.
func (r Record) Reserves(d Direction) (uint64, uint64) {
	if d == BToA {
		return r.ReserveB, r.ReserveA
	}
	return r.ReserveA, r.ReserveB
}

type AddLiquidityRequest struct {
	Owner     solana.PublicKey `json:"owner"`
	AmountA   uint64           `json:"amount_a"`
	AmountB   uint64           `json:"amount_b"`
	MinShares uint64           `json:"min_shares"`
}

type SwapRequest struct {
	Owner        solana.PublicKey `json:"owner"`
	AmountIn     uint64           `json:"amount_in"`
	MinAmountOut uint64           `json:"min_amount_out"`
	Direction    Direction        `json:"direction"`
}

type RemoveLiquidityRequest struct {
	Owner      solana.PublicKey `json:"owner"`
	Shares     uint64           `json:"shares"`
	MinAmountA uint64           `json:"min_amount_a"`
	MinAmountB uint64           `json:"min_amount_b"`
}

// Op names a pool transition.
type Op string

const (
	OpInitialize      Op = "initialize"
	OpAddLiquidity    Op = "add_liquidity"
	OpSwap            Op = "swap"
	OpRemoveLiquidity Op = "remove_liquidity"
)

// Receipt summarises what a transition moved.
type Receipt struct {
	Op        Op               `json:"op"`
	Pool      solana.PublicKey `json:"pool"`
	Owner     solana.PublicKey `json:"owner"`
	AmountA   uint64           `json:"amount_a,omitempty"`
	AmountB   uint64           `json:"amount_b,omitempty"`
	Shares    uint64           `json:"shares,omitempty"`
	AmountIn  uint64           `json:"amount_in,omitempty"`
	AmountOut uint64           `json:"amount_out,omitempty"`
	Direction string           `json:"direction,omitempty"`
}

// Transition is the result of a successful pool operation: the record to
// persist and the custody instructions that must commit with it.
type Transition struct {
	Record       Record                `json:"record"`
	Instructions []custody.Instruction `json:"instructions"`
	Receipt      Receipt               `json:"receipt"`
}
