package pool

import (
	"github.com/aman-zulfiqar/minidex/internal/amm"
	"github.com/aman-zulfiqar/minidex/internal/custody"
	"github.com/gagliardetto/solana-go"
)

// Machine computes pool state transitions. It holds no state of its own and
// never mutates the record it is given: every operation either returns a new
// record together with the custody instructions that must commit with it, or
// an error and nothing else.
//
// Callers serialise operations on the same pool.
type Machine struct {
	programID solana.PublicKey
}

func NewMachine(programID solana.PublicKey) *Machine {
	if programID.IsZero() {
		programID = DefaultProgramID
	}
	return &Machine{programID: programID}
}

func (m *Machine) ProgramID() solana.PublicKey {
	return m.programID
}

// Initialize creates the record of a new, empty pool for (assetA, assetB).
func (m *Machine) Initialize(assetA, assetB solana.PublicKey, feeBps uint64) (*Transition, error) {
	if assetA.Equals(assetB) {
		return nil, amm.ErrInvalidTokenMints
	}
	if feeBps > amm.BpsDenominator {
		return nil, amm.ErrInvalidCalculation
	}

	addrs, err := DeriveAddresses(m.programID, assetA, assetB)
	if err != nil {
		return nil, err
	}

	rec := Record{
		Address:       addrs.Pool,
		Authority:     addrs.Authority,
		AssetA:        assetA,
		AssetB:        assetB,
		VaultA:        addrs.VaultA,
		VaultB:        addrs.VaultB,
		ShareMint:     addrs.ShareMint,
		FeeBps:        feeBps,
		AuthorityBump: addrs.AuthorityBump,
	}

	return &Transition{
		Record: rec,
		Instructions: []custody.Instruction{
			custody.ProvisionVault(rec.VaultA, assetA, rec.Authority),
			custody.ProvisionVault(rec.VaultB, assetB, rec.Authority),
			custody.ProvisionMint(rec.ShareMint, rec.Authority),
		},
		Receipt: Receipt{Op: OpInitialize, Pool: rec.Address},
	}, nil
}

// AddLiquidity deposits both assets and mints shares to the depositor.
// shareSupply is the share mint's current outstanding supply.
func (m *Machine) AddLiquidity(rec Record, shareSupply uint64, req AddLiquidityRequest) (*Transition, error) {
	if err := VerifyAuthority(m.programID, rec); err != nil {
		return nil, err
	}
	if req.AmountA == 0 || req.AmountB == 0 {
		return nil, amm.ErrInvalidCalculation
	}

	shares, err := amm.ComputeSharesForDeposit(req.AmountA, req.AmountB, rec.ReserveA, rec.ReserveB, shareSupply)
	if err != nil {
		return nil, err
	}
	if shares < req.MinShares {
		return nil, amm.ErrSlippageExceeded
	}

	reserveA, err := amm.CheckedAdd(rec.ReserveA, req.AmountA)
	if err != nil {
		return nil, err
	}
	reserveB, err := amm.CheckedAdd(rec.ReserveB, req.AmountB)
	if err != nil {
		return nil, err
	}

	next := rec
	next.ReserveA = reserveA
	next.ReserveB = reserveB

	return &Transition{
		Record: next,
		Instructions: []custody.Instruction{
			custody.Transfer(rec.AssetA, req.Owner, rec.VaultA, req.Owner, req.AmountA),
			custody.Transfer(rec.AssetB, req.Owner, rec.VaultB, req.Owner, req.AmountB),
			custody.MintTo(rec.ShareMint, req.Owner, rec.Authority, shares),
		},
		Receipt: Receipt{
			Op:      OpAddLiquidity,
			Pool:    rec.Address,
			Owner:   req.Owner,
			AmountA: req.AmountA,
			AmountB: req.AmountB,
			Shares:  shares,
		},
	}, nil
}

// Swap trades AmountIn of one asset for the other at the constant-product price.
func (m *Machine) Swap(rec Record, req SwapRequest) (*Transition, error) {
	if err := VerifyAuthority(m.programID, rec); err != nil {
		return nil, err
	}
	if req.AmountIn == 0 {
		return nil, amm.ErrInvalidCalculation
	}
	if !req.Direction.Valid() {
		return nil, ErrInvalidDirection
	}

	reserveIn, reserveOut := rec.Reserves(req.Direction)
	amountOut, err := amm.ComputeSwapOutput(req.AmountIn, reserveIn, reserveOut, rec.FeeBps)
	if err != nil {
		return nil, err
	}
	if amountOut < req.MinAmountOut {
		return nil, amm.ErrSlippageExceeded
	}
	if amountOut == 0 {
		return nil, amm.ErrInvalidCalculation
	}

	newIn, err := amm.CheckedAdd(reserveIn, req.AmountIn)
	if err != nil {
		return nil, err
	}
	newOut, err := amm.CheckedSub(reserveOut, amountOut)
	if err != nil {
		return nil, err
	}

	next := rec
	assetIn, vaultIn, assetOut, vaultOut := rec.AssetA, rec.VaultA, rec.AssetB, rec.VaultB
	if req.Direction == AToB {
		next.ReserveA, next.ReserveB = newIn, newOut
	} else {
		next.ReserveB, next.ReserveA = newIn, newOut
		assetIn, vaultIn, assetOut, vaultOut = rec.AssetB, rec.VaultB, rec.AssetA, rec.VaultA
	}

	return &Transition{
		Record: next,
		Instructions: []custody.Instruction{
			custody.Transfer(assetIn, req.Owner, vaultIn, req.Owner, req.AmountIn),
			custody.Transfer(assetOut, vaultOut, req.Owner, rec.Authority, amountOut),
		},
		Receipt: Receipt{
			Op:        OpSwap,
			Pool:      rec.Address,
			Owner:     req.Owner,
			AmountIn:  req.AmountIn,
			AmountOut: amountOut,
			Direction: req.Direction.String(),
		},
	}, nil
}

// RemoveLiquidity burns Shares and pays out the proportional reserves.
// shareSupply is the share mint's current outstanding supply.
func (m *Machine) RemoveLiquidity(rec Record, shareSupply uint64, req RemoveLiquidityRequest) (*Transition, error) {
	if err := VerifyAuthority(m.programID, rec); err != nil {
		return nil, err
	}

	amountA, amountB, err := amm.ComputeWithdrawAmounts(req.Shares, rec.ReserveA, rec.ReserveB, shareSupply)
	if err != nil {
		return nil, err
	}
	if amountA < req.MinAmountA || amountB < req.MinAmountB {
		return nil, amm.ErrSlippageExceeded
	}

	reserveA, err := amm.CheckedSub(rec.ReserveA, amountA)
	if err != nil {
		return nil, err
	}
	reserveB, err := amm.CheckedSub(rec.ReserveB, amountB)
	if err != nil {
		return nil, err
	}

	next := rec
	next.ReserveA = reserveA
	next.ReserveB = reserveB

	return &Transition{
		Record: next,
		Instructions: []custody.Instruction{
			custody.Burn(rec.ShareMint, req.Owner, req.Shares),
			custody.Transfer(rec.AssetA, rec.VaultA, req.Owner, rec.Authority, amountA),
			custody.Transfer(rec.AssetB, rec.VaultB, req.Owner, rec.Authority, amountB),
		},
		Receipt: Receipt{
			Op:      OpRemoveLiquidity,
			Pool:    rec.Address,
			Owner:   req.Owner,
			AmountA: amountA,
			AmountB: amountB,
			Shares:  req.Shares,
		},
	}, nil
}

// Quote prices a swap against rec without producing a transition.
func (m *Machine) Quote(rec Record, amountIn uint64, d Direction, slippageBps uint64) (*amm.Quote, error) {
	if !d.Valid() {
		return nil, ErrInvalidDirection
	}
	reserveIn, reserveOut := rec.Reserves(d)
	return amm.NewQuote(amountIn, reserveIn, reserveOut, rec.FeeBps, slippageBps)
}
