package pool

import (
	"bytes"
	"math"
	"testing"

	"github.com/aman-zulfiqar/minidex/internal/amm"
	"github.com/aman-zulfiqar/minidex/internal/custody"
	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func key(b byte) solana.PublicKey {
	return solana.PublicKeyFromBytes(bytes.Repeat([]byte{b}, solana.PublicKeyLength))
}

var (
	assetA = key(1)
	assetB = key(2)
	trader = key(7)
)

func newPool(t *testing.T, reserveA, reserveB uint64) (*Machine, Record) {
	t.Helper()
	m := NewMachine(solana.PublicKey{})
	tr, err := m.Initialize(assetA, assetB, DefaultFeeBps)
	require.NoError(t, err)
	rec := tr.Record
	rec.ReserveA = reserveA
	rec.ReserveB = reserveB
	return m, rec
}

func TestInitialize(t *testing.T) {
	m := NewMachine(solana.PublicKey{})
	assert.Equal(t, DefaultProgramID, m.ProgramID())

	tr, err := m.Initialize(assetA, assetB, 30)
	require.NoError(t, err)

	rec := tr.Record
	addrs, err := DeriveAddresses(DefaultProgramID, assetA, assetB)
	require.NoError(t, err)
	assert.Equal(t, addrs.Pool, rec.Address)
	assert.Equal(t, addrs.Authority, rec.Authority)
	assert.Equal(t, addrs.AuthorityBump, rec.AuthorityBump)
	assert.Zero(t, rec.ReserveA)
	assert.Zero(t, rec.ReserveB)
	assert.Equal(t, uint64(30), rec.FeeBps)
	assert.NoError(t, VerifyAuthority(DefaultProgramID, rec))

	require.Len(t, tr.Instructions, 3)
	assert.Equal(t, custody.ProvisionVault(rec.VaultA, assetA, rec.Authority), tr.Instructions[0])
	assert.Equal(t, custody.ProvisionVault(rec.VaultB, assetB, rec.Authority), tr.Instructions[1])
	assert.Equal(t, custody.ProvisionMint(rec.ShareMint, rec.Authority), tr.Instructions[2])

	reversed, err := m.Initialize(assetB, assetA, 30)
	require.NoError(t, err)
	assert.NotEqual(t, rec.Address, reversed.Record.Address)
}

func TestInitialize_Rejects(t *testing.T) {
	m := NewMachine(solana.PublicKey{})

	_, err := m.Initialize(assetA, assetA, 30)
	assert.ErrorIs(t, err, amm.ErrInvalidTokenMints)

	_, err = m.Initialize(assetA, assetB, 10_001)
	assert.ErrorIs(t, err, amm.ErrInvalidCalculation)
}

func TestAddLiquidity_FirstDeposit(t *testing.T) {
	m, rec := newPool(t, 0, 0)
	before := rec

	tr, err := m.AddLiquidity(rec, 0, AddLiquidityRequest{Owner: trader, AmountA: 4, AmountB: 9, MinShares: 6})
	require.NoError(t, err)
	assert.Equal(t, before, rec)

	assert.Equal(t, uint64(4), tr.Record.ReserveA)
	assert.Equal(t, uint64(9), tr.Record.ReserveB)
	assert.Equal(t, uint64(6), tr.Receipt.Shares)
	assert.Equal(t, []custody.Instruction{
		custody.Transfer(assetA, trader, rec.VaultA, trader, 4),
		custody.Transfer(assetB, trader, rec.VaultB, trader, 9),
		custody.MintTo(rec.ShareMint, trader, rec.Authority, 6),
	}, tr.Instructions)
}

func TestAddLiquidity_Proportional(t *testing.T) {
	m, rec := newPool(t, 1000, 2000)

	tr, err := m.AddLiquidity(rec, 100, AddLiquidityRequest{Owner: trader, AmountA: 100, AmountB: 200})
	require.NoError(t, err)
	assert.Equal(t, uint64(10), tr.Receipt.Shares)
	assert.Equal(t, uint64(1100), tr.Record.ReserveA)
	assert.Equal(t, uint64(2200), tr.Record.ReserveB)
}

func TestAddLiquidity_Rejects(t *testing.T) {
	m, rec := newPool(t, 1000, 2000)
	before := rec

	full := rec
	full.ReserveA = math.MaxUint64
	full.ReserveB = math.MaxUint64

	tests := []struct {
		name    string
		rec     Record
		supply  uint64
		req     AddLiquidityRequest
		wantErr error
	}{
		{name: "zero amount a", rec: rec, supply: 100, req: AddLiquidityRequest{Owner: trader, AmountB: 10}, wantErr: amm.ErrInvalidCalculation},
		{name: "zero amount b", rec: rec, supply: 100, req: AddLiquidityRequest{Owner: trader, AmountA: 10}, wantErr: amm.ErrInvalidCalculation},
		{name: "slippage", rec: rec, supply: 100, req: AddLiquidityRequest{Owner: trader, AmountA: 100, AmountB: 200, MinShares: 11}, wantErr: amm.ErrSlippageExceeded},
		{name: "reserve overflow", rec: full, supply: 1, req: AddLiquidityRequest{Owner: trader, AmountA: 2, AmountB: 2}, wantErr: amm.ErrMathOverflow},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr, err := m.AddLiquidity(tt.rec, tt.supply, tt.req)
			require.ErrorIs(t, err, tt.wantErr)
			assert.Nil(t, tr)
		})
	}
	assert.Equal(t, before, rec)
}

func TestSwap(t *testing.T) {
	m, rec := newPool(t, 1000, 1000)
	before := rec

	tr, err := m.Swap(rec, SwapRequest{Owner: trader, AmountIn: 100, MinAmountOut: 90, Direction: AToB})
	require.NoError(t, err)
	assert.Equal(t, before, rec)
	assert.Equal(t, uint64(90), tr.Receipt.AmountOut)
	assert.Equal(t, uint64(1100), tr.Record.ReserveA)
	assert.Equal(t, uint64(910), tr.Record.ReserveB)
	assert.Equal(t, []custody.Instruction{
		custody.Transfer(assetA, trader, rec.VaultA, trader, 100),
		custody.Transfer(assetB, rec.VaultB, trader, rec.Authority, 90),
	}, tr.Instructions)

	tr, err = m.Swap(rec, SwapRequest{Owner: trader, AmountIn: 100, Direction: BToA})
	require.NoError(t, err)
	assert.Equal(t, uint64(910), tr.Record.ReserveA)
	assert.Equal(t, uint64(1100), tr.Record.ReserveB)
	assert.Equal(t, []custody.Instruction{
		custody.Transfer(assetB, trader, rec.VaultB, trader, 100),
		custody.Transfer(assetA, rec.VaultA, trader, rec.Authority, 90),
	}, tr.Instructions)
}

func TestSwap_Rejects(t *testing.T) {
	m, rec := newPool(t, 1000, 1000)
	_, empty := newPool(t, 0, 0)
	_, deep := newPool(t, 1_000_000, 1000)
	_, huge := newPool(t, 1, math.MaxUint64>>1)

	tests := []struct {
		name    string
		rec     Record
		req     SwapRequest
		wantErr error
	}{
		{name: "zero input", rec: rec, req: SwapRequest{Owner: trader}, wantErr: amm.ErrInvalidCalculation},
		{name: "bad direction", rec: rec, req: SwapRequest{Owner: trader, AmountIn: 1, Direction: Direction(9)}, wantErr: ErrInvalidDirection},
		{name: "slippage", rec: rec, req: SwapRequest{Owner: trader, AmountIn: 100, MinAmountOut: 91}, wantErr: amm.ErrSlippageExceeded},
		{name: "empty pool", rec: empty, req: SwapRequest{Owner: trader, AmountIn: 100}, wantErr: amm.ErrInsufficientLiquidity},
		{name: "zero output", rec: deep, req: SwapRequest{Owner: trader, AmountIn: 1}, wantErr: amm.ErrInvalidCalculation},
		{name: "zero output below minimum", rec: deep, req: SwapRequest{Owner: trader, AmountIn: 1, MinAmountOut: 1}, wantErr: amm.ErrSlippageExceeded},
		{name: "overflow", rec: huge, req: SwapRequest{Owner: trader, AmountIn: math.MaxUint64}, wantErr: amm.ErrMathOverflow},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := tt.rec
			tr, err := m.Swap(tt.rec, tt.req)
			require.ErrorIs(t, err, tt.wantErr)
			assert.Nil(t, tr)
			assert.Equal(t, before, tt.rec)
		})
	}
}

func TestRemoveLiquidity(t *testing.T) {
	m, rec := newPool(t, 1100, 2200)

	tr, err := m.RemoveLiquidity(rec, 110, RemoveLiquidityRequest{Owner: trader, Shares: 10, MinAmountA: 100, MinAmountB: 200})
	require.NoError(t, err)
	assert.Equal(t, uint64(1000), tr.Record.ReserveA)
	assert.Equal(t, uint64(2000), tr.Record.ReserveB)
	assert.Equal(t, []custody.Instruction{
		custody.Burn(rec.ShareMint, trader, 10),
		custody.Transfer(assetA, rec.VaultA, trader, rec.Authority, 100),
		custody.Transfer(assetB, rec.VaultB, trader, rec.Authority, 200),
	}, tr.Instructions)
	assert.Equal(t, uint64(1100), rec.ReserveA)
}

func TestRemoveLiquidity_Rejects(t *testing.T) {
	m, rec := newPool(t, 1100, 2200)

	_, err := m.RemoveLiquidity(rec, 110, RemoveLiquidityRequest{Owner: trader, Shares: 10, MinAmountA: 101})
	assert.ErrorIs(t, err, amm.ErrSlippageExceeded)

	_, err = m.RemoveLiquidity(rec, 110, RemoveLiquidityRequest{Owner: trader, Shares: 10, MinAmountB: 201})
	assert.ErrorIs(t, err, amm.ErrSlippageExceeded)

	_, err = m.RemoveLiquidity(rec, 110, RemoveLiquidityRequest{Owner: trader})
	assert.ErrorIs(t, err, amm.ErrInvalidCalculation)

	_, err = m.RemoveLiquidity(rec, 0, RemoveLiquidityRequest{Owner: trader, Shares: 1})
	assert.ErrorIs(t, err, amm.ErrInsufficientLiquidity)

	_, err = m.RemoveLiquidity(rec, 110, RemoveLiquidityRequest{Owner: trader, Shares: 111})
	assert.ErrorIs(t, err, amm.ErrMathOverflow)
}

func TestOperations_RejectForeignAuthority(t *testing.T) {
	m, rec := newPool(t, 1000, 1000)
	rec.Authority = key(9)

	_, err := m.Swap(rec, SwapRequest{Owner: trader, AmountIn: 10})
	assert.ErrorIs(t, err, ErrAuthorityMismatch)

	_, err = m.AddLiquidity(rec, 10, AddLiquidityRequest{Owner: trader, AmountA: 1, AmountB: 1})
	assert.ErrorIs(t, err, ErrAuthorityMismatch)

	_, err = m.RemoveLiquidity(rec, 10, RemoveLiquidityRequest{Owner: trader, Shares: 1})
	assert.ErrorIs(t, err, ErrAuthorityMismatch)
}

func TestQuote(t *testing.T) {
	m, rec := newPool(t, 1000, 1000)

	q, err := m.Quote(rec, 100, AToB, 100)
	require.NoError(t, err)
	assert.Equal(t, uint64(90), q.AmountOut)
	assert.Equal(t, uint64(89), q.MinAmountOut)

	_, err = m.Quote(rec, 100, Direction(3), 100)
	assert.ErrorIs(t, err, ErrInvalidDirection)
}

func TestParseDirection(t *testing.T) {
	d, err := ParseDirection("A_TO_B")
	require.NoError(t, err)
	assert.Equal(t, AToB, d)

	d, err = ParseDirection(" b_to_a ")
	require.NoError(t, err)
	assert.Equal(t, BToA, d)

	_, err = ParseDirection("sideways")
	assert.ErrorIs(t, err, ErrInvalidDirection)
}
