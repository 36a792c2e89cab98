package service

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/aman-zulfiqar/minidex/internal/amm"
	"github.com/aman-zulfiqar/minidex/internal/custody"
	"github.com/aman-zulfiqar/minidex/internal/events"
	"github.com/aman-zulfiqar/minidex/internal/models"
	"github.com/aman-zulfiqar/minidex/internal/pool"
	"github.com/aman-zulfiqar/minidex/internal/store"
	"github.com/gagliardetto/solana-go"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func key(b byte) solana.PublicKey {
	return solana.PublicKeyFromBytes(bytes.Repeat([]byte{b}, solana.PublicKeyLength))
}

var (
	assetA = key(1)
	assetB = key(2)
	alice  = key(7)
	bob    = key(8)
)

type recorder struct {
	mu     sync.Mutex
	events []*models.PoolEvent
}

func (r *recorder) Publish(_ context.Context, ev *models.PoolEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

func (r *recorder) kinds() []models.EventKind {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.EventKind, 0, len(r.events))
	for _, ev := range r.events {
		out = append(out, ev.Kind)
	}
	return out
}

type fixture struct {
	svc    *Service
	events *recorder
}

func newFixture(t *testing.T, st store.PoolStore, cust custody.Custodian, limits Limits) *fixture {
	t.Helper()
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	rec := &recorder{}
	failing := events.SinkFunc(func(context.Context, *models.PoolEvent) error {
		return errors.New("sink down")
	})

	svc, err := New(Deps{
		Store:   st,
		Custody: cust,
		Sinks:   []events.Sink{rec, failing},
		Logger:  logger,
	}, Config{DefaultFeeBps: pool.DefaultFeeBps, Limits: limits})
	require.NoError(t, err)
	return &fixture{svc: svc, events: rec}
}

func defaultFixture(t *testing.T) *fixture {
	return newFixture(t, store.NewMemoryStore(), custody.NewLedger(nil), Limits{})
}

func (f *fixture) fund(t *testing.T, owner, asset solana.PublicKey, amount uint64) {
	t.Helper()
	_, err := f.svc.Fund(context.Background(), owner, asset, amount)
	require.NoError(t, err)
}

func (f *fixture) balance(t *testing.T, owner, asset solana.PublicKey) uint64 {
	t.Helper()
	v, err := f.svc.Balance(context.Background(), owner, asset)
	require.NoError(t, err)
	return v
}

// seeded returns a pool holding 1000/1000 deposited by alice.
func seeded(t *testing.T, f *fixture) *pool.Record {
	t.Helper()
	ctx := context.Background()
	rec, err := f.svc.CreatePool(ctx, assetA, assetB, nil)
	require.NoError(t, err)

	f.fund(t, alice, assetA, 1000)
	f.fund(t, alice, assetB, 1000)
	receipt, err := f.svc.AddLiquidity(ctx, rec.Address, pool.AddLiquidityRequest{Owner: alice, AmountA: 1000, AmountB: 1000, MinShares: 1000})
	require.NoError(t, err)
	require.Equal(t, uint64(1000), receipt.Shares)
	return rec
}

func TestService_Lifecycle(t *testing.T) {
	ctx := context.Background()
	f := defaultFixture(t)
	rec := seeded(t, f)
	assert.Equal(t, uint64(pool.DefaultFeeBps), rec.FeeBps)

	f.fund(t, bob, assetA, 100)
	receipt, err := f.svc.Swap(ctx, rec.Address, pool.SwapRequest{Owner: bob, AmountIn: 100, MinAmountOut: 90, Direction: pool.AToB})
	require.NoError(t, err)
	assert.Equal(t, uint64(90), receipt.AmountOut)
	assert.Equal(t, uint64(0), f.balance(t, bob, assetA))
	assert.Equal(t, uint64(90), f.balance(t, bob, assetB))

	got, err := f.svc.Get(ctx, rec.Address)
	require.NoError(t, err)
	assert.Equal(t, uint64(1100), got.ReserveA)
	assert.Equal(t, uint64(910), got.ReserveB)
	assert.Equal(t, got.ReserveA, f.balance(t, got.VaultA, assetA))
	assert.Equal(t, got.ReserveB, f.balance(t, got.VaultB, assetB))

	pos, err := f.svc.Position(ctx, rec.Address, alice)
	require.NoError(t, err)
	assert.Equal(t, uint64(1000), pos.Shares)
	assert.Equal(t, uint64(1000), pos.ShareSupply)
	assert.Equal(t, uint64(1100), pos.AmountA)
	assert.Equal(t, uint64(910), pos.AmountB)

	receipt, err = f.svc.RemoveLiquidity(ctx, rec.Address, pool.RemoveLiquidityRequest{Owner: alice, Shares: 1000, MinAmountA: 1100, MinAmountB: 910})
	require.NoError(t, err)
	assert.Equal(t, uint64(1100), receipt.AmountA)
	assert.Equal(t, uint64(910), receipt.AmountB)
	assert.Equal(t, uint64(1100), f.balance(t, alice, assetA))
	assert.Equal(t, uint64(910), f.balance(t, alice, assetB))

	got, err = f.svc.Get(ctx, rec.Address)
	require.NoError(t, err)
	assert.Zero(t, got.ReserveA)
	assert.Zero(t, got.ReserveB)

	pos, err = f.svc.Position(ctx, rec.Address, alice)
	require.NoError(t, err)
	assert.Zero(t, pos.Shares)
	assert.Zero(t, pos.ShareSupply)

	assert.Equal(t, []models.EventKind{
		models.EventPoolCreated,
		models.EventLiquidityAdded,
		models.EventSwap,
		models.EventLiquidityRemoved,
	}, f.events.kinds())

	list, err := f.svc.List(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestService_RejectedOperationsLeaveStateUnchanged(t *testing.T) {
	ctx := context.Background()
	f := defaultFixture(t)
	rec := seeded(t, f)
	before, err := f.svc.Get(ctx, rec.Address)
	require.NoError(t, err)
	f.fund(t, bob, assetA, 100)

	_, err = f.svc.Swap(ctx, rec.Address, pool.SwapRequest{Owner: bob, AmountIn: 100, MinAmountOut: 91})
	assert.ErrorIs(t, err, amm.ErrSlippageExceeded)

	_, err = f.svc.Swap(ctx, rec.Address, pool.SwapRequest{Owner: bob, AmountIn: 500})
	assert.ErrorIs(t, err, custody.ErrInsufficientFunds)

	_, err = f.svc.RemoveLiquidity(ctx, rec.Address, pool.RemoveLiquidityRequest{Owner: bob, Shares: 10})
	assert.ErrorIs(t, err, custody.ErrInsufficientFunds)

	_, err = f.svc.AddLiquidity(ctx, rec.Address, pool.AddLiquidityRequest{Owner: bob, AmountA: 10, AmountB: 10, MinShares: 11})
	assert.ErrorIs(t, err, amm.ErrSlippageExceeded)

	after, err := f.svc.Get(ctx, rec.Address)
	require.NoError(t, err)
	assert.Equal(t, before, after)
	assert.Equal(t, uint64(100), f.balance(t, bob, assetA))
	assert.Equal(t, uint64(1000), f.balance(t, after.VaultA, assetA))
	assert.Len(t, f.events.kinds(), 2)
}

func TestService_CreatePool(t *testing.T) {
	ctx := context.Background()
	f := defaultFixture(t)

	fee := uint64(100)
	rec, err := f.svc.CreatePool(ctx, assetA, assetB, &fee)
	require.NoError(t, err)
	assert.Equal(t, fee, rec.FeeBps)

	_, err = f.svc.CreatePool(ctx, assetA, assetB, nil)
	assert.ErrorIs(t, err, store.ErrPoolExists)

	_, err = f.svc.CreatePool(ctx, assetA, assetA, nil)
	assert.ErrorIs(t, err, amm.ErrInvalidTokenMints)

	_, err = f.svc.Get(ctx, key(99))
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestService_EventsNameWellKnownAssets(t *testing.T) {
	ctx := context.Background()
	f := defaultFixture(t)
	sol, err := pool.ParseAsset("SOL")
	require.NoError(t, err)
	usdc, err := pool.ParseAsset("USDC")
	require.NoError(t, err)

	_, err = f.svc.CreatePool(ctx, sol, usdc, nil)
	require.NoError(t, err)
	_, err = f.svc.CreatePool(ctx, assetA, assetB, nil)
	require.NoError(t, err)

	f.events.mu.Lock()
	defer f.events.mu.Unlock()
	require.Len(t, f.events.events, 2)
	assert.Equal(t, "SOL", f.events.events[0].SymbolA)
	assert.Equal(t, "USDC", f.events.events[0].SymbolB)
	assert.Empty(t, f.events.events[1].SymbolA)
}

type conflictStore struct {
	*store.MemoryStore
}

func (conflictStore) CompareAndSwap(context.Context, pool.Record, pool.Record) error {
	return store.ErrConflict
}

func TestService_StoreConflictReleasesHeldFunds(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemoryStore()
	ledger := custody.NewLedger(nil)
	healthy := newFixture(t, mem, ledger, Limits{})
	rec := seeded(t, healthy)

	f := newFixture(t, conflictStore{mem}, ledger, Limits{})
	f.fund(t, bob, assetA, 100)

	_, err := f.svc.Swap(ctx, rec.Address, pool.SwapRequest{Owner: bob, AmountIn: 100})
	assert.ErrorIs(t, err, store.ErrConflict)
	assert.Equal(t, uint64(100), f.balance(t, bob, assetA))
	assert.Equal(t, uint64(0), f.balance(t, bob, assetB))
}

type failingCommit struct {
	*custody.Ledger
}

func (failingCommit) Commit(context.Context, custody.HoldID) error {
	return errors.New("custody offline")
}

func TestService_CommitFailureRollsBackRecord(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemoryStore()
	ledger := custody.NewLedger(nil)
	healthy := newFixture(t, mem, ledger, Limits{})
	rec := seeded(t, healthy)
	before, err := mem.Get(ctx, rec.Address)
	require.NoError(t, err)

	f := newFixture(t, mem, failingCommit{ledger}, Limits{})
	_, err = f.svc.Fund(ctx, bob, assetA, 100)
	require.NoError(t, err)

	_, err = f.svc.Swap(ctx, rec.Address, pool.SwapRequest{Owner: bob, AmountIn: 100})
	require.Error(t, err)

	after, err := mem.Get(ctx, rec.Address)
	require.NoError(t, err)
	assert.Equal(t, before, after)
	assert.Equal(t, uint64(100), f.balance(t, bob, assetA))
}

func TestService_CreatePoolCommitFailureRemovesRecord(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemoryStore()
	ledger := custody.NewLedger(nil)

	f := newFixture(t, mem, failingCommit{ledger}, Limits{})
	_, err := f.svc.CreatePool(ctx, assetA, assetB, nil)
	require.Error(t, err)

	list, err := mem.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, list)

	// The aborted hold released its provisioning claims.
	healthy := newFixture(t, mem, ledger, Limits{})
	rec, err := healthy.svc.CreatePool(ctx, assetA, assetB, nil)
	require.NoError(t, err)
	supply, err := ledger.Supply(ctx, rec.ShareMint)
	require.NoError(t, err)
	assert.Zero(t, supply)
}

// savedState is a custody journal that outlives the ledgers opened over it.
type savedState struct {
	mu       sync.Mutex
	balances map[[2]solana.PublicKey]uint64
	vaults   map[solana.PublicKey]custody.VaultEntry
	mints    map[solana.PublicKey]custody.MintEntry
}

func newSavedState() *savedState {
	return &savedState{
		balances: make(map[[2]solana.PublicKey]uint64),
		vaults:   make(map[solana.PublicKey]custody.VaultEntry),
		mints:    make(map[solana.PublicKey]custody.MintEntry),
	}
}

func (j *savedState) Load(context.Context) (*custody.Snapshot, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	snap := &custody.Snapshot{}
	for k, amount := range j.balances {
		snap.Balances = append(snap.Balances, custody.BalanceEntry{Owner: k[0], Asset: k[1], Amount: amount})
	}
	for _, v := range j.vaults {
		snap.Vaults = append(snap.Vaults, v)
	}
	for _, m := range j.mints {
		snap.Mints = append(snap.Mints, m)
	}
	return snap, nil
}

func (j *savedState) Save(_ context.Context, changes *custody.Snapshot) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	for _, b := range changes.Balances {
		j.balances[[2]solana.PublicKey{b.Owner, b.Asset}] = b.Amount
	}
	for _, v := range changes.Vaults {
		j.vaults[v.Address] = v
	}
	for _, m := range changes.Mints {
		j.mints[m.Address] = m
	}
	return nil
}

func openLedger(t *testing.T, j custody.Journal) *custody.Ledger {
	t.Helper()
	l, err := custody.OpenLedger(context.Background(), j, nil)
	require.NoError(t, err)
	return l
}

func TestService_RestartKeepsPoolsUsable(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemoryStore()
	saved := newSavedState()

	first := newFixture(t, mem, openLedger(t, saved), Limits{})
	rec := seeded(t, first)
	first.fund(t, bob, assetA, 200)
	_, err := first.svc.Swap(ctx, rec.Address, pool.SwapRequest{Owner: bob, AmountIn: 100, MinAmountOut: 90})
	require.NoError(t, err)

	// Same records, same journal, fresh process.
	f := newFixture(t, mem, openLedger(t, saved), Limits{})
	require.NoError(t, f.svc.Reconcile(ctx))

	n, err := f.svc.Bootstrap(ctx, []PoolConfig{{Name: "a-b", AssetA: assetA.String(), AssetB: assetB.String()}})
	require.NoError(t, err)
	assert.Zero(t, n)

	pos, err := f.svc.Position(ctx, rec.Address, alice)
	require.NoError(t, err)
	assert.Equal(t, uint64(1000), pos.Shares)
	assert.Equal(t, uint64(1100), pos.AmountA)
	assert.Equal(t, uint64(910), pos.AmountB)
	assert.Equal(t, uint64(100), f.balance(t, bob, assetA))
	assert.Equal(t, uint64(90), f.balance(t, bob, assetB))

	_, err = f.svc.Swap(ctx, rec.Address, pool.SwapRequest{Owner: bob, AmountIn: 100})
	require.NoError(t, err)

	_, err = f.svc.RemoveLiquidity(ctx, rec.Address, pool.RemoveLiquidityRequest{Owner: alice, Shares: 1000})
	require.NoError(t, err)

	got, err := f.svc.Get(ctx, rec.Address)
	require.NoError(t, err)
	assert.Zero(t, got.ReserveA)
	assert.Zero(t, got.ReserveB)
	require.NoError(t, f.svc.Reconcile(ctx))
}

func TestService_ReconcileDetectsLostCustody(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemoryStore()
	seeded(t, newFixture(t, mem, custody.NewLedger(nil), Limits{}))

	// Records survived, custody did not.
	f := newFixture(t, mem, custody.NewLedger(nil), Limits{})
	err := f.svc.Reconcile(ctx)
	assert.ErrorIs(t, err, ErrCustodyMismatch)
	assert.ErrorIs(t, err, custody.ErrUnknownAccount)

	assert.NoError(t, defaultFixture(t).svc.Reconcile(ctx))
}

func TestService_Limits(t *testing.T) {
	ctx := context.Background()

	f := newFixture(t, store.NewMemoryStore(), custody.NewLedger(nil), Limits{AllowedAssets: []solana.PublicKey{assetA}})
	_, err := f.svc.CreatePool(ctx, assetA, assetB, nil)
	assert.ErrorIs(t, err, ErrRiskRejected)

	f = newFixture(t, store.NewMemoryStore(), custody.NewLedger(nil), Limits{MaxPriceImpactBps: 1500, MaxSlippageBps: 100})
	rec := seeded(t, f)
	f.fund(t, bob, assetA, 1000)

	// 300 in returns 230: 23% impact
	_, err = f.svc.Swap(ctx, rec.Address, pool.SwapRequest{Owner: bob, AmountIn: 300})
	assert.ErrorIs(t, err, ErrRiskRejected)
	assert.Equal(t, uint64(1000), f.balance(t, bob, assetA))

	// 100 in returns 90: 10% impact
	_, err = f.svc.Swap(ctx, rec.Address, pool.SwapRequest{Owner: bob, AmountIn: 100})
	assert.NoError(t, err)

	_, err = f.svc.Quote(ctx, rec.Address, 10, pool.AToB, 200)
	assert.ErrorIs(t, err, ErrRiskRejected)

	q, err := f.svc.Quote(ctx, rec.Address, 10, pool.AToB, 100)
	require.NoError(t, err)
	assert.NotZero(t, q.AmountOut)
}

func TestService_ConcurrentSwapsKeepReservesInSync(t *testing.T) {
	ctx := context.Background()
	f := defaultFixture(t)
	rec := seeded(t, f)

	traders := make([]solana.PublicKey, 8)
	for i := range traders {
		traders[i] = key(byte(100 + i))
		f.fund(t, traders[i], assetA, 50)
		f.fund(t, traders[i], assetB, 50)
	}

	var wg sync.WaitGroup
	for i, tr := range traders {
		wg.Add(1)
		go func(i int, owner solana.PublicKey) {
			defer wg.Done()
			dir := pool.AToB
			if i%2 == 1 {
				dir = pool.BToA
			}
			for j := 0; j < 5; j++ {
				_, _ = f.svc.Swap(ctx, rec.Address, pool.SwapRequest{Owner: owner, AmountIn: 10, Direction: dir})
			}
		}(i, tr)
	}
	wg.Wait()

	got, err := f.svc.Get(ctx, rec.Address)
	require.NoError(t, err)
	assert.Equal(t, got.ReserveA, f.balance(t, got.VaultA, assetA))
	assert.Equal(t, got.ReserveB, f.balance(t, got.VaultB, assetB))
	assert.GreaterOrEqual(t, got.ReserveA*got.ReserveB, uint64(1000*1000))
}

type bareCustodian struct {
	custody.Custodian
}

func TestService_FundUnsupported(t *testing.T) {
	f := newFixture(t, store.NewMemoryStore(), bareCustodian{custody.NewLedger(nil)}, Limits{})
	_, err := f.svc.Fund(context.Background(), alice, assetA, 1)
	assert.ErrorIs(t, err, ErrFundingUnsupported)
}

func TestService_Bootstrap(t *testing.T) {
	ctx := context.Background()
	f := defaultFixture(t)

	path := filepath.Join(t.TempDir(), "pools.json")
	body := `[
		{"name": "a-b", "asset_a": "` + assetA.String() + `", "asset_b": "` + assetB.String() + `", "fee_bps": 25},
		{"name": "b-a", "asset_a": "` + assetB.String() + `", "asset_b": "` + assetA.String() + `"},
		{"name": "dup", "asset_a": "` + assetA.String() + `", "asset_b": "` + assetB.String() + `"}
	]`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	configs, err := LoadPoolConfigs(path)
	require.NoError(t, err)
	require.Len(t, configs, 3)

	n, err := f.svc.Bootstrap(ctx, configs)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	list, err := f.svc.List(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 2)

	_, err = f.svc.Bootstrap(ctx, []PoolConfig{{Name: "bad", AssetA: "nope", AssetB: assetB.String()}})
	assert.Error(t, err)
}

func TestNew_Validates(t *testing.T) {
	_, err := New(Deps{Custody: custody.NewLedger(nil)}, Config{})
	assert.Error(t, err)

	_, err = New(Deps{Store: store.NewMemoryStore()}, Config{})
	assert.Error(t, err)

	_, err = New(Deps{Store: store.NewMemoryStore(), Custody: custody.NewLedger(nil)}, Config{DefaultFeeBps: 10_001})
	assert.Error(t, err)
}
