package service

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/aman-zulfiqar/minidex/internal/amm"
	"github.com/aman-zulfiqar/minidex/internal/constants"
	"github.com/aman-zulfiqar/minidex/internal/custody"
	"github.com/aman-zulfiqar/minidex/internal/events"
	"github.com/aman-zulfiqar/minidex/internal/models"
	"github.com/aman-zulfiqar/minidex/internal/pool"
	"github.com/aman-zulfiqar/minidex/internal/store"
	"github.com/gagliardetto/solana-go"
	"github.com/sirupsen/logrus"
)

var (
	ErrRiskRejected       = errors.New("rejected by risk limits")
	ErrFundingUnsupported = errors.New("custodian does not support funding")
	ErrCustodyMismatch    = errors.New("custody does not back pool record")
)

// Funder is implemented by custodians that can credit accounts from outside
// the pool system, such as the in-memory ledger used in development.
type Funder interface {
	Fund(ctx context.Context, owner, asset solana.PublicKey, amount uint64) (uint64, error)
}

// Deps contains the collaborators of a Service.
type Deps struct {
	Machine *pool.Machine
	Store   store.PoolStore
	Custody custody.Custodian
	Sinks   []events.Sink // optional, best-effort
	Logger  *logrus.Logger
}

// Config holds service level policy.
type Config struct {
	DefaultFeeBps uint64
	Limits        Limits
}

// Service runs pool operations end to end: it serialises work per pool,
// computes the transition, and commits the record together with the custody
// instructions.
type Service struct {
	machine    *pool.Machine
	store      store.PoolStore
	custody    custody.Custodian
	sinks      []events.Sink
	logger     *logrus.Logger
	defaultFee uint64
	limits     Limits

	locks sync.Map // solana.PublicKey -> *sync.Mutex
}

func New(deps Deps, cfg Config) (*Service, error) {
	if deps.Store == nil {
		return nil, fmt.Errorf("pool store is nil")
	}
	if deps.Custody == nil {
		return nil, fmt.Errorf("custodian is nil")
	}
	if cfg.DefaultFeeBps > amm.BpsDenominator {
		return nil, fmt.Errorf("default fee %d bps out of range", cfg.DefaultFeeBps)
	}
	if deps.Machine == nil {
		deps.Machine = pool.NewMachine(pool.DefaultProgramID)
	}
	if deps.Logger == nil {
		deps.Logger = logrus.StandardLogger()
	}

	return &Service{
		machine:    deps.Machine,
		store:      deps.Store,
		custody:    deps.Custody,
		sinks:      deps.Sinks,
		logger:     deps.Logger,
		defaultFee: cfg.DefaultFeeBps,
		limits:     cfg.Limits,
	}, nil
}

func (s *Service) ProgramID() solana.PublicKey {
	return s.machine.ProgramID()
}

// lock serialises operations on one pool and returns the unlock function.
func (s *Service) lock(address solana.PublicKey) func() {
	v, _ := s.locks.LoadOrStore(address, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

// CreatePool initializes the pool for the ordered pair (assetA, assetB). A nil
// feeBps selects the configured default.
func (s *Service) CreatePool(ctx context.Context, assetA, assetB solana.PublicKey, feeBps *uint64) (*pool.Record, error) {
	if err := s.limits.checkAssets(assetA, assetB); err != nil {
		return nil, err
	}
	fee := s.defaultFee
	if feeBps != nil {
		fee = *feeBps
	}

	// 1. Compute the new record and its provisioning instructions
	tr, err := s.machine.Initialize(assetA, assetB, fee)
	if err != nil {
		return nil, err
	}

	unlock := s.lock(tr.Record.Address)
	defer unlock()

	// 2. Refuse to provision twice
	if _, err := s.store.Get(ctx, tr.Record.Address); err == nil {
		return nil, store.ErrPoolExists
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	// 3. Hold custody, persist, then release
	hold, err := s.custody.Prepare(ctx, tr.Instructions)
	if err != nil {
		return nil, fmt.Errorf("custody prepare: %w", err)
	}
	if err := s.store.Create(ctx, tr.Record); err != nil {
		s.abort(ctx, hold)
		return nil, err
	}
	bg := context.WithoutCancel(ctx)
	if err := s.custody.Commit(bg, hold); err != nil {
		log := s.logger.WithError(err).WithField("pool", tr.Record.Address)
		if rbErr := s.store.Delete(bg, tr.Record.Address); rbErr != nil {
			log.WithField("rollback_error", rbErr).Error("custody commit failed and pool record removal failed")
		} else {
			log.Warn("custody commit failed, pool record removed")
		}
		s.abort(ctx, hold)
		return nil, fmt.Errorf("custody commit: %w", err)
	}

	s.logger.WithFields(logrus.Fields{
		"pool":    tr.Record.Address,
		"asset_a": assetA,
		"asset_b": assetB,
		"fee_bps": fee,
	}).Info("pool created")

	s.publish(ctx, tr, models.EventPoolCreated)
	rec := tr.Record
	return &rec, nil
}

func (s *Service) Get(ctx context.Context, address solana.PublicKey) (*pool.Record, error) {
	return s.store.Get(ctx, address)
}

func (s *Service) List(ctx context.Context) ([]*pool.Record, error) {
	return s.store.List(ctx)
}

// Quote prices a swap against the pool's current reserves without changing it.
func (s *Service) Quote(ctx context.Context, address solana.PublicKey, amountIn uint64, d pool.Direction, slippageBps uint64) (*amm.Quote, error) {
	if err := s.limits.checkSlippage(slippageBps); err != nil {
		return nil, err
	}
	rec, err := s.store.Get(ctx, address)
	if err != nil {
		return nil, err
	}
	return s.machine.Quote(*rec, amountIn, d, slippageBps)
}

func (s *Service) AddLiquidity(ctx context.Context, address solana.PublicKey, req pool.AddLiquidityRequest) (*pool.Receipt, error) {
	unlock := s.lock(address)
	defer unlock()

	rec, err := s.store.Get(ctx, address)
	if err != nil {
		return nil, err
	}
	supply, err := s.custody.Supply(ctx, rec.ShareMint)
	if err != nil {
		return nil, fmt.Errorf("share supply: %w", err)
	}

	tr, err := s.machine.AddLiquidity(*rec, supply, req)
	if err != nil {
		return nil, err
	}
	if err := s.apply(ctx, *rec, tr); err != nil {
		return nil, err
	}

	s.publish(ctx, tr, models.EventLiquidityAdded)
	return &tr.Receipt, nil
}

func (s *Service) Swap(ctx context.Context, address solana.PublicKey, req pool.SwapRequest) (*pool.Receipt, error) {
	unlock := s.lock(address)
	defer unlock()

	rec, err := s.store.Get(ctx, address)
	if err != nil {
		return nil, err
	}

	tr, err := s.machine.Swap(*rec, req)
	if err != nil {
		return nil, err
	}
	if err := s.limits.checkImpact(*rec, req); err != nil {
		return nil, err
	}
	if err := s.apply(ctx, *rec, tr); err != nil {
		return nil, err
	}

	s.publish(ctx, tr, models.EventSwap)
	return &tr.Receipt, nil
}

func (s *Service) RemoveLiquidity(ctx context.Context, address solana.PublicKey, req pool.RemoveLiquidityRequest) (*pool.Receipt, error) {
	unlock := s.lock(address)
	defer unlock()

	rec, err := s.store.Get(ctx, address)
	if err != nil {
		return nil, err
	}
	supply, err := s.custody.Supply(ctx, rec.ShareMint)
	if err != nil {
		return nil, fmt.Errorf("share supply: %w", err)
	}

	tr, err := s.machine.RemoveLiquidity(*rec, supply, req)
	if err != nil {
		return nil, err
	}
	if err := s.apply(ctx, *rec, tr); err != nil {
		return nil, err
	}

	s.publish(ctx, tr, models.EventLiquidityRemoved)
	return &tr.Receipt, nil
}

// Position is an owner's stake in one pool.
type Position struct {
	Pool        solana.PublicKey `json:"pool"`
	Owner       solana.PublicKey `json:"owner"`
	Shares      uint64           `json:"shares"`
	ShareSupply uint64           `json:"share_supply"`
	AmountA     uint64           `json:"amount_a"`
	AmountB     uint64           `json:"amount_b"`
}

// Position reports how many shares owner holds and what they redeem for now.
func (s *Service) Position(ctx context.Context, address, owner solana.PublicKey) (*Position, error) {
	rec, err := s.store.Get(ctx, address)
	if err != nil {
		return nil, err
	}
	shares, err := s.custody.Balance(ctx, owner, rec.ShareMint)
	if err != nil {
		return nil, err
	}
	supply, err := s.custody.Supply(ctx, rec.ShareMint)
	if err != nil {
		return nil, err
	}

	pos := &Position{Pool: address, Owner: owner, Shares: shares, ShareSupply: supply}
	if shares == 0 {
		return pos, nil
	}
	pos.AmountA, pos.AmountB, err = amm.ComputeWithdrawAmounts(shares, rec.ReserveA, rec.ReserveB, supply)
	if err != nil {
		return nil, err
	}
	return pos, nil
}

// Fund credits owner with amount of asset when the custodian allows it.
func (s *Service) Fund(ctx context.Context, owner, asset solana.PublicKey, amount uint64) (uint64, error) {
	f, ok := s.custody.(Funder)
	if !ok {
		return 0, ErrFundingUnsupported
	}
	return f.Fund(ctx, owner, asset, amount)
}

func (s *Service) Balance(ctx context.Context, owner, asset solana.PublicKey) (uint64, error) {
	return s.custody.Balance(ctx, owner, asset)
}

// Reconcile checks every stored pool against custody: the share mint must be
// provisioned and each vault must hold exactly the recorded reserve. It is
// meant for startup, before any operation has a hold open.
func (s *Service) Reconcile(ctx context.Context) error {
	recs, err := s.store.List(ctx)
	if err != nil {
		return err
	}

	var errs []error
	for _, rec := range recs {
		if _, err := s.custody.Supply(ctx, rec.ShareMint); err != nil {
			errs = append(errs, fmt.Errorf("pool %s share mint: %w: %w", rec.Address, ErrCustodyMismatch, err))
			continue
		}
		legs := []struct {
			vault, asset solana.PublicKey
			reserve      uint64
		}{
			{rec.VaultA, rec.AssetA, rec.ReserveA},
			{rec.VaultB, rec.AssetB, rec.ReserveB},
		}
		for _, leg := range legs {
			bal, err := s.custody.Balance(ctx, leg.vault, leg.asset)
			if err != nil {
				return err
			}
			if bal != leg.reserve {
				errs = append(errs, fmt.Errorf("%w: pool %s vault %s holds %d, reserve is %d",
					ErrCustodyMismatch, rec.Address, leg.vault, bal, leg.reserve))
			}
		}
	}

	s.logger.WithFields(logrus.Fields{
		"pools":  len(recs),
		"broken": len(errs),
	}).Info("custody reconciled")
	return errors.Join(errs...)
}

// apply commits a transition: custody funds are held first, the record is
// swapped in, and only then are the funds released. Any failure before the
// release undoes the earlier steps.
func (s *Service) apply(ctx context.Context, cur pool.Record, tr *pool.Transition) error {
	// 1. Hold funds
	hold, err := s.custody.Prepare(ctx, tr.Instructions)
	if err != nil {
		return fmt.Errorf("custody prepare: %w", err)
	}

	// 2. Persist the new record
	if err := s.store.CompareAndSwap(ctx, cur, tr.Record); err != nil {
		s.abort(ctx, hold)
		return err
	}

	// 3. Release funds; on failure put the old record back
	bg := context.WithoutCancel(ctx)
	if err := s.custody.Commit(bg, hold); err != nil {
		log := s.logger.WithError(err).WithField("pool", cur.Address)
		if rbErr := s.store.CompareAndSwap(bg, tr.Record, cur); rbErr != nil {
			log.WithField("rollback_error", rbErr).Error("custody commit failed and record rollback failed")
		} else {
			log.Warn("custody commit failed, record rolled back")
		}
		s.abort(ctx, hold)
		return fmt.Errorf("custody commit: %w", err)
	}
	return nil
}

func (s *Service) abort(ctx context.Context, hold custody.HoldID) {
	if err := s.custody.Abort(context.WithoutCancel(ctx), hold); err != nil {
		s.logger.WithError(err).WithField("hold", hold).Error("custody abort failed")
	}
}

// publish fans a committed transition out to every sink (best-effort).
func (s *Service) publish(ctx context.Context, tr *pool.Transition, kind models.EventKind) {
	if len(s.sinks) == 0 {
		return
	}
	ev := newEvent(tr, kind)
	for _, sink := range s.sinks {
		if err := sink.Publish(ctx, ev); err != nil {
			s.logger.WithError(err).WithFields(logrus.Fields{
				"pool":  ev.Pool,
				"event": ev.Kind,
			}).Warn("failed to publish pool event")
		}
	}
}

func newEvent(tr *pool.Transition, kind models.EventKind) *models.PoolEvent {
	ev := models.NewPoolEvent(kind)
	ev.Pool = tr.Record.Address.String()
	ev.AssetA = tr.Record.AssetA.String()
	ev.AssetB = tr.Record.AssetB.String()
	ev.SymbolA = constants.TokenSymbols[ev.AssetA]
	ev.SymbolB = constants.TokenSymbols[ev.AssetB]
	ev.ReserveA = tr.Record.ReserveA
	ev.ReserveB = tr.Record.ReserveB
	ev.FeeBps = tr.Record.FeeBps
	if !tr.Receipt.Owner.IsZero() {
		ev.Owner = tr.Receipt.Owner.String()
	}
	ev.Direction = tr.Receipt.Direction
	ev.AmountA = tr.Receipt.AmountA
	ev.AmountB = tr.Receipt.AmountB
	ev.AmountIn = tr.Receipt.AmountIn
	ev.AmountOut = tr.Receipt.AmountOut
	ev.Shares = tr.Receipt.Shares
	return ev
}
