package custody

import (
	"context"
	"fmt"
	"sync"

	"github.com/gagliardetto/solana-go"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

type account struct {
	owner solana.PublicKey
	asset solana.PublicKey
}

type vault struct {
	asset     solana.PublicKey
	authority solana.PublicKey
}

type mint struct {
	authority solana.PublicKey
	supply    uint64
}

type entry struct {
	acct   account
	amount uint64
}

// hold is a prepared batch. Debits have already left their accounts; credits,
// mints and provisions are applied on commit.
type hold struct {
	debits  []entry
	credits []entry
	minted  []entry
	burned  []entry
	vaults  map[solana.PublicKey]vault
	mints   map[solana.PublicKey]solana.PublicKey
}

// Ledger is an in-memory Custodian. It is safe for concurrent use. A Ledger
// opened over a Journal writes every commit and funding through to it before
// the change becomes visible, so only one process may own a journal.
type Ledger struct {
	mu       sync.Mutex
	balances map[account]uint64
	vaults   map[solana.PublicKey]vault
	mints    map[solana.PublicKey]*mint
	pending  map[solana.PublicKey]HoldID
	holds    map[HoldID]*hold
	journal  Journal
	logger   *logrus.Logger
}

var _ Custodian = (*Ledger)(nil)

func NewLedger(logger *logrus.Logger) *Ledger {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Ledger{
		balances: make(map[account]uint64),
		vaults:   make(map[solana.PublicKey]vault),
		mints:    make(map[solana.PublicKey]*mint),
		pending:  make(map[solana.PublicKey]HoldID),
		holds:    make(map[HoldID]*hold),
		logger:   logger,
	}
}

// OpenLedger restores a Ledger from journal and keeps journaling to it.
func OpenLedger(ctx context.Context, journal Journal, logger *logrus.Logger) (*Ledger, error) {
	if journal == nil {
		return nil, fmt.Errorf("custody journal is nil")
	}
	snap, err := journal.Load(ctx)
	if err != nil {
		return nil, err
	}

	l := NewLedger(logger)
	l.journal = journal
	for _, b := range snap.Balances {
		l.balances[account{owner: b.Owner, asset: b.Asset}] = b.Amount
	}
	for _, v := range snap.Vaults {
		l.vaults[v.Address] = vault{asset: v.Asset, authority: v.Authority}
	}
	for _, m := range snap.Mints {
		l.mints[m.Address] = &mint{authority: m.Authority, supply: m.Supply}
	}

	l.logger.WithFields(logrus.Fields{
		"balances": len(snap.Balances),
		"vaults":   len(snap.Vaults),
		"mints":    len(snap.Mints),
	}).Info("custody ledger restored")
	return l, nil
}

// Fund credits owner with amount of asset from outside the ledger.
func (l *Ledger) Fund(ctx context.Context, owner, asset solana.PublicKey, amount uint64) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.mints[asset]; ok {
		return 0, fmt.Errorf("%w: %s is a share asset", ErrInvalidInstruction, asset)
	}
	if _, ok := l.vaults[owner]; ok {
		return 0, fmt.Errorf("%w: %s is a pool vault", ErrUnauthorized, owner)
	}

	acct := account{owner: owner, asset: asset}
	committed := l.committed(acct, "")
	if committed+amount < committed {
		return 0, ErrBalanceOverflow
	}
	if l.journal != nil {
		err := l.journal.Save(ctx, &Snapshot{
			Balances: []BalanceEntry{{Owner: owner, Asset: asset, Amount: committed + amount}},
		})
		if err != nil {
			return 0, err
		}
	}
	l.balances[acct] += amount
	return l.balances[acct], nil
}

func (l *Ledger) Balance(ctx context.Context, owner, asset solana.PublicKey) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.balances[account{owner: owner, asset: asset}], nil
}

func (l *Ledger) Supply(ctx context.Context, mintKey solana.PublicKey) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	m, ok := l.mints[mintKey]
	if !ok {
		return 0, fmt.Errorf("%w: mint %s", ErrUnknownAccount, mintKey)
	}
	return m.supply, nil
}

// Prepare validates batch in order against the current ledger plus the
// effects of its own earlier instructions. On success every debit is held
// until Commit or Abort; on failure nothing changes.
func (l *Ledger) Prepare(ctx context.Context, batch []Instruction) (HoldID, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	s := newSimulation(l)
	for i, ix := range batch {
		if err := s.apply(ix); err != nil {
			return "", fmt.Errorf("instruction %d (%s): %w", i, ix.Kind, err)
		}
	}

	id := HoldID(uuid.NewString())
	for _, d := range s.h.debits {
		l.balances[d.acct] -= d.amount
	}
	for addr := range s.h.vaults {
		l.pending[addr] = id
	}
	for addr := range s.h.mints {
		l.pending[addr] = id
	}
	l.holds[id] = s.h

	l.logger.WithFields(logrus.Fields{
		"hold":         id,
		"instructions": len(batch),
	}).Debug("custody hold prepared")
	return id, nil
}

func (l *Ledger) Commit(ctx context.Context, id HoldID) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	h, ok := l.holds[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownHold, id)
	}
	// A failed write leaves the hold in place for Abort.
	if l.journal != nil {
		if err := l.journal.Save(ctx, l.commitSnapshot(id, h)); err != nil {
			return err
		}
	}
	delete(l.holds, id)

	for addr, v := range h.vaults {
		delete(l.pending, addr)
		l.vaults[addr] = v
	}
	for addr, authority := range h.mints {
		delete(l.pending, addr)
		l.mints[addr] = &mint{authority: authority}
	}
	for _, c := range h.credits {
		l.balances[c.acct] += c.amount
	}
	for _, m := range h.minted {
		l.mints[m.acct.asset].supply += m.amount
	}
	for _, b := range h.burned {
		l.mints[b.acct.asset].supply -= b.amount
	}

	l.logger.WithField("hold", id).Debug("custody hold committed")
	return nil
}

func (l *Ledger) Abort(ctx context.Context, id HoldID) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	h, ok := l.holds[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownHold, id)
	}
	delete(l.holds, id)

	for _, d := range h.debits {
		l.balances[d.acct] += d.amount
	}
	for addr := range h.vaults {
		delete(l.pending, addr)
	}
	for addr := range h.mints {
		delete(l.pending, addr)
	}

	l.logger.WithField("hold", id).Debug("custody hold aborted")
	return nil
}

// committed is the balance of a once every hold other than skip is settled.
// Debits of open holds have already left l.balances.
func (l *Ledger) committed(a account, skip HoldID) uint64 {
	bal := l.balances[a]
	for id, h := range l.holds {
		if id == skip {
			continue
		}
		for _, d := range h.debits {
			if d.acct == a {
				bal += d.amount
			}
		}
	}
	return bal
}

// commitSnapshot lists the committed state of everything hold id touches as
// it will be after the commit.
func (l *Ledger) commitSnapshot(id HoldID, h *hold) *Snapshot {
	balances := make(map[account]uint64)
	touch := func(a account) {
		if _, ok := balances[a]; !ok {
			balances[a] = l.committed(a, id)
		}
	}
	for _, d := range h.debits {
		touch(d.acct)
	}
	for _, c := range h.credits {
		touch(c.acct)
		balances[c.acct] += c.amount
	}

	mints := make(map[solana.PublicKey]*mint)
	touchMint := func(addr solana.PublicKey) *mint {
		if m, ok := mints[addr]; ok {
			return m
		}
		m := &mint{authority: h.mints[addr]}
		if cur, ok := l.mints[addr]; ok {
			*m = *cur
		}
		mints[addr] = m
		return m
	}
	for addr := range h.mints {
		touchMint(addr)
	}
	for _, m := range h.minted {
		touchMint(m.acct.asset).supply += m.amount
	}
	for _, b := range h.burned {
		touchMint(b.acct.asset).supply -= b.amount
	}

	snap := &Snapshot{}
	for a, amount := range balances {
		snap.Balances = append(snap.Balances, BalanceEntry{Owner: a.owner, Asset: a.asset, Amount: amount})
	}
	for addr, v := range h.vaults {
		snap.Vaults = append(snap.Vaults, VaultEntry{Address: addr, Asset: v.asset, Authority: v.authority})
	}
	for addr, m := range mints {
		snap.Mints = append(snap.Mints, MintEntry{Address: addr, Authority: m.authority, Supply: m.supply})
	}
	return snap
}

// simulation replays a batch on an overlay of the ledger.
type simulation struct {
	l        *Ledger
	balances map[account]uint64
	supplies map[solana.PublicKey]uint64
	h        *hold
}

func newSimulation(l *Ledger) *simulation {
	return &simulation{
		l:        l,
		balances: make(map[account]uint64),
		supplies: make(map[solana.PublicKey]uint64),
		h: &hold{
			vaults: make(map[solana.PublicKey]vault),
			mints:  make(map[solana.PublicKey]solana.PublicKey),
		},
	}
}

func (s *simulation) balance(a account) uint64 {
	if v, ok := s.balances[a]; ok {
		return v
	}
	return s.l.balances[a]
}

func (s *simulation) vault(addr solana.PublicKey) (vault, bool) {
	if v, ok := s.h.vaults[addr]; ok {
		return v, true
	}
	v, ok := s.l.vaults[addr]
	return v, ok
}

func (s *simulation) mintAuthority(addr solana.PublicKey) (solana.PublicKey, bool) {
	if a, ok := s.h.mints[addr]; ok {
		return a, true
	}
	if m, ok := s.l.mints[addr]; ok {
		return m.authority, true
	}
	return solana.PublicKey{}, false
}

func (s *simulation) supply(addr solana.PublicKey) uint64 {
	if v, ok := s.supplies[addr]; ok {
		return v
	}
	if m, ok := s.l.mints[addr]; ok {
		return m.supply
	}
	return 0
}

func (s *simulation) taken(addr solana.PublicKey) bool {
	if _, ok := s.vault(addr); ok {
		return true
	}
	if _, ok := s.mintAuthority(addr); ok {
		return true
	}
	_, ok := s.l.pending[addr]
	return ok
}

func (s *simulation) debit(a account, amount uint64) error {
	bal := s.balance(a)
	if bal < amount {
		return fmt.Errorf("%w: %s holds %d of %s, needs %d", ErrInsufficientFunds, a.owner, bal, a.asset, amount)
	}
	s.balances[a] = bal - amount
	return nil
}

func (s *simulation) credit(a account, amount uint64) error {
	bal := s.balance(a)
	if bal+amount < bal {
		return ErrBalanceOverflow
	}
	s.balances[a] = bal + amount
	return nil
}

func (s *simulation) apply(ix Instruction) error {
	switch ix.Kind {
	case KindProvisionVault:
		if ix.To.IsZero() || ix.Asset.IsZero() || ix.Authority.IsZero() {
			return ErrInvalidInstruction
		}
		if s.taken(ix.To) {
			return fmt.Errorf("%w: %s", ErrAlreadyProvisioned, ix.To)
		}
		s.h.vaults[ix.To] = vault{asset: ix.Asset, authority: ix.Authority}
		return nil

	case KindProvisionMint:
		if ix.Asset.IsZero() || ix.Authority.IsZero() {
			return ErrInvalidInstruction
		}
		if s.taken(ix.Asset) {
			return fmt.Errorf("%w: %s", ErrAlreadyProvisioned, ix.Asset)
		}
		s.h.mints[ix.Asset] = ix.Authority
		return nil

	case KindTransfer:
		if err := s.checkSpender(ix.From, ix.Asset, ix.Authority); err != nil {
			return err
		}
		if v, ok := s.vault(ix.To); ok && !v.asset.Equals(ix.Asset) {
			return fmt.Errorf("%w: vault %s holds %s", ErrAssetMismatch, ix.To, v.asset)
		}
		from := account{owner: ix.From, asset: ix.Asset}
		to := account{owner: ix.To, asset: ix.Asset}
		if err := s.debit(from, ix.Amount); err != nil {
			return err
		}
		if err := s.credit(to, ix.Amount); err != nil {
			return err
		}
		s.h.debits = append(s.h.debits, entry{acct: from, amount: ix.Amount})
		s.h.credits = append(s.h.credits, entry{acct: to, amount: ix.Amount})
		return nil

	case KindMintTo:
		authority, ok := s.mintAuthority(ix.Asset)
		if !ok {
			return fmt.Errorf("%w: mint %s", ErrUnknownAccount, ix.Asset)
		}
		if !authority.Equals(ix.Authority) {
			return fmt.Errorf("%w: mint %s", ErrUnauthorized, ix.Asset)
		}
		supply := s.supply(ix.Asset)
		if supply+ix.Amount < supply {
			return ErrBalanceOverflow
		}
		to := account{owner: ix.To, asset: ix.Asset}
		if err := s.credit(to, ix.Amount); err != nil {
			return err
		}
		s.supplies[ix.Asset] = supply + ix.Amount
		s.h.credits = append(s.h.credits, entry{acct: to, amount: ix.Amount})
		s.h.minted = append(s.h.minted, entry{acct: to, amount: ix.Amount})
		return nil

	case KindBurn:
		if _, ok := s.mintAuthority(ix.Asset); !ok {
			return fmt.Errorf("%w: mint %s", ErrUnknownAccount, ix.Asset)
		}
		if !ix.Authority.Equals(ix.From) {
			return fmt.Errorf("%w: burn from %s", ErrUnauthorized, ix.From)
		}
		from := account{owner: ix.From, asset: ix.Asset}
		if err := s.debit(from, ix.Amount); err != nil {
			return err
		}
		s.supplies[ix.Asset] = s.supply(ix.Asset) - ix.Amount
		s.h.debits = append(s.h.debits, entry{acct: from, amount: ix.Amount})
		s.h.burned = append(s.h.burned, entry{acct: from, amount: ix.Amount})
		return nil

	default:
		return fmt.Errorf("%w: kind %d", ErrInvalidInstruction, ix.Kind)
	}
}

// checkSpender verifies that authority may move asset out of from. Vaults are
// spent by the authority they were provisioned with; any other account only
// by its owner.
func (s *simulation) checkSpender(from, asset, authority solana.PublicKey) error {
	if v, ok := s.vault(from); ok {
		if !v.asset.Equals(asset) {
			return fmt.Errorf("%w: vault %s holds %s", ErrAssetMismatch, from, v.asset)
		}
		if !v.authority.Equals(authority) {
			return fmt.Errorf("%w: vault %s", ErrUnauthorized, from)
		}
		return nil
	}
	if !from.Equals(authority) {
		return fmt.Errorf("%w: account %s", ErrUnauthorized, from)
	}
	return nil
}
