package custody

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/aman-zulfiqar/minidex/internal/constants"
	"github.com/gagliardetto/solana-go"
	"github.com/redis/go-redis/v9"
)

// RedisJournal keeps committed ledger state in four hashes: balances keyed by
// owner and asset, vault registrations, mint authorities and mint supplies.
// Each Save is one MULTI/EXEC transaction.
type RedisJournal struct {
	client redis.UniversalClient
}

var _ Journal = (*RedisJournal)(nil)

func NewRedisJournal(client redis.UniversalClient) (*RedisJournal, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is nil")
	}
	return &RedisJournal{client: client}, nil
}

func (j *RedisJournal) Save(ctx context.Context, changes *Snapshot) error {
	if changes == nil || changes.empty() {
		return nil
	}
	_, err := j.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, b := range changes.Balances {
			pipe.HSet(ctx, constants.RedisKeyCustodyBalances, pairField(b.Owner, b.Asset), strconv.FormatUint(b.Amount, 10))
		}
		for _, v := range changes.Vaults {
			pipe.HSet(ctx, constants.RedisKeyCustodyVaults, v.Address.String(), pairField(v.Asset, v.Authority))
		}
		for _, m := range changes.Mints {
			pipe.HSet(ctx, constants.RedisKeyCustodyMints, m.Address.String(), m.Authority.String())
			pipe.HSet(ctx, constants.RedisKeyCustodySupply, m.Address.String(), strconv.FormatUint(m.Supply, 10))
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("save custody state: %w", err)
	}
	return nil
}

func (j *RedisJournal) Load(ctx context.Context) (*Snapshot, error) {
	var (
		balances *redis.MapStringStringCmd
		vaults   *redis.MapStringStringCmd
		mints    *redis.MapStringStringCmd
		supplies *redis.MapStringStringCmd
	)
	_, err := j.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		balances = pipe.HGetAll(ctx, constants.RedisKeyCustodyBalances)
		vaults = pipe.HGetAll(ctx, constants.RedisKeyCustodyVaults)
		mints = pipe.HGetAll(ctx, constants.RedisKeyCustodyMints)
		supplies = pipe.HGetAll(ctx, constants.RedisKeyCustodySupply)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("load custody state: %w", err)
	}

	snap := &Snapshot{}
	for field, val := range balances.Val() {
		owner, asset, err := splitPair(field)
		if err != nil {
			return nil, fmt.Errorf("balance %q: %w", field, err)
		}
		amount, err := strconv.ParseUint(val, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("balance %q: %w", field, err)
		}
		snap.Balances = append(snap.Balances, BalanceEntry{Owner: owner, Asset: asset, Amount: amount})
	}

	for field, val := range vaults.Val() {
		addr, err := solana.PublicKeyFromBase58(field)
		if err != nil {
			return nil, fmt.Errorf("vault %q: %w", field, err)
		}
		asset, authority, err := splitPair(val)
		if err != nil {
			return nil, fmt.Errorf("vault %q: %w", field, err)
		}
		snap.Vaults = append(snap.Vaults, VaultEntry{Address: addr, Asset: asset, Authority: authority})
	}

	supplyOf := supplies.Val()
	for field, val := range mints.Val() {
		addr, err := solana.PublicKeyFromBase58(field)
		if err != nil {
			return nil, fmt.Errorf("mint %q: %w", field, err)
		}
		authority, err := solana.PublicKeyFromBase58(val)
		if err != nil {
			return nil, fmt.Errorf("mint %q authority: %w", field, err)
		}
		var supply uint64
		if raw, ok := supplyOf[field]; ok {
			if supply, err = strconv.ParseUint(raw, 10, 64); err != nil {
				return nil, fmt.Errorf("mint %q supply: %w", field, err)
			}
		}
		snap.Mints = append(snap.Mints, MintEntry{Address: addr, Authority: authority, Supply: supply})
	}
	return snap, nil
}

func pairField(a, b solana.PublicKey) string {
	return a.String() + ":" + b.String()
}

func splitPair(s string) (solana.PublicKey, solana.PublicKey, error) {
	left, right, ok := strings.Cut(s, ":")
	if !ok {
		return solana.PublicKey{}, solana.PublicKey{}, fmt.Errorf("missing separator")
	}
	a, err := solana.PublicKeyFromBase58(left)
	if err != nil {
		return solana.PublicKey{}, solana.PublicKey{}, err
	}
	b, err := solana.PublicKeyFromBase58(right)
	if err != nil {
		return solana.PublicKey{}, solana.PublicKey{}, err
	}
	return a, b, nil
}
