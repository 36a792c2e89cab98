package store

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/aman-zulfiqar/minidex/internal/constants"
	"github.com/aman-zulfiqar/minidex/internal/pool"
	"github.com/gagliardetto/solana-go"
	"github.com/redis/go-redis/v9"
)

// RedisStore keeps each record under pools:<address> in its binary layout and
// tracks addresses in the pools:index set. Writes are optimistic: the key is
// WATCHed, so a concurrent writer makes the transaction fail instead of
// overwriting.
type RedisStore struct {
	client redis.UniversalClient
}

var _ PoolStore = (*RedisStore)(nil)

func NewRedisStore(client redis.UniversalClient) (*RedisStore, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is nil")
	}
	return &RedisStore{client: client}, nil
}

func (s *RedisStore) Create(ctx context.Context, rec pool.Record) error {
	data, err := pool.EncodeRecord(rec)
	if err != nil {
		return err
	}
	key := recordKey(rec.Address)

	err = s.client.Watch(ctx, func(tx *redis.Tx) error {
		n, err := tx.Exists(ctx, key).Result()
		if err != nil {
			return err
		}
		if n > 0 {
			return ErrPoolExists
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, 0)
			pipe.SAdd(ctx, constants.RedisKeyPoolIndex, rec.Address.String())
			return nil
		})
		return err
	}, key)

	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrPoolExists):
		return err
	case errors.Is(err, redis.TxFailedErr):
		return ErrPoolExists
	default:
		return fmt.Errorf("create pool: %w", err)
	}
}

func (s *RedisStore) Get(ctx context.Context, address solana.PublicKey) (*pool.Record, error) {
	val, err := s.client.Get(ctx, recordKey(address)).Bytes()
	if err == redis.Nil {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get pool: %w", err)
	}

	rec, err := pool.DecodeRecord(val)
	if err != nil {
		return nil, fmt.Errorf("decode pool %s: %w", address, err)
	}
	return rec, nil
}

func (s *RedisStore) List(ctx context.Context) ([]*pool.Record, error) {
	members, err := s.client.SMembers(ctx, constants.RedisKeyPoolIndex).Result()
	if err != nil {
		return nil, fmt.Errorf("list pools index: %w", err)
	}
	if len(members) == 0 {
		return []*pool.Record{}, nil
	}

	redisKeys := make([]string, 0, len(members))
	for _, m := range members {
		addr, err := pool.ParseKey(m)
		if err != nil {
			continue
		}
		redisKeys = append(redisKeys, recordKey(addr))
	}
	if len(redisKeys) == 0 {
		return []*pool.Record{}, nil
	}

	vals, err := s.client.MGet(ctx, redisKeys...).Result()
	if err != nil {
		return nil, fmt.Errorf("mget pools: %w", err)
	}

	out := make([]*pool.Record, 0, len(vals))
	for _, v := range vals {
		str, ok := v.(string)
		if !ok {
			continue
		}
		rec, err := pool.DecodeRecord([]byte(str))
		if err != nil {
			continue
		}
		out = append(out, rec)
	}
	sortRecords(out)
	return out, nil
}

func (s *RedisStore) CompareAndSwap(ctx context.Context, expected, next pool.Record) error {
	if !expected.Address.Equals(next.Address) {
		return fmt.Errorf("compare and swap: address changed from %s to %s", expected.Address, next.Address)
	}
	want, err := pool.EncodeRecord(expected)
	if err != nil {
		return err
	}
	data, err := pool.EncodeRecord(next)
	if err != nil {
		return err
	}
	key := recordKey(next.Address)

	err = s.client.Watch(ctx, func(tx *redis.Tx) error {
		cur, err := tx.Get(ctx, key).Bytes()
		if err == redis.Nil {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		if !bytes.Equal(cur, want) {
			return ErrConflict
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, 0)
			return nil
		})
		return err
	}, key)

	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrConflict):
		return err
	case errors.Is(err, redis.TxFailedErr):
		return ErrConflict
	default:
		return fmt.Errorf("update pool: %w", err)
	}
}

func (s *RedisStore) Delete(ctx context.Context, address solana.PublicKey) error {
	var del *redis.IntCmd
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		del = pipe.Del(ctx, recordKey(address))
		pipe.SRem(ctx, constants.RedisKeyPoolIndex, address.String())
		return nil
	})
	if err != nil {
		return fmt.Errorf("delete pool: %w", err)
	}
	if del.Val() == 0 {
		return ErrNotFound
	}
	return nil
}

func recordKey(address solana.PublicKey) string {
	return constants.RedisKeyPoolPrefix + address.String()
}
