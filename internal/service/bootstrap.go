package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/aman-zulfiqar/minidex/internal/pool"
	"github.com/aman-zulfiqar/minidex/internal/store"
	"github.com/sirupsen/logrus"
)

// PoolConfig is one entry of a bootstrap file.
type PoolConfig struct {
	Name   string  `json:"name"`
	AssetA string  `json:"asset_a"`
	AssetB string  `json:"asset_b"`
	FeeBps *uint64 `json:"fee_bps,omitempty"`
}

// LoadPoolConfigs reads a JSON array of pool definitions.
func LoadPoolConfigs(path string) ([]PoolConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var configs []PoolConfig
	if err := json.Unmarshal(data, &configs); err != nil {
		return nil, fmt.Errorf("failed to parse JSON: %w", err)
	}
	return configs, nil
}

// Bootstrap creates every configured pool that does not exist yet and
// returns the number created.
func (s *Service) Bootstrap(ctx context.Context, configs []PoolConfig) (int, error) {
	created := 0
	for i, cfg := range configs {
		assetA, err := pool.ParseAsset(cfg.AssetA)
		if err != nil {
			return created, fmt.Errorf("pool %d (%s): asset_a: %w", i, cfg.Name, err)
		}
		assetB, err := pool.ParseAsset(cfg.AssetB)
		if err != nil {
			return created, fmt.Errorf("pool %d (%s): asset_b: %w", i, cfg.Name, err)
		}

		rec, err := s.CreatePool(ctx, assetA, assetB, cfg.FeeBps)
		if errors.Is(err, store.ErrPoolExists) {
			continue
		}
		if err != nil {
			return created, fmt.Errorf("pool %d (%s): %w", i, cfg.Name, err)
		}

		s.logger.WithFields(logrus.Fields{
			"name": cfg.Name,
			"pool": rec.Address,
		}).Info("bootstrapped pool")
		created++
	}
	return created, nil
}
