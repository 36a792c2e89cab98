package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/aman-zulfiqar/minidex/internal/events"
	"github.com/aman-zulfiqar/minidex/internal/models"
	"github.com/aman-zulfiqar/minidex/internal/pool"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func runWatch(cmd *cobra.Command, _ []string) error {
	flags := cmd.Flags()
	addr, _ := flags.GetString("redis-addr")
	poolAddr, _ := flags.GetString("pool")
	levelStr, _ := flags.GetString("log-level")

	logger := logrus.New()
	logger.SetOutput(cmd.ErrOrStderr())
	level, err := logrus.ParseLevel(levelStr)
	if err != nil {
		return fmt.Errorf("log-level: %w", err)
	}
	logger.SetLevel(level)

	channel := events.ChannelAll
	if poolAddr != "" {
		key, err := pool.ParseKey(poolAddr)
		if err != nil {
			return fmt.Errorf("pool: %w", err)
		}
		channel = events.PoolChannel(key.String())
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client := redis.NewClient(&redis.Options{Addr: addr})
	defer client.Close()
	if err := client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}

	pub, err := events.NewPublisher(client, logger)
	if err != nil {
		return err
	}

	logger.WithField("channel", channel).Info("watching pool events")
	enc := json.NewEncoder(cmd.OutOrStdout())
	return pub.Subscribe(ctx, channel, func(ev *models.PoolEvent) {
		if err := enc.Encode(ev); err != nil {
			logger.WithError(err).Warn("failed to write event")
		}
	})
}
