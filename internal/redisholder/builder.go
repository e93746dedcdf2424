package redisholder

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/YashMayekar/Resizer/internal/config"
)

// Build connects to redis for the job-registry backend. Multi-node configs
// try a cluster client first and fall back to a plain client; a health loop
// reconnects behind the holder when pings start failing.
func Build(ctx context.Context, cfg *config.RedisConfig, log zerolog.Logger) (*Holder, error) {
	cl, err := connect(cfg)
	if err != nil {
		return nil, err
	}

	h := NewHolder(cl)
	go healthLoop(ctx, h, cfg, log)

	return h, nil
}

func connect(cfg *config.RedisConfig) (redis.UniversalClient, error) {
	if len(cfg.Nodes) == 0 {
		return nil, errors.New("redis: no nodes configured")
	}

	if len(cfg.Nodes) > 1 {
		if cl, err := newClusterClient(cfg); err == nil {
			return cl, nil
		}
	}
	return newClient(cfg)
}

func healthLoop(ctx context.Context, h *Holder, cfg *config.RedisConfig, log zerolog.Logger) {
	interval := cfg.HealthCheckInterval * time.Second
	if interval <= 0 {
		interval = 30 * time.Second
	}
	log.Info().Dur("interval", interval).Msg("redis health loop started")

	ping := func() {
		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		err := h.Get().Ping(pingCtx).Err()
		cancel()
		if err == nil {
			return
		}

		log.Warn().Err(err).Msg("redis ping failed, reconnecting")
		newCl, connErr := connect(cfg)
		if connErr != nil {
			log.Error().Err(connErr).Msg("redis reconnect failed")
			return
		}

		if old := h.swap(newCl); old != nil {
			_ = old.Close()
		}
		log.Info().Msg("redis reconnected")
	}

	ping()

	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			_ = h.Close()
			return
		case <-t.C:
			ping()
		}
	}
}

func newClusterClient(cfg *config.RedisConfig) (*redis.ClusterClient, error) {
	addrs := make([]string, 0, len(cfg.Nodes))
	for _, node := range cfg.Nodes {
		addrs = append(addrs, node.Addr())
	}

	cl := redis.NewClusterClient(&redis.ClusterOptions{
		Addrs:        addrs,
		Password:     cfg.Password,
		DialTimeout:  cfg.DialTimeout * time.Second,
		ReadTimeout:  cfg.ReadTimeout * time.Second,
		WriteTimeout: cfg.WriteTimeout * time.Second,
		PoolSize:     cfg.PoolSize,
	})
	if err := cl.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("ping redis cluster: %w", err)
	}
	return cl, nil
}

func newClient(cfg *config.RedisConfig) (*redis.Client, error) {
	var lastErr error
	for _, node := range cfg.Nodes {
		cl := redis.NewClient(&redis.Options{
			Addr:         node.Addr(),
			Password:     cfg.Password,
			DB:           cfg.DatabaseID,
			DialTimeout:  cfg.DialTimeout * time.Second,
			ReadTimeout:  cfg.ReadTimeout * time.Second,
			WriteTimeout: cfg.WriteTimeout * time.Second,
			PoolSize:     cfg.PoolSize,
		})
		if err := cl.Ping(context.Background()).Err(); err != nil {
			lastErr = fmt.Errorf("ping redis node %s: %w", node.Addr(), err)
			continue
		}
		return cl, nil
	}
	return nil, lastErr
}
