package app

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"chatcore/internal/domain"
	"chatcore/internal/metrics"
	"chatcore/internal/relay"
	"chatcore/internal/store"
)

// NewBackend opens the relay backend named in cfg. The returned close
// function releases any connection it holds.
func NewBackend(ctx context.Context, cfg ServerConfig) (relay.Backend, func() error, error) {
	switch cfg.Backend {
	case "", BackendMemory:
		return store.NewMemory(), func() error { return nil }, nil
	case BackendRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, nil, fmt.Errorf("redis %s: %w", cfg.Redis.Addr, err)
		}
		return store.NewRedis(client), client.Close, nil
	default:
		return nil, nil, domain.Misconfigured("server: unknown backend %q", cfg.Backend)
	}
}

// NewRelayServer builds the relay over backend and registers its metrics
// with reg. A nil reg disables the /metrics endpoint.
func NewRelayServer(backend relay.Backend, log *logrus.Logger, reg *prometheus.Registry) (*relay.Server, error) {
	if reg == nil {
		return relay.NewServer(backend, log, nil), nil
	}
	if err := metrics.Register(reg); err != nil {
		return nil, err
	}
	return relay.NewServer(backend, log, promhttp.HandlerFor(reg, promhttp.HandlerOpts{})), nil
}
