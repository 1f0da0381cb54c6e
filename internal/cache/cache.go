package cache

import (
	"context"
	"time"
)

// ConfigCache fronts the configuration collaborator for hot keys, most
// notably the deduction rule blob read on every completed sale.
type ConfigCache interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key string, value string, ttl time.Duration) error
	Invalidate(ctx context.Context, key string) error
}

type NoopConfigCache struct{}

func (NoopConfigCache) Get(_ context.Context, _ string) (string, bool, error) {
	return "", false, nil
}

func (NoopConfigCache) Set(_ context.Context, _ string, _ string, _ time.Duration) error {
	return nil
}

func (NoopConfigCache) Invalidate(_ context.Context, _ string) error {
	return nil
}
