package cache

import (
	"context"
	"time"

	"orderdesk/backend/internal/domain"
)

type DaySalesCache interface {
	Get(ctx context.Context, key string) (*domain.DaySales, bool, error)
	Set(ctx context.Context, key string, value *domain.DaySales, ttl time.Duration) error
	Invalidate(ctx context.Context, key string) error
}

type NoopDaySalesCache struct{}

func (NoopDaySalesCache) Get(_ context.Context, _ string) (*domain.DaySales, bool, error) {
	return nil, false, nil
}

func (NoopDaySalesCache) Set(_ context.Context, _ string, _ *domain.DaySales, _ time.Duration) error {
	return nil
}

func (NoopDaySalesCache) Invalidate(_ context.Context, _ string) error {
	return nil
}
