package storage

import (
	"context"
	"time"
)

// AcquireLease takes key for ttl unless someone else already holds it.
// Without Redis every caller is granted the lease.
func (s *Service) AcquireLease(ctx context.Context, key, owner string, ttl time.Duration) (bool, error) {
	if s.Redis == nil {
		return true, nil
	}
	return s.Redis.SetNX(ctx, key, owner, ttl).Result()
}
