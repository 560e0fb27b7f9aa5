package cache

import (
	"context"
	"time"
)

// Sweep periodically removes expired entries. It blocks until the context is
// cancelled.
func Sweep(ctx context.Context, s *Store, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.ClearExpired(ctx); err != nil {
				s.logger.Debug().Err(err).Msg("cache sweep failed")
			}
		}
	}
}
