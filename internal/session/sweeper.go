package session

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// RunSweeper evicts idle sessions every interval until ctx is done. It returns nil on cancellation.
func (s *MemoryStore) RunSweeper(ctx context.Context, idle, interval time.Duration, logger *zap.Logger) error {
	if idle <= 0 || interval <= 0 {
		<-ctx.Done()
		return nil
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if n := s.Sweep(idle); n > 0 {
				logger.Debug("Swept idle sessions", zap.Int("removed", n), zap.Int("remaining", s.Len()))
			}
		}
	}
}
