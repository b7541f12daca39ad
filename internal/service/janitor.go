package service

import (
	"context"
	"time"
)

// RunSessionJanitor prunes expired sessions every interval until ctx ends
func (s *AccountService) RunSessionJanitor(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := s.PruneExpiredSessions(ctx); err != nil && ctx.Err() == nil {
				s.log.WithError(err).Warn("session janitor failed")
			}
		}
	}
}
