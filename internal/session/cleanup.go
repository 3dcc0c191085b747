package session

import (
	"context"
	"time"

	"github.com/rentranks/rentranks-front/internal/log"
)

// CleanupManager periodically sweeps expired records from stores that
// cannot expire entries natively.
type CleanupManager struct {
	sweeper  ExpiredSweeper
	interval time.Duration
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// NewCleanupManager creates a cleanup manager. Returns nil if the store
// does not need sweeping.
func NewCleanupManager(store Store, interval time.Duration) *CleanupManager {
	sweeper, ok := store.(ExpiredSweeper)
	if !ok {
		return nil
	}
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	return &CleanupManager{
		sweeper:  sweeper,
		interval: interval,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Start launches the background sweep loop.
func (c *CleanupManager) Start(ctx context.Context) {
	go func() {
		defer close(c.doneCh)

		ticker := time.NewTicker(c.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				c.sweep(ctx)
			case <-c.stopCh:
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	log.LogDebugWithFields("session", "Started session cleanup", map[string]any{
		"interval": c.interval.String(),
	})
}

// Stop terminates the sweep loop and waits for it to exit.
func (c *CleanupManager) Stop() {
	close(c.stopCh)
	<-c.doneCh
}

func (c *CleanupManager) sweep(ctx context.Context) {
	sweepCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	count, err := c.sweeper.DeleteExpired(sweepCtx)
	if err != nil {
		log.LogWarnWithFields("session", "Session sweep failed", map[string]any{
			"error": err.Error(),
		})
		return
	}
	if count > 0 {
		log.LogInfoWithFields("session", "Swept expired sessions", map[string]any{
			"count": count,
		})
	}
}
