package session

import (
	"context"
	"time"
)

// Store persists token records keyed by session ID. Implementations must
// be safe for concurrent use. Get returns (nil, nil) when no record
// exists; lookups never distinguish "expired and removed" from "never
// existed".
type Store interface {
	Get(ctx context.Context, sessionID string) (*TokenRecord, error)
	Put(ctx context.Context, sessionID string, rec TokenRecord, ttl time.Duration) error
	Delete(ctx context.Context, sessionID string) error
}

// ExpiredSweeper is implemented by stores that need an explicit sweep of
// expired records (memory, Firestore). Redis expires keys natively.
type ExpiredSweeper interface {
	DeleteExpired(ctx context.Context) (int, error)
}
