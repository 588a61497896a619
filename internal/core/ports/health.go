package ports

import "context"

// HealthChecker is one dependency reported by GET /health: the transaction
// store, redis, and the ledger breaker.
type HealthChecker interface {
	// Ping returns nil while the dependency is usable.
	Ping(ctx context.Context) error
	Name() string
}
