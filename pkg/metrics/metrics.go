package metrics

import (
	"time"
)

// Collector defines the metrics emitted by the ledger client, the
// reconciler and the transfer flow. Implementations export them to a backend.
type Collector interface {
	// Ledger client
	RecordLedgerCall(op string, success bool, duration time.Duration)
	RecordCircuitState(name string, state CircuitState)

	// Reconciliation
	RecordReconcilePass(skipped bool, duration time.Duration)
	RecordReconcileOutcome(outcome string, n int)
	RecordStalePending(n int)
	RecordStorageWriteError(op string)

	// Transfers
	RecordTransfer(success bool)
}

// Reconcile outcome labels.
const (
	OutcomeConfirmed   = "confirmed"
	OutcomeFailed      = "failed"
	OutcomePending     = "pending"
	OutcomeUnchanged   = "unchanged"
	OutcomeLookupError = "lookup_error"
	OutcomeWriteError  = "write_error"
)

// CircuitState represents the state of a circuit breaker.
type CircuitState int

const (
	CircuitClosed CircuitState = iota
	CircuitOpen
	CircuitHalfOpen
)

// String returns the string representation of the circuit state.
func (s CircuitState) String() string {
	switch s {
	case CircuitClosed:
		return "closed"
	case CircuitOpen:
		return "open"
	case CircuitHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// NoOpCollector discards everything. It is the default when metrics are disabled.
type NoOpCollector struct{}

func (NoOpCollector) RecordLedgerCall(string, bool, time.Duration) {}
func (NoOpCollector) RecordCircuitState(string, CircuitState) {}
func (NoOpCollector) RecordReconcilePass(bool, time.Duration) {}
func (NoOpCollector) RecordReconcileOutcome(string, int) {}
func (NoOpCollector) RecordStalePending(int) {}
func (NoOpCollector) RecordStorageWriteError(string) {}
func (NoOpCollector) RecordTransfer(bool) {}
