package domain

import "time"

// ReconcileReport is the outcome of one reconciliation pass for an owner.
// A pass never fails as a whole; every problem is recorded here.
type ReconcileReport struct {
	Owner        string               `json:"owner"`
	Scanned      int                  `json:"scanned"`
	Confirmed    int                  `json:"confirmed"`
	Failed       int                  `json:"failed"`
	StillPending int                  `json:"still_pending"`
	Unchanged    int                  `json:"unchanged"`
	Stale        []string             `json:"stale,omitempty"`
	LookupErrors map[string]error     `json:"-"`
	WriteErrors  []*StorageWriteError `json:"-"`
	ListErr      error                `json:"-"`
	Skipped      bool                 `json:"skipped"`
	Duration     time.Duration        `json:"duration"`
}

// NewReconcileReport returns an empty report for owner.
func NewReconcileReport(owner string) ReconcileReport {
	return ReconcileReport{
		Owner:        owner,
		LookupErrors: make(map[string]error),
	}
}

// Updated returns the number of records moved to a terminal state.
func (r *ReconcileReport) Updated() int {
	return r.Confirmed + r.Failed
}

// Degraded reports whether some records could not be checked or written.
func (r *ReconcileReport) Degraded() bool {
	return r.ListErr != nil || len(r.LookupErrors) > 0 || len(r.WriteErrors) > 0
}
