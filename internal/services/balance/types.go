package balance

import "time"

// ReleaseResult reports one sweep run over due blocked commissions.
type ReleaseResult struct {
	Scanned   int `json:"scanned"`
	Released  int `json:"released"`
	Conflicts int `json:"conflicts"` // lost optimistic checks, retried next run
	Failed    int `json:"failed"`
}

// ReconcileReport compares a user's cached balances against the ledger.
type ReconcileReport struct {
	UserID           uint    `json:"user_id"`
	AvailableBalance float64 `json:"available_balance"`
	BlockedBalance   float64 `json:"blocked_balance"`
	LedgerTotal      float64 `json:"ledger_total"` // non-reversed commissions minus non-rejected withdrawals
	Drift            float64 `json:"drift"`
	Consistent       bool    `json:"consistent"`
}

// MetricsCollector receives instrumentation from the lifecycle manager.
type MetricsCollector interface {
	RecordOperationDuration(operation string, duration time.Duration)
	RecordLedgerMove(operation string, amount float64)
	RecordSweep(released, conflicts int)
	RecordError(operation, errType string)
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
type NoopMetricsCollector struct{}

func (*NoopMetricsCollector) RecordOperationDuration(string, time.Duration) {}
func (*NoopMetricsCollector) RecordLedgerMove(string, float64)              {}
func (*NoopMetricsCollector) RecordSweep(int, int)                          {}
func (*NoopMetricsCollector) RecordError(string, string)                    {}
