// Package metrics exposes Prometheus instrumentation for the lockup service.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// LockupMetrics instruments the custody engine's RPC surface.
type LockupMetrics struct {
	operations      *prometheus.CounterVec
	operationErrors *prometheus.CounterVec
	amountsClaimed  *prometheus.CounterVec
	amountsFunded   prometheus.Counter
	proofFailures   prometheus.Counter
}

var (
	lockupOnce     sync.Once
	lockupRegistry *LockupMetrics
)

// Lockup returns the process-wide lockup metrics, registering the collectors
// on first use.
func Lockup() *LockupMetrics {
	lockupOnce.Do(func() {
		lockupRegistry = &LockupMetrics{
			operations: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "lockvault_operations_total",
				Help: "Count of lockup operations processed by method.",
			}, []string{"method"}),
			operationErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "lockvault_operation_errors_total",
				Help: "Count of failed lockup operations by method.",
			}, []string{"method"}),
			amountsClaimed: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "lockvault_claimed_amount_total",
				Help: "Total tokens paid out to recipients by token symbol.",
			}, []string{"token"}),
			amountsFunded: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "lockvault_funded_amount_total",
				Help: "Total tokens locked into vaults and pools.",
			}),
			proofFailures: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "lockvault_proof_failures_total",
				Help: "Count of rejected Merkle proofs.",
			}),
		}
		prometheus.MustRegister(
			lockupRegistry.operations,
			lockupRegistry.operationErrors,
			lockupRegistry.amountsClaimed,
			lockupRegistry.amountsFunded,
			lockupRegistry.proofFailures,
		)
	})
	return lockupRegistry
}

// ObserveOperation records one completed operation and its outcome.
func (m *LockupMetrics) ObserveOperation(method string, err error) {
	if m == nil {
		return
	}
	m.operations.WithLabelValues(method).Inc()
	if err != nil {
		m.operationErrors.WithLabelValues(method).Inc()
	}
}

// ObserveClaim records a payout to a recipient.
func (m *LockupMetrics) ObserveClaim(token string, amount uint64) {
	if m == nil {
		return
	}
	m.amountsClaimed.WithLabelValues(token).Add(float64(amount))
}

// ObserveFunding records tokens entering custody.
func (m *LockupMetrics) ObserveFunding(amount uint64) {
	if m == nil {
		return
	}
	m.amountsFunded.Add(float64(amount))
}

// ObserveProofFailure records a rejected Merkle proof.
func (m *LockupMetrics) ObserveProofFailure() {
	if m == nil {
		return
	}
	m.proofFailures.Inc()
}
