package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// CrashMetrics tracks settlement activity for the operations dashboard.
type CrashMetrics struct {
	roundsCreated  prometheus.Counter
	roundsResolved *prometheus.CounterVec
	betsPlaced     prometheus.Counter
	betsSettled    prometheus.Counter
	payoutsClaimed prometheus.Counter
	payoutVolume   prometheus.Counter
	vaultFunds     prometheus.Gauge
	treasuryFunds  prometheus.Gauge
}

var (
	crashOnce     sync.Once
	crashRegistry *CrashMetrics
)

// Crash returns the process-wide settlement metrics, registering the
// collectors on first use.
func Crash() *CrashMetrics {
	crashOnce.Do(func() {
		crashRegistry = &CrashMetrics{
			roundsCreated: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "crash_rounds_created_total",
				Help: "Count of crash rounds opened by the admin.",
			}),
			roundsResolved: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "crash_rounds_resolved_total",
				Help: "Count of resolved rounds by outcome.",
			}, []string{"outcome"}),
			betsPlaced: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "crash_bets_placed_total",
				Help: "Count of accepted stakes.",
			}),
			betsSettled: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "crash_bets_settled_total",
				Help: "Count of bets whose payout has been fixed at resolution.",
			}),
			payoutsClaimed: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "crash_payouts_claimed_total",
				Help: "Count of payouts credited back into user ledgers.",
			}),
			payoutVolume: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "crash_payout_volume_total",
				Help: "Sum of claimed payout amounts in base units.",
			}),
			vaultFunds: prometheus.NewGauge(prometheus.GaugeOpts{
				Name: "crash_vault_funds",
				Help: "Current pooled vault balance in base units.",
			}),
			treasuryFunds: prometheus.NewGauge(prometheus.GaugeOpts{
				Name: "crash_treasury_funds",
				Help: "Current treasury balance in base units.",
			}),
		}
		prometheus.MustRegister(
			crashRegistry.roundsCreated,
			crashRegistry.roundsResolved,
			crashRegistry.betsPlaced,
			crashRegistry.betsSettled,
			crashRegistry.payoutsClaimed,
			crashRegistry.payoutVolume,
			crashRegistry.vaultFunds,
			crashRegistry.treasuryFunds,
		)
	})
	return crashRegistry
}

func (m *CrashMetrics) RoundCreated() {
	m.roundsCreated.Inc()
}

func (m *CrashMetrics) RoundResolved(crashed bool, settled int) {
	outcome := "paid"
	if crashed {
		outcome = "crashed"
	}
	m.roundsResolved.WithLabelValues(outcome).Inc()
	m.betsSettled.Add(float64(settled))
}

func (m *CrashMetrics) BetPlaced() {
	m.betsPlaced.Inc()
}

func (m *CrashMetrics) PayoutClaimed(amount uint64) {
	m.payoutsClaimed.Inc()
	m.payoutVolume.Add(float64(amount))
}

func (m *CrashMetrics) SetFunds(vault, treasury uint64) {
	m.vaultFunds.Set(float64(vault))
	m.treasuryFunds.Set(float64(treasury))
}
