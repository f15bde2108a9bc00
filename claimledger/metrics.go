package claimledger

import "github.com/prometheus/client_golang/prometheus"

var (
	claimsCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "distributor",
		Subsystem: "claim_ledger",
		Name:      "claims_total",
		Help:      "Claim attempts by result.",
	}, []string{"result"})
	claimedTokens = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "distributor",
		Subsystem: "claim_ledger",
		Name:      "claimed_tokens_total",
		Help:      "Tokens paid out by claims.",
	})
	rotationsCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "distributor",
		Subsystem: "claim_ledger",
		Name:      "rotations_total",
		Help:      "Published roots.",
	})
)

func init() {
	prometheus.MustRegister(claimsCounter, claimedTokens, rotationsCounter)
}
