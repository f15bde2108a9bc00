package vesting

import "github.com/prometheus/client_golang/prometheus"

var (
	claimsCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "distributor",
		Subsystem: "vesting",
		Name:      "claims_total",
		Help:      "Vesting claim attempts by result.",
	}, []string{"result"})
	paidTokens = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "distributor",
		Subsystem: "vesting",
		Name:      "paid_tokens_total",
		Help:      "Tokens paid out of the escrow.",
	})
	fundedTokens = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "distributor",
		Subsystem: "vesting",
		Name:      "funded_tokens_total",
		Help:      "Tokens locked into the escrow.",
	})
)

func init() {
	prometheus.MustRegister(claimsCounter, paidTokens, fundedTokens)
}
