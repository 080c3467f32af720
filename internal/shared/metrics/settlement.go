package metrics

import "github.com/prometheus/client_golang/prometheus"

// Settlement agrupa as métricas do motor de liquidação
type Settlement struct {
	BetsPlaced     *prometheus.CounterVec
	WagersSettled  *prometheus.CounterVec
	PayoutsCredit  *prometheus.CounterVec
	ReviewFlags    *prometheus.CounterVec
	CascadeSeconds *prometheus.HistogramVec
	WorkerMessages *prometheus.CounterVec
	WorkerErrors   *prometheus.CounterVec
}

func NewSettlement(reg prometheus.Registerer) *Settlement {
	m := &Settlement{
		BetsPlaced: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "settlement_bets_placed_total", Help: "apostas por resultado (ok ou tipo do erro)",
		}, []string{"outcome"}),
		WagersSettled: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "settlement_wagers_settled_total", Help: "wagers pagos por resultado",
		}, []string{"result"}),
		PayoutsCredit: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "settlement_payouts_credited_total", Help: "créditos de prêmio/estorno aplicados",
		}, []string{"kind"}),
		ReviewFlags: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "settlement_review_flags_total", Help: "wagers enviados para revisão manual",
		}, []string{"reason"}),
		CascadeSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name: "settlement_cascade_duration_seconds", Help: "duração de MatchConcluded",
			Buckets: prometheus.DefBuckets,
		}, []string{"status"}),
		WorkerMessages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "settlement_worker_messages_total", Help: "mensagens match_concluded por etapa",
		}, []string{"stage"}),
		WorkerErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "settlement_worker_errors_total", Help: "erros do worker por etapa",
		}, []string{"stage"}),
	}
	reg.MustRegister(m.BetsPlaced, m.WagersSettled, m.PayoutsCredit, m.ReviewFlags,
		m.CascadeSeconds, m.WorkerMessages, m.WorkerErrors)
	return m
}
