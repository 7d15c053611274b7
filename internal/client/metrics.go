package client

import "github.com/prometheus/client_golang/prometheus"

// Metrics counts refresh coordination events. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	refreshes     *prometheus.CounterVec
	queued        prometheus.Counter
	replays       *prometheus.CounterVec
	forcedLogouts prometheus.Counter
}

const (
	outcomeSuccess        = "success"
	outcomeRejected       = "rejected"
	outcomeNoRefreshToken = "no_refresh_token"
	outcomeError          = "error"
)

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		refreshes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "authclient",
			Name:      "refresh_total",
			Help:      "Token refresh attempts by outcome.",
		}, []string{"outcome"}),
		queued: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "authclient",
			Name:      "refresh_queued_total",
			Help:      "Requests that waited on an in-flight refresh.",
		}),
		replays: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "authclient",
			Name:      "replays_total",
			Help:      "Requests re-issued with a renewed access token, by outcome.",
		}, []string{"outcome"}),
		forcedLogouts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "authclient",
			Name:      "forced_logouts_total",
			Help:      "Sessions torn down because the access token could not be renewed.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.refreshes, m.queued, m.replays, m.forcedLogouts)
	}
	return m
}

func (m *Metrics) refresh(outcome string) {
	if m == nil {
		return
	}
	m.refreshes.WithLabelValues(outcome).Inc()
}

func (m *Metrics) enqueue() {
	if m == nil {
		return
	}
	m.queued.Inc()
}

func (m *Metrics) replay(err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.replays.WithLabelValues(outcomeError).Inc()
		return
	}
	m.replays.WithLabelValues(outcomeSuccess).Inc()
}

func (m *Metrics) forcedLogout() {
	if m == nil {
		return
	}
	m.forcedLogouts.Inc()
}
