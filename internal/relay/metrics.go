package relay

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	loginTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ssorelay_login_total",
		Help: "Login redirects by outcome.",
	}, []string{"outcome"})

	callbackTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ssorelay_callback_total",
		Help: "Callbacks by outcome.",
	}, []string{"outcome"})

	exchangeSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "ssorelay_token_exchange_seconds",
		Help:    "Back-channel authorization code exchange latency.",
		Buckets: prometheus.DefBuckets,
	}, []string{"result"})
)

func observeExchange(start time.Time, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	exchangeSeconds.WithLabelValues(result).Observe(time.Since(start).Seconds())
}
