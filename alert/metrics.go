package alert

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	alertsSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "airquality_alerts_sent_total",
		Help: "Notifications sent, by kind",
	}, []string{"kind"})
	alertsSkipped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "airquality_alerts_skipped_total",
		Help: "Candidate notifications suppressed, by gate",
	}, []string{"gate"})
	sendFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "airquality_send_failures_total",
		Help: "Notifications that could not be delivered",
	})
	pollCycles = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "airquality_poll_cycles_total",
		Help: "Poll cycles, by result",
	}, []string{"result"})
	pollDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "airquality_poll_cycle_seconds",
		Help:    "Duration of a poll cycle",
		Buckets: prometheus.ExponentialBuckets(0.5, 2, 10),
	})
)
