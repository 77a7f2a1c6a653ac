// Package metrics holds the Prometheus collectors of the lottery.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry holds the application-specific Prometheus collectors.
	Registry = prometheus.NewRegistry()

	ticketsSold = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "lottery",
			Subsystem: "tickets",
			Name:      "sold_total",
			Help:      "Total number of tickets sold.",
		},
	)

	ticketRevenue = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "lottery",
			Subsystem: "tickets",
			Name:      "revenue_total",
			Help:      "Total ticket revenue in currency units.",
		},
	)

	drawings = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "lottery",
			Subsystem: "drawings",
			Name:      "completed_total",
			Help:      "Total number of completed drawings.",
		},
		[]string{"trigger"},
	)

	drawingDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "lottery",
			Subsystem: "drawings",
			Name:      "duration_seconds",
			Help:      "Duration of a drawing including settlement.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~4s
		},
	)

	winners = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "lottery",
			Subsystem: "settlement",
			Name:      "winners_total",
			Help:      "Total number of winning tickets per class.",
		},
		[]string{"class"},
	)

	payouts = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "lottery",
			Subsystem: "settlement",
			Name:      "payouts_total",
			Help:      "Total prize money credited in currency units.",
		},
	)

	jackpot = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "lottery",
			Name:      "jackpot",
			Help:      "Displayed jackpot of the active drawing.",
		},
	)

	schedulerRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "lottery",
			Subsystem: "scheduler",
			Name:      "runs_total",
			Help:      "Total number of scheduled drawing attempts.",
		},
		[]string{"success"},
	)
)

func init() {
	Registry.MustRegister(
		ticketsSold,
		ticketRevenue,
		drawings,
		drawingDuration,
		winners,
		payouts,
		jackpot,
		schedulerRuns,
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		prometheus.NewGoCollector(),
	)
}

// Handler returns an HTTP handler exposing the registered Prometheus metrics.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// AddTicketsSold records a completed purchase.
func AddTicketsSold(count int, revenue int64) {
	ticketsSold.Add(float64(count))
	ticketRevenue.Add(float64(revenue))
}

// ObserveDrawing records a completed drawing.
func ObserveDrawing(trigger string, duration time.Duration) {
	drawings.WithLabelValues(trigger).Inc()
	drawingDuration.Observe(duration.Seconds())
}

// ObserveWinner records a winning ticket and its prize.
func ObserveWinner(class int, amount int64) {
	winners.WithLabelValues(strconv.Itoa(class)).Inc()
	payouts.Add(float64(amount))
}

// SetJackpot publishes the displayed jackpot of the active drawing.
func SetJackpot(amount int64) {
	jackpot.Set(float64(amount))
}

// ObserveSchedulerRun records a scheduled drawing attempt.
func ObserveSchedulerRun(success bool) {
	schedulerRuns.WithLabelValues(strconv.FormatBool(success)).Inc()
}
