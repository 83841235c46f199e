// Package metrics exposes the bot's Prometheus instruments and the auxiliary
// HTTP listener serving them next to a health probe.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "kinobot"

// Recorder owns a private registry so tests and multiple bots in one process
// never collide on the default one. A nil *Recorder records nothing.
type Recorder struct {
	reg *prometheus.Registry

	updates    *prometheus.CounterVec
	sends      *prometheus.CounterVec
	deliveries *prometheus.CounterVec
	gate       *prometheus.CounterVec
	commits    *prometheus.CounterVec
	flush      *prometheus.HistogramVec
	catalog    prometheus.Gauge
}

// New registers all instruments on a fresh registry together with the
// process and Go runtime collectors.
func New() *Recorder {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Recorder{
		reg: reg,
		updates: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "updates_total",
			Help:      "Telegram updates handled, by kind",
		}, []string{"kind"}),
		sends: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sends_total",
			Help:      "Queued Bot API calls by action and final outcome",
		}, []string{"action", "outcome"}),
		deliveries: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "deliveries_total",
			Help:      "Catalog lookups by plain users, by media kind and outcome",
		}, []string{"kind", "outcome"}),
		gate: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "gate_checks_total",
			Help:      "Subscription gate verdicts",
		}, []string{"outcome"}),
		commits: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "wizard_commits_total",
			Help:      "Admin wizards completed with a store mutation",
		}, []string{"wizard"}),
		flush: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "store_flush_seconds",
			Help:      "Duration of record store writes",
			Buckets:   []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25, .5, 1},
		}, []string{"collection"}),
		catalog: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "catalog_items",
			Help:      "Media records currently in the catalog",
		}),
	}
}

// ObserveUpdate counts one inbound update of the given kind (text, command, media, callback).
func (r *Recorder) ObserveUpdate(kind string) {
	if r == nil {
		return
	}
	r.updates.WithLabelValues(kind).Inc()
}

// ObserveSend counts a finished outbound call from the send queue.
func (r *Recorder) ObserveSend(action, outcome string) {
	if r == nil {
		return
	}
	r.sends.WithLabelValues(action, outcome).Inc()
}

// ObserveDelivery counts a catalog lookup; kind is empty for misses.
func (r *Recorder) ObserveDelivery(kind, outcome string) {
	if r == nil {
		return
	}
	if kind == "" {
		kind = "none"
	}
	r.deliveries.WithLabelValues(kind, outcome).Inc()
}

// ObserveGate counts a gate verdict.
func (r *Recorder) ObserveGate(outcome string) {
	if r == nil {
		return
	}
	r.gate.WithLabelValues(outcome).Inc()
}

// ObserveCommit counts a committed wizard.
func (r *Recorder) ObserveCommit(wizard string) {
	if r == nil {
		return
	}
	r.commits.WithLabelValues(wizard).Inc()
}

// ObserveFlush records how long a store write of collection took.
func (r *Recorder) ObserveFlush(collection string, d time.Duration) {
	if r == nil {
		return
	}
	r.flush.WithLabelValues(collection).Observe(d.Seconds())
}

// SetCatalogItems sets the catalog size gauge.
func (r *Recorder) SetCatalogItems(n int) {
	if r == nil {
		return
	}
	r.catalog.Set(float64(n))
}

// Gatherer exposes the registry for scraping and tests.
func (r *Recorder) Gatherer() prometheus.Gatherer { return r.reg }

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{Registry: r.reg})
}
