// Package metrics exposes Prometheus collectors for the campaign engine.
package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the engine collectors. A nil *Metrics is valid and records
// nothing.
type Metrics struct {
	gatherer prometheus.Gatherer

	running         prometheus.Gauge
	cycles          *prometheus.CounterVec
	skipped         *prometheus.CounterVec
	classifications *prometheus.CounterVec
	saved           prometheus.Counter
	healed          prometheus.Counter
}

// New registers the collectors on a fresh registry.
func New() *Metrics {
	return NewWithRegistry(prometheus.NewRegistry())
}

// NewWithRegistry registers the collectors on reg.
func NewWithRegistry(reg *prometheus.Registry) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		gatherer: reg,
		running: f.NewGauge(prometheus.GaugeOpts{
			Name: "monitor_campaigns_running",
			Help: "Number of campaign loops currently running",
		}),
		cycles: f.NewCounterVec(prometheus.CounterOpts{
			Name: "monitor_cycles_total",
			Help: "Campaign cycles started, by campaign",
		}, []string{"campaign"}),
		skipped: f.NewCounterVec(prometheus.CounterOpts{
			Name: "monitor_candidates_skipped_total",
			Help: "Candidates skipped during a search pass, by reason",
		}, []string{"reason"}),
		classifications: f.NewCounterVec(prometheus.CounterOpts{
			Name: "monitor_classifications_total",
			Help: "Classification outcomes, by result",
		}, []string{"result"}),
		saved: f.NewCounter(prometheus.CounterOpts{
			Name: "monitor_results_saved_total",
			Help: "Results inserted into the store",
		}),
		healed: f.NewCounter(prometheus.CounterOpts{
			Name: "monitor_retry_healed_total",
			Help: "Error results replaced by a successful retry",
		}),
	}
}

// Handler serves the collectors in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

// SetRunning records the number of running campaign loops.
func (m *Metrics) SetRunning(n int) {
	if m == nil {
		return
	}
	m.running.Set(float64(n))
}

// CycleStarted counts one cycle of a campaign.
func (m *Metrics) CycleStarted(campaignID int64) {
	if m == nil {
		return
	}
	m.cycles.WithLabelValues(strconv.FormatInt(campaignID, 10)).Inc()
}

// CandidateSkipped counts one skipped candidate.
func (m *Metrics) CandidateSkipped(reason string) {
	if m == nil {
		return
	}
	m.skipped.WithLabelValues(reason).Inc()
}

// Classified counts one classification outcome.
func (m *Metrics) Classified(result string) {
	if m == nil {
		return
	}
	m.classifications.WithLabelValues(result).Inc()
}

// ResultSaved counts one inserted result.
func (m *Metrics) ResultSaved() {
	if m == nil {
		return
	}
	m.saved.Inc()
}

// RetryHealed counts one healed error result.
func (m *Metrics) RetryHealed() {
	if m == nil {
		return
	}
	m.healed.Inc()
}
