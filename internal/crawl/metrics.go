package crawl

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics are the crawl counters. A nil *Metrics records nothing.
type Metrics struct {
	papers    prometheus.Counter
	citations prometheus.Counter
	skipped   *prometheus.CounterVec
	duration  *prometheus.HistogramVec
}

// NewMetrics creates the crawl metrics and registers them on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		papers: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "citeq_crawl_papers_total",
			Help: "Papers written by the papers stage.",
		}),
		citations: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "citeq_crawl_citations_total",
			Help: "Citation rows written by the citations and references stages.",
		}),
		skipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "citeq_crawl_skipped_total",
			Help: "Papers skipped after an upstream failure, by stage.",
		}, []string{"stage"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "citeq_crawl_stage_seconds",
			Help:    "Wall time of each crawl stage.",
			Buckets: prometheus.ExponentialBuckets(1, 4, 8),
		}, []string{"stage"}),
	}
	reg.MustRegister(m.papers, m.citations, m.skipped, m.duration)
	return m
}

func (m *Metrics) addPapers(n int) {
	if m != nil {
		m.papers.Add(float64(n))
	}
}

func (m *Metrics) addCitations(n int) {
	if m != nil {
		m.citations.Add(float64(n))
	}
}

func (m *Metrics) skip(stage Stage) {
	if m != nil {
		m.skipped.WithLabelValues(string(stage)).Inc()
	}
}

func (m *Metrics) observe(stage Stage, start time.Time) {
	if m != nil {
		m.duration.WithLabelValues(string(stage)).Observe(time.Since(start).Seconds())
	}
}
