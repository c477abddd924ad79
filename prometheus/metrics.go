// Package prometheus records run statistics as Prometheus metrics and
// exports them in the node_exporter textfile format.
package prometheus

import (
	"time"

	"github.com/fwojciec/docmirror"
	prom "github.com/prometheus/client_golang/prometheus"
)

const namespace = "docmirror"

// Ensure Metrics implements docmirror.Metrics.
var _ docmirror.Metrics = (*Metrics)(nil)

// Metrics implements docmirror.Metrics on a private registry.
type Metrics struct {
	reg *prom.Registry

	pages            *prom.CounterVec
	retries          prom.Counter
	rateLimitWaits   prom.Counter
	rateLimitSeconds prom.Counter
	fallbacks        *prom.CounterVec
	runDuration      prom.Gauge
	files            prom.Gauge
	lastRun          prom.Gauge

	now func() time.Time
}

// NewMetrics constructs and registers the run metrics. A nil registry gets a
// fresh one.
func NewMetrics(reg *prom.Registry) *Metrics {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	m := &Metrics{
		reg: reg,
		pages: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "pages_total",
			Help:      "Pages and changelog processed, by outcome",
		}, []string{"outcome"}),
		retries: prom.NewCounter(prom.CounterOpts{
			Namespace: namespace,
			Name:      "fetch_retries_total",
			Help:      "Fetch retries after transient failures",
		}),
		rateLimitWaits: prom.NewCounter(prom.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limit_waits_total",
			Help:      "Waits caused by HTTP 429 responses",
		}),
		rateLimitSeconds: prom.NewCounter(prom.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limit_wait_seconds_total",
			Help:      "Time spent waiting on HTTP 429 responses",
		}),
		fallbacks: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "fallbacks_total",
			Help:      "Uses of the static fallback configuration, by stage",
		}, []string{"stage"}),
		runDuration: prom.NewGauge(prom.GaugeOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Duration of the last run",
		}),
		files: prom.NewGauge(prom.GaugeOpts{
			Namespace: namespace,
			Name:      "files",
			Help:      "Files tracked by the manifest after the last run",
		}),
		lastRun: prom.NewGauge(prom.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time the last run completed",
		}),
		now: time.Now,
	}
	reg.MustRegister(m.pages, m.retries, m.rateLimitWaits, m.rateLimitSeconds, m.fallbacks, m.runDuration, m.files, m.lastRun)
	return m
}

// Registry returns the registry the metrics are registered with.
func (m *Metrics) Registry() *prom.Registry {
	return m.reg
}

func (m *Metrics) PageProcessed(outcome string) {
	m.pages.WithLabelValues(outcome).Inc()
}

func (m *Metrics) Retried() {
	m.retries.Inc()
}

func (m *Metrics) RateLimited(wait time.Duration) {
	m.rateLimitWaits.Inc()
	m.rateLimitSeconds.Add(wait.Seconds())
}

func (m *Metrics) FallbackUsed(stage string) {
	m.fallbacks.WithLabelValues(stage).Inc()
}

func (m *Metrics) RunCompleted(duration time.Duration, files int) {
	m.runDuration.Set(duration.Seconds())
	m.files.Set(float64(files))
	m.lastRun.Set(float64(m.now().Unix()))
}

// WriteTextfile writes every metric to path in the text exposition format.
// The file is written to a temporary name and renamed into place.
func (m *Metrics) WriteTextfile(path string) error {
	if err := prom.WriteToTextfile(path, m.reg); err != nil {
		return docmirror.Errorf(docmirror.EINTERNAL, "writing metrics to %s: %v", path, err)
	}
	return nil
}
