package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds Prometheus counters and gauges for the preview daemon.
type Metrics struct {
	registry            *prometheus.Registry
	requestsTotal       prometheus.Counter
	errorsTotal         prometheus.Counter
	loadsStartedTotal   prometheus.Counter
	loadsCompletedTotal prometheus.Counter
	loadsCancelledTotal prometheus.Counter
	decodeFailuresTotal prometheus.Counter
	gateBusyTotal       prometheus.Counter
	assetsScanned       prometheus.Gauge
	packedTextures      prometheus.Gauge
}

// New creates and registers Prometheus metrics for the preview daemon.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	requestsTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "preview_requests_total",
		Help: "Total number of HTTP requests received",
	})
	errorsTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "preview_errors_total",
		Help: "Total number of HTTP responses with error status (4xx or 5xx)",
	})
	loadsStartedTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "preview_loads_started_total",
		Help: "Total number of preview loads started by a selection",
	})
	loadsCompletedTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "preview_loads_completed_total",
		Help: "Total number of preview loads that reached the renderer",
	})
	loadsCancelledTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "preview_loads_cancelled_total",
		Help: "Total number of preview loads superseded by a newer selection",
	})
	decodeFailuresTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "preview_decode_failures_total",
		Help: "Total number of preview loads aborted by a decode error",
	})
	gateBusyTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "preview_gate_busy_total",
		Help: "Total number of preview loads dropped because the upload gate was busy",
	})
	assetsScanned := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "preview_assets_scanned",
		Help: "Number of assets currently in the catalog",
	})
	packedTextures := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "preview_packed_textures",
		Help: "Number of registered virtual packed textures",
	})

	registry.MustRegister(
		requestsTotal,
		errorsTotal,
		loadsStartedTotal,
		loadsCompletedTotal,
		loadsCancelledTotal,
		decodeFailuresTotal,
		gateBusyTotal,
		assetsScanned,
		packedTextures,
	)

	return &Metrics{
		registry:            registry,
		requestsTotal:       requestsTotal,
		errorsTotal:         errorsTotal,
		loadsStartedTotal:   loadsStartedTotal,
		loadsCompletedTotal: loadsCompletedTotal,
		loadsCancelledTotal: loadsCancelledTotal,
		decodeFailuresTotal: decodeFailuresTotal,
		gateBusyTotal:       gateBusyTotal,
		assetsScanned:       assetsScanned,
		packedTextures:      packedTextures,
	}
}

// IncRequests increments the total request counter.
func (m *Metrics) IncRequests() {
	m.requestsTotal.Inc()
}

// IncErrors increments the errors counter.
func (m *Metrics) IncErrors() {
	m.errorsTotal.Inc()
}

// IncLoadsStarted increments the loads started counter.
func (m *Metrics) IncLoadsStarted() {
	m.loadsStartedTotal.Inc()
}

// IncLoadsCompleted increments the loads completed counter.
func (m *Metrics) IncLoadsCompleted() {
	m.loadsCompletedTotal.Inc()
}

// IncLoadsCancelled increments the superseded-loads counter.
func (m *Metrics) IncLoadsCancelled() {
	m.loadsCancelledTotal.Inc()
}

// IncDecodeFailures increments the decode failure counter.
func (m *Metrics) IncDecodeFailures() {
	m.decodeFailuresTotal.Inc()
}

// IncGateBusy increments the gate-busy drop counter.
func (m *Metrics) IncGateBusy() {
	m.gateBusyTotal.Inc()
}

// SetAssetsScanned sets the catalog size gauge.
func (m *Metrics) SetAssetsScanned(n int) {
	m.assetsScanned.Set(float64(n))
}

// SetPackedTextures sets the packed-texture gauge.
func (m *Metrics) SetPackedTextures(n int) {
	m.packedTextures.Set(float64(n))
}

// Handler returns an http.Handler that serves Prometheus metrics.
// updateGauges is called before each scrape to refresh gauge values
// (e.g. catalog size after a rescan).
func (m *Metrics) Handler(updateGauges func()) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if updateGauges != nil {
			updateGauges()
		}
		promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}).ServeHTTP(w, r)
	})
}
