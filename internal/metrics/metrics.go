// Package metrics exposes frontend and demux health as Prometheus
// gauges, served over a plain net/http handler.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry holds the gauges this engine exports. One Registry is created
// per process; per-input labels (adapter/device/filename) distinguish
// multiple tuners or files sharing the metrics endpoint.
type Registry struct {
	reg *prometheus.Registry

	Lock      *prometheus.GaugeVec
	SignalPct *prometheus.GaugeVec
	SNRPct    *prometheus.GaugeVec
	BER       *prometheus.GaugeVec
	Unc       *prometheus.GaugeVec
	BitrateKbps *prometheus.GaugeVec
	DemuxRefcount *prometheus.GaugeVec
}

// New creates a Registry with all gauges registered.
func New() *Registry {
	reg := prometheus.NewRegistry()
	labels := []string{"input"}

	r := &Registry{
		reg: reg,
		Lock: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "tsengine", Subsystem: "frontend", Name: "locked",
			Help: "1 if the frontend currently reports FE_HAS_LOCK, else 0.",
		}, labels),
		SignalPct: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "tsengine", Subsystem: "frontend", Name: "signal_percent",
			Help: "Signal strength scaled to 0-100.",
		}, labels),
		SNRPct: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "tsengine", Subsystem: "frontend", Name: "snr_percent",
			Help: "SNR scaled to 0-100.",
		}, labels),
		BER: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "tsengine", Subsystem: "frontend", Name: "ber",
			Help: "Raw FE_READ_BER value.",
		}, labels),
		Unc: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "tsengine", Subsystem: "frontend", Name: "uncorrected_blocks",
			Help: "Raw FE_READ_UNCORRECTED_BLOCKS value.",
		}, labels),
		BitrateKbps: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "tsengine", Subsystem: "dvr", Name: "bitrate_kbps",
			Help: "Measured TS bitrate over the last bitrate window.",
		}, labels),
		DemuxRefcount: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "tsengine", Subsystem: "demux", Name: "pid_refcount",
			Help: "Reference count of a joined PID filter.",
		}, []string{"input", "pid"}),
	}

	reg.MustRegister(r.Lock, r.SignalPct, r.SNRPct, r.BER, r.Unc, r.BitrateKbps, r.DemuxRefcount)
	return r
}

// Handler returns the HTTP handler serving the registry in Prometheus
// text exposition format.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{})
}
