package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	ResultOk    = "ok"
	ResultError = "error"
)

// Recorder collects refresh and snapshot metrics in its own registry.
type Recorder struct {
	registry      *prometheus.Registry
	cycles        *prometheus.CounterVec
	cycleDuration *prometheus.HistogramVec
	lastSuccess   prometheus.Gauge
	windows       prometheus.Gauge
	currentPrice  *prometheus.GaugeVec
}

func New() *Recorder {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Recorder{
		registry: reg,
		cycles: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "spotprice_fetch_cycles_total",
				Help: "Number of refresh cycles by source and result",
			},
			[]string{"source", "result"},
		),
		cycleDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "spotprice_fetch_cycle_duration_seconds",
				Help:    "Duration of refresh cycles in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"result"},
		),
		lastSuccess: factory.NewGauge(prometheus.GaugeOpts{
			Name: "spotprice_last_success_timestamp_seconds",
			Help: "Unix time of the last successful refresh",
		}),
		windows: factory.NewGauge(prometheus.GaugeOpts{
			Name: "spotprice_snapshot_windows",
			Help: "Number of price windows in the current snapshot",
		}),
		currentPrice: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "spotprice_current_price",
				Help: "Price of the current hour window",
			},
			[]string{"area", "currency"},
		),
	}
}

func (r *Recorder) RecordCycle(source, result string, d time.Duration) {
	r.cycles.WithLabelValues(source, result).Inc()
	r.cycleDuration.WithLabelValues(result).Observe(d.Seconds())
	if result == ResultOk {
		r.lastSuccess.SetToCurrentTime()
	}
}

func (r *Recorder) RecordSnapshot(windows int) {
	r.windows.Set(float64(windows))
}

func (r *Recorder) RecordCurrentPrice(area, currency string, price float64) {
	r.currentPrice.WithLabelValues(area, currency).Set(price)
}

// ClearCurrentPrice drops the gauge when no window covers the current hour.
func (r *Recorder) ClearCurrentPrice(area, currency string) {
	r.currentPrice.DeleteLabelValues(area, currency)
}

func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}
