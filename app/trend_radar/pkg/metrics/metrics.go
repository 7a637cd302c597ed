package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder 流水线指标，使用独立的 Registry
type Recorder struct {
	reg *prometheus.Registry

	stageDuration *prometheus.HistogramVec
	stageRuns     *prometheus.CounterVec
	stageItems    *prometheus.CounterVec
	runDuration   prometheus.Gauge
	runTotal      *prometheus.CounterVec
	lastRun       prometheus.Gauge
	requests      *prometheus.CounterVec
}

func New() *Recorder {
	r := &Recorder{
		reg: prometheus.NewRegistry(),
		stageDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "trend_radar_stage_duration_seconds",
				Help:    "Pipeline stage duration in seconds",
				Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800},
			},
			[]string{"stage"},
		),
		stageRuns: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "trend_radar_stage_runs_total",
				Help: "Total stage runs by status",
			},
			[]string{"stage", "status"},
		),
		stageItems: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "trend_radar_stage_items_total",
				Help: "Units processed per stage (topics, articles, categories)",
			},
			[]string{"stage", "result"},
		),
		runDuration: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "trend_radar_run_duration_seconds",
				Help: "Duration of the last pipeline run in seconds",
			},
		),
		runTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "trend_radar_runs_total",
				Help: "Total pipeline runs by status",
			},
			[]string{"status"},
		),
		lastRun: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "trend_radar_last_run_timestamp_seconds",
				Help: "Unix time of the last finished pipeline run",
			},
		),
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "trend_radar_http_requests_total",
				Help: "Display server requests by route and status",
			},
			[]string{"route", "status"},
		),
	}
	r.reg.MustRegister(
		r.stageDuration,
		r.stageRuns,
		r.stageItems,
		r.runDuration,
		r.runTotal,
		r.lastRun,
		r.requests,
	)
	return r
}

func (r *Recorder) ObserveStage(stage, status string, d time.Duration, succeeded, failed int) {
	r.stageRuns.WithLabelValues(stage, status).Inc()
	if status == "skipped" {
		return
	}
	r.stageDuration.WithLabelValues(stage).Observe(d.Seconds())
	r.stageItems.WithLabelValues(stage, "succeeded").Add(float64(succeeded))
	r.stageItems.WithLabelValues(stage, "failed").Add(float64(failed))
}

func (r *Recorder) ObserveRun(status string, d time.Duration) {
	r.runTotal.WithLabelValues(status).Inc()
	r.runDuration.Set(d.Seconds())
	r.lastRun.SetToCurrentTime()
}

func (r *Recorder) ObserveRequest(route, status string) {
	r.requests.WithLabelValues(route, status).Inc()
}

// WriteTextfile 写入 node_exporter textfile collector 格式
func (r *Recorder) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, r.reg)
}

func (r *Recorder) Registry() *prometheus.Registry {
	return r.reg
}

// Handler 展示服务的 /metrics
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{})
}
