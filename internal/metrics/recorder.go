// Package metrics records cycle and sub-task measurements and pushes them
// to a Prometheus Pushgateway when one is configured.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/push"

	"gridpulse/internal/config"
	"gridpulse/internal/support/logger"
)

// Recorder is the metrics interface used by the cycle runner.
type Recorder interface {
	RecordCycleEnd(status string, duration time.Duration)
	RecordSubTaskEnd(subTask, status string, duration time.Duration)
	RecordRowsUpserted(dataset string, count int64)
	RecordRowsDeleted(count int64)
	// Push sends the current registry state to the Pushgateway, if any.
	Push() error
}

// PrometheusRecorder is the Prometheus implementation of Recorder.
type PrometheusRecorder struct {
	registry *prometheus.Registry
	pusher   *push.Pusher

	cycleDurationSeconds   *prometheus.HistogramVec
	cycleStatusCounter     *prometheus.CounterVec
	subTaskDurationSeconds *prometheus.HistogramVec
	subTaskStatusCounter   *prometheus.CounterVec
	rowsUpsertedCounter    *prometheus.CounterVec
	rowsDeletedCounter     prometheus.Counter
}

// NewPrometheusRecorder creates a recorder. A Pushgateway pusher is attached
// only when the URL is configured.
func NewPrometheusRecorder(cfg config.MetricsConfig) *PrometheusRecorder {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	r := &PrometheusRecorder{
		registry: registry,
		cycleDurationSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "gridpulse_cycle_duration_seconds",
			Help:    "Duration of report cycles.",
			Buckets: prometheus.DefBuckets,
		}, []string{"status"}),
		cycleStatusCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gridpulse_cycle_status_total",
			Help: "Total number of report cycles by status.",
		}, []string{"status"}),
		subTaskDurationSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "gridpulse_subtask_duration_seconds",
			Help:    "Duration of cycle sub-tasks.",
			Buckets: prometheus.DefBuckets,
		}, []string{"sub_task", "status"}),
		subTaskStatusCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gridpulse_subtask_status_total",
			Help: "Total number of sub-task executions by status.",
		}, []string{"sub_task", "status"}),
		rowsUpsertedCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gridpulse_rows_upserted_total",
			Help: "Total rows written by dataset.",
		}, []string{"dataset"}),
		rowsDeletedCounter: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gridpulse_rows_deleted_total",
			Help: "Total rows removed by retention cleanup.",
		}),
	}

	registry.MustRegister(r.cycleDurationSeconds)
	registry.MustRegister(r.cycleStatusCounter)
	registry.MustRegister(r.subTaskDurationSeconds)
	registry.MustRegister(r.subTaskStatusCounter)
	registry.MustRegister(r.rowsUpsertedCounter)
	registry.MustRegister(r.rowsDeletedCounter)

	if cfg.PushgatewayURL != "" {
		jobName := cfg.JobName
		if jobName == "" {
			jobName = "gridpulse"
		}
		r.pusher = push.New(cfg.PushgatewayURL, jobName).Gatherer(registry)
	}
	return r
}

// GetRegistry returns the Prometheus registry.
func (r *PrometheusRecorder) GetRegistry() *prometheus.Registry {
	return r.registry
}

func (r *PrometheusRecorder) RecordCycleEnd(status string, duration time.Duration) {
	r.cycleStatusCounter.WithLabelValues(status).Inc()
	r.cycleDurationSeconds.WithLabelValues(status).Observe(duration.Seconds())
	logger.Debugf("Metrics: cycle ended with status '%s'. Duration: %.3fs", status, duration.Seconds())
}

func (r *PrometheusRecorder) RecordSubTaskEnd(subTask, status string, duration time.Duration) {
	r.subTaskStatusCounter.WithLabelValues(subTask, status).Inc()
	r.subTaskDurationSeconds.WithLabelValues(subTask, status).Observe(duration.Seconds())
	logger.Debugf("Metrics: sub-task '%s' ended with status '%s'. Duration: %.3fs", subTask, status, duration.Seconds())
}

func (r *PrometheusRecorder) RecordRowsUpserted(dataset string, count int64) {
	r.rowsUpsertedCounter.WithLabelValues(dataset).Add(float64(count))
}

func (r *PrometheusRecorder) RecordRowsDeleted(count int64) {
	r.rowsDeletedCounter.Add(float64(count))
}

// Push is a no-op when no Pushgateway is configured.
func (r *PrometheusRecorder) Push() error {
	if r.pusher == nil {
		return nil
	}
	if err := r.pusher.Push(); err != nil {
		logger.Warnf("Failed to push metrics: %v", err)
		return err
	}
	return nil
}

var _ Recorder = (*PrometheusRecorder)(nil)
