// Package telemetry provides Prometheus metrics and correlation-id aware logging helpers.
package telemetry

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	once sync.Once

	// Counters
	MessagesReceived prometheus.Counter
	MessagesAccepted prometheus.Counter
	MessagesRejected *prometheus.CounterVec // label: reason
	Generations      prometheus.Counter
	EmptyGenerations prometheus.Counter
	PostsSucceeded   prometheus.Counter
	PostsFailed      prometheus.Counter
	BrainLoadFailed  prometheus.Counter
	BrainSaveFailed  prometheus.Counter

	// Histograms (seconds)
	BrainSaveDuration prometheus.Observer
	HandleDuration    prometheus.Observer

	// Gauges
	BrainKeysGauge       prometheus.Gauge
	BrainSuccessorsGauge prometheus.Gauge
	TriggerCounterGauge  prometheus.Gauge
)

// Init registers metrics (idempotent).
func Init() {
	once.Do(func() {
		MessagesReceived = promauto.NewCounter(prometheus.CounterOpts{Name: "chatter_messages_received_total", Help: "Chat messages seen by the bot"})
		MessagesAccepted = promauto.NewCounter(prometheus.CounterOpts{Name: "chatter_messages_accepted_total", Help: "Chat messages that passed the ingestion filter"})
		MessagesRejected = promauto.NewCounterVec(prometheus.CounterOpts{Name: "chatter_messages_rejected_total", Help: "Chat messages rejected by the ingestion filter"}, []string{"reason"})
		Generations = promauto.NewCounter(prometheus.CounterOpts{Name: "chatter_generations_total", Help: "Generation triggers fired"})
		EmptyGenerations = promauto.NewCounter(prometheus.CounterOpts{Name: "chatter_generations_empty_total", Help: "Generation triggers that produced no sentence"})
		PostsSucceeded = promauto.NewCounter(prometheus.CounterOpts{Name: "chatter_posts_succeeded_total", Help: "Generated sentences posted to chat"})
		PostsFailed = promauto.NewCounter(prometheus.CounterOpts{Name: "chatter_posts_failed_total", Help: "Generated sentences that failed to post"})
		BrainLoadFailed = promauto.NewCounter(prometheus.CounterOpts{Name: "chatter_brain_load_failed_total", Help: "Brain loads that fell back to an empty table"})
		BrainSaveFailed = promauto.NewCounter(prometheus.CounterOpts{Name: "chatter_brain_save_failed_total", Help: "Brain saves that failed"})
		BrainSaveDuration = promauto.NewHistogram(prometheus.HistogramOpts{Name: "chatter_brain_save_duration_seconds", Help: "Brain save duration seconds", Buckets: prometheus.DefBuckets})
		HandleDuration = promauto.NewHistogram(prometheus.HistogramOpts{Name: "chatter_handle_duration_seconds", Help: "Time to process one accepted message", Buckets: prometheus.DefBuckets})
		BrainKeysGauge = promauto.NewGauge(prometheus.GaugeOpts{Name: "chatter_brain_keys", Help: "Bigram keys in the transition table"})
		BrainSuccessorsGauge = promauto.NewGauge(prometheus.GaugeOpts{Name: "chatter_brain_successors", Help: "Successor entries in the transition table"})
		TriggerCounterGauge = promauto.NewGauge(prometheus.GaugeOpts{Name: "chatter_trigger_counter", Help: "Accepted messages since the last generation"})
	})
}

// IncRejected counts a filter rejection by reason.
func IncRejected(reason string) {
	if MessagesRejected != nil {
		MessagesRejected.WithLabelValues(reason).Inc()
	}
}

// Inc increments c when metrics are initialized.
func Inc(c prometheus.Counter) {
	if c != nil {
		c.Inc()
	}
}

// SetBrainSize records the current table dimensions.
func SetBrainSize(keys, successors int) {
	if BrainKeysGauge != nil {
		BrainKeysGauge.Set(float64(keys))
	}
	if BrainSuccessorsGauge != nil {
		BrainSuccessorsGauge.Set(float64(successors))
	}
}

// SetTriggerCounter records the trigger scheduler position.
func SetTriggerCounter(n int) {
	if TriggerCounterGauge != nil {
		TriggerCounterGauge.Set(float64(n))
	}
}

// TimeFunc measures the duration of fn and records in observer if non-nil.
func TimeFunc(obs prometheus.Observer, fn func()) time.Duration {
	start := time.Now()
	fn()
	d := time.Since(start)
	if obs != nil {
		obs.Observe(d.Seconds())
	}
	return d
}

// ObserveSince records the time elapsed since start in obs if non-nil.
func ObserveSince(obs prometheus.Observer, start time.Time) {
	if obs != nil {
		obs.Observe(time.Since(start).Seconds())
	}
}

// Correlation ID helpers ----------------------------------------------------
type corrKeyType struct{}

var corrKey corrKeyType

// WithCorrelation returns a new context embedding correlation id.
func WithCorrelation(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, corrKey, id)
}

// GetCorrelation returns correlation id or empty string.
func GetCorrelation(ctx context.Context) string {
	if s, ok := ctx.Value(corrKey).(string); ok {
		return s
	}
	return ""
}

// LoggerWithCorr returns a logger with corr attribute if present.
func LoggerWithCorr(ctx context.Context) *slog.Logger {
	if id := GetCorrelation(ctx); id != "" {
		return slog.Default().With(slog.String("corr", id))
	}
	return slog.Default()
}
