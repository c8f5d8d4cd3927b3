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
	RelayEvents       *prometheus.CounterVec // labels: type, result
	ReconcilePasses   *prometheus.CounterVec // labels: result
	ChannelsCreated   prometheus.Counter
	ChannelsDeleted   prometheus.Counter
	ChannelOpFailures *prometheus.CounterVec // labels: op
	ForwardRequests   *prometheus.CounterVec // labels: code
	ModerationCmds    *prometheus.CounterVec // labels: command, result

	// Histograms (seconds)
	ForwardDuration   prometheus.Observer
	ReconcileDuration prometheus.Observer
	BackendDuration   prometheus.Observer

	// Gauges
	DirectoryLevels prometheus.Gauge
	LoopQueueDepth  prometheus.Gauge
	Correlations    *prometheus.GaugeVec // labels: kind
)

// Init registers metrics (idempotent).
func Init() {
	once.Do(func() {
		RelayEvents = promauto.NewCounterVec(prometheus.CounterOpts{Name: "discord_relay_events_total", Help: "Domain events sent to the backend"}, []string{"type", "result"})
		ReconcilePasses = promauto.NewCounterVec(prometheus.CounterOpts{Name: "discord_reconcile_passes_total", Help: "Channel reconciliation passes"}, []string{"result"})
		ChannelsCreated = promauto.NewCounter(prometheus.CounterOpts{Name: "discord_channels_created_total", Help: "Level channels created"})
		ChannelsDeleted = promauto.NewCounter(prometheus.CounterOpts{Name: "discord_channels_deleted_total", Help: "Stale level channels deleted"})
		ChannelOpFailures = promauto.NewCounterVec(prometheus.CounterOpts{Name: "discord_channel_op_failures_total", Help: "Failed channel create/delete calls"}, []string{"op"})
		ForwardRequests = promauto.NewCounterVec(prometheus.CounterOpts{Name: "discord_forward_requests_total", Help: "Forward endpoint requests by status code"}, []string{"code"})
		ModerationCmds = promauto.NewCounterVec(prometheus.CounterOpts{Name: "discord_moderation_commands_total", Help: "Moderation commands handled"}, []string{"command", "result"})
		ForwardDuration = promauto.NewHistogram(prometheus.HistogramOpts{Name: "discord_forward_duration_seconds", Help: "Time to post a forwarded message to Discord", Buckets: prometheus.DefBuckets})
		ReconcileDuration = promauto.NewHistogram(prometheus.HistogramOpts{Name: "discord_reconcile_duration_seconds", Help: "Reconciliation pass duration seconds", Buckets: prometheus.DefBuckets})
		BackendDuration = promauto.NewHistogram(prometheus.HistogramOpts{Name: "discord_backend_request_duration_seconds", Help: "Backend API call duration seconds", Buckets: prometheus.DefBuckets})
		DirectoryLevels = promauto.NewGauge(prometheus.GaugeOpts{Name: "discord_directory_levels", Help: "Levels currently present in the channel directory"})
		LoopQueueDepth = promauto.NewGauge(prometheus.GaugeOpts{Name: "discord_loop_queue_depth", Help: "Tasks waiting for the relay loop"})
		Correlations = promauto.NewGaugeVec(prometheus.GaugeOpts{Name: "discord_correlation_entries", Help: "Live correlation entries"}, []string{"kind"})
	})
}

func result(ok bool) string {
	if ok {
		return "ok"
	}
	return "failed"
}

// RecordRelayEvent counts one domain event emission.
func RecordRelayEvent(eventType string, ok bool) {
	if RelayEvents != nil {
		RelayEvents.WithLabelValues(eventType, result(ok)).Inc()
	}
}

// RecordReconcile counts a reconciliation pass; aborted passes never touched the directory.
func RecordReconcile(aborted bool) {
	if ReconcilePasses == nil {
		return
	}
	if aborted {
		ReconcilePasses.WithLabelValues("aborted").Inc()
		return
	}
	ReconcilePasses.WithLabelValues("ok").Inc()
}

// RecordChannelOp counts a channel create or delete.
func RecordChannelOp(op string, ok bool) {
	if !ok {
		if ChannelOpFailures != nil {
			ChannelOpFailures.WithLabelValues(op).Inc()
		}
		return
	}
	switch op {
	case "create":
		if ChannelsCreated != nil {
			ChannelsCreated.Inc()
		}
	case "delete":
		if ChannelsDeleted != nil {
			ChannelsDeleted.Inc()
		}
	}
}

// RecordModeration counts a moderation command outcome (ok, failed, denied).
func RecordModeration(command, outcome string) {
	if ModerationCmds != nil {
		ModerationCmds.WithLabelValues(command, outcome).Inc()
	}
}

// SetDirectoryLevels records how many levels have at least one channel.
func SetDirectoryLevels(n int) {
	if DirectoryLevels != nil {
		DirectoryLevels.Set(float64(n))
	}
}

// SetLoopQueueDepth records queued relay loop tasks.
func SetLoopQueueDepth(n int) {
	if LoopQueueDepth != nil {
		LoopQueueDepth.Set(float64(n))
	}
}

// SetCorrelations records live correlation entries of a kind (record, outbound).
func SetCorrelations(kind string, n int) {
	if Correlations != nil {
		Correlations.WithLabelValues(kind).Set(float64(n))
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

// Correlation ID helpers ----------------------------------------------------
type corrKeyType struct{}

var corrKey corrKeyType

// WithCorrelation returns a new context embedding the correlation id.
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
