// Package metrics provides counters, Prometheus collectors, and HTTP
// handlers for exporting pushhand runtime metrics.
package metrics

import (
	"encoding/json"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// 1. Internal State (Source of Truth)
var (
	permissionGranted int64
	permissionDenied  int64
	permissionErrors  int64
	tokensAcquired    int64
	tokensAbsent      int64
	localScheduled    int64
	localFailed       int64
	remoteSent        int64
	remoteFailed      int64
	notifications     int64
	interactions      int64
	activeListeners   int64
	lastSend          int64
)

const counterInc int64 = 1

// 2. Prometheus Collectors
var (
	promPermission = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pushhand_permission_requests_total",
			Help: "Permission requests by resulting state",
		},
		[]string{"state"},
	)
	promTokens = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pushhand_token_acquisitions_total",
			Help: "Token acquisition attempts by token kind and outcome",
		},
		[]string{"kind", "outcome"},
	)
	promLocal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pushhand_local_notifications_total",
			Help: "Local notification schedule requests",
		},
		[]string{"status"},
	)
	promRemote = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pushhand_remote_sends_total",
			Help: "Remote push sends by backend and status",
		},
		[]string{"backend", "status"},
	)
	promEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pushhand_listener_callbacks_total",
			Help: "Listener callback invocations by event kind",
		},
		[]string{"kind"},
	)
	promListeners = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "pushhand_active_listeners",
			Help: "Listener handles currently registered",
		},
	)
	promSendDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name: "pushhand_remote_send_duration_seconds",
			Help: "Duration of remote push sends",
			Buckets: []float64{
				0.05,
				0.1,
				0.25,
				0.5,
				1,
				2.5,
				5,
				10,
			},
		},
	)
	promLastSend = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "pushhand_last_send_timestamp_seconds",
			Help: "Unix timestamp of the last successful remote send",
		},
	)
)

func init() {
	prometheus.MustRegister(
		promPermission,
		promTokens,
		promLocal,
		promRemote,
		promEvents,
		promListeners,
		promSendDuration,
		promLastSend,
	)
}

// 3. Public API (Updates both Atomic and Prometheus)

// IncPermission records the outcome of a permission request: "granted", "denied" or "error".
func IncPermission(state string) {
	switch state {
	case "granted":
		atomic.AddInt64(&permissionGranted, counterInc)
	case "denied":
		atomic.AddInt64(&permissionDenied, counterInc)
	default:
		atomic.AddInt64(&permissionErrors, counterInc)
	}
	promPermission.WithLabelValues(state).Inc()
}

// IncTokenAcquired records a successful token acquisition of the given kind ("push", "secondary").
func IncTokenAcquired(kind string) {
	atomic.AddInt64(&tokensAcquired, counterInc)
	promTokens.WithLabelValues(kind, "acquired").Inc()
}

// IncTokenAbsent records a token acquisition that yielded no token.
func IncTokenAbsent(kind string) {
	atomic.AddInt64(&tokensAbsent, counterInc)
	promTokens.WithLabelValues(kind, "absent").Inc()
}

func IncLocalScheduled() {
	atomic.AddInt64(&localScheduled, counterInc)
	promLocal.WithLabelValues("success").Inc()
}

func IncLocalFailed() {
	atomic.AddInt64(&localFailed, counterInc)
	promLocal.WithLabelValues("failure").Inc()
}

// IncRemoteSent records a remote send accepted by backend.
func IncRemoteSent(backend string) {
	atomic.AddInt64(&remoteSent, counterInc)
	promRemote.WithLabelValues(backend, "success").Inc()
}

// IncRemoteFailed records a remote send that failed at transport or HTTP level.
func IncRemoteFailed(backend string) {
	atomic.AddInt64(&remoteFailed, counterInc)
	promRemote.WithLabelValues(backend, "failure").Inc()
}

// IncNotificationCallback counts a received-notification listener invocation.
func IncNotificationCallback() {
	atomic.AddInt64(&notifications, counterInc)
	promEvents.WithLabelValues("received").Inc()
}

// IncInteractionCallback counts an interaction listener invocation.
func IncInteractionCallback() {
	atomic.AddInt64(&interactions, counterInc)
	promEvents.WithLabelValues("interaction").Inc()
}

// AddActiveListeners adjusts the registered listener gauge by delta.
func AddActiveListeners(delta int64) {
	atomic.AddInt64(&activeListeners, delta)
	promListeners.Add(float64(delta))
}

// ObserveSendDuration records the duration (in seconds) of a remote send.
func ObserveSendDuration(seconds float64) {
	promSendDuration.Observe(seconds)
}

// SetLastSend stores the time of the last successful remote send.
func SetLastSend(t time.Time) {
	atomic.StoreInt64(&lastSend, t.Unix())
	promLastSend.Set(float64(t.Unix()))
}

// 4. JSON Snapshot Struct

// StatsSnapshot is a snapshot of metrics for JSON encoding.
type StatsSnapshot struct {
	PermissionGranted int64  `json:"permission_granted"`
	PermissionDenied  int64  `json:"permission_denied"`
	PermissionErrors  int64  `json:"permission_errors"`
	TokensAcquired    int64  `json:"tokens_acquired"`
	TokensAbsent      int64  `json:"tokens_absent"`
	LocalScheduled    int64  `json:"local_scheduled"`
	LocalFailed       int64  `json:"local_failed"`
	RemoteSent        int64  `json:"remote_sent"`
	RemoteFailed      int64  `json:"remote_failed"`
	Notifications     int64  `json:"notifications"`
	Interactions      int64  `json:"interactions"`
	ActiveListeners   int64  `json:"active_listeners"`
	LastSend          int64  `json:"last_send_timestamp"`
	LastSendHuman     string `json:"last_send_human,omitempty"`
}

// GetSnapshot returns a StatsSnapshot with the current values of all
// internal counters and timestamps.
func GetSnapshot() StatsSnapshot {
	ts := atomic.LoadInt64(&lastSend)
	var human string
	if ts > 0 {
		human = time.Unix(ts, 0).Format(time.RFC3339)
	}
	return StatsSnapshot{
		PermissionGranted: atomic.LoadInt64(&permissionGranted),
		PermissionDenied:  atomic.LoadInt64(&permissionDenied),
		PermissionErrors:  atomic.LoadInt64(&permissionErrors),
		TokensAcquired:    atomic.LoadInt64(&tokensAcquired),
		TokensAbsent:      atomic.LoadInt64(&tokensAbsent),
		LocalScheduled:    atomic.LoadInt64(&localScheduled),
		LocalFailed:       atomic.LoadInt64(&localFailed),
		RemoteSent:        atomic.LoadInt64(&remoteSent),
		RemoteFailed:      atomic.LoadInt64(&remoteFailed),
		Notifications:     atomic.LoadInt64(&notifications),
		Interactions:      atomic.LoadInt64(&interactions),
		ActiveListeners:   atomic.LoadInt64(&activeListeners),
		LastSend:          ts,
		LastSendHuman:     human,
	}
}

// 5. Handlers

// PromHandler returns an HTTP handler that exposes Prometheus metrics.
func PromHandler() http.Handler { return promhttp.Handler() }

// JSONHandler returns an HTTP handler that serves the current metrics as
// a JSON-encoded StatsSnapshot.
func JSONHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(GetSnapshot())
	})
}
