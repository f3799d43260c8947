package metrics

import (
	"context"
	"errors"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Change event outcomes recorded by IncChangeEvent.
const (
	ChangeAccepted  = "accepted"
	ChangeFiltered  = "filtered"
	ChangeDebounced = "debounced"
)

// Stop modes recorded by IncStop.
const (
	StopGraceful = "graceful"
	StopForced   = "forced"
)

// Package-level Prometheus collectors. They are registered via Register.
var (
	regOK atomic.Bool

	processStarts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "devrun",
			Subsystem: "process",
			Name:      "starts_total",
			Help:      "Number of successful child process starts.",
		}, []string{"label"},
	)
	processStops = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "devrun",
			Subsystem: "process",
			Name:      "stops_total",
			Help:      "Number of child process stops by mode (graceful or forced).",
		}, []string{"label", "mode"},
	)
	processRunning = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "devrun",
			Subsystem: "process",
			Name:      "running",
			Help:      "1 while the labeled child process is running, 0 otherwise.",
		}, []string{"label"},
	)
	restarts = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "devrun",
			Name:      "restarts_total",
			Help:      "Number of pair restarts triggered by file changes.",
		},
	)
	changeEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "devrun",
			Name:      "change_events_total",
			Help:      "File change events by outcome (accepted, filtered, debounced).",
		}, []string{"result"},
	)
)

// Register registers all metrics with the provided registerer.
// It is safe to call multiple times; subsequent calls after success are no-ops.
func Register(r prometheus.Registerer) error {
	if regOK.Load() {
		return nil
	}
	cs := []prometheus.Collector{processStarts, processStops, processRunning, restarts, changeEvents}
	for _, c := range cs {
		if err := r.Register(c); err != nil {
			// If already registered, ignore (allows double Register with default registry)
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				continue
			}
			return err
		}
	}
	regOK.Store(true)
	return nil
}

// Handler returns an http.Handler that serves metrics gathered from g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr until ctx is cancelled.
func Serve(ctx context.Context, addr string, g prometheus.Gatherer) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler(g))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		return nil
	}
}

// Below are lightweight helpers used by internal packages to record metrics.
// They no-op if Register hasn't been called.

func IncStart(label string) {
	if regOK.Load() {
		processStarts.WithLabelValues(label).Inc()
	}
}

func IncStop(label, mode string) {
	if regOK.Load() {
		processStops.WithLabelValues(label, mode).Inc()
	}
}

func SetRunning(label string, running bool) {
	if regOK.Load() {
		var v float64
		if running {
			v = 1
		}
		processRunning.WithLabelValues(label).Set(v)
	}
}

func IncRestart() {
	if regOK.Load() {
		restarts.Inc()
	}
}

func IncChangeEvent(result string) {
	if regOK.Load() {
		changeEvents.WithLabelValues(result).Inc()
	}
}
