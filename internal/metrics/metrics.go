// Package metrics exposes Prometheus counters for playback activity.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

var (
	Registry = prometheus.NewRegistry()

	TracksStarted = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "musicbot",
		Name:      "tracks_started_total",
		Help:      "Tracks handed to a voice session.",
	})

	TracksEnqueued = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "musicbot",
		Name:      "tracks_enqueued_total",
		Help:      "Tracks appended to a guild queue.",
	})

	ResolveFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "musicbot",
		Name:      "resolve_failures_total",
		Help:      "Media resolutions that failed, by reason.",
	}, []string{"reason"})

	IdleDisconnects = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "musicbot",
		Name:      "idle_disconnects_total",
		Help:      "Voice sessions closed for inactivity, by trigger.",
	}, []string{"trigger"})

	Commands = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "musicbot",
		Name:      "commands_total",
		Help:      "Slash commands handled, by name.",
	}, []string{"command"})
)

func init() {
	Registry.MustRegister(TracksStarted, TracksEnqueued, ResolveFailures, IdleDisconnects, Commands)
}

// Serve exposes /metrics on addr until ctx is done
func Serve(ctx context.Context, addr string, log zerolog.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(Registry, promhttp.HandlerOpts{}))

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Info().Str("addr", addr).Msg("metrics endpoint listening")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
