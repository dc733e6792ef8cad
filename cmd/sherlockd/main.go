// Command sherlockd is the demo daemon from SPEC_FULL.md §1: it
// wires up one Stream[Event], exposes it over HTTP via httpbridge, and
// exposes one KeyValueAPI[string, Counter] over a small JSON GET/POST
// surface, so both halves of this module are reachable from outside a
// Go process rather than only from tests.
//
// Wiring style (config loading, signal-driven shutdown, metrics/health
// endpoints on the same mux) is grounded on
// adred-codev-ws_poc/go-server-3/cmd/odin-ws/main.go.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/hashicorp/go-hclog"
	metrics "github.com/hashicorp/go-metrics"
	gometricsprom "github.com/hashicorp/go-metrics/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dkorolev/Sherlock/httpbridge"
	"github.com/dkorolev/Sherlock/kv"
	"github.com/dkorolev/Sherlock/stream"
)

func main() {
	cfg, err := LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "sherlockd: %v\n", err)
		os.Exit(1)
	}

	logger := hclog.New(&hclog.LoggerOptions{
		Name:  "sherlockd",
		Level: hclog.LevelFromString(cfg.Logging.Level),
	})

	var sink metrics.MetricSink = &metrics.BlackholeSink{}
	if cfg.Metrics.Enabled {
		promSink, err := gometricsprom.NewPrometheusSink()
		if err != nil {
			logger.Error("failed to initialize prometheus sink, falling back to blackhole", "error", err)
		} else {
			sink = promSink
		}
	}

	events := stream.New[Event]("sherlockd.events",
		stream.WithLogger[Event](logger.Named("events")),
		stream.WithMetrics[Event](sink),
	)
	defer events.Close()

	counters := kv.New[string, Counter]("sherlockd.counters",
		stream.WithLogger[Counter](logger.Named("counters")),
		stream.WithMetrics[Counter](sink),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go runHeartbeat(ctx, events, logger.Named("heartbeat"))

	router := mux.NewRouter()
	httpbridge.Register(router, cfg.Server.StreamPath, events, httpbridge.WithLogger(logger.Named("httpbridge")))
	registerCountersAPI(router, counters, logger.Named("counters-api"))
	registerHealthz(router, events)
	if cfg.Metrics.Enabled {
		router.Handle(cfg.Metrics.Endpoint, promhttp.Handler())
	}

	httpServer := &http.Server{
		Addr:         cfg.Server.ListenAddr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", cfg.Server.ListenAddr)
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			logger.Error("http server error", "error", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http server shutdown error", "error", err)
	}
}

// runHeartbeat stands in for a real producer: it keeps the demo Stream
// non-empty so newly connected HTTPBridge clients have something to
// observe.
func runHeartbeat(ctx context.Context, events *stream.Stream[Event], logger hclog.Logger) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	var seq uint64
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			seq++
			idx := events.Publish(Event{Seq: seq, Message: "heartbeat", AtMs: now.UnixMilli()})
			logger.Trace("published heartbeat", "index", idx)
		}
	}
}

func registerHealthz(router *mux.Router, events *stream.Stream[Event]) {
	router.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{
			"status":       "ok",
			"stream_size":  events.Size(),
			"cursor_count": events.CursorCount(),
		})
	}).Methods(http.MethodGet)
}

// registerCountersAPI is a minimal JSON surface over the KeyValueAPI:
// GET /counters/{name} and POST /counters.
func registerCountersAPI(router *mux.Router, counters *kv.API[string, Counter], logger hclog.Logger) {
	router.HandleFunc("/counters/{name}", func(w http.ResponseWriter, r *http.Request) {
		name := mux.Vars(r)["name"]
		v, err := counters.Get(name)
		if err != nil {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		writeJSON(w, v)
	}).Methods(http.MethodGet)

	router.HandleFunc("/counters", func(w http.ResponseWriter, r *http.Request) {
		var c Counter
		if err := json.NewDecoder(r.Body).Decode(&c); err != nil {
			http.Error(w, "invalid body", http.StatusBadRequest)
			return
		}
		if err := counters.Add(c); err != nil {
			logger.Debug("counter add rejected", "name", c.Name, "error", err)
			http.Error(w, err.Error(), http.StatusConflict)
			return
		}
		w.WriteHeader(http.StatusCreated)
	}).Methods(http.MethodPost)
}

func writeJSON(w http.ResponseWriter, payload any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}
