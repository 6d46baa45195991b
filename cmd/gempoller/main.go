// cmd/gempoller/main.go
package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tamzrod/gem-poller/internal/config"
	"github.com/tamzrod/gem-poller/internal/logging"
	"github.com/tamzrod/gem-poller/internal/metrics"
	"github.com/tamzrod/gem-poller/internal/poller"
	"github.com/tamzrod/gem-poller/internal/status"
	"github.com/tamzrod/gem-poller/internal/writer"
	"github.com/tamzrod/gem-poller/internal/writer/archive"
	"github.com/tamzrod/gem-poller/internal/writer/live"
)

func main() {
	if len(os.Args) < 2 {
		log.Fatal("usage: gempoller <config.yaml|config.toml>")
	}

	// --------------------
	// Load + validate config
	// --------------------

	cfg, err := config.Load(os.Args[1])
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}

	logs, err := logging.Open(logging.Config{Level: cfg.Logging.Level, File: cfg.Logging.File})
	if err != nil {
		log.Fatalf("logging: %v", err)
	}
	defer logs.Close()
	mainLog := logs.For("main")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --------------------
	// Shared sinks
	// --------------------

	var shared writer.Fanout

	if cfg.Archive != nil {
		a, err := archive.Open(cfg.Archive.Path)
		if err != nil {
			log.Fatalf("archive open failed: %v", err)
		}
		defer a.Close()
		shared = append(shared, a)
		mainLog.Info("archiving records to %s", cfg.Archive.Path)
	}

	var srv *http.Server
	if cfg.HTTP.Listen != "" {
		mux := http.NewServeMux()

		if cfg.HTTP.Metrics {
			collector := metrics.NewCollector()
			reg := prometheus.NewRegistry()
			reg.MustRegister(collector)
			mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
			shared = append(shared, collector)
		}
		if cfg.HTTP.Live {
			hub := live.NewHub(logs.For("live"))
			defer hub.Close()
			mux.Handle("/live", hub)
			shared = append(shared, hub)
		}
		mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("OK"))
		})

		srv = &http.Server{Addr: cfg.HTTP.Listen, Handler: mux, ReadHeaderTimeout: 10 * time.Second}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				mainLog.Error("http server: %v", err)
				stop()
			}
		}()
		mainLog.Info("http listening on %s", cfg.HTTP.Listen)
	}

	// --------------------
	// Build per-device pipelines
	// --------------------

	var wg sync.WaitGroup

	for _, dev := range cfg.Devices {
		devLog := logs.For("device." + dev.ID)

		// ---- poller ----
		p, closePoller, err := poller.Build(dev, devLog)
		if err != nil {
			log.Fatalf("poller build failed (device=%s): %v", dev.ID, err)
		}
		defer closePoller()

		// ---- writer plan ----
		plan, err := writer.BuildPlan(dev)
		if err != nil {
			log.Fatalf("writer plan failed (device=%s): %v", dev.ID, err)
		}

		// ---- writer clients (DATA + STATUS) ----
		clients, closeWriters, err := writer.BuildEndpointClients(dev)
		if err != nil {
			log.Fatalf("writer clients failed (device=%s): %v", dev.ID, err)
		}
		defer closeWriters()

		sink := append(writer.Fanout{writer.New(plan, clients)}, shared...)
		statusWriter, statusEnabled := writer.NewDeviceStatusWriter(plan, clients)

		interval := time.Duration(dev.Poll.IntervalMs) * time.Millisecond
		tracker := status.NewTracker(3 * interval)

		out := make(chan poller.PollResult)

		wg.Add(2)
		go func() {
			defer wg.Done()
			orchestrate(ctx, out, sink, tracker, statusWriter, statusEnabled, devLog)
		}()
		go func() {
			defer wg.Done()
			p.Run(ctx, out)
		}()

		mainLog.Info("device %s: polling %s every %s", dev.ID, dev.PacketType, interval)
	}

	<-ctx.Done()
	mainLog.Info("shutting down")

	if srv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		_ = srv.Shutdown(shutdownCtx)
		cancel()
	}
	wg.Wait()
}

// orchestrate owns one device's status state: poll results and the 1 Hz
// seconds ticker both feed the tracker, and only changes are written out.
func orchestrate(
	ctx context.Context,
	in <-chan poller.PollResult,
	sink writer.Writer,
	tracker *status.Tracker,
	sw writer.StatusWriter,
	statusEnabled bool,
	lg logging.Logger,
) {
	secTicker := time.NewTicker(time.Second)
	defer secTicker.Stop()

	writeStatus := func(s status.Snapshot) {
		if !statusEnabled {
			return
		}
		if err := sw.WriteStatus(s); err != nil {
			lg.Warning("status write failed: %v", err)
		}
	}

	// Full block write on start (identity re-assert).
	writeStatus(tracker.Snapshot())

	for {
		select {
		case <-ctx.Done():
			return

		case res := <-in:
			if err := sink.Write(res); err != nil {
				lg.Warning("writer error: %v", err)
			}
			if res.Err != nil {
				lg.Error("poll failed: %v", res.Err)
			}
			if s, changed := tracker.Observe(res); changed {
				writeStatus(s)
			}

		case <-secTicker.C:
			if s, changed := tracker.Tick(); changed {
				writeStatus(s)
			}
		}
	}
}
