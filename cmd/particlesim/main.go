// Command particlesim runs the particle simulation worker behind an HTTP host.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/talgya/particle-worker/internal/api"
	"github.com/talgya/particle-worker/internal/engine"
	"github.com/talgya/particle-worker/internal/persistence"
	"github.com/talgya/particle-worker/internal/worker"
)

func main() {
	var level slog.Level
	if err := level.UnmarshalText([]byte(envOrDefault("PARTICLESIM_LOG_LEVEL", "info"))); err != nil {
		level = slog.LevelInfo
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	apiPort := envIntOrDefault("PARTICLESIM_PORT", 8080)
	dbPath := envOrDefault("PARTICLESIM_DB", "data/particles.db")
	sampleEvery := envIntOrDefault("PARTICLESIM_SAMPLE_EVERY", 60)
	maxPoints := envIntOrDefault("PARTICLESIM_MAX_POINTS", api.DefaultMaxPoints)
	openControl := os.Getenv("PARTICLESIM_OPEN_CONTROL") == "true"

	initial := worker.Configure{
		RoomSize: [2]float64{
			envFloatOrDefault("PARTICLESIM_ROOM_W", 100),
			envFloatOrDefault("PARTICLESIM_ROOM_H", 100),
		},
		NumPoints: envIntOrDefault("PARTICLESIM_NUM_POINTS", 1000),
		Scenario:  envOrDefault("PARTICLESIM_SCENARIO", string(engine.DefaultScenario)),
	}

	slog.Info("particle worker starting",
		"scenario", initial.Scenario,
		"points", humanize.Comma(int64(initial.NumPoints)),
		"room", initial.RoomSize,
	)

	// ── Database ──────────────────────────────────────────────────────
	var db *persistence.DB
	if dbPath != "none" {
		os.MkdirAll(filepath.Dir(dbPath), 0755)
		var err error
		db, err = persistence.Open(dbPath)
		if err != nil {
			slog.Error("failed to open database", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		slog.Info("database opened", "path", dbPath)
		if last, err := db.GetMeta("last_run"); err == nil && last != "" {
			slog.Info("previous run on record", "run", last)
		}
	} else {
		slog.Warn("PARTICLESIM_DB=none, run history disabled")
	}

	// ── Worker ────────────────────────────────────────────────────────
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	eng := engine.NewEngine()
	w := worker.New(eng)
	hub := api.NewHub()

	var observers []func(worker.Result)
	var rec *persistence.AsyncRecorder
	if db != nil {
		rec = persistence.NewAsyncRecorder(persistence.NewRecorder(db, uint64(max(sampleEvery, 0))), 256)
		observers = append(observers, rec.Observe)
	}

	consumed := make(chan struct{})
	go func() {
		defer close(consumed)
		hub.Consume(w.Results(), observers...)
	}()

	workerDone := make(chan error, 1)
	go func() { workerDone <- w.Run(ctx) }()

	info, err := w.Configure(ctx, initial)
	if err != nil {
		slog.Error("initial configure failed", "error", err)
		os.Exit(1)
	}
	if db != nil {
		if err := db.SaveRun(info, time.Now()); err != nil {
			slog.Error("save run failed", "run", info.RunID, "error", err)
		}
	}

	// ── HTTP API ──────────────────────────────────────────────────────
	adminKey := os.Getenv("PARTICLESIM_ADMIN_KEY")
	switch {
	case adminKey != "":
	case openControl:
		slog.Warn("PARTICLESIM_OPEN_CONTROL set without PARTICLESIM_ADMIN_KEY, POST endpoints are open")
	default:
		slog.Warn("PARTICLESIM_ADMIN_KEY not set, POST endpoints disabled")
	}

	apiServer := &api.Server{
		Worker:      w,
		Hub:         hub,
		DB:          db,
		Port:        apiPort,
		AdminKey:    adminKey,
		OpenControl: openControl,
		MaxPoints:   maxPoints,
	}
	apiServer.Start()

	// ── Run ───────────────────────────────────────────────────────────
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		slog.Info("received signal, shutting down", "signal", sig)
		cancel()
	}()

	fmt.Printf("\nParticle worker running: run %s, %s points.\n", info.RunID, humanize.Comma(int64(info.NumPoints)))
	fmt.Printf("API: http://localhost:%d/api/v1/status\n", apiPort)
	fmt.Println("Ticking... (Ctrl+C to stop)")

	<-workerDone
	<-consumed

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP shutdown failed", "error", err)
	}

	if rec != nil {
		slog.Info("final flush...")
		if err := rec.Close(); err != nil {
			slog.Error("final flush failed", "error", err)
		}
		if n := rec.Dropped(); n > 0 {
			slog.Warn("samples dropped on a full recorder queue", "count", humanize.Comma(int64(n)))
		}
	}

	fmt.Printf("Worker stopped after %s ticks.\n", humanize.Comma(int64(eng.Ticks())))
}

func envOrDefault(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envIntOrDefault(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return defaultVal
}

func envFloatOrDefault(key string, defaultVal float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return defaultVal
}
