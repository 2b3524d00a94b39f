// Command conductor cycles a running particle worker through its scenarios.
// It observes the run via the status API, decides when a run has played out,
// and reconfigures the worker through the admin configure endpoint.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/talgya/particle-worker/internal/conductor"
	"github.com/talgya/particle-worker/internal/engine"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	// Configuration from environment.
	apiURL := envOrDefault("CONDUCTOR_API_URL", "http://localhost:8080")
	adminKey := os.Getenv("PARTICLESIM_ADMIN_KEY")
	intervalSec := envIntOrDefault("CONDUCTOR_INTERVAL", 10)
	memoryPath := envOrDefault("CONDUCTOR_MEMORY", "conductor_memory.json")

	plan := conductor.DefaultPlan()
	if v := os.Getenv("CONDUCTOR_ROTATION"); v != "" {
		plan.Rotation = nil
		for _, name := range strings.Split(v, ",") {
			if name = strings.TrimSpace(name); name != "" {
				plan.Rotation = append(plan.Rotation, engine.Scenario(name))
			}
		}
	}
	plan.NumPoints = envIntOrDefault("PARTICLESIM_NUM_POINTS", plan.NumPoints)
	plan.MaxElapsed = float64(envIntOrDefault("CONDUCTOR_MAX_ELAPSED_MS", int(plan.MaxElapsed)))

	interval := time.Duration(intervalSec) * time.Second

	slog.Info("conductor starting",
		"api_url", apiURL,
		"interval", interval,
		"rotation", plan.Rotation,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	c := &conductor.Conductor{
		Observer: conductor.NewObserver(apiURL),
		Actor:    conductor.NewActor(apiURL, adminKey),
		Plan:     plan,
		Memory:   conductor.LoadMemory(memoryPath),
	}
	if s := c.Memory.Summary(5); s != "" {
		slog.Info("recent cycles", "summary", s)
	}

	// Wait for the worker API to be ready before first cycle.
	slog.Info("waiting for particle worker API...")
	waitForAPI(ctx, c.Observer)

	// Run first cycle immediately.
	runCycle(ctx, c)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	for {
		select {
		case <-ticker.C:
			runCycle(ctx, c)
		case sig := <-sigCh:
			slog.Info("received signal, shutting down", "signal", sig)
			fmt.Println("Conductor stopped.")
			return
		}
	}
}

func runCycle(ctx context.Context, c *conductor.Conductor) {
	d, err := c.Cycle(ctx)
	if err != nil {
		slog.Error("conductor cycle failed", "error", err)
		return
	}
	if d.Action == "none" {
		slog.Info("conductor cycle complete, no change", "rationale", d.Rationale)
	}
}

// waitForAPI polls the status endpoint with exponential backoff until it
// responds. Exits after 5 minutes if the API never becomes ready.
func waitForAPI(ctx context.Context, obs *conductor.Observer) {
	backoff := 2 * time.Second
	maxBackoff := 30 * time.Second
	deadline := time.Now().Add(5 * time.Minute)

	for {
		if obs.Ready(ctx) {
			slog.Info("particle worker API is ready")
			return
		}
		if time.Now().After(deadline) {
			slog.Error("particle worker API did not become ready within 5 minutes")
			os.Exit(1)
		}
		slog.Info("particle worker not ready, retrying...", "backoff", backoff)
		time.Sleep(backoff)
		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
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
