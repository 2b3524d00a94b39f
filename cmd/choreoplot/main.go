// Command choreoplot prints a scenario's timing curves in the terminal:
// the launch stagger rate, the cover opacity, and how many particles are
// in flight, sampled at the 60 Hz tick period.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/guptarohit/asciigraph"

	"github.com/talgya/particle-worker/internal/engine"
)

const tickMS = 1000.0 / 60

func main() {
	var (
		scenario = flag.String("scenario", string(engine.DefaultScenario), "scenario preset ("+scenarioNames()+")")
		duration = flag.Float64("duration", 16000, "simulated milliseconds to plot")
		points   = flag.Int("points", 500, "particles to simulate for the in-flight curve")
		room     = flag.Float64("room", 100, "half extent of the square room")
		seed     = flag.Int64("seed", 1, "simulation seed")
		width    = flag.Int("width", 72, "plot width in columns")
		height   = flag.Int("height", 10, "plot height in rows")
	)
	flag.Parse()

	if *duration <= 0 {
		fmt.Fprintln(os.Stderr, "duration must be positive")
		os.Exit(2)
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn})))

	cfg, ok := engine.ScenarioConfig(engine.Scenario(*scenario), *points, *room, *room)
	if !ok {
		fmt.Fprintf(os.Stderr, "unknown scenario %q, plotting %s\n", *scenario, cfg.Scenario)
	}
	cfg.Seed = *seed

	c := sample(cfg, *duration)

	fmt.Printf("%s: %s ticks over %.0f ms, %s particles\n\n",
		cfg.Scenario, humanize.Comma(int64(len(c.rate))), *duration, humanize.Comma(int64(*points)))

	opts := []asciigraph.Option{asciigraph.Height(*height), asciigraph.Width(*width)}

	fmt.Println(asciigraph.Plot(c.rate, append(opts, asciigraph.Caption("launch rate (ms per index)"))...))
	fmt.Println()
	if c.hasCover {
		fmt.Println(asciigraph.Plot(c.opacity, append(opts, asciigraph.Caption("cover opacity"))...))
		fmt.Println()
		for _, sw := range c.switches {
			fmt.Printf("phase switch at tick %s (%.0f ms)\n", humanize.Comma(int64(sw.tick)), sw.elapsed)
		}
		fmt.Println()
	}
	fmt.Println(asciigraph.Plot(c.inFlight, append(opts, asciigraph.Caption("particles launched"))...))
	fmt.Printf("\nrecycles: %s\n", humanize.Comma(int64(c.recycles)))
}

type phaseSwitch struct {
	tick    uint64
	elapsed float64
}

type curves struct {
	rate     []float64
	opacity  []float64
	inFlight []float64
	hasCover bool
	switches []phaseSwitch
	recycles uint64
}

// sample steps a simulation for duration ms at the tick period.
func sample(cfg engine.Config, duration float64) curves {
	sim := engine.NewSimulation(cfg)
	var c curves
	for sim.Elapsed() < duration {
		f := sim.Step(tickMS)
		c.rate = append(c.rate, f.Signals.LaunchRate)
		c.inFlight = append(c.inFlight, float64(f.Stats.Launched))
		if f.Signals.HasCover {
			c.hasCover = true
			c.opacity = append(c.opacity, f.Signals.CoverOpacity)
			if f.Signals.PhaseSwitch {
				c.switches = append(c.switches, phaseSwitch{tick: f.Tick, elapsed: f.Elapsed})
			}
		}
		c.recycles = f.Stats.Recycles
	}
	return c
}

func scenarioNames() string {
	var names []string
	for _, s := range engine.Scenarios() {
		names = append(names, string(s))
	}
	return strings.Join(names, ", ")
}
