// Simulation ties the particle arena, lifecycle rules and choreography
// together for one configuration.
package engine

import (
	"math/rand"

	"github.com/talgya/particle-worker/internal/choreo"
	"github.com/talgya/particle-worker/internal/entropy"
	"github.com/talgya/particle-worker/internal/particle"
	"github.com/talgya/particle-worker/internal/store"
)

// Simulation holds the complete state of one configured run. Nothing here
// is shared between instances; a reconfiguration builds a new one.
type Simulation struct {
	cfg       Config
	seed      int64
	store     *store.Store
	particles []particle.Particle
	life      particle.Lifecycle
	choreo    *choreo.Choreographer
	rng       *rand.Rand

	tick     uint64  // Ticks processed
	elapsed  float64 // ms since configuration, never decreases
	recycles uint64  // Total resets across all particles
}

// Stats summarizes the particle population after a tick.
type Stats struct {
	NotStarted int    `json:"not_started"`
	Launched   int    `json:"launched"`
	Stopped    int    `json:"stopped"`
	Recycles   uint64 `json:"recycles"`
}

// Frame is the result of one tick. Positions is a copy of the arena.
type Frame struct {
	Tick      uint64
	Elapsed   float64
	Dt        float64
	Positions []float64
	Signals   choreo.Signals
	Stats     Stats
}

// NewSimulation allocates the arena and lays out every particle.
func NewSimulation(cfg Config) *Simulation {
	n := cfg.NumPoints
	if n < 0 {
		n = 0
	}
	seed := entropy.Resolve(cfg.Seed)

	kin := particle.Kinematics{Gravity: cfg.Gravity, Drag: cfg.Drag}
	if t := cfg.Turbulence; t.Strength != 0 {
		switch t.Kind {
		case NoisePerlin:
			kin.Field = particle.NewGustField(seed, t.Strength, t.Scale, t.TimeScale)
		default:
			kin.Field = particle.NewNoiseField(seed, t.Strength, t.Scale, t.TimeScale)
		}
	}

	s := &Simulation{
		cfg:       cfg,
		seed:      seed,
		store:     store.Allocate(n),
		particles: make([]particle.Particle, n),
		life: particle.Lifecycle{
			Count:      n,
			Kinematics: kin,
			Bounds:     cfg.Bounds,
			Emitter:    cfg.Emitter,
			Recycle:    cfg.Recycle,
		},
		choreo: choreo.New(cfg.Choreo),
		rng:    entropy.NewRand(seed),
	}

	for i := range s.particles {
		s.particles[i] = particle.Particle{Index: i}
		s.life.Emitter.Reset(s.store.Position(i), s.store.Velocity(i), s.rng)
	}
	return s
}

// Config returns the configuration the simulation was built from.
func (s *Simulation) Config() Config { return s.cfg }

// Seed returns the resolved random seed.
func (s *Simulation) Seed() int64 { return s.seed }

// Len returns the particle count.
func (s *Simulation) Len() int { return len(s.particles) }

// Tick returns the number of ticks processed.
func (s *Simulation) Tick() uint64 { return s.tick }

// Elapsed returns ms since configuration.
func (s *Simulation) Elapsed() float64 { return s.elapsed }

// Particle returns a copy of particle i's bookkeeping.
func (s *Simulation) Particle(i int) particle.Particle { return s.particles[i] }

// Store exposes the arena for inspection between ticks.
func (s *Simulation) Store() *store.Store { return s.store }

// Step advances the simulation by dt milliseconds. The choreographer runs
// once before the particle pass; particles never read each other's state.
// Negative deltas are treated as zero so elapsed time never goes backward.
func (s *Simulation) Step(dt float64) Frame {
	if dt < 0 {
		dt = 0
	}
	s.tick++
	s.elapsed += dt

	sig := s.choreo.Advance(s.elapsed)
	ctx := particle.TickContext{
		Dt:         dt,
		Elapsed:    s.elapsed,
		LaunchRate: sig.LaunchRate,
	}

	var stats Stats
	for i := range s.particles {
		p := &s.particles[i]
		tr := s.life.Advance(p, s.store.Position(i), s.store.Velocity(i), ctx, s.rng)
		if tr.Recycled {
			s.recycles++
		}
		switch p.State {
		case particle.NotStarted:
			stats.NotStarted++
		case particle.Launched:
			stats.Launched++
		case particle.Stopped:
			stats.Stopped++
		}
	}
	stats.Recycles = s.recycles

	return Frame{
		Tick:      s.tick,
		Elapsed:   s.elapsed,
		Dt:        dt,
		Positions: s.store.CopyPositions(nil),
		Signals:   sig,
		Stats:     stats,
	}
}
