// Package choreo maps elapsed simulation time to the timing and visual
// scalars that drive a scenario: the launch stagger rate, the cover
// opacity envelope, and the discrete phase counter with its one-shot edge.
package choreo

import (
	"math"

	"github.com/talgya/particle-worker/internal/easing"
)

// Config selects which outputs a scenario produces and their windows.
type Config struct {
	Stagger         bool    // false launches every particle on the first tick
	LaunchWindow    float64 // ms over which the stagger rate decays
	LaunchAmplitude float64 // ms per effective index at t = 0
	LaunchFloor     float64 // Keeps the rate strictly positive after the window

	Cover *CoverConfig // nil for scenarios without an overlay
}

// CoverConfig is the overlay fade: a rise to 1.0 followed by a fall to 0.
type CoverConfig struct {
	Start   float64 // ms of elapsed time before the fade-in begins
	FadeIn  float64 // ms
	FadeOut float64 // ms
	Period  float64 // ms between cycle starts; 0 runs a single cycle
}

// DefaultConfig returns the choreography used by the cover scenario: a
// spray that turns into a drip over ten seconds, then a cover fade across
// [10000, 15000] ms peaking at 12500 ms.
func DefaultConfig() Config {
	return Config{
		Stagger:         true,
		LaunchWindow:    10000,
		LaunchAmplitude: 75,
		LaunchFloor:     5,
		Cover: &CoverConfig{
			Start:   10000,
			FadeIn:  2500,
			FadeOut: 2500,
		},
	}
}

// LaunchRate returns the stagger interval at elapsed time t.
func (c Config) LaunchRate(t float64) float64 {
	if !c.Stagger {
		return 0
	}
	return easing.CurveInvert(easing.InSine, c.LaunchWindow, c.LaunchAmplitude, t) + c.LaunchFloor
}

// local returns time relative to the current cycle's start, or -1 before
// the first cycle.
func (cc CoverConfig) local(t float64) float64 {
	l := t - cc.Start
	if l < 0 {
		return -1
	}
	if cc.Period > 0 {
		l = math.Mod(l, cc.Period)
	}
	return l
}

// FadeInWindow and FadeOutWindow are the two halves of one cover cycle, in
// cycle-local time. The fade-out starts where the fade-in ends.
func (cc CoverConfig) FadeInWindow() easing.Window {
	return easing.Window{Width: cc.FadeIn}
}

func (cc CoverConfig) FadeOutWindow() easing.Window {
	return easing.Window{Start: cc.FadeInWindow().End(), Width: cc.FadeOut}
}

// Opacity returns the cover opacity at elapsed time t, in [0, 1].
// The peak instant itself evaluates to exactly 1.
func (cc CoverConfig) Opacity(t float64) float64 {
	l := cc.local(t)
	if l < 0 {
		return 0
	}
	in, out := cc.FadeInWindow(), cc.FadeOutWindow()
	switch {
	case in.Contains(l):
		return easing.Curve(easing.OutCubic, in.Width, 1, in.Local(l))
	case out.Contains(l):
		return easing.CurveInvert(easing.InSine, out.Width, 1, out.Local(l))
	}
	return 0
}

// Peak returns the elapsed time of the first opacity peak.
func (cc CoverConfig) Peak() float64 {
	return cc.Start + cc.FadeInWindow().End()
}

// peaksBy counts opacity peaks at or before t.
func (cc CoverConfig) peaksBy(t float64) int {
	first := cc.Peak()
	if t < first {
		return 0
	}
	if cc.Period <= 0 {
		return 1
	}
	return int(math.Floor((t-first)/cc.Period)) + 1
}

// Signals are the choreography outputs for one tick.
type Signals struct {
	LaunchRate   float64
	HasCover     bool
	CoverOpacity float64
	Phase        int
	PhaseSwitch  bool // true only on the tick the phase incremented
}

// Choreographer holds the per-configuration latch state. The outputs are a
// pure function of elapsed time except for the phase counter, which
// advances once per peak crossing.
type Choreographer struct {
	cfg   Config
	prev  float64 // elapsed time at the previous Advance
	phase int
}

// New creates a choreographer with no ticks observed.
func New(cfg Config) *Choreographer {
	return &Choreographer{cfg: cfg, prev: math.Inf(-1)}
}

// Config returns the choreographer's configuration.
func (c *Choreographer) Config() Config {
	return c.cfg
}

// Phase returns the current phase index.
func (c *Choreographer) Phase() int {
	return c.phase
}

// Advance computes this tick's signals. It must be called exactly once per
// tick with non-decreasing elapsed times.
//
// Ticks are discrete, so the peak instant is rarely sampled exactly. The
// tick whose interval (prev, elapsed] contains a peak reports opacity 1.0
// and raises PhaseSwitch. A single tick spanning several peaks counts once.
func (c *Choreographer) Advance(elapsed float64) Signals {
	sig := Signals{
		LaunchRate: c.cfg.LaunchRate(elapsed),
		Phase:      c.phase,
	}

	if cc := c.cfg.Cover; cc != nil {
		sig.HasCover = true
		sig.CoverOpacity = cc.Opacity(elapsed)
		if elapsed > c.prev && cc.peaksBy(elapsed) > cc.peaksBy(c.prev) {
			sig.CoverOpacity = 1
			c.phase++
			sig.Phase = c.phase
			sig.PhaseSwitch = true
		}
	}

	if elapsed > c.prev {
		c.prev = elapsed
	}
	return sig
}
