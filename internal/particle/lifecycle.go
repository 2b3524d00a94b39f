// Package particle implements per-particle lifecycle and kinematics.
// A particle waits in NotStarted until its staggered launch time, is
// integrated while Launched, and becomes Stopped once it leaves the bounds.
// Stopped particles are either recycled back to NotStarted on the same tick
// or left dormant, depending on configuration.
package particle

import (
	"github.com/talgya/particle-worker/internal/store"
)

// State is a particle's lifecycle stage.
type State uint8

const (
	NotStarted State = iota
	Launched
	Stopped
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case NotStarted:
		return "not_started"
	case Launched:
		return "launched"
	case Stopped:
		return "stopped"
	}
	return "unknown"
}

// CanTransition reports whether from → to is a legal lifecycle step.
// The only order is NotStarted → Launched → Stopped → NotStarted.
func CanTransition(from, to State) bool {
	switch from {
	case NotStarted:
		return to == Launched
	case Launched:
		return to == Stopped
	case Stopped:
		return to == NotStarted
	}
	return false
}

// Particle is the per-particle bookkeeping that does not live in the arena.
type Particle struct {
	Index        int // Stable identity, never reused
	State        State
	RecycleCount int // Times this slot has been reset after stopping
}

// EffectiveIndex keeps launch staggering monotonic across recycled lifetimes.
func EffectiveIndex(index, recycleCount, count int) int {
	return index + recycleCount*count
}

// ShouldLaunch reports whether a particle with the given effective index is
// due. The first particle waits one full stagger interval, so nothing
// launches on a tick whose elapsed time is below the current rate.
func ShouldLaunch(elapsed float64, effectiveIndex int, launchRate float64) bool {
	return elapsed > float64(effectiveIndex+1)*launchRate
}

// Rand is the randomness the emitter draws from.
type Rand interface {
	Float64() float64
}

// TickContext carries the per-tick inputs shared by every particle.
type TickContext struct {
	Dt         float64 // ms since previous tick
	Elapsed    float64 // ms since configuration
	LaunchRate float64 // ms per effective index
}

// Transition records what happened to one particle during a tick.
type Transition struct {
	Launched bool
	Stopped  bool
	Recycled bool
}

// Lifecycle holds the per-configuration rules applied to every particle.
type Lifecycle struct {
	Count      int // Particle count, used for effective indices
	Kinematics Kinematics
	Bounds     Bounds
	Emitter    Emitter
	Recycle    bool // Reset stopped particles instead of leaving them dormant
}

// Advance runs one tick of the state machine for p.
// A particle that launches this tick is integrated immediately, so it may
// also leave the bounds on the same tick.
func (l *Lifecycle) Advance(p *Particle, pos, vel store.Vec3, c TickContext, rng Rand) Transition {
	var tr Transition

	if p.State == NotStarted {
		eff := EffectiveIndex(p.Index, p.RecycleCount, l.Count)
		if !ShouldLaunch(c.Elapsed, eff, c.LaunchRate) {
			return tr
		}
		p.State = Launched
		tr.Launched = true
	}

	if p.State != Launched {
		return tr
	}

	Integrate(pos, vel, c.Dt, c.Elapsed, l.Kinematics)

	if !l.Bounds.Outside(pos, l.Kinematics.Gravity) {
		return tr
	}

	p.State = Stopped
	tr.Stopped = true

	if l.Recycle {
		l.Emitter.Reset(pos, vel, rng)
		p.RecycleCount++
		p.State = NotStarted
		tr.Recycled = true
	}
	return tr
}
