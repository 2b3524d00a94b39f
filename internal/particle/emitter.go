package particle

import (
	"github.com/talgya/particle-worker/internal/store"
)

// Range is a pair of x/y intervals in [xLo, xHi, yLo, yHi] order.
// Lo and Hi need not be ordered; draws are uniform between them.
type Range [4]float64

// Emitter is the start-condition policy used for both the initial layout and
// recycling. It replaces per-configuration closures with plain data.
type Emitter struct {
	Anchor   [2]float64 // Emission origin added to every drawn position
	Position Range
	Velocity Range
}

// Reset draws a fresh start position and velocity into the views.
func (e Emitter) Reset(pos, vel store.Vec3, rng Rand) {
	pos.Set(
		e.Anchor[0]+between(rng, e.Position[0], e.Position[1]),
		e.Anchor[1]+between(rng, e.Position[2], e.Position[3]),
		0,
	)
	vel.Set(
		between(rng, e.Velocity[0], e.Velocity[1]),
		between(rng, e.Velocity[2], e.Velocity[3]),
		0,
	)
}

// between returns a uniform draw in [a, b) (or (b, a] when reversed).
func between(rng Rand, a, b float64) float64 {
	if a == b {
		return a
	}
	return rng.Float64()*(b-a) + a
}
