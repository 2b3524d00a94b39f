package particle

import (
	"math"

	"github.com/talgya/particle-worker/internal/store"
)

// DefaultGravity is the vertical acceleration in units/ms², matching
// pixels at 60 ticks per second.
const DefaultGravity = 0.000098

// Kinematics is the acceleration model applied to launched particles.
type Kinematics struct {
	Gravity float64 // Added to vel.y per ms; sign picks the drift direction
	Drag    float64 // Pulls vel.x toward zero per ms; 0 disables
	Field   Field   // Optional turbulence; nil disables
}

// Integrate advances one particle by dt milliseconds.
// Position moves with the pre-step velocity, then accelerations apply.
func Integrate(pos, vel store.Vec3, dt, elapsed float64, k Kinematics) {
	pos[store.X] += vel[store.X] * dt
	pos[store.Y] += vel[store.Y] * dt

	vel[store.Y] += k.Gravity * dt

	if k.Drag != 0 {
		if vel[store.X] > 0 {
			vel[store.X] -= k.Drag * dt
		} else {
			vel[store.X] += k.Drag * dt
		}
	}

	if k.Field != nil {
		ax, ay := k.Field.Accel(pos[store.X], pos[store.Y], elapsed)
		vel[store.X] += ax * dt
		vel[store.Y] += ay * dt
	}
}

// BoundsMode selects which edges expire a particle.
type BoundsMode uint8

const (
	// BoundsSymmetric tests both sides of both axes.
	BoundsSymmetric BoundsMode = iota
	// BoundsFloorOnly tests x on both sides but y only on the side gravity
	// pulls toward, so particles may rise past the top and fall back.
	BoundsFloorOnly
)

// String returns the mode name.
func (m BoundsMode) String() string {
	if m == BoundsFloorOnly {
		return "floor_only"
	}
	return "symmetric"
}

// Bounds is the rectangle a launched particle must stay within.
type Bounds struct {
	HalfWidth  float64
	HalfHeight float64
	Margin     float64 // Added to both half-extents
	Mode       BoundsMode
}

// Outside reports whether pos has left the bounds. Degenerate bounds
// (non-positive extents) expire every particle.
func (b Bounds) Outside(pos store.Vec3, gravity float64) bool {
	hw := b.HalfWidth + b.Margin
	hh := b.HalfHeight + b.Margin
	if hw <= 0 || hh <= 0 {
		return true
	}

	if math.Abs(pos[store.X]) > hw {
		return true
	}

	y := pos[store.Y]
	if b.Mode == BoundsFloorOnly {
		if gravity >= 0 {
			return y > hh
		}
		return y < -hh
	}
	return math.Abs(y) > hh
}
