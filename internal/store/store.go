// Package store provides the flat particle arena.
// Positions and velocities live in two contiguous float buffers; each particle
// owns the slot range [3i, 3i+3) in both, and per-particle access is through
// views that alias the arena rather than copies.
package store

// Axis offsets within a particle's three-slot range.
const (
	X = 0
	Y = 1
	Z = 2
)

// Stride is the number of buffer slots per particle.
const Stride = 3

// Vec3 is a view onto three consecutive slots of an arena buffer.
// Writes through a Vec3 mutate the underlying buffer.
type Vec3 []float64

func (v Vec3) X() float64 { return v[X] }
func (v Vec3) Y() float64 { return v[Y] }
func (v Vec3) Z() float64 { return v[Z] }

// Set writes all three components.
func (v Vec3) Set(x, y, z float64) {
	v[X], v[Y], v[Z] = x, y, z
}

// Store owns the position and velocity arenas for one configuration.
type Store struct {
	Positions  []float64
	Velocities []float64
	count      int
}

// Allocate returns a zeroed store sized for n particles.
// Negative counts yield an empty store.
func Allocate(n int) *Store {
	if n < 0 {
		n = 0
	}
	return &Store{
		Positions:  make([]float64, Stride*n),
		Velocities: make([]float64, Stride*n),
		count:      n,
	}
}

// Len returns the particle count.
func (s *Store) Len() int {
	return s.count
}

// Position returns the position view for particle i.
func (s *Store) Position(i int) Vec3 {
	return ViewOf(s.Positions, i)
}

// Velocity returns the velocity view for particle i.
func (s *Store) Velocity(i int) Vec3 {
	return ViewOf(s.Velocities, i)
}

// CopyPositions copies the position arena into dst, growing it if needed,
// and returns the filled slice. Callers hand the copy across the worker
// boundary; the arena itself never leaves the simulation.
func (s *Store) CopyPositions(dst []float64) []float64 {
	if cap(dst) < len(s.Positions) {
		dst = make([]float64, len(s.Positions))
	}
	dst = dst[:len(s.Positions)]
	copy(dst, s.Positions)
	return dst
}

// SizeBytes reports the memory held by both arenas.
func (s *Store) SizeBytes() uint64 {
	return uint64(len(s.Positions)+len(s.Velocities)) * 8
}

// ViewOf returns a non-copying view of slots [3i, 3i+3) in buf.
// The capacity is clipped so appends can never spill into the next particle.
func ViewOf(buf []float64, i int) Vec3 {
	lo := i * Stride
	return Vec3(buf[lo : lo+Stride : lo+Stride])
}
