package particle

import (
	"math"

	"github.com/aquilax/go-perlin"
	opensimplex "github.com/ojrac/opensimplex-go"
)

// Field is a position- and time-dependent acceleration.
type Field interface {
	Accel(x, y, t float64) (ax, ay float64)
}

// NoiseField is a smooth turbulence field sampled from 3D simplex noise,
// with time as the third axis so gusts drift instead of flickering.
type NoiseField struct {
	noise     opensimplex.Noise
	Strength  float64 // Peak acceleration in units/ms²
	Scale     float64 // Spatial frequency
	TimeScale float64 // Temporal frequency per ms
}

// NewNoiseField creates a turbulence field. A zero strength field is valid
// but contributes nothing.
func NewNoiseField(seed int64, strength, scale, timeScale float64) *NoiseField {
	return &NoiseField{
		noise:     opensimplex.New(seed),
		Strength:  strength,
		Scale:     scale,
		TimeScale: timeScale,
	}
}

// Accel samples the field. Both components come from decorrelated slices of
// the same noise so one generator serves both axes.
func (f *NoiseField) Accel(x, y, t float64) (float64, float64) {
	sx := x * f.Scale
	sy := y * f.Scale
	st := t * f.TimeScale
	ax := unit(f.noise.Eval3(sx, sy, st))
	ay := unit(f.noise.Eval3(sx+97.13, sy-41.7, st+13.3))
	return ax * f.Strength, ay * f.Strength
}

// GustField is a horizontal wind whose strength varies with height and
// time, sampled from Perlin noise. Vertical acceleration is always zero.
type GustField struct {
	noise     *perlin.Perlin
	Strength  float64
	Scale     float64
	TimeScale float64
}

// NewGustField creates a gust field with the library's usual persistence
// (alpha 2, beta 2) and three octaves.
func NewGustField(seed int64, strength, scale, timeScale float64) *GustField {
	return &GustField{
		noise:     perlin.NewPerlin(2, 2, 3, seed),
		Strength:  strength,
		Scale:     scale,
		TimeScale: timeScale,
	}
}

// Accel samples the gust at height y.
func (f *GustField) Accel(x, y, t float64) (float64, float64) {
	return unit(f.noise.Noise2D(y*f.Scale, t*f.TimeScale)) * f.Strength, 0
}

// unit clips a raw noise sample to [-1, 1].
func unit(v float64) float64 {
	return math.Max(-1, math.Min(1, v))
}
