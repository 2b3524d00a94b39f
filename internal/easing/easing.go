// Package easing provides the time-to-scalar curves used by the choreographer.
// Curve functions map x ∈ [0,1] to [0,1]; combinators scale elapsed time into
// a window and the result into an amplitude.
package easing

import "math"

// Func is an easing curve over the unit interval.
type Func func(x float64) float64

// InSine starts slow and accelerates.
func InSine(x float64) float64 {
	return 1 - math.Cos(x*math.Pi/2)
}

// OutCubic starts fast and settles. OutCubic(1) is exactly 1.
func OutCubic(x float64) float64 {
	return 1 - math.Pow(1-x, 3)
}

// Clamp restricts v to [lo, hi].
func Clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// progress maps t into [0,1] over a window of the given width.
// A non-positive width is a step at t = 0.
func progress(width, t float64) float64 {
	if width <= 0 {
		if t >= 0 {
			return 1
		}
		return 0
	}
	return Clamp(t/width, 0, 1)
}

// Curve rises from 0 to height over [0, width].
func Curve(fn Func, width, height, t float64) float64 {
	return fn(progress(width, t)) * height
}

// CurveInvert falls from height to 0 over [0, width].
func CurveInvert(fn Func, width, height, t float64) float64 {
	return (1 - Curve(fn, width, 1, t)) * height
}

// Double stitches two equal-length windows: a rises over [0, width) and b
// falls over [width, 2·width). t == width belongs to the falling half, where
// the value is height.
func Double(a, b Func, width, height, t float64) float64 {
	if width > 0 && t/width < 1 {
		return Curve(a, width, height, t)
	}
	if width <= 0 && t < 0 {
		return Curve(a, width, height, t)
	}
	return CurveInvert(b, width, height, t-width)
}

// Window is a named span of elapsed time.
type Window struct {
	Start float64 // ms
	Width float64 // ms
}

// End returns the first instant after the window.
func (w Window) End() float64 {
	return w.Start + w.Width
}

// Local converts elapsed time into window-local time.
func (w Window) Local(t float64) float64 {
	return t - w.Start
}

// Contains reports whether t lies in [Start, End).
func (w Window) Contains(t float64) bool {
	return t >= w.Start && t < w.End()
}
