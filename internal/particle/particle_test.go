package particle

import (
	"math"
	"math/rand"
	"testing"

	"github.com/talgya/particle-worker/internal/store"
)

// fixedRand always returns the same draw.
type fixedRand float64

func (f fixedRand) Float64() float64 { return float64(f) }

func TestCanTransition(t *testing.T) {
	legal := map[[2]State]bool{
		{NotStarted, Launched}: true,
		{Launched, Stopped}:    true,
		{Stopped, NotStarted}:  true,
	}
	states := []State{NotStarted, Launched, Stopped}
	for _, from := range states {
		for _, to := range states {
			want := legal[[2]State{from, to}]
			if got := CanTransition(from, to); got != want {
				t.Errorf("CanTransition(%s, %s): expected %v, got %v", from, to, want, got)
			}
		}
	}
}

func TestShouldLaunch(t *testing.T) {
	tests := []struct {
		elapsed float64
		eff     int
		rate    float64
		want    bool
	}{
		{16, 0, 75, false},
		{75, 0, 75, false},
		{76, 0, 75, true},
		{151, 1, 75, true},
		{149, 1, 75, false},
		{0.1, 5, 0, true},
		{0, 0, 0, false},
	}
	for _, tt := range tests {
		if got := ShouldLaunch(tt.elapsed, tt.eff, tt.rate); got != tt.want {
			t.Errorf("ShouldLaunch(%v, %d, %v): expected %v, got %v", tt.elapsed, tt.eff, tt.rate, tt.want, got)
		}
	}
}

func TestEffectiveIndex(t *testing.T) {
	if got := EffectiveIndex(2, 0, 10); got != 2 {
		t.Errorf("expected 2, got %d", got)
	}
	if got := EffectiveIndex(2, 3, 10); got != 32 {
		t.Errorf("expected 32, got %d", got)
	}
}

func TestIntegrateStepsAndGravity(t *testing.T) {
	s := store.Allocate(1)
	pos, vel := s.Position(0), s.Velocity(0)
	vel.Set(0.1, -0.2, 0)

	Integrate(pos, vel, 10, 0, Kinematics{Gravity: DefaultGravity})

	if math.Abs(pos.X()-1) > 1e-12 || math.Abs(pos.Y()+2) > 1e-12 {
		t.Errorf("expected position (1, -2), got (%v, %v)", pos.X(), pos.Y())
	}
	wantVY := -0.2 + DefaultGravity*10
	if math.Abs(vel.Y()-wantVY) > 1e-12 {
		t.Errorf("expected vel.y %v, got %v", wantVY, vel.Y())
	}
	if pos.Z() != 0 || vel.Z() != 0 {
		t.Errorf("z must stay 0")
	}
}

func TestIntegrateDragPullsTowardZero(t *testing.T) {
	k := Kinematics{Drag: 0.001}

	s := store.Allocate(2)
	right := s.Velocity(0)
	right.Set(0.5, 0, 0)
	Integrate(s.Position(0), right, 10, 0, k)
	if math.Abs(right.X()-0.49) > 1e-12 {
		t.Errorf("expected rightward vel 0.49, got %v", right.X())
	}

	left := s.Velocity(1)
	left.Set(-0.5, 0, 0)
	Integrate(s.Position(1), left, 10, 0, k)
	if math.Abs(left.X()+0.49) > 1e-12 {
		t.Errorf("expected leftward vel -0.49, got %v", left.X())
	}
}

func TestBoundsOutside(t *testing.T) {
	sym := Bounds{HalfWidth: 100, HalfHeight: 50}
	floor := Bounds{HalfWidth: 100, HalfHeight: 50, Mode: BoundsFloorOnly}
	margin := Bounds{HalfWidth: 100, HalfHeight: 50, Margin: 1}

	tests := []struct {
		name    string
		b       Bounds
		x, y    float64
		gravity float64
		want    bool
	}{
		{"inside", sym, 10, 10, DefaultGravity, false},
		{"right", sym, 100.01, 0, DefaultGravity, true},
		{"left", sym, -100.01, 0, DefaultGravity, true},
		{"top", sym, 0, 50.5, DefaultGravity, true},
		{"bottom", sym, 0, -50.5, DefaultGravity, true},
		{"edge_is_inside", sym, 100, 50, DefaultGravity, false},
		{"floor_gravity_side", floor, 0, 50.5, DefaultGravity, true},
		{"floor_other_side", floor, 0, -500, DefaultGravity, false},
		{"floor_negative_gravity", floor, 0, -50.5, -DefaultGravity, true},
		{"floor_x_still_tested", floor, -101, 0, DefaultGravity, true},
		{"margin_inside", margin, 100.5, 0, DefaultGravity, false},
		{"margin_outside", margin, 101.5, 0, DefaultGravity, true},
		{"degenerate_zero", Bounds{}, 0, 0, DefaultGravity, true},
		{"degenerate_negative", Bounds{HalfWidth: -5, HalfHeight: 10}, 0, 0, DefaultGravity, true},
	}

	for _, tt := range tests {
		s := store.Allocate(1)
		s.Position(0).Set(tt.x, tt.y, 0)
		if got := tt.b.Outside(s.Position(0), tt.gravity); got != tt.want {
			t.Errorf("%s: expected %v, got %v", tt.name, tt.want, got)
		}
	}
}

func TestEmitterReset(t *testing.T) {
	e := Emitter{
		Anchor:   [2]float64{10, -10},
		Position: Range{0, 4, 2, 2},
		Velocity: Range{0.1, 0.2, -0.1, -0.2},
	}
	s := store.Allocate(1)
	pos, vel := s.Position(0), s.Velocity(0)

	e.Reset(pos, vel, fixedRand(0.5))

	if pos.X() != 12 || pos.Y() != -8 || pos.Z() != 0 {
		t.Errorf("expected position (12, -8, 0), got %v", []float64(pos))
	}
	if math.Abs(vel.X()-0.15) > 1e-12 || math.Abs(vel.Y()+0.15) > 1e-12 {
		t.Errorf("expected velocity (0.15, -0.15), got %v", []float64(vel))
	}
}

func TestEmitterStaysInRange(t *testing.T) {
	e := Emitter{Position: Range{-5, 5, -1, 1}, Velocity: Range{0.1, 0.2, -0.1, -0.2}}
	rng := rand.New(rand.NewSource(7))
	s := store.Allocate(1)
	for i := 0; i < 500; i++ {
		e.Reset(s.Position(0), s.Velocity(0), rng)
		p, v := s.Position(0), s.Velocity(0)
		if p.X() < -5 || p.X() > 5 || p.Y() < -1 || p.Y() > 1 {
			t.Fatalf("position out of range: %v", []float64(p))
		}
		if v.X() < 0.1 || v.X() > 0.2 || v.Y() > -0.1 || v.Y() < -0.2 {
			t.Fatalf("velocity out of range: %v", []float64(v))
		}
	}
}

func TestAdvanceExitsOnSameTick(t *testing.T) {
	l := &Lifecycle{
		Count:  1,
		Bounds: Bounds{HalfWidth: 100, HalfHeight: 100},
	}
	s := store.Allocate(1)
	pos, vel := s.Position(0), s.Velocity(0)
	pos.Set(99.9, 0, 0)
	vel.Set(0.15, 0, 0)
	p := &Particle{Index: 0, State: Launched}

	tr := l.Advance(p, pos, vel, TickContext{Dt: 1, Elapsed: 1000}, fixedRand(0))

	if math.Abs(pos.X()-100.05) > 1e-9 {
		t.Errorf("expected x = 100.05, got %v", pos.X())
	}
	if p.State != Stopped || !tr.Stopped {
		t.Errorf("expected Stopped on the same tick, got %s (transition %+v)", p.State, tr)
	}

	// Without recycling a stopped particle stays put.
	before := pos.X()
	tr = l.Advance(p, pos, vel, TickContext{Dt: 16, Elapsed: 1016}, fixedRand(0))
	if p.State != Stopped || tr != (Transition{}) || pos.X() != before {
		t.Errorf("stopped particle must not move or transition, got %s %+v", p.State, tr)
	}
}

func TestAdvanceRecyclesOnSameTick(t *testing.T) {
	l := &Lifecycle{
		Count:   4,
		Bounds:  Bounds{HalfWidth: 10, HalfHeight: 10},
		Emitter: Emitter{Velocity: Range{0.1, 0.1, 0, 0}},
		Recycle: true,
	}
	s := store.Allocate(4)
	pos, vel := s.Position(2), s.Velocity(2)
	pos.Set(9.99, 0, 0)
	vel.Set(1, 0, 0)
	p := &Particle{Index: 2, State: Launched}

	tr := l.Advance(p, pos, vel, TickContext{Dt: 1, Elapsed: 500}, fixedRand(0))

	if !tr.Stopped || !tr.Recycled {
		t.Fatalf("expected stop + recycle, got %+v", tr)
	}
	if p.State != NotStarted {
		t.Errorf("expected NotStarted after recycle, got %s", p.State)
	}
	if p.RecycleCount != 1 {
		t.Errorf("expected recycle count 1, got %d", p.RecycleCount)
	}
	if pos.X() != 0 || vel.X() != 0.1 {
		t.Errorf("expected redrawn start state, got pos %v vel %v", []float64(pos), []float64(vel))
	}
	if got := EffectiveIndex(p.Index, p.RecycleCount, l.Count); got != 6 {
		t.Errorf("expected effective index 6, got %d", got)
	}
}

func TestAdvanceWaitsForStagger(t *testing.T) {
	l := &Lifecycle{Count: 3, Bounds: Bounds{HalfWidth: 100, HalfHeight: 100}}
	s := store.Allocate(3)
	for i := 0; i < 3; i++ {
		s.Velocity(i).Set(0.1, 0, 0)
	}
	parts := []Particle{{Index: 0}, {Index: 1}, {Index: 2}}

	for i := range parts {
		tr := l.Advance(&parts[i], s.Position(i), s.Velocity(i), TickContext{Dt: 16, Elapsed: 16, LaunchRate: 75}, fixedRand(0))
		if tr.Launched || parts[i].State != NotStarted {
			t.Errorf("particle %d launched too early", i)
		}
	}
	for i, v := range s.Positions {
		if v != 0 {
			t.Errorf("slot %d moved before launch: %v", i, v)
		}
	}

	// At 160ms particles 0 and 1 are due (76, 151) and particle 2 is not (226).
	for i := range parts {
		l.Advance(&parts[i], s.Position(i), s.Velocity(i), TickContext{Dt: 16, Elapsed: 160, LaunchRate: 75}, fixedRand(0))
	}
	if parts[0].State != Launched || parts[1].State != Launched || parts[2].State != NotStarted {
		t.Errorf("unexpected states %s %s %s", parts[0].State, parts[1].State, parts[2].State)
	}
	if s.Position(0).X() == 0 {
		t.Errorf("a particle launched this tick must be integrated on the same tick")
	}
}

func TestNoiseFieldBounded(t *testing.T) {
	f := NewNoiseField(3, 0.0001, 0.01, 0.001)
	for i := 0; i < 200; i++ {
		x := float64(i) * 3.7
		ax, ay := f.Accel(x, -x, float64(i)*16)
		if math.Abs(ax) > 0.0001+1e-12 || math.Abs(ay) > 0.0001+1e-12 {
			t.Fatalf("accel exceeds strength: (%v, %v)", ax, ay)
		}
	}

	// Same seed, same field.
	g := NewNoiseField(3, 0.0001, 0.01, 0.001)
	a1, b1 := f.Accel(12, 34, 56)
	a2, b2 := g.Accel(12, 34, 56)
	if a1 != a2 || b1 != b2 {
		t.Errorf("noise field is not deterministic for a fixed seed")
	}
}

func TestGustFieldHorizontalOnly(t *testing.T) {
	f := NewGustField(9, 0.0002, 0.05, 0.0005)
	g := NewGustField(9, 0.0002, 0.05, 0.0005)
	for i := 0; i < 100; i++ {
		y := float64(i)*1.3 - 50
		ax, ay := f.Accel(0, y, float64(i)*16)
		if ay != 0 {
			t.Fatalf("gusts must not push vertically, got ay=%v", ay)
		}
		if math.Abs(ax) > 0.0002+1e-12 {
			t.Fatalf("gust exceeds strength: %v", ax)
		}
		if bx, _ := g.Accel(0, y, float64(i)*16); bx != ax {
			t.Fatalf("gust field is not deterministic for a fixed seed")
		}
	}
}
