package store

import "testing"

func TestAllocateSizing(t *testing.T) {
	tests := []struct {
		n    int
		want int
	}{
		{n: 0, want: 0},
		{n: 1, want: 3},
		{n: 3, want: 9},
		{n: 1000, want: 3000},
		{n: -5, want: 0},
	}

	for _, tt := range tests {
		s := Allocate(tt.n)
		if len(s.Positions) != tt.want {
			t.Errorf("Allocate(%d): expected %d position slots, got %d", tt.n, tt.want, len(s.Positions))
		}
		if len(s.Velocities) != tt.want {
			t.Errorf("Allocate(%d): expected %d velocity slots, got %d", tt.n, tt.want, len(s.Velocities))
		}
		if s.Len()*Stride != tt.want {
			t.Errorf("Allocate(%d): expected Len %d, got %d", tt.n, tt.want/Stride, s.Len())
		}
		for i, v := range s.Positions {
			if v != 0 {
				t.Fatalf("Allocate(%d): slot %d not zeroed: %v", tt.n, i, v)
			}
		}
	}
}

func TestViewAliasesArena(t *testing.T) {
	s := Allocate(4)

	p := s.Position(2)
	p.Set(1, 2, 3)

	if s.Positions[6] != 1 || s.Positions[7] != 2 || s.Positions[8] != 3 {
		t.Fatalf("expected writes through view to land in slots 6..8, got %v", s.Positions)
	}

	// Neighbouring particles untouched.
	for _, i := range []int{0, 1, 2, 3, 4, 5, 9, 10, 11} {
		if s.Positions[i] != 0 {
			t.Errorf("slot %d modified by particle 2's view", i)
		}
	}

	v := s.Velocity(3)
	v[Y] = -0.5
	if s.Velocities[10] != -0.5 {
		t.Errorf("expected velocity slot 10 to be -0.5, got %v", s.Velocities[10])
	}
}

func TestViewCannotSpill(t *testing.T) {
	s := Allocate(2)
	v := s.Position(0)
	if cap(v) != Stride {
		t.Fatalf("expected view capacity %d, got %d", Stride, cap(v))
	}

	// append must reallocate rather than overwrite particle 1.
	_ = append(v, 42)
	if s.Positions[3] != 0 {
		t.Errorf("append through view overwrote the next particle")
	}
}

func TestCopyPositionsIsDetached(t *testing.T) {
	s := Allocate(2)
	s.Position(1).Set(5, 6, 0)

	out := s.CopyPositions(nil)
	if len(out) != 6 {
		t.Fatalf("expected 6 slots, got %d", len(out))
	}
	if out[3] != 5 || out[4] != 6 {
		t.Errorf("copy does not match arena: %v", out)
	}

	out[3] = 99
	if s.Positions[3] != 5 {
		t.Errorf("mutating the copy changed the arena")
	}

	// Reuse of a large enough buffer keeps its backing array.
	buf := make([]float64, 0, 16)
	got := s.CopyPositions(buf)
	if &got[:1][0] != &buf[:1][0] {
		t.Errorf("expected CopyPositions to reuse the destination buffer")
	}
}
