package spawner

import (
	"errors"
	"testing"

	"gonum.org/v1/gonum/spatial/r2"

	"github.com/pthm-cable/accrete/config"
	"github.com/pthm-cable/accrete/store"
)

type spawned struct {
	pos, vel r2.Vec
	mass     float64
}

type fakeTarget struct {
	got  []spawned
	fail bool
}

func (f *fakeTarget) Spawn(pos, vel r2.Vec, mass float64) (store.ID, error) {
	if f.fail {
		return 0, errors.New("rejected")
	}
	f.got = append(f.got, spawned{pos, vel, mass})
	return store.ID(len(f.got)), nil
}

func (f *fakeTarget) ParticleCount() int { return len(f.got) }

func testConfig() config.SpawnerConfig {
	return config.SpawnerConfig{
		Rate:      10,
		Initial:   100,
		Placement: config.PlacementRandom,
		MinMass:   100,
		MaxMass:   1000,
		MaxSpeed:  3,
	}
}

var box = r2.Box{Min: r2.Vec{X: -50, Y: -20}, Max: r2.Vec{X: 50, Y: 20}}

func TestRandom_StaysInRanges(t *testing.T) {
	target := &fakeTarget{}
	n, err := New(testConfig(), 1).Random(target, box, 500)
	if err != nil || n != 500 {
		t.Fatalf("Random = %d, %v", n, err)
	}
	for _, p := range target.got {
		if p.pos.X < box.Min.X || p.pos.X > box.Max.X || p.pos.Y < box.Min.Y || p.pos.Y > box.Max.Y {
			t.Fatalf("position %+v outside bounds", p.pos)
		}
		if p.mass < 100 || p.mass > 1000 {
			t.Fatalf("mass %v outside [100, 1000]", p.mass)
		}
		if p.vel.X < -3 || p.vel.X > 3 || p.vel.Y < -3 || p.vel.Y > 3 {
			t.Fatalf("velocity %+v exceeds max speed", p.vel)
		}
	}
}

func TestUpdate_RateAccumulator(t *testing.T) {
	tests := []struct {
		name  string
		dts   []float64
		wants []int
	}{
		{"whole steps", []float64{1, 1}, []int{10, 10}},
		{"fractions carry over", []float64{0.05, 0.05, 0.05}, []int{0, 1, 0}},
		{"remainder kept", []float64{0.25, 0.25}, []int{2, 3}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := New(testConfig(), 1)
			target := &fakeTarget{}
			for i, dt := range tt.dts {
				n, err := s.Update(target, box, dt)
				if err != nil {
					t.Fatal(err)
				}
				if n != tt.wants[i] {
					t.Errorf("step %d spawned %d, want %d", i, n, tt.wants[i])
				}
			}
		})
	}
}

func TestGrid_Lattice(t *testing.T) {
	target := &fakeTarget{}
	square := r2.Box{Max: r2.Vec{X: 100, Y: 100}}
	n, err := New(testConfig(), 1).Grid(target, square, 100)
	if err != nil {
		t.Fatal(err)
	}

	// Spacing 10, points at 10..90 on each axis.
	if n != 81 {
		t.Fatalf("grid spawned %d, want 81", n)
	}
	first, last := target.got[0].pos, target.got[n-1].pos
	if first != (r2.Vec{X: 10, Y: 10}) || last != (r2.Vec{X: 90, Y: 90}) {
		t.Errorf("lattice corners = %+v, %+v", first, last)
	}
}

func TestMaxParticlesCap(t *testing.T) {
	cfg := testConfig()
	cfg.MaxParticles = 25
	s := New(cfg, 1)
	target := &fakeTarget{}

	if n, _ := s.Random(target, box, 20); n != 20 {
		t.Fatalf("first batch = %d, want 20", n)
	}
	if n, _ := s.Random(target, box, 20); n != 5 {
		t.Fatalf("second batch = %d, want 5", n)
	}
	if n, _ := s.Grid(target, box, 100); n != 0 {
		t.Fatalf("grid at cap = %d, want 0", n)
	}
}

func TestSpawnErrorPropagates(t *testing.T) {
	target := &fakeTarget{fail: true}
	n, err := New(testConfig(), 1).Random(target, box, 3)
	if err == nil || n != 0 {
		t.Errorf("Random = %d, %v; want error", n, err)
	}
}

func TestSameSeedSamePlacement(t *testing.T) {
	a, b := &fakeTarget{}, &fakeTarget{}
	if _, err := New(testConfig(), 9).Populate(a, box); err != nil {
		t.Fatal(err)
	}
	if _, err := New(testConfig(), 9).Populate(b, box); err != nil {
		t.Fatal(err)
	}
	for i := range a.got {
		if a.got[i] != b.got[i] {
			t.Fatalf("spawn %d differs between runs with equal seeds", i)
		}
	}
}
