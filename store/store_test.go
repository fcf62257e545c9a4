package store

import (
	"testing"

	"gonum.org/v1/gonum/spatial/r2"
)

func particle(x, y, mass float64) Particle {
	return Particle{
		Pos:     r2.Vec{X: x, Y: y},
		Vel:     r2.Vec{X: 1, Y: -1},
		Mass:    mass,
		Radius:  1,
		Scale:   2,
		Bounded: true,
	}
}

func TestStore_CreateGet(t *testing.T) {
	s := New()
	id := s.Create(particle(3, 4, 100))

	if id == 0 {
		t.Fatal("expected non-zero id")
	}
	got, ok := s.Get(id)
	if !ok {
		t.Fatal("expected particle to exist")
	}
	if got.ID != id || got.Pos != (r2.Vec{X: 3, Y: 4}) || got.Mass != 100 || !got.Bounded {
		t.Errorf("unexpected particle %+v", got)
	}
	if s.Count() != 1 {
		t.Errorf("Count() = %d, want 1", s.Count())
	}
}

func TestStore_DestroyIdempotent(t *testing.T) {
	s := New()
	id := s.Create(particle(0, 0, 10))

	if !s.Destroy(id) {
		t.Error("first destroy should report true")
	}
	if s.Destroy(id) {
		t.Error("second destroy should be a no-op")
	}
	if s.Destroy(ID(9999)) {
		t.Error("destroying an unknown id should be a no-op")
	}
	if s.Count() != 0 {
		t.Errorf("Count() = %d, want 0", s.Count())
	}
}

func TestStore_StaleHandle(t *testing.T) {
	s := New()
	id := s.Create(particle(0, 0, 10))
	s.Destroy(id)

	if _, ok := s.Get(id); ok {
		t.Error("Get on destroyed id should report false")
	}
	if s.Set(Particle{ID: id, Mass: 5}) {
		t.Error("Set on destroyed id should report false")
	}
	if s.SetPosition(id, r2.Vec{X: 1}) || s.SetVelocity(id, r2.Vec{X: 1}) {
		t.Error("attribute setters on destroyed id should report false")
	}
	if s.Alive(id) {
		t.Error("destroyed id should not be alive")
	}
}

func TestStore_IDsNeverReused(t *testing.T) {
	s := New()
	seen := make(map[ID]bool)

	for round := 0; round < 3; round++ {
		for i := 0; i < 10; i++ {
			id := s.Create(particle(float64(i), 0, 1))
			if seen[id] {
				t.Fatalf("id %d reused", id)
			}
			seen[id] = true
		}
		if round == 0 {
			for id := range seen {
				s.Destroy(id)
			}
		} else {
			s.Clear()
		}
	}
}

func TestStore_SetAndAttributes(t *testing.T) {
	s := New()
	id := s.Create(particle(0, 0, 10))

	if !s.SetPosition(id, r2.Vec{X: 7, Y: 8}) {
		t.Fatal("SetPosition failed")
	}
	if !s.SetVelocity(id, r2.Vec{X: -2, Y: 3}) {
		t.Fatal("SetVelocity failed")
	}
	got, _ := s.Get(id)
	if got.Pos != (r2.Vec{X: 7, Y: 8}) || got.Vel != (r2.Vec{X: -2, Y: 3}) {
		t.Errorf("unexpected attributes %+v", got)
	}

	got.Mass = 42
	got.Radius = 3
	got.Bounded = false
	if !s.Set(got) {
		t.Fatal("Set failed")
	}
	again, _ := s.Get(id)
	if again != got {
		t.Errorf("Set round trip = %+v, want %+v", again, got)
	}
}

func TestStore_ForEachAndSnapshot(t *testing.T) {
	s := New()
	var ids []ID
	for i := 0; i < 6; i++ {
		p := particle(float64(i), 0, float64(i+1))
		p.Bounded = i%2 == 0
		ids = append(ids, s.Create(p))
	}
	// Destroy one in the middle to shuffle ark's storage order.
	s.Destroy(ids[1])

	bounded := s.ForEach(func(p *Particle) bool { return p.Bounded })
	want := []ID{ids[0], ids[2], ids[4]}
	if len(bounded) != len(want) {
		t.Fatalf("ForEach returned %v, want %v", bounded, want)
	}
	for i := range want {
		if bounded[i] != want[i] {
			t.Errorf("ForEach[%d] = %d, want %d", i, bounded[i], want[i])
		}
	}

	snap := s.Snapshot(nil, nil)
	if len(snap) != 5 {
		t.Fatalf("Snapshot len = %d, want 5", len(snap))
	}
	for i := 1; i < len(snap); i++ {
		if snap[i-1].ID >= snap[i].ID {
			t.Errorf("snapshot not sorted by id: %d before %d", snap[i-1].ID, snap[i].ID)
		}
	}
}

func TestStore_CommitSkipsDestroyed(t *testing.T) {
	s := New()
	a := s.Create(particle(0, 0, 1))
	b := s.Create(particle(1, 1, 1))

	frame := s.Snapshot(nil, nil)
	for i := range frame {
		frame[i].Pos = r2.Vec{X: 50, Y: 60}
	}
	s.Destroy(b)

	if n := s.Commit(frame); n != 1 {
		t.Errorf("Commit wrote %d, want 1", n)
	}
	got, _ := s.Get(a)
	if got.Pos != (r2.Vec{X: 50, Y: 60}) {
		t.Errorf("position not committed: %+v", got.Pos)
	}
}

func TestStore_Update(t *testing.T) {
	s := New()
	id := s.Create(particle(0, 0, 8))

	s.Update(func(p *Particle) {
		p.Radius = 2
		p.Scale = 4
	})

	got, _ := s.Get(id)
	if got.Radius != 2 || got.Scale != 4 || got.Mass != 8 {
		t.Errorf("Update not applied: %+v", got)
	}
}

func TestStore_Clear(t *testing.T) {
	s := New()
	for i := 0; i < 5; i++ {
		s.Create(particle(float64(i), 0, 1))
	}

	if n := s.Clear(); n != 5 {
		t.Errorf("Clear() = %d, want 5", n)
	}
	if s.Count() != 0 {
		t.Errorf("Count() after clear = %d", s.Count())
	}
	if len(s.Snapshot(nil, nil)) != 0 {
		t.Error("snapshot after clear should be empty")
	}
}
