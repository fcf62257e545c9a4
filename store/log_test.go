package store

import (
	"sync"
	"testing"

	"gonum.org/v1/gonum/spatial/r2"
)

func TestLog_ConcurrentAppendThenDrain(t *testing.T) {
	s := New()
	var victims []ID
	for i := 0; i < 100; i++ {
		victims = append(victims, s.Create(particle(float64(i), 0, 1)))
	}

	l := NewLog()
	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := w; i < len(victims); i += 4 {
				l.Destroy(victims[i], victims[i])
			}
		}(w)
	}
	wg.Wait()

	if l.Len() != 100 {
		t.Fatalf("Len() = %d, want 100", l.Len())
	}
	// Nothing is applied until the drain.
	if s.Count() != 100 {
		t.Fatalf("store mutated before drain: count %d", s.Count())
	}

	res := l.Drain(s)
	if res.Destroyed != 100 || s.Count() != 0 {
		t.Errorf("drain destroyed %d, store count %d", res.Destroyed, s.Count())
	}
	if l.Len() != 0 {
		t.Errorf("log not empty after drain: %d", l.Len())
	}
}

func TestLog_DrainOrderIsDeterministic(t *testing.T) {
	run := func(reverse bool) []ID {
		s := New()
		l := NewLog()
		orders := []ID{30, 10, 20}
		if reverse {
			orders = []ID{20, 10, 30}
		}
		for _, o := range orders {
			l.Create(o, particle(float64(o), 0, float64(o)))
		}
		res := l.Drain(s)

		// Map created ids back to the mass they were created with.
		masses := make([]ID, len(res.Created))
		for i, id := range res.Created {
			p, _ := s.Get(id)
			masses[i] = ID(p.Mass)
		}
		return masses
	}

	a, b := run(false), run(true)
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("drain order depends on append order: %v vs %v", a, b)
		}
	}
	if a[0] != 10 || a[1] != 20 || a[2] != 30 {
		t.Errorf("expected creates ordered by key, got %v", a)
	}
}

func TestLog_OverwriteAndDestroySameKey(t *testing.T) {
	s := New()
	winner := s.Create(particle(0, 0, 100))
	loser := s.Create(particle(1, 0, 200))

	merged := Particle{ID: winner, Pos: r2.Vec{X: 0.5}, Mass: 300, Radius: 4, Scale: 8, Bounded: true}

	l := NewLog()
	l.Destroy(winner, loser)
	l.Overwrite(winner, merged)

	ops := l.Pending()
	if ops[0].Kind != OpOverwrite || ops[1].Kind != OpDestroy {
		t.Errorf("expected overwrite before destroy, got %v then %v", ops[0].Kind, ops[1].Kind)
	}

	res := l.Drain(s)
	if res.Overwritten != 1 || res.Destroyed != 1 || res.Skipped != 0 {
		t.Errorf("unexpected result %+v", res)
	}
	got, ok := s.Get(winner)
	if !ok || got.Mass != 300 {
		t.Errorf("winner not overwritten: %+v", got)
	}
	if s.Alive(loser) {
		t.Error("loser still alive")
	}
}

func TestLog_StaleTargetsAreSkipped(t *testing.T) {
	s := New()
	id := s.Create(particle(0, 0, 1))
	s.Destroy(id)

	l := NewLog()
	l.Overwrite(id, Particle{ID: id, Mass: 2})
	l.Destroy(id, id)

	res := l.Drain(s)
	if res.Skipped != 2 {
		t.Errorf("Skipped = %d, want 2", res.Skipped)
	}
	if s.Count() != 0 {
		t.Error("stale overwrite must not resurrect a particle")
	}
}

func TestLog_Reset(t *testing.T) {
	s := New()
	id := s.Create(particle(0, 0, 1))

	l := NewLog()
	l.Destroy(id, id)
	l.Reset()

	res := l.Drain(s)
	if res.Destroyed != 0 || !s.Alive(id) {
		t.Error("reset log should apply nothing")
	}
}
