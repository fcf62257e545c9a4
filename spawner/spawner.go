// Package spawner feeds new particles into a simulation.
package spawner

import (
	"fmt"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/spatial/r2"

	"github.com/pthm-cable/accrete/config"
	"github.com/pthm-cable/accrete/store"
)

// Target receives spawned particles.
type Target interface {
	Spawn(pos, vel r2.Vec, mass float64) (store.ID, error)
	ParticleCount() int
}

// Spawner places particles inside the world bounds, either all at once or
// paced by a rate.
type Spawner struct {
	cfg     config.SpawnerConfig
	rng     *rand.Rand
	pending float64 // fractional spawns carried between updates
}

// New creates a spawner with its own seeded random source.
func New(cfg config.SpawnerConfig, seed int64) *Spawner {
	return &Spawner{
		cfg: cfg,
		rng: rand.New(rand.NewSource(seed)),
	}
}

// Update accumulates rate*dt and spawns the whole part of the total at
// random positions. Returns how many particles were created.
func (s *Spawner) Update(t Target, bounds r2.Box, dt float64) (int, error) {
	s.pending += s.cfg.Rate * dt
	if s.pending < 1 {
		return 0, nil
	}
	n := int(s.pending)
	s.pending -= float64(n)
	return s.Random(t, bounds, n)
}

// Populate places the configured initial particles using the configured
// placement.
func (s *Spawner) Populate(t Target, bounds r2.Box) (int, error) {
	if s.cfg.Placement == config.PlacementGrid {
		return s.Grid(t, bounds, s.cfg.Initial)
	}
	return s.Random(t, bounds, s.cfg.Initial)
}

// Random spawns up to n particles uniformly inside bounds.
func (s *Spawner) Random(t Target, bounds r2.Box, n int) (int, error) {
	n = s.capped(t, n)
	for i := 0; i < n; i++ {
		pos := r2.Vec{
			X: uniform(s.rng, bounds.Min.X, bounds.Max.X),
			Y: uniform(s.rng, bounds.Min.Y, bounds.Max.Y),
		}
		if err := s.spawnAt(t, pos); err != nil {
			return i, err
		}
	}
	return n, nil
}

// Grid spawns particles on a lattice with spacing size/sqrt(n) per axis,
// starting one spacing in from the min corner. This yields roughly n
// particles, never more.
func (s *Spawner) Grid(t Target, bounds r2.Box, n int) (int, error) {
	if n <= 0 {
		return 0, nil
	}
	side := math.Sqrt(float64(n))
	dx := (bounds.Max.X - bounds.Min.X) / side
	dy := (bounds.Max.Y - bounds.Min.Y) / side
	if !(dx > 0) || !(dy > 0) {
		return 0, nil
	}

	limit := s.capped(t, n)
	spawned := 0
	for j := 1; ; j++ {
		y := bounds.Min.Y + float64(j)*dy
		if y >= bounds.Max.Y {
			break
		}
		for i := 1; ; i++ {
			x := bounds.Min.X + float64(i)*dx
			if x >= bounds.Max.X {
				break
			}
			if spawned >= limit {
				return spawned, nil
			}
			if err := s.spawnAt(t, r2.Vec{X: x, Y: y}); err != nil {
				return spawned, err
			}
			spawned++
		}
	}
	return spawned, nil
}

func (s *Spawner) spawnAt(t Target, pos r2.Vec) error {
	vel := r2.Vec{
		X: uniform(s.rng, -s.cfg.MaxSpeed, s.cfg.MaxSpeed),
		Y: uniform(s.rng, -s.cfg.MaxSpeed, s.cfg.MaxSpeed),
	}
	mass := uniform(s.rng, s.cfg.MinMass, s.cfg.MaxMass)
	if _, err := t.Spawn(pos, vel, mass); err != nil {
		return fmt.Errorf("spawning at (%.2f, %.2f): %w", pos.X, pos.Y, err)
	}
	return nil
}

// capped limits n so the target does not exceed MaxParticles.
func (s *Spawner) capped(t Target, n int) int {
	if s.cfg.MaxParticles <= 0 {
		return max(n, 0)
	}
	room := s.cfg.MaxParticles - t.ParticleCount()
	return max(min(n, room), 0)
}

func uniform(rng *rand.Rand, lo, hi float64) float64 {
	return lo + rng.Float64()*(hi-lo)
}
