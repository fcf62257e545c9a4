package systems

import (
	"math"

	"gonum.org/v1/gonum/spatial/r2"

	"github.com/pthm-cable/accrete/store"
)

// DefaultG is the gravitational constant in SI units.
const DefaultG = 6.6743015e-11

// attractor is the read-only view of a mass-bearing particle used while
// accumulating forces.
type attractor struct {
	id     store.ID
	pos    r2.Vec
	mass   float64
	radius float64
}

// GravitySystem accumulates pairwise attraction and updates velocities.
type GravitySystem struct {
	G     float64
	Scale float64 // multiplies G to compensate for simulation-unit distances

	// ExemptOverlap skips pairs closer than the sum of their radii. Those are
	// already colliding and left to the merge pass.
	ExemptOverlap bool

	pool       *Pool
	attractors []attractor
}

// NewGravitySystem creates a gravity system.
func NewGravitySystem(g, scale float64, exemptOverlap bool, pool *Pool) *GravitySystem {
	return &GravitySystem{
		G:             g,
		Scale:         scale,
		ExemptOverlap: exemptOverlap,
		pool:          pool,
		attractors:    make([]attractor, 0, 512),
	}
}

// Update applies one step of gravity to every mass-bearing particle in frame:
// v += (sum F / m) * dt with F = G*Scale*m1*m2/d^2 toward each attractor.
//
// The attractor list is copied out of frame before the parallel pass, so
// velocity writes never alias the data being read.
func (s *GravitySystem) Update(frame []store.Particle, dt float64) error {
	s.attractors = s.attractors[:0]
	for i := range frame {
		p := &frame[i]
		if p.Mass <= 0 {
			continue
		}
		s.attractors = append(s.attractors, attractor{
			id:     p.ID,
			pos:    p.Pos,
			mass:   p.Mass,
			radius: p.Radius,
		})
	}
	if len(s.attractors) < 2 {
		return nil
	}

	gs := s.G * s.Scale
	return s.pool.Run(len(frame), func(_, start, end int) error {
		for i := start; i < end; i++ {
			p := &frame[i]
			if p.Mass <= 0 {
				continue
			}
			f := s.force(p, gs)
			p.Vel.X += f.X / p.Mass * dt
			p.Vel.Y += f.Y / p.Mass * dt
		}
		return nil
	})
}

// force returns the net force on p from every attractor.
func (s *GravitySystem) force(p *store.Particle, gs float64) r2.Vec {
	var f r2.Vec
	for j := range s.attractors {
		a := &s.attractors[j]
		if a.id == p.ID {
			continue
		}
		d := r2.Sub(a.pos, p.Pos)
		d2 := r2.Norm2(d)
		if d2 == 0 {
			continue
		}
		if s.ExemptOverlap {
			rr := p.Radius + a.radius
			if d2 < rr*rr {
				continue
			}
		}
		mag := gs * p.Mass * a.mass / d2
		f = r2.Add(f, r2.Scale(mag/math.Sqrt(d2), d))
	}
	return f
}
