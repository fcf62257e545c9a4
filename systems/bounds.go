package systems

import (
	"gonum.org/v1/gonum/spatial/r2"

	"github.com/pthm-cable/accrete/store"
)

// BoundsSystem keeps bounded particles inside the world rectangle.
type BoundsSystem struct {
	pool *Pool
}

// NewBoundsSystem creates a bounds system.
func NewBoundsSystem(pool *Pool) *BoundsSystem {
	return &BoundsSystem{pool: pool}
}

// Update reflects every bounded particle in frame off the edges of bounds.
func (s *BoundsSystem) Update(frame []store.Particle, bounds r2.Box) error {
	bounds = canonical(bounds)
	return s.pool.Run(len(frame), func(_, start, end int) error {
		for i := start; i < end; i++ {
			if frame[i].Bounded {
				Reflect(&frame[i], bounds)
			}
		}
		return nil
	})
}

// Reflect clamps p so its disc lies inside b and negates the velocity
// component of each penetrated axis, whatever its sign. Axes are handled
// independently. Reports whether p touched a wall.
func Reflect(p *store.Particle, b r2.Box) bool {
	hitX := reflectAxis(&p.Pos.X, &p.Vel.X, p.Radius, b.Min.X, b.Max.X)
	hitY := reflectAxis(&p.Pos.Y, &p.Vel.Y, p.Radius, b.Min.Y, b.Max.Y)
	return hitX || hitY
}

func reflectAxis(pos, vel *float64, r, lo, hi float64) bool {
	switch {
	case hi-lo < 2*r:
		// Disc wider than the box: pin to the middle.
		*pos = (lo + hi) / 2
		*vel = -*vel
	case *pos-r < lo:
		*pos = lo + r
		*vel = -*vel
	case *pos+r > hi:
		*pos = hi - r
		*vel = -*vel
	default:
		return false
	}
	return true
}

func canonical(b r2.Box) r2.Box {
	if b.Min.X > b.Max.X {
		b.Min.X, b.Max.X = b.Max.X, b.Min.X
	}
	if b.Min.Y > b.Max.Y {
		b.Min.Y, b.Max.Y = b.Max.Y, b.Min.Y
	}
	return b
}
