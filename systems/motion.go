package systems

import (
	"github.com/pthm-cable/accrete/store"
)

// MotionSystem advances positions by velocity.
type MotionSystem struct {
	pool *Pool
}

// NewMotionSystem creates a motion system.
func NewMotionSystem(pool *Pool) *MotionSystem {
	return &MotionSystem{pool: pool}
}

// Update applies position += velocity * dt to every particle.
func (s *MotionSystem) Update(frame []store.Particle, dt float64) error {
	return s.pool.Run(len(frame), func(_, start, end int) error {
		for i := start; i < end; i++ {
			p := &frame[i]
			p.Pos.X += p.Vel.X * dt
			p.Pos.Y += p.Vel.Y * dt
		}
		return nil
	})
}
