package telemetry

import (
	"math"

	"github.com/pthm-cable/accrete/store"
)

// Collector accumulates events within time windows and produces WindowStats.
//
// Windows are measured in simulation seconds because the step size is
// supplied per tick by the caller.
type Collector struct {
	windowDurationSec float64

	windowStartTick int64
	windowStartTime float64

	merges int
	spawns int
	aborts int

	masses []float64
}

// NewCollector creates a collector that flushes every windowDurationSec of
// simulated time.
func NewCollector(windowDurationSec float64) *Collector {
	if windowDurationSec <= 0 {
		windowDurationSec = 1
	}
	return &Collector{windowDurationSec: windowDurationSec}
}

// RecordMerges adds n merges to the current window.
func (c *Collector) RecordMerges(n int) {
	c.merges += n
}

// RecordSpawns adds n spawned particles to the current window.
func (c *Collector) RecordSpawns(n int) {
	c.spawns += n
}

// RecordAbort records a tick whose collision phase was abandoned.
func (c *Collector) RecordAbort() {
	c.aborts++
}

// ShouldFlush reports whether the window has covered its duration.
func (c *Collector) ShouldFlush(simTime float64) bool {
	return simTime-c.windowStartTime >= c.windowDurationSec
}

// Flush summarizes particles and the window's event counters, then starts a
// new window at tick.
func (c *Collector) Flush(tick int64, simTime float64, particles []store.Particle) WindowStats {
	stats := WindowStats{
		WindowStartTick: c.windowStartTick,
		WindowEndTick:   tick,
		SimTimeSec:      simTime,
		Particles:       len(particles),
		Merges:          c.merges,
		Spawns:          c.spawns,
		Aborts:          c.aborts,
	}

	c.masses = c.masses[:0]
	for i := range particles {
		p := &particles[i]
		if !p.Bounded {
			stats.Attractors++
		}
		c.masses = append(c.masses, p.Mass)
		stats.TotalMass += p.Mass
		stats.MassMax = math.Max(stats.MassMax, p.Mass)
		stats.MaxRadius = math.Max(stats.MaxRadius, p.Radius)
		stats.KineticEnergy += 0.5 * p.Mass * (p.Vel.X*p.Vel.X + p.Vel.Y*p.Vel.Y)
	}
	stats.MassMean, stats.MassStd, stats.MassP10, stats.MassP50, stats.MassP90 = ComputeMassStats(c.masses)
	if stats.TotalMass > 0 {
		stats.Accretion = stats.MassMax / stats.TotalMass
	}

	c.windowStartTick = tick
	c.windowStartTime = simTime
	c.merges = 0
	c.spawns = 0
	c.aborts = 0

	return stats
}
