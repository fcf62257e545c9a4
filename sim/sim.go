// Package sim drives the particle simulation one tick at a time.
package sim

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"

	"gonum.org/v1/gonum/spatial/r2"

	"github.com/pthm-cable/accrete/config"
	"github.com/pthm-cable/accrete/store"
	"github.com/pthm-cable/accrete/systems"
	"github.com/pthm-cable/accrete/telemetry"
)

// Errors returned to callers of the external operations.
var (
	ErrInvalidDensity = errors.New("density must be positive and finite")
	ErrInvalidMass    = errors.New("mass must be positive and finite")
	ErrInvalidVector  = errors.New("position and velocity must be finite")
	ErrInvalidStep    = errors.New("time step must be positive and finite")
)

// Options configures a Simulation.
type Options struct {
	// Config to run with. Nil means config.Cfg().
	Config *config.Config

	LogStats      bool                        // log window and perf stats via slog
	OutputDir     string                      // CSV output directory; empty disables output
	StatsCallback func(telemetry.WindowStats) // called on each stats flush
}

// Counters are running totals since the simulation was created.
type Counters struct {
	Ticks   int64
	Spawns  int64
	Merges  int64
	Aborts  int64
	Cleared int64
}

// Simulation owns the particle store and runs the per-tick passes:
// gravity, motion, bounds, then collision with the mutation log drained
// at the end. All methods are safe for concurrent use; a tick holds the
// lock for its whole duration, so spawns and density changes always land
// between ticks.
type Simulation struct {
	mu sync.Mutex

	cfg     *config.Config
	density float64

	store  *store.Store
	log    *store.Log
	claims *systems.ClaimSet
	frame  []store.Particle

	gravity   *systems.GravitySystem
	motion    *systems.MotionSystem
	bounds    *systems.BoundsSystem
	collision *systems.CollisionSystem

	tick     int64
	simTime  float64
	counters Counters

	perf          *telemetry.PerfCollector
	collector     *telemetry.Collector
	output        *telemetry.OutputManager
	logStats      bool
	statsCallback func(telemetry.WindowStats)
}

// New creates an empty simulation.
func New(opts Options) (*Simulation, error) {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.Cfg()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	mode, err := systems.ParseMergeMode(cfg.Physics.MergeMode)
	if err != nil {
		return nil, err
	}

	phys := cfg.Physics
	pool := systems.NewPool(cfg.Derived.Workers, phys.ParallelThreshold)

	s := &Simulation{
		cfg:           cfg,
		density:       phys.Density,
		store:         store.New(),
		log:           store.NewLog(),
		claims:        systems.NewClaimSet(),
		gravity:       systems.NewGravitySystem(phys.G, phys.ForceScale, phys.ExemptOverlap, pool),
		motion:        systems.NewMotionSystem(pool),
		bounds:        systems.NewBoundsSystem(pool),
		collision:     systems.NewCollisionSystem(mode, phys.GridCellSize, phys.BruteForceThreshold, pool),
		perf:          telemetry.NewPerfCollector(cfg.Telemetry.PerfCollectorWindow),
		collector:     telemetry.NewCollector(cfg.Telemetry.StatsWindow),
		logStats:      opts.LogStats,
		statsCallback: opts.StatsCallback,
	}

	s.output, err = telemetry.NewOutputManager(opts.OutputDir)
	if err != nil {
		return nil, err
	}
	if err := s.output.WriteConfig(cfg); err != nil {
		s.output.Close()
		return nil, err
	}

	return s, nil
}

// AdvanceTick runs one tick of length dt with particles reflected off
// bounds.
//
// If the collision phase fails, its pending merges are discarded and the
// store keeps the post-bounds state: physics applied, no merges. The tick
// still counts, and the returned error wraps the cause.
func (s *Simulation) AdvanceTick(dt float64, bounds r2.Box) error {
	if !(dt > 0) || math.IsInf(dt, 0) {
		return fmt.Errorf("%w: %v", ErrInvalidStep, dt)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.perf.StartTick()
	defer s.perf.EndTick()

	s.frame = s.store.Snapshot(s.frame[:0], nil)

	s.perf.StartPhase(telemetry.PhaseGravity)
	if err := s.gravity.Update(s.frame, dt); err != nil {
		return fmt.Errorf("gravity: %w", err)
	}

	s.perf.StartPhase(telemetry.PhaseMotion)
	if err := s.motion.Update(s.frame, dt); err != nil {
		return fmt.Errorf("motion: %w", err)
	}

	s.perf.StartPhase(telemetry.PhaseBounds)
	if err := s.bounds.Update(s.frame, bounds); err != nil {
		return fmt.Errorf("bounds: %w", err)
	}

	s.perf.StartPhase(telemetry.PhaseCommit)
	s.store.Commit(s.frame)

	s.perf.StartPhase(telemetry.PhaseCollision)
	res, err := s.collision.Update(s.frame, s.density, s.claims, s.log)
	s.finishTick(dt)
	if err != nil {
		s.log.Reset()
		s.claims.Reset()
		s.counters.Aborts++
		s.collector.RecordAbort()
		slog.Error("collision phase aborted", "tick", s.tick, "error", err)
		s.flushTelemetry()
		return fmt.Errorf("tick %d: collision: %w", s.tick, err)
	}

	s.perf.StartPhase(telemetry.PhaseDrain)
	s.log.Drain(s.store)
	s.claims.Reset()
	s.counters.Merges += int64(len(res.Merges))
	s.collector.RecordMerges(len(res.Merges))

	s.flushTelemetry()
	return nil
}

func (s *Simulation) finishTick(dt float64) {
	s.tick++
	s.simTime += dt
	s.counters.Ticks++
}

// Spawn creates a bounded particle with its radius derived from mass and
// the current density.
func (s *Simulation) Spawn(pos, vel r2.Vec, mass float64) (store.ID, error) {
	return s.spawn(pos, vel, mass, true)
}

// SpawnAttractor creates an unbounded particle. It pulls and is pulled by
// every other particle and moves freely, but never reflects off the bounds
// and never merges.
func (s *Simulation) SpawnAttractor(pos, vel r2.Vec, mass float64) (store.ID, error) {
	return s.spawn(pos, vel, mass, false)
}

func (s *Simulation) spawn(pos, vel r2.Vec, mass float64, bounded bool) (store.ID, error) {
	if !(mass > 0) || math.IsInf(mass, 0) {
		return 0, fmt.Errorf("%w: %v", ErrInvalidMass, mass)
	}
	if !finite(pos) || !finite(vel) {
		return 0, fmt.Errorf("%w: pos %v vel %v", ErrInvalidVector, pos, vel)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	r := systems.RadiusForMass(mass, s.density)
	id := s.store.Create(store.Particle{
		Pos:     pos,
		Vel:     vel,
		Mass:    mass,
		Radius:  r,
		Scale:   systems.ScaleForRadius(r),
		Bounded: bounded,
	})
	s.counters.Spawns++
	s.collector.RecordSpawns(1)
	return id, nil
}

// SetDensity changes the density used to derive radii and recomputes the
// radius of every live particle.
func (s *Simulation) SetDensity(density float64) error {
	if !(density > 0) || math.IsInf(density, 0) {
		return fmt.Errorf("%w: %v", ErrInvalidDensity, density)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.density = density
	s.store.Update(func(p *store.Particle) {
		p.Radius = systems.RadiusForMass(p.Mass, density)
		p.Scale = systems.ScaleForRadius(p.Radius)
	})
	return nil
}

// Density returns the current density.
func (s *Simulation) Density() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.density
}

// ParticleCount returns the number of live particles.
func (s *Simulation) ParticleCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.Count()
}

// ClearAll destroys every particle and returns how many were removed.
// Ids are not reused afterwards.
func (s *Simulation) ClearAll() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := s.store.Clear()
	s.counters.Cleared += int64(n)
	return n
}

// Particle returns a copy of the particle with the given id.
func (s *Simulation) Particle(id store.ID) (store.Particle, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.Get(id)
}

// Particles returns a copy of every live particle, sorted by id.
func (s *Simulation) Particles() []store.Particle {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.Snapshot(nil, nil)
}

// TotalMass returns the summed mass of every live particle.
func (s *Simulation) TotalMass() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	var m float64
	for _, p := range s.store.Snapshot(s.frame[:0], nil) {
		m += p.Mass
	}
	return m
}

// Tick returns the number of ticks advanced so far.
func (s *Simulation) Tick() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tick
}

// SimTime returns the simulated seconds advanced so far.
func (s *Simulation) SimTime() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.simTime
}

// Counters returns the running totals.
func (s *Simulation) Counters() Counters {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counters
}

// PerfStats returns phase timings over the recent window.
func (s *Simulation) PerfStats() telemetry.PerfStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.perf.Stats()
}

// Close flushes and closes run output.
func (s *Simulation) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.output.Close()
}

func finite(v r2.Vec) bool {
	return !math.IsNaN(v.X) && !math.IsInf(v.X, 0) && !math.IsNaN(v.Y) && !math.IsInf(v.Y, 0)
}
