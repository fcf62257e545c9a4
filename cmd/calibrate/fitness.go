package main

import (
	"fmt"
	"math"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/pthm-cable/accrete/camera"
	"github.com/pthm-cable/accrete/config"
	"github.com/pthm-cable/accrete/sim"
	"github.com/pthm-cable/accrete/spawner"
)

// abortPenalty is added to the fitness per aborted collision phase.
const abortPenalty = 0.05

// FitnessEvaluator runs headless simulations and scores how close the
// final accretion (largest particle's share of total mass) lands to a
// target.
type FitnessEvaluator struct {
	params     *ParamVector
	ticks      int64
	seeds      []int64
	baseConfig *config.Config
	exempt     bool
	target     float64

	mu            sync.Mutex
	lastAccretion float64
}

// NewFitnessEvaluator creates an evaluator. exempt selects the gravity
// overlap exemption for every run it makes.
func NewFitnessEvaluator(params *ParamVector, ticks int64, seeds []int64, baseCfg *config.Config, exempt bool, target float64) *FitnessEvaluator {
	return &FitnessEvaluator{
		params:     params,
		ticks:      ticks,
		seeds:      seeds,
		baseConfig: baseCfg,
		exempt:     exempt,
		target:     target,
	}
}

// LastAccretion returns the mean accretion from the most recent Evaluate.
func (fe *FitnessEvaluator) LastAccretion() float64 {
	fe.mu.Lock()
	defer fe.mu.Unlock()
	return fe.lastAccretion
}

// runResult holds the outcome of one seeded run.
type runResult struct {
	accretion float64
	aborts    int64
}

// Evaluate computes the fitness of raw parameter values (lower is better):
// squared distance from the target accretion, averaged over seeds, plus a
// penalty for aborted ticks. Seeds run concurrently.
func (fe *FitnessEvaluator) Evaluate(x []float64) float64 {
	cfg := fe.configFor(x)

	results := make([]runResult, len(fe.seeds))
	var g errgroup.Group
	for i, seed := range fe.seeds {
		g.Go(func() error {
			r, err := fe.runSimulation(cfg, seed)
			results[i] = r
			return err
		})
	}
	if err := g.Wait(); err != nil {
		fmt.Printf("evaluation failed: %v\n", err)
		return math.Inf(1)
	}

	var fitness, accretion float64
	for _, r := range results {
		d := r.accretion - fe.target
		fitness += d*d + abortPenalty*float64(r.aborts)
		accretion += r.accretion
	}
	n := float64(len(results))

	fe.mu.Lock()
	fe.lastAccretion = accretion / n
	fe.mu.Unlock()

	return fitness / n
}

// configFor returns a copy of the base config with x applied.
func (fe *FitnessEvaluator) configFor(x []float64) *config.Config {
	cfg := fe.baseConfig.Clone()
	fe.params.ApplyToConfig(cfg, x)
	cfg.Physics.ExemptOverlap = fe.exempt
	cfg.Spawner.Rate = 0
	cfg.ComputeDerived()
	return cfg
}

// runSimulation populates a fresh simulation and advances it for fe.ticks.
// Seeds run concurrently, so each simulation uses a single worker.
func (fe *FitnessEvaluator) runSimulation(base *config.Config, seed int64) (runResult, error) {
	cfg := base.Clone()
	cfg.Physics.Workers = 1
	cfg.ComputeDerived()

	s, err := sim.New(sim.Options{Config: cfg})
	if err != nil {
		return runResult{}, err
	}
	defer s.Close()

	cam := camera.New(cfg.Derived.ScreenW64, cfg.Derived.ScreenH64, cfg.Camera.X, cfg.Camera.Y, cfg.Camera.Zoom)
	bounds := cam.Bounds()
	if _, err := spawner.New(cfg.Spawner, seed).Populate(s, bounds); err != nil {
		return runResult{}, fmt.Errorf("seed %d: %w", seed, err)
	}

	for s.Tick() < fe.ticks {
		// Aborted ticks are counted and penalized, not fatal.
		_ = s.AdvanceTick(cfg.Physics.DT, bounds)
	}

	var total, largest float64
	for _, p := range s.Particles() {
		total += p.Mass
		largest = math.Max(largest, p.Mass)
	}
	res := runResult{aborts: s.Counters().Aborts}
	if total > 0 {
		res.accretion = largest / total
	}
	return res, nil
}
