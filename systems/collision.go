package systems

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/pthm-cable/accrete/store"
)

// Errors that abort a collision pass.
var (
	ErrDoubleClaim  = errors.New("particle claimed by two merges in one tick")
	ErrInvalidMerge = errors.New("merge produced a non-finite or non-positive mass")
)

// MergeMode selects how a merge is written back to the store.
type MergeMode uint8

const (
	// MergeInPlace overwrites the survivor with the merged values and
	// destroys the other particle.
	MergeInPlace MergeMode = iota
	// MergeRespawn creates a new particle with the merged values and
	// destroys both parents, so consumers see a fresh id.
	MergeRespawn
)

// ParseMergeMode maps a config string to a MergeMode.
func ParseMergeMode(s string) (MergeMode, error) {
	switch s {
	case "in_place", "":
		return MergeInPlace, nil
	case "respawn":
		return MergeRespawn, nil
	}
	return MergeInPlace, fmt.Errorf("unknown merge mode %q", s)
}

// Merge records one resolved pair.
type Merge struct {
	Winner store.ID       // survivor (heavier, lower id on ties)
	Loser  store.ID       // consumed particle
	Result store.Particle // merged attributes; Result.ID is Winner
}

// CollisionResult summarizes one collision pass.
type CollisionResult struct {
	Candidates int  // bounded particles considered
	Contacts   int  // particles overlapping at least one other
	BruteForce bool // narrow phase ran over all pairs
	Merges     []Merge
}

// CollisionSystem finds overlapping bounded particles and merges them.
//
// Matching is deterministic: each particle prefers the overlapping neighbor
// with the smallest key (d^2, lower id, higher id), and a pair merges only
// when the preference is mutual. Both members of a mutual pair discover it;
// they race on claiming the loser and only the caller that wins that claim
// records the merge. The globally smallest overlapping pair is always
// mutual, so every tick with any contact makes progress, and particles that
// lose out are matched again next tick.
type CollisionSystem struct {
	Mode MergeMode

	// CellSize is the minimum grid cell size; 0 means derive it from the
	// largest radius.
	CellSize float64

	// Below BruteForceThreshold candidates the grid is skipped.
	BruteForceThreshold int

	pool    *Pool
	grid    *SpatialGrid
	bodies  []store.Particle
	partner []int32
	near    [][]int32
	found   [][]Merge
}

// NewCollisionSystem creates a collision system.
func NewCollisionSystem(mode MergeMode, cellSize float64, bruteForceThreshold int, pool *Pool) *CollisionSystem {
	workers := pool.Workers()
	s := &CollisionSystem{
		Mode:                mode,
		CellSize:            cellSize,
		BruteForceThreshold: bruteForceThreshold,
		pool:                pool,
		grid:                NewSpatialGrid(),
		near:                make([][]int32, workers),
		found:               make([][]Merge, workers),
	}
	for i := range s.near {
		s.near[i] = make([]int32, 0, 32)
	}
	return s
}

// Update resolves collisions among the bounded particles of frame.
//
// frame is the phase-entry snapshot and is never modified; every merge is
// computed from it. Structural effects go to log, and claims must be empty
// on entry. On error, log may hold a partial set of ops and the caller
// should discard it.
func (s *CollisionSystem) Update(frame []store.Particle, density float64, claims *ClaimSet, log *store.Log) (CollisionResult, error) {
	var res CollisionResult

	s.bodies = s.bodies[:0]
	for i := range frame {
		if frame[i].Bounded && frame[i].Mass > 0 {
			s.bodies = append(s.bodies, frame[i])
		}
	}
	n := len(s.bodies)
	res.Candidates = n
	if n < 2 {
		return res, nil
	}

	if cap(s.partner) < n {
		s.partner = make([]int32, n)
	}
	s.partner = s.partner[:n]
	for i := range s.partner {
		s.partner[i] = -1
	}

	brute := n < s.BruteForceThreshold
	res.BruteForce = brute
	if !brute {
		s.buildGrid()
	}

	// Phase A: each particle picks its preferred contact. Writes only its
	// own partner slot.
	err := s.pool.Run(n, func(worker, start, end int) error {
		for i := start; i < end; i++ {
			if brute {
				s.partner[i] = s.preferBrute(i)
			} else {
				s.partner[i] = s.preferGrid(i, worker)
			}
		}
		return nil
	})
	if err != nil {
		return res, err
	}

	for w := range s.found {
		s.found[w] = s.found[w][:0]
	}

	// Phase B: resolve mutual pairs through the claim set.
	err = s.pool.Run(n, func(worker, start, end int) error {
		for i := start; i < end; i++ {
			j := s.partner[i]
			if j < 0 || s.partner[j] != int32(i) {
				continue
			}
			m, ok, err := s.resolve(i, int(j), density, claims, log)
			if err != nil {
				return err
			}
			if ok {
				s.found[worker] = append(s.found[worker], m)
			}
		}
		return nil
	})
	if err != nil {
		return res, err
	}

	for i := range s.partner {
		if s.partner[i] >= 0 {
			res.Contacts++
		}
	}
	for w := range s.found {
		res.Merges = append(res.Merges, s.found[w]...)
	}
	sort.Slice(res.Merges, func(a, b int) bool { return res.Merges[a].Winner < res.Merges[b].Winner })
	return res, nil
}

// resolve claims and records the merge of bodies i and j. ok is false when
// the other member of the pair already claimed it.
func (s *CollisionSystem) resolve(i, j int, density float64, claims *ClaimSet, log *store.Log) (Merge, bool, error) {
	w, l := &s.bodies[i], &s.bodies[j]
	if l.Mass > w.Mass || (l.Mass == w.Mass && l.ID < w.ID) {
		w, l = l, w
	}

	if !claims.Claim(l.ID) {
		return Merge{}, false, nil
	}
	// Only the caller that claimed the loser gets here, and the winner
	// belongs to no other mutual pair, so this claim must succeed.
	if !claims.Claim(w.ID) {
		return Merge{}, false, fmt.Errorf("%w: survivor %d (loser %d)", ErrDoubleClaim, w.ID, l.ID)
	}

	merged := MergeParticles(*w, *l, density)
	if !(merged.Mass > 0) || math.IsInf(merged.Mass, 0) {
		return Merge{}, false, fmt.Errorf("%w: %d + %d -> %v", ErrInvalidMerge, w.ID, l.ID, merged.Mass)
	}

	switch s.Mode {
	case MergeRespawn:
		log.Create(w.ID, merged)
		log.Destroy(w.ID, w.ID)
		log.Destroy(w.ID, l.ID)
	default:
		log.Overwrite(w.ID, merged)
		log.Destroy(w.ID, l.ID)
	}

	return Merge{Winner: w.ID, Loser: l.ID, Result: merged}, true, nil
}

// MergeParticles combines a and b into one particle carrying a's id:
// mass is summed, position and velocity are mass-weighted averages, and the
// radius is recomputed from the new mass.
func MergeParticles(a, b store.Particle, density float64) store.Particle {
	m := a.Mass + b.Mass
	r := RadiusForMass(m, density)

	out := a
	out.Mass = m
	out.Pos.X = (a.Pos.X*a.Mass + b.Pos.X*b.Mass) / m
	out.Pos.Y = (a.Pos.Y*a.Mass + b.Pos.Y*b.Mass) / m
	out.Vel.X = (a.Vel.X*a.Mass + b.Vel.X*b.Mass) / m
	out.Vel.Y = (a.Vel.Y*a.Mass + b.Vel.Y*b.Mass) / m
	out.Radius = r
	out.Scale = ScaleForRadius(r)
	out.Bounded = a.Bounded || b.Bounded
	return out
}

// buildGrid buckets bodies by center over their bounding box.
func (s *CollisionSystem) buildGrid() {
	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	var maxR float64
	for i := range s.bodies {
		b := &s.bodies[i]
		minX = math.Min(minX, b.Pos.X)
		minY = math.Min(minY, b.Pos.Y)
		maxX = math.Max(maxX, b.Pos.X)
		maxY = math.Max(maxY, b.Pos.Y)
		maxR = math.Max(maxR, b.Radius)
	}

	cell := math.Max(s.CellSize, 2*maxR)
	s.grid.Reset(minX, minY, maxX, maxY, cell, 4*len(s.bodies))
	for i := range s.bodies {
		s.grid.Insert(i, s.bodies[i].Pos.X, s.bodies[i].Pos.Y)
	}
}

func (s *CollisionSystem) preferBrute(i int) int32 {
	best := int32(-1)
	var bestD2 float64
	for j := range s.bodies {
		if j == i {
			continue
		}
		if d2, ok := s.contact(i, j); ok && (best < 0 || s.prefer(i, j, d2, int(best), bestD2)) {
			best, bestD2 = int32(j), d2
		}
	}
	return best
}

func (s *CollisionSystem) preferGrid(i, worker int) int32 {
	p := &s.bodies[i]
	near := s.grid.Near(s.near[worker][:0], p.Pos.X, p.Pos.Y)
	s.near[worker] = near

	best := int32(-1)
	var bestD2 float64
	for _, j := range near {
		if int(j) == i {
			continue
		}
		if d2, ok := s.contact(i, int(j)); ok && (best < 0 || s.prefer(i, int(j), d2, int(best), bestD2)) {
			best, bestD2 = j, d2
		}
	}
	return best
}

// contact reports whether bodies i and j overlap, with their squared
// center distance.
func (s *CollisionSystem) contact(i, j int) (float64, bool) {
	a, b := &s.bodies[i], &s.bodies[j]
	dx := a.Pos.X - b.Pos.X
	dy := a.Pos.Y - b.Pos.Y
	d2 := dx*dx + dy*dy
	rr := a.Radius + b.Radius
	return d2, d2 < rr*rr
}

// prefer reports whether candidate j (at d2) beats the current best k (at
// kd2) as the partner of i. The key (d2, lower id, higher id) is symmetric
// in the pair, which is what makes the closest pair mutual.
func (s *CollisionSystem) prefer(i, j int, d2 float64, k int, kd2 float64) bool {
	if d2 != kd2 {
		return d2 < kd2
	}
	jLo, jHi := orderedIDs(s.bodies[i].ID, s.bodies[j].ID)
	kLo, kHi := orderedIDs(s.bodies[i].ID, s.bodies[k].ID)
	if jLo != kLo {
		return jLo < kLo
	}
	return jHi < kHi
}

func orderedIDs(a, b store.ID) (store.ID, store.ID) {
	if a < b {
		return a, b
	}
	return b, a
}
