// Package store owns the authoritative set of particles.
//
// Particles live in an ark ECS world as entities carrying Position, Velocity,
// Body and Identity components. Callers never see ark entities: they hold an
// ID, which is assigned monotonically and never reused, so a handle to a
// destroyed particle stays invalid even after ark recycles the entity slot.
package store

import (
	"sort"

	"github.com/mlange-42/ark/ecs"
	"gonum.org/v1/gonum/spatial/r2"

	"github.com/pthm-cable/accrete/components"
)

// ID identifies a particle. Zero is never assigned.
type ID uint64

// Particle is the uniform particle record exchanged between the store and
// the simulation passes.
type Particle struct {
	ID      ID
	Pos     r2.Vec
	Vel     r2.Vec
	Mass    float64
	Radius  float64
	Scale   float64
	Bounded bool
}

// Store holds particles in an ark world. It is not safe for concurrent use;
// parallel passes work on snapshots and write back through Commit or a Log.
type Store struct {
	world *ecs.World

	mapper *ecs.Map4[
		components.Position,
		components.Velocity,
		components.Body,
		components.Identity,
	]
	filter *ecs.Filter4[
		components.Position,
		components.Velocity,
		components.Body,
		components.Identity,
	]

	posMap  *ecs.Map1[components.Position]
	velMap  *ecs.Map1[components.Velocity]
	bodyMap *ecs.Map1[components.Body]

	index  map[ID]ecs.Entity
	nextID ID
}

// New creates an empty store with its own ECS world.
func New() *Store {
	world := ecs.NewWorld()
	return &Store{
		world: world,
		mapper: ecs.NewMap4[
			components.Position,
			components.Velocity,
			components.Body,
			components.Identity,
		](world),
		filter: ecs.NewFilter4[
			components.Position,
			components.Velocity,
			components.Body,
			components.Identity,
		](world),
		posMap:  ecs.NewMap1[components.Position](world),
		velMap:  ecs.NewMap1[components.Velocity](world),
		bodyMap: ecs.NewMap1[components.Body](world),
		index:   make(map[ID]ecs.Entity),
	}
}

// Create inserts a particle and returns its new id. p.ID is ignored.
func (s *Store) Create(p Particle) ID {
	s.nextID++
	id := s.nextID

	pos := components.Position{X: p.Pos.X, Y: p.Pos.Y}
	vel := components.Velocity{X: p.Vel.X, Y: p.Vel.Y}
	body := components.Body{
		Mass:    p.Mass,
		Radius:  p.Radius,
		Scale:   p.Scale,
		Bounded: p.Bounded,
	}
	ident := components.Identity{Serial: uint64(id)}

	s.index[id] = s.mapper.NewEntity(&pos, &vel, &body, &ident)
	return id
}

// Destroy removes a particle. Destroying an unknown or already destroyed id
// is a no-op and reports false.
func (s *Store) Destroy(id ID) bool {
	e, ok := s.index[id]
	if !ok {
		return false
	}
	delete(s.index, id)
	if s.world.Alive(e) {
		s.world.RemoveEntity(e)
	}
	return true
}

// Alive reports whether id refers to a live particle.
func (s *Store) Alive(id ID) bool {
	_, ok := s.entity(id)
	return ok
}

// Get returns the particle for id, or false if it does not exist.
func (s *Store) Get(id ID) (Particle, bool) {
	e, ok := s.entity(id)
	if !ok {
		return Particle{}, false
	}
	pos := s.posMap.Get(e)
	vel := s.velMap.Get(e)
	body := s.bodyMap.Get(e)
	if pos == nil || vel == nil || body == nil {
		return Particle{}, false
	}
	return toParticle(id, pos, vel, body), true
}

// Set overwrites every attribute of the particle p.ID.
// Returns false without side effects if the particle no longer exists.
func (s *Store) Set(p Particle) bool {
	e, ok := s.entity(p.ID)
	if !ok {
		return false
	}
	pos := s.posMap.Get(e)
	vel := s.velMap.Get(e)
	body := s.bodyMap.Get(e)
	if pos == nil || vel == nil || body == nil {
		return false
	}
	pos.X, pos.Y = p.Pos.X, p.Pos.Y
	vel.X, vel.Y = p.Vel.X, p.Vel.Y
	body.Mass = p.Mass
	body.Radius = p.Radius
	body.Scale = p.Scale
	body.Bounded = p.Bounded
	return true
}

// SetPosition overwrites the position of id. Returns false if id is stale.
func (s *Store) SetPosition(id ID, v r2.Vec) bool {
	e, ok := s.entity(id)
	if !ok {
		return false
	}
	pos := s.posMap.Get(e)
	if pos == nil {
		return false
	}
	pos.X, pos.Y = v.X, v.Y
	return true
}

// SetVelocity overwrites the velocity of id. Returns false if id is stale.
func (s *Store) SetVelocity(id ID, v r2.Vec) bool {
	e, ok := s.entity(id)
	if !ok {
		return false
	}
	vel := s.velMap.Get(e)
	if vel == nil {
		return false
	}
	vel.X, vel.Y = v.X, v.Y
	return true
}

// Count returns the number of live particles.
func (s *Store) Count() int {
	return len(s.index)
}

// ForEach returns the ids of all particles matching pred, in ascending order.
// A nil pred matches everything.
func (s *Store) ForEach(pred func(p *Particle) bool) []ID {
	var ids []ID
	query := s.filter.Query()
	for query.Next() {
		pos, vel, body, ident := query.Get()
		p := toParticle(ID(ident.Serial), pos, vel, body)
		if pred == nil || pred(&p) {
			ids = append(ids, p.ID)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Snapshot appends copies of all particles matching pred to dst, sorted by
// id, and returns the extended slice. Reuse dst across ticks to avoid
// allocations.
func (s *Store) Snapshot(dst []Particle, pred func(p *Particle) bool) []Particle {
	start := len(dst)
	query := s.filter.Query()
	for query.Next() {
		pos, vel, body, ident := query.Get()
		p := toParticle(ID(ident.Serial), pos, vel, body)
		if pred == nil || pred(&p) {
			dst = append(dst, p)
		}
	}
	tail := dst[start:]
	sort.Slice(tail, func(i, j int) bool { return tail[i].ID < tail[j].ID })
	return dst
}

// Commit writes the position and velocity of every record in frame back to
// the store. Records whose particle was destroyed are skipped. Returns the
// number of particles written.
func (s *Store) Commit(frame []Particle) int {
	written := 0
	for i := range frame {
		p := &frame[i]
		e, ok := s.entity(p.ID)
		if !ok {
			continue
		}
		pos := s.posMap.Get(e)
		vel := s.velMap.Get(e)
		if pos == nil || vel == nil {
			continue
		}
		pos.X, pos.Y = p.Pos.X, p.Pos.Y
		vel.X, vel.Y = p.Vel.X, p.Vel.Y
		written++
	}
	return written
}

// Update calls fn for every live particle and writes back whatever fn
// changes, except the id. Structural changes are not allowed inside fn.
func (s *Store) Update(fn func(p *Particle)) {
	query := s.filter.Query()
	for query.Next() {
		pos, vel, body, ident := query.Get()
		p := toParticle(ID(ident.Serial), pos, vel, body)
		fn(&p)
		pos.X, pos.Y = p.Pos.X, p.Pos.Y
		vel.X, vel.Y = p.Vel.X, p.Vel.Y
		body.Mass = p.Mass
		body.Radius = p.Radius
		body.Scale = p.Scale
		body.Bounded = p.Bounded
	}
}

// Clear destroys every particle and returns how many were removed.
// The id counter is not reset, so old handles stay invalid.
func (s *Store) Clear() int {
	// Collect first: the world is locked while a query is open.
	entities := make([]ecs.Entity, 0, len(s.index))
	query := s.filter.Query()
	for query.Next() {
		entities = append(entities, query.Entity())
	}
	for _, e := range entities {
		s.world.RemoveEntity(e)
	}
	n := len(s.index)
	s.index = make(map[ID]ecs.Entity)
	return n
}

// entity resolves id to a live ark entity.
func (s *Store) entity(id ID) (ecs.Entity, bool) {
	e, ok := s.index[id]
	if !ok || !s.world.Alive(e) {
		return e, false
	}
	return e, true
}

func toParticle(id ID, pos *components.Position, vel *components.Velocity, body *components.Body) Particle {
	return Particle{
		ID:      id,
		Pos:     r2.Vec{X: pos.X, Y: pos.Y},
		Vel:     r2.Vec{X: vel.X, Y: vel.Y},
		Mass:    body.Mass,
		Radius:  body.Radius,
		Scale:   body.Scale,
		Bounded: body.Bounded,
	}
}
