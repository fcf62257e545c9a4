// Package components defines ECS components for the simulation.
package components

// Body holds the physical properties of a particle.
// Radius and Scale are derived from Mass and the global density; they are
// stored so hot loops never recompute a cube root.
type Body struct {
	Mass   float64
	Radius float64
	Scale  float64 // 2*Radius, presentation only

	// Bounded particles are reflected by the world bounds and take part in
	// collision/merge. Attractor-only particles leave it false.
	Bounded bool
}

// Identity carries the store-assigned particle id.
// Ids are monotonic and never reused, unlike ark entity ids which are
// recycled after removal.
type Identity struct {
	Serial uint64
}
