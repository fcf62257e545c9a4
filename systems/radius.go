package systems

import "math"

// RadiusForMass returns the radius of a sphere of the given mass and density:
// (3m / (4*pi*density))^(1/3).
func RadiusForMass(mass, density float64) float64 {
	return math.Cbrt(3 * mass / (4 * math.Pi * density))
}

// ScaleForRadius returns the presentation scale (diameter) for a radius.
func ScaleForRadius(radius float64) float64 {
	return 2 * radius
}
