// Package camera maps a screen viewport onto the simulation plane and
// derives the world bounds from it.
package camera

import (
	"gonum.org/v1/gonum/spatial/r2"
)

// Zoom limits.
const (
	MinZoom = 0.05
	MaxZoom = 8.0
)

// Camera describes the viewport into the simulation world.
// The world is unbounded; the visible rectangle is what particles are
// reflected against.
type Camera struct {
	// Camera center in world coordinates
	X, Y float64

	// Zoom level (1.0 = 1:1, 2.0 = 2x magnification)
	Zoom float64

	// Viewport dimensions (screen size)
	ViewportW, ViewportH float64
}

// New creates a camera centered on (x, y). A non-positive zoom means 1;
// other values are clamped to [MinZoom, MaxZoom].
func New(viewportW, viewportH, x, y, zoom float64) *Camera {
	if zoom <= 0 {
		zoom = 1
	}
	return &Camera{
		X:         x,
		Y:         y,
		Zoom:      clamp(zoom, MinZoom, MaxZoom),
		ViewportW: viewportW,
		ViewportH: viewportH,
	}
}

// ScreenToWorld converts screen coordinates to world coordinates.
func (c *Camera) ScreenToWorld(sx, sy float64) (wx, wy float64) {
	wx = c.X + (sx-c.ViewportW/2)/c.Zoom
	wy = c.Y + (sy-c.ViewportH/2)/c.Zoom
	return wx, wy
}

// Bounds returns the world rectangle covered by the viewport: the world
// positions of the screen's top-left and bottom-right corners.
func (c *Camera) Bounds() r2.Box {
	minX, minY := c.ScreenToWorld(0, 0)
	maxX, maxY := c.ScreenToWorld(c.ViewportW, c.ViewportH)
	return r2.Box{
		Min: r2.Vec{X: minX, Y: minY},
		Max: r2.Vec{X: maxX, Y: maxY},
	}
}

func clamp(x, lo, hi float64) float64 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}
