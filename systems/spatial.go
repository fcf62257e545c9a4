// Package systems provides the per-tick simulation passes.
package systems

import "math"

// SpatialGrid is a uniform bucket grid for the collision broad phase.
//
// Items are inserted by center into exactly one cell. As long as the cell
// size is at least the largest possible contact distance (sum of two radii),
// every overlapping pair lies in the same or an adjacent cell, so querying
// the 3x3 block around a cell never misses a contact.
type SpatialGrid struct {
	cellSize float64
	minX     float64
	minY     float64
	cols     int
	rows     int
	cells    [][]int32 // flat grid of item indices
}

// NewSpatialGrid creates an empty grid. Call Reset before inserting.
func NewSpatialGrid() *SpatialGrid {
	return &SpatialGrid{}
}

// Reset clears the grid and resizes it to cover [minX,maxX]x[minY,maxY].
// The cell size grows so the grid holds O(maxCells) cells whatever the
// shape of the covered area.
// Cell capacity is kept across resets.
func (g *SpatialGrid) Reset(minX, minY, maxX, maxY, cellSize float64, maxCells int) {
	if cellSize <= 0 {
		cellSize = 1
	}
	w := math.Max(maxX-minX, 0)
	h := math.Max(maxY-minY, 0)

	if maxCells > 0 {
		// Cap both the area and each axis: a nearly collinear spread has
		// almost no area but can still span millions of cells on one axis.
		limit := float64(maxCells)
		cellSize = math.Max(cellSize, math.Sqrt(w*h/limit))
		cellSize = math.Max(cellSize, math.Max(w, h)/limit)
	}

	g.cellSize = cellSize
	g.minX = minX
	g.minY = minY
	g.cols = int(w/cellSize) + 1
	g.rows = int(h/cellSize) + 1

	n := g.cols * g.rows
	if cap(g.cells) < n {
		cells := make([][]int32, n)
		copy(cells, g.cells[:cap(g.cells)])
		g.cells = cells
	}
	g.cells = g.cells[:n]
	for i := range g.cells {
		if g.cells[i] == nil {
			g.cells[i] = make([]int32, 0, 4)
		}
		g.cells[i] = g.cells[i][:0]
	}
}

// CellSize returns the effective cell size after the last Reset.
func (g *SpatialGrid) CellSize() float64 {
	return g.cellSize
}

// Dims returns the grid dimensions.
func (g *SpatialGrid) Dims() (cols, rows int) {
	return g.cols, g.rows
}

// Insert adds item idx at the given position.
func (g *SpatialGrid) Insert(idx int, x, y float64) {
	col, row := g.cellCoords(x, y)
	i := row*g.cols + col
	g.cells[i] = append(g.cells[i], int32(idx))
}

// Near appends to dst every item in the cell containing (x, y) and its eight
// neighbors, and returns the extended slice. Safe for concurrent use once
// all inserts are done.
func (g *SpatialGrid) Near(dst []int32, x, y float64) []int32 {
	col, row := g.cellCoords(x, y)
	for dr := -1; dr <= 1; dr++ {
		r := row + dr
		if r < 0 || r >= g.rows {
			continue
		}
		for dc := -1; dc <= 1; dc++ {
			c := col + dc
			if c < 0 || c >= g.cols {
				continue
			}
			dst = append(dst, g.cells[r*g.cols+c]...)
		}
	}
	return dst
}

// cellCoords returns the cell for a world position, clamped to the grid.
// Clamping never increases the cell distance between two points, so pairs
// outside the covered area are still found.
func (g *SpatialGrid) cellCoords(x, y float64) (col, row int) {
	col = int(math.Floor((x - g.minX) / g.cellSize))
	row = int(math.Floor((y - g.minY) / g.cellSize))

	if col < 0 {
		col = 0
	} else if col >= g.cols {
		col = g.cols - 1
	}
	if row < 0 {
		row = 0
	} else if row >= g.rows {
		row = g.rows - 1
	}
	return col, row
}
