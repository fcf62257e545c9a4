package systems

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/pthm-cable/accrete/store"
)

func TestPool_CoversEveryIndexOnce(t *testing.T) {
	tests := []struct {
		name      string
		workers   int
		threshold int
		n         int
	}{
		{"inline below threshold", 8, 100, 50},
		{"single worker", 1, 0, 37},
		{"even split", 4, 0, 400},
		{"uneven split", 7, 0, 101},
		{"more workers than items", 16, 0, 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pool := NewPool(tt.workers, tt.threshold)
			hits := make([]int32, tt.n)
			err := pool.Run(tt.n, func(worker, start, end int) error {
				if worker < 0 || worker >= pool.Workers() {
					t.Errorf("worker index %d out of range", worker)
				}
				for i := start; i < end; i++ {
					atomic.AddInt32(&hits[i], 1)
				}
				return nil
			})
			if err != nil {
				t.Fatal(err)
			}
			for i, h := range hits {
				if h != 1 {
					t.Fatalf("index %d visited %d times", i, h)
				}
			}
		})
	}
}

func TestPool_ReturnsChunkError(t *testing.T) {
	boom := errors.New("boom")
	pool := NewPool(4, 0)
	err := pool.Run(100, func(_, start, _ int) error {
		if start == 0 {
			return boom
		}
		return nil
	})
	if !errors.Is(err, boom) {
		t.Errorf("err = %v, want boom", err)
	}
}

func TestPool_ZeroItems(t *testing.T) {
	called := false
	err := NewPool(4, 0).Run(0, func(int, int, int) error {
		called = true
		return nil
	})
	if err != nil || called {
		t.Errorf("Run(0) should be a no-op, err=%v called=%v", err, called)
	}
}

func TestClaimSet_ExactlyOneWinner(t *testing.T) {
	claims := NewClaimSet()
	const callers = 32
	const ids = 200

	var wins [ids]int32
	var wg sync.WaitGroup
	for c := 0; c < callers; c++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for id := 0; id < ids; id++ {
				if claims.Claim(store.ID(id)) {
					atomic.AddInt32(&wins[id], 1)
				}
			}
		}()
	}
	wg.Wait()

	for id, w := range wins {
		if w != 1 {
			t.Errorf("id %d claimed %d times", id, w)
		}
	}
	if claims.Len() != ids {
		t.Errorf("Len = %d, want %d", claims.Len(), ids)
	}
}

func TestClaimSet_Reset(t *testing.T) {
	claims := NewClaimSet()
	if !claims.Claim(7) {
		t.Fatal("first claim should succeed")
	}
	if claims.Claim(7) {
		t.Fatal("second claim should fail")
	}
	if !claims.Claimed(7) || claims.Claimed(8) {
		t.Fatal("Claimed disagrees with Claim")
	}

	claims.Reset()
	if claims.Len() != 0 {
		t.Errorf("Len after reset = %d", claims.Len())
	}
	if !claims.Claim(7) {
		t.Error("claim after reset should succeed")
	}
}

func TestSpatialGrid_Near(t *testing.T) {
	g := NewSpatialGrid()
	g.Reset(0, 0, 100, 100, 10, 0)

	if cols, rows := g.Dims(); cols != 11 || rows != 11 {
		t.Fatalf("dims = %dx%d, want 11x11", cols, rows)
	}

	g.Insert(0, 5, 5)   // cell (0,0)
	g.Insert(1, 15, 5)  // cell (1,0)
	g.Insert(2, 25, 25) // cell (2,2)
	g.Insert(3, 95, 95) // cell (9,9)

	tests := []struct {
		name string
		x, y float64
		want []int32
	}{
		{"corner", 5, 5, []int32{0, 1}},
		{"diagonal neighbor", 15, 15, []int32{0, 1, 2}},
		{"far corner", 99, 99, []int32{3}},
		{"clamped outside", -50, -50, []int32{0, 1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := g.Near(nil, tt.x, tt.y)
			if len(got) != len(tt.want) {
				t.Fatalf("Near = %v, want %v", got, tt.want)
			}
			seen := make(map[int32]bool)
			for _, idx := range got {
				seen[idx] = true
			}
			for _, idx := range tt.want {
				if !seen[idx] {
					t.Errorf("Near = %v, missing %d", got, idx)
				}
			}
		})
	}
}

func TestSpatialGrid_GrowsCellsPastLimit(t *testing.T) {
	g := NewSpatialGrid()
	g.Reset(0, 0, 1000, 1000, 1, 100)
	if g.CellSize() < 100 {
		t.Errorf("cell size = %v, want >= 100 to fit 100 cells", g.CellSize())
	}
	cols, rows := g.Dims()
	if cols*rows > 4*100 {
		t.Errorf("grid has %d cells, expected near the limit", cols*rows)
	}

	tests := []struct {
		name                   string
		minX, minY, maxX, maxY float64
	}{
		{"collinear x", 0, 0, 63e6, 0},
		{"collinear y", 0, -5e7, 0, 5e7},
		{"thin strip", -1e9, 0, 1e9, 0.5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			const maxCells = 256
			g.Reset(tt.minX, tt.minY, tt.maxX, tt.maxY, 2, maxCells)
			cols, rows := g.Dims()
			if cols*rows > 3*maxCells+3 {
				t.Errorf("grid is %dx%d = %d cells, want O(%d)", cols, rows, cols*rows, maxCells)
			}
			g.Insert(0, tt.minX, tt.minY)
			g.Insert(1, tt.maxX, tt.maxY)
			if got := g.Near(nil, tt.maxX, tt.maxY); len(got) == 0 {
				t.Error("Near found nothing at an inserted point")
			}
		})
	}
}
