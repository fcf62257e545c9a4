package camera

import (
	"math"
	"testing"
)

func TestNew(t *testing.T) {
	cam := New(1280, 720, 0, 0, 0)

	if cam.X != 0 || cam.Y != 0 {
		t.Errorf("expected camera at origin, got (%f, %f)", cam.X, cam.Y)
	}
	if cam.Zoom != 1.0 {
		t.Errorf("expected zoom 1.0 for non-positive input, got %f", cam.Zoom)
	}
}

func TestScreenToWorld(t *testing.T) {
	cam := New(1280, 720, 30, 40, 2.5)

	testCases := []struct {
		name           string
		sx, sy, wx, wy float64
	}{
		{"center", 640, 360, 30, 40},
		{"top left", 0, 0, 30 - 256, 40 - 144},
		{"bottom right", 1280, 720, 30 + 256, 40 + 144},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			wx, wy := cam.ScreenToWorld(tc.sx, tc.sy)
			if math.Abs(wx-tc.wx) > 1e-9 || math.Abs(wy-tc.wy) > 1e-9 {
				t.Errorf("ScreenToWorld(%v, %v) = (%v, %v), want (%v, %v)", tc.sx, tc.sy, wx, wy, tc.wx, tc.wy)
			}
		})
	}
}

func TestBounds(t *testing.T) {
	tests := []struct {
		name                   string
		x, y, zoom             float64
		minX, minY, maxX, maxY float64
	}{
		{"origin 1:1", 0, 0, 1, -640, -360, 640, 360},
		{"zoomed in", 0, 0, 2, -320, -180, 320, 180},
		{"zoomed out", 100, 50, 0.5, -1180, -670, 1380, 770},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := New(1280, 720, tt.x, tt.y, tt.zoom).Bounds()
			got := []float64{b.Min.X, b.Min.Y, b.Max.X, b.Max.Y}
			want := []float64{tt.minX, tt.minY, tt.maxX, tt.maxY}
			for i := range got {
				if math.Abs(got[i]-want[i]) > 1e-9 {
					t.Errorf("bounds = %+v, want min (%v,%v) max (%v,%v)", b, tt.minX, tt.minY, tt.maxX, tt.maxY)
					break
				}
			}
		})
	}
}

func TestZoomClamp(t *testing.T) {
	if cam := New(1280, 720, 0, 0, 0.001); cam.Zoom != MinZoom {
		t.Errorf("expected zoom clamped to %f, got %f", MinZoom, cam.Zoom)
	}
	if cam := New(1280, 720, 0, 0, 100); cam.Zoom != MaxZoom {
		t.Errorf("expected zoom clamped to %f, got %f", MaxZoom, cam.Zoom)
	}
}
