package telemetry

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestOutputManager_Disabled(t *testing.T) {
	om, err := NewOutputManager("")
	if err != nil || om != nil {
		t.Fatalf("empty dir should disable output, got %v, %v", om, err)
	}
	if err := om.WriteTelemetry(WindowStats{}); err != nil {
		t.Errorf("nil manager write: %v", err)
	}
	if err := om.Close(); err != nil {
		t.Errorf("nil manager close: %v", err)
	}
}

func TestOutputManager_WritesHeaderOnce(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "run")
	om, err := NewOutputManager(dir)
	if err != nil {
		t.Fatal(err)
	}

	for i := int64(1); i <= 3; i++ {
		if err := om.WriteTelemetry(WindowStats{WindowEndTick: i * 10, Particles: int(i)}); err != nil {
			t.Fatal(err)
		}
		perf := PerfStats{AvgTickDuration: time.Millisecond, PhasePct: map[string]float64{}}
		if err := om.WritePerf(perf, i*10); err != nil {
			t.Fatal(err)
		}
	}
	if err := om.Close(); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		file   string
		header string
	}{
		{"telemetry.csv", "window_end,sim_time,particles"},
		{"perf.csv", "window_end,avg_tick_us"},
	}
	for _, tt := range tests {
		t.Run(tt.file, func(t *testing.T) {
			data, err := os.ReadFile(filepath.Join(dir, tt.file))
			if err != nil {
				t.Fatal(err)
			}
			lines := strings.Split(strings.TrimSpace(string(data)), "\n")
			if len(lines) != 4 {
				t.Fatalf("got %d lines, want header + 3 rows:\n%s", len(lines), data)
			}
			if !strings.HasPrefix(lines[0], tt.header) {
				t.Errorf("header = %q, want prefix %q", lines[0], tt.header)
			}
			if strings.Count(string(data), "window_end") != 1 {
				t.Error("header written more than once")
			}
		})
	}
}
