package sim

import (
	"log/slog"

	"github.com/pthm-cable/accrete/telemetry"
)

// flushTelemetry closes the stats window once it has covered its duration.
// Called with s.mu held.
func (s *Simulation) flushTelemetry() {
	if !s.collector.ShouldFlush(s.simTime) {
		return
	}
	s.perf.StartPhase(telemetry.PhaseTelemetry)

	s.frame = s.store.Snapshot(s.frame[:0], nil)
	stats := s.collector.Flush(s.tick, s.simTime, s.frame)
	perfStats := s.perf.Stats()

	if s.statsCallback != nil {
		s.statsCallback(stats)
	}

	if s.logStats {
		stats.LogStats()
		perfStats.LogStats()
	}

	if s.output != nil {
		if err := s.output.WriteTelemetry(stats); err != nil {
			slog.Error("failed to write telemetry", "error", err)
		}
		if err := s.output.WritePerf(perfStats, stats.WindowEndTick); err != nil {
			slog.Error("failed to write perf", "error", err)
		}
	}
}
