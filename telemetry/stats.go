package telemetry

import (
	"log/slog"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// WindowStats holds aggregated statistics for one telemetry window.
type WindowStats struct {
	WindowStartTick int64   `csv:"-"`
	WindowEndTick   int64   `csv:"window_end"`
	SimTimeSec      float64 `csv:"sim_time"`

	// Population at window end
	Particles  int     `csv:"particles"`
	Attractors int     `csv:"attractors"` // unbounded, gravity only
	TotalMass  float64 `csv:"total_mass"`

	// Events during window
	Merges int `csv:"merges"`
	Spawns int `csv:"spawns"`
	Aborts int `csv:"aborts"`

	// Mass distribution (sampled at window end)
	MassMean float64 `csv:"mass_mean"`
	MassStd  float64 `csv:"mass_std"`
	MassP10  float64 `csv:"mass_p10"`
	MassP50  float64 `csv:"mass_p50"`
	MassP90  float64 `csv:"mass_p90"`
	MassMax  float64 `csv:"mass_max"`

	// Share of total mass held by the largest particle.
	Accretion float64 `csv:"accretion"`

	MaxRadius     float64 `csv:"max_radius"`
	KineticEnergy float64 `csv:"kinetic_energy"`
}

// Percentile calculates the p-th percentile of a sorted slice.
// p should be in [0, 1]. Returns 0 if slice is empty.
func Percentile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if p <= 0 {
		return sorted[0]
	}
	if p >= 1 {
		return sorted[n-1]
	}

	idx := p * float64(n-1)
	lo := int(idx)
	hi := lo + 1
	if hi >= n {
		return sorted[n-1]
	}

	frac := idx - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}

// ComputeMassStats returns the mean, sample standard deviation and the
// 10th, 50th and 90th percentiles of values. values is not modified.
func ComputeMassStats(values []float64) (mean, std, p10, p50, p90 float64) {
	n := len(values)
	if n == 0 {
		return 0, 0, 0, 0, 0
	}
	if n == 1 {
		v := values[0]
		return v, 0, v, v, v
	}

	mean, std = stat.MeanStdDev(values, nil)

	sorted := make([]float64, n)
	copy(sorted, values)
	sort.Float64s(sorted)

	p10 = Percentile(sorted, 0.10)
	p50 = Percentile(sorted, 0.50)
	p90 = Percentile(sorted, 0.90)
	return mean, std, p10, p50, p90
}

// LogValue implements slog.LogValuer for structured logging.
func (s WindowStats) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int64("window_start", s.WindowStartTick),
		slog.Int64("window_end", s.WindowEndTick),
		slog.Float64("sim_time", s.SimTimeSec),
		slog.Int("particles", s.Particles),
		slog.Int("attractors", s.Attractors),
		slog.Float64("total_mass", s.TotalMass),
		slog.Int("merges", s.Merges),
		slog.Int("spawns", s.Spawns),
		slog.Int("aborts", s.Aborts),
		slog.Float64("mass_mean", s.MassMean),
		slog.Float64("mass_std", s.MassStd),
		slog.Float64("mass_p10", s.MassP10),
		slog.Float64("mass_p50", s.MassP50),
		slog.Float64("mass_p90", s.MassP90),
		slog.Float64("mass_max", s.MassMax),
		slog.Float64("accretion", s.Accretion),
		slog.Float64("max_radius", s.MaxRadius),
		slog.Float64("kinetic_energy", s.KineticEnergy),
	)
}

// LogStats logs the window stats using slog.
func (s WindowStats) LogStats() {
	slog.Info("stats",
		"window_end", s.WindowEndTick,
		"sim_time", s.SimTimeSec,
		"particles", s.Particles,
		"total_mass", s.TotalMass,
		"merges", s.Merges,
		"spawns", s.Spawns,
		"aborts", s.Aborts,
		"mass_mean", s.MassMean,
		"mass_p50", s.MassP50,
		"mass_max", s.MassMax,
		"accretion", s.Accretion,
		"kinetic_energy", s.KineticEnergy,
	)
}
