package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/guptarohit/asciigraph"

	"github.com/pthm-cable/accrete/camera"
	"github.com/pthm-cable/accrete/config"
	"github.com/pthm-cable/accrete/sim"
	"github.com/pthm-cable/accrete/spawner"
	"github.com/pthm-cable/accrete/telemetry"
)

func main() {
	configPath := flag.String("config", "", "Path to config.yaml (empty = use defaults)")
	logStats := flag.Bool("log-stats", false, "Output stats via slog")
	statsWindow := flag.Float64("stats-window", 0, "Stats window size in sim seconds (0 = use config)")
	outputDir := flag.String("output-dir", "", "Output directory for CSV logs and config snapshot")
	seed := flag.Int64("seed", 0, "RNG seed (0 = time-based)")
	maxTicks := flag.Int64("max-ticks", 0, "Stop after N ticks (0 = until interrupted)")
	plot := flag.Bool("plot", false, "Print particle count and accretion charts on exit")

	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	if err := config.Init(*configPath); err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	cfg := config.Cfg()
	if *statsWindow > 0 {
		cfg.Telemetry.StatsWindow = *statsWindow
	}

	rngSeed := *seed
	if rngSeed == 0 {
		rngSeed = time.Now().UnixNano()
	}

	var history []telemetry.WindowStats
	s, err := sim.New(sim.Options{
		Config:    cfg,
		LogStats:  *logStats,
		OutputDir: *outputDir,
		StatsCallback: func(st telemetry.WindowStats) {
			history = append(history, st)
		},
	})
	if err != nil {
		slog.Error("failed to create simulation", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	err = run(ctx, s, cfg, rngSeed, *maxTicks)
	if cerr := s.Close(); cerr != nil {
		slog.Error("failed to close output", "error", cerr)
	}
	if err != nil {
		slog.Error("simulation failed", "error", err)
		os.Exit(1)
	}

	c := s.Counters()
	slog.Info("simulation finished",
		"ticks", c.Ticks,
		"sim_time", s.SimTime(),
		"particles", s.ParticleCount(),
		"total_mass", s.TotalMass(),
		"spawns", c.Spawns,
		"merges", c.Merges,
		"aborts", c.Aborts,
		"perf", s.PerfStats(),
	)

	if *plot {
		printCharts(history)
	}
}

// run populates the simulation and advances it until maxTicks or ctx is
// done. Aborted collision phases are logged by the simulation and retried
// on the next tick.
func run(ctx context.Context, s *sim.Simulation, cfg *config.Config, seed int64, maxTicks int64) error {
	cam := camera.New(cfg.Derived.ScreenW64, cfg.Derived.ScreenH64, cfg.Camera.X, cfg.Camera.Y, cfg.Camera.Zoom)
	sp := spawner.New(cfg.Spawner, seed)
	dt := cfg.Physics.DT

	n, err := sp.Populate(s, cam.Bounds())
	if err != nil {
		return fmt.Errorf("populating: %w", err)
	}
	slog.Info("starting headless simulation",
		"seed", seed,
		"initial", n,
		"max_ticks", maxTicks,
		"merge_mode", cfg.Physics.MergeMode,
		"workers", cfg.Derived.Workers,
	)

	for maxTicks <= 0 || s.Tick() < maxTicks {
		select {
		case <-ctx.Done():
			slog.Info("interrupted", "tick", s.Tick())
			return nil
		default:
		}

		bounds := cam.Bounds()
		if _, err := sp.Update(s, bounds, dt); err != nil {
			return fmt.Errorf("spawning: %w", err)
		}
		if err := s.AdvanceTick(dt, bounds); err != nil && errors.Is(err, sim.ErrInvalidStep) {
			return err
		}
	}
	slog.Info("max ticks reached", "tick", s.Tick())
	return nil
}

func printCharts(history []telemetry.WindowStats) {
	if len(history) < 2 {
		fmt.Println("not enough stats windows to plot")
		return
	}
	counts := make([]float64, len(history))
	accretion := make([]float64, len(history))
	for i, st := range history {
		counts[i] = float64(st.Particles)
		accretion[i] = st.Accretion
	}

	fmt.Println(asciigraph.Plot(counts,
		asciigraph.Height(12),
		asciigraph.Width(72),
		asciigraph.Caption("particles per stats window"),
	))
	fmt.Println()
	fmt.Println(asciigraph.Plot(accretion,
		asciigraph.Height(8),
		asciigraph.Width(72),
		asciigraph.Caption("largest particle share of total mass"),
	))
}
