// Package main runs CMA-ES over the gravity force scale and particle
// density, searching for settings where a populated world accretes to a
// target fraction of its mass within a fixed number of ticks. The search
// runs once with the gravity overlap exemption and once without.
package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/gocarina/gocsv"
	"gonum.org/v1/gonum/optimize"

	"github.com/pthm-cable/accrete/config"
)

// EvalRecord is one row of calibrate_log.csv.
type EvalRecord struct {
	Exempt          bool    `csv:"exempt_overlap"`
	Eval            int     `csv:"eval"`
	Fitness         float64 `csv:"fitness"`
	Accretion       float64 `csv:"accretion"`
	Log10ForceScale float64 `csv:"log10_force_scale"`
	Density         float64 `csv:"density"`
}

// evalLog appends EvalRecords to a CSV file, writing the header once.
type evalLog struct {
	w             io.Writer
	headerWritten bool
}

func (l *evalLog) Append(rec EvalRecord) error {
	records := []EvalRecord{rec}
	if !l.headerWritten {
		l.headerWritten = true
		return gocsv.Marshal(records, l.w)
	}
	return gocsv.MarshalWithoutHeaders(records, l.w)
}

// formatDuration formats a duration as HH:MM:SS or MM:SS for shorter durations.
func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	s := d / time.Second

	if h > 0 {
		return fmt.Sprintf("%dh%02dm%02ds", h, m, s)
	}
	return fmt.Sprintf("%dm%02ds", m, s)
}

// searchResult is the best point found by one search.
type searchResult struct {
	exempt  bool
	fitness float64
	params  []float64
}

func main() {
	configPath := flag.String("config", "", "Base config YAML file (empty = use defaults)")
	maxTicks := flag.Int64("max-ticks", 1500, "Ticks per simulation run")
	seeds := flag.Int("seeds", 3, "Number of seeds per evaluation")
	maxEvals := flag.Int("max-evals", 60, "Maximum number of evaluations per search")
	population := flag.Int("population", 0, "CMA-ES population size (0 = auto)")
	target := flag.Float64("target", 0.5, "Target share of total mass held by the largest particle")
	outputDir := flag.String("output", "", "Output directory for results")
	flag.Parse()

	if *outputDir == "" {
		log.Fatal("--output is required")
	}
	if *target <= 0 || *target > 1 {
		log.Fatalf("--target must be in (0, 1], got %v", *target)
	}
	if err := os.MkdirAll(*outputDir, 0755); err != nil {
		log.Fatalf("failed to create output directory: %v", err)
	}

	if err := config.Init(*configPath); err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	baseCfg := config.Cfg()

	params := NewParamVector()

	evalSeeds := make([]int64, *seeds)
	for i := range evalSeeds {
		evalSeeds[i] = int64(i*1000 + 42)
	}

	popSize := *population
	if popSize == 0 {
		// 4 + floor(3*ln(n))
		popSize = 4 + int(3*math.Log(float64(params.Dim())))
	}

	logPath := filepath.Join(*outputDir, "calibrate_log.csv")
	logFile, err := os.Create(logPath)
	if err != nil {
		log.Fatalf("failed to create log file: %v", err)
	}
	defer logFile.Close()
	evals := &evalLog{w: logFile}

	fmt.Printf("Calibrating %d parameters, population=%d, max_evals=%d, target accretion=%.2f\n",
		params.Dim(), popSize, *maxEvals, *target)
	fmt.Printf("Seeds per evaluation: %d, ticks per run: %d\n", *seeds, *maxTicks)

	var results []searchResult
	for _, exempt := range []bool{true, false} {
		evaluator := NewFitnessEvaluator(params, *maxTicks, evalSeeds, baseCfg, exempt, *target)
		res := search(params, evaluator, evals, exempt, popSize, *maxEvals)
		results = append(results, res)

		name := "best_config_exempt.yaml"
		if !exempt {
			name = "best_config_no_exempt.yaml"
		}
		writeConfig(*configPath, params, res, filepath.Join(*outputDir, name))
	}

	best := results[0]
	for _, r := range results[1:] {
		if r.fitness < best.fitness {
			best = r
		}
	}
	fmt.Printf("\nBest overall: exempt_overlap=%v fitness=%.6f\n", best.exempt, best.fitness)
	writeConfig(*configPath, params, best, filepath.Join(*outputDir, "best_config.yaml"))
}

// search runs one CMA-ES minimization and returns the best evaluation seen.
func search(params *ParamVector, evaluator *FitnessEvaluator, evals *evalLog, exempt bool, popSize, maxEvals int) searchResult {
	fmt.Printf("\n== exempt_overlap=%v ==\n", exempt)

	best := searchResult{exempt: exempt, fitness: math.Inf(1)}
	evalCount := 0
	startTime := time.Now()

	problem := optimize.Problem{
		Func: func(x []float64) float64 {
			clamped := params.Clamp(params.Denormalize(x))
			fitness := evaluator.Evaluate(clamped)
			accretion := evaluator.LastAccretion()
			evalCount++

			if fitness < best.fitness {
				best.fitness = fitness
				best.params = clamped
			}

			if err := evals.Append(EvalRecord{
				Exempt:          exempt,
				Eval:            evalCount,
				Fitness:         fitness,
				Accretion:       accretion,
				Log10ForceScale: clamped[0],
				Density:         clamped[1],
			}); err != nil {
				log.Printf("failed to write eval log: %v", err)
			}

			elapsed := time.Since(startTime)
			avgPerEval := elapsed / time.Duration(evalCount)
			remaining := time.Duration(maxEvals-evalCount) * avgPerEval
			fmt.Printf("Eval %d/%d: accretion=%.3f fitness=%.6f (best=%.6f) | elapsed: %s, ETA: %s\n",
				evalCount, maxEvals, accretion, fitness, best.fitness,
				formatDuration(elapsed), formatDuration(remaining))

			return fitness
		},
	}

	settings := &optimize.Settings{
		FuncEvaluations: maxEvals,
		Concurrent:      0,
	}
	method := &optimize.CmaEsChol{
		InitStepSize: 0.3,
		Population:   popSize,
	}

	initX := params.Normalize(params.DefaultVector())
	result, err := optimize.Minimize(problem, initX, settings, method)
	if err != nil {
		log.Printf("optimization ended: %v", err)
	}
	if best.params == nil && result != nil {
		best.params = params.Clamp(params.Denormalize(result.X))
	}

	fmt.Printf("Search complete after %d evaluations in %s, best fitness %.6f\n",
		evalCount, formatDuration(time.Since(startTime)), best.fitness)
	if best.params != nil {
		for i, spec := range params.Specs {
			fmt.Printf("  %s: %.6f\n", spec.Name, best.params[i])
		}
	}
	return best
}

// writeConfig saves the base config with res applied.
func writeConfig(configPath string, params *ParamVector, res searchResult, path string) {
	if res.params == nil {
		return
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Printf("failed to reload config: %v", err)
		return
	}
	params.ApplyToConfig(cfg, res.params)
	cfg.Physics.ExemptOverlap = res.exempt

	if err := cfg.WriteYAML(path); err != nil {
		log.Printf("failed to write config: %v", err)
		return
	}
	fmt.Printf("Config saved to: %s\n", path)
}
