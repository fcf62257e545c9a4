// Package config provides configuration loading and access for the simulation.
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"runtime"

	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// Merge modes.
const (
	MergeInPlace = "in_place" // winner is overwritten with the merged values
	MergeRespawn = "respawn"  // a new particle replaces both parents
)

// Spawn placements.
const (
	PlacementRandom = "random"
	PlacementGrid   = "grid"
)

// Config holds all simulation configuration parameters.
type Config struct {
	Screen    ScreenConfig    `yaml:"screen"`
	Camera    CameraConfig    `yaml:"camera"`
	Physics   PhysicsConfig   `yaml:"physics"`
	Spawner   SpawnerConfig   `yaml:"spawner"`
	Telemetry TelemetryConfig `yaml:"telemetry"`

	// Derived values computed after loading
	Derived DerivedConfig `yaml:"-"`
}

// ScreenConfig holds the viewport size in pixels.
type ScreenConfig struct {
	Width  int `yaml:"width"`
	Height int `yaml:"height"`
}

// CameraConfig places the viewport in the world. World bounds are the
// visible area, as in a screen-bounded simulation.
type CameraConfig struct {
	X    float64 `yaml:"x"`
	Y    float64 `yaml:"y"`
	Zoom float64 `yaml:"zoom"`
}

// PhysicsConfig holds simulation physics parameters.
type PhysicsConfig struct {
	DT            float64 `yaml:"dt"`
	G             float64 `yaml:"g"`
	ForceScale    float64 `yaml:"force_scale"`    // compensates for simulation-unit distances
	Density       float64 `yaml:"density"`        // radius = cbrt(3m / (4*pi*density))
	ExemptOverlap bool    `yaml:"exempt_overlap"` // skip gravity between overlapping pairs
	MergeMode     string  `yaml:"merge_mode"`

	Workers             int     `yaml:"workers"`               // 0 = GOMAXPROCS
	ParallelThreshold   int     `yaml:"parallel_threshold"`    // below this, phases run single-threaded
	BruteForceThreshold int     `yaml:"brute_force_threshold"` // below this, collision skips the grid
	GridCellSize        float64 `yaml:"grid_cell_size"`        // 0 = derive from largest radius
}

// SpawnerConfig holds particle creation parameters.
type SpawnerConfig struct {
	Rate         float64 `yaml:"rate"`    // particles per second
	Initial      int     `yaml:"initial"` // particles placed before the first tick
	Placement    string  `yaml:"placement"`
	MinMass      float64 `yaml:"min_mass"`
	MaxMass      float64 `yaml:"max_mass"`
	MaxSpeed     float64 `yaml:"max_speed"`     // per velocity component
	MaxParticles int     `yaml:"max_particles"` // 0 = unlimited
}

// TelemetryConfig holds telemetry parameters.
type TelemetryConfig struct {
	StatsWindow         float64 `yaml:"stats_window"`
	PerfCollectorWindow int     `yaml:"perf_collector_window"`
}

// DerivedConfig holds computed values derived from the loaded config.
type DerivedConfig struct {
	Workers   int     // Physics.Workers, resolved
	ScreenW64 float64 // Screen.Width as float64
	ScreenH64 float64 // Screen.Height as float64
}

// global holds the loaded configuration.
var global *Config

// Init loads configuration from the given path, or uses embedded defaults if path is empty.
// Must be called before Cfg().
func Init(path string) error {
	cfg, err := Load(path)
	if err != nil {
		return err
	}
	global = cfg
	return nil
}

// Cfg returns the global configuration. Panics if Init was not called.
func Cfg() *Config {
	if global == nil {
		panic("config: Cfg() called before Init()")
	}
	return global
}

// Load loads configuration from a YAML file, merging with embedded defaults.
// If path is empty, only embedded defaults are used.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(defaultsYAML, cfg); err != nil {
		return nil, fmt.Errorf("parsing embedded defaults: %w", err)
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		// Unmarshal into same struct - only overwrites fields present in file
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg.ComputeDerived()

	return cfg, nil
}

// Clone returns a deep copy. Config has no reference fields, so a value
// copy is enough, but callers should not rely on that.
func (c *Config) Clone() *Config {
	cp := *c
	return &cp
}

// Validate checks values that would make the simulation ill-defined.
func (c *Config) Validate() error {
	var errs []error
	if c.Physics.DT <= 0 {
		errs = append(errs, fmt.Errorf("physics.dt must be positive, got %v", c.Physics.DT))
	}
	if c.Physics.Density <= 0 {
		errs = append(errs, fmt.Errorf("physics.density must be positive, got %v", c.Physics.Density))
	}
	if c.Physics.G < 0 || c.Physics.ForceScale < 0 {
		errs = append(errs, errors.New("physics.g and physics.force_scale must not be negative"))
	}
	switch c.Physics.MergeMode {
	case MergeInPlace, MergeRespawn:
	default:
		errs = append(errs, fmt.Errorf("physics.merge_mode %q is not one of %q, %q", c.Physics.MergeMode, MergeInPlace, MergeRespawn))
	}
	switch c.Spawner.Placement {
	case PlacementRandom, PlacementGrid:
	default:
		errs = append(errs, fmt.Errorf("spawner.placement %q is not one of %q, %q", c.Spawner.Placement, PlacementRandom, PlacementGrid))
	}
	if c.Spawner.MinMass <= 0 || c.Spawner.MaxMass < c.Spawner.MinMass {
		errs = append(errs, fmt.Errorf("spawner mass range [%v, %v] is invalid", c.Spawner.MinMass, c.Spawner.MaxMass))
	}
	if c.Camera.Zoom <= 0 {
		errs = append(errs, fmt.Errorf("camera.zoom must be positive, got %v", c.Camera.Zoom))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// ComputeDerived calculates values derived from loaded config.
// Call it again after mutating a loaded config.
func (c *Config) ComputeDerived() {
	c.Derived.Workers = c.Physics.Workers
	if c.Derived.Workers <= 0 {
		c.Derived.Workers = runtime.GOMAXPROCS(0)
	}
	c.Derived.ScreenW64 = float64(c.Screen.Width)
	c.Derived.ScreenH64 = float64(c.Screen.Height)
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}
