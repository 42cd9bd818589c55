package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/panos108/lyapunov-learning/internal/grid"
	"github.com/panos108/lyapunov-learning/internal/physics"
)

const (
	DefaultBeta       = 2.0
	DefaultLipschitz  = 5.0
	DefaultEps        = 1e-6
	DefaultBudget     = 100
	DefaultSeedRadius = 0.2
	DefaultNoise      = 1e-4
)

type Config struct {
	Grid    []AxisConfig  `yaml:"grid"`
	Plant   PlantConfig   `yaml:"plant"`
	Control ControlConfig `yaml:"control"`
	GP      GPConfig      `yaml:"gp"`
	Safety  SafetyConfig  `yaml:"safety"`
	Learn   LearnConfig   `yaml:"learn"`
	Sim     SimConfig     `yaml:"sim"`
}

// AxisConfig is one normalized grid dimension: [min, max) sampled at step.
type AxisConfig struct {
	Min  float64 `yaml:"min"`
	Max  float64 `yaml:"max"`
	Step float64 `yaml:"step"`
}

// PlantConfig carries both parameter sets: True is what the oracle samples,
// Prior is what the model starts from. Scale maps normalized to physical
// coordinates, physical = scale * normalized.
type PlantConfig struct {
	True  physics.PendulumParams `yaml:"actual"`
	Prior physics.PendulumParams `yaml:"prior"`
	Scale []float64              `yaml:"scale"`
}

// ControlConfig holds the LQR weights in normalized coordinates.
type ControlConfig struct {
	StateWeights []float64 `yaml:"state_weights"`
	InputWeight  float64   `yaml:"input_weight"`
}

type GPConfig struct {
	Variance     float64   `yaml:"variance"`
	Lengthscales []float64 `yaml:"lengthscales"`
	Noise        float64   `yaml:"noise"`
}

// SafetyConfig: the certification threshold is -Lipschitz*tau with tau the
// grid spacing; the combination formula is an input here, not derived.
type SafetyConfig struct {
	Beta      float64 `yaml:"beta"`
	Lipschitz float64 `yaml:"lipschitz"`
	Eps       float64 `yaml:"eps"`
}

type LearnConfig struct {
	Budget     int     `yaml:"budget"`
	SeedRadius float64 `yaml:"seed_radius"`
	Tol        float64 `yaml:"tol"`
}

type SimConfig struct {
	Integrator string  `yaml:"integrator"`
	Dt         float64 `yaml:"dt"`
	Duration   float64 `yaml:"duration"`
	SettleNorm float64 `yaml:"settle_norm"`
}

func DefaultConfig() *Config {
	return &Config{
		Grid: []AxisConfig{
			{Min: -1, Max: 1.02, Step: 0.04},
			{Min: -1, Max: 1.02, Step: 0.04},
		},
		Plant: PlantConfig{
			True:  physics.DefaultTrueParams(),
			Prior: physics.DefaultPriorParams(),
			Scale: []float64{0.5, 2.0},
		},
		Control: ControlConfig{
			StateWeights: []float64{1.0, 0.5},
			InputWeight:  0.05,
		},
		GP: GPConfig{
			Variance:     0.4,
			Lengthscales: []float64{0.25, 0.25},
			Noise:        DefaultNoise,
		},
		Safety: SafetyConfig{
			Beta:      DefaultBeta,
			Lipschitz: DefaultLipschitz,
			Eps:       DefaultEps,
		},
		Learn: LearnConfig{
			Budget:     DefaultBudget,
			SeedRadius: DefaultSeedRadius,
		},
		Sim: SimConfig{
			Integrator: "rk4",
			Dt:         0.01,
			Duration:   10.0,
			SettleNorm: 0.05,
		},
	}
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

func (c *Config) Validate() error {
	if len(c.Grid) == 0 {
		return fmt.Errorf("config: at least one grid axis required")
	}
	dim := len(c.Grid)
	for i, a := range c.Grid {
		if a.Step <= 0 {
			return fmt.Errorf("config: grid axis %d step must be positive", i)
		}
		if a.Min >= a.Max {
			return fmt.Errorf("config: grid axis %d min must be below max", i)
		}
	}
	if err := c.Plant.True.Validate(); err != nil {
		return fmt.Errorf("config: true plant: %w", err)
	}
	if err := c.Plant.Prior.Validate(); err != nil {
		return fmt.Errorf("config: prior plant: %w", err)
	}
	if len(c.Plant.Scale) != dim {
		return fmt.Errorf("config: %d scale entries for %d grid axes", len(c.Plant.Scale), dim)
	}
	if len(c.Control.StateWeights) != dim {
		return fmt.Errorf("config: %d state weights for %d grid axes", len(c.Control.StateWeights), dim)
	}
	if len(c.GP.Lengthscales) != dim {
		return fmt.Errorf("config: %d lengthscales for %d grid axes", len(c.GP.Lengthscales), dim)
	}
	if c.Control.InputWeight <= 0 {
		return fmt.Errorf("config: input weight must be positive")
	}
	if c.GP.Variance <= 0 || c.GP.Noise <= 0 {
		return fmt.Errorf("config: gp variance and noise must be positive")
	}
	if c.Safety.Beta <= 0 {
		return fmt.Errorf("config: beta must be positive")
	}
	if c.Safety.Lipschitz < 0 {
		return fmt.Errorf("config: lipschitz constant must be nonnegative")
	}
	if c.Safety.Eps <= 0 {
		return fmt.Errorf("config: levelset tolerance must be positive")
	}
	if c.Learn.Budget <= 0 {
		return fmt.Errorf("config: iteration budget must be positive")
	}
	if c.Learn.SeedRadius <= 0 {
		return fmt.Errorf("config: seed radius must be positive")
	}
	return nil
}

// Axes converts the grid section into grid.Axis values.
func (c *Config) Axes() []grid.Axis {
	axes := make([]grid.Axis, len(c.Grid))
	for i, a := range c.Grid {
		axes[i] = grid.Axis{Min: a.Min, Max: a.Max, Step: a.Step}
	}
	return axes
}

// Threshold returns the certification threshold -L*tau for grid spacing tau.
func (c *Config) Threshold(tau float64) float64 {
	return -c.Safety.Lipschitz * tau
}
