package config

import "sort"

// Presets are named starting points for common run shapes; values not set
// here inherit DefaultConfig through GetPreset.
var Presets = map[string]func(*Config){
	"quick": func(c *Config) {
		// Coarse grid, small budget, for smoke runs.
		c.Grid = []AxisConfig{
			{Min: -1, Max: 1.05, Step: 0.1},
			{Min: -1, Max: 1.05, Step: 0.1},
		}
		c.Learn.Budget = 20
	},
	"dense": func(c *Config) {
		// Fine grid and a full budget.
		c.Grid = []AxisConfig{
			{Min: -1, Max: 1.01, Step: 0.02},
			{Min: -1, Max: 1.01, Step: 0.02},
		}
		c.Learn.Budget = 150
	},
	"cautious": func(c *Config) {
		// Wider confidence band and a stiffer decrease requirement.
		c.Safety.Beta = 3.0
		c.Safety.Lipschitz = 10.0
	},
	"optimistic": func(c *Config) {
		// Oracle-style threshold: no discretization slack.
		c.Safety.Lipschitz = 0
	},
}

func GetPreset(name string) *Config {
	apply, ok := Presets[name]
	if !ok {
		return nil
	}
	cfg := DefaultConfig()
	apply(cfg)
	return cfg
}

func ListPresets() []string {
	names := make([]string, 0, len(Presets))
	for name := range Presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
