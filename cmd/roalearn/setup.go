package main

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/panos108/lyapunov-learning/internal/config"
	"github.com/panos108/lyapunov-learning/internal/control"
	"github.com/panos108/lyapunov-learning/internal/dynamo"
	"github.com/panos108/lyapunov-learning/internal/gp"
	"github.com/panos108/lyapunov-learning/internal/grid"
	"github.com/panos108/lyapunov-learning/internal/learner"
	"github.com/panos108/lyapunov-learning/internal/lyapunov"
	"github.com/panos108/lyapunov-learning/internal/physics"
	"github.com/panos108/lyapunov-learning/internal/safety"
)

// pipeline wires the full stack for one run: normalized grid, LQR synthesized
// on the prior linearization, Lyapunov arrays from the cost-to-go, composite
// predictor with the prior closed loop as mean, true closed loop as oracle.
type pipeline struct {
	cfg    *config.Config
	grid   *grid.Grid
	v      []float64
	gradV  [][]float64
	lqr    *control.LQR
	p      *mat.SymDense
	norm   *physics.Normalizer
	oracle *physics.ClosedLoop
	pred   *gp.Composite
	seed   []bool
	learn  *learner.Learner
}

func buildPipeline(cfg *config.Config) (*pipeline, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	g, err := grid.New(cfg.Axes())
	if err != nil {
		return nil, err
	}

	norm, err := physics.NewNormalizer(cfg.Plant.Scale)
	if err != nil {
		return nil, err
	}

	priorPlant := physics.NewInvertedPendulum(cfg.Plant.Prior)
	truePlant := physics.NewInvertedPendulum(cfg.Plant.True)

	a, b := priorPlant.LinearizeNormalized(norm)
	dim := g.Dim()
	q := mat.NewSymDense(dim, nil)
	for i, w := range cfg.Control.StateWeights {
		q.SetSym(i, i, w)
	}
	r := mat.NewSymDense(1, []float64{cfg.Control.InputWeight})

	lqr, p, err := control.Synthesize(a, b, q, r)
	if err != nil {
		return nil, fmt.Errorf("synthesizing controller: %w", err)
	}

	lyap, err := lyapunov.NewQuadratic(p)
	if err != nil {
		return nil, err
	}
	v, gradV := lyap.Evaluate(g)

	priorLoop := physics.NewClosedLoop(priorPlant, lqr, norm)
	oracle := physics.NewClosedLoop(truePlant, lqr, norm)

	kernel, err := gp.NewRBF(cfg.GP.Variance, cfg.GP.Lengthscales)
	if err != nil {
		return nil, err
	}
	residual, err := gp.New(kernel, cfg.GP.Noise)
	if err != nil {
		return nil, err
	}

	// Dimension 0 is the integrator chain dz0/dt ~ z1: identical under any
	// parameter set, so it carries no residual. Dimension 1 is the angular
	// acceleration the learner corrects.
	pred, err := gp.NewComposite(
		gp.Dimension{Prior: func(z dynamo.State) float64 {
			return priorLoop.Derive(z, nil, 0)[0]
		}},
		gp.Dimension{
			Prior: func(z dynamo.State) float64 {
				return priorLoop.Derive(z, nil, 0)[1]
			},
			Residual: residual,
		},
	)
	if err != nil {
		return nil, err
	}

	seed := learner.SeedBall(g, cfg.Learn.SeedRadius)

	l := &learner.Learner{
		Grid:      g,
		V:         v,
		GradV:     gradV,
		Predictor: pred,
		Oracle:    oracle,
		Certifier: &safety.Certifier{
			Beta:      cfg.Safety.Beta,
			Threshold: cfg.Threshold(g.Spacing()),
		},
		Seed: seed,
		Eps:  cfg.Safety.Eps,
		Tol:  cfg.Learn.Tol,
	}

	return &pipeline{
		cfg:    cfg,
		grid:   g,
		v:      v,
		gradV:  gradV,
		lqr:    lqr,
		p:      p,
		norm:   norm,
		oracle: oracle,
		pred:   pred,
		seed:   seed,
		learn:  l,
	}, nil
}

// truePredictor builds a zero-variance predictor from the true closed loop,
// for the diagnostic certification of the ideal region of attraction.
func (pl *pipeline) truePredictor() (*gp.Composite, error) {
	return gp.NewComposite(
		gp.Dimension{Prior: func(z dynamo.State) float64 {
			return pl.oracle.Derive(z, nil, 0)[0]
		}},
		gp.Dimension{Prior: func(z dynamo.State) float64 {
			return pl.oracle.Derive(z, nil, 0)[1]
		}},
	)
}

// loadConfig resolves precedence: defaults, then preset, then config file.
func loadConfig(configFile, preset string) (*config.Config, error) {
	cfg := config.DefaultConfig()
	if preset != "" {
		cfg = config.GetPreset(preset)
		if cfg == nil {
			return nil, fmt.Errorf("unknown preset %q (available: %v)", preset, config.ListPresets())
		}
	}
	if configFile != "" {
		loaded, err := config.Load(configFile)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	return cfg, nil
}
