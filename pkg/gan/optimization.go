package gan

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/hed1ad/qanogan/pkg/config"
	"github.com/hed1ad/qanogan/pkg/numgrad"
)

// ErrDiverged indicates a non-finite loss was observed during training. The
// history up to the failing step remains retrievable.
var ErrDiverged = errors.New("training diverged")

// Phase is the state of a training run.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseRunning
	PhaseConverged
	PhaseFailed
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseRunning:
		return "running"
	case PhaseConverged:
		return "converged"
	case PhaseFailed:
		return "failed"
	}
	return "unknown"
}

// WGANOptimization runs the Wasserstein training loop with gradient
// penalty: per outer step, a configured number of critic updates followed
// by exactly one generator update. Execution is single-threaded; one step's
// sampling, forward, gradient, and update phases run strictly in sequence.
type WGANOptimization struct {
	cfg     config.TrainingConfig
	opt     *numgrad.Adam
	history *TrainingHistory
	phase   Phase
}

// NewWGANOptimization creates the loop with its own Adam optimizer built
// from the configured learning rate and beta1.
func NewWGANOptimization(cfg config.TrainingConfig) *WGANOptimization {
	return &WGANOptimization{
		cfg:     cfg,
		opt:     numgrad.NewAdam(cfg.LearningRate, cfg.Beta1),
		history: &TrainingHistory{},
	}
}

// Optimizer exposes the Adam instance, shared later with the
// reconstruction search.
func (o *WGANOptimization) Optimizer() *numgrad.Adam {
	return o.opt
}

// History returns the training history, valid also after a failed run.
func (o *WGANOptimization) History() *TrainingHistory {
	return o.history
}

// Phase returns the current run state.
func (o *WGANOptimization) Phase() Phase {
	return o.phase
}

// Run executes the full training schedule against the cost object. A
// non-finite loss aborts the run with ErrDiverged.
func (o *WGANOptimization) Run(cost *AnoGanCost) error {
	a := cost.Ansatz()
	a.Generator.SetTraining(true)
	a.Discriminator.SetTraining(true)
	o.phase = PhaseRunning

	for step := 1; step <= o.cfg.Steps; step++ {
		var dLoss, penalty float64
		for it := 0; it < o.cfg.DiscriminatorIterations; it++ {
			real, _ := a.TrainingDataSampler(o.cfg.BatchSize)
			genIn := a.LatentSampler(o.cfg.BatchSize)

			var err error
			dLoss, penalty, err = cost.DiscriminatorStep(real, genIn, o.cfg.GPWeight, o.opt)
			if err != nil {
				o.phase = PhaseFailed
				return fmt.Errorf("step %d: %w", step, err)
			}
		}

		gLoss, err := cost.GeneratorStep(a.LatentSampler(o.cfg.BatchSize), o.opt)
		if err != nil {
			o.phase = PhaseFailed
			return fmt.Errorf("step %d: %w", step, err)
		}

		if step%o.cfg.UpdateInterval == 0 || step == o.cfg.Steps {
			rec := StepRecord{
				Step:              step,
				DiscriminatorLoss: dLoss,
				GeneratorLoss:     gLoss,
				GradientPenalty:   penalty,
			}
			o.history.append(rec)
			cost.Report(rec)
		}
	}

	a.Generator.SetTraining(false)
	a.Discriminator.SetTraining(false)
	o.phase = PhaseConverged
	log.Info().
		Str("ansatz", a.Name).
		Int("steps", o.cfg.Steps).
		Int("records", o.history.Len()).
		Msg("training finished")
	return nil
}
