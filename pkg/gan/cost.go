package gan

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/rs/zerolog/log"

	"gonum.org/v1/gonum/mat"

	"github.com/hed1ad/qanogan/pkg/numgrad"
)

// calibrationSamples is the labeled held-out batch size used for the
// threshold search.
const calibrationSamples = 100

// thresholdCandidates is the number of evenly spaced candidate thresholds
// evaluated across the observed score range.
const thresholdCandidates = 101

// AnoGanCost computes the WGAN training losses and, after training,
// calibrates the anomaly threshold on held-out labeled samples.
type AnoGanCost struct {
	ansatz *Ansatz
	rng    *rand.Rand
}

// NewAnoGanCost validates the ansatz and wraps it in a cost object.
func NewAnoGanCost(a *Ansatz, rng *rand.Rand) (*AnoGanCost, error) {
	if err := a.Validate(); err != nil {
		return nil, err
	}
	return &AnoGanCost{ansatz: a, rng: rng}, nil
}

// Ansatz returns the wrapped bundle.
func (c *AnoGanCost) Ansatz() *Ansatz {
	return c.ansatz
}

// DiscriminatorStep performs one critic update: Wasserstein loss of real
// versus generated batches plus the weighted gradient penalty, followed by
// one optimizer step on the critic parameters only.
func (c *AnoGanCost) DiscriminatorStep(real *mat.Dense, genIn []*mat.Dense,
	gpWeight float64, opt *numgrad.Adam) (dLoss, penalty float64, err error) {

	gen := c.ansatz.Generator
	disc := c.ansatz.Discriminator

	fake := gen.Generate(genIn)
	batch, _ := real.Dims()
	n := float64(batch)

	disc.ZeroGrads()

	// mean critic score on generated samples
	fakeScores := disc.Forward(fake)
	dLoss += mat.Sum(fakeScores) / n
	disc.Backward(constant(batch, 1, 1/n))

	// minus mean critic score on real samples
	realScores := disc.Forward(real)
	dLoss -= mat.Sum(realScores) / n
	disc.Backward(constant(batch, 1, -1/n))

	// gradient penalty on per-sample interpolates
	interp := c.interpolate(real, fake)
	seed := constant(batch, 1, 1)
	grad, gerr := disc.InputGradient(interp, seed)
	if gerr != nil {
		return 0, 0, gerr
	}

	_, features := grad.Dims()
	u := mat.NewDense(batch, features, nil)
	for i := 0; i < batch; i++ {
		var norm float64
		for j := 0; j < features; j++ {
			norm += grad.At(i, j) * grad.At(i, j)
		}
		norm = math.Sqrt(norm)
		penalty += (norm - 1) * (norm - 1) / n
		if norm > 0 {
			for j := 0; j < features; j++ {
				u.Set(i, j, 2*(norm-1)*grad.At(i, j)/norm)
			}
		}
	}
	if err := disc.PenaltyBackward(u, seed, gpWeight/n); err != nil {
		return 0, 0, err
	}
	dLoss += gpWeight * penalty

	if !isFinite(dLoss) {
		return dLoss, penalty, fmt.Errorf("%w: discriminator loss %f", ErrDiverged, dLoss)
	}

	opt.Step(disc.Params())
	return dLoss, penalty, nil
}

// GeneratorStep performs one generator update: negative mean critic score
// on a fresh generated batch, then one optimizer step on the generator
// parameters only.
func (c *AnoGanCost) GeneratorStep(genIn []*mat.Dense, opt *numgrad.Adam) (float64, error) {
	gen := c.ansatz.Generator
	disc := c.ansatz.Discriminator

	fake := gen.Generate(genIn)
	batch, _ := fake.Dims()
	n := float64(batch)

	scores := disc.Forward(fake)
	gLoss := -mat.Sum(scores) / n
	if !isFinite(gLoss) {
		return gLoss, fmt.Errorf("%w: generator loss %f", ErrDiverged, gLoss)
	}

	for _, p := range gen.Params() {
		p.ZeroGrad()
	}
	inputGrad := disc.Backward(constant(batch, 1, -1/n))
	gen.Backward(inputGrad)

	opt.Step(gen.Params())
	return gLoss, nil
}

// Report logs a recorded training step.
func (c *AnoGanCost) Report(rec StepRecord) {
	log.Info().
		Str("ansatz", c.ansatz.Name).
		Int("step", rec.Step).
		Float64("discriminatorLoss", rec.DiscriminatorLoss).
		Float64("generatorLoss", rec.GeneratorLoss).
		Float64("gradientPenalty", rec.GradientPenalty).
		Msg("training update")
}

// BuildAnoGan wraps the trained ansatz into an AnoWGan, scores labeled
// held-out samples, and selects the threshold maximizing the Matthews
// correlation coefficient over evenly spaced candidates in the observed
// score range.
func (c *AnoGanCost) BuildAnoGan(opt *numgrad.Adam) (*ThresholdWrapper, error) {
	wgan := NewAnoWGan(c.ansatz)

	samples, labels := c.ansatz.GetTestSample(calibrationSamples)
	scores, err := wgan.Scores(samples)
	if err != nil {
		return nil, err
	}

	threshold, mcc := OptimalThreshold(scores, labels)
	log.Info().
		Str("ansatz", c.ansatz.Name).
		Float64("threshold", threshold).
		Float64("mcc", mcc).
		Msg("anomaly threshold calibrated")

	wrapper := NewThresholdWrapper(wgan)
	wrapper.SetThreshold(threshold)
	return wrapper, nil
}

// interpolate mixes each real row with the corresponding fake row at a
// uniform random coefficient.
func (c *AnoGanCost) interpolate(real, fake *mat.Dense) *mat.Dense {
	rows, cols := real.Dims()
	out := mat.NewDense(rows, cols, nil)
	for i := 0; i < rows; i++ {
		eps := c.rng.Float64()
		for j := 0; j < cols; j++ {
			out.Set(i, j, eps*real.At(i, j)+(1-eps)*fake.At(i, j))
		}
	}
	return out
}

func constant(rows, cols int, v float64) *mat.Dense {
	m := mat.NewDense(rows, cols, nil)
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			m.Set(i, j, v)
		}
	}
	return m
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
