package gan

import (
	"math/rand"

	"gonum.org/v1/gonum/mat"

	"github.com/hed1ad/qanogan/pkg/numgrad"
)

// AnoGanModel is the combined network used for the AnoGAN reconstruction
// search. It owns a trainable latent-adjustment layer mapping a constant
// scalar input into latent space; at inference time only this layer is
// optimized to find the best latent match for a query sample. Outputs are
// scaled by 1/discWeight and discWeight to trade reconstruction error
// against discriminator confidence.
type AnoGanModel struct {
	adjust     *numgrad.Network
	gen        Generator
	disc       *numgrad.Network
	discWeight float64

	// assemble builds the backend-specific generator input tuple around
	// the adjusted latent batch; latentIndex names the tuple slot the
	// latent occupies, so Backward can route the gradient back.
	assemble    func(latent *mat.Dense) []*mat.Dense
	latentIndex int

	onesInput *mat.Dense
	latentDim int
}

// NewAnoGanModel assembles the combined model. assemble may be nil for
// single-input generators.
func NewAnoGanModel(gen Generator, disc *numgrad.Network, latentDim int,
	discWeight float64, rng *rand.Rand,
	assemble func(latent *mat.Dense) []*mat.Dense, latentIndex int) *AnoGanModel {

	if assemble == nil {
		assemble = func(latent *mat.Dense) []*mat.Dense {
			return []*mat.Dense{latent}
		}
		latentIndex = 0
	}

	return &AnoGanModel{
		adjust: numgrad.NewNetwork(
			numgrad.NewDense(1, latentDim, rng, numgrad.WithoutBias()),
			numgrad.NewSigmoid(),
		),
		gen:         gen,
		disc:        disc,
		discWeight:  discWeight,
		assemble:    assemble,
		latentIndex: latentIndex,
		onesInput:   mat.NewDense(1, 1, []float64{1}),
		latentDim:   latentDim,
	}
}

// Forward evaluates the combined model on its fixed auxiliary input and
// returns the scaled reconstruction and discriminator score.
func (m *AnoGanModel) Forward() (recon, score *mat.Dense) {
	latent := m.adjust.Forward(m.onesInput)
	out := m.gen.Generate(m.assemble(latent))
	sc := m.disc.Forward(out)

	r, c := out.Dims()
	recon = mat.NewDense(r, c, nil)
	recon.Scale(1.0/m.discWeight, out)
	sr, scCols := sc.Dims()
	score = mat.NewDense(sr, scCols, nil)
	score.Scale(m.discWeight, sc)
	return recon, score
}

// Backward propagates output gradients down to the latent-adjustment layer.
// Generator and discriminator gradients accumulate as a side effect but are
// never stepped during the reconstruction search.
func (m *AnoGanModel) Backward(reconGrad, scoreGrad *mat.Dense) {
	r, c := scoreGrad.Dims()
	scaledScore := mat.NewDense(r, c, nil)
	scaledScore.Scale(m.discWeight, scoreGrad)
	fromScore := m.disc.Backward(scaledScore)

	gr, gc := reconGrad.Dims()
	total := mat.NewDense(gr, gc, nil)
	total.Scale(1.0/m.discWeight, reconGrad)
	total.Add(total, fromScore)

	inGrads := m.gen.Backward(total)
	m.adjust.Backward(inGrads[m.latentIndex])
}

// AdjustParams returns the trainable parameters of the latent-adjustment
// layer.
func (m *AnoGanModel) AdjustParams() []*numgrad.Param {
	return m.adjust.Params()
}

// ResetAdjustment reinitializes the latent-adjustment layer for a fresh
// reconstruction search.
func (m *AnoGanModel) ResetAdjustment(rng *rand.Rand) {
	for _, p := range m.adjust.Params() {
		rows, cols := p.Value.Dims()
		for i := 0; i < rows; i++ {
			for j := 0; j < cols; j++ {
				p.Value.Set(i, j, rng.NormFloat64())
			}
		}
		p.ZeroGrad()
	}
}

// ZeroAdjustGrads clears the adjustment-layer gradients.
func (m *AnoGanModel) ZeroAdjustGrads() {
	for _, p := range m.adjust.Params() {
		p.ZeroGrad()
	}
}

// DiscWeight returns the discriminator-weight tradeoff parameter.
func (m *AnoGanModel) DiscWeight() float64 {
	return m.discWeight
}

// ExportWeights serializes the latent-adjustment layer (the rest of the
// combined model is saved through the generator and discriminator blobs).
func (m *AnoGanModel) ExportWeights() numgrad.Weights {
	return m.adjust.ExportWeights()
}

// ImportWeights restores the latent-adjustment layer.
func (m *AnoGanModel) ImportWeights(w numgrad.Weights) error {
	return m.adjust.ImportWeights(w)
}
