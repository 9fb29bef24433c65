package classifiers

import (
	"context"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/hed1ad/qanogan/pkg/numgrad"
	"github.com/hed1ad/qanogan/pkg/qcircuit"
)

// networkGenerator adapts a plain dense network to the single-input
// generator contract.
type networkGenerator struct {
	net *numgrad.Network
}

func (g *networkGenerator) Generate(inputs []*mat.Dense) *mat.Dense {
	return g.net.Forward(inputs[0])
}

func (g *networkGenerator) Backward(grad *mat.Dense) []*mat.Dense {
	return []*mat.Dense{g.net.Backward(grad)}
}

func (g *networkGenerator) Params() []*numgrad.Param       { return g.net.Params() }
func (g *networkGenerator) SetTraining(training bool)      { g.net.SetTraining(training) }
func (g *networkGenerator) ExportWeights() numgrad.Weights { return g.net.ExportWeights() }
func (g *networkGenerator) ImportWeights(w numgrad.Weights) error {
	return g.net.ImportWeights(w)
}

// pqcGenerator evaluates a statically compiled circuit. The circuit itself
// is stateless; its control angles come from a trainable one-input dense
// layer seeded with identity-block parameters, and a dense sigmoid head
// maps the qubit expectations to feature space. Inputs are the tuple
// [placeholder, latent, ones]; the placeholder mirrors the empty input
// state and carries no data.
type pqcGenerator struct {
	circuit *qcircuit.CompiledCircuit
	weights *numgrad.Network
	post    *numgrad.Network

	lastAngles [][]float64
}

func (g *pqcGenerator) Generate(inputs []*mat.Dense) *mat.Dense {
	latent, ones := inputs[1], inputs[2]
	batch, latentDim := latent.Dims()

	controls := g.weights.Forward(ones)
	_, numControls := controls.Dims()

	readouts := len(g.circuit.ReadOut())
	expect := mat.NewDense(batch, readouts, nil)
	g.lastAngles = make([][]float64, batch)
	for i := 0; i < batch; i++ {
		angles := make([]float64, latentDim+numControls)
		for j := 0; j < latentDim; j++ {
			angles[j] = latent.At(i, j)
		}
		for j := 0; j < numControls; j++ {
			angles[latentDim+j] = controls.At(i, j)
		}
		g.lastAngles[i] = angles

		for q, e := range g.circuit.Evaluate(angles) {
			expect.Set(i, q, e)
		}
	}

	return g.post.Forward(expect)
}

func (g *pqcGenerator) Backward(grad *mat.Dense) []*mat.Dense {
	expectGrad := g.post.Backward(grad)

	batch := len(g.lastAngles)
	numInputs := g.circuit.InputParams()
	numControls := g.circuit.ControlParams()
	readouts := len(g.circuit.ReadOut())

	latentGrad := mat.NewDense(batch, numInputs, nil)
	controlGrad := mat.NewDense(batch, numControls, nil)
	upstream := make([]float64, readouts)
	for i := 0; i < batch; i++ {
		for q := 0; q < readouts; q++ {
			upstream[q] = expectGrad.At(i, q)
		}
		full := g.circuit.Gradients(g.lastAngles[i], upstream)
		for j := 0; j < numInputs; j++ {
			latentGrad.Set(i, j, full[j])
		}
		for j := 0; j < numControls; j++ {
			controlGrad.Set(i, j, full[numInputs+j])
		}
	}

	onesGrad := g.weights.Backward(controlGrad)
	return []*mat.Dense{mat.NewDense(batch, 1, nil), latentGrad, onesGrad}
}

func (g *pqcGenerator) Params() []*numgrad.Param {
	return append(g.weights.Params(), g.post.Params()...)
}

func (g *pqcGenerator) SetTraining(training bool) {
	g.weights.SetTraining(training)
	g.post.SetTraining(training)
}

func (g *pqcGenerator) ExportWeights() numgrad.Weights {
	return append(g.weights.ExportWeights(), g.post.ExportWeights()...)
}

func (g *pqcGenerator) ImportWeights(w numgrad.Weights) error {
	n := len(g.weights.Params())
	if err := g.weights.ImportWeights(w[:min(n, len(w))]); err != nil {
		return err
	}
	return g.post.ImportWeights(w[min(n, len(w)):])
}

// qnodeGenerator evaluates the circuit per call through a Device: the
// circuit weights are a directly trainable parameter vector, gradients
// come from parameter-shift evaluations on the same device, and a dense
// sigmoid head maps expectations to feature space. The single input of the
// tuple is the latent batch.
type qnodeGenerator struct {
	circuit *qcircuit.IdentityCircuit
	device  qcircuit.Device
	weights *numgrad.Param
	post    *numgrad.Network
	ctx     context.Context

	lastLatent *mat.Dense
	err        error
}

// weightShift is the parameter-shift offset for control angles;
// inputShift is the offset in input space for the RY(pi*x) encoding.
const (
	weightShift = math.Pi / 2
	inputShift  = 0.5
)

func (g *qnodeGenerator) execute(inputs, weights []float64) []float64 {
	out, err := g.device.Execute(g.ctx, qcircuit.Job{
		NumQubits: g.circuit.NumQubits(),
		Cycles:    g.circuit.Cycles(),
		Bases:     g.circuit.Bases(),
		Inputs:    inputs,
		Weights:   weights,
	})
	if err != nil {
		if g.err == nil {
			g.err = err
		}
		out = make([]float64, g.circuit.NumQubits())
		for i := range out {
			out[i] = math.NaN()
		}
	}
	return out
}

func (g *qnodeGenerator) weightVector() []float64 {
	_, n := g.weights.Value.Dims()
	w := make([]float64, n)
	for i := range w {
		w[i] = g.weights.Value.At(0, i)
	}
	return w
}

func (g *qnodeGenerator) Generate(inputs []*mat.Dense) *mat.Dense {
	latent := inputs[0]
	batch, latentDim := latent.Dims()
	g.lastLatent = latent

	weights := g.weightVector()
	expect := mat.NewDense(batch, g.circuit.NumQubits(), nil)
	row := make([]float64, latentDim)
	for i := 0; i < batch; i++ {
		for j := 0; j < latentDim; j++ {
			row[j] = latent.At(i, j)
		}
		for q, e := range g.execute(row, weights) {
			expect.Set(i, q, e)
		}
	}

	return g.post.Forward(expect)
}

func (g *qnodeGenerator) Backward(grad *mat.Dense) []*mat.Dense {
	expectGrad := g.post.Backward(grad)

	batch, latentDim := g.lastLatent.Dims()
	weights := g.weightVector()
	numVars := len(weights)
	latentGrad := mat.NewDense(batch, latentDim, nil)

	inputs := make([]float64, latentDim)
	for i := 0; i < batch; i++ {
		for j := 0; j < latentDim; j++ {
			inputs[j] = g.lastLatent.At(i, j)
		}

		// parameter-shift rule on the control angles
		for k := 0; k < numVars; k++ {
			orig := weights[k]
			weights[k] = orig + weightShift
			plus := g.execute(inputs, weights)
			weights[k] = orig - weightShift
			minus := g.execute(inputs, weights)
			weights[k] = orig

			var acc float64
			for q := range plus {
				acc += expectGrad.At(i, q) * (plus[q] - minus[q]) / 2
			}
			g.weights.Grad.Set(0, k, g.weights.Grad.At(0, k)+acc)
		}

		// the RY(pi*x) encoding shifts by 0.5 in input space
		for j := 0; j < latentDim; j++ {
			orig := inputs[j]
			inputs[j] = orig + inputShift
			plus := g.execute(inputs, weights)
			inputs[j] = orig - inputShift
			minus := g.execute(inputs, weights)
			inputs[j] = orig

			var acc float64
			for q := range plus {
				acc += expectGrad.At(i, q) * math.Pi * (plus[q] - minus[q]) / 2
			}
			latentGrad.Set(i, j, acc)
		}
	}

	return []*mat.Dense{latentGrad}
}

func (g *qnodeGenerator) Params() []*numgrad.Param {
	return append([]*numgrad.Param{g.weights}, g.post.Params()...)
}

func (g *qnodeGenerator) SetTraining(training bool) {
	g.post.SetTraining(training)
}

func (g *qnodeGenerator) ExportWeights() numgrad.Weights {
	w := numgrad.ExportParams([]*numgrad.Param{g.weights})
	return append(w, g.post.ExportWeights()...)
}

func (g *qnodeGenerator) ImportWeights(w numgrad.Weights) error {
	if len(w) < 1 {
		return numgrad.ImportParams([]*numgrad.Param{g.weights}, w)
	}
	if err := numgrad.ImportParams([]*numgrad.Param{g.weights}, w[:1]); err != nil {
		return err
	}
	return g.post.ImportWeights(w[1:])
}

// Err returns the first buffered device execution error.
func (g *qnodeGenerator) Err() error {
	return g.err
}
