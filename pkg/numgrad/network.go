package numgrad

import (
	"errors"

	"gonum.org/v1/gonum/mat"
)

// ErrNoDoubleGrad indicates a gradient-penalty pass was requested on a
// network containing a layer without a piecewise-linear activation.
var ErrNoDoubleGrad = errors.New("layer does not support double backprop")

// Network is an ordered stack of layers trained end to end.
type Network struct {
	layers []Layer
	params []*Param
}

// NewNetwork creates a network from the given layers.
func NewNetwork(layers ...Layer) *Network {
	n := &Network{layers: layers}
	for _, l := range layers {
		n.params = append(n.params, l.Params()...)
	}
	return n
}

// Forward runs the batch through all layers, caching intermediate state for
// a subsequent backward pass.
func (n *Network) Forward(x *mat.Dense) *mat.Dense {
	out := x
	for _, l := range n.layers {
		out = l.Forward(out)
	}
	return out
}

// Backward accumulates parameter gradients for the last forward pass and
// returns the gradient with respect to the network input.
func (n *Network) Backward(grad *mat.Dense) *mat.Dense {
	for i := len(n.layers) - 1; i >= 0; i-- {
		grad = n.layers[i].Backward(grad)
	}
	return grad
}

// InputGradient runs a forward pass on x and propagates seed back to the
// input without accumulating any parameter gradients. Each row of the
// result is the gradient of the seeded output sum for that sample.
func (n *Network) InputGradient(x, seed *mat.Dense) (*mat.Dense, error) {
	n.Forward(x)
	grad := seed
	for i := len(n.layers) - 1; i >= 0; i-- {
		l, ok := n.layers[i].(inputOnly)
		if !ok {
			return nil, ErrNoDoubleGrad
		}
		grad = l.inputBackward(grad)
	}
	return grad, nil
}

// PenaltyBackward accumulates into the parameter gradients the derivative of
// scale * sum(u .* inputGradient) using the activation masks cached by the
// last InputGradient call. Exact for piecewise-linear layers; the WGAN
// critic is a pure dense stack, so the result is exact there.
func (n *Network) PenaltyBackward(u, seed *mat.Dense, scale float64) error {
	v := u
	for _, l := range n.layers {
		dg, ok := l.(doubleGrad)
		if !ok {
			return ErrNoDoubleGrad
		}
		v = dg.tangentForward(v)
	}
	p := seed
	for i := len(n.layers) - 1; i >= 0; i-- {
		p = n.layers[i].(doubleGrad).tangentBackward(p, scale)
	}
	return nil
}

// Params returns all trainable parameters in layer order.
func (n *Network) Params() []*Param {
	return n.params
}

// ZeroGrads clears every accumulated parameter gradient.
func (n *Network) ZeroGrads() {
	for _, p := range n.params {
		p.ZeroGrad()
	}
}

// SetTraining switches train-aware layers between training and inference
// behavior.
func (n *Network) SetTraining(training bool) {
	for _, l := range n.layers {
		if ta, ok := l.(trainAware); ok {
			ta.setTraining(training)
		}
	}
}
