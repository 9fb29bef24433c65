// Package numgrad implements the dense-network building blocks used by the
// GAN classifiers: layers with explicit forward and backward passes, a layer
// stack, and an Adam optimizer. Batches are *mat.Dense matrices with one
// sample per row.
package numgrad

import "gonum.org/v1/gonum/mat"

// Param is a trainable tensor together with its accumulated gradient.
type Param struct {
	Value *mat.Dense
	Grad  *mat.Dense
}

func newParam(rows, cols int) *Param {
	return &Param{
		Value: mat.NewDense(rows, cols, nil),
		Grad:  mat.NewDense(rows, cols, nil),
	}
}

// ZeroGrad clears the accumulated gradient.
func (p *Param) ZeroGrad() {
	p.Grad.Zero()
}

// Layer is a differentiable building block. Backward consumes the gradient
// of the loss with respect to the layer output, accumulates gradients into
// the layer parameters, and returns the gradient with respect to the input.
type Layer interface {
	Forward(x *mat.Dense) *mat.Dense
	Backward(grad *mat.Dense) *mat.Dense
	Params() []*Param
}

// inputOnly is implemented by layers that can propagate an output gradient
// to their input without touching parameter gradients. Used for the critic
// input-gradient computation of the gradient penalty.
type inputOnly interface {
	inputBackward(grad *mat.Dense) *mat.Dense
}

// doubleGrad is implemented by layers whose activation is piecewise linear,
// for which the weight gradient of a function of the input gradient can be
// computed exactly by a tangent forward pass followed by an adjoint pass.
type doubleGrad interface {
	tangentForward(v *mat.Dense) *mat.Dense
	tangentBackward(p *mat.Dense, scale float64) *mat.Dense
}

// trainAware is implemented by layers that behave differently during
// training and inference (batch normalization).
type trainAware interface {
	setTraining(training bool)
}

// hadamard returns the elementwise product of a and b.
func hadamard(a, b *mat.Dense) *mat.Dense {
	r, c := a.Dims()
	out := mat.NewDense(r, c, nil)
	out.MulElem(a, b)
	return out
}
