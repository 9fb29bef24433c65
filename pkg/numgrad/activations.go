package numgrad

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// LeakyReLU passes positive values through and scales negative values by
// Alpha.
type LeakyReLU struct {
	Alpha float64

	mask *mat.Dense // derivative at the last forward input
}

// NewLeakyReLU creates a leaky rectifier with the given negative slope.
func NewLeakyReLU(alpha float64) *LeakyReLU {
	return &LeakyReLU{Alpha: alpha}
}

func (l *LeakyReLU) Forward(x *mat.Dense) *mat.Dense {
	rows, cols := x.Dims()
	out := mat.NewDense(rows, cols, nil)
	l.mask = mat.NewDense(rows, cols, nil)
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			v := x.At(i, j)
			if v > 0 {
				out.Set(i, j, v)
				l.mask.Set(i, j, 1)
			} else {
				out.Set(i, j, l.Alpha*v)
				l.mask.Set(i, j, l.Alpha)
			}
		}
	}
	return out
}

func (l *LeakyReLU) Backward(grad *mat.Dense) *mat.Dense {
	return hadamard(grad, l.mask)
}

func (l *LeakyReLU) inputBackward(grad *mat.Dense) *mat.Dense {
	return hadamard(grad, l.mask)
}

func (l *LeakyReLU) tangentForward(v *mat.Dense) *mat.Dense {
	return hadamard(v, l.mask)
}

func (l *LeakyReLU) tangentBackward(p *mat.Dense, _ float64) *mat.Dense {
	return hadamard(p, l.mask)
}

func (l *LeakyReLU) Params() []*Param { return nil }

// Sigmoid saturates values into (0, 1).
type Sigmoid struct {
	out *mat.Dense
}

// NewSigmoid creates a sigmoid activation layer.
func NewSigmoid() *Sigmoid {
	return &Sigmoid{}
}

func (s *Sigmoid) Forward(x *mat.Dense) *mat.Dense {
	rows, cols := x.Dims()
	out := mat.NewDense(rows, cols, nil)
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			out.Set(i, j, 1.0/(1.0+math.Exp(-x.At(i, j))))
		}
	}
	s.out = out
	return out
}

func (s *Sigmoid) Backward(grad *mat.Dense) *mat.Dense {
	rows, cols := grad.Dims()
	out := mat.NewDense(rows, cols, nil)
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			y := s.out.At(i, j)
			out.Set(i, j, grad.At(i, j)*y*(1-y))
		}
	}
	return out
}

func (s *Sigmoid) inputBackward(grad *mat.Dense) *mat.Dense {
	return s.Backward(grad)
}

func (s *Sigmoid) Params() []*Param { return nil }
