package numgrad

import (
	"math"
	"math/rand"

	"gonum.org/v1/gonum/mat"
)

// Dense is a fully connected layer computing y = xW + b.
type Dense struct {
	in, out int
	w       *Param
	b       *Param
	useBias bool

	x       *mat.Dense // input cached by Forward
	tangent *mat.Dense // tangent cached by tangentForward
}

// DenseOption configures a Dense layer.
type DenseOption func(*Dense)

// WithoutBias disables the bias term.
func WithoutBias() DenseOption {
	return func(d *Dense) {
		d.useBias = false
	}
}

// WithKernel seeds the weight matrix row-major from the given values.
// Used to apply the identity-block initialization of the circuit backends.
func WithKernel(values []float64) DenseOption {
	return func(d *Dense) {
		for i := 0; i < d.in; i++ {
			for j := 0; j < d.out; j++ {
				d.w.Value.Set(i, j, values[i*d.out+j])
			}
		}
	}
}

// NewDense creates a dense layer with Xavier-initialized weights and zero
// biases.
func NewDense(in, out int, rng *rand.Rand, opts ...DenseOption) *Dense {
	d := &Dense{
		in:      in,
		out:     out,
		w:       newParam(in, out),
		b:       newParam(1, out),
		useBias: true,
	}

	scale := math.Sqrt(2.0 / float64(in))
	for i := 0; i < in; i++ {
		for j := 0; j < out; j++ {
			d.w.Value.Set(i, j, rng.NormFloat64()*scale)
		}
	}

	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Forward computes xW + b for a batch of row vectors.
func (d *Dense) Forward(x *mat.Dense) *mat.Dense {
	d.x = x
	rows, _ := x.Dims()
	out := mat.NewDense(rows, d.out, nil)
	out.Mul(x, d.w.Value)
	if d.useBias {
		for i := 0; i < rows; i++ {
			for j := 0; j < d.out; j++ {
				out.Set(i, j, out.At(i, j)+d.b.Value.At(0, j))
			}
		}
	}
	return out
}

// Backward accumulates parameter gradients and returns the input gradient.
func (d *Dense) Backward(grad *mat.Dense) *mat.Dense {
	var dw mat.Dense
	dw.Mul(d.x.T(), grad)
	d.w.Grad.Add(d.w.Grad, &dw)

	if d.useBias {
		rows, _ := grad.Dims()
		for j := 0; j < d.out; j++ {
			sum := d.b.Grad.At(0, j)
			for i := 0; i < rows; i++ {
				sum += grad.At(i, j)
			}
			d.b.Grad.Set(0, j, sum)
		}
	}

	return d.inputBackward(grad)
}

func (d *Dense) inputBackward(grad *mat.Dense) *mat.Dense {
	rows, _ := grad.Dims()
	out := mat.NewDense(rows, d.in, nil)
	out.Mul(grad, d.w.Value.T())
	return out
}

func (d *Dense) tangentForward(v *mat.Dense) *mat.Dense {
	d.tangent = v
	rows, _ := v.Dims()
	out := mat.NewDense(rows, d.out, nil)
	out.Mul(v, d.w.Value)
	return out
}

func (d *Dense) tangentBackward(p *mat.Dense, scale float64) *mat.Dense {
	var dw mat.Dense
	dw.Mul(d.tangent.T(), p)
	dw.Scale(scale, &dw)
	d.w.Grad.Add(d.w.Grad, &dw)

	rows, _ := p.Dims()
	out := mat.NewDense(rows, d.in, nil)
	out.Mul(p, d.w.Value.T())
	return out
}

// Params returns the trainable parameters of the layer.
func (d *Dense) Params() []*Param {
	if d.useBias {
		return []*Param{d.w, d.b}
	}
	return []*Param{d.w}
}

// Kernel exposes the weight matrix, used by tests and persistence.
func (d *Dense) Kernel() *mat.Dense {
	return d.w.Value
}
