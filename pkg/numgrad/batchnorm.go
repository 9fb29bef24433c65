package numgrad

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// BatchNorm normalizes each feature over the batch during training and uses
// running statistics at inference time.
type BatchNorm struct {
	dim      int
	momentum float64
	eps      float64

	gamma *Param
	beta  *Param

	runningMean []float64
	runningVar  []float64
	training    bool

	// caches from the last training forward pass
	xhat   *mat.Dense
	invStd []float64
}

// NewBatchNorm creates a batch-normalization layer for the given feature
// dimension.
func NewBatchNorm(dim int, momentum float64) *BatchNorm {
	bn := &BatchNorm{
		dim:         dim,
		momentum:    momentum,
		eps:         1e-5,
		gamma:       newParam(1, dim),
		beta:        newParam(1, dim),
		runningMean: make([]float64, dim),
		runningVar:  make([]float64, dim),
		training:    true,
	}
	for j := 0; j < dim; j++ {
		bn.gamma.Value.Set(0, j, 1)
		bn.runningVar[j] = 1
	}
	return bn
}

func (bn *BatchNorm) setTraining(training bool) {
	bn.training = training
}

func (bn *BatchNorm) Forward(x *mat.Dense) *mat.Dense {
	rows, _ := x.Dims()
	out := mat.NewDense(rows, bn.dim, nil)

	if !bn.training {
		bn.xhat = mat.NewDense(rows, bn.dim, nil)
		bn.invStd = make([]float64, bn.dim)
		for j := 0; j < bn.dim; j++ {
			invStd := 1.0 / math.Sqrt(bn.runningVar[j]+bn.eps)
			bn.invStd[j] = invStd
			g := bn.gamma.Value.At(0, j)
			b := bn.beta.Value.At(0, j)
			for i := 0; i < rows; i++ {
				xhat := (x.At(i, j) - bn.runningMean[j]) * invStd
				bn.xhat.Set(i, j, xhat)
				out.Set(i, j, g*xhat+b)
			}
		}
		return out
	}

	bn.xhat = mat.NewDense(rows, bn.dim, nil)
	bn.invStd = make([]float64, bn.dim)
	n := float64(rows)

	for j := 0; j < bn.dim; j++ {
		var mean float64
		for i := 0; i < rows; i++ {
			mean += x.At(i, j)
		}
		mean /= n

		var variance float64
		for i := 0; i < rows; i++ {
			d := x.At(i, j) - mean
			variance += d * d
		}
		variance /= n

		bn.runningMean[j] = bn.momentum*bn.runningMean[j] + (1-bn.momentum)*mean
		bn.runningVar[j] = bn.momentum*bn.runningVar[j] + (1-bn.momentum)*variance

		invStd := 1.0 / math.Sqrt(variance+bn.eps)
		bn.invStd[j] = invStd
		g := bn.gamma.Value.At(0, j)
		b := bn.beta.Value.At(0, j)
		for i := 0; i < rows; i++ {
			xhat := (x.At(i, j) - mean) * invStd
			bn.xhat.Set(i, j, xhat)
			out.Set(i, j, g*xhat+b)
		}
	}
	return out
}

func (bn *BatchNorm) Backward(grad *mat.Dense) *mat.Dense {
	rows, _ := grad.Dims()
	n := float64(rows)
	out := mat.NewDense(rows, bn.dim, nil)

	for j := 0; j < bn.dim; j++ {
		g := bn.gamma.Value.At(0, j)

		var sumGrad, sumGradXhat float64
		for i := 0; i < rows; i++ {
			sumGrad += grad.At(i, j)
			sumGradXhat += grad.At(i, j) * bn.xhat.At(i, j)
		}

		bn.gamma.Grad.Set(0, j, bn.gamma.Grad.At(0, j)+sumGradXhat)
		bn.beta.Grad.Set(0, j, bn.beta.Grad.At(0, j)+sumGrad)

		if !bn.training {
			// Running statistics are constants at inference, so the
			// transform is affine per feature.
			for i := 0; i < rows; i++ {
				out.Set(i, j, grad.At(i, j)*g*bn.invStd[j])
			}
			continue
		}

		for i := 0; i < rows; i++ {
			dxhat := grad.At(i, j) * g
			dx := bn.invStd[j] / n *
				(n*dxhat - sumGrad*g - bn.xhat.At(i, j)*sumGradXhat*g)
			out.Set(i, j, dx)
		}
	}
	return out
}

func (bn *BatchNorm) Params() []*Param {
	return []*Param{bn.gamma, bn.beta}
}
