package numgrad

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// Adam implements the Adam update rule with bias-corrected moment
// estimates.
type Adam struct {
	lr    float64
	beta1 float64
	beta2 float64
	eps   float64

	t       int
	moments map[*Param]*moments
}

type moments struct {
	m *mat.Dense
	v *mat.Dense
}

// NewAdam creates an optimizer with the given learning rate and first-moment
// decay. beta2 and epsilon use the conventional defaults.
func NewAdam(lr, beta1 float64) *Adam {
	return &Adam{
		lr:      lr,
		beta1:   beta1,
		beta2:   0.999,
		eps:     1e-8,
		moments: make(map[*Param]*moments),
	}
}

// Step applies one update to the given parameters using their accumulated
// gradients. Moment state is keyed by parameter, so disjoint parameter sets
// can share one optimizer.
func (a *Adam) Step(params []*Param) {
	a.t++
	c1 := 1 - math.Pow(a.beta1, float64(a.t))
	c2 := 1 - math.Pow(a.beta2, float64(a.t))

	for _, p := range params {
		mom, ok := a.moments[p]
		if !ok {
			r, c := p.Value.Dims()
			mom = &moments{m: mat.NewDense(r, c, nil), v: mat.NewDense(r, c, nil)}
			a.moments[p] = mom
		}

		r, c := p.Value.Dims()
		for i := 0; i < r; i++ {
			for j := 0; j < c; j++ {
				g := p.Grad.At(i, j)
				m := a.beta1*mom.m.At(i, j) + (1-a.beta1)*g
				v := a.beta2*mom.v.At(i, j) + (1-a.beta2)*g*g
				mom.m.Set(i, j, m)
				mom.v.Set(i, j, v)

				mhat := m / c1
				vhat := v / c2
				p.Value.Set(i, j, p.Value.At(i, j)-a.lr*mhat/(math.Sqrt(vhat)+a.eps))
			}
		}
	}
}

// Reset drops all moment state, restarting the schedule.
func (a *Adam) Reset() {
	a.t = 0
	a.moments = make(map[*Param]*moments)
}
