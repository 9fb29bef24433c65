package qcircuit

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
)

// ErrBadBases indicates supplied gate-basis labels do not match the circuit
// topology.
var ErrBadBases = errors.New("invalid gate bases")

// Rotation bases for the variational gates.
const (
	BasisX = "X"
	BasisY = "Y"
	BasisZ = "Z"
)

// IdentityCircuit is an entangling variational circuit initialized as the
// identity: the second half of its cycles mirrors the first, so that with
// mirror-negated parameters the whole program cancels (after
// arXiv:1903.05076). One trainable rotation per qubit per cycle, CZ ring
// entanglers between cycles.
type IdentityCircuit struct {
	numQubits int
	cycles    int
	bases     []string

	state *State
}

// NewIdentityCircuit builds the circuit helper. bases must hold one label
// per rotation slot (numQubits*cycles) drawn from X/Y/Z; when nil, random
// mirrored bases are generated from rng.
func NewIdentityCircuit(numQubits, cycles int, bases []string, rng *rand.Rand) (*IdentityCircuit, error) {
	if numQubits < 1 || cycles < 1 {
		return nil, fmt.Errorf("%w: need at least one qubit and one cycle", ErrBadBases)
	}

	if bases == nil {
		bases = make([]string, numQubits*cycles)
		labels := []string{BasisX, BasisY, BasisZ}
		for k := 0; k < (cycles+1)/2; k++ {
			for q := 0; q < numQubits; q++ {
				b := labels[rng.Intn(len(labels))]
				bases[k*numQubits+q] = b
				// mirror cycle uses the same basis so negated
				// angles cancel
				bases[(cycles-1-k)*numQubits+q] = b
			}
		}
	}

	if len(bases) != numQubits*cycles {
		return nil, fmt.Errorf("%w: got %d labels, circuit has %d rotation slots",
			ErrBadBases, len(bases), numQubits*cycles)
	}
	for i, b := range bases {
		if b != BasisX && b != BasisY && b != BasisZ {
			return nil, fmt.Errorf("%w: slot %d has unknown basis %q", ErrBadBases, i, b)
		}
	}

	return &IdentityCircuit{
		numQubits: numQubits,
		cycles:    cycles,
		bases:     bases,
		state:     NewState(numQubits),
	}, nil
}

// NumQubits returns the qubit count.
func (c *IdentityCircuit) NumQubits() int { return c.numQubits }

// NumVariables returns the trainable rotation count.
func (c *IdentityCircuit) NumVariables() int { return c.numQubits * c.cycles }

// Cycles returns the cycle count.
func (c *IdentityCircuit) Cycles() int { return c.cycles }

// Bases returns the per-slot rotation bases.
func (c *IdentityCircuit) Bases() []string { return c.bases }

// GenerateInitialParameters returns mirror-negated initial angles: random in
// the first half of the cycles, negated in the mirror slot, so the initial
// circuit acts as the identity. The middle cycle of an odd-depth circuit
// starts at zero.
func (c *IdentityCircuit) GenerateInitialParameters(rng *rand.Rand) []float64 {
	params := make([]float64, c.NumVariables())
	for k := 0; k < c.cycles/2; k++ {
		for q := 0; q < c.numQubits; q++ {
			theta := (rng.Float64()*2 - 1) * math.Pi
			params[k*c.numQubits+q] = theta
			params[(c.cycles-1-k)*c.numQubits+q] = -theta
		}
	}
	return params
}

// InitializeQubits encodes the latent inputs as RY rotations, one qubit per
// latent component (angle = pi * input).
func (c *IdentityCircuit) InitializeQubits(s *State, inputs []float64) {
	for q := 0; q < c.numQubits && q < len(inputs); q++ {
		s.RY(q, math.Pi*inputs[q])
	}
}

// ApplyCycles applies the variational rotations and entanglers. The first
// half of the cycles rotates then entangles and the mirrored half entangles
// then rotates, so paired cycles cancel at the initial parameters. The
// unpaired middle cycle of an odd-depth circuit carries no entangler.
func (c *IdentityCircuit) ApplyCycles(s *State, weights []float64) {
	half := c.cycles / 2
	for k := 0; k < c.cycles; k++ {
		switch {
		case k < half:
			c.rotate(s, k, weights)
			c.entangle(s)
		case k >= c.cycles-half:
			c.entangle(s)
			c.rotate(s, k, weights)
		default:
			c.rotate(s, k, weights)
		}
	}
}

func (c *IdentityCircuit) rotate(s *State, cycle int, weights []float64) {
	for q := 0; q < c.numQubits; q++ {
		idx := cycle*c.numQubits + q
		switch c.bases[idx] {
		case BasisX:
			s.RX(q, weights[idx])
		case BasisY:
			s.RY(q, weights[idx])
		case BasisZ:
			s.RZ(q, weights[idx])
		}
	}
}

func (c *IdentityCircuit) entangle(s *State) {
	if c.numQubits < 2 {
		return
	}
	for q := 0; q < c.numQubits-1; q++ {
		s.CZ(q, q+1)
	}
	if c.numQubits > 2 {
		s.CZ(c.numQubits-1, 0)
	}
}

// MeasureZ returns the per-qubit Z expectations.
func (c *IdentityCircuit) MeasureZ(s *State) []float64 {
	out := make([]float64, c.numQubits)
	for q := 0; q < c.numQubits; q++ {
		out[q] = s.ExpectationZ(q)
	}
	return out
}

// Evaluate runs initialize/apply/measure on the local simulator.
func (c *IdentityCircuit) Evaluate(inputs, weights []float64) []float64 {
	c.state.Reset()
	c.InitializeQubits(c.state, inputs)
	c.ApplyCycles(c.state, weights)
	return c.MeasureZ(c.state)
}

// shift rule constants: expectations of rotation gates satisfy
// df/dtheta = (f(theta+pi/2) - f(theta-pi/2)) / 2.
const paramShift = math.Pi / 2

// WeightGradients returns d(sum_q upstream[q]*E_q)/d(weights) by the
// parameter-shift rule.
func (c *IdentityCircuit) WeightGradients(inputs, weights, upstream []float64) []float64 {
	grads := make([]float64, len(weights))
	shifted := make([]float64, len(weights))
	copy(shifted, weights)
	for v := range weights {
		shifted[v] = weights[v] + paramShift
		plus := c.Evaluate(inputs, shifted)
		shifted[v] = weights[v] - paramShift
		minus := c.Evaluate(inputs, shifted)
		shifted[v] = weights[v]

		var g float64
		for q := range plus {
			g += upstream[q] * (plus[q] - minus[q]) / 2
		}
		grads[v] = g
	}
	return grads
}

// InputGradients returns d(sum_q upstream[q]*E_q)/d(inputs). Inputs enter
// as RY(pi*x), so the shift rule carries a factor pi.
func (c *IdentityCircuit) InputGradients(inputs, weights, upstream []float64) []float64 {
	grads := make([]float64, len(inputs))
	shifted := make([]float64, len(inputs))
	copy(shifted, inputs)
	for v := range inputs {
		if v >= c.numQubits {
			break
		}
		shifted[v] = inputs[v] + 0.5
		plus := c.Evaluate(shifted, weights)
		shifted[v] = inputs[v] - 0.5
		minus := c.Evaluate(shifted, weights)
		shifted[v] = inputs[v]

		var g float64
		for q := range plus {
			g += upstream[q] * (plus[q] - minus[q]) / 2
		}
		grads[v] = math.Pi * g
	}
	return grads
}
