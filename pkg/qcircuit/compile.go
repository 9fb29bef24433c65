package qcircuit

import (
	"math"
	"math/rand"
)

type gateOp int

const (
	opRotation gateOp = iota
	opEntangle
)

type progGate struct {
	op    gateOp
	qubit int
	other int // second qubit of an entangler
	basis string
	param int     // index into the flat angle vector
	scale float64 // gate angle = scale * angle value
}

// CompiledCircuit is a circuit flattened once into a static gate program.
// The flat angle vector is the concatenation of the input parameters (the
// latent encoding rotations) and the control parameters (the trainable
// rotations), mirroring a pre-compiled parametrized-circuit layer.
type CompiledCircuit struct {
	numQubits   int
	numInputs   int
	numControls int
	bases       []string
	gates       []progGate
	state       *State
}

// Compile flattens an IdentityCircuit into a static program.
func Compile(c *IdentityCircuit) *CompiledCircuit {
	p := &CompiledCircuit{
		numQubits:   c.numQubits,
		numInputs:   c.numQubits,
		numControls: c.NumVariables(),
		bases:       c.bases,
		state:       NewState(c.numQubits),
	}

	// latent encoding rotations
	for q := 0; q < c.numQubits; q++ {
		p.gates = append(p.gates, progGate{
			op: opRotation, qubit: q, basis: BasisY, param: q, scale: math.Pi,
		})
	}

	appendRotations := func(cycle int) {
		for q := 0; q < c.numQubits; q++ {
			idx := cycle*c.numQubits + q
			p.gates = append(p.gates, progGate{
				op:    opRotation,
				qubit: q,
				basis: c.bases[idx],
				param: p.numInputs + idx,
				scale: 1,
			})
		}
	}
	appendEntanglers := func() {
		if c.numQubits < 2 {
			return
		}
		for q := 0; q < c.numQubits-1; q++ {
			p.gates = append(p.gates, progGate{op: opEntangle, qubit: q, other: q + 1})
		}
		if c.numQubits > 2 {
			p.gates = append(p.gates, progGate{op: opEntangle, qubit: c.numQubits - 1, other: 0})
		}
	}

	half := c.cycles / 2
	for k := 0; k < c.cycles; k++ {
		switch {
		case k < half:
			appendRotations(k)
			appendEntanglers()
		case k >= c.cycles-half:
			appendEntanglers()
			appendRotations(k)
		default:
			appendRotations(k)
		}
	}

	return p
}

// InputParams returns the number of latent input angles.
func (p *CompiledCircuit) InputParams() int { return p.numInputs }

// ControlParams returns the number of trainable control angles.
func (p *CompiledCircuit) ControlParams() int { return p.numControls }

// ReadOut returns the measured qubit indices.
func (p *CompiledCircuit) ReadOut() []int {
	out := make([]int, p.numQubits)
	for q := range out {
		out[q] = q
	}
	return out
}

// Bases returns the per-slot rotation bases of the compiled program.
func (p *CompiledCircuit) Bases() []string { return p.bases }

// GenerateInitialParameters returns mirror-negated control angles so the
// control portion of the program starts as the identity.
func (p *CompiledCircuit) GenerateInitialParameters(rng *rand.Rand) []float64 {
	cycles := p.numControls / p.numQubits
	params := make([]float64, p.numControls)
	for k := 0; k < cycles/2; k++ {
		for q := 0; q < p.numQubits; q++ {
			theta := (rng.Float64()*2 - 1) * math.Pi
			params[k*p.numQubits+q] = theta
			params[(cycles-1-k)*p.numQubits+q] = -theta
		}
	}
	return params
}

// Evaluate runs the program on the flat angle vector (inputs then controls)
// and returns the per-qubit Z expectations.
func (p *CompiledCircuit) Evaluate(angles []float64) []float64 {
	p.state.Reset()
	for _, g := range p.gates {
		switch g.op {
		case opEntangle:
			p.state.CZ(g.qubit, g.other)
		case opRotation:
			theta := g.scale * angles[g.param]
			switch g.basis {
			case BasisX:
				p.state.RX(g.qubit, theta)
			case BasisY:
				p.state.RY(g.qubit, theta)
			case BasisZ:
				p.state.RZ(g.qubit, theta)
			}
		}
	}

	out := make([]float64, p.numQubits)
	for q := range out {
		out[q] = p.state.ExpectationZ(q)
	}
	return out
}

// Gradients returns d(sum_q upstream[q]*E_q)/d(angles) over the whole flat
// angle vector by the parameter-shift rule.
func (p *CompiledCircuit) Gradients(angles, upstream []float64) []float64 {
	grads := make([]float64, len(angles))
	shifted := make([]float64, len(angles))
	copy(shifted, angles)

	scales := make([]float64, len(angles))
	for _, g := range p.gates {
		if g.op == opRotation {
			scales[g.param] = g.scale
		}
	}

	for v := range angles {
		if scales[v] == 0 {
			continue
		}
		delta := paramShift / scales[v]
		shifted[v] = angles[v] + delta
		plus := p.Evaluate(shifted)
		shifted[v] = angles[v] - delta
		minus := p.Evaluate(shifted)
		shifted[v] = angles[v]

		var g float64
		for q := range plus {
			g += upstream[q] * (plus[q] - minus[q]) / 2
		}
		grads[v] = scales[v] * g
	}
	return grads
}
