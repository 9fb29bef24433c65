// Package qcircuit provides the circuit collaborators behind the quantum
// generator backends: a small statevector simulator, an identity-block
// initialized entangling circuit, and the device abstraction that runs a
// circuit either locally or on a remote queued execution service.
package qcircuit

import "math"

// State is the statevector of numQubits qubits. Qubit q corresponds to bit
// q of the amplitude index.
type State struct {
	numQubits int
	amps      []complex128
}

// NewState creates the |0...0> state.
func NewState(numQubits int) *State {
	s := &State{
		numQubits: numQubits,
		amps:      make([]complex128, 1<<uint(numQubits)),
	}
	s.amps[0] = 1
	return s
}

// Reset returns the state to |0...0>.
func (s *State) Reset() {
	for i := range s.amps {
		s.amps[i] = 0
	}
	s.amps[0] = 1
}

// NumQubits returns the qubit count.
func (s *State) NumQubits() int {
	return s.numQubits
}

// forEachPair visits every amplitude pair differing only in bit q.
func (s *State) forEachPair(q int, f func(i0, i1 int)) {
	bit := 1 << uint(q)
	for i := 0; i < len(s.amps); i++ {
		if i&bit == 0 {
			f(i, i|bit)
		}
	}
}

// RX applies a rotation about the X axis to qubit q.
func (s *State) RX(q int, theta float64) {
	c := complex(math.Cos(theta/2), 0)
	is := complex(0, -math.Sin(theta/2))
	s.forEachPair(q, func(i0, i1 int) {
		a0, a1 := s.amps[i0], s.amps[i1]
		s.amps[i0] = c*a0 + is*a1
		s.amps[i1] = is*a0 + c*a1
	})
}

// RY applies a rotation about the Y axis to qubit q.
func (s *State) RY(q int, theta float64) {
	c := complex(math.Cos(theta/2), 0)
	sn := complex(math.Sin(theta/2), 0)
	s.forEachPair(q, func(i0, i1 int) {
		a0, a1 := s.amps[i0], s.amps[i1]
		s.amps[i0] = c*a0 - sn*a1
		s.amps[i1] = sn*a0 + c*a1
	})
}

// RZ applies a rotation about the Z axis to qubit q.
func (s *State) RZ(q int, theta float64) {
	e0 := complex(math.Cos(theta/2), -math.Sin(theta/2))
	e1 := complex(math.Cos(theta/2), math.Sin(theta/2))
	s.forEachPair(q, func(i0, i1 int) {
		s.amps[i0] *= e0
		s.amps[i1] *= e1
	})
}

// CZ applies a controlled-Z between qubits a and b.
func (s *State) CZ(a, b int) {
	mask := 1<<uint(a) | 1<<uint(b)
	for i := range s.amps {
		if i&mask == mask {
			s.amps[i] = -s.amps[i]
		}
	}
}

// ExpectationZ returns <Z> for qubit q, in [-1, 1].
func (s *State) ExpectationZ(q int) float64 {
	bit := 1 << uint(q)
	var exp float64
	for i, a := range s.amps {
		p := real(a)*real(a) + imag(a)*imag(a)
		if i&bit == 0 {
			exp += p
		} else {
			exp -= p
		}
	}
	return exp
}
