package qcircuit

import (
	"context"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewIdentityCircuitValidation(t *testing.T) {
	rng := rand.New(rand.NewSource(1))

	tests := []struct {
		name    string
		qubits  int
		cycles  int
		bases   []string
		wantErr bool
	}{
		{
			name:   "random bases",
			qubits: 3,
			cycles: 2,
		},
		{
			name:   "explicit bases",
			qubits: 2,
			cycles: 2,
			bases:  []string{"X", "Y", "X", "Y"},
		},
		{
			name:    "wrong basis count",
			qubits:  2,
			cycles:  2,
			bases:   []string{"X", "Y"},
			wantErr: true,
		},
		{
			name:    "unknown label",
			qubits:  2,
			cycles:  1,
			bases:   []string{"X", "H"},
			wantErr: true,
		},
		{
			name:    "no qubits",
			qubits:  0,
			cycles:  1,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := NewIdentityCircuit(tt.qubits, tt.cycles, tt.bases, rng)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrBadBases)
				return
			}
			require.NoError(t, err)
			assert.Len(t, c.Bases(), tt.qubits*tt.cycles)
			assert.Equal(t, tt.qubits*tt.cycles, c.NumVariables())
		})
	}
}

func TestInitialParametersGiveIdentity(t *testing.T) {
	rng := rand.New(rand.NewSource(42))

	for _, cycles := range []int{2, 3, 4} {
		circ, err := NewIdentityCircuit(3, cycles, nil, rng)
		require.NoError(t, err)

		weights := circ.GenerateInitialParameters(rng)
		exps := circ.Evaluate(make([]float64, 3), weights)

		// |000> is untouched by the identity-initialized program.
		for q, e := range exps {
			assert.InDelta(t, 1.0, e, 1e-9, "cycles=%d qubit=%d", cycles, q)
		}
	}
}

func TestExpectationsBounded(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	circ, err := NewIdentityCircuit(3, 2, nil, rng)
	require.NoError(t, err)

	weights := make([]float64, circ.NumVariables())
	for i := range weights {
		weights[i] = rng.NormFloat64()
	}
	exps := circ.Evaluate([]float64{0.3, 0.7, 0.1}, weights)
	for _, e := range exps {
		assert.GreaterOrEqual(t, e, -1.0)
		assert.LessOrEqual(t, e, 1.0)
	}
}

func TestWeightGradientsMatchFiniteDifference(t *testing.T) {
	rng := rand.New(rand.NewSource(13))
	circ, err := NewIdentityCircuit(2, 2, nil, rng)
	require.NoError(t, err)

	inputs := []float64{0.2, 0.8}
	weights := make([]float64, circ.NumVariables())
	for i := range weights {
		weights[i] = rng.Float64()
	}
	upstream := []float64{0.5, -1.2}

	grads := circ.WeightGradients(inputs, weights, upstream)

	const h = 1e-6
	for v := range weights {
		orig := weights[v]
		weights[v] = orig + h
		plus := circ.Evaluate(inputs, weights)
		weights[v] = orig - h
		minus := circ.Evaluate(inputs, weights)
		weights[v] = orig

		var want float64
		for q := range plus {
			want += upstream[q] * (plus[q] - minus[q]) / (2 * h)
		}
		assert.InDelta(t, want, grads[v], 1e-6)
	}
}

func TestInputGradientsMatchFiniteDifference(t *testing.T) {
	rng := rand.New(rand.NewSource(17))
	circ, err := NewIdentityCircuit(2, 2, nil, rng)
	require.NoError(t, err)

	inputs := []float64{0.4, 0.6}
	weights := circ.GenerateInitialParameters(rng)
	upstream := []float64{1, 1}

	grads := circ.InputGradients(inputs, weights, upstream)

	const h = 1e-6
	for v := range inputs {
		orig := inputs[v]
		inputs[v] = orig + h
		plus := circ.Evaluate(inputs, weights)
		inputs[v] = orig - h
		minus := circ.Evaluate(inputs, weights)
		inputs[v] = orig

		var want float64
		for q := range plus {
			want += upstream[q] * (plus[q] - minus[q]) / (2 * h)
		}
		assert.InDelta(t, want, grads[v], 1e-6)
	}
}

func TestCompiledMatchesDynamicEvaluation(t *testing.T) {
	rng := rand.New(rand.NewSource(23))
	circ, err := NewIdentityCircuit(3, 3, nil, rng)
	require.NoError(t, err)
	prog := Compile(circ)

	inputs := []float64{0.1, 0.9, 0.5}
	weights := make([]float64, circ.NumVariables())
	for i := range weights {
		weights[i] = rng.NormFloat64()
	}

	want := circ.Evaluate(inputs, weights)
	got := prog.Evaluate(append(append([]float64{}, inputs...), weights...))

	require.Len(t, got, len(want))
	for q := range want {
		assert.InDelta(t, want[q], got[q], 1e-12)
	}
}

func TestCompiledGradientsMatchFiniteDifference(t *testing.T) {
	rng := rand.New(rand.NewSource(29))
	circ, err := NewIdentityCircuit(2, 2, nil, rng)
	require.NoError(t, err)
	prog := Compile(circ)

	angles := make([]float64, prog.InputParams()+prog.ControlParams())
	for i := range angles {
		angles[i] = rng.Float64()
	}
	upstream := []float64{-0.3, 0.7}

	grads := prog.Gradients(angles, upstream)

	const h = 1e-6
	for v := range angles {
		orig := angles[v]
		angles[v] = orig + h
		plus := prog.Evaluate(angles)
		angles[v] = orig - h
		minus := prog.Evaluate(angles)
		angles[v] = orig

		var want float64
		for q := range plus {
			want += upstream[q] * (plus[q] - minus[q]) / (2 * h)
		}
		assert.InDelta(t, want, grads[v], 1e-6)
	}
}

func TestLocalDeviceExecute(t *testing.T) {
	rng := rand.New(rand.NewSource(31))
	circ, err := NewIdentityCircuit(2, 2, nil, rng)
	require.NoError(t, err)
	weights := circ.GenerateInitialParameters(rng)

	dev := NewLocalDevice()
	exps, err := dev.Execute(context.Background(), Job{
		NumQubits: 2,
		Cycles:    2,
		Bases:     circ.Bases(),
		Inputs:    []float64{0, 0},
		Weights:   weights,
	})
	require.NoError(t, err)
	require.Len(t, exps, 2)
	for _, e := range exps {
		assert.InDelta(t, 1.0, e, 1e-9)
	}
}
