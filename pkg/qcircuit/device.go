package qcircuit

import "context"

// Job is one circuit execution request: the topology to reconstruct plus
// the angles to run it with.
type Job struct {
	NumQubits int       `json:"num_qubits"`
	Cycles    int       `json:"cycles"`
	Bases     []string  `json:"bases"`
	Inputs    []float64 `json:"inputs"`
	Weights   []float64 `json:"weights"`
}

// Device executes a circuit job and returns the per-qubit Z expectations.
// Remote implementations block on a network round trip per call.
type Device interface {
	Execute(ctx context.Context, job Job) ([]float64, error)
}

// LocalDevice runs jobs on the in-process statevector simulator.
type LocalDevice struct{}

// NewLocalDevice creates a simulator-backed device.
func NewLocalDevice() *LocalDevice {
	return &LocalDevice{}
}

// Execute reconstructs the circuit from the job and evaluates it.
func (d *LocalDevice) Execute(_ context.Context, job Job) ([]float64, error) {
	circ, err := NewIdentityCircuit(job.NumQubits, job.Cycles, job.Bases, nil)
	if err != nil {
		return nil, err
	}
	return circ.Evaluate(job.Inputs, job.Weights), nil
}
