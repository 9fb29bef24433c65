package numgrad

import "fmt"

// Tensor is the serializable form of one parameter matrix.
type Tensor struct {
	Rows int
	Cols int
	Data []float64
}

// Weights is the serializable form of a parameter list.
type Weights []Tensor

// ExportParams copies the parameter values into a serializable form.
func ExportParams(params []*Param) Weights {
	w := make(Weights, len(params))
	for i, p := range params {
		r, c := p.Value.Dims()
		data := make([]float64, r*c)
		for row := 0; row < r; row++ {
			for col := 0; col < c; col++ {
				data[row*c+col] = p.Value.At(row, col)
			}
		}
		w[i] = Tensor{Rows: r, Cols: c, Data: data}
	}
	return w
}

// ExportWeights serializes the trainable parameters plus the running
// statistics of any batch-normalization layers.
func (n *Network) ExportWeights() Weights {
	w := ExportParams(n.params)
	for _, l := range n.layers {
		if bn, ok := l.(*BatchNorm); ok {
			mean := make([]float64, bn.dim)
			variance := make([]float64, bn.dim)
			copy(mean, bn.runningMean)
			copy(variance, bn.runningVar)
			w = append(w,
				Tensor{Rows: 1, Cols: bn.dim, Data: mean},
				Tensor{Rows: 1, Cols: bn.dim, Data: variance})
		}
	}
	return w
}

// ImportWeights restores a serialized parameter set produced by
// ExportWeights into an identically built network.
func (n *Network) ImportWeights(w Weights) error {
	if len(w) < len(n.params) {
		return fmt.Errorf("weight count mismatch: have %d parameters, saved %d", len(n.params), len(w))
	}
	if err := ImportParams(n.params, w[:len(n.params)]); err != nil {
		return err
	}
	rest := w[len(n.params):]
	for _, l := range n.layers {
		bn, ok := l.(*BatchNorm)
		if !ok {
			continue
		}
		if len(rest) < 2 || rest[0].Cols != bn.dim || rest[1].Cols != bn.dim {
			return fmt.Errorf("missing batch-norm statistics for dim %d", bn.dim)
		}
		copy(bn.runningMean, rest[0].Data)
		copy(bn.runningVar, rest[1].Data)
		rest = rest[2:]
	}
	return nil
}

// ImportParams copies saved values back into an identically shaped
// parameter list. The receiving architecture must match the saved one.
func ImportParams(params []*Param, w Weights) error {
	if len(params) != len(w) {
		return fmt.Errorf("weight count mismatch: have %d parameters, saved %d", len(params), len(w))
	}
	for i, p := range params {
		r, c := p.Value.Dims()
		if r != w[i].Rows || c != w[i].Cols {
			return fmt.Errorf("weight %d shape mismatch: have %dx%d, saved %dx%d",
				i, r, c, w[i].Rows, w[i].Cols)
		}
		for row := 0; row < r; row++ {
			for col := 0; col < c; col++ {
				p.Value.Set(row, col, w[i].Data[row*c+col])
			}
		}
	}
	return nil
}
