// Package feedforward is a single-layer thresholded network loaded from a JSON model file. It is
// the default decision.Inferrer.
package feedforward

import (
	"context"
	"encoding/json"
	"os"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"github.com/eosrobotics/eos/decision"
	"github.com/eosrobotics/eos/utils"
)

// Metadata describes where a model came from.
type Metadata struct {
	Name      string  `json:"name"`
	Version   string  `json:"version"`
	TrainedOn string  `json:"trained_on"`
	Accuracy  float64 `json:"accuracy"`
}

// File is the on-disk form of a model.
type File struct {
	InputSize      int         `json:"input_size"`
	OutputSize     int         `json:"output_size"`
	SpikeThreshold float64     `json:"spike_threshold"`
	Weights        [][]float64 `json:"weights"`
	Metadata       Metadata    `json:"metadata"`
}

// Validate checks the weights match the declared shape.
func (f *File) Validate() error {
	if f.InputSize <= 0 || f.OutputSize <= 0 {
		return errors.Errorf("model sizes must be positive, got input %d output %d", f.InputSize, f.OutputSize)
	}
	if !utils.IsFinite(f.SpikeThreshold) {
		return errors.New("model spike_threshold must be finite")
	}
	if len(f.Weights) != f.InputSize {
		return errors.Errorf("model has %d weight rows, expected input_size %d", len(f.Weights), f.InputSize)
	}
	for i, row := range f.Weights {
		if len(row) != f.OutputSize {
			return errors.Errorf("model weight row %d has %d columns, expected output_size %d", i, len(row), f.OutputSize)
		}
		if !utils.IsFinite(row...) {
			return errors.Errorf("model weight row %d is not finite", i)
		}
	}
	return nil
}

// Model computes one output per column of its weight matrix: 1 when the weighted sum of the
// range features exceeds the spike threshold, otherwise 0.
type Model struct {
	meta      Metadata
	weights   *mat.Dense
	threshold float64
}

// Load reads and validates a model file.
func Load(path string) (*Model, error) {
	//nolint:gosec
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "cannot read neural model")
	}
	var f File
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, errors.Wrapf(err, "cannot parse neural model %q", path)
	}
	return New(&f)
}

// New builds a Model from an already decoded file.
func New(f *File) (*Model, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	w := mat.NewDense(f.InputSize, f.OutputSize, nil)
	for i, row := range f.Weights {
		w.SetRow(i, row)
	}
	return &Model{meta: f.Metadata, weights: w, threshold: f.SpikeThreshold}, nil
}

// Metadata returns the model's metadata.
func (m *Model) Metadata() Metadata {
	return m.meta
}

// Shape returns the input and output sizes.
func (m *Model) Shape() (int, int) {
	return m.weights.Dims()
}

// Features builds the model's input from the first ranges of in, zero padded to the input size.
func (m *Model) Features(in decision.Input) *mat.VecDense {
	inputSize, _ := m.weights.Dims()
	x := mat.NewVecDense(inputSize, nil)
	for i := 0; i < inputSize && i < len(in.Ranges); i++ {
		x.SetVec(i, in.Ranges[i])
	}
	return x
}

// Infer implements decision.Inferrer.
func (m *Model) Infer(ctx context.Context, in decision.Input) ([]float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(in.Ranges) == 0 {
		return nil, errors.New("no range features")
	}
	_, outputSize := m.weights.Dims()
	var y mat.VecDense
	y.MulVec(m.weights.T(), m.Features(in))

	out := make([]float64, outputSize)
	for i := range out {
		if y.AtVec(i) > m.threshold {
			out[i] = 1
		}
	}
	return out, nil
}
