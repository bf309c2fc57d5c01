package feedforward

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"go.viam.com/test"

	"github.com/eosrobotics/eos/decision"
)

func writeModel(t *testing.T, f File) string {
	t.Helper()
	data, err := json.Marshal(f)
	test.That(t, err, test.ShouldBeNil)
	path := filepath.Join(t.TempDir(), "model.json")
	test.That(t, os.WriteFile(path, data, 0o600), test.ShouldBeNil)
	return path
}

func TestLoad(t *testing.T) {
	path := writeModel(t, File{
		InputSize:      2,
		OutputSize:     3,
		SpikeThreshold: 0.5,
		Weights:        [][]float64{{1, 0, -1}, {0, 1, 1}},
		Metadata:       Metadata{Name: "test", Version: "1.0"},
	})
	m, err := Load(path)
	test.That(t, err, test.ShouldBeNil)
	in, out := m.Shape()
	test.That(t, in, test.ShouldEqual, 2)
	test.That(t, out, test.ShouldEqual, 3)
	test.That(t, m.Metadata().Name, test.ShouldEqual, "test")

	_, err = Load(filepath.Join(t.TempDir(), "missing.json"))
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "cannot read neural model")

	bad := filepath.Join(t.TempDir(), "bad.json")
	test.That(t, os.WriteFile(bad, []byte("{"), 0o600), test.ShouldBeNil)
	_, err = Load(bad)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "cannot parse")
}

func TestValidate(t *testing.T) {
	for _, tc := range []struct {
		name string
		file File
		err  string
	}{
		{"zero sizes", File{}, "sizes must be positive"},
		{"row count", File{InputSize: 2, OutputSize: 1, Weights: [][]float64{{1}}}, "1 weight rows"},
		{"column count", File{InputSize: 1, OutputSize: 2, Weights: [][]float64{{1}}}, "row 0 has 1 columns"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			_, err := New(&tc.file)
			test.That(t, err, test.ShouldNotBeNil)
			test.That(t, err.Error(), test.ShouldContainSubstring, tc.err)
		})
	}
}

func TestInfer(t *testing.T) {
	m, err := New(&File{
		InputSize:      3,
		OutputSize:     3,
		SpikeThreshold: 0.5,
		Weights:        [][]float64{{1, 0, -1}, {0, 1, 0}, {0, 0, 1}},
	})
	test.That(t, err, test.ShouldBeNil)

	// a short scan is zero padded
	out, err := m.Infer(context.Background(), decision.Input{Ranges: []float64{2, 0.4}})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, out, test.ShouldResemble, []float64{1, 0, 0})

	// extra ranges beyond the input size are ignored
	out, err = m.Infer(context.Background(), decision.Input{Ranges: []float64{0.1, 0.9, 3, 100}})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, out, test.ShouldResemble, []float64{0, 1, 1})

	_, err = m.Infer(context.Background(), decision.Input{})
	test.That(t, err, test.ShouldNotBeNil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = m.Infer(ctx, decision.Input{Ranges: []float64{1}})
	test.That(t, err, test.ShouldEqual, context.Canceled)
}
