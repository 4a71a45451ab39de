// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package layers

import (
	"math"
	"math/rand/v2"
	"slices"

	"github.com/gomlx/activations/pkg/ml/layers/activations"
	"github.com/gomlx/exceptions"
	"github.com/gomlx/gomlx/pkg/core/dtypes"
	"github.com/gomlx/gomlx/pkg/core/graph"
	"github.com/gomlx/gomlx/pkg/core/tensors"
	"github.com/gomlx/gomlx/pkg/ml/context"
	"github.com/gomlx/gomlx/pkg/ml/nn"
	"github.com/pkg/errors"
)

// Dense is a linear transformation followed by an activation: activation(x @ weights + biases).
//
// It is also an activations.Layer, so the activation's learnable variables are created in the same
// scope as the weights.
type Dense struct {
	*Host

	inputDim        int
	weights, biases *context.Variable
	activation      activations.Activation
}

// NewDense creates a dense layer taking inputs with last axis of dimension inputDim, and outputting host.Size()
// features transformed by the activation spec (see activations.Build).
//
// The "weights" are initialized with a Glorot uniform distribution drawn from a generator seeded with seed,
// and the "biases" are initialized with zeros.
//
// The activation is built first, so if it fails no variables are created.
func NewDense(host *Host, inputDim int, spec any, cfg activations.Config, seed uint64) (*Dense, error) {
	if inputDim <= 0 {
		return nil, errors.Errorf("layer %q: invalid input dimension %d", host.Name(), inputDim)
	}
	if dtype := host.DType(); dtype != dtypes.Float32 && dtype != dtypes.Float64 {
		return nil, errors.Errorf("layer %q: dtype must be Float32 or Float64, got %s", host.Name(), dtype)
	}
	act, err := activations.Build(spec, host, cfg)
	if err != nil {
		return nil, errors.WithMessagef(err, "layer %q", host.Name())
	}
	d := &Dense{Host: host, inputDim: inputDim, activation: act}
	ctx := host.Context()
	err = exceptions.TryCatch[error](func() {
		d.weights = ctx.VariableWithValue("weights", glorotUniform(host.DType(), seed, inputDim, host.Size()))
		d.biases = ctx.VariableWithValue("biases", zeros(host.DType(), host.Size()))
	})
	if err != nil {
		return nil, errors.WithMessagef(err, "layer %q", host.Name())
	}
	return d, nil
}

// InputDim is the dimension of the last axis of the inputs.
func (d *Dense) InputDim() int { return d.inputDim }

// Weights variable, shaped [inputDim, size].
func (d *Dense) Weights() *context.Variable { return d.weights }

// Biases variable, shaped [size].
func (d *Dense) Biases() *context.Variable { return d.biases }

// ActivationFn returns the activation applied after the linear transformation.
func (d *Dense) ActivationFn() activations.Activation { return d.activation }

// Params returns the weights, the biases and then the parameters of the activation.
func (d *Dense) Params() []*context.Variable {
	return slices.Concat([]*context.Variable{d.weights, d.biases}, d.activation.Params())
}

// Apply the layer to x, shaped [batchSize..., inputDim]. The output is shaped [batchSize..., size].
func (d *Dense) Apply(x *graph.Node) *graph.Node {
	g := x.Graph()
	weights, biases := d.weights.ValueGraph(g), d.biases.ValueGraph(g)
	if weights.DType() != x.DType() {
		weights = graph.ConvertDType(weights, x.DType())
		biases = graph.ConvertDType(biases, x.DType())
	}
	return d.activation.Apply(nn.Dense(x, weights, biases))
}

// glorotUniform samples U(-limit, limit), limit = sqrt(6 / (fanIn + fanOut)).
func glorotUniform(dtype dtypes.DType, seed uint64, fanIn, fanOut int) *tensors.Tensor {
	limit := math.Sqrt(6.0 / float64(fanIn+fanOut))
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	values := make([]float64, fanIn*fanOut)
	for i := range values {
		values[i] = (2*rng.Float64() - 1) * limit
	}
	return fromFlat(dtype, values, fanIn, fanOut)
}

func zeros(dtype dtypes.DType, dims ...int) *tensors.Tensor {
	size := 1
	for _, dim := range dims {
		size *= dim
	}
	return fromFlat(dtype, make([]float64, size), dims...)
}

func fromFlat(dtype dtypes.DType, values []float64, dims ...int) *tensors.Tensor {
	if dtype == dtypes.Float64 {
		return tensors.FromFlatDataAndDimensions(values, dims...)
	}
	values32 := make([]float32, len(values))
	for i, v := range values {
		values32[i] = float32(v)
	}
	return tensors.FromFlatDataAndDimensions(values32, dims...)
}
