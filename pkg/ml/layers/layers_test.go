// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package layers

import (
	"math"
	"strings"
	"sync"
	"testing"

	"github.com/gomlx/activations/pkg/ml/layers/activations"
	"github.com/gomlx/gomlx/backends"
	"github.com/gomlx/gomlx/backends/simplego"
	"github.com/gomlx/gomlx/pkg/core/dtypes"
	"github.com/gomlx/gomlx/pkg/core/graph"
	"github.com/gomlx/gomlx/pkg/core/tensors"
	"github.com/gomlx/gomlx/pkg/ml/context"
	"github.com/janpfeifer/must"
	"github.com/stretchr/testify/require"
)

var (
	backendOnce sync.Once
	testBackend backends.Backend
)

func backend(t *testing.T) backends.Backend {
	t.Helper()
	backendOnce.Do(func() {
		testBackend = must.M1(simplego.New(""))
	})
	return testBackend
}

func TestHost(t *testing.T) {
	ctx := context.New()
	host := NewHost(ctx, "hidden", 4)
	require.Equal(t, "hidden", host.Name())
	require.Equal(t, 4, host.Size())
	require.Equal(t, dtypes.Float32, host.DType())
	require.Equal(t, "/hidden", host.Context().Scope())
	require.Equal(t, dtypes.Float64, host.WithDType(dtypes.Float64).DType())

	anonymous := NewHost(ctx, "", 2)
	require.True(t, strings.HasPrefix(anonymous.Name(), "layer_uuid_"))
	require.NotEqual(t, anonymous.Name(), NewHost(ctx, "", 2).Name())

	act, err := host.Activation("prelu", nil)
	require.NoError(t, err)
	require.Equal(t, "/hidden", act.Params()[0].Scope())
	require.Equal(t, dtypes.Float64, act.Params()[0].DType())
}

func TestHostActivationFromContext(t *testing.T) {
	ctx := context.New()
	ctx.SetParam(activations.ParamActivation, "lgrelu")
	ctx.In("out").SetParam(activations.ParamActivation, "softmax")

	act, err := NewHost(ctx, "hidden", 3).ActivationFromContext()
	require.NoError(t, err)
	require.Equal(t, "lgrelu", act.Name())
	require.Len(t, act.Params(), 2)

	act, err = NewHost(ctx, "out", 3).ActivationFromContext()
	require.NoError(t, err)
	require.Equal(t, "softmax", act.Name())
	require.Empty(t, act.Params())
}

func TestDense(t *testing.T) {
	ctx := context.New()
	dense, err := NewDense(NewHost(ctx, "dense", 3), 2, "prelu", nil, 42)
	require.NoError(t, err)
	require.Equal(t, 2, dense.InputDim())
	require.Equal(t, []int{2, 3}, dense.Weights().Shape().Dimensions)
	require.Equal(t, []int{3}, dense.Biases().Shape().Dimensions)
	require.Equal(t, "prelu", dense.ActivationFn().Name())

	params := dense.Params()
	require.Len(t, params, 3)
	require.Same(t, dense.Weights(), params[0])
	require.Same(t, dense.Biases(), params[1])
	require.Same(t, dense.ActivationFn().Params()[0], params[2])

	// Known weights: the first output is x0 + x1, the second x0 - x1, the third -x0.
	require.NoError(t, dense.Weights().SetValue(tensors.FromValue([][]float32{{1, 1, -1}, {1, -1, 0}})))
	require.NoError(t, dense.Biases().SetValue(tensors.FromValue([]float32{0, 0, 1})))
	exec := context.MustNewExec(backend(t), ctx, func(_ *context.Context, x *graph.Node) *graph.Node {
		return dense.Apply(x)
	})
	got := tensors.MustCopyFlatData[float32](exec.MustExec([][]float32{{1, 2}, {3, -5}})[0])
	// Pre-activations: [3, -1, 0], [-2, 8, -2]; prelu leaks 0.1 of the negative values.
	require.InDeltaSlice(t, []float32{3, -0.1, 0, -0.2, 8, -0.2}, got, 1e-5)

	// Batch with more axes.
	got = tensors.MustCopyFlatData[float32](exec.MustExec([][][]float32{{{1, 2}}, {{3, -5}}})[0])
	require.InDeltaSlice(t, []float32{3, -0.1, 0, -0.2, 8, -0.2}, got, 1e-5)
}

func TestDenseInitialization(t *testing.T) {
	newWeights := func(seed uint64) []float32 {
		dense, err := NewDense(NewHost(context.New(), "dense", 8), 4, "linear", nil, seed)
		require.NoError(t, err)
		return tensors.MustCopyFlatData[float32](dense.Weights().MustValue())
	}
	weights := newWeights(1)
	limit := float32(math.Sqrt(6.0 / 12.0))
	distinct := make(map[float32]bool)
	for _, w := range weights {
		require.LessOrEqual(t, w, limit)
		require.GreaterOrEqual(t, w, -limit)
		distinct[w] = true
	}
	require.Greater(t, len(distinct), 1)
	require.Equal(t, weights, newWeights(1), "same seed, same weights")
	require.NotEqual(t, weights, newWeights(2))
}

func TestDenseErrors(t *testing.T) {
	ctx := context.New()
	_, err := NewDense(NewHost(ctx, "dense", 3), 2, "bogus", nil, 0)
	require.ErrorIs(t, err, activations.ErrUnknownActivation)
	require.Zero(t, ctx.NumVariables())

	_, err = NewDense(NewHost(ctx, "dense", 3), 2, "maxout", nil, 0)
	require.ErrorIs(t, err, activations.ErrConfig)
	require.Zero(t, ctx.NumVariables())

	_, err = NewDense(NewHost(ctx, "dense", 3), 0, "relu", nil, 0)
	require.Error(t, err)
	_, err = NewDense(NewHost(ctx, "dense", 3).WithDType(dtypes.Int64), 2, "relu", nil, 0)
	require.Error(t, err)
	require.Zero(t, ctx.NumVariables())

	// A second dense layer in the same scope clashes on the weights.
	_, err = NewDense(NewHost(ctx, "dense", 3), 2, "relu", nil, 0)
	require.NoError(t, err)
	_, err = NewDense(NewHost(ctx, "dense", 3), 2, "relu", nil, 0)
	require.Error(t, err)
}

func TestCollection(t *testing.T) {
	ctx := context.New()
	hidden, err := NewDense(NewHost(ctx, "hidden", 4), 3, "lgrelu+prelu", nil, 1)
	require.NoError(t, err)
	output, err := NewDense(NewHost(ctx, "output", 2), 4, "maxout", activations.Config{activations.KeyPieces: 3}, 2)
	require.NoError(t, err)

	c := NewCollection()
	require.NoError(t, c.AddDense(hidden))
	require.NoError(t, c.AddDense(output))
	require.Equal(t, 5+4, c.Len())

	var names []string
	for _, v := range c.Variables() {
		names = append(names, v.ParameterName())
	}
	require.Equal(t, []string{
		"var:/hidden/weights", "var:/hidden/biases", "var:/hidden/gain", "var:/hidden/leak", "var:/hidden/leak2",
		"var:/output/weights", "var:/output/biases", "var:/output/slope", "var:/output/intercept",
	}, names)
	require.Equal(t, 3*4+4+4+4+4+4*2+2+2*3+3, c.NumValues())
	require.Equal(t, 4*c.NumValues(), c.Bytes())

	v, found := c.Lookup("var:/output/slope")
	require.True(t, found)
	require.Same(t, output.ActivationFn().Params()[0], v)

	// Duplicates are rejected, and nothing is added.
	err = c.AddActivation(hidden.ActivationFn())
	require.ErrorIs(t, err, ErrDuplicateParam)
	extra := activations.MustBuild("prelu", NewHost(ctx, "extra", 2), nil)
	err = c.Add(extra.Params()[0], extra.Params()[0])
	require.ErrorIs(t, err, ErrDuplicateParam)
	require.Equal(t, 9, c.Len())
	require.NoError(t, c.AddActivation(extra))
	require.Equal(t, 10, c.Len())
}
