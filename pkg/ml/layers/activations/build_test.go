// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package activations

import (
	"testing"

	"github.com/gomlx/gomlx/pkg/core/dtypes"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

func TestBuildChain(t *testing.T) {
	act, err := Build("tanh+relu", nil, nil)
	require.NoError(t, err)
	require.Equal(t, "relu(tanh)", act.Name())
	require.Empty(t, act.Params())

	x := []float32{-2, -1, -0.25, 0, 0.25, 1, 2}
	got := apply(t, nil, act, x)
	want := apply(t, nil, MustBuild("relu", nil, nil), apply(t, nil, MustBuild("tanh", nil, nil), x))
	require.InDeltaSlice(t, want, got, delta)

	act = MustBuild("norm:z+tanh+linear", nil, nil)
	require.Equal(t, "linear(tanh(norm:z))", act.Name())
}

func TestBuildChainOfVariants(t *testing.T) {
	layer := newTestLayer("hidden", 4)
	act, err := Build("lgrelu+prelu", layer, nil)
	require.NoError(t, err)
	require.Equal(t, "prelu(lgrelu)", act.Name())
	require.Equal(t, []string{"gain", "leak", "leak2"}, paramNames(act))
	for _, v := range act.Params() {
		require.Equal(t, "/hidden", v.Scope())
		require.Equal(t, []int{4}, v.Shape().Dimensions)
	}
	require.Equal(t, 3, layer.ctx.NumVariables())

	// Names are unique across the network, since they are created in the layer scope.
	other := newTestLayer("output", 4)
	other.ctx = layer.ctx.In("output")
	prelu := MustBuild("prelu", other, nil)
	require.Equal(t, "/hidden/output", prelu.Params()[0].Scope())
	require.NotEqual(t, act.Params()[1].ScopeAndName(), prelu.Params()[0].ScopeAndName())
}

func TestBuildAgainInSameScope(t *testing.T) {
	layer := newTestLayer("dense", 2)
	first := MustBuild("prelu", layer, nil)
	second := MustBuild("prelu", layer, nil)
	require.Equal(t, []string{"leak"}, paramNames(first))
	require.Equal(t, []string{"leak2"}, paramNames(second))
	require.NotSame(t, first.Params()[0], second.Params()[0])
}

func TestBuildUnknown(t *testing.T) {
	layer := newTestLayer("dense", 3)
	for _, spec := range []string{"bogus", "tanh+bogus", "lgrelu+bogus", "prelu+maxout+bogus", "Relu", "", "tanh+"} {
		act, err := Build(spec, layer, Config{KeyPieces: 2})
		require.Error(t, err, "spec %q", spec)
		require.Nil(t, act)
		require.ErrorIs(t, err, ErrUnknownActivation, "spec %q", spec)
		require.Zero(t, layer.ctx.NumVariables(), "spec %q must not create variables", spec)
	}

	_, err := Build("tanh+bogus", layer, nil)
	var unknown *UnknownError
	require.True(t, errors.As(err, &unknown))
	require.Equal(t, "bogus", unknown.Key)
	require.Contains(t, err.Error(), `"bogus"`)

	require.Panics(t, func() { MustBuild("bogus", layer, nil) })
}

func TestBuildChainIgnoresConfig(t *testing.T) {
	layer := newTestLayer("dense", 3)
	_, err := Build("prelu+maxout", layer, Config{KeyPieces: 2})
	require.ErrorIs(t, err, ErrConfig)
	require.Zero(t, layer.ctx.NumVariables())

	act, err := Build("maxout", layer, Config{KeyPieces: 2})
	require.NoError(t, err)
	require.Equal(t, "maxout", act.Name())
}

func TestBuildPassThrough(t *testing.T) {
	layer := newTestLayer("dense", 3)
	prelu := MustBuild("leaky-relu", layer, nil)
	act, err := Build(prelu, nil, Config{"ignored": true})
	require.NoError(t, err)
	require.Same(t, prelu, act)
	require.Equal(t, 1, layer.ctx.NumVariables())

	_, err = Build(42, layer, nil)
	require.ErrorIs(t, err, ErrConfig)
}

func TestBuildInvalidLayer(t *testing.T) {
	_, err := Build("prelu", nil, nil)
	require.ErrorIs(t, err, ErrConfig)

	layer := newTestLayer("dense", 0)
	_, err = Build("prelu", layer, nil)
	require.ErrorIs(t, err, ErrConfig)

	layer = newTestLayer("dense", 3)
	layer.dtype = dtypes.Int32
	_, err = Build("relu+prelu", layer, nil)
	require.ErrorIs(t, err, ErrConfig)
	require.Zero(t, layer.ctx.NumVariables())

	// Stateless activations don't need a layer.
	_, err = Build("relu", layer, nil)
	require.NoError(t, err)
}

func TestBuildWithRegistry(t *testing.T) {
	r := NewRegistry()
	r.MustRegister(Variant{Type: typeOfPiecewiseLinear, New: newPiecewiseLinear})

	layer := newTestLayer("dense", 2)
	act, err := r.Build("tanh+piecewise-linear", layer, nil)
	require.NoError(t, err)
	require.Equal(t, "piecewise-linear(tanh)", act.Name())
	require.Equal(t, []string{"scale"}, paramNames(act))

	// The default registry doesn't know about it.
	_, err = Build("piecewise-linear", layer, nil)
	require.ErrorIs(t, err, ErrUnknownActivation)

	// And the custom registry doesn't know about the default variants.
	_, err = r.Build("prelu", layer, nil)
	require.ErrorIs(t, err, ErrUnknownActivation)
}

func TestBuildConstructorPanic(t *testing.T) {
	r := NewRegistry()
	r.MustRegister(Variant{
		Type: typeOfPiecewiseLinear,
		New: func(name string, layer Layer, cfg Config, vars *Vars) (Activation, error) {
			// Creating a variable twice with the same name in a checked context panics.
			layer.Context().VariableWithValue("w", float32(0))
			layer.Context().VariableWithValue("w", float32(0))
			return nil, nil
		},
	})
	_, err := r.Build("piecewise-linear", newTestLayer("dense", 2), nil)
	require.Error(t, err)
	require.Contains(t, err.Error(), `"piecewise-linear"`)
}

func TestBuildFloat64(t *testing.T) {
	layer := newTestLayer("dense", 2)
	layer.dtype = dtypes.Float64
	act := MustBuild("prelu", layer, nil)
	require.Equal(t, dtypes.Float64, act.Params()[0].DType())
	got := apply(t, layer.ctx, act, [][]float32{{-10, 10}})
	require.InDeltaSlice(t, []float32{-1, 10}, got, delta)
}
