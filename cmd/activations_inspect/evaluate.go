// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package main

import (
	"github.com/gomlx/activations/pkg/ml/layers/activations"
	"github.com/gomlx/gomlx/backends"
	"github.com/gomlx/gomlx/pkg/core/graph"
	"github.com/gomlx/gomlx/pkg/core/tensors"
	"github.com/gomlx/gomlx/pkg/ml/context"
	"github.com/pkg/errors"
)

// linspace returns n values evenly spaced from start to end, inclusive.
func linspace(start, end float64, n int) []float64 {
	values := make([]float64, n)
	step := (end - start) / float64(n-1)
	for i := range values {
		values[i] = start + float64(i)*step
	}
	values[n-1] = end
	return values
}

// evaluate feeds every unit of the layer with each of the xs, and returns ys[point][unit].
func evaluate(backend backends.Backend, ctx *context.Context, act activations.Activation, xs []float64, size int) ([][]float32, error) {
	input := make([][]float32, len(xs))
	for i, x := range xs {
		input[i] = make([]float32, size)
		for unit := range input[i] {
			input[i][unit] = float32(x)
		}
	}
	exec, err := context.NewExec(backend, ctx, func(_ *context.Context, x *graph.Node) *graph.Node {
		return act.Apply(x)
	})
	if err != nil {
		return nil, errors.WithMessagef(err, "failed to create executor for %q", act.Name())
	}
	output, err := exec.Exec1(input)
	if err != nil {
		return nil, errors.WithMessagef(err, "failed to evaluate %q", act.Name())
	}
	flat := tensors.MustCopyFlatData[float32](output)
	ys := make([][]float32, len(xs))
	for i := range ys {
		ys[i] = flat[i*size : (i+1)*size]
	}
	return ys, nil
}
