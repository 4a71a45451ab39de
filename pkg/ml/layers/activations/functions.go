// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package activations

import (
	"maps"
	"slices"

	"github.com/gomlx/gomlx/pkg/core/graph"
)

// Epsilon added to the denominators of the normalizing activations.
const Epsilon = 1e-6

var functions = map[string]func(x *graph.Node) *graph.Node{
	// s-shaped
	"tanh":     graph.Tanh,
	"logistic": graph.Sigmoid,
	"sigmoid":  graph.Sigmoid,

	// softmax (typically for classification)
	"softmax": Softmax,

	// linear variants
	"linear":      Linear,
	"softplus":    Softplus,
	"relu":        Relu,
	"rect:max":    RectMax,
	"rect:minmax": RectMinMax,

	// batch normalization
	"norm:mean": NormMean,
	"norm:max":  NormMax,
	"norm:std":  NormStd,
	"norm:z":    NormZ,
}

// LookupFunction returns the stateless activation function for the exact (case-sensitive) key.
func LookupFunction(key string) (fn func(x *graph.Node) *graph.Node, found bool) {
	fn, found = functions[key]
	return
}

// FunctionKeys returns the sorted keys of the stateless activations.
func FunctionKeys() []string {
	return slices.Sorted(maps.Keys(functions))
}

// Linear is the identity.
func Linear(x *graph.Node) *graph.Node { return x }

// Relu returns the positive part of x, (x + |x|) / 2.
func Relu(x *graph.Node) *graph.Node {
	return graph.DivScalar(graph.Add(x, graph.Abs(x)), 2)
}

// negativePart returns (x - |x|) / 2, that is x for x < 0 and 0 otherwise.
func negativePart(x *graph.Node) *graph.Node {
	return graph.DivScalar(graph.Sub(x, graph.Abs(x)), 2)
}

// RectMax is a rectifier clipped from above at 1: (1 + x - |x - 1|) / 2.
//
// It returns x for x <= 1 and 1 otherwise.
func RectMax(x *graph.Node) *graph.Node {
	return graph.DivScalar(
		graph.Sub(graph.AddScalar(x, 1), graph.Abs(graph.AddScalar(x, -1))),
		2)
}

// RectMinMax clips x to [0, 1]: (1 + |x| - |x - 1|) / 2.
func RectMinMax(x *graph.Node) *graph.Node {
	return graph.DivScalar(
		graph.Sub(graph.AddScalar(graph.Abs(x), 1), graph.Abs(graph.AddScalar(x, -1))),
		2)
}

// Softplus returns log(1 + exp(x)), computed as max(x, 0) + log1p(exp(-|x|)) so it doesn't overflow
// for large x.
func Softplus(x *graph.Node) *graph.Node {
	return graph.Add(
		graph.Max(x, graph.ZerosLike(x)),
		graph.Log1p(graph.Exp(graph.Neg(graph.Abs(x)))))
}

// Softmax normalizes exp(x) over the last axis, so each row sums to 1.
//
// The row maximum is subtracted before exponentiating, which doesn't change the result.
func Softmax(x *graph.Node) *graph.Node {
	shift := graph.StopGradient(graph.ReduceAndKeep(x, graph.ReduceMax, -1))
	z := graph.Exp(graph.Sub(x, shift))
	return graph.Div(z, graph.ReduceAndKeep(z, graph.ReduceSum, -1))
}

// NormMean subtracts the mean over the last axis.
func NormMean(x *graph.Node) *graph.Node {
	return graph.Sub(x, graph.ReduceAndKeep(x, graph.ReduceMean, -1))
}

// NormMax divides by the maximum absolute value over the last axis (plus Epsilon).
func NormMax(x *graph.Node) *graph.Node {
	maxAbs := graph.ReduceAndKeep(graph.Abs(x), graph.ReduceMax, -1)
	return graph.Div(x, graph.AddScalar(maxAbs, Epsilon))
}

// NormStd divides by the standard deviation over the last axis (plus Epsilon).
func NormStd(x *graph.Node) *graph.Node {
	return graph.Div(x, graph.AddScalar(stdDev(x), Epsilon))
}

// NormZ returns the z-score over the last axis: (x - mean) / (std + Epsilon).
func NormZ(x *graph.Node) *graph.Node {
	centered := graph.Sub(x, graph.ReduceAndKeep(x, graph.ReduceMean, -1))
	return graph.Div(centered, graph.AddScalar(stdDev(x), Epsilon))
}

// stdDev is the population standard deviation over the last axis, keeping the reduced axis.
func stdDev(x *graph.Node) *graph.Node {
	centered := graph.Sub(x, graph.ReduceAndKeep(x, graph.ReduceMean, -1))
	return graph.Sqrt(graph.ReduceAndKeep(graph.Square(centered), graph.ReduceMean, -1))
}
