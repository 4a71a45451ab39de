// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package activations builds activation functions for network layers by name.
//
// Activations are normally constructed with Build, given one of:
//
//   - A stateless key (see FunctionKeys): "tanh", "logistic" (or "sigmoid"), "softmax", "linear",
//     "softplus", "relu", "rect:max", "rect:minmax", or one of the batch normalization variants
//     "norm:mean", "norm:max", "norm:std" and "norm:z" (all normalizing over the last axis).
//   - The key of a registered parametric variant (see VariantKeys), like "prelu" (or its alias
//     "leaky-relu"), "lgrelu" (or "leaky-gain-relu") and "maxout".
//   - A "+"-joined chain of the above, applied left to right: "norm:z+tanh" normalizes first.
//
// Parametric variants own learnable variables, created in the layer's context scope at build time.
// Optimizers are expected to update their values with context.Variable.SetValue, but never to replace
// the variables themselves: the activation keeps a reference to them and reads the current value
// every time it is applied to a graph.
package activations

import (
	"slices"

	"github.com/gomlx/gomlx/pkg/core/dtypes"
	"github.com/gomlx/gomlx/pkg/core/graph"
	"github.com/gomlx/gomlx/pkg/ml/context"
)

// Activation is a (possibly learnable) function applied to the pre-activation output of a layer.
type Activation interface {
	// Name identifies the activation in diagnostics. For compositions it is "outer(inner)".
	Name() string

	// Apply builds the activation's computation on x, typically shaped [batchSize..., layerSize].
	Apply(x *graph.Node) *graph.Node

	// Params returns the learnable variables of the activation, in a fixed order.
	// Stateless activations return an empty list.
	Params() []*context.Variable
}

// Layer is what an activation needs to know about the layer hosting it.
type Layer interface {
	// Name of the layer, used for diagnostics only.
	Name() string

	// Size is the number of units of the layer: per-unit parameters are shaped [Size()].
	Size() int

	// DType of the learnable variables: it must be a Float32 or Float64.
	DType() dtypes.DType

	// Context scoped to the layer. Learnable variables are created in its scope, which makes their
	// names unique across the network.
	Context() *context.Context
}

// function is an activation without learnable parameters.
type function struct {
	name string
	fn   func(x *graph.Node) *graph.Node
}

func (f *function) Name() string                   { return f.name }
func (f *function) Apply(x *graph.Node) *graph.Node { return f.fn(x) }
func (f *function) Params() []*context.Variable     { return nil }

// composition applies inner and then outer.
type composition struct {
	name         string
	inner, outer Activation
	params       []*context.Variable
}

// Compose returns an activation that applies a and then b, that is x -> b(a(x)).
//
// Its name is "b(a)" and its parameters are those of a followed by those of b.
// Neither a nor b are changed.
func Compose(a, b Activation) Activation {
	params := slices.Clone(a.Params())
	params = append(params, b.Params()...)
	return &composition{
		name:   b.Name() + "(" + a.Name() + ")",
		inner:  a,
		outer:  b,
		params: params,
	}
}

func (c *composition) Name() string { return c.name }

func (c *composition) Apply(x *graph.Node) *graph.Node {
	return c.outer.Apply(c.inner.Apply(x))
}

func (c *composition) Params() []*context.Variable { return slices.Clone(c.params) }
