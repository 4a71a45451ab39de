// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package layers hosts activations in network layers, and collects their learnable variables.
//
// A Host is the minimal activations.Layer: a name, a size, a dtype and a context scoped to the layer.
// Dense adds a linear transformation followed by an activation, and Collection accumulates the
// learnable variables of a network, in the order an optimizer will update them.
package layers

import (
	"fmt"

	"github.com/gomlx/activations/pkg/ml/layers/activations"
	"github.com/gomlx/gomlx/pkg/core/dtypes"
	"github.com/gomlx/gomlx/pkg/ml/context"
	"github.com/google/uuid"
)

// Host implements activations.Layer.
type Host struct {
	name  string
	size  int
	dtype dtypes.DType
	ctx   *context.Context
}

var _ activations.Layer = (*Host)(nil)

// NewHost creates a layer host of the given size, with its variables in the scope ctx.In(name).
//
// If name is empty, a unique "layer_uuid_<uuid>" name is used.
// The dtype defaults to Float32, see WithDType.
func NewHost(ctx *context.Context, name string, size int) *Host {
	if name == "" {
		name = context.EscapeScopeName(fmt.Sprintf("layer_uuid_%s", uuid.NewString()))
	}
	return &Host{
		name:  name,
		size:  size,
		dtype: dtypes.Float32,
		ctx:   ctx.In(name),
	}
}

// WithDType sets the dtype of the learnable variables. It returns the Host itself.
func (h *Host) WithDType(dtype dtypes.DType) *Host {
	h.dtype = dtype
	return h
}

func (h *Host) Name() string              { return h.name }
func (h *Host) Size() int                 { return h.size }
func (h *Host) DType() dtypes.DType       { return h.dtype }
func (h *Host) Context() *context.Context { return h.ctx }

// Activation builds the activation spec (see activations.Build) for this layer.
func (h *Host) Activation(spec any, cfg activations.Config) (activations.Activation, error) {
	return activations.Build(spec, h, cfg)
}

// ActivationFromContext builds the activation configured by the hyperparameters of the layer's context.
// See activations.BuildFromContext.
func (h *Host) ActivationFromContext() (activations.Activation, error) {
	return activations.BuildFromContext(h)
}
