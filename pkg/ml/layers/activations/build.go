// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package activations

import (
	"fmt"
	"strings"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/gomlx/pkg/core/dtypes"
	"github.com/gomlx/gomlx/pkg/core/tensors"
	"github.com/gomlx/gomlx/pkg/ml/context"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// ChainSeparator joins the keys of activations to be composed, e.g. "norm:z+tanh".
const ChainSeparator = "+"

// Build resolves spec into an Activation for layer, using the DefaultRegistry.
//
// spec can be:
//
//   - An Activation: it is returned as is, cfg and layer are ignored.
//   - A key (case-sensitive): the stateless functions are searched first, then the registered variants.
//     Variants are constructed with cfg, and create their learnable variables in layer's context.
//   - A ChainSeparator-joined list of keys: each is built (without cfg) and they are composed left to right,
//     so "a+b" applies a and then b, and is named "b(a)".
//
// All keys are resolved, and the configuration of all the variants is validated, before any variable
// is created. So on error no variable is left behind in the context.
func Build(spec any, layer Layer, cfg Config) (Activation, error) {
	return DefaultRegistry.Build(spec, layer, cfg)
}

// MustBuild is like Build, but panics on error.
func MustBuild(spec any, layer Layer, cfg Config) Activation {
	act, err := Build(spec, layer, cfg)
	if err != nil {
		panic(err)
	}
	return act
}

// Build is like the package level Build, but resolves the variants with this registry.
func (r *Registry) Build(spec any, layer Layer, cfg Config) (Activation, error) {
	switch s := spec.(type) {
	case Activation:
		return s, nil
	case string:
		return r.buildKeys(s, layer, cfg)
	default:
		return nil, errors.Wrapf(ErrConfig, "activation spec must be a string or an Activation, got %T", spec)
	}
}

// resolved is either a stateless function or a variant.
type resolved struct {
	key     string
	fn      *function
	variant *Variant
}

func (r *Registry) buildKeys(spec string, layer Layer, cfg Config) (Activation, error) {
	keys := []string{spec}
	if strings.Contains(spec, ChainSeparator) {
		keys = strings.Split(spec, ChainSeparator)
		cfg = nil
	}

	// Resolve and validate everything first.
	parts := make([]resolved, 0, len(keys))
	hasVariant := false
	for _, key := range keys {
		if fn, found := functions[key]; found {
			parts = append(parts, resolved{key: key, fn: &function{name: key, fn: fn}})
			continue
		}
		variant, found := r.Lookup(key)
		if !found {
			return nil, &UnknownError{Key: key}
		}
		parts = append(parts, resolved{key: key, variant: variant})
		hasVariant = true
	}
	for _, part := range parts {
		if part.variant == nil {
			continue
		}
		if err := part.variant.validate(cfg); err != nil {
			return nil, err
		}
	}
	if hasVariant {
		if err := validateLayer(layer); err != nil {
			return nil, err
		}
	}

	vars := newVars(layer)
	var act Activation
	for _, part := range parts {
		var next Activation
		if part.fn != nil {
			next = part.fn
		} else {
			var err error
			next, err = construct(part, layer, cfg, vars)
			if err != nil {
				return nil, err
			}
		}
		if act == nil {
			act = next
		} else {
			act = Compose(act, next)
		}
	}
	if klog.V(2).Enabled() {
		klog.Infof("activations: built %q for layer %s with %d learnable variables", act.Name(), layerName(layer), len(act.Params()))
	}
	return act, nil
}

// construct calls the variant constructor, converting panics (e.g. from the context) to errors.
func construct(part resolved, layer Layer, cfg Config, vars *Vars) (act Activation, err error) {
	caught := exceptions.TryCatch[error](func() {
		act, err = part.variant.New(part.key, layer, cfg, vars)
	})
	if caught != nil {
		err = caught
	}
	if err != nil {
		return nil, errors.WithMessagef(err, "failed to build activation %q for layer %s", part.key, layerName(layer))
	}
	return act, nil
}

func validateLayer(layer Layer) error {
	if layer == nil {
		return errors.Wrap(ErrConfig, "parametric activations require a layer")
	}
	if layer.Size() <= 0 {
		return errors.Wrapf(ErrConfig, "layer %s has invalid size %d", layer.Name(), layer.Size())
	}
	if dtype := layer.DType(); dtype != dtypes.Float32 && dtype != dtypes.Float64 {
		return errors.Wrapf(ErrConfig, "layer %s has dtype %s, parametric activations require Float32 or Float64", layer.Name(), dtype)
	}
	if layer.Context() == nil {
		return errors.Wrapf(ErrConfig, "layer %s has no context", layer.Name())
	}
	return nil
}

func layerName(layer Layer) string {
	if layer == nil {
		return "<nil>"
	}
	return fmt.Sprintf("%q", layer.Name())
}

// Vars creates the learnable variables of the activations of one Build call.
//
// Variables are created in the layer's context scope. Repeated names get a numeric suffix ("leak",
// "leak2", ...), so two variants with a parameter of the same name can be chained, and building
// again in the same scope doesn't clash with existing variables.
type Vars struct {
	layer Layer
	used  map[string]int
}

func newVars(layer Layer) *Vars {
	return &Vars{layer: layer, used: make(map[string]int)}
}

// New creates a trainable variable shaped dims, with the layer's dtype and all values set to fill.
func (vs *Vars) New(name string, fill float64, dims ...int) *context.Variable {
	ctx := vs.layer.Context()
	uniqueName := vs.uniqueName(ctx, name)
	return ctx.VariableWithValue(uniqueName, filled(vs.layer.DType(), fill, dims...))
}

func (vs *Vars) uniqueName(ctx *context.Context, name string) string {
	for {
		vs.used[name]++
		candidate := name
		if n := vs.used[name]; n > 1 {
			candidate = fmt.Sprintf("%s%d", name, n)
		}
		if ctx.GetVariableByScopeAndName(ctx.Scope(), candidate) == nil {
			return candidate
		}
	}
}

func filled(dtype dtypes.DType, value float64, dims ...int) *tensors.Tensor {
	if dtype == dtypes.Float64 {
		return tensors.FromScalarAndDimensions(value, dims...)
	}
	return tensors.FromScalarAndDimensions(float32(value), dims...)
}
