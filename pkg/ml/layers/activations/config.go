// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package activations

import (
	"github.com/gomlx/gomlx/pkg/ml/context"
	"github.com/pkg/errors"
	"golang.org/x/exp/constraints"
)

const (
	// ParamActivation context hyperparameter defines the activation key used by BuildFromContext.
	// It can be any key accepted by Build, including "+"-joined chains.
	// The default is "relu".
	ParamActivation = "activation"

	// ParamMaxoutPieces context hyperparameter is passed as the KeyPieces configuration by BuildFromContext.
	ParamMaxoutPieces = "activation_maxout_pieces"
)

// KeyPieces is the configuration key with the number of linear pieces of the "maxout" activation.
const KeyPieces = "pieces"

// Config holds the named configuration values passed to the constructor of a parametric variant.
type Config map[string]any

// Int returns the value of key as an int. It fails with ErrConfig if the key is missing,
// if it is not of a Go integer type, or if it doesn't fit an int.
func (cfg Config) Int(key string) (int, error) {
	value, found := cfg[key]
	if !found {
		return 0, errors.Wrapf(ErrConfig, "missing required configuration %q", key)
	}
	var (
		n  int
		ok bool
	)
	switch v := value.(type) {
	case int:
		n, ok = v, true
	case int8:
		n, ok = toInt(v)
	case int16:
		n, ok = toInt(v)
	case int32:
		n, ok = toInt(v)
	case int64:
		n, ok = toInt(v)
	case uint:
		n, ok = toInt(v)
	case uint8:
		n, ok = toInt(v)
	case uint16:
		n, ok = toInt(v)
	case uint32:
		n, ok = toInt(v)
	case uint64:
		n, ok = toInt(v)
	default:
		return 0, errors.Wrapf(ErrConfig, "configuration %q must be an integer, got %T(%v)", key, value, value)
	}
	if !ok {
		return 0, errors.Wrapf(ErrConfig, "configuration %q=%v overflows int", key, value)
	}
	return n, nil
}

func toInt[T constraints.Integer](v T) (int, bool) {
	n := int(v)
	return n, T(n) == v && (n < 0) == (v < 0)
}

// Requirement is a configuration value a variant needs to be constructed.
type Requirement struct {
	Key string

	// Check validates the configuration. If nil, the key only has to be present.
	Check func(cfg Config) error
}

func (r Requirement) validate(cfg Config) error {
	if r.Check != nil {
		return r.Check(cfg)
	}
	if _, found := cfg[r.Key]; !found {
		return errors.Wrapf(ErrConfig, "missing required configuration %q", r.Key)
	}
	return nil
}

// PositiveInt requires key to be a Go integer > 0.
func PositiveInt(key string) Requirement {
	return Requirement{
		Key: key,
		Check: func(cfg Config) error {
			n, err := cfg.Int(key)
			if err != nil {
				return err
			}
			if n <= 0 {
				return errors.Wrapf(ErrConfig, "configuration %q must be a positive integer, got %d", key, n)
			}
			return nil
		},
	}
}

// ConfigFromContext collects the activation configuration hyperparameters visible from ctx's scope.
func ConfigFromContext(ctx *context.Context) Config {
	cfg := make(Config)
	if pieces, found := ctx.GetParam(ParamMaxoutPieces); found && pieces != nil {
		cfg[KeyPieces] = pieces
	}
	return cfg
}

// BuildFromContext builds the activation for layer using the hyperparameters ParamActivation
// (default "relu") and ParamMaxoutPieces found in the layer's context.
//
// The ParamActivation value can also be an Activation instance.
// Since context parameters are searched from the current scope back to the root, a network can
// set a default activation at the root scope and override it for specific layers.
func BuildFromContext(layer Layer) (Activation, error) {
	if layer == nil || layer.Context() == nil {
		return nil, errors.Wrap(ErrConfig, "BuildFromContext requires a layer with a context")
	}
	ctx := layer.Context()
	var spec any = "relu"
	if value, found := ctx.GetParam(ParamActivation); found && value != nil {
		spec = value
	}
	return Build(spec, layer, ConfigFromContext(ctx))
}
