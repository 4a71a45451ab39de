// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package layers

import (
	"slices"

	"github.com/gomlx/activations/pkg/ml/layers/activations"
	"github.com/gomlx/gomlx/pkg/ml/context"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// ErrDuplicateParam is returned by Collection.Add when a variable with the same parameter name
// was already added.
var ErrDuplicateParam = errors.New("duplicate learnable parameter")

// Collection is the ordered list of the learnable variables of a network.
//
// Variables are identified by their context.Variable.ParameterName, which includes their scope.
type Collection struct {
	vars   []*context.Variable
	byName map[string]*context.Variable
}

// NewCollection creates an empty Collection.
func NewCollection() *Collection {
	return &Collection{byName: make(map[string]*context.Variable)}
}

// Add appends params, keeping their order.
//
// If any of them has the name of a variable already in the collection, or if params repeats a name,
// it fails with ErrDuplicateParam and nothing is added.
func (c *Collection) Add(params ...*context.Variable) error {
	seen := make(map[string]bool, len(params))
	for _, v := range params {
		if v == nil {
			return errors.New("cannot add a nil variable to the collection")
		}
		name := v.ParameterName()
		if _, found := c.byName[name]; found || seen[name] {
			return errors.Wrapf(ErrDuplicateParam, "%q", name)
		}
		seen[name] = true
	}
	for _, v := range params {
		c.vars = append(c.vars, v)
		c.byName[v.ParameterName()] = v
		klog.V(2).Infof("layers: collected %s, shape=%s", v.ParameterName(), v.Shape())
	}
	return nil
}

// AddActivation appends the learnable variables of act, in order.
func (c *Collection) AddActivation(act activations.Activation) error {
	return errors.WithMessagef(c.Add(act.Params()...), "activation %q", act.Name())
}

// AddDense appends the learnable variables of the dense layer d, see Dense.Params.
func (c *Collection) AddDense(d *Dense) error {
	return errors.WithMessagef(c.Add(d.Params()...), "layer %q", d.Name())
}

// Variables returns the collected variables, in the order they were added.
func (c *Collection) Variables() []*context.Variable {
	return slices.Clone(c.vars)
}

// Lookup returns the variable with the given parameter name.
func (c *Collection) Lookup(parameterName string) (*context.Variable, bool) {
	v, found := c.byName[parameterName]
	return v, found
}

// Len returns the number of variables collected.
func (c *Collection) Len() int { return len(c.vars) }

// NumValues returns the total number of scalar values of the collected variables.
func (c *Collection) NumValues() int {
	total := 0
	for _, v := range c.vars {
		total += v.Shape().Size()
	}
	return total
}

// Bytes returns the total memory used by the values of the collected variables.
func (c *Collection) Bytes() int {
	total := 0
	for _, v := range c.vars {
		total += int(v.Shape().Memory())
	}
	return total
}
