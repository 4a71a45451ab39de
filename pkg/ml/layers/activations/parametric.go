// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package activations

import (
	"reflect"
	"slices"

	"github.com/gomlx/gomlx/pkg/core/graph"
	"github.com/gomlx/gomlx/pkg/ml/context"
)

const (
	// LeakInit is the initial value of the leak of "prelu" and "lgrelu".
	LeakInit = 0.1

	// GainInit is the initial value of the gain of "lgrelu".
	GainInit = 1.0

	// MaxoutInit is the initial value of both the slopes and the intercepts of "maxout".
	MaxoutInit = 1.0
)

func init() {
	MustRegister(Variant{
		Type:    reflect.TypeFor[Prelu](),
		Aliases: []string{"leaky-relu"},
		New:     NewPrelu,
	})
	MustRegister(Variant{
		Type:    reflect.TypeFor[LGrelu](),
		Aliases: []string{"leaky-gain-relu"},
		New:     NewLGrelu,
	})
	MustRegister(Variant{
		Type:     reflect.TypeFor[Maxout](),
		Requires: []Requirement{PositiveInt(KeyPieces)},
		New:      NewMaxout,
	})
}

// paramValue returns the value of v in x's graph, converted to x's dtype and with its rank
// expanded on the left to rank.
func paramValue(v *context.Variable, x *graph.Node, rank int) *graph.Node {
	value := v.ValueGraph(x.Graph())
	if value.DType() != x.DType() {
		value = graph.ConvertDType(value, x.DType())
	}
	return graph.ExpandLeftToRank(value, rank)
}

// Prelu is a rectifier with a learnable leak per unit: x for x > 0 and leak*x otherwise.
//
// It is registered as "prelu", with alias "leaky-relu".
type Prelu struct {
	name string
	leak *context.Variable
}

// NewPrelu creates the "leak" variable, shaped [layer.Size()] and initialized to LeakInit.
func NewPrelu(name string, layer Layer, _ Config, vars *Vars) (Activation, error) {
	return &Prelu{
		name: name,
		leak: vars.New("leak", LeakInit, layer.Size()),
	}, nil
}

func (p *Prelu) Name() string { return p.name }

// Leak variable.
func (p *Prelu) Leak() *context.Variable { return p.leak }

func (p *Prelu) Params() []*context.Variable { return []*context.Variable{p.leak} }

// Apply returns relu(x) + leak * (x - |x|) / 2.
func (p *Prelu) Apply(x *graph.Node) *graph.Node {
	leak := paramValue(p.leak, x, x.Rank())
	return graph.Add(Relu(x), graph.Mul(leak, negativePart(x)))
}

// LGrelu is a rectifier with a learnable gain for the positive part and a learnable leak
// for the negative part, both per unit.
//
// It is registered as "lgrelu", with alias "leaky-gain-relu".
type LGrelu struct {
	name       string
	gain, leak *context.Variable
}

// NewLGrelu creates the "gain" (initialized to GainInit) and "leak" (initialized to LeakInit) variables,
// in this order, both shaped [layer.Size()].
func NewLGrelu(name string, layer Layer, _ Config, vars *Vars) (Activation, error) {
	lg := &LGrelu{name: name}
	lg.gain = vars.New("gain", GainInit, layer.Size())
	lg.leak = vars.New("leak", LeakInit, layer.Size())
	return lg, nil
}

func (lg *LGrelu) Name() string { return lg.name }

// Gain variable.
func (lg *LGrelu) Gain() *context.Variable { return lg.gain }

// Leak variable.
func (lg *LGrelu) Leak() *context.Variable { return lg.leak }

// Params returns gain and leak, in this order.
func (lg *LGrelu) Params() []*context.Variable { return []*context.Variable{lg.gain, lg.leak} }

// Apply returns gain * relu(x) + leak * (x - |x|) / 2.
func (lg *LGrelu) Apply(x *graph.Node) *graph.Node {
	gain := paramValue(lg.gain, x, x.Rank())
	leak := paramValue(lg.leak, x, x.Rank())
	return graph.Add(
		graph.Mul(gain, Relu(x)),
		graph.Mul(leak, negativePart(x)))
}

// Maxout is a learnable piecewise-linear activation: each unit i outputs
// max_k(slope[i, k] * x_i + intercept[k]).
//
// The intercept is shared by all units, while the slope is per unit and per piece.
//
// It is registered as "maxout", and it requires the configuration KeyPieces.
type Maxout struct {
	name             string
	pieces           int
	slope, intercept *context.Variable
}

// NewMaxout creates the "slope" variable, shaped [layer.Size(), pieces], and the "intercept" variable,
// shaped [pieces], both initialized to MaxoutInit.
func NewMaxout(name string, layer Layer, cfg Config, vars *Vars) (Activation, error) {
	pieces, err := cfg.Int(KeyPieces)
	if err != nil {
		return nil, err
	}
	return &Maxout{
		name:      name,
		pieces:    pieces,
		slope:     vars.New("slope", MaxoutInit, layer.Size(), pieces),
		intercept: vars.New("intercept", MaxoutInit, pieces),
	}, nil
}

func (m *Maxout) Name() string { return m.name }

// Pieces is the number of linear pieces per unit.
func (m *Maxout) Pieces() int { return m.pieces }

// Slope variable.
func (m *Maxout) Slope() *context.Variable { return m.slope }

// Intercept variable.
func (m *Maxout) Intercept() *context.Variable { return m.intercept }

// Params returns slope and intercept, in this order.
func (m *Maxout) Params() []*context.Variable { return []*context.Variable{m.slope, m.intercept} }

// Apply broadcasts x to a new trailing axis of m.Pieces() elements, applies each piece
// and takes the maximum over the pieces.
func (m *Maxout) Apply(x *graph.Node) *graph.Node {
	rank := x.Rank()
	dims := append(slices.Clone(x.Shape().Dimensions), m.pieces)
	xPieces := graph.BroadcastToDims(graph.InsertAxes(x, -1), dims...)
	y := graph.Add(
		graph.Mul(xPieces, paramValue(m.slope, x, rank+1)),
		paramValue(m.intercept, x, rank+1))
	return graph.ReduceMax(y, rank)
}
