// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	lgtable "github.com/charmbracelet/lipgloss/table"
	"github.com/dustin/go-humanize"
	"github.com/gomlx/activations/pkg/ml/layers"
	"github.com/gomlx/activations/pkg/ml/layers/activations"
	"github.com/gomlx/gomlx/pkg/core/tensors"
)

// maxValuesShown per variable in the params table.
const maxValuesShown = 8

var (
	headerRowStyle = lipgloss.NewStyle().Reverse(true).
			Padding(0, 2, 0, 2).Align(lipgloss.Center)
	oddRowStyle = lipgloss.NewStyle().Faint(false).
			PaddingLeft(1).PaddingRight(1)
	evenRowStyle = lipgloss.NewStyle().Faint(true).
			PaddingLeft(1).PaddingRight(1)

	titleStyle = lipgloss.NewStyle().Bold(true).Padding(1, 4, 0, 4)
)

func newPlainTable(alignments ...lipgloss.Position) *lgtable.Table {
	return lgtable.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("99"))).
		StyleFunc(func(row, col int) (s lipgloss.Style) {
			switch {
			case row < 0:
				return headerRowStyle
			case row%2 == 0:
				s = oddRowStyle
			default:
				s = evenRowStyle
			}
			alignment := lipgloss.Left
			if col < len(alignments) {
				alignment = alignments[col]
			} else if len(alignments) > 0 {
				alignment = alignments[len(alignments)-1]
			}
			return s.Align(alignment)
		})
}

func listActivations() {
	fmt.Println(titleStyle.Render("Activations"))
	table := newPlainTable(lipgloss.Right, lipgloss.Left).Headers("Key", "Kind")
	for _, key := range activations.FunctionKeys() {
		table.Row(key, "stateless")
	}
	for _, key := range activations.VariantKeys() {
		variant, _ := activations.LookupVariant(key)
		kind := "parametric"
		if variant.Key() != key {
			kind = fmt.Sprintf("parametric, alias of %q", variant.Key())
		}
		var required []string
		for _, req := range variant.Requires {
			required = append(required, req.Key)
		}
		if len(required) > 0 {
			kind += ", requires " + strings.Join(required, ", ")
		}
		table.Row(key, kind)
	}
	fmt.Println(table.Render())
}

func summaryTable(act activations.Activation, host *layers.Host, collection *layers.Collection) *lgtable.Table {
	table := newPlainTable(lipgloss.Right, lipgloss.Left)
	table.Row("activation", act.Name())
	table.Row("layer", fmt.Sprintf("%s (%s)", host.Name(), host.Context().Scope()))
	table.Row("size", humanize.Comma(int64(host.Size())))
	table.Row("dtype", host.DType().String())
	table.Row("# variables", humanize.Comma(int64(collection.Len())))
	table.Row("# parameters", humanize.Comma(int64(collection.NumValues())))
	table.Row("# bytes", humanize.Bytes(uint64(collection.Bytes())))
	return table
}

func paramsTable(collection *layers.Collection) *lgtable.Table {
	table := newPlainTable(lipgloss.Left, lipgloss.Left, lipgloss.Right, lipgloss.Right, lipgloss.Left).
		Headers("Parameter", "Shape", "Size", "Bytes", "Values")
	for _, v := range collection.Variables() {
		shape := v.Shape()
		table.Row(
			v.ParameterName(),
			shape.String(),
			humanize.Comma(int64(shape.Size())),
			humanize.Bytes(uint64(shape.Memory())),
			valuesPreview(v.MustValue()),
		)
	}
	return table
}

func valuesPreview(t *tensors.Tensor) string {
	var values []string
	switch flat := t.Value().(type) {
	default:
		return t.String()
	case []float32:
		for _, v := range flat {
			values = append(values, fmt.Sprintf("%.4g", v))
		}
	case [][]float32:
		for _, row := range flat {
			for _, v := range row {
				values = append(values, fmt.Sprintf("%.4g", v))
			}
		}
	}
	if len(values) > maxValuesShown {
		values = append(values[:maxValuesShown], "…")
	}
	return strings.Join(values, " ")
}

func responseTable(xs []float64, ys [][]float32) *lgtable.Table {
	headers := []string{"x"}
	for unit := range ys[0] {
		headers = append(headers, fmt.Sprintf("unit %d", unit))
	}
	table := newPlainTable(lipgloss.Right).Headers(headers...)
	for i, x := range xs {
		row := []string{fmt.Sprintf("%.4g", x)}
		for _, y := range ys[i] {
			row = append(row, fmt.Sprintf("%.5g", y))
		}
		table.Row(row...)
	}
	return table
}
