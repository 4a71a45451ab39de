// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"os"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"github.com/pkg/errors"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
)

// responseFrame holds one row per input value: the "x" column and one "unit_<i>" column per unit.
func responseFrame(xs []float64, ys [][]float32) dataframe.DataFrame {
	columns := []series.Series{series.New(xs, series.Float, "x")}
	for unit := range ys[0] {
		values := make([]float64, len(xs))
		for i := range xs {
			values[i] = float64(ys[i][unit])
		}
		columns = append(columns, series.New(values, series.Float, fmt.Sprintf("unit_%d", unit)))
	}
	return dataframe.New(columns...)
}

func writeCSV(filePath string, xs []float64, ys [][]float32) error {
	df := responseFrame(xs, ys)
	if df.Err != nil {
		return errors.Wrap(df.Err, "failed to create data frame")
	}
	f, err := os.Create(filePath)
	if err != nil {
		return errors.Wrapf(err, "failed to create %q", filePath)
	}
	if err := df.WriteCSV(f); err != nil {
		_ = f.Close()
		return errors.Wrapf(err, "failed to write %q", filePath)
	}
	return errors.Wrapf(f.Close(), "failed to close %q", filePath)
}

func plotResponse(filePath, title string, xs []float64, ys [][]float32) error {
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "x"
	p.Y.Label.Text = "f(x)"
	p.Add(plotter.NewGrid())

	for unit := range ys[0] {
		points := make(plotter.XYs, len(xs))
		for i, x := range xs {
			points[i].X = x
			points[i].Y = float64(ys[i][unit])
		}
		line, err := plotter.NewLine(points)
		if err != nil {
			return errors.Wrapf(err, "failed to plot unit %d", unit)
		}
		line.Color = plotutil.Color(unit)
		line.Dashes = plotutil.Dashes(unit)
		p.Add(line)
		p.Legend.Add(fmt.Sprintf("unit %d", unit), line)
	}
	p.Legend.Top = true
	p.Legend.Left = true
	if err := p.Save(8*vg.Inch, 5*vg.Inch, filePath); err != nil {
		return errors.Wrapf(err, "failed to save plot to %q", filePath)
	}
	return nil
}
