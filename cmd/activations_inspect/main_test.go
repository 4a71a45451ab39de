// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gomlx/activations/pkg/ml/layers"
	"github.com/gomlx/activations/pkg/ml/layers/activations"
	"github.com/gomlx/gomlx/backends/simplego"
	"github.com/gomlx/gomlx/pkg/ml/context"
	"github.com/janpfeifer/must"
	"github.com/stretchr/testify/require"
)

func TestLinspace(t *testing.T) {
	require.Equal(t, []float64{-1, -0.5, 0, 0.5, 1}, linspace(-1, 1, 5))
	require.Equal(t, []float64{0, 3}, linspace(0, 3, 2))
}

func TestEvaluate(t *testing.T) {
	backend := must.M1(simplego.New(""))
	defer backend.Finalize()

	ctx := context.New()
	host := layers.NewHost(ctx, layerName, 2)
	act := must.M1(host.Activation("maxout", activations.Config{activations.KeyPieces: 2}))
	xs := linspace(-2, 2, 5)
	ys, err := evaluate(backend, ctx, act, xs, host.Size())
	require.NoError(t, err)
	require.Len(t, ys, 5)
	for i, x := range xs {
		require.Len(t, ys[i], 2)
		// Initial maxout pieces are all x+1.
		require.InDelta(t, x+1, float64(ys[i][0]), 1e-5)
		require.InDelta(t, x+1, float64(ys[i][1]), 1e-5)
	}

	collection := layers.NewCollection()
	require.NoError(t, collection.AddActivation(act))
	rendered := paramsTable(collection).Render()
	require.Contains(t, rendered, "var:/inspect/slope")
	require.Contains(t, rendered, "var:/inspect/intercept")
	require.Contains(t, summaryTable(act, host, collection).Render(), "maxout")
	require.Contains(t, responseTable(xs, ys).Render(), "unit 1")
}

func TestExport(t *testing.T) {
	dir := t.TempDir()
	xs := []float64{-1, 0, 1}
	ys := [][]float32{{0, -0.1}, {0, 0}, {1, 1}}

	csvPath := filepath.Join(dir, "response.csv")
	require.NoError(t, writeCSV(csvPath, xs, ys))
	contents := string(must.M1(os.ReadFile(csvPath)))
	lines := strings.Split(strings.TrimSpace(contents), "\n")
	require.Len(t, lines, 4)
	require.Equal(t, "x,unit_0,unit_1", lines[0])
	require.True(t, strings.HasPrefix(lines[1], "-1"))

	plotPath := filepath.Join(dir, "response.png")
	require.NoError(t, plotResponse(plotPath, "prelu", xs, ys))
	info, err := os.Stat(plotPath)
	require.NoError(t, err)
	require.Positive(t, info.Size())
}
