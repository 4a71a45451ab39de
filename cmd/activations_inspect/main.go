// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// activations_inspect builds an activation for a layer, evaluates it over a range of inputs with the
// SimpleGo backend, and reports its learnable variables.
//
// Examples:
//
//	activations_inspect -list
//	activations_inspect -activation=norm:z+tanh -points=9
//	activations_inspect -activation=maxout -pieces=3 -size=2 -params -plot=/tmp/maxout.png
//	activations_inspect -activation=lgrelu -store=/tmp/params -half
//	activations_inspect -activation=lgrelu -store=/tmp/params -restore -csv=/tmp/lgrelu.csv
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/gomlx/activations/pkg/ml/layers"
	"github.com/gomlx/activations/pkg/ml/layers/activations"
	"github.com/gomlx/activations/pkg/paramstore"
	"github.com/gomlx/gomlx/backends/simplego"
	"github.com/gomlx/gomlx/pkg/ml/context"
	"github.com/muesli/termenv"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

var (
	flagActivation = flag.String("activation", "relu",
		"Activation to inspect: a key (see -list) or a '+'-joined chain of keys, applied left to right.")
	flagSize   = flag.Int("size", 1, "Number of units of the layer hosting the activation.")
	flagPieces = flag.Int("pieces", 0, "Number of linear pieces for \"maxout\". If 0 it is not configured.")
	flagMin    = flag.Float64("min", -3, "Minimum input value evaluated.")
	flagMax    = flag.Float64("max", 3, "Maximum input value evaluated.")
	flagPoints = flag.Int("points", 13, "Number of input values evaluated, evenly spaced in [min, max].")

	flagList   = flag.Bool("list", false, "List the known activations and exit.")
	flagParams = flag.Bool("params", false, "List the learnable variables of the activation, with their values.")
	flagCSV    = flag.String("csv", "", "If set, write the evaluated values as CSV to the given file.")
	flagPlot   = flag.String("plot", "", "If set, plot the response of each unit to the given PNG file.")

	flagStore   = flag.String("store", "", "Parameter store directory. Values are saved there, unless -restore is set.")
	flagRestore = flag.Bool("restore", false, "Restore the values of the learnable variables from -store before evaluating.")
	flagHalf    = flag.Bool("half", false, "Save values to -store with half precision.")
	flagPlain   = flag.Bool("plain", false, "Render tables without colors.")
)

const layerName = "inspect"

func main() {
	klog.InitFlags(nil)
	flag.Parse()
	if *flagPlain {
		lipgloss.SetColorProfile(termenv.Ascii)
	}
	if *flagList {
		listActivations()
		return
	}
	if err := run(); err != nil {
		klog.Errorf("%+v", err)
		os.Exit(1)
	}
}

func run() error {
	if *flagPoints < 2 {
		return errors.Errorf("-points must be at least 2, got %d", *flagPoints)
	}
	if *flagMax <= *flagMin {
		return errors.Errorf("-max (%g) must be greater than -min (%g)", *flagMax, *flagMin)
	}
	if *flagRestore && *flagStore == "" {
		return errors.New("-restore requires -store")
	}

	ctx := context.New()
	host := layers.NewHost(ctx, layerName, *flagSize)
	var cfg activations.Config
	if *flagPieces != 0 {
		cfg = activations.Config{activations.KeyPieces: *flagPieces}
	}
	act, err := host.Activation(*flagActivation, cfg)
	if err != nil {
		return err
	}
	klog.V(1).Infof("built %q with %d learnable variables", act.Name(), len(act.Params()))

	collection := layers.NewCollection()
	if err := collection.AddActivation(act); err != nil {
		return err
	}

	if *flagStore != "" {
		if err := syncStore(collection); err != nil {
			return err
		}
	}

	backend, err := simplego.New("")
	if err != nil {
		return errors.WithMessage(err, "failed to create SimpleGo backend")
	}
	defer backend.Finalize()

	xs := linspace(*flagMin, *flagMax, *flagPoints)
	ys, err := evaluate(backend, ctx, act, xs, host.Size())
	if err != nil {
		return err
	}

	fmt.Println(titleStyle.Render(fmt.Sprintf("Activation %q", act.Name())))
	fmt.Println(summaryTable(act, host, collection).Render())
	if *flagParams && collection.Len() > 0 {
		fmt.Println(titleStyle.Render("Learnable variables"))
		fmt.Println(paramsTable(collection).Render())
	}
	fmt.Println(titleStyle.Render("Response"))
	fmt.Println(responseTable(xs, ys).Render())

	if *flagCSV != "" {
		if err := writeCSV(*flagCSV, xs, ys); err != nil {
			return err
		}
		klog.Infof("wrote %s", *flagCSV)
	}
	if *flagPlot != "" {
		if err := plotResponse(*flagPlot, act.Name(), xs, ys); err != nil {
			return err
		}
		klog.Infof("wrote %s", *flagPlot)
	}
	return nil
}

// syncStore restores or saves the collected variables, depending on -restore.
func syncStore(collection *layers.Collection) error {
	var opts []paramstore.Option
	if *flagHalf {
		opts = append(opts, paramstore.WithHalfPrecision())
	}
	store, err := paramstore.Open(*flagStore, opts...)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			klog.Errorf("failed to close parameter store: %+v", err)
		}
	}()
	if *flagRestore {
		if err := store.Restore(collection.Variables()...); err != nil {
			return err
		}
		klog.Infof("restored %d variables from %s", collection.Len(), *flagStore)
		return nil
	}
	if err := store.Save(collection.Variables()...); err != nil {
		return err
	}
	klog.Infof("saved %d variables to %s", collection.Len(), *flagStore)
	return nil
}
