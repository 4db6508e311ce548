// Copyright ©2026 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package cmd

import (
	"fmt"

	"github.com/curioloop/nlsq/factor"
	"github.com/curioloop/nlsq/factors"
	"github.com/curioloop/nlsq/key"
	"github.com/curioloop/nlsq/manifold"
	"github.com/curioloop/nlsq/optimizer"
	"github.com/curioloop/nlsq/values"
	"github.com/spf13/cobra"
	"gonum.org/v1/gonum/mat"
)

var priorCmd = &cobra.Command{
	Use:   "prior",
	Short: "Run the single linear prior scenario (spec.md §8 scenario 1)",
	RunE:  runPrior,
}

func init() {
	rootCmd.AddCommand(priorCmd)
}

func runPrior(_ *cobra.Command, _ []string) error {
	const mu, w, sigma = 3.0, 2.0, 0.5
	x := key.New('x', 0)

	f, err := factors.PriorVector(x, manifold.NewVector([]float64{mu}), []float64{w / sigma})
	if err != nil {
		return err
	}
	vals := values.New()
	vals.Set(x, manifold.NewVector([]float64{0}))

	opt, err := optimizer.New([]*factor.Factor{f}, optimizer.Options{
		Name:     "prior-demo",
		LogLevel: logLevel(),
	})
	if err != nil {
		return err
	}
	converged, err := opt.Optimize(vals, -1, nil)
	if err != nil {
		return err
	}

	got, _ := values.GetAs[manifold.Vector](vals, x)
	fmt.Printf("converged=%v iterations=%d x=%.6f\n", converged, len(opt.Stats()), got[0])

	lin, err := opt.Linearize(vals)
	if err != nil {
		return err
	}
	covariancesByKey := make(map[key.Key]*mat.Dense)
	if err := opt.ComputeAllCovariances(lin, covariancesByKey); err != nil {
		return err
	}
	fmt.Printf("covariance(x)=%.6f\n", covariancesByKey[x].At(0, 0))
	return nil
}
