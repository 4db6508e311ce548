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
)

var rotationsCmd = &cobra.Command{
	Use:   "rotations",
	Short: "Run the two-rotations prior+between scenario (spec.md §8 scenario 2)",
	RunE:  runRotations,
}

func init() {
	rootCmd.AddCommand(rotationsCmd)
}

func runRotations(_ *cobra.Command, _ []string) error {
	r0, r1 := key.New('R', 0), key.New('R', 1)

	priorR0, err := factors.PriorRot3(r0, manifold.IdentityRot3(), nil, 1e-9)
	if err != nil {
		return err
	}
	priorR1, err := factors.PriorRot3(r1, manifold.IdentityRot3(), nil, 1e-9)
	if err != nil {
		return err
	}
	between, err := factors.BetweenRot3(r0, r1, manifold.IdentityRot3(), nil, 1e-9)
	if err != nil {
		return err
	}

	vals := values.New()
	start := manifold.IdentityRot3().Retract([]float64{0.3, -0.2, 0.1}, 1e-9).(manifold.Rot3)
	vals.Set(r0, start)
	vals.Set(r1, start)

	opt, err := optimizer.New([]*factor.Factor{priorR0, priorR1, between}, optimizer.Options{
		Name:     "rotations-demo",
		LogLevel: logLevel(),
	})
	if err != nil {
		return err
	}
	converged, err := opt.Optimize(vals, -1, nil)
	if err != nil {
		return err
	}

	lin, err := opt.Linearize(vals)
	if err != nil {
		return err
	}
	a, _ := values.GetAs[manifold.Rot3](vals, r0)
	b, _ := values.GetAs[manifold.Rot3](vals, r1)
	fmt.Printf("converged=%v iterations=%d final_error=%.3e\n", converged, len(opt.Stats()), lin.Error)
	fmt.Printf("R0=%+v\nR1=%+v\n", a, b)
	return nil
}
