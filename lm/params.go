// Copyright ©2026 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package lm implements the Levenberg–Marquardt damped trust-region loop
// (spec.md §4.4): step acceptance, damping adaptation, and the convergence
// and early-exit criteria.
package lm

import "fmt"

// Params enumerates every LM knob named in spec.md §4.4, following the flat
// tunables-struct convention of the teacher's lbfgsb.Termination /
// slsqp.Termination.
type Params struct {
	// Iterations is the maximum number of outer iterations.
	Iterations int

	// EarlyExitMinReduction: stop (CONVERGED) once an accepted step's
	// relative error reduction |E0-E'|/E0 falls below this.
	EarlyExitMinReduction float64

	// InitialLambda, LambdaUpFactor, LambdaDownFactor, LambdaMin, LambdaMax
	// control the damping parameter lambda.
	InitialLambda    float64
	LambdaUpFactor   float64
	LambdaDownFactor float64
	LambdaMin        float64
	LambdaMax        float64

	// StepTolerance: stop (CONVERGED) once an accepted step's norm ||delta||
	// falls below this.
	StepTolerance float64

	// GradientTolerance: stop (CONVERGED) once ||g||_inf falls below this.
	GradientTolerance float64

	// UseDiagonalDamping selects Marquardt's H + lambda*diag(H) scaling.
	// When false, Levenberg's H + lambda*I is used instead.
	UseDiagonalDamping bool

	// EnableBoldUpdates: after an accepted step, reset lambda toward
	// LambdaMin rather than merely dividing by LambdaDownFactor.
	EnableBoldUpdates bool

	// CheckDerivatives wraps each factor's analytic Jacobian with a
	// numerical cross-check at the first linearization.
	CheckDerivatives bool

	// DerivativeCheckTolerance is the max allowed deviation between the
	// analytic and numerical Jacobian before it's reported as a mismatch.
	DerivativeCheckTolerance float64

	// MaxRejectStreak: the number of consecutive rejected steps, with
	// lambda already at LambdaMax, after which the driver reports
	// DIVERGED (spec.md §4.4 step 10).
	MaxRejectStreak int

	// AcceptThreshold: the minimum gain ratio rho for accepting a step.
	// If zero, acceptance falls back to the simpler "E' < E0" rule
	// spec.md §4.4 step 7 offers as an alternative.
	AcceptThreshold float64
}

// DefaultParams returns the conventional LM defaults.
func DefaultParams() Params {
	return Params{
		Iterations:               50,
		EarlyExitMinReduction:    1e-6,
		InitialLambda:            1e-3,
		LambdaUpFactor:           10,
		LambdaDownFactor:         10,
		LambdaMin:                1e-10,
		LambdaMax:                1e10,
		StepTolerance:            1e-8,
		GradientTolerance:        1e-8,
		UseDiagonalDamping:       true,
		EnableBoldUpdates:        false,
		CheckDerivatives:         false,
		DerivativeCheckTolerance: 1e-4,
		MaxRejectStreak:          5,
		AcceptThreshold:          0,
	}
}

// Validate reports a configuration error if any knob is out of range.
func (p Params) Validate() error {
	switch {
	case p.Iterations <= 0:
		return fmt.Errorf("lm: Iterations must be positive")
	case p.InitialLambda <= 0:
		return fmt.Errorf("lm: InitialLambda must be positive")
	case p.LambdaUpFactor <= 1:
		return fmt.Errorf("lm: LambdaUpFactor must be greater than 1")
	case p.LambdaDownFactor <= 1:
		return fmt.Errorf("lm: LambdaDownFactor must be greater than 1")
	case p.LambdaMin <= 0 || p.LambdaMax <= p.LambdaMin:
		return fmt.Errorf("lm: require 0 < LambdaMin < LambdaMax")
	case p.StepTolerance < 0 || p.GradientTolerance < 0:
		return fmt.Errorf("lm: tolerances must not be negative")
	case p.MaxRejectStreak <= 0:
		return fmt.Errorf("lm: MaxRejectStreak must be positive")
	}
	return nil
}
