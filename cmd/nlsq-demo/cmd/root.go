// Copyright ©2026 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package cmd

import (
	"fmt"
	"os"

	"github.com/curioloop/nlsq/logging"
	"github.com/spf13/cobra"
)

var verbose bool

var rootCmd = &cobra.Command{
	Use:          "nlsq-demo",
	Short:        "nlsq-demo — run the seed scenarios of the nlsq factor-graph optimizer",
	SilenceUsage: true,
	Long: `nlsq-demo runs the toy optimization problems used to seed nlsq's test
suite end to end, printing per-iteration stats and the final status.`,
}

// Execute is called by main.go.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log every LM iteration")
}

func logLevel() logging.Level {
	if verbose {
		return logging.LevelVerbose
	}
	return logging.LevelSummary
}
