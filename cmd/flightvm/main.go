// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/luxfi/flightvm"
	"github.com/luxfi/flightvm/cmd/flightvm/run"
	"github.com/luxfi/flightvm/cmd/flightvm/simulate"
)

func main() {
	cmd := &cobra.Command{
		Use:     "flightvm",
		Short:   "Runs and simulates a phased treasury flight",
		Version: flightvm.Version.String(),
	}
	cmd.AddCommand(
		run.Command(),
		simulate.Command(),
	)
	cmd.SilenceUsage = true

	if err := cmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "command failed %v\n", err)
		os.Exit(1)
	}
}
