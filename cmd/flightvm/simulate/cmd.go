// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package simulate

import (
	"github.com/luxfi/log"
	"github.com/spf13/cobra"

	"github.com/luxfi/flightvm"
)

func Command() *cobra.Command {
	c := &cobra.Command{
		Use:   "simulate",
		Short: "Flies an in memory VM through full cycles and reports its journal",
		RunE:  simulateFunc,
	}
	AddFlags(c.Flags())
	return c
}

func simulateFunc(c *cobra.Command, args []string) error {
	config, err := ParseFlags(c.Flags(), args)
	if err != nil {
		return err
	}

	logger := log.NewLogger(flightvm.Name)
	report, err := Simulate(c.Context(), logger, config)
	if err != nil {
		return err
	}
	if config.Out == "" {
		return Print(c.OutOrStdout(), report)
	}
	return Write(logger, config.Out, report)
}
