// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package simulate

import (
	"os"

	"github.com/spf13/pflag"
)

const (
	MembersKey    = "members"
	CyclesKey     = "cycles"
	TargetKey     = "target"
	ConfigFileKey = "config-file"
	OutKey        = "out"
)

func AddFlags(flags *pflag.FlagSet) {
	flags.Int(MembersKey, 3, "Number of participants")
	flags.Int(CyclesKey, 2, "Number of cycles to fly")
	flags.Uint64(TargetKey, 3_000, "Boarding target in base asset units")
	flags.String(ConfigFileKey, "", "Path to the JSON config file")
	flags.String(OutKey, "", "Write the report to this file instead of stdout, zstd compressed if it ends in .zst")
}

type Config struct {
	Members  int
	Cycles   int
	Target   uint64
	VMConfig []byte
	Out      string
}

func ParseFlags(flags *pflag.FlagSet, args []string) (*Config, error) {
	if err := flags.Parse(args); err != nil {
		return nil, err
	}

	members, err := flags.GetInt(MembersKey)
	if err != nil {
		return nil, err
	}

	cycles, err := flags.GetInt(CyclesKey)
	if err != nil {
		return nil, err
	}

	target, err := flags.GetUint64(TargetKey)
	if err != nil {
		return nil, err
	}

	configPath, err := flags.GetString(ConfigFileKey)
	if err != nil {
		return nil, err
	}
	var configBytes []byte
	if configPath != "" {
		configBytes, err = os.ReadFile(configPath)
		if err != nil {
			return nil, err
		}
	}

	out, err := flags.GetString(OutKey)
	if err != nil {
		return nil, err
	}

	return &Config{
		Members:  members,
		Cycles:   cycles,
		Target:   target,
		VMConfig: configBytes,
		Out:      out,
	}, nil
}
