// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package config defines configuration types for the flight VM.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/luxfi/flightvm/phase"
)

var (
	ErrInvalidDuration  = errors.New("duration must be positive")
	ErrInvalidPercent   = errors.New("percent must be in (0, 100]")
	ErrInvalidBps       = errors.New("basis points must be in (0, 10000]")
	ErrInvalidCacheSize = errors.New("history cache size must be positive")
	ErrInvalidTolerance = errors.New("rebalance tolerance must be in [0, 2]")
)

// Quorum holds the stake quorum percent required to leave each gated phase.
type Quorum struct {
	// Ascent -> PeakAltitude
	Ascent uint64 `json:"ascent"`
	// Descent -> Landing
	Descent uint64 `json:"descent"`
	// Landing -> Terminal
	Landing uint64 `json:"landing"`
	// Terminal -> TakeOff
	Terminal uint64 `json:"terminal"`
}

// Config contains configuration parameters for the flight VM. It is copied
// into the machine at construction and never changes afterwards.
type Config struct {
	// BoardingDuration is how long a boarding window accepts contributions
	BoardingDuration time.Duration `json:"boardingDuration"`
	// ForcedLaunchPercent is the share of the target an expired window must
	// have raised to launch anyway
	ForcedLaunchPercent uint64 `json:"forcedLaunchPercent"`
	// TerminalCooldown is the minimum dwell in Terminal before a restart
	TerminalCooldown time.Duration `json:"terminalCooldown"`

	Quorum Quorum `json:"quorum"`

	// OracleMaxAge is the oldest price reading collaborators accept
	OracleMaxAge time.Duration `json:"oracleMaxAge"`

	// Reference strategy parameters
	DeployBps          uint64  `json:"deployBps"`
	HedgeRatioBps      uint64  `json:"hedgeRatioBps"`
	RebalanceTolerance float64 `json:"rebalanceTolerance"`

	// HistoryCacheSize bounds the completed-cycle cache of the API
	HistoryCacheSize int `json:"historyCacheSize"`
}

// DefaultConfig returns the default configuration for the flight VM.
func DefaultConfig() Config {
	return Config{
		BoardingDuration:    72 * time.Hour,
		ForcedLaunchPercent: 75,
		TerminalCooldown:    5 * 24 * time.Hour,

		Quorum: Quorum{
			Ascent:   60,
			Descent:  60,
			Landing:  60,
			Terminal: 60,
		},

		OracleMaxAge: time.Hour,

		DeployBps:          5_000, // 50%
		HedgeRatioBps:      5_000, // 50%
		RebalanceTolerance: 0.05,

		HistoryCacheSize: 64,
	}
}

// Parse returns the default configuration overridden by the fields present
// in b. An empty b yields the defaults.
func Parse(b []byte) (Config, error) {
	c := DefaultConfig()
	if len(b) > 0 {
		if err := json.Unmarshal(b, &c); err != nil {
			return Config{}, fmt.Errorf("failed to parse config: %w", err)
		}
	}
	return c, c.Validate()
}

// Threshold returns the quorum percent required to leave p, and false when
// leaving p is not stake gated.
func (c Config) Threshold(p phase.Phase) (uint64, bool) {
	switch p {
	case phase.Ascent:
		return c.Quorum.Ascent, true
	case phase.Descent:
		return c.Quorum.Descent, true
	case phase.Landing:
		return c.Quorum.Landing, true
	case phase.Terminal:
		return c.Quorum.Terminal, true
	default:
		return 0, false
	}
}

func validPercent(p uint64) bool {
	return p > 0 && p <= 100
}

func validBps(b uint64) bool {
	return b > 0 && b <= 10_000
}

// Validate reports every invalid field.
func (c Config) Validate() error {
	var errs []error
	if c.BoardingDuration <= 0 {
		errs = append(errs, fmt.Errorf("boardingDuration: %w", ErrInvalidDuration))
	}
	if c.TerminalCooldown <= 0 {
		errs = append(errs, fmt.Errorf("terminalCooldown: %w", ErrInvalidDuration))
	}
	if c.OracleMaxAge <= 0 {
		errs = append(errs, fmt.Errorf("oracleMaxAge: %w", ErrInvalidDuration))
	}
	if !validPercent(c.ForcedLaunchPercent) {
		errs = append(errs, fmt.Errorf("forcedLaunchPercent %d: %w", c.ForcedLaunchPercent, ErrInvalidPercent))
	}
	for _, p := range phase.All {
		if threshold, ok := c.Threshold(p); ok && !validPercent(threshold) {
			errs = append(errs, fmt.Errorf("quorum %s %d: %w", p, threshold, ErrInvalidPercent))
		}
	}
	if !validBps(c.DeployBps) {
		errs = append(errs, fmt.Errorf("deployBps %d: %w", c.DeployBps, ErrInvalidBps))
	}
	if !validBps(c.HedgeRatioBps) {
		errs = append(errs, fmt.Errorf("hedgeRatioBps %d: %w", c.HedgeRatioBps, ErrInvalidBps))
	}
	if c.RebalanceTolerance < 0 || c.RebalanceTolerance > 2 {
		errs = append(errs, fmt.Errorf("rebalanceTolerance %f: %w", c.RebalanceTolerance, ErrInvalidTolerance))
	}
	if c.HistoryCacheSize <= 0 {
		errs = append(errs, ErrInvalidCacheSize)
	}
	return errors.Join(errs...)
}
