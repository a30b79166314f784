// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package machine

import (
	"time"

	"github.com/luxfi/ids"

	"github.com/luxfi/flightvm/phase"
	"github.com/luxfi/flightvm/strategy"
)

// Status is everything the machine owns. Times are unix seconds, zero when
// unset.
type Status struct {
	Phase            phase.Phase `serialize:"true" json:"phase"`
	Cycle            uint64      `serialize:"true" json:"cycle"`
	PhaseEnteredAt   int64       `serialize:"true" json:"phaseEnteredAt"`
	TerminalEntry    int64       `serialize:"true" json:"terminalEntry"`
	DescentConfirmed bool        `serialize:"true" json:"descentConfirmed"`
	Accumulation     ids.ShortID `serialize:"true" json:"accumulation"`
	Hedge            ids.ShortID `serialize:"true" json:"hedge"`
	Rebalance        ids.ShortID `serialize:"true" json:"rebalance"`
}

// Handle returns the strategy address configured for kind.
func (s *Status) Handle(kind strategy.Kind) ids.ShortID {
	switch kind {
	case strategy.Accumulation:
		return s.Accumulation
	case strategy.Hedge:
		return s.Hedge
	case strategy.Rebalance:
		return s.Rebalance
	default:
		return ids.ShortEmpty
	}
}

func (s *Status) setHandle(kind strategy.Kind, address ids.ShortID) {
	switch kind {
	case strategy.Accumulation:
		s.Accumulation = address
	case strategy.Hedge:
		s.Hedge = address
	case strategy.Rebalance:
		s.Rebalance = address
	}
}

// CooldownEnds returns when a restart becomes possible, given the cooldown.
func (s *Status) CooldownEnds(cooldown time.Duration) time.Time {
	return time.Unix(s.TerminalEntry, 0).Add(cooldown)
}

// CycleRecord keeps the timestamps of one cycle. End is zero for the cycle in
// flight.
type CycleRecord struct {
	Cycle         uint64 `serialize:"true" json:"cycle"`
	Start         int64  `serialize:"true" json:"start"`
	TerminalEntry int64  `serialize:"true" json:"terminalEntry"`
	End           int64  `serialize:"true" json:"end"`
}
