// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package phase defines the flight phases of a treasury cycle and the single
// rule deciding which phase changes are legal.
package phase

import (
	"encoding/json"
	"fmt"

	"github.com/luxfi/flightvm/faults"
)

// Phase is one stage of the operating cycle.
type Phase uint8

const (
	Boarding Phase = iota
	TakeOff
	Ascent
	PeakAltitude
	Descent
	Landing
	Terminal
)

// All lists the phases in canonical order.
var All = []Phase{Boarding, TakeOff, Ascent, PeakAltitude, Descent, Landing, Terminal}

func (p Phase) String() string {
	switch p {
	case Boarding:
		return "Boarding"
	case TakeOff:
		return "TakeOff"
	case Ascent:
		return "Ascent"
	case PeakAltitude:
		return "PeakAltitude"
	case Descent:
		return "Descent"
	case Landing:
		return "Landing"
	case Terminal:
		return "Terminal"
	default:
		return fmt.Sprintf("Phase(%d)", uint8(p))
	}
}

// Valid reports whether p is one of the defined phases.
func (p Phase) Valid() bool {
	return p <= Terminal
}

// Parse returns the phase named s.
func Parse(s string) (Phase, error) {
	for _, p := range All {
		if p.String() == s {
			return p, nil
		}
	}
	return 0, fmt.Errorf("unknown phase %q", s)
}

func (p Phase) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.String())
}

func (p *Phase) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	parsed, err := Parse(s)
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// CanTransition is the legality rule: next must be exactly one step after
// current, or the loop edge Terminal -> TakeOff.
func CanTransition(current, next Phase) bool {
	if !current.Valid() || !next.Valid() {
		return false
	}
	if current == Terminal {
		return next == TakeOff
	}
	return next == current+1
}

// Verify returns an ordering error when current -> next is illegal.
func Verify(current, next Phase) error {
	if CanTransition(current, next) {
		return nil
	}
	return fmt.Errorf("%w: %s -> %s", faults.ErrOrdering, current, next)
}

// StakingPermitted reports whether participation rights may be staked or
// unstaked while the machine is in p.
func StakingPermitted(p Phase) bool {
	switch p {
	case Ascent, Descent, Landing, Terminal:
		return true
	default:
		return false
	}
}

// QuorumGated reports whether leaving p requires a stake quorum.
func QuorumGated(p Phase) bool {
	return StakingPermitted(p)
}
