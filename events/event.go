// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package events records what the flight machine did, in commit order, so
// indexers can rebuild the treasury history.
package events

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/luxfi/ids"
	"golang.org/x/crypto/sha3"

	"github.com/luxfi/flightvm/phase"
	"github.com/luxfi/flightvm/state"
)

var ErrUnknownKind = errors.New("unknown event kind")

// Kind of event.
type Kind uint8

const (
	PhaseChanged Kind = iota
	NewCycleStarted
	BoardingStarted
	BoardingSucceeded
	ForcedLaunch
	TerminalEntered
	BoardingFailed
	StrategySet
	RedemptionToggled
	DescentConfirmed
)

var kindNames = map[Kind]string{
	PhaseChanged:      "phase-changed",
	NewCycleStarted:   "new-cycle-started",
	BoardingStarted:   "boarding-started",
	BoardingSucceeded: "boarding-succeeded",
	ForcedLaunch:      "forced-launch",
	TerminalEntered:   "terminal-entered",
	BoardingFailed:    "boarding-failed",
	StrategySet:       "strategy-set",
	RedemptionToggled: "redemption-toggled",
	DescentConfirmed:  "descent-confirmed",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("Kind(%d)", uint8(k))
}

func (k Kind) MarshalJSON() ([]byte, error) {
	return json.Marshal(k.String())
}

func (k *Kind) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	for kind, name := range kindNames {
		if name == s {
			*k = kind
			return nil
		}
	}
	return fmt.Errorf("%w: %q", ErrUnknownKind, s)
}

// Event is one journal entry. Every event carries the phase, cycle and
// timestamp at which it was emitted.
type Event struct {
	ID        ids.ID      `serialize:"true" json:"id"`
	Seq       uint64      `serialize:"true" json:"seq"`
	Kind      Kind        `serialize:"true" json:"kind"`
	Cycle     uint64      `serialize:"true" json:"cycle"`
	Phase     phase.Phase `serialize:"true" json:"phase"`
	Previous  phase.Phase `serialize:"true" json:"previous"`
	Timestamp int64       `serialize:"true" json:"timestamp"`
	Actor     ids.ShortID `serialize:"true" json:"actor"`
	Amount    uint64      `serialize:"true" json:"amount"`
	// Detail is kind specific: the strategy kind of StrategySet, the new
	// state of RedemptionToggled.
	Detail string `serialize:"true" json:"detail,omitempty"`
}

// New returns an unsealed event.
func New(kind Kind, cycle uint64, p phase.Phase, now time.Time) Event {
	return Event{
		Kind:      kind,
		Cycle:     cycle,
		Phase:     p,
		Previous:  p,
		Timestamp: now.Unix(),
	}
}

// Time returns the event timestamp.
func (e *Event) Time() time.Time {
	return time.Unix(e.Timestamp, 0)
}

func (e *Event) Less(other *Event) bool {
	return e.Seq < other.Seq
}

// seal assigns seq and derives the ID as the keccak256 of the encoded event
// without its ID.
func (e *Event) seal(seq uint64) error {
	e.Seq = seq
	e.ID = ids.Empty
	b, err := state.Codec.Marshal(state.CodecVersion, e)
	if err != nil {
		return err
	}
	h := sha3.NewLegacyKeccak256()
	_, _ = h.Write(b)
	copy(e.ID[:], h.Sum(nil))
	return nil
}
