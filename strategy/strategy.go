// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package strategy defines the capability the controller invokes to deploy
// treasury funds during a flight. Implementations are independently owned and
// swapped by the administrator; the controller only sees this interface.
package strategy

//go:generate go run go.uber.org/mock/mockgen -package=${GOPACKAGE}mock -destination=${GOPACKAGE}mock/strategy.go -mock_names=Strategy=Strategy . Strategy

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/luxfi/flightvm/phase"
)

// Kind names one of the three strategy slots.
type Kind uint8

const (
	Accumulation Kind = iota
	Hedge
	Rebalance
)

// Kinds lists every strategy slot.
var Kinds = []Kind{Accumulation, Hedge, Rebalance}

func (k Kind) String() string {
	switch k {
	case Accumulation:
		return "accumulation"
	case Hedge:
		return "hedge"
	case Rebalance:
		return "rebalance"
	default:
		return fmt.Sprintf("Kind(%d)", uint8(k))
	}
}

func (k Kind) Valid() bool {
	return k <= Rebalance
}

// ParseKind returns the kind named s.
func ParseKind(s string) (Kind, error) {
	for _, k := range Kinds {
		if k.String() == s {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown strategy kind %q", s)
}

func (k Kind) MarshalJSON() ([]byte, error) {
	return json.Marshal(k.String())
}

func (k *Kind) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	parsed, err := ParseKind(s)
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// Directive tells a strategy which fund movement the current transition
// requires.
type Directive uint8

const (
	Deploy Directive = iota
	Unwind
	OpenHedge
	Realign
)

func (d Directive) String() string {
	switch d {
	case Deploy:
		return "deploy"
	case Unwind:
		return "unwind"
	case OpenHedge:
		return "hedge"
	case Realign:
		return "rebalance"
	default:
		return fmt.Sprintf("Directive(%d)", uint8(d))
	}
}

// Request describes the transition a strategy is invoked for.
type Request struct {
	Cycle     uint64
	Phase     phase.Phase
	Directive Directive
	Time      time.Time
}

// Strategy is the capability set of an external fund deployment unit.
//
// Validate must not mutate state. Execute performs the fund movement; a
// non-nil error aborts the enclosing transition. State returns an opaque
// snapshot of the position for observability.
type Strategy interface {
	Validate(ctx context.Context, req Request) error
	Execute(ctx context.Context, req Request) error
	State(ctx context.Context) ([]byte, error)
}
