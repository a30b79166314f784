// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package machine

import (
	"context"
	"fmt"

	"github.com/luxfi/ids"

	"github.com/luxfi/flightvm/events"
	"github.com/luxfi/flightvm/faults"
	"github.com/luxfi/flightvm/strategy"
)

// SetStrategy points the slot of kind at the strategy deployed at address.
// Only the administrator may change a handle; transitions never do.
func (m *Machine) SetStrategy(ctx context.Context, caller ids.ShortID, kind strategy.Kind, address ids.ShortID) error {
	return m.transact(ctx, "SetStrategy", caller, func(_ context.Context, tx *txn) error {
		if caller != m.config.Admin {
			return ErrNotAdmin
		}
		if !kind.Valid() {
			return fmt.Errorf("%w: %d", ErrUnknownKind, kind)
		}
		if address == ids.ShortEmpty {
			return ErrEmptyStrategy
		}
		if _, err := m.deps.Strategies.Resolve(address); err != nil {
			return fmt.Errorf("%w: %w", faults.ErrPrecondition, err)
		}
		tx.status.setHandle(kind, address)

		e := events.New(events.StrategySet, tx.status.Cycle, tx.status.Phase, tx.now)
		e.Actor = address
		e.Detail = kind.String()
		tx.events = append(tx.events, e)
		return nil
	})
}

// StrategyState returns the observability snapshot of the strategy in the
// slot of kind.
func (m *Machine) StrategyState(ctx context.Context, kind strategy.Kind) ([]byte, error) {
	status, err := m.Status()
	if err != nil {
		return nil, err
	}
	address := status.Handle(kind)
	if address == ids.ShortEmpty {
		return nil, fmt.Errorf("%w: %s", ErrStrategyUnset, kind)
	}
	s, err := m.deps.Strategies.Resolve(address)
	if err != nil {
		return nil, err
	}
	return s.State(ctx)
}
