// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package machine

import (
	"context"
	"fmt"

	"github.com/luxfi/ids"

	"github.com/luxfi/flightvm/custody"
	"github.com/luxfi/flightvm/events"
	"github.com/luxfi/flightvm/faults"
	"github.com/luxfi/flightvm/strategy"
)

// invoke has the strategy of kind perform directive. An unset or unresolvable
// handle fails the transition before anything moves.
func (tx *txn) invoke(ctx context.Context, kind strategy.Kind, directive strategy.Directive) error {
	address := tx.status.Handle(kind)
	if address == ids.ShortEmpty {
		return fmt.Errorf("%w: %s", ErrStrategyUnset, kind)
	}
	s, err := tx.machine.deps.Strategies.Resolve(address)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", faults.ErrPrecondition, kind, err)
	}
	req := strategy.Request{
		Cycle:     tx.status.Cycle,
		Phase:     tx.status.Phase,
		Directive: directive,
		Time:      tx.now,
	}
	if err := s.Validate(ctx, req); err != nil {
		return faults.Wrap(faults.ErrPrecondition, fmt.Errorf("%s strategy rejected %s: %w", kind, directive, err))
	}
	if err := s.Execute(ctx, req); err != nil {
		return fmt.Errorf("%w: %s strategy %s: %w", faults.ErrDelegation, kind, directive, err)
	}
	return nil
}

// setRedemption has the custody account toggle the redemption module.
func (tx *txn) setRedemption(ctx context.Context, enabled bool) error {
	payload := custody.DisableRedemptionPayload()
	detail := "disabled"
	if enabled {
		payload = custody.EnableRedemptionPayload()
		detail = "enabled"
	}
	m := tx.machine
	if err := m.deps.Agent.Execute(ctx, m.config.Redemption, 0, payload, custody.Call); err != nil {
		return fmt.Errorf("%w: redemption %s: %w", faults.ErrDelegation, detail, err)
	}
	tx.emit(events.RedemptionToggled, 0, detail)
	return nil
}
