// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package machine

import (
	"context"
	"fmt"

	"github.com/luxfi/ids"

	"github.com/luxfi/flightvm/events"
	"github.com/luxfi/flightvm/faults"
	"github.com/luxfi/flightvm/phase"
	"github.com/luxfi/flightvm/strategy"
)

// requireEdge binds an operation to the one edge it authors. The legality
// rule stays the single source of truth; the binding only stops an
// operation from authoring some other legal edge.
func (tx *txn) requireEdge(from, to phase.Phase) error {
	if tx.status.Phase != from {
		return fmt.Errorf("%w: %s -> %s requested in %s", faults.ErrOrdering, from, to, tx.status.Phase)
	}
	return phase.Verify(from, to)
}

// requireStaker checks that the caller staked toward leaving gate in the
// current cycle. Callers check the edge first: once the gate is left, a late
// duplicate call is rejected by ordering, including across the loop edge
// where the cycle has moved on.
func (tx *txn) requireStaker(gate phase.Phase) error {
	staker, err := tx.machine.deps.Stakes.IsStaker(tx.status.Cycle, gate, tx.caller)
	if err != nil {
		return err
	}
	if !staker {
		return fmt.Errorf("%w: %s of cycle %d", ErrNotStaker, gate, tx.status.Cycle)
	}
	return nil
}

// requireQuorum reads the quorum of gate from the machine's own tracker.
func (tx *txn) requireQuorum(gate phase.Phase) error {
	threshold, _ := tx.machine.config.Rules.Threshold(gate)
	percent, err := tx.machine.deps.Stakes.QuorumPercent(tx.status.Cycle, gate)
	if err != nil {
		return err
	}
	if percent < threshold {
		return fmt.Errorf("%w: %s at %d%%, need %d%%", ErrQuorumNotMet, gate, percent, threshold)
	}
	return nil
}

// consumeQuorum checks and clears the quorum of gate.
func (tx *txn) consumeQuorum(gate phase.Phase) error {
	if err := tx.requireQuorum(gate); err != nil {
		return err
	}
	return tx.machine.deps.Stakes.Clear(tx.status.Cycle, gate)
}

// ConfirmTakeOff is TakeOff -> Ascent, confirmed by automation.
func (m *Machine) ConfirmTakeOff(ctx context.Context, caller ids.ShortID) error {
	return m.transact(ctx, "ConfirmTakeOff", caller, func(_ context.Context, tx *txn) error {
		if caller != m.config.Automation {
			return ErrNotAutomation
		}
		if err := tx.requireEdge(phase.TakeOff, phase.Ascent); err != nil {
			return err
		}
		return tx.advance(phase.Ascent)
	})
}

// ReachPeak is Ascent -> PeakAltitude, signaled by a staker once the Ascent
// quorum is met. The accumulation strategy is told to unwind.
func (m *Machine) ReachPeak(ctx context.Context, caller ids.ShortID) error {
	return m.transact(ctx, "ReachPeak", caller, func(ctx context.Context, tx *txn) error {
		if err := tx.requireEdge(phase.Ascent, phase.PeakAltitude); err != nil {
			return err
		}
		if err := tx.requireStaker(phase.Ascent); err != nil {
			return err
		}
		if err := tx.consumeQuorum(phase.Ascent); err != nil {
			return err
		}
		if err := tx.advance(phase.PeakAltitude); err != nil {
			return err
		}
		return tx.invoke(ctx, strategy.Accumulation, strategy.Unwind)
	})
}

// CompleteUnwind is PeakAltitude -> Descent. Only the configured accumulation
// strategy may report its unwind complete. The hedge is opened.
func (m *Machine) CompleteUnwind(ctx context.Context, caller ids.ShortID) error {
	return m.transact(ctx, "CompleteUnwind", caller, func(ctx context.Context, tx *txn) error {
		if caller == ids.ShortEmpty || caller != tx.status.Accumulation {
			return ErrNotStrategy
		}
		if err := tx.requireEdge(phase.PeakAltitude, phase.Descent); err != nil {
			return err
		}
		if err := tx.advance(phase.Descent); err != nil {
			return err
		}
		tx.status.DescentConfirmed = false
		return tx.invoke(ctx, strategy.Hedge, strategy.OpenHedge)
	})
}

// ConfirmDescent records the automation's confirmation of the descent. It
// changes no phase.
func (m *Machine) ConfirmDescent(ctx context.Context, caller ids.ShortID) error {
	return m.transact(ctx, "ConfirmDescent", caller, func(_ context.Context, tx *txn) error {
		if caller != m.config.Automation {
			return ErrNotAutomation
		}
		if tx.status.Phase != phase.Descent {
			return fmt.Errorf("%w: descent confirmation in %s", faults.ErrOrdering, tx.status.Phase)
		}
		if tx.status.DescentConfirmed {
			return ErrDescentConfirmed
		}
		tx.status.DescentConfirmed = true
		tx.emit(events.DescentConfirmed, 0, "")
		return nil
	})
}

// BeginLanding is Descent -> Landing, signaled by a staker once the descent
// is confirmed and the Descent quorum is met. The treasury is rebalanced.
func (m *Machine) BeginLanding(ctx context.Context, caller ids.ShortID) error {
	return m.transact(ctx, "BeginLanding", caller, func(ctx context.Context, tx *txn) error {
		if err := tx.requireEdge(phase.Descent, phase.Landing); err != nil {
			return err
		}
		if err := tx.requireStaker(phase.Descent); err != nil {
			return err
		}
		if !tx.status.DescentConfirmed {
			return ErrDescentUnconfirmed
		}
		if err := tx.consumeQuorum(phase.Descent); err != nil {
			return err
		}
		if err := tx.advance(phase.Landing); err != nil {
			return err
		}
		return tx.invoke(ctx, strategy.Rebalance, strategy.Realign)
	})
}

// EnterTerminal is Landing -> Terminal, callable by any holder of
// participation rights once the Landing quorum is met. Redemption opens and
// the cooldown starts.
func (m *Machine) EnterTerminal(ctx context.Context, caller ids.ShortID) error {
	return m.transact(ctx, "EnterTerminal", caller, func(ctx context.Context, tx *txn) error {
		if err := tx.requireHolder(); err != nil {
			return err
		}
		if err := tx.requireEdge(phase.Landing, phase.Terminal); err != nil {
			return err
		}
		if err := tx.consumeQuorum(phase.Landing); err != nil {
			return err
		}
		if err := tx.advance(phase.Terminal); err != nil {
			return err
		}
		tx.status.TerminalEntry = tx.now.Unix()
		if err := tx.setRedemption(ctx, true); err != nil {
			return err
		}
		tx.emit(events.TerminalEntered, 0, "")
		return nil
	})
}

func (tx *txn) requireHolder() error {
	m := tx.machine
	held, err := m.deps.Members.BalanceOf(tx.caller)
	if err != nil {
		return err
	}
	if held > 0 {
		return nil
	}
	staked, err := m.deps.Stakes.StakeOf(tx.status.Cycle, phase.Landing, tx.caller)
	if err != nil {
		return err
	}
	if staked.Amount > 0 {
		return nil
	}
	return ErrNotHolder
}

// RestartCycle is the loop edge Terminal -> TakeOff, signaled by a staker
// once the cooldown has elapsed and the Terminal quorum is met. Redemption
// closes, the cycle increments and the accumulation strategy redeploys.
func (m *Machine) RestartCycle(ctx context.Context, caller ids.ShortID) error {
	return m.transact(ctx, "RestartCycle", caller, func(ctx context.Context, tx *txn) error {
		if err := tx.requireEdge(phase.Terminal, phase.TakeOff); err != nil {
			return err
		}
		if err := tx.requireStaker(phase.Terminal); err != nil {
			return err
		}
		if ends := tx.status.CooldownEnds(m.config.Rules.TerminalCooldown); tx.now.Before(ends) {
			return fmt.Errorf("%w: restart possible at %s", ErrCooldown, ends.UTC())
		}
		if err := tx.consumeQuorum(phase.Terminal); err != nil {
			return err
		}
		if err := tx.advance(phase.TakeOff); err != nil {
			return err
		}
		if err := tx.setRedemption(ctx, false); err != nil {
			return err
		}
		return tx.invoke(ctx, strategy.Accumulation, strategy.Deploy)
	})
}
