// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package machine

import (
	"context"
	"fmt"

	"github.com/luxfi/ids"

	"github.com/luxfi/flightvm/boarding"
	"github.com/luxfi/flightvm/events"
	"github.com/luxfi/flightvm/faults"
	"github.com/luxfi/flightvm/phase"
	"github.com/luxfi/flightvm/strategy"
)

func (tx *txn) requireBoarding() error {
	if tx.status.Phase != phase.Boarding {
		return fmt.Errorf("%w: machine is in %s", ErrBoardingClosed, tx.status.Phase)
	}
	return nil
}

// OpenBoarding opens a boarding window with target. Only the administrator
// may open one, and only while no window is open or after a failed one.
func (m *Machine) OpenBoarding(ctx context.Context, caller ids.ShortID, target uint64) (boarding.Window, error) {
	var w boarding.Window
	err := m.transact(ctx, "OpenBoarding", caller, func(_ context.Context, tx *txn) error {
		if caller != m.config.Admin {
			return ErrNotAdmin
		}
		if err := tx.requireBoarding(); err != nil {
			return err
		}
		var err error
		w, err = m.deps.Boarding.Open(target, tx.now)
		if err != nil {
			return err
		}
		tx.emit(events.BoardingStarted, target, fmt.Sprintf("round %d", w.Round))
		return nil
	})
	if err == nil {
		m.deps.Metrics.SetRaised(0)
	}
	return w, err
}

// Contribute escrows amount from caller into the open window, then runs the
// boarding check within the same operation, so the contribution that reaches
// the target also launches the flight. If the launch fails the contribution
// is reverted with it.
func (m *Machine) Contribute(ctx context.Context, caller ids.ShortID, amount uint64) (boarding.Outcome, error) {
	var (
		outcome boarding.Outcome
		raised  uint64
	)
	err := m.transact(ctx, "Contribute", caller, func(ctx context.Context, tx *txn) error {
		if err := tx.requireBoarding(); err != nil {
			return err
		}
		w, err := m.deps.Boarding.Contribute(caller, amount, tx.now)
		if err != nil {
			return err
		}
		raised = w.Raised
		outcome, err = tx.maintainBoarding(ctx)
		return err
	})
	if err == nil {
		m.deps.Metrics.SetRaised(raised)
	}
	return outcome, err
}

// CheckBoarding is the maintenance operation anyone may call. It launches a
// window that reached its target or expired above the forced launch share,
// and fails a window that expired below it.
func (m *Machine) CheckBoarding(ctx context.Context, caller ids.ShortID) (boarding.Outcome, error) {
	var outcome boarding.Outcome
	err := m.transact(ctx, "CheckBoarding", caller, func(ctx context.Context, tx *txn) error {
		// The check can only ever author Boarding -> TakeOff.
		if tx.status.Phase != phase.Boarding {
			return fmt.Errorf("%w: boarding check in %s", faults.ErrOrdering, tx.status.Phase)
		}
		var err error
		outcome, err = tx.maintainBoarding(ctx)
		return err
	})
	return outcome, err
}

func (tx *txn) maintainBoarding(ctx context.Context) (boarding.Outcome, error) {
	ledger := tx.machine.deps.Boarding
	outcome, err := ledger.Evaluate(tx.now)
	if err != nil {
		return outcome, err
	}
	switch outcome {
	case boarding.Reached, boarding.Forced:
		forced := outcome == boarding.Forced
		w, err := ledger.MarkSucceeded(forced)
		if err != nil {
			return outcome, err
		}
		tx.emit(events.BoardingSucceeded, w.Raised, fmt.Sprintf("round %d", w.Round))
		if forced {
			tx.emit(events.ForcedLaunch, w.Raised, fmt.Sprintf("round %d", w.Round))
		}
		return outcome, tx.launch(ctx)
	case boarding.Short:
		w, err := ledger.MarkFailed()
		if err != nil {
			return outcome, err
		}
		tx.emit(events.BoardingFailed, w.Raised, fmt.Sprintf("round %d", w.Round))
	}
	return outcome, nil
}

// launch is Boarding -> TakeOff.
func (tx *txn) launch(ctx context.Context) error {
	if err := tx.advance(phase.TakeOff); err != nil {
		return err
	}
	if err := tx.setRedemption(ctx, false); err != nil {
		return err
	}
	return tx.invoke(ctx, strategy.Accumulation, strategy.Deploy)
}

// Refund returns caller's exact contribution to a failed round.
func (m *Machine) Refund(ctx context.Context, caller ids.ShortID, round uint64) (uint64, error) {
	var amount uint64
	err := m.transact(ctx, "Refund", caller, func(context.Context, *txn) error {
		var err error
		amount, err = m.deps.Boarding.Refund(caller, round)
		return err
	})
	return amount, err
}

// ClaimShares mints caller's participation rights for a successful round.
func (m *Machine) ClaimShares(ctx context.Context, caller ids.ShortID, round uint64) (uint64, error) {
	var amount uint64
	err := m.transact(ctx, "ClaimShares", caller, func(context.Context, *txn) error {
		var err error
		amount, err = m.deps.Boarding.ClaimShares(caller, round)
		return err
	})
	return amount, err
}

// BoardingWindow returns the latest boarding window, if one was opened.
func (m *Machine) BoardingWindow() (boarding.Window, bool, error) {
	return m.deps.Boarding.Current()
}
