// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package machine

import (
	"context"
	"fmt"

	"github.com/luxfi/ids"

	"github.com/luxfi/flightvm/phase"
	"github.com/luxfi/flightvm/stake"
)

func (tx *txn) requireStaking() error {
	if !phase.StakingPermitted(tx.status.Phase) {
		return fmt.Errorf("%w: %s", ErrStakingClosed, tx.status.Phase)
	}
	return nil
}

// Stake escrows amount of caller's participation rights toward the gate of
// the current phase.
func (m *Machine) Stake(ctx context.Context, caller ids.ShortID, amount uint64) error {
	var p phase.Phase
	err := m.transact(ctx, "Stake", caller, func(_ context.Context, tx *txn) error {
		if err := tx.requireStaking(); err != nil {
			return err
		}
		p = tx.status.Phase
		return m.deps.Stakes.Stake(tx.status.Cycle, p, caller, amount)
	})
	if err == nil {
		m.observeQuorum(p)
	}
	return err
}

// Unstake returns amount of caller's stake toward the current phase.
func (m *Machine) Unstake(ctx context.Context, caller ids.ShortID, amount uint64) error {
	var p phase.Phase
	err := m.transact(ctx, "Unstake", caller, func(_ context.Context, tx *txn) error {
		if err := tx.requireStaking(); err != nil {
			return err
		}
		p = tx.status.Phase
		return m.deps.Stakes.Unstake(tx.status.Cycle, p, caller, amount)
	})
	if err == nil {
		m.observeQuorum(p)
	}
	return err
}

// Withdraw reclaims caller's escrow from a concluded (cycle, phase). Within a
// cycle phases only move forward, so a phase concluded when the machine has
// moved past it or into a later cycle.
func (m *Machine) Withdraw(ctx context.Context, caller ids.ShortID, cycle uint64, p phase.Phase) (uint64, error) {
	var amount uint64
	err := m.transact(ctx, "Withdraw", caller, func(_ context.Context, tx *txn) error {
		concluded := cycle < tx.status.Cycle || (cycle == tx.status.Cycle && p < tx.status.Phase)
		if !concluded {
			return fmt.Errorf("%w: %s of cycle %d", ErrPhaseNotConcluded, p, cycle)
		}
		var err error
		amount, err = m.deps.Stakes.Withdraw(cycle, p, caller)
		return err
	})
	return amount, err
}

// Quorum returns the quorum percent toward leaving p in the current cycle.
func (m *Machine) Quorum(p phase.Phase) (uint64, error) {
	status, err := m.Status()
	if err != nil {
		return 0, err
	}
	return m.deps.Stakes.QuorumPercent(status.Cycle, p)
}

// StakeOf returns the stake record of account toward p in cycle.
func (m *Machine) StakeOf(cycle uint64, p phase.Phase, account ids.ShortID) (stake.Record, error) {
	return m.deps.Stakes.StakeOf(cycle, p, account)
}

func (m *Machine) observeQuorum(p phase.Phase) {
	percent, err := m.Quorum(p)
	if err != nil {
		return
	}
	m.deps.Metrics.SetQuorum(p, percent)
}
