// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package machine

import (
	"context"
	"fmt"

	"github.com/luxfi/ids"

	"github.com/luxfi/flightvm/custody"
	"github.com/luxfi/flightvm/phase"
)

// RageQuit exits caller with the pro-rata share of the treasury for shares
// of their participation rights. It is only open in Terminal.
func (m *Machine) RageQuit(ctx context.Context, caller ids.ShortID, shares uint64) ([]custody.Payout, error) {
	var payouts []custody.Payout
	err := m.transact(ctx, "RageQuit", caller, func(ctx context.Context, tx *txn) error {
		if tx.status.Phase != phase.Terminal {
			return fmt.Errorf("%w: machine is in %s", ErrRedemptionClosed, tx.status.Phase)
		}
		var err error
		payouts, err = m.deps.Redeemer.RageQuit(ctx, caller, shares)
		return err
	})
	return payouts, err
}

// RedemptionOpen reports whether the redemption module currently accepts
// exits.
func (m *Machine) RedemptionOpen() (bool, error) {
	return m.deps.Redeemer.Enabled()
}
