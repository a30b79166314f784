// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package custody

import (
	"context"
	"errors"
	"fmt"

	"github.com/luxfi/database"
	"github.com/luxfi/ids"
	"github.com/luxfi/log"

	"github.com/luxfi/flightvm/faults"
	"github.com/luxfi/flightvm/ledger"
	"github.com/luxfi/flightvm/state"

	safemath "github.com/luxfi/flightvm/utils/math"
)

const (
	methodEnableRedemption  uint8 = 1
	methodDisableRedemption uint8 = 2
)

var (
	ErrRedemptionClosed = fmt.Errorf("%w: redemption closed", faults.ErrPrecondition)
	ErrNotCustody       = errors.New("caller is not the custody account")
	ErrNothingToRedeem  = errors.New("shares must be positive")
	ErrEmptySupply      = errors.New("no participation rights outstanding")

	keyRedemptionEnabled = []byte("redemption:enabled")
)

type instruction struct {
	Method uint8 `serialize:"true"`
}

func encodeInstruction(method uint8) []byte {
	b, err := state.Codec.Marshal(state.CodecVersion, &instruction{Method: method})
	if err != nil {
		panic(err)
	}
	return b
}

// EnableRedemptionPayload is the canonical payload opening rage-quit.
func EnableRedemptionPayload() []byte {
	return encodeInstruction(methodEnableRedemption)
}

// DisableRedemptionPayload is the canonical payload closing rage-quit.
func DisableRedemptionPayload() []byte {
	return encodeInstruction(methodDisableRedemption)
}

// Payout is one asset paid to a redeeming member.
type Payout struct {
	Asset  ids.ID `json:"asset"`
	Amount uint64 `json:"amount"`
}

// Redemption is the rage-quit module. It lives at its own target address and
// only obeys instructions executed by its custody account.
type Redemption struct {
	log     log.Logger
	address ids.ShortID
	custody ids.ShortID
	db      database.Database
	assets  *ledger.Ledger
	members *ledger.Asset
	// Treasury assets paid out pro-rata on exit.
	claimable []ids.ID
}

var _ Handler = (*Redemption)(nil)

// NewRedemption returns the redemption module at address serving the
// custody account custody.
func NewRedemption(
	logger log.Logger,
	address ids.ShortID,
	custody ids.ShortID,
	db database.Database,
	assets *ledger.Ledger,
	members *ledger.Asset,
	claimable []ids.ID,
) *Redemption {
	return &Redemption{
		log:       logger,
		address:   address,
		custody:   custody,
		db:        db,
		assets:    assets,
		members:   members,
		claimable: claimable,
	}
}

// Address returns the module's target address.
func (r *Redemption) Address() ids.ShortID {
	return r.address
}

// Handle implements Handler.
func (r *Redemption) Handle(_ context.Context, from ids.ShortID, value uint64, payload []byte, op Operation) error {
	if from != r.custody {
		return fmt.Errorf("%w: %s", ErrNotCustody, from)
	}
	if op != Call || value != 0 {
		return fmt.Errorf("%w: %s with value %d", ErrUnsupportedPayload, op, value)
	}
	var ins instruction
	if _, err := state.Codec.Unmarshal(payload, &ins); err != nil {
		return fmt.Errorf("%w: %w", ErrUnsupportedPayload, err)
	}
	switch ins.Method {
	case methodEnableRedemption:
		return r.db.Put(keyRedemptionEnabled, []byte{1})
	case methodDisableRedemption:
		return r.db.Delete(keyRedemptionEnabled)
	default:
		return fmt.Errorf("%w: method %d", ErrUnsupportedPayload, ins.Method)
	}
}

// Enabled reports whether rage-quit is open.
func (r *Redemption) Enabled() (bool, error) {
	return r.db.Has(keyRedemptionEnabled)
}

// RageQuit burns shares participation rights of member and pays member the
// same fraction of every claimable asset held by the custody account.
// Payouts round down, so the remaining members never lose to rounding.
func (r *Redemption) RageQuit(_ context.Context, member ids.ShortID, shares uint64) ([]Payout, error) {
	if shares == 0 {
		return nil, ErrNothingToRedeem
	}
	enabled, err := r.Enabled()
	if err != nil {
		return nil, err
	}
	if !enabled {
		return nil, ErrRedemptionClosed
	}
	supply, err := r.members.TotalSupply()
	if err != nil {
		return nil, err
	}
	if supply == 0 {
		return nil, ErrEmptySupply
	}

	payouts := make([]Payout, 0, len(r.claimable))
	for _, asset := range r.claimable {
		held, err := r.assets.Balance(asset, r.custody)
		if err != nil {
			return nil, err
		}
		amount, err := safemath.MulDiv(held, shares, supply)
		if err != nil {
			return nil, err
		}
		if amount > 0 {
			payouts = append(payouts, Payout{Asset: asset, Amount: amount})
		}
	}

	// Burn checks the member's balance, so it runs before any payout.
	if err := r.members.Burn(member, shares); err != nil {
		return nil, err
	}
	for _, p := range payouts {
		if err := r.assets.Transfer(p.Asset, r.custody, member, p.Amount); err != nil {
			return nil, err
		}
	}

	r.log.Info("member redeemed",
		log.Stringer("member", member),
		log.Uint64("shares", shares),
		log.Int("assets", len(payouts)),
	)
	return payouts, nil
}
