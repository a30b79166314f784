// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package hedge is the reference short-hedge strategy. It sizes a short
// notional against the net asset value of the account it protects.
package hedge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"

	"github.com/luxfi/database"
	"github.com/luxfi/ids"
	"github.com/luxfi/log"

	"github.com/luxfi/flightvm/oracle"
	"github.com/luxfi/flightvm/state"
	"github.com/luxfi/flightvm/strategy"
)

const BasisPoints = 10_000

var (
	ErrUnsupportedDirective = errors.New("unsupported directive")
	ErrInvalidRatio         = errors.New("hedge ratio out of range")

	_ strategy.Strategy = (*Hedge)(nil)

	keyPosition = []byte("position")
)

type Config struct {
	Address ids.ShortID
	// Account whose holdings are hedged.
	Account  ids.ShortID
	Assets   []ids.ID
	RatioBps uint64
}

type record struct {
	Cycle    uint64 `serialize:"true"`
	NAV      []byte `serialize:"true"`
	Notional []byte `serialize:"true"`
	OpenedAt int64  `serialize:"true"`
}

// Position is the open short position.
type Position struct {
	Cycle    uint64   `json:"cycle"`
	NAV      *big.Int `json:"nav"`
	Notional *big.Int `json:"notional"`
	OpenedAt int64    `json:"openedAt"`
}

type Hedge struct {
	log      log.Logger
	config   Config
	guard    *oracle.Guard
	balances oracle.Balances
	db       database.Database
}

func New(
	logger log.Logger,
	config Config,
	guard *oracle.Guard,
	balances oracle.Balances,
	db database.Database,
) (*Hedge, error) {
	if config.RatioBps == 0 || config.RatioBps > BasisPoints {
		return nil, fmt.Errorf("%w: %d", ErrInvalidRatio, config.RatioBps)
	}
	return &Hedge{
		log:      logger,
		config:   config,
		guard:    guard,
		balances: balances,
		db:       db,
	}, nil
}

func (h *Hedge) Address() ids.ShortID {
	return h.config.Address
}

// Validate requires a fresh, positive price for every hedged asset, held or
// not, so a hedge is never sized from a partial picture.
func (h *Hedge) Validate(_ context.Context, req strategy.Request) error {
	if req.Directive != strategy.OpenHedge {
		return fmt.Errorf("%w: %s", ErrUnsupportedDirective, req.Directive)
	}
	for _, asset := range h.config.Assets {
		if _, err := h.guard.Price(asset); err != nil {
			return err
		}
	}
	return nil
}

func (h *Hedge) Execute(ctx context.Context, req strategy.Request) error {
	if err := h.Validate(ctx, req); err != nil {
		return err
	}
	nav, _, err := oracle.NAV(h.guard, h.balances, h.config.Account, h.config.Assets)
	if err != nil {
		return err
	}
	notional := new(big.Int).Mul(nav, new(big.Int).SetUint64(h.config.RatioBps))
	notional.Div(notional, big.NewInt(BasisPoints))

	h.log.Info("opened hedge",
		log.Uint64("cycle", req.Cycle),
		log.Stringer("nav", nav),
		log.Stringer("notional", notional),
	)
	return state.PutRecord(h.db, keyPosition, &record{
		Cycle:    req.Cycle,
		NAV:      nav.Bytes(),
		Notional: notional.Bytes(),
		OpenedAt: req.Time.Unix(),
	})
}

// Position returns the most recent hedge, if any.
func (h *Hedge) Position() (Position, bool, error) {
	var r record
	ok, err := state.GetRecord(h.db, keyPosition, &r)
	if err != nil || !ok {
		return Position{}, false, err
	}
	return Position{
		Cycle:    r.Cycle,
		NAV:      new(big.Int).SetBytes(r.NAV),
		Notional: new(big.Int).SetBytes(r.Notional),
		OpenedAt: r.OpenedAt,
	}, true, nil
}

func (h *Hedge) State(context.Context) ([]byte, error) {
	p, ok, err := h.Position()
	if err != nil {
		return nil, err
	}
	if !ok {
		return json.Marshal(nil)
	}
	return json.Marshal(p)
}
