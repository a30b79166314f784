// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package accumulation is the reference liquidity strategy. On Deploy it has
// the custody account move a fixed share of its base asset into the
// strategy's vault; on Unwind the vault is returned to custody.
package accumulation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/luxfi/database"
	"github.com/luxfi/ids"
	"github.com/luxfi/log"

	"github.com/luxfi/flightvm/custody"
	"github.com/luxfi/flightvm/ledger"
	"github.com/luxfi/flightvm/state"
	"github.com/luxfi/flightvm/strategy"

	safemath "github.com/luxfi/flightvm/utils/math"
)

// BasisPoints is the denominator of DeployBps.
const BasisPoints = 10_000

var (
	ErrUnsupportedDirective = errors.New("unsupported directive")
	ErrPositionOpen         = errors.New("position already open")
	ErrNoPosition           = errors.New("no open position")
	ErrNotUnwound           = errors.New("position not unwound")
	ErrNothingToDeploy      = errors.New("custody holds no base asset")
	ErrNoController         = errors.New("no controller attached")
	ErrInvalidBps           = errors.New("deploy share out of range")

	_ strategy.Strategy = (*Accumulation)(nil)

	keyPosition = []byte("position")
)

// Controller receives the unwind completion callback.
type Controller interface {
	CompleteUnwind(ctx context.Context, caller ids.ShortID) error
}

// Position is the strategy's single vault position.
type Position struct {
	Cycle    uint64 `serialize:"true" json:"cycle"`
	Deployed uint64 `serialize:"true" json:"deployed"`
	Returned uint64 `serialize:"true" json:"returned"`
	Unwound  bool   `serialize:"true" json:"unwound"`
}

// Config of an accumulation strategy.
type Config struct {
	Address   ids.ShortID
	Vault     ids.ShortID
	Custody   ids.ShortID
	BaseAsset ids.ID
	DeployBps uint64
}

type Accumulation struct {
	log        log.Logger
	config     Config
	agent      custody.TreasuryAgent
	assets     *ledger.Ledger
	db         database.Database
	controller Controller
}

// New returns the strategy. agent must be the custody account bound to
// config.Address as its module identity.
func New(
	logger log.Logger,
	config Config,
	agent custody.TreasuryAgent,
	assets *ledger.Ledger,
	db database.Database,
) (*Accumulation, error) {
	if config.DeployBps == 0 || config.DeployBps > BasisPoints {
		return nil, fmt.Errorf("%w: %d", ErrInvalidBps, config.DeployBps)
	}
	return &Accumulation{
		log:    logger,
		config: config,
		agent:  agent,
		assets: assets,
		db:     db,
	}, nil
}

// Attach sets the controller notified by ReportUnwind.
func (a *Accumulation) Attach(c Controller) {
	a.controller = c
}

func (a *Accumulation) Address() ids.ShortID {
	return a.config.Address
}

// Position returns the current position, if any.
func (a *Accumulation) Position() (Position, bool, error) {
	var p Position
	ok, err := state.GetRecord(a.db, keyPosition, &p)
	return p, ok, err
}

func (a *Accumulation) Validate(_ context.Context, req strategy.Request) error {
	p, ok, err := a.Position()
	if err != nil {
		return err
	}
	switch req.Directive {
	case strategy.Deploy:
		if ok && !p.Unwound {
			return fmt.Errorf("%w: cycle %d", ErrPositionOpen, p.Cycle)
		}
		balance, err := a.assets.Balance(a.config.BaseAsset, a.config.Custody)
		if err != nil {
			return err
		}
		if balance == 0 {
			return ErrNothingToDeploy
		}
		return nil
	case strategy.Unwind:
		if !ok || p.Unwound {
			return ErrNoPosition
		}
		return nil
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedDirective, req.Directive)
	}
}

func (a *Accumulation) Execute(ctx context.Context, req strategy.Request) error {
	if err := a.Validate(ctx, req); err != nil {
		return err
	}
	switch req.Directive {
	case strategy.Deploy:
		return a.deploy(ctx, req)
	default:
		return a.unwind(req)
	}
}

func (a *Accumulation) deploy(ctx context.Context, req strategy.Request) error {
	balance, err := a.assets.Balance(a.config.BaseAsset, a.config.Custody)
	if err != nil {
		return err
	}
	amount, err := safemath.MulDiv(balance, a.config.DeployBps, BasisPoints)
	if err != nil {
		return err
	}
	if amount > 0 {
		if err := a.agent.Execute(ctx, a.config.Vault, amount, nil, custody.Call); err != nil {
			return err
		}
	}
	a.log.Info("deployed treasury into vault",
		log.Uint64("cycle", req.Cycle),
		log.Uint64("amount", amount),
	)
	return state.PutRecord(a.db, keyPosition, &Position{
		Cycle:    req.Cycle,
		Deployed: amount,
	})
}

func (a *Accumulation) unwind(req strategy.Request) error {
	p, _, err := a.Position()
	if err != nil {
		return err
	}
	held, err := a.assets.Balance(a.config.BaseAsset, a.config.Vault)
	if err != nil {
		return err
	}
	if held > 0 {
		if err := a.assets.Transfer(a.config.BaseAsset, a.config.Vault, a.config.Custody, held); err != nil {
			return err
		}
	}
	p.Returned = held
	p.Unwound = true
	a.log.Info("unwound vault into custody",
		log.Uint64("cycle", req.Cycle),
		log.Uint64("amount", held),
	)
	return state.PutRecord(a.db, keyPosition, &p)
}

// ReportUnwind tells the controller the unwind has settled. It runs as its
// own controller operation, after the transition that ordered the unwind.
func (a *Accumulation) ReportUnwind(ctx context.Context) error {
	if a.controller == nil {
		return ErrNoController
	}
	p, ok, err := a.Position()
	if err != nil {
		return err
	}
	if !ok || !p.Unwound {
		return ErrNotUnwound
	}
	return a.controller.CompleteUnwind(ctx, a.config.Address)
}

func (a *Accumulation) State(context.Context) ([]byte, error) {
	p, _, err := a.Position()
	if err != nil {
		return nil, err
	}
	return json.Marshal(p)
}
