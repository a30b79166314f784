// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package ledger tracks fungible balances per (asset, account) and the
// supply of every asset. Participation rights and treasury assets share it.
package ledger

import (
	"errors"
	"fmt"

	"github.com/luxfi/database"
	"github.com/luxfi/ids"

	"github.com/luxfi/flightvm/faults"
	"github.com/luxfi/flightvm/state"

	safemath "github.com/luxfi/flightvm/utils/math"
)

var (
	ErrInsufficientBalance = fmt.Errorf("%w: insufficient balance", faults.ErrPrecondition)
	ErrInvalidAmount       = errors.New("amount must be positive")
	ErrSupplyOverflow      = errors.New("asset supply overflow")

	prefixBalance = []byte("balance:")
	prefixSupply  = []byte("supply:")
)

// Ledger is a database-backed balance sheet. It keeps no in-memory copy, so
// a write made inside an aborted transaction leaves no trace.
type Ledger struct {
	db database.Database
}

// New returns a ledger stored in db.
func New(db database.Database) *Ledger {
	return &Ledger{db: db}
}

func balanceKey(asset ids.ID, account ids.ShortID) []byte {
	return state.Key(prefixBalance, asset[:], account[:])
}

func supplyKey(asset ids.ID) []byte {
	return state.Key(prefixSupply, asset[:])
}

// Balance returns the balance of account in asset.
func (l *Ledger) Balance(asset ids.ID, account ids.ShortID) (uint64, error) {
	return state.GetUint64(l.db, balanceKey(asset, account))
}

// Supply returns the total supply of asset.
func (l *Ledger) Supply(asset ids.ID) (uint64, error) {
	return state.GetUint64(l.db, supplyKey(asset))
}

// Mint creates amount of asset in account.
func (l *Ledger) Mint(asset ids.ID, account ids.ShortID, amount uint64) error {
	if amount == 0 {
		return ErrInvalidAmount
	}
	supply, err := l.Supply(asset)
	if err != nil {
		return err
	}
	newSupply, err := safemath.Add(supply, amount)
	if err != nil {
		return ErrSupplyOverflow
	}
	balance, err := l.Balance(asset, account)
	if err != nil {
		return err
	}
	if err := state.PutUint64(l.db, balanceKey(asset, account), balance+amount); err != nil {
		return err
	}
	return state.PutUint64(l.db, supplyKey(asset), newSupply)
}

// Burn destroys amount of asset held by account.
func (l *Ledger) Burn(asset ids.ID, account ids.ShortID, amount uint64) error {
	if amount == 0 {
		return ErrInvalidAmount
	}
	balance, err := l.Balance(asset, account)
	if err != nil {
		return err
	}
	newBalance, err := safemath.Sub(balance, amount)
	if err != nil {
		return fmt.Errorf("%w: %s holds %d, burning %d", ErrInsufficientBalance, account, balance, amount)
	}
	supply, err := l.Supply(asset)
	if err != nil {
		return err
	}
	newSupply, err := safemath.Sub(supply, amount)
	if err != nil {
		return fmt.Errorf("%w: supply %d below burn %d", state.ErrCorrupted, supply, amount)
	}
	if err := state.PutUint64(l.db, balanceKey(asset, account), newBalance); err != nil {
		return err
	}
	return state.PutUint64(l.db, supplyKey(asset), newSupply)
}

// Transfer moves amount of asset from one account to another. Either both
// balances change or neither does.
func (l *Ledger) Transfer(asset ids.ID, from, to ids.ShortID, amount uint64) error {
	if amount == 0 {
		return ErrInvalidAmount
	}
	fromBalance, err := l.Balance(asset, from)
	if err != nil {
		return err
	}
	newFrom, err := safemath.Sub(fromBalance, amount)
	if err != nil {
		return fmt.Errorf("%w: %s holds %d, moving %d", ErrInsufficientBalance, from, fromBalance, amount)
	}
	if from == to {
		return nil
	}
	toBalance, err := l.Balance(asset, to)
	if err != nil {
		return err
	}
	// Balances are bounded by supply, which Mint keeps below 2^64.
	if err := state.PutUint64(l.db, balanceKey(asset, from), newFrom); err != nil {
		return err
	}
	return state.PutUint64(l.db, balanceKey(asset, to), toBalance+amount)
}

// Asset binds a ledger to a single asset.
func (l *Ledger) Asset(asset ids.ID) *Asset {
	return &Asset{ledger: l, id: asset}
}

// Asset is the single-asset view of a ledger. Bound to the participation
// right asset it is the membership ledger.
type Asset struct {
	ledger *Ledger
	id     ids.ID
}

func (a *Asset) ID() ids.ID {
	return a.id
}

func (a *Asset) BalanceOf(account ids.ShortID) (uint64, error) {
	return a.ledger.Balance(a.id, account)
}

func (a *Asset) TotalSupply() (uint64, error) {
	return a.ledger.Supply(a.id)
}

func (a *Asset) Transfer(from, to ids.ShortID, amount uint64) error {
	return a.ledger.Transfer(a.id, from, to, amount)
}

func (a *Asset) Mint(account ids.ShortID, amount uint64) error {
	return a.ledger.Mint(a.id, account, amount)
}

func (a *Asset) Burn(account ids.ShortID, amount uint64) error {
	return a.ledger.Burn(a.id, account, amount)
}
