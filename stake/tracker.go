// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package stake tracks participation rights staked toward the gating
// condition of a phase. Stakes are keyed by (cycle, phase, account) so stakes
// of different cycles never mix.
package stake

import (
	"fmt"

	"github.com/luxfi/database"
	"github.com/luxfi/ids"
	"github.com/luxfi/log"
	"github.com/luxfi/math/set"

	"github.com/luxfi/flightvm/faults"
	"github.com/luxfi/flightvm/ledger"
	"github.com/luxfi/flightvm/phase"
	"github.com/luxfi/flightvm/state"

	safemath "github.com/luxfi/flightvm/utils/math"
)

var (
	ErrInvalidAmount     = fmt.Errorf("%w: amount must be positive", faults.ErrPrecondition)
	ErrInsufficientStake = fmt.Errorf("%w: insufficient stake", faults.ErrPrecondition)
	ErrNothingToWithdraw = fmt.Errorf("%w: nothing to withdraw", faults.ErrPrecondition)

	prefixRecord    = []byte("record:")
	prefixAggregate = []byte("aggregate:")
	prefixRoster    = []byte("roster:")
)

// Record is the stake of one account toward one (cycle, phase). It is never
// deleted: Withdrawn marks the escrow as reclaimed while Amount stays
// queryable for reward accounting.
type Record struct {
	Amount    uint64 `serialize:"true" json:"amount"`
	Withdrawn bool   `serialize:"true" json:"withdrawn"`
}

// Tracker holds staked participation rights in escrow. The flight machine is
// the only caller; it decides which (cycle, phase) may be staked into.
type Tracker struct {
	log     log.Logger
	db      database.Database
	members *ledger.Asset
	escrow  ids.ShortID
}

// New returns a tracker escrowing members rights at escrow.
func New(logger log.Logger, db database.Database, members *ledger.Asset, escrow ids.ShortID) *Tracker {
	return &Tracker{
		log:     logger,
		db:      db,
		members: members,
		escrow:  escrow,
	}
}

func scope(cycle uint64, p phase.Phase) []byte {
	return state.Key(state.Uint64Bytes(cycle), []byte{byte(p)})
}

func recordKey(cycle uint64, p phase.Phase, account ids.ShortID) []byte {
	return state.Key(prefixRecord, scope(cycle, p), account[:])
}

func aggregateKey(cycle uint64, p phase.Phase) []byte {
	return state.Key(prefixAggregate, scope(cycle, p))
}

func rosterPrefix(cycle uint64, p phase.Phase) []byte {
	return state.Key(prefixRoster, scope(cycle, p))
}

func rosterKey(cycle uint64, p phase.Phase, account ids.ShortID) []byte {
	return state.Key(rosterPrefix(cycle, p), account[:])
}

// StakeOf returns the record of account for (cycle, p).
func (t *Tracker) StakeOf(cycle uint64, p phase.Phase, account ids.ShortID) (Record, error) {
	var r Record
	_, err := state.GetRecord(t.db, recordKey(cycle, p, account), &r)
	return r, err
}

// Aggregate returns the total staked toward (cycle, p) since its last clear.
func (t *Tracker) Aggregate(cycle uint64, p phase.Phase) (uint64, error) {
	return state.GetUint64(t.db, aggregateKey(cycle, p))
}

// Stake moves amount participation rights from account into escrow.
func (t *Tracker) Stake(cycle uint64, p phase.Phase, account ids.ShortID, amount uint64) error {
	if amount == 0 {
		return ErrInvalidAmount
	}
	if err := t.members.Transfer(account, t.escrow, amount); err != nil {
		return err
	}
	r, err := t.StakeOf(cycle, p, account)
	if err != nil {
		return err
	}
	// Escrowed amounts are bounded by supply.
	r.Amount += amount
	if err := state.PutRecord(t.db, recordKey(cycle, p, account), &r); err != nil {
		return err
	}
	aggregate, err := t.Aggregate(cycle, p)
	if err != nil {
		return err
	}
	if err := state.PutUint64(t.db, aggregateKey(cycle, p), aggregate+amount); err != nil {
		return err
	}
	return t.db.Put(rosterKey(cycle, p, account), []byte{1})
}

// Unstake returns amount from escrow to account.
func (t *Tracker) Unstake(cycle uint64, p phase.Phase, account ids.ShortID, amount uint64) error {
	if amount == 0 {
		return ErrInvalidAmount
	}
	r, err := t.StakeOf(cycle, p, account)
	if err != nil {
		return err
	}
	remaining, err := safemath.Sub(r.Amount, amount)
	if err != nil || r.Withdrawn {
		return fmt.Errorf("%w: %s staked %d, unstaking %d", ErrInsufficientStake, account, r.Amount, amount)
	}
	if err := t.members.Transfer(t.escrow, account, amount); err != nil {
		return err
	}
	r.Amount = remaining
	if err := state.PutRecord(t.db, recordKey(cycle, p, account), &r); err != nil {
		return err
	}
	aggregate, err := t.Aggregate(cycle, p)
	if err != nil {
		return err
	}
	// A cleared aggregate has already released this stake from the quorum.
	newAggregate, err := safemath.Sub(aggregate, amount)
	if err != nil {
		newAggregate = 0
	}
	if err := state.PutUint64(t.db, aggregateKey(cycle, p), newAggregate); err != nil {
		return err
	}
	if remaining == 0 {
		return t.db.Delete(rosterKey(cycle, p, account))
	}
	return nil
}

// Withdraw returns the whole escrow of account for a concluded (cycle, p).
// The record keeps its amount and is marked withdrawn.
func (t *Tracker) Withdraw(cycle uint64, p phase.Phase, account ids.ShortID) (uint64, error) {
	r, err := t.StakeOf(cycle, p, account)
	if err != nil {
		return 0, err
	}
	if r.Amount == 0 || r.Withdrawn {
		return 0, ErrNothingToWithdraw
	}
	if err := t.members.Transfer(t.escrow, account, r.Amount); err != nil {
		return 0, err
	}
	r.Withdrawn = true
	if err := state.PutRecord(t.db, recordKey(cycle, p, account), &r); err != nil {
		return 0, err
	}
	return r.Amount, nil
}

// QuorumPercent returns aggregate × 100 / current total supply of
// participation rights, rounded down. Supply is read at call time, so the
// percentage moves with supply.
func (t *Tracker) QuorumPercent(cycle uint64, p phase.Phase) (uint64, error) {
	aggregate, err := t.Aggregate(cycle, p)
	if err != nil {
		return 0, err
	}
	supply, err := t.members.TotalSupply()
	if err != nil {
		return 0, err
	}
	return safemath.Percent(aggregate, supply), nil
}

// Clear zeroes the aggregate of (cycle, p). Individual records stay.
func (t *Tracker) Clear(cycle uint64, p phase.Phase) error {
	aggregate, err := t.Aggregate(cycle, p)
	if err != nil {
		return err
	}
	t.log.Debug("clearing stake aggregate",
		log.Uint64("cycle", cycle),
		log.Stringer("phase", p),
		log.Uint64("aggregate", aggregate),
	)
	return state.PutUint64(t.db, aggregateKey(cycle, p), 0)
}

// Roster returns the accounts with a live stake toward (cycle, p).
func (t *Tracker) Roster(cycle uint64, p phase.Phase) (set.Set[ids.ShortID], error) {
	prefix := rosterPrefix(cycle, p)
	it := t.db.NewIteratorWithPrefix(prefix)
	defer it.Release()

	roster := set.NewSet[ids.ShortID](0)
	for it.Next() {
		account, err := ids.ToShortID(it.Key()[len(prefix):])
		if err != nil {
			return nil, fmt.Errorf("%w: roster key: %w", state.ErrCorrupted, err)
		}
		roster.Add(account)
	}
	return roster, it.Error()
}

// IsStaker reports whether account holds a live stake toward (cycle, p).
func (t *Tracker) IsStaker(cycle uint64, p phase.Phase, account ids.ShortID) (bool, error) {
	return t.db.Has(rosterKey(cycle, p, account))
}
