// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package boarding implements the contribution window that funds a treasury
// before its first flight.
package boarding

import (
	"fmt"
	"time"

	"github.com/luxfi/database"
	"github.com/luxfi/ids"
	"github.com/luxfi/log"

	"github.com/luxfi/flightvm/faults"
	"github.com/luxfi/flightvm/ledger"
	"github.com/luxfi/flightvm/state"

	safemath "github.com/luxfi/flightvm/utils/math"
)

var (
	ErrInvalidTarget     = fmt.Errorf("%w: target must be positive", faults.ErrPrecondition)
	ErrInvalidAmount     = fmt.Errorf("%w: amount must be positive", faults.ErrPrecondition)
	ErrNoWindow          = fmt.Errorf("%w: boarding window not opened", faults.ErrPrecondition)
	ErrWindowOpen        = fmt.Errorf("%w: boarding window already open", faults.ErrPrecondition)
	ErrAlreadySucceeded  = fmt.Errorf("%w: boarding already succeeded", faults.ErrPrecondition)
	ErrWindowClosed      = fmt.Errorf("%w: boarding window closed", faults.ErrPrecondition)
	ErrRefundUnavailable = fmt.Errorf("%w: refunds only follow a failed window", faults.ErrPrecondition)
	ErrNothingToRefund   = fmt.Errorf("%w: no contribution to refund", faults.ErrPrecondition)
	ErrClaimUnavailable  = fmt.Errorf("%w: shares only follow a successful window", faults.ErrPrecondition)
	ErrNothingToClaim    = fmt.Errorf("%w: no unclaimed contribution", faults.ErrPrecondition)
	ErrUnknownRound      = fmt.Errorf("%w: unknown boarding round", faults.ErrPrecondition)

	keyRound           = []byte("round")
	prefixWindow       = []byte("window:")
	prefixContribution = []byte("contribution:")
	prefixClaimed      = []byte("claimed:")
)

// Status of a boarding window. Anything but Open is frozen.
type Status uint8

const (
	Open Status = iota
	Succeeded
	Failed
)

func (s Status) String() string {
	switch s {
	case Open:
		return "open"
	case Succeeded:
		return "succeeded"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("Status(%d)", uint8(s))
	}
}

// Outcome of evaluating an open window.
type Outcome uint8

const (
	// Pending: still collecting.
	Pending Outcome = iota
	// Reached: raised met the target.
	Reached
	// Forced: expired with at least the forced launch share of the target.
	Forced
	// Short: expired below the forced launch share.
	Short
)

func (o Outcome) String() string {
	switch o {
	case Pending:
		return "pending"
	case Reached:
		return "reached"
	case Forced:
		return "forced"
	case Short:
		return "short"
	default:
		return fmt.Sprintf("Outcome(%d)", uint8(o))
	}
}

// Window is one boarding round. Times are unix seconds.
type Window struct {
	Round    uint64 `serialize:"true" json:"round"`
	Start    int64  `serialize:"true" json:"start"`
	Deadline int64  `serialize:"true" json:"deadline"`
	Target   uint64 `serialize:"true" json:"target"`
	Raised   uint64 `serialize:"true" json:"raised"`
	Status   Status `serialize:"true" json:"status"`
	Forced   bool   `serialize:"true" json:"forced"`
}

// Expired reports whether the window has closed at now.
func (w Window) Expired(now time.Time) bool {
	return now.Unix() >= w.Deadline
}

// Config fixes the rules of every window.
type Config struct {
	Duration            time.Duration
	ForcedLaunchPercent uint64
	BaseAsset           ids.ID
	// Escrow holds contributions until the window settles.
	Escrow ids.ShortID
	// Custody receives the raise of a successful window.
	Custody ids.ShortID
}

// Ledger records contributions per round and account.
type Ledger struct {
	log     log.Logger
	config  Config
	db      database.Database
	assets  *ledger.Ledger
	members *ledger.Asset
}

func New(
	logger log.Logger,
	config Config,
	db database.Database,
	assets *ledger.Ledger,
	members *ledger.Asset,
) *Ledger {
	return &Ledger{
		log:     logger,
		config:  config,
		db:      db,
		assets:  assets,
		members: members,
	}
}

func windowKey(round uint64) []byte {
	return state.Key(prefixWindow, state.Uint64Bytes(round))
}

func contributionKey(round uint64, account ids.ShortID) []byte {
	return state.Key(prefixContribution, state.Uint64Bytes(round), account[:])
}

func claimedKey(round uint64, account ids.ShortID) []byte {
	return state.Key(prefixClaimed, state.Uint64Bytes(round), account[:])
}

// Round returns the latest round number, zero before the first Open.
func (l *Ledger) Round() (uint64, error) {
	return state.GetUint64(l.db, keyRound)
}

// Window returns round's window.
func (l *Ledger) Window(round uint64) (Window, error) {
	var w Window
	ok, err := state.GetRecord(l.db, windowKey(round), &w)
	if err != nil {
		return Window{}, err
	}
	if !ok {
		return Window{}, fmt.Errorf("%w: %d", ErrUnknownRound, round)
	}
	return w, nil
}

// Current returns the latest window, if any round was opened.
func (l *Ledger) Current() (Window, bool, error) {
	round, err := l.Round()
	if err != nil || round == 0 {
		return Window{}, false, err
	}
	w, err := l.Window(round)
	return w, err == nil, err
}

func (l *Ledger) put(w Window) error {
	return state.PutRecord(l.db, windowKey(w.Round), &w)
}

// Open starts a new round. A new round may follow only a failed one.
func (l *Ledger) Open(target uint64, now time.Time) (Window, error) {
	if target == 0 {
		return Window{}, ErrInvalidTarget
	}
	current, ok, err := l.Current()
	if err != nil {
		return Window{}, err
	}
	if ok {
		switch current.Status {
		case Open:
			return Window{}, fmt.Errorf("%w: round %d", ErrWindowOpen, current.Round)
		case Succeeded:
			return Window{}, ErrAlreadySucceeded
		}
	}
	w := Window{
		Round:    current.Round + 1,
		Start:    now.Unix(),
		Deadline: now.Add(l.config.Duration).Unix(),
		Target:   target,
		Status:   Open,
	}
	if err := state.PutUint64(l.db, keyRound, w.Round); err != nil {
		return Window{}, err
	}
	if err := l.put(w); err != nil {
		return Window{}, err
	}
	l.log.Info("boarding opened",
		log.Uint64("round", w.Round),
		log.Uint64("target", target),
		log.Time("deadline", time.Unix(w.Deadline, 0)),
	)
	return w, nil
}

// Contribute escrows amount of the base asset from account into the open
// window.
func (l *Ledger) Contribute(account ids.ShortID, amount uint64, now time.Time) (Window, error) {
	if amount == 0 {
		return Window{}, ErrInvalidAmount
	}
	w, ok, err := l.Current()
	if err != nil {
		return Window{}, err
	}
	if !ok {
		return Window{}, ErrNoWindow
	}
	if w.Status != Open || w.Expired(now) {
		return Window{}, fmt.Errorf("%w: round %d", ErrWindowClosed, w.Round)
	}
	raised, err := safemath.Add(w.Raised, amount)
	if err != nil {
		return Window{}, err
	}
	if err := l.assets.Transfer(l.config.BaseAsset, account, l.config.Escrow, amount); err != nil {
		return Window{}, err
	}
	contributed, err := l.Contribution(w.Round, account)
	if err != nil {
		return Window{}, err
	}
	// Bounded by raised.
	if err := state.PutUint64(l.db, contributionKey(w.Round, account), contributed+amount); err != nil {
		return Window{}, err
	}
	w.Raised = raised
	return w, l.put(w)
}

// Contribution returns the recorded contribution of account in round.
func (l *Ledger) Contribution(round uint64, account ids.ShortID) (uint64, error) {
	return state.GetUint64(l.db, contributionKey(round, account))
}

// TotalRaised returns the raise of the latest round.
func (l *Ledger) TotalRaised() (uint64, error) {
	w, _, err := l.Current()
	return w.Raised, err
}

// Evaluate classifies the latest window at now. Frozen windows and missing
// windows are Pending.
func (l *Ledger) Evaluate(now time.Time) (Outcome, error) {
	w, ok, err := l.Current()
	if err != nil || !ok || w.Status != Open {
		return Pending, err
	}
	switch {
	case w.Raised >= w.Target:
		return Reached, nil
	case !w.Expired(now):
		return Pending, nil
	case safemath.AtLeastPercent(w.Raised, w.Target, l.config.ForcedLaunchPercent):
		return Forced, nil
	default:
		return Short, nil
	}
}

// MarkSucceeded freezes the open window as successful and sweeps its raise
// into custody.
func (l *Ledger) MarkSucceeded(forced bool) (Window, error) {
	w, err := l.openWindow()
	if err != nil {
		return Window{}, err
	}
	if w.Raised > 0 {
		if err := l.assets.Transfer(l.config.BaseAsset, l.config.Escrow, l.config.Custody, w.Raised); err != nil {
			return Window{}, err
		}
	}
	w.Status = Succeeded
	w.Forced = forced
	return w, l.put(w)
}

// MarkFailed freezes the open window as failed, opening refunds.
func (l *Ledger) MarkFailed() (Window, error) {
	w, err := l.openWindow()
	if err != nil {
		return Window{}, err
	}
	w.Status = Failed
	return w, l.put(w)
}

func (l *Ledger) openWindow() (Window, error) {
	w, ok, err := l.Current()
	if err != nil {
		return Window{}, err
	}
	if !ok {
		return Window{}, ErrNoWindow
	}
	if w.Status != Open {
		return Window{}, fmt.Errorf("%w: round %d is %s", ErrWindowClosed, w.Round, w.Status)
	}
	return w, nil
}

// Refund returns the exact contribution of account in a failed round.
func (l *Ledger) Refund(account ids.ShortID, round uint64) (uint64, error) {
	w, err := l.Window(round)
	if err != nil {
		return 0, err
	}
	if w.Status != Failed {
		return 0, fmt.Errorf("%w: round %d is %s", ErrRefundUnavailable, round, w.Status)
	}
	amount, err := l.Contribution(round, account)
	if err != nil {
		return 0, err
	}
	if amount == 0 {
		return 0, ErrNothingToRefund
	}
	if err := state.PutUint64(l.db, contributionKey(round, account), 0); err != nil {
		return 0, err
	}
	if err := l.assets.Transfer(l.config.BaseAsset, l.config.Escrow, account, amount); err != nil {
		return 0, err
	}
	return amount, nil
}

// ClaimShares mints participation rights 1:1 for the contribution of account
// in a successful round. Each contribution is claimable once.
func (l *Ledger) ClaimShares(account ids.ShortID, round uint64) (uint64, error) {
	w, err := l.Window(round)
	if err != nil {
		return 0, err
	}
	if w.Status != Succeeded {
		return 0, fmt.Errorf("%w: round %d is %s", ErrClaimUnavailable, round, w.Status)
	}
	claimed, err := l.db.Has(claimedKey(round, account))
	if err != nil {
		return 0, err
	}
	amount, err := l.Contribution(round, account)
	if err != nil {
		return 0, err
	}
	if claimed || amount == 0 {
		return 0, ErrNothingToClaim
	}
	if err := l.db.Put(claimedKey(round, account), []byte{1}); err != nil {
		return 0, err
	}
	if err := l.members.Mint(account, amount); err != nil {
		return 0, err
	}
	return amount, nil
}
