// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package api serves the flight machine over JSON-RPC. Reads are open to
// anyone; every mutating call acts as the subject of the request's bearer
// token.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"

	"github.com/luxfi/ids"
	"github.com/luxfi/log"

	"github.com/luxfi/flightvm/boarding"
	"github.com/luxfi/flightvm/custody"
	"github.com/luxfi/flightvm/events"
	"github.com/luxfi/flightvm/machine"
	"github.com/luxfi/flightvm/oracle"
	"github.com/luxfi/flightvm/phase"
	"github.com/luxfi/flightvm/strategy"

	avajson "github.com/luxfi/flightvm/utils/json"
)

const (
	serviceName = "flight"

	// maxEvents bounds one page of the journal.
	maxEvents = 1024
)

var (
	ErrNotBootstrapped = errors.New("flight vm not bootstrapped")
	ErrInvalidPrice    = errors.New("price must be a positive decimal integer")
	ErrUnknownCycle    = errors.New("unknown cycle")
)

// Backend is the VM surface the service reads and drives.
type Backend interface {
	Ready() bool
	Machine() *machine.Machine
	Balance(asset ids.ID, account ids.ShortID) (uint64, error)
	NAV() (*big.Int, []oracle.Valuation, error)
	UpdatePrice(ctx context.Context, caller ids.ShortID, asset ids.ID, price *big.Int) error
	ReportUnwind(ctx context.Context) error
}

// EmptyReply is the reply of calls that return nothing.
type EmptyReply struct{}

// Service is the JSON-RPC API of a flight VM.
type Service struct {
	log     log.Logger
	backend Backend
	machine *machine.Machine
	auth    *Auth
	history *history
}

// NewService returns the service. A nil auth disables every mutating call.
func NewService(logger log.Logger, backend Backend, auth *Auth, historySize int) (*Service, error) {
	h, err := newHistory(backend.Machine(), historySize)
	if err != nil {
		return nil, err
	}
	return &Service{
		log:     logger,
		backend: backend,
		machine: backend.Machine(),
		auth:    auth,
		history: h,
	}, nil
}

func (s *Service) called(method string) {
	s.log.Debug("API called",
		log.String("service", serviceName),
		log.String("method", method),
	)
}

// caller authenticates a mutating call.
func (s *Service) caller(r *http.Request) (ids.ShortID, error) {
	if !s.backend.Ready() {
		return ids.ShortEmpty, ErrNotBootstrapped
	}
	if s.auth == nil {
		return ids.ShortEmpty, ErrAuthDisabled
	}
	return s.auth.Caller(r)
}

// StatusReply is the committed status of the machine.
type StatusReply struct {
	machine.Status
	CooldownEnds   int64 `json:"cooldownEnds,omitempty"`
	RedemptionOpen bool  `json:"redemptionOpen"`
}

func (s *Service) GetStatus(_ *http.Request, _ *struct{}, reply *StatusReply) error {
	s.called("getStatus")

	status, err := s.machine.Status()
	if err != nil {
		return err
	}
	open, err := s.machine.RedemptionOpen()
	if err != nil {
		return err
	}
	reply.Status = status
	reply.RedemptionOpen = open
	if status.Phase == phase.Terminal {
		reply.CooldownEnds = status.CooldownEnds(s.machine.Config().Rules.TerminalCooldown).Unix()
	}
	return nil
}

type PhaseArgs struct {
	Phase phase.Phase `json:"phase"`
}

type QuorumReply struct {
	Phase     phase.Phase    `json:"phase"`
	Percent   avajson.Uint64 `json:"percent"`
	Threshold avajson.Uint64 `json:"threshold"`
	Gated     bool           `json:"gated"`
}

// GetQuorum returns the stake quorum toward leaving a phase in the current
// cycle, against the current total supply.
func (s *Service) GetQuorum(_ *http.Request, args *PhaseArgs, reply *QuorumReply) error {
	s.called("getQuorum")

	percent, err := s.machine.Quorum(args.Phase)
	if err != nil {
		return err
	}
	threshold, gated := s.machine.Config().Rules.Threshold(args.Phase)
	reply.Phase = args.Phase
	reply.Percent = avajson.Uint64(percent)
	reply.Threshold = avajson.Uint64(threshold)
	reply.Gated = gated
	return nil
}

type StakeArgs struct {
	Cycle   avajson.Uint64 `json:"cycle"`
	Phase   phase.Phase    `json:"phase"`
	Account ids.ShortID    `json:"account"`
}

type StakeReply struct {
	Amount    avajson.Uint64 `json:"amount"`
	Withdrawn bool           `json:"withdrawn"`
}

func (s *Service) GetStake(_ *http.Request, args *StakeArgs, reply *StakeReply) error {
	s.called("getStake")

	r, err := s.machine.StakeOf(uint64(args.Cycle), args.Phase, args.Account)
	if err != nil {
		return err
	}
	reply.Amount = avajson.Uint64(r.Amount)
	reply.Withdrawn = r.Withdrawn
	return nil
}

type EventsArgs struct {
	// After is the last sequence number already seen.
	After avajson.Uint64 `json:"after"`
	Limit int            `json:"limit"`
	// Cycle, when set, selects the events of one cycle instead.
	Cycle avajson.Uint64 `json:"cycle"`
}

type EventsReply struct {
	Events []events.Event `json:"events"`
}

func (s *Service) GetEvents(_ *http.Request, args *EventsArgs, reply *EventsReply) error {
	s.called("getEvents")

	journal := s.machine.Journal()
	if args.Cycle > 0 {
		reply.Events = journal.Cycle(uint64(args.Cycle))
		return nil
	}
	limit := args.Limit
	if limit <= 0 || limit > maxEvents {
		limit = maxEvents
	}
	reply.Events = journal.Since(uint64(args.After), limit)
	return nil
}

type CycleArgs struct {
	Cycle avajson.Uint64 `json:"cycle"`
}

func (s *Service) GetCycle(_ *http.Request, args *CycleArgs, reply *machine.CycleRecord) error {
	s.called("getCycle")

	r, ok, err := s.history.cycle(uint64(args.Cycle))
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownCycle, args.Cycle)
	}
	*reply = r
	return nil
}

type BoardingReply struct {
	Opened bool            `json:"opened"`
	Window boarding.Window `json:"window"`
}

func (s *Service) GetBoarding(_ *http.Request, _ *struct{}, reply *BoardingReply) error {
	s.called("getBoarding")

	w, ok, err := s.machine.BoardingWindow()
	if err != nil {
		return err
	}
	reply.Opened = ok
	reply.Window = w
	return nil
}

type Position struct {
	Asset   ids.ID         `json:"asset"`
	Balance avajson.Uint64 `json:"balance"`
	Price   string         `json:"price"`
	Value   string         `json:"value"`
}

type NAVReply struct {
	NAV       string     `json:"nav"`
	Positions []Position `json:"positions"`
}

// GetNAV values the custody account at guarded prices. A stale price fails
// the whole valuation.
func (s *Service) GetNAV(_ *http.Request, _ *struct{}, reply *NAVReply) error {
	s.called("getNAV")

	total, positions, err := s.backend.NAV()
	if err != nil {
		return err
	}
	reply.NAV = total.String()
	reply.Positions = make([]Position, len(positions))
	for i, p := range positions {
		reply.Positions[i] = Position{
			Asset:   p.Asset,
			Balance: avajson.Uint64(p.Balance),
			Price:   p.Price.String(),
			Value:   p.Value.String(),
		}
	}
	return nil
}

type BalanceArgs struct {
	Asset   ids.ID      `json:"asset"`
	Account ids.ShortID `json:"account"`
}

type BalanceReply struct {
	Balance avajson.Uint64 `json:"balance"`
}

func (s *Service) GetBalance(_ *http.Request, args *BalanceArgs, reply *BalanceReply) error {
	s.called("getBalance")

	balance, err := s.backend.Balance(args.Asset, args.Account)
	if err != nil {
		return err
	}
	reply.Balance = avajson.Uint64(balance)
	return nil
}

type KindArgs struct {
	Kind strategy.Kind `json:"kind"`
}

type StrategyStateReply struct {
	State json.RawMessage `json:"state"`
}

func (s *Service) GetStrategyState(r *http.Request, args *KindArgs, reply *StrategyStateReply) error {
	s.called("getStrategyState")

	b, err := s.machine.StrategyState(r.Context(), args.Kind)
	if err != nil {
		return err
	}
	reply.State = b
	return nil
}

type AmountArgs struct {
	Amount avajson.Uint64 `json:"amount"`
}

type RoundArgs struct {
	Round avajson.Uint64 `json:"round"`
}

type OutcomeReply struct {
	Outcome string `json:"outcome"`
}

type AmountReply struct {
	Amount avajson.Uint64 `json:"amount"`
}

func (s *Service) OpenBoarding(r *http.Request, args *AmountArgs, reply *boarding.Window) error {
	s.called("openBoarding")

	caller, err := s.caller(r)
	if err != nil {
		return err
	}
	w, err := s.machine.OpenBoarding(r.Context(), caller, uint64(args.Amount))
	if err != nil {
		return err
	}
	*reply = w
	return nil
}

func (s *Service) Contribute(r *http.Request, args *AmountArgs, reply *OutcomeReply) error {
	s.called("contribute")

	caller, err := s.caller(r)
	if err != nil {
		return err
	}
	outcome, err := s.machine.Contribute(r.Context(), caller, uint64(args.Amount))
	if err != nil {
		return err
	}
	reply.Outcome = outcome.String()
	return nil
}

func (s *Service) CheckBoarding(r *http.Request, _ *struct{}, reply *OutcomeReply) error {
	s.called("checkBoarding")

	caller, err := s.caller(r)
	if err != nil {
		return err
	}
	outcome, err := s.machine.CheckBoarding(r.Context(), caller)
	if err != nil {
		return err
	}
	reply.Outcome = outcome.String()
	return nil
}

func (s *Service) Refund(r *http.Request, args *RoundArgs, reply *AmountReply) error {
	s.called("refund")

	caller, err := s.caller(r)
	if err != nil {
		return err
	}
	amount, err := s.machine.Refund(r.Context(), caller, uint64(args.Round))
	reply.Amount = avajson.Uint64(amount)
	return err
}

func (s *Service) ClaimShares(r *http.Request, args *RoundArgs, reply *AmountReply) error {
	s.called("claimShares")

	caller, err := s.caller(r)
	if err != nil {
		return err
	}
	amount, err := s.machine.ClaimShares(r.Context(), caller, uint64(args.Round))
	reply.Amount = avajson.Uint64(amount)
	return err
}

func (s *Service) Stake(r *http.Request, args *AmountArgs, _ *EmptyReply) error {
	s.called("stake")

	caller, err := s.caller(r)
	if err != nil {
		return err
	}
	return s.machine.Stake(r.Context(), caller, uint64(args.Amount))
}

func (s *Service) Unstake(r *http.Request, args *AmountArgs, _ *EmptyReply) error {
	s.called("unstake")

	caller, err := s.caller(r)
	if err != nil {
		return err
	}
	return s.machine.Unstake(r.Context(), caller, uint64(args.Amount))
}

type WithdrawArgs struct {
	Cycle avajson.Uint64 `json:"cycle"`
	Phase phase.Phase    `json:"phase"`
}

func (s *Service) Withdraw(r *http.Request, args *WithdrawArgs, reply *AmountReply) error {
	s.called("withdraw")

	caller, err := s.caller(r)
	if err != nil {
		return err
	}
	amount, err := s.machine.Withdraw(r.Context(), caller, uint64(args.Cycle), args.Phase)
	reply.Amount = avajson.Uint64(amount)
	return err
}

// signal runs a transition that takes nothing but the caller.
func (s *Service) signal(r *http.Request, method string, op func(context.Context, ids.ShortID) error) error {
	s.called(method)

	caller, err := s.caller(r)
	if err != nil {
		return err
	}
	return op(r.Context(), caller)
}

func (s *Service) ConfirmTakeOff(r *http.Request, _ *struct{}, _ *EmptyReply) error {
	return s.signal(r, "confirmTakeOff", s.machine.ConfirmTakeOff)
}

func (s *Service) ReachPeak(r *http.Request, _ *struct{}, _ *EmptyReply) error {
	return s.signal(r, "reachPeak", s.machine.ReachPeak)
}

func (s *Service) CompleteUnwind(r *http.Request, _ *struct{}, _ *EmptyReply) error {
	return s.signal(r, "completeUnwind", s.machine.CompleteUnwind)
}

func (s *Service) ConfirmDescent(r *http.Request, _ *struct{}, _ *EmptyReply) error {
	return s.signal(r, "confirmDescent", s.machine.ConfirmDescent)
}

func (s *Service) BeginLanding(r *http.Request, _ *struct{}, _ *EmptyReply) error {
	return s.signal(r, "beginLanding", s.machine.BeginLanding)
}

func (s *Service) EnterTerminal(r *http.Request, _ *struct{}, _ *EmptyReply) error {
	return s.signal(r, "enterTerminal", s.machine.EnterTerminal)
}

func (s *Service) RestartCycle(r *http.Request, _ *struct{}, _ *EmptyReply) error {
	return s.signal(r, "restartCycle", s.machine.RestartCycle)
}

// ReportUnwind pokes the accumulation strategy to report a settled unwind.
// The machine authorizes the strategy itself, so any caller may poke it.
func (s *Service) ReportUnwind(r *http.Request, _ *struct{}, _ *EmptyReply) error {
	s.called("reportUnwind")

	if !s.backend.Ready() {
		return ErrNotBootstrapped
	}
	return s.backend.ReportUnwind(r.Context())
}

type SetStrategyArgs struct {
	Kind    strategy.Kind `json:"kind"`
	Address ids.ShortID   `json:"address"`
}

func (s *Service) SetStrategy(r *http.Request, args *SetStrategyArgs, _ *EmptyReply) error {
	s.called("setStrategy")

	caller, err := s.caller(r)
	if err != nil {
		return err
	}
	return s.machine.SetStrategy(r.Context(), caller, args.Kind, args.Address)
}

type RageQuitArgs struct {
	Shares avajson.Uint64 `json:"shares"`
}

type Payout struct {
	Asset  ids.ID         `json:"asset"`
	Amount avajson.Uint64 `json:"amount"`
}

type RageQuitReply struct {
	Payouts []Payout `json:"payouts"`
}

func (s *Service) RageQuit(r *http.Request, args *RageQuitArgs, reply *RageQuitReply) error {
	s.called("rageQuit")

	caller, err := s.caller(r)
	if err != nil {
		return err
	}
	payouts, err := s.machine.RageQuit(r.Context(), caller, uint64(args.Shares))
	if err != nil {
		return err
	}
	reply.Payouts = toPayouts(payouts)
	return nil
}

func toPayouts(in []custody.Payout) []Payout {
	out := make([]Payout, len(in))
	for i, p := range in {
		out[i] = Payout{
			Asset:  p.Asset,
			Amount: avajson.Uint64(p.Amount),
		}
	}
	return out
}

type UpdatePriceArgs struct {
	Asset ids.ID `json:"asset"`
	// Price is a decimal integer in 1e18 fixed point.
	Price string `json:"price"`
}

func (s *Service) UpdatePrice(r *http.Request, args *UpdatePriceArgs, _ *EmptyReply) error {
	s.called("updatePrice")

	caller, err := s.caller(r)
	if err != nil {
		return err
	}
	price, ok := new(big.Int).SetString(args.Price, 10)
	if !ok || price.Sign() <= 0 {
		return fmt.Errorf("%w: %q", ErrInvalidPrice, args.Price)
	}
	return s.backend.UpdatePrice(r.Context(), caller, args.Asset, price)
}
