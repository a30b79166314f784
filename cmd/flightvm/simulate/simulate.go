// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package simulate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/luxfi/database/memdb"
	"github.com/luxfi/ids"
	"github.com/luxfi/log"

	"github.com/luxfi/flightvm"
	"github.com/luxfi/flightvm/custody"
	"github.com/luxfi/flightvm/events"
	"github.com/luxfi/flightvm/genesis"
	"github.com/luxfi/flightvm/machine"
	"github.com/luxfi/flightvm/oracle"
	"github.com/luxfi/flightvm/phase"
	"github.com/luxfi/flightvm/strategy"
	"github.com/luxfi/flightvm/utils/timer/mockable"
)

const (
	startPrice = 2_000
	priceStep  = 25
	phaseDwell = time.Hour
)

var (
	ErrNoMembers  = errors.New("simulation needs at least one member")
	ErrNoCycles   = errors.New("simulation needs at least one cycle")
	ErrSmallRaise = errors.New("target must cover one unit per member")

	start = time.Unix(1_700_000_000, 0)

	usd  = genesis.AssetID("USD")
	eth  = genesis.AssetID("ETH")
	seat = genesis.AssetID("SEAT")

	admin      = genesis.Address("simulate/admin")
	automation = genesis.Address("simulate/automation")
)

// Report is the outcome of a simulated flight.
type Report struct {
	Version string                `json:"version"`
	Cycles  []machine.CycleRecord `json:"cycles"`
	Status  machine.Status        `json:"status"`
	NAV     string                `json:"nav"`
	Payouts []custody.Payout      `json:"payouts,omitempty"`
	Events  []events.Event        `json:"events"`
}

type flight struct {
	log     log.Logger
	vm      *flightvm.VM
	m       *machine.Machine
	members []ids.ShortID
	step    int64
}

func member(i int) ids.ShortID {
	return genesis.Address(fmt.Sprintf("simulate/member-%d", i))
}

func newGenesis(members int, target uint64) ([]byte, error) {
	g := &genesis.Genesis{
		Timestamp:   start.Unix(),
		Admin:       admin,
		Automation:  automation,
		BaseAsset:   usd,
		MemberAsset: seat,
		Assets: []genesis.Asset{
			{ID: usd, Symbol: "USD", Price: 1},
			{ID: eth, Symbol: "ETH", Price: startPrice},
		},
		Allocations: []genesis.Allocation{
			{Asset: eth, Address: genesis.CustodyAddress, Balance: 1},
		},
	}
	for i := 0; i < members; i++ {
		g.Allocations = append(g.Allocations, genesis.Allocation{
			Asset:   usd,
			Address: member(i),
			Balance: target,
		})
	}
	return g.Bytes()
}

// Simulate flies an in memory VM through c.Cycles full cycles with c.Members
// participants, moving the ETH price between phases. In the last Terminal the
// last member rage quits.
func Simulate(ctx context.Context, logger log.Logger, c *Config) (*Report, error) {
	switch {
	case c.Members < 1:
		return nil, ErrNoMembers
	case c.Cycles < 1:
		return nil, ErrNoCycles
	case c.Target < uint64(c.Members):
		return nil, ErrSmallRaise
	}

	genesisBytes, err := newGenesis(c.Members, c.Target)
	if err != nil {
		return nil, err
	}
	clock := &mockable.Clock{}
	clock.Set(start)

	vm := flightvm.New(logger)
	err = vm.Initialize(ctx, &flightvm.Config{
		ChainID: ids.Empty,
		DB:      memdb.New(),
		Genesis: genesisBytes,
		Config:  c.VMConfig,
		Clock:   clock,
	})
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = vm.Shutdown(context.Background())
	}()
	if err := vm.SetState(ctx, flightvm.NormalOp); err != nil {
		return nil, err
	}

	f := &flight{
		log: logger,
		vm:  vm,
		m:   vm.Machine(),
	}
	for i := 0; i < c.Members; i++ {
		f.members = append(f.members, member(i))
	}

	if err := f.board(ctx, c.Target); err != nil {
		return nil, fmt.Errorf("boarding: %w", err)
	}
	report := &Report{Version: flightvm.Version.String()}
	for cycle := uint64(1); cycle <= uint64(c.Cycles); cycle++ {
		last := cycle == uint64(c.Cycles)
		payouts, err := f.fly(ctx, cycle, last)
		if err != nil {
			return nil, fmt.Errorf("cycle %d: %w", cycle, err)
		}
		report.Payouts = append(report.Payouts, payouts...)
	}

	for cycle := uint64(1); cycle <= uint64(c.Cycles); cycle++ {
		record, ok, err := f.m.Cycle(cycle)
		if err != nil {
			return nil, err
		}
		if ok {
			report.Cycles = append(report.Cycles, record)
		}
	}
	if report.Status, err = f.m.Status(); err != nil {
		return nil, err
	}
	nav, _, err := vm.NAV()
	if err != nil {
		return nil, err
	}
	report.NAV = nav.String()
	report.Events = f.m.Journal().Since(0, 0)
	return report, nil
}

// board opens a window for target and has every member contribute an equal
// share of it, which launches the first cycle.
func (f *flight) board(ctx context.Context, target uint64) error {
	for kind, address := range map[strategy.Kind]ids.ShortID{
		strategy.Accumulation: genesis.AccumulationAddress,
		strategy.Hedge:        genesis.HedgeAddress,
		strategy.Rebalance:    genesis.RebalanceAddress,
	} {
		if err := f.m.SetStrategy(ctx, admin, kind, address); err != nil {
			return err
		}
	}
	window, err := f.m.OpenBoarding(ctx, admin, target)
	if err != nil {
		return err
	}

	share := target / uint64(len(f.members))
	for i, member := range f.members {
		amount := share
		if i == len(f.members)-1 {
			amount = target - share*uint64(len(f.members)-1)
		}
		if _, err := f.m.Contribute(ctx, member, amount); err != nil {
			return err
		}
	}
	for _, member := range f.members {
		if _, err := f.m.ClaimShares(ctx, member, window.Round); err != nil {
			return err
		}
	}
	return nil
}

// fly takes a cycle from TakeOff to Terminal, then restarts it unless it is
// the last one.
func (f *flight) fly(ctx context.Context, cycle uint64, last bool) ([]custody.Payout, error) {
	pilot := f.members[0]

	if err := f.tick(ctx, phaseDwell); err != nil {
		return nil, err
	}
	if err := f.m.ConfirmTakeOff(ctx, automation); err != nil {
		return nil, err
	}

	if err := f.stakeAll(ctx); err != nil {
		return nil, err
	}
	if err := f.tick(ctx, phaseDwell); err != nil {
		return nil, err
	}
	if err := f.m.ReachPeak(ctx, pilot); err != nil {
		return nil, err
	}
	if err := f.vm.ReportUnwind(ctx); err != nil {
		return nil, err
	}

	if err := f.withdrawAll(ctx, cycle, phase.Ascent); err != nil {
		return nil, err
	}
	if err := f.m.ConfirmDescent(ctx, automation); err != nil {
		return nil, err
	}
	if err := f.stakeAll(ctx); err != nil {
		return nil, err
	}
	if err := f.tick(ctx, phaseDwell); err != nil {
		return nil, err
	}
	if err := f.m.BeginLanding(ctx, pilot); err != nil {
		return nil, err
	}

	if err := f.withdrawAll(ctx, cycle, phase.Descent); err != nil {
		return nil, err
	}
	if err := f.stakeAll(ctx); err != nil {
		return nil, err
	}
	if err := f.m.EnterTerminal(ctx, pilot); err != nil {
		return nil, err
	}
	if err := f.withdrawAll(ctx, cycle, phase.Landing); err != nil {
		return nil, err
	}

	if last {
		return f.rageQuit(ctx)
	}

	if err := f.tick(ctx, f.m.Config().Rules.TerminalCooldown); err != nil {
		return nil, err
	}
	if err := f.stakeAll(ctx); err != nil {
		return nil, err
	}
	if err := f.m.RestartCycle(ctx, pilot); err != nil {
		return nil, err
	}
	return nil, f.withdrawAll(ctx, cycle, phase.Terminal)
}

// rageQuit redeems every share of the last member, if there is more than one.
func (f *flight) rageQuit(ctx context.Context) ([]custody.Payout, error) {
	if len(f.members) < 2 {
		return nil, nil
	}
	quitter := f.members[len(f.members)-1]
	shares, err := f.vm.Balance(seat, quitter)
	if err != nil {
		return nil, err
	}
	return f.m.RageQuit(ctx, quitter, shares)
}

// tick advances the clock by d and publishes the next price of every asset.
func (f *flight) tick(ctx context.Context, d time.Duration) error {
	f.vm.Clock().Advance(d)
	f.step++
	if err := f.vm.UpdatePrice(ctx, automation, usd, oracle.Scale(1)); err != nil {
		return err
	}
	price := startPrice + priceStep*f.step
	f.log.Debug("publishing price",
		log.Uint64("eth", uint64(price)),
	)
	return f.vm.UpdatePrice(ctx, automation, eth, oracle.Scale(price))
}

func (f *flight) stakeAll(ctx context.Context) error {
	for _, member := range f.members {
		held, err := f.vm.Balance(seat, member)
		if err != nil {
			return err
		}
		if err := f.m.Stake(ctx, member, held); err != nil {
			return err
		}
	}
	return nil
}

func (f *flight) withdrawAll(ctx context.Context, cycle uint64, p phase.Phase) error {
	for _, member := range f.members {
		if _, err := f.m.Withdraw(ctx, member, cycle, p); err != nil {
			return err
		}
	}
	return nil
}
