// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package machine

import (
	"testing"
	"time"

	"github.com/luxfi/ids"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/luxfi/flightvm/boarding"
	"github.com/luxfi/flightvm/custody"
	"github.com/luxfi/flightvm/events"
	"github.com/luxfi/flightvm/faults"
	"github.com/luxfi/flightvm/phase"
	"github.com/luxfi/flightvm/strategy"
)

// edgeOps calls every phase changing operation with a caller of its class.
func edgeOps(e *env) map[string]func() error {
	return map[string]func() error{
		"CheckBoarding": func() error {
			_, err := e.machine.CheckBoarding(e.ctx, e.carol)
			return err
		},
		"ConfirmTakeOff": func() error {
			return e.machine.ConfirmTakeOff(e.ctx, e.automation)
		},
		"ReachPeak": func() error {
			return e.machine.ReachPeak(e.ctx, e.alice)
		},
		"CompleteUnwind": func() error {
			return e.machine.CompleteUnwind(e.ctx, e.handles[strategy.Accumulation])
		},
		"BeginLanding": func() error {
			return e.machine.BeginLanding(e.ctx, e.alice)
		},
		"EnterTerminal": func() error {
			return e.machine.EnterTerminal(e.ctx, e.bob)
		},
		"RestartCycle": func() error {
			return e.machine.RestartCycle(e.ctx, e.alice)
		},
	}
}

// legalOp names the operation authoring the edge out of each phase.
var legalOp = map[phase.Phase]string{
	phase.Boarding:     "CheckBoarding",
	phase.TakeOff:      "ConfirmTakeOff",
	phase.Ascent:       "ReachPeak",
	phase.PeakAltitude: "CompleteUnwind",
	phase.Descent:      "BeginLanding",
	phase.Landing:      "EnterTerminal",
	phase.Terminal:     "RestartCycle",
}

func TestIllegalJumpsLeaveStateUnchanged(t *testing.T) {
	for _, current := range phase.All {
		t.Run(current.String(), func(t *testing.T) {
			e := newEnv(t)
			e.flyTo(current)
			before := e.status()
			published := e.machine.Journal().Len()

			for name, op := range edgeOps(e) {
				if name == legalOp[current] {
					continue
				}
				err := op()
				require.Error(t, err, name)
				require.NotErrorIs(t, err, faults.ErrDelegation, name)
				require.Equal(t, before, e.status(), name)
			}
			require.Equal(t, published, e.machine.Journal().Len())
		})
	}
}

func TestCallerOfRightClassGetsOrderingError(t *testing.T) {
	require := require.New(t)

	e := newEnv(t)
	e.flyTo(phase.Ascent)

	require.ErrorIs(e.machine.CompleteUnwind(e.ctx, e.handles[strategy.Accumulation]), faults.ErrOrdering)
	require.ErrorIs(e.machine.ConfirmDescent(e.ctx, e.automation), faults.ErrOrdering)
	require.ErrorIs(e.machine.EnterTerminal(e.ctx, e.bob), faults.ErrOrdering)
	_, err := e.machine.CheckBoarding(e.ctx, e.carol)
	require.ErrorIs(err, faults.ErrOrdering)
}

func TestRacingAdvanceChangesStateOnce(t *testing.T) {
	require := require.New(t)

	e := newEnv(t)
	e.flyTo(phase.TakeOff)

	require.NoError(e.machine.ConfirmTakeOff(e.ctx, e.automation))
	require.ErrorIs(e.machine.ConfirmTakeOff(e.ctx, e.automation), faults.ErrOrdering)
	require.Equal(phase.Ascent, e.status().Phase)

	// Two stakers both observe the quorum; the unwind runs exactly once.
	e.stakeAlice()
	require.NoError(e.machine.Stake(e.ctx, e.bob, 100))
	e.expect(strategy.Accumulation, strategy.Unwind)
	require.NoError(e.machine.ReachPeak(e.ctx, e.alice))
	require.ErrorIs(e.machine.ReachPeak(e.ctx, e.bob), faults.ErrOrdering)
	require.Equal(phase.PeakAltitude, e.status().Phase)
}

func TestRacingLandingChangesStateOnce(t *testing.T) {
	require := require.New(t)

	e := newEnv(t)
	e.flyTo(phase.Descent)
	require.NoError(e.machine.ConfirmDescent(e.ctx, e.automation))
	e.stakeAlice()
	require.NoError(e.machine.Stake(e.ctx, e.bob, 100))

	e.expect(strategy.Rebalance, strategy.Realign)
	require.NoError(e.machine.BeginLanding(e.ctx, e.alice))
	require.ErrorIs(e.machine.BeginLanding(e.ctx, e.bob), faults.ErrOrdering)
	require.Equal(phase.Landing, e.status().Phase)
}

// The loop edge moves the cycle, so the late staker's roster is gone; the
// call must still be rejected as out of order.
func TestRacingRestartChangesStateOnce(t *testing.T) {
	require := require.New(t)

	e := newEnv(t)
	e.flyTo(phase.Terminal)
	e.stakeAlice()
	require.NoError(e.machine.Stake(e.ctx, e.bob, 100))
	e.clock.Advance(5 * 24 * time.Hour)

	e.expect(strategy.Accumulation, strategy.Deploy)
	require.NoError(e.machine.RestartCycle(e.ctx, e.alice))
	published := e.machine.Journal().Len()

	err := e.machine.RestartCycle(e.ctx, e.bob)
	require.ErrorIs(err, faults.ErrOrdering)
	require.NotErrorIs(err, faults.ErrAuthorization)

	s := e.status()
	require.Equal(phase.TakeOff, s.Phase)
	require.Equal(uint64(2), s.Cycle)
	require.Equal(published, e.machine.Journal().Len())
}

func TestBoardingExactTargetLaunchesInSameCall(t *testing.T) {
	require := require.New(t)

	e := newEnv(t)
	e.setStrategies()
	_, err := e.machine.OpenBoarding(e.ctx, e.admin, 1_000)
	require.NoError(err)

	e.expect(strategy.Accumulation, strategy.Deploy)
	outcome, err := e.machine.Contribute(e.ctx, e.alice, 1_000)
	require.NoError(err)
	require.Equal(boarding.Reached, outcome)

	s := e.status()
	require.Equal(phase.TakeOff, s.Phase)
	require.Equal(uint64(1), s.Cycle)

	held, err := e.assets.Balance(e.base, e.safe.Address())
	require.NoError(err)
	require.Equal(uint64(1_000), held)

	record, ok, err := e.machine.Cycle(1)
	require.NoError(err)
	require.True(ok)
	require.Equal(genesisTime.Unix(), record.Start)

	require.Equal([]events.Kind{
		events.StrategySet,
		events.StrategySet,
		events.StrategySet,
		events.BoardingStarted,
		events.BoardingSucceeded,
		events.PhaseChanged,
		events.NewCycleStarted,
		events.RedemptionToggled,
	}, kinds(e.machine.Journal()))

	for _, ev := range e.machine.Journal().Since(0, 0) {
		require.Equal(uint64(1), ev.Cycle)
		require.Equal(genesisTime.Unix(), ev.Timestamp)
	}
}

func TestBoardingBelowForcedShareRefunds(t *testing.T) {
	require := require.New(t)

	e := newEnv(t)
	e.setStrategies()
	_, err := e.machine.OpenBoarding(e.ctx, e.admin, 1_000)
	require.NoError(err)
	_, err = e.machine.Contribute(e.ctx, e.alice, 500)
	require.NoError(err)
	_, err = e.machine.Contribute(e.ctx, e.bob, 240)
	require.NoError(err)

	e.clock.Advance(72 * time.Hour)
	outcome, err := e.machine.CheckBoarding(e.ctx, e.carol)
	require.NoError(err)
	require.Equal(boarding.Short, outcome)
	require.Equal(phase.Boarding, e.status().Phase)

	_, err = e.machine.Contribute(e.ctx, e.carol, 10)
	require.ErrorIs(err, boarding.ErrWindowClosed)

	for _, c := range []struct {
		account ids.ShortID
		amount  uint64
	}{
		{e.alice, 500},
		{e.bob, 240},
	} {
		refunded, err := e.machine.Refund(e.ctx, c.account, 1)
		require.NoError(err)
		require.Equal(c.amount, refunded)

		held, err := e.assets.Balance(e.base, c.account)
		require.NoError(err)
		require.Equal(uint64(10_000), held)
	}
	_, err = e.machine.Refund(e.ctx, e.alice, 1)
	require.ErrorIs(err, boarding.ErrNothingToRefund)

	// The administrator may board again.
	w, err := e.machine.OpenBoarding(e.ctx, e.admin, 500)
	require.NoError(err)
	require.Equal(uint64(2), w.Round)
}

func TestBoardingAtForcedShareLaunches(t *testing.T) {
	require := require.New(t)

	e := newEnv(t)
	e.setStrategies()
	_, err := e.machine.OpenBoarding(e.ctx, e.admin, 1_000)
	require.NoError(err)
	_, err = e.machine.Contribute(e.ctx, e.alice, 750)
	require.NoError(err)

	e.clock.Advance(72*time.Hour - time.Second)
	outcome, err := e.machine.CheckBoarding(e.ctx, e.carol)
	require.NoError(err)
	require.Equal(boarding.Pending, outcome)

	e.clock.Advance(time.Second)
	e.expect(strategy.Accumulation, strategy.Deploy)
	outcome, err = e.machine.CheckBoarding(e.ctx, e.carol)
	require.NoError(err)
	require.Equal(boarding.Forced, outcome)
	require.Equal(phase.TakeOff, e.status().Phase)
	require.Contains(kinds(e.machine.Journal()), events.ForcedLaunch)

	_, err = e.machine.Refund(e.ctx, e.alice, 1)
	require.ErrorIs(err, boarding.ErrRefundUnavailable)
}

func TestLaunchFailureRevertsContribution(t *testing.T) {
	require := require.New(t)

	e := newEnv(t)
	e.setStrategies()
	_, err := e.machine.OpenBoarding(e.ctx, e.admin, 1_000)
	require.NoError(err)
	before := e.status()
	published := e.machine.Journal().Len()

	e.expectFailure(strategy.Accumulation, strategy.Deploy)
	_, err = e.machine.Contribute(e.ctx, e.alice, 1_000)
	require.ErrorIs(err, faults.ErrDelegation)
	require.ErrorIs(err, errStrategy)

	require.Equal(before, e.status())
	require.Equal(published, e.machine.Journal().Len())
	raised, err := e.deps.Boarding.TotalRaised()
	require.NoError(err)
	require.Zero(raised)
	held, err := e.assets.Balance(e.base, e.alice)
	require.NoError(err)
	require.Equal(uint64(10_000), held)

	open, err := e.machine.RedemptionOpen()
	require.NoError(err)
	require.False(open)
}

func TestUnsetStrategyBlocksLaunch(t *testing.T) {
	require := require.New(t)

	e := newEnv(t)
	_, err := e.machine.OpenBoarding(e.ctx, e.admin, 100)
	require.NoError(err)

	_, err = e.machine.Contribute(e.ctx, e.alice, 100)
	require.ErrorIs(err, ErrStrategyUnset)
	require.ErrorIs(err, faults.ErrPrecondition)
	require.Equal(phase.Boarding, e.status().Phase)
}

func TestStrategyFailureLeavesPhaseCycleAndTimes(t *testing.T) {
	require := require.New(t)

	e := newEnv(t)
	e.flyTo(phase.Ascent)
	e.clock.Advance(time.Hour)
	e.stakeAlice()
	before := e.status()

	e.expectFailure(strategy.Accumulation, strategy.Unwind)
	err := e.machine.ReachPeak(e.ctx, e.alice)
	require.ErrorIs(err, faults.ErrDelegation)
	require.Equal(faults.Delegation, faults.Classify(err))
	require.Equal(before, e.status())

	// The quorum was not consumed either.
	percent, err := e.machine.Quorum(phase.Ascent)
	require.NoError(err)
	require.Equal(uint64(60), percent)

	// Validation failures are preconditions and never reach Execute.
	e.strategies[strategy.Accumulation].EXPECT().
		Validate(gomock.Any(), directive(strategy.Unwind)).
		Return(errStrategy)
	err = e.machine.ReachPeak(e.ctx, e.alice)
	require.ErrorIs(err, faults.ErrPrecondition)
	require.Equal(before, e.status())
}

func TestCooldown(t *testing.T) {
	require := require.New(t)

	e := newEnv(t)
	e.flyTo(phase.Terminal)
	entry := e.status().TerminalEntry
	require.Equal(e.clock.Time().Unix(), entry)
	e.stakeAlice()

	e.clock.Advance(5*24*time.Hour - time.Second)
	err := e.machine.RestartCycle(e.ctx, e.alice)
	require.ErrorIs(err, ErrCooldown)
	require.ErrorIs(err, faults.ErrPrecondition)
	require.Equal(phase.Terminal, e.status().Phase)

	e.clock.Advance(time.Second)
	e.expect(strategy.Accumulation, strategy.Deploy)
	require.NoError(e.machine.RestartCycle(e.ctx, e.alice))

	s := e.status()
	require.Equal(phase.TakeOff, s.Phase)
	require.Equal(uint64(2), s.Cycle)
	require.Zero(s.TerminalEntry)

	open, err := e.machine.RedemptionOpen()
	require.NoError(err)
	require.False(open)

	record, ok, err := e.machine.Cycle(1)
	require.NoError(err)
	require.True(ok)
	require.Equal(entry, record.TerminalEntry)
	require.Equal(e.clock.Time().Unix(), record.End)

	cycle2 := e.machine.Journal().Cycle(2)
	require.NotEmpty(cycle2)
	require.Equal(events.PhaseChanged, cycle2[0].Kind)
	require.Equal(phase.Terminal, cycle2[0].Previous)
	require.Equal(phase.TakeOff, cycle2[0].Phase)

	// Cycle 2 starts with no stake.
	percent, err := e.machine.Quorum(phase.Terminal)
	require.NoError(err)
	require.Zero(percent)
}

func TestQuorumFollowsSupply(t *testing.T) {
	require := require.New(t)

	e := newEnv(t)
	e.flyTo(phase.Landing)
	e.stakeAlice()

	percent, err := e.machine.Quorum(phase.Landing)
	require.NoError(err)
	require.Equal(uint64(60), percent)

	// Supply grows to 1200 without any stake change.
	require.NoError(e.members.Mint(e.carol, 200))
	require.NoError(e.db.Commit())

	percent, err = e.machine.Quorum(phase.Landing)
	require.NoError(err)
	require.Equal(uint64(50), percent)

	err = e.machine.EnterTerminal(e.ctx, e.bob)
	require.ErrorIs(err, ErrQuorumNotMet)
	require.Equal(phase.Landing, e.status().Phase)
}

func TestDescentConfirmation(t *testing.T) {
	require := require.New(t)

	e := newEnv(t)
	e.flyTo(phase.Descent)
	e.stakeAlice()

	require.ErrorIs(e.machine.BeginLanding(e.ctx, e.alice), ErrDescentUnconfirmed)
	require.ErrorIs(e.machine.ConfirmDescent(e.ctx, e.alice), ErrNotAutomation)
	require.NoError(e.machine.ConfirmDescent(e.ctx, e.automation))
	require.ErrorIs(e.machine.ConfirmDescent(e.ctx, e.automation), ErrDescentConfirmed)
	require.True(e.status().DescentConfirmed)
}

func TestAuthorization(t *testing.T) {
	e := newEnv(t)
	e.flyTo(phase.TakeOff)

	stranger := e.carol
	tests := []struct {
		name string
		call func() error
	}{
		{"open boarding", func() error {
			_, err := e.machine.OpenBoarding(e.ctx, stranger, 1)
			return err
		}},
		{"set strategy", func() error {
			return e.machine.SetStrategy(e.ctx, stranger, strategy.Hedge, e.handles[strategy.Hedge])
		}},
		{"confirm take off", func() error {
			return e.machine.ConfirmTakeOff(e.ctx, stranger)
		}},
		{"complete unwind", func() error {
			return e.machine.CompleteUnwind(e.ctx, e.handles[strategy.Hedge])
		}},
		{"enter terminal", func() error {
			return e.machine.EnterTerminal(e.ctx, stranger)
		}},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			err := test.call()
			require.ErrorIs(t, err, faults.ErrAuthorization)
			require.Equal(t, phase.TakeOff, e.status().Phase)
		})
	}
}

// Stake gated signals reject a caller without stake once the machine is at
// the gate.
func TestStakerGates(t *testing.T) {
	tests := []struct {
		name string
		at   phase.Phase
		call func(e *env) error
	}{
		{"reach peak", phase.Ascent, func(e *env) error {
			e.stakeAlice()
			return e.machine.ReachPeak(e.ctx, e.carol)
		}},
		{"begin landing", phase.Descent, func(e *env) error {
			e.require.NoError(e.machine.ConfirmDescent(e.ctx, e.automation))
			e.stakeAlice()
			return e.machine.BeginLanding(e.ctx, e.carol)
		}},
		{"restart", phase.Terminal, func(e *env) error {
			e.stakeAlice()
			e.clock.Advance(5 * 24 * time.Hour)
			return e.machine.RestartCycle(e.ctx, e.carol)
		}},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			e := newEnv(t)
			e.flyTo(test.at)
			err := test.call(e)
			require.ErrorIs(t, err, faults.ErrAuthorization)
			require.ErrorIs(t, err, ErrNotStaker)
			require.Equal(t, test.at, e.status().Phase)
		})
	}
}

func TestSetStrategy(t *testing.T) {
	require := require.New(t)

	e := newEnv(t)
	err := e.machine.SetStrategy(e.ctx, e.admin, strategy.Hedge, ids.ShortEmpty)
	require.ErrorIs(err, ErrEmptyStrategy)

	err = e.machine.SetStrategy(e.ctx, e.admin, strategy.Hedge, e.carol)
	require.ErrorIs(err, strategy.ErrNotDeployed)
	require.ErrorIs(err, faults.ErrPrecondition)

	err = e.machine.SetStrategy(e.ctx, e.admin, strategy.Kind(9), e.handles[strategy.Hedge])
	require.ErrorIs(err, ErrUnknownKind)

	require.NoError(e.machine.SetStrategy(e.ctx, e.admin, strategy.Hedge, e.handles[strategy.Hedge]))
	require.Equal(e.handles[strategy.Hedge], e.status().Hedge)

	e.strategies[strategy.Hedge].EXPECT().State(gomock.Any()).Return([]byte(`{}`), nil)
	b, err := e.machine.StrategyState(e.ctx, strategy.Hedge)
	require.NoError(err)
	require.Equal([]byte(`{}`), b)

	_, err = e.machine.StrategyState(e.ctx, strategy.Rebalance)
	require.ErrorIs(err, ErrStrategyUnset)
}

func TestStakingPhases(t *testing.T) {
	require := require.New(t)

	e := newEnv(t)
	e.flyTo(phase.TakeOff)
	require.ErrorIs(e.machine.Stake(e.ctx, e.alice, 1), ErrStakingClosed)

	require.NoError(e.machine.ConfirmTakeOff(e.ctx, e.automation))
	require.NoError(e.machine.Stake(e.ctx, e.alice, 100))
	require.ErrorIs(e.machine.Unstake(e.ctx, e.alice, 101), faults.ErrPrecondition)
	require.NoError(e.machine.Unstake(e.ctx, e.alice, 40))

	_, err := e.machine.Withdraw(e.ctx, e.alice, 1, phase.Ascent)
	require.ErrorIs(err, ErrPhaseNotConcluded)

	record, err := e.machine.StakeOf(1, phase.Ascent, e.alice)
	require.NoError(err)
	require.Equal(uint64(60), record.Amount)
}

func TestZeroAmountsArePreconditionFailures(t *testing.T) {
	require := require.New(t)

	e := newEnv(t)
	_, err := e.machine.OpenBoarding(e.ctx, e.admin, 0)
	require.ErrorIs(err, boarding.ErrInvalidTarget)
	require.Equal(faults.Precondition, faults.Classify(err))

	_, err = e.machine.OpenBoarding(e.ctx, e.admin, 1_000)
	require.NoError(err)
	_, err = e.machine.Contribute(e.ctx, e.alice, 0)
	require.ErrorIs(err, boarding.ErrInvalidAmount)
	require.Equal(faults.Precondition, faults.Classify(err))

	e = newEnv(t)
	e.flyTo(phase.Ascent)
	err = e.machine.Stake(e.ctx, e.alice, 0)
	require.ErrorIs(err, faults.ErrPrecondition)
	require.Equal(faults.Precondition, faults.Classify(err))
	require.Equal(phase.Ascent, e.status().Phase)
}

func TestRedemptionOnlyInTerminal(t *testing.T) {
	require := require.New(t)

	e := newEnv(t)
	e.flyTo(phase.Landing)

	_, err := e.machine.RageQuit(e.ctx, e.bob, 100)
	require.ErrorIs(err, ErrRedemptionClosed)

	e.stakeAlice()
	require.NoError(e.machine.EnterTerminal(e.ctx, e.bob))
	open, err := e.machine.RedemptionOpen()
	require.NoError(err)
	require.True(open)

	// Custody holds the 1000 raised; bob exits with 400 of 1000 rights.
	payouts, err := e.machine.RageQuit(e.ctx, e.bob, 400)
	require.NoError(err)
	require.Equal([]custody.Payout{{Asset: e.base, Amount: 400}}, payouts)

	held, err := e.members.BalanceOf(e.bob)
	require.NoError(err)
	require.Zero(held)
}
