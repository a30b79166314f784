// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package rebalance

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/luxfi/database/memdb"
	"github.com/luxfi/ids"
	"github.com/luxfi/log"
	"github.com/stretchr/testify/require"

	"github.com/luxfi/flightvm/ledger"
	"github.com/luxfi/flightvm/oracle"
	"github.com/luxfi/flightvm/strategy"
	"github.com/luxfi/flightvm/utils/timer/mockable"
)

type fixture struct {
	assets  *ledger.Ledger
	guard   *oracle.Guard
	config  Config
	lux     ids.ID
	usd     ids.ID
	request strategy.Request
}

func newFixture(t *testing.T, tolerance float64) *fixture {
	now := time.Unix(1_700_000_000, 0)
	clock := &mockable.Clock{}
	clock.Set(now)

	lux, usd := ids.GenerateTestID(), ids.GenerateTestID()
	feed := oracle.NewStatic()
	feed.Set(lux, oracle.Scale(10), now)
	feed.Set(usd, oracle.Scale(1), now)

	f := &fixture{
		assets: ledger.New(memdb.New()),
		guard:  oracle.NewGuard(feed, clock, time.Hour),
		lux:    lux,
		usd:    usd,
		config: Config{
			Address:   ids.GenerateTestShortID(),
			Custody:   ids.GenerateTestShortID(),
			Vault:     ids.GenerateTestShortID(),
			Assets:    []ids.ID{lux, usd},
			Targets:   []float64{0.5, 0.5},
			Tolerance: tolerance,
		},
		request: strategy.Request{Cycle: 1, Directive: strategy.Realign, Time: now},
	}
	// 100 LUX at 10 in the vault, 500 USD in custody: weights 2/3 and 1/3.
	require.NoError(t, f.assets.Mint(lux, f.config.Vault, 100))
	require.NoError(t, f.assets.Mint(usd, f.config.Custody, 500))
	return f
}

func TestRebalanceRecallsOnDrift(t *testing.T) {
	require := require.New(t)

	f := newFixture(t, 0.1)
	r, err := New(log.NoLog{}, f.config, f.guard, f.assets, memdb.New())
	require.NoError(err)

	require.NoError(r.Execute(context.Background(), f.request))
	report, ok, err := r.Latest()
	require.NoError(err)
	require.True(ok)
	require.InDelta(2.0/3, report.Weights[0], 1e-6)
	require.InDelta(1.0/3, report.Weights[1], 1e-6)
	require.InDelta(1.0/3, report.Drift, 1e-6)
	require.Equal(uint64(100), report.Recalled)

	held, err := f.assets.Balance(f.lux, f.config.Custody)
	require.NoError(err)
	require.Equal(uint64(100), held)
}

func TestRebalanceWithinTolerance(t *testing.T) {
	require := require.New(t)

	f := newFixture(t, 0.5)
	r, err := New(log.NoLog{}, f.config, f.guard, f.assets, memdb.New())
	require.NoError(err)

	require.NoError(r.Validate(context.Background(), f.request))
	require.NoError(r.Execute(context.Background(), f.request))
	report, _, err := r.Latest()
	require.NoError(err)
	require.Zero(report.Recalled)

	held, err := f.assets.Balance(f.lux, f.config.Vault)
	require.NoError(err)
	require.Equal(uint64(100), held)
}

func TestNewValidatesTargets(t *testing.T) {
	require := require.New(t)

	asset := ids.GenerateTestID()
	_, err := New(log.NoLog{}, Config{Assets: []ids.ID{asset}}, nil, nil, memdb.New())
	require.ErrorIs(err, ErrTargetsMismatch)

	_, err = New(log.NoLog{}, Config{Assets: []ids.ID{asset}, Targets: []float64{0.4}}, nil, nil, memdb.New())
	require.ErrorIs(err, ErrTargetsNotNormalized)
}

func TestRebalanceRejectsEmptyTreasury(t *testing.T) {
	require := require.New(t)

	f := newFixture(t, 0.1)
	f.config.Custody = ids.GenerateTestShortID()
	f.config.Vault = ids.GenerateTestShortID()
	r, err := New(log.NoLog{}, f.config, f.guard, f.assets, memdb.New())
	require.NoError(err)
	require.ErrorIs(r.Validate(context.Background(), f.request), ErrEmptyTreasury)
}

func TestReportSurvivesReload(t *testing.T) {
	require := require.New(t)

	f := newFixture(t, 0.1)
	db := memdb.New()
	r, err := New(log.NoLog{}, f.config, f.guard, f.assets, db)
	require.NoError(err)

	b, err := r.State(context.Background())
	require.NoError(err)
	require.JSONEq(`null`, string(b))

	require.NoError(r.Execute(context.Background(), f.request))

	reloaded, err := New(log.NoLog{}, f.config, f.guard, f.assets, db)
	require.NoError(err)
	b, err = reloaded.State(context.Background())
	require.NoError(err)

	var report Report
	require.NoError(json.Unmarshal(b, &report))
	require.Equal(uint64(1), report.Cycle)
	require.Equal(uint64(100), report.Recalled)
	require.Len(report.Weights, 2)
	require.InDelta(2.0/3, report.Weights[0], 1e-6)
	require.InDelta(1.0/3, report.Drift, 1e-6)
}
