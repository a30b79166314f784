// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package hedge

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/luxfi/database/memdb"
	"github.com/luxfi/ids"
	"github.com/luxfi/log"
	"github.com/stretchr/testify/require"

	"github.com/luxfi/flightvm/faults"
	"github.com/luxfi/flightvm/ledger"
	"github.com/luxfi/flightvm/oracle"
	"github.com/luxfi/flightvm/strategy"
	"github.com/luxfi/flightvm/utils/timer/mockable"
)

func TestOpenHedge(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()

	now := time.Unix(1_700_000_000, 0)
	clock := &mockable.Clock{}
	clock.Set(now)

	lux, usd := ids.GenerateTestID(), ids.GenerateTestID()
	feed := oracle.NewStatic()
	feed.Set(lux, oracle.Scale(20), now)
	feed.Set(usd, oracle.Scale(1), now)
	guard := oracle.NewGuard(feed, clock, time.Hour)

	db := memdb.New()
	assets := ledger.New(db)
	account := ids.GenerateTestShortID()
	require.NoError(assets.Mint(lux, account, 50))
	require.NoError(assets.Mint(usd, account, 1_000))

	h, err := New(log.NoLog{}, Config{
		Address:  ids.GenerateTestShortID(),
		Account:  account,
		Assets:   []ids.ID{lux, usd},
		RatioBps: 5_000,
	}, guard, assets, db)
	require.NoError(err)

	req := strategy.Request{Cycle: 2, Directive: strategy.OpenHedge, Time: now}
	require.ErrorIs(h.Validate(ctx, strategy.Request{Directive: strategy.Deploy}), ErrUnsupportedDirective)
	require.NoError(h.Execute(ctx, req))

	p, ok, err := h.Position()
	require.NoError(err)
	require.True(ok)
	require.Equal(uint64(2), p.Cycle)
	require.Zero(big.NewInt(2_000).Cmp(p.NAV))
	require.Zero(big.NewInt(1_000).Cmp(p.Notional))

	clock.Advance(time.Hour + time.Second)
	err = h.Execute(ctx, req)
	require.ErrorIs(err, faults.ErrStaleData)
}

func TestNewRejectsRatio(t *testing.T) {
	_, err := New(log.NoLog{}, Config{}, nil, nil, memdb.New())
	require.ErrorIs(t, err, ErrInvalidRatio)
}
