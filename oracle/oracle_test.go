// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package oracle

import (
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/luxfi/database/memdb"
	"github.com/luxfi/ids"

	"github.com/luxfi/flightvm/faults"
	"github.com/luxfi/flightvm/ledger"
	"github.com/luxfi/flightvm/utils/timer/mockable"
)

func TestGuardFreshness(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	asset := ids.GenerateTestID()

	tests := []struct {
		name    string
		price   *big.Int
		age     time.Duration
		wantErr error
	}{
		{name: "fresh", price: Scale(2), age: time.Minute},
		{name: "exactly max age", price: Scale(2), age: time.Hour},
		{name: "stale", price: Scale(2), age: time.Hour + time.Second, wantErr: ErrStale},
		{name: "zero", price: big.NewInt(0), age: 0, wantErr: ErrNonPositive},
		{name: "negative", price: big.NewInt(-1), age: 0, wantErr: ErrNonPositive},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			require := require.New(t)

			feed := NewStatic()
			feed.Set(asset, test.price, now.Add(-test.age))

			var clock mockable.Clock
			clock.Set(now)
			guard := NewGuard(feed, &clock, 0)
			require.Equal(DefaultMaxAge, guard.MaxAge())

			price, err := guard.Price(asset)
			require.ErrorIs(err, test.wantErr)
			if test.wantErr != nil {
				require.ErrorIs(err, faults.ErrStaleData)
				return
			}
			require.Zero(price.Cmp(test.price))
		})
	}
}

func TestGuardMissingAsset(t *testing.T) {
	var clock mockable.Clock
	guard := NewGuard(NewStatic(), &clock, time.Hour)

	_, err := guard.Price(ids.GenerateTestID())
	require.ErrorIs(t, err, ErrNoObservations)
	require.ErrorIs(t, err, faults.ErrStaleData)
}

func TestTWAP(t *testing.T) {
	require := require.New(t)

	twap, err := NewTWAP(10 * time.Minute)
	require.NoError(err)

	asset := ids.GenerateTestID()
	start := time.Unix(1_700_000_000, 0)

	// 100 for 5 minutes, then 200 for 5 minutes.
	twap.Record(asset, big.NewInt(100), start)
	twap.Record(asset, big.NewInt(200), start.Add(5*time.Minute))

	price, err := twap.PriceAt(asset, start.Add(10*time.Minute))
	require.NoError(err)
	require.Equal(int64(150), price.Int64())

	reading, err := twap.Latest(asset)
	require.NoError(err)
	require.Equal(start.Add(5*time.Minute), reading.UpdatedAt)
	require.Equal(int64(100), reading.Price.Int64())

	twap.Record(asset, big.NewInt(0), start.Add(6*time.Minute))
	reading, err = twap.Latest(asset)
	require.NoError(err)
	require.Equal(start.Add(5*time.Minute), reading.UpdatedAt)

	_, err = NewTWAP(0)
	require.ErrorIs(err, ErrInvalidWindow)
}

func TestNAV(t *testing.T) {
	require := require.New(t)

	now := time.Unix(1_700_000_000, 0)
	var clock mockable.Clock
	clock.Set(now)

	base := ids.GenerateTestID()
	other := ids.GenerateTestID()
	empty := ids.GenerateTestID()
	treasury := ids.GenerateTestShortID()

	l := ledger.New(memdb.New())
	require.NoError(l.Mint(base, treasury, 1000))
	require.NoError(l.Mint(other, treasury, 10))

	feed := NewStatic()
	feed.Set(base, Scale(1), now)
	feed.Set(other, Scale(50), now)
	guard := NewGuard(feed, &clock, time.Hour)

	total, positions, err := NAV(guard, l, treasury, []ids.ID{base, other, empty})
	require.NoError(err)
	require.Equal(int64(1500), total.Int64())
	require.Len(positions, 2)

	feed.Set(other, Scale(50), now.Add(-2*time.Hour))
	_, _, err = NAV(guard, l, treasury, []ids.ID{base, other})
	require.ErrorIs(err, faults.ErrStaleData)
}
