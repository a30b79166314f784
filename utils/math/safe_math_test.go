// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package math

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAdd(t *testing.T) {
	require := require.New(t)

	sum, err := Add(1, 2)
	require.NoError(err)
	require.Equal(uint64(3), sum)

	_, err = Add(math.MaxUint64, 1)
	require.ErrorIs(err, ErrOverflow)
}

func TestSub(t *testing.T) {
	require := require.New(t)

	diff, err := Sub(5, 2)
	require.NoError(err)
	require.Equal(uint64(3), diff)

	_, err = Sub(2, 5)
	require.ErrorIs(err, ErrUnderflow)
}

func TestMulDiv(t *testing.T) {
	require := require.New(t)

	got, err := MulDiv(math.MaxUint64, 100, 200)
	require.NoError(err)
	require.Equal(uint64(math.MaxUint64/2), got)

	_, err = MulDiv(1, 1, 0)
	require.ErrorIs(err, ErrDivideByZero)

	_, err = MulDiv(math.MaxUint64, 2, 1)
	require.ErrorIs(err, ErrOverflow)
}

func TestPercent(t *testing.T) {
	tests := []struct {
		part, whole, want uint64
	}{
		{600, 1000, 60},
		{600, 1200, 50},
		{599, 1000, 59},
		{0, 1000, 0},
		{10, 0, 0},
	}
	for _, test := range tests {
		require.Equal(t, test.want, Percent(test.part, test.whole))
	}
}

func TestAtLeastPercent(t *testing.T) {
	require := require.New(t)

	require.True(AtLeastPercent(75, 100, 75))
	require.False(AtLeastPercent(74, 100, 75))
	require.True(AtLeastPercent(750, 999, 75))
	require.False(AtLeastPercent(749, 999, 75))
	require.True(AtLeastPercent(math.MaxUint64, math.MaxUint64, 100))
}
