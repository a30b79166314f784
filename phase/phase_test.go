// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package phase

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/luxfi/flightvm/faults"
)

func TestCanTransitionExhaustive(t *testing.T) {
	for _, current := range All {
		for _, next := range All {
			want := next == current+1 || (current == Terminal && next == TakeOff)
			require.Equal(t, want, CanTransition(current, next), "%s -> %s", current, next)
		}
	}
}

func TestCanTransitionRejectsUnknown(t *testing.T) {
	require := require.New(t)

	require.False(CanTransition(Terminal+1, Boarding))
	require.False(CanTransition(Landing, Terminal+1))
}

func TestVerify(t *testing.T) {
	require := require.New(t)

	require.NoError(Verify(Boarding, TakeOff))
	require.NoError(Verify(Terminal, TakeOff))

	err := Verify(TakeOff, PeakAltitude)
	require.ErrorIs(err, faults.ErrOrdering)
	require.ErrorContains(err, "TakeOff -> PeakAltitude")

	require.ErrorIs(Verify(Terminal, Boarding), faults.ErrOrdering)
	require.ErrorIs(Verify(Ascent, Ascent), faults.ErrOrdering)
}

func TestStakingPermitted(t *testing.T) {
	permitted := map[Phase]bool{
		Ascent:   true,
		Descent:  true,
		Landing:  true,
		Terminal: true,
	}
	for _, p := range All {
		require.Equal(t, permitted[p], StakingPermitted(p), p.String())
	}
}

func TestJSONRoundTrip(t *testing.T) {
	require := require.New(t)

	b, err := json.Marshal(PeakAltitude)
	require.NoError(err)
	require.Equal(`"PeakAltitude"`, string(b))

	var p Phase
	require.NoError(json.Unmarshal([]byte(`"Landing"`), &p))
	require.Equal(Landing, p)

	require.Error(json.Unmarshal([]byte(`"Cruise"`), &p))
}
