// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/luxfi/flightvm/phase"
)

func TestDefaultConfig(t *testing.T) {
	require := require.New(t)

	c := DefaultConfig()
	require.NoError(c.Validate())
	require.Equal(72*time.Hour, c.BoardingDuration)
	require.Equal(120*time.Hour, c.TerminalCooldown)
	require.Equal(uint64(75), c.ForcedLaunchPercent)

	for _, p := range []phase.Phase{phase.Ascent, phase.Descent, phase.Landing, phase.Terminal} {
		threshold, ok := c.Threshold(p)
		require.True(ok)
		require.Equal(uint64(60), threshold)
	}
	_, ok := c.Threshold(phase.TakeOff)
	require.False(ok)
}

func TestParse(t *testing.T) {
	tests := []struct {
		name        string
		json        string
		expectedErr error
		check       func(*require.Assertions, Config)
	}{
		{
			name: "empty is default",
			json: "",
			check: func(require *require.Assertions, c Config) {
				require.Equal(DefaultConfig(), c)
			},
		},
		{
			name: "partial override",
			json: `{"quorum":{"terminal":66},"terminalCooldown":3600000000000}`,
			check: func(require *require.Assertions, c Config) {
				require.Equal(uint64(66), c.Quorum.Terminal)
				require.Equal(uint64(60), c.Quorum.Ascent)
				require.Equal(time.Hour, c.TerminalCooldown)
			},
		},
		{
			name:        "zero quorum",
			json:        `{"quorum":{"descent":0}}`,
			expectedErr: ErrInvalidPercent,
		},
		{
			name:        "forced launch above 100",
			json:        `{"forcedLaunchPercent":101}`,
			expectedErr: ErrInvalidPercent,
		},
		{
			name:        "negative cooldown",
			json:        `{"terminalCooldown":-1}`,
			expectedErr: ErrInvalidDuration,
		},
		{
			name:        "deploy share",
			json:        `{"deployBps":20000}`,
			expectedErr: ErrInvalidBps,
		},
		{
			name:        "cache size",
			json:        `{"historyCacheSize":0}`,
			expectedErr: ErrInvalidCacheSize,
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			require := require.New(t)

			c, err := Parse([]byte(test.json))
			require.ErrorIs(err, test.expectedErr)
			if test.check != nil {
				test.check(require, c)
			}
		})
	}
}

func TestParseMalformed(t *testing.T) {
	_, err := Parse([]byte("{"))
	require.Error(t, err)
}
