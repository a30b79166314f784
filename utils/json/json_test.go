// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package json

import (
	stdjson "encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestUint64AcceptsQuotedAndBare(t *testing.T) {
	require := require.New(t)

	var v struct {
		A Uint64 `json:"a"`
		B Uint64 `json:"b"`
	}
	require.NoError(stdjson.Unmarshal([]byte(`{"a":"18446744073709551615","b":42}`), &v))
	require.Equal(Uint64(18446744073709551615), v.A)
	require.Equal(Uint64(42), v.B)

	out, err := stdjson.Marshal(v.B)
	require.NoError(err)
	require.Equal(`"42"`, string(out))
}
