// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package state

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/luxfi/database/memdb"
	"github.com/luxfi/ids"
)

type testRecord struct {
	Owner  ids.ShortID `serialize:"true"`
	Amount uint64      `serialize:"true"`
	Open   bool        `serialize:"true"`
}

func TestRecordRoundTrip(t *testing.T) {
	require := require.New(t)

	db := memdb.New()
	key := Key([]byte("rec:"), Uint64Bytes(7))

	var got testRecord
	found, err := GetRecord(db, key, &got)
	require.NoError(err)
	require.False(found)

	want := testRecord{Owner: ids.GenerateTestShortID(), Amount: 42, Open: true}
	require.NoError(PutRecord(db, key, &want))

	found, err = GetRecord(db, key, &got)
	require.NoError(err)
	require.True(found)
	require.Equal(want, got)
}

func TestGetRecordCorrupted(t *testing.T) {
	db := memdb.New()
	require.NoError(t, db.Put([]byte("k"), []byte{0xff}))

	var got testRecord
	_, err := GetRecord(db, []byte("k"), &got)
	require.ErrorIs(t, err, ErrCorrupted)
}

func TestUint64ZeroDeletes(t *testing.T) {
	require := require.New(t)

	db := memdb.New()
	key := []byte("n")

	require.NoError(PutUint64(db, key, 9))
	v, err := GetUint64(db, key)
	require.NoError(err)
	require.Equal(uint64(9), v)

	require.NoError(PutUint64(db, key, 0))
	has, err := db.Has(key)
	require.NoError(err)
	require.False(has)
}
