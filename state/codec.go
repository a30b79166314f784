// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package state holds the codec and record helpers every controller
// component uses to persist into its database view.
package state

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/luxfi/codec"
	"github.com/luxfi/codec/linearcodec"
	"github.com/luxfi/database"
)

const CodecVersion = 0

var (
	Codec codec.Manager

	ErrCorrupted = errors.New("state corrupted")
)

func init() {
	Codec = codec.NewManager(math.MaxInt32)
	lc := linearcodec.NewDefault()
	if err := Codec.RegisterCodec(CodecVersion, lc); err != nil {
		panic(err)
	}
}

// GetRecord decodes the record stored at key into dst. It returns false when
// the key is absent.
func GetRecord(db database.KeyValueReader, key []byte, dst interface{}) (bool, error) {
	b, err := db.Get(key)
	if errors.Is(err, database.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if _, err := Codec.Unmarshal(b, dst); err != nil {
		return false, fmt.Errorf("%w: %s: %w", ErrCorrupted, key, err)
	}
	return true, nil
}

// PutRecord encodes src and stores it at key.
func PutRecord(db database.KeyValueWriter, key []byte, src interface{}) error {
	b, err := Codec.Marshal(CodecVersion, src)
	if err != nil {
		return err
	}
	return db.Put(key, b)
}

// GetUint64 returns the big endian integer stored at key, or zero.
func GetUint64(db database.KeyValueReader, key []byte) (uint64, error) {
	b, err := db.Get(key)
	if errors.Is(err, database.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	if len(b) != 8 {
		return 0, fmt.Errorf("%w: %s has %d bytes", ErrCorrupted, key, len(b))
	}
	return binary.BigEndian.Uint64(b), nil
}

// PutUint64 stores v big endian at key. Zero values are deleted so absent and
// zero read the same.
func PutUint64(db database.KeyValueWriterDeleter, key []byte, v uint64) error {
	if v == 0 {
		return db.Delete(key)
	}
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, v)
	return db.Put(key, b)
}

// Key concatenates key parts. Fixed width parts keep keys unambiguous.
func Key(parts ...[]byte) []byte {
	n := 0
	for _, p := range parts {
		n += len(p)
	}
	key := make([]byte, 0, n)
	for _, p := range parts {
		key = append(key, p...)
	}
	return key
}

// Uint64Bytes returns v big endian, so keys sort numerically.
func Uint64Bytes(v uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, v)
	return b
}
