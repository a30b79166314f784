// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package compression compresses exported journals.
package compression

import "errors"

var (
	ErrInvalidMaxSizeCompressor = errors.New("max size must be positive and below MaxInt64")
	ErrDecompressedMsgTooLarge  = errors.New("decompressed message exceeds max size")
	ErrMsgTooLarge              = errors.New("message exceeds max size")
)

// Compressor compresses and decompresses messages up to a fixed size.
type Compressor interface {
	Compress([]byte) ([]byte, error)
	Decompress([]byte) ([]byte, error)
}
