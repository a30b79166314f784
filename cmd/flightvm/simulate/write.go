// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package simulate

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/google/renameio/v2"
	"github.com/luxfi/log"

	"github.com/luxfi/flightvm/utils/compression"
)

const (
	zstdSuffix = ".zst"
	// maxReport bounds a compressed report.
	maxReport = 64 << 20
)

func encode(report *Report) ([]byte, error) {
	b, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(b, '\n'), nil
}

// Print writes report to w as indented JSON.
func Print(w io.Writer, report *Report) error {
	b, err := encode(report)
	if err != nil {
		return err
	}
	_, err = w.Write(b)
	return err
}

// Write atomically replaces path with report. A .zst path is zstd compressed.
func Write(logger log.Logger, path string, report *Report) error {
	b, err := encode(report)
	if err != nil {
		return err
	}
	if strings.HasSuffix(path, zstdSuffix) {
		c, err := compression.NewZstdCompressor(maxReport)
		if err != nil {
			return err
		}
		if b, err = c.Compress(b); err != nil {
			return err
		}
	}

	pendingFile, err := renameio.NewPendingFile(path)
	if err != nil {
		return fmt.Errorf("create pending report file: %w", err)
	}
	defer func() {
		if err := pendingFile.Cleanup(); err != nil {
			logger.Debug("cleanup pending report file",
				log.Err(err),
			)
		}
	}()

	if _, err := pendingFile.Write(b); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	if err := pendingFile.CloseAtomicallyReplace(); err != nil {
		return fmt.Errorf("atomically replace report file: %w", err)
	}
	logger.Info("wrote report",
		log.String("path", path),
		log.Int("bytes", len(b)),
	)
	return nil
}
