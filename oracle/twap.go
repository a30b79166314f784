// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package oracle

import (
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/luxfi/ids"
)

var (
	// ErrInvalidWindow indicates an invalid TWAP window duration.
	ErrInvalidWindow = errors.New("TWAP window must be positive")

	// DefaultTWAPWindow is the default TWAP calculation window.
	DefaultTWAPWindow = 30 * time.Minute

	// MaxObservations is the maximum number of observations kept per asset.
	MaxObservations = 1000
)

// PricePoint represents a single price observation at a specific time.
type PricePoint struct {
	Price     *big.Int
	Timestamp time.Time
}

// TWAP is a time-weighted average price feed over a rolling window. It
// resists single-block price manipulation of the assets the hedge and
// rebalance strategies value.
type TWAP struct {
	mu           sync.RWMutex
	window       time.Duration
	observations map[ids.ID][]PricePoint
}

var _ Feed = (*TWAP)(nil)

// NewTWAP creates a TWAP feed with the given window.
func NewTWAP(window time.Duration) (*TWAP, error) {
	if window <= 0 {
		return nil, ErrInvalidWindow
	}
	return &TWAP{
		window:       window,
		observations: make(map[ids.ID][]PricePoint),
	}, nil
}

// Record adds a price observation. Non-positive prices are dropped.
func (t *TWAP) Record(asset ids.ID, price *big.Int, timestamp time.Time) {
	if price == nil || price.Sign() <= 0 {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	obs := append(t.observations[asset], PricePoint{
		Price:     new(big.Int).Set(price),
		Timestamp: timestamp,
	})
	t.observations[asset] = t.prune(obs, timestamp)
}

// prune drops observations older than twice the window and caps the history.
func (t *TWAP) prune(obs []PricePoint, now time.Time) []PricePoint {
	cutoff := now.Add(-2 * t.window)
	start := 0
	for start < len(obs)-1 && !obs[start].Timestamp.After(cutoff) {
		start++
	}
	if excess := len(obs) - start - MaxObservations; excess > 0 {
		start += excess
	}
	if start == 0 {
		return obs
	}
	kept := make([]PricePoint, len(obs)-start)
	copy(kept, obs[start:])
	return kept
}

// Latest implements Feed. The price is the TWAP as of the last observation,
// and UpdatedAt is that observation's time.
func (t *TWAP) Latest(asset ids.ID) (Reading, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	obs := t.observations[asset]
	if len(obs) == 0 {
		return Reading{}, fmt.Errorf("%w: %s", ErrNoObservations, asset)
	}
	last := obs[len(obs)-1].Timestamp
	return Reading{
		Price:     t.average(obs, last),
		UpdatedAt: last,
	}, nil
}

// PriceAt returns the TWAP of asset calculated at a specific point in time.
func (t *TWAP) PriceAt(asset ids.ID, at time.Time) (*big.Int, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	obs := t.observations[asset]
	if len(obs) == 0 || obs[0].Timestamp.After(at) {
		return nil, fmt.Errorf("%w: %s", ErrNoObservations, asset)
	}
	return t.average(obs, at), nil
}

// average computes Σ(price_i * duration_i) / Σ duration_i over the window
// ending at at. Must be called with the lock held and len(obs) > 0.
func (t *TWAP) average(obs []PricePoint, at time.Time) *big.Int {
	windowStart := at.Add(-t.window)

	var relevant []PricePoint
	for i, o := range obs {
		if o.Timestamp.After(at) {
			break
		}
		if o.Timestamp.After(windowStart) {
			relevant = append(relevant, o)
			continue
		}
		// The latest observation before the window still prices its start.
		if i+1 == len(obs) || obs[i+1].Timestamp.After(windowStart) {
			relevant = append(relevant, PricePoint{Price: o.Price, Timestamp: windowStart})
		}
	}

	switch len(relevant) {
	case 0:
		return new(big.Int).Set(obs[0].Price)
	case 1:
		return new(big.Int).Set(relevant[0].Price)
	}

	weighted := new(big.Int)
	var total int64
	for i, o := range relevant {
		end := at
		if i+1 < len(relevant) {
			end = relevant[i+1].Timestamp
		}
		secs := int64(end.Sub(o.Timestamp).Seconds())
		if secs <= 0 {
			continue
		}
		weighted.Add(weighted, new(big.Int).Mul(o.Price, big.NewInt(secs)))
		total += secs
	}
	if total == 0 {
		return new(big.Int).Set(relevant[len(relevant)-1].Price)
	}
	return weighted.Div(weighted, big.NewInt(total))
}

// Window returns the TWAP window duration.
func (t *TWAP) Window() time.Duration {
	return t.window
}
