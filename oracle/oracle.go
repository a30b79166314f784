// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package oracle provides the read-only price and net asset value surface the
// strategies consume. Every reading carries the time it was last updated and
// is checked for freshness before use.
package oracle

import (
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/luxfi/ids"

	"github.com/luxfi/flightvm/faults"
)

var (
	// ErrNoObservations indicates no price observations are available.
	ErrNoObservations = fmt.Errorf("%w: no price observations available", faults.ErrStaleData)
	// ErrStale is returned for readings older than the guard's max age.
	ErrStale = fmt.Errorf("%w: price reading too old", faults.ErrStaleData)
	// ErrNonPositive is returned for zero or negative prices.
	ErrNonPositive = fmt.Errorf("%w: non-positive price", faults.ErrStaleData)

	// PrecisionFactor for price calculations (1e18).
	PrecisionFactor = new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)

	// DefaultMaxAge is the freshness threshold of the reference deployment.
	DefaultMaxAge = time.Hour
)

// Reading is a price scaled by PrecisionFactor and the time it was last
// updated.
type Reading struct {
	Price     *big.Int
	UpdatedAt time.Time
}

// Feed provides the latest price of an asset.
type Feed interface {
	Latest(asset ids.ID) (Reading, error)
}

// Clock is the time source of a Guard.
type Clock interface {
	Time() time.Time
}

// Guard wraps a feed and rejects stale or non-positive readings.
type Guard struct {
	feed   Feed
	clock  Clock
	maxAge time.Duration
}

// NewGuard returns a guard over feed. A non-positive maxAge selects
// DefaultMaxAge.
func NewGuard(feed Feed, clock Clock, maxAge time.Duration) *Guard {
	if maxAge <= 0 {
		maxAge = DefaultMaxAge
	}
	return &Guard{
		feed:   feed,
		clock:  clock,
		maxAge: maxAge,
	}
}

// Price returns the fresh price of asset.
func (g *Guard) Price(asset ids.ID) (*big.Int, error) {
	r, err := g.feed.Latest(asset)
	if err != nil {
		return nil, err
	}
	if err := g.Check(r); err != nil {
		return nil, fmt.Errorf("%s: %w", asset, err)
	}
	return new(big.Int).Set(r.Price), nil
}

// Check validates a single reading against the guard's policy.
func (g *Guard) Check(r Reading) error {
	if r.Price == nil || r.Price.Sign() <= 0 {
		return ErrNonPositive
	}
	if age := g.clock.Time().Sub(r.UpdatedAt); age > g.maxAge {
		return fmt.Errorf("%w: updated %s ago, limit %s", ErrStale, age, g.maxAge)
	}
	return nil
}

// MaxAge returns the freshness threshold.
func (g *Guard) MaxAge() time.Duration {
	return g.maxAge
}

// Static is a feed whose prices are set directly. It backs tests and the
// simulator.
type Static struct {
	mu       sync.RWMutex
	readings map[ids.ID]Reading
}

// NewStatic returns an empty static feed.
func NewStatic() *Static {
	return &Static{
		readings: make(map[ids.ID]Reading),
	}
}

// Set records price for asset as of updatedAt.
func (s *Static) Set(asset ids.ID, price *big.Int, updatedAt time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.readings[asset] = Reading{
		Price:     new(big.Int).Set(price),
		UpdatedAt: updatedAt,
	}
}

// Latest implements Feed.
func (s *Static) Latest(asset ids.ID) (Reading, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.readings[asset]
	if !ok {
		return Reading{}, fmt.Errorf("%w: %s", ErrNoObservations, asset)
	}
	return Reading{Price: new(big.Int).Set(r.Price), UpdatedAt: r.UpdatedAt}, nil
}

// Scale returns v * 1e18.
func Scale(v int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(v), PrecisionFactor)
}
