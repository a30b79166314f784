// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package api

import (
	lru "github.com/hashicorp/golang-lru"

	"github.com/luxfi/flightvm/machine"
)

// history reads cycle records through a cache of completed cycles. A closed
// cycle record never changes, the open one is always read through.
type history struct {
	machine *machine.Machine
	cache   *lru.Cache
}

func newHistory(m *machine.Machine, size int) (*history, error) {
	cache, err := lru.New(size)
	if err != nil {
		return nil, err
	}
	return &history{
		machine: m,
		cache:   cache,
	}, nil
}

func (h *history) cycle(n uint64) (machine.CycleRecord, bool, error) {
	if r, ok := h.cache.Get(n); ok {
		return r.(machine.CycleRecord), true, nil
	}
	r, ok, err := h.machine.Cycle(n)
	if err != nil || !ok {
		return r, ok, err
	}
	if r.End != 0 {
		h.cache.Add(n, r)
	}
	return r, true, nil
}
