// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package strategy

import (
	"errors"
	"fmt"
	"sync"

	"github.com/luxfi/ids"
)

var (
	ErrEmptyAddress    = errors.New("empty strategy address")
	ErrAlreadyDeployed = errors.New("strategy already deployed at address")
	ErrNotDeployed     = errors.New("no strategy deployed at address")
)

// Directory resolves deployed strategy addresses to their implementation.
// Strategy handles stored by the controller are addresses; the directory is
// the code behind them.
type Directory struct {
	lock     sync.RWMutex
	deployed map[ids.ShortID]Strategy
}

func NewDirectory() *Directory {
	return &Directory{
		deployed: make(map[ids.ShortID]Strategy),
	}
}

// Deploy installs s at address.
func (d *Directory) Deploy(address ids.ShortID, s Strategy) error {
	if address == ids.ShortEmpty {
		return ErrEmptyAddress
	}
	d.lock.Lock()
	defer d.lock.Unlock()

	if _, ok := d.deployed[address]; ok {
		return fmt.Errorf("%w: %s", ErrAlreadyDeployed, address)
	}
	d.deployed[address] = s
	return nil
}

// Resolve returns the strategy deployed at address.
func (d *Directory) Resolve(address ids.ShortID) (Strategy, error) {
	d.lock.RLock()
	defer d.lock.RUnlock()

	s, ok := d.deployed[address]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotDeployed, address)
	}
	return s, nil
}

// Len returns the number of deployed strategies.
func (d *Directory) Len() int {
	d.lock.RLock()
	defer d.lock.RUnlock()

	return len(d.deployed)
}
