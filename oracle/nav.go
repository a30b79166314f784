// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package oracle

import (
	"math/big"

	"github.com/luxfi/ids"
)

// Balances reads asset balances of an account.
type Balances interface {
	Balance(asset ids.ID, account ids.ShortID) (uint64, error)
}

// Valuation is the value of one asset position.
type Valuation struct {
	Asset   ids.ID
	Balance uint64
	Price   *big.Int
	Value   *big.Int
}

// NAV values every asset position of account at guarded prices. The total is
// in quote units (Σ balance × price / 1e18). Any stale price fails the whole
// valuation.
func NAV(guard *Guard, balances Balances, account ids.ShortID, assets []ids.ID) (*big.Int, []Valuation, error) {
	total := new(big.Int)
	positions := make([]Valuation, 0, len(assets))
	for _, asset := range assets {
		balance, err := balances.Balance(asset, account)
		if err != nil {
			return nil, nil, err
		}
		if balance == 0 {
			continue
		}
		price, err := guard.Price(asset)
		if err != nil {
			return nil, nil, err
		}
		value := new(big.Int).Mul(new(big.Int).SetUint64(balance), price)
		value.Div(value, PrecisionFactor)
		total.Add(total, value)
		positions = append(positions, Valuation{
			Asset:   asset,
			Balance: balance,
			Price:   price,
			Value:   value,
		})
	}
	return total, positions, nil
}
