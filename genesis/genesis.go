// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package genesis describes the initial state of a flight VM: its roles, its
// assets and their opening balances.
package genesis

import (
	"errors"
	"fmt"

	"github.com/luxfi/ids"
	"golang.org/x/crypto/sha3"

	"github.com/luxfi/flightvm/state"
)

const CodecVersion = state.CodecVersion

var (
	Codec = state.Codec

	ErrNoAdmin          = errors.New("genesis has no administrator")
	ErrNoAutomation     = errors.New("genesis has no automation caller")
	ErrSameAsset        = errors.New("base asset and participation right must differ")
	ErrMissingBaseAsset = errors.New("base asset is not listed")
	ErrDuplicateAsset   = errors.New("asset listed twice")
	ErrUnknownAsset     = errors.New("allocation of unlisted asset")
	ErrEmptyAllocation  = errors.New("allocation must be positive")
	ErrNonPositivePrice = errors.New("asset price must be positive")
)

// Asset is a treasury asset with its opening oracle price in whole quote
// units.
type Asset struct {
	ID     ids.ID `serialize:"true" json:"id"`
	Symbol string `serialize:"true" json:"symbol"`
	Price  uint64 `serialize:"true" json:"price"`
}

// Allocation credits an opening balance.
type Allocation struct {
	Asset   ids.ID      `serialize:"true" json:"asset"`
	Address ids.ShortID `serialize:"true" json:"address"`
	Balance uint64      `serialize:"true" json:"balance"`
}

type Genesis struct {
	Timestamp  int64       `serialize:"true" json:"timestamp"`
	Admin      ids.ShortID `serialize:"true" json:"admin"`
	Automation ids.ShortID `serialize:"true" json:"automation"`
	// BaseAsset is contributed during boarding and deployed by strategies.
	BaseAsset ids.ID `serialize:"true" json:"baseAsset"`
	// MemberAsset is the participation right.
	MemberAsset ids.ID       `serialize:"true" json:"memberAsset"`
	Assets      []Asset      `serialize:"true" json:"assets"`
	Allocations []Allocation `serialize:"true" json:"allocations"`
}

// Parse decodes and verifies genesis bytes.
func Parse(b []byte) (*Genesis, error) {
	g := &Genesis{}
	if _, err := Codec.Unmarshal(b, g); err != nil {
		return nil, fmt.Errorf("failed to parse genesis: %w", err)
	}
	return g, g.Verify()
}

func (g *Genesis) Bytes() ([]byte, error) {
	return Codec.Marshal(CodecVersion, g)
}

func (g *Genesis) Verify() error {
	switch {
	case g.Admin == ids.ShortEmpty:
		return ErrNoAdmin
	case g.Automation == ids.ShortEmpty:
		return ErrNoAutomation
	case g.BaseAsset == g.MemberAsset:
		return ErrSameAsset
	}

	listed := make(map[ids.ID]struct{}, len(g.Assets))
	for _, asset := range g.Assets {
		if _, ok := listed[asset.ID]; ok || asset.ID == g.MemberAsset {
			return fmt.Errorf("%w: %s", ErrDuplicateAsset, asset.ID)
		}
		if asset.Price == 0 {
			return fmt.Errorf("%w: %s", ErrNonPositivePrice, asset.Symbol)
		}
		listed[asset.ID] = struct{}{}
	}
	if _, ok := listed[g.BaseAsset]; !ok {
		return ErrMissingBaseAsset
	}
	for _, a := range g.Allocations {
		if _, ok := listed[a.Asset]; !ok && a.Asset != g.MemberAsset {
			return fmt.Errorf("%w: %s", ErrUnknownAsset, a.Asset)
		}
		if a.Balance == 0 {
			return fmt.Errorf("%w: %s", ErrEmptyAllocation, a.Address)
		}
	}
	return nil
}

// AssetIDs returns the listed treasury assets in order.
func (g *Genesis) AssetIDs() []ids.ID {
	out := make([]ids.ID, len(g.Assets))
	for i, asset := range g.Assets {
		out[i] = asset.ID
	}
	return out
}

// Address derives the well known address of a system account from its label,
// as the last 20 bytes of keccak256(label).
func Address(label string) ids.ShortID {
	h := sha3.NewLegacyKeccak256()
	_, _ = h.Write([]byte(label))
	var addr ids.ShortID
	copy(addr[:], h.Sum(nil)[12:])
	return addr
}

// AssetID derives the id of an asset from its symbol.
func AssetID(symbol string) ids.ID {
	h := sha3.NewLegacyKeccak256()
	_, _ = h.Write([]byte("asset:" + symbol))
	var id ids.ID
	copy(id[:], h.Sum(nil))
	return id
}

// Well known system accounts.
var (
	CustodyAddress        = Address("flightvm/custody")
	BoardingEscrowAddress = Address("flightvm/boarding-escrow")
	StakeEscrowAddress    = Address("flightvm/stake-escrow")
	RedemptionAddress     = Address("flightvm/redemption")
	ControllerAddress     = Address("flightvm/controller")
	AccumulationAddress   = Address("flightvm/strategy/accumulation")
	VaultAddress          = Address("flightvm/strategy/vault")
	HedgeAddress          = Address("flightvm/strategy/hedge")
	RebalanceAddress      = Address("flightvm/strategy/rebalance")
)
