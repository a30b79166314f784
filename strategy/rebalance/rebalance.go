// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package rebalance is the reference rebalancing strategy. It measures how
// far the treasury's asset weights have drifted from their targets and pulls
// the vault back into custody when the drift is too large.
package rebalance

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"

	"github.com/luxfi/database"
	"github.com/luxfi/ids"
	"github.com/luxfi/log"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/floats/scalar"

	"github.com/luxfi/flightvm/ledger"
	"github.com/luxfi/flightvm/oracle"
	"github.com/luxfi/flightvm/state"
	"github.com/luxfi/flightvm/strategy"
)

var (
	ErrUnsupportedDirective = errors.New("unsupported directive")
	ErrTargetsMismatch      = errors.New("target weights do not match assets")
	ErrTargetsNotNormalized = errors.New("target weights must sum to 1")
	ErrEmptyTreasury        = errors.New("treasury holds no valued assets")

	_ strategy.Strategy = (*Rebalance)(nil)

	keyReport = []byte("report")
)

const weightTolerance = 1e-9

type Config struct {
	Address ids.ShortID
	Custody ids.ShortID
	Vault   ids.ShortID
	// Assets and Targets are parallel: Targets[i] is the weight of Assets[i].
	Assets  []ids.ID
	Targets []float64
	// Drift above Tolerance (sum of absolute weight deviations) recalls the
	// vault.
	Tolerance float64
}

// Report is the outcome of the latest rebalance.
type Report struct {
	Cycle    uint64    `json:"cycle"`
	Weights  []float64 `json:"weights"`
	Drift    float64   `json:"drift"`
	Recalled uint64    `json:"recalled"`
}

// record is the stored form of a Report. Weights and drift are kept in parts
// per million since the codec has no floats.
type record struct {
	Cycle      uint64   `serialize:"true"`
	Recalled   uint64   `serialize:"true"`
	WeightsPPM []uint64 `serialize:"true"`
	DriftPPM   uint64   `serialize:"true"`
}

type Rebalance struct {
	log    log.Logger
	config Config
	guard  *oracle.Guard
	assets *ledger.Ledger
	db     database.Database
}

func New(
	logger log.Logger,
	config Config,
	guard *oracle.Guard,
	assets *ledger.Ledger,
	db database.Database,
) (*Rebalance, error) {
	if len(config.Assets) == 0 || len(config.Assets) != len(config.Targets) {
		return nil, ErrTargetsMismatch
	}
	if sum := floats.Sum(config.Targets); !scalar.EqualWithinAbs(sum, 1, weightTolerance) {
		return nil, fmt.Errorf("%w: got %f", ErrTargetsNotNormalized, sum)
	}
	return &Rebalance{
		log:    logger,
		config: config,
		guard:  guard,
		assets: assets,
		db:     db,
	}, nil
}

func (r *Rebalance) Address() ids.ShortID {
	return r.config.Address
}

func (r *Rebalance) Validate(_ context.Context, req strategy.Request) error {
	if req.Directive != strategy.Realign {
		return fmt.Errorf("%w: %s", ErrUnsupportedDirective, req.Directive)
	}
	_, err := r.weights()
	return err
}

// weights returns the current value weight of every configured asset across
// custody and vault.
func (r *Rebalance) weights() ([]float64, error) {
	values := make([]float64, len(r.config.Assets))
	for i, asset := range r.config.Assets {
		price, err := r.guard.Price(asset)
		if err != nil {
			return nil, err
		}
		var held uint64
		for _, account := range []ids.ShortID{r.config.Custody, r.config.Vault} {
			balance, err := r.assets.Balance(asset, account)
			if err != nil {
				return nil, err
			}
			held += balance
		}
		value := new(big.Int).Mul(new(big.Int).SetUint64(held), price)
		values[i], _ = new(big.Float).Quo(new(big.Float).SetInt(value), new(big.Float).SetInt(oracle.PrecisionFactor)).Float64()
	}
	total := floats.Sum(values)
	if total <= 0 {
		return nil, ErrEmptyTreasury
	}
	floats.Scale(1/total, values)
	return values, nil
}

func (r *Rebalance) Execute(ctx context.Context, req strategy.Request) error {
	if req.Directive != strategy.Realign {
		return fmt.Errorf("%w: %s", ErrUnsupportedDirective, req.Directive)
	}
	weights, err := r.weights()
	if err != nil {
		return err
	}
	drift := floats.Distance(weights, r.config.Targets, 1)

	report := Report{
		Cycle:   req.Cycle,
		Weights: weights,
		Drift:   drift,
	}
	if drift > r.config.Tolerance {
		for _, asset := range r.config.Assets {
			held, err := r.assets.Balance(asset, r.config.Vault)
			if err != nil {
				return err
			}
			if held == 0 {
				continue
			}
			if err := r.assets.Transfer(asset, r.config.Vault, r.config.Custody, held); err != nil {
				return err
			}
			report.Recalled += held
		}
	}

	r.log.Info("rebalanced treasury",
		log.Uint64("cycle", req.Cycle),
		log.Reflect("weights", weights),
		log.Uint64("recalled", report.Recalled),
	)
	return state.PutRecord(r.db, keyReport, &record{
		Cycle:      report.Cycle,
		Recalled:   report.Recalled,
		WeightsPPM: toPPM(weights),
		DriftPPM:   toPPM([]float64{drift})[0],
	})
}

// Latest returns the most recent report, if any.
func (r *Rebalance) Latest() (Report, bool, error) {
	var rec record
	ok, err := state.GetRecord(r.db, keyReport, &rec)
	if err != nil || !ok {
		return Report{}, false, err
	}
	return Report{
		Cycle:    rec.Cycle,
		Weights:  fromPPM(rec.WeightsPPM),
		Drift:    fromPPM([]uint64{rec.DriftPPM})[0],
		Recalled: rec.Recalled,
	}, true, nil
}

func (r *Rebalance) State(context.Context) ([]byte, error) {
	report, ok, err := r.Latest()
	if err != nil {
		return nil, err
	}
	if !ok {
		return json.Marshal(nil)
	}
	return json.Marshal(report)
}

func toPPM(v []float64) []uint64 {
	out := make([]uint64, len(v))
	for i, f := range v {
		out[i] = uint64(f*1e6 + 0.5)
	}
	return out
}

func fromPPM(v []uint64) []float64 {
	out := make([]float64, len(v))
	for i, u := range v {
		out[i] = float64(u) / 1e6
	}
	return out
}
