// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package flightvm hosts a flight state machine: it builds the treasury, its
// custody account, the reference strategies and the machine from genesis and
// serves them over JSON-RPC.
package flightvm

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"sync"

	"github.com/gorilla/rpc/v2"
	"github.com/gorilla/rpc/v2/json2"
	"github.com/luxfi/database"
	"github.com/luxfi/database/prefixdb"
	"github.com/luxfi/database/versiondb"
	"github.com/luxfi/ids"
	"github.com/luxfi/log"
	"github.com/luxfi/version"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/luxfi/flightvm/api"
	"github.com/luxfi/flightvm/api/health"
	"github.com/luxfi/flightvm/boarding"
	"github.com/luxfi/flightvm/config"
	"github.com/luxfi/flightvm/custody"
	"github.com/luxfi/flightvm/events"
	"github.com/luxfi/flightvm/faults"
	"github.com/luxfi/flightvm/genesis"
	"github.com/luxfi/flightvm/ledger"
	"github.com/luxfi/flightvm/machine"
	"github.com/luxfi/flightvm/metrics"
	"github.com/luxfi/flightvm/oracle"
	"github.com/luxfi/flightvm/stake"
	"github.com/luxfi/flightvm/strategy"
	"github.com/luxfi/flightvm/strategy/accumulation"
	"github.com/luxfi/flightvm/strategy/hedge"
	"github.com/luxfi/flightvm/strategy/rebalance"
	"github.com/luxfi/flightvm/utils/timer/mockable"
)

// Name is the service name the JSON-RPC API is registered under.
const Name = "flight"

var (
	Version = &version.Application{
		Name:  "flightvm",
		Major: 0,
		Minor: 1,
		Patch: 0,
	}

	ErrNotInitialized = errors.New("vm not initialized")
	ErrNotServing     = errors.New("vm not serving")
	ErrNoDatabase     = errors.New("no database provided")
	ErrNotAutomation  = fmt.Errorf("%w: only the automation publishes prices", faults.ErrAuthorization)
	ErrUnlistedAsset  = fmt.Errorf("%w: asset not listed in genesis", faults.ErrPrecondition)

	keyInitialized = []byte("initialized")

	_ api.Backend    = (*VM)(nil)
	_ health.Checker = (*VM)(nil)
)

// Config is what a host hands a VM on Initialize.
type Config struct {
	ChainID ids.ID
	DB      database.Database
	// Genesis is the codec encoded genesis.
	Genesis []byte
	// Config is the JSON rules document. Empty selects the defaults.
	Config []byte
	// JWTSecret signs caller tokens. Empty disables every mutating call.
	JWTSecret []byte
	// Registerer receives the machine metrics. Nil registers nowhere.
	Registerer prometheus.Registerer
	// Clock overrides wall time.
	Clock *mockable.Clock
}

type VM struct {
	log   log.Logger
	clock *mockable.Clock

	lock  sync.RWMutex
	state State

	baseDB    database.Database
	db        *versiondb.Database
	genesis   *genesis.Genesis
	rules     config.Config
	jwtSecret []byte

	assets     *ledger.Ledger
	members    *ledger.Asset
	safe       *custody.Safe
	redemption *custody.Redemption
	prices     *oracle.TWAP
	guard      *oracle.Guard

	accumulation *accumulation.Accumulation
	hedge        *hedge.Hedge
	rebalance    *rebalance.Rebalance

	machine *machine.Machine
}

// New returns an uninitialized VM that logs to logger.
func New(logger log.Logger) *VM {
	if logger == nil {
		logger = log.NoLog{}
	}
	return &VM{log: logger}
}

func (vm *VM) Initialize(_ context.Context, c *Config) error {
	if vm.log == nil {
		vm.log = log.NoLog{}
	}
	if c.DB == nil {
		return ErrNoDatabase
	}
	vm.log.Info("initializing flightvm",
		log.Stringer("version", Version),
		log.Stringer("chainID", c.ChainID),
	)

	g, err := genesis.Parse(c.Genesis)
	if err != nil {
		return err
	}
	rules, err := config.Parse(c.Config)
	if err != nil {
		return err
	}

	vm.clock = c.Clock
	if vm.clock == nil {
		vm.clock = &mockable.Clock{}
	}
	registerer := c.Registerer
	if registerer == nil {
		registerer = prometheus.NewRegistry()
	}

	vm.baseDB = c.DB
	vm.db = versiondb.New(c.DB)
	vm.genesis = g
	vm.rules = rules
	vm.jwtSecret = c.JWTSecret

	vm.assets = ledger.New(prefixdb.New([]byte("ledger"), vm.db))
	vm.members = vm.assets.Asset(g.MemberAsset)
	vm.safe = custody.NewSafe(
		vm.log,
		genesis.CustodyAddress,
		g.BaseAsset,
		prefixdb.New([]byte("custody"), vm.db),
		vm.assets,
	)
	vm.redemption = custody.NewRedemption(
		vm.log,
		genesis.RedemptionAddress,
		genesis.CustodyAddress,
		prefixdb.New([]byte("redemption"), vm.db),
		vm.assets,
		vm.members,
		g.AssetIDs(),
	)
	if err := vm.safe.Register(genesis.RedemptionAddress, vm.redemption); err != nil {
		return err
	}

	vm.prices, err = oracle.NewTWAP(oracle.DefaultTWAPWindow)
	if err != nil {
		return err
	}
	vm.guard = oracle.NewGuard(vm.prices, vm.clock, rules.OracleMaxAge)

	fresh, err := vm.applyGenesis()
	if err != nil {
		return fmt.Errorf("failed to initialize genesis state: %w", err)
	}
	// Opening prices only seed a new database. A restarted VM waits for the
	// automation to publish.
	if fresh {
		now := vm.clock.Time()
		for _, asset := range g.Assets {
			vm.prices.Record(asset.ID, scalePrice(asset.Price), now)
		}
	}

	directory, err := vm.deployStrategies()
	if err != nil {
		return err
	}

	m, err := metrics.New(registerer)
	if err != nil {
		return err
	}
	journal, err := events.NewJournal(prefixdb.New([]byte("events"), vm.db))
	if err != nil {
		return err
	}
	vm.machine, err = machine.New(
		machine.Config{
			Rules:      rules,
			Admin:      g.Admin,
			Automation: g.Automation,
			Redemption: genesis.RedemptionAddress,
		},
		machine.Deps{
			Log:     vm.log,
			Metrics: m,
			Clock:   vm.clock,
			DB:      vm.db,
			State:   prefixdb.New([]byte("machine"), vm.db),
			Members: vm.members,
			Stakes: stake.New(
				vm.log,
				prefixdb.New([]byte("stake"), vm.db),
				vm.members,
				genesis.StakeEscrowAddress,
			),
			Boarding: boarding.New(
				vm.log,
				boarding.Config{
					Duration:            rules.BoardingDuration,
					ForcedLaunchPercent: rules.ForcedLaunchPercent,
					BaseAsset:           g.BaseAsset,
					Escrow:              genesis.BoardingEscrowAddress,
					Custody:             genesis.CustodyAddress,
				},
				prefixdb.New([]byte("boarding"), vm.db),
				vm.assets,
				vm.members,
			),
			Agent:      vm.safe.Agent(genesis.ControllerAddress),
			Redeemer:   vm.redemption,
			Strategies: directory,
			Journal:    journal,
		},
	)
	if err != nil {
		return err
	}
	vm.accumulation.Attach(vm.machine)

	status, err := vm.machine.Status()
	if err != nil {
		return err
	}
	vm.setState(Bootstrapping)
	vm.log.Info("initialized flightvm",
		log.Stringer("phase", status.Phase),
		log.Uint64("cycle", status.Cycle),
	)
	return nil
}

// applyGenesis credits the opening balances and enables the custody modules.
// It runs once per database and reports whether it ran.
func (vm *VM) applyGenesis() (bool, error) {
	meta := prefixdb.New([]byte("vm"), vm.db)
	done, err := meta.Has(keyInitialized)
	if err != nil || done {
		return false, err
	}
	for _, a := range vm.genesis.Allocations {
		if err := vm.assets.Mint(a.Asset, a.Address, a.Balance); err != nil {
			return false, err
		}
	}
	for _, module := range []ids.ShortID{
		genesis.ControllerAddress,
		genesis.AccumulationAddress,
	} {
		if err := vm.safe.EnableModule(module); err != nil {
			return false, err
		}
	}
	if err := meta.Put(keyInitialized, []byte{1}); err != nil {
		return false, err
	}
	return true, vm.db.Commit()
}

// deployStrategies builds the reference strategies at their well known
// addresses. Assigning them to the machine is left to the administrator.
func (vm *VM) deployStrategies() (*strategy.Directory, error) {
	g := vm.genesis
	var err error
	vm.accumulation, err = accumulation.New(
		vm.log,
		accumulation.Config{
			Address:   genesis.AccumulationAddress,
			Vault:     genesis.VaultAddress,
			Custody:   genesis.CustodyAddress,
			BaseAsset: g.BaseAsset,
			DeployBps: vm.rules.DeployBps,
		},
		vm.safe.Agent(genesis.AccumulationAddress),
		vm.assets,
		prefixdb.New([]byte("strategy/accumulation"), vm.db),
	)
	if err != nil {
		return nil, err
	}
	vm.hedge, err = hedge.New(
		vm.log,
		hedge.Config{
			Address:  genesis.HedgeAddress,
			Account:  genesis.CustodyAddress,
			Assets:   g.AssetIDs(),
			RatioBps: vm.rules.HedgeRatioBps,
		},
		vm.guard,
		vm.assets,
		prefixdb.New([]byte("strategy/hedge"), vm.db),
	)
	if err != nil {
		return nil, err
	}
	vm.rebalance, err = rebalance.New(
		vm.log,
		rebalance.Config{
			Address:   genesis.RebalanceAddress,
			Custody:   genesis.CustodyAddress,
			Vault:     genesis.VaultAddress,
			Assets:    g.AssetIDs(),
			Targets:   equalWeights(len(g.Assets)),
			Tolerance: vm.rules.RebalanceTolerance,
		},
		vm.guard,
		vm.assets,
		prefixdb.New([]byte("strategy/rebalance"), vm.db),
	)
	if err != nil {
		return nil, err
	}

	directory := strategy.NewDirectory()
	for address, s := range map[ids.ShortID]strategy.Strategy{
		genesis.AccumulationAddress: vm.accumulation,
		genesis.HedgeAddress:        vm.hedge,
		genesis.RebalanceAddress:    vm.rebalance,
	} {
		if err := directory.Deploy(address, s); err != nil {
			return nil, err
		}
	}
	return directory, nil
}

func equalWeights(n int) []float64 {
	weights := make([]float64, n)
	for i := range weights {
		weights[i] = 1 / float64(n)
	}
	return weights
}

// scalePrice converts a whole-unit price into the 1e18 fixed point of the
// oracle.
func scalePrice(price uint64) *big.Int {
	return new(big.Int).Mul(new(big.Int).SetUint64(price), oracle.PrecisionFactor)
}

func (vm *VM) SetState(_ context.Context, s State) error {
	if vm.machine == nil {
		return ErrNotInitialized
	}
	vm.setState(s)
	vm.log.Info("flightvm state changed", log.Stringer("state", s))
	return nil
}

func (vm *VM) setState(s State) {
	vm.lock.Lock()
	vm.state = s
	vm.lock.Unlock()
}

// Ready reports whether the VM accepts operations.
func (vm *VM) Ready() bool {
	vm.lock.RLock()
	defer vm.lock.RUnlock()
	return vm.state == NormalOp
}

// Health is the detail of a health check.
type Health struct {
	State       string `json:"state"`
	Phase       string `json:"phase,omitempty"`
	Cycle       uint64 `json:"cycle,omitempty"`
	PricesFresh bool   `json:"pricesFresh"`
}

// HealthCheck fails unless the VM is in normal operation. Stale prices are
// reported without failing the check.
func (vm *VM) HealthCheck(context.Context) (interface{}, error) {
	vm.lock.RLock()
	s := vm.state
	vm.lock.RUnlock()

	h := Health{State: s.String()}
	if vm.machine == nil {
		return h, ErrNotInitialized
	}
	status, err := vm.machine.Status()
	if err != nil {
		return h, err
	}
	h.Phase = status.Phase.String()
	h.Cycle = status.Cycle
	_, _, err = vm.NAV()
	h.PricesFresh = err == nil
	if s != NormalOp {
		return h, fmt.Errorf("%w: %s", ErrNotServing, s)
	}
	return h, nil
}

func (vm *VM) Shutdown(context.Context) error {
	if vm.baseDB == nil {
		return nil
	}
	vm.setState(Unknown)
	return vm.baseDB.Close()
}

func (*VM) Version(context.Context) (string, error) {
	return Version.String(), nil
}

func (vm *VM) CreateHandlers(context.Context) (map[string]http.Handler, error) {
	if vm.machine == nil {
		return nil, ErrNotInitialized
	}
	var auth *api.Auth
	if len(vm.jwtSecret) > 0 {
		var err error
		if auth, err = api.NewAuth(vm.jwtSecret); err != nil {
			return nil, err
		}
	}
	service, err := api.NewService(vm.log, vm, auth, vm.rules.HistoryCacheSize)
	if err != nil {
		return nil, err
	}

	server := rpc.NewServer()
	server.RegisterCodec(json2.NewCodec(), "application/json")
	server.RegisterCodec(json2.NewCodec(), "application/json;charset=UTF-8")
	return map[string]http.Handler{
		"": server,
	}, server.RegisterService(service, Name)
}

// Machine returns the flight state machine.
func (vm *VM) Machine() *machine.Machine {
	return vm.machine
}

// Genesis returns the parsed genesis.
func (vm *VM) Genesis() *genesis.Genesis {
	return vm.genesis
}

// Clock returns the VM time source.
func (vm *VM) Clock() *mockable.Clock {
	return vm.clock
}

// Balance returns the balance of account in asset.
func (vm *VM) Balance(asset ids.ID, account ids.ShortID) (uint64, error) {
	return vm.assets.Balance(asset, account)
}

// NAV values the custody account at guarded prices.
func (vm *VM) NAV() (*big.Int, []oracle.Valuation, error) {
	return oracle.NAV(vm.guard, vm.assets, genesis.CustodyAddress, vm.genesis.AssetIDs())
}

// UpdatePrice records a price observation for a listed asset. Only the
// automation caller publishes prices.
func (vm *VM) UpdatePrice(_ context.Context, caller ids.ShortID, asset ids.ID, price *big.Int) error {
	if caller != vm.genesis.Automation {
		return ErrNotAutomation
	}
	listed := false
	for _, a := range vm.genesis.Assets {
		listed = listed || a.ID == asset
	}
	if !listed {
		return fmt.Errorf("%w: %s", ErrUnlistedAsset, asset)
	}
	if price == nil || price.Sign() <= 0 {
		return oracle.ErrNonPositive
	}
	vm.prices.Record(asset, price, vm.clock.Time())
	return nil
}

// ReportUnwind has the accumulation strategy report a settled unwind to the
// machine.
func (vm *VM) ReportUnwind(ctx context.Context) error {
	return vm.accumulation.ReportUnwind(ctx)
}
