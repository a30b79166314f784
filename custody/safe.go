// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package custody implements the fund-holding account of the treasury. The
// controller never moves funds itself: it authors instructions that the
// custody account executes on its own behalf through the module path.
package custody

//go:generate go run go.uber.org/mock/mockgen -package=${GOPACKAGE}mock -destination=${GOPACKAGE}mock/agent.go -mock_names=TreasuryAgent=TreasuryAgent . TreasuryAgent

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/luxfi/database"
	"github.com/luxfi/ids"
	"github.com/luxfi/log"

	"github.com/luxfi/flightvm/ledger"
	"github.com/luxfi/flightvm/state"
)

var (
	ErrModuleDisabled     = errors.New("module not enabled")
	ErrUnknownTarget      = errors.New("no handler registered at target")
	ErrDelegateCallValue  = errors.New("delegate call cannot carry value")
	ErrTargetRegistered   = errors.New("target already registered")
	ErrEmptyAddress       = errors.New("empty address")
	ErrUnknownOperation   = errors.New("unknown operation kind")
	ErrUnsupportedPayload = errors.New("unsupported payload")

	prefixModule = []byte("module:")
)

// Operation is the execution kind of a module call.
type Operation uint8

const (
	Call Operation = iota
	DelegateCall
)

func (o Operation) String() string {
	switch o {
	case Call:
		return "call"
	case DelegateCall:
		return "delegatecall"
	default:
		return fmt.Sprintf("Operation(%d)", uint8(o))
	}
}

// TreasuryAgent is the narrow capability the controller holds over the
// custody account. A nil error means the custody account executed the
// instruction.
type TreasuryAgent interface {
	Execute(ctx context.Context, target ids.ShortID, value uint64, payload []byte, op Operation) error
}

// Handler is the code living at a target address. from is the custody
// account on whose behalf the call runs.
type Handler interface {
	Handle(ctx context.Context, from ids.ShortID, value uint64, payload []byte, op Operation) error
}

// Safe is the custody account. Enabled modules are state and persist in db;
// target handlers are code and are registered at construction.
type Safe struct {
	log       log.Logger
	address   ids.ShortID
	baseAsset ids.ID
	db        database.Database
	assets    *ledger.Ledger

	targetsLock sync.RWMutex
	targets     map[ids.ShortID]Handler
}

// NewSafe returns the custody account at address holding baseAsset in assets.
func NewSafe(
	logger log.Logger,
	address ids.ShortID,
	baseAsset ids.ID,
	db database.Database,
	assets *ledger.Ledger,
) *Safe {
	return &Safe{
		log:       logger,
		address:   address,
		baseAsset: baseAsset,
		db:        db,
		assets:    assets,
		targets:   make(map[ids.ShortID]Handler),
	}
}

// Address returns the custody account address.
func (s *Safe) Address() ids.ShortID {
	return s.address
}

// BaseAsset returns the asset carried by the value field of a call.
func (s *Safe) BaseAsset() ids.ID {
	return s.baseAsset
}

// Register installs handler as the code at target.
func (s *Safe) Register(target ids.ShortID, handler Handler) error {
	if target == ids.ShortEmpty {
		return ErrEmptyAddress
	}
	s.targetsLock.Lock()
	defer s.targetsLock.Unlock()

	if _, ok := s.targets[target]; ok {
		return fmt.Errorf("%w: %s", ErrTargetRegistered, target)
	}
	s.targets[target] = handler
	return nil
}

func moduleKey(module ids.ShortID) []byte {
	return state.Key(prefixModule, module[:])
}

// EnableModule authorizes module to execute on behalf of the custody account.
func (s *Safe) EnableModule(module ids.ShortID) error {
	if module == ids.ShortEmpty {
		return ErrEmptyAddress
	}
	return s.db.Put(moduleKey(module), []byte{1})
}

// DisableModule revokes module.
func (s *Safe) DisableModule(module ids.ShortID) error {
	return s.db.Delete(moduleKey(module))
}

// IsModuleEnabled reports whether module may execute.
func (s *Safe) IsModuleEnabled(module ids.ShortID) (bool, error) {
	return s.db.Has(moduleKey(module))
}

// ExecFromModule executes an instruction authored by module: value units of
// the base asset move from the custody account to target, then payload is
// dispatched to target's handler. A failing handler fails the whole call;
// the caller's transaction discards the value transfer.
func (s *Safe) ExecFromModule(
	ctx context.Context,
	module ids.ShortID,
	target ids.ShortID,
	value uint64,
	payload []byte,
	op Operation,
) error {
	enabled, err := s.IsModuleEnabled(module)
	if err != nil {
		return err
	}
	if !enabled {
		return fmt.Errorf("%w: %s", ErrModuleDisabled, module)
	}
	if op != Call && op != DelegateCall {
		return fmt.Errorf("%w: %d", ErrUnknownOperation, op)
	}
	if op == DelegateCall && value > 0 {
		return ErrDelegateCallValue
	}

	s.targetsLock.RLock()
	handler, hasHandler := s.targets[target]
	s.targetsLock.RUnlock()

	if len(payload) > 0 && !hasHandler {
		return fmt.Errorf("%w: %s", ErrUnknownTarget, target)
	}
	if value > 0 {
		if err := s.assets.Transfer(s.baseAsset, s.address, target, value); err != nil {
			return err
		}
	}
	if hasHandler {
		if err := handler.Handle(ctx, s.address, value, payload, op); err != nil {
			return fmt.Errorf("target %s: %w", target, err)
		}
	}

	s.log.Debug("custody executed module call",
		log.Stringer("module", module),
		log.Stringer("target", target),
		log.Uint64("value", value),
		log.Stringer("operation", op),
	)
	return nil
}

// Agent binds the module identity of a caller to the custody account.
func (s *Safe) Agent(module ids.ShortID) TreasuryAgent {
	return &agent{safe: s, module: module}
}

type agent struct {
	safe   *Safe
	module ids.ShortID
}

func (a *agent) Execute(ctx context.Context, target ids.ShortID, value uint64, payload []byte, op Operation) error {
	return a.safe.ExecFromModule(ctx, a.module, target, value, payload, op)
}
