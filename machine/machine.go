// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package machine implements the flight state machine: the single authority
// that moves a treasury from phase to phase, gates every move behind its
// caller class and preconditions, and delegates fund movement to custody and
// strategies.
//
// Every operation runs as one transaction over a shared versioned database.
// Collaborators write into the same database, so a failure anywhere in an
// operation, including inside a delegated call, discards every write the
// operation made.
package machine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/luxfi/database"
	"github.com/luxfi/database/versiondb"
	"github.com/luxfi/ids"
	"github.com/luxfi/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/luxfi/flightvm/boarding"
	"github.com/luxfi/flightvm/config"
	"github.com/luxfi/flightvm/custody"
	"github.com/luxfi/flightvm/events"
	"github.com/luxfi/flightvm/faults"
	"github.com/luxfi/flightvm/ledger"
	"github.com/luxfi/flightvm/metrics"
	"github.com/luxfi/flightvm/phase"
	"github.com/luxfi/flightvm/stake"
	"github.com/luxfi/flightvm/state"
	"github.com/luxfi/flightvm/strategy"

	oteltrace "go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/luxfi/flightvm/machine"

var (
	ErrNoAdmin      = errors.New("no administrator configured")
	ErrNoAutomation = errors.New("no automation caller configured")
	ErrNoRedemption = errors.New("no redemption target configured")
	ErrMissingDep   = errors.New("missing dependency")

	keyStatus   = []byte("status")
	prefixCycle = []byte("cycle:")
)

// Clock reads the current time. Deadlines are compared at call time only.
type Clock interface {
	Time() time.Time
}

// Redeemer is the rage-quit capability of the redemption module.
type Redeemer interface {
	Enabled() (bool, error)
	RageQuit(ctx context.Context, member ids.ShortID, shares uint64) ([]custody.Payout, error)
}

// Config fixes the roles and rules of a machine.
type Config struct {
	Rules      config.Config
	Admin      ids.ShortID
	Automation ids.ShortID
	// Redemption is the custody target toggled by the canonical payloads.
	Redemption ids.ShortID
}

// Deps are the collaborators of a machine. DB is the versioned database every
// collaborator writes into; State is the machine's own view of it.
type Deps struct {
	Log        log.Logger
	Tracer     oteltrace.Tracer
	Metrics    metrics.Metrics
	Clock      Clock
	DB         *versiondb.Database
	State      database.Database
	Members    *ledger.Asset
	Stakes     *stake.Tracker
	Boarding   *boarding.Ledger
	Agent      custody.TreasuryAgent
	Redeemer   Redeemer
	Strategies *strategy.Directory
	Journal    *events.Journal
}

type Machine struct {
	config Config
	deps   Deps

	// Serializes operations. Holding it for the whole transaction is what
	// makes the second of two racing calls observe the first call's phase.
	lock sync.Mutex
}

// New returns the machine persisted in deps.State, initializing a fresh one
// in Boarding of cycle 1.
func New(c Config, deps Deps) (*Machine, error) {
	switch {
	case c.Admin == ids.ShortEmpty:
		return nil, ErrNoAdmin
	case c.Automation == ids.ShortEmpty:
		return nil, ErrNoAutomation
	case c.Redemption == ids.ShortEmpty:
		return nil, ErrNoRedemption
	}
	if err := c.Rules.Validate(); err != nil {
		return nil, err
	}
	if deps.DB == nil || deps.State == nil || deps.Members == nil || deps.Stakes == nil ||
		deps.Boarding == nil || deps.Agent == nil || deps.Redeemer == nil ||
		deps.Strategies == nil || deps.Journal == nil || deps.Clock == nil || deps.Metrics == nil {
		return nil, ErrMissingDep
	}
	if deps.Log == nil {
		deps.Log = log.NoLog{}
	}
	if deps.Tracer == nil {
		deps.Tracer = otel.Tracer(tracerName)
	}

	m := &Machine{
		config: c,
		deps:   deps,
	}

	var status Status
	ok, err := state.GetRecord(deps.State, keyStatus, &status)
	if err != nil {
		return nil, err
	}
	if !ok {
		status = Status{
			Phase:          phase.Boarding,
			Cycle:          1,
			PhaseEnteredAt: deps.Clock.Time().Unix(),
		}
		if err := state.PutRecord(deps.State, keyStatus, &status); err != nil {
			return nil, err
		}
		if err := deps.DB.Commit(); err != nil {
			return nil, err
		}
	}
	deps.Metrics.SetPosition(status.Phase, status.Cycle)
	return m, nil
}

// Status returns the committed status.
func (m *Machine) Status() (Status, error) {
	var status Status
	ok, err := state.GetRecord(m.deps.State, keyStatus, &status)
	if err != nil {
		return Status{}, err
	}
	if !ok {
		return Status{}, fmt.Errorf("%w: missing status", state.ErrCorrupted)
	}
	return status, nil
}

// Journal returns the committed event journal.
func (m *Machine) Journal() *events.Journal {
	return m.deps.Journal
}

// Config returns the roles and rules of the machine.
func (m *Machine) Config() Config {
	return m.config
}

func cycleKey(cycle uint64) []byte {
	return state.Key(prefixCycle, state.Uint64Bytes(cycle))
}

// Cycle returns the record of cycle.
func (m *Machine) Cycle(cycle uint64) (CycleRecord, bool, error) {
	var r CycleRecord
	ok, err := state.GetRecord(m.deps.State, cycleKey(cycle), &r)
	return r, ok, err
}

// txn is the working state of one operation.
type txn struct {
	machine     *Machine
	caller      ids.ShortID
	now         time.Time
	status      Status
	events      []events.Event
	transitions []transition
}

type transition struct {
	from, to phase.Phase
}

type operation func(ctx context.Context, tx *txn) error

// transact runs op as one all-or-nothing transaction.
func (m *Machine) transact(ctx context.Context, name string, caller ids.ShortID, op operation) error {
	m.lock.Lock()
	defer m.lock.Unlock()

	ctx, span := m.deps.Tracer.Start(ctx, "machine."+name, oteltrace.WithAttributes(
		attribute.Stringer("caller", caller),
	))
	defer span.End()

	status, err := m.Status()
	if err != nil {
		return err
	}
	tx := &txn{
		machine: m,
		caller:  caller,
		now:     m.deps.Clock.Time(),
		status:  status,
	}
	sealed, err := m.run(ctx, tx, op)
	span.SetAttributes(
		attribute.Stringer("phase", tx.status.Phase),
		attribute.Int64("cycle", int64(tx.status.Cycle)),
	)
	if err != nil {
		m.deps.DB.Abort()

		class := faults.Classify(err)
		m.deps.Metrics.MarkRejected(class)
		span.RecordError(err)
		span.SetStatus(codes.Error, class)
		m.deps.Log.Debug("operation rejected",
			log.String("operation", name),
			log.Stringer("caller", caller),
			log.String("class", class),
			zap.Error(err),
		)
		return err
	}

	m.deps.Journal.Publish(sealed)
	for _, t := range tx.transitions {
		m.deps.Metrics.MarkTransition(t.from, t.to, tx.status.Cycle)
		m.deps.Log.Info("phase changed",
			log.Stringer("from", t.from),
			log.Stringer("to", t.to),
			log.Uint64("cycle", tx.status.Cycle),
			log.Stringer("caller", caller),
		)
	}
	return nil
}

func (m *Machine) run(ctx context.Context, tx *txn, op operation) ([]events.Event, error) {
	if err := op(ctx, tx); err != nil {
		return nil, err
	}
	if err := state.PutRecord(m.deps.State, keyStatus, &tx.status); err != nil {
		return nil, err
	}
	sealed, err := m.deps.Journal.Stage(tx.events)
	if err != nil {
		return nil, err
	}
	return sealed, m.deps.DB.Commit()
}

// emit buffers an event tagged with the current phase and cycle.
func (tx *txn) emit(kind events.Kind, amount uint64, detail string) {
	e := events.New(kind, tx.status.Cycle, tx.status.Phase, tx.now)
	e.Actor = tx.caller
	e.Amount = amount
	e.Detail = detail
	tx.events = append(tx.events, e)
}

// advance is the only writer of the phase. It enforces the legality rule
// before touching anything.
func (tx *txn) advance(next phase.Phase) error {
	current := tx.status.Phase
	if err := phase.Verify(current, next); err != nil {
		return err
	}
	if current == phase.Terminal {
		if err := tx.closeCycle(); err != nil {
			return err
		}
		tx.status.Cycle++
		tx.status.TerminalEntry = 0
	}
	tx.status.Phase = next
	tx.status.PhaseEnteredAt = tx.now.Unix()

	e := events.New(events.PhaseChanged, tx.status.Cycle, next, tx.now)
	e.Previous = current
	e.Actor = tx.caller
	tx.events = append(tx.events, e)
	tx.transitions = append(tx.transitions, transition{from: current, to: next})

	if next == phase.TakeOff {
		return tx.openCycle()
	}
	return nil
}

func (tx *txn) openCycle() error {
	tx.emit(events.NewCycleStarted, 0, "")
	return state.PutRecord(tx.machine.deps.State, cycleKey(tx.status.Cycle), &CycleRecord{
		Cycle: tx.status.Cycle,
		Start: tx.now.Unix(),
	})
}

func (tx *txn) closeCycle() error {
	db := tx.machine.deps.State
	var r CycleRecord
	if _, err := state.GetRecord(db, cycleKey(tx.status.Cycle), &r); err != nil {
		return err
	}
	r.Cycle = tx.status.Cycle
	r.TerminalEntry = tx.status.TerminalEntry
	r.End = tx.now.Unix()
	return state.PutRecord(db, cycleKey(tx.status.Cycle), &r)
}
