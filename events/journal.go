// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package events

import (
	"fmt"
	"sync"

	"github.com/google/btree"
	"github.com/luxfi/database"

	"github.com/luxfi/flightvm/state"
)

const defaultTreeDegree = 2

var prefixEvent = []byte("event:")

// Journal is the ordered event log. Records are persisted by Stage inside
// the caller's transaction and become visible through Publish once that
// transaction commits.
type Journal struct {
	db database.Database

	lock sync.RWMutex
	tree *btree.BTreeG[*Event]
	next uint64
}

// NewJournal loads the journal persisted in db.
func NewJournal(db database.Database) (*Journal, error) {
	j := &Journal{
		db:   db,
		tree: btree.NewG(defaultTreeDegree, (*Event).Less),
		next: 1,
	}
	it := db.NewIteratorWithPrefix(prefixEvent)
	defer it.Release()

	for it.Next() {
		e := &Event{}
		if _, err := state.Codec.Unmarshal(it.Value(), e); err != nil {
			return nil, fmt.Errorf("%w: event %x: %w", state.ErrCorrupted, it.Key(), err)
		}
		j.tree.ReplaceOrInsert(e)
		j.next = e.Seq + 1
	}
	return j, it.Error()
}

func eventKey(seq uint64) []byte {
	return state.Key(prefixEvent, state.Uint64Bytes(seq))
}

// Stage seals pending and writes it to the database. Nothing is visible
// until Publish; an aborted transaction discards the writes and the next
// Stage reuses the sequence numbers.
func (j *Journal) Stage(pending []Event) ([]Event, error) {
	j.lock.RLock()
	seq := j.next
	j.lock.RUnlock()

	sealed := make([]Event, len(pending))
	for i, e := range pending {
		if err := e.seal(seq + uint64(i)); err != nil {
			return nil, err
		}
		if err := state.PutRecord(j.db, eventKey(e.Seq), &e); err != nil {
			return nil, err
		}
		sealed[i] = e
	}
	return sealed, nil
}

// Publish makes committed events visible.
func (j *Journal) Publish(sealed []Event) {
	j.lock.Lock()
	defer j.lock.Unlock()

	for i := range sealed {
		e := sealed[i]
		j.tree.ReplaceOrInsert(&e)
		if e.Seq >= j.next {
			j.next = e.Seq + 1
		}
	}
}

// Len returns the number of published events.
func (j *Journal) Len() int {
	j.lock.RLock()
	defer j.lock.RUnlock()

	return j.tree.Len()
}

// Since returns up to limit events with seq > after, in order. A zero limit
// returns every such event.
func (j *Journal) Since(after uint64, limit int) []Event {
	j.lock.RLock()
	defer j.lock.RUnlock()

	var out []Event
	j.tree.AscendGreaterOrEqual(&Event{Seq: after + 1}, func(e *Event) bool {
		out = append(out, *e)
		return limit <= 0 || len(out) < limit
	})
	return out
}

// Cycle returns every event of cycle, in order.
func (j *Journal) Cycle(cycle uint64) []Event {
	j.lock.RLock()
	defer j.lock.RUnlock()

	var out []Event
	j.tree.Ascend(func(e *Event) bool {
		if e.Cycle == cycle {
			out = append(out, *e)
		}
		// Cycles never decrease along the journal.
		return e.Cycle <= cycle
	})
	return out
}

// Last returns the most recent event.
func (j *Journal) Last() (Event, bool) {
	j.lock.RLock()
	defer j.lock.RUnlock()

	e, ok := j.tree.Max()
	if !ok {
		return Event{}, false
	}
	return *e, true
}
