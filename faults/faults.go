// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package faults defines the error classes every controller operation
// reports. Domain errors wrap exactly one class so callers can branch with
// errors.Is.
package faults

import (
	"errors"
	"fmt"
)

var (
	// ErrAuthorization is returned when the caller is not of the class the
	// operation requires.
	ErrAuthorization = errors.New("unauthorized caller")
	// ErrOrdering is returned when a requested transition violates the phase
	// order.
	ErrOrdering = errors.New("illegal phase transition")
	// ErrPrecondition is returned when a phase specific gate is not met.
	ErrPrecondition = errors.New("precondition not met")
	// ErrDelegation is returned when a custody or strategy call failed.
	ErrDelegation = errors.New("delegated execution failed")
	// ErrStaleData is returned for stale or non-positive oracle readings.
	ErrStaleData = errors.New("stale oracle data")
)

// Class labels, used for metrics and API responses.
const (
	Authorization = "authorization"
	Ordering      = "ordering"
	Precondition  = "precondition"
	Delegation    = "delegation"
	StaleData     = "stale_data"
	Unknown       = "unknown"
)

var classes = []struct {
	err   error
	label string
}{
	{ErrAuthorization, Authorization},
	{ErrOrdering, Ordering},
	{ErrStaleData, StaleData},
	{ErrDelegation, Delegation},
	{ErrPrecondition, Precondition},
}

// Classify returns the class label of err, or Unknown.
//
// A delegated call that failed because of stale data carries both classes;
// the more specific StaleData wins. A delegated call that failed on a
// collaborator's own precondition reports Delegation.
func Classify(err error) string {
	if err == nil {
		return ""
	}
	for _, c := range classes {
		if errors.Is(err, c.err) {
			return c.label
		}
	}
	return Unknown
}

// Wrap attaches class to err unless err already carries a class.
func Wrap(class error, err error) error {
	if err == nil {
		return nil
	}
	if Classify(err) != Unknown {
		return err
	}
	return fmt.Errorf("%w: %w", class, err)
}
