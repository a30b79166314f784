// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package machine

import (
	"fmt"

	"github.com/luxfi/flightvm/faults"
)

var (
	ErrNotAdmin      = fmt.Errorf("%w: caller is not the administrator", faults.ErrAuthorization)
	ErrNotAutomation = fmt.Errorf("%w: caller is not the automation", faults.ErrAuthorization)
	ErrNotStaker     = fmt.Errorf("%w: caller holds no stake toward this gate", faults.ErrAuthorization)
	ErrNotStrategy   = fmt.Errorf("%w: caller is not the accumulation strategy", faults.ErrAuthorization)
	ErrNotHolder     = fmt.Errorf("%w: caller holds no participation rights", faults.ErrAuthorization)

	ErrBoardingClosed     = fmt.Errorf("%w: boarding is over", faults.ErrPrecondition)
	ErrStakingClosed      = fmt.Errorf("%w: staking not permitted in this phase", faults.ErrPrecondition)
	ErrQuorumNotMet       = fmt.Errorf("%w: stake quorum not met", faults.ErrPrecondition)
	ErrCooldown           = fmt.Errorf("%w: terminal cooldown not elapsed", faults.ErrPrecondition)
	ErrDescentUnconfirmed = fmt.Errorf("%w: descent not confirmed", faults.ErrPrecondition)
	ErrDescentConfirmed   = fmt.Errorf("%w: descent already confirmed", faults.ErrPrecondition)
	ErrStrategyUnset      = fmt.Errorf("%w: strategy not configured", faults.ErrPrecondition)
	ErrEmptyStrategy      = fmt.Errorf("%w: empty strategy address", faults.ErrPrecondition)
	ErrUnknownKind        = fmt.Errorf("%w: unknown strategy kind", faults.ErrPrecondition)
	ErrPhaseNotConcluded  = fmt.Errorf("%w: phase has not concluded", faults.ErrPrecondition)
	ErrRedemptionClosed   = fmt.Errorf("%w: redemption only open in Terminal", faults.ErrPrecondition)
)
