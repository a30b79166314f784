// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package custody

import (
	"context"
	"errors"
	"testing"

	"github.com/luxfi/database/memdb"
	"github.com/luxfi/database/versiondb"
	"github.com/luxfi/ids"
	"github.com/luxfi/log"
	"github.com/stretchr/testify/require"

	"github.com/luxfi/flightvm/ledger"
)

var errHandler = errors.New("handler failed")

type recordingHandler struct {
	calls []uint64
	err   error
}

func (h *recordingHandler) Handle(_ context.Context, _ ids.ShortID, value uint64, _ []byte, _ Operation) error {
	if h.err != nil {
		return h.err
	}
	h.calls = append(h.calls, value)
	return nil
}

func newTestSafe(t *testing.T) (*Safe, *ledger.Ledger, *versiondb.Database) {
	t.Helper()
	db := versiondb.New(memdb.New())
	assets := ledger.New(db)
	base := ids.GenerateTestID()
	safe := NewSafe(log.NoLog{}, ids.GenerateTestShortID(), base, db, assets)
	require.NoError(t, assets.Mint(base, safe.Address(), 1_000))
	return safe, assets, db
}

func TestSafeModuleExecution(t *testing.T) {
	require := require.New(t)

	safe, assets, _ := newTestSafe(t)
	module := ids.GenerateTestShortID()
	target := ids.GenerateTestShortID()
	handler := &recordingHandler{}
	require.NoError(safe.Register(target, handler))

	agent := safe.Agent(module)
	err := agent.Execute(context.Background(), target, 10, []byte{1}, Call)
	require.ErrorIs(err, ErrModuleDisabled)

	require.NoError(safe.EnableModule(module))
	require.NoError(agent.Execute(context.Background(), target, 10, []byte{1}, Call))
	require.Equal([]uint64{10}, handler.calls)

	balance, err := assets.Balance(safe.BaseAsset(), target)
	require.NoError(err)
	require.Equal(uint64(10), balance)

	require.NoError(safe.DisableModule(module))
	err = agent.Execute(context.Background(), target, 10, nil, Call)
	require.ErrorIs(err, ErrModuleDisabled)
}

func TestSafeRejections(t *testing.T) {
	safe, _, _ := newTestSafe(t)
	module := ids.GenerateTestShortID()
	target := ids.GenerateTestShortID()
	require.NoError(t, safe.EnableModule(module))
	require.NoError(t, safe.Register(target, &recordingHandler{}))

	tests := []struct {
		name        string
		target      ids.ShortID
		value       uint64
		payload     []byte
		op          Operation
		expectedErr error
	}{
		{
			name:        "delegate call with value",
			target:      target,
			value:       1,
			op:          DelegateCall,
			expectedErr: ErrDelegateCallValue,
		},
		{
			name:        "unknown operation",
			target:      target,
			op:          Operation(7),
			expectedErr: ErrUnknownOperation,
		},
		{
			name:        "payload to unknown target",
			target:      ids.GenerateTestShortID(),
			payload:     []byte{1},
			op:          Call,
			expectedErr: ErrUnknownTarget,
		},
		{
			name:        "value above balance",
			target:      target,
			value:       1_001,
			op:          Call,
			expectedErr: ledger.ErrInsufficientBalance,
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			err := safe.ExecFromModule(context.Background(), module, test.target, test.value, test.payload, test.op)
			require.ErrorIs(t, err, test.expectedErr)
		})
	}
}

func TestSafeHandlerFailureDiscardedByAbort(t *testing.T) {
	require := require.New(t)

	safe, assets, db := newTestSafe(t)
	require.NoError(db.Commit())

	module := ids.GenerateTestShortID()
	target := ids.GenerateTestShortID()
	require.NoError(safe.Register(target, &recordingHandler{err: errHandler}))
	require.NoError(safe.EnableModule(module))

	err := safe.ExecFromModule(context.Background(), module, target, 100, []byte{1}, Call)
	require.ErrorIs(err, errHandler)
	db.Abort()

	balance, err := assets.Balance(safe.BaseAsset(), safe.Address())
	require.NoError(err)
	require.Equal(uint64(1_000), balance)

	enabled, err := safe.IsModuleEnabled(module)
	require.NoError(err)
	require.False(enabled)
}

func TestSafeRegister(t *testing.T) {
	require := require.New(t)

	safe, _, _ := newTestSafe(t)
	target := ids.GenerateTestShortID()
	require.ErrorIs(safe.Register(ids.ShortEmpty, &recordingHandler{}), ErrEmptyAddress)
	require.NoError(safe.Register(target, &recordingHandler{}))
	require.ErrorIs(safe.Register(target, &recordingHandler{}), ErrTargetRegistered)
	require.ErrorIs(safe.EnableModule(ids.ShortEmpty), ErrEmptyAddress)
}
