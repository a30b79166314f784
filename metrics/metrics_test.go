// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/luxfi/flightvm/faults"
	"github.com/luxfi/flightvm/phase"
)

func TestMetrics(t *testing.T) {
	require := require.New(t)

	registry := prometheus.NewRegistry()
	m, err := New(registry)
	require.NoError(err)

	m.MarkTransition(phase.Terminal, phase.TakeOff, 2)
	m.MarkRejected(faults.Ordering)
	m.MarkRejected(faults.Ordering)
	m.SetRaised(750)
	m.SetQuorum(phase.Terminal, 60)

	impl := m.(*metricsImpl)
	require.InDelta(1, testutil.ToFloat64(impl.transitions.WithLabelValues("Terminal", "TakeOff")), 0)
	require.InDelta(2, testutil.ToFloat64(impl.rejections.WithLabelValues(faults.Ordering)), 0)
	require.InDelta(float64(phase.TakeOff), testutil.ToFloat64(impl.phase), 0)
	require.InDelta(2, testutil.ToFloat64(impl.cycle), 0)
	require.InDelta(750, testutil.ToFloat64(impl.raised), 0)
	require.InDelta(60, testutil.ToFloat64(impl.quorum.WithLabelValues("Terminal")), 0)

	// Registering twice on the same registry fails.
	_, err = New(registry)
	require.Error(err)
}
