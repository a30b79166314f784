// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/luxfi/flightvm/phase"
	"github.com/luxfi/flightvm/utils/wrappers"
)

const (
	namespace = "flightvm"

	fromLabel  = "from"
	toLabel    = "to"
	classLabel = "class"
	phaseLabel = "phase"
)

var _ Metrics = (*metricsImpl)(nil)

type Metrics interface {
	// MarkTransition records a committed phase change and the resulting
	// position of the machine.
	MarkTransition(from, to phase.Phase, cycle uint64)
	// MarkRejected records an operation rejected with the given error class.
	MarkRejected(class string)
	SetPosition(p phase.Phase, cycle uint64)
	SetRaised(raised uint64)
	SetQuorum(p phase.Phase, percent uint64)
}

type metricsImpl struct {
	transitions *prometheus.CounterVec
	rejections  *prometheus.CounterVec
	phase       prometheus.Gauge
	cycle       prometheus.Gauge
	raised      prometheus.Gauge
	quorum      *prometheus.GaugeVec
}

func New(registerer prometheus.Registerer) (Metrics, error) {
	m := &metricsImpl{
		transitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "transitions_total",
				Help:      "number of committed phase transitions",
			},
			[]string{fromLabel, toLabel},
		),
		rejections: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "rejections_total",
				Help:      "number of rejected operations by error class",
			},
			[]string{classLabel},
		),
		phase: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "phase",
			Help:      "current phase, in canonical order starting at 0 for Boarding",
		}),
		cycle: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "cycle",
			Help:      "current cycle",
		}),
		raised: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "boarding_raised",
			Help:      "amount raised by the latest boarding window",
		}),
		quorum: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "quorum_percent",
				Help:      "stake quorum percent toward leaving a phase",
			},
			[]string{phaseLabel},
		),
	}

	errs := wrappers.Errs{}
	errs.Add(
		registerer.Register(m.transitions),
		registerer.Register(m.rejections),
		registerer.Register(m.phase),
		registerer.Register(m.cycle),
		registerer.Register(m.raised),
		registerer.Register(m.quorum),
	)
	return m, errs.Err
}

func (m *metricsImpl) MarkTransition(from, to phase.Phase, cycle uint64) {
	m.transitions.With(prometheus.Labels{
		fromLabel: from.String(),
		toLabel:   to.String(),
	}).Inc()
	m.SetPosition(to, cycle)
}

func (m *metricsImpl) MarkRejected(class string) {
	m.rejections.With(prometheus.Labels{
		classLabel: class,
	}).Inc()
}

func (m *metricsImpl) SetPosition(p phase.Phase, cycle uint64) {
	m.phase.Set(float64(p))
	m.cycle.Set(float64(cycle))
}

func (m *metricsImpl) SetRaised(raised uint64) {
	m.raised.Set(float64(raised))
}

func (m *metricsImpl) SetQuorum(p phase.Phase, percent uint64) {
	m.quorum.With(prometheus.Labels{
		phaseLabel: p.String(),
	}).Set(float64(percent))
}
